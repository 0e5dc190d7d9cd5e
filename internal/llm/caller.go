package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
	"github.com/danielzillmann-hue/transformation-agent/internal/service"
)

// DefaultCallTimeout bounds a single model call.
const DefaultCallTimeout = 60 * time.Second

// caller sends prompts under a shared rate limit, a per-call timeout and
// the configured retry policy.
type caller struct {
	client      Client
	rateLimiter *rateLimiter
	retryOpts   service.RetryOptions
	timeout     time.Duration
	calls       atomic.Int64
}

func newCaller(client Client, cfg Config) *caller {
	retryOpts := service.RetryOptions{
		MaxAttempts:  cfg.MaxRetries,
		InitialDelay: cfg.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
	if retryOpts.MaxAttempts == 0 {
		retryOpts.MaxAttempts = 3
	}
	if retryOpts.InitialDelay == 0 {
		retryOpts.InitialDelay = time.Second
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}

	return &caller{
		client:      client,
		rateLimiter: newRateLimiter(cfg.RateLimit),
		retryOpts:   retryOpts,
		timeout:     timeout,
	}
}

// call sends prompt and hands the reply to parse. Provider errors are retried
// unless marked otherwise; a parse error is always retried.
func (c *caller) call(ctx context.Context, prompt, systemPrompt string, parse func(string) error) error {
	return common.WithRetry(ctx, func() error {
		if err := c.rateLimiter.wait(ctx); err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}

		c.calls.Add(1)
		callCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		text, err := c.client.Analyze(callCtx, prompt, systemPrompt)
		if err != nil {
			if ctx.Err() != nil {
				return &common.RetryableError{Err: ctx.Err(), Retryable: false}
			}
			var retryable *common.RetryableError
			if errors.As(err, &retryable) {
				return err
			}
			return &common.RetryableError{Err: err, Retryable: true}
		}

		if parseErr := parse(text); parseErr != nil {
			return &common.RetryableError{Err: parseErr, Retryable: true}
		}
		return nil
	}, c.retryOpts)
}
