package llm

import (
	"fmt"
	"net/http"

	"github.com/danielzillmann-hue/transformation-agent/internal/common"
)

// statusError converts a non-200 provider response into an error. Throttling
// and server-side failures are marked retryable; client errors are not.
func statusError(provider string, status int, body []byte) error {
	msg := string(body)
	if len(msg) > 512 {
		msg = msg[:512] + "..."
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &common.RetryableError{
			Err:       fmt.Errorf("%s API error (status %d): %w: %s", provider, status, common.ErrRateLimit, msg),
			Retryable: true,
		}
	case status >= 500:
		return &common.RetryableError{
			Err:       fmt.Errorf("%s API error (status %d): %s", provider, status, msg),
			Retryable: true,
		}
	default:
		return &common.RetryableError{
			Err:       fmt.Errorf("%s API error (status %d): %s", provider, status, msg),
			Retryable: false,
		}
	}
}
