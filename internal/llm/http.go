package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultTemperature = 0.1
	defaultMaxTokens   = 1024
	httpTimeout        = 60 * time.Second

	// A table verdict is a few hundred bytes; anything past this is noise.
	maxResponseBytes = 4 << 20
)

// sampling holds the generation settings shared by the HTTP providers.
type sampling struct {
	model       string
	temperature float64
	maxTokens   int
}

func samplingFrom(cfg Config, defaultModel string) sampling {
	s := sampling{model: cfg.Model, temperature: cfg.Temperature, maxTokens: cfg.MaxTokens}
	if s.model == "" {
		s.model = defaultModel
	}
	if s.temperature == 0 {
		s.temperature = defaultTemperature
	}
	if s.maxTokens == 0 {
		s.maxTokens = defaultMaxTokens
	}
	return s
}

func baseURL(cfg Config, fallback string) string {
	if cfg.BaseURL == "" {
		return fallback
	}
	return strings.TrimSuffix(cfg.BaseURL, "/")
}

func newHTTPClient() *http.Client {
	return &http.Client{
		Timeout: httpTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}

// postJSON sends payload to url and decodes a 200 response into out. Non-200
// responses become statusError values so the retry loop can tell throttling
// from bad requests.
func postJSON(ctx context.Context, client *http.Client, provider, url string, header http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", provider, err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", provider, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", provider, err)
	}

	if resp.StatusCode != http.StatusOK {
		return statusError(provider, resp.StatusCode, data)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", provider, err)
	}
	return nil
}
