package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const cloudPlatformScope = "https://www.googleapis.com/auth/cloud-platform"

// vertexClient calls Gemini models through the Vertex AI generateContent API.
type vertexClient struct {
	httpClient *http.Client
	endpoint   string
	sampling
}

type vertexPart struct {
	Text string `json:"text"`
}

type vertexContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []vertexPart `json:"parts"`
}

type vertexGenerationConfig struct {
	ResponseMimeType string  `json:"responseMimeType"`
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
}

type vertexRequest struct {
	SystemInstruction *vertexContent         `json:"systemInstruction,omitempty"`
	Contents          []vertexContent        `json:"contents"`
	GenerationConfig  vertexGenerationConfig `json:"generationConfig"`
}

type vertexResponse struct {
	Candidates []struct {
		FinishReason string        `json:"finishReason"`
		Content      vertexContent `json:"content"`
	} `json:"candidates"`
}

// newVertexClient creates a Vertex AI client. Credentials come from
// cfg.TokenSource when set, otherwise from Application Default Credentials.
func newVertexClient(cfg Config) (Client, error) {
	if cfg.Project == "" {
		return nil, errors.New("vertex project is required")
	}

	location := cfg.Location
	if location == "" {
		location = "us-central1"
	}
	s := samplingFrom(cfg, "gemini-2.5-flash")

	ctx := context.Background()
	ts := cfg.TokenSource
	if ts == nil {
		var err error
		ts, err = google.DefaultTokenSource(ctx, cloudPlatformScope)
		if err != nil {
			return nil, fmt.Errorf("failed to find default Google credentials: %w", err)
		}
	}

	httpClient := oauth2.NewClient(ctx, ts)
	httpClient.Timeout = httpTimeout

	return &vertexClient{
		httpClient: httpClient,
		endpoint: fmt.Sprintf("%s/v1/projects/%s/locations/%s/publishers/google/models/%s:generateContent",
			baseURL(cfg, fmt.Sprintf("https://%s-aiplatform.googleapis.com", location)), cfg.Project, location, s.model),
		sampling: s,
	}, nil
}

// Analyze sends a generateContent request and returns the concatenated text parts.
func (c *vertexClient) Analyze(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	req := vertexRequest{
		Contents: []vertexContent{{Role: "user", Parts: []vertexPart{{Text: prompt}}}},
		GenerationConfig: vertexGenerationConfig{
			ResponseMimeType: "application/json",
			Temperature:      c.temperature,
			MaxOutputTokens:  c.maxTokens,
		},
	}
	if systemPrompt != "" {
		req.SystemInstruction = &vertexContent{Parts: []vertexPart{{Text: systemPrompt}}}
	}

	var resp vertexResponse
	if err := postJSON(ctx, c.httpClient, "vertex", c.endpoint, nil, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 {
		return "", errors.New("no candidates in response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", errors.New("no content in response")
	}
	return text.String(), nil
}
