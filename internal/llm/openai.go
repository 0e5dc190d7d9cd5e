package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// openAIClient talks to the chat completions API, or any server that speaks it.
type openAIClient struct {
	httpClient *http.Client
	apiKey     string
	url        string
	sampling
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	ResponseFormat map[string]string `json:"response_format"`
	Model          string            `json:"model"`
	Messages       []openAIMessage   `json:"messages"`
	Temperature    float64           `json:"temperature"`
	MaxTokens      int               `json:"max_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	return &openAIClient{
		httpClient: newHTTPClient(),
		apiKey:     cfg.APIKey,
		url:        baseURL(cfg, "https://api.openai.com") + "/v1/chat/completions",
		sampling:   samplingFrom(cfg, "gpt-4o-mini"),
	}, nil
}

// Analyze requests a JSON-mode completion and returns the first choice.
func (c *openAIClient) Analyze(ctx context.Context, prompt string, systemPrompt string) (string, error) {
	req := openAIRequest{
		ResponseFormat: map[string]string{"type": "json_object"},
		Model:          c.model,
		Messages: []openAIMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.apiKey)

	var resp openAIResponse
	if err := postJSON(ctx, c.httpClient, "OpenAI", c.url, header, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}
