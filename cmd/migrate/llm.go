package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/danielzillmann-hue/transformation-agent/internal/config"
	"github.com/danielzillmann-hue/transformation-agent/internal/llm"
	"github.com/spf13/viper"
)

// createTableClassifier builds the model-backed classifier used by the
// semantic rule.
func createTableClassifier(cfg *config.Config) (*llm.TableClassifier, error) {
	provider := viper.GetString("llm.provider")
	if provider == "" {
		provider = "vertex"
	}

	llmCfg := llm.Config{
		Provider:       provider,
		Model:          viper.GetString("llm.model"),
		Temperature:    viper.GetFloat64("llm.temperature"),
		MaxTokens:      viper.GetInt("llm.max_tokens"),
		MaxRetries:     viper.GetInt("llm.max_retries"),
		RetryDelay:     viper.GetDuration("llm.retry_delay"),
		RateLimit:      viper.GetInt("llm.rate_limit"),
		Timeout:        cfg.Classification.SemanticTimeout,
		ClaudeCodePath: viper.GetString("llm.claude_code_path"),
		BaseURL:        viper.GetString("llm.base_url"),
		Project:        viper.GetString("llm.project"),
		Location:       viper.GetString("llm.location"),
	}

	if llmCfg.MaxRetries == 0 {
		llmCfg.MaxRetries = 3
	}
	if llmCfg.RetryDelay == 0 {
		llmCfg.RetryDelay = time.Second
	}
	if llmCfg.RateLimit == 0 {
		llmCfg.RateLimit = 60 // requests per minute
	}

	switch provider {
	case "openai":
		llmCfg.APIKey = firstSet(viper.GetString("llm.openai_api_key"), os.Getenv("OPENAI_API_KEY"))
		if llmCfg.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key not found in config or OPENAI_API_KEY environment variable")
		}

	case "anthropic":
		llmCfg.APIKey = firstSet(viper.GetString("llm.anthropic_api_key"), os.Getenv("ANTHROPIC_API_KEY"))
		if llmCfg.APIKey == "" {
			return nil, fmt.Errorf("anthropic API key not found in config or ANTHROPIC_API_KEY environment variable")
		}

	case "vertex", "gemini":
		// Credentials come from Application Default Credentials.
		if llmCfg.Project == "" {
			llmCfg.Project = firstSet(cfg.Warehouse.Project, os.Getenv("GOOGLE_CLOUD_PROJECT"))
		}
	}

	client, err := llm.NewClient(llmCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}

	return llm.NewTableClassifier(client, llmCfg, slog.Default()), nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
