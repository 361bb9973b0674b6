package cmd

import (
	"context"
	"fmt"
	"time"

	"repogen/config"
	"repogen/generator"
)

// providerDefaults fills in the model and API key variable a provider uses
// when the config leaves them empty.
var providerDefaults = map[string]struct {
	model  string
	keyEnv string
}{
	"openai":   {model: "gpt-4o", keyEnv: "OPENAI_API_KEY"},
	"deepseek": {model: "deepseek-chat", keyEnv: "DEEPSEEK_API_KEY"},
	"ollama":   {model: "llama3.1"},
	"claude":   {model: "claude-sonnet-4-5", keyEnv: "ANTHROPIC_API_KEY"},
}

func buildLLM(ctx context.Context, cfg config.LLMConfig, timeout time.Duration) (generator.LLMClient, error) {
	if cfg.Provider == "" {
		return nil, fmt.Errorf("llm config missing; please set llm.provider in config")
	}
	if d, ok := providerDefaults[cfg.Provider]; ok {
		if cfg.Model == "" {
			cfg.Model = d.model
		}
		if cfg.APIKeyEnv == "" {
			cfg.APIKeyEnv = d.keyEnv
		}
	}
	settings := &generator.LLMSettings{
		Provider:    cfg.Provider,
		Model:       cfg.Model,
		APIKey:      cfg.ResolveAPIKey(),
		BaseURL:     cfg.BaseURL,
		Command:     cfg.Command,
		Temperature: cfg.Temperature,
		Timeout:     timeout,
	}

	switch cfg.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(settings)
	case "deepseek":
		// DeepSeek serves an OpenAI-compatible API at its own endpoint.
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("llm provider deepseek requires base_url (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(settings)
	case "ollama":
		return generator.NewOllamaLLMFromConfig(settings)
	case "claude":
		return generator.NewClaudeLLMFromConfig(ctx, settings)
	case "command":
		return generator.NewCommandLLM(settings)
	case "mock":
		return generator.MockLLM{}, nil
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}
