package generator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	ollama "github.com/ollama/ollama/api"
)

// OllamaLLM implements LLMClient against a local or remote Ollama server.
type OllamaLLM struct {
	Model       string
	Temperature *float64
	client      *ollama.Client
}

func NewOllamaLLMFromConfig(cfg *LLMSettings) (*OllamaLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}

	var client *ollama.Client
	if cfg.BaseURL != "" {
		base, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama base_url: %w", err)
		}
		client = ollama.NewClient(base, &http.Client{Timeout: cfg.Timeout})
	} else {
		c, err := ollama.ClientFromEnvironment()
		if err != nil {
			return nil, fmt.Errorf("could not create ollama client: %w", err)
		}
		client = c
	}
	return &OllamaLLM{Model: cfg.Model, Temperature: cfg.Temperature, client: client}, nil
}

func (o *OllamaLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	stream := false
	req := &ollama.GenerateRequest{
		Model:  o.Model,
		System: prompt.System,
		Prompt: prompt.User,
		Stream: &stream,
	}
	if o.Temperature != nil {
		req.Options = map[string]any{"temperature": *o.Temperature}
	}

	var out strings.Builder
	err := o.client.Generate(ctx, req, func(res ollama.GenerateResponse) error {
		out.WriteString(res.Response)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	return out.String(), nil
}
