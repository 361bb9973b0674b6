package generator

import (
	"context"
	"errors"

	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino/schema"
)

const defaultClaudeMaxTokens = 16 * 1024

// ClaudeLLM implements LLMClient through the eino Claude chat model.
type ClaudeLLM struct {
	model *claude.ChatModel
}

func NewClaudeLLMFromConfig(ctx context.Context, cfg *LLMSettings) (*ClaudeLLM, error) {
	if cfg == nil {
		return nil, errors.New("llm config is nil")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("claude api key missing; provide llm.api_key or llm.api_key_env")
	}
	if cfg.Model == "" {
		return nil, errors.New("llm model is required")
	}

	conf := &claude.Config{
		APIKey:    cfg.APIKey,
		Model:     cfg.Model,
		MaxTokens: defaultClaudeMaxTokens,
	}
	if cfg.BaseURL != "" {
		baseURL := cfg.BaseURL
		conf.BaseURL = &baseURL
	}
	if cfg.Temperature != nil {
		t := float32(*cfg.Temperature)
		conf.Temperature = &t
	}

	cm, err := claude.NewChatModel(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &ClaudeLLM{model: cm}, nil
}

func (c *ClaudeLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	msgs := []*schema.Message{schema.SystemMessage(prompt.System)}
	for _, h := range prompt.History {
		if h.Role == "assistant" {
			msgs = append(msgs, schema.AssistantMessage(h.Content, nil))
			continue
		}
		msgs = append(msgs, schema.UserMessage(h.Content))
	}
	msgs = append(msgs, schema.UserMessage(prompt.User))

	resp, err := c.model.Generate(ctx, msgs)
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", errors.New("claude: empty response")
	}
	return resp.Content, nil
}
