package generator

import (
	"context"
	"errors"
)

// Agent turns a file request into file content: it composes the prompt, calls
// the backend and post-processes the reply.
type Agent struct {
	llm    LLMClient
	unwrap bool
}

func NewAgent(llm LLMClient, unwrapFences bool) (*Agent, error) {
	if llm == nil {
		return nil, errors.New("llm client is required")
	}
	return &Agent{llm: llm, unwrap: unwrapFences}, nil
}

// LLM returns the backend the agent calls.
func (a *Agent) LLM() LLMClient { return a.llm }

// GenerateFile produces the content of one file. Backend errors are returned
// unchanged so callers can classify them.
func (a *Agent) GenerateFile(ctx context.Context, req FileRequest) (string, error) {
	raw, err := a.llm.Complete(ctx, BuildFilePrompt(req))
	if err != nil {
		return "", err
	}
	return PostProcess(raw, a.unwrap), nil
}
