package generator

import (
	"context"
)

// MockLLM is a placeholder backend for local dry runs; it never calls a model.
// File prompts produce a one-line comment naming the target.
type MockLLM struct{}

func (m MockLLM) Complete(_ context.Context, prompt Prompt) (string, error) {
	if prompt.Target == "" {
		return `{"files":[]}`, nil
	}
	return "// " + prompt.Target, nil
}
