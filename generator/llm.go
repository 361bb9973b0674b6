package generator

import (
	"context"
	"time"
)

// LLMClient is the content-generation capability. Implementations must honor
// ctx cancellation; the caller bounds each call with a deadline.
type LLMClient interface {
	Complete(ctx context.Context, prompt Prompt) (string, error)
}

// SchemaCompleter is implemented by backends that can constrain the reply to a
// JSON schema.
type SchemaCompleter interface {
	CompleteJSON(ctx context.Context, prompt Prompt, name string, schema any) (string, error)
}

// LLMSettings carries the backend configuration shared by all implementations.
type LLMSettings struct {
	Provider    string
	Model       string
	APIKey      string
	BaseURL     string
	Command     []string
	Temperature *float64
	Timeout     time.Duration
}
