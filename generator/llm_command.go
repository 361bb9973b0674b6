package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// waitDelay bounds how long a killed command may keep its output pipes open.
const waitDelay = 2 * time.Second

// CommandLLM runs an external program once per prompt. The flattened prompt is
// passed as the last argument and stdout is the generated content.
type CommandLLM struct {
	Args []string
	Dir  string
}

func NewCommandLLM(cfg *LLMSettings) (*CommandLLM, error) {
	if cfg == nil || len(cfg.Command) == 0 || strings.TrimSpace(cfg.Command[0]) == "" {
		return nil, errors.New("llm provider command requires llm.command")
	}
	args := make([]string, len(cfg.Command))
	copy(args, cfg.Command)
	return &CommandLLM{Args: args}, nil
}

func (c *CommandLLM) Complete(ctx context.Context, prompt Prompt) (string, error) {
	args := append(append([]string{}, c.Args[1:]...), prompt.Text())
	cmd := exec.CommandContext(ctx, c.Args[0], args...)
	cmd.Dir = c.Dir
	cmd.WaitDelay = waitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if stderr.Len() > 0 {
		zerolog.Ctx(ctx).Warn().
			Str("target", prompt.Target).
			Str("stderr", stderr.String()).
			Msg("generator command wrote to stderr")
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return "", fmt.Errorf("%s: %w", c.Args[0], err)
		}
		return "", fmt.Errorf("%s: %w: %s", c.Args[0], err, msg)
	}
	return stdout.String(), nil
}
