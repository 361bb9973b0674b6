package pipeline

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrGeneration = errors.New("generation failed")
	ErrTimeout    = errors.New("generation timed out")
	ErrCanceled   = errors.New("run canceled")
	ErrFilesystem = errors.New("filesystem error")
)

// StepError is a failure that halted a run. It matches both its Kind and the
// underlying cause with errors.Is.
type StepError struct {
	// Path is the file being processed; empty when the failure happened while
	// preparing the output root.
	Path string
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s for %s: %v", e.Kind, e.Path, e.Err)
}

func (e *StepError) Unwrap() []error { return []error{e.Kind, e.Err} }

func generationError(ctx context.Context, path string, err error) *StepError {
	kind := ErrGeneration
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = ErrTimeout
	case errors.Is(err, context.Canceled) || ctx.Err() != nil:
		kind = ErrCanceled
	}
	return &StepError{Path: path, Kind: kind, Err: err}
}

func filesystemError(path string, err error) *StepError {
	return &StepError{Path: path, Kind: ErrFilesystem, Err: err}
}
