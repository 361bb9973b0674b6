package graph

import (
	"errors"
	"fmt"
	"strings"
)

var ErrCycle = errors.New("circular dependency detected")

// CycleError names the file at which the traversal closed a cycle.
type CycleError struct {
	// Path is the file that was reached again while still being visited.
	Path string
	// Chain is the dependency path Path -> ... -> Path.
	Chain []string
}

func (e *CycleError) Error() string {
	if e == nil {
		return ""
	}
	if len(e.Chain) == 0 {
		return fmt.Sprintf("%s involving: %s", ErrCycle, e.Path)
	}
	return fmt.Sprintf("%s involving: %s (%s)", ErrCycle, e.Path, strings.Join(e.Chain, " -> "))
}

func (e *CycleError) Unwrap() error { return ErrCycle }
