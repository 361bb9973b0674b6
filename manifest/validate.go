package manifest

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyPath     = errors.New("empty file path")
	ErrDuplicatePath = errors.New("duplicate file path")
	ErrInvalidPath   = errors.New("file path outside project root")
)

// ValidationError reports the offending entry of a manifest.
type ValidationError struct {
	Index int
	Path  string
	Kind  error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return fmt.Sprintf("manifest entry %d: %s", e.Index, e.Kind)
	}
	return fmt.Sprintf("manifest entry %d: %s: %q", e.Index, e.Kind, e.Path)
}

func (e *ValidationError) Unwrap() error { return e.Kind }

// Validate rejects empty, duplicate and non-local paths. Paths that clean to
// the same file, such as "a.ts" and "./a.ts", are duplicates. It is called
// before any generation work starts.
func (m Manifest) Validate() error {
	seen := make(map[string]struct{}, len(m.Files))
	for i, f := range m.Files {
		if strings.TrimSpace(f.Path) == "" {
			return &ValidationError{Index: i, Kind: ErrEmptyPath}
		}
		if !isLocal(f.Path) {
			return &ValidationError{Index: i, Path: f.Path, Kind: ErrInvalidPath}
		}
		key := cleanPath(f.Path)
		if _, dup := seen[key]; dup {
			return &ValidationError{Index: i, Path: f.Path, Kind: ErrDuplicatePath}
		}
		seen[key] = struct{}{}
	}
	return nil
}

func isLocal(p string) bool {
	if p == "." || strings.HasPrefix(p, "/") {
		return false
	}
	return filepath.IsLocal(filepath.FromSlash(p))
}
