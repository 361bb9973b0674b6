// Package sink isolates the filesystem side effects of a run beneath one output root.
package sink

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var ErrOutsideRoot = errors.New("path escapes output root")

// FS is the set of filesystem operations a run performs. All paths are relative
// to the output root; "." is the root itself.
type FS interface {
	Root() string
	Exists(rel string) (bool, error)
	EnsureDir(rel string) error
	RemoveAll(rel string) error
	WriteFile(rel, content string) error
	ReadFile(rel string) (string, error)
	Snapshot() (map[string]string, error)
}

// maxSnapshotBytes skips large files when capturing a previous tree.
const maxSnapshotBytes = 1 << 20

// Dir is an FS backed by a directory on the local disk.
type Dir struct {
	root string
}

var _ FS = (*Dir)(nil)

// New returns a Dir rooted at root. The directory does not need to exist yet.
func New(root string) (*Dir, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("output root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if abs == filepath.VolumeName(abs)+string(filepath.Separator) {
		return nil, fmt.Errorf("refusing to use filesystem root %q as output root", abs)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute output root.
func (d *Dir) Root() string { return d.root }

func (d *Dir) resolve(rel string) (string, error) {
	if rel == "" || rel == "." {
		return d.root, nil
	}
	native := filepath.FromSlash(rel)
	if !filepath.IsLocal(native) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, rel)
	}
	return filepath.Join(d.root, native), nil
}

func (d *Dir) Exists(rel string) (bool, error) {
	p, err := d.resolve(rel)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

func (d *Dir) EnsureDir(rel string) error {
	p, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(p, 0o755); err != nil {
		return fmt.Errorf("could not create directory %s: %w", p, err)
	}
	return nil
}

func (d *Dir) RemoveAll(rel string) error {
	p, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(p); err != nil {
		return fmt.Errorf("could not remove %s: %w", p, err)
	}
	return nil
}

func (d *Dir) WriteFile(rel, content string) error {
	p, err := d.resolve(rel)
	if err != nil {
		return err
	}
	if p == d.root {
		return fmt.Errorf("%w: cannot write the root itself", ErrOutsideRoot)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		return fmt.Errorf("could not write %s: %w", p, err)
	}
	return nil
}

func (d *Dir) ReadFile(rel string) (string, error) {
	p, err := d.resolve(rel)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Snapshot reads every regular file under the root, keyed by slash-separated
// relative path. A missing root yields an empty snapshot.
func (d *Dir) Snapshot() (map[string]string, error) {
	out := make(map[string]string)
	err := filepath.WalkDir(d.root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if p == d.root && errors.Is(err, fs.ErrNotExist) {
				return fs.SkipAll
			}
			return err
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return err
		}
		if info.Size() > maxSnapshotBytes {
			return nil
		}
		b, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(b)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
