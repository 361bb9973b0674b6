// Package manifest holds the flat list of files a project run must produce,
// together with the dependencies each file declares on the others.
package manifest

import (
	"path"
	"strings"
)

// FileSpec is one file to be produced.
type FileSpec struct {
	// Path is relative to the project root and unique within a manifest.
	Path string `json:"path" yaml:"path" jsonschema:"description=The full path of the file to be created relative to the project root."`
	// Description is the free-text instruction for the file's content.
	Description string `json:"description" yaml:"description" jsonschema:"description=A detailed description of the code or content that should be in this file."`
	// DependsOn names other paths of the same manifest. Unknown entries are tolerated.
	DependsOn []string `json:"dependsOn" yaml:"dependsOn" jsonschema:"description=File paths this file depends on. Use an empty array when there are none."`
}

// Manifest is the ordered collection of files received from the manifest source.
// Its order only matters for determinism.
type Manifest struct {
	Files []FileSpec `json:"files" yaml:"files" jsonschema:"description=Files to be generated for the project."`
}

// New builds a manifest from the given files.
func New(files ...FileSpec) Manifest {
	return Manifest{Files: files}
}

// Len returns the number of files.
func (m Manifest) Len() int { return len(m.Files) }

// Paths returns the file paths in manifest order.
func (m Manifest) Paths() []string {
	out := make([]string, 0, len(m.Files))
	for _, f := range m.Files {
		out = append(out, f.Path)
	}
	return out
}

// Lookup returns the file with the given path.
func (m Manifest) Lookup(p string) (FileSpec, bool) {
	for _, f := range m.Files {
		if f.Path == p {
			return f, true
		}
	}
	return FileSpec{}, false
}

// Normalize returns a copy with slash-separated, cleaned paths and dependencies.
// Empty paths stay empty so Validate can still report them.
func (m Manifest) Normalize() Manifest {
	out := Manifest{Files: make([]FileSpec, 0, len(m.Files))}
	for _, f := range m.Files {
		nf := FileSpec{
			Path:        cleanPath(f.Path),
			Description: f.Description,
		}
		if len(f.DependsOn) > 0 {
			nf.DependsOn = make([]string, 0, len(f.DependsOn))
			for _, d := range f.DependsOn {
				if c := cleanPath(d); c != "" {
					nf.DependsOn = append(nf.DependsOn, c)
				}
			}
		}
		out.Files = append(out.Files, nf)
	}
	return out
}

func cleanPath(p string) string {
	p = strings.TrimSpace(strings.ReplaceAll(p, `\`, "/"))
	if p == "" {
		return ""
	}
	return path.Clean(p)
}
