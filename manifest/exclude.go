package manifest

import (
	ignore "github.com/sabhiram/go-gitignore"
)

// Exclude drops files matching any of the gitignore-style patterns. Dependencies
// on dropped files are left in place; the sorter reports them as unresolved.
func Exclude(m Manifest, patterns []string) (Manifest, []string) {
	if len(patterns) == 0 {
		return m, nil
	}
	matcher := ignore.CompileIgnoreLines(patterns...)

	kept := Manifest{Files: make([]FileSpec, 0, len(m.Files))}
	var dropped []string
	for _, f := range m.Files {
		if matcher.MatchesPath(f.Path) {
			dropped = append(dropped, f.Path)
			continue
		}
		kept.Files = append(kept.Files, f)
	}
	return kept, dropped
}
