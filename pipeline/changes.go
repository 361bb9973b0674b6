package pipeline

import (
	"sort"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// ChangeKind classifies a file against the tree that existed before the reset.
type ChangeKind string

const (
	ChangeAdded     ChangeKind = "added"
	ChangeModified  ChangeKind = "modified"
	ChangeUnchanged ChangeKind = "unchanged"
	ChangeRemoved   ChangeKind = "removed"
)

// Change summarizes how one file differs from the previous output.
type Change struct {
	Path       string     `json:"path"`
	Kind       ChangeKind `json:"kind"`
	Insertions int        `json:"insertions,omitempty"`
	Deletions  int        `json:"deletions,omitempty"`
}

// changeTracker compares written files with a snapshot of the previous tree.
// A nil tracker records nothing.
type changeTracker struct {
	previous map[string]string
	seen     map[string]struct{}
	changes  []Change
	dmp      *diffmatchpatch.DiffMatchPatch
}

func newChangeTracker(previous map[string]string) *changeTracker {
	return &changeTracker{
		previous: previous,
		seen:     make(map[string]struct{}),
		dmp:      diffmatchpatch.New(),
	}
}

func (t *changeTracker) record(path, content string) {
	if t == nil {
		return
	}
	t.seen[path] = struct{}{}
	old, existed := t.previous[path]
	switch {
	case !existed:
		t.changes = append(t.changes, Change{Path: path, Kind: ChangeAdded, Insertions: countLines(content)})
	case old == content:
		t.changes = append(t.changes, Change{Path: path, Kind: ChangeUnchanged})
	default:
		ins, del := t.lineDiff(old, content)
		t.changes = append(t.changes, Change{Path: path, Kind: ChangeModified, Insertions: ins, Deletions: del})
	}
}

// lineDiff counts inserted and deleted lines.
func (t *changeTracker) lineDiff(old, cur string) (int, int) {
	a, b, lines := t.dmp.DiffLinesToChars(old, cur)
	diffs := t.dmp.DiffMain(a, b, false)
	diffs = t.dmp.DiffCharsToLines(diffs, lines)

	var ins, del int
	for _, d := range diffs {
		n := countLines(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			ins += n
		case diffmatchpatch.DiffDelete:
			del += n
		}
	}
	return ins, del
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		if r == '\n' {
			n++
		}
	}
	if s[len(s)-1] != '\n' {
		n++
	}
	return n
}

// finish appends files of the previous tree that were not regenerated, in path order.
func (t *changeTracker) finish() []Change {
	if t == nil {
		return nil
	}
	var removed []string
	for p := range t.previous {
		if _, ok := t.seen[p]; !ok {
			removed = append(removed, p)
		}
	}
	sort.Strings(removed)
	for _, p := range removed {
		t.changes = append(t.changes, Change{Path: p, Kind: ChangeRemoved})
	}
	return t.changes
}
