// Package graph turns a flat manifest into a deterministic generation order.
package graph

import (
	"repogen/manifest"
)

// Unresolved is a dependency that names no file of the manifest. It is treated
// as already satisfied.
type Unresolved struct {
	From       string `json:"from"`
	Dependency string `json:"dependency"`
}

// Order is a dependency-respecting permutation of a manifest.
type Order struct {
	Files      []manifest.FileSpec
	Unresolved []Unresolved
}

// Paths returns the ordered file paths.
func (o Order) Paths() []string {
	out := make([]string, 0, len(o.Files))
	for _, f := range o.Files {
		out = append(out, f.Path)
	}
	return out
}

type mark uint8

const (
	unvisited mark = iota
	visiting
	done
)

// frame is one entry of the explicit DFS stack: a node and the index of the
// next dependency to look at.
type frame struct {
	node int
	next int
}

// Sort normalizes and validates m and returns its generation order. Paths in
// the result are in their cleaned, slash-separated form.
//
// Roots are visited in manifest order and dependencies in the order they are
// listed, so the result is stable for a fixed input. Runs in O(files + edges).
func Sort(m manifest.Manifest) (Order, error) {
	m = m.Normalize()
	if err := m.Validate(); err != nil {
		return Order{}, err
	}

	index := make(map[string]int, len(m.Files))
	for i, f := range m.Files {
		index[f.Path] = i
	}

	marks := make([]mark, len(m.Files))
	out := Order{Files: make([]manifest.FileSpec, 0, len(m.Files))}
	stack := make([]frame, 0, 8)

	for root := range m.Files {
		if marks[root] != unvisited {
			continue
		}
		marks[root] = visiting
		stack = append(stack[:0], frame{node: root})

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			f := m.Files[top.node]

			if top.next == len(f.DependsOn) {
				marks[top.node] = done
				out.Files = append(out.Files, f)
				stack = stack[:len(stack)-1]
				continue
			}

			dep := f.DependsOn[top.next]
			top.next++

			di, ok := index[dep]
			if !ok {
				out.Unresolved = append(out.Unresolved, Unresolved{From: f.Path, Dependency: dep})
				continue
			}
			switch marks[di] {
			case done:
			case visiting:
				return Order{}, &CycleError{Path: dep, Chain: chain(m, stack, di)}
			default:
				marks[di] = visiting
				stack = append(stack, frame{node: di})
			}
		}
	}
	return out, nil
}

// chain extracts the cycle from the active stack, starting and ending at node.
func chain(m manifest.Manifest, stack []frame, node int) []string {
	start := 0
	for i, fr := range stack {
		if fr.node == node {
			start = i
			break
		}
	}
	out := make([]string, 0, len(stack)-start+1)
	for _, fr := range stack[start:] {
		out = append(out, m.Files[fr.node].Path)
	}
	return append(out, m.Files[node].Path)
}
