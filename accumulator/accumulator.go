// Package accumulator keeps the content of already generated files so it can be
// fed forward into the prompts of later files.
package accumulator

import (
	"errors"
	"fmt"
	"strings"
)

// DefaultMaxChars bounds each rendered entry so prompt size stays bounded as a run grows.
const DefaultMaxChars = 2500

var ErrEntryExists = errors.New("context entry already written")

type entry struct {
	path    string
	content string
}

// Context is an append-only log of path -> generated content, in generation order.
// It belongs to a single run and is not safe for concurrent writers.
type Context struct {
	entries []entry
	index   map[string]int
}

// New returns an empty context.
func New() *Context {
	return &Context{index: make(map[string]int)}
}

// Update appends the content generated for path. An entry is never rewritten.
func (c *Context) Update(path, content string) error {
	if _, ok := c.index[path]; ok {
		return fmt.Errorf("%w: %s", ErrEntryExists, path)
	}
	c.index[path] = len(c.entries)
	c.entries = append(c.entries, entry{path: path, content: content})
	return nil
}

// Get returns the full content stored for path.
func (c *Context) Get(path string) (string, bool) {
	i, ok := c.index[path]
	if !ok {
		return "", false
	}
	return c.entries[i].content, true
}

// Len returns the number of entries.
func (c *Context) Len() int { return len(c.entries) }

// Paths returns the entry paths in insertion order.
func (c *Context) Paths() []string {
	out := make([]string, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.path)
	}
	return out
}

// Render concatenates a labeled excerpt of every entry, each cut to a prefix of
// at most maxCharsPerEntry characters. A non-positive limit means DefaultMaxChars.
// An empty context renders as "".
func (c *Context) Render(maxCharsPerEntry int) string {
	if maxCharsPerEntry <= 0 {
		maxCharsPerEntry = DefaultMaxChars
	}
	var sb strings.Builder
	for _, e := range c.entries {
		sb.WriteString("\n\n### FILE: ")
		sb.WriteString(e.path)
		sb.WriteString("\n```\n")
		sb.WriteString(Truncate(e.content, maxCharsPerEntry))
		sb.WriteString("\n```")
	}
	return sb.String()
}

// Truncate returns the first n characters (runes) of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Render is c.Render(maxCharsPerEntry); a nil context renders as "".
func Render(c *Context, maxCharsPerEntry int) string {
	if c == nil {
		return ""
	}
	return c.Render(maxCharsPerEntry)
}

// Update is c.Update(path, content).
func Update(c *Context, path, content string) error {
	return c.Update(path, content)
}
