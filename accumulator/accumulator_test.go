package accumulator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderEmpty(t *testing.T) {
	assert.Equal(t, "", New().Render(10))
	assert.Equal(t, "", Render(nil, 10))
}

func TestRenderLabelsEntriesInOrder(t *testing.T) {
	c := New()
	require.NoError(t, c.Update("b.ts", "export const b = 1"))
	require.NoError(t, c.Update("a.ts", "export const a = 2"))

	want := "\n\n### FILE: b.ts\n```\nexport const b = 1\n```" +
		"\n\n### FILE: a.ts\n```\nexport const a = 2\n```"
	assert.Equal(t, want, c.Render(100))
	assert.Equal(t, []string{"b.ts", "a.ts"}, c.Paths())
}

func TestRenderTruncatesEachEntry(t *testing.T) {
	c := New()
	require.NoError(t, Update(c, "long.txt", strings.Repeat("x", 30)))
	require.NoError(t, Update(c, "short.txt", "abc"))

	out := Render(c, 10)
	assert.Contains(t, out, "```\n"+strings.Repeat("x", 10)+"\n```")
	assert.NotContains(t, out, strings.Repeat("x", 11))
	assert.Contains(t, out, "```\nabc\n```")

	full, ok := c.Get("long.txt")
	require.True(t, ok)
	assert.Len(t, full, 30, "truncation only applies to rendering")
}

func TestRenderDefaultLimit(t *testing.T) {
	c := New()
	require.NoError(t, c.Update("big", strings.Repeat("y", DefaultMaxChars+100)))
	out := c.Render(0)
	assert.Equal(t, DefaultMaxChars, strings.Count(out, "y"))
}

func TestTruncateCountsCharacters(t *testing.T) {
	assert.Equal(t, "héé", Truncate("héééllo", 3))
	assert.Equal(t, "日本", Truncate("日本語", 2))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "", Truncate("abc", 0))
}

func TestUpdateNeverRewrites(t *testing.T) {
	c := New()
	require.NoError(t, c.Update("a", "one"))
	err := c.Update("a", "two")
	assert.ErrorIs(t, err, ErrEntryExists)

	got, _ := c.Get("a")
	assert.Equal(t, "one", got)
	assert.Equal(t, 1, c.Len())
}
