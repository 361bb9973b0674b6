package sink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAndReadBeneathRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	d, err := New(root)
	require.NoError(t, err)

	require.NoError(t, d.EnsureDir("src/lib"))
	require.NoError(t, d.WriteFile("src/lib/util.ts", "export {}"))

	got, err := d.ReadFile("src/lib/util.ts")
	require.NoError(t, err)
	assert.Equal(t, "export {}", got)

	raw, err := os.ReadFile(filepath.Join(root, "src", "lib", "util.ts"))
	require.NoError(t, err)
	assert.Equal(t, "export {}", string(raw))
}

func TestRejectsPathsOutsideRoot(t *testing.T) {
	d, err := New(t.TempDir())
	require.NoError(t, err)

	for _, rel := range []string{"../escape.txt", "/etc/passwd", "a/../../b"} {
		assert.ErrorIs(t, d.WriteFile(rel, "x"), ErrOutsideRoot, rel)
		assert.ErrorIs(t, d.EnsureDir(rel), ErrOutsideRoot, rel)
		assert.ErrorIs(t, d.RemoveAll(rel), ErrOutsideRoot, rel)
		_, err := d.ReadFile(rel)
		assert.ErrorIs(t, err, ErrOutsideRoot, rel)
	}
	assert.ErrorIs(t, d.WriteFile(".", "x"), ErrOutsideRoot)
}

func TestRemoveAllRootAndRecreate(t *testing.T) {
	root := filepath.Join(t.TempDir(), "proj")
	d, err := New(root)
	require.NoError(t, err)

	exists, err := d.Exists(".")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, d.EnsureDir("."))
	require.NoError(t, d.WriteFile("stale.txt", "old"))

	require.NoError(t, d.RemoveAll("."))
	exists, err = d.Exists(".")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, d.EnsureDir("."))
	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSnapshot(t *testing.T) {
	d, err := New(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)

	snap, err := d.Snapshot()
	require.NoError(t, err)
	assert.Empty(t, snap)

	require.NoError(t, d.EnsureDir("a/b"))
	require.NoError(t, d.WriteFile("a/b/c.txt", "c"))
	require.NoError(t, d.WriteFile("top.txt", "t"))

	snap, err = d.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a/b/c.txt": "c", "top.txt": "t"}, snap)
}

func TestNewRequiresRoot(t *testing.T) {
	_, err := New("  ")
	assert.Error(t, err)
	_, err = New("/")
	assert.Error(t, err)
}
