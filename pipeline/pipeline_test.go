package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repogen/generator"
	"repogen/graph"
	"repogen/manifest"
	"repogen/sink"
)

// stubLLM returns "// <target>" and records every prompt it receives.
type stubLLM struct {
	mu      sync.Mutex
	prompts []generator.Prompt
	reply   func(target string) (string, error)
}

func (s *stubLLM) Complete(ctx context.Context, p generator.Prompt) (string, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, p)
	s.mu.Unlock()
	if s.reply != nil {
		return s.reply(p.Target)
	}
	return "// " + p.Target, nil
}

func (s *stubLLM) targets() []string {
	out := make([]string, 0, len(s.prompts))
	for _, p := range s.prompts {
		out = append(out, p.Target)
	}
	return out
}

// blockingLLM waits for its context to end.
type blockingLLM struct{}

func (blockingLLM) Complete(ctx context.Context, _ generator.Prompt) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

// failingSink fails WriteFile for one path.
type failingSink struct {
	sink.FS
	path string
}

func (f failingSink) WriteFile(rel, content string) error {
	if rel == f.path {
		return errors.New("disk full")
	}
	return f.FS.WriteFile(rel, content)
}

func abcManifest() manifest.Manifest {
	return manifest.New(
		manifest.FileSpec{Path: "c.ts", Description: "uses a and b", DependsOn: []string{"a.ts", "b.ts"}},
		manifest.FileSpec{Path: "a.ts", Description: "exports a"},
		manifest.FileSpec{Path: "b.ts", Description: "exports b", DependsOn: []string{"a.ts"}},
	)
}

func newPipeline(t *testing.T, llm generator.LLMClient, opts Options) *Pipeline {
	t.Helper()
	p, err := New(llm, opts)
	require.NoError(t, err)
	return p
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	d, err := sink.New(root)
	require.NoError(t, err)
	tree, err := d.Snapshot()
	require.NoError(t, err)
	return tree
}

func TestRunConcreteScenario(t *testing.T) {
	root := filepath.Join(t.TempDir(), "demo")
	llm := &stubLLM{}
	p := newPipeline(t, llm, Options{})

	res, err := p.Run(context.Background(), abcManifest(), `{"projectName":"demo"}`, root)
	require.NoError(t, err)

	assert.Equal(t, []string{"a.ts", "b.ts", "c.ts"}, res.Written)
	assert.Equal(t, []string{"a.ts", "b.ts", "c.ts"}, llm.targets())
	assert.Equal(t, map[string]string{"a.ts": "// a.ts", "b.ts": "// b.ts", "c.ts": "// c.ts"}, readTree(t, root))

	// c.ts sees both earlier files, in generation order.
	last := llm.prompts[2].User
	ia := strings.Index(last, "### FILE: a.ts\n```\n// a.ts\n```")
	ib := strings.Index(last, "### FILE: b.ts\n```\n// b.ts\n```")
	require.GreaterOrEqual(t, ia, 0)
	require.Greater(t, ib, ia)
	assert.Contains(t, last, `{"projectName":"demo"}`)
	assert.Contains(t, llm.prompts[0].User, "This is the first file.")
}

func TestRunContextForwarding(t *testing.T) {
	root := t.TempDir()
	llm := &stubLLM{}
	p := newPipeline(t, llm, Options{})
	m := manifest.New(
		manifest.FileSpec{Path: "one.go"},
		manifest.FileSpec{Path: "two.go"},
		manifest.FileSpec{Path: "three.go"},
	)
	_, err := p.Run(context.Background(), m, "", root)
	require.NoError(t, err)

	for i, prompt := range llm.prompts {
		for j, earlier := range []string{"one.go", "two.go", "three.go"} {
			label := "### FILE: " + earlier + "\n"
			if j < i {
				assert.Contains(t, prompt.User, label, "step %d should see %s", i, earlier)
			} else {
				assert.NotContains(t, prompt.User, label, "step %d should not see %s", i, earlier)
			}
		}
	}
}

func TestRunTruncatesContext(t *testing.T) {
	llm := &stubLLM{reply: func(target string) (string, error) {
		return strings.Repeat("x", 50), nil
	}}
	p := newPipeline(t, llm, Options{ContextChars: 10})
	m := manifest.New(manifest.FileSpec{Path: "a"}, manifest.FileSpec{Path: "b"})
	_, err := p.Run(context.Background(), m, "", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, llm.prompts[1].User, "```\n"+strings.Repeat("x", 10)+"\n```")
	assert.NotContains(t, llm.prompts[1].User, strings.Repeat("x", 11))
}

func TestRunIdempotent(t *testing.T) {
	root := t.TempDir()
	p := newPipeline(t, &stubLLM{}, Options{})

	require.NoError(t, os.WriteFile(filepath.Join(root, "stale.txt"), []byte("old"), 0o644))
	_, err := p.Run(context.Background(), abcManifest(), "", root)
	require.NoError(t, err)
	first := readTree(t, root)

	_, err = p.Run(context.Background(), abcManifest(), "", root)
	require.NoError(t, err)
	assert.Equal(t, first, readTree(t, root))
	assert.NotContains(t, first, "stale.txt")
}

func TestRunNestedPaths(t *testing.T) {
	root := t.TempDir()
	p := newPipeline(t, &stubLLM{}, Options{})
	m := manifest.New(
		manifest.FileSpec{Path: "src/routes/index.ts", DependsOn: []string{"src/models/user.ts"}},
		manifest.FileSpec{Path: "src/models/user.ts"},
	)
	res, err := p.Run(context.Background(), m, "", root)
	require.NoError(t, err)
	assert.Equal(t, []string{"src/models/user.ts", "src/routes/index.ts"}, res.Written)
	data, err := os.ReadFile(filepath.Join(root, "src", "routes", "index.ts"))
	require.NoError(t, err)
	assert.Equal(t, "// src/routes/index.ts", string(data))
}

func TestRunPartialFailure(t *testing.T) {
	root := t.TempDir()
	cause := errors.New("quota exceeded")
	llm := &stubLLM{reply: func(target string) (string, error) {
		if target == "b.ts" {
			return "", cause
		}
		return "// " + target, nil
	}}
	var events []Event
	p := newPipeline(t, llm, Options{Observer: ObserverFunc(func(e Event) { events = append(events, e) })})

	res, err := p.Run(context.Background(), abcManifest(), "", root)
	require.Error(t, err)

	var serr *StepError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "b.ts", serr.Path)
	assert.ErrorIs(t, err, ErrGeneration)
	assert.ErrorIs(t, err, cause)

	require.NotNil(t, res)
	assert.Equal(t, []string{"a.ts"}, res.Written)
	assert.Equal(t, "b.ts", res.Failed)
	assert.Equal(t, map[string]string{"a.ts": "// a.ts"}, readTree(t, root))
	assert.Equal(t, []string{"a.ts", "b.ts"}, llm.targets(), "no step after the failure")

	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	assert.Equal(t, []EventType{
		EventRunStarted,
		EventFileStarted, EventFileWritten,
		EventFileStarted, EventFileFailed,
		EventRunFinished,
	}, types)
	assert.NotEmpty(t, events[len(events)-1].Error)
}

func TestRunRemovePartial(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	llm := &stubLLM{reply: func(target string) (string, error) {
		if target == "c.ts" {
			return "", errors.New("boom")
		}
		return "ok", nil
	}}
	p := newPipeline(t, llm, Options{FailurePolicy: RemovePartial})

	res, err := p.Run(context.Background(), abcManifest(), "", root)
	require.ErrorIs(t, err, ErrGeneration)
	assert.True(t, res.RolledBack)
	assert.Equal(t, []string{"a.ts", "b.ts"}, res.Written)
	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunFilesystemFailure(t *testing.T) {
	root := t.TempDir()
	p := newPipeline(t, &stubLLM{}, Options{
		OpenSink: func(r string) (sink.FS, error) {
			d, err := sink.New(r)
			if err != nil {
				return nil, err
			}
			return failingSink{FS: d, path: "b.ts"}, nil
		},
	})

	res, err := p.Run(context.Background(), abcManifest(), "", root)
	require.ErrorIs(t, err, ErrFilesystem)
	assert.Equal(t, "b.ts", res.Failed)
	assert.Equal(t, []string{"a.ts"}, res.Written)
}

func TestRunStepTimeout(t *testing.T) {
	p := newPipeline(t, blockingLLM{}, Options{StepTimeout: 20 * time.Millisecond})
	res, err := p.Run(context.Background(), abcManifest(), "", t.TempDir())
	require.ErrorIs(t, err, ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "a.ts", res.Failed)
	assert.Empty(t, res.Written)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	llm := &stubLLM{reply: func(target string) (string, error) {
		if target == "a.ts" {
			cancel()
		}
		return "// " + target, nil
	}}
	p := newPipeline(t, llm, Options{})

	res, err := p.Run(ctx, abcManifest(), "", t.TempDir())
	require.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, []string{"a.ts"}, res.Written)
	assert.Equal(t, "b.ts", res.Failed)
}

func TestRunCycleWritesNothing(t *testing.T) {
	root := filepath.Join(t.TempDir(), "never")
	llm := &stubLLM{}
	p := newPipeline(t, llm, Options{})
	m := manifest.New(
		manifest.FileSpec{Path: "x", DependsOn: []string{"y"}},
		manifest.FileSpec{Path: "y", DependsOn: []string{"x"}},
	)

	res, err := p.Run(context.Background(), m, "", root)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, graph.ErrCycle)
	assert.Empty(t, llm.prompts)
	_, statErr := os.Stat(root)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunInvalidManifest(t *testing.T) {
	p := newPipeline(t, &stubLLM{}, Options{})
	_, err := p.Run(context.Background(), manifest.New(manifest.FileSpec{Path: "../x"}), "", t.TempDir())
	assert.ErrorIs(t, err, manifest.ErrInvalidPath)
}

func TestRunRejectsAliasedPaths(t *testing.T) {
	root := filepath.Join(t.TempDir(), "out")
	llm := &stubLLM{}
	p := newPipeline(t, llm, Options{})
	m := manifest.New(
		manifest.FileSpec{Path: "a.ts"},
		manifest.FileSpec{Path: "./a.ts"},
	)

	res, err := p.Run(context.Background(), m, "", root)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, manifest.ErrDuplicatePath)
	assert.Empty(t, llm.prompts)
	assert.NoDirExists(t, root)
}

func TestRunUnresolvedAndEmpty(t *testing.T) {
	llm := &stubLLM{reply: func(target string) (string, error) {
		if target == "empty.txt" {
			return "  \n", nil
		}
		return "x", nil
	}}
	p := newPipeline(t, llm, Options{})
	m := manifest.New(
		manifest.FileSpec{Path: "main.go", DependsOn: []string{"missing.go"}},
		manifest.FileSpec{Path: "empty.txt"},
	)
	res, err := p.Run(context.Background(), m, "", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, []string{"main.go", "empty.txt"}, res.Written)
	assert.Equal(t, []graph.Unresolved{{From: "main.go", Dependency: "missing.go"}}, res.Unresolved)
	assert.Equal(t, []string{"empty.txt"}, res.Empty)
}

func TestRunUnwrapFences(t *testing.T) {
	root := t.TempDir()
	llm := &stubLLM{reply: func(string) (string, error) { return "```go\npackage main\n```", nil }}
	p := newPipeline(t, llm, Options{UnwrapFences: true})
	_, err := p.Run(context.Background(), manifest.New(manifest.FileSpec{Path: "main.go"}), "", root)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"main.go": "package main"}, readTree(t, root))
}

func TestRunReportsChanges(t *testing.T) {
	root := t.TempDir()
	version := "v1"
	llm := &stubLLM{reply: func(target string) (string, error) {
		if target == "b.ts" {
			return "line1\nline2-" + version + "\nline3", nil
		}
		return "same", nil
	}}
	p := newPipeline(t, llm, Options{ReportChanges: true})

	res, err := p.Run(context.Background(), abcManifest(), "", root)
	require.NoError(t, err)
	for _, c := range res.Changes {
		assert.Equal(t, ChangeAdded, c.Kind, c.Path)
	}

	require.NoError(t, os.WriteFile(filepath.Join(root, "extra.md"), []byte("notes"), 0o644))
	version = "v2"
	res, err = p.Run(context.Background(), abcManifest(), "", root)
	require.NoError(t, err)
	assert.Equal(t, []Change{
		{Path: "a.ts", Kind: ChangeUnchanged},
		{Path: "b.ts", Kind: ChangeModified, Insertions: 1, Deletions: 1},
		{Path: "c.ts", Kind: ChangeUnchanged},
		{Path: "extra.md", Kind: ChangeRemoved},
	}, res.Changes)
}

func TestNewRequiresLLM(t *testing.T) {
	_, err := New(nil, Options{})
	assert.Error(t, err)
}

func TestParseFailurePolicy(t *testing.T) {
	for in, want := range map[string]FailurePolicy{"": KeepPartial, "keep": KeepPartial, "remove": RemovePartial} {
		got, err := ParseFailurePolicy(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseFailurePolicy("rollback")
	assert.Error(t, err)
}
