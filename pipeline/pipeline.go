// Package pipeline generates a project tree one file at a time, in dependency
// order, feeding every written file back into the prompts of later files.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/rs/zerolog"

	"repogen/accumulator"
	"repogen/generator"
	"repogen/graph"
	"repogen/manifest"
	"repogen/sink"
)

// FailurePolicy decides what happens to already written files when a step fails.
type FailurePolicy int

const (
	// KeepPartial leaves the files written before the failure in place.
	KeepPartial FailurePolicy = iota
	// RemovePartial deletes the output root after a failure.
	RemovePartial
)

// ParseFailurePolicy maps "keep" and "remove" to a policy. "" is KeepPartial.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch s {
	case "", "keep":
		return KeepPartial, nil
	case "remove":
		return RemovePartial, nil
	}
	return KeepPartial, fmt.Errorf("unknown failure policy %q (want keep or remove)", s)
}

func (p FailurePolicy) String() string {
	if p == RemovePartial {
		return "remove"
	}
	return "keep"
}

type Options struct {
	// ContextChars caps each file excerpt in the rendered context.
	// Zero means accumulator.DefaultMaxChars.
	ContextChars int
	// StepTimeout bounds each generation call. Zero disables the limit.
	StepTimeout   time.Duration
	FailurePolicy FailurePolicy
	UnwrapFences  bool
	ReportChanges bool
	Observer      Observer
	// OpenSink opens the output root. Defaults to a directory on disk.
	OpenSink func(root string) (sink.FS, error)
}

// Result describes what a run produced. On failure it holds the partial state.
type Result struct {
	OutputRoot string             `json:"outputRoot"`
	Written    []string           `json:"files"`
	Failed     string             `json:"failed,omitempty"`
	Unresolved []graph.Unresolved `json:"unresolved,omitempty"`
	Empty      []string           `json:"empty,omitempty"`
	Changes    []Change           `json:"changes,omitempty"`
	RolledBack bool               `json:"rolledBack,omitempty"`
	Duration   time.Duration      `json:"duration"`
	total      int
}

// Pipeline is immutable after New and safe for concurrent runs on distinct roots.
type Pipeline struct {
	agent *generator.Agent
	opts  Options
}

func New(llm generator.LLMClient, opts Options) (*Pipeline, error) {
	agent, err := generator.NewAgent(llm, opts.UnwrapFences)
	if err != nil {
		return nil, err
	}
	if opts.ContextChars <= 0 {
		opts.ContextChars = accumulator.DefaultMaxChars
	}
	if opts.StepTimeout < 0 {
		return nil, errors.New("step timeout must not be negative")
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.OpenSink == nil {
		opts.OpenSink = func(root string) (sink.FS, error) { return sink.New(root) }
	}
	return &Pipeline{agent: agent, opts: opts}, nil
}

// Run generates every file of m under outputRoot. Manifest and cycle errors
// are returned with a nil Result before the filesystem is touched. Any
// existing content of outputRoot is removed first. A step failure stops the
// run and returns the partial Result together with a *StepError.
func (p *Pipeline) Run(ctx context.Context, m manifest.Manifest, projectContext, outputRoot string) (*Result, error) {
	start := time.Now()
	log := zerolog.Ctx(ctx).With().Str("root", outputRoot).Logger()

	order, err := graph.Sort(m)
	if err != nil {
		return nil, err
	}
	for _, u := range order.Unresolved {
		log.Warn().Str("path", u.From).Str("dependency", u.Dependency).
			Msg("dependency not found in manifest, continuing")
	}

	total := len(order.Files)
	res := &Result{OutputRoot: outputRoot, Written: []string{}, Unresolved: order.Unresolved, total: total}
	p.emit(Event{Type: EventRunStarted, Total: total})

	fsys, err := p.opts.OpenSink(outputRoot)
	if err != nil {
		return p.finish(res, start, filesystemError("", err))
	}
	res.OutputRoot = fsys.Root()

	changes, serr := p.prepare(ctx, fsys)
	if serr != nil {
		return p.finish(res, start, serr)
	}

	acc := accumulator.New()
	for i, f := range order.Files {
		if err := ctx.Err(); err != nil {
			return p.fail(ctx, fsys, res, start, i, total, generationError(ctx, f.Path, err))
		}
		p.emit(Event{Type: EventFileStarted, Path: f.Path, Index: i, Total: total})
		log.Info().Str("path", f.Path).Int("step", i+1).Int("total", total).Msg("generating file")

		content, serr := p.step(ctx, fsys, acc, f, projectContext)
		if serr != nil {
			return p.fail(ctx, fsys, res, start, i, total, serr)
		}
		if content == "" {
			log.Warn().Str("path", f.Path).Msg("generated content is empty")
			res.Empty = append(res.Empty, f.Path)
		}
		changes.record(f.Path, content)
		res.Written = append(res.Written, f.Path)
		p.emit(Event{Type: EventFileWritten, Path: f.Path, Index: i, Total: total, Bytes: len(content)})
	}

	res.Changes = changes.finish()
	log.Info().Int("files", len(res.Written)).Msg("project generated")
	return p.finish(res, start, nil)
}

// prepare resets the output root to an empty directory. It returns a change
// tracker seeded with the previous tree when change reporting is on.
func (p *Pipeline) prepare(ctx context.Context, fsys sink.FS) (*changeTracker, *StepError) {
	var changes *changeTracker
	exists, err := fsys.Exists(".")
	if err != nil {
		return nil, filesystemError("", err)
	}
	if exists {
		if p.opts.ReportChanges {
			previous, err := fsys.Snapshot()
			if err != nil {
				return nil, filesystemError("", fmt.Errorf("snapshot previous output: %w", err))
			}
			changes = newChangeTracker(previous)
		}
		zerolog.Ctx(ctx).Warn().Str("root", fsys.Root()).Msg("output root exists, removing previous content")
		if err := fsys.RemoveAll("."); err != nil {
			return nil, filesystemError("", fmt.Errorf("clear output root: %w", err))
		}
	} else if p.opts.ReportChanges {
		changes = newChangeTracker(nil)
	}
	if err := fsys.EnsureDir("."); err != nil {
		return nil, filesystemError("", fmt.Errorf("create output root: %w", err))
	}
	return changes, nil
}

// step generates, writes and reads back one file, then records it in acc.
func (p *Pipeline) step(ctx context.Context, fsys sink.FS, acc *accumulator.Context, f manifest.FileSpec, projectContext string) (string, *StepError) {
	req := generator.FileRequest{
		Path:            f.Path,
		Description:     f.Description,
		ProjectContext:  projectContext,
		RenderedContext: acc.Render(p.opts.ContextChars),
	}
	if err := fsys.EnsureDir(path.Dir(f.Path)); err != nil {
		return "", filesystemError(f.Path, err)
	}

	stepCtx, cancel := ctx, context.CancelFunc(func() {})
	if p.opts.StepTimeout > 0 {
		stepCtx, cancel = context.WithTimeout(ctx, p.opts.StepTimeout)
	}
	content, err := p.agent.GenerateFile(stepCtx, req)
	timedOut := errors.Is(stepCtx.Err(), context.DeadlineExceeded)
	cancel()
	if err != nil {
		if timedOut && ctx.Err() == nil && !errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
		}
		return "", generationError(ctx, f.Path, err)
	}

	if err := fsys.WriteFile(f.Path, content); err != nil {
		return "", filesystemError(f.Path, err)
	}
	written, err := fsys.ReadFile(f.Path)
	if err != nil {
		return "", filesystemError(f.Path, fmt.Errorf("read back: %w", err))
	}
	if err := acc.Update(f.Path, written); err != nil {
		return "", &StepError{Path: f.Path, Kind: ErrGeneration, Err: err}
	}
	return written, nil
}

func (p *Pipeline) fail(ctx context.Context, fsys sink.FS, res *Result, start time.Time, index, total int, serr *StepError) (*Result, error) {
	log := zerolog.Ctx(ctx)
	res.Failed = serr.Path
	log.Error().Err(serr.Err).Str("path", serr.Path).Str("kind", serr.Kind.Error()).
		Int("written", len(res.Written)).Msg("generation stopped")
	p.emit(Event{Type: EventFileFailed, Path: serr.Path, Index: index, Total: total, Error: serr.Error()})

	if p.opts.FailurePolicy == RemovePartial {
		if err := fsys.RemoveAll("."); err != nil {
			log.Error().Err(err).Str("root", fsys.Root()).Msg("failed to remove partial output")
		} else {
			res.RolledBack = true
		}
	}
	return p.finish(res, start, serr)
}

func (p *Pipeline) finish(res *Result, start time.Time, serr *StepError) (*Result, error) {
	res.Duration = time.Since(start)
	ev := Event{Type: EventRunFinished, Index: len(res.Written), Total: res.total}
	if serr != nil {
		ev.Error = serr.Error()
		p.emit(ev)
		return res, serr
	}
	p.emit(ev)
	return res, nil
}

func (p *Pipeline) emit(e Event) { p.opts.Observer.OnEvent(e) }
