package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"repogen/config"
	"repogen/generator"
	"repogen/manifest"
	"repogen/pipeline"
	"repogen/planner"
	"repogen/project"
)

type generateFlags struct {
	manifestPath string
	out          string
	timeout      time.Duration
	onFailure    string
	contextChars int
	watch        bool
}

func newGenerateCmd(c *cli) *cobra.Command {
	var f generateFlags
	cmd := &cobra.Command{
		Use:   "generate <project>",
		Short: "Generate a project into <output_dir>/<slug>",
		Long: `generate reads a project spec (.json or .yaml), plans its files unless
--manifest is given, and writes them one at a time in dependency order.
The output directory is replaced on every run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.applyGenerateFlags(cmd, &f); err != nil {
				return err
			}
			llm, err := buildLLM(cmd.Context(), c.cfg.LLM, c.cfg.StepTimeout.Std())
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			if !f.watch {
				return c.generate(cmd, llm, args[0], f)
			}
			return c.watch(cmd, llm, args[0], f)
		},
	}
	cmd.Flags().StringVarP(&f.manifestPath, "manifest", "m", "", "manifest file (.json, .yaml, .hcl); planned by the model when empty")
	cmd.Flags().StringVarP(&f.out, "out", "o", "", "output root (default <output_dir>/<slug>)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "per-file generation timeout (overrides step_timeout)")
	cmd.Flags().StringVar(&f.onFailure, "on-failure", "", "keep or remove partial output after a failure (overrides on_failure)")
	cmd.Flags().IntVar(&f.contextChars, "context-chars", 0, "characters of each earlier file shown in prompts (overrides context_chars)")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "regenerate whenever the project or manifest file changes")
	return cmd
}

func (c *cli) applyGenerateFlags(cmd *cobra.Command, f *generateFlags) error {
	if cmd.Flags().Changed("timeout") {
		if f.timeout < 0 {
			return &ExitError{Code: 2, Message: "--timeout must not be negative"}
		}
		c.cfg.StepTimeout = config.Duration(f.timeout)
	}
	if f.onFailure != "" {
		c.cfg.OnFailure = f.onFailure
	}
	if f.contextChars > 0 {
		c.cfg.ContextChars = f.contextChars
	}
	if err := c.cfg.Validate(); err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	return nil
}

func (c *cli) pipelineOptions(obs pipeline.Observer) (pipeline.Options, error) {
	policy, err := pipeline.ParseFailurePolicy(c.cfg.OnFailure)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		ContextChars:  c.cfg.ContextChars,
		StepTimeout:   c.cfg.StepTimeout.Std(),
		FailurePolicy: policy,
		UnwrapFences:  c.cfg.Unwrap(),
		ReportChanges: c.cfg.ChangeReport(),
		Observer:      obs,
	}, nil
}

// progress prints one line per finished file.
type progress struct {
	cmd *cobra.Command
}

func (p progress) OnEvent(e pipeline.Event) {
	switch e.Type {
	case pipeline.EventFileWritten:
		printf(p.cmd, "[%d/%d] %s\n", e.Index+1, e.Total, e.Path)
	case pipeline.EventFileFailed:
		printf(p.cmd, "[%d/%d] %s FAILED: %s\n", e.Index+1, e.Total, e.Path, e.Error)
	}
}

func (c *cli) generate(cmd *cobra.Command, llm generator.LLMClient, projectPath string, f generateFlags) error {
	ctx := cmd.Context()
	spec, err := project.Load(projectPath)
	if err != nil {
		return err
	}
	projectContext, err := spec.ContextString()
	if err != nil {
		return err
	}
	root := f.out
	if root == "" {
		slug, err := spec.Slug()
		if err != nil {
			return err
		}
		root = filepath.Join(c.cfg.OutputDir, slug)
	}

	m, err := c.loadOrPlan(ctx, llm, f.manifestPath, projectContext)
	if err != nil {
		return err
	}

	opts, err := c.pipelineOptions(progress{cmd: cmd})
	if err != nil {
		return &ExitError{Code: 2, Message: err.Error()}
	}
	p, err := pipeline.New(llm, opts)
	if err != nil {
		return err
	}
	res, err := p.Run(ctx, m, projectContext, root)
	if err != nil {
		var serr *pipeline.StepError
		if errors.As(err, &serr) && res != nil {
			return &ExitError{Code: 1, Message: fmt.Sprintf("%v (%d of %d files written to %s)", err, len(res.Written), m.Len(), res.OutputRoot)}
		}
		return err
	}

	printf(cmd, "Project '%s' generated successfully in %s (%d files)\n", spec.ProjectName, res.OutputRoot, len(res.Written))
	for _, ch := range res.Changes {
		if ch.Kind == pipeline.ChangeUnchanged {
			continue
		}
		printf(cmd, "  %-9s %s (+%d -%d)\n", ch.Kind, ch.Path, ch.Insertions, ch.Deletions)
	}
	return nil
}

func (c *cli) loadOrPlan(ctx context.Context, llm generator.LLMClient, manifestPath, projectContext string) (manifest.Manifest, error) {
	var m manifest.Manifest
	var err error
	if manifestPath != "" {
		m, err = manifest.Load(manifestPath)
	} else {
		m, err = planner.Plan(ctx, llm, projectContext)
	}
	if err != nil {
		return manifest.Manifest{}, err
	}
	if len(c.cfg.Exclude) > 0 {
		var dropped []string
		m, dropped = manifest.Exclude(m, c.cfg.Exclude)
		if len(dropped) > 0 {
			zerolog.Ctx(ctx).Info().Strs("paths", dropped).Msg("excluded files from manifest")
		}
	}
	return m, nil
}

const watchDebounce = 300 * time.Millisecond

// watch runs generate once, then again after every change to the project or
// manifest file, until the context ends. Failed runs are logged, not fatal.
func (c *cli) watch(cmd *cobra.Command, llm generator.LLMClient, projectPath string, f generateFlags) error {
	ctx := cmd.Context()
	log := zerolog.Ctx(ctx)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer watcher.Close()

	targets := map[string]bool{}
	for _, p := range []string{projectPath, f.manifestPath} {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		targets[abs] = true
		// Editors often replace files on save, so watch the directory.
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
	}

	runOnce := func() {
		if err := c.generate(cmd, llm, projectPath, f); err != nil {
			log.Error().Err(err).Msg("generation failed; waiting for changes")
		}
	}
	runOnce()

	var debounce <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, _ := filepath.Abs(ev.Name)
			if !targets[abs] || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("change detected")
			debounce = time.After(watchDebounce)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("watcher error")
		case <-debounce:
			debounce = nil
			log.Info().Msg("inputs changed, regenerating")
			runOnce()
		}
	}
}
