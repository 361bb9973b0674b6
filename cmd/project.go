package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"repogen/planner"
	"repogen/project"
)

func newDraftCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "draft <brief|->",
		Short: "Draft a project spec from a free-form description",
		Long: `draft reads business information or a short project description from a
file, or from stdin when the argument is "-", and asks the model to turn it
into a project spec that generate and plan accept.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			brief, err := readBrief(cmd, args[0])
			if err != nil {
				return err
			}
			llm, err := buildLLM(cmd.Context(), c.cfg.LLM, c.cfg.StepTimeout.Std())
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			spec, err := planner.Draft(cmd.Context(), llm, brief)
			if err != nil {
				return err
			}
			return writeSpec(cmd, spec, out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the spec to this file (.json, .yaml or .yml) instead of stdout")
	return cmd
}

func newImproveCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "improve <project>",
		Short: "Ask the model to refine an existing project spec",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := project.Load(args[0])
			if err != nil {
				return err
			}
			llm, err := buildLLM(cmd.Context(), c.cfg.LLM, c.cfg.StepTimeout.Std())
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			improved, err := planner.Improve(cmd.Context(), llm, spec)
			if err != nil {
				return err
			}
			return writeSpec(cmd, improved, out)
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the spec to this file (.json, .yaml or .yml) instead of stdout")
	return cmd
}

func readBrief(cmd *cobra.Command, arg string) (string, error) {
	var data []byte
	var err error
	if arg == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(arg)
	}
	if err != nil {
		return "", fmt.Errorf("read brief: %w", err)
	}
	return string(data), nil
}

// writeSpec prints spec as indented JSON, or writes it to out in the format
// its extension names.
func writeSpec(cmd *cobra.Command, spec project.Spec, out string) error {
	var b []byte
	var err error
	switch strings.ToLower(filepath.Ext(out)) {
	case ".yaml", ".yml":
		b, err = yaml.Marshal(spec)
	default:
		b, err = json.MarshalIndent(spec, "", "  ")
		b = append(b, '\n')
	}
	if err != nil {
		return fmt.Errorf("encode project: %w", err)
	}
	if out == "" {
		printf(cmd, "%s", b)
		return nil
	}
	if err := os.WriteFile(out, b, 0o644); err != nil {
		return fmt.Errorf("write project: %w", err)
	}
	zerolog.Ctx(cmd.Context()).Info().Str("path", out).Str("project", spec.ProjectName).Msg("project spec written")
	return nil
}
