package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"repogen/graph"
	"repogen/manifest"
	"repogen/planner"
	"repogen/project"
)

func newOrderCmd(c *cli) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "order <manifest>",
		Short: "Print the generation order of a manifest (.json, .yaml or .hcl)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(args[0])
			if err != nil {
				return err
			}
			if len(c.cfg.Exclude) > 0 {
				m, _ = manifest.Exclude(m, c.cfg.Exclude)
			}
			order, err := graph.Sort(m)
			if err != nil {
				return err
			}
			log := zerolog.Ctx(cmd.Context())
			for _, u := range order.Unresolved {
				log.Warn().Str("path", u.From).Str("dependency", u.Dependency).Msg("dependency not found in manifest")
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(order.Files)
			}
			for _, p := range order.Paths() {
				printf(cmd, "%s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the ordered file entries as JSON")
	return cmd
}

func newSchemaCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of a manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := manifest.Schema()
			if err != nil {
				return err
			}
			printf(cmd, "%s\n", b)
			return nil
		},
	}
}

func newPlanCmd(c *cli) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "plan <project>",
		Short: "Ask the model for a dependency-annotated manifest of a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := project.Load(args[0])
			if err != nil {
				return err
			}
			projectContext, err := spec.ContextString()
			if err != nil {
				return err
			}
			llm, err := buildLLM(cmd.Context(), c.cfg.LLM, c.cfg.StepTimeout.Std())
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			m, err := planner.Plan(cmd.Context(), llm, projectContext)
			if err != nil {
				return err
			}
			if len(c.cfg.Exclude) > 0 {
				m, _ = manifest.Exclude(m, c.cfg.Exclude)
			}
			b, err := json.MarshalIndent(m, "", "  ")
			if err != nil {
				return err
			}
			if out == "" {
				printf(cmd, "%s\n", b)
				return nil
			}
			if err := os.WriteFile(out, append(b, '\n'), 0o644); err != nil {
				return fmt.Errorf("write manifest: %w", err)
			}
			zerolog.Ctx(cmd.Context()).Info().Str("path", out).Int("files", m.Len()).Msg("manifest written")
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "output", "o", "", "write the manifest to this file instead of stdout")
	return cmd
}
