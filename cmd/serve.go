package cmd

import (
	"github.com/spf13/cobra"

	"repogen/mcpserver"
	"repogen/server"
)

// Version is reported by the MCP server.
var Version = "dev"

func newServeCmd(c *cli) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the generation API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			llm, err := buildLLM(cmd.Context(), c.cfg.LLM, c.cfg.StepTimeout.Std())
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			opts, err := c.pipelineOptions(nil)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			srv, err := server.New(llm, opts, server.Options{
				OutputDir: c.cfg.OutputDir,
				Exclude:   c.cfg.Exclude,
				Logger:    c.logger,
			})
			if err != nil {
				return err
			}
			listen := c.cfg.ServerAddr
			if addr != "" {
				listen = addr
			}
			if listen == "" {
				listen = ":8080"
			}
			return srv.ListenAndServe(cmd.Context(), listen)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config server_addr)")
	return cmd
}

func newMCPCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve order_manifest and generate_project as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			llm, err := buildLLM(cmd.Context(), c.cfg.LLM, c.cfg.StepTimeout.Std())
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			opts, err := c.pipelineOptions(nil)
			if err != nil {
				return &ExitError{Code: 2, Message: err.Error()}
			}
			s, err := mcpserver.New(llm, mcpserver.Options{
				Version:   Version,
				OutputDir: c.cfg.OutputDir,
				Exclude:   c.cfg.Exclude,
				Pipeline:  opts,
				Logger:    c.logger,
			})
			if err != nil {
				return err
			}
			return mcpserver.ServeStdio(s)
		},
	}
}
