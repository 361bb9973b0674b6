// Package mcpserver publishes manifest ordering, project drafting and project
// generation as MCP tools over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"repogen/generator"
	"repogen/graph"
	"repogen/manifest"
	"repogen/pipeline"
	"repogen/planner"
	"repogen/project"
)

const (
	ToolOrderManifest   = "order_manifest"
	ToolGenerateProject = "generate_project"
	ToolDraftProject    = "draft_project"
)

type Options struct {
	Name    string
	Version string
	// OutputDir holds one directory per project slug.
	OutputDir string
	Exclude   []string
	Pipeline  pipeline.Options
	Logger    zerolog.Logger
}

type tools struct {
	llm  generator.LLMClient
	opts Options
}

// New builds an MCP server exposing order_manifest, draft_project and
// generate_project.
func New(llm generator.LLMClient, opts Options) (*server.MCPServer, error) {
	if llm == nil {
		return nil, errors.New("llm client required")
	}
	if opts.OutputDir == "" {
		return nil, errors.New("output directory required")
	}
	if opts.Name == "" {
		opts.Name = "repogen"
	}
	t := &tools{llm: llm, opts: opts}

	s := server.NewMCPServer(
		opts.Name,
		opts.Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.AddTool(orderManifestTool(), t.orderManifest)
	s.AddTool(draftProjectTool(), t.draftProject)
	s.AddTool(generateProjectTool(), t.generateProject)
	return s, nil
}

// ServeStdio serves s on stdin/stdout until the input closes.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func orderManifestTool() mcp.Tool {
	return mcp.NewTool(ToolOrderManifest,
		mcp.WithDescription("Order the files of a manifest so every file comes after the files it depends on. Reports unresolved dependencies and fails on cycles."),
		mcp.WithString("manifest", mcp.Required(),
			mcp.Description(`Manifest text: {"files":[{"path","description","dependsOn"}]} as JSON or YAML, or HCL file blocks.`)),
		mcp.WithString("format", mcp.Enum(string(manifest.FormatJSON), string(manifest.FormatYAML), string(manifest.FormatHCL)),
			mcp.Description("Format of the manifest text. Defaults to json.")),
	)
}

func draftProjectTool() mcp.Tool {
	return mcp.NewTool(ToolDraftProject,
		mcp.WithDescription("Draft a project spec, usable as the project argument of generate_project, from free-form business information."),
		mcp.WithString("text", mcp.Required(),
			mcp.Description("Business information or a short project description.")),
	)
}

func generateProjectTool() mcp.Tool {
	return mcp.NewTool(ToolGenerateProject,
		mcp.WithDescription("Generate a project tree file by file in dependency order. Plans the files first when no manifest is given."),
		mcp.WithString("project", mcp.Required(),
			mcp.Description("Project spec as JSON: projectName, projectDescription, technologyStack, coreFeatures, dataModels, authentication, apiRequirements, additionalRequirements.")),
		mcp.WithString("manifest",
			mcp.Description("Optional manifest JSON. When omitted the file structure is planned by the model.")),
	)
}

type orderArgs struct {
	Manifest string `json:"manifest"`
	Format   string `json:"format"`
}

type orderResult struct {
	Order      []string           `json:"order"`
	Unresolved []graph.Unresolved `json:"unresolved,omitempty"`
}

func (t *tools) orderManifest(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args orderArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format := manifest.Format(args.Format)
	if format == "" {
		format = manifest.FormatJSON
	}
	m, err := manifest.Parse([]byte(args.Manifest), format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	order, err := graph.Sort(m)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(orderResult{Order: order.Paths(), Unresolved: order.Unresolved})
}

type draftArgs struct {
	Text string `json:"text"`
}

func (t *tools) draftProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = t.opts.Logger.WithContext(ctx)
	var args draftArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spec, err := planner.Draft(ctx, t.llm, args.Text)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(spec)
}

type generateArgs struct {
	Project  string `json:"project"`
	Manifest string `json:"manifest"`
}

type generateResult struct {
	Path    string            `json:"path"`
	Files   []string          `json:"files"`
	Failed  string            `json:"failed,omitempty"`
	Changes []pipeline.Change `json:"changes,omitempty"`
	Error   string            `json:"error,omitempty"`
}

func (t *tools) generateProject(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ctx = t.opts.Logger.WithContext(ctx)
	var args generateArgs
	if err := req.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	spec, err := project.ParseJSON([]byte(args.Project))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := spec.Slug()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	projectContext, err := spec.ContextString()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var m manifest.Manifest
	if args.Manifest != "" {
		m, err = manifest.Parse([]byte(args.Manifest), manifest.FormatJSON)
	} else {
		m, err = planner.Plan(ctx, t.llm, projectContext)
	}
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if len(t.opts.Exclude) > 0 {
		m, _ = manifest.Exclude(m, t.opts.Exclude)
	}

	p, err := pipeline.New(t.llm, t.opts.Pipeline)
	if err != nil {
		return nil, err
	}
	root := filepath.Join(t.opts.OutputDir, slug)
	res, err := p.Run(ctx, m, projectContext, root)
	if err != nil {
		if res == nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		out, jerr := json.Marshal(generateResult{Path: res.OutputRoot, Files: res.Written, Failed: res.Failed, Error: err.Error()})
		if jerr != nil {
			return nil, jerr
		}
		return mcp.NewToolResultError(string(out)), nil
	}
	return jsonResult(generateResult{Path: res.OutputRoot, Files: res.Written, Changes: res.Changes})
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(out)), nil
}
