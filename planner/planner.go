// Package planner asks a language model for the structured inputs of a run:
// the project specification and its dependency-annotated file structure.
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	"github.com/rs/zerolog"

	"repogen/generator"
	"repogen/manifest"
)

var ErrNoFiles = errors.New("planned structure contains no files")

const schemaName = "project_structure"

// Plan returns a validated manifest for the project described by
// projectContext. Backends with native structured output receive the manifest
// schema directly; others get it inlined in the prompt.
func Plan(ctx context.Context, llm generator.LLMClient, projectContext string) (manifest.Manifest, error) {
	if llm == nil {
		return manifest.Manifest{}, errors.New("llm client is required")
	}
	log := zerolog.Ctx(ctx)

	raw, err := complete(ctx, llm, schemaName, manifest.SchemaObject(), func(inlineSchema string) generator.Prompt {
		return generator.BuildPlanPrompt(projectContext, inlineSchema)
	})
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("plan project structure: %w", err)
	}

	m, err := Decode(raw)
	if err != nil {
		return manifest.Manifest{}, err
	}
	log.Info().Int("files", m.Len()).Msg("project structure planned")
	return m, nil
}

// Decode extracts a manifest from a model reply. The reply may be wrapped in a
// code fence or surrounded by prose, and may be a bare array of files.
func Decode(raw string) (manifest.Manifest, error) {
	body := extractJSON(generator.PostProcess(raw, true))
	if body == "" {
		return manifest.Manifest{}, fmt.Errorf("decode planned structure: no JSON found in reply")
	}

	var m manifest.Manifest
	if strings.HasPrefix(body, "[") {
		if err := json.Unmarshal([]byte(body), &m.Files); err != nil {
			return manifest.Manifest{}, fmt.Errorf("decode planned structure: %w", err)
		}
	} else if err := json.Unmarshal([]byte(body), &m); err != nil {
		return manifest.Manifest{}, fmt.Errorf("decode planned structure: %w", err)
	}

	m = m.Normalize()
	if m.Len() == 0 {
		return manifest.Manifest{}, ErrNoFiles
	}
	if err := m.Validate(); err != nil {
		return manifest.Manifest{}, err
	}
	return m, nil
}

// complete sends the prompt built by build to llm. Backends with native
// structured output receive schema directly and build gets an empty string;
// others get the encoded schema inlined.
func complete(ctx context.Context, llm generator.LLMClient, name string, schema *jsonschema.Schema, build func(inlineSchema string) generator.Prompt) (string, error) {
	if sc, ok := llm.(generator.SchemaCompleter); ok {
		zerolog.Ctx(ctx).Debug().Str("schema", name).Msg("requesting structured output")
		return sc.CompleteJSON(ctx, build(""), name, schema)
	}
	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode %s schema: %w", name, err)
	}
	return llm.Complete(ctx, build(string(b)))
}

// extractJSON returns the outermost JSON object or array of s.
func extractJSON(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	closer := "}"
	if s[start] == '[' {
		closer = "]"
	}
	end := strings.LastIndex(s, closer)
	if end < start {
		return ""
	}
	return s[start : end+1]
}
