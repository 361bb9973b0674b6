package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"repogen/generator"
	"repogen/project"
)

var ErrEmptyBrief = errors.New("business information is empty")

const specSchemaName = "project_spec"

// Draft asks the model for a project specification built from free-form
// business information or a short project description. The result is
// validated and its features and data models get fresh IDs.
func Draft(ctx context.Context, llm generator.LLMClient, businessInfo string) (project.Spec, error) {
	if llm == nil {
		return project.Spec{}, errors.New("llm client is required")
	}
	if strings.TrimSpace(businessInfo) == "" {
		return project.Spec{}, ErrEmptyBrief
	}

	raw, err := complete(ctx, llm, specSchemaName, project.SchemaObject(), func(inlineSchema string) generator.Prompt {
		return generator.BuildDraftPrompt(businessInfo, inlineSchema)
	})
	if err != nil {
		return project.Spec{}, fmt.Errorf("draft project: %w", err)
	}
	spec, err := DecodeSpec(raw)
	if err != nil {
		return project.Spec{}, err
	}
	zerolog.Ctx(ctx).Info().Str("project", spec.ProjectName).Int("features", len(spec.CoreFeatures)).Msg("project drafted")
	return spec, nil
}

// Improve asks the model to refine a valid specification. An invalid input is
// rejected before the model is called.
func Improve(ctx context.Context, llm generator.LLMClient, spec project.Spec) (project.Spec, error) {
	if llm == nil {
		return project.Spec{}, errors.New("llm client is required")
	}
	if err := spec.Validate(); err != nil {
		return project.Spec{}, err
	}
	spec.AssignIDs()
	current, err := json.MarshalIndent(spec, "", "  ")
	if err != nil {
		return project.Spec{}, fmt.Errorf("encode project: %w", err)
	}

	raw, err := complete(ctx, llm, specSchemaName, project.SchemaObject(), func(inlineSchema string) generator.Prompt {
		return generator.BuildImprovePrompt(string(current), inlineSchema)
	})
	if err != nil {
		return project.Spec{}, fmt.Errorf("improve project: %w", err)
	}
	improved, err := DecodeSpec(raw)
	if err != nil {
		return project.Spec{}, err
	}
	zerolog.Ctx(ctx).Info().Str("project", improved.ProjectName).Msg("project improved")
	return improved, nil
}

// DecodeSpec extracts a project specification from a model reply, fills
// missing lists, and validates it. IDs are always assigned locally; any the
// model returned are discarded.
func DecodeSpec(raw string) (project.Spec, error) {
	body := extractJSON(generator.PostProcess(raw, true))
	if !strings.HasPrefix(body, "{") {
		return project.Spec{}, fmt.Errorf("decode project: no JSON object found in reply")
	}
	var spec project.Spec
	if err := json.Unmarshal([]byte(body), &spec); err != nil {
		return project.Spec{}, fmt.Errorf("decode project: %w", err)
	}
	spec.FillLists()
	for i := range spec.CoreFeatures {
		spec.CoreFeatures[i].ID = ""
	}
	for i := range spec.DataModels {
		spec.DataModels[i].ID = ""
	}
	spec.AssignIDs()
	if err := spec.Validate(); err != nil {
		return project.Spec{}, err
	}
	return spec, nil
}
