// Package project holds the requirements record a generated repository is built from.
package project

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	ErrEmptySlug = errors.New("project name is invalid or results in an empty slug")
	ErrInvalid   = errors.New("invalid project spec")
)

type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

type Authentication string

const (
	AuthNone  Authentication = "none"
	AuthBasic Authentication = "basic"
	AuthOAuth Authentication = "oauth"
	AuthJWT   Authentication = "jwt"
)

type TechnologyStack struct {
	Frontend []string `json:"frontend" yaml:"frontend"`
	Backend  []string `json:"backend" yaml:"backend"`
	Database []string `json:"database" yaml:"database"`
	Other    []string `json:"other" yaml:"other"`
}

type CoreFeature struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty" jsonschema:"-"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Priority    Priority `json:"priority" yaml:"priority" jsonschema:"enum=High,enum=Medium,enum=Low"`
}

type DataModel struct {
	ID            string `json:"id,omitempty" yaml:"id,omitempty" jsonschema:"-"`
	Name          string `json:"name" yaml:"name"`
	Fields        string `json:"fields" yaml:"fields" jsonschema:"description=Fields of the model with their types."`
	Relationships string `json:"relationships" yaml:"relationships" jsonschema:"description=Relationships to other data models."`
}

// Spec describes the project to generate. Its JSON form is the "overall
// project context" handed to every generation step.
type Spec struct {
	ProjectName            string          `json:"projectName" yaml:"projectName" jsonschema:"description=Short name of the project."`
	ProjectDescription     string          `json:"projectDescription" yaml:"projectDescription" jsonschema:"description=What the project does and for whom."`
	TechnologyStack        TechnologyStack `json:"technologyStack" yaml:"technologyStack"`
	CoreFeatures           []CoreFeature   `json:"coreFeatures" yaml:"coreFeatures"`
	DataModels             []DataModel     `json:"dataModels" yaml:"dataModels"`
	Authentication         Authentication  `json:"authentication" yaml:"authentication" jsonschema:"enum=none,enum=basic,enum=oauth,enum=jwt"`
	APIRequirements        []string        `json:"apiRequirements" yaml:"apiRequirements" jsonschema:"description=Endpoints or integrations the project must expose or consume."`
	AdditionalRequirements *string         `json:"additionalRequirements" yaml:"additionalRequirements"`
}

// FieldError reports one invalid field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every invalid field of a Spec.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return fmt.Sprintf("%s: %s", ErrInvalid, strings.Join(parts, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrInvalid }

// Validate checks required fields and enumerations. Missing IDs are allowed;
// present ones must be UUIDs.
func (s *Spec) Validate() error {
	var errs []FieldError
	add := func(field, msg string) { errs = append(errs, FieldError{Field: field, Message: msg}) }

	if strings.TrimSpace(s.ProjectName) == "" {
		add("projectName", "Project name cannot be empty")
	}
	if strings.TrimSpace(s.ProjectDescription) == "" {
		add("projectDescription", "Project description cannot be empty")
	}
	switch s.Authentication {
	case AuthNone, AuthBasic, AuthOAuth, AuthJWT:
	case "":
		add("authentication", "required")
	default:
		add("authentication", fmt.Sprintf("unknown value %q", s.Authentication))
	}
	for i, f := range s.CoreFeatures {
		field := fmt.Sprintf("coreFeatures[%d]", i)
		if strings.TrimSpace(f.Name) == "" {
			add(field+".name", "Name cannot be empty")
		}
		if strings.TrimSpace(f.Description) == "" {
			add(field+".description", "Description cannot be empty")
		}
		switch f.Priority {
		case PriorityHigh, PriorityMedium, PriorityLow:
		default:
			add(field+".priority", fmt.Sprintf("unknown value %q", f.Priority))
		}
		if f.ID != "" {
			if _, err := uuid.Parse(f.ID); err != nil {
				add(field+".id", "must be a UUID")
			}
		}
	}
	for i, m := range s.DataModels {
		field := fmt.Sprintf("dataModels[%d]", i)
		if strings.TrimSpace(m.Name) == "" {
			add(field+".name", "Name cannot be empty")
		}
		if m.ID != "" {
			if _, err := uuid.Parse(m.ID); err != nil {
				add(field+".id", "must be a UUID")
			}
		}
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// AssignIDs gives every feature and data model without an ID a random UUID.
func (s *Spec) AssignIDs() {
	for i := range s.CoreFeatures {
		if s.CoreFeatures[i].ID == "" {
			s.CoreFeatures[i].ID = uuid.NewString()
		}
	}
	for i := range s.DataModels {
		if s.DataModels[i].ID == "" {
			s.DataModels[i].ID = uuid.NewString()
		}
	}
}

// FillLists replaces nil lists with empty ones so s encodes with [] rather
// than null.
func (s *Spec) FillLists() {
	fill := func(l *[]string) {
		if *l == nil {
			*l = []string{}
		}
	}
	fill(&s.TechnologyStack.Frontend)
	fill(&s.TechnologyStack.Backend)
	fill(&s.TechnologyStack.Database)
	fill(&s.TechnologyStack.Other)
	fill(&s.APIRequirements)
	if s.CoreFeatures == nil {
		s.CoreFeatures = []CoreFeature{}
	}
	if s.DataModels == nil {
		s.DataModels = []DataModel{}
	}
}

// ContextString is the compact JSON encoding of s.
func (s *Spec) ContextString() (string, error) {
	b, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode project context: %w", err)
	}
	return string(b), nil
}

var (
	whitespace = regexp.MustCompile(`\s+`)
	notSlug    = regexp.MustCompile(`[^a-z0-9-]`)
)

// Slug derives a directory name from the project name: accents are folded,
// letters lowercased, whitespace runs become "-" and anything outside
// [a-z0-9-] is dropped.
func (s *Spec) Slug() (string, error) {
	return Slugify(s.ProjectName)
}

func Slugify(name string) (string, error) {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), name)
	if err != nil {
		return "", fmt.Errorf("normalize project name: %w", err)
	}
	slug := strings.ToLower(folded)
	slug = whitespace.ReplaceAllString(slug, "-")
	slug = notSlug.ReplaceAllString(slug, "")
	if slug == "" {
		return "", ErrEmptySlug
	}
	return slug, nil
}
