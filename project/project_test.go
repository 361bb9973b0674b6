package project

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSpec() *Spec {
	return &Spec{
		ProjectName:        "Task Tracker",
		ProjectDescription: "Tracks tasks",
		TechnologyStack:    TechnologyStack{Backend: []string{"Node.js"}, Database: []string{"SQLite"}},
		CoreFeatures:       []CoreFeature{{Name: "Tasks", Description: "CRUD tasks", Priority: PriorityHigh}},
		DataModels:         []DataModel{{Name: "Task", Fields: "id, title"}},
		Authentication:     AuthJWT,
		APIRequirements:    []string{"REST"},
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"Task Tracker", "task-tracker"},
		{"  My   App 2.0 ", "-my-app-20-"},
		{"Café Déjà Vu", "cafe-deja-vu"},
		{"snake_case & more!", "snakecase--more"},
		{"already-slugged", "already-slugged"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Slugify(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSlugifyEmpty(t *testing.T) {
	for _, name := range []string{"", "!!!", "日本語"} {
		_, err := Slugify(name)
		assert.ErrorIs(t, err, ErrEmptySlug, name)
	}
}

func TestValidate(t *testing.T) {
	require.NoError(t, validSpec().Validate())

	s := validSpec()
	s.ProjectName = " "
	s.Authentication = "saml"
	s.CoreFeatures[0].Priority = "Urgent"
	s.DataModels[0].ID = "not-a-uuid"

	err := s.Validate()
	require.ErrorIs(t, err, ErrInvalid)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	var fields []string
	for _, f := range verr.Fields {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"projectName", "authentication", "coreFeatures[0].priority", "dataModels[0].id"}, fields)
}

func TestAssignIDs(t *testing.T) {
	s := validSpec()
	s.AssignIDs()
	_, err := uuid.Parse(s.CoreFeatures[0].ID)
	assert.NoError(t, err)
	_, err = uuid.Parse(s.DataModels[0].ID)
	assert.NoError(t, err)
	assert.NoError(t, s.Validate())
}

func TestContextString(t *testing.T) {
	out, err := validSpec().ContextString()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, "Task Tracker", decoded["projectName"])
	assert.Nil(t, decoded["additionalRequirements"])
	assert.NotContains(t, out, "\n")
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{
		"projectName": "Demo",
		"projectDescription": "d",
		"technologyStack": {"frontend": [], "backend": ["Go"], "database": [], "other": []},
		"coreFeatures": [],
		"dataModels": [],
		"authentication": "none",
		"apiRequirements": [],
		"additionalRequirements": "keep it small"
	}`), 0o644))
	s, err := Load(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, "Demo", s.ProjectName)
	require.NotNil(t, s.AdditionalRequirements)
	assert.Equal(t, "keep it small", *s.AdditionalRequirements)

	yamlPath := filepath.Join(dir, "p.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
projectName: Demo
projectDescription: d
technologyStack:
  backend: [Go]
coreFeatures:
  - name: Login
    description: users sign in
    priority: Medium
authentication: basic
`), 0o644))
	s, err = Load(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, s.TechnologyStack.Backend)
	assert.Equal(t, PriorityMedium, s.CoreFeatures[0].Priority)

	badPath := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(badPath, []byte(`{"projectName":"x","unknown":1}`), 0o644))
	_, err = Load(badPath)
	assert.Error(t, err)
}

func TestSchemaLeavesOutIDs(t *testing.T) {
	b, err := Schema()
	require.NoError(t, err)
	s := string(b)
	assert.Contains(t, s, `"projectName"`)
	assert.Contains(t, s, `"jwt"`)
	assert.Contains(t, s, `"Medium"`)
	assert.NotContains(t, s, `"id"`)
}

func TestFillLists(t *testing.T) {
	var s Spec
	s.FillLists()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "null,")
	assert.Contains(t, string(b), `"coreFeatures":[]`)
}
