package project

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a project spec from a .json, .yaml or .yml file and validates it.
func Load(p string) (*Spec, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", p, err)
	}
	var s *Spec
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		s, err = ParseYAML(data)
	default:
		s, err = ParseJSON(data)
	}
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", p, err)
	}
	return s, nil
}

// ParseJSON decodes and validates a JSON project spec. Unknown fields are rejected.
func ParseJSON(data []byte) (*Spec, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var s Spec
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

func ParseYAML(data []byte) (*Spec, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var s Spec
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}
