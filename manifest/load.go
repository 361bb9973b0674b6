package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"
)

// Format identifies a manifest encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatHCL  Format = "hcl"
)

// FormatFromPath picks the encoding from a file extension; unknown extensions are read as JSON.
func FormatFromPath(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".hcl":
		return FormatHCL
	default:
		return FormatJSON
	}
}

// Load reads and decodes a manifest file. The result is normalized but not validated.
func Load(p string) (Manifest, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return Manifest{}, err
	}
	m, err := parse(data, FormatFromPath(p), p)
	if err != nil {
		return Manifest{}, fmt.Errorf("load manifest %s: %w", p, err)
	}
	return m, nil
}

// Parse decodes a manifest from raw bytes.
func Parse(data []byte, format Format) (Manifest, error) {
	return parse(data, format, "manifest."+string(format))
}

func parse(data []byte, format Format, filename string) (Manifest, error) {
	var m Manifest
	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &m); err != nil {
			return Manifest{}, err
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return Manifest{}, err
		}
	case FormatHCL:
		hm, err := parseHCL(data, filename)
		if err != nil {
			return Manifest{}, err
		}
		m = hm
	default:
		return Manifest{}, fmt.Errorf("unsupported manifest format %q", format)
	}
	return m.Normalize(), nil
}

// hclManifest is the decode target of:
//
//	file "src/app.ts" {
//	  description = "entry point"
//	  depends_on  = ["src/config.ts"]
//	}
type hclManifest struct {
	Files []hclFile `hcl:"file,block"`
}

type hclFile struct {
	Path        string   `hcl:"path,label"`
	Description string   `hcl:"description,optional"`
	DependsOn   []string `hcl:"depends_on,optional"`
}

func parseHCL(data []byte, filename string) (Manifest, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return Manifest{}, fmt.Errorf("failed to parse HCL: %w", diags)
	}
	var raw hclManifest
	if diags := gohcl.DecodeBody(file.Body, nil, &raw); diags.HasErrors() {
		return Manifest{}, fmt.Errorf("failed to decode HCL: %w", diags)
	}
	m := Manifest{Files: make([]FileSpec, 0, len(raw.Files))}
	for _, f := range raw.Files {
		m.Files = append(m.Files, FileSpec{Path: f.Path, Description: f.Description, DependsOn: f.DependsOn})
	}
	return m, nil
}
