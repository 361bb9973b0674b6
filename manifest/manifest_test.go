package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		files   []FileSpec
		wantErr error
	}{
		{name: "empty manifest", files: nil},
		{name: "unique paths", files: []FileSpec{{Path: "a.ts"}, {Path: "src/b.ts"}}},
		{name: "empty path", files: []FileSpec{{Path: "a.ts"}, {Path: "  "}}, wantErr: ErrEmptyPath},
		{name: "duplicate path", files: []FileSpec{{Path: "a.ts"}, {Path: "a.ts"}}, wantErr: ErrDuplicatePath},
		{name: "aliased path", files: []FileSpec{{Path: "src/a.ts"}, {Path: "./src/../src/a.ts"}}, wantErr: ErrDuplicatePath},
		{name: "backslash alias", files: []FileSpec{{Path: "src/a.ts"}, {Path: `src\a.ts`}}, wantErr: ErrDuplicatePath},
		{name: "absolute path", files: []FileSpec{{Path: "/etc/passwd"}}, wantErr: ErrInvalidPath},
		{name: "escaping path", files: []FileSpec{{Path: "../outside.ts"}}, wantErr: ErrInvalidPath},
		{name: "root itself", files: []FileSpec{{Path: "."}}, wantErr: ErrInvalidPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.files...).Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			var ve *ValidationError
			assert.True(t, errors.As(err, &ve))
		})
	}
}

func TestDuplicateReportsSecondEntry(t *testing.T) {
	err := New(FileSpec{Path: "a"}, FileSpec{Path: "b"}, FileSpec{Path: "a"}).Validate()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, 2, ve.Index)
	assert.Equal(t, "a", ve.Path)
}

func TestNormalize(t *testing.T) {
	m := New(FileSpec{
		Path:      `./src\app.ts`,
		DependsOn: []string{"src/./config.ts", "", " lib/util.ts "},
	}).Normalize()

	require.Len(t, m.Files, 1)
	assert.Equal(t, "src/app.ts", m.Files[0].Path)
	assert.Equal(t, []string{"src/config.ts", "lib/util.ts"}, m.Files[0].DependsOn)
}

func TestParseFormats(t *testing.T) {
	want := []FileSpec{
		{Path: "a.ts", Description: "first"},
		{Path: "b.ts", Description: "second", DependsOn: []string{"a.ts"}},
	}

	jsonSrc := `{"files":[{"path":"a.ts","description":"first","dependsOn":[]},
		{"path":"b.ts","description":"second","dependsOn":["a.ts"]}]}`
	yamlSrc := `
files:
  - path: a.ts
    description: first
  - path: b.ts
    description: second
    dependsOn: [a.ts]
`
	hclSrc := `
file "a.ts" {
  description = "first"
}

file "b.ts" {
  description = "second"
  depends_on  = ["a.ts"]
}
`
	for _, tc := range []struct {
		format Format
		src    string
	}{
		{FormatJSON, jsonSrc},
		{FormatYAML, yamlSrc},
		{FormatHCL, hclSrc},
	} {
		t.Run(string(tc.format), func(t *testing.T) {
			m, err := Parse([]byte(tc.src), tc.format)
			require.NoError(t, err)
			require.Len(t, m.Files, 2)
			assert.Equal(t, want[0].Path, m.Files[0].Path)
			assert.Empty(t, m.Files[0].DependsOn)
			assert.Equal(t, want[1], m.Files[1])
		})
	}
}

func TestParseHCLRejectsUnknownAttribute(t *testing.T) {
	_, err := Parse([]byte(`file "a.ts" { colour = "red" }`), FormatHCL)
	assert.Error(t, err)
}

func TestLoadPicksFormatByExtension(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "manifest.yml")
	require.NoError(t, os.WriteFile(p, []byte("files:\n  - path: ./x.go\n"), 0o644))

	m, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, []string{"x.go"}, m.Paths())
}

func TestExclude(t *testing.T) {
	m := New(
		FileSpec{Path: "package.json"},
		FileSpec{Path: "package-lock.json"},
		FileSpec{Path: "dist/bundle.js"},
		FileSpec{Path: "src/index.ts", DependsOn: []string{"package.json"}},
	)

	kept, dropped := Exclude(m, []string{"*-lock.json", "dist/"})
	assert.Equal(t, []string{"package.json", "src/index.ts"}, kept.Paths())
	assert.Equal(t, []string{"package-lock.json", "dist/bundle.js"}, dropped)

	same, none := Exclude(m, nil)
	assert.Equal(t, m, same)
	assert.Nil(t, none)
}

func TestSchemaDescribesFiles(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"files"`)
	assert.Contains(t, string(data), `"dependsOn"`)
}
