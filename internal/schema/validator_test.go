package schema

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specforge/internal/template"
)

const validDoc = `{
	"name": "convex",
	"version": "1.0.0",
	"persona": {"purpose": "Build Convex backends", "values": [], "attributes": [], "tech_stack": []},
	"capabilities": {"tags": ["schema"], "descriptions": {"schema": "Designs tables"}},
	"prompts": {"default": {"system": "You are a Convex expert."}},
	"documentation": [{"type": "official", "url": "https://docs.convex.dev"}],
}`

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator()
	require.NoError(t, err)
	return v
}

func decode(t *testing.T, doc string) map[string]any {
	t.Helper()
	std, err := template.Standardize([]byte(doc))
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(std, &out))
	return out
}

func TestValidate_ValidDocument(t *testing.T) {
	v := newValidator(t)
	result, err := v.ValidateBytes([]byte(validDoc))
	require.NoError(t, err)
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
	assert.Empty(t, result.Warnings)
}

func TestValidate_MissingPersonaPurpose(t *testing.T) {
	v := newValidator(t)
	doc := decode(t, validDoc)
	delete(doc["persona"].(map[string]any), "purpose")

	result := v.Validate(doc)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, "persona.purpose", result.Errors[0].Path)
	assert.NotEmpty(t, result.Errors[0].Message)
	assert.NotNil(t, result.Warnings)
}

func TestValidate_StructuralErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(doc map[string]any)
		path   string
	}{
		{
			name:   "wrong primitive type",
			mutate: func(doc map[string]any) { doc["name"] = 42.0 },
			path:   "name",
		},
		{
			name: "enum outside closed set",
			mutate: func(doc map[string]any) {
				doc["documentation"].([]any)[0].(map[string]any)["type"] = "blog"
			},
			path: "documentation.0.type",
		},
		{
			name:   "missing top-level field",
			mutate: func(doc map[string]any) { delete(doc, "prompts") },
			path:   "prompts",
		},
		{
			name: "bad changelog bump type",
			mutate: func(doc map[string]any) {
				doc["version_metadata"] = map[string]any{
					"changelog": []any{map[string]any{
						"version": "1.0.0",
						"date":    "2025-01-01T00:00:00Z",
						"type":    "huge",
						"changes": []any{},
					}},
				}
			},
			path: "version_metadata.changelog.0.type",
		},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := decode(t, validDoc)
			tt.mutate(doc)
			result := v.Validate(doc)
			require.False(t, result.Valid())
			paths := make([]string, 0, len(result.Errors))
			for _, issue := range result.Errors {
				paths = append(paths, issue.Path)
			}
			assert.Contains(t, paths, tt.path)
		})
	}
}

func TestValidate_UnknownFieldsAccepted(t *testing.T) {
	v := newValidator(t)
	doc := decode(t, validDoc)
	doc["owner_team"] = "platform"
	doc["persona"].(map[string]any)["mood"] = map[string]any{"tone": "calm"}
	doc["documentation"].([]any)[0].(map[string]any)["priority"] = 1.0

	result := v.Validate(doc)
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
}

func TestValidate_Warnings(t *testing.T) {
	v := newValidator(t)
	doc := decode(t, `{
		"name": "x",
		"version": "1.0",
		"persona": {"purpose": "p"},
		"capabilities": {"tags": ["a"], "descriptions": {}},
		"prompts": {"default": {}},
		"documentation": [{"type": "reference"}],
		"preferred_models": [{"model": "claude-sonnet"}],
	}`)

	result := v.Validate(doc)
	assert.True(t, result.Valid(), "errors: %v", result.Errors)

	paths := make(map[string]bool)
	for _, issue := range result.Warnings {
		paths[issue.Path] = true
	}
	assert.True(t, paths["version"])
	assert.True(t, paths["capabilities.descriptions"])
	assert.True(t, paths["documentation.0"])
	assert.True(t, paths["preferred_models.0.benchmarks"])
}

func TestValidate_UndescribedCapability(t *testing.T) {
	v := newValidator(t)
	doc := decode(t, validDoc)
	doc["capabilities"].(map[string]any)["tags"] = []any{"schema", "auth"}

	result := v.Validate(doc)
	require.Len(t, result.Warnings, 1)
	assert.Equal(t, "capabilities.descriptions.auth", result.Warnings[0].Path)
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	v := newValidator(t)
	doc := decode(t, validDoc)
	delete(doc["persona"].(map[string]any), "purpose")
	before := decode(t, validDoc)
	delete(before["persona"].(map[string]any), "purpose")

	_ = v.Validate(doc)
	if diff := cmp.Diff(before, doc); diff != "" {
		t.Errorf("Validate mutated its input (-before +after):\n%s", diff)
	}
}

func TestValidateTemplate_SparseTypedTemplate(t *testing.T) {
	v := newValidator(t)
	result, err := v.ValidateTemplate(&template.SpecialistTemplate{Name: "x", Version: "1.0.0"})
	require.NoError(t, err)
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
	assert.NotEmpty(t, result.Warnings)
}

func TestValidateFile_YAML(t *testing.T) {
	v := newValidator(t)
	tmpl, err := template.Parse([]byte(validDoc))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "convex-template.yaml")
	require.NoError(t, template.Save(path, tmpl))

	result, err := v.ValidateFile(path)
	require.NoError(t, err)
	assert.True(t, result.Valid(), "errors: %v", result.Errors)
}

func TestIssue_String(t *testing.T) {
	assert.Equal(t, "persona.purpose: missing required field", Issue{Path: "persona.purpose", Message: "missing required field"}.String())
	assert.Equal(t, "boom", Issue{Message: "boom"}.String())
}
