package structure

import (
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specforge/internal/extract"
	"specforge/internal/schema"
	"specforge/internal/template"
)

func sampleKnowledge() *extract.ExtractedKnowledge {
	k := extract.NewKnowledge(extract.DepthStandard)
	k.Documents = []extract.Document{
		{Location: "docs/recipes.md", Title: "Recipes", Type: template.DocRecipes},
		{Location: "https://docs.convex.dev", Title: "Convex Docs", Type: template.DocOfficial, IsURL: true},
		{Location: "https://docs.convex.dev", Title: "Duplicate", Type: template.DocOfficial, IsURL: true},
	}
	k.Concepts = []string{"Queries", "Mutations", "Schemas"}
	k.TechStack = []string{"typescript", "react"}
	k.Capabilities = []extract.Capability{
		{Tag: "queries", Description: "Reactive reads"},
		{Tag: "mutations"},
		{Tag: "queries", Description: "dup"},
	}
	k.CodeExamples = []extract.CodeExample{{Language: "typescript", Code: "query({})"}}
	k.Summary = "Convex is a reactive backend."
	return k
}

func TestStructure_EmptyKnowledgeIsStructurallyValid(t *testing.T) {
	v, err := schema.NewValidator()
	require.NoError(t, err)

	for _, k := range []*extract.ExtractedKnowledge{nil, extract.NewKnowledge(extract.DepthShallow)} {
		tmpl := Structure(k, Identity{Name: "convex"})
		result, err := v.ValidateTemplate(tmpl)
		require.NoError(t, err)
		assert.Empty(t, result.Errors)
		assert.NotEmpty(t, result.Warnings)
	}
}

func TestStructure_DefaultsIdentity(t *testing.T) {
	tmpl := Structure(nil, Identity{Name: "convex-backend"})
	assert.Equal(t, "convex-backend", tmpl.Name)
	assert.Equal(t, DefaultVersion, tmpl.Version)
	assert.Contains(t, tmpl.Persona.Purpose, "Convex Backend")
	assert.NotNil(t, tmpl.Capabilities.Tags)
	assert.NotNil(t, tmpl.Capabilities.Descriptions)
	assert.Contains(t, tmpl.Prompts.Default, "system")
	assert.Nil(t, tmpl.VersionMetadata)

	tmpl = Structure(nil, Identity{})
	assert.Equal(t, "specialist", tmpl.Name)
}

func TestStructure_NonASCIIName(t *testing.T) {
	tmpl := Structure(nil, Identity{Name: "élan-ui"})
	assert.Contains(t, tmpl.Persona.Purpose, "Élan Ui")
	assert.True(t, utf8.ValidString(tmpl.Persona.Purpose))
	for key, prompt := range tmpl.Prompts.Default {
		assert.True(t, utf8.ValidString(prompt), key)
	}
}

func TestStructure_FromKnowledge(t *testing.T) {
	tmpl := Structure(sampleKnowledge(), Identity{
		Name:    "convex",
		Version: "2.1.0",
		Purpose: "Ship Convex apps",
		Models:  []string{"claude-sonnet-4", " ", "gemini-2.5-pro"},
	})

	assert.Equal(t, "2.1.0", tmpl.Version)
	assert.Equal(t, "Ship Convex apps", tmpl.Persona.Purpose)
	assert.Equal(t, []string{"typescript", "react"}, tmpl.Persona.TechStack)
	assert.Len(t, tmpl.Persona.Attributes, 3)

	assert.Equal(t, []string{"queries", "mutations"}, tmpl.Capabilities.Tags)
	assert.Equal(t, "Reactive reads", tmpl.Capabilities.Descriptions["queries"])
	assert.Equal(t, "Working with mutations", tmpl.Capabilities.Descriptions["mutations"])

	require.Len(t, tmpl.Documentation, 2)
	assert.Equal(t, template.DocOfficial, tmpl.Documentation[0].Type)
	assert.Equal(t, "https://docs.convex.dev", tmpl.Documentation[0].URL)
	assert.Equal(t, "docs/recipes.md", tmpl.Documentation[1].Path)

	assert.Contains(t, tmpl.Prompts.Default["system"], "Convex is a reactive backend.")
	assert.Contains(t, tmpl.Prompts.Default["system"], "typescript, react")

	require.Len(t, tmpl.PreferredModels, 2)
	assert.Equal(t, "gemini-2.5-pro", tmpl.PreferredModels[1].Model)

	v, err := schema.NewValidator()
	require.NoError(t, err)
	result, err := v.ValidateTemplate(tmpl)
	require.NoError(t, err)
	assert.Empty(t, result.Errors)
}

func TestStructure_DoesNotAliasKnowledge(t *testing.T) {
	k := sampleKnowledge()
	tmpl := Structure(k, Identity{Name: "convex"})
	tmpl.Persona.TechStack[0] = "changed"
	assert.Equal(t, "typescript", k.TechStack[0])
}

func TestJoinLimited(t *testing.T) {
	assert.Equal(t, "a, b", joinLimited([]string{"a", "b"}, 3))
	assert.Equal(t, "a, b and 2 more", joinLimited([]string{"a", "b", "c", "d"}, 2))
}
