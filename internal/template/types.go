// Package template defines the specialist template artifact and its on-disk forms.
//
// A specialist template is a relaxed-JSON document (comments and trailing commas
// allowed) describing the persona, capabilities, prompts, and documentation
// references used to steer a coding agent. Every object level captures its known
// fields into typed structs and keeps unrecognized keys in an Extra side-map, so a
// load/save round-trip never drops forward-compatible data.
package template

import (
	"time"
)

// DocType classifies a documentation entry.
type DocType string

const (
	DocOfficial  DocType = "official"
	DocReference DocType = "reference"
	DocRecipes   DocType = "recipes"
	DocExamples  DocType = "examples"
	DocControl   DocType = "control"
)

// DocTypes lists the closed set of documentation types.
var DocTypes = []DocType{DocOfficial, DocReference, DocRecipes, DocExamples, DocControl}

// BumpType is a semantic-version increment kind.
type BumpType string

const (
	BumpMajor BumpType = "major"
	BumpMinor BumpType = "minor"
	BumpPatch BumpType = "patch"
)

// ChangeCategory classifies a changelog entry.
type ChangeCategory string

const (
	CategoryEnrichment    ChangeCategory = "enrichment"
	CategoryPrompt        ChangeCategory = "prompt"
	CategoryDocumentation ChangeCategory = "documentation"
	CategoryPersona       ChangeCategory = "persona"
	CategoryCapabilities  ChangeCategory = "capabilities"
	CategoryFix           ChangeCategory = "fix"
	CategoryOther         ChangeCategory = "other"
)

// ChangeCategories lists the closed set of change categories.
var ChangeCategories = []ChangeCategory{
	CategoryEnrichment, CategoryPrompt, CategoryDocumentation, CategoryPersona,
	CategoryCapabilities, CategoryFix, CategoryOther,
}

// SpecialistTemplate is the central artifact. Name and Version together identify
// an immutable revision; consumers must not assume byte-stability across reads.
type SpecialistTemplate struct {
	Name               string               `json:"name"`
	Version            string               `json:"version"`
	VersionMetadata    *VersionMetadata     `json:"version_metadata,omitempty"`
	Persona            Persona              `json:"persona"`
	Capabilities       Capabilities         `json:"capabilities"`
	Prompts            Prompts              `json:"prompts"`
	Documentation      []DocumentationEntry `json:"documentation,omitempty"`
	Dependencies       map[string]any       `json:"dependencies,omitempty"`
	PreferredModels    []PreferredModel     `json:"preferred_models,omitempty"`
	SpawnableSubAgents []string             `json:"spawnable_sub_agent_specialists,omitempty"`

	Extra map[string]any `json:"-"`
}

// Persona describes who the specialist is.
type Persona struct {
	Purpose    string   `json:"purpose"`
	Values     []string `json:"values"`
	Attributes []string `json:"attributes"`
	TechStack  []string `json:"tech_stack"`

	Extra map[string]any `json:"-"`
}

// Capabilities is a tag list plus a per-tag description mapping.
type Capabilities struct {
	Tags         []string          `json:"tags"`
	Descriptions map[string]string `json:"descriptions"`

	Extra map[string]any `json:"-"`
}

// Prompts holds the default prompt set, per-model overrides, the resolution
// strategy, and task-keyed tier prompts produced by enrichment.
type Prompts struct {
	Default        map[string]string            `json:"default"`
	ModelSpecific  map[string]map[string]string `json:"model_specific,omitempty"`
	PromptStrategy PromptStrategy               `json:"prompt_strategy"`
	Tasks          map[string]map[string]string `json:"tasks,omitempty"`

	Extra map[string]any `json:"-"`
}

// PromptStrategy describes how a consumer picks between default and
// model-specific prompts.
type PromptStrategy struct {
	Fallback       string `json:"fallback"`
	ModelDetection string `json:"model_detection"`
	AllowOverride  bool   `json:"allow_override"`

	Extra map[string]any `json:"-"`
}

// DocumentationEntry references one documentation source.
type DocumentationEntry struct {
	Type        DocType                  `json:"type"`
	URL         string                   `json:"url,omitempty"`
	Path        string                   `json:"path,omitempty"`
	Description string                   `json:"description,omitempty"`
	Enrichment  *DocumentationEnrichment `json:"enrichment,omitempty"`

	Extra map[string]any `json:"-"`
}

// Locator returns the URL if set, otherwise the path.
func (d DocumentationEntry) Locator() string {
	if d.URL != "" {
		return d.URL
	}
	return d.Path
}

// DocumentationEnrichment is attached to a documentation entry by the enricher.
type DocumentationEnrichment struct {
	Summary         string    `json:"summary"`
	KeyConcepts     []string  `json:"key_concepts"`
	RelevantFor     []string  `json:"relevant_for_tasks"`
	TechStack       []string  `json:"tech_stack"`
	Tags            []string  `json:"tags"`
	CodePatterns    []string  `json:"code_patterns"`
	EnrichedAt      time.Time `json:"enriched_at"`
	EnrichmentModel string    `json:"enrichment_model"`

	Extra map[string]any `json:"-"`
}

// PreferredModel records a model the specialist performs well with.
type PreferredModel struct {
	Model      string         `json:"model"`
	Weight     float64        `json:"weight,omitempty"`
	Benchmarks map[string]any `json:"benchmarks,omitempty"`

	Extra map[string]any `json:"-"`
}

// VersionMetadata is the append-only version ledger. Changelog is ordered newest
// first and Changelog[0].Version equals the template version.
type VersionMetadata struct {
	Changelog []VersionChange `json:"changelog"`
	// BreakingChanges is a derived view of the changelog, rewritten on every
	// update and never edited independently.
	BreakingChanges     []BreakingChange `json:"breaking_changes,omitempty"`
	Deprecated          bool             `json:"deprecated,omitempty"`
	DeprecationReason   string           `json:"deprecation_reason,omitempty"`
	ReplacementTemplate string           `json:"replacement_template,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
	LastEnrichedAt      *time.Time       `json:"last_enriched_at,omitempty"`

	Extra map[string]any `json:"-"`
}

// VersionChange is one immutable changelog entry.
type VersionChange struct {
	Version string        `json:"version"`
	Date    time.Time     `json:"date"`
	Type    BumpType      `json:"type"`
	Changes []ChangeEntry `json:"changes"`
	Author  string        `json:"author,omitempty"`

	Extra map[string]any `json:"-"`
}

// ChangeEntry is one change within a version transition.
type ChangeEntry struct {
	Category    ChangeCategory `json:"category"`
	Description string         `json:"description"`
	Breaking    bool           `json:"breaking,omitempty"`
	Migration   string         `json:"migration,omitempty"`

	Extra map[string]any `json:"-"`
}

// BreakingChange is a flattened view of a breaking ChangeEntry.
type BreakingChange struct {
	Version     string    `json:"version"`
	Date        time.Time `json:"date"`
	Description string    `json:"description"`
	Migration   string    `json:"migration,omitempty"`

	Extra map[string]any `json:"-"`
}

// TierPrompts are escalating task prompts (L0..Lx) generated for one task.
type TierPrompts struct {
	Task    string            `json:"task"`
	Prompts map[string]string `json:"prompts"`
}
