// Package schema validates specialist template documents.
//
// Structural checks (required fields, primitive types, closed enums) come from an
// embedded JSON Schema and are reported as errors. Completeness checks that a
// schema cannot express cleanly are reported as warnings. The schema is open:
// unknown keys at any level are accepted.
package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"specforge/internal/template"
	"specforge/internal/version"
)

//go:embed template.schema.json
var templateSchema []byte

const schemaURL = "https://specforge.local/schemas/specialist-template.json"

// Issue is one validation finding. Path is dotted, with array indices as
// segments (documentation.2.type).
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Path == "" {
		return i.Message
	}
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Result separates fatal structural errors from advisory warnings.
type Result struct {
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
}

// Valid reports whether there are no structural errors.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// Validator checks documents against the compiled template schema. It is safe
// for concurrent use.
type Validator struct {
	schema  *jsonschema.Schema
	printer *message.Printer
}

// NewValidator compiles the embedded template schema.
func NewValidator() (*Validator, error) {
	var doc any
	if err := json.Unmarshal(templateSchema, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse template schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add template schema: %w", err)
	}
	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile template schema: %w", err)
	}
	return &Validator{
		schema:  compiled,
		printer: message.NewPrinter(language.English),
	}, nil
}

// Validate checks a decoded generic document (maps, slices, and JSON scalars).
// The document is never modified.
func (v *Validator) Validate(doc any) *Result {
	result := &Result{Errors: []Issue{}, Warnings: []Issue{}}

	if err := v.schema.Validate(doc); err != nil {
		if verr, ok := err.(*jsonschema.ValidationError); ok {
			result.Errors = v.collect(verr)
		} else {
			result.Errors = append(result.Errors, Issue{Message: err.Error()})
		}
	}

	if root, ok := doc.(map[string]any); ok {
		result.Warnings = warnings(root)
	}
	return result
}

// ValidateBytes parses a relaxed-JSON document and validates it.
func (v *Validator) ValidateBytes(data []byte) (*Result, error) {
	std, err := template.Standardize(data)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return v.Validate(doc), nil
}

// ValidateFile validates a template file in any supported on-disk format.
func (v *Validator) ValidateFile(path string) (*Result, error) {
	std, err := template.ReadDocument(path)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := json.Unmarshal(std, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return v.Validate(doc), nil
}

// ValidateTemplate validates the serialized form of a typed template.
func (v *Validator) ValidateTemplate(t *template.SpecialistTemplate) (*Result, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize template: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return v.Validate(doc), nil
}

// collect flattens the error tree into leaf issues, one per missing property
// for required-keyword failures.
func (v *Validator) collect(root *jsonschema.ValidationError) []Issue {
	seen := make(map[string]bool)
	var issues []Issue
	add := func(issue Issue) {
		key := issue.Path + "\x00" + issue.Message
		if seen[key] {
			return
		}
		seen[key] = true
		issues = append(issues, issue)
	}

	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) > 0 {
			for _, cause := range e.Causes {
				walk(cause)
			}
			return
		}
		if req, ok := e.ErrorKind.(*kind.Required); ok {
			for _, missing := range req.Missing {
				add(Issue{
					Path:    joinPath(append(append([]string{}, e.InstanceLocation...), missing)),
					Message: "missing required field",
				})
			}
			return
		}
		add(Issue{
			Path:    joinPath(e.InstanceLocation),
			Message: e.ErrorKind.LocalizedString(v.printer),
		})
	}
	walk(root)

	sort.SliceStable(issues, func(i, j int) bool { return issues[i].Path < issues[j].Path })
	if issues == nil {
		issues = []Issue{}
	}
	return issues
}

func joinPath(location []string) string {
	return strings.Join(location, ".")
}

// =============================================================================
// WARNINGS
// =============================================================================

func warnings(root map[string]any) []Issue {
	issues := []Issue{}
	warn := func(path, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if raw, ok := root["version"].(string); ok && raw != "" && !version.Valid(raw) {
		warn("version", "%q is not a strict semantic version (MAJOR.MINOR.PATCH)", raw)
	}

	if caps, ok := root["capabilities"].(map[string]any); ok {
		descriptions, _ := caps["descriptions"].(map[string]any)
		if len(descriptions) == 0 {
			warn("capabilities.descriptions", "capability description map is empty")
		} else if tags, ok := caps["tags"].([]any); ok {
			for _, tag := range tags {
				name, ok := tag.(string)
				if !ok {
					continue
				}
				if _, described := descriptions[name]; !described {
					warn("capabilities.descriptions."+name, "capability %q has no description", name)
				}
			}
		}
	}

	if docs, ok := root["documentation"].([]any); ok {
		for i, item := range docs {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if isBlank(entry["url"]) && isBlank(entry["path"]) {
				warn(fmt.Sprintf("documentation.%d", i), "documentation entry has neither url nor path")
			}
		}
	}

	if models, ok := root["preferred_models"].([]any); ok {
		for i, item := range models {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			if bench, _ := entry["benchmarks"].(map[string]any); len(bench) == 0 {
				warn(fmt.Sprintf("preferred_models.%d.benchmarks", i), "preferred model %v has no recorded benchmarks", entry["model"])
			}
		}
	}

	return issues
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return !ok || strings.TrimSpace(s) == ""
}
