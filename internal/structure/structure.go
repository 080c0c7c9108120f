// Package structure turns extracted knowledge into a draft specialist
// template. It performs no I/O.
package structure

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"specforge/internal/extract"
	"specforge/internal/template"
)

// DefaultVersion is the initial version of a newly structured template.
const DefaultVersion = "1.0.0"

// Identity names the specialist being built.
type Identity struct {
	Name        string
	Version     string // defaults to DefaultVersion
	DisplayName string // used in prompts; defaults to a title-cased Name
	Purpose     string // overrides the synthesized persona purpose
	Models      []string
}

// Default persona values applied to every specialist.
var defaultValues = []string{
	"Prefer the documented, idiomatic approach over clever workarounds",
	"Cite the relevant documentation when recommending an API",
	"Keep changes small and verifiable",
}

const maxDocumentation = 40

// Structure synthesizes a template from knowledge. The result always carries
// every required section, even when knowledge is empty or nil.
func Structure(knowledge *extract.ExtractedKnowledge, id Identity) *template.SpecialistTemplate {
	if knowledge == nil {
		knowledge = extract.NewKnowledge(extract.DepthStandard)
	}
	name := strings.TrimSpace(id.Name)
	if name == "" {
		name = "specialist"
	}
	ver := strings.TrimSpace(id.Version)
	if ver == "" {
		ver = DefaultVersion
	}
	display := id.DisplayName
	if display == "" {
		display = displayName(name)
	}

	return &template.SpecialistTemplate{
		Name:            name,
		Version:         ver,
		Persona:         persona(knowledge, display, id.Purpose),
		Capabilities:    capabilities(knowledge),
		Prompts:         prompts(knowledge, display),
		Documentation:   documentation(knowledge),
		PreferredModels: preferredModels(id.Models),
	}
}

func displayName(name string) string {
	parts := strings.FieldsFunc(name, func(r rune) bool { return r == '-' || r == '_' || r == ' ' })
	for i, p := range parts {
		r, size := utf8.DecodeRuneInString(p)
		parts[i] = string(unicode.ToUpper(r)) + p[size:]
	}
	return strings.Join(parts, " ")
}

func persona(k *extract.ExtractedKnowledge, display, purpose string) template.Persona {
	if purpose == "" {
		purpose = fmt.Sprintf("Expert %s specialist that helps developers build with %s correctly and idiomatically.", display, display)
	}

	attributes := []string{}
	if len(k.Documents) > 0 {
		attributes = append(attributes, "Grounded in official documentation")
	}
	if len(k.CodeExamples) > 0 {
		attributes = append(attributes, "Answers with working code examples")
	}
	if len(k.Concepts) > 0 {
		attributes = append(attributes, fmt.Sprintf("Familiar with %s", joinLimited(k.Concepts, 5)))
	}

	return template.Persona{
		Purpose:    purpose,
		Values:     append([]string{}, defaultValues...),
		Attributes: attributes,
		TechStack:  append([]string{}, k.TechStack...),
	}
}

func capabilities(k *extract.ExtractedKnowledge) template.Capabilities {
	caps := template.Capabilities{Tags: []string{}, Descriptions: map[string]string{}}
	for _, c := range k.Capabilities {
		if c.Tag == "" {
			continue
		}
		if _, dup := caps.Descriptions[c.Tag]; dup {
			continue
		}
		caps.Tags = append(caps.Tags, c.Tag)
		desc := c.Description
		if desc == "" {
			desc = fmt.Sprintf("Working with %s", strings.ReplaceAll(c.Tag, "-", " "))
		}
		caps.Descriptions[c.Tag] = desc
	}
	return caps
}

func prompts(k *extract.ExtractedKnowledge, display string) template.Prompts {
	var system strings.Builder
	fmt.Fprintf(&system, "You are an expert %s specialist.", display)
	if k.Summary != "" {
		fmt.Fprintf(&system, " %s", k.Summary)
	}
	if len(k.TechStack) > 0 {
		fmt.Fprintf(&system, "\n\nTech stack: %s.", strings.Join(k.TechStack, ", "))
	}
	if len(k.Concepts) > 0 {
		fmt.Fprintf(&system, "\n\nKey concepts: %s.", joinLimited(k.Concepts, 12))
	}

	return template.Prompts{
		Default: map[string]string{
			"system":       system.String(),
			"instructions": fmt.Sprintf("Answer %s questions using the referenced documentation. Show code when it helps and call out version-specific behavior.", display),
			"constraints":  "Do not invent APIs. If the documentation does not cover something, say so.",
		},
		PromptStrategy: template.PromptStrategy{
			Fallback:       "default",
			ModelDetection: "auto",
			AllowOverride:  true,
		},
	}
}

func documentation(k *extract.ExtractedKnowledge) []template.DocumentationEntry {
	docs := []template.DocumentationEntry{}
	seen := make(map[string]bool)
	for _, d := range k.Documents {
		if len(docs) >= maxDocumentation || seen[d.Location] {
			continue
		}
		seen[d.Location] = true
		entry := template.DocumentationEntry{Type: d.Type, Description: d.Title}
		if entry.Type == "" {
			entry.Type = template.DocReference
		}
		if d.IsURL {
			entry.URL = d.Location
		} else {
			entry.Path = d.Location
		}
		docs = append(docs, entry)
	}
	// Official docs first, stable within each type.
	sort.SliceStable(docs, func(i, j int) bool {
		return docTypeRank(docs[i].Type) < docTypeRank(docs[j].Type)
	})
	return docs
}

func docTypeRank(t template.DocType) int {
	for i, dt := range template.DocTypes {
		if dt == t {
			return i
		}
	}
	return len(template.DocTypes)
}

func preferredModels(models []string) []template.PreferredModel {
	if len(models) == 0 {
		return nil
	}
	out := make([]template.PreferredModel, 0, len(models))
	for i, m := range models {
		if m = strings.TrimSpace(m); m == "" {
			continue
		}
		out = append(out, template.PreferredModel{Model: m, Weight: 1.0 / float64(i+1)})
	}
	return out
}

func joinLimited(items []string, limit int) string {
	if len(items) <= limit {
		return strings.Join(items, ", ")
	}
	return strings.Join(items[:limit], ", ") + fmt.Sprintf(" and %d more", len(items)-limit)
}
