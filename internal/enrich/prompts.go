package enrich

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"specforge/internal/template"
)

const maxDocumentChars = 12000

const documentationSystemPrompt = `You analyze technical documentation for an AI coding specialist.
Reply with a single JSON object and nothing else:
{
  "summary": "two or three sentences",
  "key_concepts": ["..."],
  "relevant_for_tasks": ["..."],
  "tech_stack": ["..."],
  "tags": ["..."],
  "code_patterns": ["..."]
}
Use short lowercase phrases in every list. Do not invent content that the documentation does not support.`

const tierSystemPrompt = `You write task prompts for an AI coding specialist. Reply with the prompt text only, no preamble.`

func documentationPrompt(t *template.SpecialistTemplate, entry template.DocumentationEntry, content string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Specialist: %s\nPurpose: %s\n", t.Name, t.Persona.Purpose)
	if len(t.Persona.TechStack) > 0 {
		fmt.Fprintf(&sb, "Tech stack: %s\n", strings.Join(t.Persona.TechStack, ", "))
	}
	fmt.Fprintf(&sb, "\nDocumentation entry (%s): %s\n", entry.Type, entry.Locator())
	if entry.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", entry.Description)
	}
	if content != "" {
		if len(content) > maxDocumentChars {
			cut := maxDocumentChars
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + "\n[...truncated...]"
		}
		fmt.Fprintf(&sb, "\n--- BEGIN DOCUMENT ---\n%s\n--- END DOCUMENT ---\n", content)
	}
	return sb.String()
}

var tierGuidance = []string{
	"a one-line instruction with no extra guidance",
	"a short instruction listing the key steps",
	"a detailed instruction with steps, relevant APIs, and one example",
	"an exhaustive instruction with steps, examples, edge cases, and how to verify the result",
}

func tierPrompt(t *template.SpecialistTemplate, task, scenario, tier string, index, count int) string {
	level := index
	if count > len(tierGuidance) && count > 1 {
		level = index * (len(tierGuidance) - 1) / (count - 1)
	}
	if level >= len(tierGuidance) {
		level = len(tierGuidance) - 1
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Specialist: %s\nPurpose: %s\n", t.Name, t.Persona.Purpose)
	if len(t.Capabilities.Tags) > 0 {
		fmt.Fprintf(&sb, "Capabilities: %s\n", strings.Join(t.Capabilities.Tags, ", "))
	}
	fmt.Fprintf(&sb, "Task: %s\n", task)
	if scenario != "" {
		fmt.Fprintf(&sb, "Scenario: %s\n", scenario)
	}
	fmt.Fprintf(&sb, "\nWrite the %s tier prompt (%d of %d): %s.\n", tier, index+1, count, tierGuidance[level])
	return sb.String()
}

// parseEnrichment decodes the JSON object in an LLM reply, tolerating code
// fences and surrounding prose.
func parseEnrichment(reply string) (*template.DocumentationEnrichment, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, errors.New("enrichment reply contains no JSON object")
	}
	std, err := template.Standardize([]byte(reply[start : end+1]))
	if err != nil {
		return nil, fmt.Errorf("enrichment reply is not valid JSON: %w", err)
	}

	var enr template.DocumentationEnrichment
	if err := json.Unmarshal(std, &enr); err != nil {
		return nil, fmt.Errorf("enrichment reply has the wrong shape: %w", err)
	}
	if strings.TrimSpace(enr.Summary) == "" {
		return nil, errors.New("enrichment reply has no summary")
	}
	return &enr, nil
}
