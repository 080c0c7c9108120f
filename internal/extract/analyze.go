package extract

import (
	"regexp"
	"strings"
)

const (
	maxConcepts     = 60
	maxCapabilities = 12
	maxExamples     = 20
	maxSummary      = 500
)

var (
	headingPattern   = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*#*\s*$`)
	codeFencePattern = regexp.MustCompile("(?s)```([A-Za-z0-9_+#.-]*)[^\n]*\n(.*?)```")
	slugPattern      = regexp.MustCompile(`[^a-z0-9]+`)
)

// Sections that describe the project rather than the technology.
var skippedSections = map[string]bool{
	"license": true, "contributing": true, "changelog": true, "badges": true,
	"table of contents": true, "contents": true, "authors": true, "acknowledgements": true,
	"acknowledgments": true, "support": true, "sponsors": true, "code of conduct": true,
}

// Fence languages that are not part of a tech stack.
var nonStackLanguages = map[string]bool{
	"": true, "text": true, "txt": true, "console": true, "output": true, "diff": true,
	"plaintext": true, "md": true, "markdown": true, "sh": true, "bash": true, "shell": true,
	"zsh": true, "powershell": true, "ps1": true, "bat": true, "cmd": true, "json": true,
	"jsonc": true, "json5": true, "yaml": true, "yml": true, "toml": true, "ini": true, "xml": true,
}

var languageAliases = map[string]string{
	"ts": "typescript", "tsx": "typescript", "js": "javascript", "jsx": "javascript",
	"mjs": "javascript", "golang": "go", "py": "python", "rs": "rust", "rb": "ruby",
	"kt": "kotlin", "cs": "csharp", "c#": "csharp", "c++": "cpp", "postgresql": "sql",
}

type techKeyword struct {
	pattern *regexp.Regexp
	name    string
}

func keyword(pattern, name string) techKeyword {
	return techKeyword{pattern: regexp.MustCompile(`(?i)\b` + pattern + `\b`), name: name}
}

// techKeywords detects technologies mentioned in prose.
var techKeywords = []techKeyword{
	keyword(`typescript`, "typescript"),
	keyword(`javascript`, "javascript"),
	keyword(`python`, "python"),
	keyword(`golang`, "go"),
	keyword(`rust`, "rust"),
	keyword(`react`, "react"),
	keyword(`next\.js`, "next.js"),
	keyword(`vue(\.js)?`, "vue"),
	keyword(`svelte`, "svelte"),
	keyword(`angular`, "angular"),
	keyword(`node\.js`, "node.js"),
	keyword(`deno`, "deno"),
	keyword(`tailwind(css)?`, "tailwind"),
	keyword(`graphql`, "graphql"),
	keyword(`postgres(ql)?`, "postgresql"),
	keyword(`mysql`, "mysql"),
	keyword(`sqlite`, "sqlite"),
	keyword(`redis`, "redis"),
	keyword(`mongodb`, "mongodb"),
	keyword(`docker`, "docker"),
	keyword(`kubernetes`, "kubernetes"),
	keyword(`prisma`, "prisma"),
	keyword(`convex`, "convex"),
	keyword(`django`, "django"),
	keyword(`fastapi`, "fastapi"),
	keyword(`flask`, "flask"),
}

// orderedSet keeps first-seen order and ignores duplicates.
type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool), items: []string{}}
}

func (s *orderedSet) add(v string) {
	key := strings.ToLower(v)
	if v == "" || s.seen[key] {
		return
	}
	s.seen[key] = true
	s.items = append(s.items, v)
}

// analyze derives concepts, tech stack, capabilities, code examples, and a
// summary from the fetched documents.
func analyze(k *ExtractedKnowledge) {
	concepts := newOrderedSet()
	stack := newOrderedSet()
	capTags := newOrderedSet()

	for _, doc := range k.Documents {
		for _, section := range splitSections(doc.Content) {
			if skippedSections[strings.ToLower(section.title)] {
				continue
			}
			if len(concepts.items) < maxConcepts {
				concepts.add(section.title)
			}
			if section.level == 2 && len(k.Capabilities) < maxCapabilities {
				tag := slug(section.title)
				if tag != "" && !capTags.seen[tag] {
					capTags.add(tag)
					k.Capabilities = append(k.Capabilities, Capability{
						Tag:         tag,
						Description: firstParagraph(section.body, 200),
					})
				}
			}
		}

		for _, match := range codeFencePattern.FindAllStringSubmatch(doc.Content, -1) {
			lang := normalizeLanguage(match[1])
			if !nonStackLanguages[lang] {
				stack.add(lang)
			}
			code := strings.TrimSpace(match[2])
			if len(k.CodeExamples) < maxExamples && len(code) > 20 && len(code) < 4000 {
				k.CodeExamples = append(k.CodeExamples, CodeExample{Language: lang, Code: code, Source: doc.Location})
			}
		}

		prose := codeFencePattern.ReplaceAllString(doc.Content, "")
		for _, kw := range techKeywords {
			if kw.pattern.MatchString(prose) {
				stack.add(kw.name)
			}
		}

		if k.Summary == "" {
			k.Summary = firstParagraph(doc.Content, maxSummary)
		}
	}

	k.Concepts = concepts.items
	k.TechStack = stack.items
}

func normalizeLanguage(lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if alias, ok := languageAliases[lang]; ok {
		return alias
	}
	return lang
}

type section struct {
	level int
	title string
	body  string
}

// splitSections splits markdown at headings, ignoring lines inside code
// fences.
func splitSections(content string) []section {
	var sections []section
	var current *section
	var body strings.Builder
	inFence := false

	flush := func() {
		if current != nil {
			current.body = strings.TrimSpace(body.String())
			sections = append(sections, *current)
		}
		body.Reset()
	}

	for _, line := range strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
		}
		if !inFence {
			if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
				flush()
				current = &section{level: len(m[1]), title: strings.Trim(m[2], "`*_ ")}
				continue
			}
		}
		body.WriteString(line)
		body.WriteString("\n")
	}
	flush()
	return sections
}

// firstHeading returns the text of the first markdown heading.
func firstHeading(content string) string {
	for _, s := range splitSections(content) {
		if s.title != "" {
			return s.title
		}
	}
	return ""
}

// firstParagraph returns the first prose paragraph, skipping headings, fences,
// badges, and list items.
func firstParagraph(content string, maxLen int) string {
	var para strings.Builder
	inFence := false
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}
		skip := strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "![") ||
			strings.HasPrefix(trimmed, "[![") || strings.HasPrefix(trimmed, ">") ||
			strings.HasPrefix(trimmed, "- ") || strings.HasPrefix(trimmed, "* ") ||
			strings.HasPrefix(trimmed, "|") || strings.HasPrefix(trimmed, "<")
		if trimmed == "" || skip {
			if para.Len() > 0 {
				break
			}
			continue
		}
		if para.Len() > 0 {
			para.WriteString(" ")
		}
		para.WriteString(trimmed)
		if para.Len() >= maxLen {
			break
		}
	}
	s := para.String()
	if len(s) > maxLen {
		s = strings.TrimSpace(s[:maxLen]) + "..."
	}
	return s
}

func slug(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}
