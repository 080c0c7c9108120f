package version

import (
	"fmt"
	"strings"

	"specforge/internal/template"
)

// Markdown renders changelog entries as a markdown document.
func Markdown(name string, entries []template.VersionChange) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s changelog\n\n", name)
	if len(entries) == 0 {
		sb.WriteString("_No changelog entries._\n")
		return sb.String()
	}

	for _, entry := range entries {
		fmt.Fprintf(&sb, "## %s (%s) - %s\n\n", entry.Version, entry.Type, entry.Date.Format("2006-01-02"))
		if entry.Author != "" {
			fmt.Fprintf(&sb, "_by %s_\n\n", entry.Author)
		}
		for _, change := range entry.Changes {
			marker := ""
			if change.Breaking {
				marker = " **BREAKING**"
			}
			fmt.Fprintf(&sb, "- `%s`%s %s\n", change.Category, marker, change.Description)
			if change.Migration != "" {
				fmt.Fprintf(&sb, "  - Migration: %s\n", change.Migration)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
