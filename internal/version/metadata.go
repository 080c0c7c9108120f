package version

import (
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"specforge/internal/template"
)

// Update describes one version transition to record.
type Update struct {
	Version string
	Type    template.BumpType
	Changes []template.ChangeEntry
	Author  string
	Date    time.Time // zero means now
}

// UpdateVersionMetadata returns new metadata with a changelog entry for u
// prepended. current is never modified; prior entries are carried over
// unchanged and in order. With no prior metadata a fresh ledger holding a single
// entry is synthesized.
func UpdateVersionMetadata(current *template.VersionMetadata, u Update) *template.VersionMetadata {
	date := u.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}

	var next template.VersionMetadata
	if current != nil {
		next = *current
		next.Extra = maps.Clone(current.Extra)
		if current.LastEnrichedAt != nil {
			last := *current.LastEnrichedAt
			next.LastEnrichedAt = &last
		}
		// Walking oldest to newest, dates never decrease.
		if len(current.Changelog) > 0 && date.Before(current.Changelog[0].Date) {
			date = current.Changelog[0].Date
		}
	} else {
		next.CreatedAt = date
	}

	entry := template.VersionChange{
		Version: u.Version,
		Date:    date,
		Type:    u.Type,
		Changes: append([]template.ChangeEntry(nil), u.Changes...),
		Author:  u.Author,
	}

	changelog := make([]template.VersionChange, 0, len(next.Changelog)+1)
	changelog = append(changelog, entry)
	changelog = append(changelog, next.Changelog...)
	next.Changelog = changelog
	next.UpdatedAt = date

	for _, change := range u.Changes {
		if change.Category == template.CategoryEnrichment {
			enrichedAt := date
			next.LastEnrichedAt = &enrichedAt
			break
		}
	}

	next.BreakingChanges = BreakingChanges(&next)
	return &next
}

// NewChange builds a change entry. An explicit category wins; without one the
// category is inferred from the message text.
func NewChange(message string, category template.ChangeCategory, breaking bool, migration string) template.ChangeEntry {
	if category == "" {
		category = InferCategory(message)
	}
	return template.ChangeEntry{
		Category:    category,
		Description: message,
		Breaking:    breaking,
		Migration:   migration,
	}
}

// ParseCategory validates a user-supplied category name. An empty name returns
// an empty category so callers fall back to inference.
func ParseCategory(s string) (template.ChangeCategory, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", nil
	}
	for _, c := range template.ChangeCategories {
		if string(c) == s {
			return c, nil
		}
	}
	names := make([]string, len(template.ChangeCategories))
	for i, c := range template.ChangeCategories {
		names[i] = string(c)
	}
	return "", fmt.Errorf("unknown change category %q (valid: %s)", s, strings.Join(names, ", "))
}

var categoryKeywords = []struct {
	keywords []string
	category template.ChangeCategory
}{
	{[]string{"enrich"}, template.CategoryEnrichment},
	{[]string{"prompt"}, template.CategoryPrompt},
	{[]string{"doc"}, template.CategoryDocumentation},
	{[]string{"persona"}, template.CategoryPersona},
	{[]string{"capabilit"}, template.CategoryCapabilities},
	{[]string{"fix", "bug"}, template.CategoryFix},
}

// InferCategory guesses a category from free text by keyword, first match in
// a fixed order. It is a fallback for callers that do not pass a category.
func InferCategory(message string) template.ChangeCategory {
	lower := strings.ToLower(message)
	for _, rule := range categoryKeywords {
		for _, kw := range rule.keywords {
			if strings.Contains(lower, kw) {
				return rule.category
			}
		}
	}
	return template.CategoryOther
}

// BreakingChanges derives the breaking-change view from the changelog, newest
// first. Unknown keys on an existing view entry with the same version and
// description are carried over.
func BreakingChanges(meta *template.VersionMetadata) []template.BreakingChange {
	if meta == nil {
		return nil
	}
	extras := make(map[[2]string]map[string]any)
	for _, b := range meta.BreakingChanges {
		if len(b.Extra) > 0 {
			extras[[2]string{b.Version, b.Description}] = b.Extra
		}
	}
	var out []template.BreakingChange
	for _, entry := range meta.Changelog {
		for _, change := range entry.Changes {
			if !change.Breaking {
				continue
			}
			out = append(out, template.BreakingChange{
				Version:     entry.Version,
				Date:        entry.Date,
				Description: change.Description,
				Migration:   change.Migration,
				Extra:       maps.Clone(extras[[2]string{entry.Version, change.Description}]),
			})
		}
	}
	return out
}

// History returns up to limit changelog entries, newest first. With
// breakingOnly, only entries containing a breaking change are returned and
// their non-breaking changes are omitted. limit <= 0 means no limit.
func History(meta *template.VersionMetadata, limit int, breakingOnly bool) []template.VersionChange {
	if meta == nil {
		return nil
	}
	var out []template.VersionChange
	for _, entry := range meta.Changelog {
		if limit > 0 && len(out) >= limit {
			break
		}
		if !breakingOnly {
			out = append(out, entry)
			continue
		}
		var breaking []template.ChangeEntry
		for _, change := range entry.Changes {
			if change.Breaking {
				breaking = append(breaking, change)
			}
		}
		if len(breaking) == 0 {
			continue
		}
		entry.Changes = breaking
		out = append(out, entry)
	}
	return out
}

// Request is a version bump to apply to a template.
type Request struct {
	Type      template.BumpType
	Message   string
	Category  template.ChangeCategory // empty means infer from Message
	Breaking  bool
	Migration string
	Author    string
	// Changes are recorded in addition to the entry built from Message.
	Changes []template.ChangeEntry
}

// ErrNoChanges is returned when a bump request describes no change.
var ErrNoChanges = errors.New("a version bump needs at least one change description")

// Bump returns a copy of t at the next version with the transition recorded in
// its changelog. t is not modified.
func Bump(t *template.SpecialistTemplate, req Request, now time.Time) (*template.SpecialistTemplate, error) {
	changes := make([]template.ChangeEntry, 0, len(req.Changes)+1)
	if strings.TrimSpace(req.Message) != "" {
		changes = append(changes, NewChange(req.Message, req.Category, req.Breaking, req.Migration))
	}
	changes = append(changes, req.Changes...)
	if len(changes) == 0 {
		return nil, ErrNoChanges
	}

	bump := req.Type
	if bump == "" {
		bump = template.BumpPatch
	}
	next, err := BumpVersion(t.Version, bump)
	if err != nil {
		return nil, err
	}

	out := t.Clone()
	out.Version = next
	out.VersionMetadata = UpdateVersionMetadata(t.VersionMetadata, Update{
		Version: next,
		Type:    bump,
		Changes: changes,
		Author:  req.Author,
		Date:    now,
	})
	return out, nil
}
