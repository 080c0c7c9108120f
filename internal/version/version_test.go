package version

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"specforge/internal/template"
)

var bumpTypes = []template.BumpType{template.BumpMajor, template.BumpMinor, template.BumpPatch}

func TestParse(t *testing.T) {
	v, err := Parse("1.2.3-rc.1+build.5")
	require.NoError(t, err)
	assert.Equal(t, Version{Major: 1, Minor: 2, Patch: 3, Prerelease: "rc.1", Build: "build.5"}, v)
	assert.Equal(t, "1.2.3-rc.1+build.5", v.String())

	for _, bad := range []string{"", "1", "1.2", "v1.2.3", "01.2.3", "1.2.3.4", "one.two.three", " 1.2.3"} {
		_, err := Parse(bad)
		var invalid *InvalidVersionError
		assert.True(t, errors.As(err, &invalid), "expected InvalidVersionError for %q", bad)
	}
}

func TestBumpVersion(t *testing.T) {
	tests := []struct {
		current string
		bump    template.BumpType
		want    string
	}{
		{"1.0.0", template.BumpMinor, "1.1.0"},
		{"1.0.0", template.BumpPatch, "1.0.1"},
		{"1.9.9", template.BumpMajor, "2.0.0"},
		{"0.1.7", template.BumpMinor, "0.2.0"},
		{"1.2.3-rc.1", template.BumpPatch, "1.2.3"},
		{"1.2.0-rc.1", template.BumpMinor, "1.2.0"},
		{"1.2.3-rc.1", template.BumpMinor, "1.3.0"},
		{"2.0.0-beta", template.BumpMajor, "2.0.0"},
		{"2.1.0-beta", template.BumpMajor, "3.0.0"},
		{"1.0.0+sha.abc", template.BumpPatch, "1.0.1"},
	}
	for _, tt := range tests {
		got, err := BumpVersion(tt.current, tt.bump)
		require.NoError(t, err, "%s + %s", tt.current, tt.bump)
		assert.Equal(t, tt.want, got, "%s + %s", tt.current, tt.bump)
	}
}

func TestBumpVersion_StrictlyIncreasesAndRoundTrips(t *testing.T) {
	bases := []string{"0.0.0", "0.0.1", "1.0.0", "1.2.3", "1.2.3-alpha", "1.2.0-rc.2", "3.0.0-0", "10.20.30+meta"}
	for _, base := range bases {
		for _, bump := range bumpTypes {
			next, err := BumpVersion(base, bump)
			require.NoError(t, err)

			cmpResult, err := Compare(next, base)
			require.NoError(t, err)
			assert.Equal(t, 1, cmpResult, "%s + %s = %s must be greater", base, bump, next)

			parsed, err := Parse(next)
			require.NoError(t, err)
			assert.Equal(t, next, parsed.String())
		}
	}
}

func TestBumpVersion_InvalidCurrent(t *testing.T) {
	_, err := BumpVersion("latest", template.BumpPatch)
	var invalid *InvalidVersionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "latest", invalid.Version)
	assert.Contains(t, err.Error(), "latest")
}

func TestBumpVersion_ComponentOverflow(t *testing.T) {
	for current, bump := range map[string]template.BumpType{
		"18446744073709551615.0.0": template.BumpMajor,
		"1.18446744073709551615.0": template.BumpMinor,
		"1.2.18446744073709551615": template.BumpPatch,
	} {
		_, err := BumpVersion(current, bump)
		var invalid *InvalidVersionError
		require.ErrorAs(t, err, &invalid, current)
		assert.Equal(t, current, invalid.Version)
	}

	next, err := BumpVersion("1.18446744073709551615.0", template.BumpMajor)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", next)
}

func TestParseBumpType(t *testing.T) {
	got, err := ParseBumpType("")
	require.NoError(t, err)
	assert.Equal(t, template.BumpPatch, got)

	got, err = ParseBumpType("MAJOR")
	require.NoError(t, err)
	assert.Equal(t, template.BumpMajor, got)

	_, err = ParseBumpType("huge")
	assert.Error(t, err)
}

func TestInferCategory(t *testing.T) {
	tests := map[string]template.ChangeCategory{
		"add docs":                       template.CategoryDocumentation,
		"Re-enrich documentation":        template.CategoryEnrichment,
		"tighten system prompt":          template.CategoryPrompt,
		"update persona values":          template.CategoryPersona,
		"new capabilities for auth":      template.CategoryCapabilities,
		"fix typo":                       template.CategoryFix,
		"bugfix in description handling": template.CategoryFix,
		"misc":                           template.CategoryOther,
	}
	for msg, want := range tests {
		assert.Equal(t, want, InferCategory(msg), msg)
	}
}

func TestNewChange_ExplicitCategoryWins(t *testing.T) {
	change := NewChange("add docs", template.CategoryPersona, true, "rename field")
	assert.Equal(t, template.CategoryPersona, change.Category)
	assert.True(t, change.Breaking)
	assert.Equal(t, "rename field", change.Migration)

	assert.Equal(t, template.CategoryDocumentation, NewChange("add docs", "", false, "").Category)
}

func TestParseCategory(t *testing.T) {
	c, err := ParseCategory("Fix")
	require.NoError(t, err)
	assert.Equal(t, template.CategoryFix, c)

	c, err = ParseCategory("")
	require.NoError(t, err)
	assert.Empty(t, c)

	_, err = ParseCategory("chore")
	assert.Error(t, err)
}

func TestUpdateVersionMetadata_Synthesizes(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	meta := UpdateVersionMetadata(nil, Update{
		Version: "1.0.0",
		Type:    template.BumpPatch,
		Changes: []template.ChangeEntry{NewChange("initial", template.CategoryOther, false, "")},
		Date:    now,
	})

	require.Len(t, meta.Changelog, 1)
	assert.Equal(t, "1.0.0", meta.Changelog[0].Version)
	assert.Equal(t, now, meta.CreatedAt)
	assert.Equal(t, now, meta.UpdatedAt)
	assert.Nil(t, meta.LastEnrichedAt)
}

func TestUpdateVersionMetadata_SequenceInvariants(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	var meta *template.VersionMetadata
	var snapshots []template.VersionChange
	current := "1.0.0"

	for i := 0; i < 6; i++ {
		bump := bumpTypes[i%len(bumpTypes)]
		next, err := BumpVersion(current, bump)
		require.NoError(t, err)

		date := start.Add(time.Duration(i) * time.Hour)
		if i == 4 {
			// Clock skew: an earlier timestamp must not break date ordering.
			date = start.Add(-time.Hour)
		}
		previous := meta
		meta = UpdateVersionMetadata(meta, Update{
			Version: next,
			Type:    bump,
			Changes: []template.ChangeEntry{NewChange("change", "", i == 2, "")},
			Date:    date,
		})
		current = next

		if previous != nil {
			assert.Len(t, previous.Changelog, i, "input metadata must not grow")
		}
		require.Len(t, meta.Changelog, i+1)
		assert.Equal(t, next, meta.Changelog[0].Version)

		// Earlier entries keep their exact values.
		if diff := cmp.Diff(snapshots, meta.Changelog[1:], cmpopts.EquateEmpty()); diff != "" {
			t.Fatalf("prior changelog entries changed (-want +got):\n%s", diff)
		}
		snapshots = append([]template.VersionChange{meta.Changelog[0]}, snapshots...)
	}

	for i := len(meta.Changelog) - 1; i > 0; i-- {
		older, newer := meta.Changelog[i], meta.Changelog[i-1]
		assert.False(t, newer.Date.Before(older.Date), "dates must be non-decreasing oldest to newest")
	}

	require.Len(t, meta.BreakingChanges, 1)
	assert.Equal(t, meta.Changelog[3].Version, meta.BreakingChanges[0].Version)
}

func TestUpdateVersionMetadata_KeepsBreakingChangeExtras(t *testing.T) {
	date := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	meta := UpdateVersionMetadata(nil, Update{
		Version: "2.0.0", Type: template.BumpMajor, Date: date,
		Changes: []template.ChangeEntry{NewChange("Rename tables", "", true, "Update references")},
	})
	require.Len(t, meta.BreakingChanges, 1)
	meta.BreakingChanges[0].Extra = map[string]any{"severity": "high"}

	next := UpdateVersionMetadata(meta, Update{
		Version: "2.0.1", Type: template.BumpPatch, Date: date,
		Changes: []template.ChangeEntry{NewChange("Fix typo", "", false, "")},
	})
	require.Len(t, next.BreakingChanges, 1)
	assert.Equal(t, "high", next.BreakingChanges[0].Extra["severity"])
}

func TestUpdateVersionMetadata_LastEnrichedAt(t *testing.T) {
	t1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := t1.Add(24 * time.Hour)

	meta := UpdateVersionMetadata(nil, Update{
		Version: "1.0.1", Type: template.BumpPatch, Date: t1,
		Changes: []template.ChangeEntry{NewChange("enrich docs", "", false, "")},
	})
	require.NotNil(t, meta.LastEnrichedAt)
	assert.Equal(t, t1, *meta.LastEnrichedAt)

	meta = UpdateVersionMetadata(meta, Update{
		Version: "1.0.2", Type: template.BumpPatch, Date: t2,
		Changes: []template.ChangeEntry{NewChange("fix typo", "", false, "")},
	})
	assert.Equal(t, t1, *meta.LastEnrichedAt)
	assert.Equal(t, t2, meta.UpdatedAt)
}

func TestBump_MinorAddDocsScenario(t *testing.T) {
	tmpl := &template.SpecialistTemplate{Name: "x", Version: "1.0.0"}
	now := time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

	out, err := Bump(tmpl, Request{Type: template.BumpMinor, Message: "add docs"}, now)
	require.NoError(t, err)

	assert.Equal(t, "1.1.0", out.Version)
	require.NotNil(t, out.VersionMetadata)
	require.Len(t, out.VersionMetadata.Changelog, 1)
	entry := out.VersionMetadata.Changelog[0]
	assert.Equal(t, "1.1.0", entry.Version)
	assert.Equal(t, template.BumpMinor, entry.Type)
	require.Len(t, entry.Changes, 1)
	assert.Equal(t, template.CategoryDocumentation, entry.Changes[0].Category)

	assert.Equal(t, "1.0.0", tmpl.Version, "input template must not change")
	assert.Nil(t, tmpl.VersionMetadata)
}

func TestBump_Errors(t *testing.T) {
	_, err := Bump(&template.SpecialistTemplate{Version: "1.0.0"}, Request{}, time.Now())
	assert.ErrorIs(t, err, ErrNoChanges)

	_, err = Bump(&template.SpecialistTemplate{Version: "one"}, Request{Message: "x"}, time.Now())
	var invalid *InvalidVersionError
	assert.ErrorAs(t, err, &invalid)
}

func TestHistory(t *testing.T) {
	meta := &template.VersionMetadata{Changelog: []template.VersionChange{
		{Version: "1.2.0", Changes: []template.ChangeEntry{{Description: "a"}, {Description: "b", Breaking: true}}},
		{Version: "1.1.0", Changes: []template.ChangeEntry{{Description: "c"}}},
		{Version: "1.0.0", Changes: []template.ChangeEntry{{Description: "d", Breaking: true}}},
	}}

	assert.Len(t, History(meta, 0, false), 3)
	assert.Len(t, History(meta, 2, false), 2)

	breaking := History(meta, 0, true)
	require.Len(t, breaking, 2)
	assert.Equal(t, "1.2.0", breaking[0].Version)
	require.Len(t, breaking[0].Changes, 1)
	assert.Equal(t, "b", breaking[0].Changes[0].Description)
	assert.Len(t, meta.Changelog[0].Changes, 2, "History must not modify metadata")

	assert.Len(t, History(meta, 1, true), 1)
	assert.Nil(t, History(nil, 5, false))
}

func TestMarkdown(t *testing.T) {
	entries := []template.VersionChange{{
		Version: "2.0.0",
		Type:    template.BumpMajor,
		Date:    time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC),
		Author:  "sam",
		Changes: []template.ChangeEntry{{Category: template.CategoryPrompt, Description: "rewrite prompts", Breaking: true, Migration: "regenerate tiers"}},
	}}
	md := Markdown("convex", entries)
	assert.Contains(t, md, "# convex changelog")
	assert.Contains(t, md, "## 2.0.0 (major) - 2025-02-03")
	assert.Contains(t, md, "**BREAKING**")
	assert.Contains(t, md, "Migration: regenerate tiers")

	assert.Contains(t, Markdown("x", nil), "No changelog entries")
}
