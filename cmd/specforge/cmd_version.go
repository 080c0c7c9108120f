package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specforge/internal/template"
	"specforge/internal/version"
)

var (
	bumpMajor     bool
	bumpMinor     bool
	bumpPatch     bool
	bumpMessage   string
	bumpCategory  string
	bumpBreaking  bool
	bumpMigration string
	bumpAuthor    string

	changelogLimit        int
	changelogBreakingOnly bool
	changelogRender       bool
	changelogWidth        int
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Manage template versions",
}

var versionBumpCmd = &cobra.Command{
	Use:   "bump <template>",
	Short: "Bump a template version and record the change",
	Long: `Increments the template's semantic version, prepends a changelog entry,
and rewrites the template in place. Defaults to a patch bump.

Example:
  specforge version bump convex-template.json5 --minor -m "Add schema recipes" --category documentation`,
	Args: cobra.ExactArgs(1),
	RunE: runVersionBump,
}

var changelogCmd = &cobra.Command{
	Use:   "changelog <template>",
	Short: "Show a template's changelog",
	Args:  cobra.ExactArgs(1),
	RunE:  runChangelog,
}

func init() {
	versionBumpCmd.Flags().BoolVar(&bumpMajor, "major", false, "Major bump")
	versionBumpCmd.Flags().BoolVar(&bumpMinor, "minor", false, "Minor bump")
	versionBumpCmd.Flags().BoolVar(&bumpPatch, "patch", false, "Patch bump (default)")
	versionBumpCmd.MarkFlagsMutuallyExclusive("major", "minor", "patch")
	versionBumpCmd.Flags().StringVarP(&bumpMessage, "message", "m", "", "Change description (required)")
	versionBumpCmd.Flags().StringVar(&bumpCategory, "category", "", "Change category (default: inferred from the message)")
	versionBumpCmd.Flags().BoolVar(&bumpBreaking, "breaking", false, "Mark the change as breaking")
	versionBumpCmd.Flags().StringVar(&bumpMigration, "migration", "", "Migration guidance for a breaking change")
	versionBumpCmd.Flags().StringVar(&bumpAuthor, "author", "", "Change author")
	_ = versionBumpCmd.MarkFlagRequired("message")
	versionCmd.AddCommand(versionBumpCmd)

	changelogCmd.Flags().IntVarP(&changelogLimit, "limit", "n", 0, "Show at most n entries")
	changelogCmd.Flags().BoolVar(&changelogBreakingOnly, "breaking-only", false, "Show only breaking changes")
	changelogCmd.Flags().BoolVar(&changelogRender, "render", false, "Render markdown for the terminal")
	changelogCmd.Flags().IntVar(&changelogWidth, "width", 100, "Word wrap width with --render")
}

func selectedBump() template.BumpType {
	switch {
	case bumpMajor:
		return template.BumpMajor
	case bumpMinor:
		return template.BumpMinor
	default:
		return template.BumpPatch
	}
}

func runVersionBump(cmd *cobra.Command, args []string) error {
	path := args[0]
	var category template.ChangeCategory
	if bumpCategory != "" {
		c, err := version.ParseCategory(bumpCategory)
		if err != nil {
			return err
		}
		category = c
	}

	t, err := template.Load(path)
	if err != nil {
		return err
	}
	previous := t.Version

	bumped, err := version.Bump(t, version.Request{
		Type:      selectedBump(),
		Message:   bumpMessage,
		Category:  category,
		Breaking:  bumpBreaking,
		Migration: bumpMigration,
		Author:    bumpAuthor,
	}, time.Now())
	if err != nil {
		var invalid *version.InvalidVersionError
		if errors.As(err, &invalid) {
			invalid.Path = path
		}
		return err
	}

	if err := template.Save(path, bumped); err != nil {
		return err
	}
	logger.Info("template version bumped",
		zap.String("path", path),
		zap.String("from", previous),
		zap.String("to", bumped.Version))

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s\n", bumped.Name, previous, bumped.Version)
	return nil
}

func runChangelog(cmd *cobra.Command, args []string) error {
	t, err := template.Load(args[0])
	if err != nil {
		return err
	}
	md := version.Markdown(t.Name, version.History(t.VersionMetadata, changelogLimit, changelogBreakingOnly))

	if changelogRender {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(changelogWidth),
		)
		if err != nil {
			return fmt.Errorf("failed to create markdown renderer: %w", err)
		}
		rendered, err := renderer.Render(md)
		if err != nil {
			return fmt.Errorf("failed to render changelog: %w", err)
		}
		md = rendered
	}

	fmt.Fprint(cmd.OutOrStdout(), md)
	return nil
}
