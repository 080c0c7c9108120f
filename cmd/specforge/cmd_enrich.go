package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specforge/internal/extract"
	"specforge/internal/generate"
	"specforge/internal/logging"
	"specforge/internal/template"
	"specforge/internal/version"
)

var (
	enrichForce    bool
	enrichTiers    bool
	enrichNoDocs   bool
	enrichBaseTask string
	enrichScenario string
	enrichBump     string
)

var enrichCmd = &cobra.Command{
	Use:   "enrich <template>",
	Short: "Enrich a template and write its enriched derivative",
	Long: `Enriches each documentation entry of a base template with an LLM
summary, key concepts, and tags, optionally generates tier prompts, and writes
<name>.enriched-<version>.json5 next to the base template.

Entries that are already enriched are skipped unless --force is given. An
existing derivative is never overwritten without --force.`,
	Args: cobra.ExactArgs(1),
	RunE: runEnrich,
}

func init() {
	enrichCmd.Flags().BoolVar(&enrichForce, "force", false, "Re-enrich enriched entries and overwrite an existing derivative")
	enrichCmd.Flags().BoolVar(&enrichTiers, "tiers", false, "Generate tier prompts")
	enrichCmd.Flags().BoolVar(&enrichNoDocs, "no-docs", false, "Skip documentation enrichment (with --tiers)")
	enrichCmd.Flags().StringVar(&enrichBaseTask, "base-task", "", "Task the tier prompts are written for")
	enrichCmd.Flags().StringVar(&enrichScenario, "scenario", "", "Scenario identifier for tier prompts")
	enrichCmd.Flags().StringVar(&enrichBump, "bump", "none", "Version bump to record: none, patch, minor, major")
}

// documentReader resolves relative path locators against the template's
// directory before fetching.
func documentReader(x *extract.Extractor, templateDir string) func(ctx context.Context, locator string) (string, error) {
	return func(ctx context.Context, locator string) (string, error) {
		if !strings.Contains(locator, "://") && !filepath.IsAbs(locator) {
			locator = filepath.Join(templateDir, locator)
		}
		return x.FetchDocument(ctx, locator)
	}
}

func runEnrich(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	path := args[0]
	if enrichNoDocs && !enrichTiers {
		return fmt.Errorf("--no-docs leaves nothing to do without --tiers")
	}

	var bump template.BumpType
	if enrichBump != "" && enrichBump != "none" {
		b, err := version.ParseBumpType(enrichBump)
		if err != nil {
			return err
		}
		bump = b
	}

	base, err := template.Load(path)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	enricher, err := newEnricher(ctx, c, documentReader(newExtractor(c), filepath.Dir(path)))
	if err != nil {
		return err
	}
	result, err := enricher.Enrich(ctx, base, enrichOptions(c, !enrichNoDocs, enrichTiers, enrichBaseTask, enrichScenario, enrichForce))
	if err != nil {
		return err
	}

	enriched := generate.EmbedTiers(result.Template, result.Tiers)
	if bump != "" {
		enriched, err = version.Bump(enriched, version.Request{
			Type:     bump,
			Message:  fmt.Sprintf("Enriched %d documentation entries", result.Enriched),
			Category: template.CategoryEnrichment,
		}, time.Now())
		if err != nil {
			return err
		}
	}

	written, err := generate.New(loggers.Get(logging.CategoryGenerate)).WriteEnriched(enriched, path, enrichForce)
	if err != nil {
		return err
	}
	logger.Info("enriched template written", zap.String("path", written))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Wrote %s\n", written)
	fmt.Fprintf(out, "  enriched %d, skipped %d, failed %d\n", result.Enriched, result.Skipped, len(result.Failures))
	for _, f := range result.Failures {
		label := f.Locator
		if f.Tier != "" {
			label = "tier " + f.Tier
		}
		fmt.Fprintf(out, "  failed %s: %s\n", label, f.Error)
	}
	if result.Tiers != nil {
		fmt.Fprintf(out, "  tier prompts for task %q: %d\n", result.Tiers.Task, len(result.Tiers.Prompts))
	}
	return nil
}
