package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specforge/internal/config"
	"specforge/internal/engine"
	"specforge/internal/enrich"
	"specforge/internal/extract"
	"specforge/internal/generate"
	"specforge/internal/llm"
	"specforge/internal/logging"
	"specforge/internal/structure"
	"specforge/internal/template"
)

var (
	createName            string
	createVersion         string
	createPurpose         string
	createSources         []string
	createModels          []string
	createDepth           string
	createEnrich          bool
	createTiers           bool
	createBaseTask        string
	createScenario        string
	createOut             string
	createFormat          string
	createAllowUnenriched bool
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a specialist template from documentation sources",
	Long: `Runs the full workflow: extract documentation from every --source,
structure a draft template, optionally enrich it, validate it, and write the
package to the output directory.

Sources:
  https://...          a documentation page
  llms:owner/repo      a repository's llms.txt (README fallback)
  ./docs, docs/**/*.md local files, directories, or globs

Example:
  specforge create --name convex --source https://docs.convex.dev --source llms:get-convex/convex-backend --enrich`,
	RunE: runCreate,
}

func init() {
	createCmd.Flags().StringVar(&createName, "name", "", "Specialist name (required)")
	createCmd.Flags().StringVar(&createVersion, "version", "", "Initial version (default 1.0.0)")
	createCmd.Flags().StringVar(&createPurpose, "purpose", "", "Persona purpose (default: synthesized)")
	createCmd.Flags().StringArrayVarP(&createSources, "source", "s", nil, "Documentation source (repeatable)")
	createCmd.Flags().StringArrayVar(&createModels, "model", nil, "Preferred model (repeatable)")
	createCmd.Flags().StringVar(&createDepth, "depth", "", "Extraction depth: shallow, standard, deep")
	createCmd.Flags().BoolVar(&createEnrich, "enrich", false, "Enrich documentation entries with the configured LLM")
	createCmd.Flags().BoolVar(&createTiers, "tiers", false, "Generate tiered task prompts (implies --enrich)")
	createCmd.Flags().StringVar(&createBaseTask, "base-task", "", "Task the tier prompts are written for")
	createCmd.Flags().StringVar(&createScenario, "scenario", "", "Scenario identifier for tier prompts")
	createCmd.Flags().StringVarP(&createOut, "out", "o", "", "Output directory (default from config)")
	createCmd.Flags().StringVar(&createFormat, "format", "", "Output format: json5, json, yaml")
	createCmd.Flags().BoolVar(&createAllowUnenriched, "allow-unenriched", false, "Continue without enrichment when no LLM key is configured")
	_ = createCmd.MarkFlagRequired("name")
}

// newExtractor builds an extractor from configuration.
func newExtractor(c *config.Config) *extract.Extractor {
	return extract.New(
		extract.WithHTTPClient(&http.Client{Timeout: c.GetExtractionTimeout()}),
		extract.WithMaxConcurrency(c.Extraction.MaxConcurrency),
		extract.WithUserAgent(c.Extraction.UserAgent),
		extract.WithLogger(loggers.Get(logging.CategoryExtract)),
	)
}

// newLLMClient is replaced in tests.
var newLLMClient = func(ctx context.Context, c config.LLMConfig, log *zap.Logger) (llm.Client, error) {
	return llm.NewClient(ctx, c, log)
}

func newEnricher(ctx context.Context, c *config.Config, reader enrich.DocumentReader) (*enrich.Enricher, error) {
	client, err := newLLMClient(ctx, c.LLM, loggers.Get(logging.CategoryLLM))
	if err != nil {
		return nil, err
	}
	return enrich.New(client, loggers.Get(logging.CategoryEnrich), enrich.WithDocumentReader(reader))
}

func enrichOptions(c *config.Config, docs, tiers bool, baseTask, scenario string, force bool) enrich.Options {
	return enrich.Options{
		EnrichDocumentation: docs,
		GenerateTiers:       tiers,
		BaseTask:            baseTask,
		Scenario:            scenario,
		Force:               force,
		Tiers:               c.Enrichment.Tiers,
		Concurrency:         c.Enrichment.Concurrency,
		MinInterval:         c.GetEnrichmentInterval(),
	}
}

func runCreate(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	ctx, cancel := commandContext()
	defer cancel()

	depth := extract.Depth(c.Extraction.Depth)
	if createDepth != "" {
		d, err := extract.ParseDepth(createDepth)
		if err != nil {
			return err
		}
		depth = d
	}
	format, err := template.ParseFormat(firstNonEmpty(createFormat, c.Output.Format))
	if err != nil {
		return err
	}

	extractor := newExtractor(c)
	eng, err := engine.New(
		engine.WithExtractor(extractor),
		engine.WithGenerator(generate.New(loggers.Get(logging.CategoryGenerate))),
		engine.WithLogger(loggers.Get(logging.CategoryEngine)),
		engine.WithEnricherFactory(func(ctx context.Context) (engine.Enricher, error) {
			enricher, err := newEnricher(ctx, c, extractor.FetchDocument)
			if err != nil {
				return nil, err
			}
			return enricher, nil
		}),
	)
	if err != nil {
		return err
	}

	pkg, err := eng.CreateSpecialist(ctx, engine.Config{
		Identity: structure.Identity{
			Name:    createName,
			Version: createVersion,
			Purpose: createPurpose,
			Models:  createModels,
		},
		Sources:         createSources,
		Depth:           depth,
		Enrich:          createEnrich || createTiers,
		Enrichment:      enrichOptions(c, createEnrich, createTiers, createBaseTask, createScenario, false),
		AllowUnenriched: createAllowUnenriched,
		Output:          generate.OutputConfig{Dir: firstNonEmpty(createOut, c.Output.Dir), Format: format},
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s %s\n", pkg.Template.Name, pkg.Template.Version)
	for _, f := range pkg.Package.Files {
		fmt.Fprintf(out, "  wrote %s\n", f)
	}
	for _, f := range pkg.Failures {
		fmt.Fprintf(out, "  skipped source %s: %s\n", f.Source, f.Error)
	}
	if pkg.Enrichment != nil {
		fmt.Fprintf(out, "  enriched %d documentation entries (%d failed)\n", pkg.Enrichment.Enriched, len(pkg.Enrichment.Failures))
	}
	if pkg.EnrichmentSkipped != "" {
		fmt.Fprintf(out, "  enrichment skipped: %s\n", pkg.EnrichmentSkipped)
	}
	printIssues(out, "warning", pkg.Validation.Warnings)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
