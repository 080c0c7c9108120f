package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specforge/internal/benchmark"
	"specforge/internal/generate"
	"specforge/internal/logging"
	"specforge/internal/schema"
	"specforge/internal/template"
)

var (
	mintOut           string
	mintName          string
	mintBenchmarkDB   string
	mintBenchmarkFile string
)

var mintCmd = &cobra.Command{
	Use:   "mint <template>",
	Short: "Write an immutable snapshot of a template",
	Long: `Validates the template and writes <name>-<version>-snapshot.json5 with a
.meta.json sidecar. When benchmark runs for the template are available, from
--benchmark-db (SQLite) or --benchmark-file (JSON), their baseline versus
specialist comparison is embedded in the snapshot.`,
	Args: cobra.ExactArgs(1),
	RunE: runMint,
}

func init() {
	mintCmd.Flags().StringVarP(&mintOut, "out", "o", "", "Snapshot directory (default from config)")
	mintCmd.Flags().StringVar(&mintName, "name", "", "Snapshot base name")
	mintCmd.Flags().StringVar(&mintBenchmarkDB, "benchmark-db", "", "SQLite benchmark database (default from config)")
	mintCmd.Flags().StringVar(&mintBenchmarkFile, "benchmark-file", "", "JSON file of benchmark runs")
	mintCmd.MarkFlagsMutuallyExclusive("benchmark-db", "benchmark-file")
}

func runMint(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	path := args[0]
	out := cmd.OutOrStdout()

	v, err := schema.NewValidator()
	if err != nil {
		return err
	}
	ok, err := validateOne(out, v, path)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("refusing to mint invalid template %s", path)
	}

	t, err := template.Load(path)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	runs, err := loadBenchmarkRuns(ctx, firstNonEmpty(mintBenchmarkDB, c.Benchmark.Database), mintBenchmarkFile, t.Name)
	if err != nil {
		return err
	}
	var comparison *benchmark.Comparison
	if runs != nil {
		comparison, err = benchmark.Compare(runs)
		if errors.Is(err, benchmark.ErrInsufficientRuns) {
			loggers.Get(logging.CategoryBenchmark).Warn("minting without benchmark data", zap.String("template", t.Name), zap.Error(err))
			fmt.Fprintf(out, "warning: %v; minting without benchmark data\n", err)
		} else if err != nil {
			return err
		}
	}

	meta, err := generate.New(loggers.Get(logging.CategoryGenerate)).Mint(ctx, t, generate.MintOptions{
		OutDir:      firstNonEmpty(mintOut, c.Output.Dir),
		Name:        mintName,
		Comparison:  comparison,
		ToolVersion: buildVersion,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Minted %s %s (%s)\n", meta.Template.Name, meta.Template.Version, meta.SnapshotID)
	fmt.Fprintf(out, "  wrote %s\n  wrote %s\n", meta.Files.Template, meta.Files.Metadata)
	if meta.Comparison != nil {
		fmt.Fprintf(out, "  baseline %.2f, specialist %.2f (%+.1f%%)\n",
			meta.Comparison.BaselineAvg, meta.Comparison.SpecialistAvg, meta.Comparison.ImprovementPct)
	}
	return nil
}

// loadBenchmarkRuns returns nil when no benchmark source is configured.
func loadBenchmarkRuns(ctx context.Context, dbPath, filePath, name string) ([]benchmark.Run, error) {
	switch {
	case filePath != "":
		runs, err := benchmark.LoadRunsFile(filePath)
		if err != nil {
			return nil, err
		}
		return benchmark.FilterTemplate(runs, name), nil
	case dbPath != "":
		store, err := benchmark.OpenSQLite(dbPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		return store.Runs(ctx, name)
	default:
		return nil, nil
	}
}
