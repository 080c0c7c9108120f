package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specforge/internal/logging"
	"specforge/internal/schema"
	"specforge/internal/watch"
)

var validateWatch bool

var validateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate templates against the schema",
	Long: `Validates a template file, or every template under a directory that
matches the configured watch pattern. Structural errors fail the command;
warnings are advisory.

With --watch, revalidates files as they change until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVarP(&validateWatch, "watch", "w", false, "Revalidate on change")
}

func runValidate(cmd *cobra.Command, args []string) error {
	c := currentConfig()
	target := args[0]
	info, err := os.Stat(target)
	if err != nil {
		return err
	}

	v, err := schema.NewValidator()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if validateWatch {
		return watchValidate(cmd, v, target, info.IsDir())
	}

	files := []string{target}
	if info.IsDir() {
		files, err = templateFiles(target, c.Watch.Pattern)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			return fmt.Errorf("no templates matching %q under %s", c.Watch.Pattern, target)
		}
	}

	var failed int
	for _, f := range files {
		ok, err := validateOne(out, v, f)
		if err != nil {
			return err
		}
		if !ok {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d templates failed validation", failed, len(files))
	}
	return nil
}

// templateFiles lists files under dir matching pattern, sorted.
func templateFiles(dir, pattern string) ([]string, error) {
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	files := make([]string, len(matches))
	for i, m := range matches {
		files[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	sort.Strings(files)
	return files, nil
}

// validateOne prints the outcome for path and reports whether it is valid.
func validateOne(out io.Writer, v *schema.Validator, path string) (bool, error) {
	result, err := v.ValidateFile(path)
	if err != nil {
		return false, err
	}
	if result.Valid() {
		fmt.Fprintf(out, "✓ %s\n", path)
	} else {
		fmt.Fprintf(out, "✗ %s\n", path)
	}
	printIssues(out, "error", result.Errors)
	printIssues(out, "warning", result.Warnings)
	return result.Valid(), nil
}

func printIssues(out io.Writer, kind string, issues []schema.Issue) {
	for _, issue := range issues {
		fmt.Fprintf(out, "  %s: %s\n", kind, issue)
	}
}

func watchValidate(cmd *cobra.Command, v *schema.Validator, target string, isDir bool) error {
	c := currentConfig()
	root, pattern := target, c.Watch.Pattern
	if !isDir {
		root, pattern = filepath.Dir(target), doublestar.EscapeMeta(filepath.Base(target))
	}

	log := loggers.Get(logging.CategoryWatch)
	w, err := watch.New(pattern, c.GetWatchDebounce(), log)
	if err != nil {
		return err
	}

	ctx, cancel := commandContext()
	defer cancel()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Watching %s for %s (Ctrl+C to stop)\n", root, pattern)
	return w.Run(ctx, root, func(ctx context.Context, path string) {
		if _, err := validateOne(out, v, path); err != nil {
			log.Warn("validation failed", zap.String("path", path), zap.Error(err))
			fmt.Fprintf(out, "✗ %s\n  error: %v\n", path, err)
		}
	})
}
