// Command specforge builds, enriches, versions, and validates specialist
// templates.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"specforge/internal/config"
	"specforge/internal/logging"
)

// buildVersion is set at build time with -ldflags "-X main.buildVersion=...".
var buildVersion = "dev"

var (
	// Global flags
	verbose    bool
	configPath string
	timeout    time.Duration

	cfg     *config.Config
	loggers *logging.Loggers
	logger  *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "specforge",
	Short: "Build and maintain specialist templates for coding agents",
	Long: `specforge turns documentation into versioned specialist templates:
a persona, capabilities, prompts, and documentation references that steer
an AI coding agent.

  create     extract, structure, enrich, validate, and generate a template
  validate   check a template against the schema
  enrich     enrich documentation entries and write the enriched derivative
  resolve    find the enriched derivative for a base template
  version    bump a template version and record the change
  changelog  show a template's changelog
  mint       write an immutable snapshot with benchmark results`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultConfigPath()
		}
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded

		loggers, err = logging.New(cfg.Logging, verbose)
		if err != nil {
			return err
		}
		logger = loggers.Root()
		logger.Debug("configuration loaded", zap.String("path", path))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if loggers != nil {
			_ = loggers.Sync()
		}
	},
}

func init() {
	rootCmd.Version = buildVersion
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: .specforge/config.yaml)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 10*time.Minute, "Operation timeout")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(changelogCmd)
	rootCmd.AddCommand(mintCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// commandContext applies --timeout and cancels on SIGINT/SIGTERM.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func currentConfig() *config.Config {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return cfg
}
