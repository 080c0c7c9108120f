// Package logging provides config-driven categorized logging for specforge.
// Every category is a named child of one zap logger; disabled categories get a
// no-op logger. Loggers are constructed once per process and passed to
// components explicitly.
package logging

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"specforge/internal/config"
)

// Category represents a log category/system
type Category string

const (
	CategoryExtract   Category = "extract"   // Source fetching and analysis
	CategoryStructure Category = "structure" // Draft template synthesis
	CategoryEnrich    Category = "enrich"    // LLM enrichment batches
	CategoryLLM       Category = "llm"       // Provider API calls
	CategoryValidate  Category = "validate"  // Schema validation
	CategoryVersion   Category = "version"   // Version bumps, changelog
	CategoryResolve   Category = "resolve"   // Enriched-derivative resolution
	CategoryGenerate  Category = "generate"  // Package writing, minting
	CategoryBenchmark Category = "benchmark" // Benchmark result loading
	CategoryEngine    Category = "engine"    // Workflow orchestration
	CategoryWatch     Category = "watch"     // File watching
)

// Categories lists every category.
var Categories = []Category{
	CategoryExtract, CategoryStructure, CategoryEnrich, CategoryLLM, CategoryValidate,
	CategoryVersion, CategoryResolve, CategoryGenerate, CategoryBenchmark, CategoryEngine,
	CategoryWatch,
}

// Loggers hands out per-category loggers derived from a single root.
type Loggers struct {
	root *zap.Logger
	cfg  config.LoggingConfig
}

// New builds the root logger. Format "json" uses zap's production encoder,
// anything else a console encoder. verbose forces debug level.
func New(cfg config.LoggingConfig, verbose bool) (*Loggers, error) {
	var zcfg zap.Config
	if cfg.Format == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
		zcfg.Development = false
		zcfg.DisableStacktrace = true
		zcfg.EncoderConfig.EncodeLevel = zapcore.CapitalLevelEncoder
	}

	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	root, err := zcfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return &Loggers{root: root, cfg: cfg}, nil
}

// FromLogger wraps an existing logger, enabling every category.
func FromLogger(root *zap.Logger) *Loggers {
	if root == nil {
		root = zap.NewNop()
	}
	return &Loggers{root: root}
}

// NewNop returns Loggers that discard everything.
func NewNop() *Loggers {
	return FromLogger(zap.NewNop())
}

// Root returns the uncategorized logger.
func (l *Loggers) Root() *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l.root
}

// Get returns the logger for a category, or a no-op logger if the category is
// disabled in config.
func (l *Loggers) Get(category Category) *zap.Logger {
	if l == nil || !l.cfg.IsCategoryEnabled(string(category)) {
		return zap.NewNop()
	}
	return l.root.Named(string(category))
}

// Sync flushes buffered entries.
func (l *Loggers) Sync() error {
	if l == nil {
		return nil
	}
	return l.root.Sync()
}

// OrNop returns log, or a no-op logger when log is nil. Constructors use it so
// callers may pass nil.
func OrNop(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

// Timer helps measure operation duration
type Timer struct {
	log   *zap.Logger
	op    string
	start time.Time
}

// StartTimer begins timing an operation
func StartTimer(log *zap.Logger, operation string) *Timer {
	return &Timer{
		log:   OrNop(log),
		op:    operation,
		start: time.Now(),
	}
}

// Stop ends the timer and logs the duration at debug level
func (t *Timer) Stop() time.Duration {
	elapsed := time.Since(t.start)
	t.log.Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithInfo ends the timer and logs at info level
func (t *Timer) StopWithInfo() time.Duration {
	elapsed := time.Since(t.start)
	t.log.Info(t.op+" completed", zap.Duration("elapsed", elapsed))
	return elapsed
}

// StopWithThreshold logs warning if duration exceeds threshold
func (t *Timer) StopWithThreshold(threshold time.Duration) time.Duration {
	elapsed := time.Since(t.start)
	if elapsed > threshold {
		t.log.Warn(t.op+" was slow", zap.Duration("elapsed", elapsed), zap.Duration("threshold", threshold))
	} else {
		t.log.Debug(t.op+" completed", zap.Duration("elapsed", elapsed))
	}
	return elapsed
}
