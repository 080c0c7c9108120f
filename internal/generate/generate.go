// Package generate writes finalized templates to disk: generated packages,
// enriched derivatives, and minted snapshots.
package generate

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"specforge/internal/logging"
	"specforge/internal/resolve"
	"specforge/internal/template"
)

// ErrEnrichedExists is returned when an enriched derivative already exists
// for the template version and overwriting was not requested.
var ErrEnrichedExists = errors.New("enriched template already exists for this version")

// OutputConfig says where and how a package is written.
type OutputConfig struct {
	Dir    string
	Format template.Format
}

// Package lists what Generate wrote.
type Package struct {
	Path  string   // the template file
	Files []string // every file written, Path first
}

// Generator writes template packages.
type Generator struct {
	log *zap.Logger
}

// New creates a Generator.
func New(log *zap.Logger) *Generator {
	return &Generator{log: logging.OrNop(log)}
}

// TemplateFileName is the package file name for a template.
func TemplateFileName(name string, format template.Format) string {
	return name + "-template" + format.Extension()
}

// EmbedTiers returns a copy of t with tier prompts stored under
// prompts.tasks[<task>]. Existing tiers for the task are replaced; other tasks
// are kept.
func EmbedTiers(t *template.SpecialistTemplate, tiers *template.TierPrompts) *template.SpecialistTemplate {
	out := t.Clone()
	if tiers == nil || len(tiers.Prompts) == 0 {
		return out
	}
	if out.Prompts.Tasks == nil {
		out.Prompts.Tasks = map[string]map[string]string{}
	}
	prompts := make(map[string]string, len(tiers.Prompts))
	for tier, p := range tiers.Prompts {
		prompts[tier] = p
	}
	out.Prompts.Tasks[tiers.Task] = prompts
	return out
}

// Generate serializes t, with tiers embedded, into cfg.Dir. Nothing is written
// if ctx is already done.
func (g *Generator) Generate(ctx context.Context, t *template.SpecialistTemplate, tiers *template.TierPrompts, cfg OutputConfig) (*Package, error) {
	if t == nil {
		return nil, errors.New("no template to generate")
	}
	if t.Name == "" {
		return nil, errors.New("template has no name")
	}
	format := cfg.Format
	if format == "" {
		format = template.FormatJSON5
	}
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}

	data, err := template.Marshal(EmbedTiers(t, tiers), format)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(dir, TemplateFileName(t.Name, format))
	if err := template.WriteFileAtomic(path, data, 0644); err != nil {
		return nil, err
	}
	g.log.Info("package generated", zap.String("template", t.Name), zap.String("version", t.Version), zap.String("path", path))
	return &Package{Path: path, Files: []string{path}}, nil
}

// WriteEnriched saves t as the enriched derivative of basePath for t.Version
// and returns the path written.
func (g *Generator) WriteEnriched(t *template.SpecialistTemplate, basePath string, force bool) (string, error) {
	path := resolve.EnrichedPath(basePath, t.Version)
	if existing, ok := resolve.ExistingEnrichedPath(basePath, t.Version); ok && !force {
		return "", fmt.Errorf("%w: %s (use --force to overwrite)", ErrEnrichedExists, existing)
	}
	if err := template.Save(path, t); err != nil {
		return "", err
	}
	g.log.Info("enriched template written", zap.String("path", path), zap.Bool("overwrote", force))
	return path, nil
}
