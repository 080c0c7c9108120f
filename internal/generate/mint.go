package generate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"specforge/internal/benchmark"
	"specforge/internal/template"
)

// ToolName identifies specforge in snapshot metadata.
const ToolName = "specforge"

// SnapshotExtraKey holds the benchmark summary embedded in a minted template.
const SnapshotExtraKey = "benchmark_snapshot"

// MintOptions configures a snapshot.
type MintOptions struct {
	OutDir      string
	Name        string                // snapshot base name, default <name>-<version>-snapshot
	Comparison  *benchmark.Comparison // nil mints without benchmark data
	ToolVersion string
	Now         func() time.Time
}

// TemplateIdentity names a template revision.
type TemplateIdentity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SnapshotFiles are the files a mint wrote.
type SnapshotFiles struct {
	Template string `json:"template"`
	Metadata string `json:"metadata"`
}

// ToolIdentity records what minted a snapshot.
type ToolIdentity struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SnapshotMetadata describes a minted snapshot. It is written once and never
// updated.
type SnapshotMetadata struct {
	SnapshotID        string                `json:"snapshot_id"`
	Template          TemplateIdentity      `json:"template"`
	IncludesBenchmark bool                  `json:"includes_benchmark"`
	Comparison        *benchmark.Comparison `json:"comparison,omitempty"`
	Files             SnapshotFiles         `json:"files"`
	MintedAt          time.Time             `json:"minted_at"`
	Tool              ToolIdentity          `json:"tool"`
}

// MetadataPath returns the sidecar path for a snapshot template path.
func MetadataPath(snapshotPath string) string {
	ext := filepath.Ext(snapshotPath)
	return snapshotPath[:len(snapshotPath)-len(ext)] + ".meta.json"
}

// Mint writes <name>.json5 and its <name>.meta.json sidecar.
func (g *Generator) Mint(ctx context.Context, t *template.SpecialistTemplate, opts MintOptions) (*SnapshotMetadata, error) {
	if t == nil {
		return nil, errors.New("no template to mint")
	}
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	toolVersion := opts.ToolVersion
	if toolVersion == "" {
		toolVersion = "dev"
	}
	name := opts.Name
	if name == "" {
		name = fmt.Sprintf("%s-%s-snapshot", t.Name, t.Version)
	}
	dir := opts.OutDir
	if dir == "" {
		dir = "."
	}

	templatePath := filepath.Join(dir, name+template.FormatJSON5.Extension())
	meta := &SnapshotMetadata{
		SnapshotID:        uuid.NewString(),
		Template:          TemplateIdentity{Name: t.Name, Version: t.Version},
		IncludesBenchmark: opts.Comparison != nil,
		Comparison:        opts.Comparison,
		Files:             SnapshotFiles{Template: templatePath, Metadata: MetadataPath(templatePath)},
		MintedAt:          now().UTC(),
		Tool:              ToolIdentity{Name: ToolName, Version: toolVersion},
	}

	snapshot := t.Clone()
	if opts.Comparison != nil {
		if snapshot.Extra == nil {
			snapshot.Extra = map[string]any{}
		}
		snapshot.Extra[SnapshotExtraKey] = map[string]any{
			"snapshot_id":     meta.SnapshotID,
			"minted_at":       meta.MintedAt.Format(time.RFC3339),
			"baseline_avg":    opts.Comparison.BaselineAvg,
			"specialist_avg":  opts.Comparison.SpecialistAvg,
			"improvement":     opts.Comparison.Improvement,
			"improvement_pct": opts.Comparison.ImprovementPct,
		}
	}

	data, err := template.Marshal(snapshot, template.FormatJSON5)
	if err != nil {
		return nil, err
	}
	metaData, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot metadata: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := template.WriteFileAtomic(templatePath, data, 0644); err != nil {
		return nil, err
	}
	if err := template.WriteFileAtomic(meta.Files.Metadata, append(metaData, '\n'), 0644); err != nil {
		return nil, err
	}

	g.log.Info("snapshot minted",
		zap.String("id", meta.SnapshotID),
		zap.String("template", t.Name),
		zap.Bool("benchmark", meta.IncludesBenchmark),
		zap.String("path", templatePath))
	return meta, nil
}
