// Package resolve maps a base template to its newest enriched derivative on
// disk. Derivatives live next to the base as
// <name>-template.enriched-<version>.json5 (or .jsonc), one per version.
package resolve

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"specforge/internal/logging"
	"specforge/internal/template"
	"specforge/internal/version"
)

// ErrAutoEnrichNotImplemented is returned when auto-enrichment is requested
// and no derivative exists for the base template's version.
var ErrAutoEnrichNotImplemented = errors.New("auto-enrichment is not implemented")

// MaxBreakingWarnings caps how many breaking changes are surfaced.
const MaxBreakingWarnings = 3

// Extensions a derivative may use, in preference order.
var enrichedExtensions = []string{".json5", ".jsonc"}

var enrichedPattern = regexp.MustCompile(`\.enriched-[0-9A-Za-z.+-]+\.(json5|jsonc)$`)

// Options controls resolution.
type Options struct {
	AutoEnrich bool
}

// Result is a resolved template location.
type Result struct {
	Path       string
	IsEnriched bool
	Warnings   []string
}

// baseStem returns the directory and the name with any -template suffix
// removed: dir/convex-template.json5 -> (dir, "convex").
func baseStem(basePath string) (string, string) {
	dir := filepath.Dir(basePath)
	name := filepath.Base(basePath)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.TrimSuffix(name, "-template")
	return dir, name
}

// EnrichedPath returns where the .json5 derivative of basePath at version
// lives.
func EnrichedPath(basePath, version string) string {
	return enrichedPathExt(basePath, version, enrichedExtensions[0])
}

func enrichedPathExt(basePath, version, ext string) string {
	dir, name := baseStem(basePath)
	return filepath.Join(dir, fmt.Sprintf("%s-template.enriched-%s%s", name, version, ext))
}

// ExistingEnrichedPath returns the derivative of basePath at version that is
// on disk, in extension preference order.
func ExistingEnrichedPath(basePath, version string) (string, bool) {
	for _, ext := range enrichedExtensions {
		candidate := enrichedPathExt(basePath, version, ext)
		info, err := os.Stat(candidate)
		if err != nil || info.IsDir() {
			continue
		}
		return candidate, true
	}
	return "", false
}

// IsEnrichedPath reports whether path follows the derivative naming pattern.
func IsEnrichedPath(path string) bool {
	return enrichedPattern.MatchString(filepath.Base(path))
}

// Resolver locates enriched derivatives.
type Resolver struct {
	log *zap.Logger
}

// New creates a Resolver. log may be nil.
func New(log *zap.Logger) *Resolver {
	return &Resolver{log: logging.OrNop(log)}
}

// ResolvePath resolves basePath using a Resolver without logging.
func ResolvePath(basePath string, opts Options) (*Result, error) {
	return New(nil).ResolvePath(basePath, opts)
}

// ResolvePath returns the derivative for the base template's current version
// if one exists, otherwise the base path itself. Warnings describe the
// resolved file and never affect which path is chosen.
func (r *Resolver) ResolvePath(basePath string, opts Options) (*Result, error) {
	if IsEnrichedPath(basePath) {
		return r.result(basePath, true)
	}

	base, err := template.Load(basePath)
	if err != nil {
		return nil, err
	}

	if candidate, ok := ExistingEnrichedPath(basePath, base.Version); ok {
		r.log.Debug("resolved enriched derivative",
			zap.String("base", basePath),
			zap.String("version", base.Version),
			zap.String("path", candidate))
		return r.result(candidate, true)
	}

	if opts.AutoEnrich {
		return nil, fmt.Errorf("%w: no enriched derivative of %s for version %s (run `specforge enrich %s`)",
			ErrAutoEnrichNotImplemented, basePath, base.Version, basePath)
	}

	r.log.Debug("no enriched derivative, using base",
		zap.String("base", basePath),
		zap.String("expected", EnrichedPath(basePath, base.Version)))
	return &Result{Path: basePath, IsEnriched: false, Warnings: Warnings(base)}, nil
}

func (r *Resolver) result(path string, enriched bool) (*Result, error) {
	t, err := template.Load(path)
	if err != nil {
		return nil, err
	}
	return &Result{Path: path, IsEnriched: enriched, Warnings: Warnings(t)}, nil
}

// Warnings returns advisory messages about a loaded template: missing version
// metadata, deprecation, and the most recent breaking changes.
func Warnings(t *template.SpecialistTemplate) []string {
	warnings := []string{}
	meta := t.VersionMetadata
	if meta == nil {
		return append(warnings, fmt.Sprintf("template %s has no version metadata; changes to it are untracked", t.Name))
	}

	if meta.Deprecated {
		msg := fmt.Sprintf("template %s is deprecated", t.Name)
		if meta.DeprecationReason != "" {
			msg += ": " + meta.DeprecationReason
		}
		if meta.ReplacementTemplate != "" {
			msg += fmt.Sprintf(" (use %s instead)", meta.ReplacementTemplate)
		}
		warnings = append(warnings, msg)
	}

	breaking := version.BreakingChanges(meta)
	if len(breaking) > MaxBreakingWarnings {
		breaking = breaking[:MaxBreakingWarnings]
	}
	for _, change := range breaking {
		msg := fmt.Sprintf("breaking change in %s: %s", change.Version, change.Description)
		if change.Migration != "" {
			msg += " (migration: " + change.Migration + ")"
		}
		warnings = append(warnings, msg)
	}
	return warnings
}
