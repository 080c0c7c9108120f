// Package engine runs the specialist creation workflow:
// extract, structure, enrich (optional), validate, generate.
//
// Each Engine owns its collaborators; nothing is shared between instances.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"specforge/internal/config"
	"specforge/internal/enrich"
	"specforge/internal/extract"
	"specforge/internal/generate"
	"specforge/internal/logging"
	"specforge/internal/schema"
	"specforge/internal/structure"
	"specforge/internal/template"
)

// ErrTemplateValidationFailed matches every *ValidationFailedError.
var ErrTemplateValidationFailed = errors.New("template validation failed")

// ValidationFailedError carries the structural errors that stopped a workflow
// before generation.
type ValidationFailedError struct {
	Template string
	Issues   []schema.Issue
}

func (e *ValidationFailedError) Error() string {
	parts := make([]string, len(e.Issues))
	for i, issue := range e.Issues {
		parts[i] = issue.String()
	}
	return fmt.Sprintf("template %s failed validation with %d error(s): %s", e.Template, len(e.Issues), strings.Join(parts, "; "))
}

// Is reports whether target is ErrTemplateValidationFailed.
func (e *ValidationFailedError) Is(target error) bool {
	return target == ErrTemplateValidationFailed
}

// Extractor gathers knowledge from sources.
type Extractor interface {
	Extract(ctx context.Context, sources []string, depth extract.Depth) (*extract.ExtractedKnowledge, error)
}

// Enricher augments a structured template.
type Enricher interface {
	Enrich(ctx context.Context, t *template.SpecialistTemplate, opts enrich.Options) (*enrich.Result, error)
}

// EnricherFactory builds an Enricher on demand. It is only called when a
// workflow asks for enrichment, so a missing credential never affects
// workflows that do not.
type EnricherFactory func(ctx context.Context) (Enricher, error)

// Validator checks a template's structure.
type Validator interface {
	ValidateTemplate(t *template.SpecialistTemplate) (*schema.Result, error)
}

// Generator writes the final package.
type Generator interface {
	Generate(ctx context.Context, t *template.SpecialistTemplate, tiers *template.TierPrompts, cfg generate.OutputConfig) (*generate.Package, error)
}

// Config describes one specialist to create.
type Config struct {
	Identity structure.Identity
	Sources  []string
	Depth    extract.Depth

	Enrich     bool
	Enrichment enrich.Options

	// AllowUnenriched continues without enrichment when no enricher can be
	// built, instead of failing before any source is fetched.
	AllowUnenriched bool

	Output generate.OutputConfig
}

// SpecialistPackage is the outcome of a successful workflow.
type SpecialistPackage struct {
	Template   *template.SpecialistTemplate
	Package    *generate.Package
	Validation *schema.Result
	Failures   []extract.SourceFailure
	Enrichment *enrich.Result // nil when enrichment did not run

	// EnrichmentSkipped explains why enrichment was requested but not run.
	EnrichmentSkipped string
}

// Engine composes the pipeline stages.
type Engine struct {
	extractor       Extractor
	enricherFactory EnricherFactory
	validator       Validator
	generator       Generator
	log             *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtractor sets the extractor.
func WithExtractor(x Extractor) Option { return func(e *Engine) { e.extractor = x } }

// WithEnricherFactory sets how the enricher is built.
func WithEnricherFactory(f EnricherFactory) Option { return func(e *Engine) { e.enricherFactory = f } }

// WithValidator sets the validator.
func WithValidator(v Validator) Option { return func(e *Engine) { e.validator = v } }

// WithGenerator sets the generator.
func WithGenerator(g Generator) Option { return func(e *Engine) { e.generator = g } }

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option { return func(e *Engine) { e.log = logging.OrNop(log) } }

// New creates an Engine. Unset collaborators get the default implementations;
// there is no default enricher factory.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{log: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	if e.extractor == nil {
		e.extractor = extract.New(extract.WithLogger(e.log))
	}
	if e.validator == nil {
		v, err := schema.NewValidator()
		if err != nil {
			return nil, err
		}
		e.validator = v
	}
	if e.generator == nil {
		e.generator = generate.New(e.log)
	}
	return e, nil
}

// CreateSpecialist runs the workflow. Validation errors stop it before
// Generate with a *ValidationFailedError; warnings are logged and returned.
func (e *Engine) CreateSpecialist(ctx context.Context, cfg Config) (*SpecialistPackage, error) {
	timer := logging.StartTimer(e.log, "create_specialist")
	defer timer.StopWithInfo()

	pkg := &SpecialistPackage{}

	var enricher Enricher
	if cfg.Enrich {
		var err error
		enricher, err = e.buildEnricher(ctx)
		if err != nil {
			if !cfg.AllowUnenriched {
				return nil, fmt.Errorf("enrichment unavailable: %w", err)
			}
			e.log.Warn("continuing without enrichment", zap.Error(err))
			pkg.EnrichmentSkipped = err.Error()
		}
	}

	knowledge, err := e.extractor.Extract(ctx, cfg.Sources, cfg.Depth)
	if err != nil {
		return nil, fmt.Errorf("extraction: %w", err)
	}
	pkg.Failures = knowledge.Failures
	for _, f := range knowledge.Failures {
		e.log.Warn("source skipped", zap.String("source", f.Source), zap.String("error", f.Error))
	}

	tmpl := structure.Structure(knowledge, cfg.Identity)
	var tiers *template.TierPrompts

	if enricher != nil {
		result, err := enricher.Enrich(ctx, tmpl, cfg.Enrichment)
		if err != nil {
			return nil, fmt.Errorf("enrichment: %w", err)
		}
		pkg.Enrichment = result
		tmpl = result.Template
		tiers = result.Tiers
	}

	validation, err := e.validator.ValidateTemplate(tmpl)
	if err != nil {
		return nil, fmt.Errorf("validation: %w", err)
	}
	pkg.Validation = validation
	for _, w := range validation.Warnings {
		e.log.Warn("validation warning", zap.String("path", w.Path), zap.String("message", w.Message))
	}
	if !validation.Valid() {
		return nil, &ValidationFailedError{Template: tmpl.Name, Issues: validation.Errors}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := e.generator.Generate(ctx, tmpl, tiers, cfg.Output)
	if err != nil {
		return nil, fmt.Errorf("generation: %w", err)
	}
	pkg.Template = tmpl
	pkg.Package = out
	return pkg, nil
}

func (e *Engine) buildEnricher(ctx context.Context) (Enricher, error) {
	if e.enricherFactory == nil {
		return nil, &config.ConfigurationError{
			Field:   "llm.api_key",
			EnvVar:  config.EnvAnthropicAPIKey,
			Message: "no LLM configured for enrichment",
		}
	}
	enricher, err := e.enricherFactory(ctx)
	if err != nil {
		return nil, err
	}
	if enricher == nil {
		return nil, errors.New("enricher factory returned no enricher")
	}
	return enricher, nil
}
