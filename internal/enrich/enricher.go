// Package enrich augments a template's documentation entries through an LLM
// and generates tiered task prompts.
//
// Every documentation entry is attempted exactly once per run. A failed call
// leaves that entry as it was and is reported in Result.Failures; the run as a
// whole only fails when its context is cancelled.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"specforge/internal/config"
	"specforge/internal/llm"
	"specforge/internal/logging"
	"specforge/internal/template"
)

// DefaultTiers are the escalating tier identifiers used when none are given.
var DefaultTiers = []string{"L0", "L1", "L2", "L3"}

// DocumentReader returns the text behind a documentation locator.
type DocumentReader func(ctx context.Context, locator string) (string, error)

// Options selects what a run does.
type Options struct {
	EnrichDocumentation bool
	GenerateTiers       bool
	BaseTask            string
	Scenario            string

	// Force re-enriches entries that already carry enrichment. A failed
	// refresh keeps the previous enrichment.
	Force bool

	Tiers       []string
	Concurrency int           // in-flight calls, default 2
	MinInterval time.Duration // spacing between call starts
}

// Failure records one call that did not produce a result.
type Failure struct {
	Index   int    `json:"index"` // documentation index, -1 for tier prompts
	Locator string `json:"locator,omitempty"`
	Tier    string `json:"tier,omitempty"`
	Error   string `json:"error"`
}

// Result is the outcome of a run. Template is always a fresh copy.
type Result struct {
	Template *template.SpecialistTemplate
	Tiers    *template.TierPrompts
	Failures []Failure
	Enriched int
	Skipped  int
}

// Enricher runs enrichment against one client.
type Enricher struct {
	client llm.Client
	reader DocumentReader
	now    func() time.Time
	log    *zap.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithDocumentReader lets prompts include the documentation text itself.
func WithDocumentReader(r DocumentReader) Option {
	return func(e *Enricher) { e.reader = r }
}

// WithClock overrides the enrichment timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// New creates an Enricher. A nil client is a configuration error.
func New(client llm.Client, log *zap.Logger, opts ...Option) (*Enricher, error) {
	if client == nil {
		return nil, &config.ConfigurationError{
			Field:   "llm.api_key",
			EnvVar:  config.EnvAnthropicAPIKey,
			Message: "enrichment requires an LLM client",
		}
	}
	e := &Enricher{client: client, now: time.Now, log: logging.OrNop(log)}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

type entryResult struct {
	enrichment *template.DocumentationEnrichment
	err        error
}

// Enrich runs the selected steps on a copy of t.
func (e *Enricher) Enrich(ctx context.Context, t *template.SpecialistTemplate, opts Options) (*Result, error) {
	if t == nil {
		return nil, fmt.Errorf("no template to enrich")
	}
	timer := logging.StartTimer(e.log, "enrich")
	defer timer.StopWithInfo()

	out := t.Clone()
	result := &Result{Template: out, Failures: []Failure{}}
	pace := newPacer(opts.MinInterval)

	if opts.EnrichDocumentation {
		e.enrichDocumentation(ctx, out, opts, pace, result)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.GenerateTiers {
		result.Tiers = e.generateTiers(ctx, out, opts, pace, result)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.log.Info("enrichment complete",
		zap.String("template", out.Name),
		zap.Int("enriched", result.Enriched),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", len(result.Failures)))
	return result, nil
}

func (e *Enricher) enrichDocumentation(ctx context.Context, t *template.SpecialistTemplate, opts Options, pace *pacer, result *Result) {
	results := make([]entryResult, len(t.Documentation))
	attempted := make([]bool, len(t.Documentation))

	p := pool.New().WithMaxGoroutines(concurrency(opts.Concurrency))
	for i := range t.Documentation {
		entry := t.Documentation[i]
		if entry.Enrichment != nil && !opts.Force {
			result.Skipped++
			continue
		}
		attempted[i] = true
		p.Go(func() {
			if err := pace.wait(ctx); err != nil {
				results[i].err = err
				return
			}
			enr, err := e.enrichEntry(ctx, t, entry)
			results[i] = entryResult{enrichment: enr, err: err}
		})
	}
	p.Wait()

	for i, res := range results {
		if !attempted[i] {
			continue
		}
		locator := t.Documentation[i].Locator()
		if res.err != nil {
			e.log.Warn("documentation enrichment failed", zap.Int("index", i), zap.String("locator", locator), zap.Error(res.err))
			result.Failures = append(result.Failures, Failure{Index: i, Locator: locator, Error: res.err.Error()})
			continue
		}
		t.Documentation[i].Enrichment = res.enrichment
		result.Enriched++
	}
}

func (e *Enricher) enrichEntry(ctx context.Context, t *template.SpecialistTemplate, entry template.DocumentationEntry) (*template.DocumentationEnrichment, error) {
	var content string
	if e.reader != nil && entry.Locator() != "" {
		text, err := e.reader(ctx, entry.Locator())
		if err != nil {
			// Metadata alone still yields a usable enrichment.
			e.log.Debug("documentation unreadable, enriching from metadata", zap.String("locator", entry.Locator()), zap.Error(err))
		}
		content = text
	}

	reply, err := e.client.CompleteWithSystem(ctx, documentationSystemPrompt, documentationPrompt(t, entry, content))
	if err != nil {
		return nil, err
	}
	enr, err := parseEnrichment(reply)
	if err != nil {
		return nil, err
	}
	enr.EnrichedAt = e.now().UTC()
	enr.EnrichmentModel = e.client.Model()
	return enr, nil
}

func (e *Enricher) generateTiers(ctx context.Context, t *template.SpecialistTemplate, opts Options, pace *pacer, result *Result) *template.TierPrompts {
	tiers := opts.Tiers
	if len(tiers) == 0 {
		tiers = DefaultTiers
	}
	task := opts.BaseTask
	if task == "" {
		task = "general"
	}

	prompts := make([]string, len(tiers))
	errs := make([]error, len(tiers))
	p := pool.New().WithMaxGoroutines(concurrency(opts.Concurrency))
	for i, tier := range tiers {
		p.Go(func() {
			if err := pace.wait(ctx); err != nil {
				errs[i] = err
				return
			}
			prompts[i], errs[i] = e.client.CompleteWithSystem(ctx, tierSystemPrompt, tierPrompt(t, task, opts.Scenario, tier, i, len(tiers)))
		})
	}
	p.Wait()

	out := &template.TierPrompts{Task: task, Prompts: map[string]string{}}
	for i, tier := range tiers {
		if errs[i] != nil {
			e.log.Warn("tier prompt generation failed", zap.String("tier", tier), zap.Error(errs[i]))
			result.Failures = append(result.Failures, Failure{Index: -1, Tier: tier, Error: errs[i].Error()})
			continue
		}
		out.Prompts[tier] = prompts[i]
	}
	if len(out.Prompts) == 0 {
		return nil
	}
	return out
}

func concurrency(n int) int {
	if n <= 0 {
		return 2
	}
	return n
}

// pacer spaces call starts at least interval apart across goroutines.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newPacer(interval time.Duration) *pacer {
	return &pacer{interval: interval}
}

func (p *pacer) wait(ctx context.Context) error {
	if p.interval <= 0 {
		return ctx.Err()
	}
	p.mu.Lock()
	now := time.Now()
	slot := p.next
	if slot.Before(now) {
		slot = now
	}
	p.next = slot.Add(p.interval)
	p.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
