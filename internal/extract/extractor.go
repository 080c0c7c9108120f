package extract

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"specforge/internal/logging"
)

// DefaultRawBaseURL serves raw repository files for llms: and github: sources.
const DefaultRawBaseURL = "https://raw.githubusercontent.com"

// Extractor fetches sources concurrently, bounded by a fan-out limit.
type Extractor struct {
	fetcher        *fetcher
	rawBaseURL     string
	maxConcurrency int
	log            *zap.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithHTTPClient sets the client used for web and repository sources.
func WithHTTPClient(client *http.Client) Option {
	return func(e *Extractor) { e.fetcher.client = client }
}

// WithUserAgent sets the User-Agent header on fetches.
func WithUserAgent(ua string) Option {
	return func(e *Extractor) {
		if ua != "" {
			e.fetcher.userAgent = ua
		}
	}
}

// WithRawBaseURL overrides the raw repository host.
func WithRawBaseURL(url string) Option {
	return func(e *Extractor) { e.rawBaseURL = url }
}

// WithMaxConcurrency bounds how many sources are fetched at once.
func WithMaxConcurrency(n int) Option {
	return func(e *Extractor) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(e *Extractor) { e.log = logging.OrNop(log) }
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{
		fetcher: &fetcher{
			client:    &http.Client{Timeout: 30 * time.Second},
			userAgent: "specforge/1.0 (documentation extractor)",
		},
		rawBaseURL:     DefaultRawBaseURL,
		maxConcurrency: 4,
		log:            zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// sourceResult is written by exactly one goroutine, indexed by source.
type sourceResult struct {
	docs []Document
	err  error
}

// Extract fetches every source and analyzes what came back. Failed sources
// are listed in Failures; the only error returned is ctx's.
func (e *Extractor) Extract(ctx context.Context, sources []string, depth Depth) (*ExtractedKnowledge, error) {
	if depth == "" {
		depth = DepthStandard
	}
	limits := depth.Limits()
	timer := logging.StartTimer(e.log, "extract")
	defer timer.StopWithInfo()

	results := make([]sourceResult, len(sources))

	// Goroutines never return errors so one failed source cannot cancel the
	// others.
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.maxConcurrency)
	for i, location := range sources {
		eg.Go(func() error {
			src, err := e.ParseSource(location)
			if err != nil {
				results[i].err = err
				return nil
			}
			docs, err := src.Fetch(egCtx, limits)
			results[i] = sourceResult{docs: docs, err: err}
			return nil
		})
	}
	_ = eg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	knowledge := NewKnowledge(depth)
	for i, res := range results {
		if res.err != nil {
			e.log.Warn("source failed", zap.String("source", sources[i]), zap.Error(res.err))
			knowledge.Failures = append(knowledge.Failures, SourceFailure{Source: sources[i], Error: res.err.Error()})
			continue
		}
		e.log.Debug("source fetched", zap.String("source", sources[i]), zap.Int("documents", len(res.docs)))
		knowledge.Documents = append(knowledge.Documents, res.docs...)
	}

	analyze(knowledge)

	e.log.Info("extraction complete",
		zap.Int("sources", len(sources)),
		zap.Int("failed", len(knowledge.Failures)),
		zap.Int("documents", len(knowledge.Documents)),
		zap.Int("concepts", len(knowledge.Concepts)))
	return knowledge, nil
}

// FetchDocument returns the content of a single location, using the first
// document it yields. Enrichment uses it to read documentation entries.
func (e *Extractor) FetchDocument(ctx context.Context, location string) (string, error) {
	src, err := e.ParseSource(location)
	if err != nil {
		return "", err
	}
	docs, err := src.Fetch(ctx, DepthShallow.Limits())
	if err != nil {
		return "", err
	}
	if len(docs) == 0 {
		return "", fmt.Errorf("no documents at %s", location)
	}
	return docs[0].Content, nil
}
