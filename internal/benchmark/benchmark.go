// Package benchmark reads specialist benchmark results and compares
// specialist runs against the baseline.
package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"specforge/internal/template"
)

// Run variants.
const (
	VariantBaseline   = "baseline"
	VariantSpecialist = "specialist"
)

// Run is one scored benchmark execution.
type Run struct {
	ID         int64     `json:"id,omitempty"`
	Template   string    `json:"template"`
	Variant    string    `json:"variant"` // baseline or specialist
	Model      string    `json:"model"`
	Task       string    `json:"task,omitempty"`
	Score      float64   `json:"score"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Comparison summarizes baseline against specialist scores.
type Comparison struct {
	BaselineAvg    float64 `json:"baseline_avg"`
	SpecialistAvg  float64 `json:"specialist_avg"`
	Improvement    float64 `json:"improvement"`
	ImprovementPct float64 `json:"improvement_pct"`
	BaselineRuns   int     `json:"baseline_runs"`
	SpecialistRuns int     `json:"specialist_runs"`
}

// ErrInsufficientRuns means one side of the comparison has no runs.
var ErrInsufficientRuns = errors.New("benchmark comparison needs at least one baseline and one specialist run")

// Store persists benchmark runs.
type Store interface {
	Record(ctx context.Context, run Run) (int64, error)
	Runs(ctx context.Context, templateName string) ([]Run, error)
	Close() error
}

// Compare averages scores per variant. Runs with any other variant are
// ignored. ImprovementPct is 0 when the baseline average is 0.
func Compare(runs []Run) (*Comparison, error) {
	var c Comparison
	var baseSum, specSum float64
	for _, r := range runs {
		switch r.Variant {
		case VariantBaseline:
			baseSum += r.Score
			c.BaselineRuns++
		case VariantSpecialist:
			specSum += r.Score
			c.SpecialistRuns++
		}
	}
	if c.BaselineRuns == 0 || c.SpecialistRuns == 0 {
		return nil, ErrInsufficientRuns
	}

	c.BaselineAvg = baseSum / float64(c.BaselineRuns)
	c.SpecialistAvg = specSum / float64(c.SpecialistRuns)
	c.Improvement = c.SpecialistAvg - c.BaselineAvg
	if c.BaselineAvg != 0 {
		c.ImprovementPct = c.Improvement / c.BaselineAvg * 100
	}
	return &c, nil
}

// FilterTemplate returns the runs recorded for one template.
func FilterTemplate(runs []Run, name string) []Run {
	out := []Run{}
	for _, r := range runs {
		if r.Template == name {
			out = append(out, r)
		}
	}
	return out
}

type runsFile struct {
	Runs []Run `json:"runs"`
}

// LoadRunsFile reads exported results: either a JSON array of runs or an
// object with a "runs" array. Comments and trailing commas are accepted.
func LoadRunsFile(path string) ([]Run, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read benchmark results %s: %w", path, err)
	}
	std, err := template.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse benchmark results %s: %w", path, err)
	}

	var runs []Run
	if err := json.Unmarshal(std, &runs); err == nil {
		return runs, nil
	}
	var wrapped runsFile
	if err := json.Unmarshal(std, &wrapped); err != nil {
		return nil, fmt.Errorf("benchmark results %s are neither a run list nor {\"runs\": [...]}: %w", path, err)
	}
	return wrapped.Runs, nil
}
