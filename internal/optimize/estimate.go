// internal/optimize/estimate.go
package optimize

import (
	"context"
	"fmt"

	"github.com/plantworks/filteropt/internal/filter"
)

// Confidence levels for a result estimate
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

// CountEstimator approximates how many records a criteria set would match.
// Approximate counts are acceptable; the confidence field reports how much
// to trust them.
type CountEstimator func(ctx context.Context, c filter.Criteria) (uint64, error)

// Estimate is the outcome of a pre-flight result count check.
type Estimate struct {
	EstimatedCount uint64   `json:"estimated_count"`
	Confidence     string   `json:"confidence"`
	ShouldProceed  bool     `json:"should_proceed"`
	Warnings       []string `json:"warnings,omitempty"`
}

// DefaultMaxEstimatedResults is the threshold above which ShouldProceed
// flips to false.
const DefaultMaxEstimatedResults = 1000

// Estimator wraps a CountEstimator collaborator with complexity-derived
// confidence reporting.
type Estimator struct {
	analyzer  *Analyzer
	estimate  CountEstimator
	threshold uint64
}

// NewEstimator creates an estimator. A zero threshold falls back to
// DefaultMaxEstimatedResults.
func NewEstimator(analyzer *Analyzer, fn CountEstimator, threshold uint64) *Estimator {
	if analyzer == nil {
		analyzer = NewAnalyzer(nil)
	}
	if threshold == 0 {
		threshold = DefaultMaxEstimatedResults
	}
	return &Estimator{analyzer: analyzer, estimate: fn, threshold: threshold}
}

// Estimate runs the collaborator and derives confidence from the criteria's
// complexity level: the more complex the filter, the less the planner-style
// count can be trusted. Collaborator errors propagate unwrapped in meaning,
// wrapped for context.
func (e *Estimator) Estimate(ctx context.Context, c filter.Criteria) (Estimate, error) {
	count, err := e.estimate(ctx, c)
	if err != nil {
		return Estimate{}, fmt.Errorf("optimize: estimating result count: %w", err)
	}

	score := e.analyzer.Analyze(c)
	out := Estimate{
		EstimatedCount: count,
		Confidence:     confidenceFor(score.Level),
		ShouldProceed:  count <= e.threshold,
	}
	if !out.ShouldProceed {
		out.Warnings = append(out.Warnings,
			fmt.Sprintf("estimated %d results exceeds the %d result threshold", count, e.threshold))
	}
	if score.Level == LevelVeryHigh {
		out.Warnings = append(out.Warnings, "filter complexity is very high; the estimate may be far off")
	}
	return out, nil
}

func confidenceFor(level string) string {
	switch level {
	case LevelLow:
		return ConfidenceHigh
	case LevelMedium:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
