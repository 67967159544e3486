// internal/optimize/optimizer.go
package optimize

import (
	"fmt"
	"strings"
	"time"

	"github.com/plantworks/filteropt/internal/filter"
)

// Optimizer rule constants
const (
	maxSearchTextRunes  = 100
	wideSelectThreshold = 20
	maxDateSpan         = 365 * 24 * time.Hour
)

// Optimized is the result of a query optimization pass: a normalized copy of
// the criteria plus advisory notes. The criteria are never rejected.
type Optimized struct {
	Criteria      filter.Criteria `json:"criteria"`
	Optimizations []string        `json:"optimizations,omitempty"`
	IndexHints    []string        `json:"index_hints,omitempty"`
}

// Optimizer normalizes criteria and derives index hints from a complexity
// score. Pure transform; the input criteria value is never mutated.
type Optimizer struct {
	analyzer *Analyzer
}

// NewOptimizer creates an optimizer backed by the given analyzer.
func NewOptimizer(analyzer *Analyzer) *Optimizer {
	if analyzer == nil {
		analyzer = NewAnalyzer(nil)
	}
	return &Optimizer{analyzer: analyzer}
}

// Analyze exposes the underlying complexity scoring.
func (o *Optimizer) Analyze(c filter.Criteria) Score {
	return o.analyzer.Analyze(c)
}

// Optimize applies every applicable normalization and annotation rule. The
// rules are independent; their relative order carries no meaning.
func (o *Optimizer) Optimize(c filter.Criteria, score Score) Optimized {
	out := Optimized{Criteria: c.Clone()}

	if runes := []rune(out.Criteria.SearchText); len(runes) > maxSearchTextRunes {
		out.Criteria.SearchText = string(runes[:maxSearchTextRunes])
		out.Optimizations = append(out.Optimizations,
			fmt.Sprintf("search text truncated to %d characters", maxSearchTextRunes))
	}

	activeSelects := 0
	for _, ms := range out.Criteria.MultiSelects() {
		if len(ms.Values) == 0 {
			continue
		}
		activeSelects++
		if len(ms.Values) > wideSelectThreshold {
			out.Optimizations = append(out.Optimizations,
				fmt.Sprintf("%s has %d selected values; consider selecting a parent group instead", ms.Name, len(ms.Values)))
		}
	}

	if out.Criteria.DateSpan() > maxDateSpan {
		out.Optimizations = append(out.Optimizations,
			"date range exceeds 365 days; consider a shorter window")
	}

	if activeSelects >= 2 {
		out.IndexHints = append(out.IndexHints, compositeHint(out.Criteria))
	}
	if out.Criteria.IPRange != "" {
		out.IndexHints = append(out.IndexHints, "use a range index (e.g. inet/gist) for ip_address")
	}
	if out.Criteria.HasTags() {
		out.IndexHints = append(out.IndexHints, "use an array index (e.g. gin) for tags")
	}

	return out
}

// Suggestions returns the combined advisory output for one criteria set:
// analyzer suggestions plus optimizer notes, in one pass.
func (o *Optimizer) Suggestions(c filter.Criteria) []string {
	score := o.analyzer.Analyze(c)
	opt := o.Optimize(c, score)

	out := make([]string, 0, len(score.Suggestions)+len(opt.Optimizations))
	out = append(out, score.Suggestions...)
	out = append(out, opt.Optimizations...)
	return out
}

func compositeHint(c filter.Criteria) string {
	fields := make([]string, 0, 5)
	for _, ms := range c.MultiSelects() {
		if len(ms.Values) > 0 {
			fields = append(fields, ms.Name)
		}
	}
	return fmt.Sprintf("consider a composite index over (%s)", strings.Join(fields, ", "))
}
