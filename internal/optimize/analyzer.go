// internal/optimize/analyzer.go
package optimize

import (
	"fmt"
	"net"
	"time"
	"unicode/utf8"

	"github.com/plantworks/filteropt/internal/filter"
)

// Complexity levels
const (
	LevelLow      = "low"
	LevelMedium   = "medium"
	LevelHigh     = "high"
	LevelVeryHigh = "very_high"
)

// Level thresholds
const (
	mediumThreshold   = 3.0
	highThreshold     = 7.0
	veryHighThreshold = 15.0
)

// Score is the estimated evaluation cost of one criteria set. It is
// recomputed from scratch on every call; nothing is cached.
type Score struct {
	Score       float64  `json:"score"`
	Level       string   `json:"level"`
	Bottlenecks []string `json:"bottlenecks,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// Weights configures the per-dimension cost contributions. The values are
// heuristic, tuned for the inventory schema rather than measured plans:
// equipment type breadth fans out across every site, so it costs the most
// per selected value.
type Weights struct {
	SiteID        float64
	CellID        float64
	EquipmentType float64
	Manufacturer  float64
	Status        float64

	DateRange float64
	BroadIP   float64
	NarrowIP  float64
	PerTag    float64
	LongText  float64
	ShortText float64
}

// DefaultWeights returns the default weighting.
func DefaultWeights() *Weights {
	return &Weights{
		SiteID:        0.2,
		CellID:        0.25,
		EquipmentType: 0.5,
		Manufacturer:  0.25,
		Status:        0.15,
		DateRange:     1.0,
		BroadIP:       2.5,
		NarrowIP:      1.0,
		PerTag:        0.15,
		LongText:      1.5,
		ShortText:     0.5,
	}
}

// Text longer than this is flagged as a full-scan risk.
const longTextThreshold = 50

// A CIDR prefix shorter than this spans too many hosts for a range scan.
const broadPrefixBits = 8

const manyTagsThreshold = 10

// Analyzer scores filter criteria for expected query cost. Pure and
// stateless: safe to share across goroutines.
type Analyzer struct {
	weights *Weights
}

// NewAnalyzer creates an analyzer, using DefaultWeights when weights is nil.
func NewAnalyzer(weights *Weights) *Analyzer {
	if weights == nil {
		weights = DefaultWeights()
	}
	return &Analyzer{weights: weights}
}

// Analyze scores one criteria snapshot. Every active dimension contributes a
// non-negative amount, so adding a filter never lowers the score.
func (a *Analyzer) Analyze(c filter.Criteria) Score {
	w := a.weights
	var score float64
	var bottlenecks, suggestions []string

	for _, ms := range c.MultiSelects() {
		n := len(ms.Values)
		if n == 0 {
			continue
		}
		score += float64(n) * a.fieldWeight(ms.Name)
		if n > 20 {
			suggestions = append(suggestions,
				fmt.Sprintf("%s selects %d values; consider a saved filter group", ms.Name, n))
		}
	}

	if c.HasDateRange() {
		score += w.DateRange
		if c.DateSpan() > 365*24*time.Hour {
			suggestions = append(suggestions, "date range spans more than a year; narrowing it will speed up the query")
		}
	}

	if c.IPRange != "" {
		if broadCIDR(c.IPRange) {
			score += w.BroadIP
			bottlenecks = append(bottlenecks, "ip_range covers a very broad address space")
		} else {
			score += w.NarrowIP
		}
	}

	if c.HasTags() {
		n := c.TagCount()
		score += float64(n) * w.PerTag
		if n > manyTagsThreshold {
			bottlenecks = append(bottlenecks, fmt.Sprintf("tag filter matches against %d tags", n))
		}
	}

	if c.SearchText != "" {
		if utf8.RuneCountInString(c.SearchText) > longTextThreshold {
			score += w.LongText
			bottlenecks = append(bottlenecks, "long free-text search forces a full scan")
			suggestions = append(suggestions, "shorten the search text or filter by structured fields first")
		} else {
			score += w.ShortText
		}
	}

	return Score{
		Score:       score,
		Level:       levelFor(score),
		Bottlenecks: bottlenecks,
		Suggestions: suggestions,
	}
}

func (a *Analyzer) fieldWeight(name string) float64 {
	w := a.weights
	switch name {
	case "site_ids":
		return w.SiteID
	case "cell_ids":
		return w.CellID
	case "equipment_types":
		return w.EquipmentType
	case "manufacturers":
		return w.Manufacturer
	case "statuses":
		return w.Status
	default:
		return w.Status
	}
}

func levelFor(score float64) string {
	switch {
	case score < mediumThreshold:
		return LevelLow
	case score < highThreshold:
		return LevelMedium
	case score < veryHighThreshold:
		return LevelHigh
	default:
		return LevelVeryHigh
	}
}

// broadCIDR reports whether the expression parses as a CIDR with a prefix
// shorter than /8. Unparseable input is treated as narrow; the data layer
// will reject it, not us.
func broadCIDR(expr string) bool {
	_, ipnet, err := net.ParseCIDR(expr)
	if err != nil {
		return false
	}
	ones, _ := ipnet.Mask.Size()
	return ones < broadPrefixBits
}
