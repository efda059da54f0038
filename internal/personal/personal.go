// Package personal looks up a user's own pace for a segment from their
// gradient-indexed pace table, falling back to a formula when the table has
// too few samples for the segment's category.
package personal

import (
	"trailpace/internal/gradient"
	"trailpace/internal/pace"
	"trailpace/internal/segment"
)

// MinSamples is the number of samples a category needs before its table
// entry is trusted over the fallback formula.
const MinSamples = 5

// Effort selects which percentile of a category's pace distribution to use.
type Effort string

const (
	EffortRace     Effort = "race"
	EffortModerate Effort = "moderate"
	EffortEasy     Effort = "easy"
)

// PercentileKey maps the effort to the percentile consulted in the table.
func (e Effort) PercentileKey() float64 {
	switch e {
	case EffortRace:
		return 0.25
	case EffortEasy:
		return 0.75
	default:
		return 0.50
	}
}

// Bucket is one category's pace statistics.
type Bucket struct {
	AvgPaceMinKm   float64 `json:"avg_pace_min_per_km"`
	SampleCount    int     `json:"sample_count"`
	P25            float64 `json:"p25,omitempty"`
	P50            float64 `json:"p50,omitempty"`
	P75            float64 `json:"p75,omitempty"`
	HasPercentiles bool    `json:"has_percentiles"`
}

// percentile returns the pace at the effort's percentile, or the category
// average when percentiles are absent.
func (b Bucket) percentile(e Effort) float64 {
	if !b.HasPercentiles {
		return b.AvgPaceMinKm
	}
	switch e.PercentileKey() {
	case 0.25:
		return b.P25
	case 0.75:
		return b.P75
	default:
		return b.P50
	}
}

// PaceTable maps gradient categories to the user's pace statistics.
type PaceTable map[gradient.Category]Bucket

// FlatPace returns the table's flat pace, or false when absent.
func (t PaceTable) FlatPace() (float64, bool) {
	b, ok := t[gradient.Flat]
	if !ok || b.AvgPaceMinKm <= 0 {
		return 0, false
	}
	return b.AvgPaceMinKm, true
}

// Fallback computes a per-km pace from a gradient in percent when the table
// cannot answer.
type Fallback func(gradientPct float64) float64

// ToblerFallback is the hiking fallback formula.
func ToblerFallback() Fallback {
	return pace.ToblerPaceMinKm
}

// StravaGAPFallback is the running fallback formula over a flat base pace.
func StravaGAPFallback(flatPaceMinKm float64) Fallback {
	if flatPaceMinKm <= 0 {
		flatPaceMinKm = pace.DefaultFlatPaceMinKm
	}
	return func(gradientPct float64) float64 {
		return pace.StravaGAPPaceMinKm(flatPaceMinKm, gradientPct)
	}
}

// Personaliser answers per-segment pace queries from a pace table.
type Personaliser struct {
	table    PaceTable
	fallback Fallback
	// TotalActivities backs the validity predicate.
	TotalActivities int
}

// New creates a Personaliser. The fallback is consulted for categories with
// fewer than MinSamples samples.
func New(table PaceTable, totalActivities int, fallback Fallback) *Personaliser {
	return &Personaliser{table: table, fallback: fallback, TotalActivities: totalActivities}
}

// FlatPace returns the table's flat pace, or false when absent.
func (p *Personaliser) FlatPace() (float64, bool) {
	return p.table.FlatPace()
}

// Valid reports whether the profile behind this table is usable: it must
// have a flat pace and at least one analysed activity.
func (p *Personaliser) Valid() bool {
	if p == nil {
		return false
	}
	_, hasFlat := p.table.FlatPace()
	return hasFlat && p.TotalActivities >= 1
}

// PaceFor returns the per-km pace for a segment at the given effort. The
// second return is true when the pace came from the table rather than the
// fallback formula.
func (p *Personaliser) PaceFor(seg segment.MacroSegment, effort Effort) (float64, bool) {
	cat := gradient.Classify(seg.GradientPercent())
	bucket, ok := p.table[cat]
	if !ok || bucket.SampleCount < MinSamples {
		// Fall back on the formula at the category midpoint, so the same
		// category always answers the same pace.
		return p.fallback(gradient.Midpoint(cat)), false
	}
	return bucket.percentile(effort), true
}

// PaceFunc adapts the Personaliser to the pace.Context callback shape for a
// fixed effort.
func (p *Personaliser) PaceFunc(effort Effort) func(segment.MacroSegment) (float64, bool) {
	return func(seg segment.MacroSegment) (float64, bool) {
		pc, fromTable := p.PaceFor(seg, effort)
		return pc, fromTable
	}
}
