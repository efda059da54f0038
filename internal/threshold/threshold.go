// Package threshold decides, per macro-segment, whether a trail runner runs
// or power-hikes. The uphill threshold can be static, learned from the
// user's splits, or adapted to accumulated load during route processing.
package threshold

import (
	"sort"

	"trailpace/internal/segment"
)

// Default thresholds in gradient percent.
const (
	DefaultUphillPct   = 25.0
	DefaultDownhillPct = -30.0

	// Learned and load-adaptive uphill thresholds are clamped to this band.
	MinUphillPct = 25.0
	MaxUphillPct = 35.0
)

// Rough speeds used to advance the clock between per-segment decisions.
const (
	roughRunKmh  = 9.0
	roughHikeKmh = 4.5
)

// Mode is the movement decision for one segment.
type Mode string

const (
	Run  Mode = "RUN"
	Hike Mode = "HIKE"
)

// Decision is the per-segment outcome.
type Decision struct {
	Mode       Mode
	Confidence float64
	// EffectiveUphillPct is the uphill threshold used for this segment
	// (load-adjusted in adaptive mode).
	EffectiveUphillPct float64
}

// Detector decides run vs hike per segment.
type Detector struct {
	UphillPct   float64
	DownhillPct float64
	Adaptive    bool
}

// NewDetector returns a detector with the default static thresholds.
func NewDetector() *Detector {
	return &Detector{UphillPct: DefaultUphillPct, DownhillPct: DefaultDownhillPct}
}

// Decide applies the static thresholds to one segment.
func (d *Detector) Decide(seg segment.MacroSegment) Decision {
	return d.decideWith(seg, d.UphillPct)
}

func (d *Detector) decideWith(seg segment.MacroSegment, uphillPct float64) Decision {
	g := seg.GradientPercent()
	dec := Decision{Mode: Run, Confidence: 0.7, EffectiveUphillPct: uphillPct}

	if g >= uphillPct {
		dec.Mode = Hike
		if g >= uphillPct+5 {
			dec.Confidence = 0.9
		}
		return dec
	}
	if g <= d.DownhillPct {
		dec.Mode = Hike
		if g <= d.DownhillPct-5 {
			dec.Confidence = 0.9
		}
		return dec
	}
	// Comfortably inside the running band?
	if g <= uphillPct-5 && g >= d.DownhillPct+5 {
		dec.Confidence = 0.9
	}
	return dec
}

// EffectiveUphill lowers the uphill threshold under accumulated load:
// tired runners switch to hiking on gentler grades. Clamped to
// [MinUphillPct, MaxUphillPct].
func (d *Detector) EffectiveUphill(elapsedH, totalKm float64) float64 {
	base := d.UphillPct

	fatigueReduction := 0.0
	if elapsedH > 2 {
		fatigueReduction = (elapsedH - 2) * 1.5
		if fatigueReduction > 5 {
			fatigueReduction = 5
		}
	}

	distanceReduction := 0.0
	if totalKm > 50 {
		distanceReduction = (totalKm - 50) / 25
		if distanceReduction > 3 {
			distanceReduction = 3
		}
	}

	eff := base - fatigueReduction - distanceReduction
	if eff < MinUphillPct {
		eff = MinUphillPct
	}
	if eff > MaxUphillPct {
		eff = MaxUphillPct
	}
	return eff
}

// ProcessRoute decides every segment in order. In adaptive mode each
// decision uses the threshold at the estimated elapsed time, advancing the
// clock with a rough per-mode speed.
func (d *Detector) ProcessRoute(segments []segment.MacroSegment) []Decision {
	totalKm := 0.0
	for _, s := range segments {
		totalKm += s.DistanceKm
	}

	decisions := make([]Decision, len(segments))
	elapsedH := 0.0
	for i, s := range segments {
		uphill := d.UphillPct
		if d.Adaptive {
			uphill = d.EffectiveUphill(elapsedH, totalKm)
		}
		dec := d.decideWith(s, uphill)
		decisions[i] = dec

		speed := roughRunKmh
		if dec.Mode == Hike {
			speed = roughHikeKmh
		}
		elapsedH += s.DistanceKm / speed
	}
	return decisions
}

// UphillSplit is one uphill kilometre used for threshold learning.
type UphillSplit struct {
	GradientPct float64
	PaceMinKm   float64
}

// minLearnSplits is the minimum number of uphill splits needed before the
// learned threshold is trusted.
const minLearnSplits = 10

// learnMinGradientPct restricts learning to genuinely uphill splits.
const learnMinGradientPct = 5.0

// LearnUphill estimates the gradient at which the user transitions from
// running to hiking: the point of maximal pace deterioration per unit of
// gradient. Reports false when there is not enough uphill data.
func LearnUphill(splits []UphillSplit) (float64, bool) {
	uphill := make([]UphillSplit, 0, len(splits))
	for _, s := range splits {
		if s.GradientPct > learnMinGradientPct {
			uphill = append(uphill, s)
		}
	}
	if len(uphill) < minLearnSplits {
		return 0, false
	}

	sort.Slice(uphill, func(i, j int) bool { return uphill[i].GradientPct < uphill[j].GradientPct })

	bestSlope := 0.0
	bestMid := 0.0
	found := false
	for i := 1; i < len(uphill); i++ {
		dg := uphill[i].GradientPct - uphill[i-1].GradientPct
		if dg <= 0 {
			continue
		}
		slope := (uphill[i].PaceMinKm - uphill[i-1].PaceMinKm) / dg
		if !found || slope > bestSlope {
			bestSlope = slope
			bestMid = (uphill[i].GradientPct + uphill[i-1].GradientPct) / 2
			found = true
		}
	}
	if !found {
		return 0, false
	}

	if bestMid < MinUphillPct {
		bestMid = MinUphillPct
	}
	if bestMid > MaxUphillPct {
		bestMid = MaxUphillPct
	}
	return bestMid, true
}
