// Package pace implements the gradient-indexed pace and speed models used
// for time estimation: Tobler's hiking function, Naismith's rule with the
// Langmuir corrections, Minetti energy-cost GAP, the empirical Strava GAP
// table and a Strava+Minetti hybrid.
//
// Dispatch over models is a tagged Method variant with a single Calculate
// entry point; every variant yields the same MethodResult record.
package pace

import (
	"fmt"

	"trailpace/internal/segment"
)

// DefaultFlatPaceMinKm is the base flat pace assumed when no personal flat
// pace is available.
const DefaultFlatPaceMinKm = 6.0

// Method tags one pace model variant.
type Method int

const (
	MethodTobler Method = iota
	MethodNaismith
	MethodToblerPersonalised
	MethodNaismithPersonalised
	MethodGAPStrava
	MethodGAPMinetti
	MethodGAPStravaMinetti
	MethodPersonalisedRun
)

var methodNames = map[Method]string{
	MethodTobler:               "tobler",
	MethodNaismith:             "naismith",
	MethodToblerPersonalised:   "tobler_personalized",
	MethodNaismithPersonalised: "naismith_personalized",
	MethodGAPStrava:            "gap_strava",
	MethodGAPMinetti:           "gap_minetti",
	MethodGAPStravaMinetti:     "gap_strava_minetti",
	MethodPersonalisedRun:      "personalized_run",
}

// Name returns the stable identifier of the method.
func (m Method) Name() string { return methodNames[m] }

// MethodResult is the uniform output of every calculator.
type MethodResult struct {
	Method       Method
	Name         string
	SpeedKmh     float64
	TimeHours    float64
	Formula      string // human-readable derivation
	FromProfile  bool   // true when a personal pace table supplied the pace
}

// Context carries the per-route inputs a calculator may need.
type Context struct {
	// Multiplier scales the computed time; zero means 1.0.
	Multiplier float64
	// FlatPaceMinKm is the runner's base flat pace for the GAP models;
	// zero means DefaultFlatPaceMinKm.
	FlatPaceMinKm float64
	// PersonalPace supplies a per-km pace from the user's pace table for
	// the personalised variants. It reports false when no table applies.
	PersonalPace func(seg segment.MacroSegment) (paceMinKm float64, ok bool)
}

func (c Context) multiplier() float64 {
	if c.Multiplier == 0 {
		return 1.0
	}
	return c.Multiplier
}

func (c Context) flatPace() float64 {
	if c.FlatPaceMinKm == 0 {
		return DefaultFlatPaceMinKm
	}
	return c.FlatPaceMinKm
}

// Calculate runs one model variant over a segment.
func Calculate(m Method, seg segment.MacroSegment, ctx Context) MethodResult {
	switch m {
	case MethodTobler:
		return tobler(seg, ctx)
	case MethodNaismith:
		return naismith(seg, ctx)
	case MethodGAPStrava:
		return gapStrava(seg, ctx)
	case MethodGAPMinetti:
		return gapMinetti(seg, ctx)
	case MethodGAPStravaMinetti:
		return gapStravaMinetti(seg, ctx)
	case MethodToblerPersonalised:
		return personalised(m, seg, ctx, tobler)
	case MethodNaismithPersonalised:
		return personalised(m, seg, ctx, naismith)
	case MethodPersonalisedRun:
		return personalised(m, seg, ctx, gapStrava)
	default:
		panic(fmt.Sprintf("pace: unknown method %d", m))
	}
}

// personalised consults the pace table and falls back to the base variant
// when no table is configured.
func personalised(m Method, seg segment.MacroSegment, ctx Context, base func(segment.MacroSegment, Context) MethodResult) MethodResult {
	if ctx.PersonalPace == nil {
		res := base(seg, ctx)
		res.Method = m
		res.Name = m.Name()
		return res
	}
	paceMinKm, fromProfile := ctx.PersonalPace(seg)
	speed := 60 / paceMinKm
	timeH := seg.DistanceKm / speed * ctx.multiplier()
	return MethodResult{
		Method:      m,
		Name:        m.Name(),
		SpeedKmh:    speed,
		TimeHours:   timeH,
		Formula:     fmt.Sprintf("%.2f km at personal pace %.2f min/km", seg.DistanceKm, paceMinKm),
		FromProfile: fromProfile,
	}
}

// resultFromPace builds a MethodResult from a per-km pace.
func resultFromPace(m Method, seg segment.MacroSegment, paceMinKm, multiplier float64, formula string) MethodResult {
	speed := 60 / paceMinKm
	return MethodResult{
		Method:    m,
		Name:      m.Name(),
		SpeedKmh:  speed,
		TimeHours: seg.DistanceKm / speed * multiplier,
		Formula:   formula,
	}
}
