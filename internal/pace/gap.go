package pace

import (
	"fmt"

	"trailpace/internal/segment"
)

// tableRow maps a gradient in percent to a pace factor relative to flat.
type tableRow struct {
	gradientPct float64
	factor      float64
}

// minettiTable is the energy-cost-of-locomotion ratio relative to level
// running, tabulated from the Minetti treadmill measurements. Cost bottoms
// out around a -10% to -15% grade.
var minettiTable = []tableRow{
	{-40, 1.24},
	{-30, 0.92},
	{-25, 0.78},
	{-20, 0.66},
	{-15, 0.58},
	{-10, 0.57},
	{-5, 0.72},
	{0, 1.00},
	{5, 1.38},
	{10, 1.78},
	{15, 2.21},
	{20, 2.64},
	{25, 3.08},
	{30, 3.51},
	{40, 4.35},
}

// stravaTable is the empirical Strava grade-adjusted-pace curve. Downhills
// help only mildly (fastest around -10%) and steep descents cost time.
var stravaTable = []tableRow{
	{-40, 1.75},
	{-30, 1.45},
	{-25, 1.26},
	{-20, 1.09},
	{-15, 0.94},
	{-10, 0.87},
	{-8, 0.875},
	{-6, 0.89},
	{-4, 0.92},
	{-2, 0.96},
	{0, 1.00},
	{2, 1.06},
	{4, 1.14},
	{6, 1.23},
	{8, 1.34},
	{10, 1.46},
	{15, 1.81},
	{20, 2.22},
	{25, 2.68},
	{30, 3.19},
	{40, 4.34},
}

// interpolate looks up a gradient in a factor table, interpolating linearly
// between rows and clamping beyond the table ends.
func interpolate(table []tableRow, gradientPct float64) float64 {
	if gradientPct <= table[0].gradientPct {
		return table[0].factor
	}
	last := table[len(table)-1]
	if gradientPct >= last.gradientPct {
		return last.factor
	}
	for i := 1; i < len(table); i++ {
		if gradientPct <= table[i].gradientPct {
			lo, hi := table[i-1], table[i]
			frac := (gradientPct - lo.gradientPct) / (hi.gradientPct - lo.gradientPct)
			return lo.factor + frac*(hi.factor-lo.factor)
		}
	}
	return last.factor
}

// StravaGAPPaceMinKm adjusts a flat pace by the empirical Strava curve.
func StravaGAPPaceMinKm(flatPaceMinKm, gradientPct float64) float64 {
	return flatPaceMinKm * interpolate(stravaTable, gradientPct)
}

// MinettiPaceMinKm adjusts a flat pace by the Minetti energy-cost ratio.
func MinettiPaceMinKm(flatPaceMinKm, gradientPct float64) float64 {
	return flatPaceMinKm * interpolate(minettiTable, gradientPct)
}

func gapStrava(seg segment.MacroSegment, ctx Context) MethodResult {
	g := seg.GradientPercent()
	p := StravaGAPPaceMinKm(ctx.flatPace(), g)
	return resultFromPace(MethodGAPStrava, seg, p, ctx.multiplier(),
		fmt.Sprintf("strava factor %.2f at %.1f%% on %.2f min/km", interpolate(stravaTable, g), g, ctx.flatPace()))
}

func gapMinetti(seg segment.MacroSegment, ctx Context) MethodResult {
	g := seg.GradientPercent()
	p := MinettiPaceMinKm(ctx.flatPace(), g)
	return resultFromPace(MethodGAPMinetti, seg, p, ctx.multiplier(),
		fmt.Sprintf("minetti ratio %.2f at %.1f%% on %.2f min/km", interpolate(minettiTable, g), g, ctx.flatPace()))
}

// gapStravaMinetti uses the Minetti table on uphills and the Strava table
// on downhills and flat.
func gapStravaMinetti(seg segment.MacroSegment, ctx Context) MethodResult {
	g := seg.GradientPercent()
	var p float64
	var source string
	if g > 0 {
		p = MinettiPaceMinKm(ctx.flatPace(), g)
		source = "minetti"
	} else {
		p = StravaGAPPaceMinKm(ctx.flatPace(), g)
		source = "strava"
	}
	return resultFromPace(MethodGAPStravaMinetti, seg, p, ctx.multiplier(),
		fmt.Sprintf("%s side at %.1f%% on %.2f min/km", source, g, ctx.flatPace()))
}
