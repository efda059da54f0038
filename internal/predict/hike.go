// Package predict orchestrates a full route: segmentation, per-segment
// pace models, run/hike threshold decisions and fatigue accumulation,
// summed into per-method totals.
package predict

import (
	"fmt"
	"math"

	"trailpace/internal/fatigue"
	"trailpace/internal/geo"
	"trailpace/internal/pace"
	"trailpace/internal/personal"
	"trailpace/internal/segment"
)

// Route-warning limits.
const (
	longRouteKm        = 40.0
	extremeGradientPct = 30.0
)

// HikeOptions configures a hiking prediction.
type HikeOptions struct {
	// Personaliser holds the user's hiking pace table; nil or invalid
	// disables the personalised variants.
	Personaliser *personal.Personaliser
	// Multiplier scales every method's time; zero means 1.0.
	Multiplier float64
	// Fatigue applies the hiking fatigue model per segment.
	Fatigue bool
}

// SegmentBreakdown is one segment with its per-method results.
type SegmentBreakdown struct {
	Segment segment.MacroSegment
	Methods []pace.MethodResult
}

// HikePrediction is the hiking-path output.
type HikePrediction struct {
	Segments        []SegmentBreakdown
	TotalsH         map[string]float64 // method name -> total hours
	TotalDistanceKm float64
	TotalAscentM    float64
	TotalDescentM   float64
	Warnings        []string
}

// PredictHike estimates a hiking route under Tobler and Naismith, plus
// their personalised flavours when the profile is usable.
func PredictHike(points []geo.Point, opts HikeOptions) (*HikePrediction, error) {
	segments, err := segment.Split(points)
	if err != nil {
		return nil, err
	}

	methods := []pace.Method{pace.MethodTobler, pace.MethodNaismith}
	ctx := pace.Context{Multiplier: opts.Multiplier}
	personalised := opts.Personaliser.Valid()
	if personalised {
		ctx.PersonalPace = opts.Personaliser.PaceFunc(personal.EffortModerate)
		methods = append(methods, pace.MethodToblerPersonalised, pace.MethodNaismithPersonalised)
	}

	trackers := make(map[pace.Method]*fatigue.Tracker, len(methods))
	if opts.Fatigue {
		for _, m := range methods {
			trackers[m] = fatigue.NewTracker(fatigue.HikingDefaults())
		}
	}

	p := &HikePrediction{
		TotalsH: make(map[string]float64, len(methods)),
	}
	for _, seg := range segments {
		bd := SegmentBreakdown{Segment: seg}
		for _, m := range methods {
			res := pace.Calculate(m, seg, ctx)
			if tr := trackers[m]; tr != nil {
				res.TimeHours = tr.Adjust(res.TimeHours, seg.GradientPercent())
			}
			p.TotalsH[m.Name()] += res.TimeHours
			bd.Methods = append(bd.Methods, res)
		}
		p.Segments = append(p.Segments, bd)
		p.TotalDistanceKm += seg.DistanceKm
		p.TotalAscentM += seg.ElevGainM
		p.TotalDescentM += seg.ElevLossM
	}

	p.Warnings = hikeWarnings(segments, p.TotalDistanceKm, personalised)
	return p, nil
}

func hikeWarnings(segments []segment.MacroSegment, totalKm float64, personalised bool) []string {
	var warnings []string
	if totalKm > longRouteKm {
		warnings = append(warnings, fmt.Sprintf("very long route (%.1f km); estimates get less reliable over %d km", totalKm, int(longRouteKm)))
	}
	for _, s := range segments {
		if math.Abs(s.GradientPercent()) > extremeGradientPct {
			warnings = append(warnings, fmt.Sprintf("segment %d has an extreme gradient (%.0f%%); expect scrambling terrain", s.Ordinal, s.GradientPercent()))
		}
	}
	if !personalised {
		warnings = append(warnings, "no personal hiking profile; using formula estimates only")
	}
	return warnings
}
