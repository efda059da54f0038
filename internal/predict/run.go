package predict

import (
	"trailpace/internal/fatigue"
	"trailpace/internal/geo"
	"trailpace/internal/pace"
	"trailpace/internal/personal"
	"trailpace/internal/segment"
	"trailpace/internal/threshold"
)

// GAPMode selects the grade-adjustment table for run segments.
type GAPMode string

const (
	GAPStrava        GAPMode = "strava"
	GAPMinetti       GAPMode = "minetti"
	GAPStravaMinetti GAPMode = "strava_minetti"
)

func (m GAPMode) method() pace.Method {
	switch m {
	case GAPMinetti:
		return pace.MethodGAPMinetti
	case GAPStravaMinetti:
		return pace.MethodGAPStravaMinetti
	default:
		return pace.MethodGAPStrava
	}
}

// RunOptions configures a trail-running prediction.
type RunOptions struct {
	// GAPMode picks the run-side model for the combined estimate.
	GAPMode GAPMode
	// FlatPaceMinKm is the runner's flat pace; zero falls back to the
	// profile's flat pace, then the package default.
	FlatPaceMinKm float64
	// Personaliser holds the user's running pace table.
	Personaliser *personal.Personaliser
	// WalkThresholdPct overrides the uphill run/hike threshold; nil uses
	// the default.
	WalkThresholdPct *float64
	// AdaptiveThreshold lowers the threshold under accumulated load.
	AdaptiveThreshold bool
	// Fatigue applies the running fatigue model to the combined estimate.
	Fatigue bool
}

// RunSegmentBreakdown is one segment with its threshold decision and the
// combined per-segment time.
type RunSegmentBreakdown struct {
	Segment       segment.MacroSegment
	Decision      threshold.Decision
	CombinedTimeH float64
}

// RunPrediction is the trail-running-path output.
type RunPrediction struct {
	Segments []RunSegmentBreakdown
	// TotalsH holds every estimate in hours, keyed by its stable name:
	// all_run_* for always-running, run_hike_<gap>_<hike> for the mixed
	// combinations, *_personalized_<effort> when a profile is usable, and
	// combined for the primary estimate.
	TotalsH map[string]float64

	RunningDistanceKm float64
	RunningTimeH      float64
	HikingDistanceKm  float64
	HikingTimeH       float64
	TotalDistanceKm   float64
	TotalAscentM      float64
	TotalDescentM     float64

	// ElevationImpactPct is how much the combined estimate exceeds the
	// flat-equivalent time for the same distance.
	ElevationImpactPct float64

	Warnings []string
}

var gapMethods = []pace.Method{pace.MethodGAPStrava, pace.MethodGAPMinetti, pace.MethodGAPStravaMinetti}
var hikeMethods = []pace.Method{pace.MethodTobler, pace.MethodNaismith}
var efforts = []personal.Effort{personal.EffortRace, personal.EffortModerate, personal.EffortEasy}

// PredictTrailRun estimates a trail-running route: always-run totals under
// each GAP variant, the six run+hike combinations, personalised totals at
// each effort, and the combined primary estimate with fatigue.
func PredictTrailRun(points []geo.Point, opts RunOptions) (*RunPrediction, error) {
	segments, err := segment.Split(points)
	if err != nil {
		return nil, err
	}
	if opts.GAPMode == "" {
		opts.GAPMode = GAPStrava
	}

	personalised := opts.Personaliser.Valid()
	flatPace := opts.FlatPaceMinKm
	if flatPace == 0 && personalised {
		flatPace, _ = opts.Personaliser.FlatPace()
	}
	ctx := pace.Context{FlatPaceMinKm: flatPace}

	detector := threshold.NewDetector()
	detector.Adaptive = opts.AdaptiveThreshold
	if opts.WalkThresholdPct != nil {
		detector.UphillPct = *opts.WalkThresholdPct
	}
	decisions := detector.ProcessRoute(segments)

	totalKm := 0.0
	for _, s := range segments {
		totalKm += s.DistanceKm
	}
	model := fatigue.RunningDefaults().ForRouteLength(totalKm)
	var tracker *fatigue.Tracker
	if opts.Fatigue {
		tracker = fatigue.NewTracker(model)
	}

	p := &RunPrediction{
		TotalsH:         make(map[string]float64),
		TotalDistanceKm: totalKm,
	}

	for i, seg := range segments {
		dec := decisions[i]
		grad := seg.GradientPercent()

		// Always-run and always-hike baselines for every variant.
		runTimes := make(map[pace.Method]float64, len(gapMethods))
		for _, m := range gapMethods {
			t := pace.Calculate(m, seg, ctx).TimeHours
			runTimes[m] = t
			p.TotalsH["all_run_"+gapName(m)] += t
		}
		hikeTimes := make(map[pace.Method]float64, len(hikeMethods))
		for _, m := range hikeMethods {
			hikeTimes[m] = pace.Calculate(m, seg, ctx).TimeHours
		}

		// The six run+hike combinations.
		for _, rm := range gapMethods {
			for _, hm := range hikeMethods {
				key := "run_hike_" + gapName(rm) + "_" + hm.Name()
				if dec.Mode == threshold.Run {
					p.TotalsH[key] += runTimes[rm]
				} else {
					p.TotalsH[key] += hikeTimes[hm]
				}
			}
		}

		// Personalised totals per effort.
		var personalTimes map[personal.Effort]float64
		if personalised {
			personalTimes = make(map[personal.Effort]float64, len(efforts))
			for _, e := range efforts {
				ectx := ctx
				ectx.PersonalPace = opts.Personaliser.PaceFunc(e)
				t := pace.Calculate(pace.MethodPersonalisedRun, seg, ectx).TimeHours
				personalTimes[e] = t
				p.TotalsH["all_run_personalized_"+string(e)] += t
				if dec.Mode == threshold.Run {
					p.TotalsH["run_hike_personalized_"+string(e)] += t
				} else {
					p.TotalsH["run_hike_personalized_"+string(e)] += hikeTimes[pace.MethodTobler]
				}
			}
		}

		// Combined primary estimate: personal pace when usable, else the
		// chosen GAP variant on run segments and Tobler on hike segments.
		var combined float64
		if dec.Mode == threshold.Run {
			if personalised {
				combined = personalTimes[personal.EffortModerate]
			} else {
				combined = runTimes[opts.GAPMode.method()]
			}
			p.RunningDistanceKm += seg.DistanceKm
		} else {
			combined = hikeTimes[pace.MethodTobler]
			p.HikingDistanceKm += seg.DistanceKm
		}
		if tracker != nil {
			combined = tracker.Adjust(combined, grad)
		}
		p.TotalsH["combined"] += combined
		if dec.Mode == threshold.Run {
			p.RunningTimeH += combined
		} else {
			p.HikingTimeH += combined
		}

		p.TotalAscentM += seg.ElevGainM
		p.TotalDescentM += seg.ElevLossM
		p.Segments = append(p.Segments, RunSegmentBreakdown{
			Segment:       seg,
			Decision:      dec,
			CombinedTimeH: combined,
		})
	}

	// Flat-equivalent comparison at the effective flat pace.
	effFlat := ctx.FlatPaceMinKm
	if effFlat == 0 {
		effFlat = pace.DefaultFlatPaceMinKm
	}
	flatTimeH := totalKm * effFlat / 60
	if flatTimeH > 0 {
		p.ElevationImpactPct = (p.TotalsH["combined"] - flatTimeH) / flatTimeH * 100
	}

	if !personalised {
		p.Warnings = append(p.Warnings, "no personal running profile; using formula estimates only")
	}
	return p, nil
}

func gapName(m pace.Method) string {
	switch m {
	case pace.MethodGAPMinetti:
		return "minetti"
	case pace.MethodGAPStravaMinetti:
		return "strava_minetti"
	default:
		return "strava"
	}
}
