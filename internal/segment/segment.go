// Package segment splits a GPS track into direction-coherent macro-segments,
// the unit of prediction for the rest of the engine.
package segment

import (
	"errors"
	"math"

	"trailpace/internal/geo"
)

// MinSegmentKm is the minimum length of a macro-segment. A direction change
// shorter than this is swallowed by the surrounding segment. The terminal
// segment may be shorter.
const MinSegmentKm = 0.3

// directionThresholdPct is the step gradient beyond which a step counts as
// up or down during detection.
const directionThresholdPct = 3.0

// smoothWindow is the elevation moving-average window.
const smoothWindow = 5

// minStepKm skips near-duplicate points to avoid dividing by ~zero.
const minStepKm = 0.001

// ErrTooFewPoints is returned for tracks with fewer than two points.
var ErrTooFewPoints = errors.New("track needs at least two points")

// Type classifies a macro-segment by its overall signed gradient.
type Type string

const (
	Ascent  Type = "ASCENT"
	Descent Type = "DESCENT"
	Flat    Type = "FLAT"
)

// MacroSegment is a direction-coherent stretch of a track.
type MacroSegment struct {
	Ordinal    int // 1-based
	Type       Type
	DistanceKm float64
	ElevGainM  float64
	ElevLossM  float64
	StartElevM float64
	EndElevM   float64
}

// ElevChangeM is the signed elevation change between the endpoints.
func (s MacroSegment) ElevChangeM() float64 {
	return s.EndElevM - s.StartElevM
}

// GradientPercent is the mean gradient of the segment in percent.
func (s MacroSegment) GradientPercent() float64 {
	return geo.GradientPercent(s.ElevChangeM(), s.DistanceKm)
}

// GradientDegrees is the mean gradient of the segment in degrees.
func (s MacroSegment) GradientDegrees() float64 {
	return geo.GradientDegrees(s.GradientPercent())
}

// typeForGradient derives the segment type from the actual signed gradient,
// not from the direction label used during detection.
func typeForGradient(gradientPct float64) Type {
	switch {
	case gradientPct > directionThresholdPct:
		return Ascent
	case gradientPct < -directionThresholdPct:
		return Descent
	default:
		return Flat
	}
}

type direction int

const (
	dirFlat direction = iota
	dirUp
	dirDown
)

// Split segments a track into an ordered list of macro-segments covering it.
func Split(points []geo.Point) ([]MacroSegment, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}

	cum := geo.CumulativeDistances(points)
	elev := geo.SmoothElevations(points, smoothWindow)

	var segments []MacroSegment
	current := dirFlat
	start := 0

	for i := 0; i < len(points)-1; i++ {
		stepKm := cum[i+1] - cum[i]
		if stepKm < minStepKm {
			continue
		}

		stepGrad := geo.GradientPercent(elev[i+1]-elev[i], stepKm)
		stepDir := dirFlat
		if stepGrad > directionThresholdPct {
			stepDir = dirUp
		} else if stepGrad < -directionThresholdPct {
			stepDir = dirDown
		}

		if stepDir != current && stepDir != dirFlat {
			// A reversal closes the current segment only once it is long
			// enough; short jitter is swallowed by the run.
			if cum[i]-cum[start] >= MinSegmentKm {
				segments = append(segments, build(len(segments)+1, cum, elev, start, i))
				start = i // adjacent segments share the boundary point
			}
			current = stepDir
		}
	}

	// The last segment is emitted unconditionally.
	segments = append(segments, build(len(segments)+1, cum, elev, start, len(points)-1))
	return segments, nil
}

// build constructs a macro-segment over points[start..end].
func build(ordinal int, cum, elev []float64, start, end int) MacroSegment {
	seg := MacroSegment{
		Ordinal:    ordinal,
		DistanceKm: cum[end] - cum[start],
		StartElevM: elev[start],
		EndElevM:   elev[end],
	}
	if start == end {
		// Single-point placeholder.
		seg.Type = Flat
		return seg
	}
	for i := start; i < end; i++ {
		d := elev[i+1] - elev[i]
		if d > 0 {
			seg.ElevGainM += d
		} else {
			seg.ElevLossM += math.Abs(d)
		}
	}
	seg.Type = typeForGradient(seg.GradientPercent())
	return seg
}
