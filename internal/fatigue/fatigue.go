// Package fatigue models the slowdown that accumulates over long efforts.
// The multiplier is 1.0 up to a threshold, then grows linearly and
// quadratically with the hours beyond it; downhills late in a run carry an
// extra penalty because of eccentric muscle damage.
package fatigue

// downhillGradientPct is the gradient below which the downhill multiplier
// applies.
const downhillGradientPct = -5.0

// Model holds the fatigue curve parameters.
type Model struct {
	ThresholdH         float64
	LinearRate         float64
	QuadraticRate      float64
	DownhillMultiplier float64
}

// HikingDefaults returns the fatigue parameters for hikers.
func HikingDefaults() Model {
	return Model{ThresholdH: 3.0, LinearRate: 0.03, QuadraticRate: 0.005, DownhillMultiplier: 1.0}
}

// RunningDefaults returns the fatigue parameters for trail runners.
func RunningDefaults() Model {
	return Model{ThresholdH: 2.0, LinearRate: 0.05, QuadraticRate: 0.008, DownhillMultiplier: 1.5}
}

// ForRouteLength adapts a runner's threshold to the route length: ultra
// distances shift the onset of fatigue later.
func (m Model) ForRouteLength(totalKm float64) Model {
	switch {
	case totalKm >= 100:
		m.ThresholdH = 4.0
	case totalKm >= 50:
		m.ThresholdH = 3.0
	}
	return m
}

// Multiplier returns the fatigue factor at a point in time.
func (m Model) Multiplier(elapsedH, gradientPct float64) float64 {
	extra := elapsedH - m.ThresholdH
	if extra <= 0 {
		return 1.0
	}
	base := 1 + m.LinearRate*extra + m.QuadraticRate*extra*extra
	if gradientPct < downhillGradientPct {
		base *= m.DownhillMultiplier
	}
	return base
}

// Tracker applies a model segment by segment, keeping the cumulative
// elapsed time. The multiplier is evaluated at the segment midpoint and the
// cumulative clock advances by the adjusted time.
type Tracker struct {
	model    Model
	elapsedH float64
}

// NewTracker starts a tracker at zero elapsed time.
func NewTracker(model Model) *Tracker {
	return &Tracker{model: model}
}

// Adjust scales a segment's base time by the fatigue multiplier at its
// midpoint and advances the clock.
func (t *Tracker) Adjust(baseTimeH, gradientPct float64) float64 {
	mult := t.model.Multiplier(t.elapsedH+baseTimeH/2, gradientPct)
	adjusted := baseTimeH * mult
	t.elapsedH += adjusted
	return adjusted
}

// ElapsedH returns the cumulative adjusted time so far.
func (t *Tracker) ElapsedH() float64 {
	return t.elapsedH
}
