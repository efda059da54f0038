package pace

import (
	"fmt"
	"math"

	"trailpace/internal/segment"
)

// ToblerSpeedKmh evaluates Tobler's hiking function for a gradient in
// percent. Speed peaks at 6 km/h on a -5% grade.
func ToblerSpeedKmh(gradientPct float64) float64 {
	g := gradientPct / 100
	return 6 * math.Exp(-3.5*math.Abs(g+0.05))
}

// ToblerPaceMinKm is the Tobler speed expressed as a per-km pace.
func ToblerPaceMinKm(gradientPct float64) float64 {
	return 60 / ToblerSpeedKmh(gradientPct)
}

func tobler(seg segment.MacroSegment, ctx Context) MethodResult {
	g := seg.GradientPercent()
	speed := ToblerSpeedKmh(g)
	timeH := seg.DistanceKm / speed * ctx.multiplier()
	return MethodResult{
		Method:    MethodTobler,
		Name:      MethodTobler.Name(),
		SpeedKmh:  speed,
		TimeHours: timeH,
		Formula:   fmt.Sprintf("6*exp(-3.5*|%.3f+0.05|) = %.2f km/h over %.2f km", g/100, speed, seg.DistanceKm),
	}
}
