package pace

import (
	"fmt"
	"math"

	"trailpace/internal/segment"
)

const (
	naismithBaseKmh     = 5.0   // horizontal walking speed
	naismithClimbMPerH  = 600.0 // one hour per 600 m of ascent
	langmuirDescentUnit = 300.0 // correction unit, minutes per 300 m
	langmuirMinDeg      = 5.0
	langmuirSteepDeg    = 12.0
)

// naismith applies Naismith's rule with the Langmuir descent corrections.
func naismith(seg segment.MacroSegment, ctx Context) MethodResult {
	horizontal := seg.DistanceKm / naismithBaseKmh
	timeH := horizontal
	formula := fmt.Sprintf("%.2f/5", seg.DistanceKm)

	switch seg.Type {
	case segment.Ascent:
		climb := seg.ElevGainM / naismithClimbMPerH
		timeH += climb
		formula += fmt.Sprintf(" + %.0f/600", seg.ElevGainM)
	case segment.Descent:
		deg := math.Abs(seg.GradientDegrees())
		correction := (seg.ElevLossM / langmuirDescentUnit) * (10.0 / 60.0)
		switch {
		case deg < langmuirMinDeg:
			// gentle descent, no correction
		case deg <= langmuirSteepDeg:
			timeH -= correction
			formula += fmt.Sprintf(" - langmuir(%.0f m)", seg.ElevLossM)
		default:
			timeH += correction
			formula += fmt.Sprintf(" + langmuir(%.0f m)", seg.ElevLossM)
		}
		if timeH < 0 {
			timeH = 0
		}
	}

	timeH *= ctx.multiplier()
	speed := 0.0
	if timeH > 0 {
		speed = seg.DistanceKm / timeH
	}
	return MethodResult{
		Method:    MethodNaismith,
		Name:      MethodNaismith.Name(),
		SpeedKmh:  speed,
		TimeHours: timeH,
		Formula:   formula,
	}
}
