// Package geo provides the geometric primitives shared by the route
// analytics engine: great-circle distances, gradient math and elevation
// smoothing.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for great-circle distances.
const EarthRadiusKm = 6371.0

// Point is a single track point.
type Point struct {
	Lat       float64 // degrees
	Lon       float64 // degrees
	Elevation float64 // meters
}

// Haversine returns the great-circle distance between two points in km.
func Haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// CumulativeDistances returns the running distance along the track in km.
// The result has the same length as points; the first entry is 0.
func CumulativeDistances(points []Point) []float64 {
	cum := make([]float64, len(points))
	for i := 1; i < len(points); i++ {
		cum[i] = cum[i-1] + Haversine(points[i-1], points[i])
	}
	return cum
}

// SmoothElevations applies a centred moving average to the elevation series.
// The window is shrunk near the edges so the result covers every point.
func SmoothElevations(points []Point, window int) []float64 {
	smoothed := make([]float64, len(points))
	if window < 1 {
		window = 1
	}
	half := window / 2
	for i := range points {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > len(points)-1 {
			hi = len(points) - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += points[j].Elevation
		}
		smoothed[i] = sum / float64(hi-lo+1)
	}
	return smoothed
}

// GradientPercent returns the gradient in percent for an elevation change
// over a horizontal distance. Returns 0 when the distance is zero.
func GradientPercent(elevChangeM, distanceKm float64) float64 {
	if distanceKm == 0 {
		return 0
	}
	return elevChangeM / (distanceKm * 1000) * 100
}

// GradientDegrees converts a gradient in percent to degrees.
func GradientDegrees(gradientPercent float64) float64 {
	return math.Atan(gradientPercent/100) * 180 / math.Pi
}
