package predict

import (
	"math"
	"testing"

	"trailpace/internal/geo"
	"trailpace/internal/personal"
	"trailpace/internal/segment"
	"trailpace/internal/threshold"
)

// kmPerDegreeLon is the longitude degrees per km along the equator.
const kmPerDegreeLon = 1.0 / 111.19492664455873

// track builds points along the equator with the given spacing in km and a
// linear elevation ramp from startElev to endElev.
func track(lengthKm, stepKm, startElev, endElev float64) []geo.Point {
	n := int(math.Round(lengthKm/stepKm)) + 1
	points := make([]geo.Point, n)
	for i := 0; i < n; i++ {
		frac := float64(i) / float64(n-1)
		points[i] = geo.Point{
			Lon:       float64(i) * stepKm * kmPerDegreeLon,
			Elevation: startElev + frac*(endElev-startElev),
		}
	}
	return points
}

func TestHikeFlatTenKm(t *testing.T) {
	points := track(10, 0.05, 1000, 1000)

	p, err := PredictHike(points, HikeOptions{})
	if err != nil {
		t.Fatalf("PredictHike: %v", err)
	}

	if len(p.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(p.Segments))
	}
	seg0 := p.Segments[0].Segment
	if seg0.Type != segment.Flat {
		t.Errorf("segment type = %s, want FLAT", seg0.Type)
	}
	if math.Abs(p.TotalDistanceKm-10) > 0.01 {
		t.Errorf("total distance = %.3f, want 10", p.TotalDistanceKm)
	}
	if got := p.TotalsH["naismith"]; math.Abs(got-2.0) > 1e-6 {
		t.Errorf("naismith = %.4f h, want 2.0", got)
	}
	// Tobler at 0%% is just over 5 km/h.
	if got := p.TotalsH["tobler"]; math.Abs(got-2.0) > 0.05 {
		t.Errorf("tobler = %.4f h, want ~2.0", got)
	}
	// No personalised methods without a profile.
	if _, ok := p.TotalsH["tobler_personalized"]; ok {
		t.Error("personalised total present without a profile")
	}
}

func TestHikeSteadyAscent(t *testing.T) {
	points := track(3, 0.01, 1000, 1600)

	p, err := PredictHike(points, HikeOptions{})
	if err != nil {
		t.Fatalf("PredictHike: %v", err)
	}
	if len(p.Segments) != 1 {
		t.Fatalf("got %d segments, want 1", len(p.Segments))
	}
	if p.Segments[0].Segment.Type != segment.Ascent {
		t.Errorf("segment type = %s, want ASCENT", p.Segments[0].Segment.Type)
	}
	// 3/5 h horizontal + 600/600 h of climb, within smoothing tolerance.
	if got := p.TotalsH["naismith"]; math.Abs(got-1.60) > 0.01 {
		t.Errorf("naismith = %.4f h, want 1.60", got)
	}
	// Tobler at +20%% is about 2.5 km/h.
	if got := p.TotalsH["tobler"]; math.Abs(got-1.20) > 0.02 {
		t.Errorf("tobler = %.4f h, want ~1.20", got)
	}
}

func TestHikeLangmuirSteepDescent(t *testing.T) {
	points := track(2, 0.01, 1600, 1000)

	p, err := PredictHike(points, HikeOptions{})
	if err != nil {
		t.Fatalf("PredictHike: %v", err)
	}
	if p.Segments[0].Segment.Type != segment.Descent {
		t.Errorf("segment type = %s, want DESCENT", p.Segments[0].Segment.Type)
	}
	// 0.40 h horizontal plus the steep-descent penalty of 0.333 h.
	if got := p.TotalsH["naismith"]; math.Abs(got-0.7333) > 0.01 {
		t.Errorf("naismith = %.4f h, want 0.733", got)
	}
}

func TestHikePersonalisedVariants(t *testing.T) {
	points := track(10, 0.05, 1000, 1000)

	table := personal.PaceTable{
		"flat": {AvgPaceMinKm: 12.0, SampleCount: 20},
	}
	pers := personal.New(table, 5, personal.ToblerFallback())

	p, err := PredictHike(points, HikeOptions{Personaliser: pers})
	if err != nil {
		t.Fatalf("PredictHike: %v", err)
	}
	got, ok := p.TotalsH["tobler_personalized"]
	if !ok {
		t.Fatal("tobler_personalized missing despite valid profile")
	}
	// 10 km at 12 min/km.
	if math.Abs(got-2.0) > 0.01 {
		t.Errorf("tobler_personalized = %.4f h, want 2.0", got)
	}
	for _, w := range p.Warnings {
		if w == "no personal hiking profile; using formula estimates only" {
			t.Error("profile warning emitted despite valid profile")
		}
	}
}

func TestHikeWarnings(t *testing.T) {
	// 45 km flat: long-route warning plus the missing-profile warning.
	points := track(45, 0.25, 2000, 2000)
	p, err := PredictHike(points, HikeOptions{})
	if err != nil {
		t.Fatalf("PredictHike: %v", err)
	}
	if len(p.Warnings) != 2 {
		t.Fatalf("warnings = %v, want long-route and no-profile", p.Warnings)
	}
}

func TestHikeFatigueExtendsLongRoutes(t *testing.T) {
	points := track(40, 0.2, 1000, 1000)

	base, err := PredictHike(points, HikeOptions{})
	if err != nil {
		t.Fatal(err)
	}
	fatigued, err := PredictHike(points, HikeOptions{Fatigue: true})
	if err != nil {
		t.Fatal(err)
	}
	// 40 flat km takes ~8 h; the segment midpoint sits well past the 3 h
	// hiking fatigue threshold.
	if fatigued.TotalsH["naismith"] <= base.TotalsH["naismith"] {
		t.Errorf("fatigue did not extend the estimate: %.3f <= %.3f",
			fatigued.TotalsH["naismith"], base.TotalsH["naismith"])
	}
}

func TestTrailRunFlatAllRun(t *testing.T) {
	points := track(10, 0.05, 500, 500)

	p, err := PredictTrailRun(points, RunOptions{FlatPaceMinKm: 6.0})
	if err != nil {
		t.Fatalf("PredictTrailRun: %v", err)
	}

	// Flat terrain: every segment is run.
	if p.HikingDistanceKm != 0 {
		t.Errorf("hiking distance = %.2f, want 0", p.HikingDistanceKm)
	}
	if math.Abs(p.RunningDistanceKm-10) > 0.01 {
		t.Errorf("running distance = %.2f, want 10", p.RunningDistanceKm)
	}
	// 10 km at 6 min/km flat.
	if got := p.TotalsH["all_run_strava"]; math.Abs(got-1.0) > 0.01 {
		t.Errorf("all_run_strava = %.4f h, want 1.0", got)
	}
	if got := p.TotalsH["combined"]; math.Abs(got-1.0) > 0.01 {
		t.Errorf("combined = %.4f h, want 1.0", got)
	}
	if math.Abs(p.ElevationImpactPct) > 2 {
		t.Errorf("elevation impact = %.2f%%, want ~0", p.ElevationImpactPct)
	}

	// All six run+hike combinations exist and equal the all-run totals on
	// a pure running route.
	for _, key := range []string{
		"run_hike_strava_tobler", "run_hike_strava_naismith",
		"run_hike_minetti_tobler", "run_hike_minetti_naismith",
		"run_hike_strava_minetti_tobler", "run_hike_strava_minetti_naismith",
	} {
		if _, ok := p.TotalsH[key]; !ok {
			t.Errorf("missing combination %q", key)
		}
	}
	if p.TotalsH["run_hike_strava_tobler"] != p.TotalsH["all_run_strava"] {
		t.Error("run+hike total should equal all-run total when nothing is hiked")
	}
}

func TestTrailRunSteepClimbIsHiked(t *testing.T) {
	// 2 km at +30%: above the default 25% walk threshold.
	points := track(2, 0.01, 1000, 1600)

	p, err := PredictTrailRun(points, RunOptions{FlatPaceMinKm: 6.0})
	if err != nil {
		t.Fatalf("PredictTrailRun: %v", err)
	}
	if p.Segments[0].Decision.Mode != threshold.Hike {
		t.Fatalf("mode = %s, want HIKE", p.Segments[0].Decision.Mode)
	}
	if p.RunningDistanceKm != 0 {
		t.Errorf("running distance = %.2f, want 0", p.RunningDistanceKm)
	}
	// Hiked segments use Tobler in the combined estimate.
	if math.Abs(p.TotalsH["combined"]-p.TotalsH["run_hike_strava_tobler"]) > 1e-9 {
		t.Error("combined should match the Tobler hike side on an all-hike route")
	}
	if p.ElevationImpactPct <= 0 {
		t.Errorf("elevation impact = %.2f%%, want positive on a steep climb", p.ElevationImpactPct)
	}
}

func TestTrailRunPersonalisedEfforts(t *testing.T) {
	points := track(10, 0.05, 500, 500)

	table := personal.PaceTable{
		"flat": {
			AvgPaceMinKm: 5.5, SampleCount: 30,
			P25: 5.0, P50: 5.5, P75: 6.2, HasPercentiles: true,
		},
	}
	pers := personal.New(table, 10, personal.StravaGAPFallback(5.5))

	p, err := PredictTrailRun(points, RunOptions{Personaliser: pers})
	if err != nil {
		t.Fatalf("PredictTrailRun: %v", err)
	}

	race := p.TotalsH["all_run_personalized_race"]
	moderate := p.TotalsH["all_run_personalized_moderate"]
	easy := p.TotalsH["all_run_personalized_easy"]
	if race <= 0 || moderate <= 0 || easy <= 0 {
		t.Fatalf("personalised totals missing: race=%v moderate=%v easy=%v", race, moderate, easy)
	}
	if !(race < moderate && moderate < easy) {
		t.Errorf("effort ordering violated: race=%.3f moderate=%.3f easy=%.3f", race, moderate, easy)
	}
	// Combined uses the moderate personal pace on run segments.
	if math.Abs(p.TotalsH["combined"]-moderate) > 1e-9 {
		t.Error("combined should follow the moderate personalised pace")
	}
}

func TestTrailRunFatigueOnUltra(t *testing.T) {
	points := track(100, 0.5, 800, 800)

	base, err := PredictTrailRun(points, RunOptions{FlatPaceMinKm: 6.0})
	if err != nil {
		t.Fatal(err)
	}
	fatigued, err := PredictTrailRun(points, RunOptions{FlatPaceMinKm: 6.0, Fatigue: true})
	if err != nil {
		t.Fatal(err)
	}
	if fatigued.TotalsH["combined"] <= base.TotalsH["combined"] {
		t.Error("fatigue did not extend the combined estimate")
	}
}

func TestPredictRejectsTooFewPoints(t *testing.T) {
	_, err := PredictHike([]geo.Point{{Lat: 0, Lon: 0}}, HikeOptions{})
	if err == nil {
		t.Fatal("expected an error for a single-point track")
	}
	_, err = PredictTrailRun(nil, RunOptions{})
	if err == nil {
		t.Fatal("expected an error for an empty track")
	}
}
