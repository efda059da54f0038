package pace

import (
	"math"
	"testing"

	"trailpace/internal/segment"
)

func TestToblerSpeed(t *testing.T) {
	// Maximum is exactly 6 km/h at -5%
	if got := ToblerSpeedKmh(-5); math.Abs(got-6) > 1e-9 {
		t.Errorf("ToblerSpeedKmh(-5) = %v, want 6", got)
	}

	// Monotonicity: speed(+10%) < speed(0) < speed(-5%)
	up := ToblerSpeedKmh(10)
	flat := ToblerSpeedKmh(0)
	down := ToblerSpeedKmh(-5)
	if !(up < flat && flat < down) {
		t.Errorf("monotonicity violated: up=%v flat=%v down=%v", up, flat, down)
	}

	// Flat walking speed: 6*exp(-3.5*0.05) ≈ 5.04 km/h
	if math.Abs(flat-6*math.Exp(-0.175)) > 1e-9 {
		t.Errorf("flat speed = %v", flat)
	}

	// S2: +20% gradient ≈ 2.50 km/h
	if got := ToblerSpeedKmh(20); math.Abs(got-2.50) > 0.01 {
		t.Errorf("ToblerSpeedKmh(20) = %v, want ~2.50", got)
	}
}

func TestToblerSegment(t *testing.T) {
	seg := segment.MacroSegment{Type: segment.Flat, DistanceKm: 10, StartElevM: 1000, EndElevM: 1000}
	res := Calculate(MethodTobler, seg, Context{})
	// Tobler on level ground: 10 km at ~5.04 km/h
	want := 10 / (6 * math.Exp(-0.175))
	if math.Abs(res.TimeHours-want) > 1e-9 {
		t.Errorf("time = %v, want %v", res.TimeHours, want)
	}
	if res.Name != "tobler" {
		t.Errorf("name = %q", res.Name)
	}
}

func TestNaismith(t *testing.T) {
	tests := []struct {
		name  string
		seg   segment.MacroSegment
		wantH float64
		tol   float64
	}{
		{
			name:  "flat 10 km",
			seg:   segment.MacroSegment{Type: segment.Flat, DistanceKm: 10, StartElevM: 1000, EndElevM: 1000},
			wantH: 2.0,
			tol:   1e-9,
		},
		{
			// S2: 3 km climbing 600 m: 3/5 + 600/600 = 1.60 h
			name:  "uniform ascent",
			seg:   segment.MacroSegment{Type: segment.Ascent, DistanceKm: 3, ElevGainM: 600, StartElevM: 1000, EndElevM: 1600},
			wantH: 1.60,
			tol:   1e-9,
		},
		{
			// S3: 2 km descending 600 m (~-16.7°): 0.40 + (600/300)*(10/60) = 0.733 h
			name:  "steep descent adds langmuir penalty",
			seg:   segment.MacroSegment{Type: segment.Descent, DistanceKm: 2, ElevLossM: 600, StartElevM: 1600, EndElevM: 1000},
			wantH: 0.7333333,
			tol:   1e-6,
		},
		{
			// moderate descent (5°-12°) subtracts the correction:
			// 3 km losing 300 m is ~-5.7°: 0.6 - (300/300)*(10/60) = 0.4333 h
			name:  "moderate descent subtracts langmuir",
			seg:   segment.MacroSegment{Type: segment.Descent, DistanceKm: 3, ElevLossM: 300, StartElevM: 1300, EndElevM: 1000},
			wantH: 0.4333333,
			tol:   1e-6,
		},
		{
			// gentle descent (<5°) gets no correction: 4 km losing 100 m is ~-1.4°
			name:  "gentle descent uncorrected",
			seg:   segment.MacroSegment{Type: segment.Descent, DistanceKm: 4, ElevLossM: 100, StartElevM: 1100, EndElevM: 1000},
			wantH: 0.8,
			tol:   1e-9,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Calculate(MethodNaismith, tt.seg, Context{})
			if math.Abs(res.TimeHours-tt.wantH) > tt.tol {
				t.Errorf("time = %v, want %v", res.TimeHours, tt.wantH)
			}
		})
	}
}

func TestNaismithMoreClimbIsSlower(t *testing.T) {
	a := segment.MacroSegment{Type: segment.Ascent, DistanceKm: 5, ElevGainM: 200, StartElevM: 0, EndElevM: 200}
	b := segment.MacroSegment{Type: segment.Ascent, DistanceKm: 5, ElevGainM: 500, StartElevM: 0, EndElevM: 500}
	ta := Calculate(MethodNaismith, a, Context{}).TimeHours
	tb := Calculate(MethodNaismith, b, Context{}).TimeHours
	if !(ta < tb) {
		t.Errorf("time(%v m) = %v should be < time(%v m) = %v", 200, ta, 500, tb)
	}
}

func TestInterpolate(t *testing.T) {
	// Exact row hits
	if f := interpolate(stravaTable, 0); f != 1.0 {
		t.Errorf("factor at 0%% = %v, want 1.0", f)
	}
	// Between rows: midway between 0 (1.00) and 2 (1.06)
	if f := interpolate(stravaTable, 1); math.Abs(f-1.03) > 1e-9 {
		t.Errorf("factor at 1%% = %v, want 1.03", f)
	}
	// Clamped beyond table ends
	if f := interpolate(stravaTable, -60); f != stravaTable[0].factor {
		t.Errorf("factor at -60%% = %v, want clamp %v", f, stravaTable[0].factor)
	}
	if f := interpolate(stravaTable, 80); f != stravaTable[len(stravaTable)-1].factor {
		t.Errorf("factor at 80%% = %v, want clamp", f)
	}
}

func TestGAPVariants(t *testing.T) {
	up := segment.MacroSegment{Type: segment.Ascent, DistanceKm: 1, StartElevM: 0, EndElevM: 100}
	down := segment.MacroSegment{Type: segment.Descent, DistanceKm: 1, StartElevM: 100, EndElevM: 0}
	ctx := Context{FlatPaceMinKm: 5}

	// Uphill GAP is slower than the configured flat pace for all variants.
	for _, m := range []Method{MethodGAPStrava, MethodGAPMinetti, MethodGAPStravaMinetti} {
		res := Calculate(m, up, ctx)
		if res.TimeHours <= 1.0/12 { // 5 min/km over 1 km = 1/12 h
			t.Errorf("%s uphill time %v not slower than flat", res.Name, res.TimeHours)
		}
	}

	// Hybrid matches Minetti uphill and Strava downhill.
	hyUp := Calculate(MethodGAPStravaMinetti, up, ctx)
	miUp := Calculate(MethodGAPMinetti, up, ctx)
	if math.Abs(hyUp.TimeHours-miUp.TimeHours) > 1e-12 {
		t.Errorf("hybrid uphill %v != minetti %v", hyUp.TimeHours, miUp.TimeHours)
	}
	hyDown := Calculate(MethodGAPStravaMinetti, down, ctx)
	stDown := Calculate(MethodGAPStrava, down, ctx)
	if math.Abs(hyDown.TimeHours-stDown.TimeHours) > 1e-12 {
		t.Errorf("hybrid downhill %v != strava %v", hyDown.TimeHours, stDown.TimeHours)
	}
}

func TestMultiplierApplied(t *testing.T) {
	seg := segment.MacroSegment{Type: segment.Flat, DistanceKm: 6, StartElevM: 0, EndElevM: 0}
	for _, m := range []Method{MethodTobler, MethodNaismith, MethodGAPStrava, MethodGAPMinetti, MethodGAPStravaMinetti} {
		base := Calculate(m, seg, Context{})
		scaled := Calculate(m, seg, Context{Multiplier: 1.5})
		if math.Abs(scaled.TimeHours-1.5*base.TimeHours) > 1e-9 {
			t.Errorf("%s: multiplier not applied: %v vs %v", m.Name(), scaled.TimeHours, base.TimeHours)
		}
	}
}

func TestPersonalisedFallsBackWithoutTable(t *testing.T) {
	seg := segment.MacroSegment{Type: segment.Ascent, DistanceKm: 2, ElevGainM: 200, StartElevM: 0, EndElevM: 200}
	res := Calculate(MethodToblerPersonalised, seg, Context{})
	base := Calculate(MethodTobler, seg, Context{})
	if math.Abs(res.TimeHours-base.TimeHours) > 1e-12 {
		t.Errorf("personalised without table = %v, want tobler %v", res.TimeHours, base.TimeHours)
	}
	if res.Name != "tobler_personalized" {
		t.Errorf("name = %q", res.Name)
	}
}

func TestPersonalisedUsesTable(t *testing.T) {
	seg := segment.MacroSegment{Type: segment.Flat, DistanceKm: 10, StartElevM: 0, EndElevM: 0}
	ctx := Context{PersonalPace: func(segment.MacroSegment) (float64, bool) { return 6.0, true }}
	res := Calculate(MethodPersonalisedRun, seg, ctx)
	if math.Abs(res.TimeHours-1.0) > 1e-9 { // 10 km at 6 min/km
		t.Errorf("time = %v, want 1.0", res.TimeHours)
	}
	if !res.FromProfile {
		t.Error("FromProfile should be true")
	}
}
