// Package gradient defines the canonical 11-bin gradient taxonomy used for
// personal pace tables, plus the legacy 7-bin projection kept for display.
package gradient

// Category is one of the 11 canonical gradient bins.
type Category string

const (
	ExtremeDown  Category = "extreme_down"
	SteepDown    Category = "steep_down"
	ModerateDown Category = "moderate_down"
	LightDown    Category = "light_down"
	GentleDown   Category = "gentle_down"
	Flat         Category = "flat"
	GentleUp     Category = "gentle_up"
	LightUp      Category = "light_up"
	ModerateUp   Category = "moderate_up"
	SteepUp      Category = "steep_up"
	ExtremeUp    Category = "extreme_up"
)

// Categories lists the canonical bins from steepest descent to steepest
// ascent.
var Categories = []Category{
	ExtremeDown, SteepDown, ModerateDown, LightDown, GentleDown,
	Flat,
	GentleUp, LightUp, ModerateUp, SteepUp, ExtremeUp,
}

// bound is the upper gradient bound (exclusive) of a bin, in percent.
// The last bin is unbounded.
type bound struct {
	upper float64
	cat   Category
}

var bounds = []bound{
	{-25, ExtremeDown},
	{-15, SteepDown},
	{-10, ModerateDown},
	{-6, LightDown},
	{-3, GentleDown},
	{3, Flat},
	{6, GentleUp},
	{10, LightUp},
	{15, ModerateUp},
	{25, SteepUp},
}

// Classify maps a gradient in percent to its canonical category.
func Classify(gradientPct float64) Category {
	for _, b := range bounds {
		if gradientPct <= b.upper {
			return b.cat
		}
	}
	return ExtremeUp
}

// midpoints are representative gradients per bin, used when a formula
// needs a single gradient for a whole category. The open-ended extreme
// bins use ±30%.
var midpoints = map[Category]float64{
	ExtremeDown:  -30,
	SteepDown:    -20,
	ModerateDown: -12.5,
	LightDown:    -8,
	GentleDown:   -4.5,
	Flat:         0,
	GentleUp:     4.5,
	LightUp:      8,
	ModerateUp:   12.5,
	SteepUp:      20,
	ExtremeUp:    30,
}

// Midpoint returns the representative gradient of a category in percent.
func Midpoint(c Category) float64 {
	return midpoints[c]
}

// LegacyCategory is one of the 7 legacy bins retained for display.
type LegacyCategory string

const (
	LegacySteepDown    LegacyCategory = "steep_down"
	LegacyModerateDown LegacyCategory = "moderate_down"
	LegacyGentleDown   LegacyCategory = "gentle_down"
	LegacyFlat         LegacyCategory = "flat"
	LegacyGentleUp     LegacyCategory = "gentle_up"
	LegacyModerateUp   LegacyCategory = "moderate_up"
	LegacySteepUp      LegacyCategory = "steep_up"
)

// legacyMapping is the declarative 11 -> 7 projection. Paces are never
// computed in the legacy space; it exists only as a derived view.
var legacyMapping = map[Category]LegacyCategory{
	ExtremeDown:  LegacySteepDown,
	SteepDown:    LegacySteepDown,
	ModerateDown: LegacyModerateDown,
	LightDown:    LegacyModerateDown,
	GentleDown:   LegacyGentleDown,
	Flat:         LegacyFlat,
	GentleUp:     LegacyGentleUp,
	LightUp:      LegacyModerateUp,
	ModerateUp:   LegacyModerateUp,
	SteepUp:      LegacySteepUp,
	ExtremeUp:    LegacySteepUp,
}

// ToLegacy projects a canonical category onto the legacy 7-bin set.
func ToLegacy(c Category) LegacyCategory {
	return legacyMapping[c]
}

// WeightedEntry is one canonical bucket flattened for legacy projection.
type WeightedEntry struct {
	Category    Category
	PaceMinKm   float64
	SampleCount int
}

// ProjectLegacy derives the legacy scalar paces as the sample-weighted mean
// of the canonical entries mapped to each legacy label. Legacy labels with
// no samples are absent from the result.
func ProjectLegacy(entries []WeightedEntry) map[LegacyCategory]float64 {
	sums := make(map[LegacyCategory]float64)
	counts := make(map[LegacyCategory]int)
	for _, e := range entries {
		if e.SampleCount <= 0 {
			continue
		}
		l := ToLegacy(e.Category)
		sums[l] += e.PaceMinKm * float64(e.SampleCount)
		counts[l] += e.SampleCount
	}
	out := make(map[LegacyCategory]float64, len(sums))
	for l, sum := range sums {
		out[l] = sum / float64(counts[l])
	}
	return out
}
