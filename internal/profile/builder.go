// Package profile builds per-user pace profiles from stored splits:
// physiological filtering, per-bucket IQR outlier rejection, quartile
// statistics, legacy projection and walk-threshold detection.
package profile

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"trailpace/internal/gradient"
	"trailpace/internal/personal"
	"trailpace/internal/store"
	"trailpace/internal/threshold"
)

// Activity types feeding each profile.
var (
	HikingTypes  = []string{"Hike", "Walk"}
	RunningTypes = []string{"Run", "TrailRun", "VirtualRun"}
)

// Physiological pace bands in min/km. Splits outside are measurement
// noise (GPS drift, paused watches), not athletic performance.
const (
	runnerMinPace = 2.5
	runnerMaxPace = 30.0
	hikerMinPace  = 4.0
	hikerMaxPace  = 25.0
)

// iqrFactor is the Tukey fence multiplier.
const iqrFactor = 1.5

// minBucketPercentiles is the smallest post-IQR bucket that gets full
// quartile statistics; smaller buckets keep only their average and median.
const minBucketPercentiles = 4

// naismithUphillFactor is the uphill slowdown Naismith's rule assumes,
// the denominator of the vertical-ability coefficient.
const naismithUphillFactor = 1.5

// Result reports what a rebuild produced. Insufficient data is not an
// error; Built is false and Reason says why.
type Result struct {
	Built  bool
	Reason string
}

// Builder rebuilds hiking and running profiles from the store.
type Builder struct {
	store *store.Store
	log   zerolog.Logger
}

// NewBuilder creates a profile builder.
func NewBuilder(st *store.Store, log zerolog.Logger) *Builder {
	return &Builder{store: st, log: log}
}

// RebuildHiking recomputes the user's hiking profile from the splits of
// their Hike and Walk activities.
func (b *Builder) RebuildHiking(userID uuid.UUID) (*Result, error) {
	splits, err := b.store.ListSplitsForTypes(userID, HikingTypes)
	if err != nil {
		return nil, fmt.Errorf("loading hiking splits: %w", err)
	}

	table, dropped := buildTable(splits, hikerMinPace, hikerMaxPace)
	if len(table) == 0 {
		return &Result{Reason: "no usable hiking splits"}, nil
	}

	count, distanceM, elevationM, err := b.store.AggregateActivities(userID, HikingTypes)
	if err != nil {
		return nil, err
	}

	p := &store.HikingProfile{
		UserID:           userID,
		Table:            table,
		Legacy:           projectLegacy(table),
		TotalActivities:  analysedActivities(splits),
		TotalHikes:       count,
		TotalDistanceKm:  distanceM / 1000,
		TotalElevationM:  elevationM,
		VerticalAbility:  verticalAbility(table),
		LastCalculatedAt: time.Now().UTC(),
	}
	if existing, err := b.store.GetHikingProfile(userID); err == nil {
		p.ID = existing.ID
	}
	if err := b.store.UpsertHikingProfile(p); err != nil {
		return nil, fmt.Errorf("saving hiking profile: %w", err)
	}

	b.log.Info().
		Str("user_id", userID.String()).
		Int("buckets", len(table)).
		Int("splits_dropped", dropped).
		Float64("vertical_ability", p.VerticalAbility).
		Msg("hiking profile rebuilt")
	return &Result{Built: true}, nil
}

// RebuildRunning recomputes the user's trail-running profile from the
// splits of their Run, TrailRun and VirtualRun activities.
func (b *Builder) RebuildRunning(userID uuid.UUID) (*Result, error) {
	splits, err := b.store.ListSplitsForTypes(userID, RunningTypes)
	if err != nil {
		return nil, fmt.Errorf("loading running splits: %w", err)
	}

	table, dropped := buildTable(splits, runnerMinPace, runnerMaxPace)
	if len(table) == 0 {
		return &Result{Reason: "no usable running splits"}, nil
	}

	count, distanceM, elevationM, err := b.store.AggregateActivities(userID, RunningTypes)
	if err != nil {
		return nil, err
	}

	p := &store.RunProfile{
		UserID:           userID,
		Table:            table,
		Legacy:           projectLegacy(table),
		TotalActivities:  analysedActivities(splits),
		TotalRuns:        count,
		TotalDistanceKm:  distanceM / 1000,
		TotalElevationM:  elevationM,
		WalkThresholdPct: detectWalkThreshold(splits, runnerMinPace, runnerMaxPace),
		LastCalculatedAt: time.Now().UTC(),
	}
	if err := b.store.UpsertRunProfile(p); err != nil {
		return nil, fmt.Errorf("saving run profile: %w", err)
	}

	b.log.Info().
		Str("user_id", userID.String()).
		Int("buckets", len(table)).
		Int("splits_dropped", dropped).
		Msg("run profile rebuilt")
	return &Result{Built: true}, nil
}

// buildTable runs the filtering pipeline and returns the 11-bin pace
// table plus the count of splits dropped by the physiological band.
func buildTable(splits []store.Split, minPace, maxPace float64) (personal.PaceTable, int) {
	buckets := make(map[gradient.Category][]float64)
	dropped := 0
	for _, sp := range splits {
		pace := sp.PaceMinKm()
		if pace <= 0 {
			continue
		}
		if pace < minPace || pace > maxPace {
			dropped++
			continue
		}
		cat := gradient.Classify(sp.GradientPct())
		buckets[cat] = append(buckets[cat], pace)
	}

	table := make(personal.PaceTable, len(buckets))
	for cat, paces := range buckets {
		kept := rejectIQROutliers(paces)
		if len(kept) == 0 {
			continue
		}
		sort.Float64s(kept)

		b := personal.Bucket{
			AvgPaceMinKm: stat.Mean(kept, nil),
			SampleCount:  len(kept),
			P50:          stat.Quantile(0.50, stat.Empirical, kept, nil),
		}
		if len(kept) >= minBucketPercentiles {
			b.P25 = stat.Quantile(0.25, stat.Empirical, kept, nil)
			b.P75 = stat.Quantile(0.75, stat.Empirical, kept, nil)
			b.HasPercentiles = true
		}
		table[cat] = b
	}
	return table, dropped
}

// rejectIQROutliers drops paces outside [Q1 - 1.5 IQR, Q3 + 1.5 IQR].
func rejectIQROutliers(paces []float64) []float64 {
	if len(paces) < minBucketPercentiles {
		out := make([]float64, len(paces))
		copy(out, paces)
		return out
	}
	sorted := make([]float64, len(paces))
	copy(sorted, paces)
	sort.Float64s(sorted)

	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	iqr := q3 - q1
	lo := q1 - iqrFactor*iqr
	hi := q3 + iqrFactor*iqr

	kept := make([]float64, 0, len(sorted))
	for _, p := range sorted {
		if p >= lo && p <= hi {
			kept = append(kept, p)
		}
	}
	return kept
}

func projectLegacy(table personal.PaceTable) map[gradient.LegacyCategory]float64 {
	entries := make([]gradient.WeightedEntry, 0, len(table))
	for cat, b := range table {
		entries = append(entries, gradient.WeightedEntry{
			Category:    cat,
			PaceMinKm:   b.AvgPaceMinKm,
			SampleCount: b.SampleCount,
		})
	}
	return gradient.ProjectLegacy(entries)
}

// analysedActivities counts distinct activities contributing splits.
func analysedActivities(splits []store.Split) int {
	seen := make(map[int64]struct{})
	for _, sp := range splits {
		seen[sp.ActivityID] = struct{}{}
	}
	return len(seen)
}

// detectWalkThreshold learns the run-to-hike transition gradient from
// uphill splits. Nil when there is not enough uphill data; consumers
// substitute the default.
func detectWalkThreshold(splits []store.Split, minPace, maxPace float64) *float64 {
	uphill := make([]threshold.UphillSplit, 0, len(splits))
	for _, sp := range splits {
		pace := sp.PaceMinKm()
		if pace < minPace || pace > maxPace {
			continue
		}
		uphill = append(uphill, threshold.UphillSplit{
			GradientPct: sp.GradientPct(),
			PaceMinKm:   pace,
		})
	}
	t, ok := threshold.LearnUphill(uphill)
	if !ok {
		return nil
	}
	return &t
}

// verticalAbility measures how the user's uphill slowdown compares with
// the 1.5x Naismith assumes. 1.0 when either pace is missing.
func verticalAbility(table personal.PaceTable) float64 {
	flat, ok := table.FlatPace()
	if !ok {
		return 1.0
	}

	uphillSum := 0.0
	uphillCount := 0
	for _, cat := range []gradient.Category{gradient.GentleUp, gradient.LightUp, gradient.ModerateUp, gradient.SteepUp, gradient.ExtremeUp} {
		if b, ok := table[cat]; ok && b.SampleCount > 0 {
			uphillSum += b.AvgPaceMinKm * float64(b.SampleCount)
			uphillCount += b.SampleCount
		}
	}
	if uphillCount == 0 {
		return 1.0
	}
	uphillPace := uphillSum / float64(uphillCount)
	return (uphillPace / flat) / naismithUphillFactor
}
