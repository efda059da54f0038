package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"trailpace/internal/gradient"
	"trailpace/internal/personal"
)

// GetHikingProfile retrieves a user's hiking pace profile.
func (s *Store) GetHikingProfile(userID uuid.UUID) (*HikingProfile, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, pace_table, legacy_paces, total_activities,
		       total_hikes, total_distance_km, total_elevation_m,
		       vertical_ability, last_calculated_at
		FROM hiking_profiles
		WHERE user_id = ?
	`, userID.String())

	var p HikingProfile
	var idStr, userStr, tableJSON, calcAt string
	var legacyJSON sql.NullString

	err := row.Scan(
		&idStr, &userStr, &tableJSON, &legacyJSON, &p.TotalActivities,
		&p.TotalHikes, &p.TotalDistanceKm, &p.TotalElevationM,
		&p.VerticalAbility, &calcAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	if p.ID, err = uuid.Parse(idStr); err != nil {
		return nil, err
	}
	if p.UserID, err = uuid.Parse(userStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tableJSON), &p.Table); err != nil {
		return nil, fmt.Errorf("decoding pace table: %w", err)
	}
	if p.Legacy, err = decodeLegacy(legacyJSON); err != nil {
		return nil, err
	}
	if p.LastCalculatedAt, err = time.Parse(time.RFC3339, calcAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertHikingProfile inserts or replaces a user's hiking profile. A new id
// is assigned on first insert.
func (s *Store) UpsertHikingProfile(p *HikingProfile) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	tableJSON, err := json.Marshal(p.Table)
	if err != nil {
		return fmt.Errorf("encoding pace table: %w", err)
	}
	legacyJSON, err := encodeLegacy(p.Legacy)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO hiking_profiles (
			id, user_id, pace_table, legacy_paces, total_activities,
			total_hikes, total_distance_km, total_elevation_m,
			vertical_ability, last_calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			pace_table = excluded.pace_table,
			legacy_paces = excluded.legacy_paces,
			total_activities = excluded.total_activities,
			total_hikes = excluded.total_hikes,
			total_distance_km = excluded.total_distance_km,
			total_elevation_m = excluded.total_elevation_m,
			vertical_ability = excluded.vertical_ability,
			last_calculated_at = excluded.last_calculated_at
	`,
		p.ID.String(), p.UserID.String(), string(tableJSON), legacyJSON,
		p.TotalActivities, p.TotalHikes, p.TotalDistanceKm, p.TotalElevationM,
		p.VerticalAbility, p.LastCalculatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetRunProfile retrieves a user's trail-running pace profile.
func (s *Store) GetRunProfile(userID uuid.UUID) (*RunProfile, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, pace_table, legacy_paces, total_activities,
		       total_runs, total_distance_km, total_elevation_m,
		       walk_threshold_percent, last_calculated_at
		FROM run_profiles
		WHERE user_id = ?
	`, userID.String())

	var p RunProfile
	var userStr, tableJSON, calcAt string
	var legacyJSON sql.NullString
	var walkThreshold sql.NullFloat64

	err := row.Scan(
		&p.ID, &userStr, &tableJSON, &legacyJSON, &p.TotalActivities,
		&p.TotalRuns, &p.TotalDistanceKm, &p.TotalElevationM,
		&walkThreshold, &calcAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	if p.UserID, err = uuid.Parse(userStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tableJSON), &p.Table); err != nil {
		return nil, fmt.Errorf("decoding pace table: %w", err)
	}
	if p.Legacy, err = decodeLegacy(legacyJSON); err != nil {
		return nil, err
	}
	p.WalkThresholdPct = nullFloat64ToPtr(walkThreshold)
	if p.LastCalculatedAt, err = time.Parse(time.RFC3339, calcAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertRunProfile inserts or replaces a user's run profile.
func (s *Store) UpsertRunProfile(p *RunProfile) error {
	tableJSON, err := json.Marshal(p.Table)
	if err != nil {
		return fmt.Errorf("encoding pace table: %w", err)
	}
	legacyJSON, err := encodeLegacy(p.Legacy)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO run_profiles (
			user_id, pace_table, legacy_paces, total_activities,
			total_runs, total_distance_km, total_elevation_m,
			walk_threshold_percent, last_calculated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			pace_table = excluded.pace_table,
			legacy_paces = excluded.legacy_paces,
			total_activities = excluded.total_activities,
			total_runs = excluded.total_runs,
			total_distance_km = excluded.total_distance_km,
			total_elevation_m = excluded.total_elevation_m,
			walk_threshold_percent = excluded.walk_threshold_percent,
			last_calculated_at = excluded.last_calculated_at
	`,
		p.UserID.String(), string(tableJSON), legacyJSON,
		p.TotalActivities, p.TotalRuns, p.TotalDistanceKm, p.TotalElevationM,
		ptrToNullFloat64(p.WalkThresholdPct),
		p.LastCalculatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

func encodeLegacy(m map[gradient.LegacyCategory]float64) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding legacy paces: %w", err)
	}
	return string(b), nil
}

func decodeLegacy(ns sql.NullString) (map[gradient.LegacyCategory]float64, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	var m map[gradient.LegacyCategory]float64
	if err := json.Unmarshal([]byte(ns.String), &m); err != nil {
		return nil, fmt.Errorf("decoding legacy paces: %w", err)
	}
	return m, nil
}

// Personaliser builds a pace lookup from a stored hiking profile.
func (p *HikingProfile) Personaliser() *personal.Personaliser {
	return personal.New(p.Table, p.TotalActivities, personal.ToblerFallback())
}

// Personaliser builds a pace lookup from a stored run profile. The fallback
// formula is anchored on the profile's own flat pace.
func (p *RunProfile) Personaliser() *personal.Personaliser {
	flat, _ := p.Table.FlatPace()
	return personal.New(p.Table, p.TotalActivities, personal.StravaGAPFallback(flat))
}
