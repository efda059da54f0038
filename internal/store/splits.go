package store

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ListSplits returns an activity's splits in ordinal order.
func (s *Store) ListSplits(activityID int64) ([]Split, error) {
	rows, err := s.db.Query(`
		SELECT activity_id, split, distance, moving_time, elapsed_time,
		       elevation_diff, average_speed, average_heartrate, pace_zone
		FROM splits
		WHERE activity_id = ?
		ORDER BY split
	`, activityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSplits(rows)
}

// SaveSplits replaces an activity's splits and marks it splits_synced, in
// one transaction. Re-running for the same activity is a no-op overwrite.
func (s *Store) SaveSplits(activityID int64, splits []Split) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM splits WHERE activity_id = ?`, activityID); err != nil {
		return fmt.Errorf("clearing splits: %w", err)
	}
	for _, sp := range splits {
		_, err := tx.Exec(`
			INSERT INTO splits (
				activity_id, split, distance, moving_time, elapsed_time,
				elevation_diff, average_speed, average_heartrate, pace_zone
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			activityID, sp.Split, sp.DistanceM, sp.MovingTimeS, sp.ElapsedTimeS,
			sp.ElevationDiffM, sp.AverageSpeed,
			ptrToNullFloat64(sp.AverageHeartrate), ptrIntToNullInt64(sp.PaceZone),
		)
		if err != nil {
			return fmt.Errorf("inserting split %d: %w", sp.Split, err)
		}
	}
	if _, err := tx.Exec(`UPDATE activities SET splits_synced = 1 WHERE id = ?`, activityID); err != nil {
		return err
	}
	return tx.Commit()
}

// ListSplitsForTypes returns every split belonging to the user's activities
// of the given types. This is the profile builder's input query.
func (s *Store) ListSplitsForTypes(userID uuid.UUID, types []string) ([]Split, error) {
	if len(types) == 0 {
		return nil, nil
	}
	query := `
		SELECT s.activity_id, s.split, s.distance, s.moving_time, s.elapsed_time,
		       s.elevation_diff, s.average_speed, s.average_heartrate, s.pace_zone
		FROM splits s
		JOIN activities a ON a.id = s.activity_id
		WHERE a.user_id = ?
		  AND a.type IN (?` + strings.Repeat(",?", len(types)-1) + `)
		ORDER BY s.activity_id, s.split`
	args := []any{userID.String()}
	for _, t := range types {
		args = append(args, t)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSplits(rows)
}

// ListActivitiesMissingSplits returns ids of the user's activities that have
// not had splits fetched yet, oldest first, limited to n.
func (s *Store) ListActivitiesMissingSplits(userID uuid.UUID, n int) ([]int64, error) {
	rows, err := s.db.Query(`
		SELECT id FROM activities
		WHERE user_id = ? AND splits_synced = 0
		ORDER BY start_date ASC
		LIMIT ?
	`, userID.String(), n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func scanSplits(rows *sql.Rows) ([]Split, error) {
	var splits []Split
	for rows.Next() {
		var sp Split
		var elapsed sql.NullInt64
		var elevDiff, avgSpeed, avgHR sql.NullFloat64
		var paceZone sql.NullInt64
		err := rows.Scan(
			&sp.ActivityID, &sp.Split, &sp.DistanceM, &sp.MovingTimeS, &elapsed,
			&elevDiff, &avgSpeed, &avgHR, &paceZone,
		)
		if err != nil {
			return nil, err
		}
		sp.ElapsedTimeS = int(elapsed.Int64)
		sp.ElevationDiffM = elevDiff.Float64
		sp.AverageSpeed = avgSpeed.Float64
		sp.AverageHeartrate = nullFloat64ToPtr(avgHR)
		sp.PaceZone = nullInt64ToIntPtr(paceZone)
		splits = append(splits, sp)
	}
	return splits, rows.Err()
}
