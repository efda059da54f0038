package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const activityColumns = `id, user_id, name, type, start_date, distance, moving_time,
	elapsed_time, elevation_gain, elevation_loss, average_speed, max_speed,
	average_heartrate, max_heartrate, average_cadence, suffer_score, splits_synced`

// InsertActivityIfAbsent inserts an activity unless one with the same
// provider id already exists. Returns false (and no error) on a duplicate.
func (s *Store) InsertActivityIfAbsent(a *Activity) (bool, error) {
	return insertActivityIfAbsent(s.db, a)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func insertActivityIfAbsent(e execer, a *Activity) (bool, error) {
	res, err := e.Exec(`
		INSERT OR IGNORE INTO activities (
			id, user_id, name, type, start_date, distance, moving_time,
			elapsed_time, elevation_gain, elevation_loss, average_speed, max_speed,
			average_heartrate, max_heartrate, average_cadence, suffer_score, splits_synced
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		a.ID, a.UserID.String(), a.Name, a.Type, a.StartDate.UTC().Format(time.RFC3339),
		a.DistanceM, a.MovingTimeS, a.ElapsedTimeS, a.ElevationGainM, a.ElevationLossM,
		a.AverageSpeed, a.MaxSpeed,
		ptrToNullFloat64(a.AverageHeartrate), ptrToNullFloat64(a.MaxHeartrate),
		ptrToNullFloat64(a.AverageCadence), ptrIntToNullInt64(a.SufferScore),
		boolToInt(a.SplitsSynced),
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertActivityBatch inserts a page of activities in one transaction and
// returns those that were actually new, in input order.
func (s *Store) InsertActivityBatch(activities []*Activity) ([]*Activity, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var inserted []*Activity
	for _, a := range activities {
		ok, err := insertActivityIfAbsent(tx, a)
		if err != nil {
			return nil, fmt.Errorf("inserting activity %d: %w", a.ID, err)
		}
		if ok {
			inserted = append(inserted, a)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return inserted, nil
}

// GetActivity retrieves an activity by its provider id.
func (s *Store) GetActivity(id int64) (*Activity, error) {
	row := s.db.QueryRow(`SELECT `+activityColumns+` FROM activities WHERE id = ?`, id)
	a, err := scanActivity(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrActivityNotFound
	}
	return a, err
}

// ListActivities returns a user's activities ordered by start date
// descending, optionally filtered by activity type.
func (s *Store) ListActivities(userID uuid.UUID, types []string, limit, offset int) ([]Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities WHERE user_id = ?`
	args := []any{userID.String()}
	if len(types) > 0 {
		query += ` AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)`
		for _, t := range types {
			args = append(args, t)
		}
	}
	query += ` ORDER BY start_date DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows.Scan)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}

// AggregateActivities sums count, distance and elevation gain over a
// user's activities of the given types.
func (s *Store) AggregateActivities(userID uuid.UUID, types []string) (count int, distanceM, elevationM float64, err error) {
	if len(types) == 0 {
		return 0, 0, 0, nil
	}
	query := `
		SELECT COUNT(*), COALESCE(SUM(distance), 0), COALESCE(SUM(elevation_gain), 0)
		FROM activities
		WHERE user_id = ? AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)`
	args := []any{userID.String()}
	for _, t := range types {
		args = append(args, t)
	}
	err = s.db.QueryRow(query, args...).Scan(&count, &distanceM, &elevationM)
	return count, distanceM, elevationM, err
}

// CountActivities returns the number of activities stored for a user.
func (s *Store) CountActivities(userID uuid.UUID) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM activities WHERE user_id = ?`, userID.String()).Scan(&count)
	return count, err
}

func scanActivity(scan func(...any) error) (*Activity, error) {
	var a Activity
	var userID, startDate string
	var gain, loss, avgSpeed, maxSpeed sql.NullFloat64
	var avgHR, maxHR, avgCad sql.NullFloat64
	var suffer sql.NullInt64
	var splitsSynced int

	err := scan(
		&a.ID, &userID, &a.Name, &a.Type, &startDate, &a.DistanceM, &a.MovingTimeS,
		&a.ElapsedTimeS, &gain, &loss, &avgSpeed, &maxSpeed,
		&avgHR, &maxHR, &avgCad, &suffer, &splitsSynced,
	)
	if err != nil {
		return nil, err
	}

	a.UserID, err = uuid.Parse(userID)
	if err != nil {
		return nil, err
	}
	a.StartDate, err = time.Parse(time.RFC3339, startDate)
	if err != nil {
		return nil, fmt.Errorf("parsing start_date %q: %w", startDate, err)
	}
	a.ElevationGainM = gain.Float64
	a.ElevationLossM = loss.Float64
	a.AverageSpeed = avgSpeed.Float64
	a.MaxSpeed = maxSpeed.Float64
	a.AverageHeartrate = nullFloat64ToPtr(avgHR)
	a.MaxHeartrate = nullFloat64ToPtr(maxHR)
	a.AverageCadence = nullFloat64ToPtr(avgCad)
	a.SufferScore = nullInt64ToIntPtr(suffer)
	a.SplitsSynced = splitsSynced == 1
	return &a, nil
}

func ptrToNullFloat64(p *float64) sql.NullFloat64 {
	if p == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *p, Valid: true}
}

func ptrIntToNullInt64(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullFloat64ToPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func nullInt64ToIntPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
