package store

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// GetOrCreateSyncCursor fetches the user's sync cursor, creating an empty
// one on first use.
func (s *Store) GetOrCreateSyncCursor(userID uuid.UUID) (*SyncCursor, error) {
	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO sync_cursors (user_id) VALUES (?)
	`, userID.String()); err != nil {
		return nil, err
	}

	row := s.db.QueryRow(`
		SELECT user_id, oldest_synced_date, newest_synced_date,
		       total_activities_synced, activities_with_splits, last_error,
		       in_progress, initial_sync_complete, last_recalc_checkpoint,
		       new_since_recalc, first_batch_notified, last_sync_at
		FROM sync_cursors
		WHERE user_id = ?
	`, userID.String())

	var c SyncCursor
	var idStr string
	var oldest, newest, lastErr, lastSync sql.NullString
	var inProgress, initialDone, firstBatch int

	err := row.Scan(
		&idStr, &oldest, &newest,
		&c.TotalActivitiesSynced, &c.ActivitiesWithSplits, &lastErr,
		&inProgress, &initialDone, &c.LastRecalcCheckpoint,
		&c.NewSinceRecalc, &firstBatch, &lastSync,
	)
	if err != nil {
		return nil, err
	}

	c.UserID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	c.OldestSyncedDate = parseNullTime(oldest)
	c.NewestSyncedDate = parseNullTime(newest)
	c.LastError = lastErr.String
	c.InProgress = inProgress == 1
	c.InitialSyncComplete = initialDone == 1
	c.FirstBatchNotified = firstBatch == 1
	c.LastSyncAt = parseNullTime(lastSync)
	return &c, nil
}

// UpdateSyncCursor persists every cursor field except the in_progress lock,
// which has its own acquire/release operations.
func (s *Store) UpdateSyncCursor(c *SyncCursor) error {
	_, err := s.db.Exec(`
		UPDATE sync_cursors SET
			oldest_synced_date = ?,
			newest_synced_date = ?,
			total_activities_synced = ?,
			activities_with_splits = ?,
			last_error = ?,
			initial_sync_complete = ?,
			last_recalc_checkpoint = ?,
			new_since_recalc = ?,
			first_batch_notified = ?,
			last_sync_at = ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`,
		formatNullTime(c.OldestSyncedDate),
		formatNullTime(c.NewestSyncedDate),
		c.TotalActivitiesSynced,
		c.ActivitiesWithSplits,
		nullString(c.LastError),
		boolToInt(c.InitialSyncComplete),
		c.LastRecalcCheckpoint,
		c.NewSinceRecalc,
		boolToInt(c.FirstBatchNotified),
		formatNullTime(c.LastSyncAt),
		c.UserID.String(),
	)
	return err
}

// AcquireSyncLock attempts to take the user's sync lock. Returns false when
// a sync is already in progress. The conditional UPDATE makes the
// check-and-set a single atomic statement.
func (s *Store) AcquireSyncLock(userID uuid.UUID) (bool, error) {
	if _, err := s.db.Exec(`
		INSERT OR IGNORE INTO sync_cursors (user_id) VALUES (?)
	`, userID.String()); err != nil {
		return false, err
	}
	res, err := s.db.Exec(`
		UPDATE sync_cursors
		SET in_progress = 1, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ? AND in_progress = 0
	`, userID.String())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseSyncLock releases the user's sync lock unconditionally.
func (s *Store) ReleaseSyncLock(userID uuid.UUID) error {
	_, err := s.db.Exec(`
		UPDATE sync_cursors
		SET in_progress = 0, updated_at = CURRENT_TIMESTAMP
		WHERE user_id = ?
	`, userID.String())
	return err
}

// RecoverStaleSyncLocks clears locks that have been held longer than the
// given age. A lock that old means the process died mid-sync. Returns the
// user ids whose locks were cleared.
func (s *Store) RecoverStaleSyncLocks(olderThan time.Duration) ([]uuid.UUID, error) {
	cutoff := time.Now().UTC().Add(-olderThan).Format("2006-01-02 15:04:05")

	rows, err := s.db.Query(`
		SELECT user_id FROM sync_cursors
		WHERE in_progress = 1 AND updated_at < ?
	`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, id := range ids {
		if err := s.ReleaseSyncLock(id); err != nil {
			return ids, err
		}
	}
	return ids, nil
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatNullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
