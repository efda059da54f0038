package store

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// GetUser retrieves a user by id.
func (s *Store) GetUser(id uuid.UUID) (*User, error) {
	row := s.db.QueryRow(`
		SELECT id, strava_athlete_id, telegram_chat_id, strava_connected, created_at
		FROM users
		WHERE id = ?
	`, id.String())

	var u User
	var idStr, createdAt string
	var athleteID, chatID sql.NullInt64
	var connected int

	err := row.Scan(&idStr, &athleteID, &chatID, &connected, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	u.StravaAthleteID = athleteID.Int64
	u.TelegramChatID = chatID.Int64
	u.StravaConnected = connected == 1
	if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		u.CreatedAt = t
	}
	return &u, nil
}

// UpsertUser inserts or updates a user row.
func (s *Store) UpsertUser(u *User) error {
	_, err := s.db.Exec(`
		INSERT INTO users (id, strava_athlete_id, telegram_chat_id, strava_connected)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			strava_athlete_id = excluded.strava_athlete_id,
			telegram_chat_id = excluded.telegram_chat_id,
			strava_connected = excluded.strava_connected
	`, u.ID.String(), u.StravaAthleteID, u.TelegramChatID, boolToInt(u.StravaConnected))
	return err
}

// ListUsersNeedingSync returns ids of provider-connected users whose last
// sync is older than the cutoff (or who have never synced).
func (s *Store) ListUsersNeedingSync(cutoff time.Time) ([]uuid.UUID, error) {
	rows, err := s.db.Query(`
		SELECT u.id
		FROM users u
		LEFT JOIN sync_cursors c ON c.user_id = u.id
		WHERE u.strava_connected = 1
		  AND (c.last_sync_at IS NULL OR c.last_sync_at < ?)
	`, cutoff.UTC().Format(time.RFC3339))
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
	return ids, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
