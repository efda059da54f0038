package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// InsertNotification persists a notification and fills in its id.
func (s *Store) InsertNotification(n *Notification) error {
	var payload any
	if len(n.Payload) > 0 {
		b, err := json.Marshal(n.Payload)
		if err != nil {
			return fmt.Errorf("encoding payload: %w", err)
		}
		payload = string(b)
	}
	res, err := s.db.Exec(`
		INSERT INTO notifications (user_id, type, payload, read)
		VALUES (?, ?, ?, ?)
	`, n.UserID.String(), n.Type, payload, boolToInt(n.Read))
	if err != nil {
		return err
	}
	n.ID, err = res.LastInsertId()
	return err
}

// ListNotifications returns a user's notifications, newest first. With
// unreadOnly set, read notifications are excluded.
func (s *Store) ListNotifications(userID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error) {
	query := `
		SELECT id, user_id, type, payload, read, created_at
		FROM notifications
		WHERE user_id = ?`
	if unreadOnly {
		query += ` AND read = 0`
	}
	query += ` ORDER BY id DESC LIMIT ?`

	rows, err := s.db.Query(query, userID.String(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var n Notification
		var idStr, createdAt string
		var payload sql.NullString
		var read int
		if err := rows.Scan(&n.ID, &idStr, &n.Type, &payload, &read, &createdAt); err != nil {
			return nil, err
		}
		if n.UserID, err = uuid.Parse(idStr); err != nil {
			return nil, err
		}
		if payload.Valid && payload.String != "" {
			if err := json.Unmarshal([]byte(payload.String), &n.Payload); err != nil {
				return nil, fmt.Errorf("decoding payload: %w", err)
			}
		}
		n.Read = read == 1
		if t, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
			n.CreatedAt = t
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkNotificationsRead marks the given notifications read, scoped to the
// user so one user cannot touch another's rows.
func (s *Store) MarkNotificationsRead(userID uuid.UUID, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	query := `UPDATE notifications SET read = 1 WHERE user_id = ? AND id IN (?` +
		strings.Repeat(",?", len(ids)-1) + `)`
	args := []any{userID.String()}
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.Exec(query, args...)
	return err
}
