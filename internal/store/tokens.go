package store

import (
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

// GetToken retrieves a user's OAuth token.
func (s *Store) GetToken(userID uuid.UUID) (*Token, error) {
	row := s.db.QueryRow(`
		SELECT user_id, access_token, refresh_token, expires_at, scope
		FROM tokens
		WHERE user_id = ?
	`, userID.String())

	var t Token
	var idStr string
	var scope sql.NullString
	err := row.Scan(&idStr, &t.AccessToken, &t.RefreshToken, &t.ExpiresAt, &scope)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, err
	}
	t.UserID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, err
	}
	t.Scope = scope.String
	return &t, nil
}

// SaveToken inserts or replaces a user's OAuth token.
func (s *Store) SaveToken(t *Token) error {
	_, err := s.db.Exec(`
		INSERT INTO tokens (user_id, access_token, refresh_token, expires_at, scope)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			scope = excluded.scope,
			updated_at = CURRENT_TIMESTAMP
	`, t.UserID.String(), t.AccessToken, t.RefreshToken, t.ExpiresAt, t.Scope)
	return err
}

// DeleteToken removes a user's OAuth token, e.g. after deauthorisation.
func (s *Store) DeleteToken(userID uuid.UUID) error {
	_, err := s.db.Exec(`DELETE FROM tokens WHERE user_id = ?`, userID.String())
	return err
}
