package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SessionTTL is the cookie session lifetime. Sessions slide: middleware
// extends any session that has burned through more than half of it.
const SessionTTL = 30 * 24 * time.Hour

// Session is one active cookie session. ID is the opaque token value.
type Session struct {
	ID        string    `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore provides data access methods for sessions.
type SessionStore struct {
	pool *pgxpool.Pool
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(pool *pgxpool.Pool) *SessionStore {
	return &SessionStore{pool: pool}
}

// Create inserts a new session.
func (s *SessionStore) Create(ctx context.Context, session *Session) error {
	err := s.pool.QueryRow(ctx, `
		INSERT INTO sessions (id, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`, session.ID, session.UserID, session.ExpiresAt).Scan(&session.CreatedAt)
	if err != nil {
		return fmt.Errorf("session create: %w", err)
	}
	return nil
}

// GetActive returns the session for a token, or nil when the token is unknown
// or the session has expired. Expired rows are left for the periodic sweep.
func (s *SessionStore) GetActive(ctx context.Context, token string) (*Session, error) {
	var sess Session
	err := s.pool.QueryRow(ctx, `
		SELECT id, user_id, expires_at, created_at
		FROM sessions
		WHERE id = $1 AND expires_at > now()
	`, token).Scan(&sess.ID, &sess.UserID, &sess.ExpiresAt, &sess.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("session get: %w", err)
	}
	return &sess, nil
}

// Extend pushes a session's expiry out to a full TTL from now. Extending a
// token that no longer exists is not an error.
func (s *SessionStore) Extend(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE sessions SET expires_at = $1 WHERE id = $2
	`, time.Now().Add(SessionTTL), token)
	if err != nil {
		return fmt.Errorf("session extend: %w", err)
	}
	return nil
}

// Delete removes a session by its token.
func (s *SessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, token)
	if err != nil {
		return fmt.Errorf("session delete: %w", err)
	}
	return nil
}

// DeleteExpired removes all sessions past their expiry and reports how many
// were swept.
func (s *SessionStore) DeleteExpired(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE expires_at < now()`)
	if err != nil {
		return 0, fmt.Errorf("session delete expired: %w", err)
	}
	return tag.RowsAffected(), nil
}
