package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"invoicedesk/internal/auth"
)

// SessionStore keeps sessions in the sessions table.
type SessionStore struct {
	db *DB
}

func NewSessionStore(db *DB) *SessionStore {
	return &SessionStore{db: db}
}

func (s *SessionStore) Save(ctx context.Context, sess auth.Session) error {
	_, err := s.db.db.ExecContext(ctx, `
		INSERT INTO sessions (id, token, username, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			token = excluded.token,
			username = excluded.username,
			expires_at = excluded.expires_at`,
		sess.ID, sess.Token, sess.Username, sess.CreatedAt.Unix(), sess.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *SessionStore) Get(ctx context.Context, id string) (auth.Session, error) {
	var (
		sess               auth.Session
		created, expiresAt int64
	)
	err := s.db.db.QueryRowContext(ctx, `
		SELECT id, token, username, created_at, expires_at
		FROM sessions WHERE id = ?`, id).
		Scan(&sess.ID, &sess.Token, &sess.Username, &created, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	if err != nil {
		return auth.Session{}, fmt.Errorf("get session: %w", err)
	}
	sess.CreatedAt = time.Unix(created, 0)
	sess.ExpiresAt = time.Unix(expiresAt, 0)
	if sess.Expired(time.Now()) {
		return auth.Session{}, auth.ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.db.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *SessionStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}
