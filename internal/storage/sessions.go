package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"passbook/internal/session"
)

// Session names, one row per backend.
const (
	SessionPIN    = "pin"
	SessionFamily = "family"
)

type sessionStore struct {
	repo *SQLiteRepository
	name string
}

// SessionStore returns a session.Store backed by the row called name.
func (r *SQLiteRepository) SessionStore(name string) session.Store {
	return &sessionStore{repo: r, name: name}
}

func (s *sessionStore) Load(ctx context.Context) (session.Session, error) {
	var (
		out       session.Session
		user      sql.NullString
		updatedAt int64
	)
	err := s.repo.db.QueryRowContext(ctx,
		`SELECT token, user_json, updated_at FROM sessions WHERE name = ?`, s.name,
	).Scan(&out.Token, &user, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Session{}, session.ErrNoSession
	}
	if err != nil {
		return session.Session{}, fmt.Errorf("load session %s: %w", s.name, err)
	}
	if user.Valid && user.String != "" {
		out.User = []byte(user.String)
	}
	out.UpdatedAt = time.Unix(updatedAt, 0)
	return out, nil
}

func (s *sessionStore) Save(ctx context.Context, sess session.Session) error {
	if sess.UpdatedAt.IsZero() {
		sess.UpdatedAt = s.repo.now()
	}
	var user sql.NullString
	if len(sess.User) > 0 {
		user = sql.NullString{String: string(sess.User), Valid: true}
	}
	_, err := s.repo.db.ExecContext(ctx, `
		INSERT INTO sessions (name, token, user_json, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			token = excluded.token,
			user_json = excluded.user_json,
			updated_at = excluded.updated_at`,
		s.name, sess.Token, user, sess.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("save session %s: %w", s.name, err)
	}
	return nil
}

func (s *sessionStore) Clear(ctx context.Context) error {
	if _, err := s.repo.db.ExecContext(ctx, `DELETE FROM sessions WHERE name = ?`, s.name); err != nil {
		return fmt.Errorf("clear session %s: %w", s.name, err)
	}
	return nil
}
