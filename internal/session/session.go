// Package session persists the credential issued by the backend together with
// the last-known user object, so a later command can resume without logging
// in again.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrNoSession is returned by Load when nothing has been saved.
var ErrNoSession = errors.New("no session")

// Session is the locally persisted credential. User is the backend's user
// object kept verbatim; it may be empty for the PIN backend.
type Session struct {
	Token     string          `json:"token"`
	User      json.RawMessage `json:"user,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is the persistence port for a single named session.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Memory is a process-local Store.
type Memory struct {
	mu sync.Mutex
	s  *Session
}

func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Load(_ context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.s == nil {
		return Session{}, ErrNoSession
	}
	return *m.s, nil
}

func (m *Memory) Save(_ context.Context, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.UpdatedAt.IsZero() {
		s.UpdatedAt = time.Now()
	}
	m.s = &s
	return nil
}

func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.s = nil
	return nil
}
