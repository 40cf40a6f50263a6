package memory

import (
	"context"
	"devecho-server/core"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// memStore keeps sessions in a process-local map. It is the default backend
// and the reference implementation for the store contract.
type memStore struct {
	mu       sync.RWMutex
	sessions map[string]*core.CodeSession
}

// NewStore creates a new in-memory session store.
func NewStore() *memStore {
	return &memStore{
		sessions: make(map[string]*core.CodeSession),
	}
}

// FindOrCreate returns the session for roomID, creating it with defaults if
// absent. The whole find-or-insert runs under one lock, so concurrent first
// joins observe a single winner.
func (s *memStore) FindOrCreate(ctx context.Context, roomID string) (*core.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[roomID]; ok {
		return copySession(session), nil
	}

	session := core.NewCodeSession(roomID)
	s.sessions[roomID] = session
	logrus.WithField("room_id", roomID).Info("Session created")
	return copySession(session), nil
}

func (s *memStore) SetCode(ctx context.Context, roomID string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[roomID]
	if !ok {
		return fmt.Errorf("set code for room %s: %w", roomID, core.ErrSessionNotFound)
	}
	session.Code = code
	session.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) SetSummary(ctx context.Context, roomID string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[roomID]
	if !ok {
		return fmt.Errorf("set summary for room %s: %w", roomID, core.ErrSessionNotFound)
	}
	session.Summary = summary
	session.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) Find(ctx context.Context, roomID string) (*core.CodeSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[roomID]
	if !ok {
		return nil, fmt.Errorf("session for room %s: %w", roomID, core.ErrSessionNotFound)
	}
	return copySession(session), nil
}

// copySession returns a snapshot so callers never alias the stored struct.
func copySession(session *core.CodeSession) *core.CodeSession {
	copied := *session
	return &copied
}
