package filesystem

import (
	"context"
	"devecho-server/core"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// fsStore persists one JSON file per room. The filesystem has no atomic
// find-or-insert, so creation is serialized behind an in-process mutex.
type fsStore struct {
	basePath string
	mu       sync.Mutex
}

// NewStore creates a new filesystem-based session store.
func NewStore(basePath string) *fsStore {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		log.Fatalf("failed to create base directory: %v", err)
	}
	return &fsStore{basePath: basePath}
}

// sessionPath encodes the room ID so arbitrary room names cannot escape the
// base directory.
func (s *fsStore) sessionPath(roomID string) string {
	name := base64.URLEncoding.EncodeToString([]byte(roomID)) + ".json"
	return filepath.Join(s.basePath, name)
}

func (s *fsStore) FindOrCreate(ctx context.Context, roomID string) (*core.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.read(roomID)
	if err == nil {
		return session, nil
	}
	if !os.IsNotExist(err) {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to read session file")
		return nil, fmt.Errorf("find or create session %s: %w", roomID, core.ErrStoreUnavailable)
	}

	session = core.NewCodeSession(roomID)
	if err := s.write(session); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to create session file")
		return nil, fmt.Errorf("find or create session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	logrus.WithField("room_id", roomID).Info("Session created")
	return session, nil
}

func (s *fsStore) SetCode(ctx context.Context, roomID string, code string) error {
	return s.update(roomID, func(session *core.CodeSession) {
		session.Code = code
	})
}

func (s *fsStore) SetSummary(ctx context.Context, roomID string, summary string) error {
	return s.update(roomID, func(session *core.CodeSession) {
		session.Summary = summary
	})
}

func (s *fsStore) Find(ctx context.Context, roomID string) (*core.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.read(roomID)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session for room %s: %w", roomID, core.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("find session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return session, nil
}

func (s *fsStore) update(roomID string, mutate func(*core.CodeSession)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, err := s.read(roomID)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("update session %s: %w", roomID, core.ErrSessionNotFound)
		}
		return fmt.Errorf("update session %s: %w", roomID, core.ErrStoreUnavailable)
	}

	mutate(session)
	session.UpdatedAt = time.Now()
	if err := s.write(session); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to write session file")
		return fmt.Errorf("update session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return nil
}

func (s *fsStore) read(roomID string) (*core.CodeSession, error) {
	data, err := os.ReadFile(s.sessionPath(roomID))
	if err != nil {
		return nil, err
	}
	var session core.CodeSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (s *fsStore) write(session *core.CodeSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return os.WriteFile(s.sessionPath(session.RoomID), data, 0644)
}
