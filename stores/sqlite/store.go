package sqlite

import (
	"context"
	"database/sql"
	"devecho-server/core"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based session store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	tableStmt := `
	CREATE TABLE IF NOT EXISTS code_sessions (
		room_id TEXT PRIMARY KEY,
		code TEXT NOT NULL,
		summary TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);`
	if _, err = db.Exec(tableStmt); err != nil {
		log.Fatalf("failed to create code_sessions table: %v", err)
	}

	return &sqliteStore{db}
}

// FindOrCreate inserts the default session with ON CONFLICT DO NOTHING and
// reads the row back in the same transaction, so concurrent first joins for a
// room resolve to one winner at the database level.
func (s *sqliteStore) FindOrCreate(ctx context.Context, roomID string) (*core.CodeSession, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("find or create session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	defer tx.Rollback()

	defaults := core.NewCodeSession(roomID)
	_, err = tx.ExecContext(ctx,
		`INSERT INTO code_sessions (room_id, code, summary, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?) ON CONFLICT (room_id) DO NOTHING`,
		defaults.RoomID, defaults.Code, defaults.Summary, defaults.CreatedAt, defaults.UpdatedAt)
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to upsert session")
		return nil, fmt.Errorf("find or create session %s: %w", roomID, core.ErrStoreUnavailable)
	}

	session, err := scanSession(tx.QueryRowContext(ctx,
		"SELECT room_id, code, summary, created_at, updated_at FROM code_sessions WHERE room_id = ?", roomID))
	if err != nil {
		return nil, fmt.Errorf("find or create session %s: %w", roomID, core.ErrStoreUnavailable)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("find or create session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return session, nil
}

func (s *sqliteStore) SetCode(ctx context.Context, roomID string, code string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE code_sessions SET code = ?, updated_at = ? WHERE room_id = ?", code, time.Now(), roomID)
	if err != nil {
		return fmt.Errorf("set code for room %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return nil
}

func (s *sqliteStore) SetSummary(ctx context.Context, roomID string, summary string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE code_sessions SET summary = ?, updated_at = ? WHERE room_id = ?", summary, time.Now(), roomID)
	if err != nil {
		return fmt.Errorf("set summary for room %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return nil
}

func (s *sqliteStore) Find(ctx context.Context, roomID string) (*core.CodeSession, error) {
	session, err := scanSession(s.db.QueryRowContext(ctx,
		"SELECT room_id, code, summary, created_at, updated_at FROM code_sessions WHERE room_id = ?", roomID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("session for room %s: %w", roomID, core.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("find session %s: %w", roomID, core.ErrStoreUnavailable)
	}
	return session, nil
}

func scanSession(row *sql.Row) (*core.CodeSession, error) {
	var session core.CodeSession
	err := row.Scan(&session.RoomID, &session.Code, &session.Summary, &session.CreatedAt, &session.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &session, nil
}
