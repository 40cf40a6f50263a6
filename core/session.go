package core

import (
	"context"
	"errors"
	"time"
)

const (
	// DefaultCode is the buffer a freshly created session starts with.
	DefaultCode = "// Start coding here..."
	// DefaultSummary is the summary placeholder before any AI digest is generated.
	DefaultSummary = "No summary yet."
)

var (
	// ErrSessionNotFound is returned by Find when no session exists for the room.
	ErrSessionNotFound = errors.New("session not found")
	// ErrStoreUnavailable wraps operational store failures (connection lost,
	// disk error). Callers degrade to in-memory state rather than crash.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

type (
	// CodeSession is the persisted state of one collaboration room: the shared
	// code buffer plus the AI-generated session summary.
	CodeSession struct {
		RoomID    string    `json:"roomId" bson:"roomId"`
		Code      string    `json:"code" bson:"code"`
		Summary   string    `json:"summary" bson:"summary"`
		CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt" bson:"updatedAt"`
	}

	// SessionStore defines the persistence layer for code sessions.
	SessionStore interface {
		// FindOrCreate returns the session for roomID, creating it with default
		// content if absent. The create must be atomic: under concurrent calls
		// for the same room exactly one create wins and all callers observe the
		// same document.
		FindOrCreate(ctx context.Context, roomID string) (*CodeSession, error)

		// SetCode overwrites the room's code buffer. Last completed write wins;
		// there is no merge.
		SetCode(ctx context.Context, roomID string, code string) error

		// SetSummary overwrites the room's summary field.
		SetSummary(ctx context.Context, roomID string, summary string) error

		// Find returns the session for roomID, or ErrSessionNotFound.
		Find(ctx context.Context, roomID string) (*CodeSession, error)
	}
)

// NewCodeSession returns a session populated with default content.
func NewCodeSession(roomID string) *CodeSession {
	now := time.Now()
	return &CodeSession{
		RoomID:    roomID,
		Code:      DefaultCode,
		Summary:   DefaultSummary,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
