package sessions

import (
	"context"
	"devecho-server/core"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeStore struct {
	sessions map[string]*core.CodeSession
	err      error
}

func (f *fakeStore) FindOrCreate(ctx context.Context, roomID string) (*core.CodeSession, error) {
	return nil, core.ErrStoreUnavailable
}

func (f *fakeStore) SetCode(ctx context.Context, roomID string, code string) error {
	return nil
}

func (f *fakeStore) SetSummary(ctx context.Context, roomID string, summary string) error {
	return nil
}

func (f *fakeStore) Find(ctx context.Context, roomID string) (*core.CodeSession, error) {
	if f.err != nil {
		return nil, f.err
	}
	if session, ok := f.sessions[roomID]; ok {
		return session, nil
	}
	return nil, core.ErrSessionNotFound
}

func getSession(t *testing.T, store core.SessionStore, roomID string) *httptest.ResponseRecorder {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/api/v2/sessions/{roomID}", HandleGetSession(store))

	req := httptest.NewRequest(http.MethodGet, "/api/v2/sessions/"+roomID, nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetSession_Found(t *testing.T) {
	store := &fakeStore{sessions: map[string]*core.CodeSession{
		"x1": {RoomID: "x1", Code: "let x=1;", Summary: "Session Summary: test"},
	}}

	rec := getSession(t, store, "x1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var session core.CodeSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if session.RoomID != "x1" || session.Code != "let x=1;" {
		t.Errorf("session = %+v", session)
	}
}

func TestHandleGetSession_NotFound(t *testing.T) {
	store := &fakeStore{sessions: map[string]*core.CodeSession{}}

	rec := getSession(t, store, "nope")
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleGetSession_StoreFailure(t *testing.T) {
	store := &fakeStore{err: core.ErrStoreUnavailable}

	rec := getSession(t, store, "x1")
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
}
