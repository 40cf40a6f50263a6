package room

import (
	"context"
	"devecho-server/core"
	"errors"
	"sort"
	"sync"
	"testing"
)

type emitted struct {
	mode    string // "room", "others", "sender"
	roomID  string
	target  string // senderID for "others", connID for "sender"
	event   string
	payload []any
}

type fakeEmitter struct {
	mu     sync.Mutex
	events []emitted
}

func (e *fakeEmitter) ToRoom(roomID string, event string, payload ...any) {
	e.record(emitted{mode: "room", roomID: roomID, event: event, payload: payload})
}

func (e *fakeEmitter) ToOthers(roomID string, senderID string, event string, payload ...any) {
	e.record(emitted{mode: "others", roomID: roomID, target: senderID, event: event, payload: payload})
}

func (e *fakeEmitter) ToSender(connID string, event string, payload ...any) {
	e.record(emitted{mode: "sender", target: connID, event: event, payload: payload})
}

func (e *fakeEmitter) record(ev emitted) {
	e.mu.Lock()
	e.events = append(e.events, ev)
	e.mu.Unlock()
}

func (e *fakeEmitter) byEvent(event string) []emitted {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []emitted
	for _, ev := range e.events {
		if ev.event == event {
			out = append(out, ev)
		}
	}
	return out
}

func (e *fakeEmitter) last(event string) *emitted {
	matches := e.byEvent(event)
	if len(matches) == 0 {
		return nil
	}
	return &matches[len(matches)-1]
}

type fakeStore struct {
	mu              sync.Mutex
	sessions        map[string]*core.CodeSession
	findOrCreateErr error
	setCodeErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*core.CodeSession)}
}

func (s *fakeStore) FindOrCreate(ctx context.Context, roomID string) (*core.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.findOrCreateErr != nil {
		return nil, s.findOrCreateErr
	}
	if session, ok := s.sessions[roomID]; ok {
		copied := *session
		return &copied, nil
	}
	session := core.NewCodeSession(roomID)
	s.sessions[roomID] = session
	copied := *session
	return &copied, nil
}

func (s *fakeStore) SetCode(ctx context.Context, roomID string, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.setCodeErr != nil {
		return s.setCodeErr
	}
	session, ok := s.sessions[roomID]
	if !ok {
		return core.ErrSessionNotFound
	}
	session.Code = code
	return nil
}

func (s *fakeStore) SetSummary(ctx context.Context, roomID string, summary string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[roomID]
	if !ok {
		return core.ErrSessionNotFound
	}
	session.Summary = summary
	return nil
}

func (s *fakeStore) Find(ctx context.Context, roomID string) (*core.CodeSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[roomID]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *fakeStore) code(roomID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if session, ok := s.sessions[roomID]; ok {
		return session.Code
	}
	return ""
}

func sorted(names []string) []string {
	out := append([]string(nil), names...)
	sort.Strings(out)
	return out
}

func equalNames(a, b []string) bool {
	a, b = sorted(a), sorted(b)
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestJoin_FirstMemberGetsDefaultBuffer(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	if err := coord.Join(context.Background(), "connA", "x1", "A"); err != nil {
		t.Fatalf("Join() failed: %v", err)
	}

	loaded := emitter.last(EventLoadCode)
	if loaded == nil {
		t.Fatal("expected a load-code emission")
	}
	if loaded.mode != "sender" || loaded.target != "connA" {
		t.Errorf("load-code went to %s/%s, want sender/connA", loaded.mode, loaded.target)
	}
	if loaded.payload[0] != core.DefaultCode {
		t.Errorf("load-code payload = %v, want default buffer", loaded.payload[0])
	}

	list := emitter.last(EventUserListUpdate)
	if list == nil {
		t.Fatal("expected a user-list-update emission")
	}
	if list.mode != "room" || list.roomID != "x1" {
		t.Errorf("user-list-update went to %s/%s, want room/x1", list.mode, list.roomID)
	}
	if names := list.payload[0].([]string); !equalNames(names, []string{"A"}) {
		t.Errorf("member list = %v, want [A]", names)
	}
}

func TestJoin_SecondMemberNotifiesOthers(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	if err := coord.Join(context.Background(), "connA", "x1", "A"); err != nil {
		t.Fatalf("Join(A) failed: %v", err)
	}
	if err := coord.Join(context.Background(), "connB", "x1", "B"); err != nil {
		t.Fatalf("Join(B) failed: %v", err)
	}

	notice := emitter.last(EventUserJoined)
	if notice == nil {
		t.Fatal("expected a user-joined emission")
	}
	if notice.mode != "others" || notice.target != "connB" {
		t.Errorf("user-joined went to %s excluding %s, want others excluding connB", notice.mode, notice.target)
	}
	if notice.payload[0] != "B joined the session!" {
		t.Errorf("user-joined payload = %v", notice.payload[0])
	}

	list := emitter.last(EventUserListUpdate)
	if names := list.payload[0].([]string); !equalNames(names, []string{"A", "B"}) {
		t.Errorf("member list = %v, want [A B]", names)
	}
}

func TestJoin_DefaultsDisplayName(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	if err := coord.Join(context.Background(), "connA", "x1", ""); err != nil {
		t.Fatalf("Join() failed: %v", err)
	}

	if got := coord.DisplayName("connA"); got != DefaultDisplayName {
		t.Errorf("DisplayName() = %q, want %q", got, DefaultDisplayName)
	}
	if names := coord.Members("x1"); !equalNames(names, []string{DefaultDisplayName}) {
		t.Errorf("Members() = %v", names)
	}
}

func TestJoin_StoreFailureAbortsJoin(t *testing.T) {
	store := newFakeStore()
	store.findOrCreateErr = core.ErrStoreUnavailable
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	err := coord.Join(context.Background(), "connA", "x1", "A")
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("Join() error = %v, want ErrStoreUnavailable", err)
	}

	if len(coord.Members("x1")) != 0 {
		t.Error("failed join must not register membership")
	}
	if emitter.last(EventLoadCode) != nil {
		t.Error("failed join must not emit the buffer")
	}
	if emitter.last(EventUserListUpdate) != nil {
		t.Error("failed join must not broadcast a member list")
	}
}

func TestApplyChange_SyncsOthersAndPersists(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	if err := coord.Join(context.Background(), "connA", "x1", "A"); err != nil {
		t.Fatalf("Join() failed: %v", err)
	}
	if err := coord.ApplyChange(context.Background(), "connA", "x1", "let x=1;"); err != nil {
		t.Fatalf("ApplyChange() failed: %v", err)
	}

	sync := emitter.last(EventCodeSync)
	if sync == nil {
		t.Fatal("expected a code-sync emission")
	}
	if sync.mode != "others" || sync.target != "connA" {
		t.Errorf("code-sync went to %s excluding %s, want others excluding connA (no sender echo)", sync.mode, sync.target)
	}
	if sync.payload[0] != "let x=1;" {
		t.Errorf("code-sync payload = %v", sync.payload[0])
	}
	if got := store.code("x1"); got != "let x=1;" {
		t.Errorf("persisted code = %q, want %q", got, "let x=1;")
	}
}

func TestApplyChange_BroadcastSurvivesStoreFailure(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	if err := coord.Join(context.Background(), "connA", "x1", "A"); err != nil {
		t.Fatalf("Join() failed: %v", err)
	}

	store.setCodeErr = core.ErrStoreUnavailable
	err := coord.ApplyChange(context.Background(), "connA", "x1", "let x=1;")
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("ApplyChange() error = %v, want ErrStoreUnavailable", err)
	}

	// The sync still went out from the in-memory value.
	sync := emitter.last(EventCodeSync)
	if sync == nil {
		t.Fatal("expected code-sync despite persistence failure")
	}
	if sync.payload[0] != "let x=1;" {
		t.Errorf("code-sync payload = %v", sync.payload[0])
	}
}

func TestLeave_BroadcastsRemainingMembers(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	coordJoin(t, coord, "connA", "x1", "A")
	coordJoin(t, coord, "connB", "x1", "B")

	coord.Leave("connA", "x1")

	list := emitter.last(EventUserListUpdate)
	if names := list.payload[0].([]string); !equalNames(names, []string{"B"}) {
		t.Errorf("member list after leave = %v, want [B]", names)
	}
	if names := coord.Members("x1"); !equalNames(names, []string{"B"}) {
		t.Errorf("Members() = %v, want [B]", names)
	}
}

func TestLeave_LastMemberClearsRegistryKeepsSession(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	coordJoin(t, coord, "connA", "x1", "A")
	if err := coord.ApplyChange(context.Background(), "connA", "x1", "let x=1;"); err != nil {
		t.Fatalf("ApplyChange() failed: %v", err)
	}

	before := len(emitter.byEvent(EventUserListUpdate))
	coord.Leave("connA", "x1")

	if names := coord.Members("x1"); len(names) != 0 {
		t.Errorf("Members() after last leave = %v, want empty", names)
	}
	// No member-list broadcast for an emptied room.
	if after := len(emitter.byEvent(EventUserListUpdate)); after != before {
		t.Errorf("expected no user-list-update after room emptied, got %d new", after-before)
	}
	// The persisted buffer is untouched by registry cleanup.
	if got := store.code("x1"); got != "let x=1;" {
		t.Errorf("persisted code after leave = %q, want %q", got, "let x=1;")
	}
}

func TestLeave_NotAMemberIsNoOp(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	coordJoin(t, coord, "connA", "x1", "A")
	before := len(emitter.byEvent(EventUserListUpdate))

	coord.Leave("connB", "x1")      // never joined
	coord.Leave("connA", "other")   // joined a different room
	coord.Leave("connA", "x1")      // real leave
	coord.Leave("connA", "x1")      // second leave is a no-op

	if after := len(emitter.byEvent(EventUserListUpdate)); after != before {
		t.Errorf("no-op leaves must not broadcast, got %d new updates", after-before)
	}
}

func TestDisconnect_EquivalentToLeave(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	coordJoin(t, coord, "connA", "x1", "A")
	coordJoin(t, coord, "connB", "x1", "B")

	coord.Disconnect("connA")

	list := emitter.last(EventUserListUpdate)
	if names := list.payload[0].([]string); !equalNames(names, []string{"B"}) {
		t.Errorf("member list after disconnect = %v, want [B]", names)
	}
}

func TestDisconnect_NeverJoinedIsSafe(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	coord.Disconnect("connX")

	if len(emitter.events) != 0 {
		t.Errorf("disconnect of an unjoined connection emitted %d events", len(emitter.events))
	}
}

func TestMembers_UnknownRoomIsEmpty(t *testing.T) {
	coord := NewCoordinator(newFakeStore(), &fakeEmitter{})

	if names := coord.Members("nope"); len(names) != 0 {
		t.Errorf("Members() = %v, want empty", names)
	}
}

func TestJoinLeaveSequence_ListMatchesSurvivors(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	coordJoin(t, coord, "c1", "x1", "A")
	coordJoin(t, coord, "c2", "x1", "B")
	coordJoin(t, coord, "c3", "x1", "C")
	coord.Leave("c2", "x1")
	coord.Disconnect("c1")
	coordJoin(t, coord, "c4", "x1", "D")

	if names := coord.Members("x1"); !equalNames(names, []string{"C", "D"}) {
		t.Errorf("Members() = %v, want [C D]", names)
	}
}

func TestConcurrentJoins_AllRegistered(t *testing.T) {
	store := newFakeStore()
	emitter := &fakeEmitter{}
	coord := NewCoordinator(store, emitter)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			connID := "conn" + string(rune('a'+i%26)) + string(rune('0'+i/26))
			if err := coord.Join(context.Background(), connID, "x1", connID); err != nil {
				t.Errorf("Join(%s) failed: %v", connID, err)
			}
		}(i)
	}
	wg.Wait()

	if got := len(coord.Members("x1")); got != n {
		t.Errorf("Members() count = %d, want %d", got, n)
	}
}

func coordJoin(t *testing.T, coord *Coordinator, connID, roomID, name string) {
	t.Helper()
	if err := coord.Join(context.Background(), connID, roomID, name); err != nil {
		t.Fatalf("Join(%s) failed: %v", connID, err)
	}
}
