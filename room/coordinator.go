package room

import (
	"context"
	"devecho-server/core"
	"sync"

	"github.com/sirupsen/logrus"
)

// DefaultDisplayName is used when a client joins without choosing a name.
const DefaultDisplayName = "Anonymous"

type membership struct {
	roomID string
	name   string
}

// Coordinator is the process-wide authority for active rooms: it tracks which
// connections belong to which room, owns the authoritative code buffer through
// the session store, and fans events out to the right subset of connections.
// It is constructed once in main and injected into the transport layer.
type Coordinator struct {
	mu      sync.Mutex
	members map[string]map[string]string // roomID -> connID -> display name
	conns   map[string]membership        // connID -> joined room

	store   core.SessionStore
	emitter Emitter
}

// NewCoordinator creates a coordinator over the given store and emitter.
func NewCoordinator(store core.SessionStore, emitter Emitter) *Coordinator {
	return &Coordinator{
		members: make(map[string]map[string]string),
		conns:   make(map[string]membership),
		store:   store,
		emitter: emitter,
	}
}

// Join registers the connection under the room and emits the current buffer to
// the joiner, a joined notice to the others, and the updated member list to
// the whole room. If the session cannot be loaded or created the join does not
// complete and the error is returned for the transport layer to surface.
func (c *Coordinator) Join(ctx context.Context, connID, roomID, displayName string) error {
	if displayName == "" {
		displayName = DefaultDisplayName
	}

	session, err := c.store.FindOrCreate(ctx, roomID)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"conn_id": connID,
			"error":   err,
		}).Error("Failed to load session on join")
		return err
	}

	c.mu.Lock()
	roomMembers, ok := c.members[roomID]
	if !ok {
		roomMembers = make(map[string]string)
		c.members[roomID] = roomMembers
	}
	roomMembers[connID] = displayName
	c.conns[connID] = membership{roomID: roomID, name: displayName}
	names := memberNames(roomMembers)
	c.mu.Unlock()

	logrus.WithFields(logrus.Fields{
		"room_id":  roomID,
		"conn_id":  connID,
		"username": displayName,
	}).Info("User joined room")

	c.emitter.ToSender(connID, EventLoadCode, session.Code)
	c.emitter.ToOthers(roomID, connID, EventUserJoined, displayName+" joined the session!")
	c.emitter.ToRoom(roomID, EventUserListUpdate, names)
	return nil
}

// Leave removes the connection from the room. The last member leaving discards
// the room's in-memory member set; otherwise the remaining members receive an
// updated list. Leaving a room the connection is not in is a no-op.
func (c *Coordinator) Leave(connID, roomID string) {
	c.mu.Lock()
	names, changed := c.removeLocked(connID, roomID)
	c.mu.Unlock()

	if !changed {
		return
	}

	logrus.WithFields(logrus.Fields{
		"room_id": roomID,
		"conn_id": connID,
	}).Info("User left room")

	if names != nil {
		c.emitter.ToRoom(roomID, EventUserListUpdate, names)
	}
}

// Disconnect performs the leave cleanup for whatever room the connection had
// joined. Safe to call for connections that never joined a room.
func (c *Coordinator) Disconnect(connID string) {
	c.mu.Lock()
	m, ok := c.conns[connID]
	var names []string
	changed := false
	if ok {
		names, changed = c.removeLocked(connID, m.roomID)
	}
	c.mu.Unlock()

	if !changed {
		return
	}

	logrus.WithFields(logrus.Fields{
		"room_id": m.roomID,
		"conn_id": connID,
	}).Info("User disconnected from room")

	if names != nil {
		c.emitter.ToRoom(m.roomID, EventUserListUpdate, names)
	}
}

// removeLocked deletes the connection from the room's member map. It returns
// the remaining member names (nil when the room emptied and was discarded)
// and whether anything was actually removed. Caller holds c.mu.
func (c *Coordinator) removeLocked(connID, roomID string) (names []string, changed bool) {
	roomMembers, ok := c.members[roomID]
	if !ok {
		return nil, false
	}
	if _, ok := roomMembers[connID]; !ok {
		return nil, false
	}

	delete(roomMembers, connID)
	if m, ok := c.conns[connID]; ok && m.roomID == roomID {
		delete(c.conns, connID)
	}

	if len(roomMembers) == 0 {
		delete(c.members, roomID)
		return nil, true
	}
	return memberNames(roomMembers), true
}

// Members returns a snapshot of the display names currently in the room.
func (c *Coordinator) Members(roomID string) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	roomMembers, ok := c.members[roomID]
	if !ok {
		return []string{}
	}
	return memberNames(roomMembers)
}

// DisplayName returns the name the connection joined under.
func (c *Coordinator) DisplayName(connID string) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if m, ok := c.conns[connID]; ok {
		return m.name
	}
	return DefaultDisplayName
}

// ApplyChange broadcasts the new buffer to the other members and persists it.
// The broadcast always uses the in-memory value and proceeds even when
// persistence fails, so the room stays live if durability is temporarily
// lost. Concurrent changes race at the store: last completed write wins.
func (c *Coordinator) ApplyChange(ctx context.Context, connID, roomID, code string) error {
	c.emitter.ToOthers(roomID, connID, EventCodeSync, code)

	if err := c.store.SetCode(ctx, roomID, code); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id": roomID,
			"error":   err,
		}).Error("Failed to persist code change")
		return err
	}
	return nil
}

// Session returns the persisted session for the room.
func (c *Coordinator) Session(ctx context.Context, roomID string) (*core.CodeSession, error) {
	return c.store.Find(ctx, roomID)
}

// SetSummary stores an AI-generated digest alongside the buffer.
func (c *Coordinator) SetSummary(ctx context.Context, roomID, summary string) error {
	return c.store.SetSummary(ctx, roomID, summary)
}

// Emitter exposes the fan-out so request/response handlers can deliver
// room-scoped results through the same path.
func (c *Coordinator) Emitter() Emitter {
	return c.emitter
}

func memberNames(roomMembers map[string]string) []string {
	names := make([]string, 0, len(roomMembers))
	for _, name := range roomMembers {
		names = append(names, name)
	}
	return names
}
