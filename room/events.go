package room

// Outbound socket event vocabulary shared by the coordinator and the
// transport handlers. Names match what the frontend listens on.
const (
	EventLoadCode           = "load-code"
	EventCodeSync           = "code-sync"
	EventUserJoined         = "user-joined"
	EventUserListUpdate     = "user-list-update"
	EventReceiveMessage     = "receive-message"
	EventAISuggestion       = "ai-suggestion"
	EventSessionSummary     = "session-summary-result"
	EventReceiveTranslation = "receive-translation"
	EventCodeOutput         = "code-output"
	EventRoomError          = "room-error"
)

// Emitter is the delivery abstraction over the transport layer's room
// addressing. Implementations do not guarantee delivery; they only route.
type Emitter interface {
	// ToRoom delivers to every member of the room, including the sender.
	ToRoom(roomID string, event string, payload ...any)
	// ToOthers delivers to every member of the room except senderID.
	ToOthers(roomID string, senderID string, event string, payload ...any)
	// ToSender delivers to a single connection.
	ToSender(connID string, event string, payload ...any)
}
