package ws

import (
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// socketEmitter adapts the socket.io server's room addressing to the
// coordinator's fan-out contract. Every socket is a member of its own
// id-room, which is what ToSender and the ToOthers exclusion rely on.
type socketEmitter struct {
	srv *socketio.Server
}

// NewEmitter wraps a socket.io server as a room.Emitter.
func NewEmitter(srv *socketio.Server) *socketEmitter {
	return &socketEmitter{srv: srv}
}

func (e *socketEmitter) ToRoom(roomID string, event string, payload ...any) {
	_ = e.srv.In(socketio.Room(roomID)).Emit(event, payload...)
}

func (e *socketEmitter) ToOthers(roomID string, senderID string, event string, payload ...any) {
	_ = e.srv.In(socketio.Room(roomID)).Except(socketio.Room(senderID)).Emit(event, payload...)
}

func (e *socketEmitter) ToSender(connID string, event string, payload ...any) {
	_ = e.srv.To(socketio.Room(connID)).Emit(event, payload...)
}
