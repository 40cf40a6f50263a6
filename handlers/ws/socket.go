package ws

import (
	"context"
	"devecho-server/core"
	"devecho-server/genai"
	"devecho-server/room"
	"devecho-server/runner"
	"errors"
	"os"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/zishang520/engine.io/v2/types"
	socketio "github.com/zishang520/socket.io/v2/socket"
)

// NewServer builds the socket.io server with the CORS and buffer settings the
// frontend expects. Register the room handlers on it with RegisterHandlers
// after the coordinator has been constructed around its emitter.
func NewServer() *socketio.Server {
	opts := socketio.DefaultServerOptions()
	opts.SetMaxHttpBufferSize(5000000)
	opts.SetPath("/socket.io")
	opts.SetAllowEIO3(true)

	origin := os.Getenv("FRONTEND_ORIGIN")
	if origin == "" {
		origin = "*"
	}
	opts.SetCors(&types.Cors{
		Origin:      origin,
		Credentials: true,
	})

	return socketio.NewServer(nil, opts)
}

// RegisterHandlers wires the session protocol onto the server: membership and
// buffer events go through the coordinator, AI and execution requests are
// stateless exchanges whose results fan out to the whole room.
func RegisterHandlers(srv *socketio.Server, coord *room.Coordinator, ai genai.Completer, exec runner.Runner) {
	srv.On("connection", func(clients ...any) {
		socket, ok := clients[0].(*socketio.Socket)
		if !ok {
			return
		}

		me := string(socket.Id())
		logrus.WithField("conn_id", me).Info("User connected")

		socket.On("join-room", func(datas ...any) {
			roomID := argString(datas, 0)
			username := argString(datas, 1)
			if roomID == "" {
				return
			}

			socket.Join(socketio.Room(roomID))
			if err := coord.Join(context.Background(), me, roomID, username); err != nil {
				// The join did not complete; undo the transport-level
				// membership so no broadcast reaches this socket.
				socket.Leave(socketio.Room(roomID))
				coord.Emitter().ToSender(me, room.EventRoomError, "Error: Could not load the session. Try again later.")
			}
		})

		socket.On("leave-room", func(datas ...any) {
			roomID := argString(datas, 0)
			if roomID == "" {
				return
			}
			coord.Leave(me, roomID)
			socket.Leave(socketio.Room(roomID))
		})

		socket.On("code-change", func(datas ...any) {
			roomID := argString(datas, 0)
			code := argString(datas, 1)
			if roomID == "" {
				return
			}
			// Persistence failure is already logged and the sync has been
			// broadcast from the in-memory value; nothing more to do here.
			_ = coord.ApplyChange(context.Background(), me, roomID, code)
		})

		socket.On("send-message", func(datas ...any) {
			roomID := argString(datas, 0)
			text := argString(datas, 1)
			if roomID == "" {
				return
			}
			coord.Emitter().ToRoom(roomID, room.EventReceiveMessage, map[string]any{
				"text":      text,
				"user":      coord.DisplayName(me),
				"timestamp": time.Now().Format("3:04:05 PM"),
				"id":        ulid.Make().String(),
			})
		})

		socket.On("request-suggestion", func(datas ...any) {
			roomID := argString(datas, 0)
			code := argString(datas, 1)
			if roomID == "" {
				return
			}
			logrus.WithField("room_id", roomID).Info("AI mentor requested")

			go func() {
				suggestion, err := ai.Complete(context.Background(), genai.SuggestionPrompt(code))
				if err != nil {
					logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Suggestion request failed")
					coord.Emitter().ToRoom(roomID, room.EventAISuggestion, "Mentor Error: "+errorText(err))
					return
				}
				coord.Emitter().ToRoom(roomID, room.EventAISuggestion, suggestion)
			}()
		})

		socket.On("request-summary", func(datas ...any) {
			roomID := argString(datas, 0)
			if roomID == "" {
				return
			}
			logrus.WithField("room_id", roomID).Info("AI summary requested")

			go func() {
				handleSummary(coord, ai, roomID)
			}()
		})

		socket.On("request-translation", func(datas ...any) {
			roomID := argString(datas, 0)
			code := argString(datas, 1)
			sourceLang := argString(datas, 2)
			targetLang := argString(datas, 3)
			if roomID == "" {
				return
			}
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"from":    sourceLang,
				"to":      targetLang,
			}).Info("Code translation requested")

			go func() {
				handleTranslation(coord, ai, roomID, code, sourceLang, targetLang)
			}()
		})

		socket.On("execute-code", func(datas ...any) {
			roomID := argString(datas, 0)
			code := argString(datas, 1)
			language := argString(datas, 2)
			if roomID == "" {
				return
			}
			logrus.WithFields(logrus.Fields{"room_id": roomID, "language": language}).Info("Code execution requested")

			go func() {
				result, err := exec.Run(context.Background(), language, code)
				if err != nil {
					logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Code execution failed")
					result = &runner.Result{
						Success:  false,
						Output:   "Execution Failed: " + errorText(err),
						Language: language,
					}
				}
				coord.Emitter().ToRoom(roomID, room.EventCodeOutput, result)
			}()
		})

		socket.On("disconnect", func(datas ...any) {
			logrus.WithField("conn_id", me).Info("User disconnected")
			coord.Disconnect(me)
		})
	})
}

func handleSummary(coord *room.Coordinator, ai genai.Completer, roomID string) {
	session, err := coord.Session(context.Background(), roomID)
	if err != nil {
		if errors.Is(err, core.ErrSessionNotFound) {
			coord.Emitter().ToRoom(roomID, room.EventSessionSummary, "Error: Session not found.")
			return
		}
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Summary session lookup failed")
		coord.Emitter().ToRoom(roomID, room.EventSessionSummary, "Summary Error: "+errorText(err))
		return
	}

	summary, err := ai.Complete(context.Background(), genai.SummaryPrompt(session.Code))
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Summary request failed")
		coord.Emitter().ToRoom(roomID, room.EventSessionSummary, "Summary Error: "+errorText(err))
		return
	}

	// Persist best-effort. The generated summary is still delivered even when
	// durability is temporarily lost.
	if err := coord.SetSummary(context.Background(), roomID, summary); err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Failed to persist summary")
	}
	coord.Emitter().ToRoom(roomID, room.EventSessionSummary, summary)
}

func handleTranslation(coord *room.Coordinator, ai genai.Completer, roomID, code, sourceLang, targetLang string) {
	if sourceLang == targetLang {
		coord.Emitter().ToRoom(roomID, room.EventReceiveTranslation, "Error: Source and target languages are the same.")
		return
	}

	translated, err := ai.Complete(context.Background(), genai.TranslationPrompt(code, sourceLang, targetLang))
	if err != nil {
		logrus.WithFields(logrus.Fields{"room_id": roomID, "error": err}).Error("Translation request failed")
		coord.Emitter().ToRoom(roomID, room.EventReceiveTranslation, "Error: Failed to translate code. "+errorText(err))
		return
	}

	coord.Emitter().ToRoom(roomID, room.EventReceiveTranslation, genai.ExtractCodeBlock(translated, targetLang))
}

// argString reads a positional string argument from a socket.io event,
// tolerating short or mistyped argument lists.
func argString(datas []any, i int) string {
	if i >= len(datas) {
		return ""
	}
	s, _ := datas[i].(string)
	return s
}

func errorText(err error) string {
	if err == nil || err.Error() == "" {
		return "Check API Key/Quota."
	}
	return err.Error()
}
