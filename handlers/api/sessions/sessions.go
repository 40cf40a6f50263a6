package sessions

import (
	"devecho-server/core"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// HandleGetSession returns the persisted code and summary for a room.
func HandleGetSession(store core.SessionStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := chi.URLParam(r, "roomID")
		if roomID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Room ID is required"})
			return
		}

		session, err := store.Find(r.Context(), roomID)
		if err != nil {
			if errors.Is(err, core.ErrSessionNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Session not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"room_id": roomID,
				"error":   err,
			}).Error("Failed to load session")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to load session"})
			return
		}

		render.JSON(w, r, session)
	}
}
