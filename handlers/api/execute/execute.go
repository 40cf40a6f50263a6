package execute

import (
	"devecho-server/runner"
	"net/http"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type executeRequest struct {
	Language string `json:"language"`
	Code     string `json:"code"`
}

// HandleExecute is the public code-execution API: it forwards the submitted
// source to the remote runner and returns the result, mirroring the payload
// the socket event delivers to rooms.
func HandleExecute(exec runner.Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req executeRequest
		if err := render.DecodeJSON(r.Body, &req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid JSON in request body"})
			return
		}
		if req.Language == "" || req.Code == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "language and code are required"})
			return
		}

		result, err := exec.Run(r.Context(), req.Language, req.Code)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"language": req.Language,
				"error":    err,
			}).Error("Code execution failed")
			render.JSON(w, r, &runner.Result{
				Success:  false,
				Output:   "Execution Failed: " + err.Error(),
				Language: req.Language,
			})
			return
		}

		render.JSON(w, r, result)
	}
}
