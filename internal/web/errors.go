package web

// errors.go provides unified error responses for the status server.
//
// Technical errors are logged with the request ID for correlation, and the
// client receives a short message plus a machine-readable code.

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrThemeNotSelected is returned for a theme that is not part of the run.
var ErrThemeNotSelected = errors.New("theme not selected for this run")

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// userMessage is the client-facing side of an error.
type userMessage struct {
	Message string
	Action  string
	Code    string
}

// mapError converts an internal error into a client-facing message.
func mapError(err error) userMessage {
	switch {
	case errors.Is(err, ErrThemeNotSelected):
		return userMessage{
			Message: "Theme is not part of this run",
			Action:  "Check /status for the selected themes",
			Code:    "THEME_NOT_SELECTED",
		}
	default:
		return userMessage{
			Message: "An unexpected error occurred",
			Code:    "INTERNAL",
		}
	}
}

// respondError logs the technical error server-side and writes a JSON error
// response.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	userMsg := mapError(err)

	slog.Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	}); err != nil {
		slog.Error("json encode error", "error", err)
	}
}
