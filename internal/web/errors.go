package web

// errors.go provides unified error response handling for the web layer.
//
// Every error is logged with its technical detail and request ID, then
// returned to the client as a mapped user message with a support code.
// The batch endpoint is the exception: it answers with HTTP 200 and a bare
// {"error": "..."} body, see handleImportBatch.

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/csvimport/internal/core"
	"github.com/JonMunkholm/csvimport/internal/logging"
)

// ErrorResponse represents the JSON structure for API error responses.
// Includes both machine-readable (Code) and human-readable (Message, Action) fields.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes a JSON error response. A zero status is
// derived from the error.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	if status == 0 {
		status = statusFor(err)
	}
	userMsg := core.MapError(err)

	logging.FromContext(r.Context()).Error("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", userMsg.Code,
		"request_id", middleware.GetReqID(r.Context()),
	)

	writeJSON(w, status, ErrorResponse{
		Error:   userMsg.Message,
		Message: userMsg.Message,
		Action:  userMsg.Action,
		Code:    userMsg.Code,
	})
}

// statusFor maps request-level errors to HTTP status codes.
func statusFor(err error) int {
	var perr *core.ParseError
	switch {
	case errors.Is(err, core.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrUnknownSchema),
		errors.Is(err, core.ErrInvalidConfig),
		errors.Is(err, core.ErrStartOutOfRange),
		errors.As(err, &perr):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrTooManyBatches):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// badRequest reports a malformed request that never reached the service.
// Known upload errors keep their support code; anything else is REQ002
// with the error text as the message.
func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, err error) {
	resp := ErrorResponse{Error: err.Error(), Message: err.Error(), Code: "REQ002"}
	if core.IsUserFacing(err) {
		uerr := core.NewUserError(err)
		resp = ErrorResponse{
			Error:   uerr.Error(),
			Message: uerr.User.Message,
			Action:  uerr.User.Action,
			Code:    uerr.User.Code,
		}
	}

	logging.FromContext(r.Context()).Warn("bad request",
		"path", r.URL.Path,
		"method", r.Method,
		"reason", err.Error(),
		"user_error", core.FormatUserError(err),
		"code", resp.Code,
	)
	writeJSON(w, http.StatusBadRequest, resp)
}
