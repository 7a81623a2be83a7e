package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"tracklist/logger"
	"tracklist/model"
)

// Machine-readable values of the "error" field.
const (
	CodeTrackNotFound          = "TRACK_NOT_FOUND"
	CodePlaylistNotFound       = "PLAYLIST_NOT_FOUND"
	CodeTrackNotInPlaylist     = "TRACK_NOT_IN_PLAYLIST"
	CodeInvalidTrackPosition   = "INVALID_TRACK_POSITION"
	CodeValidationError        = "VALIDATION_ERROR"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
	CodeNotFound               = "NOT_FOUND"
	CodeMethodNotAllowed       = "METHOD_NOT_ALLOWED"
	CodeInternalError          = "INTERNAL_ERROR"
)

const internalErrorMessage = "An unexpected error occurred"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Timestamp   time.Time    `json:"timestamp"`
	Status      int          `json:"status"`
	Error       string       `json:"error"`
	Message     string       `json:"message"`
	FieldErrors []FieldError `json:"fieldErrors,omitempty"`
}

// FieldError describes one rejected request field.
type FieldError struct {
	Field         string `json:"field"`
	RejectedValue string `json:"rejectedValue"`
	Message       string `json:"message"`
}

// requestError is raised by the transport layer itself: bad JSON or failed
// field validation.
type requestError struct {
	message string
	fields  []FieldError
}

func (e *requestError) Error() string { return e.message }

// classify maps an error to its HTTP status, code and client-facing message.
func classify(err error) (int, string, string) {
	var (
		notFound *model.NotFoundError
		reqErr   *requestError
	)
	switch {
	case errors.As(err, &reqErr):
		return http.StatusBadRequest, CodeValidationError, reqErr.message
	case errors.As(err, &notFound):
		switch notFound.Kind {
		case model.KindTrack:
			return http.StatusNotFound, CodeTrackNotFound, err.Error()
		case model.KindPlaylist:
			return http.StatusNotFound, CodePlaylistNotFound, err.Error()
		default:
			return http.StatusNotFound, CodeTrackNotInPlaylist, err.Error()
		}
	case errors.Is(err, model.ErrInvalidPosition):
		return http.StatusBadRequest, CodeInvalidTrackPosition, err.Error()
	case errors.Is(err, model.ErrInvalidArgument):
		return http.StatusBadRequest, CodeValidationError, err.Error()
	case errors.Is(err, model.ErrVersionConflict):
		return http.StatusConflict, CodeConcurrentModification, err.Error()
	default:
		return http.StatusInternalServerError, CodeInternalError, internalErrorMessage
	}
}

// writeError converts err into the structured error body. Unexpected errors
// are logged with the request id; their details never reach the client.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)

	resp := ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     code,
		Message:   message,
	}
	var reqErr *requestError
	if errors.As(err, &reqErr) {
		resp.FieldErrors = reqErr.fields
	}

	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			logger.String("requestId", RequestIDFrom(r.Context())),
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorField(err))
	} else {
		logger.Debug("request rejected",
			logger.String("requestId", RequestIDFrom(r.Context())),
			logger.String("error", code),
			logger.String("message", message))
	}

	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("failed to encode response", logger.ErrorField(err))
	}
}

func writeStatus(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, ErrorResponse{
		Timestamp: time.Now().UTC(),
		Status:    status,
		Error:     code,
		Message:   message,
	})
}
