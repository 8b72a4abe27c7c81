package handlers

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"talkquest/internal/service"
)

const internalErrorMessage = "Internal server error"

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func respondWithError(w http.ResponseWriter, logger *zap.Logger, status int, userMsg, logMsg string, err error) {
	if err != nil {
		if logMsg == "" {
			logMsg = userMsg
		}
		logger.Error(logMsg, zap.Int("status", status), zap.Error(err))
	}

	respondJSON(w, status, errorResponse{Error: userMsg, Code: codeForStatus(status)})
}

// respondServiceError maps a service error kind to a status code. Internal
// errors are logged and replaced by a fixed message.
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		respondWithError(w, logger, status, internalErrorMessage, "Request failed", err)
		return
	}
	if status == http.StatusServiceUnavailable {
		logger.Warn("Concurrent modification", zap.Error(err))
	}

	msg := http.StatusText(status)
	var svcErr *service.Error
	if errors.As(err, &svcErr) {
		msg = svcErr.Kind.Error()
		if svcErr.Message != "" {
			msg = svcErr.Message
		}
	}
	respondJSON(w, status, errorResponse{Error: msg, Code: codeForStatus(status)})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, service.ErrConcurrentModification):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_argument"
	case http.StatusUnauthorized:
		return "unauthenticated"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusServiceUnavailable:
		return "concurrent_modification"
	default:
		return "internal"
	}
}
