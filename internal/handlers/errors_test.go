package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"talkquest/internal/service"
)

func TestStatusForError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid argument", err: &service.Error{Op: "op", Kind: service.ErrInvalidArgument}, want: http.StatusBadRequest},
		{name: "not found", err: &service.Error{Op: "op", Kind: service.ErrNotFound}, want: http.StatusNotFound},
		{name: "forbidden", err: &service.Error{Op: "op", Kind: service.ErrForbidden}, want: http.StatusForbidden},
		{name: "conflict", err: &service.Error{Op: "op", Kind: service.ErrConflict}, want: http.StatusConflict},
		{name: "concurrent modification", err: &service.Error{Op: "op", Kind: service.ErrConcurrentModification}, want: http.StatusServiceUnavailable},
		{name: "wrapped kind", err: fmt.Errorf("outer: %w", &service.Error{Op: "op", Kind: service.ErrNotFound}), want: http.StatusNotFound},
		{name: "plain error", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, statusForError(tt.err))
		})
	}
}

func TestRespondServiceErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, zap.NewNop(), &service.Error{Op: "op", Kind: service.ErrInternal, Err: errors.New("secret table name")})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), internalErrorMessage)
	assert.NotContains(t, rec.Body.String(), "secret table name")
}

func TestRespondServiceErrorUsesMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, zap.NewNop(), &service.Error{Op: "op", Kind: service.ErrInvalidArgument, Message: "title is required"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"title is required","code":"invalid_argument"}`, rec.Body.String())
}
