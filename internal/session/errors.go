package session

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/export"
	"github.com/JaimeStill/docassist/internal/panel"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrClosed            = errors.New("session closed")
	ErrInvalidTransition = errors.New("invalid session transition")
	ErrSubmitInFlight    = errors.New("a submission is already in progress")
	ErrStaleGeneration   = errors.New("event belongs to a superseded submission")
	ErrNotReady          = errors.New("input is not ready for submission")
	ErrExportUnavailable = errors.New("export is only available once the analysis is complete")
	ErrCapacity          = errors.New("session limit reached")
)

// MapHTTPStatus maps session and acquisition errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrClosed) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrCapacity) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrSubmitInFlight) ||
		errors.Is(err, ErrStaleGeneration) ||
		errors.Is(err, ErrExportUnavailable) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrNotReady) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, export.ErrEmptyNarrative) {
		return http.StatusConflict
	}
	if errors.Is(err, export.ErrUnsupportedCharacters) {
		return http.StatusUnprocessableEntity
	}
	var ve *panel.ValidationError
	if errors.As(err, &ve) || errors.Is(err, panel.ErrUnknownField) {
		return panel.MapHTTPStatus(err)
	}
	return acquisition.MapHTTPStatus(err)
}
