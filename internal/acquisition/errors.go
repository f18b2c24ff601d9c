package acquisition

import (
	"errors"
	"net/http"
)

// Acquisition errors.
var (
	ErrInvalidMode         = errors.New("invalid acquisition mode")
	ErrModeActive          = errors.New("an acquisition mode is already active")
	ErrWrongMode           = errors.New("operation not available in the active mode")
	ErrNoDocument          = errors.New("please select a file first")
	ErrUnsupportedDocument = errors.New("unsupported document type")
	ErrDocumentTooLarge    = errors.New("document exceeds maximum upload size")
	ErrIncompletePanel     = errors.New("all blood panel fields must be filled")
)

// MapHTTPStatus maps acquisition errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidMode), errors.Is(err, ErrUnsupportedDocument):
		return http.StatusBadRequest
	case errors.Is(err, ErrModeActive), errors.Is(err, ErrWrongMode):
		return http.StatusConflict
	case errors.Is(err, ErrDocumentTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrNoDocument), errors.Is(err, ErrIncompletePanel):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
