package history

import (
	"errors"
	"net/http"

	"github.com/JaimeStill/docassist/pkg/database"
	"github.com/JaimeStill/docassist/pkg/repository"
	"github.com/JaimeStill/docassist/pkg/storage"
)

// Domain errors for history operations.
var (
	ErrNotFound      = errors.New("analysis not found")
	ErrDuplicate     = errors.New("analysis already archived")
	ErrInvalidID     = errors.New("invalid analysis id")
	ErrInvalidRecord = errors.New("invalid analysis record")
	ErrInvalidFilter = errors.New("invalid filter")
)

// MapHTTPStatus maps history domain errors to appropriate HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrDuplicate):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidID), errors.Is(err, ErrInvalidRecord), errors.Is(err, ErrInvalidFilter),
		errors.Is(err, repository.ErrConstraint):
		return http.StatusBadRequest
	case errors.Is(err, database.ErrNotReady):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
