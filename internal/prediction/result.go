package prediction

import (
	"errors"
	"net/http"
)

var (
	ErrConnectivity  = errors.New("inference service unreachable")
	ErrService       = errors.New("inference service reported an error")
	ErrInvalidSource = errors.New("invalid report source")
)

// GenericServiceMessage is surfaced when the service gives no usable reason.
const GenericServiceMessage = "Server error"

// Status is the outcome reported for a submission.
type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// FailureKind distinguishes why a submission did not succeed.
type FailureKind string

const (
	FailureConnectivity FailureKind = "connectivity"
	FailureService      FailureKind = "service"
	FailureRequest      FailureKind = "request"
)

// Failure describes an unsuccessful submission.
type Failure struct {
	Kind       FailureKind `json:"kind"`
	Message    string      `json:"message"`
	Hint       string      `json:"hint,omitempty"`
	StatusCode int         `json:"status_code,omitempty"`
}

func (f *Failure) Error() string {
	if f.Hint != "" {
		return f.Message + ". " + f.Hint
	}
	return f.Message
}

func (f *Failure) Unwrap() error {
	switch f.Kind {
	case FailureConnectivity:
		return ErrConnectivity
	case FailureService:
		return ErrService
	default:
		return ErrInvalidSource
	}
}

// Result is the resolved outcome of a submission. Submit never returns an
// error value; failures resolve to a Result with Status error.
type Result struct {
	Status           Status   `json:"status"`
	DetailedAnalysis *string  `json:"detailed_analysis,omitempty"`
	Prediction       string   `json:"prediction,omitempty"`
	Failure          *Failure `json:"failure,omitempty"`
}

// Succeeded reports whether the service returned a success status.
func (r Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Narrative returns the detailed analysis and whether it was present.
func (r Result) Narrative() (string, bool) {
	if r.DetailedAnalysis == nil {
		return "", false
	}
	return *r.DetailedAnalysis, true
}

// Err returns the failure as an error, or nil on success.
func (r Result) Err() error {
	if r.Failure == nil {
		return nil
	}
	return r.Failure
}

// ErrorMessage returns the user-facing failure text, or "".
func (r Result) ErrorMessage() string {
	if r.Failure == nil {
		return ""
	}
	return r.Failure.Error()
}

func failed(f *Failure) Result {
	return Result{Status: StatusError, Failure: f}
}

// MapHTTPStatus maps prediction errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrConnectivity):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrService):
		return http.StatusBadGateway
	case errors.Is(err, ErrInvalidSource):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
