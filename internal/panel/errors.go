package panel

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
)

// ErrUnknownField indicates a field name outside the registry.
var ErrUnknownField = errors.New("unknown panel field")

// Reason identifies why a raw value was rejected.
type Reason string

const (
	ReasonOutOfRange Reason = "out_of_range"
	ReasonInvalidSex Reason = "invalid_sex"
	ReasonNotNumeric Reason = "not_numeric"
	ReasonNotInteger Reason = "not_integer"
	ReasonMissing    Reason = "missing"
)

// ValidationError carries the rejected field and, for numeric fields, the
// bounds the value must satisfy. The caller is expected to clear the field.
type ValidationError struct {
	Field  Field   `json:"field"`
	Reason Reason  `json:"reason"`
	Value  string  `json:"value"`
	Min    float64 `json:"min,omitempty"`
	Max    float64 `json:"max,omitempty"`
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonInvalidSex:
		return "Please enter only M or F for Sex"
	case ReasonMissing:
		return fmt.Sprintf("%s is required", e.Field)
	case ReasonNotInteger:
		return fmt.Sprintf(
			"Please enter a whole number between %s and %s for %s",
			formatBound(e.Min), formatBound(e.Max), e.Field,
		)
	default:
		return fmt.Sprintf(
			"Please enter a value between %s and %s for %s",
			formatBound(e.Min), formatBound(e.Max), e.Field,
		)
	}
}

// MapHTTPStatus maps panel errors to HTTP status codes.
func MapHTTPStatus(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusUnprocessableEntity
	}
	if errors.Is(err, ErrUnknownField) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
