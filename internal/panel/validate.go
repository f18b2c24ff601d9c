package panel

import (
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// decimal admits plain decimal and exponent notation only. strconv also
// accepts hex floats, underscores and Inf, which the inference service cannot
// parse.
var decimal = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)

// Reading is an accepted field value. Text is the normalized form that is
// stored on the panel and sent to the service; Number is zero for Sex.
type Reading struct {
	Field  Field
	Text   string
	Number float64
}

// Validate checks raw against the registry entry for f. Empty input is
// rejected with ReasonMissing; blur handling skips empty values before
// calling Validate.
func Validate(f Field, raw string) (Reading, error) {
	spec, ok := Lookup(f)
	if !ok {
		return Reading{}, ErrUnknownField
	}

	text := strings.TrimSpace(raw)
	if text == "" {
		return Reading{}, &ValidationError{Field: f, Reason: ReasonMissing, Value: raw}
	}

	if spec.Kind == Categorical {
		return validateSex(f, text)
	}

	if !decimal.MatchString(text) {
		return Reading{}, rejection(spec, ReasonNotNumeric, raw)
	}

	n, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return Reading{}, rejection(spec, ReasonNotNumeric, raw)
	}

	if spec.Kind == Integer && n != math.Trunc(n) {
		return Reading{}, rejection(spec, ReasonNotInteger, raw)
	}

	if n < spec.Min || n > spec.Max {
		return Reading{}, rejection(spec, ReasonOutOfRange, raw)
	}

	return Reading{Field: f, Text: text, Number: n}, nil
}

// NormalizeSex uppercases a sex code as it is typed.
func NormalizeSex(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func validateSex(f Field, text string) (Reading, error) {
	code := NormalizeSex(text)
	if !slices.Contains(SexCodes, code) {
		return Reading{}, &ValidationError{Field: f, Reason: ReasonInvalidSex, Value: text}
	}
	return Reading{Field: f, Text: code}, nil
}

func rejection(spec Spec, reason Reason, raw string) *ValidationError {
	return &ValidationError{
		Field:  spec.Field,
		Reason: reason,
		Value:  raw,
		Min:    spec.Min,
		Max:    spec.Max,
	}
}
