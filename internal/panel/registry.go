// Package panel defines the ten-field blood panel, the registry of clinical
// reference bounds for each field, and the validation applied when a field
// loses focus during manual entry.
package panel

import (
	"fmt"
	"strings"
)

// Field names one observed blood-panel value. The string form is the exact
// key used on the wire by the manual-analysis endpoint.
type Field string

const (
	Hematocrit  Field = "Hematocrit"
	Hemoglobin  Field = "Hemoglobin"
	Erythrocyte Field = "Erythrocyte"
	Leucocyte   Field = "Leucocyte"
	Thrombocyte Field = "Thrombocyte"
	Mch         Field = "Mch"
	Mchc        Field = "Mchc"
	Mcv         Field = "Mcv"
	Age         Field = "Age"
	Sex         Field = "Sex"
)

// Kind classifies how a field's raw value is interpreted.
type Kind int

const (
	Decimal Kind = iota
	Integer
	Categorical
)

func (k Kind) String() string {
	switch k {
	case Decimal:
		return "decimal"
	case Integer:
		return "integer"
	case Categorical:
		return "categorical"
	default:
		return "unknown"
	}
}

// Spec is a single registry entry. Min and Max are inclusive and are zero
// for categorical fields.
type Spec struct {
	Field Field
	Kind  Kind
	Min   float64
	Max   float64
}

// Numeric reports whether the field carries a bounded number.
func (s Spec) Numeric() bool {
	return s.Kind != Categorical
}

// registry is declared in entry order; Fields and focus advancement depend on it.
var registry = []Spec{
	{Field: Hematocrit, Kind: Decimal, Min: 13.70, Max: 69.00},
	{Field: Hemoglobin, Kind: Decimal, Min: 3.80, Max: 18.90},
	{Field: Erythrocyte, Kind: Decimal, Min: 1.48, Max: 7.86},
	{Field: Leucocyte, Kind: Decimal, Min: 1.10, Max: 76.60},
	{Field: Thrombocyte, Kind: Decimal, Min: 8.00, Max: 1183.00},
	{Field: Mch, Kind: Decimal, Min: 14.90, Max: 40.80},
	{Field: Mchc, Kind: Decimal, Min: 26.00, Max: 39.00},
	{Field: Mcv, Kind: Decimal, Min: 54.00, Max: 115.60},
	{Field: Age, Kind: Integer, Min: 1, Max: 99},
	{Field: Sex, Kind: Categorical},
}

// SexCodes lists the accepted categorical values for Sex, stored uppercase.
var SexCodes = []string{"M", "F"}

// Fields returns every field in declared entry order.
func Fields() []Field {
	fields := make([]Field, len(registry))
	for i, s := range registry {
		fields[i] = s.Field
	}
	return fields
}

// Specs returns a copy of the registry in declared order.
func Specs() []Spec {
	return append([]Spec(nil), registry...)
}

// Lookup returns the registry entry for f.
func Lookup(f Field) (Spec, bool) {
	for _, s := range registry {
		if s.Field == f {
			return s, true
		}
	}
	return Spec{}, false
}

// Bounds returns the inclusive range for a numeric field. ok is false for
// Sex and for unknown fields.
func Bounds(f Field) (min, max float64, ok bool) {
	s, found := Lookup(f)
	if !found || !s.Numeric() {
		return 0, 0, false
	}
	return s.Min, s.Max, true
}

// Index returns the field's position in entry order, or -1.
func Index(f Field) int {
	for i, s := range registry {
		if s.Field == f {
			return i
		}
	}
	return -1
}

// Next returns the field that follows f in entry order. The last field
// returns itself.
func Next(f Field) Field {
	i := Index(f)
	if i < 0 || i == len(registry)-1 {
		return f
	}
	return registry[i+1].Field
}

// ParseField resolves a field name case-insensitively.
func ParseField(name string) (Field, error) {
	for _, s := range registry {
		if strings.EqualFold(string(s.Field), strings.TrimSpace(name)) {
			return s.Field, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}
