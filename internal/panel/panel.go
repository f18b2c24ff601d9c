package panel

import "errors"

// BloodPanel holds the ten manually entered values as the strings the user
// typed. Numeric parsing happens server-side; the JSON form carries exactly
// the ten field names as keys.
type BloodPanel struct {
	Hematocrit  string `json:"Hematocrit"`
	Hemoglobin  string `json:"Hemoglobin"`
	Erythrocyte string `json:"Erythrocyte"`
	Leucocyte   string `json:"Leucocyte"`
	Thrombocyte string `json:"Thrombocyte"`
	Mch         string `json:"Mch"`
	Mchc        string `json:"Mchc"`
	Mcv         string `json:"Mcv"`
	Age         string `json:"Age"`
	Sex         string `json:"Sex"`
}

// Get returns the raw value of f, or "" for an unknown field.
func (p *BloodPanel) Get(f Field) string {
	if ptr := p.slot(f); ptr != nil {
		return *ptr
	}
	return ""
}

// Set stores raw as the value of f.
func (p *BloodPanel) Set(f Field, raw string) error {
	ptr := p.slot(f)
	if ptr == nil {
		return ErrUnknownField
	}
	*ptr = raw
	return nil
}

// Clear empties f.
func (p *BloodPanel) Clear(f Field) {
	if ptr := p.slot(f); ptr != nil {
		*ptr = ""
	}
}

// Filled reports whether none of the ten fields is empty, regardless of
// whether the values are valid.
func (p *BloodPanel) Filled() bool {
	for _, f := range Fields() {
		if p.Get(f) == "" {
			return false
		}
	}
	return true
}

// Missing returns the empty fields in entry order.
func (p *BloodPanel) Missing() []Field {
	var missing []Field
	for _, f := range Fields() {
		if p.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// Validate checks every field against the registry and joins the failures.
func (p *BloodPanel) Validate() error {
	var errs []error
	for _, f := range Fields() {
		if _, err := Validate(f, p.Get(f)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Values returns the panel as a field-keyed map.
func (p *BloodPanel) Values() map[Field]string {
	values := make(map[Field]string, len(registry))
	for _, f := range Fields() {
		values[f] = p.Get(f)
	}
	return values
}

func (p *BloodPanel) slot(f Field) *string {
	switch f {
	case Hematocrit:
		return &p.Hematocrit
	case Hemoglobin:
		return &p.Hemoglobin
	case Erythrocyte:
		return &p.Erythrocyte
	case Leucocyte:
		return &p.Leucocyte
	case Thrombocyte:
		return &p.Thrombocyte
	case Mch:
		return &p.Mch
	case Mchc:
		return &p.Mchc
	case Mcv:
		return &p.Mcv
	case Age:
		return &p.Age
	case Sex:
		return &p.Sex
	default:
		return nil
	}
}
