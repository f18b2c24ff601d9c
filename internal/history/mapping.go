package history

import (
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/pkg/query"
	"github.com/JaimeStill/docassist/pkg/repository"
)

var projection = query.
	NewProjectionMap("public", "analyses", "a").
	Project("id", "ID").
	Project("session_id", "SessionID").
	Project("generation", "Generation").
	Project("mode", "Mode").
	Project("source_filename", "SourceFilename").
	Project("panel", "Panel").
	Project("prediction", "Prediction").
	Project("narrative", "Narrative").
	Project("report_key", "ReportKey").
	Project("report_size", "ReportSize").
	Project("page_count", "PageCount").
	Project("created_at", "CreatedAt")

var defaultSort = query.SortField{
	Field:      "CreatedAt",
	Descending: true,
}

// Filters contains optional filtering criteria for history queries.
// Nil fields are ignored. Since is inclusive and Until exclusive.
type Filters struct {
	Mode       *string    `json:"mode,omitempty"`
	Prediction *string    `json:"prediction,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
}

// Apply adds filter conditions to a query builder.
func (f Filters) Apply(b *query.Builder) *query.Builder {
	return b.
		WhereEquals("Mode", f.Mode).
		WhereEquals("Prediction", f.Prediction).
		WhereAtLeast("CreatedAt", f.Since).
		WhereBefore("CreatedAt", f.Until)
}

// FiltersFromQuery extracts filter values from URL query parameters.
// Timestamps use RFC 3339; unparsable values are rejected.
func FiltersFromQuery(values url.Values) (Filters, error) {
	var f Filters

	if m := values.Get("mode"); m != "" {
		f.Mode = &m
	}
	if p := values.Get("prediction"); p != "" {
		f.Prediction = &p
	}

	for _, bound := range []struct {
		key string
		dst **time.Time
	}{
		{"since", &f.Since},
		{"until", &f.Until},
	} {
		raw := values.Get(bound.key)
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return Filters{}, fmt.Errorf("%w: %s must be RFC 3339", ErrInvalidFilter, bound.key)
		}
		*bound.dst = &t
	}

	return f, nil
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e        Entry
		panelRaw []byte
	)
	err := s.Scan(
		&e.ID,
		&e.SessionID,
		&e.Generation,
		&e.Mode,
		&e.SourceFilename,
		&panelRaw,
		&e.Prediction,
		&e.Narrative,
		&e.ReportKey,
		&e.ReportSize,
		&e.PageCount,
		&e.CreatedAt,
	)
	if err != nil {
		return e, err
	}

	if len(panelRaw) > 0 {
		var p panel.BloodPanel
		if err := json.Unmarshal(panelRaw, &p); err != nil {
			return e, fmt.Errorf("decode panel: %w", err)
		}
		e.Panel = &p
	}
	return e, nil
}
