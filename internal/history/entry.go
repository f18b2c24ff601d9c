// Package history archives completed analyses. Each entry is a Postgres row
// describing the submission and its result, paired with the exported report
// PDF held in blob storage.
package history

import (
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/export"
	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/pkg/typewriter"
)

// Entry is one archived analysis.
type Entry struct {
	ID             uuid.UUID         `json:"id"`
	SessionID      uuid.UUID         `json:"session_id"`
	Generation     int64             `json:"generation"`
	Mode           string            `json:"mode"`
	SourceFilename *string           `json:"source_filename,omitempty"`
	Panel          *panel.BloodPanel `json:"panel,omitempty"`
	Prediction     string            `json:"prediction,omitempty"`
	Narrative      string            `json:"narrative"`
	ReportKey      string            `json:"report_key"`
	ReportSize     int64             `json:"report_size"`
	PageCount      int               `json:"page_count"`
	CreatedAt      time.Time         `json:"created_at"`
}

// RecordCommand carries a completed analysis to archive.
type RecordCommand struct {
	SessionID  uuid.UUID
	Generation typewriter.Token
	Source     acquisition.Source
	Prediction string
	Narrative  string
	Report     *export.Document
}
