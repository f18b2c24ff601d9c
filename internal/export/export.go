// Package export renders a revealed narrative into a downloadable PDF report.
package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

const (
	// Filename is the name offered for every exported report.
	Filename    = "medical-report.pdf"
	ContentType = "application/pdf"
)

var (
	ErrEmptyNarrative = errors.New("narrative is empty, nothing to export")
	ErrRender         = errors.New("report rendering failed")

	// ErrUnsupportedCharacters is returned when the narrative contains
	// characters the report font cannot encode.
	ErrUnsupportedCharacters = errors.New("narrative contains characters the report font cannot render")
)

var configDir sync.Once

// Document is a rendered report.
type Document struct {
	Filename    string
	ContentType string
	Data        []byte
	Pages       int
	GeneratedAt time.Time
}

// Exporter lays out and renders reports. It holds no per-report state and is
// safe for concurrent use.
type Exporter struct {
	cfg    *Config
	now    func() time.Time
	logger *slog.Logger
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock overrides the source of the generation date.
func WithClock(now func() time.Time) Option {
	return func(e *Exporter) {
		e.now = now
	}
}

// New creates an Exporter from a finalized Config.
func New(cfg *Config, logger *slog.Logger, opts ...Option) *Exporter {
	configDir.Do(api.DisableConfigDir)

	e := &Exporter{
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With("system", "export"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Export renders text as a PDF dated now. Empty text yields
// ErrEmptyNarrative and text the font cannot encode yields
// ErrUnsupportedCharacters; neither produces a document.
func (e *Exporter) Export(text string) (*Document, error) {
	generated := e.now()

	pages, err := e.Layout(text, generated)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := e.render(pages, &buf); err != nil {
		return nil, err
	}

	e.logger.Info("report exported", "pages", len(pages), "size", buf.Len())

	return &Document{
		Filename:    Filename,
		ContentType: ContentType,
		Data:        buf.Bytes(),
		Pages:       len(pages),
		GeneratedAt: generated,
	}, nil
}

type pdfFont struct {
	Name string `json:"name"`
	Size int    `json:"size"`
}

type pdfText struct {
	Value string     `json:"value"`
	Pos   [2]float64 `json:"pos"`
	Font  pdfFont    `json:"font"`
}

type pdfContent struct {
	Text []pdfText `json:"text"`
}

type pdfPage struct {
	Content pdfContent `json:"content"`
}

type pdfDescriptor struct {
	Paper string             `json:"paper"`
	Pages map[string]pdfPage `json:"pages"`
}

func (e *Exporter) render(pages []Page, buf *bytes.Buffer) error {
	height := papers[e.cfg.Paper].height

	desc := pdfDescriptor{
		Paper: e.cfg.Paper,
		Pages: make(map[string]pdfPage, len(pages)),
	}
	for _, p := range pages {
		var content pdfContent
		for _, l := range p.Lines {
			if l.Text == "" {
				continue
			}
			content.Text = append(content.Text, pdfText{
				Value: l.Text,
				Pos:   [2]float64{l.X, height - l.Y},
				Font:  pdfFont{Name: e.cfg.Font, Size: l.Size},
			})
		}
		desc.Pages[strconv.Itoa(p.Number)] = pdfPage{Content: content}
	}

	data, err := json.Marshal(desc)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}

	if err := api.Create(nil, bytes.NewReader(data), buf, model.NewDefaultConfiguration()); err != nil {
		return fmt.Errorf("%w: %v", ErrRender, err)
	}
	return nil
}
