package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/pkg/handlers"
	"github.com/JaimeStill/docassist/pkg/middleware"
	"github.com/JaimeStill/docassist/pkg/routes"
)

// multipartOverhead is the allowance for form boundaries and headers on top
// of the document itself.
const multipartOverhead = 64 * 1024

// HeartbeatInterval is the idle period after which a stream writes a comment
// line to keep intermediaries from closing the connection.
var HeartbeatInterval = 15 * time.Second

var (
	ErrInvalidID   = errors.New("invalid session id")
	ErrMissingFile = errors.New("multipart field \"file\" is required")
)

type modeRequest struct {
	Mode string `json:"mode" validate:"required,oneof=upload manual"`
}

type fieldRequest struct {
	Value string `json:"value" validate:"max=32"`
}

type commitResponse struct {
	Next    panel.Field `json:"next"`
	Session Snapshot    `json:"session"`
}

type submitResponse struct {
	Generation uint64 `json:"generation"`
}

// Handler exposes live sessions over HTTP.
type Handler struct {
	registry      *Registry
	logger        *slog.Logger
	maxUploadSize int64
}

// Handler returns the HTTP handler for the registry's sessions.
func (r *Registry) Handler(maxUploadSize int64) *Handler {
	return NewHandler(r, r.logger, maxUploadSize)
}

// NewHandler creates a Handler over registry. Document uploads larger than
// maxUploadSize are rejected before they are buffered.
func NewHandler(registry *Registry, logger *slog.Logger, maxUploadSize int64) *Handler {
	return &Handler{
		registry:      registry,
		logger:        logger.With("handler", "sessions"),
		maxUploadSize: maxUploadSize,
	}
}

// Routes returns the route group definition for session endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/sessions",
		Routes: []routes.Route{
			{Method: "POST", Pattern: "", Handler: h.Create},
			{Method: "GET", Pattern: "/{id}", Handler: h.Get},
			{Method: "DELETE", Pattern: "/{id}", Handler: h.Delete},
			{Method: "PUT", Pattern: "/{id}/mode", Handler: h.SelectMode},
			{Method: "POST", Pattern: "/{id}/back", Handler: h.Back},
			{Method: "PUT", Pattern: "/{id}/fields/{field}", Handler: h.Edit},
			{Method: "POST", Pattern: "/{id}/fields/{field}/blur", Handler: h.Blur},
			{Method: "POST", Pattern: "/{id}/fields/{field}/focus", Handler: h.Focus},
			{Method: "POST", Pattern: "/{id}/fields/{field}/commit", Handler: h.Commit},
			{Method: "POST", Pattern: "/{id}/submit", Handler: h.Submit},
			{Method: "GET", Pattern: "/{id}/stream", Handler: h.Stream},
			{Method: "GET", Pattern: "/{id}/report", Handler: h.Report},
		},
		Children: []routes.Group{
			{
				Prefix:     "/{id}/document",
				Middleware: []routes.Middleware{middleware.MaxBytes(h.maxUploadSize + multipartOverhead)},
				Routes: []routes.Route{
					{Method: "POST", Pattern: "", Handler: h.Attach},
				},
			},
		},
	}
}

// Create starts a new session in PhaseSelectingMode.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	c, err := h.registry.Create()
	if err != nil {
		h.fail(w, err)
		return
	}
	attrs := []any{"session", c.ID()}
	if sub, ok := middleware.Subject(r.Context()); ok {
		attrs = append(attrs, "subject", sub)
	}
	h.logger.Info("session created", attrs...)
	handlers.RespondJSON(w, http.StatusCreated, c.Snapshot())
}

// Get returns the current snapshot of a session.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	handlers.RespondJSON(w, http.StatusOK, c.Snapshot())
}

// Delete closes a session.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return
	}
	if err := h.registry.Delete(id); err != nil {
		h.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectMode chooses upload or manual acquisition.
func (h *Handler) SelectMode(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	req, err := handlers.Bind[modeRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, handlers.MapHTTPStatus(err), err)
		return
	}

	mode, err := acquisition.ParseMode(req.Mode)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.respond(w, c, c.SelectMode(mode))
}

// Back resets the session to mode selection.
func (h *Handler) Back(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	h.respond(w, c, c.Back())
}

// Attach stores the uploaded document from the multipart "file" field.
func (h *Handler) Attach(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	if r.ContentLength > h.maxUploadSize+multipartOverhead {
		h.fail(w, acquisition.ErrDocumentTooLarge)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			h.fail(w, acquisition.ErrDocumentTooLarge)
			return
		}
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrMissingFile)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.fail(w, fmt.Errorf("read upload: %w", err))
		return
	}

	h.respond(w, c, c.Attach(header.Filename, data))
}

// Edit replaces the raw value of a panel field.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.field(w, r)
	if !ok {
		return
	}

	req, err := handlers.Bind[fieldRequest](r)
	if err != nil {
		handlers.RespondError(w, h.logger, handlers.MapHTTPStatus(err), err)
		return
	}

	h.respond(w, c, c.Edit(f, req.Value))
}

// Blur validates a field as it loses focus.
func (h *Handler) Blur(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.field(w, r)
	if !ok {
		return
	}
	h.respond(w, c, c.Blur(f))
}

// Focus moves focus to a field.
func (h *Handler) Focus(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.field(w, r)
	if !ok {
		return
	}
	h.respond(w, c, c.Focus(f))
}

// Commit validates a field and advances focus to the next one.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	c, f, ok := h.field(w, r)
	if !ok {
		return
	}

	next, err := c.Commit(f)
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, commitResponse{Next: next, Session: c.Snapshot()})
}

// Submit starts an analysis and returns its generation. Progress is observed
// through Stream or Get.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	gen, err := c.SubmitAsync(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusAccepted, submitResponse{Generation: uint64(gen)})
}

// Stream sends session snapshots as server-sent events until the client
// disconnects or the session closes. With ?until=done the stream ends after
// the first Complete or Failed snapshot.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}
	untilDone := r.URL.Query().Get("until") == "done"

	rc := http.NewResponseController(w)
	// Streams outlive the server write timeout.
	if err := rc.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("clear write deadline failed", "error", err)
	}

	snaps, cancel := c.Subscribe()
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		h.logger.Warn("stream flush unsupported", "error", err)
		return
	}

	heartbeat := time.NewTicker(HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": ping\n\n"); err != nil {
				return
			}
		case snap, open := <-snaps:
			if !open {
				writeEvent(w, "closed", map[string]string{"id": c.ID().String()})
				rc.Flush()
				return
			}
			if err := writeEvent(w, "snapshot", snap); err != nil {
				return
			}
			if untilDone && snap.Terminal() {
				rc.Flush()
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// Report renders the completed narrative as a PDF attachment.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	c, ok := h.session(w, r)
	if !ok {
		return
	}

	doc, err := c.Export()
	if err != nil {
		h.fail(w, err)
		return
	}

	w.Header().Set("Content-Type", doc.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(doc.Data)))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(doc.Data); err != nil {
		h.logger.Warn("report write interrupted", "session", c.ID(), "error", err)
	}
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Controller, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, ErrInvalidID)
		return nil, false
	}

	c, err := h.registry.Get(id)
	if err != nil {
		h.fail(w, err)
		return nil, false
	}
	return c, true
}

func (h *Handler) field(w http.ResponseWriter, r *http.Request) (*Controller, panel.Field, bool) {
	c, ok := h.session(w, r)
	if !ok {
		return nil, "", false
	}

	f, err := panel.ParseField(r.PathValue("field"))
	if err != nil {
		h.fail(w, err)
		return nil, "", false
	}
	return c, f, true
}

func (h *Handler) respond(w http.ResponseWriter, c *Controller, err error) {
	if err != nil {
		h.fail(w, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, c.Snapshot())
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
}

func writeEvent(w io.Writer, event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
	return err
}
