package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/export"
	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/internal/prediction"
	"github.com/JaimeStill/docassist/internal/session"
	"github.com/JaimeStill/docassist/pkg/typewriter/typewritertest"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// scriptedClient returns queued results in order, repeating the last one.
// When gate is set each call waits for a value on it.
type scriptedClient struct {
	mu      sync.Mutex
	results []prediction.Result
	sources []acquisition.Source
	gate    chan struct{}
}

func (c *scriptedClient) Submit(ctx context.Context, src acquisition.Source) prediction.Result {
	if c.gate != nil {
		select {
		case <-c.gate:
		case <-ctx.Done():
			return prediction.Result{
				Status:  prediction.StatusError,
				Failure: &prediction.Failure{Kind: prediction.FailureConnectivity, Message: "cancelled"},
			}
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.sources = append(c.sources, src)
	r := c.results[0]
	if len(c.results) > 1 {
		c.results = c.results[1:]
	}
	return r
}

type recordingExporter struct {
	mu    sync.Mutex
	texts []string
}

func (e *recordingExporter) Export(text string) (*export.Document, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if text == "" {
		return nil, export.ErrEmptyNarrative
	}
	e.texts = append(e.texts, text)
	return &export.Document{Filename: export.Filename, Data: []byte("%PDF"), Pages: 1}, nil
}

func newController(client prediction.Client, opts ...session.Option) (*session.Controller, *typewritertest.Scheduler) {
	clock := typewritertest.New()
	opts = append([]session.Option{session.WithScheduler(clock)}, opts...)
	return session.New(uuid.New(), client, &recordingExporter{}, discard(), opts...), clock
}

func scenarioPanel() map[panel.Field]string {
	return map[panel.Field]string{
		panel.Hematocrit: "35.1", panel.Hemoglobin: "14.5", panel.Erythrocyte: "4.5",
		panel.Leucocyte: "10.5", panel.Thrombocyte: "250", panel.Mch: "32.5",
		panel.Mchc: "36.5", panel.Mcv: "80", panel.Age: "30", panel.Sex: "M",
	}
}

func enterPanel(t *testing.T, c *session.Controller, values map[panel.Field]string) {
	t.Helper()
	for _, f := range panel.Fields() {
		v, ok := values[f]
		if !ok {
			continue
		}
		if err := c.Edit(f, v); err != nil {
			t.Fatalf("edit %s: %v", f, err)
		}
		if err := c.Blur(f); err != nil {
			t.Fatalf("blur %s: %v", f, err)
		}
	}
}

func waitFor(t *testing.T, c *session.Controller, phase session.Phase) session.Snapshot {
	t.Helper()
	ch, cancel := c.Subscribe()
	defer cancel()

	timeout := time.After(2 * time.Second)
	for {
		select {
		case s, ok := <-ch:
			if !ok {
				t.Fatalf("subscription closed waiting for %s", phase)
			}
			if s.Phase == phase {
				return s
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, at %s", phase, c.Snapshot().Phase)
		}
	}
}

func TestScenarioManualSuccess(t *testing.T) {
	var received map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/predict_manual" {
			http.NotFound(w, r)
			return
		}
		received = map[string]string{}
		json.NewDecoder(r.Body).Decode(&received)
		io.WriteString(w, `{"status":"success","detailed_analysis":"Normal panel."}`)
	}))
	defer srv.Close()

	cfg := &prediction.Config{BaseURL: srv.URL}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	c, clock := newController(prediction.New(cfg, discard()))

	if err := c.SelectMode(acquisition.ModeManual); err != nil {
		t.Fatal(err)
	}
	enterPanel(t, c, scenarioPanel())

	if !c.Snapshot().CanSubmit {
		t.Fatal("complete valid panel should be submittable")
	}

	snap, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if snap.Phase != session.PhaseStreaming {
		t.Fatalf("phase after response: %s", snap.Phase)
	}
	if received["Hemoglobin"] != "14.5" || received["Sex"] != "M" {
		t.Errorf("request body: %v", received)
	}

	ticks := clock.RunAll(0)
	if ticks != len("Normal panel.") {
		t.Errorf("ticks: %d", ticks)
	}

	final := c.Snapshot()
	if final.Phase != session.PhaseComplete {
		t.Fatalf("phase: %s", final.Phase)
	}
	if final.Revealed != "Normal panel." {
		t.Errorf("revealed: %q", final.Revealed)
	}
	if !final.CanExport {
		t.Error("export should be offered once complete")
	}
}

func TestScenarioOutOfRangeClearsField(t *testing.T) {
	client := &scriptedClient{results: []prediction.Result{success(ptr("unused"))}}
	c, _ := newController(client)
	c.SelectMode(acquisition.ModeManual)

	values := scenarioPanel()
	delete(values, panel.Hemoglobin)
	enterPanel(t, c, values)

	c.Edit(panel.Hemoglobin, "2.0")
	err := c.Blur(panel.Hemoglobin)

	var ve *panel.ValidationError
	if !errors.As(err, &ve) || ve.Min != 3.80 {
		t.Fatalf("blur: %v", err)
	}

	snap := c.Snapshot()
	if snap.Panel.Hemoglobin != "" {
		t.Errorf("hemoglobin should be cleared, got %q", snap.Panel.Hemoglobin)
	}
	if snap.CanSubmit || snap.AllFieldsFilled {
		t.Error("submission must stay disabled until corrected")
	}
	if !strings.Contains(snap.Notice, "3.80") {
		t.Errorf("notice should carry the bound: %q", snap.Notice)
	}

	if _, err := c.Submit(context.Background()); !errors.Is(err, session.ErrNotReady) {
		t.Errorf("submit: %v", err)
	}
	if len(client.sources) != 0 {
		t.Error("invalid input must never reach the service")
	}

	enterPanel(t, c, map[panel.Field]string{panel.Hemoglobin: "14.5"})
	if !c.Snapshot().CanSubmit {
		t.Error("corrected panel should be submittable")
	}
}

func TestScenarioUploadServiceError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"error":"model unavailable"}`)
	}))
	defer srv.Close()

	cfg := &prediction.Config{BaseURL: srv.URL}
	cfg.Finalize(nil)
	c, _ := newController(prediction.New(cfg, discard()))

	c.SelectMode(acquisition.ModeUpload)
	if _, err := c.Submit(context.Background()); !errors.Is(err, session.ErrNotReady) {
		t.Fatalf("submit without file: %v", err)
	}

	if err := c.Attach("report.pdf", []byte("%PDF-1.7\n")); err != nil {
		t.Fatal(err)
	}

	snap, err := c.Submit(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.Phase != session.PhaseFailed {
		t.Fatalf("phase: %s", snap.Phase)
	}
	if snap.Error != "model unavailable" {
		t.Errorf("error: %q", snap.Error)
	}
	if !snap.CanSubmit {
		t.Error("submit should be re-enabled after failure")
	}
	if snap.Document == nil || snap.Document.Filename != "report.pdf" {
		t.Error("document should remain attached for retry")
	}
}

func TestConnectivityFailureHint(t *testing.T) {
	client := &scriptedClient{results: []prediction.Result{{
		Status: prediction.StatusError,
		Failure: &prediction.Failure{
			Kind:    prediction.FailureConnectivity,
			Message: "Server connection error",
			Hint:    "Please make sure the backend service is reachable at http://localhost:5000",
		},
	}}}
	c, _ := newController(client)
	c.SelectMode(acquisition.ModeUpload)
	c.Attach("report.pdf", []byte("%PDF"))

	snap, _ := c.Submit(context.Background())
	if snap.Phase != session.PhaseFailed {
		t.Fatalf("phase: %s", snap.Phase)
	}
	if !strings.Contains(snap.Error, "reachable") || snap.Failure.Kind != prediction.FailureConnectivity {
		t.Errorf("failure: %q %+v", snap.Error, snap.Failure)
	}
}

func TestResubmitSupersedesReveal(t *testing.T) {
	first := "The first narrative is fairly long."
	second := "Second."
	client := &scriptedClient{results: []prediction.Result{success(ptr(first)), success(ptr(second))}}
	c, clock := newController(client)

	c.SelectMode(acquisition.ModeManual)
	enterPanel(t, c, scenarioPanel())

	c.Submit(context.Background())
	for range 5 {
		clock.Step()
	}
	if got := c.Snapshot().Revealed; got != first[:5] {
		t.Fatalf("revealed before resubmit: %q", got)
	}

	ch, cancel := c.Subscribe()
	defer cancel()
	<-ch

	var seen []session.Snapshot
	collect := func() {
		for {
			select {
			case s := <-ch:
				seen = append(seen, s)
			default:
				return
			}
		}
	}

	snap, err := c.Submit(context.Background())
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if snap.Revealed != "" || snap.Generation != 2 {
		t.Fatalf("display buffer should restart empty: %+v", snap)
	}
	if clock.Pending() != 1 {
		t.Fatalf("only the new reveal should be armed, pending %d", clock.Pending())
	}

	for clock.Step() {
		collect()
	}
	collect()

	for _, s := range seen {
		if !strings.HasPrefix(second, s.Revealed) {
			t.Errorf("stale or interleaved text after resubmit: %q", s.Revealed)
		}
	}

	final := c.Snapshot()
	if final.Phase != session.PhaseComplete || final.Revealed != second {
		t.Errorf("final: %s %q", final.Phase, final.Revealed)
	}
}

func TestSubmitDisabledWhileSubmitting(t *testing.T) {
	client := &scriptedClient{results: []prediction.Result{success(ptr("ok"))}, gate: make(chan struct{})}
	c, _ := newController(client)
	c.SelectMode(acquisition.ModeManual)
	enterPanel(t, c, scenarioPanel())

	gen, err := c.SubmitAsync(context.Background())
	if err != nil || gen != 1 {
		t.Fatalf("submit async: %d %v", gen, err)
	}

	if c.Snapshot().CanSubmit {
		t.Error("submit should be disabled while submitting")
	}
	if _, err := c.SubmitAsync(context.Background()); !errors.Is(err, session.ErrSubmitInFlight) {
		t.Errorf("second submit: %v", err)
	}

	client.gate <- struct{}{}
	waitFor(t, c, session.PhaseStreaming)
}

func TestResetDiscardsInFlightResult(t *testing.T) {
	client := &scriptedClient{results: []prediction.Result{success(ptr("late"))}, gate: make(chan struct{})}
	c, clock := newController(client)
	c.SelectMode(acquisition.ModeManual)
	enterPanel(t, c, scenarioPanel())

	if _, err := c.SubmitAsync(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := c.Back(); err != nil {
		t.Fatal(err)
	}

	// the abandoned request resolves through its cancelled context
	time.Sleep(20 * time.Millisecond)
	clock.RunAll(0)

	snap := c.Snapshot()
	if snap.Phase != session.PhaseSelectingMode {
		t.Errorf("phase: %s", snap.Phase)
	}
	if snap.Revealed != "" || snap.Mode != acquisition.ModeUnset || snap.Panel != nil {
		t.Errorf("reset should clear everything: %+v", snap)
	}
}

func TestBackSwitchesMode(t *testing.T) {
	c, _ := newController(&scriptedClient{results: []prediction.Result{success(ptr("x"))}})

	c.SelectMode(acquisition.ModeUpload)
	c.Attach("report.pdf", []byte("%PDF"))

	if err := c.SelectMode(acquisition.ModeManual); !errors.Is(err, session.ErrInvalidTransition) {
		t.Fatalf("direct switch: %v", err)
	}

	c.Back()
	if err := c.SelectMode(acquisition.ModeManual); err != nil {
		t.Fatal(err)
	}
	snap := c.Snapshot()
	if snap.Document != nil || snap.Focus != panel.Hematocrit {
		t.Errorf("snapshot after switch: %+v", snap)
	}
}

func TestExportOnlyWhenComplete(t *testing.T) {
	exporter := &recordingExporter{}
	clock := typewritertest.New()
	client := &scriptedClient{results: []prediction.Result{success(nil)}}
	c := session.New(uuid.New(), client, exporter, discard(), session.WithScheduler(clock))

	if _, err := c.Export(); !errors.Is(err, session.ErrExportUnavailable) {
		t.Fatalf("export before submit: %v", err)
	}

	c.SelectMode(acquisition.ModeManual)
	enterPanel(t, c, scenarioPanel())
	c.Submit(context.Background())
	clock.Step()

	if _, err := c.Export(); !errors.Is(err, session.ErrExportUnavailable) {
		t.Fatalf("export while streaming: %v", err)
	}

	clock.RunAll(0)
	doc, err := c.Export()
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc.Filename != "medical-report.pdf" {
		t.Errorf("filename: %q", doc.Filename)
	}
	if len(exporter.texts) != 1 || exporter.texts[0] != session.MissingNarrative {
		t.Errorf("exported text: %q", exporter.texts)
	}
}

func TestCompletionHook(t *testing.T) {
	var got []session.Completion
	client := &scriptedClient{results: []prediction.Result{{Status: prediction.StatusSuccess, DetailedAnalysis: ptr("Done."), Prediction: "No"}}}
	c, clock := newController(client, session.WithCompletion(func(cmp session.Completion) {
		got = append(got, cmp)
	}))

	c.SelectMode(acquisition.ModeManual)
	enterPanel(t, c, scenarioPanel())
	c.Submit(context.Background())
	clock.RunAll(0)

	if len(got) != 1 {
		t.Fatalf("completions: %d", len(got))
	}
	if got[0].Narrative != "Done." || got[0].Result.Prediction != "No" || got[0].SessionID != c.ID() {
		t.Errorf("completion: %+v", got[0])
	}
	if _, ok := got[0].Source.(acquisition.ManualPanel); !ok {
		t.Errorf("source: %T", got[0].Source)
	}
}

func TestCommitThroughController(t *testing.T) {
	c, _ := newController(&scriptedClient{results: []prediction.Result{success(ptr("x"))}})
	c.SelectMode(acquisition.ModeManual)

	c.Edit(panel.Sex, "q")
	next, err := c.Commit(panel.Sex)
	if err != nil || next != panel.Hematocrit {
		t.Errorf("commit on last field should be a no-op: %s %v", next, err)
	}

	c.Edit(panel.Age, "0")
	next, err = c.Commit(panel.Age)
	if err == nil || next != panel.Sex {
		t.Errorf("commit age: %s %v", next, err)
	}
	if c.Snapshot().Notice == "" {
		t.Error("rejection should be noted")
	}
}

func TestClosedController(t *testing.T) {
	c, _ := newController(&scriptedClient{results: []prediction.Result{success(ptr("x"))}})
	ch, _ := c.Subscribe()
	<-ch

	c.Close()
	if _, ok := <-ch; ok {
		t.Error("subscription should be closed")
	}
	if err := c.SelectMode(acquisition.ModeManual); !errors.Is(err, session.ErrClosed) {
		t.Errorf("select after close: %v", err)
	}
}
