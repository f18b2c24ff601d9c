package prediction_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/panel"
	"github.com/JaimeStill/docassist/internal/prediction"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newClient(t *testing.T, baseURL string) prediction.Client {
	t.Helper()
	cfg := &prediction.Config{BaseURL: baseURL}
	if err := cfg.Finalize(nil); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	return prediction.New(cfg, discard())
}

func samplePanel() panel.BloodPanel {
	return panel.BloodPanel{
		Hematocrit: "35.1", Hemoglobin: "14.5", Erythrocyte: "4.5", Leucocyte: "10.5",
		Thrombocyte: "250", Mch: "32.5", Mchc: "36.5", Mcv: "80", Age: "30", Sex: "M",
	}
}

func TestDocumentSubmission(t *testing.T) {
	var gotPath, gotName, gotFilename string
	var gotData []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		for name, files := range r.MultipartForm.File {
			gotName = name
			gotFilename = files[0].Filename
			f, _ := files[0].Open()
			gotData, _ = io.ReadAll(f)
			f.Close()
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"status":"success","prediction":"No","detailed_analysis":"All clear."}`)
	}))
	defer srv.Close()

	doc := acquisition.Document{Filename: "panel.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.7")}
	res := newClient(t, srv.URL).Submit(context.Background(), doc)

	if gotPath != "/predict" {
		t.Errorf("path: %q", gotPath)
	}
	if gotName != prediction.DocumentPart || gotFilename != "panel.pdf" {
		t.Errorf("part: name %q filename %q", gotName, gotFilename)
	}
	if string(gotData) != "%PDF-1.7" {
		t.Errorf("payload: %q", gotData)
	}

	if !res.Succeeded() {
		t.Fatalf("result: %+v", res)
	}
	if text, ok := res.Narrative(); !ok || text != "All clear." {
		t.Errorf("narrative: %q, %v", text, ok)
	}
	if res.Prediction != "No" {
		t.Errorf("prediction: %q", res.Prediction)
	}
}

func TestManualSubmission(t *testing.T) {
	var body map[string]any
	var contentType, path string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"status":"success","detailed_analysis":"Normal panel."}`)
	}))
	defer srv.Close()

	res := newClient(t, srv.URL).Submit(context.Background(), acquisition.ManualPanel{Panel: samplePanel()})

	if path != "/predict_manual" || contentType != "application/json" {
		t.Errorf("request: path %q content type %q", path, contentType)
	}

	var keys []string
	for k, v := range body {
		keys = append(keys, k)
		if _, ok := v.(string); !ok {
			t.Errorf("%s should be sent as a string, got %T", k, v)
		}
	}
	slices.Sort(keys)

	var want []string
	for _, f := range panel.Fields() {
		want = append(want, string(f))
	}
	slices.Sort(want)

	if !slices.Equal(keys, want) {
		t.Errorf("keys: got %v, want %v", keys, want)
	}
	if body["Thrombocyte"] != "250" {
		t.Errorf("Thrombocyte: %v", body["Thrombocyte"])
	}

	if text, _ := res.Narrative(); text != "Normal panel." {
		t.Errorf("narrative: %q", text)
	}
}

func TestServiceFailures(t *testing.T) {
	tests := []struct {
		name     string
		code     int
		body     string
		wantMsg  string
		wantCode int
	}{
		{"error payload", http.StatusInternalServerError, `{"error":"model unavailable"}`, "model unavailable", 500},
		{"html body", http.StatusBadGateway, `<html>Bad Gateway</html>`, prediction.GenericServiceMessage, 502},
		{"empty error", http.StatusBadRequest, `{}`, prediction.GenericServiceMessage, 400},
		{"status error on 200", http.StatusOK, `{"status":"error","error":"Feature extraction failed: no text"}`, "Feature extraction failed: no text", 200},
		{"undecodable 200", http.StatusOK, `not json`, prediction.GenericServiceMessage, 200},
		{"fenced 200", http.StatusOK, "```json\n{\"status\":\"success\",\"detailed_analysis\":\"x\"}\n```", prediction.GenericServiceMessage, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			res := newClient(t, srv.URL).Submit(context.Background(), acquisition.ManualPanel{Panel: samplePanel()})

			if res.Succeeded() {
				t.Fatal("expected failure")
			}
			if !errors.Is(res.Err(), prediction.ErrService) {
				t.Errorf("error kind: %v", res.Err())
			}
			if res.ErrorMessage() != tt.wantMsg {
				t.Errorf("message: got %q, want %q", res.ErrorMessage(), tt.wantMsg)
			}
			if res.Failure.StatusCode != tt.wantCode {
				t.Errorf("status code: %d", res.Failure.StatusCode)
			}
		})
	}
}

func TestMissingNarrative(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"success"}`)
	}))
	defer srv.Close()

	res := newClient(t, srv.URL).Submit(context.Background(), acquisition.ManualPanel{Panel: samplePanel()})
	if !res.Succeeded() {
		t.Fatalf("result: %+v", res)
	}
	if _, ok := res.Narrative(); ok {
		t.Error("narrative should be absent")
	}
}

func TestConnectivityFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	res := newClient(t, url).Submit(context.Background(), acquisition.ManualPanel{Panel: samplePanel()})

	if !errors.Is(res.Err(), prediction.ErrConnectivity) {
		t.Fatalf("error: %v", res.Err())
	}
	if errors.Is(res.Err(), prediction.ErrService) {
		t.Error("connectivity failure must be distinct from service failure")
	}
	if !strings.Contains(res.Failure.Hint, url) {
		t.Errorf("hint should name the service: %q", res.Failure.Hint)
	}
	if prediction.MapHTTPStatus(res.Err()) != http.StatusServiceUnavailable {
		t.Errorf("status mapping: %d", prediction.MapHTTPStatus(res.Err()))
	}
}

func TestSingleAttempt(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	newClient(t, srv.URL).Submit(context.Background(), acquisition.ManualPanel{Panel: samplePanel()})
	if calls != 1 {
		t.Errorf("requests: %d, want 1", calls)
	}
}

func TestInvalidSource(t *testing.T) {
	c := newClient(t, "http://localhost:1")

	res := c.Submit(context.Background(), nil)
	if !errors.Is(res.Err(), prediction.ErrInvalidSource) {
		t.Errorf("nil source: %v", res.Err())
	}

	res = c.Submit(context.Background(), acquisition.Document{Filename: "empty.pdf"})
	if !errors.Is(res.Err(), prediction.ErrInvalidSource) {
		t.Errorf("empty document: %v", res.Err())
	}
}

func TestConfigFinalize(t *testing.T) {
	t.Setenv("TEST_PREDICTION_BASE_URL", "https://inference.example.com/")

	cfg := &prediction.Config{}
	err := cfg.Finalize(&prediction.Env{BaseURL: "TEST_PREDICTION_BASE_URL"})
	if err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if got := cfg.Endpoint(cfg.ManualPath); got != "https://inference.example.com/predict_manual" {
		t.Errorf("endpoint: %q", got)
	}

	bad := &prediction.Config{BaseURL: "ftp://host"}
	if err := bad.Finalize(nil); err == nil {
		t.Error("expected scheme validation error")
	}
}
