package middleware_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/JaimeStill/docassist/pkg/middleware"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestApplyOrder(t *testing.T) {
	var order []string
	step := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}

	mw := middleware.New(step("first"))
	mw.Use(step("second"))

	handler := mw.Apply(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		order = append(order, "handler")
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if strings.Join(order, ",") != "first,second,handler" {
		t.Errorf("order: got %v", order)
	}
}

func TestLoggerRecordsStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	handler := middleware.Logger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("brew"))
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/sessions?x=1", nil))

	out := buf.String()
	for _, want := range []string{"status=418", "bytes=4", "uri=\"/sessions?x=1\""} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s: %s", want, out)
		}
	}
}

func TestLoggerPreservesFlush(t *testing.T) {
	handler := middleware.Logger(discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("data: x\n\n"))
		if err := http.NewResponseController(w).Flush(); err != nil {
			t.Errorf("flush through recorder: %v", err)
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if !rec.Flushed {
		t.Error("underlying writer should be flushed")
	}
}

func TestMaxBytes(t *testing.T) {
	handler := middleware.MaxBytes(4)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, err := io.ReadAll(r.Body)
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
		}
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest("POST", "/", strings.NewReader("too large")))
	if rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", rec.Code)
	}
}

func corsConfig(t *testing.T, cfg middleware.CORSConfig) *middleware.CORSConfig {
	t.Helper()
	if err := cfg.Finalize(nil); err != nil {
		t.Fatal(err)
	}
	return &cfg
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name       string
		cfg        middleware.CORSConfig
		method     string
		origin     string
		wantOrigin string
		wantStatus int
	}{
		{"disabled", middleware.CORSConfig{Origins: []string{"http://app"}}, "GET", "http://app", "", http.StatusOK},
		{"allowed", middleware.CORSConfig{Enabled: true, Origins: []string{"http://app"}}, "GET", "http://app", "http://app", http.StatusOK},
		{"disallowed", middleware.CORSConfig{Enabled: true, Origins: []string{"http://app"}}, "GET", "http://evil", "", http.StatusOK},
		{"preflight", middleware.CORSConfig{Enabled: true, Origins: []string{"http://app"}}, "OPTIONS", "http://app", "http://app", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := middleware.CORS(corsConfig(t, tt.cfg))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(tt.method, "/", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("allow-origin: got %q, want %q", got, tt.wantOrigin)
			}
			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantOrigin != "" && rec.Header().Get("Access-Control-Expose-Headers") != "Content-Disposition" {
				t.Errorf("expose-headers: got %q", rec.Header().Get("Access-Control-Expose-Headers"))
			}
		})
	}
}

func TestCORSEnvOverrides(t *testing.T) {
	t.Setenv("TEST_CORS_ENABLED", "true")
	t.Setenv("TEST_CORS_ORIGINS", "http://a, http://b ,")

	cfg := &middleware.CORSConfig{}
	if err := cfg.Finalize(&middleware.CORSEnv{Enabled: "TEST_CORS_ENABLED", Origins: "TEST_CORS_ORIGINS"}); err != nil {
		t.Fatal(err)
	}
	if !cfg.Enabled {
		t.Error("enabled should be set from env")
	}
	if len(cfg.Origins) != 2 || cfg.Origins[1] != "http://b" {
		t.Errorf("origins: %v", cfg.Origins)
	}
	if cfg.MaxAge != 3600 {
		t.Errorf("max age: %d", cfg.MaxAge)
	}
}

type fakeVerifier struct {
	want string
}

func (f fakeVerifier) Verify(ctx context.Context, raw string) (*oidc.IDToken, error) {
	if raw != f.want {
		return nil, errors.New("signature mismatch")
	}
	return &oidc.IDToken{Subject: "clinician-7"}, nil
}

func TestAuth(t *testing.T) {
	var subject string
	handler := middleware.Auth(fakeVerifier{want: "good"}, discard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject, _ = middleware.Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		method     string
		header     string
		wantStatus int
	}{
		{"no header", "GET", "", http.StatusUnauthorized},
		{"wrong scheme", "GET", "Basic Zm9v", http.StatusUnauthorized},
		{"empty token", "GET", "Bearer ", http.StatusUnauthorized},
		{"rejected token", "GET", "Bearer bad", http.StatusUnauthorized},
		{"valid token", "GET", "Bearer good", http.StatusOK},
		{"case insensitive scheme", "GET", "bearer good", http.StatusOK},
		{"preflight bypass", "OPTIONS", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject = ""
			req := httptest.NewRequest(tt.method, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusUnauthorized && rec.Header().Get("WWW-Authenticate") == "" {
				t.Error("missing WWW-Authenticate challenge")
			}
			if tt.wantStatus == http.StatusOK && tt.method == "GET" && subject != "clinician-7" {
				t.Errorf("subject: got %q", subject)
			}
		})
	}
}

func TestAuthConfigValidation(t *testing.T) {
	tests := []struct {
		name    string
		cfg     middleware.AuthConfig
		wantErr bool
	}{
		{"disabled", middleware.AuthConfig{}, false},
		{"missing issuer", middleware.AuthConfig{Enabled: true, ClientID: "app"}, true},
		{"missing client", middleware.AuthConfig{Enabled: true, Issuer: "https://idp"}, true},
		{"bad jwks", middleware.AuthConfig{Enabled: true, Issuer: "https://idp", ClientID: "app", JWKSURL: "not a url"}, true},
		{"valid", middleware.AuthConfig{Enabled: true, Issuer: "https://idp", ClientID: "app", JWKSURL: "https://idp/keys"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Finalize(nil)
			if (err != nil) != tt.wantErr {
				t.Errorf("error: got %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewVerifierWithJWKS(t *testing.T) {
	cfg := &middleware.AuthConfig{Enabled: true, Issuer: "https://idp.example", ClientID: "docassist", JWKSURL: "https://idp.example/keys"}
	v, err := middleware.NewVerifier(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := v.Verify(context.Background(), "not.a.jwt"); err == nil {
		t.Error("malformed token should fail verification")
	}
}
