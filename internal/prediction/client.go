// Package prediction submits report sources to the remote inference service
// and resolves every exchange, including transport failures, into a Result.
package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/pkg/formatting"
)

// DocumentPart is the multipart field that carries an uploaded document.
const DocumentPart = "file"

const maxResponseSize = 4 * 1024 * 1024

// Client performs a single request/response exchange per submission.
// Retries are never attempted.
type Client interface {
	Submit(ctx context.Context, src acquisition.Source) Result
}

type client struct {
	cfg    *Config
	http   *http.Client
	logger *slog.Logger
}

// New creates a Client for the service described by cfg.
func New(cfg *Config, logger *slog.Logger) Client {
	return &client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.TimeoutDuration()},
		logger: logger.With("system", "prediction"),
	}
}

type response struct {
	Status           Status  `json:"status"`
	DetailedAnalysis *string `json:"detailed_analysis"`
	Prediction       string  `json:"prediction"`
	Error            string  `json:"error"`
}

func (c *client) Submit(ctx context.Context, src acquisition.Source) Result {
	req, err := c.request(ctx, src)
	if err != nil {
		return failed(&Failure{Kind: FailureRequest, Message: err.Error()})
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("inference service unreachable", "url", req.URL.String(), "error", err)
		return failed(&Failure{
			Kind:    FailureConnectivity,
			Message: "Server connection error",
			Hint:    fmt.Sprintf("Please make sure the backend service is reachable at %s", c.cfg.BaseURL),
		})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		c.logger.Warn("read inference response failed", "status", resp.StatusCode, "error", err)
		return failed(&Failure{
			Kind:       FailureService,
			Message:    GenericServiceMessage,
			StatusCode: resp.StatusCode,
		})
	}

	c.logger.Info("inference response",
		"mode", src.Mode(),
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return interpret(resp.StatusCode, body)
}

func interpret(code int, body []byte) Result {
	payload, err := formatting.DecodeJSON[response](body)

	if code < 200 || code > 299 {
		msg := GenericServiceMessage
		if err == nil && payload.Error != "" {
			msg = payload.Error
		}
		return failed(&Failure{Kind: FailureService, Message: msg, StatusCode: code})
	}

	if err != nil {
		return failed(&Failure{Kind: FailureService, Message: GenericServiceMessage, StatusCode: code})
	}

	if payload.Status != StatusSuccess {
		msg := payload.Error
		if msg == "" {
			msg = GenericServiceMessage
		}
		return failed(&Failure{Kind: FailureService, Message: msg, StatusCode: code})
	}

	return Result{
		Status:           StatusSuccess,
		DetailedAnalysis: payload.DetailedAnalysis,
		Prediction:       payload.Prediction,
	}
}

func (c *client) request(ctx context.Context, src acquisition.Source) (*http.Request, error) {
	switch s := src.(type) {
	case acquisition.Document:
		return c.documentRequest(ctx, s)
	case acquisition.ManualPanel:
		return c.manualRequest(ctx, s)
	default:
		return nil, fmt.Errorf("%w: %T", ErrInvalidSource, src)
	}
}

func (c *client) documentRequest(ctx context.Context, doc acquisition.Document) (*http.Request, error) {
	if len(doc.Data) == 0 {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidSource)
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, DocumentPart, doc.Filename))
	contentType := doc.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, fmt.Errorf("write form part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("close multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint(c.cfg.DocumentPath), &buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *client) manualRequest(ctx context.Context, mp acquisition.ManualPanel) (*http.Request, error) {
	body, err := json.Marshal(mp.Panel)
	if err != nil {
		return nil, fmt.Errorf("encode panel: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint(c.cfg.ManualPath), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}
