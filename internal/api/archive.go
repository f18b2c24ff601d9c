package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/JaimeStill/docassist/internal/history"
	"github.com/JaimeStill/docassist/internal/session"
	"github.com/JaimeStill/docassist/pkg/lifecycle"
)

const archiveTimeout = 30 * time.Second

// archiver records completed sessions in the history archive. Recording
// happens off the reveal goroutine; shutdown waits for pending records.
type archiver struct {
	history  history.System
	exporter session.Exporter
	logger   *slog.Logger

	mu      sync.Mutex
	stopped bool
	pending sync.WaitGroup
}

func newArchiver(sys history.System, exporter session.Exporter, logger *slog.Logger) *archiver {
	return &archiver{
		history:  sys,
		exporter: exporter,
		logger:   logger.With("system", "archive"),
	}
}

func (a *archiver) start(lc *lifecycle.Coordinator) {
	lc.OnShutdown(func() {
		<-lc.Context().Done()

		a.mu.Lock()
		a.stopped = true
		a.mu.Unlock()

		a.pending.Wait()
		a.logger.Info("archive drained")
	})
}

func (a *archiver) enqueue(c session.Completion) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopped {
		a.logger.Warn("archive stopped, completion dropped", "session", c.SessionID, "generation", c.Generation)
		return
	}
	a.pending.Go(func() { a.record(c) })
}

func (a *archiver) record(c session.Completion) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	doc, err := a.exporter.Export(c.Narrative)
	if err != nil {
		a.logger.Error("archive export failed", "session", c.SessionID, "error", err)
		return
	}

	entry, err := a.history.Record(ctx, history.RecordCommand{
		SessionID:  c.SessionID,
		Generation: c.Generation,
		Source:     c.Source,
		Prediction: c.Result.Prediction,
		Narrative:  c.Narrative,
		Report:     doc,
	})
	if err != nil {
		a.logger.Error("archive record failed", "session", c.SessionID, "generation", c.Generation, "error", err)
		return
	}
	a.logger.Info("session archived", "session", c.SessionID, "entry", entry.ID)
}
