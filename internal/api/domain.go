package api

import (
	"github.com/google/uuid"

	"github.com/JaimeStill/docassist/internal/acquisition"
	"github.com/JaimeStill/docassist/internal/config"
	"github.com/JaimeStill/docassist/internal/history"
	"github.com/JaimeStill/docassist/internal/session"
)

// Domain holds all domain systems that comprise the API.
type Domain struct {
	Sessions *session.Registry
	// History is nil when the archive is disabled.
	History history.System
}

// NewDomain creates all domain systems from the API runtime.
func NewDomain(cfg *config.Config, runtime *Runtime) *Domain {
	var (
		historySystem history.System
		archive       *archiver
	)
	if runtime.Database != nil && runtime.Storage != nil {
		historySystem = history.New(
			runtime.Database.Connection(),
			runtime.Storage,
			runtime.Logger,
			runtime.Pagination,
		)
		archive = newArchiver(historySystem, runtime.Exporter, runtime.Logger)
		archive.start(runtime.Lifecycle)
	}

	limits := acquisition.DefaultLimits()
	limits.MaxSize = cfg.API.MaxUploadSizeBytes()

	opts := []session.Option{
		session.WithLimits(limits),
		session.WithInterval(cfg.Reveal.IntervalDuration()),
	}
	if archive != nil {
		opts = append(opts, session.WithCompletion(archive.enqueue))
	}

	factory := func(id uuid.UUID) *session.Controller {
		return session.New(id, runtime.Prediction, runtime.Exporter, runtime.Logger, opts...)
	}

	return &Domain{
		Sessions: session.NewRegistry(&cfg.Sessions, factory, runtime.Logger),
		History:  historySystem,
	}
}
