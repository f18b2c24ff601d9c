package api

import (
	"github.com/JaimeStill/docassist/internal/config"
	"github.com/JaimeStill/docassist/internal/export"
	"github.com/JaimeStill/docassist/internal/infrastructure"
	"github.com/JaimeStill/docassist/internal/prediction"
	"github.com/JaimeStill/docassist/pkg/pagination"
)

// Runtime extends Infrastructure with the API-scoped collaborators shared by
// every session.
type Runtime struct {
	*infrastructure.Infrastructure
	Pagination pagination.Config
	Prediction prediction.Client
	Exporter   *export.Exporter
}

// NewRuntime creates an API runtime with a module-scoped logger.
func NewRuntime(cfg *config.Config, infra *infrastructure.Infrastructure) *Runtime {
	logger := infra.Logger.With("module", "api")

	return &Runtime{
		Infrastructure: &infrastructure.Infrastructure{
			Lifecycle: infra.Lifecycle,
			Logger:    logger,
			Database:  infra.Database,
			Storage:   infra.Storage,
		},
		Pagination: cfg.API.Pagination,
		Prediction: prediction.New(&cfg.Prediction, logger),
		Exporter:   export.New(&cfg.Export, logger),
	}
}
