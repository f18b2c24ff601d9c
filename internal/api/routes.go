package api

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/docassist/internal/config"
	"github.com/JaimeStill/docassist/pkg/routes"
)

func groups(domain *Domain, cfg *config.Config) []routes.Group {
	gs := []routes.Group{
		domain.Sessions.Handler(cfg.API.MaxUploadSizeBytes()).Routes(),
	}
	if domain.History != nil {
		gs = append(gs, domain.History.Handler().Routes())
	}
	return gs
}

func registerRoutes(mux *http.ServeMux, domain *Domain, cfg *config.Config, logger *slog.Logger) {
	gs := groups(domain, cfg)
	routes.Register(mux, gs...)
	logger.Debug("api routes registered", "base_path", cfg.API.BasePath, "routes", routes.Patterns(gs...))
}
