package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	authzhttp "github.com/r2suporte/interalpha/internal/authz/http"
	"github.com/r2suporte/interalpha/internal/observability"
)

// RouterConfig aggregates everything the router mounts.
type RouterConfig struct {
	Logger  *slog.Logger
	Config  *Config
	Handler *authzhttp.Handler
	Metrics *observability.Metrics
}

// NewRouter assembles the HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{Logger: cfg.Logger, Config: cfg.Config, Metrics: cfg.Metrics}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}

	r.Route("/authz", func(r chi.Router) {
		cfg.Handler.MountRoutes(r)
	})

	return r
}
