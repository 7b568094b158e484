package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/prismboard/prismboard/internal/audit/http"
	ingesthttp "github.com/prismboard/prismboard/internal/ingest/http"
	insightshttp "github.com/prismboard/prismboard/internal/insights/http"
	"github.com/prismboard/prismboard/internal/observability"
	vaulthttp "github.com/prismboard/prismboard/internal/vault/http"
	workspacehttp "github.com/prismboard/prismboard/internal/workspaces/http"
	"github.com/prismboard/prismboard/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	WorkspaceHandler *workspacehttp.Handler
	VaultHandler     *vaulthttp.Handler
	IngestHandler    *ingesthttp.Handler
	InsightsHandler  *insightshttp.Handler
	AuditHandler     *audithttp.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with Prismboard defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {
		if params.WorkspaceHandler != nil {
			params.WorkspaceHandler.MountRoutes(r)
		}
		if params.VaultHandler != nil {
			params.VaultHandler.MountRoutes(r)
		}
		if params.IngestHandler != nil {
			params.IngestHandler.MountRoutes(r)
		}
		if params.InsightsHandler != nil {
			params.InsightsHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
	})

	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
