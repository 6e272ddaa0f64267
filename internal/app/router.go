package app

import (
	"net/http"

	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sitemaster-erp/sitemaster/internal/audit"
	"github.com/sitemaster-erp/sitemaster/internal/dashboard"
	"github.com/sitemaster-erp/sitemaster/internal/finance"
	"github.com/sitemaster-erp/sitemaster/internal/inventory"
	"github.com/sitemaster-erp/sitemaster/internal/labor"
	"github.com/sitemaster-erp/sitemaster/internal/observability"
	"github.com/sitemaster-erp/sitemaster/internal/project"
	"github.com/sitemaster-erp/sitemaster/internal/rbac"
	"github.com/sitemaster-erp/sitemaster/internal/users"
	"github.com/sitemaster-erp/sitemaster/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	InventoryHandler *inventory.Handler
	FinanceHandler   *finance.Handler
	ProjectHandler   *project.Handler
	LaborHandler     *labor.Handler
	UsersHandler     *users.Handler
	RBACHandler      *rbac.Handler
	AuditHandler     *audit.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with SiteMaster defaults.
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

	r.Route("/api", func(r chi.Router) {
		r.Route("/inventory", params.InventoryHandler.MountRoutes)
		r.Route("/finance", params.FinanceHandler.MountRoutes)
		r.Route("/projects", params.ProjectHandler.MountRoutes)
		if params.LaborHandler != nil {
			r.Route("/labor", params.LaborHandler.MountRoutes)
		}
		if params.UsersHandler != nil {
			r.Route("/users", params.UsersHandler.MountRoutes)
		}
		if params.RBACHandler != nil {
			r.Route("/rbac", params.RBACHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
		if params.DashboardHandler != nil {
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
		}
		if params.JobHandler != nil {
			r.Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
