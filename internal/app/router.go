package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	audithttp "github.com/branchline/branchline/internal/audit/http"
	"github.com/branchline/branchline/internal/auth"
	"github.com/branchline/branchline/internal/authz"
	"github.com/branchline/branchline/internal/branches"
	"github.com/branchline/branchline/internal/impersonate"
	"github.com/branchline/branchline/internal/observability"
	"github.com/branchline/branchline/internal/shared"
	"github.com/branchline/branchline/internal/users"
	"github.com/branchline/branchline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	Metrics        *observability.Metrics

	AuthHandler         *auth.Handler
	AuthzHandler        *authz.Handler
	AuthzMiddleware     authz.Middleware
	UsersHandler        *users.Handler
	BranchesHandler     *branches.Handler
	AuditHandler        *audithttp.Handler
	ImpersonateHandler  *impersonate.Handler
	ImpersonateResolver impersonate.Middleware
	JobsHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Branchline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(params.ImpersonateResolver.ResolveViewer)
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", params.AuthHandler.MountRoutes)

	if params.AuthzHandler != nil {
		r.Route("/staff", params.AuthzHandler.MountStaffRoutes)
		r.Route("/me", params.AuthzHandler.MountSelfRoutes)
	}
	if params.UsersHandler != nil {
		r.Route("/users", func(r chi.Router) {
			r.Use(params.AuthzMiddleware.RequireBrandWide())
			params.UsersHandler.MountRoutes(r)
		})
	}
	if params.BranchesHandler != nil {
		r.Route("/branches", params.BranchesHandler.MountRoutes)
	}
	if params.AuditHandler != nil {
		params.AuditHandler.MountRoutes(r)
	}
	if params.ImpersonateHandler != nil {
		r.Route("/impersonation", params.ImpersonateHandler.MountRoutes)
	}
	if params.JobsHandler != nil {
		r.Route("/jobs", params.JobsHandler.MountRoutes)
	}

	return r
}
