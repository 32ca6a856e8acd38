package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/startupsquad-prog/company-os-sub003/internal/authz"
	"github.com/startupsquad-prog/company-os-sub003/internal/crm/leads"
	"github.com/startupsquad-prog/company-os-sub003/internal/observability"
	"github.com/startupsquad-prog/company-os-sub003/internal/platform/httpx"
	"github.com/startupsquad-prog/company-os-sub003/internal/support/tickets"
	"github.com/startupsquad-prog/company-os-sub003/jobs"
)

// JobsReadPermission gates the queue endpoints.
var JobsReadPermission = authz.Permission{Resource: "jobs", Action: "read"}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Auth           *authz.Middleware
	LeadsHandler   *leads.Handler
	TicketsHandler *tickets.Handler
	JobHandler     *jobs.Handler
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Auth:    params.Auth,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/whoami", whoami)

	if params.LeadsHandler != nil {
		r.Route("/leads", params.LeadsHandler.MountRoutes)
	}
	if params.TicketsHandler != nil {
		r.Route("/tickets", params.TicketsHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		auth := params.Auth
		if auth == nil {
			auth = &authz.Middleware{Logger: params.Logger}
		}
		r.Route("/jobs", func(r chi.Router) {
			r.Use(auth.RequireAny(JobsReadPermission))
			params.JobHandler.MountRoutes(r)
		})
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Problem(w, http.StatusNotFound, http.StatusText(http.StatusNotFound), "no route matches "+r.URL.Path)
	})
	return r
}

type whoamiResponse struct {
	ProfileID    string   `json:"profile_id"`
	Role         string   `json:"role"`
	DepartmentID *string  `json:"department_id,omitempty"`
	Permissions  []string `json:"permissions"`
}

func whoami(w http.ResponseWriter, r *http.Request) {
	ac := authz.FromContext(r.Context())
	if ac == nil {
		httpx.Problem(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized), "authentication required")
		return
	}
	resp := whoamiResponse{
		ProfileID:   ac.ProfileID().String(),
		Role:        string(ac.Role()),
		Permissions: []string{},
	}
	if dept := ac.DepartmentID(); dept != nil {
		s := dept.String()
		resp.DepartmentID = &s
	}
	for _, p := range ac.Permissions() {
		resp.Permissions = append(resp.Permissions, p.String())
	}
	httpx.JSON(w, http.StatusOK, resp)
}
