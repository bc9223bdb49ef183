package main

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dmitrymomot/tenantmux/pkg/audit"
	"github.com/dmitrymomot/tenantmux/pkg/clientip"
	"github.com/dmitrymomot/tenantmux/pkg/httpserver"
	"github.com/dmitrymomot/tenantmux/pkg/jwt"
	"github.com/dmitrymomot/tenantmux/pkg/logger"
	"github.com/dmitrymomot/tenantmux/pkg/requestid"
	"github.com/dmitrymomot/tenantmux/pkg/scope"
	"github.com/dmitrymomot/tenantmux/pkg/tenant"
)

type routerDeps struct {
	log      *slog.Logger
	scope    *scope.Service
	tokens   *jwt.Service
	registry *prometheus.Registry
	probes   map[string]httpserver.Probe
	timeout  time.Duration
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)

	r.Get("/healthz", httpserver.HealthCheckHandler(d.log, d.timeout, d.probes))
	if d.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}

	r.Route("/v1", func(r chi.Router) {
		if d.tokens != nil {
			r.Use(jwt.Middleware(jwt.MiddlewareConfig{Service: d.tokens, Optional: true}))
		}
		r.Use(scope.Middleware(d.scope, scope.WithLogger(d.log)))

		r.Get("/scope", getScope)
		r.Post("/scope/touch", touchScope(d.scope))
	})

	return r
}

type scopeResponse struct {
	Tenant struct {
		ID     uuid.UUID     `json:"id"`
		Slug   string        `json:"slug"`
		Name   string        `json:"name"`
		Status tenant.Status `json:"status"`
	} `json:"tenant"`
	Company struct {
		ID   uuid.UUID `json:"id"`
		Name string    `json:"name"`
	} `json:"company"`
	Signal    tenant.Signal `json:"signal"`
	RequestID string        `json:"request_id,omitempty"`
}

func getScope(w http.ResponseWriter, r *http.Request) {
	sc := scope.MustFromContext(r.Context())

	var resp scopeResponse
	resp.Tenant.ID = sc.Tenant.ID
	resp.Tenant.Slug = sc.Tenant.Slug
	resp.Tenant.Name = sc.Tenant.Name
	resp.Tenant.Status = sc.Tenant.Status
	resp.Company.ID = sc.Company.ID
	resp.Company.Name = sc.Company.Name
	resp.Signal = sc.Signal
	resp.RequestID = sc.Audit.RequestID

	writeJSON(w, http.StatusOK, resp)
}

// touchScope records an audit event for the request scope without touching
// business data. It lets operators verify the audit pipeline end to end.
func touchScope(svc *scope.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sc := scope.MustFromContext(r.Context())
		svc.Record(r.Context(), audit.Entry{
			Action:       "scope.touch",
			ResourceType: "company",
			ResourceID:   sc.Company.ID.String(),
		})
		w.WriteHeader(http.StatusAccepted)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("write response", logger.Error(err))
	}
}
