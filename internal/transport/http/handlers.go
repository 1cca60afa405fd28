// Package http exposes the tenants collection over a REST API.
//
// @title Tenantry API
// @version 1.0
// @description Tenant registry for a multi-tenant CMS
// @BasePath /api
//
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/opentrusty/tenantry/internal/access"
	"github.com/opentrusty/tenantry/internal/auth"
	"github.com/opentrusty/tenantry/internal/collection"
	"github.com/opentrusty/tenantry/internal/observability/logger"
	"github.com/opentrusty/tenantry/internal/observability/metrics"
	"github.com/opentrusty/tenantry/internal/tenant"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Handler holds HTTP handlers and dependencies
type Handler struct {
	tenantService *tenant.Service
	verifier      *auth.Verifier
	meter         *metrics.Meter
}

// NewHandler creates a new HTTP handler. meter may be nil.
func NewHandler(tenantService *tenant.Service, verifier *auth.Verifier, meter *metrics.Meter) *Handler {
	return &Handler{
		tenantService: tenantService,
		verifier:      verifier,
		meter:         meter,
	}
}

// NewRouter creates a new HTTP router. rateLimiter may be nil. trustProxy
// makes X-Forwarded-For and X-Real-IP authoritative for the client address;
// only set it when every request arrives through a proxy that overwrites them.
func NewRouter(h *Handler, rateLimiter *RateLimiter, trustProxy bool) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	if trustProxy {
		r.Use(middleware.RealIP)
	}
	if rateLimiter != nil {
		r.Use(RateLimitMiddleware(rateLimiter))
	}
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)
	})
	r.Use(LoggingMiddleware())
	r.Use(MetricsMiddleware(h.meter))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	// Health check
	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(h.AuthMiddleware)

		r.With(h.RequireAccess(access.OpAdmin)).Get("/collections/"+tenant.CollectionSlug, h.DescribeCollection)

		r.Route("/"+tenant.CollectionSlug, func(r chi.Router) {
			r.With(h.RequireAccess(access.OpRead)).Get("/", h.ListTenants)
			r.With(h.RequireAccess(access.OpCreate)).Post("/", h.CreateTenant)
			r.With(h.RequireAccess(access.OpRead)).Get("/resolve", h.ResolveDomain)
			r.With(h.RequireAccess(access.OpRead)).Get("/slug/{slug}", h.GetTenantBySlug)

			r.Route("/{tenantID}", func(r chi.Router) {
				r.With(h.RequireAccess(access.OpRead)).Get("/", h.GetTenant)
				r.With(h.RequireAccess(access.OpUpdate)).Patch("/", h.UpdateTenant)
				r.With(h.RequireAccess(access.OpDelete)).Delete("/", h.DeleteTenant)
			})
		})
	})

	return r
}

// HealthCheck returns the health status
// @Summary Health Check
// @Description Checks if the service is up and running
// @Tags System
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "tenantry",
	})
}

// DescribeCollection returns the admin metadata of the tenants collection
// @Summary Describe Tenants Collection
// @Description Field list, admin columns and title field of the tenants collection
// @Tags Collection
// @Produce json
// @Security BearerAuth
// @Success 200 {object} collection.Schema
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /collections/tenants [get]
func (h *Handler) DescribeCollection(w http.ResponseWriter, r *http.Request) {
	schema, err := h.tenantService.Describe(r.Context())
	if err != nil {
		respondServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, schema)
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// respondServiceError maps service errors onto status codes
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *collection.ValidationError
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		respondError(w, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, access.ErrForbidden):
		respondError(w, http.StatusForbidden, "you are not allowed to perform this action")
	case errors.As(err, &verr):
		respondJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"fields": verr.Errors,
		})
	case errors.Is(err, tenant.ErrSlugTaken):
		respondError(w, http.StatusConflict, "slug is already in use")
	case errors.Is(err, tenant.ErrTenantNotFound):
		respondError(w, http.StatusNotFound, "tenant not found")
	default:
		slog.ErrorContext(r.Context(), "tenant request failed",
			logger.Error(err),
			logger.Path(r.URL.Path),
		)
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
