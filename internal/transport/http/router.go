// Package httptransport assembles the chi router for the admin server.
package httptransport

import (
	"log/slog"
	"net/http"
	"net/netip"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"

	audithandler "greenctf/internal/audit/handler"
	authhandler "greenctf/internal/auth/handler"
	"greenctf/internal/platform/health"
	"greenctf/internal/platform/metrics"
	dErrors "greenctf/pkg/domain-errors"
	"greenctf/pkg/platform/httputil"
	"greenctf/pkg/platform/middleware/admin"
	"greenctf/pkg/platform/middleware/metadata"
	"greenctf/pkg/platform/middleware/request"
	"greenctf/pkg/platform/middleware/requesttime"
	"greenctf/pkg/platform/validation"
	"greenctf/pkg/requestcontext"
)

// Deps are the handlers and settings the router mounts.
type Deps struct {
	Logger   *slog.Logger
	Registry *prometheus.Registry
	Auth     *authhandler.Handler
	Audit    *audithandler.Handler
	Health   *health.Handler
	// Sessions guards every route under /api/admin that is not part of
	// the login flow.
	Sessions admin.SessionValidator

	TrustedProxies      []netip.Prefix
	CORSAllowedOrigins  []string
	RequestTimeout      time.Duration
	IPRequestsPerMinute int
}

// NewRouter wires all endpoints with middleware.
func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := d.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	r := chi.NewRouter()

	r.Use(request.Recovery(logger))
	r.Use(request.RequestID)
	r.Use(metadata.NewMiddleware(&metadata.Config{TrustedProxies: d.TrustedProxies}).Handler)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(logger))
	if d.Registry != nil {
		r.Use(request.Latency(request.NewMetrics(d.Registry), routePattern))
	}
	r.Use(request.Timeout(timeout))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   d.CORSAllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if d.IPRequestsPerMinute > 0 {
		r.Use(httprate.Limit(d.IPRequestsPerMinute, time.Minute,
			httprate.WithKeyFuncs(clientIPKey),
			httprate.WithLimitHandler(tooManyRequests),
		))
	}
	r.Use(request.BodyLimit(validation.MaxBodySize))
	r.Use(request.ContentTypeJSON)

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Registry != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(d.Registry))
	}

	if d.Auth != nil {
		d.Auth.Register(r)
		d.Auth.RegisterLegacy(r)
	}

	if d.Audit != nil && d.Sessions != nil {
		cookieName := authhandler.DefaultCookieName
		if d.Auth != nil {
			cookieName = d.Auth.CookieName()
		}
		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(d.Sessions, cookieName, logger))
			d.Audit.Register(r)
		})
	}

	return r
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		return rctx.RoutePattern()
	}
	return ""
}

// clientIPKey uses the address resolved by the metadata middleware so the
// throttle honours the trusted proxy list.
func clientIPKey(r *http.Request) (string, error) {
	if ip := requestcontext.ClientIP(r.Context()); ip != "" {
		return ip, nil
	}
	return httprate.KeyByIP(r)
}

func tooManyRequests(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteError(w, dErrors.NewRetryable(dErrors.CodeRateLimited, "Too many requests. Please slow down.", time.Minute))
}
