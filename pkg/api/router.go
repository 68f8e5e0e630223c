package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/marmos91/execgate/internal/logger"
	"github.com/marmos91/execgate/internal/telemetry"
	"github.com/marmos91/execgate/pkg/api/handlers"
	"github.com/marmos91/execgate/pkg/backpressure"
	"github.com/marmos91/execgate/pkg/cache"
	"github.com/marmos91/execgate/pkg/metrics"
)

// NewRouter creates and configures the chi router with all middleware and
// routes.
//
// The router is configured with:
//   - Request ID middleware for request tracking
//   - Real IP extraction for proper client identification
//   - Custom request logging using the internal logger
//   - Panic recovery to prevent server crashes
//   - Request timeout to prevent hung requests
//
// Routes:
//   - GET /health - Liveness probe
//   - GET /health/ready - Readiness probe
//   - GET /status - Admission-state snapshot
//   - GET /metrics - Prometheus metrics (when metrics are enabled)
func NewRouter(c *cache.AvailabilityCache, manager *backpressure.Manager) http.Handler {
	r := chi.NewRouter()

	// Middleware stack - order matters
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(c, manager)
	statusHandler := handlers.NewStatusHandler(c, manager)

	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/status", statusHandler.Status)

	if reg := metrics.GetRegistry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	// Root redirect to health for convenience
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusTemporaryRedirect)
	})

	return r
}

// requestLogger is a custom middleware that logs requests using the internal
// logger and opens one span per request.
//
// It logs:
//   - Request start (DEBUG level): method, path, remote addr
//   - Request completion (INFO level): method, path, status, duration
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ctx, span := telemetry.StartSpan(r.Context(), telemetry.SpanHTTPRequest)
		defer span.End()
		telemetry.SetAttributes(ctx,
			attribute.String("http.method", r.Method),
			attribute.String("http.route", r.URL.Path),
		)

		logger.Debug("API request started",
			logger.KeyRequestID, requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
		)

		// Wrap response writer to capture status code
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r.WithContext(ctx))

		status := ww.Status()
		telemetry.SetAttributes(ctx, attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			telemetry.SetStatus(ctx, codes.Error, http.StatusText(status))
		}

		logger.Info("API request completed",
			logger.KeyRequestID, requestID,
			logger.KeyTraceID, telemetry.TraceID(ctx),
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		)
	})
}
