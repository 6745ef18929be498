package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/viaduct-dev/viaduct/internal/config"
)

// originValidator implements the hub's origin check from server config.
// Development mode accepts any origin so the page works from LAN addresses
// and tunnels; otherwise only the configured list passes.
type originValidator struct {
	allowed     []string
	development bool
}

func newOriginValidator(cfg *config.Config) originValidator {
	return originValidator{
		allowed:     cfg.Server.AllowedOrigins,
		development: cfg.Server.Environment == "development",
	}
}

func (v originValidator) IsAllowedOrigin(origin string) bool {
	if origin == "" {
		return false
	}
	for _, allowed := range v.allowed {
		if origin == allowed {
			return true
		}
	}
	return v.development
}

// corsMiddleware mirrors allowed origins back and answers preflights. In
// development every origin is mirrored; in other environments unlisted
// origins get no CORS headers at all.
func (s *DevServer) corsMiddleware(next http.Handler) http.Handler {
	validator := newOriginValidator(s.config)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" && validator.IsAllowedOrigin(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for the request log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	rec.status = status
	rec.ResponseWriter.WriteHeader(status)
}

func (s *DevServer) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades hijack the connection; wrapping the writer
		// would break the upgrade, and the hub logs its own lifecycle.
		if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		s.logger.Debug(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start).String())
	})
}
