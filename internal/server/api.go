package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/viaduct-dev/viaduct/internal/version"
)

// handleHealth reports liveness and subsystem readiness.
func (s *DevServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":    "ok",
		"version":   version.GetShortVersion(),
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"checks": map[string]interface{}{
			"websocket": !s.hub.IsShutdown(),
			"compiler":  s.config.Compiler.Command != "",
			"hmr":       s.config.HMR.Enabled,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	response, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		http.Error(w, "Failed to marshal health status", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(response)
}

// handleStats exposes the serving pipeline's counters for inspection.
func (s *DevServer) handleStats(w http.ResponseWriter, r *http.Request) {
	cacheStats := s.cache.GetStats()

	stats := map[string]interface{}{
		"cache": map[string]interface{}{
			"entries":       cacheStats.Entries,
			"max_entries":   cacheStats.MaxEntries,
			"hits":          cacheStats.Hits,
			"misses":        cacheStats.Misses,
			"evictions":     cacheStats.Evictions,
			"invalidations": cacheStats.Invalidations,
		},
		"graph": map[string]interface{}{
			"edges": s.engine.Graph().Size(),
		},
		"clients":     s.hub.GetConnectedClients(),
		"diagnostics": s.sink.All(),
	}

	w.Header().Set("Content-Type", "application/json")
	response, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		http.Error(w, "Failed to marshal stats", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write(response)
}
