package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const healthTimeout = 2 * time.Second

// handleHealth reports healthy when every database answers a ping
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	databases := map[string]string{}
	for _, db := range s.systemHandlers.databases {
		if err := db.Conn().PingContext(ctx); err != nil {
			s.log.Warn().Err(err).Str("database", db.Name()).Msg("Health check ping failed")
			databases[db.Name()] = "unavailable"
			status = http.StatusServiceUnavailable
			continue
		}
		databases[db.Name()] = "ok"
	}

	response := map[string]interface{}{
		"status":    "healthy",
		"version":   "1.0.0",
		"service":   "allocator",
		"databases": databases,
	}
	if status != http.StatusOK {
		response["status"] = "degraded"
	}

	writeJSON(w, s.log, status, response)
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, log zerolog.Logger, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}
