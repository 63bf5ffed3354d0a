package httpapi

import (
	"context"
	"net/http"
	"time"

	"solstice/internal/observability/jsonlog"
)

const readyTimeout = time.Second

// Pinger reports whether the task store can serve queries.
type Pinger interface {
	Ping(ctx context.Context) error
}

// handleReady answers 200 {"status":"ready"} while the store responds to a
// ping within readyTimeout, and 503 {"status":"not ready"} otherwise.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := s.store.Ping(ctx); err != nil {
		jsonlog.FromContext(r.Context()).Warn("store not ready", map[string]any{"err": err})
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
