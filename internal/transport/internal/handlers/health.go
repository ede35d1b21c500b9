package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/jamesprial/pocketbase-mcp/internal/logging"
	"github.com/jamesprial/pocketbase-mcp/pkg/api"
)

// healthResponse represents the JSON response for health checks.
type healthResponse struct {
	Status string `json:"status"`
}

// healthHandler reports liveness without touching the backend.
type healthHandler struct {
	logger *zap.Logger
}

// NewHealthHandler creates a handler for the /health endpoint.
func NewHealthHandler(logger *zap.Logger) http.Handler {
	logger = logging.OrNop(logger)
	return &healthHandler{logger: logger}
}

// ServeHTTP answers GET and HEAD.
func (h *healthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set(api.HeaderContentType, api.ContentTypeJSON)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}

	if err := json.NewEncoder(w).Encode(healthResponse{Status: "ok"}); err != nil {
		h.logger.Error("failed to encode health response", zap.Error(err))
	}
}
