package handlers

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/promptar/promptar/api"
	"github.com/promptar/promptar/inference"
	"github.com/promptar/promptar/registry"
)

// HealthHandler serves the service root and liveness endpoints.
type HealthHandler struct {
	pool    *inference.Pool
	store   *registry.Store
	version string
	logger  *zap.Logger
}

func NewHealthHandler(pool *inference.Pool, store *registry.Store, version string, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		pool:    pool,
		store:   store,
		version: version,
		logger:  logger.With(zap.String("handler", "health")),
	}
}

// HandleRoot serves GET /.
func (h *HealthHandler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		WriteJSON(w, http.StatusNotFound, ErrorBody{Detail: "Not found"})
		return
	}
	WriteJSON(w, http.StatusOK, api.ServiceInfo{
		Service:  "promptar",
		Version:  h.version,
		Backends: h.pool.Available(),
	})
}

// HandleHealth serves GET /health.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	backends := h.pool.Available()
	status := "healthy"
	if len(backends) == 0 {
		status = "degraded"
	}
	WriteJSON(w, http.StatusOK, api.HealthStatus{
		Status:    status,
		Timestamp: time.Now(),
		Backends:  backends,
		Models:    h.store.Count(),
	})
}
