package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/promptar/promptar/api"
	"github.com/promptar/promptar/registry"
	"github.com/promptar/promptar/types"
)

// ModelsHandler serves artifact listing and per-record detail.
type ModelsHandler struct {
	store  *registry.Store
	logger *zap.Logger
}

func NewModelsHandler(store *registry.Store, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{
		store:  store,
		logger: logger.With(zap.String("handler", "models")),
	}
}

// HandleList serves GET /api/models.
func (h *ModelsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	records := h.store.List()
	models := make([]api.ModelInfo, 0, len(records))
	for _, rec := range records {
		models = append(models, toModelInfo(rec))
	}
	WriteJSON(w, http.StatusOK, api.ModelListResponse{
		Models: models,
		Count:  len(models),
	})
}

// HandleInfo serves GET /api/models/{model_id}.
func (h *ModelsHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteError(w, types.NewError(types.ErrNotFound, "Model not found").
			WithHTTPStatus(http.StatusNotFound), h.logger)
		return
	}

	rec, ok := h.store.Get(id)
	if !ok {
		WriteError(w, types.NewError(types.ErrNotFound, "Model not found").
			WithHTTPStatus(http.StatusNotFound), h.logger)
		return
	}
	WriteJSON(w, http.StatusOK, toModelInfo(rec))
}

func toModelInfo(rec registry.Record) api.ModelInfo {
	info := api.ModelInfo{
		ModelID:          rec.ID,
		Prompt:           rec.Prompt,
		Status:           string(rec.Status),
		CreatedAt:        rec.CreatedAt,
		AvailableFormats: rec.AvailableFormats,
	}
	if rec.Status == registry.StatusCompleted && rec.FilePath != "" {
		info.DownloadURL = DownloadPath(rec.ID)
	}
	return info
}
