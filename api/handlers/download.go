package handlers

import (
	"net/http"
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/promptar/promptar/generation"
	"github.com/promptar/promptar/gltf"
	"github.com/promptar/promptar/registry"
	"github.com/promptar/promptar/types"
)

// DownloadRecorder receives download metrics. A nil recorder disables them.
type DownloadRecorder interface {
	RecordDownload(status string, bytesServed int64)
}

// DownloadHandler serves stored artifacts. Every download re-applies
// material normalization so the bytes on the wire are always AR-ready,
// even for artifacts stored before a brightness tuning change.
type DownloadHandler struct {
	store      *registry.Store
	cleaner    *generation.Cleaner
	brightness gltf.BrightnessConfig
	ephemeral  bool
	recorder   DownloadRecorder
	logger     *zap.Logger
}

// NewDownloadHandler creates the handler. cleaner and recorder may be nil;
// ephemeral schedules the backing file for deletion after serving.
func NewDownloadHandler(store *registry.Store, cleaner *generation.Cleaner, brightness gltf.BrightnessConfig, ephemeral bool, recorder DownloadRecorder, logger *zap.Logger) *DownloadHandler {
	return &DownloadHandler{
		store:      store,
		cleaner:    cleaner,
		brightness: brightness,
		ephemeral:  ephemeral,
		recorder:   recorder,
		logger:     logger.With(zap.String("handler", "download")),
	}
}

// HandleDownload serves GET /api/models/download/{model_id}.
func (h *DownloadHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		h.fail(w, types.NewError(types.ErrNotFound, "Model not found").
			WithHTTPStatus(http.StatusNotFound))
		return
	}

	rec, ok := h.store.Get(id)
	if !ok || rec.FilePath == "" {
		h.fail(w, types.NewError(types.ErrNotFound, "Model not found").
			WithHTTPStatus(http.StatusNotFound))
		return
	}

	if _, err := os.Stat(rec.FilePath); err != nil {
		h.fail(w, types.NewError(types.ErrNotFound, "Model file is no longer available").
			WithHTTPStatus(http.StatusNotFound).
			WithCause(err))
		return
	}

	if err := gltf.NormalizeFile(rec.FilePath, h.brightness, h.logger); err != nil {
		h.fail(w, types.NewError(types.ErrInternalError, "Model post-processing failed").
			WithHTTPStatus(http.StatusInternalServerError).
			WithCause(err))
		return
	}

	data, err := os.ReadFile(rec.FilePath)
	if err != nil {
		h.fail(w, types.NewError(types.ErrInternalError, "Could not read the model file").
			WithHTTPStatus(http.StatusInternalServerError).
			WithCause(err))
		return
	}

	w.Header().Set("Content-Type", "model/gltf-binary")
	w.Header().Set("Content-Disposition", `attachment; filename="model_`+id+`.glb"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=300")
	if _, err := w.Write(data); err != nil {
		h.logger.Warn("download write aborted", zap.String("model_id", id), zap.Error(err))
	}

	if h.recorder != nil {
		h.recorder.RecordDownload("completed", int64(len(data)))
	}
	h.logger.Info("model served",
		zap.String("model_id", id),
		zap.Int("bytes", len(data)),
		zap.Bool("ephemeral", h.ephemeral),
	)

	// The payload was fully read above, so deleting the backing file
	// cannot affect this response.
	if h.ephemeral && h.cleaner != nil {
		h.cleaner.Schedule(rec.FilePath)
	}
}

func (h *DownloadHandler) fail(w http.ResponseWriter, err *types.Error) {
	if h.recorder != nil {
		h.recorder.RecordDownload("failed", 0)
	}
	WriteError(w, err, h.logger)
}
