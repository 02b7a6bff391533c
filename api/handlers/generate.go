package handlers

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/promptar/promptar/api"
	"github.com/promptar/promptar/generation"
	"github.com/promptar/promptar/types"
)

// maxUploadBytes caps an image upload. Space backends reject anything this
// large anyway.
const maxUploadBytes = 32 << 20

// GenerateHandler serves the generation endpoints.
type GenerateHandler struct {
	orchestrator *generation.Orchestrator
	uploadDir    string
	logger       *zap.Logger
}

// NewGenerateHandler creates the handler. uploadDir holds staged image
// uploads; empty means the system temp directory.
func NewGenerateHandler(orchestrator *generation.Orchestrator, uploadDir string, logger *zap.Logger) *GenerateHandler {
	if uploadDir == "" {
		uploadDir = os.TempDir()
	}
	return &GenerateHandler{
		orchestrator: orchestrator,
		uploadDir:    uploadDir,
		logger:       logger.With(zap.String("handler", "generate")),
	}
}

// HandleGenerate serves POST /api/models/generate.
func (h *GenerateHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	var req api.GenerateRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Mode == "" {
		WriteError(w, errMissingMode(), h.logger)
		return
	}

	id, err := h.orchestrator.Generate(r.Context(), req.Prompt, req.Mode)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, api.GenerationResponse{
		Status:      "success",
		Message:     "Model generated successfully",
		ModelID:     id,
		DownloadURL: DownloadPath(id),
	})
}

// HandleGenerateFromImage serves POST /api/models/generate-from-image with
// a multipart body carrying the image under the "file" field.
func (h *GenerateHandler) HandleGenerateFromImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "Invalid or oversized multipart body").
			WithHTTPStatus(http.StatusBadRequest).
			WithCause(err), h.logger)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "An image file upload is required").
			WithHTTPStatus(http.StatusBadRequest).
			WithCause(err), h.logger)
		return
	}
	defer file.Close()

	mode := r.FormValue("mode")
	if mode == "" {
		WriteError(w, errMissingMode(), h.logger)
		return
	}

	staged, err := h.stageUpload(file, header.Filename)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}
	defer os.Remove(staged)

	id, err := h.orchestrator.GenerateFromImage(r.Context(), staged, header.Filename, mode)
	if err != nil {
		WriteError(w, err, h.logger)
		return
	}

	WriteJSON(w, http.StatusOK, api.GenerationResponse{
		Status:      "success",
		Message:     "Model generated successfully",
		ModelID:     id,
		DownloadURL: DownloadPath(id),
	})
}

// stageUpload copies the upload into a local file the backend client can
// read. Only the extension of the client-supplied name is trusted.
func (h *GenerateHandler) stageUpload(src io.Reader, filename string) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".webp":
	default:
		return "", types.NewError(types.ErrInvalidRequest, "Unsupported image format").
			WithHTTPStatus(http.StatusBadRequest)
	}

	tmp, err := os.CreateTemp(h.uploadDir, "upload-*"+ext)
	if err != nil {
		return "", types.NewError(types.ErrInternalError, "Could not store the upload").
			WithHTTPStatus(http.StatusInternalServerError).
			WithCause(err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", types.NewError(types.ErrInternalError, "Could not store the upload").
			WithHTTPStatus(http.StatusInternalServerError).
			WithCause(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", types.NewError(types.ErrInternalError, "Could not store the upload").
			WithHTTPStatus(http.StatusInternalServerError).
			WithCause(err)
	}
	return tmp.Name(), nil
}

func errMissingMode() *types.Error {
	return types.NewError(types.ErrInvalidRequest, `A generation mode is required: "basic" or "advanced"`).
		WithHTTPStatus(http.StatusBadRequest)
}

// DownloadPath returns the download URL path for a record id.
func DownloadPath(id string) string {
	return "/api/models/download/" + id
}
