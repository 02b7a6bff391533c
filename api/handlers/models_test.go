package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/promptar/promptar/api"
	"github.com/promptar/promptar/inference"
	"github.com/promptar/promptar/registry"
)

func TestHandleListEmpty(t *testing.T) {
	h := NewModelsHandler(registry.NewStore(), zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp api.ModelListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
	assert.NotNil(t, resp.Models)
}

func TestHandleListReportsDownloadURLOnlyWhenCompleted(t *testing.T) {
	store := registry.NewStore()
	pending := store.Create("still running")
	finished := store.Create("done")
	store.AttachFile(finished, "/tmp/x.glb", "glb")
	store.SetStatus(finished, registry.StatusCompleted)

	h := NewModelsHandler(store, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.HandleList(rec, httptest.NewRequest(http.MethodGet, "/api/models", nil))

	var resp api.ModelListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)

	byID := map[string]api.ModelInfo{}
	for _, m := range resp.Models {
		byID[m.ModelID] = m
	}
	assert.Empty(t, byID[pending].DownloadURL)
	assert.Equal(t, "/api/models/download/"+finished, byID[finished].DownloadURL)
}

func TestHandleInfo(t *testing.T) {
	store := registry.NewStore()
	id := store.Create("a vase")

	h := NewModelsHandler(store, zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/models/"+id, nil)
	req.SetPathValue("id", id)
	h.HandleInfo(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var info api.ModelInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, id, info.ModelID)
	assert.Equal(t, "a vase", info.Prompt)
	assert.Equal(t, string(registry.StatusProcessing), info.Status)
}

func TestHandleInfoUnknownID(t *testing.T) {
	h := NewModelsHandler(registry.NewStore(), zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/models/missing", nil)
	req.SetPathValue("id", "missing")
	h.HandleInfo(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	store := registry.NewStore()
	store.Create("one")
	pool := inference.NewStaticPool(zaptest.NewLogger(t))

	h := NewHealthHandler(pool, store, "test", zaptest.NewLogger(t))
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status api.HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "degraded", status.Status) // empty pool
	assert.Equal(t, 1, status.Models)
}

func TestHandleRoot(t *testing.T) {
	h := NewHealthHandler(inference.NewStaticPool(zaptest.NewLogger(t)), registry.NewStore(), "1.2.3", zaptest.NewLogger(t))

	rec := httptest.NewRecorder()
	h.HandleRoot(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var info api.ServiceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, "promptar", info.Service)
	assert.Equal(t, "1.2.3", info.Version)
}
