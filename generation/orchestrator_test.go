package generation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/promptar/promptar/inference"
	"github.com/promptar/promptar/registry"
	"github.com/promptar/promptar/types"
)

// fakeBackend scripts a backend response without any network.
type fakeBackend struct {
	name   string
	result any
	err    error
	calls  int
}

func (f *fakeBackend) Name() string { return f.name }

func (f *fakeBackend) Generate(ctx context.Context, req *inference.Request) (any, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newTestOrchestrator(t *testing.T, backends ...inference.Backend) (*Orchestrator, *registry.Store) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := registry.NewStore()
	cfg := DefaultConfig()
	cfg.StorageDir = t.TempDir()
	cfg.CallTimeout = 10 * time.Second
	pool := inference.NewStaticPool(logger, backends...)
	return New(pool, store, cfg, nil, logger), store
}

func writeArtifact(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("glTF-bytes"), 0o644))
	return path
}

func TestGenerateSuccessLocalPath(t *testing.T) {
	src := writeArtifact(t, "out.glb")
	backend := &fakeBackend{name: inference.BackendFastDirect, result: src}
	o, store := newTestOrchestrator(t, backend)

	id, err := o.Generate(context.Background(), "a red dragon", ModeBasic)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	rec, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, registry.StatusCompleted, rec.Status)
	assert.Equal(t, []string{"glb"}, rec.AvailableFormats)

	data, err := os.ReadFile(rec.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "glTF-bytes", string(data))

	// The source must survive: artifacts are copied, not moved.
	_, err = os.Stat(src)
	assert.NoError(t, err)
}

func TestGenerateEmptyPromptRejectedBeforeRecord(t *testing.T) {
	o, store := newTestOrchestrator(t, &fakeBackend{name: inference.BackendFastDirect})

	_, err := o.Generate(context.Background(), "   ", ModeBasic)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Equal(t, 0, store.Count())
}

func TestGenerateUnknownMode(t *testing.T) {
	o, store := newTestOrchestrator(t, &fakeBackend{name: inference.BackendFastDirect})

	_, err := o.Generate(context.Background(), "a chair", "ultra")
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Equal(t, 0, store.Count())
}

func TestGenerateBackendUnavailable(t *testing.T) {
	// Pool has only the basic backend; advanced mode has no handle.
	o, store := newTestOrchestrator(t, &fakeBackend{name: inference.BackendFastDirect})

	_, err := o.Generate(context.Background(), "a chair", ModeAdvanced)
	require.Error(t, err)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrBackendUnavailable, typed.Code)
	assert.Equal(t, http.StatusServiceUnavailable, typed.HTTPStatus)
	assert.True(t, typed.Retryable)
	assert.Equal(t, 0, store.Count())
}

func TestGenerateRemoteURLResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("remote-glb"))
	}))
	defer srv.Close()

	backend := &fakeBackend{name: inference.BackendFastDirect, result: srv.URL + "/file.glb"}
	o, store := newTestOrchestrator(t, backend)

	id, err := o.Generate(context.Background(), "a boat", ModeBasic)
	require.NoError(t, err)

	rec, _ := store.Get(id)
	assert.Equal(t, registry.StatusCompleted, rec.Status)
	data, err := os.ReadFile(rec.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "remote-glb", string(data))
}

func TestGenerateRemoteURLDownloadFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	backend := &fakeBackend{name: inference.BackendFastDirect, result: srv.URL + "/file.glb"}
	o, store := newTestOrchestrator(t, backend)

	id, err := o.Generate(context.Background(), "a boat", ModeBasic)
	require.Error(t, err)

	rec, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, registry.StatusFailed, rec.Status)
}

func TestGenerateBackendErrorMarksFailed(t *testing.T) {
	backend := &fakeBackend{name: inference.BackendFastDirect, err: errors.New("ZeroGPU quota exceeded")}
	o, store := newTestOrchestrator(t, backend)

	id, err := o.Generate(context.Background(), "a lamp", ModeBasic)
	require.Error(t, err)

	var typed *types.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, types.ErrQuotaExceeded, typed.Code)
	assert.Equal(t, msgBusy, typed.Message)

	rec, _ := store.Get(id)
	assert.Equal(t, registry.StatusFailed, rec.Status)
}

func TestGenerateUnusableResultMarksFailed(t *testing.T) {
	backend := &fakeBackend{name: inference.BackendFastDirect, result: map[string]any{"unexpected": 1}}
	o, store := newTestOrchestrator(t, backend)

	id, err := o.Generate(context.Background(), "a cup", ModeBasic)
	require.Error(t, err)

	rec, _ := store.Get(id)
	assert.Equal(t, registry.StatusFailed, rec.Status)
}

func TestGenerateMissingLocalFileMarksFailed(t *testing.T) {
	backend := &fakeBackend{name: inference.BackendFastDirect, result: "/nonexistent/out.glb"}
	o, store := newTestOrchestrator(t, backend)

	id, err := o.Generate(context.Background(), "a cup", ModeBasic)
	require.Error(t, err)

	rec, _ := store.Get(id)
	assert.Equal(t, registry.StatusFailed, rec.Status)
}

func TestGenerateFromImage(t *testing.T) {
	src := writeArtifact(t, "mesh.glb")
	backend := &fakeBackend{name: inference.BackendImageTo3DA, result: src}
	o, store := newTestOrchestrator(t, backend)

	img := writeArtifact(t, "photo.png")
	id, err := o.GenerateFromImage(context.Background(), img, "photo.png", ModeBasic)
	require.NoError(t, err)

	rec, _ := store.Get(id)
	assert.Equal(t, registry.StatusCompleted, rec.Status)
	assert.Equal(t, "image upload: photo.png", rec.Prompt)
}

func TestGenerateFromImageRequiresPath(t *testing.T) {
	o, store := newTestOrchestrator(t, &fakeBackend{name: inference.BackendImageTo3DA})

	_, err := o.GenerateFromImage(context.Background(), "", "photo.png", ModeBasic)
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidRequest, types.GetErrorCode(err))
	assert.Equal(t, 0, store.Count())
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want types.ErrorCode
		msg  string
	}{
		{"timeout", context.DeadlineExceeded, types.ErrUpstreamTimeout, msgTimeout},
		{"quota", errors.New("GPU quota exhausted"), types.ErrQuotaExceeded, msgBusy},
		{"rate limit", errors.New("upstream returned 429"), types.ErrQuotaExceeded, msgBusy},
		{"network", errors.New("dial tcp: connection refused"), types.ErrRemoteCallFailed, msgNetwork},
		{"generic", errors.New("unexpected payload"), types.ErrRemoteCallFailed, msgGeneric},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err, "fast-direct")
			assert.Equal(t, tc.want, got.Code)
			assert.Equal(t, tc.msg, got.Message)
			assert.Equal(t, "fast-direct", got.Backend)
			assert.ErrorIs(t, got, tc.err)
		})
	}
}

func TestClassifyPassesThroughTypedErrors(t *testing.T) {
	orig := types.NewError(types.ErrArtifactIO, msgArtifact).WithHTTPStatus(500)
	wrapped := fmt.Errorf("invoke: %w", orig)
	got := classify(wrapped, "fast-direct")
	assert.Same(t, orig, got)
}

func TestCleanerRemovesFile(t *testing.T) {
	path := writeArtifact(t, "served.glb")

	var cleaned int
	c := NewCleaner(func() { cleaned++ }, zaptest.NewLogger(t))
	c.Schedule(path)
	c.Schedule(filepath.Join(t.TempDir(), "never-existed.glb"))
	c.Close()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Equal(t, 1, cleaned)
}
