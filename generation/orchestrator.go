// Package generation orchestrates the request-level protocol: pick a
// backend by mode, invoke it off the request path, normalize its result
// into a managed local artifact, and keep the registry consistent.
package generation

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/promptar/promptar/inference"
	"github.com/promptar/promptar/registry"
	"github.com/promptar/promptar/types"
)

// Mode names callers may request.
const (
	ModeBasic    = "basic"
	ModeAdvanced = "advanced"
)

// textModeBackends maps a text-generation mode to its backend handle.
var textModeBackends = map[string]string{
	ModeBasic:    inference.BackendFastDirect,
	ModeAdvanced: inference.BackendTexturedDirect,
}

// imageModeBackends maps an image-generation mode to its backend handle.
var imageModeBackends = map[string]string{
	ModeBasic:    inference.BackendImageTo3DA,
	ModeAdvanced: inference.BackendImageTo3DB,
}

// Recorder receives orchestrator metrics. A nil Recorder disables them.
type Recorder interface {
	GenerationStarted()
	GenerationFinished()
	RecordGeneration(backend, status string, duration time.Duration)
}

// Config bounds the orchestrator's resource usage.
type Config struct {
	// StorageDir is the managed artifact directory. It is not a config
	// file knob of its own: the loader populates it from the storage
	// section.
	StorageDir string `yaml:"-"`
	// CallTimeout caps one remote generation call, detached from the
	// client's connection: the call runs to completion or timeout
	// regardless of client presence.
	CallTimeout time.Duration `yaml:"call_timeout"`
	// FetchTimeout caps downloading a result file from a remote URL.
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
	// MaxConcurrent bounds in-flight remote generations.
	MaxConcurrent int64 `yaml:"max_concurrent"`
}

// DefaultConfig returns production limits.
func DefaultConfig() Config {
	return Config{
		StorageDir:    "./models",
		CallTimeout:   5 * time.Minute,
		FetchTimeout:  2 * time.Minute,
		MaxConcurrent: 4,
	}
}

// Orchestrator coordinates generations across the backend pool.
type Orchestrator struct {
	pool     *inference.Pool
	store    *registry.Store
	cfg      Config
	sem      *semaphore.Weighted
	fetch    *http.Client
	recorder Recorder
	logger   *zap.Logger
}

// New creates an orchestrator. recorder may be nil.
func New(pool *inference.Pool, store *registry.Store, cfg Config, recorder Recorder, logger *zap.Logger) *Orchestrator {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 5 * time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 2 * time.Minute
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	return &Orchestrator{
		pool:     pool,
		store:    store,
		cfg:      cfg,
		sem:      semaphore.NewWeighted(cfg.MaxConcurrent),
		fetch:    newFetchClient(cfg.FetchTimeout),
		recorder: recorder,
		logger:   logger.With(zap.String("component", "orchestrator")),
	}
}

// Generate runs a text-driven generation and returns the record id.
// Validation failures reject before any record or remote side effect.
func (o *Orchestrator) Generate(ctx context.Context, prompt, mode string) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", types.NewError(types.ErrInvalidRequest, "Prompt cannot be empty").
			WithHTTPStatus(http.StatusBadRequest)
	}
	backend, err := o.selectBackend(textModeBackends, mode)
	if err != nil {
		return "", err
	}
	return o.run(ctx, backend, prompt, &inference.Request{Prompt: prompt})
}

// GenerateFromImage runs an image-driven generation. filename only feeds
// the synthetic prompt recorded for the artifact.
func (o *Orchestrator) GenerateFromImage(ctx context.Context, imagePath, filename, mode string) (string, error) {
	if imagePath == "" {
		return "", types.NewError(types.ErrInvalidRequest, "An image upload is required").
			WithHTTPStatus(http.StatusBadRequest)
	}
	backend, err := o.selectBackend(imageModeBackends, mode)
	if err != nil {
		return "", err
	}
	prompt := "image upload: " + filename
	return o.run(ctx, backend, prompt, &inference.Request{ImagePath: imagePath})
}

func (o *Orchestrator) selectBackend(modes map[string]string, mode string) (inference.Backend, error) {
	name, ok := modes[mode]
	if !ok {
		return nil, types.NewError(types.ErrInvalidRequest, "Unknown generation mode: "+mode).
			WithHTTPStatus(http.StatusBadRequest)
	}
	backend, ok := o.pool.Get(name)
	if !ok {
		return nil, types.NewError(types.ErrBackendUnavailable, msgUnavailable).
			WithHTTPStatus(http.StatusServiceUnavailable).
			WithRetryable(true).
			WithBackend(name)
	}
	return backend, nil
}

// run creates the record, dispatches the remote call to a worker, and
// settles the record in a terminal state before returning.
func (o *Orchestrator) run(ctx context.Context, backend inference.Backend, prompt string, req *inference.Request) (string, error) {
	id := o.store.Create(prompt)
	logger := o.logger.With(
		zap.String("model_id", id),
		zap.String("backend", backend.Name()),
	)
	logger.Info("generation accepted", zap.String("prompt", truncate(prompt, 60)))

	if err := o.sem.Acquire(ctx, 1); err != nil {
		o.store.SetStatus(id, registry.StatusFailed)
		return id, types.NewError(types.ErrInternalError, msgGeneric).
			WithHTTPStatus(http.StatusInternalServerError).
			WithCause(err)
	}

	if o.recorder != nil {
		o.recorder.GenerationStarted()
	}
	start := time.Now()

	done := make(chan error, 1)
	go func() {
		defer o.sem.Release(1)
		done <- o.invoke(id, backend, req)
	}()
	err := <-done

	duration := time.Since(start)
	if o.recorder != nil {
		o.recorder.GenerationFinished()
	}

	if err != nil {
		o.store.SetStatus(id, registry.StatusFailed)
		classified := classify(err, backend.Name())
		if o.recorder != nil {
			o.recorder.RecordGeneration(backend.Name(), "failed", duration)
		}
		logger.Error("generation failed",
			zap.Duration("duration", duration),
			zap.String("code", string(classified.Code)),
			zap.Error(err),
		)
		return id, classified
	}

	o.store.SetStatus(id, registry.StatusCompleted)
	if o.recorder != nil {
		o.recorder.RecordGeneration(backend.Name(), "completed", duration)
	}
	logger.Info("generation completed", zap.Duration("duration", duration))
	return id, nil
}

// invoke performs the remote call and materializes the artifact. The call
// context is detached from the request so a disconnecting client never
// cancels the remote work mid-flight.
func (o *Orchestrator) invoke(id string, backend inference.Backend, req *inference.Request) error {
	callCtx, cancel := context.WithTimeout(context.Background(), o.cfg.CallTimeout)
	defer cancel()

	raw, err := backend.Generate(callCtx, req)
	if err != nil {
		return err
	}

	result, err := inference.NormalizeResult(raw)
	if err != nil {
		return err
	}

	path, err := o.materialize(callCtx, result, id)
	if err != nil {
		return err
	}

	o.store.AttachFile(id, path, "glb")
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
