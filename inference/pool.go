package inference

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"

	"go.uber.org/zap"

	"github.com/promptar/promptar/internal/retry"
)

// Pool owns the backend handles. Handles are initialized independently at
// startup and are read-only afterwards; a handle whose remote service
// could not be reached is simply absent, which callers must tolerate.
type Pool struct {
	mu       sync.RWMutex
	backends map[string]Backend
	logger   *zap.Logger
}

// backendFactory builds one backend against its space with the given
// token ("" for anonymous).
type backendFactory func(ctx context.Context, token string) (Backend, error)

// InitFailureHook is notified when a handle gives up initializing.
type InitFailureHook func(backend string)

// NewPool initializes every configured handle concurrently and returns
// once all attempts have settled. Initialization failures never abort
// startup; the failed handle stays absent.
func NewPool(ctx context.Context, cfg Config, logger *zap.Logger, onInitFailure InitFailureHook) *Pool {
	p := &Pool{
		backends: make(map[string]Backend),
		logger:   logger.With(zap.String("component", "backend_pool")),
	}

	specs := []struct {
		name    string
		space   SpaceConfig
		factory backendFactory
	}{
		{BackendFastDirect, cfg.FastDirect, func(ctx context.Context, token string) (Backend, error) {
			client, err := NewSpaceClient(ctx, cfg.FastDirect.Space, token, cfg.FastDirect.Timeout)
			if err != nil {
				return nil, err
			}
			return &shapEBackend{client: client}, nil
		}},
		{BackendTexturedDirect, cfg.TexturedDirect, func(ctx context.Context, token string) (Backend, error) {
			client, err := NewSpaceClient(ctx, cfg.TexturedDirect.Space, token, cfg.TexturedDirect.Timeout)
			if err != nil {
				return nil, err
			}
			return &trellisBackend{client: client}, nil
		}},
		{BackendImageTo3DA, cfg.ImageTo3DA, func(ctx context.Context, token string) (Backend, error) {
			client, err := NewSpaceClient(ctx, cfg.ImageTo3DA.Space, token, cfg.ImageTo3DA.Timeout)
			if err != nil {
				return nil, err
			}
			return &instantMeshBackend{client: client}, nil
		}},
		{BackendImageTo3DB, cfg.ImageTo3DB, func(ctx context.Context, token string) (Backend, error) {
			client, err := NewSpaceClient(ctx, cfg.ImageTo3DB.Space, token, cfg.ImageTo3DB.Timeout)
			if err != nil {
				return nil, err
			}
			return &hunyuanBackend{client: client}, nil
		}},
	}

	var wg sync.WaitGroup
	for _, spec := range specs {
		if spec.space.Disabled || spec.space.Space == "" {
			p.logger.Info("backend disabled", zap.String("backend", spec.name))
			continue
		}
		wg.Add(1)
		go func(name string, factory backendFactory) {
			defer wg.Done()
			p.initBackend(ctx, name, factory, cfg, onInitFailure)
		}(spec.name, spec.factory)
	}
	wg.Wait()

	return p
}

// initBackend tries anonymous construction first so services with
// anonymous access do not consume token quota, falls back to the token,
// and backs off exponentially between rounds.
func (p *Pool) initBackend(ctx context.Context, name string, factory backendFactory, cfg Config, onInitFailure InitFailureHook) {
	policy := retry.DefaultPolicy()
	if cfg.InitRetries > 0 {
		policy.MaxRetries = cfg.InitRetries
	}
	if cfg.InitRetryDelay > 0 {
		policy.InitialDelay = cfg.InitRetryDelay
	}
	retryer := retry.New(policy, p.logger.With(zap.String("backend", name)))

	var backend Backend
	err := retryer.Do(ctx, func() error {
		b, anonErr := factory(ctx, "")
		if anonErr == nil {
			backend = b
			return nil
		}
		if cfg.Token == "" {
			return anonErr
		}
		b, tokenErr := factory(ctx, cfg.Token)
		if tokenErr != nil {
			// The anonymous error is the one worth surfacing when both
			// attempts fail the same way.
			return errors.Join(anonErr, tokenErr)
		}
		backend = b
		return nil
	})

	if err != nil {
		// Timeouts usually mean a cold or sleeping remote service rather
		// than a permanent failure; call that out for operators.
		if isTimeout(err) {
			p.logger.Warn("backend initialization timed out, service may be cold",
				zap.String("backend", name),
				zap.Error(err),
			)
		} else {
			p.logger.Warn("backend initialization failed, handle absent",
				zap.String("backend", name),
				zap.Error(err),
			)
		}
		if onInitFailure != nil {
			onInitFailure(name)
		}
		return
	}

	p.mu.Lock()
	p.backends[name] = backend
	p.mu.Unlock()

	p.logger.Info("backend initialized", zap.String("backend", name))
}

// Get returns the named handle, or false if it is absent.
func (p *Pool) Get(name string) (Backend, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	b, ok := p.backends[name]
	return b, ok
}

// Available lists the names of initialized handles.
func (p *Pool) Available() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	names := make([]string, 0, len(p.backends))
	for name := range p.backends {
		names = append(names, name)
	}
	return names
}

// set installs a handle directly; tests use it to build pools with fakes.
func (p *Pool) set(name string, backend Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backends[name] = backend
}

// NewStaticPool builds a pool from pre-constructed handles, bypassing
// remote initialization. Intended for tests.
func NewStaticPool(logger *zap.Logger, backends ...Backend) *Pool {
	p := &Pool{
		backends: make(map[string]Backend),
		logger:   logger.With(zap.String("component", "backend_pool")),
	}
	for _, b := range backends {
		p.set(b.Name(), b)
	}
	return p
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
