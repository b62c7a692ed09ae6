package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-embed/errors"
)

// Engine holds the runtime configuration and compilation cache shared by
// every Store created from it. Compiling the same bytes in two stores of one
// engine compiles once.
type Engine struct {
	cache     wazero.CompilationCache
	rtConfig  wazero.RuntimeConfig
	validator wazero.Runtime
	cfg       Config
	mu        sync.Mutex
	closed    bool
}

// New creates an engine. A nil cfg uses DefaultConfig.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var cache wazero.CompilationCache
	if cfg.CompilationCacheDir != "" {
		var err error
		cache, err = wazero.NewCompilationCacheWithDir(cfg.CompilationCacheDir)
		if err != nil {
			return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "compilation cache dir")
		}
	} else {
		cache = wazero.NewCompilationCache()
	}

	var rtConfig wazero.RuntimeConfig
	if cfg.Interpreter {
		rtConfig = wazero.NewRuntimeConfigInterpreter()
	} else {
		rtConfig = wazero.NewRuntimeConfig()
	}
	rtConfig = rtConfig.
		WithCompilationCache(cache).
		WithCloseOnContextDone(cfg.CloseOnContextDone)
	if cfg.MemoryLimitPages > 0 {
		rtConfig = rtConfig.WithMemoryLimitPages(cfg.MemoryLimitPages)
	}

	Logger().Debug("engine created",
		zap.Bool("interpreter", cfg.Interpreter),
		zap.Uint32("memory_limit_pages", cfg.MemoryLimitPages),
		zap.String("cache_dir", cfg.CompilationCacheDir),
	)

	return &Engine{
		cache:    cache,
		rtConfig: rtConfig,
		cfg:      *cfg,
	}, nil
}

// Config returns a copy of the engine configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// NewRuntime creates a runtime that shares the engine's compilation cache.
// The caller owns the runtime.
func (e *Engine) NewRuntime(ctx context.Context) (wazero.Runtime, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil, errors.Closed(errors.PhaseStore, "engine")
	}
	return wazero.NewRuntimeWithConfig(ctx, e.rtConfig), nil
}

// Validate compiles bin in a private runtime and discards the result.
// Closing the compiled module evicts it from the compilation cache, and
// stores compile import-rewritten bytes anyway, so a module is compiled once
// here and once per distinct binding set in each store.
func (e *Engine) Validate(ctx context.Context, bin []byte) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return errors.Closed(errors.PhaseCompile, "engine")
	}
	if e.validator == nil {
		e.validator = wazero.NewRuntimeWithConfig(ctx, e.rtConfig)
	}
	rt := e.validator
	e.mu.Unlock()

	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		return errors.CompileFailed(err)
	}
	return compiled.Close(ctx)
}

// Close releases the validation runtime and the compilation cache. Stores
// created from the engine must be closed first.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	var err error
	if e.validator != nil {
		err = multierr.Append(err, e.validator.Close(ctx))
	}
	err = multierr.Append(err, e.cache.Close(ctx))
	Logger().Debug("engine closed", zap.Error(err))
	return err
}
