package engine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/davidmdm/x/xerr"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/internal/xsync"
	"github.com/wippyai/wasm-napi/napi"
)

const (
	// DefaultImportModule is the import module N-API guests link against.
	DefaultImportModule = "napi"

	wasiModule = "wasi_snapshot_preview1"
)

// WazeroEngine runs N-API guests on a wazero runtime.
type WazeroEngine struct {
	runtime      wazero.Runtime
	cache        wazero.CompilationCache
	importModule string

	wasiInitMu   sync.Mutex
	wasiInitDone atomic.Bool
	napiInitMu   sync.Mutex
	napiInitDone atomic.Bool

	// instances maps a guest module to the instance serving its napi imports.
	instances xsync.Map[api.Module, *WazeroInstance]
}

// Config holds configuration for engine creation
type Config struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// CacheDir persists compiled modules across processes. Empty disables
	// the on-disk cache.
	CacheDir string

	// ImportModule names the host module exporting napi_* functions.
	// Empty means DefaultImportModule.
	ImportModule string

	// CloseOnContextDone stops running guest code when the call context is
	// cancelled.
	CloseOnContextDone bool
}

// NewWazeroEngine creates a new wazero-based engine
func NewWazeroEngine(ctx context.Context) (*WazeroEngine, error) {
	return NewWazeroEngineWithConfig(ctx, nil)
}

// NewWazeroEngineWithConfig creates a new engine with custom configuration
func NewWazeroEngineWithConfig(ctx context.Context, cfg *Config) (*WazeroEngine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()
	e := &WazeroEngine{importModule: DefaultImportModule}

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CacheDir != "" {
			cache, err := wazero.NewCompilationCacheWithDir(cfg.CacheDir)
			if err != nil {
				return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidInput, err, "open compilation cache")
			}
			runtimeCfg = runtimeCfg.WithCompilationCache(cache)
			e.cache = cache
		}
		if cfg.ImportModule != "" {
			e.importModule = cfg.ImportModule
		}
		if cfg.CloseOnContextDone {
			runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
		}
	}

	e.runtime = wazero.NewRuntimeWithConfig(ctx, runtimeCfg)
	return e, nil
}

// ImportModule returns the host module name napi functions are exported
// under.
func (e *WazeroEngine) ImportModule() string {
	return e.importModule
}

// LoadModule compiles a core module and checks its napi imports against the
// operations the host implements. Functions may only be imported from the
// napi module and wasi_snapshot_preview1.
func (e *WazeroEngine) LoadModule(ctx context.Context, wasmBytes []byte) (*WazeroModule, error) {
	compiled, err := e.runtime.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	m := &WazeroModule{engine: e, compiled: compiled}
	for _, def := range compiled.ImportedFunctions() {
		module, name, _ := def.Import()
		switch module {
		case e.importModule:
			op, ok := napi.Lookup(name)
			if !ok {
				_ = compiled.Close(ctx)
				return nil, errors.NotFound(errors.PhaseLoad, "napi function", name)
			}
			m.imports = append(m.imports, op.Name)
		case wasiModule:
			m.needsWASI = true
		default:
			_ = compiled.Close(ctx)
			return nil, errors.NotFound(errors.PhaseLoad, "import module", module+"."+name)
		}
	}
	debugf("loaded module: %d napi imports, wasi=%v", len(m.imports), m.needsWASI)
	return m, nil
}

func (e *WazeroEngine) Close(ctx context.Context) error {
	var errs []error
	errs = append(errs, e.runtime.Close(ctx))
	if e.cache != nil {
		errs = append(errs, e.cache.Close(ctx))
	}
	return xerr.MultiErrOrderedFrom("close engine", errs...)
}

// InitWASI instantiates the WASI singleton for this engine's runtime.
// Safe for concurrent calls from multiple modules sharing the same engine.
func (e *WazeroEngine) InitWASI(ctx context.Context) error {
	if e.wasiInitDone.Load() {
		return nil
	}

	e.wasiInitMu.Lock()
	defer e.wasiInitMu.Unlock()

	if e.wasiInitDone.Load() {
		return nil
	}

	if e.runtime.Module(wasiModule) != nil {
		e.wasiInitDone.Store(true)
		return nil
	}

	if _, err := InstantiateWASI(ctx, e.runtime); err != nil {
		if e.runtime.Module(wasiModule) == nil {
			return fmt.Errorf("instantiate WASI: %w", err)
		}
	}

	e.wasiInitDone.Store(true)
	return nil
}

// InitNAPI instantiates the napi host module. Every guest instance of this
// engine shares it; calls are routed to the calling instance's environment.
func (e *WazeroEngine) InitNAPI(ctx context.Context) error {
	if e.napiInitDone.Load() {
		return nil
	}

	e.napiInitMu.Lock()
	defer e.napiInitMu.Unlock()

	if e.napiInitDone.Load() {
		return nil
	}

	if _, err := e.hostModule().Instantiate(ctx); err != nil {
		return errors.Registration(e.importModule, "*", err)
	}

	e.napiInitDone.Store(true)
	return nil
}

func (e *WazeroEngine) attach(mod api.Module, inst *WazeroInstance) {
	e.instances.Store(mod, inst)
}

func (e *WazeroEngine) detach(mod api.Module) {
	e.instances.Delete(mod)
}

func (e *WazeroEngine) lookup(mod api.Module) *WazeroInstance {
	inst, _ := e.instances.Load(mod)
	return inst
}
