package runtime

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-napi/engine"
	"github.com/wippyai/wasm-napi/errors"
)

type Runtime struct {
	engine *engine.WazeroEngine
	log    *zap.Logger
}

type options struct {
	log    *zap.Logger
	engine engine.Config
}

// Option configures a Runtime.
type Option func(*options)

// WithLogger sets the logger used by the runtime and the environments of its
// instances.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithMemoryLimitPages caps guest memory at n 64KiB pages.
func WithMemoryLimitPages(n uint32) Option {
	return func(o *options) {
		o.engine.MemoryLimitPages = n
	}
}

// WithCompilationCache persists compiled modules in dir.
func WithCompilationCache(dir string) Option {
	return func(o *options) {
		o.engine.CacheDir = dir
	}
}

// WithImportModule changes the import module napi functions are provided
// under. Guests built with emscripten import them from "env".
func WithImportModule(name string) Option {
	return func(o *options) {
		o.engine.ImportModule = name
	}
}

// WithCloseOnContextDone interrupts guest code when a call's context ends.
func WithCloseOnContextDone() Option {
	return func(o *options) {
		o.engine.CloseOnContextDone = true
	}
}

func New(ctx context.Context, opts ...Option) (*Runtime, error) {
	o := &options{log: zap.NewNop()}
	for _, opt := range opts {
		opt(o)
	}

	eng, err := engine.NewWazeroEngineWithConfig(ctx, &o.engine)
	if err != nil {
		return nil, errors.Load("create engine", err)
	}

	return &Runtime{
		engine: eng,
		log:    o.log,
	}, nil
}

// Close releases all runtime resources.
// All instances must be closed before calling this.
func (r *Runtime) Close(ctx context.Context) error {
	return r.engine.Close(ctx)
}

// Load compiles an N-API addon. Imports from the napi module that the host
// does not implement are reported here rather than at instantiation.
func (r *Runtime) Load(ctx context.Context, wasm []byte) (*Module, error) {
	wazeroModule, err := r.engine.LoadModule(ctx, wasm)
	if err != nil {
		return nil, err
	}
	r.log.Debug("module loaded", zap.Int("napi_imports", len(wazeroModule.Imports())))

	return &Module{
		runtime:      r,
		wazeroModule: wazeroModule,
	}, nil
}

// LoadFile reads and compiles the addon at path.
func (r *Runtime) LoadFile(ctx context.Context, path string) (*Module, error) {
	wasm, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Load("read "+path, err)
	}
	return r.Load(ctx, wasm)
}
