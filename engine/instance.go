package engine

import (
	"context"
	"crypto/rand"
	stderrors "errors"
	"fmt"
	"io"

	"github.com/davidmdm/x/xerr"
	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental/table"
	"github.com/tetratelabs/wazero/sys"
	"go.uber.org/zap"

	wasmnapi "github.com/wippyai/wasm-napi"
	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/napi"
)

// Reactor modules built by wasi-sdk and emscripten export _initialize to run
// their constructors.
const initializeExport = "_initialize"

// WazeroModule is a compiled N-API guest module.
type WazeroModule struct {
	engine    *WazeroEngine
	compiled  wazero.CompiledModule
	imports   []string
	needsWASI bool
}

// InstanceConfig holds configuration for module instantiation
type InstanceConfig struct {
	Name   string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Args   []string
	Env    map[string]string

	// Mounts maps guest paths to host directories.
	Mounts map[string]string

	// EnvOptions are passed to the napi environment.
	EnvOptions []napi.Option
}

// Imports returns the napi functions the module imports.
func (m *WazeroModule) Imports() []string {
	return m.imports
}

// Close releases the compiled module.
func (m *WazeroModule) Close(ctx context.Context) error {
	return m.compiled.Close(ctx)
}

// Instantiate creates an instance with default configuration.
func (m *WazeroModule) Instantiate(ctx context.Context) (*WazeroInstance, error) {
	return m.InstantiateWithConfig(ctx, nil)
}

// InstantiateWithConfig instantiates the guest, creates its napi environment
// and runs reactor initialization. Registration is left to the caller.
func (m *WazeroModule) InstantiateWithConfig(ctx context.Context, cfg *InstanceConfig) (*WazeroInstance, error) {
	if cfg == nil {
		cfg = &InstanceConfig{}
	}
	if m.needsWASI {
		if err := m.engine.InitWASI(ctx); err != nil {
			return nil, errors.Instantiation(err)
		}
	}
	if err := m.engine.InitNAPI(ctx); err != nil {
		return nil, err
	}

	instance, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, moduleConfig(cfg))
	if err != nil {
		return nil, errors.Instantiation(err)
	}

	inst := &WazeroInstance{
		engine:   m.engine,
		instance: instance,
		alloc:    newAllocator(instance),
	}
	inst.memory = &WazeroMemory{mem: guestMemory(instance)}
	inst.env = napi.NewEnv(inst, cfg.EnvOptions...)
	m.engine.attach(instance, inst)

	if fn := instance.ExportedFunction(initializeExport); fn != nil {
		inst.alloc.setContext(ctx)
		if _, err := fn.Call(ctx); err != nil && !isCleanExit(err) {
			closeErr := inst.Close(ctx)
			return nil, xerr.MultiErrOrderedFrom("", errors.Instantiation(err), closeErr)
		}
	}
	return inst, nil
}

func moduleConfig(cfg *InstanceConfig) wazero.ModuleConfig {
	// Anonymous names allow parallel instantiation of the same module.
	modConfig := wazero.NewModuleConfig().
		WithName(cfg.Name).
		WithStartFunctions().
		WithSysWalltime().
		WithSysNanotime().
		WithRandSource(rand.Reader)

	if cfg.Stdin != nil {
		modConfig = modConfig.WithStdin(cfg.Stdin)
	}
	if cfg.Stdout != nil {
		modConfig = modConfig.WithStdout(cfg.Stdout)
	}
	if cfg.Stderr != nil {
		modConfig = modConfig.WithStderr(cfg.Stderr)
	}
	if len(cfg.Args) > 0 {
		modConfig = modConfig.WithArgs(cfg.Args...)
	}
	for k, v := range cfg.Env {
		modConfig = modConfig.WithEnv(k, v)
	}
	if len(cfg.Mounts) > 0 {
		fsConfig := wazero.NewFSConfig()
		for guest, host := range cfg.Mounts {
			fsConfig = fsConfig.WithDirMount(host, guest)
		}
		modConfig = modConfig.WithFSConfig(fsConfig)
	}
	return modConfig
}

// guestMemory returns the module's memory, or nil when it has none. wazero
// hands back a typed nil for memoryless modules, which only shows up when a
// method is called on it.
func guestMemory(mod api.Module) (mem api.Memory) {
	mem = mod.Memory()
	if mem == nil {
		return nil
	}
	defer func() {
		if recover() != nil {
			mem = nil
		}
	}()
	mem.Size()
	return mem
}

func isCleanExit(err error) bool {
	var exit *sys.ExitError
	return stderrors.As(err, &exit) && exit.ExitCode() == 0
}

// WazeroInstance is a running guest together with its napi environment.
type WazeroInstance struct {
	engine   *WazeroEngine
	instance api.Module
	memory   *WazeroMemory
	alloc    *wazeroAllocator
	env      *napi.Env
}

// Env returns the instance's napi environment.
func (i *WazeroInstance) Env() *napi.Env {
	return i.env
}

// Module returns the underlying wazero module.
func (i *WazeroInstance) Module() api.Module {
	return i.instance
}

func (i *WazeroInstance) Memory() wasmnapi.Memory {
	return i.memory
}

func (i *WazeroInstance) Allocator() wasmnapi.Allocator {
	if !i.alloc.available() {
		return nil
	}
	return i.alloc
}

// MemorySize returns the current size of guest memory in bytes.
func (i *WazeroInstance) MemorySize() uint32 {
	return i.memory.Size()
}

type signature struct {
	params, results []api.ValueType
}

// Function table entries napi calls back into, keyed by parameter count.
var callbackSignatures = map[int]signature{
	// void (*)(void* arg): cleanup hooks
	1: {params: []api.ValueType{api.ValueTypeI32}},
	// napi_value (*)(napi_env, napi_callback_info)
	2: {params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32}, results: []api.ValueType{api.ValueTypeI32}},
	// void (*)(napi_env, void* data, void* hint)
	3: {params: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32}},
}

// CallIndirect calls entry fn of the guest's function table. The signature
// is selected by the number of parameters.
func (i *WazeroInstance) CallIndirect(ctx context.Context, fn uint32, params ...uint64) (res []uint64, err error) {
	sig, ok := callbackSignatures[len(params)]
	if !ok {
		return nil, errors.InvalidInput(errors.PhaseCall, fmt.Sprintf("no callback signature with %d parameters", len(params)))
	}

	f, err := i.lookupFunction(fn, sig)
	if err != nil {
		return nil, err
	}
	i.alloc.setContext(ctx)
	return f.Call(ctx, params...)
}

// lookupFunction resolves a table entry; table.LookupFunction panics on a
// missing entry or a signature mismatch.
func (i *WazeroInstance) lookupFunction(fn uint32, sig signature) (f api.Function, err error) {
	defer func() {
		if r := recover(); r != nil {
			Logger().Debug("function table lookup failed", zap.Uint32("index", fn), zap.Any("reason", r))
			err = errors.Trap("call_indirect", fmt.Errorf("table entry %d: %v", fn, r))
		}
	}()
	return table.LookupFunction(i.instance, 0, fn, sig.params, sig.results), nil
}

func (i *WazeroInstance) CallExport(ctx context.Context, name string, params ...uint64) ([]uint64, bool, error) {
	fn := i.instance.ExportedFunction(name)
	if fn == nil {
		return nil, false, nil
	}
	i.alloc.setContext(ctx)
	res, err := fn.Call(ctx, params...)
	return res, true, err
}

// Close runs the environment's teardown, then closes the guest module.
func (i *WazeroInstance) Close(ctx context.Context) error {
	if i.instance == nil {
		return nil
	}
	i.alloc.setContext(ctx)
	envErr := i.env.Close(ctx)
	i.engine.detach(i.instance)
	modErr := i.instance.Close(ctx)
	i.instance = nil
	return xerr.MultiErrOrderedFrom("close instance", envErr, modErr)
}

var _ napi.Guest = (*WazeroInstance)(nil)
