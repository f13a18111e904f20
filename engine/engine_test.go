package engine

import (
	"bytes"
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/internal/wasmbin"
	"github.com/wippyai/wasm-napi/napi"
	"github.com/wippyai/wasm-napi/value"
)

func newEngine(t *testing.T, cfg *Config) *WazeroEngine {
	t.Helper()
	ctx := context.Background()
	eng, err := NewWazeroEngineWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(ctx) })
	return eng
}

func instantiate(t *testing.T, eng *WazeroEngine, bin []byte, cfg *InstanceConfig) *WazeroInstance {
	t.Helper()
	ctx := context.Background()
	mod, err := eng.LoadModule(ctx, bin)
	require.NoError(t, err)
	inst, err := mod.InstantiateWithConfig(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(ctx) })
	return inst
}

func exportedFunction(t *testing.T, ctx context.Context, exports value.Value, name string) value.Value {
	t.Helper()
	obj, ok := exports.(*value.Object)
	require.True(t, ok, "exports = %s", value.Describe(exports))
	fn, err := obj.Get(ctx, value.StringKey(name))
	require.NoError(t, err)
	return fn
}

func errorMessage(t *testing.T, ctx context.Context, v value.Value) string {
	t.Helper()
	require.True(t, value.IsError(v), "thrown %s, want an error", value.Describe(v))
	msg, err := v.(*value.Object).Get(ctx, value.StringKey("message"))
	require.NoError(t, err)
	return string(msg.(value.String))
}

func TestNewWazeroEngineWithConfig(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg        *Config
		name       string
		wantImport string
	}{
		{nil, "nil config", DefaultImportModule},
		{&Config{}, "default config", DefaultImportModule},
		{&Config{MemoryLimitPages: 256}, "16MB limit", DefaultImportModule},
		{&Config{ImportModule: "env"}, "custom import module", "env"},
		{&Config{CacheDir: t.TempDir()}, "compilation cache", DefaultImportModule},
		{&Config{CloseOnContextDone: true}, "close on context done", DefaultImportModule},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine, err := NewWazeroEngineWithConfig(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("NewWazeroEngineWithConfig failed: %v", err)
			}
			defer engine.Close(ctx)

			if engine.runtime == nil {
				t.Error("engine runtime should not be nil")
			}
			if got := engine.ImportModule(); got != tc.wantImport {
				t.Errorf("ImportModule() = %q, want %q", got, tc.wantImport)
			}
		})
	}
}

func TestLoadModule_RejectsUnknownImport(t *testing.T) {
	sig := wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I32}, Results: []wasmbin.ValType{wasmbin.I32}}
	tests := []struct {
		name   string
		cfg    *Config
		module string
		field  string
	}{
		{"unknown napi function", nil, DefaultImportModule, "napi_create_teapot"},
		{"foreign module", nil, "env", "napi_create_object"},
		{"napi under a custom import module", &Config{ImportModule: "env"}, DefaultImportModule, "napi_create_object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := wasmbin.New()
			m.Import(tt.module, tt.field, sig)

			_, err := newEngine(t, tt.cfg).LoadModule(context.Background(), m.Encode())
			require.Error(t, err)
			var e *errors.Error
			require.True(t, stderrors.As(err, &e))
			require.Equal(t, errors.KindNotFound, e.Kind)
			require.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestLoadModule_RejectsInvalidBinary(t *testing.T) {
	eng := newEngine(t, nil)
	_, err := eng.LoadModule(context.Background(), []byte("not wasm"))
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	require.Equal(t, errors.PhaseLoad, e.Phase)
}

func TestLoadModule_Imports(t *testing.T) {
	eng := newEngine(t, nil)
	mod, err := eng.LoadModule(context.Background(), wasmbin.Addon(DefaultImportModule))
	require.NoError(t, err)
	require.Contains(t, mod.Imports(), "napi_create_function")
	require.Contains(t, mod.Imports(), "napi_get_cb_info")
	require.False(t, mod.needsWASI)
}

func TestAddon_Call(t *testing.T) {
	ctx := context.Background()
	inst := instantiate(t, newEngine(t, nil), wasmbin.Addon(DefaultImportModule), nil)

	exports, err := inst.Env().Register(ctx)
	require.NoError(t, err)

	add := exportedFunction(t, ctx, exports, "add")
	got, err := inst.Env().Realm().Call(ctx, add, value.Undefined, value.Number(2), value.Number(3))
	require.NoError(t, err)
	require.Equal(t, value.Number(5), got)
	require.False(t, inst.Env().IsPending())
}

func TestAddon_CustomImportModule(t *testing.T) {
	ctx := context.Background()
	inst := instantiate(t, newEngine(t, &Config{ImportModule: "env"}), wasmbin.Addon("env"), nil)

	exports, err := inst.Env().Register(ctx)
	require.NoError(t, err)
	add := exportedFunction(t, ctx, exports, "add")
	got, err := inst.Env().Realm().Call(ctx, add, value.Undefined, value.Number(0.5), value.Number(0.25))
	require.NoError(t, err)
	require.Equal(t, value.Number(0.75), got)
}

func TestAddon_GuestFailures(t *testing.T) {
	ctx := context.Background()
	inst := instantiate(t, newEngine(t, nil), wasmbin.Addon(DefaultImportModule), nil)
	exports, err := inst.Env().Register(ctx)
	require.NoError(t, err)
	realm := inst.Env().Realm()

	t.Run("trap", func(t *testing.T) {
		_, err := realm.Call(ctx, exportedFunction(t, ctx, exports, "boom"), value.Undefined)
		thrown, ok := value.Thrown(err)
		require.True(t, ok, "err = %v", err)
		require.Contains(t, errorMessage(t, ctx, thrown), "unreachable")
	})

	t.Run("throw", func(t *testing.T) {
		_, err := realm.Call(ctx, exportedFunction(t, ctx, exports, "fail"), value.Undefined)
		thrown, ok := value.Thrown(err)
		require.True(t, ok, "err = %v", err)
		require.Equal(t, "broken", errorMessage(t, ctx, thrown))
	})

	// The instance stays usable after both failures.
	got, err := realm.Call(ctx, exportedFunction(t, ctx, exports, "add"), value.Undefined, value.Number(1), value.Number(1))
	require.NoError(t, err)
	require.Equal(t, value.Number(2), got)
}

func TestInstances_AreIsolated(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)
	bin := wasmbin.Addon(DefaultImportModule)
	a := instantiate(t, eng, bin, nil)
	b := instantiate(t, eng, bin, nil)
	require.NotSame(t, a.Env(), b.Env())

	expA, err := a.Env().Register(ctx)
	require.NoError(t, err)
	expB, err := b.Env().Register(ctx)
	require.NoError(t, err)
	require.NotSame(t, expA, expB)

	got, err := b.Env().Realm().Call(ctx, exportedFunction(t, ctx, expB, "add"), value.Undefined, value.Number(20), value.Number(22))
	require.NoError(t, err)
	require.Equal(t, value.Number(42), got)
}

func TestCallIndirect_Errors(t *testing.T) {
	ctx := context.Background()
	inst := instantiate(t, newEngine(t, nil), wasmbin.Addon(DefaultImportModule), nil)

	_, err := inst.CallIndirect(ctx, 99, 0, 0)
	require.Error(t, err, "entry out of range")

	// Slot 1 holds add, a callback; calling it as a finalizer mismatches.
	_, err = inst.CallIndirect(ctx, 1, 0, 0, 0)
	require.Error(t, err, "signature mismatch")

	_, err = inst.CallIndirect(ctx, 1, 0, 0, 0, 0, 0)
	require.Error(t, err, "unsupported arity")
}

// allocModule exports a bump malloc starting at 1024 and a free that records
// the last freed pointer at 104.
func allocModule() []byte {
	m := wasmbin.New()
	i32 := []wasmbin.ValType{wasmbin.I32}
	malloc := m.Func(wasmbin.FuncType{Params: i32, Results: i32}, i32, wasmbin.Code(
		wasmbin.Load32(100), wasmbin.LocalSet(1),
		wasmbin.I32Const(100), wasmbin.LocalGet(1), wasmbin.LocalGet(0), wasmbin.Op(wasmbin.I32Add), wasmbin.I32Store(0),
		wasmbin.LocalGet(1),
		wasmbin.Op(wasmbin.End),
	))
	free := m.Func(wasmbin.FuncType{Params: i32}, nil, wasmbin.Code(
		wasmbin.I32Const(104), wasmbin.LocalGet(0), wasmbin.I32Store(0),
		wasmbin.Op(wasmbin.End),
	))
	m.Memory(1)
	m.Export("malloc", malloc)
	m.Export("free", free)
	m.Data(100, []byte{0x00, 0x04, 0x00, 0x00})
	return m.Encode()
}

func TestAllocator(t *testing.T) {
	inst := instantiate(t, newEngine(t, nil), allocModule(), nil)
	a := inst.Allocator()
	require.NotNil(t, a)

	p1, err := a.Alloc(16, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(1024), p1)
	p2, err := a.Alloc(8, 8)
	require.NoError(t, err)
	require.Equal(t, uint32(1040), p2)

	a.Free(p1, 16, 8)
	freed, err := inst.Memory().ReadU32(104)
	require.NoError(t, err)
	require.Equal(t, p1, freed)
}

func TestAllocator_Missing(t *testing.T) {
	inst := instantiate(t, newEngine(t, nil), wasmbin.Addon(DefaultImportModule), nil)
	require.Nil(t, inst.Allocator())
}

func TestAllocator_Failures(t *testing.T) {
	m := wasmbin.New()
	i32 := []wasmbin.ValType{wasmbin.I32}
	malloc := m.Func(wasmbin.FuncType{Params: i32, Results: i32}, nil, wasmbin.Code(
		wasmbin.I32Const(0),
		wasmbin.Op(wasmbin.End),
	))
	free := m.Func(wasmbin.FuncType{Params: i32}, nil, wasmbin.Code(wasmbin.Op(wasmbin.End)))
	m.Memory(1)
	m.Export("malloc", malloc)
	m.Export("free", free)

	tests := []struct {
		name string
		inst *WazeroInstance
		kind errors.Kind
	}{
		{"malloc returns NULL", instantiate(t, newEngine(t, nil), m.Encode(), nil), errors.KindAllocation},
		{"no allocator exports", instantiate(t, newEngine(t, nil), wasmbin.Addon(DefaultImportModule), nil), errors.KindNotInitialized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.inst.alloc.Alloc(16, 8)
			var e *errors.Error
			require.True(t, stderrors.As(err, &e), "err = %v", err)
			require.Equal(t, tt.kind, e.Kind)
		})
	}
}

func TestMemory(t *testing.T) {
	inst := instantiate(t, newEngine(t, nil), allocModule(), nil)
	mem := inst.Memory()

	require.NoError(t, mem.WriteU8(0, 0xAB))
	require.NoError(t, mem.WriteU16(2, 0xBEEF))
	require.NoError(t, mem.WriteU64(8, 0x0102030405060708))

	b, err := mem.ReadU8(0)
	require.NoError(t, err)
	require.Equal(t, uint8(0xAB), b)
	h, err := mem.ReadU16(2)
	require.NoError(t, err)
	require.Equal(t, uint16(0xBEEF), h)
	w, err := mem.ReadU64(8)
	require.NoError(t, err)
	require.Equal(t, uint64(0x0102030405060708), w)
	require.Equal(t, uint32(65536), inst.MemorySize())

	_, err = mem.ReadU32(65534)
	require.Error(t, err)
	require.Error(t, mem.Write(65535, []byte{1, 2}))
}

func TestMemory_Absent(t *testing.T) {
	inst := instantiate(t, newEngine(t, nil), wasmbin.New().Encode(), nil)
	_, err := inst.Memory().ReadU32(0)
	require.Error(t, err)
	require.Equal(t, uint32(0), inst.MemorySize())
	require.NotNil(t, inst.Env())
	require.Nil(t, guestMemory(inst.Module()))
	require.NoError(t, inst.Close(context.Background()))
}

func TestMemoryLimit(t *testing.T) {
	eng := newEngine(t, &Config{MemoryLimitPages: 1})
	m := wasmbin.New()
	m.Memory(2)
	_, err := eng.LoadModule(context.Background(), m.Encode())
	require.Error(t, err)
}

func TestInitialize(t *testing.T) {
	m := wasmbin.New()
	init := m.Func(wasmbin.FuncType{}, nil, wasmbin.Code(wasmbin.Store32(64, 1), wasmbin.Op(wasmbin.End)))
	m.Memory(1)
	m.Export(initializeExport, init)

	inst := instantiate(t, newEngine(t, nil), m.Encode(), nil)
	got, err := inst.Memory().ReadU32(64)
	require.NoError(t, err)
	require.Equal(t, uint32(1), got)
}

func TestFatalError_TrapsGuest(t *testing.T) {
	ctx := context.Background()
	m := wasmbin.New()
	fatal := m.Import(DefaultImportModule, "napi_fatal_error", wasmbin.FuncType{
		Params: []wasmbin.ValType{wasmbin.I32, wasmbin.I32, wasmbin.I32, wasmbin.I32},
	})
	die := m.Func(wasmbin.FuncType{}, nil, wasmbin.Code(
		wasmbin.I32Const(16), wasmbin.I32Const(4), wasmbin.I32Const(32), wasmbin.I32Const(3),
		wasmbin.Call(fatal),
		// Never reached: the host aborts the call.
		wasmbin.Store32(64, 1),
		wasmbin.Op(wasmbin.End),
	))
	m.Memory(1)
	m.Export("die", die)
	m.CString(16, "here")
	m.CString(32, "bad")

	var aborted error
	inst := instantiate(t, newEngine(t, nil), m.Encode(), &InstanceConfig{
		EnvOptions: []napi.Option{napi.WithAbortHook(func(err error) { aborted = err })},
	})

	_, ok, err := inst.CallExport(ctx, "die")
	require.True(t, ok)
	require.Error(t, err)
	require.Error(t, aborted)
	require.Contains(t, aborted.Error(), "bad")
	require.Error(t, inst.Env().Err())

	reached, err := inst.Memory().ReadU32(64)
	require.NoError(t, err)
	require.Zero(t, reached)
}

func TestWASI_Stdout(t *testing.T) {
	ctx := context.Background()
	m := wasmbin.New()
	i32 := []wasmbin.ValType{wasmbin.I32}
	fdWrite := m.Import(wasiModule, "fd_write", wasmbin.FuncType{
		Params:  []wasmbin.ValType{wasmbin.I32, wasmbin.I32, wasmbin.I32, wasmbin.I32},
		Results: i32,
	})
	hello := m.Func(wasmbin.FuncType{Results: i32}, nil, wasmbin.Code(
		wasmbin.Store32(200, 300),
		wasmbin.Store32(204, 3),
		wasmbin.I32Const(1), wasmbin.I32Const(200), wasmbin.I32Const(1), wasmbin.I32Const(208),
		wasmbin.Call(fdWrite),
		wasmbin.Op(wasmbin.End),
	))
	m.Memory(1)
	m.Export("hello", hello)
	m.Data(300, []byte("hi\n"))

	var stdout bytes.Buffer
	inst := instantiate(t, newEngine(t, nil), m.Encode(), &InstanceConfig{Stdout: &stdout})

	res, ok, err := inst.CallExport(ctx, "hello")
	require.True(t, ok)
	require.NoError(t, err)
	require.Equal(t, uint64(0), res[0])
	require.Equal(t, "hi\n", stdout.String())

	_, ok, err = inst.CallExport(ctx, "missing")
	require.False(t, ok)
	require.NoError(t, err)
}

func TestClose_RunsCleanupAndDetaches(t *testing.T) {
	ctx := context.Background()
	eng := newEngine(t, nil)
	mod, err := eng.LoadModule(ctx, wasmbin.Addon(DefaultImportModule))
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)

	guest := inst.Module()
	require.Same(t, inst, eng.lookup(guest))
	require.NoError(t, inst.Close(ctx))
	require.Nil(t, eng.lookup(guest))
	require.NoError(t, inst.Close(ctx))
}
