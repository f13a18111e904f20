package runtime

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/internal/wasmbin"
	"github.com/wippyai/wasm-napi/value"
)

func newRuntime(t *testing.T, opts ...Option) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := New(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close(ctx) })
	return rt
}

func addonInstance(t *testing.T, rt *Runtime, opts ...InstanceOption) *Instance {
	t.Helper()
	ctx := context.Background()
	mod, err := rt.Load(ctx, wasmbin.Addon("napi"))
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = inst.Close(ctx) })
	return inst
}

func TestInstance_Call(t *testing.T) {
	ctx := context.Background()
	inst := addonInstance(t, newRuntime(t))

	got, err := inst.Call(ctx, "add", 2, 3)
	require.NoError(t, err)
	require.Equal(t, value.Number(5), got)

	got, err = inst.Call(ctx, "add", 1.5, int64(-4))
	require.NoError(t, err)
	require.Equal(t, value.Number(-2.5), got)

	text, ok, err := inst.CallJSON(ctx, "add", 40, 2)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "42", text)
}

func TestInstance_CallErrors(t *testing.T) {
	ctx := context.Background()
	inst := addonInstance(t, newRuntime(t))

	tests := []struct {
		name    string
		export  string
		errType value.ErrorType
		message string
	}{
		{"guest throw", "fail", value.Error, "broken"},
		{"guest trap", "boom", value.RuntimeError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inst.Call(ctx, tt.export)
			thrown, ok := value.Thrown(err)
			require.True(t, ok, "err = %v", err)
			require.True(t, value.IsError(thrown))
			ctor := inst.Realm().ErrorConstructor(tt.errType)
			is, err := inst.Realm().InstanceOf(ctx, thrown, ctor)
			require.NoError(t, err)
			require.True(t, is, "thrown %s", value.Inspect(thrown))
			if tt.message != "" {
				msg, err := thrown.(*value.Object).Get(ctx, value.StringKey("message"))
				require.NoError(t, err)
				require.Equal(t, value.String(tt.message), msg)
			}
		})
	}

	t.Run("missing export", func(t *testing.T) {
		_, err := inst.Call(ctx, "mul", 1, 2)
		var e *errors.Error
		require.True(t, stderrors.As(err, &e))
		require.Equal(t, errors.KindNotFound, e.Kind)
	})
}

func TestInstance_Exports(t *testing.T) {
	inst := addonInstance(t, newRuntime(t))
	require.ElementsMatch(t, []string{"add", "boom", "fail"}, inst.ExportNames())
	require.True(t, value.IsObject(inst.Exports()))
}

func TestInstance_Close(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	mod, err := rt.Load(ctx, wasmbin.Addon("napi"))
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)

	require.NoError(t, inst.Close(ctx))
	require.NoError(t, inst.Close(ctx))

	_, err = inst.Call(ctx, "add", 1, 2)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	require.Equal(t, errors.KindNotInitialized, e.Kind)
}

func TestModule_InstantiateTwice(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)
	mod, err := rt.Load(ctx, wasmbin.Addon("napi"))
	require.NoError(t, err)

	a, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer a.Close(ctx)
	b, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer b.Close(ctx)

	require.NotSame(t, a.Env(), b.Env())
	got, err := b.Call(ctx, "add", 1, 1)
	require.NoError(t, err)
	require.Equal(t, value.Number(2), got)
}

func TestModule_Imports(t *testing.T) {
	mod, err := newRuntime(t).Load(context.Background(), wasmbin.Addon("napi"))
	require.NoError(t, err)
	require.Contains(t, mod.Imports(), "napi_set_named_property")
}

func TestRuntime_ImportModule(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t, WithImportModule("env"))

	_, err := rt.Load(ctx, wasmbin.Addon("napi"))
	require.Error(t, err, "napi imports are unresolved under a custom import module")

	mod, err := rt.Load(ctx, wasmbin.Addon("env"))
	require.NoError(t, err)
	inst, err := mod.Instantiate(ctx)
	require.NoError(t, err)
	defer inst.Close(ctx)

	got, err := inst.Call(ctx, "add", 2, 2)
	require.NoError(t, err)
	require.Equal(t, value.Number(4), got)
}

func TestRuntime_Options(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	rt := newRuntime(t,
		WithLogger(zap.New(core)),
		WithMemoryLimitPages(16),
		WithCompilationCache(t.TempDir()),
		WithCloseOnContextDone(),
	)

	inst := addonInstance(t, rt)
	_, err := inst.Call(context.Background(), "add", 1, 2)
	require.NoError(t, err)

	require.NotEmpty(t, logs.FilterMessage("module loaded").All())
	require.NotEmpty(t, logs.FilterMessage("module registered").All())
}

func TestRuntime_LoadFile(t *testing.T) {
	ctx := context.Background()
	rt := newRuntime(t)

	path := filepath.Join(t.TempDir(), "addon.wasm")
	require.NoError(t, os.WriteFile(path, wasmbin.Addon("napi"), 0o644))
	mod, err := rt.LoadFile(ctx, path)
	require.NoError(t, err)
	require.NotEmpty(t, mod.Imports())

	_, err = rt.LoadFile(ctx, filepath.Join(t.TempDir(), "missing.wasm"))
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	require.Equal(t, errors.PhaseLoad, e.Phase)
}

func TestInstantiate_NoRegisterExport(t *testing.T) {
	ctx := context.Background()
	m := wasmbin.New()
	m.Memory(1)
	mod, err := newRuntime(t).Load(ctx, m.Encode())
	require.NoError(t, err)

	_, err = mod.Instantiate(ctx)
	var e *errors.Error
	require.True(t, stderrors.As(err, &e))
	require.Equal(t, errors.KindRegistration, e.Kind)
	require.Equal(t, "napi_register_wasm_v1", e.Op)
}

func TestInstantiate_FatalDuringRegistration(t *testing.T) {
	ctx := context.Background()
	m := wasmbin.New()
	i32 := []wasmbin.ValType{wasmbin.I32}
	fatal := m.Import("napi", "napi_fatal_error", wasmbin.FuncType{
		Params: []wasmbin.ValType{wasmbin.I32, wasmbin.I32, wasmbin.I32, wasmbin.I32},
	})
	register := m.Func(wasmbin.FuncType{Params: []wasmbin.ValType{wasmbin.I32, wasmbin.I32}, Results: i32}, nil, wasmbin.Code(
		wasmbin.I32Const(0), wasmbin.I32Const(0), wasmbin.I32Const(16), wasmbin.I32Const(-1),
		wasmbin.Call(fatal),
		wasmbin.LocalGet(1),
		wasmbin.Op(wasmbin.End),
	))
	m.Memory(1)
	m.Export("napi_register_wasm_v1", register)
	m.CString(16, "cannot start")

	mod, err := newRuntime(t).Load(ctx, m.Encode())
	require.NoError(t, err)

	var aborted []error
	_, err = mod.Instantiate(ctx, WithAbortHook(func(err error) { aborted = append(aborted, err) }))
	require.Error(t, err)
	require.Len(t, aborted, 1)
	require.Contains(t, aborted[0].Error(), "cannot start")
}
