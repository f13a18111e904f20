package napi

import (
	"context"

	"github.com/davidmdm/x/xerr"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/value"
)

type cleanupHook struct {
	fn  uint32
	arg uint32
}

type instanceData struct {
	data     uint32
	finalize uint32
	hint     uint32
}

// Register runs the guest's registration export against a fresh exports
// object inside its own scope and returns the exports value. A NULL return
// keeps the object that was passed in. An exception left pending by the guest
// is returned as a *value.Throw.
func (e *Env) Register(ctx context.Context) (value.Value, error) {
	if e.fatal != nil {
		return nil, e.fatal
	}
	e.view.Refresh()
	scope := e.handles.Open(false)
	defer e.unwind(scope)

	exports := e.realm.NewObject()
	h := e.store(exports)

	export := RegisterExport
	res, ok, err := e.guest.CallExport(ctx, export, 0, uint64(h))
	if !ok {
		export = LegacyRegisterExport
		res, ok, err = e.guest.CallExport(ctx, export, 0, uint64(h))
	}
	if !ok {
		return nil, errors.NotFound(errors.PhaseInstantiate, "export", RegisterExport)
	}
	if err != nil {
		if e.fatal != nil {
			return nil, e.fatal
		}
		e.pending = nil
		return nil, errors.Trap(export, err)
	}

	var out value.Value = exports
	if len(res) > 0 && uint32(res[0]) != 0 {
		out = e.load(uint32(res[0]))
	}
	if v, ok := e.TakeException(); ok {
		return nil, value.ThrowValue(v)
	}
	e.log.Debug("module registered", zap.String("export", export), zap.String("exports", value.Describe(out)))
	return out, nil
}

// Close runs environment cleanup hooks in reverse order of registration, then
// the instance data finalizer and any queued finalizers. The env refuses
// further work afterwards.
func (e *Env) Close(ctx context.Context) error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.fatal != nil {
		return e.fatal
	}

	var errs []error
	for i := len(e.cleanup) - 1; i >= 0; i-- {
		h := e.cleanup[i]
		if _, err := e.guest.CallIndirect(ctx, h.fn, uint64(h.arg)); err != nil {
			errs = append(errs, errors.Wrap(errors.PhaseFinalize, errors.KindTrap, err, "env cleanup hook"))
		}
	}
	e.cleanup = nil

	if d := e.instance; d.finalize != 0 {
		e.instance = instanceData{}
		if err := e.runFinalizer(ctx, finalizer{cb: d.finalize, data: d.data, hint: d.hint}); err != nil {
			errs = append(errs, err)
		}
	}
	if err := e.RunFinalizers(ctx); err != nil {
		errs = append(errs, err)
	}
	e.handles.Reset()
	e.fatal = errors.New(errors.PhaseRuntime, errors.KindNotInitialized).Detail("environment closed").Build()
	return xerr.MultiErrOrderedFrom("closing napi environment", errs...)
}

func (e *Env) AddEnvCleanupHook(ctx context.Context, fn, arg uint32) Status {
	return e.bypass("napi_add_env_cleanup_hook", func() error {
		if fn == 0 {
			return StatusInvalidArg
		}
		e.cleanup = append(e.cleanup, cleanupHook{fn: fn, arg: arg})
		return nil
	})
}

func (e *Env) RemoveEnvCleanupHook(ctx context.Context, fn, arg uint32) Status {
	return e.bypass("napi_remove_env_cleanup_hook", func() error {
		if fn == 0 {
			return StatusInvalidArg
		}
		for i := len(e.cleanup) - 1; i >= 0; i-- {
			if e.cleanup[i] == (cleanupHook{fn: fn, arg: arg}) {
				e.cleanup = append(e.cleanup[:i], e.cleanup[i+1:]...)
				break
			}
		}
		return nil
	})
}

// SetInstanceData replaces the instance data. The previous finalizer is not
// run.
func (e *Env) SetInstanceData(ctx context.Context, data, finalizeCb, hint uint32) Status {
	return e.call("napi_set_instance_data", func() error {
		e.instance = instanceData{data: data, finalize: finalizeCb, hint: hint}
		return nil
	})
}

func (e *Env) GetInstanceData(ctx context.Context, result uint32) Status {
	return e.call("napi_get_instance_data", func() error {
		return e.putU32(result, e.instance.data)
	})
}

func (e *Env) GetVersion(ctx context.Context, result uint32) Status {
	return e.call("napi_get_version", func() error {
		return e.putU32(result, Version)
	})
}

// AdjustExternalMemory tracks externally allocated memory. The counter is
// informational only.
func (e *Env) AdjustExternalMemory(ctx context.Context, change int64, result uint32) Status {
	return e.call("napi_adjust_external_memory", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		e.externalMemory += change
		return e.view.PutI64(result, e.externalMemory)
	})
}

// RunScript evaluates a string with the realm's script evaluator.
func (e *Env) RunScript(ctx context.Context, script, result uint32) Status {
	return e.call("napi_run_script", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		src, ok := e.load(script).(value.String)
		if !ok {
			return StatusStringExpected
		}
		v, err := e.realm.RunScript(ctx, string(src))
		if err != nil {
			return err
		}
		return e.putValue(result, v)
	})
}
