package napi

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-napi/codec"
	"github.com/wippyai/wasm-napi/value"
)

type callMode uint8

const (
	modePlain callMode = iota
	modeConstructor
	modeMethod
)

// callback is the dispatch record behind every function a guest creates.
type callback struct {
	owner *value.Object // class constructor, for modeMethod
	name  string
	fn    uint32 // guest function table index
	data  uint32
	mode  callMode
}

// callbackInfo is what a napi_callback_info handle resolves to while a guest
// callback runs.
type callbackInfo struct {
	this      value.Value
	newTarget *value.Object
	args      []value.Value
	data      uint32
}

// Kind reports external on purpose: a cbinfo handle is opaque to the guest,
// and napi_typeof on one answers napi_external like any host-owned pointer.
func (*callbackInfo) Kind() value.Kind { return value.KindExternal }

// newFunction creates the host function object for cb.
func (e *Env) newFunction(cb *callback) *value.Object {
	return e.realm.NewFunctionFrom(value.FunctionSpec{
		Name:        cb.name,
		Constructor: cb.mode != modeMethod,
		Call: func(ctx context.Context, call *value.CallInfo) (value.Value, error) {
			return e.dispatch(ctx, cb, call)
		},
	})
}

// dispatch runs a guest callback inside its own handle scope. A pending
// exception left by the guest is taken from the channel and returned as a
// *value.Throw once the scope is closed.
func (e *Env) dispatch(ctx context.Context, cb *callback, call *value.CallInfo) (value.Value, error) {
	if e.fatal != nil {
		return nil, e.fatal
	}
	switch cb.mode {
	case modeConstructor:
		if call.NewTarget == nil {
			return nil, e.realm.Throwf(value.TypeError, "Class constructor %s cannot be invoked without 'new'", cb.name)
		}
	case modeMethod:
		ok, err := e.realm.InstanceOf(ctx, call.This, cb.owner)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, e.realm.Throwf(value.TypeError, "Illegal invocation")
		}
	}

	scope := e.handles.Open(false)
	info := e.store(&callbackInfo{
		this:      call.This,
		newTarget: call.NewTarget,
		args:      call.Args,
		data:      cb.data,
	})
	res, err := e.callGuest(ctx, cb.fn, info)
	var out value.Value = value.Undefined
	if err == nil && res != 0 {
		out = e.load(res)
	}
	e.unwind(scope)

	if err != nil {
		if e.fatal != nil {
			return nil, e.fatal
		}
		e.pending = nil
		e.log.Debug("guest callback trapped", zap.String("function", cb.name), zap.Error(err))
		return nil, &value.Throw{Value: e.realm.NewError(value.RuntimeError, err.Error())}
	}
	if v, ok := e.TakeException(); ok {
		return nil, value.ThrowValue(v)
	}
	return out, nil
}

// unwind closes scope together with every scope a trapped guest left open
// above it.
func (e *Env) unwind(scope uint32) {
	for e.handles.Depth() > int(scope) {
		_ = e.handles.Close(uint32(e.handles.Depth() - 1))
	}
}

// readName decodes an optional function or class name.
func (e *Env) readName(ptr, length uint32) (string, error) {
	if ptr == 0 {
		return "", nil
	}
	return e.view.ReadString(ptr, length, codec.UTF8)
}

func (e *Env) CreateFunction(ctx context.Context, name, length, cb, data, result uint32) Status {
	return e.call("napi_create_function", func() error {
		if result == 0 || cb == 0 {
			return StatusInvalidArg
		}
		n, err := e.readName(name, length)
		if err != nil {
			return err
		}
		return e.putValue(result, e.newFunction(&callback{mode: modePlain, fn: cb, data: data, name: n}))
	})
}

// GetCbInfo reads the current call. argc is in/out: it holds the capacity of
// argv and receives the actual argument count. Slots past the actual
// arguments are filled with undefined.
func (e *Env) GetCbInfo(ctx context.Context, cbinfo, argc, argv, this, data uint32) Status {
	return e.call("napi_get_cb_info", func() error {
		info, ok := e.load(cbinfo).(*callbackInfo)
		if !ok {
			return StatusInvalidArg
		}
		if argv != 0 {
			if argc == 0 {
				return StatusInvalidArg
			}
			capacity, err := e.view.U32(argc)
			if err != nil {
				return err
			}
			for i := uint32(0); i < capacity; i++ {
				var v value.Value = value.Undefined
				if int(i) < len(info.args) {
					v = info.args[i]
				}
				if err := e.view.PutU32(argv+4*i, e.store(v)); err != nil {
					return err
				}
			}
		}
		if argc != 0 {
			if err := e.view.PutU32(argc, uint32(len(info.args))); err != nil {
				return err
			}
		}
		if this != 0 {
			if err := e.putValue(this, info.this); err != nil {
				return err
			}
		}
		if data != 0 {
			return e.view.PutU32(data, info.data)
		}
		return nil
	})
}

// GetNewTarget writes new.target, or NULL outside a construct call.
func (e *Env) GetNewTarget(ctx context.Context, cbinfo, result uint32) Status {
	return e.call("napi_get_new_target", func() error {
		info, ok := e.load(cbinfo).(*callbackInfo)
		if !ok || result == 0 {
			return StatusInvalidArg
		}
		if info.newTarget == nil {
			return e.view.PutU32(result, 0)
		}
		return e.putValue(result, info.newTarget)
	})
}

// readArgs loads argc handles from the argv array.
func (e *Env) readArgs(argc, argv uint32) ([]value.Value, error) {
	if argc == 0 {
		return nil, nil
	}
	if argv == 0 {
		return nil, StatusInvalidArg
	}
	args := make([]value.Value, argc)
	for i := range args {
		h, err := e.view.U32(argv + 4*uint32(i))
		if err != nil {
			return nil, err
		}
		args[i] = e.load(h)
	}
	return args, nil
}

// CallFunction calls fn with receiver recv. An exception thrown by the callee
// becomes the pending exception.
func (e *Env) CallFunction(ctx context.Context, recv, fn, argc, argv, result uint32) Status {
	return e.call("napi_call_function", func() error {
		f, ok := e.load(fn).(*value.Object)
		if !ok || !value.IsCallable(f) {
			return StatusFunctionExpected
		}
		args, err := e.readArgs(argc, argv)
		if err != nil {
			return err
		}
		res, err := f.Call(ctx, e.load(recv), args)
		if err != nil {
			return err
		}
		if result == 0 {
			return nil
		}
		return e.putValue(result, res)
	})
}

func (e *Env) NewInstance(ctx context.Context, cons, argc, argv, result uint32) Status {
	return e.call("napi_new_instance", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		c, ok := e.load(cons).(*value.Object)
		if !ok || !value.IsCallable(c) {
			return StatusFunctionExpected
		}
		args, err := e.readArgs(argc, argv)
		if err != nil {
			return err
		}
		obj, err := c.Construct(ctx, args, nil)
		if err != nil {
			return err
		}
		return e.putValue(result, obj)
	})
}

// DefineClass creates a constructor whose instance properties live on its
// prototype and whose static properties live on the constructor itself.
// Instance methods and accessors check their receiver.
func (e *Env) DefineClass(ctx context.Context, name, length, ctorCb, data, count, props, result uint32) Status {
	return e.call("napi_define_class", func() error {
		if result == 0 || ctorCb == 0 || (count > 0 && props == 0) {
			return StatusInvalidArg
		}
		n, err := e.readName(name, length)
		if err != nil {
			return err
		}
		descs, err := e.readDescriptors(count, props)
		if err != nil {
			return err
		}
		ctor := e.newFunction(&callback{mode: modeConstructor, fn: ctorCb, data: data, name: n})
		pv, err := ctor.Get(ctx, value.StringKey("prototype"))
		if err != nil {
			return err
		}
		proto := pv.(*value.Object)
		for _, d := range descs {
			if d.Attributes&attrStatic != 0 {
				err = e.defineDescriptor(ctor, d, modePlain, nil)
			} else {
				err = e.defineDescriptor(proto, d, modeMethod, ctor)
			}
			if err != nil {
				return err
			}
		}
		return e.putValue(result, ctor)
	})
}
