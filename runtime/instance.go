package runtime

import (
	"context"

	"github.com/davidmdm/x/xerr"

	"github.com/wippyai/wasm-napi/engine"
	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/napi"
	"github.com/wippyai/wasm-napi/value"
)

type Instance struct {
	module         *Module
	wazeroInstance *engine.WazeroInstance
	exports        uint32
	closed         bool
}

// Env returns the instance's napi environment.
func (i *Instance) Env() *napi.Env {
	return i.wazeroInstance.Env()
}

// Realm returns the realm the instance's values live in.
func (i *Instance) Realm() *value.Realm {
	return i.wazeroInstance.Env().Realm()
}

// Exports returns the value the addon registered.
func (i *Instance) Exports() value.Value {
	v, ok := i.Env().Pinned(i.exports)
	if !ok {
		return value.Undefined
	}
	return v
}

// ExportNames lists the string-keyed own properties of the exports object.
func (i *Instance) ExportNames() []string {
	obj, ok := i.Exports().(*value.Object)
	if !ok {
		return nil
	}
	var names []string
	for _, k := range obj.OwnKeys() {
		if !k.IsSymbol() {
			names = append(names, k.Name())
		}
	}
	return names
}

// Call invokes the exported function name with args converted by
// Realm.FromGo, then drains the microtask queue and pending finalizers. A
// returned promise that settled while draining is unwrapped: its value is
// returned, or its rejection reason comes back as a *value.Throw.
func (i *Instance) Call(ctx context.Context, name string, args ...any) (value.Value, error) {
	if i.closed {
		return nil, errors.NotInitialized(errors.PhaseRuntime, "instance")
	}
	exports := i.Exports()
	obj, ok := exports.(*value.Object)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseRuntime, "call "+name, "object exports", value.Describe(exports))
	}
	if !obj.HasProperty(value.StringKey(name)) {
		return nil, errors.NotFound(errors.PhaseRuntime, "export", name)
	}

	env := i.Env()
	realm := env.Realm()
	fn, err := obj.Get(ctx, value.StringKey(name))
	if err != nil {
		return nil, err
	}
	if !value.IsCallable(fn) {
		return nil, errors.TypeMismatch(errors.PhaseRuntime, "call "+name, "function", value.Describe(fn))
	}

	argv := make([]value.Value, len(args))
	for n, a := range args {
		argv[n] = realm.FromGo(a)
	}

	res, callErr := realm.Call(ctx, fn, exports, argv...)
	drainErr := xerr.MultiErrOrderedFrom("", env.RunJobs(ctx), env.RunFinalizers(ctx))
	if callErr != nil {
		return nil, callErr
	}
	if drainErr != nil {
		return nil, drainErr
	}

	if p, ok := res.(*value.Object); ok && value.IsPromise(p) {
		switch state, result, _ := p.PromiseState(); state {
		case value.PromiseFulfilled:
			return result, nil
		case value.PromiseRejected:
			return nil, value.ThrowValue(result)
		}
	}
	return res, nil
}

// CallJSON calls name like Call and renders the result as JSON. ok is false
// for results JSON cannot represent, such as undefined or a function.
func (i *Instance) CallJSON(ctx context.Context, name string, args ...any) (text string, ok bool, err error) {
	res, err := i.Call(ctx, name, args...)
	if err != nil {
		return "", false, err
	}
	return i.Realm().ToJSON(ctx, res)
}

// Close unpins the exports, runs the addon's cleanup hooks and finalizers and
// closes the guest.
func (i *Instance) Close(ctx context.Context) error {
	if i.closed {
		return nil
	}
	i.closed = true
	var unpinErr error
	if i.Env().Err() == nil {
		unpinErr = i.Env().Unpin(i.exports)
	}
	return xerr.MultiErrOrderedFrom("", unpinErr, i.wazeroInstance.Close(ctx))
}
