package napi

import (
	"context"

	"github.com/wippyai/wasm-napi/value"
)

// CreatePromise creates a pending promise. The deferred handle is an index
// into the env's deferred table, so it stays valid across scopes until the
// promise is settled through it.
func (e *Env) CreatePromise(ctx context.Context, deferred, promise uint32) Status {
	return e.call("napi_create_promise", func() error {
		if deferred == 0 || promise == 0 {
			return StatusInvalidArg
		}
		capability := e.realm.NewPromise()
		if err := e.view.PutU32(deferred, e.deferreds.Create(capability, 1)); err != nil {
			return err
		}
		return e.putValue(promise, capability.Promise)
	})
}

func (e *Env) ResolveDeferred(ctx context.Context, deferred, resolution uint32) Status {
	return e.call("napi_resolve_deferred", func() error {
		return e.settle(ctx, deferred, resolution, false)
	})
}

func (e *Env) RejectDeferred(ctx context.Context, deferred, rejection uint32) Status {
	return e.call("napi_reject_deferred", func() error {
		return e.settle(ctx, deferred, rejection, true)
	})
}

// settle releases the deferred and calls its resolving function. A deferred
// that was already released is accepted and ignored.
func (e *Env) settle(ctx context.Context, deferred, v uint32, reject bool) error {
	capability, ok, err := e.deferreds.Get(deferred)
	if err != nil || !ok {
		return nil
	}
	_ = e.deferreds.Delete(deferred)
	fn := capability.Resolve
	if reject {
		fn = capability.Reject
	}
	_, err = fn.Call(ctx, value.Undefined, []value.Value{e.load(v)})
	return err
}

func (e *Env) IsPromise(ctx context.Context, v, result uint32) Status {
	return e.call("napi_is_promise", func() error {
		return e.putBool(result, value.IsPromise(e.load(v)))
	})
}
