package value

import (
	"context"
)

// PromiseState is the settlement state of a promise.
type PromiseState uint8

const (
	PromisePending PromiseState = iota
	PromiseFulfilled
	PromiseRejected
)

func (s PromiseState) String() string {
	switch s {
	case PromiseFulfilled:
		return "fulfilled"
	case PromiseRejected:
		return "rejected"
	}
	return "pending"
}

type promise struct {
	result    Value
	fulfilled []reaction
	rejected  []reaction
	state     PromiseState
}

type reaction struct {
	capability *Capability
	handler    Value
	onReject   bool
}

// Capability is a promise together with the functions that settle it.
type Capability struct {
	Promise *Object
	Resolve *Object
	Reject  *Object
}

// NewPromise creates a pending promise and its resolving functions.
func (r *Realm) NewPromise() *Capability {
	p := r.newObject(ClassPromise, r.PromisePrototype)
	p.internal = &promise{result: Undefined}
	resolve, reject := r.resolvingFunctions(p)
	return &Capability{Promise: p, Resolve: resolve, Reject: reject}
}

// IsPromise reports whether v is a native promise.
func IsPromise(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.class == ClassPromise
}

// PromiseState returns the state and result of a promise.
func (o *Object) PromiseState() (PromiseState, Value, bool) {
	p, ok := o.internal.(*promise)
	if !ok {
		return PromisePending, nil, false
	}
	return p.state, p.result, true
}

func (r *Realm) resolvingFunctions(p *Object) (resolve, reject *Object) {
	done := false
	resolve = r.NewFunction("", 1, func(ctx context.Context, call *CallInfo) (Value, error) {
		if done {
			return Undefined, nil
		}
		done = true
		return Undefined, r.resolvePromise(ctx, p, call.Arg(0))
	})
	reject = r.NewFunction("", 1, func(_ context.Context, call *CallInfo) (Value, error) {
		if done {
			return Undefined, nil
		}
		done = true
		r.settle(p, PromiseRejected, call.Arg(0))
		return Undefined, nil
	})
	return resolve, reject
}

func (r *Realm) resolvePromise(ctx context.Context, p *Object, resolution Value) error {
	if resolution == Value(p) {
		r.settle(p, PromiseRejected, r.NewError(TypeError, "Chaining cycle detected for promise #<Promise>"))
		return nil
	}
	obj, ok := resolution.(*Object)
	if !ok {
		r.settle(p, PromiseFulfilled, resolution)
		return nil
	}
	then, err := obj.Get(ctx, StringKey("then"))
	if err != nil {
		thrown, ok := Thrown(err)
		if !ok {
			return err
		}
		r.settle(p, PromiseRejected, thrown)
		return nil
	}
	if !IsCallable(then) {
		r.settle(p, PromiseFulfilled, resolution)
		return nil
	}
	r.EnqueueJob(func(ctx context.Context) error {
		resolve, reject := r.resolvingFunctions(p)
		_, err := then.(*Object).Call(ctx, obj, []Value{resolve, reject})
		if err == nil {
			return nil
		}
		thrown, ok := Thrown(err)
		if !ok {
			return err
		}
		_, err = reject.Call(ctx, Undefined, []Value{thrown})
		return err
	})
	return nil
}

func (r *Realm) settle(o *Object, state PromiseState, v Value) {
	p := o.internal.(*promise)
	if p.state != PromisePending {
		return
	}
	reactions := p.fulfilled
	if state == PromiseRejected {
		reactions = p.rejected
	}
	p.state, p.result = state, v
	p.fulfilled, p.rejected = nil, nil
	for _, re := range reactions {
		r.enqueueReaction(re, v)
	}
}

func (r *Realm) enqueueReaction(re reaction, arg Value) {
	r.EnqueueJob(func(ctx context.Context) error {
		var (
			res Value
			err error
		)
		if IsCallable(re.handler) {
			res, err = re.handler.(*Object).Call(ctx, Undefined, []Value{arg})
		} else if re.onReject {
			err = ThrowValue(arg)
		} else {
			res = arg
		}
		if re.capability == nil {
			return nil
		}
		if err != nil {
			thrown, ok := Thrown(err)
			if !ok {
				return err
			}
			_, err = re.capability.Reject.Call(ctx, Undefined, []Value{thrown})
			return err
		}
		_, err = re.capability.Resolve.Call(ctx, Undefined, []Value{res})
		return err
	})
}

// Then registers reactions on a promise and returns the derived promise.
func (r *Realm) Then(p *Object, onFulfilled, onRejected Value) (*Object, error) {
	st, ok := p.internal.(*promise)
	if !ok {
		return nil, r.Throwf(TypeError, "Method Promise.prototype.then called on incompatible receiver %s", Describe(p))
	}
	capability := r.NewPromise()
	fr := reaction{capability: capability, handler: onFulfilled}
	rr := reaction{capability: capability, handler: onRejected, onReject: true}
	switch st.state {
	case PromisePending:
		st.fulfilled = append(st.fulfilled, fr)
		st.rejected = append(st.rejected, rr)
	case PromiseFulfilled:
		r.enqueueReaction(fr, st.result)
	case PromiseRejected:
		r.enqueueReaction(rr, st.result)
	}
	return capability.Promise, nil
}

// PromiseResolve returns v when it is already a promise, or a new promise
// resolved with v.
func (r *Realm) PromiseResolve(ctx context.Context, v Value) (*Object, error) {
	if IsPromise(v) {
		return v.(*Object), nil
	}
	c := r.NewPromise()
	if _, err := c.Resolve.Call(ctx, Undefined, []Value{v}); err != nil {
		return nil, err
	}
	return c.Promise, nil
}

func (r *Realm) initPromise() {
	pp := r.newObject(ClassObject, r.ObjectPrototype)
	r.PromisePrototype = pp

	r.method(pp, "then", 2, func(_ context.Context, call *CallInfo) (Value, error) {
		p, ok := call.This.(*Object)
		if !ok {
			return nil, r.Throwf(TypeError, "Method Promise.prototype.then called on incompatible receiver %s", Describe(call.This))
		}
		res, err := r.Then(p, call.Arg(0), call.Arg(1))
		if err != nil {
			return nil, err
		}
		return res, nil
	})
	r.method(pp, "catch", 1, func(ctx context.Context, call *CallInfo) (Value, error) {
		then, err := r.getMethod(ctx, call.This, "then")
		if err != nil {
			return nil, err
		}
		return then.Call(ctx, call.This, []Value{Undefined, call.Arg(0)})
	})

	ctor := r.NewFunctionFrom(FunctionSpec{
		Name:        "Promise",
		Length:      1,
		Constructor: true,
		Prototype:   pp,
		Construct: func(ctx context.Context, call *CallInfo) (*Object, error) {
			executor := call.Arg(0)
			if !IsCallable(executor) {
				return nil, r.Throwf(TypeError, "Promise resolver %s is not a function", Describe(executor))
			}
			proto, err := r.prototypeFromConstructor(ctx, call.NewTarget, pp)
			if err != nil {
				return nil, err
			}
			c := r.NewPromise()
			c.Promise.proto = proto
			if _, err := executor.(*Object).Call(ctx, Undefined, []Value{c.Resolve, c.Reject}); err != nil {
				thrown, ok := Thrown(err)
				if !ok {
					return nil, err
				}
				if _, err := c.Reject.Call(ctx, Undefined, []Value{thrown}); err != nil {
					return nil, err
				}
			}
			return c.Promise, nil
		},
		Call: func(context.Context, *CallInfo) (Value, error) {
			return nil, r.Throwf(TypeError, "Promise constructor cannot be invoked without 'new'")
		},
	})
	r.method(ctor, "resolve", 1, func(ctx context.Context, call *CallInfo) (Value, error) {
		p, err := r.PromiseResolve(ctx, call.Arg(0))
		if err != nil {
			return nil, err
		}
		return p, nil
	})
	r.method(ctor, "reject", 1, func(ctx context.Context, call *CallInfo) (Value, error) {
		c := r.NewPromise()
		if _, err := c.Reject.Call(ctx, Undefined, []Value{call.Arg(0)}); err != nil {
			return nil, err
		}
		return c.Promise, nil
	})
	r.promiseCtor = ctor
	r.global("Promise", ctor)
}

// getMethod reads a callable property of v.
func (r *Realm) getMethod(ctx context.Context, v Value, name string) (*Object, error) {
	o, err := r.ToObject(v)
	if err != nil {
		return nil, err
	}
	m, err := o.GetWithReceiver(ctx, StringKey(name), v)
	if err != nil {
		return nil, err
	}
	f, ok := m.(*Object)
	if !ok || f.fn == nil {
		return nil, r.Throwf(TypeError, "%s is not a function", Describe(m))
	}
	return f, nil
}
