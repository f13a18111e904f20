package napi

import (
	"context"
	"runtime"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/value"
)

// finalizer is a napi_finalize call scheduled for a collected object.
type finalizer struct {
	cb   uint32
	data uint32
	hint uint32
}

// finalizerQueue collects finalizers from the collector's cleanup goroutine
// until the guest thread drains them.
type finalizerQueue struct {
	mu    sync.Mutex
	items []finalizer
}

func (q *finalizerQueue) push(f finalizer) {
	q.mu.Lock()
	q.items = append(q.items, f)
	q.mu.Unlock()
}

func (q *finalizerQueue) take() []finalizer {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

func (q *finalizerQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// wrapRecord is stored in an object's identity slot by napi_wrap.
type wrapRecord struct {
	cleanup runtime.Cleanup
	native  uint32
	hasCb   bool
}

// addFinalizer schedules f once obj becomes unreachable.
func (e *Env) addFinalizer(obj *value.Object, f finalizer) runtime.Cleanup {
	q := &e.finalizers
	return runtime.AddCleanup(obj, q.push, f)
}

// PendingFinalizers returns the number of finalizers waiting to run.
func (e *Env) PendingFinalizers() int {
	return e.finalizers.len()
}

// RunFinalizers invokes every queued finalizer on the calling goroutine. A
// failing finalizer cannot be attributed to any call, so it takes the fatal
// path.
func (e *Env) RunFinalizers(ctx context.Context) error {
	for {
		batch := e.finalizers.take()
		if len(batch) == 0 {
			return e.fatal
		}
		for _, f := range batch {
			if e.fatal != nil {
				return e.fatal
			}
			if err := e.runFinalizer(ctx, f); err != nil {
				e.Fatal("napi_finalize", err.Error())
				return e.fatal
			}
		}
	}
}

func (e *Env) runFinalizer(ctx context.Context, f finalizer) error {
	scope := e.handles.Open(false)
	err := e.callFinalize(ctx, f.cb, f.data, f.hint)
	e.unwind(scope)
	if err != nil {
		return errors.Wrap(errors.PhaseFinalize, errors.KindTrap, err, "finalizer")
	}
	if v, ok := e.TakeException(); ok {
		return errors.New(errors.PhaseFinalize, errors.KindException).
			Detail("uncaught %s", value.Describe(v)).
			Build()
	}
	return nil
}

// Externals and wrapping

// Wrap attaches a native pointer to obj. An object can be wrapped once.
// result, when set, receives a reference to obj with count 1.
func (e *Env) Wrap(ctx context.Context, obj, native, finalizeCb, hint, result uint32) Status {
	return e.call("napi_wrap", func() error {
		o, err := e.object(obj)
		if err != nil {
			return err
		}
		id := o.Identity()
		if id.HasWrap {
			return StatusInvalidArg
		}
		rec := &wrapRecord{native: native}
		if finalizeCb != 0 {
			rec.cleanup = e.addFinalizer(o, finalizer{cb: finalizeCb, data: native, hint: hint})
			rec.hasCb = true
		}
		id.Wrap, id.HasWrap = rec, true
		if result != 0 {
			return e.view.PutU32(result, e.refs.Create(o, 1))
		}
		return nil
	})
}

func (e *Env) wrapOf(obj uint32) (*value.Object, *wrapRecord, error) {
	o, err := e.object(obj)
	if err != nil {
		return nil, nil, err
	}
	id := o.Identity()
	rec, ok := id.Wrap.(*wrapRecord)
	if !id.HasWrap || !ok {
		return nil, nil, StatusInvalidArg
	}
	return o, rec, nil
}

func (e *Env) Unwrap(ctx context.Context, obj, result uint32) Status {
	return e.call("napi_unwrap", func() error {
		_, rec, err := e.wrapOf(obj)
		if err != nil {
			return err
		}
		return e.putU32(result, rec.native)
	})
}

// RemoveWrap detaches the native pointer and cancels its finalizer.
func (e *Env) RemoveWrap(ctx context.Context, obj, result uint32) Status {
	return e.call("napi_remove_wrap", func() error {
		o, rec, err := e.wrapOf(obj)
		if err != nil {
			return err
		}
		if rec.hasCb {
			rec.cleanup.Stop()
		}
		id := o.Identity()
		id.Wrap, id.HasWrap = nil, false
		if result == 0 {
			return nil
		}
		return e.view.PutU32(result, rec.native)
	})
}

// AddFinalizer schedules finalizeCb for obj without wrapping it.
func (e *Env) AddFinalizer(ctx context.Context, obj, data, finalizeCb, hint, result uint32) Status {
	return e.call("napi_add_finalizer", func() error {
		if finalizeCb == 0 {
			return StatusInvalidArg
		}
		o, err := e.object(obj)
		if err != nil {
			return err
		}
		e.addFinalizer(o, finalizer{cb: finalizeCb, data: data, hint: hint})
		if result != 0 {
			return e.view.PutU32(result, e.refs.Create(o, 1))
		}
		return nil
	})
}

// Type tags

// readTag reads a napi_type_tag: lower then upper, each little-endian.
func (e *Env) readTag(ptr uint32) ([2]uint64, error) {
	if ptr == 0 {
		return [2]uint64{}, StatusInvalidArg
	}
	lo, err := e.view.U64(ptr)
	if err != nil {
		return [2]uint64{}, err
	}
	hi, err := e.view.U64(ptr + 8)
	if err != nil {
		return [2]uint64{}, err
	}
	return [2]uint64{lo, hi}, nil
}

// TypeTagObject attaches a tag once. Tags are immutable.
func (e *Env) TypeTagObject(ctx context.Context, obj, tag uint32) Status {
	return e.call("napi_type_tag_object", func() error {
		o, err := e.object(obj)
		if err != nil {
			return err
		}
		t, err := e.readTag(tag)
		if err != nil {
			return err
		}
		id := o.Identity()
		if id.HasTypeTag {
			return StatusInvalidArg
		}
		id.TypeTag, id.HasTypeTag = t, true
		if ce := e.log.Check(zap.DebugLevel, "type tag attached"); ce != nil {
			ce.Write(zap.Uint64("lower", t[0]), zap.Uint64("upper", t[1]))
		}
		return nil
	})
}

// CheckObjectTypeTag writes true only when obj carries exactly tag.
func (e *Env) CheckObjectTypeTag(ctx context.Context, obj, tag, result uint32) Status {
	return e.call("napi_check_object_type_tag", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, err := e.object(obj)
		if err != nil {
			return err
		}
		t, err := e.readTag(tag)
		if err != nil {
			return err
		}
		id := o.Identity()
		return e.view.PutBool(result, id.HasTypeTag && id.TypeTag == t)
	})
}
