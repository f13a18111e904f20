package napi

import (
	"context"
	stderrors "errors"

	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/handle"
	"github.com/wippyai/wasm-napi/value"
)

func (e *Env) OpenHandleScope(ctx context.Context, result uint32) Status {
	return e.call("napi_open_handle_scope", func() error {
		return e.openScope(result, false)
	})
}

func (e *Env) OpenEscapableHandleScope(ctx context.Context, result uint32) Status {
	return e.call("napi_open_escapable_handle_scope", func() error {
		return e.openScope(result, true)
	})
}

func (e *Env) openScope(result uint32, escapable bool) error {
	if result == 0 {
		return StatusInvalidArg
	}
	return e.view.PutU32(result, e.handles.Open(escapable))
}

func (e *Env) CloseHandleScope(ctx context.Context, scope uint32) Status {
	return e.bypass("napi_close_handle_scope", func() error {
		return e.closeScope("napi_close_handle_scope", scope)
	})
}

func (e *Env) CloseEscapableHandleScope(ctx context.Context, scope uint32) Status {
	return e.bypass("napi_close_escapable_handle_scope", func() error {
		return e.closeScope("napi_close_escapable_handle_scope", scope)
	})
}

// closeScope pops scope, which must be the innermost one. The base scope is
// owned by the environment and cannot be closed by a guest.
func (e *Env) closeScope(op string, scope uint32) error {
	if scope == e.base {
		return StatusInvalidArg
	}
	top := e.handles.Depth() - 1
	if err := e.handles.Close(scope); err != nil {
		e.fail(op, errors.ScopeMismatch(int(scope), top))
		return StatusHandleScopeMismatch
	}
	return nil
}

// EscapeHandle promotes h into the parent of scope.
func (e *Env) EscapeHandle(ctx context.Context, scope, h, result uint32) Status {
	return e.bypass("napi_escape_handle", func() error {
		if result == 0 || scope == e.base {
			return StatusInvalidArg
		}
		escaped, err := e.handles.Escape(scope, h)
		switch {
		case stderrors.Is(err, handle.ErrEscapeCalledTwice):
			return StatusEscapeCalledTwice
		case err != nil:
			return StatusHandleScopeMismatch
		}
		return e.view.PutU32(result, escaped)
	})
}

func (e *Env) CreateReference(ctx context.Context, v, count, result uint32) Status {
	return e.call("napi_create_reference", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		return e.view.PutU32(result, e.refs.Create(e.load(v), count))
	})
}

func (e *Env) DeleteReference(ctx context.Context, ref uint32) Status {
	return e.bypass("napi_delete_reference", func() error {
		if err := e.refs.Delete(ref); err != nil {
			return StatusInvalidArg
		}
		return nil
	})
}

// ReferenceRef increments the count. A reference whose count is already zero
// is not revived; the call fails with generic-failure.
func (e *Env) ReferenceRef(ctx context.Context, ref, result uint32) Status {
	return e.call("napi_reference_ref", func() error {
		return e.adjustRef(e.refs.Ref, ref, result)
	})
}

// ReferenceUnref decrements the count, failing at zero like ReferenceRef.
func (e *Env) ReferenceUnref(ctx context.Context, ref, result uint32) Status {
	return e.call("napi_reference_unref", func() error {
		return e.adjustRef(e.refs.Unref, ref, result)
	})
}

func (e *Env) adjustRef(op func(uint32) (uint32, error), ref, result uint32) error {
	n, err := op(ref)
	switch {
	case stderrors.Is(err, handle.ErrZeroCount):
		return StatusGenericFailure
	case err != nil:
		return StatusInvalidArg
	}
	if result == 0 {
		return nil
	}
	return e.view.PutU32(result, n)
}

// GetReferenceValue writes the referenced value, or a NULL handle when a weak
// reference has been collected.
func (e *Env) GetReferenceValue(ctx context.Context, ref, result uint32) Status {
	return e.call("napi_get_reference_value", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		v, ok, err := e.refs.Get(ref)
		if err != nil {
			return StatusInvalidArg
		}
		if !ok {
			return e.view.PutU32(result, 0)
		}
		return e.putValue(result, v)
	})
}

// Pin holds v in a strong reference owned by the host, such as the exports
// object of a registered module.
func (e *Env) Pin(v value.Value) uint32 {
	return e.refs.Create(v, 1)
}

// Pinned returns the value held by a host reference.
func (e *Env) Pinned(ref uint32) (value.Value, bool) {
	v, ok, err := e.refs.Get(ref)
	if err != nil || !ok {
		return nil, false
	}
	return v, true
}

// Unpin releases a host reference.
func (e *Env) Unpin(ref uint32) error {
	return e.refs.Delete(ref)
}
