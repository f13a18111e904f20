package napi

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/value"
)

func TestHandleScope_InvalidatesHandles(t *testing.T) {
	h := newHarness(t)
	out := h.out()
	h.ok(h.e.OpenHandleScope(h.ctx, out))
	scope := h.u32(out)

	v := h.str("inside")
	if got := h.e.Load(v); got != value.String("inside") {
		t.Fatalf("Load = %v, want inside", got)
	}
	h.ok(h.e.CloseHandleScope(h.ctx, scope))

	if got := h.e.Load(v); got != value.Undefined {
		t.Errorf("Load after close = %v, want undefined", got)
	}
}

func TestHandleScope_CloseOutOfOrder(t *testing.T) {
	h := newHarness(t)
	out := h.out()
	h.ok(h.e.OpenHandleScope(h.ctx, out))
	outer := h.u32(out)
	h.ok(h.e.OpenHandleScope(h.ctx, out))

	h.status(h.e.CloseHandleScope(h.ctx, outer), StatusHandleScopeMismatch)
	if len(h.aborts) != 1 {
		t.Fatalf("aborts = %d, want 1", len(h.aborts))
	}
	var e *errors.Error
	if !stderrors.As(h.aborts[0], &e) || e.Phase != errors.PhaseScope || e.Kind != errors.KindMismatch {
		t.Errorf("abort error = %v, want a scope mismatch", h.aborts[0])
	}
	if h.e.Err() == nil {
		t.Fatal("env should be fatal after a scope mismatch")
	}
	h.status(h.e.CreateObject(h.ctx, out), StatusGenericFailure)
}

func TestHandleScope_BaseScopeIsNotClosable(t *testing.T) {
	h := newHarness(t)
	h.status(h.e.CloseHandleScope(h.ctx, 0), StatusInvalidArg)
	if len(h.aborts) != 0 {
		t.Fatalf("unexpected abort: %v", h.aborts)
	}
}

func TestHandleScope_ClosableWhilePending(t *testing.T) {
	h := newHarness(t)
	out := h.out()
	h.ok(h.e.OpenHandleScope(h.ctx, out))
	h.e.Throw(value.String("boom"))
	h.ok(h.e.CloseHandleScope(h.ctx, h.u32(out)))
	if !h.e.IsPending() {
		t.Fatal("exception should still be pending")
	}
}

func TestEscapeHandle(t *testing.T) {
	h := newHarness(t)
	out := h.out()
	h.ok(h.e.OpenEscapableHandleScope(h.ctx, out))
	scope := h.u32(out)

	inner := h.object()
	h.ok(h.e.EscapeHandle(h.ctx, scope, inner, out))
	escaped := h.u32(out)
	h.status(h.e.EscapeHandle(h.ctx, scope, inner, out), StatusEscapeCalledTwice)

	want := h.e.Load(inner)
	h.ok(h.e.CloseEscapableHandleScope(h.ctx, scope))

	if got := h.e.Load(escaped); got != want {
		t.Errorf("escaped handle = %v, want the escaped object", got)
	}
	if got := h.e.Load(inner); got != value.Undefined {
		t.Errorf("inner handle = %v, want undefined", got)
	}
}

func TestEscapeHandle_NotEscapable(t *testing.T) {
	h := newHarness(t)
	out := h.out()
	h.ok(h.e.OpenHandleScope(h.ctx, out))
	scope := h.u32(out)
	h.status(h.e.EscapeHandle(h.ctx, scope, h.object(), out), StatusHandleScopeMismatch)
}

func TestReference_Lifecycle(t *testing.T) {
	h := newHarness(t)
	out := h.out()

	obj := h.object()
	want := h.e.Load(obj)
	h.ok(h.e.CreateReference(h.ctx, obj, 1, out))
	ref := h.u32(out)

	h.ok(h.e.ReferenceRef(h.ctx, ref, out))
	if n := h.u32(out); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
	h.ok(h.e.ReferenceUnref(h.ctx, ref, out))
	h.ok(h.e.ReferenceUnref(h.ctx, ref, out))
	if n := h.u32(out); n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}

	h.status(h.e.ReferenceUnref(h.ctx, ref, out), StatusGenericFailure)
	h.status(h.e.ReferenceRef(h.ctx, ref, out), StatusGenericFailure)

	h.ok(h.e.GetReferenceValue(h.ctx, ref, out))
	if got := h.load(out); got != want {
		t.Errorf("reference value = %v, want the object", got)
	}

	h.ok(h.e.DeleteReference(h.ctx, ref))
	h.status(h.e.DeleteReference(h.ctx, ref), StatusInvalidArg)
	h.status(h.e.GetReferenceValue(h.ctx, ref, out), StatusInvalidArg)
}

func TestReference_OutlivesScope(t *testing.T) {
	h := newHarness(t)
	out := h.out()
	h.ok(h.e.OpenHandleScope(h.ctx, out))
	scope := h.u32(out)
	h.ok(h.e.CreateReference(h.ctx, h.str("kept"), 1, out))
	ref := h.u32(out)
	h.ok(h.e.CloseHandleScope(h.ctx, scope))

	h.ok(h.e.GetReferenceValue(h.ctx, ref, out))
	if got := h.load(out); got != value.String("kept") {
		t.Errorf("reference value = %v, want kept", got)
	}
}
