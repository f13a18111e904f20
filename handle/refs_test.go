package handle

import (
	"errors"
	"testing"
)

type object struct{ name string }

// fakeWeak simulates collection: objects in collected read as gone.
type fakeWeak struct {
	collected map[*object]bool
}

func (w *fakeWeak) weaken(v any) func() (any, bool) {
	o, ok := v.(*object)
	if !ok {
		return nil
	}
	return func() (any, bool) {
		if w.collected[o] {
			return nil, false
		}
		return o, true
	}
}

func TestRefs_Lifecycle(t *testing.T) {
	refs := NewRefs[any](nil)
	r := refs.Create("v", 1)
	if r == 0 {
		t.Fatal("index 0 must not be issued")
	}
	if n, err := refs.Ref(r); err != nil || n != 2 {
		t.Fatalf("Ref = %d, %v", n, err)
	}
	if n, err := refs.Unref(r); err != nil || n != 1 {
		t.Fatalf("Unref = %d, %v", n, err)
	}
	v, ok, err := refs.Get(r)
	if err != nil || !ok || v != "v" {
		t.Fatalf("Get = %v, %v, %v", v, ok, err)
	}
	if err := refs.Delete(r); err != nil {
		t.Fatal(err)
	}
	if _, _, err := refs.Get(r); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("Get after delete = %v", err)
	}
	if err := refs.Delete(r); !errors.Is(err, ErrInvalidRef) {
		t.Fatalf("double delete = %v", err)
	}
	if refs.Len() != 0 {
		t.Fatalf("Len = %d", refs.Len())
	}
}

func TestRefs_HolesNotReused(t *testing.T) {
	refs := NewRefs[any](nil)
	a := refs.Create(1, 1)
	if err := refs.Delete(a); err != nil {
		t.Fatal(err)
	}
	b := refs.Create(2, 1)
	if b == a {
		t.Fatalf("index %d reused", a)
	}
}

func TestRefs_ZeroCountPolicy(t *testing.T) {
	refs := NewRefs[any](nil)

	zero := refs.Create("x", 0)
	if _, err := refs.Ref(zero); !errors.Is(err, ErrZeroCount) {
		t.Fatalf("Ref at zero = %v, want ErrZeroCount", err)
	}
	if _, err := refs.Unref(zero); !errors.Is(err, ErrZeroCount) {
		t.Fatalf("Unref at zero = %v, want ErrZeroCount", err)
	}

	one := refs.Create("y", 1)
	if n, err := refs.Unref(one); err != nil || n != 0 {
		t.Fatalf("Unref to zero = %d, %v", n, err)
	}
	if _, err := refs.Unref(one); !errors.Is(err, ErrZeroCount) {
		t.Fatalf("Unref below zero = %v", err)
	}
	if c, _ := refs.Count(one); c != 0 {
		t.Fatalf("Count = %d", c)
	}
}

func TestRefs_WeakAtZero(t *testing.T) {
	w := &fakeWeak{collected: map[*object]bool{}}
	refs := NewRefs[any](w.weaken)

	obj := &object{name: "o"}
	r := refs.Create(obj, 1)
	w.collected[obj] = true

	// strong while counted
	if v, ok, _ := refs.Get(r); !ok || v != obj {
		t.Fatalf("strong Get = %v, %v", v, ok)
	}

	if _, err := refs.Unref(r); err != nil {
		t.Fatal(err)
	}
	if v, ok, err := refs.Get(r); err != nil || ok || v != nil {
		t.Fatalf("collected weak Get = %v, %v, %v", v, ok, err)
	}

	// primitives stay strong at zero
	p := refs.Create("prim", 0)
	if v, ok, _ := refs.Get(p); !ok || v != "prim" {
		t.Fatalf("primitive Get = %v, %v", v, ok)
	}
}

func TestRefs_InvalidIndex(t *testing.T) {
	refs := NewRefs[any](nil)
	for _, i := range []uint32{0, 1, 99} {
		if _, err := refs.Ref(i); !errors.Is(err, ErrInvalidRef) {
			t.Errorf("Ref(%d) = %v", i, err)
		}
	}
}
