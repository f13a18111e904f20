package value

import (
	"context"
	"testing"
)

func TestTypedArrayElementConversion(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	buf := r.NewArrayBuffer(8)
	ta, err := r.NewTypedArray(Int16Array, buf, 2, 3)
	if err != nil {
		t.Fatal(err)
	}
	if err := ta.Set(ctx, IndexKey(0), Number(70000)); err != nil {
		t.Fatal(err)
	}
	v, _ := ta.Get(ctx, IndexKey(0))
	if v != Number(4464) {
		t.Fatalf("element = %v, want 4464", v)
	}
	raw := buf.Bytes()
	if raw[2] != 0x70 || raw[3] != 0x11 {
		t.Fatalf("bytes = % x", raw)
	}

	// Out-of-range writes are ignored, reads give undefined.
	if err := ta.Set(ctx, IndexKey(10), Number(1)); err != nil {
		t.Fatal(err)
	}
	if ta.HasOwnProperty(IndexKey(10)) {
		t.Fatal("index past the end must not exist")
	}

	info, ok := ta.TypedArray()
	if !ok || info.Kind != Int16Array || info.Length != 3 || info.ByteOffset != 2 || info.Buffer != buf {
		t.Fatalf("info = %+v", info)
	}
}

func TestTypedArrayRangeErrors(t *testing.T) {
	r := NewRealm()
	buf := r.NewArrayBuffer(8)
	if _, err := r.NewTypedArray(Int32Array, buf, 2, 1); err == nil {
		t.Fatal("misaligned offset should fail")
	}
	if _, err := r.NewTypedArray(Int16Array, buf, 0, 5); err == nil {
		t.Fatal("view past the end should fail")
	}
	if _, err := r.NewDataView(buf, 4, 8); err == nil {
		t.Fatal("data view past the end should fail")
	}
}

func TestUint8ClampedRounding(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	ta, err := r.NewTypedArray(Uint8ClampedArray, r.NewArrayBuffer(4), 0, 4)
	if err != nil {
		t.Fatal(err)
	}
	in := []float64{300, 1.5, 2.5, -5}
	want := []byte{255, 2, 2, 0}
	for i, n := range in {
		if err := ta.Set(ctx, IndexKey(uint32(i)), Number(n)); err != nil {
			t.Fatal(err)
		}
	}
	for i, w := range want {
		if got := ta.Bytes()[i]; got != w {
			t.Errorf("element %d = %d, want %d", i, got, w)
		}
	}
}

func TestBigIntTypedArray(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	ta, err := r.NewTypedArray(BigInt64Array, r.NewArrayBuffer(16), 0, 2)
	if err != nil {
		t.Fatal(err)
	}
	if err := ta.Set(ctx, IndexKey(1), BigIntFromInt64(-2)); err != nil {
		t.Fatal(err)
	}
	v, _ := ta.Get(ctx, IndexKey(1))
	if b, ok := v.(*BigInt); !ok || b.String() != "-2" {
		t.Fatalf("element = %v", v)
	}
	if err := ta.Set(ctx, IndexKey(0), Number(1)); err == nil {
		t.Fatal("numbers cannot be stored in a BigInt64Array")
	}
}

func TestDetach(t *testing.T) {
	r := NewRealm()
	buf := r.NewArrayBuffer(4)
	ta, _ := r.NewTypedArray(Uint8Array, buf, 0, 4)
	if !buf.Detach() {
		t.Fatal("Detach failed")
	}
	if !buf.IsDetached() {
		t.Fatal("buffer should report detached")
	}
	info, _ := ta.TypedArray()
	if info.Length != 0 {
		t.Fatalf("view over detached buffer has length %d", info.Length)
	}
	if r.NewObject().Detach() {
		t.Fatal("only array buffers can be detached")
	}
}

func TestNewBufferCopies(t *testing.T) {
	r := NewRealm()
	src := []byte("hi")
	b := r.NewBuffer(src)
	src[0] = 'X'
	if !b.IsBuffer() || !b.IsTypedArray() {
		t.Fatal("expected a Buffer")
	}
	if string(b.Bytes()) != "hi" {
		t.Fatalf("buffer = %q", b.Bytes())
	}
}
