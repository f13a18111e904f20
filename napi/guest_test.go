package napi

import (
	"context"
	"fmt"
	"math"
	"testing"

	wasmnapi "github.com/wippyai/wasm-napi"
	"github.com/wippyai/wasm-napi/codec"
	"github.com/wippyai/wasm-napi/value"
)

type guestFunc func(ctx context.Context, params ...uint64) ([]uint64, error)

// fakeGuest is an in-memory guest: slice memory, a bump allocator and a Go
// function table.
type fakeGuest struct {
	mem     *codec.SliceMemory
	table   map[uint32]guestFunc
	exports map[string]guestFunc
	heap    uint32
	noAlloc bool
}

func newFakeGuest() *fakeGuest {
	return &fakeGuest{
		mem:     codec.NewSliceMemory(1),
		table:   make(map[uint32]guestFunc),
		exports: make(map[string]guestFunc),
		heap:    1024,
	}
}

func (g *fakeGuest) Memory() wasmnapi.Memory { return g.mem }

func (g *fakeGuest) Allocator() wasmnapi.Allocator {
	if g.noAlloc {
		return nil
	}
	return g
}

func (g *fakeGuest) Alloc(size, align uint32) (uint32, error) {
	if align == 0 {
		align = 1
	}
	ptr := (g.heap + align - 1) &^ (align - 1)
	if ptr+size > g.mem.Size() {
		return 0, fmt.Errorf("out of memory")
	}
	g.heap = ptr + size
	return ptr, nil
}

func (g *fakeGuest) Free(ptr, size, align uint32) {}

func (g *fakeGuest) CallIndirect(ctx context.Context, fn uint32, params ...uint64) ([]uint64, error) {
	f, ok := g.table[fn]
	if !ok {
		return nil, fmt.Errorf("undefined table element %d", fn)
	}
	return f(ctx, params...)
}

func (g *fakeGuest) CallExport(ctx context.Context, name string, params ...uint64) ([]uint64, bool, error) {
	f, ok := g.exports[name]
	if !ok {
		return nil, false, nil
	}
	res, err := f(ctx, params...)
	return res, true, err
}

// fn adds f to the function table and returns its index.
func (g *fakeGuest) fn(f guestFunc) uint32 {
	idx := uint32(len(g.table) + 1)
	g.table[idx] = f
	return idx
}

type harness struct {
	t      *testing.T
	ctx    context.Context
	g      *fakeGuest
	e      *Env
	aborts []error
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, ctx: context.Background(), g: newFakeGuest()}
	h.e = NewEnv(h.g, WithAbortHook(func(err error) { h.aborts = append(h.aborts, err) }))
	return h
}

func (h *harness) ok(st Status) {
	h.t.Helper()
	if st != StatusOK {
		h.t.Fatalf("status = %v (%d), want ok", st, st)
	}
}

func (h *harness) status(st, want Status) {
	h.t.Helper()
	if st != want {
		h.t.Fatalf("status = %v (%d), want %v", st, st, want)
	}
}

func (h *harness) alloc(n uint32) uint32 {
	h.t.Helper()
	ptr, err := h.g.Alloc(n, 8)
	if err != nil {
		h.t.Fatal(err)
	}
	return ptr
}

// out allocates an 8 byte result slot.
func (h *harness) out() uint32 {
	return h.alloc(8)
}

func (h *harness) cstr(s string) uint32 {
	ptr := h.alloc(uint32(len(s)) + 1)
	h.write(ptr, append([]byte(s), 0))
	return ptr
}

func (h *harness) write(ptr uint32, b []byte) {
	h.t.Helper()
	if err := h.g.mem.Write(ptr, b); err != nil {
		h.t.Fatal(err)
	}
}

func (h *harness) u32(ptr uint32) uint32 {
	h.t.Helper()
	n, err := h.g.mem.ReadU32(ptr)
	if err != nil {
		h.t.Fatal(err)
	}
	return n
}

func (h *harness) u64(ptr uint32) uint64 {
	h.t.Helper()
	n, err := h.g.mem.ReadU64(ptr)
	if err != nil {
		h.t.Fatal(err)
	}
	return n
}

func (h *harness) f64(ptr uint32) float64 {
	return math.Float64frombits(h.u64(ptr))
}

func (h *harness) boolAt(ptr uint32) bool {
	h.t.Helper()
	b, err := h.g.mem.ReadU8(ptr)
	if err != nil {
		h.t.Fatal(err)
	}
	return b != 0
}

// handles writes a napi_value array and returns its address.
func (h *harness) handles(hs ...uint32) uint32 {
	ptr := h.alloc(uint32(4*len(hs)) + 4)
	for i, v := range hs {
		if err := h.g.mem.WriteU32(ptr+uint32(4*i), v); err != nil {
			h.t.Fatal(err)
		}
	}
	return ptr
}

// load reads the napi_value at ptr.
func (h *harness) load(ptr uint32) value.Value {
	return h.e.Load(h.u32(ptr))
}

// store places v in the current scope.
func (h *harness) store(v value.Value) uint32 {
	return h.e.Store(v)
}

func (h *harness) object() uint32 {
	h.t.Helper()
	out := h.out()
	h.ok(h.e.CreateObject(h.ctx, out))
	return h.u32(out)
}

func (h *harness) str(s string) uint32 {
	return h.store(value.String(s))
}

func (h *harness) num(n float64) uint32 {
	return h.store(value.Number(n))
}
