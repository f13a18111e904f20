package napi

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/wippyai/wasm-napi/codec"
	"github.com/wippyai/wasm-napi/value"
)

// descriptors writes a napi_property_descriptor array.
func (h *harness) descriptors(ds ...codec.RawDescriptor) uint32 {
	ptr := h.alloc(uint32(len(ds))*codec.DescriptorSize + 4)
	b := make([]byte, 0, len(ds)*codec.DescriptorSize)
	for _, d := range ds {
		for _, f := range []uint32{d.UTF8Name, d.Name, d.Method, d.Getter, d.Setter, d.Value, d.Attributes, d.Data} {
			b = binary.LittleEndian.AppendUint32(b, f)
		}
	}
	h.write(ptr, b)
	return ptr
}

func (h *harness) names(ptr uint32) []value.Value {
	h.t.Helper()
	arr, ok := h.load(ptr).(*value.Object)
	if !ok || !arr.IsArray() {
		h.t.Fatalf("names = %v, want an array", h.load(ptr))
	}
	var out []value.Value
	for i := uint32(0); i < arr.Length(); i++ {
		v, err := arr.Get(h.ctx, value.IndexKey(i))
		if err != nil {
			h.t.Fatal(err)
		}
		out = append(out, v)
	}
	return out
}

func TestNamedProperties(t *testing.T) {
	h := newHarness(t)
	obj, out := h.object(), h.out()

	h.ok(h.e.SetNamedProperty(h.ctx, obj, h.cstr("answer"), h.num(42)))
	h.ok(h.e.GetNamedProperty(h.ctx, obj, h.cstr("answer"), out))
	if got := h.load(out); got != value.Number(42) {
		t.Errorf("answer = %v", got)
	}
	h.ok(h.e.HasNamedProperty(h.ctx, obj, h.cstr("answer"), out))
	if !h.boolAt(out) {
		t.Error("has_named_property = false")
	}
	h.ok(h.e.HasNamedProperty(h.ctx, obj, h.cstr("missing"), out))
	if h.boolAt(out) {
		t.Error("has_named_property(missing) = true")
	}

	// Primitive receivers are coerced to wrapper objects; nullish ones fail.
	h.ok(h.e.SetNamedProperty(h.ctx, h.num(1), h.cstr("x"), h.num(1)))
	h.ok(h.e.HasNamedProperty(h.ctx, h.str("s"), h.cstr("x"), out))
	if h.boolAt(out) {
		t.Error("has_named_property on a string primitive = true")
	}
	h.status(h.e.SetNamedProperty(h.ctx, h.store(value.Null), h.cstr("x"), h.num(1)), StatusObjectExpected)
	h.status(h.e.GetNamedProperty(h.ctx, 0, h.cstr("x"), out), StatusObjectExpected)
	h.status(h.e.GetNamedProperty(h.ctx, obj, 0, out), StatusInvalidArg)
}

func TestPropertyByKey(t *testing.T) {
	h := newHarness(t)
	obj, out := h.object(), h.out()
	key := h.str("k")

	h.ok(h.e.SetProperty(h.ctx, obj, key, h.str("v")))
	h.ok(h.e.HasOwnProperty(h.ctx, obj, key, out))
	if !h.boolAt(out) {
		t.Fatal("has_own_property = false")
	}
	h.ok(h.e.HasProperty(h.ctx, obj, h.str("toString"), out))
	if !h.boolAt(out) {
		t.Error("inherited toString not found by has_property")
	}
	h.ok(h.e.HasOwnProperty(h.ctx, obj, h.str("toString"), out))
	if h.boolAt(out) {
		t.Error("has_own_property(toString) = true")
	}
	h.status(h.e.HasOwnProperty(h.ctx, obj, h.num(1), out), StatusNameExpected)

	h.ok(h.e.DeleteProperty(h.ctx, obj, key, out))
	if !h.boolAt(out) {
		t.Error("delete_property = false")
	}
	h.ok(h.e.GetProperty(h.ctx, obj, key, out))
	if got := h.load(out); got != value.Undefined {
		t.Errorf("deleted property = %v", got)
	}
}

func TestElements(t *testing.T) {
	h := newHarness(t)
	out := h.out()
	h.ok(h.e.CreateArrayWithLength(h.ctx, 2, out))
	arr := h.u32(out)

	h.ok(h.e.SetElement(h.ctx, arr, 5, h.str("x")))
	h.ok(h.e.GetArrayLength(h.ctx, arr, out))
	if n := h.u32(out); n != 6 {
		t.Errorf("length = %d, want 6", n)
	}
	h.ok(h.e.HasElement(h.ctx, arr, 0, out))
	if h.boolAt(out) {
		t.Error("hole reported as present")
	}
	h.ok(h.e.GetElement(h.ctx, arr, 5, out))
	if got := h.load(out); got != value.String("x") {
		t.Errorf("element 5 = %v", got)
	}
	h.ok(h.e.DeleteElement(h.ctx, arr, 5, out))
	h.ok(h.e.HasElement(h.ctx, arr, 5, out))
	if h.boolAt(out) {
		t.Error("deleted element still present")
	}
}

func TestGetAllPropertyNames(t *testing.T) {
	h := newHarness(t)
	r := h.e.Realm()
	proto := r.NewObject()
	if !proto.CreateDataProperty(value.StringKey("inherited"), value.Number(1)) {
		t.Fatal("create data property failed")
	}
	o := r.NewObjectWithPrototype(proto)
	if err := o.DefineProperty(value.IndexKey(0), value.DataProperty(value.String("a"), true, true, true)); err != nil {
		t.Fatal(err)
	}
	if err := o.DefineProperty(value.StringKey("foo"), value.DataProperty(value.Number(1), true, false, true)); err != nil {
		t.Fatal(err)
	}
	sym := value.NewSymbol("s")
	if !o.CreateDataProperty(value.SymbolKey(sym), value.Number(2)) {
		t.Fatal("create data property failed")
	}
	obj, out := h.store(o), h.out()

	tests := []struct {
		name       string
		mode       uint32
		filter     uint32
		conversion uint32
		want       []value.Value
	}{
		{"own enumerable keep numbers", keyOwnOnly, filterEnumerable, keyKeepNumbers,
			[]value.Value{value.Number(0), sym}},
		{"own enumerable strings only", keyOwnOnly, filterEnumerable | filterSkipSymbols, keyNumbersToStrings,
			[]value.Value{value.String("0")}},
		{"own all", keyOwnOnly, 0, keyKeepNumbers,
			[]value.Value{value.Number(0), value.String("foo"), sym}},
		{"with prototypes", keyIncludePrototypes, filterEnumerable | filterSkipSymbols, keyNumbersToStrings,
			[]value.Value{value.String("0"), value.String("inherited")}},
		{"symbols only", keyOwnOnly, filterSkipStrings, keyKeepNumbers,
			[]value.Value{sym}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h.ok(h.e.GetAllPropertyNames(h.ctx, obj, tt.mode, tt.filter, tt.conversion, out))
			got := h.names(out)
			if len(got) != len(tt.want) {
				t.Fatalf("names = %v, want %v", got, tt.want)
			}
			for i := range got {
				if !value.StrictEquals(got[i], tt.want[i]) {
					t.Errorf("names[%d] = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}

	h.status(h.e.GetAllPropertyNames(h.ctx, obj, 7, 0, 0, out), StatusInvalidArg)
	h.status(h.e.GetAllPropertyNames(h.ctx, obj, 0, 0, 9, out), StatusInvalidArg)
}

func TestGetPropertyNames_Shadowing(t *testing.T) {
	h := newHarness(t)
	r := h.e.Realm()
	proto := r.NewObject()
	if !proto.CreateDataProperty(value.StringKey("x"), value.Number(1)) {
		t.Fatal("create data property failed")
	}
	o := r.NewObjectWithPrototype(proto)
	// a non-enumerable own x hides the enumerable inherited one
	if err := o.DefineProperty(value.StringKey("x"), value.DataProperty(value.Number(2), true, false, true)); err != nil {
		t.Fatal(err)
	}
	out := h.out()
	h.ok(h.e.GetPropertyNames(h.ctx, h.store(o), out))
	if got := h.names(out); len(got) != 0 {
		t.Errorf("names = %v, want none", got)
	}
}

func TestDefineProperties(t *testing.T) {
	h := newHarness(t)
	obj := h.object()
	getterCalls := 0
	getter := h.g.fn(func(ctx context.Context, params ...uint64) ([]uint64, error) {
		getterCalls++
		return []uint64{uint64(h.num(7))}, nil
	})
	props := h.descriptors(
		codec.RawDescriptor{UTF8Name: h.cstr("fixed"), Value: h.num(1), Attributes: attrEnumerable},
		codec.RawDescriptor{UTF8Name: h.cstr("open"), Value: h.num(2), Attributes: attrWritable | attrEnumerable | attrConfigurable},
		codec.RawDescriptor{Name: h.str("lazy"), Getter: getter},
	)
	h.ok(h.e.DefineProperties(h.ctx, obj, 3, props))

	o := h.e.Load(obj).(*value.Object)
	p, ok := o.GetOwnProperty(value.StringKey("fixed"))
	if !ok || p.Writable || p.Configurable || !p.Enumerable {
		t.Errorf("fixed = %+v", p)
	}
	p, ok = o.GetOwnProperty(value.StringKey("open"))
	if !ok || !p.Writable || !p.Configurable || !p.Enumerable {
		t.Errorf("open = %+v", p)
	}
	p, ok = o.GetOwnProperty(value.StringKey("lazy"))
	if !ok || !p.Accessor || p.Enumerable {
		t.Errorf("lazy = %+v", p)
	}

	out := h.out()
	h.ok(h.e.GetNamedProperty(h.ctx, obj, h.cstr("lazy"), out))
	if got := h.load(out); got != value.Number(7) || getterCalls != 1 {
		t.Errorf("lazy = %v after %d getter calls", got, getterCalls)
	}

	bad := h.descriptors(codec.RawDescriptor{Name: h.num(1), Value: h.num(1)})
	h.status(h.e.DefineProperties(h.ctx, obj, 1, bad), StatusNameExpected)
	h.status(h.e.DefineProperties(h.ctx, obj, 1, 0), StatusInvalidArg)
}

func TestDefineProperties_BadNameDefinesNothing(t *testing.T) {
	h := newHarness(t)
	obj := h.object()
	props := h.descriptors(
		codec.RawDescriptor{UTF8Name: h.cstr("first"), Value: h.num(1), Attributes: attrEnumerable},
		codec.RawDescriptor{Name: h.num(7), Value: h.num(2)},
	)
	h.status(h.e.DefineProperties(h.ctx, obj, 2, props), StatusNameExpected)

	o := h.e.Load(obj).(*value.Object)
	if _, ok := o.GetOwnProperty(value.StringKey("first")); ok {
		t.Error("first defined after a failed define_properties")
	}
	if keys := o.OwnKeys(); len(keys) != 0 {
		t.Errorf("own keys = %v, want none", keys)
	}
}

func TestFreezeAndSeal(t *testing.T) {
	h := newHarness(t)
	obj := h.object()
	h.ok(h.e.SetNamedProperty(h.ctx, obj, h.cstr("a"), h.num(1)))
	h.ok(h.e.ObjectSeal(h.ctx, obj))
	o := h.e.Load(obj).(*value.Object)
	if p, _ := o.GetOwnProperty(value.StringKey("a")); p.Configurable || !p.Writable {
		t.Errorf("sealed a = %+v", p)
	}
	h.ok(h.e.ObjectFreeze(h.ctx, obj))
	if p, _ := o.GetOwnProperty(value.StringKey("a")); p.Writable {
		t.Errorf("frozen a = %+v", p)
	}
	h.status(h.e.ObjectFreeze(h.ctx, h.num(1)), StatusObjectExpected)
}
