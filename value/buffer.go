package value

import (
	"context"
	"encoding/binary"
	"math"
)

// TypedArrayKind is the element type of a typed array.
type TypedArrayKind uint8

const (
	Int8Array TypedArrayKind = iota
	Uint8Array
	Uint8ClampedArray
	Int16Array
	Uint16Array
	Int32Array
	Uint32Array
	Float32Array
	Float64Array
	BigInt64Array
	BigUint64Array
)

var typedArrayNames = [...]string{
	Int8Array:         "Int8Array",
	Uint8Array:        "Uint8Array",
	Uint8ClampedArray: "Uint8ClampedArray",
	Int16Array:        "Int16Array",
	Uint16Array:       "Uint16Array",
	Int32Array:        "Int32Array",
	Uint32Array:       "Uint32Array",
	Float32Array:      "Float32Array",
	Float64Array:      "Float64Array",
	BigInt64Array:     "BigInt64Array",
	BigUint64Array:    "BigUint64Array",
}

func (k TypedArrayKind) String() string {
	if int(k) < len(typedArrayNames) {
		return typedArrayNames[k]
	}
	return "TypedArray"
}

// Valid reports whether k names a known element type.
func (k TypedArrayKind) Valid() bool {
	return k <= BigUint64Array
}

// ElementSize returns the size of one element in bytes.
func (k TypedArrayKind) ElementSize() uint32 {
	switch k {
	case Int8Array, Uint8Array, Uint8ClampedArray:
		return 1
	case Int16Array, Uint16Array:
		return 2
	case Int32Array, Uint32Array, Float32Array:
		return 4
	}
	return 8
}

// IsBigInt reports whether elements are BigInts.
func (k TypedArrayKind) IsBigInt() bool {
	return k == BigInt64Array || k == BigUint64Array
}

type arrayBuffer struct {
	data     []byte
	detached bool
}

type typedArray struct {
	buf      *Object
	kind     TypedArrayKind
	offset   uint32
	n        uint32
	isBuffer bool
}

type dataView struct {
	buf    *Object
	offset uint32
	n      uint32
}

func (t *typedArray) backing() *arrayBuffer {
	return t.buf.internal.(*arrayBuffer)
}

func (t *typedArray) length() uint32 {
	if t.backing().detached {
		return 0
	}
	return t.n
}

func (t *typedArray) bytes() []byte {
	ab := t.backing()
	if ab.detached {
		return nil
	}
	size := t.kind.ElementSize()
	return ab.data[t.offset : t.offset+t.n*size]
}

func (t *typedArray) get(idx float64) (Value, bool) {
	if idx < 0 || idx != math.Trunc(idx) || math.Signbit(idx) || idx >= float64(t.length()) {
		return nil, false
	}
	size := t.kind.ElementSize()
	b := t.bytes()[uint32(idx)*size:]
	switch t.kind {
	case Int8Array:
		return Number(int8(b[0])), true
	case Uint8Array, Uint8ClampedArray:
		return Number(b[0]), true
	case Int16Array:
		return Number(int16(binary.LittleEndian.Uint16(b))), true
	case Uint16Array:
		return Number(binary.LittleEndian.Uint16(b)), true
	case Int32Array:
		return Number(int32(binary.LittleEndian.Uint32(b))), true
	case Uint32Array:
		return Number(binary.LittleEndian.Uint32(b)), true
	case Float32Array:
		return Number(math.Float32frombits(binary.LittleEndian.Uint32(b))), true
	case Float64Array:
		return Number(math.Float64frombits(binary.LittleEndian.Uint64(b))), true
	case BigInt64Array:
		return BigIntFromInt64(int64(binary.LittleEndian.Uint64(b))), true
	default:
		return BigIntFromUint64(binary.LittleEndian.Uint64(b)), true
	}
}

// coerce converts v to the element domain: a BigInt for the 64-bit kinds, a
// Number otherwise.
func (t *typedArray) coerce(ctx context.Context, r *Realm, v Value) (Value, error) {
	if t.kind.IsBigInt() {
		return r.ToBigInt(ctx, v)
	}
	n, err := r.ToNumber(ctx, v)
	if err != nil {
		return nil, err
	}
	return Number(n), nil
}

func (t *typedArray) setPrimitive(i uint32, v Value) error {
	if i >= t.length() {
		return errIndexOutOfRange
	}
	size := t.kind.ElementSize()
	b := t.bytes()[i*size:]
	if t.kind.IsBigInt() {
		bi, ok := v.(*BigInt)
		if !ok {
			return errElementType
		}
		u, _ := bi.Uint64()
		binary.LittleEndian.PutUint64(b, u)
		return nil
	}
	num, ok := v.(Number)
	if !ok {
		return errElementType
	}
	n := float64(num)
	switch t.kind {
	case Int8Array, Uint8Array:
		b[0] = byte(ToUint32(n))
	case Uint8ClampedArray:
		b[0] = clampUint8(n)
	case Int16Array, Uint16Array:
		binary.LittleEndian.PutUint16(b, uint16(ToUint32(n)))
	case Int32Array, Uint32Array:
		binary.LittleEndian.PutUint32(b, ToUint32(n))
	case Float32Array:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(n)))
	case Float64Array:
		binary.LittleEndian.PutUint64(b, math.Float64bits(n))
	}
	return nil
}

func clampUint8(n float64) byte {
	switch {
	case math.IsNaN(n), n <= 0:
		return 0
	case n >= 255:
		return 255
	}
	return byte(math.RoundToEven(n))
}

type valueError string

func (e valueError) Error() string { return string(e) }

const (
	errIndexOutOfRange = valueError("index out of range")
	errElementType     = valueError("element type mismatch")
)

// NewArrayBuffer creates a zero-filled ArrayBuffer of n bytes.
func (r *Realm) NewArrayBuffer(n uint32) *Object {
	return r.NewArrayBufferFrom(make([]byte, n))
}

// NewArrayBufferFrom creates an ArrayBuffer that owns data.
func (r *Realm) NewArrayBufferFrom(data []byte) *Object {
	o := r.newObject(ClassArrayBuffer, r.ArrayBufferPrototype)
	o.internal = &arrayBuffer{data: data}
	return o
}

// NewTypedArray creates a view of length elements over buf starting at
// byteOffset. Misaligned or out-of-range views throw a RangeError.
func (r *Realm) NewTypedArray(kind TypedArrayKind, buf *Object, byteOffset, length uint32) (*Object, error) {
	return r.newTypedArray(kind, buf, byteOffset, length, r.typedArrayPrototypes[kind], false)
}

// NewBuffer creates a Node-style Buffer: a Uint8Array over a fresh
// ArrayBuffer holding a copy of data.
func (r *Realm) NewBuffer(data []byte) *Object {
	cp := make([]byte, len(data))
	copy(cp, data)
	o, _ := r.newTypedArray(Uint8Array, r.NewArrayBufferFrom(cp), 0, uint32(len(cp)), r.bufferPrototype, true)
	return o
}

func (r *Realm) newTypedArray(kind TypedArrayKind, buf *Object, byteOffset, length uint32, proto *Object, isBuffer bool) (*Object, error) {
	ab, ok := buf.internal.(*arrayBuffer)
	if !ok || buf.class != ClassArrayBuffer {
		return nil, r.Throwf(TypeError, "First argument must be an ArrayBuffer")
	}
	if ab.detached {
		return nil, r.Throwf(TypeError, "Cannot perform Construct on a detached ArrayBuffer")
	}
	size := kind.ElementSize()
	if byteOffset%size != 0 {
		return nil, r.Throwf(RangeError, "start offset of %s should be a multiple of %d", kind, size)
	}
	if uint64(byteOffset)+uint64(length)*uint64(size) > uint64(len(ab.data)) {
		return nil, r.Throwf(RangeError, "Invalid typed array length: %d", length)
	}
	o := r.newObject(ClassTypedArray, proto)
	o.internal = &typedArray{buf: buf, kind: kind, offset: byteOffset, n: length, isBuffer: isBuffer}
	return o, nil
}

// NewDataView creates a DataView of byteLength bytes over buf.
func (r *Realm) NewDataView(buf *Object, byteOffset, byteLength uint32) (*Object, error) {
	ab, ok := buf.internal.(*arrayBuffer)
	if !ok || buf.class != ClassArrayBuffer {
		return nil, r.Throwf(TypeError, "First argument to DataView constructor must be an ArrayBuffer")
	}
	if uint64(byteOffset) > uint64(len(ab.data)) {
		return nil, r.Throwf(RangeError, "Start offset %d is outside the bounds of the buffer", byteOffset)
	}
	if uint64(byteOffset)+uint64(byteLength) > uint64(len(ab.data)) {
		return nil, r.Throwf(RangeError, "Invalid DataView length %d", byteLength)
	}
	o := r.newObject(ClassDataView, r.DataViewPrototype)
	o.internal = &dataView{buf: buf, offset: byteOffset, n: byteLength}
	return o, nil
}

// IsArrayBuffer reports whether the object is an ArrayBuffer.
func (o *Object) IsArrayBuffer() bool { return o.class == ClassArrayBuffer }

// IsTypedArray reports whether the object is a typed array, Buffers included.
func (o *Object) IsTypedArray() bool { return o.class == ClassTypedArray }

// IsDataView reports whether the object is a DataView.
func (o *Object) IsDataView() bool { return o.class == ClassDataView }

// IsBuffer reports whether the object is a Buffer.
func (o *Object) IsBuffer() bool {
	ta, ok := o.internal.(*typedArray)
	return ok && ta.isBuffer
}

// Bytes returns the bytes backing an ArrayBuffer, typed array or DataView.
// The slice aliases the buffer.
func (o *Object) Bytes() []byte {
	switch x := o.internal.(type) {
	case *arrayBuffer:
		if x.detached {
			return nil
		}
		return x.data
	case *typedArray:
		return x.bytes()
	case *dataView:
		ab := x.buf.internal.(*arrayBuffer)
		if ab.detached {
			return nil
		}
		return ab.data[x.offset : x.offset+x.n]
	}
	return nil
}

// Detach empties an ArrayBuffer. It reports false for other objects.
func (o *Object) Detach() bool {
	ab, ok := o.internal.(*arrayBuffer)
	if !ok {
		return false
	}
	ab.data = nil
	ab.detached = true
	return true
}

// IsDetached reports whether the object is a detached ArrayBuffer.
func (o *Object) IsDetached() bool {
	ab, ok := o.internal.(*arrayBuffer)
	return ok && ab.detached
}

// TypedArrayInfo describes a typed array view.
type TypedArrayInfo struct {
	Buffer     *Object
	Kind       TypedArrayKind
	Length     uint32
	ByteOffset uint32
}

// TypedArray returns the view description of a typed array.
func (o *Object) TypedArray() (TypedArrayInfo, bool) {
	ta, ok := o.internal.(*typedArray)
	if !ok {
		return TypedArrayInfo{}, false
	}
	return TypedArrayInfo{Buffer: ta.buf, Kind: ta.kind, Length: ta.length(), ByteOffset: ta.offset}, true
}

// DataViewInfo describes a DataView.
type DataViewInfo struct {
	Buffer     *Object
	ByteLength uint32
	ByteOffset uint32
}

// DataView returns the view description of a DataView.
func (o *Object) DataView() (DataViewInfo, bool) {
	dv, ok := o.internal.(*dataView)
	if !ok {
		return DataViewInfo{}, false
	}
	return DataViewInfo{Buffer: dv.buf, ByteLength: dv.n, ByteOffset: dv.offset}, true
}

func (r *Realm) initBuffers() {
	abp := r.newObject(ClassObject, r.ObjectPrototype)
	r.ArrayBufferPrototype = abp
	r.getter(abp, "byteLength", func(_ context.Context, call *CallInfo) (Value, error) {
		o, ok := call.This.(*Object)
		if !ok || o.class != ClassArrayBuffer {
			return nil, r.Throwf(TypeError, "Method ArrayBuffer.prototype.byteLength called on incompatible receiver")
		}
		return Number(len(o.Bytes())), nil
	})
	r.global("ArrayBuffer", r.NewFunctionFrom(FunctionSpec{
		Name:        "ArrayBuffer",
		Length:      1,
		Constructor: true,
		Prototype:   abp,
		Construct: func(ctx context.Context, call *CallInfo) (*Object, error) {
			n, err := r.ToNumber(ctx, call.Arg(0))
			if err != nil {
				return nil, err
			}
			if math.IsNaN(n) {
				n = 0
			}
			if n < 0 || n > math.MaxUint32 {
				return nil, r.Throwf(RangeError, "Array buffer allocation failed")
			}
			proto, err := r.prototypeFromConstructor(ctx, call.NewTarget, abp)
			if err != nil {
				return nil, err
			}
			o := r.NewArrayBuffer(uint32(n))
			o.proto = proto
			return o, nil
		},
		Call: func(context.Context, *CallInfo) (Value, error) {
			return nil, r.Throwf(TypeError, "Constructor ArrayBuffer requires 'new'")
		},
	}))

	for kind := Int8Array; kind <= BigUint64Array; kind++ {
		r.installTypedArray(kind)
	}

	r.bufferPrototype = r.newObject(ClassObject, r.typedArrayPrototypes[Uint8Array])
	r.method(r.bufferPrototype, "toString", 0, func(_ context.Context, call *CallInfo) (Value, error) {
		o, ok := call.This.(*Object)
		if !ok || !o.IsBuffer() {
			return nil, r.Throwf(TypeError, "argument must be a buffer")
		}
		return String(o.Bytes()), nil
	})

	dvp := r.newObject(ClassObject, r.ObjectPrototype)
	r.DataViewPrototype = dvp
	dvInfo := func(v Value) (DataViewInfo, error) {
		if o, ok := v.(*Object); ok {
			if info, ok := o.DataView(); ok {
				return info, nil
			}
		}
		return DataViewInfo{}, r.Throwf(TypeError, "Receiver is not a DataView")
	}
	r.getter(dvp, "buffer", func(_ context.Context, call *CallInfo) (Value, error) {
		info, err := dvInfo(call.This)
		if err != nil {
			return nil, err
		}
		return info.Buffer, nil
	})
	r.getter(dvp, "byteLength", func(_ context.Context, call *CallInfo) (Value, error) {
		info, err := dvInfo(call.This)
		if err != nil {
			return nil, err
		}
		return Number(info.ByteLength), nil
	})
	r.getter(dvp, "byteOffset", func(_ context.Context, call *CallInfo) (Value, error) {
		info, err := dvInfo(call.This)
		if err != nil {
			return nil, err
		}
		return Number(info.ByteOffset), nil
	})
	r.global("DataView", r.NewFunctionFrom(FunctionSpec{
		Name:        "DataView",
		Length:      1,
		Constructor: true,
		Prototype:   dvp,
		Construct: func(ctx context.Context, call *CallInfo) (*Object, error) {
			buf, ok := call.Arg(0).(*Object)
			if !ok || !buf.IsArrayBuffer() {
				return nil, r.Throwf(TypeError, "First argument to DataView constructor must be an ArrayBuffer")
			}
			off, err := r.ToNumber(ctx, call.Arg(1))
			if err != nil {
				return nil, err
			}
			size := uint32(len(buf.Bytes()))
			offset := ToUint32(off)
			length := size - min(offset, size)
			if l := call.Arg(2); l != Undefined {
				n, err := r.ToNumber(ctx, l)
				if err != nil {
					return nil, err
				}
				length = ToUint32(n)
			}
			return r.NewDataView(buf, offset, length)
		},
		Call: func(context.Context, *CallInfo) (Value, error) {
			return nil, r.Throwf(TypeError, "Constructor DataView requires 'new'")
		},
	}))
}

func (r *Realm) installTypedArray(kind TypedArrayKind) {
	proto := r.newObject(ClassObject, r.ObjectPrototype)
	r.typedArrayPrototypes[kind] = proto
	size := kind.ElementSize()
	proto.props.set(StringKey("BYTES_PER_ELEMENT"), DataProperty(Number(size), false, false, false))

	info := func(v Value) (TypedArrayInfo, error) {
		if o, ok := v.(*Object); ok {
			if ti, ok := o.TypedArray(); ok {
				return ti, nil
			}
		}
		return TypedArrayInfo{}, r.Throwf(TypeError, "this is not a typed array.")
	}
	r.getter(proto, "length", func(_ context.Context, call *CallInfo) (Value, error) {
		ti, err := info(call.This)
		if err != nil {
			return nil, err
		}
		return Number(ti.Length), nil
	})
	r.getter(proto, "byteLength", func(_ context.Context, call *CallInfo) (Value, error) {
		ti, err := info(call.This)
		if err != nil {
			return nil, err
		}
		return Number(ti.Length * ti.Kind.ElementSize()), nil
	})
	r.getter(proto, "byteOffset", func(_ context.Context, call *CallInfo) (Value, error) {
		ti, err := info(call.This)
		if err != nil {
			return nil, err
		}
		return Number(ti.ByteOffset), nil
	})
	r.getter(proto, "buffer", func(_ context.Context, call *CallInfo) (Value, error) {
		ti, err := info(call.This)
		if err != nil {
			return nil, err
		}
		return ti.Buffer, nil
	})

	ctor := r.NewFunctionFrom(FunctionSpec{
		Name:        kind.String(),
		Length:      3,
		Constructor: true,
		Prototype:   proto,
		Construct: func(ctx context.Context, call *CallInfo) (*Object, error) {
			p, err := r.prototypeFromConstructor(ctx, call.NewTarget, proto)
			if err != nil {
				return nil, err
			}
			switch a := call.Arg(0).(type) {
			case *Object:
				if a.IsArrayBuffer() {
					return r.typedArrayOverBuffer(ctx, kind, a, call, p)
				}
				return r.typedArrayFromIterable(ctx, kind, a, p)
			default:
				n, err := r.ToNumber(ctx, a)
				if err != nil {
					return nil, err
				}
				if math.IsNaN(n) {
					n = 0
				}
				if n < 0 || n != math.Trunc(n) || n*float64(size) > math.MaxUint32 {
					return nil, r.Throwf(RangeError, "Invalid typed array length: %s", NumberToString(n))
				}
				return r.newTypedArray(kind, r.NewArrayBuffer(uint32(n)*size), 0, uint32(n), p, false)
			}
		},
		Call: func(context.Context, *CallInfo) (Value, error) {
			return nil, r.Throwf(TypeError, "Constructor %s requires 'new'", kind)
		},
	})
	ctor.props.set(StringKey("BYTES_PER_ELEMENT"), DataProperty(Number(size), false, false, false))
	r.typedArrayConstructors[kind] = ctor
	r.global(kind.String(), ctor)
}

func (r *Realm) typedArrayOverBuffer(ctx context.Context, kind TypedArrayKind, buf *Object, call *CallInfo, proto *Object) (*Object, error) {
	size := kind.ElementSize()
	off, err := r.ToNumber(ctx, call.Arg(1))
	if err != nil {
		return nil, err
	}
	offset := ToUint32(off)
	total := uint32(len(buf.Bytes()))
	var length uint32
	if l := call.Arg(2); l != Undefined {
		n, err := r.ToNumber(ctx, l)
		if err != nil {
			return nil, err
		}
		length = ToUint32(n)
	} else {
		if total%size != 0 {
			return nil, r.Throwf(RangeError, "byte length of %s should be a multiple of %d", kind, size)
		}
		if offset > total {
			return nil, r.Throwf(RangeError, "Start offset %d is outside the bounds of the buffer", offset)
		}
		length = (total - offset) / size
	}
	return r.newTypedArray(kind, buf, offset, length, proto, false)
}

func (r *Realm) typedArrayFromIterable(ctx context.Context, kind TypedArrayKind, src *Object, proto *Object) (*Object, error) {
	n, err := r.lengthOf(ctx, src)
	if err != nil {
		return nil, err
	}
	o, err := r.newTypedArray(kind, r.NewArrayBuffer(n*kind.ElementSize()), 0, n, proto, false)
	if err != nil {
		return nil, err
	}
	ta := o.internal.(*typedArray)
	for i := uint32(0); i < n; i++ {
		el, err := src.Get(ctx, IndexKey(i))
		if err != nil {
			return nil, err
		}
		v, err := ta.coerce(ctx, r, el)
		if err != nil {
			return nil, err
		}
		if err := ta.setPrimitive(i, v); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// TypedArrayConstructor returns the constructor for kind.
func (r *Realm) TypedArrayConstructor(kind TypedArrayKind) *Object {
	return r.typedArrayConstructors[kind]
}
