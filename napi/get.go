package napi

import (
	"context"
	"math"

	"github.com/wippyai/wasm-napi/codec"
	"github.com/wippyai/wasm-napi/value"
)

func (e *Env) GetUndefined(ctx context.Context, result uint32) Status {
	return e.call("napi_get_undefined", func() error { return e.putValue(result, value.Undefined) })
}

func (e *Env) GetNull(ctx context.Context, result uint32) Status {
	return e.call("napi_get_null", func() error { return e.putValue(result, value.Null) })
}

func (e *Env) GetGlobal(ctx context.Context, result uint32) Status {
	return e.call("napi_get_global", func() error { return e.putValue(result, e.realm.Global) })
}

func (e *Env) GetBoolean(ctx context.Context, b, result uint32) Status {
	return e.call("napi_get_boolean", func() error { return e.putValue(result, value.Bool(b != 0)) })
}

func (e *Env) GetArrayLength(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_array_length", func() error {
		a, ok := e.load(v).(*value.Object)
		if !ok || !a.IsArray() {
			return StatusArrayExpected
		}
		return e.putU32(result, a.Length())
	})
}

// GetPrototype writes the prototype of v, or null at the end of the chain.
func (e *Env) GetPrototype(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_prototype", func() error {
		obj, err := e.toObject(v)
		if err != nil {
			return err
		}
		if p := obj.Prototype(); p != nil {
			return e.putValue(result, p)
		}
		return e.putValue(result, value.Null)
	})
}

func (e *Env) GetValueDouble(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_value_double", func() error {
		n, err := e.number(v, result)
		if err != nil {
			return err
		}
		return e.view.PutF64(result, n)
	})
}

func (e *Env) GetValueInt32(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_value_int32", func() error {
		n, err := e.number(v, result)
		if err != nil {
			return err
		}
		return e.view.PutI32(result, value.ToInt32(n))
	})
}

func (e *Env) GetValueUint32(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_value_uint32", func() error {
		n, err := e.number(v, result)
		if err != nil {
			return err
		}
		return e.view.PutU32(result, value.ToUint32(n))
	})
}

// GetValueInt64 truncates toward zero and saturates; NaN and infinities read
// as 0.
func (e *Env) GetValueInt64(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_value_int64", func() error {
		n, err := e.number(v, result)
		if err != nil {
			return err
		}
		return e.view.PutI64(result, value.ToInt64(n))
	})
}

func (e *Env) number(v, result uint32) (float64, error) {
	if result == 0 {
		return 0, StatusInvalidArg
	}
	n, ok := e.load(v).(value.Number)
	if !ok {
		return 0, StatusNumberExpected
	}
	return float64(n), nil
}

func (e *Env) GetValueBool(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_value_bool", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		b, ok := e.load(v).(value.Bool)
		if !ok {
			return StatusBooleanExpected
		}
		return e.view.PutBool(result, bool(b))
	})
}

// GetValueBigIntInt64 writes the low 64 bits of v; lossless reports whether
// they hold the whole value.
func (e *Env) GetValueBigIntInt64(ctx context.Context, v, result, lossless uint32) Status {
	return e.call("napi_get_value_bigint_int64", func() error {
		b, err := e.bigint(v, result, lossless)
		if err != nil {
			return err
		}
		n, exact := b.Int64()
		if err := e.view.PutI64(result, n); err != nil {
			return err
		}
		return e.view.PutBool(lossless, exact)
	})
}

func (e *Env) GetValueBigIntUint64(ctx context.Context, v, result, lossless uint32) Status {
	return e.call("napi_get_value_bigint_uint64", func() error {
		b, err := e.bigint(v, result, lossless)
		if err != nil {
			return err
		}
		n, exact := b.Uint64()
		if err := e.view.PutU64(result, n); err != nil {
			return err
		}
		return e.view.PutBool(lossless, exact)
	})
}

func (e *Env) bigint(v, result, lossless uint32) (*value.BigInt, error) {
	if result == 0 || lossless == 0 {
		return nil, StatusInvalidArg
	}
	b, ok := e.load(v).(*value.BigInt)
	if !ok {
		return nil, StatusBigIntExpected
	}
	return b, nil
}

// GetValueBigIntWords writes the sign and magnitude words of v. count is
// in/out: it holds the capacity of words and receives the number of words
// the value needs. With a NULL words pointer only the count is reported.
func (e *Env) GetValueBigIntWords(ctx context.Context, v, sign, count, words uint32) Status {
	return e.call("napi_get_value_bigint_words", func() error {
		if count == 0 {
			return StatusInvalidArg
		}
		b, ok := e.load(v).(*value.BigInt)
		if !ok {
			return StatusBigIntExpected
		}
		if words == 0 {
			return e.view.PutU32(count, uint32(len(codec.Words(b.Int()))))
		}
		if sign == 0 {
			return StatusInvalidArg
		}
		capacity, err := e.view.U32(count)
		if err != nil {
			return err
		}
		needed, err := e.view.WriteBigInt(b.Int(), words, capacity)
		if err != nil {
			return err
		}
		var neg int32
		if b.Sign() < 0 {
			neg = 1
		}
		if err := e.view.PutI32(sign, neg); err != nil {
			return err
		}
		return e.view.PutU32(count, needed)
	})
}

func (e *Env) GetValueStringUTF8(ctx context.Context, v, buf, size, result uint32) Status {
	return e.call("napi_get_value_string_utf8", func() error {
		return e.getString(v, buf, size, result, codec.UTF8)
	})
}

func (e *Env) GetValueStringUTF16(ctx context.Context, v, buf, size, result uint32) Status {
	return e.call("napi_get_value_string_utf16", func() error {
		return e.getString(v, buf, size, result, codec.UTF16)
	})
}

func (e *Env) GetValueStringLatin1(ctx context.Context, v, buf, size, result uint32) Status {
	return e.call("napi_get_value_string_latin1", func() error {
		return e.getString(v, buf, size, result, codec.Latin1)
	})
}

// getString copies a string into a guest buffer of size code units. At most
// size-1 units are written followed by a NUL; result receives the units
// written. With a NULL buffer result receives the full length instead.
func (e *Env) getString(v, buf, size, result uint32, enc codec.Encoding) error {
	s, ok := e.load(v).(value.String)
	if !ok {
		return StatusStringExpected
	}
	if buf == 0 {
		if result == 0 {
			return StatusInvalidArg
		}
		n, err := codec.EncodedLength(string(s), enc)
		if err != nil {
			return err
		}
		return e.view.PutU32(result, n)
	}
	var units uint32
	if size > 0 {
		unit := enc.UnitSize()
		budget := uint64(size-1) * uint64(unit)
		if budget > math.MaxUint32 {
			return StatusInvalidArg
		}
		n, err := e.view.WriteString(buf, uint32(budget), string(s), enc)
		if err != nil {
			return err
		}
		if err := e.view.PutBytes(buf+n, make([]byte, unit)); err != nil {
			return err
		}
		units = n / unit
	}
	if result == 0 {
		return nil
	}
	return e.view.PutU32(result, units)
}

func (e *Env) GetDateValue(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_date_value", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, ok := e.load(v).(*value.Object)
		if !ok {
			return StatusDateExpected
		}
		ms, ok := o.DateValue()
		if !ok {
			return StatusDateExpected
		}
		return e.view.PutF64(result, ms)
	})
}

func (e *Env) GetValueExternal(ctx context.Context, v, result uint32) Status {
	return e.call("napi_get_value_external", func() error {
		o, ok := e.load(v).(*value.Object)
		if !ok || o.Kind() != value.KindExternal {
			return StatusInvalidArg
		}
		return e.putU32(result, o.Identity().External)
	})
}

// GetArrayBufferInfo reports the byte length. The data pointer is always NULL
// since host buffers live outside guest memory.
func (e *Env) GetArrayBufferInfo(ctx context.Context, v, data, byteLength uint32) Status {
	return e.call("napi_get_arraybuffer_info", func() error {
		o, ok := e.load(v).(*value.Object)
		if !ok || !o.IsArrayBuffer() {
			return StatusInvalidArg
		}
		if err := e.putNullData(data); err != nil {
			return err
		}
		return e.putOptU32(byteLength, uint32(len(o.Bytes())))
	})
}

func (e *Env) GetBufferInfo(ctx context.Context, v, data, length uint32) Status {
	return e.call("napi_get_buffer_info", func() error {
		o, ok := e.load(v).(*value.Object)
		if !ok || !(o.IsBuffer() || o.IsTypedArray() || o.IsDataView()) {
			return StatusInvalidArg
		}
		if err := e.putNullData(data); err != nil {
			return err
		}
		return e.putOptU32(length, uint32(len(o.Bytes())))
	})
}

func (e *Env) GetTypedArrayInfo(ctx context.Context, v, kind, length, data, buffer, byteOffset uint32) Status {
	return e.call("napi_get_typedarray_info", func() error {
		o, ok := e.load(v).(*value.Object)
		if !ok {
			return StatusInvalidArg
		}
		info, ok := o.TypedArray()
		if !ok {
			return StatusInvalidArg
		}
		if err := e.putOptU32(kind, uint32(info.Kind)); err != nil {
			return err
		}
		if err := e.putOptU32(length, info.Length); err != nil {
			return err
		}
		if err := e.putNullData(data); err != nil {
			return err
		}
		if buffer != 0 {
			if err := e.putValue(buffer, info.Buffer); err != nil {
				return err
			}
		}
		return e.putOptU32(byteOffset, info.ByteOffset)
	})
}

func (e *Env) GetDataViewInfo(ctx context.Context, v, byteLength, data, buffer, byteOffset uint32) Status {
	return e.call("napi_get_dataview_info", func() error {
		o, ok := e.load(v).(*value.Object)
		if !ok {
			return StatusInvalidArg
		}
		info, ok := o.DataView()
		if !ok {
			return StatusInvalidArg
		}
		if err := e.putOptU32(byteLength, info.ByteLength); err != nil {
			return err
		}
		if err := e.putNullData(data); err != nil {
			return err
		}
		if buffer != 0 {
			if err := e.putValue(buffer, info.Buffer); err != nil {
				return err
			}
		}
		return e.putOptU32(byteOffset, info.ByteOffset)
	})
}

func (e *Env) putOptU32(ptr, n uint32) error {
	if ptr == 0 {
		return nil
	}
	return e.view.PutU32(ptr, n)
}

// Coercion

func (e *Env) CoerceToBool(ctx context.Context, v, result uint32) Status {
	return e.call("napi_coerce_to_bool", func() error {
		return e.putValue(result, value.Bool(value.ToBoolean(e.load(v))))
	})
}

func (e *Env) CoerceToNumber(ctx context.Context, v, result uint32) Status {
	return e.call("napi_coerce_to_number", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		n, err := e.realm.ToNumber(ctx, e.load(v))
		if err != nil {
			return err
		}
		return e.putValue(result, value.Number(n))
	})
}

func (e *Env) CoerceToString(ctx context.Context, v, result uint32) Status {
	return e.call("napi_coerce_to_string", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		s, err := e.realm.ToString(ctx, e.load(v))
		if err != nil {
			return err
		}
		return e.putValue(result, value.String(s))
	})
}

func (e *Env) CoerceToObject(ctx context.Context, v, result uint32) Status {
	return e.call("napi_coerce_to_object", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		obj, err := e.toObject(v)
		if err != nil {
			return err
		}
		return e.putValue(result, obj)
	})
}

// Inspection

// TypeOf writes the napi_valuetype of v.
func (e *Env) TypeOf(ctx context.Context, v, result uint32) Status {
	return e.call("napi_typeof", func() error {
		return e.putU32(result, uint32(e.load(v).Kind()))
	})
}

// InstanceOf evaluates v instanceof ctor. A non-function constructor throws a
// TypeError and reports function-expected.
func (e *Env) InstanceOf(ctx context.Context, v, ctor, result uint32) Status {
	return e.call("napi_instanceof", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		c := e.load(ctor)
		if !value.IsCallable(c) {
			e.Throw(e.realm.NewError(value.TypeError, "Constructor must be a function"))
			return StatusFunctionExpected
		}
		ok, err := e.realm.InstanceOf(ctx, e.load(v), c)
		if err != nil {
			return err
		}
		return e.view.PutBool(result, ok)
	})
}

func (e *Env) IsArray(ctx context.Context, v, result uint32) Status {
	return e.is("napi_is_array", v, result, (*value.Object).IsArray)
}

func (e *Env) IsArrayBuffer(ctx context.Context, v, result uint32) Status {
	return e.is("napi_is_arraybuffer", v, result, (*value.Object).IsArrayBuffer)
}

func (e *Env) IsBuffer(ctx context.Context, v, result uint32) Status {
	return e.is("napi_is_buffer", v, result, func(o *value.Object) bool {
		return o.IsBuffer() || o.IsTypedArray() || o.IsDataView()
	})
}

func (e *Env) IsDate(ctx context.Context, v, result uint32) Status {
	return e.is("napi_is_date", v, result, (*value.Object).IsDate)
}

func (e *Env) IsError(ctx context.Context, v, result uint32) Status {
	return e.is("napi_is_error", v, result, func(o *value.Object) bool { return value.IsError(o) })
}

func (e *Env) IsTypedArray(ctx context.Context, v, result uint32) Status {
	return e.is("napi_is_typedarray", v, result, (*value.Object).IsTypedArray)
}

func (e *Env) IsDataView(ctx context.Context, v, result uint32) Status {
	return e.is("napi_is_dataview", v, result, (*value.Object).IsDataView)
}

func (e *Env) IsDetachedArrayBuffer(ctx context.Context, v, result uint32) Status {
	return e.is("napi_is_detached_arraybuffer", v, result, (*value.Object).IsDetached)
}

// is writes pred(v) for objects and false for primitives.
func (e *Env) is(op string, v, result uint32, pred func(*value.Object) bool) Status {
	return e.call(op, func() error {
		o, ok := e.load(v).(*value.Object)
		return e.putBool(result, ok && pred(o))
	})
}

func (e *Env) StrictEquals(ctx context.Context, a, b, result uint32) Status {
	return e.call("napi_strict_equals", func() error {
		return e.putBool(result, value.StrictEquals(e.load(a), e.load(b)))
	})
}

// DetachArrayBuffer empties an ArrayBuffer; every view over it reads as
// zero length afterwards.
func (e *Env) DetachArrayBuffer(ctx context.Context, v uint32) Status {
	return e.call("napi_detach_arraybuffer", func() error {
		o, ok := e.load(v).(*value.Object)
		if !ok || !o.IsArrayBuffer() {
			return StatusArrayBufferExpected
		}
		if !o.Detach() {
			return StatusDetachableArrayBufferExpected
		}
		return nil
	})
}
