package napi

import (
	"context"
	"math"

	"github.com/wippyai/wasm-napi/codec"
	"github.com/wippyai/wasm-napi/value"
)

func (e *Env) CreateObject(ctx context.Context, result uint32) Status {
	return e.call("napi_create_object", func() error {
		return e.putValue(result, e.realm.NewObject())
	})
}

func (e *Env) CreateArray(ctx context.Context, result uint32) Status {
	return e.call("napi_create_array", func() error {
		return e.putValue(result, e.realm.NewArray())
	})
}

func (e *Env) CreateArrayWithLength(ctx context.Context, length, result uint32) Status {
	return e.call("napi_create_array_with_length", func() error {
		return e.putValue(result, e.realm.NewArrayWithLength(length))
	})
}

func (e *Env) CreateDouble(ctx context.Context, v float64, result uint32) Status {
	return e.call("napi_create_double", func() error {
		return e.putValue(result, value.Number(v))
	})
}

func (e *Env) CreateInt32(ctx context.Context, v, result uint32) Status {
	return e.call("napi_create_int32", func() error {
		return e.putValue(result, value.Number(int32(v)))
	})
}

func (e *Env) CreateUint32(ctx context.Context, v, result uint32) Status {
	return e.call("napi_create_uint32", func() error {
		return e.putValue(result, value.Number(v))
	})
}

func (e *Env) CreateInt64(ctx context.Context, v int64, result uint32) Status {
	return e.call("napi_create_int64", func() error {
		return e.putValue(result, value.Number(v))
	})
}

func (e *Env) CreateBigIntInt64(ctx context.Context, v int64, result uint32) Status {
	return e.call("napi_create_bigint_int64", func() error {
		return e.putValue(result, value.BigIntFromInt64(v))
	})
}

func (e *Env) CreateBigIntUint64(ctx context.Context, v uint64, result uint32) Status {
	return e.call("napi_create_bigint_uint64", func() error {
		return e.putValue(result, value.BigIntFromUint64(v))
	})
}

// CreateBigIntWords builds a bigint from count little-endian 64-bit words.
func (e *Env) CreateBigIntWords(ctx context.Context, sign, count, words, result uint32) Status {
	return e.call("napi_create_bigint_words", func() error {
		if result == 0 || count > math.MaxInt32 || (count > 0 && words == 0) {
			return StatusInvalidArg
		}
		x, err := e.view.ReadBigInt(sign, count, words)
		if err != nil {
			return err
		}
		return e.putValue(result, value.NewBigInt(x))
	})
}

func (e *Env) CreateStringUTF8(ctx context.Context, ptr, length, result uint32) Status {
	return e.call("napi_create_string_utf8", func() error {
		return e.createString(ptr, length, codec.UTF8, result)
	})
}

func (e *Env) CreateStringUTF16(ctx context.Context, ptr, length, result uint32) Status {
	return e.call("napi_create_string_utf16", func() error {
		return e.createString(ptr, length, codec.UTF16, result)
	})
}

func (e *Env) CreateStringLatin1(ctx context.Context, ptr, length, result uint32) Status {
	return e.call("napi_create_string_latin1", func() error {
		return e.createString(ptr, length, codec.Latin1, result)
	})
}

// createString decodes length code units at ptr, or up to a terminator when
// length is NAPI_AUTO_LENGTH.
func (e *Env) createString(ptr, length uint32, enc codec.Encoding, result uint32) error {
	if result == 0 || (ptr == 0 && length != 0) {
		return StatusInvalidArg
	}
	if length != codec.AutoLength && length > math.MaxInt32 {
		return StatusInvalidArg
	}
	var s string
	if ptr != 0 {
		var err error
		if s, err = e.view.ReadString(ptr, length, enc); err != nil {
			return err
		}
	}
	return e.putValue(result, value.String(s))
}

// CreateSymbol creates a symbol. A NULL description handle gives a symbol
// without description.
func (e *Env) CreateSymbol(ctx context.Context, description, result uint32) Status {
	return e.call("napi_create_symbol", func() error {
		if description == 0 {
			return e.putValue(result, &value.Symbol{})
		}
		s, ok := e.load(description).(value.String)
		if !ok {
			return StatusStringExpected
		}
		return e.putValue(result, value.NewSymbol(string(s)))
	})
}

func (e *Env) CreateDate(ctx context.Context, ms float64, result uint32) Status {
	return e.call("napi_create_date", func() error {
		return e.putValue(result, e.realm.NewDate(ms))
	})
}

// CreateExternal creates an opaque value carrying data. finalizeCb, when set,
// runs with data once the value is collected.
func (e *Env) CreateExternal(ctx context.Context, data, finalizeCb, hint, result uint32) Status {
	return e.call("napi_create_external", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		obj := e.realm.NewExternal(data)
		if finalizeCb != 0 {
			e.addFinalizer(obj, finalizer{cb: finalizeCb, data: data, hint: hint})
		}
		return e.putValue(result, obj)
	})
}

// CreateArrayBuffer creates a zero-filled buffer. Host buffers are not
// addressable from guest memory, so a requested data pointer is set to NULL.
func (e *Env) CreateArrayBuffer(ctx context.Context, length, data, result uint32) Status {
	return e.call("napi_create_arraybuffer", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		if err := e.putNullData(data); err != nil {
			return err
		}
		return e.putValue(result, e.realm.NewArrayBuffer(length))
	})
}

// CreateExternalArrayBuffer copies length bytes at data into a new buffer.
// The finalizer runs when the buffer is collected, so the guest keeps
// ownership of its copy until then.
func (e *Env) CreateExternalArrayBuffer(ctx context.Context, data, length, finalizeCb, hint, result uint32) Status {
	return e.call("napi_create_external_arraybuffer", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		b, err := e.guestBytes(data, length)
		if err != nil {
			return err
		}
		obj := e.realm.NewArrayBufferFrom(b)
		if finalizeCb != 0 {
			e.addFinalizer(obj, finalizer{cb: finalizeCb, data: data, hint: hint})
		}
		return e.putValue(result, obj)
	})
}

func (e *Env) CreateBuffer(ctx context.Context, length, data, result uint32) Status {
	return e.call("napi_create_buffer", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		if err := e.putNullData(data); err != nil {
			return err
		}
		return e.putValue(result, e.realm.NewBuffer(make([]byte, length)))
	})
}

func (e *Env) CreateBufferCopy(ctx context.Context, length, data, resultData, result uint32) Status {
	return e.call("napi_create_buffer_copy", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		b, err := e.guestBytes(data, length)
		if err != nil {
			return err
		}
		if err := e.putNullData(resultData); err != nil {
			return err
		}
		return e.putValue(result, e.realm.NewBuffer(b))
	})
}

func (e *Env) CreateExternalBuffer(ctx context.Context, length, data, finalizeCb, hint, result uint32) Status {
	return e.call("napi_create_external_buffer", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		b, err := e.guestBytes(data, length)
		if err != nil {
			return err
		}
		obj := e.realm.NewBuffer(b)
		if finalizeCb != 0 {
			e.addFinalizer(obj, finalizer{cb: finalizeCb, data: data, hint: hint})
		}
		return e.putValue(result, obj)
	})
}

// CreateTypedArray creates a view over an ArrayBuffer. Misaligned or
// out-of-range views throw a RangeError.
func (e *Env) CreateTypedArray(ctx context.Context, kind, length, buffer, byteOffset, result uint32) Status {
	return e.call("napi_create_typedarray", func() error {
		k := value.TypedArrayKind(kind)
		if result == 0 || kind > math.MaxUint8 || !k.Valid() {
			return StatusInvalidArg
		}
		ab, ok := e.load(buffer).(*value.Object)
		if !ok || !ab.IsArrayBuffer() {
			return StatusInvalidArg
		}
		ta, err := e.realm.NewTypedArray(k, ab, byteOffset, length)
		if err != nil {
			return err
		}
		return e.putValue(result, ta)
	})
}

func (e *Env) CreateDataView(ctx context.Context, byteLength, buffer, byteOffset, result uint32) Status {
	return e.call("napi_create_dataview", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		ab, ok := e.load(buffer).(*value.Object)
		if !ok || !ab.IsArrayBuffer() {
			return StatusInvalidArg
		}
		if uint64(byteOffset)+uint64(byteLength) > uint64(len(ab.Bytes())) {
			return e.realm.Throwf(value.RangeError, "byte_offset + byte_length should be less than or equal to the size in bytes of the array passed in")
		}
		dv, err := e.realm.NewDataView(ab, byteOffset, byteLength)
		if err != nil {
			return err
		}
		return e.putValue(result, dv)
	})
}

// guestBytes copies length bytes of guest memory at ptr.
func (e *Env) guestBytes(ptr, length uint32) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	if ptr == 0 {
		return nil, StatusInvalidArg
	}
	b, err := e.view.Bytes(ptr, length)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// putNullData fills an optional void** out-parameter.
func (e *Env) putNullData(ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	return e.view.PutU32(ptr, 0)
}
