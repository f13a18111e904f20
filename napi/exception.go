package napi

import (
	"context"

	"github.com/wippyai/wasm-napi/codec"
	"github.com/wippyai/wasm-napi/value"
)

// errorInfoSize is sizeof(napi_extended_error_info) on wasm32.
const errorInfoSize = 16

// ThrowValue sets v as the pending exception.
func (e *Env) ThrowValue(ctx context.Context, v uint32) Status {
	return e.call("napi_throw", func() error {
		e.Throw(e.load(v))
		return nil
	})
}

func (e *Env) ThrowError(ctx context.Context, code, msg uint32) Status {
	return e.call("napi_throw_error", func() error { return e.throwError(value.Error, code, msg) })
}

func (e *Env) ThrowTypeError(ctx context.Context, code, msg uint32) Status {
	return e.call("napi_throw_type_error", func() error { return e.throwError(value.TypeError, code, msg) })
}

func (e *Env) ThrowRangeError(ctx context.Context, code, msg uint32) Status {
	return e.call("napi_throw_range_error", func() error { return e.throwError(value.RangeError, code, msg) })
}

func (e *Env) ThrowSyntaxError(ctx context.Context, code, msg uint32) Status {
	return e.call("node_api_throw_syntax_error", func() error { return e.throwError(value.SyntaxError, code, msg) })
}

// throwError builds an error from C strings and makes it pending.
func (e *Env) throwError(t value.ErrorType, codePtr, msgPtr uint32) error {
	if msgPtr == 0 {
		return StatusInvalidArg
	}
	msg, err := e.view.ReadCString(msgPtr)
	if err != nil {
		return err
	}
	obj := e.realm.NewError(t, msg)
	if codePtr != 0 {
		code, err := e.view.ReadCString(codePtr)
		if err != nil {
			return err
		}
		obj.CreateDataProperty(value.StringKey("code"), value.String(code))
	}
	e.Throw(obj)
	return nil
}

func (e *Env) CreateError(ctx context.Context, code, msg, result uint32) Status {
	return e.call("napi_create_error", func() error { return e.createError(value.Error, code, msg, result) })
}

func (e *Env) CreateTypeError(ctx context.Context, code, msg, result uint32) Status {
	return e.call("napi_create_type_error", func() error { return e.createError(value.TypeError, code, msg, result) })
}

func (e *Env) CreateRangeError(ctx context.Context, code, msg, result uint32) Status {
	return e.call("napi_create_range_error", func() error { return e.createError(value.RangeError, code, msg, result) })
}

func (e *Env) CreateSyntaxError(ctx context.Context, code, msg, result uint32) Status {
	return e.call("node_api_create_syntax_error", func() error { return e.createError(value.SyntaxError, code, msg, result) })
}

func (e *Env) createError(t value.ErrorType, codeH, msgH, result uint32) error {
	msg, ok := e.load(msgH).(value.String)
	if !ok {
		return StatusStringExpected
	}
	obj := e.realm.NewError(t, string(msg))
	if codeH != 0 {
		code, ok := e.load(codeH).(value.String)
		if !ok {
			return StatusStringExpected
		}
		obj.CreateDataProperty(value.StringKey("code"), code)
	}
	return e.putValue(result, obj)
}

// GetAndClearLastException moves the pending exception into a handle. With
// nothing pending it fails with generic-failure.
func (e *Env) GetAndClearLastException(ctx context.Context, result uint32) Status {
	return e.bypass("napi_get_and_clear_last_exception", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		v, ok := e.TakeException()
		if !ok {
			return StatusGenericFailure
		}
		return e.putValue(result, v)
	})
}

func (e *Env) IsExceptionPending(ctx context.Context, result uint32) Status {
	return e.bypass("napi_is_exception_pending", func() error {
		return e.putBool(result, e.IsPending())
	})
}

// FatalException routes a value to the fatal path.
func (e *Env) FatalException(ctx context.Context, v uint32) Status {
	return e.call("napi_fatal_exception", func() error {
		e.Fatal("napi_fatal_exception", "Uncaught "+value.Describe(e.load(v)))
		return nil
	})
}

// FatalError implements napi_fatal_error. It does not return control to a
// well-behaved guest: the abort hook terminates the process by default.
func (e *Env) FatalError(ctx context.Context, location, locationLen, message, messageLen uint32) {
	e.view.Refresh()
	var loc, msg string
	if location != 0 {
		loc, _ = e.view.ReadString(location, locationLen, codec.UTF8)
	}
	if message != 0 {
		msg, _ = e.view.ReadString(message, messageLen, codec.UTF8)
	}
	e.Fatal(loc, msg)
}

// GetLastErrorInfo writes a napi_extended_error_info describing the status
// of the previous call. When the guest exports an allocator the record lives
// in guest heap memory and its address is written to result; otherwise the
// record is written at result itself.
func (e *Env) GetLastErrorInfo(ctx context.Context, result uint32) Status {
	if e.fatal != nil {
		return StatusGenericFailure
	}
	if result == 0 {
		return StatusInvalidArg
	}
	e.view.Refresh()
	last := e.lastError
	if err := e.writeErrorInfo(result, last); err != nil {
		e.log.Debug("napi_get_last_error_info failed")
		return StatusGenericFailure
	}
	return StatusOK
}

func (e *Env) writeErrorInfo(result uint32, st Status) error {
	alloc := e.guest.Allocator()
	if alloc == nil {
		if err := e.view.PutU64(result, 0); err != nil {
			return err
		}
		if err := e.view.PutU32(result+8, 0); err != nil {
			return err
		}
		return e.view.PutU32(result+12, uint32(st))
	}

	if e.errorInfo == 0 {
		ptr, err := alloc.Alloc(errorInfoSize, 4)
		if err != nil {
			return err
		}
		e.errorInfo = ptr
	}
	var msgPtr uint32
	if msg := st.Message(); st != StatusOK && msg != "" {
		ptr, err := e.guestCString(msg)
		if err != nil {
			return err
		}
		msgPtr = ptr
	}
	if err := e.view.PutU32(e.errorInfo, msgPtr); err != nil {
		return err
	}
	if err := e.view.PutU32(e.errorInfo+4, 0); err != nil {
		return err
	}
	if err := e.view.PutU32(e.errorInfo+8, 0); err != nil {
		return err
	}
	if err := e.view.PutU32(e.errorInfo+12, uint32(st)); err != nil {
		return err
	}
	return e.view.PutU32(result, e.errorInfo)
}

// guestCString copies s into guest memory once and returns its address.
func (e *Env) guestCString(s string) (uint32, error) {
	if e.messages == nil {
		e.messages = make(map[string]uint32)
	}
	if ptr, ok := e.messages[s]; ok {
		return ptr, nil
	}
	ptr, err := e.guest.Allocator().Alloc(uint32(len(s))+1, 1)
	if err != nil {
		return 0, err
	}
	e.view.Refresh()
	if err := e.view.PutBytes(ptr, append([]byte(s), 0)); err != nil {
		return 0, err
	}
	e.messages[s] = ptr
	return ptr, nil
}
