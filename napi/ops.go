package napi

import (
	"context"
	"math"
	"slices"
)

// ParamType is the wasm type of one ABI parameter.
type ParamType uint8

const (
	I32 ParamType = iota
	I64
	F64
)

// Op describes one imported napi_* function. Params include the leading
// napi_env parameter when the function takes one. Every op returns a
// napi_status as i32 unless Void is set.
type Op struct {
	Invoke func(ctx context.Context, e *Env, params []uint64) Status
	Name   string
	Params []ParamType
	Void   bool
}

func u(p uint64) uint32 { return uint32(p) }

func i32s(n int) []ParamType {
	return slices.Repeat([]ParamType{I32}, n)
}

// The op helpers adapt Env methods taking n u32 parameters after env.

func op1(name string, f func(*Env, context.Context, uint32) Status) Op {
	return Op{Name: name, Params: i32s(2), Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, u(p[1]))
	}}
}

func op2(name string, f func(*Env, context.Context, uint32, uint32) Status) Op {
	return Op{Name: name, Params: i32s(3), Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, u(p[1]), u(p[2]))
	}}
}

func op3(name string, f func(*Env, context.Context, uint32, uint32, uint32) Status) Op {
	return Op{Name: name, Params: i32s(4), Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, u(p[1]), u(p[2]), u(p[3]))
	}}
}

func op4(name string, f func(*Env, context.Context, uint32, uint32, uint32, uint32) Status) Op {
	return Op{Name: name, Params: i32s(5), Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, u(p[1]), u(p[2]), u(p[3]), u(p[4]))
	}}
}

func op5(name string, f func(*Env, context.Context, uint32, uint32, uint32, uint32, uint32) Status) Op {
	return Op{Name: name, Params: i32s(6), Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, u(p[1]), u(p[2]), u(p[3]), u(p[4]), u(p[5]))
	}}
}

func op6(name string, f func(*Env, context.Context, uint32, uint32, uint32, uint32, uint32, uint32) Status) Op {
	return Op{Name: name, Params: i32s(7), Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, u(p[1]), u(p[2]), u(p[3]), u(p[4]), u(p[5]), u(p[6]))
	}}
}

func op7(name string, f func(*Env, context.Context, uint32, uint32, uint32, uint32, uint32, uint32, uint32) Status) Op {
	return Op{Name: name, Params: i32s(8), Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, u(p[1]), u(p[2]), u(p[3]), u(p[4]), u(p[5]), u(p[6]), u(p[7]))
	}}
}

func opI64(name string, f func(*Env, context.Context, int64, uint32) Status) Op {
	return Op{Name: name, Params: []ParamType{I32, I64, I32}, Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, int64(p[1]), u(p[2]))
	}}
}

func opF64(name string, f func(*Env, context.Context, float64, uint32) Status) Op {
	return Op{Name: name, Params: []ParamType{I32, F64, I32}, Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
		return f(e, ctx, math.Float64frombits(p[1]), u(p[2]))
	}}
}

var ops = []Op{
	// errors and exceptions
	op1("napi_throw", (*Env).ThrowValue),
	op2("napi_throw_error", (*Env).ThrowError),
	op2("napi_throw_type_error", (*Env).ThrowTypeError),
	op2("napi_throw_range_error", (*Env).ThrowRangeError),
	op2("node_api_throw_syntax_error", (*Env).ThrowSyntaxError),
	op3("napi_create_error", (*Env).CreateError),
	op3("napi_create_type_error", (*Env).CreateTypeError),
	op3("napi_create_range_error", (*Env).CreateRangeError),
	op3("node_api_create_syntax_error", (*Env).CreateSyntaxError),
	op1("napi_get_and_clear_last_exception", (*Env).GetAndClearLastException),
	op1("napi_is_exception_pending", (*Env).IsExceptionPending),
	op1("napi_fatal_exception", (*Env).FatalException),
	op1("napi_get_last_error_info", (*Env).GetLastErrorInfo),
	{
		Name:   "napi_fatal_error",
		Params: i32s(4),
		Void:   true,
		Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
			e.FatalError(ctx, u(p[0]), u(p[1]), u(p[2]), u(p[3]))
			return StatusGenericFailure
		},
	},

	// scopes and references
	op1("napi_open_handle_scope", (*Env).OpenHandleScope),
	op1("napi_close_handle_scope", (*Env).CloseHandleScope),
	op1("napi_open_escapable_handle_scope", (*Env).OpenEscapableHandleScope),
	op1("napi_close_escapable_handle_scope", (*Env).CloseEscapableHandleScope),
	op3("napi_escape_handle", (*Env).EscapeHandle),
	op3("napi_create_reference", (*Env).CreateReference),
	op1("napi_delete_reference", (*Env).DeleteReference),
	op2("napi_reference_ref", (*Env).ReferenceRef),
	op2("napi_reference_unref", (*Env).ReferenceUnref),
	op2("napi_get_reference_value", (*Env).GetReferenceValue),

	// environment lifecycle
	op2("napi_add_env_cleanup_hook", (*Env).AddEnvCleanupHook),
	op2("napi_remove_env_cleanup_hook", (*Env).RemoveEnvCleanupHook),
	op3("napi_set_instance_data", (*Env).SetInstanceData),
	op1("napi_get_instance_data", (*Env).GetInstanceData),
	op1("napi_get_version", (*Env).GetVersion),
	opI64("napi_adjust_external_memory", (*Env).AdjustExternalMemory),
	op2("napi_run_script", (*Env).RunScript),

	// value creation
	op1("napi_create_object", (*Env).CreateObject),
	op1("napi_create_array", (*Env).CreateArray),
	op2("napi_create_array_with_length", (*Env).CreateArrayWithLength),
	opF64("napi_create_double", (*Env).CreateDouble),
	op2("napi_create_int32", (*Env).CreateInt32),
	op2("napi_create_uint32", (*Env).CreateUint32),
	opI64("napi_create_int64", (*Env).CreateInt64),
	opI64("napi_create_bigint_int64", (*Env).CreateBigIntInt64),
	{
		Name:   "napi_create_bigint_uint64",
		Params: []ParamType{I32, I64, I32},
		Invoke: func(ctx context.Context, e *Env, p []uint64) Status {
			return e.CreateBigIntUint64(ctx, p[1], u(p[2]))
		},
	},
	op4("napi_create_bigint_words", (*Env).CreateBigIntWords),
	op3("napi_create_string_utf8", (*Env).CreateStringUTF8),
	op3("napi_create_string_utf16", (*Env).CreateStringUTF16),
	op3("napi_create_string_latin1", (*Env).CreateStringLatin1),
	op2("napi_create_symbol", (*Env).CreateSymbol),
	opF64("napi_create_date", (*Env).CreateDate),
	op4("napi_create_external", (*Env).CreateExternal),
	op3("napi_create_arraybuffer", (*Env).CreateArrayBuffer),
	op5("napi_create_external_arraybuffer", (*Env).CreateExternalArrayBuffer),
	op3("napi_create_buffer", (*Env).CreateBuffer),
	op4("napi_create_buffer_copy", (*Env).CreateBufferCopy),
	op5("napi_create_external_buffer", (*Env).CreateExternalBuffer),
	op5("napi_create_typedarray", (*Env).CreateTypedArray),
	op4("napi_create_dataview", (*Env).CreateDataView),

	// value access
	op1("napi_get_undefined", (*Env).GetUndefined),
	op1("napi_get_null", (*Env).GetNull),
	op1("napi_get_global", (*Env).GetGlobal),
	op2("napi_get_boolean", (*Env).GetBoolean),
	op2("napi_get_array_length", (*Env).GetArrayLength),
	op2("napi_get_prototype", (*Env).GetPrototype),
	op2("napi_get_value_double", (*Env).GetValueDouble),
	op2("napi_get_value_int32", (*Env).GetValueInt32),
	op2("napi_get_value_uint32", (*Env).GetValueUint32),
	op2("napi_get_value_int64", (*Env).GetValueInt64),
	op2("napi_get_value_bool", (*Env).GetValueBool),
	op3("napi_get_value_bigint_int64", (*Env).GetValueBigIntInt64),
	op3("napi_get_value_bigint_uint64", (*Env).GetValueBigIntUint64),
	op4("napi_get_value_bigint_words", (*Env).GetValueBigIntWords),
	op4("napi_get_value_string_utf8", (*Env).GetValueStringUTF8),
	op4("napi_get_value_string_utf16", (*Env).GetValueStringUTF16),
	op4("napi_get_value_string_latin1", (*Env).GetValueStringLatin1),
	op2("napi_get_date_value", (*Env).GetDateValue),
	op2("napi_get_value_external", (*Env).GetValueExternal),
	op3("napi_get_arraybuffer_info", (*Env).GetArrayBufferInfo),
	op3("napi_get_buffer_info", (*Env).GetBufferInfo),
	op6("napi_get_typedarray_info", (*Env).GetTypedArrayInfo),
	op5("napi_get_dataview_info", (*Env).GetDataViewInfo),
	op2("napi_coerce_to_bool", (*Env).CoerceToBool),
	op2("napi_coerce_to_number", (*Env).CoerceToNumber),
	op2("napi_coerce_to_string", (*Env).CoerceToString),
	op2("napi_coerce_to_object", (*Env).CoerceToObject),

	// inspection
	op2("napi_typeof", (*Env).TypeOf),
	op3("napi_instanceof", (*Env).InstanceOf),
	op2("napi_is_array", (*Env).IsArray),
	op2("napi_is_arraybuffer", (*Env).IsArrayBuffer),
	op2("napi_is_buffer", (*Env).IsBuffer),
	op2("napi_is_date", (*Env).IsDate),
	op2("napi_is_error", (*Env).IsError),
	op2("napi_is_typedarray", (*Env).IsTypedArray),
	op2("napi_is_dataview", (*Env).IsDataView),
	op2("napi_is_detached_arraybuffer", (*Env).IsDetachedArrayBuffer),
	op1("napi_detach_arraybuffer", (*Env).DetachArrayBuffer),
	op3("napi_strict_equals", (*Env).StrictEquals),

	// properties
	op3("napi_set_property", (*Env).SetProperty),
	op3("napi_get_property", (*Env).GetProperty),
	op3("napi_has_property", (*Env).HasProperty),
	op3("napi_has_own_property", (*Env).HasOwnProperty),
	op3("napi_delete_property", (*Env).DeleteProperty),
	op3("napi_set_named_property", (*Env).SetNamedProperty),
	op3("napi_get_named_property", (*Env).GetNamedProperty),
	op3("napi_has_named_property", (*Env).HasNamedProperty),
	op3("napi_set_element", (*Env).SetElement),
	op3("napi_get_element", (*Env).GetElement),
	op3("napi_has_element", (*Env).HasElement),
	op3("napi_delete_element", (*Env).DeleteElement),
	op2("napi_get_property_names", (*Env).GetPropertyNames),
	op5("napi_get_all_property_names", (*Env).GetAllPropertyNames),
	op3("napi_define_properties", (*Env).DefineProperties),
	op1("napi_object_freeze", (*Env).ObjectFreeze),
	op1("napi_object_seal", (*Env).ObjectSeal),

	// functions
	op5("napi_create_function", (*Env).CreateFunction),
	op5("napi_get_cb_info", (*Env).GetCbInfo),
	op2("napi_get_new_target", (*Env).GetNewTarget),
	op5("napi_call_function", (*Env).CallFunction),
	op4("napi_new_instance", (*Env).NewInstance),
	op7("napi_define_class", (*Env).DefineClass),

	// object identity
	op5("napi_wrap", (*Env).Wrap),
	op2("napi_unwrap", (*Env).Unwrap),
	op2("napi_remove_wrap", (*Env).RemoveWrap),
	op5("napi_add_finalizer", (*Env).AddFinalizer),
	op2("napi_type_tag_object", (*Env).TypeTagObject),
	op3("napi_check_object_type_tag", (*Env).CheckObjectTypeTag),

	// promises
	op2("napi_create_promise", (*Env).CreatePromise),
	op2("napi_resolve_deferred", (*Env).ResolveDeferred),
	op2("napi_reject_deferred", (*Env).RejectDeferred),
	op2("napi_is_promise", (*Env).IsPromise),
}

// Ops returns the ABI functions a guest can import.
func Ops() []Op {
	return ops
}

// Lookup finds an op by import name.
func Lookup(name string) (Op, bool) {
	for _, o := range ops {
		if o.Name == name {
			return o, true
		}
	}
	return Op{}, false
}
