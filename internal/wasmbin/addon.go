package wasmbin

// Addon memory layout.
const (
	addonAdd    = 16
	addonBoom   = 24
	addonFail   = 32
	addonBroken = 40

	addonArgc   = 256
	addonArgv   = 260
	addonA      = 272
	addonB      = 280
	addonResult = 288
	addonFn     = 292
)

// Addon builds a minimal napi addon importing from module. Its registration
// export defines three functions on the exports object:
//
//	add(a, b)  returns a + b as a double
//	boom()     traps with unreachable
//	fail()     throws Error("broken")
func Addon(module string) []byte {
	m := New()
	i32 := func(n int) []ValType {
		out := make([]ValType, n)
		for i := range out {
			out[i] = I32
		}
		return out
	}
	status := []ValType{I32}

	getCbInfo := m.Import(module, "napi_get_cb_info", FuncType{Params: i32(6), Results: status})
	getDouble := m.Import(module, "napi_get_value_double", FuncType{Params: i32(3), Results: status})
	createDouble := m.Import(module, "napi_create_double", FuncType{Params: []ValType{I32, F64, I32}, Results: status})
	createFunction := m.Import(module, "napi_create_function", FuncType{Params: i32(6), Results: status})
	setNamed := m.Import(module, "napi_set_named_property", FuncType{Params: i32(4), Results: status})
	throwError := m.Import(module, "napi_throw_error", FuncType{Params: i32(3), Results: status})

	callback := FuncType{Params: i32(2), Results: status}

	add := m.Func(callback, nil, Code(
		Store32(addonArgc, 2),
		LocalGet(0), LocalGet(1), I32Const(addonArgc), I32Const(addonArgv), I32Const(0), I32Const(0),
		Call(getCbInfo), Op(Drop),
		LocalGet(0), Load32(addonArgv), I32Const(addonA), Call(getDouble), Op(Drop),
		LocalGet(0), Load32(addonArgv+4), I32Const(addonB), Call(getDouble), Op(Drop),
		LocalGet(0),
		I32Const(addonA), F64Load(0),
		I32Const(addonB), F64Load(0),
		Op(F64Add),
		I32Const(addonResult), Call(createDouble), Op(Drop),
		Load32(addonResult),
		Op(End),
	))
	boom := m.Func(callback, nil, Op(Unreachable, End))
	fail := m.Func(callback, nil, Code(
		LocalGet(0), I32Const(0), I32Const(addonBroken), Call(throwError), Op(Drop),
		I32Const(0),
		Op(End),
	))

	var body []byte
	for _, fn := range []struct {
		name uint32
		idx  uint32
	}{{addonAdd, add}, {addonBoom, boom}, {addonFail, fail}} {
		slot := m.Table(fn.idx)
		body = Code(body,
			LocalGet(0), I32Const(int32(fn.name)), I32Const(-1), I32Const(int32(slot)), I32Const(0), I32Const(addonFn),
			Call(createFunction), Op(Drop),
			LocalGet(0), LocalGet(1), I32Const(int32(fn.name)), Load32(addonFn),
			Call(setNamed), Op(Drop),
		)
	}
	register := m.Func(callback, nil, Code(body, LocalGet(1), Op(End)))

	m.Memory(1)
	m.Export("napi_register_wasm_v1", register)
	m.CString(addonAdd, "add")
	m.CString(addonBoom, "boom")
	m.CString(addonFail, "fail")
	m.CString(addonBroken, "broken")
	return m.Encode()
}
