// Package runtime provides the high-level API for running N-API addons
// compiled to WebAssembly.
//
// # Quick Start
//
//	ctx := context.Background()
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	// Load an addon
//	mod, err := rt.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Instantiate and register it
//	inst, err := mod.Instantiate(ctx, runtime.WithStdout(os.Stdout))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	// Call exported functions
//	result, err := inst.Call(ctx, "add", 2, 3)
//	fmt.Println(value.Inspect(result)) // 5
//
// # Registration
//
// Instantiate runs the guest's _initialize export when present, then calls
// napi_register_wasm_v1 (or napi_register_module_v1) with a fresh exports
// object. Whatever the guest returns is pinned for the instance's lifetime
// and is what Call looks functions up on.
//
// # Values
//
// Call converts Go arguments with Realm.FromGo: numbers, strings, booleans,
// nil, []byte, []any and map[string]any. Results are value.Value; use
// value.ToGo or Realm.ToJSON to get plain data back. A JavaScript exception
// thrown by the addon is returned as *value.Throw:
//
//	if thrown, ok := value.Thrown(err); ok {
//	    fmt.Println(value.Inspect(thrown))
//	}
//
// # Configuration
//
// Runtime options:
//
//	WithLogger(l)            zap logger for the runtime and its environments
//	WithMemoryLimitPages(n)  cap guest memory at n 64KiB pages
//	WithCompilationCache(d)  persist compiled code in directory d
//	WithImportModule(name)   import module for napi_* (default "napi")
//
// Instance options configure WASI stdio, args, environment and preopened
// directories, and WithAbortHook replaces process exit on napi_fatal_error.
//
// # Thread Safety
//
// Runtime and Module are safe for concurrent use. An Instance must be used
// by one goroutine at a time.
package runtime
