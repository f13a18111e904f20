// Package engine runs N-API guest modules on wazero.
//
// # Architecture
//
// The engine package provides three main types:
//
//	WazeroEngine   - Owns the wazero runtime and the shared napi host module
//	WazeroModule   - A compiled guest whose napi imports have been checked
//	WazeroInstance - A running guest bound to its napi.Env
//
// # Instantiation Flow
//
//  1. WazeroEngine.LoadModule() compiles the binary and rejects napi imports
//     the host does not implement
//  2. WazeroModule.Instantiate() instantiates wasi_snapshot_preview1 when the
//     guest imports it, then the napi host module (once per engine)
//  3. The guest is instantiated without start functions, its napi.Env is
//     created and attached, and _initialize runs if exported
//  4. The caller registers the addon through Env().Register
//
// # Host Module
//
// All instances of an engine share one host module. Its functions find the
// calling instance from the api.Module wazero passes to host functions and
// invoke the matching napi.Op against that instance's environment. Each
// function returns the napi_status as i32, except napi_fatal_error.
//
// When an operation leaves the environment fatal the host function panics,
// which wazero surfaces as an error from the outermost guest call. Guest
// code never resumes after a fatal error.
//
// # Function Table
//
// Callbacks, finalizers and cleanup hooks are entries of the guest's
// indirect function table (table 0). CallIndirect resolves them with
// experimental/table.LookupFunction using the signature implied by the
// number of parameters:
//
//	1 param   void (void* arg)                          cleanup hook
//	2 params  napi_value (napi_env, napi_callback_info) callback
//	3 params  void (napi_env, void* data, void* hint)   finalizer
//
// # Guest Allocator
//
// Host-initiated allocations (napi_get_last_error_info) use the guest's
// malloc/free exports, falling back to cabi_realloc.
//
// # Thread Safety
//
// WazeroEngine and WazeroModule are safe for concurrent use.
// WazeroInstance is NOT thread-safe and should be used by a single goroutine.
//
// Most users should use the runtime package for a simpler API.
// This package is for advanced use cases requiring direct control.
package engine
