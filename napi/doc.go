// Package napi implements the napi_* ABI for WebAssembly guests.
//
// An Env is one napi_env. It owns the handle table and scope stack, the
// reference and deferred tables, the pending exception slot and the finalizer
// queue of a single guest instance. Every ABI function is a method on Env that
// takes the raw wasm parameters and returns a Status:
//
//	env := napi.NewEnv(guest)
//	exports, err := env.Register(ctx)
//
// # Error Model
//
// Operations report failures in two ways. Malformed input returns a status
// such as StatusInvalidArg or StatusObjectExpected. A host error raised while
// the operation runs, like a throwing getter, becomes the pending exception
// and the operation returns StatusPendingException. While an exception is
// pending every operation outside the bypass set returns
// StatusPendingException without doing any work. The bypass set is:
//
//	napi_get_and_clear_last_exception   napi_is_exception_pending
//	napi_close_handle_scope             napi_close_escapable_handle_scope
//	napi_escape_handle                  napi_delete_reference
//	napi_get_last_error_info            napi_fatal_error
//	napi_add_env_cleanup_hook           napi_remove_env_cleanup_hook
//
// Fatal errors (napi_fatal_error, out of order scope closes, failing
// finalizers) invoke the abort hook, which terminates the process unless
// replaced with WithAbortHook. A fatal env fails every later call.
//
// # Callbacks
//
// Functions created by the guest dispatch into the guest function table. Each
// call runs inside its own handle scope with a napi_callback_info handle
// describing the receiver, new.target, arguments and data pointer. An
// exception the guest leaves pending is returned to the host caller as a
// *value.Throw; a guest trap becomes a RuntimeError.
//
// # Finalizers
//
// Wrap, external and add_finalizer callbacks are registered with
// runtime.AddCleanup. Collected objects only enqueue their finalizer; the
// queue runs on the guest's goroutine when RunFinalizers is called.
//
// # Imports
//
// Ops lists every function a guest may import from the "napi" module together
// with its wasm signature, for engines that build the host module.
package napi
