// Package errors provides structured error types for the wasm-napi library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type carries the ABI operation that failed, the offending value,
// the expected value kind and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseInstantiate, errors.KindRegistration).
//		Op("napi_register_wasm_v1").
//		Detail("register addon").
//		Cause(err).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.OutOfBounds(errors.PhaseCodec, off, 4, size)
//	err := errors.ScopeMismatch(3, 1)
//
// All errors implement the standard error interface and support errors.Is/As.
package errors
