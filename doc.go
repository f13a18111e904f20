// Package wasmnapi runs native addons written against the N-API (napi_*) ABI
// inside a WebAssembly guest.
//
// Guest modules import the napi_* functions from the "napi" host module. Every
// call is decoded from guest linear memory, executed against a host value engine
// and encoded back, with the ABI's handle scopes, references, pending exceptions
// and object identity rules enforced on the host side.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	wasmnapi/            Root package with core Memory and Allocator interfaces
//	├── runtime/         High-level API for loading and running addons
//	├── engine/          wazero integration: napi host module, WASI, function tables
//	├── napi/            The ABI environment: status codes, exceptions, trampolines
//	├── handle/          Handle table, scope stack and reference table
//	├── codec/           Guest memory codec (scalars, strings, bigints, descriptors)
//	├── value/           Host value engine (objects, functions, promises, buffers)
//	├── errors/          Structured error types for debugging
//	└── cmd/napirun/     Command line runner with an interactive mode
//
// # Quick Start
//
// Load an addon and call one of its exports:
//
//	rt, err := runtime.New(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	mod, err := rt.Load(ctx, wasmBytes)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	sum, err := inst.Call(ctx, "add", 2, 3)
package wasmnapi
