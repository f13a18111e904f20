package napi

import (
	"context"

	wasmnapi "github.com/wippyai/wasm-napi"
)

// Registration exports looked up by Register, in order of preference.
const (
	RegisterExport       = "napi_register_wasm_v1"
	LegacyRegisterExport = "napi_register_module_v1"
)

// Guest is the instantiated module an Env serves.
type Guest interface {
	// Memory returns the guest's linear memory.
	Memory() wasmnapi.Memory

	// Allocator returns the guest allocator, or nil when the module exports
	// none.
	Allocator() wasmnapi.Allocator

	// CallIndirect invokes entry fn of the guest function table.
	CallIndirect(ctx context.Context, fn uint32, params ...uint64) ([]uint64, error)

	// CallExport invokes an exported function. ok is false when the module
	// does not export name.
	CallExport(ctx context.Context, name string, params ...uint64) (results []uint64, ok bool, err error)
}

// callGuest invokes a napi_callback: napi_value (*)(napi_env, napi_callback_info).
func (e *Env) callGuest(ctx context.Context, fn, info uint32) (uint32, error) {
	res, err := e.guest.CallIndirect(ctx, fn, 0, uint64(info))
	if err != nil {
		return 0, err
	}
	if len(res) == 0 {
		return 0, nil
	}
	return uint32(res[0]), nil
}

// callFinalize invokes a napi_finalize: void (*)(napi_env, void* data, void* hint).
func (e *Env) callFinalize(ctx context.Context, fn, data, hint uint32) error {
	_, err := e.guest.CallIndirect(ctx, fn, 0, uint64(data), uint64(hint))
	return err
}
