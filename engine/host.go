package engine

import (
	"context"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-napi/napi"
)

var paramTypes = map[napi.ParamType]api.ValueType{
	napi.I32: api.ValueTypeI32,
	napi.I64: api.ValueTypeI64,
	napi.F64: api.ValueTypeF64,
}

var statusResult = []api.ValueType{api.ValueTypeI32}

// hostModule builds the napi import module from the operation table.
func (e *WazeroEngine) hostModule() wazero.HostModuleBuilder {
	builder := e.runtime.NewHostModuleBuilder(e.importModule)
	for _, op := range napi.Ops() {
		params := make([]api.ValueType, len(op.Params))
		for i, p := range op.Params {
			params[i] = paramTypes[p]
		}
		var results []api.ValueType
		if !op.Void {
			results = statusResult
		}
		builder = builder.NewFunctionBuilder().
			WithGoModuleFunction(e.hostFunc(op), params, results).
			WithName(op.Name).
			Export(op.Name)
	}
	return builder
}

// hostFunc routes one napi import to the environment of the calling module.
// An environment that turns fatal during the call traps the guest so no
// guest code runs past the abort.
func (e *WazeroEngine) hostFunc(op napi.Op) api.GoModuleFunc {
	nparams := len(op.Params)
	return func(ctx context.Context, mod api.Module, stack []uint64) {
		inst := e.lookup(mod)
		if inst == nil {
			Logger().Warn("napi call from unknown module", zap.String("op", op.Name))
			if !op.Void {
				stack[0] = uint64(napi.StatusGenericFailure)
			}
			return
		}
		inst.alloc.setContext(ctx)

		env := inst.env
		wasFatal := env.Err() != nil
		st := op.Invoke(ctx, env, stack[:nparams])
		if err := env.Err(); err != nil && (!wasFatal || op.Void) {
			panic(err)
		}
		if !op.Void {
			stack[0] = uint64(st)
		}
	}
}
