package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmnapi "github.com/wippyai/wasm-napi"
	"github.com/wippyai/wasm-napi/errors"
)

// Allocator exports, in order of preference.
const (
	exportMalloc      = "malloc"
	exportFree        = "free"
	exportCabiRealloc = "cabi_realloc"
)

// wazeroAllocator calls the guest's own allocator. C guests export
// malloc/free; guests built for the component toolchain export cabi_realloc,
// which also frees when called with a zero new size.
type wazeroAllocator struct {
	allocFn    api.Function
	freeFn     api.Function
	currentCtx context.Context
	stackBuf   []uint64
	stackMutex sync.Mutex
	realloc    bool
}

func newAllocator(mod api.Module) *wazeroAllocator {
	a := &wazeroAllocator{stackBuf: make([]uint64, 4)}
	if fn := mod.ExportedFunction(exportMalloc); fn != nil && len(fn.Definition().ParamTypes()) == 1 {
		a.allocFn = fn
		if free := mod.ExportedFunction(exportFree); free != nil && len(free.Definition().ParamTypes()) == 1 {
			a.freeFn = free
		}
		return a
	}
	if fn := mod.ExportedFunction(exportCabiRealloc); fn != nil && len(fn.Definition().ParamTypes()) == 4 {
		a.allocFn, a.freeFn, a.realloc = fn, fn, true
	}
	return a
}

func (a *wazeroAllocator) available() bool {
	return a.allocFn != nil
}

func (a *wazeroAllocator) setContext(ctx context.Context) {
	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()
	a.currentCtx = ctx
}

func (a *wazeroAllocator) context() context.Context {
	if a.currentCtx == nil {
		return context.Background()
	}
	return a.currentCtx
}

func (a *wazeroAllocator) Alloc(size, align uint32) (uint32, error) {
	if a.allocFn == nil {
		return 0, errors.NotInitialized(errors.PhaseCall, "guest allocator")
	}

	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	stack := a.stackBuf[:1]
	if a.realloc {
		stack = a.stackBuf[:4]
		stack[0], stack[1], stack[2], stack[3] = 0, 0, uint64(align), uint64(size)
	} else {
		stack[0] = uint64(size)
	}
	if err := a.allocFn.CallWithStack(a.context(), stack); err != nil {
		return 0, err
	}
	ptr := uint32(stack[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(errors.PhaseCall, size, align)
	}
	return ptr, nil
}

func (a *wazeroAllocator) Free(ptr, size, align uint32) {
	if a.freeFn == nil || ptr == 0 {
		return
	}

	a.stackMutex.Lock()
	defer a.stackMutex.Unlock()

	stack := a.stackBuf[:1]
	if a.realloc {
		stack = a.stackBuf[:4]
		stack[0], stack[1], stack[2], stack[3] = uint64(ptr), uint64(size), uint64(align), 0
	} else {
		stack[0] = uint64(ptr)
	}
	if err := a.freeFn.CallWithStack(a.context(), stack); err != nil {
		Logger().Warn("guest free failed",
			zap.Uint32("ptr", ptr),
			zap.Uint32("size", size),
			zap.Error(err))
	}
}

// Compile-time check that wazeroAllocator implements wasmnapi.Allocator
var _ wasmnapi.Allocator = (*wazeroAllocator)(nil)
