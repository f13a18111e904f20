package codec

import (
	"encoding/binary"
	"math"

	wasmnapi "github.com/wippyai/wasm-napi"
	"github.com/wippyai/wasm-napi/errors"
)

// View reads and writes guest linear memory for ABI operations.
//
// The view caches the memory size. Guest memory may grow between calls, so
// callers refresh the view at the start of every operation.
type View struct {
	mem   wasmnapi.Memory
	sizer wasmnapi.MemorySizer
	size  uint32
}

// New creates a view over mem. If mem also implements wasmnapi.MemorySizer,
// accesses are bounds checked against the cached size.
func New(mem wasmnapi.Memory) *View {
	v := &View{mem: mem}
	if s, ok := mem.(wasmnapi.MemorySizer); ok {
		v.sizer = s
	}
	v.Refresh()
	return v
}

// Refresh re-acquires the memory size when the cached one is stale.
// It reports whether the cache changed.
func (v *View) Refresh() bool {
	if v.sizer == nil {
		return false
	}
	size := v.sizer.Size()
	if v.size != 0 && size == v.size {
		return false
	}
	v.size = size
	return true
}

// Memory returns the underlying memory.
func (v *View) Memory() wasmnapi.Memory {
	return v.mem
}

// Size returns the cached memory size in bytes, or 0 when unknown.
func (v *View) Size() uint32 {
	return v.size
}

func (v *View) check(offset, length uint32) error {
	if v.sizer == nil {
		return nil
	}
	end := uint64(offset) + uint64(length)
	if end > uint64(v.size) {
		// memory may have grown during a nested guest call
		if !v.Refresh() || end > uint64(v.size) {
			return errors.OutOfBounds(errors.PhaseCodec, offset, length, v.size)
		}
	}
	return nil
}

func (v *View) wrap(err error, offset, length uint32) error {
	if err == nil {
		return nil
	}
	e := errors.OutOfBounds(errors.PhaseCodec, offset, length, v.size)
	e.Cause = err
	return e
}

// Bytes reads length bytes at offset.
func (v *View) Bytes(offset, length uint32) ([]byte, error) {
	if err := v.check(offset, length); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}
	b, err := v.mem.Read(offset, length)
	return b, v.wrap(err, offset, length)
}

// PutBytes writes data at offset.
func (v *View) PutBytes(offset uint32, data []byte) error {
	if err := v.check(offset, uint32(len(data))); err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return v.wrap(v.mem.Write(offset, data), offset, uint32(len(data)))
}

func (v *View) U8(offset uint32) (uint8, error) {
	if err := v.check(offset, 1); err != nil {
		return 0, err
	}
	b, err := v.mem.ReadU8(offset)
	return b, v.wrap(err, offset, 1)
}

func (v *View) U32(offset uint32) (uint32, error) {
	if err := v.check(offset, 4); err != nil {
		return 0, err
	}
	n, err := v.mem.ReadU32(offset)
	return n, v.wrap(err, offset, 4)
}

func (v *View) I32(offset uint32) (int32, error) {
	n, err := v.U32(offset)
	return int32(n), err
}

func (v *View) U64(offset uint32) (uint64, error) {
	if err := v.check(offset, 8); err != nil {
		return 0, err
	}
	n, err := v.mem.ReadU64(offset)
	return n, v.wrap(err, offset, 8)
}

func (v *View) I64(offset uint32) (int64, error) {
	n, err := v.U64(offset)
	return int64(n), err
}

func (v *View) F64(offset uint32) (float64, error) {
	n, err := v.U64(offset)
	return math.Float64frombits(n), err
}

func (v *View) PutU8(offset uint32, n uint8) error {
	if err := v.check(offset, 1); err != nil {
		return err
	}
	return v.wrap(v.mem.WriteU8(offset, n), offset, 1)
}

// PutBool writes 1 or 0 as a single byte.
func (v *View) PutBool(offset uint32, b bool) error {
	var n uint8
	if b {
		n = 1
	}
	return v.PutU8(offset, n)
}

func (v *View) PutU32(offset uint32, n uint32) error {
	if err := v.check(offset, 4); err != nil {
		return err
	}
	return v.wrap(v.mem.WriteU32(offset, n), offset, 4)
}

func (v *View) PutI32(offset uint32, n int32) error {
	return v.PutU32(offset, uint32(n))
}

func (v *View) PutU64(offset uint32, n uint64) error {
	if err := v.check(offset, 8); err != nil {
		return err
	}
	return v.wrap(v.mem.WriteU64(offset, n), offset, 8)
}

func (v *View) PutI64(offset uint32, n int64) error {
	return v.PutU64(offset, uint64(n))
}

func (v *View) PutF64(offset uint32, f float64) error {
	return v.PutU64(offset, math.Float64bits(f))
}

// u32At decodes a little-endian u32 from b at i.
func u32At(b []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(b[i:])
}
