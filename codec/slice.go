package codec

import (
	"encoding/binary"
	"fmt"
)

// PageSize is the WebAssembly page size.
const PageSize = 65536

// SliceMemory is a byte slice that implements wasmnapi.Memory and
// wasmnapi.MemorySizer.
type SliceMemory struct {
	Buf []byte
}

// NewSliceMemory allocates pages of zeroed memory.
func NewSliceMemory(pages uint32) *SliceMemory {
	return &SliceMemory{Buf: make([]byte, int(pages)*PageSize)}
}

// Grow appends pages of zeroed memory and returns the previous page count.
func (m *SliceMemory) Grow(pages uint32) uint32 {
	prev := uint32(len(m.Buf) / PageSize)
	m.Buf = append(m.Buf, make([]byte, int(pages)*PageSize)...)
	return prev
}

func (m *SliceMemory) Size() uint32 {
	return uint32(len(m.Buf))
}

func (m *SliceMemory) bounds(offset, length uint32) error {
	if uint64(offset)+uint64(length) > uint64(len(m.Buf)) {
		return fmt.Errorf("memory access out of bounds: offset=%d, length=%d", offset, length)
	}
	return nil
}

func (m *SliceMemory) Read(offset uint32, length uint32) ([]byte, error) {
	if err := m.bounds(offset, length); err != nil {
		return nil, err
	}
	return m.Buf[offset : offset+length], nil
}

func (m *SliceMemory) Write(offset uint32, data []byte) error {
	if err := m.bounds(offset, uint32(len(data))); err != nil {
		return err
	}
	copy(m.Buf[offset:], data)
	return nil
}

func (m *SliceMemory) ReadU8(offset uint32) (uint8, error) {
	if err := m.bounds(offset, 1); err != nil {
		return 0, err
	}
	return m.Buf[offset], nil
}

func (m *SliceMemory) ReadU16(offset uint32) (uint16, error) {
	if err := m.bounds(offset, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(m.Buf[offset:]), nil
}

func (m *SliceMemory) ReadU32(offset uint32) (uint32, error) {
	if err := m.bounds(offset, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(m.Buf[offset:]), nil
}

func (m *SliceMemory) ReadU64(offset uint32) (uint64, error) {
	if err := m.bounds(offset, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(m.Buf[offset:]), nil
}

func (m *SliceMemory) WriteU8(offset uint32, value uint8) error {
	if err := m.bounds(offset, 1); err != nil {
		return err
	}
	m.Buf[offset] = value
	return nil
}

func (m *SliceMemory) WriteU16(offset uint32, value uint16) error {
	if err := m.bounds(offset, 2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(m.Buf[offset:], value)
	return nil
}

func (m *SliceMemory) WriteU32(offset uint32, value uint32) error {
	if err := m.bounds(offset, 4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(m.Buf[offset:], value)
	return nil
}

func (m *SliceMemory) WriteU64(offset uint32, value uint64) error {
	if err := m.bounds(offset, 8); err != nil {
		return err
	}
	binary.LittleEndian.PutUint64(m.Buf[offset:], value)
	return nil
}
