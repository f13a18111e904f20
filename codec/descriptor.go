package codec

import (
	"github.com/wippyai/wasm-napi/errors"
)

// DescriptorSize is the size of a napi_property_descriptor record.
const DescriptorSize = 32

// RawDescriptor is a napi_property_descriptor as laid out in guest memory.
// Function fields are guest function table indices, Name and Value are handles.
type RawDescriptor struct {
	UTF8Name   uint32
	Name       uint32
	Method     uint32
	Getter     uint32
	Setter     uint32
	Value      uint32
	Attributes uint32
	Data       uint32
}

// ReadDescriptors decodes count consecutive descriptor records at ptr.
func (v *View) ReadDescriptors(count, ptr uint32) ([]RawDescriptor, error) {
	size := uint64(count) * DescriptorSize
	if size > 0xFFFFFFFF {
		return nil, errors.OutOfBounds(errors.PhaseCodec, ptr, 0xFFFFFFFF, v.size)
	}
	raw, err := v.Bytes(ptr, uint32(size))
	if err != nil {
		return nil, err
	}
	out := make([]RawDescriptor, count)
	for i := range out {
		b := i * DescriptorSize
		out[i] = RawDescriptor{
			UTF8Name:   u32At(raw, b),
			Name:       u32At(raw, b+4),
			Method:     u32At(raw, b+8),
			Getter:     u32At(raw, b+12),
			Setter:     u32At(raw, b+16),
			Value:      u32At(raw, b+20),
			Attributes: u32At(raw, b+24),
			Data:       u32At(raw, b+28),
		}
	}
	return out, nil
}
