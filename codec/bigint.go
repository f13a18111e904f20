package codec

import (
	"encoding/binary"
	"math/big"

	"github.com/wippyai/wasm-napi/errors"
)

// WordSize is the stride of one bigint word in guest memory.
const WordSize = 8

// ReadBigInt decodes count little-endian 64-bit words at ptr into
// (-1)^sign * sum(word[i] << 64i). Any non-zero sign is negative.
func (v *View) ReadBigInt(sign, count, ptr uint32) (*big.Int, error) {
	size := uint64(count) * WordSize
	if size > 0xFFFFFFFF {
		return nil, errors.OutOfBounds(errors.PhaseCodec, ptr, 0xFFFFFFFF, v.size)
	}
	raw, err := v.Bytes(ptr, uint32(size))
	if err != nil {
		return nil, err
	}
	// big.Int.SetBytes wants big-endian
	be := make([]byte, len(raw))
	for i := range raw {
		be[len(raw)-1-i] = raw[i]
	}
	x := new(big.Int).SetBytes(be)
	if sign != 0 {
		x.Neg(x)
	}
	return x, nil
}

// Words returns the magnitude of x as little-endian 64-bit words, minimal in
// count. Zero has no words.
func Words(x *big.Int) []uint64 {
	mag := new(big.Int).Abs(x)
	be := mag.Bytes()
	words := make([]uint64, (len(be)+WordSize-1)/WordSize)
	for i := range words {
		end := len(be) - i*WordSize
		start := max(end-WordSize, 0)
		var buf [WordSize]byte
		copy(buf[WordSize-(end-start):], be[start:end])
		words[i] = binary.BigEndian.Uint64(buf[:])
	}
	return words
}

// WriteBigInt writes at most capacity words of |x| at wordsPtr and returns the
// minimal word count needed to represent x.
func (v *View) WriteBigInt(x *big.Int, wordsPtr, capacity uint32) (uint32, error) {
	words := Words(x)
	n := min(uint32(len(words)), capacity)
	if n > 0 {
		buf := make([]byte, n*WordSize)
		for i := uint32(0); i < n; i++ {
			binary.LittleEndian.PutUint64(buf[i*WordSize:], words[i])
		}
		if err := v.PutBytes(wordsPtr, buf); err != nil {
			return 0, err
		}
	}
	return uint32(len(words)), nil
}
