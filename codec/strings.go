package codec

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/wippyai/wasm-napi/errors"
)

// AutoLength is the NAPI_AUTO_LENGTH sentinel: the string is NUL terminated.
const AutoLength = 0xFFFFFFFF

// Encoding selects the guest representation of a string.
type Encoding uint8

const (
	UTF8 Encoding = iota
	UTF16
	Latin1
)

func (e Encoding) String() string {
	switch e {
	case UTF8:
		return "utf8"
	case UTF16:
		return "utf16"
	case Latin1:
		return "latin1"
	}
	return "unknown"
}

// UnitSize is the size in bytes of one code unit.
func (e Encoding) UnitSize() uint32 {
	if e == UTF16 {
		return 2
	}
	return 1
}

var (
	utf16LE = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)
	latin1  = charmap.ISO8859_1
)

// scanChunk bounds a single read while searching for a terminator on memories
// that do not report their size.
const scanChunk = 256

// terminator finds the length in code units of the NUL terminated string at ptr.
func (v *View) terminator(ptr uint32, unit uint32) (uint32, error) {
	if v.size != 0 {
		if ptr >= v.size {
			return 0, errors.OutOfBounds(errors.PhaseCodec, ptr, unit, v.size)
		}
		b, err := v.Bytes(ptr, v.size-ptr)
		if err != nil {
			return 0, err
		}
		if n, ok := findNUL(b, unit); ok {
			return n, nil
		}
		return 0, errors.New(errors.PhaseCodec, errors.KindOutOfBounds).
			Detail("unterminated string at offset %d", ptr).
			Build()
	}

	var units uint32
	for off := ptr; ; off += scanChunk {
		b, err := v.Bytes(off, scanChunk)
		if err != nil {
			return 0, err
		}
		if n, ok := findNUL(b, unit); ok {
			return units + n, nil
		}
		units += scanChunk / unit
	}
}

func findNUL(b []byte, unit uint32) (uint32, bool) {
	if unit == 1 {
		i := bytes.IndexByte(b, 0)
		return uint32(i), i >= 0
	}
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			return uint32(i / 2), true
		}
	}
	return 0, false
}

// ReadString decodes the string at ptr. length counts code units of enc, or is
// AutoLength to scan for a terminator.
func (v *View) ReadString(ptr, length uint32, enc Encoding) (string, error) {
	unit := enc.UnitSize()
	if length == AutoLength {
		n, err := v.terminator(ptr, unit)
		if err != nil {
			return "", err
		}
		length = n
	}
	size := uint64(length) * uint64(unit)
	if size > 0xFFFFFFFF {
		return "", errors.OutOfBounds(errors.PhaseCodec, ptr, length, v.size)
	}
	raw, err := v.Bytes(ptr, uint32(size))
	if err != nil {
		return "", err
	}
	return Decode(raw, enc)
}

// ReadCString decodes a NUL terminated UTF-8 string.
func (v *View) ReadCString(ptr uint32) (string, error) {
	return v.ReadString(ptr, AutoLength, UTF8)
}

// Decode converts guest bytes in enc to a Go string. Invalid sequences become
// U+FFFD.
func Decode(raw []byte, enc Encoding) (string, error) {
	var dec *encoding.Decoder
	switch enc {
	case UTF8:
		if utf8.Valid(raw) {
			return string(raw), nil
		}
		dec = unicode.UTF8.NewDecoder()
	case UTF16:
		dec = utf16LE.NewDecoder()
	case Latin1:
		dec = latin1.NewDecoder()
	default:
		return "", errors.InvalidInput(errors.PhaseCodec, "unknown encoding "+enc.String())
	}
	out, err := dec.Bytes(raw)
	if err != nil {
		return "", errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, "decode "+enc.String())
	}
	return string(out), nil
}

// Encode converts s to enc. Characters outside Latin-1 are replaced.
func Encode(s string, enc Encoding) ([]byte, error) {
	var e *encoding.Encoder
	switch enc {
	case UTF8:
		return []byte(s), nil
	case UTF16:
		e = utf16LE.NewEncoder()
	case Latin1:
		e = encoding.ReplaceUnsupported(latin1.NewEncoder())
	default:
		return nil, errors.InvalidInput(errors.PhaseCodec, "unknown encoding "+enc.String())
	}
	out, err := e.Bytes([]byte(s))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseCodec, errors.KindInvalidData, err, "encode "+enc.String())
	}
	return out, nil
}

// EncodedLength is the length of s in code units of enc.
func EncodedLength(s string, enc Encoding) (uint32, error) {
	b, err := Encode(s, enc)
	if err != nil {
		return 0, err
	}
	return uint32(len(b)) / enc.UnitSize(), nil
}

// WriteString writes the longest prefix of s that fits in budget bytes at ptr
// and returns the number of bytes written. A multi-byte UTF-8 sequence or a
// UTF-16 surrogate pair is never split.
func (v *View) WriteString(ptr, budget uint32, s string, enc Encoding) (uint32, error) {
	b, err := Encode(s, enc)
	if err != nil {
		return 0, err
	}
	n := fit(b, budget, enc)
	if err := v.PutBytes(ptr, b[:n]); err != nil {
		return 0, err
	}
	return n, nil
}

func fit(b []byte, budget uint32, enc Encoding) uint32 {
	if uint32(len(b)) <= budget {
		return uint32(len(b))
	}
	switch enc {
	case UTF8:
		n := budget
		// back up to the start of the sequence that crosses the budget
		for n > 0 && !utf8.RuneStart(b[n]) {
			n--
		}
		return n
	case UTF16:
		n := budget &^ 1
		if n >= 2 {
			last := uint16(b[n-2]) | uint16(b[n-1])<<8
			if last >= 0xD800 && last < 0xDC00 {
				n -= 2
			}
		}
		return n
	default:
		return budget
	}
}
