// Package codec marshals values between Go and guest linear memory.
//
// A View wraps a wasmnapi.Memory and provides little-endian scalar access,
// string decoding and encoding in UTF-8, UTF-16 and Latin-1, arbitrary
// precision integer word arrays, and napi_property_descriptor records.
//
// Guest memory can grow between ABI calls, so the view caches its size and is
// refreshed at the start of each operation:
//
//	v := codec.New(mem)
//	v.Refresh()
//	s, err := v.ReadString(ptr, codec.AutoLength, codec.UTF8)
//
// All out of range accesses fail with an errors.Error of kind out_of_bounds in
// the codec phase. Nothing is ever written past the end of a caller buffer.
package codec
