package value

import (
	"math"
	"math/big"
)

// Kind is the ABI-visible type of a value. The order matches napi_valuetype.
type Kind uint8

const (
	KindUndefined Kind = iota
	KindNull
	KindBoolean
	KindNumber
	KindString
	KindSymbol
	KindObject
	KindFunction
	KindExternal
	KindBigInt
)

var kindNames = [...]string{
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBoolean:   "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindSymbol:    "symbol",
	KindObject:    "object",
	KindFunction:  "function",
	KindExternal:  "external",
	KindBigInt:    "bigint",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is any value the host engine can hand to a guest.
type Value interface {
	Kind() Kind
}

type undefinedValue struct{}

func (undefinedValue) Kind() Kind { return KindUndefined }

type nullValue struct{}

func (nullValue) Kind() Kind { return KindNull }

var (
	// Undefined is the single undefined value.
	Undefined Value = undefinedValue{}
	// Null is the single null value.
	Null Value = nullValue{}
)

// Bool is a boolean primitive.
type Bool bool

func (Bool) Kind() Kind { return KindBoolean }

const (
	True  = Bool(true)
	False = Bool(false)
)

// Number is an IEEE-754 double primitive.
type Number float64

func (Number) Kind() Kind { return KindNumber }

// String is a string primitive.
type String string

func (String) Kind() Kind { return KindString }

// Symbol is a unique property key. Identity is pointer identity.
type Symbol struct {
	Description    string
	HasDescription bool
}

func (*Symbol) Kind() Kind { return KindSymbol }

// NewSymbol creates a symbol with the given description.
func NewSymbol(description string) *Symbol {
	return &Symbol{Description: description, HasDescription: true}
}

// BigInt is an arbitrary precision integer primitive. It is immutable.
type BigInt struct {
	v big.Int
}

func (*BigInt) Kind() Kind { return KindBigInt }

// NewBigInt copies x into a new BigInt.
func NewBigInt(x *big.Int) *BigInt {
	b := &BigInt{}
	b.v.Set(x)
	return b
}

// BigIntFromInt64 creates a BigInt from a signed 64-bit integer.
func BigIntFromInt64(x int64) *BigInt {
	b := &BigInt{}
	b.v.SetInt64(x)
	return b
}

// BigIntFromUint64 creates a BigInt from an unsigned 64-bit integer.
func BigIntFromUint64(x uint64) *BigInt {
	b := &BigInt{}
	b.v.SetUint64(x)
	return b
}

// Int returns a copy of the integer.
func (b *BigInt) Int() *big.Int {
	return new(big.Int).Set(&b.v)
}

// Sign returns -1, 0 or +1.
func (b *BigInt) Sign() int {
	return b.v.Sign()
}

func (b *BigInt) String() string {
	return b.v.String()
}

// Int64 returns the value truncated to 64 bits two's complement and whether
// that was lossless.
func (b *BigInt) Int64() (int64, bool) {
	if b.v.IsInt64() {
		return b.v.Int64(), true
	}
	return int64(truncate64(&b.v)), false
}

// Uint64 returns the value truncated to 64 bits and whether that was lossless.
func (b *BigInt) Uint64() (uint64, bool) {
	if b.v.IsUint64() {
		return b.v.Uint64(), true
	}
	return truncate64(&b.v), false
}

var mask64 = new(big.Int).SetUint64(math.MaxUint64)

// truncate64 returns the low 64 bits of x in two's complement.
// big.Int bitwise operations use two's complement for negative operands.
func truncate64(x *big.Int) uint64 {
	return new(big.Int).And(x, mask64).Uint64()
}

// IsCallable reports whether v is a function object.
func IsCallable(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.fn != nil
}

// IsObject reports whether v is any object, including functions and externals.
func IsObject(v Value) bool {
	_, ok := v.(*Object)
	return ok
}

// IsNullish reports whether v is undefined or null.
func IsNullish(v Value) bool {
	k := v.Kind()
	return k == KindUndefined || k == KindNull
}

// TypeOf returns the typeof string of v.
func TypeOf(v Value) string {
	switch v.Kind() {
	case KindNull:
		return "object"
	case KindExternal:
		return "object"
	default:
		return v.Kind().String()
	}
}
