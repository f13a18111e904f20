package value

import (
	"context"
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf16"
	"unicode/utf8"
)

// Hint is the preferred type for ToPrimitive.
type Hint uint8

const (
	HintDefault Hint = iota
	HintNumber
	HintString
)

// ToBoolean implements the truthiness rules.
func ToBoolean(v Value) bool {
	switch x := v.(type) {
	case Bool:
		return bool(x)
	case Number:
		return x != 0 && !math.IsNaN(float64(x))
	case String:
		return x != ""
	case *BigInt:
		return x.Sign() != 0
	case *Object, *Symbol:
		return true
	}
	return false
}

// ToPrimitive converts objects to primitives by calling valueOf and toString.
func (r *Realm) ToPrimitive(ctx context.Context, v Value, hint Hint) (Value, error) {
	o, ok := v.(*Object)
	if !ok {
		return v, nil
	}
	if hint == HintDefault {
		hint = HintNumber
		if o.class == ClassDate {
			hint = HintString
		}
	}
	order := [2]string{"valueOf", "toString"}
	if hint == HintString {
		order = [2]string{"toString", "valueOf"}
	}
	for _, name := range order {
		m, err := o.Get(ctx, StringKey(name))
		if err != nil {
			return nil, err
		}
		if !IsCallable(m) {
			continue
		}
		res, err := m.(*Object).Call(ctx, o, nil)
		if err != nil {
			return nil, err
		}
		if !IsObject(res) {
			return res, nil
		}
	}
	return nil, r.Throwf(TypeError, "Cannot convert object to primitive value")
}

// ToNumber converts v to a number.
func (r *Realm) ToNumber(ctx context.Context, v Value) (float64, error) {
	switch x := v.(type) {
	case Number:
		return float64(x), nil
	case Bool:
		if x {
			return 1, nil
		}
		return 0, nil
	case String:
		return stringToNumber(string(x)), nil
	case *Symbol:
		return 0, r.Throwf(TypeError, "Cannot convert a Symbol value to a number")
	case *BigInt:
		return 0, r.Throwf(TypeError, "Cannot convert a BigInt value to a number")
	case *Object:
		p, err := r.ToPrimitive(ctx, x, HintNumber)
		if err != nil {
			return 0, err
		}
		return r.ToNumber(ctx, p)
	}
	if v.Kind() == KindNull {
		return 0, nil
	}
	return math.NaN(), nil
}

// ToString converts v to a string.
func (r *Realm) ToString(ctx context.Context, v Value) (string, error) {
	switch x := v.(type) {
	case String:
		return string(x), nil
	case Number:
		return NumberToString(float64(x)), nil
	case Bool:
		if x {
			return "true", nil
		}
		return "false", nil
	case *BigInt:
		return x.String(), nil
	case *Symbol:
		return "", r.Throwf(TypeError, "Cannot convert a Symbol value to a string")
	case *Object:
		p, err := r.ToPrimitive(ctx, x, HintString)
		if err != nil {
			return "", err
		}
		return r.ToString(ctx, p)
	}
	if v.Kind() == KindNull {
		return "null", nil
	}
	return "undefined", nil
}

// ToObject boxes primitives and rejects undefined and null.
func (r *Realm) ToObject(v Value) (*Object, error) {
	if o, ok := v.(*Object); ok {
		return o, nil
	}
	if IsNullish(v) {
		return nil, r.Throwf(TypeError, "Cannot convert undefined or null to object")
	}
	return r.box(v), nil
}

// ToPropertyKey converts v to a property key.
func (r *Realm) ToPropertyKey(ctx context.Context, v Value) (PropertyKey, error) {
	p, err := r.ToPrimitive(ctx, v, HintString)
	if err != nil {
		return PropertyKey{}, err
	}
	if sym, ok := p.(*Symbol); ok {
		return SymbolKey(sym), nil
	}
	s, err := r.ToString(ctx, p)
	if err != nil {
		return PropertyKey{}, err
	}
	return StringKey(s), nil
}

// ToBigInt converts v to a BigInt. Numbers are rejected.
func (r *Realm) ToBigInt(ctx context.Context, v Value) (*BigInt, error) {
	p, err := r.ToPrimitive(ctx, v, HintNumber)
	if err != nil {
		return nil, err
	}
	switch x := p.(type) {
	case *BigInt:
		return x, nil
	case Bool:
		if x {
			return BigIntFromInt64(1), nil
		}
		return BigIntFromInt64(0), nil
	case String:
		b, ok := stringToBigInt(string(x))
		if !ok {
			return nil, r.Throwf(SyntaxError, "Cannot convert %s to a BigInt", string(x))
		}
		return b, nil
	case Number:
		return nil, r.Throwf(TypeError, "Cannot convert %s to a BigInt", NumberToString(float64(x)))
	}
	return nil, r.Throwf(TypeError, "Cannot convert %s to a BigInt", Describe(p))
}

// NumberToBigInt converts an integral number to a BigInt.
func (r *Realm) NumberToBigInt(n float64) (*BigInt, error) {
	if math.IsNaN(n) || math.IsInf(n, 0) || n != math.Trunc(n) {
		return nil, r.Throwf(RangeError, "The number %s cannot be converted to a BigInt because it is not an integer", NumberToString(n))
	}
	f := new(big.Float).SetFloat64(n)
	i, _ := f.Int(nil)
	return NewBigInt(i), nil
}

func stringToBigInt(s string) (*BigInt, bool) {
	s = trimJSSpace(s)
	if s == "" {
		return BigIntFromInt64(0), true
	}
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 10 {
			s = s[2:]
		}
	}
	if base == 10 && (strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")) && len(s) == 1 {
		return nil, false
	}
	if strings.ContainsRune(s, '_') {
		return nil, false
	}
	i, ok := new(big.Int).SetString(s, base)
	if !ok {
		return nil, false
	}
	return NewBigInt(i), true
}

// ToInt32 applies the modular int32 conversion.
func ToInt32(n float64) int32 {
	return int32(ToUint32(n))
}

// ToUint32 applies the modular uint32 conversion.
func ToUint32(n float64) uint32 {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0
	}
	n = math.Trunc(n)
	m := math.Mod(n, 1<<32)
	if m < 0 {
		m += 1 << 32
	}
	return uint32(m)
}

// ToInt64 truncates toward zero and saturates at the int64 range. NaN and
// infinities become 0.
func ToInt64(n float64) int64 {
	switch {
	case math.IsNaN(n), math.IsInf(n, 0):
		return 0
	case n >= math.MaxInt64:
		return math.MaxInt64
	case n <= math.MinInt64:
		return math.MinInt64
	}
	return int64(n)
}

// SameValue is equality without the NaN and signed zero exceptions.
func SameValue(a, b Value) bool {
	x, ok1 := a.(Number)
	y, ok2 := b.(Number)
	if ok1 && ok2 {
		if math.IsNaN(float64(x)) && math.IsNaN(float64(y)) {
			return true
		}
		return x == y && math.Signbit(float64(x)) == math.Signbit(float64(y))
	}
	return StrictEquals(a, b)
}

// StrictEquals implements the === operator.
func StrictEquals(a, b Value) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Kind() != b.Kind() {
		return false
	}
	switch x := a.(type) {
	case Number:
		return x == b.(Number)
	case *BigInt:
		return x.v.Cmp(&b.(*BigInt).v) == 0
	}
	return a == b
}

// NumberToString formats n the way the number-to-string algorithm does:
// shortest round-trip digits, exponent form outside [1e-7, 1e21).
func NumberToString(n float64) string {
	switch {
	case math.IsNaN(n):
		return "NaN"
	case n == 0:
		return "0"
	case math.IsInf(n, 1):
		return "Infinity"
	case math.IsInf(n, -1):
		return "-Infinity"
	case n < 0:
		return "-" + NumberToString(-n)
	}

	e := strconv.FormatFloat(n, 'e', -1, 64)
	mant, expStr, _ := strings.Cut(e, "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expStr)
	k := len(digits)
	pos := exp + 1

	var b strings.Builder
	switch {
	case k <= pos && pos <= 21:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", pos-k))
	case 0 < pos && pos <= 21:
		b.WriteString(digits[:pos])
		b.WriteByte('.')
		b.WriteString(digits[pos:])
	case -6 < pos && pos <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -pos))
		b.WriteString(digits)
	default:
		b.WriteByte(digits[0])
		if k > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		if pos-1 >= 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(pos - 1))
	}
	return b.String()
}

func isJSSpace(r rune) bool {
	return unicode.IsSpace(r) || r == '\uFEFF'
}

func trimJSSpace(s string) string {
	return strings.TrimFunc(s, isJSSpace)
}

// stringToNumber parses a numeric string literal, returning NaN when the
// string is not one.
func stringToNumber(s string) float64 {
	s = trimJSSpace(s)
	if s == "" {
		return 0
	}
	switch s {
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' {
		base := 0
		switch s[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			i, ok := new(big.Int).SetString(s[2:], base)
			if !ok || strings.ContainsRune(s, '_') {
				return math.NaN()
			}
			f, _ := new(big.Float).SetInt(i).Float64()
			return f
		}
	}
	if !isDecimalLiteral(s) {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// isDecimalLiteral accepts [+-] digits [. digits] [e [+-] digits] with at
// least one digit in the mantissa.
func isDecimalLiteral(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	digits := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && s[i] >= '0' && s[i] <= '9' {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

// utf16Units returns the UTF-16 code units of s.
func utf16Units(s string) []uint16 {
	return utf16.Encode([]rune(s))
}

// fromUTF16 decodes UTF-16 code units, replacing unpaired surrogates.
func fromUTF16(units []uint16) string {
	return string(utf16.Decode(units))
}

// StringLength returns the length of s in UTF-16 code units.
func StringLength(s string) int {
	n := 0
	for _, r := range s {
		if r >= 0x10000 && r <= utf8.MaxRune {
			n += 2
		} else {
			n++
		}
	}
	return n
}
