package value

import (
	"context"
	"math"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// FromJSON converts a parsed JSON document into host values.
func (r *Realm) FromJSON(res gjson.Result) Value {
	switch res.Type {
	case gjson.Null:
		return Null
	case gjson.True:
		return True
	case gjson.False:
		return False
	case gjson.Number:
		return Number(res.Num)
	case gjson.String:
		return String(res.Str)
	}
	if res.IsArray() {
		arr := r.NewArray()
		var n uint32
		res.ForEach(func(_, v gjson.Result) bool {
			arr.CreateDataProperty(IndexKey(n), r.FromJSON(v))
			n++
			return true
		})
		return arr
	}
	if res.IsObject() {
		obj := r.NewObject()
		res.ForEach(func(k, v gjson.Result) bool {
			obj.CreateDataProperty(StringKey(k.Str), r.FromJSON(v))
			return true
		})
		return obj
	}
	return Undefined
}

// ParseJSON parses a JSON text. Invalid input throws a SyntaxError.
func (r *Realm) ParseJSON(text string) (Value, error) {
	if !gjson.Valid(text) {
		return nil, r.Throwf(SyntaxError, "Unexpected token in JSON")
	}
	return r.FromJSON(gjson.Parse(text)), nil
}

// ToJSON serializes v like JSON.stringify without a replacer. ok is false when
// v has no JSON representation (undefined, functions, symbols).
func (r *Realm) ToJSON(ctx context.Context, v Value) (text string, ok bool, err error) {
	enc := jsonEncoder{realm: r, seen: map[*Object]bool{}}
	return enc.encode(ctx, v)
}

type jsonEncoder struct {
	realm *Realm
	seen  map[*Object]bool
}

func (e *jsonEncoder) encode(ctx context.Context, v Value) (string, bool, error) {
	if o, ok := v.(*Object); ok {
		if o.class == ClassDate {
			t, _ := o.DateValue()
			if math.IsNaN(t) {
				return "null", true, nil
			}
			q, err := quoteJSON(dateTime(t).Format("2006-01-02T15:04:05.000Z"))
			return q, err == nil, err
		}
		if p, ok := o.PrimitiveValue(); ok {
			v = p
		}
	}
	switch x := v.(type) {
	case String:
		q, err := quoteJSON(string(x))
		return q, err == nil, err
	case Number:
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return "null", true, nil
		}
		return NumberToString(float64(x)), true, nil
	case Bool:
		if x {
			return "true", true, nil
		}
		return "false", true, nil
	case *BigInt:
		return "", false, e.realm.Throwf(TypeError, "Do not know how to serialize a BigInt")
	case *Object:
		if x.fn != nil {
			return "", false, nil
		}
		if e.seen[x] {
			return "", false, e.realm.Throwf(TypeError, "Converting circular structure to JSON")
		}
		e.seen[x] = true
		defer delete(e.seen, x)
		if x.class == ClassArray {
			return e.encodeArray(ctx, x)
		}
		return e.encodeObject(ctx, x)
	}
	if v.Kind() == KindNull {
		return "null", true, nil
	}
	return "", false, nil
}

func (e *jsonEncoder) encodeArray(ctx context.Context, a *Object) (string, bool, error) {
	out := "[]"
	for i := uint32(0); i < a.Length(); i++ {
		el, err := a.Get(ctx, IndexKey(i))
		if err != nil {
			return "", false, err
		}
		raw, ok, err := e.encode(ctx, el)
		if err != nil {
			return "", false, err
		}
		if !ok {
			raw = "null"
		}
		if out, err = sjson.SetRaw(out, "-1", raw); err != nil {
			return "", false, err
		}
	}
	return out, true, nil
}

func (e *jsonEncoder) encodeObject(ctx context.Context, o *Object) (string, bool, error) {
	out := "{}"
	for _, k := range o.OwnKeys() {
		if k.IsSymbol() {
			continue
		}
		desc, ok := o.GetOwnProperty(k)
		if !ok || !desc.Enumerable {
			continue
		}
		v, err := o.Get(ctx, k)
		if err != nil {
			return "", false, err
		}
		raw, ok, err := e.encode(ctx, v)
		if err != nil {
			return "", false, err
		}
		if !ok {
			continue
		}
		if out, err = sjson.SetRaw(out, jsonPathKey(k.Name()), raw); err != nil {
			return "", false, err
		}
	}
	return out, true, nil
}

// jsonPathKey escapes name for use as a single sjson path component. Names
// starting with a digit or '-' are forced to object keys.
func jsonPathKey(name string) string {
	var b strings.Builder
	if name == "" || name[0] == '-' || (name[0] >= '0' && name[0] <= '9') {
		b.WriteByte(':')
	}
	for i := 0; i < len(name); i++ {
		switch c := name[i]; c {
		case '.', '|', '#', '@', '*', '?', '\\', ':':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

// quoteJSON renders s as a JSON string literal by appending it to an empty
// array and stripping the brackets.
func quoteJSON(s string) (string, error) {
	out, err := sjson.Set("[]", "-1", s)
	if err != nil {
		return "", err
	}
	return out[1 : len(out)-1], nil
}

// FromGo converts plain Go data into host values. Unsupported types become
// undefined.
func (r *Realm) FromGo(v any) Value {
	switch x := v.(type) {
	case nil:
		return Null
	case Value:
		return x
	case bool:
		return Bool(x)
	case int:
		return Number(x)
	case int32:
		return Number(x)
	case int64:
		return Number(x)
	case uint32:
		return Number(x)
	case uint64:
		return Number(x)
	case float32:
		return Number(x)
	case float64:
		return Number(x)
	case string:
		return String(x)
	case []byte:
		return r.NewBuffer(x)
	case []any:
		arr := r.NewArray()
		for i, el := range x {
			arr.CreateDataProperty(IndexKey(uint32(i)), r.FromGo(el))
		}
		return arr
	case map[string]any:
		obj := r.NewObject()
		for k, el := range x {
			obj.CreateDataProperty(StringKey(k), r.FromGo(el))
		}
		return obj
	}
	return Undefined
}

// ToGo converts a host value into plain Go data: nil, bool, float64, string,
// *big.Int, []byte, []any or map[string]any. Functions and symbols are
// rendered with Describe. Nesting deeper than maxGoDepth is cut off.
func ToGo(ctx context.Context, v Value) (any, error) {
	return toGo(ctx, v, 0)
}

const maxGoDepth = 64

func toGo(ctx context.Context, v Value, depth int) (any, error) {
	if depth > maxGoDepth {
		return "[Object]", nil
	}
	switch x := v.(type) {
	case Bool:
		return bool(x), nil
	case Number:
		return float64(x), nil
	case String:
		return string(x), nil
	case *BigInt:
		return x.Int(), nil
	case *Symbol:
		return Describe(x), nil
	case *Object:
		switch {
		case x.fn != nil, x.class == ClassExternal:
			return Describe(x), nil
		case x.class == ClassTypedArray, x.class == ClassArrayBuffer, x.class == ClassDataView:
			return append([]byte(nil), x.Bytes()...), nil
		case x.class == ClassArray:
			out := make([]any, x.Length())
			for i := range out {
				el, err := x.Get(ctx, IndexKey(uint32(i)))
				if err != nil {
					return nil, err
				}
				if out[i], err = toGo(ctx, el, depth+1); err != nil {
					return nil, err
				}
			}
			return out, nil
		}
		if p, ok := x.PrimitiveValue(); ok {
			return toGo(ctx, p, depth)
		}
		out := map[string]any{}
		for _, k := range x.OwnKeys() {
			desc, ok := x.GetOwnProperty(k)
			if k.IsSymbol() || !ok || !desc.Enumerable {
				continue
			}
			el, err := x.Get(ctx, k)
			if err != nil {
				return nil, err
			}
			if out[k.Name()], err = toGo(ctx, el, depth+1); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return nil, nil
}
