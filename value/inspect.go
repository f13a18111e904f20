package value

import (
	"strconv"
	"strings"
)

// dataValue reads a data property along the prototype chain without invoking
// getters.
func dataValue(o *Object, name string) (Value, bool) {
	k := StringKey(name)
	for p := o; p != nil; p = p.proto {
		if d, ok := p.props.get(k); ok {
			if d.Accessor {
				return nil, false
			}
			return d.Value, true
		}
	}
	return nil, false
}

// Describe renders v for error messages. It never runs guest code.
func Describe(v Value) string {
	switch x := v.(type) {
	case nil:
		return "undefined"
	case String:
		return strconv.Quote(string(x))
	case Number:
		return NumberToString(float64(x))
	case Bool:
		return strconv.FormatBool(bool(x))
	case *BigInt:
		return x.String() + "n"
	case *Symbol:
		return "Symbol(" + x.Description + ")"
	case *Object:
		return describeObject(x)
	}
	return v.Kind().String()
}

func describeObject(o *Object) string {
	switch {
	case o.class == ClassError:
		name, _ := dataValue(o, "name")
		msg, _ := dataValue(o, "message")
		n, _ := name.(String)
		m, _ := msg.(String)
		switch {
		case n == "":
			return string(m)
		case m == "":
			return string(n)
		}
		return string(n) + ": " + string(m)
	case o.fn != nil:
		if name := o.Name(); name != "" {
			return "function " + name
		}
		return "function (anonymous)"
	case o.class == ClassExternal:
		return "[External: " + strconv.FormatUint(uint64(o.identity.External), 16) + "]"
	}
	if ctor, ok := dataValue(o, "constructor"); ok {
		if c, ok := ctor.(*Object); ok && c.Name() != "" {
			return "#<" + c.Name() + ">"
		}
	}
	return "#<Object>"
}

// Inspect renders v in the style of a REPL: nested objects and arrays are
// expanded up to a small depth. Getters are not invoked.
func Inspect(v Value) string {
	var b strings.Builder
	inspect(&b, v, 0, map[*Object]bool{})
	return b.String()
}

const inspectDepth = 3

func inspect(b *strings.Builder, v Value, depth int, seen map[*Object]bool) {
	o, ok := v.(*Object)
	if !ok {
		if s, ok := v.(String); ok && depth > 0 {
			b.WriteString("'" + strings.ReplaceAll(string(s), "'", "\\'") + "'")
			return
		}
		if s, ok := v.(String); ok {
			b.WriteString(string(s))
			return
		}
		b.WriteString(Describe(v))
		return
	}
	if seen[o] {
		b.WriteString("[Circular]")
		return
	}
	switch o.class {
	case ClassError:
		b.WriteString(describeObject(o))
		return
	case ClassPromise:
		st, res, _ := o.PromiseState()
		b.WriteString("Promise { ")
		switch st {
		case PromisePending:
			b.WriteString("<pending>")
		case PromiseRejected:
			b.WriteString("<rejected> ")
			inspect(b, res, depth+1, seen)
		default:
			inspect(b, res, depth+1, seen)
		}
		b.WriteString(" }")
		return
	case ClassDate:
		t, _ := o.DateValue()
		if t != t {
			b.WriteString("Invalid Date")
			return
		}
		b.WriteString(dateTime(t).Format("2006-01-02T15:04:05.000Z"))
		return
	case ClassArrayBuffer, ClassTypedArray, ClassDataView:
		name := classTag(o)
		if o.IsBuffer() {
			name = "Buffer"
		}
		b.WriteString(name + " <")
		for i, c := range o.Bytes() {
			if i == 50 {
				b.WriteString(" ...")
				break
			}
			if i > 0 {
				b.WriteByte(' ')
			}
			b.WriteString(strconv.FormatUint(uint64(c)|0x100, 16)[1:])
		}
		b.WriteString(">")
		return
	}
	if o.fn != nil {
		b.WriteString("[Function: " + o.Name() + "]")
		return
	}
	if p, ok := o.PrimitiveValue(); ok {
		b.WriteString("[" + classTag(o) + ": ")
		inspect(b, p, depth+1, seen)
		b.WriteString("]")
		return
	}
	if depth >= inspectDepth {
		if o.class == ClassArray {
			b.WriteString("[Array]")
		} else {
			b.WriteString("[Object]")
		}
		return
	}

	seen[o] = true
	defer delete(seen, o)

	opening, closing := "{", "}"
	if o.class == ClassArray {
		opening, closing = "[", "]"
	}
	var parts []string
	for _, k := range o.OwnKeys() {
		d, ok := o.GetOwnProperty(k)
		if !ok || !d.Enumerable {
			continue
		}
		var item strings.Builder
		if _, isIndex := k.ArrayIndex(); o.class != ClassArray || !isIndex {
			if k.IsSymbol() {
				item.WriteString("[" + Describe(k.Symbol()) + "]")
			} else if isIdentifier(k.Name()) {
				item.WriteString(k.Name())
			} else {
				item.WriteString("'" + k.Name() + "'")
			}
			item.WriteString(": ")
		}
		if d.Accessor {
			item.WriteString("[Getter/Setter]")
		} else {
			inspect(&item, d.Value, depth+1, seen)
		}
		parts = append(parts, item.String())
	}
	if len(parts) == 0 {
		b.WriteString(opening + closing)
		return
	}
	b.WriteString(opening + " " + strings.Join(parts, ", ") + " " + closing)
}
