package value

import (
	"slices"
	"strconv"
)

// PropertyKey names an own property: either a string or a symbol.
type PropertyKey struct {
	name string
	sym  *Symbol
}

// StringKey returns the key for a string name.
func StringKey(name string) PropertyKey {
	return PropertyKey{name: name}
}

// SymbolKey returns the key for a symbol.
func SymbolKey(sym *Symbol) PropertyKey {
	return PropertyKey{sym: sym}
}

// IndexKey returns the key for an array index.
func IndexKey(i uint32) PropertyKey {
	return PropertyKey{name: strconv.FormatUint(uint64(i), 10)}
}

// IsSymbol reports whether the key is a symbol.
func (k PropertyKey) IsSymbol() bool {
	return k.sym != nil
}

// Symbol returns the symbol of a symbol key, or nil.
func (k PropertyKey) Symbol() *Symbol {
	return k.sym
}

// Name returns the string of a string key.
func (k PropertyKey) Name() string {
	return k.name
}

// Value returns the key as a value (String or *Symbol).
func (k PropertyKey) Value() Value {
	if k.sym != nil {
		return k.sym
	}
	return String(k.name)
}

func (k PropertyKey) String() string {
	if k.sym != nil {
		return "Symbol(" + k.sym.Description + ")"
	}
	return k.name
}

// ArrayIndex reports whether the key is a canonical array index (0 .. 2^32-2).
func (k PropertyKey) ArrayIndex() (uint32, bool) {
	if k.sym != nil {
		return 0, false
	}
	n, ok := parseIndex(k.name, 1<<32-2)
	return uint32(n), ok
}

// IntegerKey reports whether the key is a canonical non-negative integer below
// 2^53-1. Such keys can be converted back to numbers.
func (k PropertyKey) IntegerKey() (float64, bool) {
	if k.sym != nil {
		return 0, false
	}
	n, ok := parseIndex(k.name, 1<<53-2)
	return float64(n), ok
}

func parseIndex(s string, limit uint64) (uint64, bool) {
	if s == "" || len(s) > 16 || (len(s) > 1 && s[0] == '0') {
		return 0, false
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return 0, false
		}
		n = n*10 + uint64(c-'0')
	}
	if n > limit {
		return 0, false
	}
	return n, true
}

// Property is a property descriptor. A property is either a data property
// (Value, Writable) or an accessor property (Getter, Setter).
type Property struct {
	Value        Value
	Getter       *Object
	Setter       *Object
	Accessor     bool
	Writable     bool
	Enumerable   bool
	Configurable bool
}

// DataProperty returns a data property descriptor.
func DataProperty(v Value, writable, enumerable, configurable bool) Property {
	return Property{Value: v, Writable: writable, Enumerable: enumerable, Configurable: configurable}
}

// AccessorProperty returns an accessor property descriptor.
func AccessorProperty(get, set *Object, enumerable, configurable bool) Property {
	return Property{Getter: get, Setter: set, Accessor: true, Enumerable: enumerable, Configurable: configurable}
}

// propertyMap keeps own properties in insertion order.
type propertyMap struct {
	entries map[PropertyKey]*Property
	order   []PropertyKey
}

func (m *propertyMap) get(k PropertyKey) (*Property, bool) {
	p, ok := m.entries[k]
	return p, ok
}

func (m *propertyMap) set(k PropertyKey, p Property) {
	if m.entries == nil {
		m.entries = make(map[PropertyKey]*Property)
	}
	if cur, ok := m.entries[k]; ok {
		*cur = p
		return
	}
	np := p
	m.entries[k] = &np
	m.order = append(m.order, k)
}

func (m *propertyMap) remove(k PropertyKey) {
	if _, ok := m.entries[k]; !ok {
		return
	}
	delete(m.entries, k)
	if i := slices.Index(m.order, k); i >= 0 {
		m.order = slices.Delete(m.order, i, i+1)
	}
}

func (m *propertyMap) len() int {
	return len(m.order)
}

// keys returns keys in property-enumeration order: array indices ascending,
// then strings in insertion order, then symbols in insertion order.
func (m *propertyMap) keys() (indices []uint32, strs []PropertyKey, syms []PropertyKey) {
	for _, k := range m.order {
		if k.sym != nil {
			syms = append(syms, k)
			continue
		}
		if i, ok := k.ArrayIndex(); ok {
			indices = append(indices, i)
			continue
		}
		strs = append(strs, k)
	}
	slices.Sort(indices)
	return indices, strs, syms
}
