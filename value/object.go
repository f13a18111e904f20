package value

import (
	"context"
)

// Class identifies the internal layout of an object.
type Class uint8

const (
	ClassObject Class = iota
	ClassArray
	ClassFunction
	ClassError
	ClassBoolean
	ClassNumber
	ClassString
	ClassSymbol
	ClassBigInt
	ClassDate
	ClassArrayBuffer
	ClassTypedArray
	ClassDataView
	ClassPromise
	ClassExternal
)

// Identity holds embedder data attached to an object by identity. It lives
// inside the object, so it is collected together with it.
type Identity struct {
	Wrap        any
	External    uint32
	TypeTag     [2]uint64
	HasExternal bool
	HasWrap     bool
	HasTypeTag  bool
}

// Object is a host object: an ordered property map, a prototype link and an
// optional class-specific payload.
type Object struct {
	realm    *Realm
	proto    *Object
	fn       *function
	array    *arrayState
	internal any
	identity Identity
	props    propertyMap
	class    Class
	sealed   bool // not extensible
}

type arrayState struct {
	length         uint32
	lengthReadOnly bool
}

// Kind implements Value.
func (o *Object) Kind() Kind {
	switch {
	case o.fn != nil:
		return KindFunction
	case o.class == ClassExternal:
		return KindExternal
	default:
		return KindObject
	}
}

// Realm returns the realm that created the object.
func (o *Object) Realm() *Realm {
	return o.realm
}

// Class returns the object's internal class.
func (o *Object) Class() Class {
	return o.class
}

// Identity returns the identity slots of the object.
func (o *Object) Identity() *Identity {
	return &o.identity
}

// Prototype returns the [[Prototype]] of the object, or nil.
func (o *Object) Prototype() *Object {
	return o.proto
}

// SetPrototype changes the prototype. It fails on non-extensible objects and
// when the change would create a cycle.
func (o *Object) SetPrototype(p *Object) bool {
	if p == o.proto {
		return true
	}
	if o.sealed {
		return false
	}
	for q := p; q != nil; q = q.proto {
		if q == o {
			return false
		}
	}
	o.proto = p
	return true
}

// Extensible reports whether new properties can be added.
func (o *Object) Extensible() bool {
	return !o.sealed
}

// PreventExtensions makes the object non-extensible.
func (o *Object) PreventExtensions() {
	o.sealed = true
}

// GetOwnProperty returns the own property descriptor for k.
func (o *Object) GetOwnProperty(k PropertyKey) (Property, bool) {
	switch o.class {
	case ClassArray:
		if !k.IsSymbol() && k.name == "length" {
			return DataProperty(Number(o.array.length), !o.array.lengthReadOnly, false, false), true
		}
	case ClassTypedArray:
		if idx, numeric := canonicalNumericIndex(k); numeric {
			ta := o.internal.(*typedArray)
			v, ok := ta.get(idx)
			if !ok {
				return Property{}, false
			}
			return DataProperty(v, true, true, true), true
		}
	}
	p, ok := o.props.get(k)
	if !ok {
		return Property{}, false
	}
	return *p, true
}

// HasOwnProperty reports whether k is an own property.
func (o *Object) HasOwnProperty(k PropertyKey) bool {
	_, ok := o.GetOwnProperty(k)
	return ok
}

// HasProperty reports whether k is an own or inherited property.
func (o *Object) HasProperty(k PropertyKey) bool {
	for p := o; p != nil; p = p.proto {
		if p.HasOwnProperty(k) {
			return true
		}
		if p.class == ClassTypedArray {
			if _, numeric := canonicalNumericIndex(k); numeric {
				return false
			}
		}
	}
	return false
}

// DefineOwnProperty creates or updates an own property with a complete
// descriptor. It reports false when the change is not allowed.
func (o *Object) DefineOwnProperty(k PropertyKey, desc Property) bool {
	switch o.class {
	case ClassArray:
		if !k.IsSymbol() && k.name == "length" {
			return o.defineArrayLength(desc)
		}
		if idx, ok := k.ArrayIndex(); ok {
			if idx >= o.array.length && o.array.lengthReadOnly {
				return false
			}
			if !o.defineOrdinary(k, desc) {
				return false
			}
			if idx >= o.array.length {
				o.array.length = idx + 1
			}
			return true
		}
	case ClassTypedArray:
		if idx, numeric := canonicalNumericIndex(k); numeric {
			ta := o.internal.(*typedArray)
			if idx < 0 || float64(uint32(idx)) != idx || uint32(idx) >= ta.length() {
				return false
			}
			if desc.Accessor || !desc.Configurable || !desc.Enumerable || !desc.Writable {
				return false
			}
			return ta.setPrimitive(uint32(idx), desc.Value) == nil
		}
	}
	return o.defineOrdinary(k, desc)
}

func (o *Object) defineOrdinary(k PropertyKey, desc Property) bool {
	cur, ok := o.props.get(k)
	if !ok {
		if o.sealed {
			return false
		}
		o.props.set(k, desc)
		return true
	}
	if !cur.Configurable {
		if desc.Configurable || desc.Enumerable != cur.Enumerable || desc.Accessor != cur.Accessor {
			return false
		}
		if cur.Accessor {
			if desc.Getter != cur.Getter || desc.Setter != cur.Setter {
				return false
			}
		} else if !cur.Writable {
			if desc.Writable || !SameValue(desc.Value, cur.Value) {
				return false
			}
		}
	}
	o.props.set(k, desc)
	return true
}

func (o *Object) defineArrayLength(desc Property) bool {
	if desc.Accessor || desc.Configurable || desc.Enumerable {
		return false
	}
	n, ok := desc.Value.(Number)
	if !ok || float64(n) < 0 || float64(n) != float64(uint32(n)) {
		return false
	}
	newLen := uint32(n)
	if o.array.lengthReadOnly && (desc.Writable || newLen != o.array.length) {
		return false
	}
	ok = o.setArrayLength(newLen)
	if !desc.Writable {
		o.array.lengthReadOnly = true
	}
	return ok
}

// setArrayLength truncates or extends an array. Truncation stops at the first
// non-configurable element from the end.
func (o *Object) setArrayLength(newLen uint32) bool {
	if newLen >= o.array.length {
		o.array.length = newLen
		return true
	}
	indices, _, _ := o.props.keys()
	for i := len(indices) - 1; i >= 0; i-- {
		idx := indices[i]
		if idx < newLen {
			break
		}
		k := IndexKey(idx)
		if p, _ := o.props.get(k); !p.Configurable {
			o.array.length = idx + 1
			return false
		}
		o.props.remove(k)
	}
	o.array.length = newLen
	return true
}

// Get reads property k with the object itself as receiver.
func (o *Object) Get(ctx context.Context, k PropertyKey) (Value, error) {
	return o.GetWithReceiver(ctx, k, o)
}

// GetWithReceiver reads property k, invoking getters with receiver as this.
func (o *Object) GetWithReceiver(ctx context.Context, k PropertyKey, receiver Value) (Value, error) {
	for p := o; p != nil; p = p.proto {
		desc, ok := p.GetOwnProperty(k)
		if !ok {
			if p.class == ClassTypedArray {
				if _, numeric := canonicalNumericIndex(k); numeric {
					return Undefined, nil
				}
			}
			continue
		}
		if !desc.Accessor {
			return desc.Value, nil
		}
		if desc.Getter == nil {
			return Undefined, nil
		}
		return desc.Getter.Call(ctx, receiver, nil)
	}
	return Undefined, nil
}

// Set assigns property k the way a strict-mode assignment does: a rejected
// assignment throws a TypeError.
func (o *Object) Set(ctx context.Context, k PropertyKey, v Value) error {
	ok, err := o.SetWithReceiver(ctx, k, v, o)
	if err != nil {
		return err
	}
	if !ok {
		return o.realm.Throwf(TypeError, "Cannot assign to read only property '%s' of object", k)
	}
	return nil
}

// SetWithReceiver implements ordinary [[Set]]. It reports false when the
// assignment was rejected without an exception.
func (o *Object) SetWithReceiver(ctx context.Context, k PropertyKey, v Value, receiver Value) (bool, error) {
	if o.class == ClassTypedArray {
		if idx, numeric := canonicalNumericIndex(k); numeric && receiver == Value(o) {
			ta := o.internal.(*typedArray)
			converted, err := ta.coerce(ctx, o.realm, v)
			if err != nil {
				return false, err
			}
			if idx >= 0 && float64(uint32(idx)) == idx && uint32(idx) < ta.length() {
				_ = ta.setPrimitive(uint32(idx), converted)
			}
			return true, nil
		}
	}
	own, ok := o.GetOwnProperty(k)
	if !ok {
		if o.proto != nil {
			return o.proto.SetWithReceiver(ctx, k, v, receiver)
		}
		own = DataProperty(Undefined, true, true, true)
	}
	if own.Accessor {
		if own.Setter == nil {
			return false, nil
		}
		if _, err := own.Setter.Call(ctx, receiver, []Value{v}); err != nil {
			return false, err
		}
		return true, nil
	}
	if !own.Writable {
		return false, nil
	}
	target, isObj := receiver.(*Object)
	if !isObj {
		return false, nil
	}
	existing, ok := target.GetOwnProperty(k)
	if ok {
		if existing.Accessor || !existing.Writable {
			return false, nil
		}
		existing.Value = v
		return target.DefineOwnProperty(k, existing), nil
	}
	return target.DefineOwnProperty(k, DataProperty(v, true, true, true)), nil
}

// CreateDataProperty defines an open (writable, enumerable, configurable)
// data property.
func (o *Object) CreateDataProperty(k PropertyKey, v Value) bool {
	return o.DefineOwnProperty(k, DataProperty(v, true, true, true))
}

// DefineProperty defines k or throws a TypeError.
func (o *Object) DefineProperty(k PropertyKey, desc Property) error {
	if !o.DefineOwnProperty(k, desc) {
		return o.realm.Throwf(TypeError, "Cannot redefine property: %s", k)
	}
	return nil
}

// Delete removes own property k. It reports false for non-configurable
// properties.
func (o *Object) Delete(k PropertyKey) bool {
	switch o.class {
	case ClassArray:
		if !k.IsSymbol() && k.name == "length" {
			return false
		}
	case ClassTypedArray:
		if idx, numeric := canonicalNumericIndex(k); numeric {
			ta := o.internal.(*typedArray)
			_, present := ta.get(idx)
			return !present
		}
	}
	p, ok := o.props.get(k)
	if !ok {
		return true
	}
	if !p.Configurable {
		return false
	}
	o.props.remove(k)
	return true
}

// OwnKeys returns own property keys in enumeration order.
func (o *Object) OwnKeys() []PropertyKey {
	indices, strs, syms := o.props.keys()
	keys := make([]PropertyKey, 0, len(indices)+len(strs)+len(syms)+1)
	if o.class == ClassTypedArray {
		n := o.internal.(*typedArray).length()
		for i := uint32(0); i < n; i++ {
			keys = append(keys, IndexKey(i))
		}
	}
	for _, i := range indices {
		keys = append(keys, IndexKey(i))
	}
	if o.class == ClassArray {
		keys = append(keys, StringKey("length"))
	}
	keys = append(keys, strs...)
	return append(keys, syms...)
}

// Freeze makes every own property non-configurable and data properties
// read-only, then prevents extensions.
func (o *Object) Freeze() error {
	if o.class == ClassTypedArray && o.internal.(*typedArray).length() > 0 {
		return o.realm.Throwf(TypeError, "Cannot freeze array buffer views with elements")
	}
	return o.setIntegrity(true)
}

// Seal makes every own property non-configurable and prevents extensions.
func (o *Object) Seal() error {
	return o.setIntegrity(false)
}

func (o *Object) setIntegrity(frozen bool) error {
	o.sealed = true
	for _, k := range o.OwnKeys() {
		desc, ok := o.GetOwnProperty(k)
		if !ok {
			continue
		}
		desc.Configurable = false
		if frozen && !desc.Accessor {
			desc.Writable = false
		}
		if o.class == ClassTypedArray {
			if _, numeric := canonicalNumericIndex(k); numeric {
				continue
			}
		}
		if !o.DefineOwnProperty(k, desc) {
			return o.realm.Throwf(TypeError, "Cannot redefine property: %s", k)
		}
	}
	return nil
}

// IsFrozen reports whether the object is non-extensible with every own
// property non-configurable and read-only.
func (o *Object) IsFrozen() bool {
	if !o.sealed {
		return false
	}
	for _, k := range o.OwnKeys() {
		desc, _ := o.GetOwnProperty(k)
		if desc.Configurable || (!desc.Accessor && desc.Writable) {
			return false
		}
	}
	return true
}

// IsArray reports whether the object is an array.
func (o *Object) IsArray() bool {
	return o.class == ClassArray
}

// Length returns the length of an array, or 0.
func (o *Object) Length() uint32 {
	if o.array == nil {
		return 0
	}
	return o.array.length
}

// canonicalNumericIndex reports whether k is a canonical numeric string and
// returns its number.
func canonicalNumericIndex(k PropertyKey) (float64, bool) {
	if k.IsSymbol() {
		return 0, false
	}
	if k.name == "-0" {
		return 0, true
	}
	n := stringToNumber(k.name)
	if NumberToString(n) != k.name {
		return 0, false
	}
	return n, true
}
