package napi

import (
	"context"

	"github.com/wippyai/wasm-napi/codec"
	"github.com/wippyai/wasm-napi/value"
)

// napi_property_attributes. A missing bit leaves the property closed.
const (
	attrWritable     = 1 << 0
	attrEnumerable   = 1 << 1
	attrConfigurable = 1 << 2
	attrStatic       = 1 << 10
)

// napi_key_collection_mode
const (
	keyIncludePrototypes = 0
	keyOwnOnly           = 1
)

// napi_key_filter
const (
	filterWritable     = 1 << 0
	filterEnumerable   = 1 << 1
	filterConfigurable = 1 << 2
	filterSkipStrings  = 1 << 3
	filterSkipSymbols  = 1 << 4
)

// napi_key_conversion
const (
	keyKeepNumbers      = 0
	keyNumbersToStrings = 1
)

func (e *Env) key(ctx context.Context, h uint32) (value.PropertyKey, error) {
	return e.realm.ToPropertyKey(ctx, e.load(h))
}

func (e *Env) SetProperty(ctx context.Context, obj, key, v uint32) Status {
	return e.call("napi_set_property", func() error {
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		k, err := e.key(ctx, key)
		if err != nil {
			return err
		}
		return o.Set(ctx, k, e.load(v))
	})
}

func (e *Env) GetProperty(ctx context.Context, obj, key, result uint32) Status {
	return e.call("napi_get_property", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		k, err := e.key(ctx, key)
		if err != nil {
			return err
		}
		v, err := o.Get(ctx, k)
		if err != nil {
			return err
		}
		return e.putValue(result, v)
	})
}

func (e *Env) HasProperty(ctx context.Context, obj, key, result uint32) Status {
	return e.call("napi_has_property", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		k, err := e.key(ctx, key)
		if err != nil {
			return err
		}
		return e.view.PutBool(result, o.HasProperty(k))
	})
}

// HasOwnProperty requires a string or symbol key.
func (e *Env) HasOwnProperty(ctx context.Context, obj, key, result uint32) Status {
	return e.call("napi_has_own_property", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		k, err := e.nameKey(key)
		if err != nil {
			return err
		}
		return e.view.PutBool(result, o.HasOwnProperty(k))
	})
}

// DeleteProperty reports false for a non-configurable property instead of
// throwing. result is optional.
func (e *Env) DeleteProperty(ctx context.Context, obj, key, result uint32) Status {
	return e.call("napi_delete_property", func() error {
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		k, err := e.key(ctx, key)
		if err != nil {
			return err
		}
		ok := o.Delete(k)
		if result == 0 {
			return nil
		}
		return e.view.PutBool(result, ok)
	})
}

// nameKey loads a string or symbol handle as a key.
func (e *Env) nameKey(h uint32) (value.PropertyKey, error) {
	switch k := e.load(h).(type) {
	case value.String:
		return value.StringKey(string(k)), nil
	case *value.Symbol:
		return value.SymbolKey(k), nil
	}
	return value.PropertyKey{}, StatusNameExpected
}

func (e *Env) namedKey(ptr uint32) (value.PropertyKey, error) {
	if ptr == 0 {
		return value.PropertyKey{}, StatusInvalidArg
	}
	name, err := e.view.ReadCString(ptr)
	if err != nil {
		return value.PropertyKey{}, err
	}
	return value.StringKey(name), nil
}

func (e *Env) SetNamedProperty(ctx context.Context, obj, name, v uint32) Status {
	return e.call("napi_set_named_property", func() error {
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		k, err := e.namedKey(name)
		if err != nil {
			return err
		}
		return o.Set(ctx, k, e.load(v))
	})
}

func (e *Env) GetNamedProperty(ctx context.Context, obj, name, result uint32) Status {
	return e.call("napi_get_named_property", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		k, err := e.namedKey(name)
		if err != nil {
			return err
		}
		v, err := o.Get(ctx, k)
		if err != nil {
			return err
		}
		return e.putValue(result, v)
	})
}

func (e *Env) HasNamedProperty(ctx context.Context, obj, name, result uint32) Status {
	return e.call("napi_has_named_property", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		k, err := e.namedKey(name)
		if err != nil {
			return err
		}
		return e.view.PutBool(result, o.HasProperty(k))
	})
}

func (e *Env) SetElement(ctx context.Context, obj, index, v uint32) Status {
	return e.call("napi_set_element", func() error {
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		return o.Set(ctx, value.IndexKey(index), e.load(v))
	})
}

func (e *Env) GetElement(ctx context.Context, obj, index, result uint32) Status {
	return e.call("napi_get_element", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		v, err := o.Get(ctx, value.IndexKey(index))
		if err != nil {
			return err
		}
		return e.putValue(result, v)
	})
}

func (e *Env) HasElement(ctx context.Context, obj, index, result uint32) Status {
	return e.call("napi_has_element", func() error {
		if result == 0 {
			return StatusInvalidArg
		}
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		return e.view.PutBool(result, o.HasProperty(value.IndexKey(index)))
	})
}

func (e *Env) DeleteElement(ctx context.Context, obj, index, result uint32) Status {
	return e.call("napi_delete_element", func() error {
		o, err := e.toObject(obj)
		if err != nil {
			return err
		}
		ok := o.Delete(value.IndexKey(index))
		if result == 0 {
			return nil
		}
		return e.view.PutBool(result, ok)
	})
}

// GetPropertyNames lists the enumerable string keys of obj and its prototype
// chain, the way for..in does. Numeric keys come back as strings.
func (e *Env) GetPropertyNames(ctx context.Context, obj, result uint32) Status {
	return e.call("napi_get_property_names", func() error {
		return e.propertyNames(obj, keyIncludePrototypes, filterEnumerable|filterSkipSymbols, keyNumbersToStrings, result)
	})
}

func (e *Env) GetAllPropertyNames(ctx context.Context, obj, mode, filter, conversion, result uint32) Status {
	return e.call("napi_get_all_property_names", func() error {
		return e.propertyNames(obj, mode, filter, conversion, result)
	})
}

func (e *Env) propertyNames(obj, mode, filter, conversion, result uint32) error {
	if result == 0 {
		return StatusInvalidArg
	}
	if mode != keyIncludePrototypes && mode != keyOwnOnly {
		return StatusInvalidArg
	}
	if conversion != keyKeepNumbers && conversion != keyNumbersToStrings {
		return StatusInvalidArg
	}
	o, err := e.object(obj)
	if err != nil {
		return err
	}
	keys := CollectKeys(o, mode == keyOwnOnly, filter)
	names := make([]value.Value, 0, len(keys))
	for _, k := range keys {
		if conversion == keyKeepNumbers {
			if n, ok := k.IntegerKey(); ok {
				names = append(names, value.Number(n))
				continue
			}
		}
		names = append(names, k.Value())
	}
	return e.putValue(result, e.realm.NewArray(names...))
}

// CollectKeys returns the keys of o that pass filter, walking the prototype
// chain unless ownOnly is set. A key seen lower in the chain shadows the same
// key further up even when the lower property is filtered out.
func CollectKeys(o *value.Object, ownOnly bool, filter uint32) []value.PropertyKey {
	var keys []value.PropertyKey
	seen := make(map[value.PropertyKey]struct{})
	for cur := o; cur != nil; cur = cur.Prototype() {
		for _, k := range cur.OwnKeys() {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			if k.IsSymbol() && filter&filterSkipSymbols != 0 {
				continue
			}
			if !k.IsSymbol() && filter&filterSkipStrings != 0 {
				continue
			}
			p, ok := cur.GetOwnProperty(k)
			if !ok {
				continue
			}
			if filter&filterWritable != 0 && (p.Accessor || !p.Writable) {
				continue
			}
			if filter&filterEnumerable != 0 && !p.Enumerable {
				continue
			}
			if filter&filterConfigurable != 0 && !p.Configurable {
				continue
			}
			keys = append(keys, k)
		}
		if ownOnly {
			break
		}
	}
	return keys
}

// DefineProperties defines count descriptors on obj.
func (e *Env) DefineProperties(ctx context.Context, obj, count, props uint32) Status {
	return e.call("napi_define_properties", func() error {
		if count > 0 && props == 0 {
			return StatusInvalidArg
		}
		o, err := e.object(obj)
		if err != nil {
			return err
		}
		descs, err := e.readDescriptors(count, props)
		if err != nil {
			return err
		}
		for _, d := range descs {
			if err := e.defineDescriptor(o, d, modePlain, nil); err != nil {
				return err
			}
		}
		return nil
	})
}

// descriptor is a decoded property descriptor with its name resolved.
type descriptor struct {
	codec.RawDescriptor
	key value.PropertyKey
}

// readDescriptors decodes count records and resolves every name before
// anything is defined, so a bad name leaves the target untouched.
func (e *Env) readDescriptors(count, props uint32) ([]descriptor, error) {
	raw, err := e.view.ReadDescriptors(count, props)
	if err != nil {
		return nil, err
	}
	descs := make([]descriptor, len(raw))
	for i, d := range raw {
		k, err := e.descriptorKey(d)
		if err != nil {
			return nil, err
		}
		descs[i] = descriptor{RawDescriptor: d, key: k}
	}
	return descs, nil
}

// descriptorKey resolves the name of a descriptor: utf8name when set,
// otherwise the name handle, which must hold a string or symbol.
func (e *Env) descriptorKey(d codec.RawDescriptor) (value.PropertyKey, error) {
	if d.UTF8Name != 0 {
		name, err := e.view.ReadCString(d.UTF8Name)
		if err != nil {
			return value.PropertyKey{}, err
		}
		return value.StringKey(name), nil
	}
	return e.nameKey(d.Name)
}

func functionName(k value.PropertyKey) string {
	if s := k.Symbol(); s != nil {
		return "[" + s.Description + "]"
	}
	return k.Name()
}

// defineDescriptor defines one descriptor on target. Accessor and method
// functions are created in mode; owner is the class for modeMethod.
func (e *Env) defineDescriptor(target *value.Object, d descriptor, mode callMode, owner *value.Object) error {
	k := d.key
	enumerable := d.Attributes&attrEnumerable != 0
	configurable := d.Attributes&attrConfigurable != 0
	name := functionName(k)

	var desc value.Property
	switch {
	case d.Getter != 0 || d.Setter != 0:
		var get, set *value.Object
		if d.Getter != 0 {
			get = e.newFunction(&callback{mode: mode, fn: d.Getter, data: d.Data, name: name, owner: owner})
		}
		if d.Setter != 0 {
			set = e.newFunction(&callback{mode: mode, fn: d.Setter, data: d.Data, name: name, owner: owner})
		}
		desc = value.AccessorProperty(get, set, enumerable, configurable)
	case d.Method != 0:
		fn := e.newFunction(&callback{mode: mode, fn: d.Method, data: d.Data, name: name, owner: owner})
		desc = value.DataProperty(fn, d.Attributes&attrWritable != 0, enumerable, configurable)
	default:
		desc = value.DataProperty(e.load(d.Value), d.Attributes&attrWritable != 0, enumerable, configurable)
	}
	return target.DefineProperty(k, desc)
}

func (e *Env) ObjectFreeze(ctx context.Context, obj uint32) Status {
	return e.call("napi_object_freeze", func() error {
		o, err := e.object(obj)
		if err != nil {
			return err
		}
		return o.Freeze()
	})
}

func (e *Env) ObjectSeal(ctx context.Context, obj uint32) Status {
	return e.call("napi_object_seal", func() error {
		o, err := e.object(obj)
		if err != nil {
			return err
		}
		return o.Seal()
	})
}
