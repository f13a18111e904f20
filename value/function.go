package value

import (
	"context"
)

// CallInfo describes one invocation of a function object.
type CallInfo struct {
	This      Value
	Callee    *Object
	NewTarget *Object // nil unless invoked as a construction
	Args      []Value
}

// Arg returns argument i, or undefined when absent.
func (c *CallInfo) Arg(i int) Value {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return Undefined
}

// NativeFunc implements the behaviour of a function object.
type NativeFunc func(ctx context.Context, call *CallInfo) (Value, error)

// ConstructFunc allocates and initializes the result of a construction.
type ConstructFunc func(ctx context.Context, call *CallInfo) (*Object, error)

type function struct {
	call      NativeFunc
	construct ConstructFunc
	ctor      bool
}

// FunctionSpec describes a function object to create.
type FunctionSpec struct {
	Call NativeFunc
	// Construct overrides the default construction, which allocates an
	// ordinary object from newTarget.prototype and invokes Call on it.
	Construct ConstructFunc
	// Prototype is linked as the function's "prototype" property when
	// Constructor is set. A fresh object is created when nil.
	Prototype   *Object
	Name        string
	Length      int
	Constructor bool
}

// NewFunction creates a plain, non-constructible function.
func (r *Realm) NewFunction(name string, length int, fn NativeFunc) *Object {
	return r.NewFunctionFrom(FunctionSpec{Name: name, Length: length, Call: fn})
}

// NewFunctionFrom creates a function object from def.
func (r *Realm) NewFunctionFrom(def FunctionSpec) *Object {
	f := r.newObject(ClassFunction, r.FunctionPrototype)
	f.fn = &function{call: def.Call, construct: def.Construct, ctor: def.Constructor}
	f.props.set(StringKey("length"), DataProperty(Number(def.Length), false, false, true))
	f.props.set(StringKey("name"), DataProperty(String(def.Name), false, false, true))
	if def.Constructor {
		proto := def.Prototype
		if proto == nil {
			proto = r.NewObject()
		}
		f.props.set(StringKey("prototype"), DataProperty(proto, def.Prototype == nil, false, false))
		proto.props.set(StringKey("constructor"), DataProperty(f, true, false, true))
	}
	return f
}

// IsConstructor reports whether the object can be used with new.
func (o *Object) IsConstructor() bool {
	return o.fn != nil && o.fn.ctor
}

// Name returns the "name" own data property of a function, if it is a string.
func (o *Object) Name() string {
	p, ok := o.props.get(StringKey("name"))
	if !ok || p.Accessor {
		return ""
	}
	s, _ := p.Value.(String)
	return string(s)
}

// Call invokes the object as a function.
func (o *Object) Call(ctx context.Context, this Value, args []Value) (Value, error) {
	if o.fn == nil {
		return nil, o.realm.Throwf(TypeError, "%s is not a function", Describe(o))
	}
	return o.fn.call(ctx, &CallInfo{This: this, Args: args, Callee: o})
}

// Construct invokes the object as a constructor. newTarget defaults to o.
func (o *Object) Construct(ctx context.Context, args []Value, newTarget *Object) (*Object, error) {
	if !o.IsConstructor() {
		return nil, o.realm.Throwf(TypeError, "%s is not a constructor", Describe(o))
	}
	if newTarget == nil {
		newTarget = o
	}
	call := &CallInfo{Args: args, Callee: o, NewTarget: newTarget}
	if o.fn.construct != nil {
		return o.fn.construct(ctx, call)
	}
	proto, err := o.realm.prototypeFromConstructor(ctx, newTarget, o.realm.ObjectPrototype)
	if err != nil {
		return nil, err
	}
	this := o.realm.NewObjectWithPrototype(proto)
	call.This = this
	res, err := o.fn.call(ctx, call)
	if err != nil {
		return nil, err
	}
	if obj, ok := res.(*Object); ok {
		return obj, nil
	}
	return this, nil
}

// prototypeFromConstructor reads newTarget.prototype, falling back to def when
// it is not an object.
func (r *Realm) prototypeFromConstructor(ctx context.Context, newTarget *Object, def *Object) (*Object, error) {
	if newTarget == nil {
		return def, nil
	}
	p, err := newTarget.Get(ctx, StringKey("prototype"))
	if err != nil {
		return nil, err
	}
	if obj, ok := p.(*Object); ok {
		return obj, nil
	}
	return def, nil
}

// Call invokes fn with this and args, throwing a TypeError when fn is not
// callable.
func (r *Realm) Call(ctx context.Context, fn Value, this Value, args ...Value) (Value, error) {
	f, ok := fn.(*Object)
	if !ok || f.fn == nil {
		return nil, r.Throwf(TypeError, "%s is not a function", Describe(fn))
	}
	return f.Call(ctx, this, args)
}

// InstanceOf implements the instanceof operator without Symbol.hasInstance.
func (r *Realm) InstanceOf(ctx context.Context, v Value, ctor Value) (bool, error) {
	c, ok := ctor.(*Object)
	if !ok || c.fn == nil {
		return false, r.Throwf(TypeError, "Right-hand side of 'instanceof' is not callable")
	}
	obj, ok := v.(*Object)
	if !ok {
		return false, nil
	}
	p, err := c.Get(ctx, StringKey("prototype"))
	if err != nil {
		return false, err
	}
	proto, ok := p.(*Object)
	if !ok {
		return false, r.Throwf(TypeError, "Function has non-object prototype '%s' in instanceof check", Describe(p))
	}
	for q := obj.proto; q != nil; q = q.proto {
		if q == proto {
			return true, nil
		}
	}
	return false, nil
}
