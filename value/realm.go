package value

import (
	"context"
	"math"
	"strings"
)

// Job is a unit of deferred work run from the realm's microtask queue.
type Job func(ctx context.Context) error

// Realm owns the intrinsic objects, the global object and the microtask queue.
// A realm is not safe for concurrent use.
type Realm struct {
	ObjectPrototype      *Object
	FunctionPrototype    *Object
	ArrayPrototype       *Object
	PromisePrototype     *Object
	DatePrototype        *Object
	ArrayBufferPrototype *Object
	DataViewPrototype    *Object
	Global               *Object

	booleanPrototype *Object
	numberPrototype  *Object
	stringPrototype  *Object
	symbolPrototype  *Object
	bigintPrototype  *Object
	bufferPrototype  *Object
	promiseCtor      *Object
	evaluator        Evaluator

	errorPrototypes        [RuntimeError + 1]*Object
	errorConstructors      [RuntimeError + 1]*Object
	typedArrayPrototypes   [BigUint64Array + 1]*Object
	typedArrayConstructors [BigUint64Array + 1]*Object

	jobs []Job
}

// RealmOption configures a Realm.
type RealmOption func(*Realm)

// WithEvaluator replaces the script evaluator used by RunScript.
func WithEvaluator(e Evaluator) RealmOption {
	return func(r *Realm) {
		r.evaluator = e
	}
}

// NewRealm creates a realm with its intrinsics installed.
func NewRealm(opts ...RealmOption) *Realm {
	r := &Realm{}
	r.ObjectPrototype = &Object{realm: r, class: ClassObject}

	fp := r.newObject(ClassFunction, r.ObjectPrototype)
	fp.fn = &function{call: func(context.Context, *CallInfo) (Value, error) { return Undefined, nil }}
	r.FunctionPrototype = fp
	fp.props.set(StringKey("length"), DataProperty(Number(0), false, false, true))
	fp.props.set(StringKey("name"), DataProperty(String(""), false, false, true))

	r.Global = r.newObject(ClassObject, r.ObjectPrototype)
	r.Global.props.set(StringKey("globalThis"), DataProperty(r.Global, true, false, true))
	r.Global.props.set(StringKey("undefined"), DataProperty(Undefined, false, false, false))
	r.Global.props.set(StringKey("NaN"), DataProperty(Number(math.NaN()), false, false, false))
	r.Global.props.set(StringKey("Infinity"), DataProperty(Number(math.Inf(1)), false, false, false))

	r.initObject()
	r.initFunction()
	r.initArray()
	r.initPrimitiveWrappers()
	r.initErrors()
	r.initDate()
	r.initBuffers()
	r.initPromise()

	r.evaluator = literalEvaluator{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Realm) newObject(class Class, proto *Object) *Object {
	return &Object{realm: r, class: class, proto: proto}
}

// NewObject creates an ordinary object inheriting from Object.prototype.
func (r *Realm) NewObject() *Object {
	return r.newObject(ClassObject, r.ObjectPrototype)
}

// NewObjectWithPrototype creates an ordinary object with the given prototype.
func (r *Realm) NewObjectWithPrototype(proto *Object) *Object {
	return r.newObject(ClassObject, proto)
}

// NewExternal creates an opaque object that reports the external kind.
func (r *Realm) NewExternal(data uint32) *Object {
	o := r.newObject(ClassExternal, r.ObjectPrototype)
	o.identity.External = data
	o.identity.HasExternal = true
	return o
}

// NewArray creates an array holding values.
func (r *Realm) NewArray(values ...Value) *Object {
	a := r.NewArrayWithLength(0)
	for i, v := range values {
		a.props.set(IndexKey(uint32(i)), DataProperty(v, true, true, true))
	}
	a.array.length = uint32(len(values))
	return a
}

// NewArrayWithLength creates a sparse array of the given length.
func (r *Realm) NewArrayWithLength(n uint32) *Object {
	a := r.newObject(ClassArray, r.ArrayPrototype)
	a.array = &arrayState{length: n}
	return a
}

// EnqueueJob appends a job to the microtask queue.
func (r *Realm) EnqueueJob(j Job) {
	r.jobs = append(r.jobs, j)
}

// PendingJobs returns the number of queued microtasks.
func (r *Realm) PendingJobs() int {
	return len(r.jobs)
}

// RunJobs drains the microtask queue, including jobs queued while draining.
// It stops at the first job that fails.
func (r *Realm) RunJobs(ctx context.Context) error {
	for len(r.jobs) > 0 {
		j := r.jobs[0]
		r.jobs[0] = nil
		r.jobs = r.jobs[1:]
		if err := j(ctx); err != nil {
			return err
		}
	}
	r.jobs = nil
	return nil
}

func (r *Realm) method(o *Object, name string, length int, fn NativeFunc) {
	o.props.set(StringKey(name), DataProperty(r.NewFunction(name, length, fn), true, false, true))
}

func (r *Realm) getter(o *Object, name string, fn NativeFunc) {
	o.props.set(StringKey(name), AccessorProperty(r.NewFunction("get "+name, 0, fn), nil, false, true))
}

func (r *Realm) global(name string, v Value) {
	r.Global.props.set(StringKey(name), DataProperty(v, true, false, true))
}

func (r *Realm) initObject() {
	op := r.ObjectPrototype
	r.method(op, "toString", 0, func(_ context.Context, call *CallInfo) (Value, error) {
		return String("[object " + classTag(call.This) + "]"), nil
	})
	r.method(op, "valueOf", 0, func(_ context.Context, call *CallInfo) (Value, error) {
		o, err := r.ToObject(call.This)
		if err != nil {
			return nil, err
		}
		return o, nil
	})
	r.method(op, "hasOwnProperty", 1, func(ctx context.Context, call *CallInfo) (Value, error) {
		k, err := r.ToPropertyKey(ctx, call.Arg(0))
		if err != nil {
			return nil, err
		}
		o, err := r.ToObject(call.This)
		if err != nil {
			return nil, err
		}
		return Bool(o.HasOwnProperty(k)), nil
	})

	ctor := r.NewFunctionFrom(FunctionSpec{
		Name:        "Object",
		Length:      1,
		Constructor: true,
		Prototype:   op,
		Call: func(ctx context.Context, call *CallInfo) (Value, error) {
			v := call.Arg(0)
			if IsNullish(v) {
				return r.NewObject(), nil
			}
			o, err := r.ToObject(v)
			if err != nil {
				return nil, err
			}
			return o, nil
		},
	})
	r.global("Object", ctor)
}

func (r *Realm) initFunction() {
	fp := r.FunctionPrototype
	r.method(fp, "call", 1, func(ctx context.Context, call *CallInfo) (Value, error) {
		var args []Value
		if len(call.Args) > 1 {
			args = call.Args[1:]
		}
		return r.Call(ctx, call.This, call.Arg(0), args...)
	})
	r.method(fp, "toString", 0, func(_ context.Context, call *CallInfo) (Value, error) {
		f, ok := call.This.(*Object)
		if !ok || f.fn == nil {
			return nil, r.Throwf(TypeError, "Function.prototype.toString requires that 'this' be a Function")
		}
		return String("function " + f.Name() + "() { [native code] }"), nil
	})
	ctor := r.NewFunctionFrom(FunctionSpec{
		Name:        "Function",
		Length:      1,
		Constructor: true,
		Prototype:   fp,
		Call: func(context.Context, *CallInfo) (Value, error) {
			return nil, r.Throwf(Error, "Code generation from strings disallowed for this context")
		},
	})
	r.global("Function", ctor)
}

func (r *Realm) initArray() {
	ap := r.newObject(ClassArray, r.ObjectPrototype)
	ap.array = &arrayState{}
	r.ArrayPrototype = ap

	join := func(ctx context.Context, call *CallInfo) (Value, error) {
		o, err := r.ToObject(call.This)
		if err != nil {
			return nil, err
		}
		sep := ","
		if s := call.Arg(0); s != Undefined {
			if sep, err = r.ToString(ctx, s); err != nil {
				return nil, err
			}
		}
		n, err := r.lengthOf(ctx, o)
		if err != nil {
			return nil, err
		}
		parts := make([]string, n)
		for i := range parts {
			el, err := o.Get(ctx, IndexKey(uint32(i)))
			if err != nil {
				return nil, err
			}
			if IsNullish(el) {
				continue
			}
			if parts[i], err = r.ToString(ctx, el); err != nil {
				return nil, err
			}
		}
		return String(strings.Join(parts, sep)), nil
	}
	r.method(ap, "join", 1, join)
	r.method(ap, "toString", 0, func(ctx context.Context, call *CallInfo) (Value, error) {
		return join(ctx, &CallInfo{This: call.This})
	})
	r.method(ap, "push", 1, func(ctx context.Context, call *CallInfo) (Value, error) {
		o, err := r.ToObject(call.This)
		if err != nil {
			return nil, err
		}
		n, err := r.lengthOf(ctx, o)
		if err != nil {
			return nil, err
		}
		for _, v := range call.Args {
			if err := o.Set(ctx, IndexKey(n), v); err != nil {
				return nil, err
			}
			n++
		}
		if err := o.Set(ctx, StringKey("length"), Number(n)); err != nil {
			return nil, err
		}
		return Number(n), nil
	})

	ctor := r.NewFunctionFrom(FunctionSpec{
		Name:        "Array",
		Length:      1,
		Constructor: true,
		Prototype:   ap,
		Call: func(ctx context.Context, call *CallInfo) (Value, error) {
			if len(call.Args) == 1 {
				if n, ok := call.Args[0].(Number); ok {
					if float64(n) < 0 || float64(n) != float64(uint32(n)) {
						return nil, r.Throwf(RangeError, "Invalid array length")
					}
					return r.NewArrayWithLength(uint32(n)), nil
				}
			}
			return r.NewArray(call.Args...), nil
		},
	})
	r.global("Array", ctor)
}

func (r *Realm) lengthOf(ctx context.Context, o *Object) (uint32, error) {
	if o.array != nil {
		return o.array.length, nil
	}
	v, err := o.Get(ctx, StringKey("length"))
	if err != nil {
		return 0, err
	}
	n, err := r.ToNumber(ctx, v)
	if err != nil {
		return 0, err
	}
	return ToUint32(n), nil
}

func (r *Realm) initPrimitiveWrappers() {
	r.booleanPrototype = r.wrapperPrototype(ClassBoolean, "Boolean", Bool(false))
	r.numberPrototype = r.wrapperPrototype(ClassNumber, "Number", Number(0))
	r.stringPrototype = r.wrapperPrototype(ClassString, "String", String(""))
	r.symbolPrototype = r.wrapperPrototype(ClassSymbol, "Symbol", nil)
	r.bigintPrototype = r.wrapperPrototype(ClassBigInt, "BigInt", nil)
}

// wrapperPrototype installs the prototype of a boxed primitive class with
// valueOf and toString.
func (r *Realm) wrapperPrototype(class Class, name string, zero Value) *Object {
	var proto *Object
	if zero != nil {
		proto = r.newObject(class, r.ObjectPrototype)
		proto.internal = zero
	} else {
		proto = r.newObject(ClassObject, r.ObjectPrototype)
	}
	thisValue := func(v Value) (Value, error) {
		if !IsObject(v) && primitiveClass(v) == class {
			return v, nil
		}
		if o, ok := v.(*Object); ok && o.class == class {
			return o.internal.(Value), nil
		}
		return nil, r.Throwf(TypeError, "%s.prototype.valueOf requires that 'this' be a %s", name, name)
	}
	r.method(proto, "valueOf", 0, func(_ context.Context, call *CallInfo) (Value, error) {
		return thisValue(call.This)
	})
	r.method(proto, "toString", 0, func(ctx context.Context, call *CallInfo) (Value, error) {
		v, err := thisValue(call.This)
		if err != nil {
			return nil, err
		}
		if sym, ok := v.(*Symbol); ok {
			return String("Symbol(" + sym.Description + ")"), nil
		}
		s, err := r.ToString(ctx, v)
		return String(s), err
	})
	ctor := r.NewFunctionFrom(FunctionSpec{
		Name:        name,
		Length:      1,
		Constructor: zero != nil,
		Prototype:   proto,
		Call: func(ctx context.Context, call *CallInfo) (Value, error) {
			arg := call.Arg(0)
			switch class {
			case ClassBoolean:
				if len(call.Args) == 0 {
					arg = False
				}
				v := Bool(ToBoolean(arg))
				if call.NewTarget != nil {
					return r.box(v), nil
				}
				return v, nil
			case ClassNumber:
				if len(call.Args) == 0 {
					arg = Number(0)
				}
				n, err := r.ToNumber(ctx, arg)
				if err != nil {
					return nil, err
				}
				if call.NewTarget != nil {
					return r.box(Number(n)), nil
				}
				return Number(n), nil
			case ClassString:
				if len(call.Args) == 0 {
					arg = String("")
				}
				if sym, ok := arg.(*Symbol); ok && call.NewTarget == nil {
					return String("Symbol(" + sym.Description + ")"), nil
				}
				s, err := r.ToString(ctx, arg)
				if err != nil {
					return nil, err
				}
				if call.NewTarget != nil {
					return r.box(String(s)), nil
				}
				return String(s), nil
			case ClassSymbol:
				if arg == Undefined {
					return &Symbol{}, nil
				}
				s, err := r.ToString(ctx, arg)
				if err != nil {
					return nil, err
				}
				return NewSymbol(s), nil
			default:
				if call.NewTarget != nil {
					return nil, r.Throwf(TypeError, "BigInt is not a constructor")
				}
				p, err := r.ToPrimitive(ctx, arg, HintNumber)
				if err != nil {
					return nil, err
				}
				if n, ok := p.(Number); ok {
					return r.NumberToBigInt(float64(n))
				}
				return r.ToBigInt(ctx, p)
			}
		},
	})
	r.global(name, ctor)
	return proto
}

func primitiveClass(v Value) Class {
	switch v.Kind() {
	case KindBoolean:
		return ClassBoolean
	case KindNumber:
		return ClassNumber
	case KindString:
		return ClassString
	case KindSymbol:
		return ClassSymbol
	case KindBigInt:
		return ClassBigInt
	}
	return ClassObject
}

// box wraps a primitive in its object class.
func (r *Realm) box(v Value) *Object {
	var proto *Object
	class := primitiveClass(v)
	switch class {
	case ClassBoolean:
		proto = r.booleanPrototype
	case ClassNumber:
		proto = r.numberPrototype
	case ClassString:
		proto = r.stringPrototype
	case ClassSymbol:
		proto = r.symbolPrototype
	case ClassBigInt:
		proto = r.bigintPrototype
	}
	o := r.newObject(class, proto)
	o.internal = v
	if s, ok := v.(String); ok {
		units := utf16Units(string(s))
		for i := range units {
			o.props.set(IndexKey(uint32(i)), DataProperty(String(fromUTF16(units[i:i+1])), false, true, false))
		}
		o.props.set(StringKey("length"), DataProperty(Number(len(units)), false, false, false))
	}
	return o
}

// PrimitiveValue returns the primitive wrapped by a boxed object.
func (o *Object) PrimitiveValue() (Value, bool) {
	switch o.class {
	case ClassBoolean, ClassNumber, ClassString, ClassSymbol, ClassBigInt:
		v, ok := o.internal.(Value)
		return v, ok
	}
	return nil, false
}

func classTag(v Value) string {
	switch v.Kind() {
	case KindUndefined:
		return "Undefined"
	case KindNull:
		return "Null"
	}
	o, ok := v.(*Object)
	if !ok {
		switch v.Kind() {
		case KindBoolean:
			return "Boolean"
		case KindNumber:
			return "Number"
		case KindString:
			return "String"
		case KindSymbol:
			return "Symbol"
		case KindBigInt:
			return "BigInt"
		}
		return "Object"
	}
	switch o.class {
	case ClassArray:
		return "Array"
	case ClassFunction:
		return "Function"
	case ClassError:
		return "Error"
	case ClassBoolean:
		return "Boolean"
	case ClassNumber:
		return "Number"
	case ClassString:
		return "String"
	case ClassDate:
		return "Date"
	case ClassArrayBuffer:
		return "ArrayBuffer"
	case ClassTypedArray:
		return o.internal.(*typedArray).kind.String()
	case ClassDataView:
		return "DataView"
	case ClassPromise:
		return "Promise"
	}
	if o.fn != nil {
		return "Function"
	}
	return "Object"
}
