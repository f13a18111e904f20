package value

import (
	"context"
	"errors"
	"fmt"
)

// ErrorType selects one of the native error constructors.
type ErrorType uint8

const (
	Error ErrorType = iota
	TypeError
	RangeError
	SyntaxError
	ReferenceError
	RuntimeError
)

var errorNames = [...]string{
	Error:          "Error",
	TypeError:      "TypeError",
	RangeError:     "RangeError",
	SyntaxError:    "SyntaxError",
	ReferenceError: "ReferenceError",
	RuntimeError:   "RuntimeError",
}

func (t ErrorType) String() string {
	return errorNames[t]
}

// Throw is a thrown host value travelling as a Go error.
type Throw struct {
	Value Value
}

func (t *Throw) Error() string {
	return "Uncaught " + Describe(t.Value)
}

// Thrown extracts the thrown value from err.
func Thrown(err error) (Value, bool) {
	var t *Throw
	if errors.As(err, &t) {
		return t.Value, true
	}
	return nil, false
}

// NewError creates a native error object with the given message.
func (r *Realm) NewError(t ErrorType, message string) *Object {
	e := r.newObject(ClassError, r.errorPrototypes[t])
	e.props.set(StringKey("message"), DataProperty(String(message), true, false, true))
	e.props.set(StringKey("stack"), DataProperty(String(t.String()+": "+message+"\n    at <wasm>"), true, false, true))
	return e
}

// Throwf returns a Throw carrying a new native error.
func (r *Realm) Throwf(t ErrorType, format string, args ...any) error {
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	return &Throw{Value: r.NewError(t, msg)}
}

// ThrowValue returns a Throw carrying v.
func ThrowValue(v Value) error {
	return &Throw{Value: v}
}

// IsError reports whether v is a native error object.
func IsError(v Value) bool {
	o, ok := v.(*Object)
	return ok && o.class == ClassError
}

func (r *Realm) initErrors() {
	base := r.newObject(ClassObject, r.ObjectPrototype)
	r.errorPrototypes[Error] = base
	r.installErrorConstructor(Error, base)
	base.props.set(StringKey("toString"), DataProperty(r.NewFunction("toString", 0, r.errorToString), true, false, true))

	for t := TypeError; t <= RuntimeError; t++ {
		proto := r.newObject(ClassObject, base)
		r.errorPrototypes[t] = proto
		r.installErrorConstructor(t, proto)
	}
}

func (r *Realm) installErrorConstructor(t ErrorType, proto *Object) {
	proto.props.set(StringKey("name"), DataProperty(String(t.String()), true, false, true))
	proto.props.set(StringKey("message"), DataProperty(String(""), true, false, true))

	construct := func(ctx context.Context, call *CallInfo) (*Object, error) {
		p, err := r.prototypeFromConstructor(ctx, call.NewTarget, proto)
		if err != nil {
			return nil, err
		}
		e := r.newObject(ClassError, p)
		if msg := call.Arg(0); msg != Undefined {
			s, err := r.ToString(ctx, msg)
			if err != nil {
				return nil, err
			}
			e.props.set(StringKey("message"), DataProperty(String(s), true, false, true))
		}
		return e, nil
	}
	ctor := r.NewFunctionFrom(FunctionSpec{
		Name:        t.String(),
		Length:      1,
		Constructor: true,
		Prototype:   proto,
		Construct:   construct,
		Call: func(ctx context.Context, call *CallInfo) (Value, error) {
			call.NewTarget = call.Callee
			e, err := construct(ctx, call)
			if err != nil {
				return nil, err
			}
			return e, nil
		},
	})
	r.errorConstructors[t] = ctor
	r.Global.props.set(StringKey(t.String()), DataProperty(ctor, true, false, true))
}

func (r *Realm) errorToString(ctx context.Context, call *CallInfo) (Value, error) {
	o, ok := call.This.(*Object)
	if !ok {
		return nil, r.Throwf(TypeError, "Error.prototype.toString requires that 'this' be an Object")
	}
	name, err := r.getString(ctx, o, "name", "Error")
	if err != nil {
		return nil, err
	}
	msg, err := r.getString(ctx, o, "message", "")
	if err != nil {
		return nil, err
	}
	switch {
	case name == "":
		return String(msg), nil
	case msg == "":
		return String(name), nil
	}
	return String(name + ": " + msg), nil
}

func (r *Realm) getString(ctx context.Context, o *Object, key, def string) (string, error) {
	v, err := o.Get(ctx, StringKey(key))
	if err != nil {
		return "", err
	}
	if v == Undefined {
		return def, nil
	}
	return r.ToString(ctx, v)
}

// ErrorConstructor returns the constructor for t.
func (r *Realm) ErrorConstructor(t ErrorType) *Object {
	return r.errorConstructors[t]
}
