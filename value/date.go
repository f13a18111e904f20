package value

import (
	"context"
	"math"
	"time"
)

// maxTime is the largest absolute time value a Date can hold, in ms.
const maxTime = 8.64e15

func timeClip(ms float64) float64 {
	if math.IsNaN(ms) || math.Abs(ms) > maxTime {
		return math.NaN()
	}
	return math.Trunc(ms) + 0
}

// NewDate creates a Date holding ms milliseconds since the Unix epoch. Values
// outside the representable range produce an invalid date.
func (r *Realm) NewDate(ms float64) *Object {
	o := r.newObject(ClassDate, r.DatePrototype)
	o.internal = timeClip(ms)
	return o
}

// IsDate reports whether the object is a Date.
func (o *Object) IsDate() bool {
	return o.class == ClassDate
}

// DateValue returns the time value of a Date.
func (o *Object) DateValue() (float64, bool) {
	if o.class != ClassDate {
		return 0, false
	}
	return o.internal.(float64), true
}

func dateTime(ms float64) time.Time {
	return time.UnixMilli(int64(ms)).UTC()
}

func (r *Realm) initDate() {
	dp := r.newObject(ClassObject, r.ObjectPrototype)
	r.DatePrototype = dp

	thisTime := func(v Value) (float64, error) {
		if o, ok := v.(*Object); ok {
			if t, ok := o.DateValue(); ok {
				return t, nil
			}
		}
		return 0, r.Throwf(TypeError, "this is not a Date object.")
	}
	getTime := func(_ context.Context, call *CallInfo) (Value, error) {
		t, err := thisTime(call.This)
		if err != nil {
			return nil, err
		}
		return Number(t), nil
	}
	r.method(dp, "getTime", 0, getTime)
	r.method(dp, "valueOf", 0, getTime)
	r.method(dp, "toISOString", 0, func(_ context.Context, call *CallInfo) (Value, error) {
		t, err := thisTime(call.This)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(t) {
			return nil, r.Throwf(RangeError, "Invalid time value")
		}
		return String(dateTime(t).Format("2006-01-02T15:04:05.000Z")), nil
	})
	r.method(dp, "toString", 0, func(_ context.Context, call *CallInfo) (Value, error) {
		t, err := thisTime(call.This)
		if err != nil {
			return nil, err
		}
		if math.IsNaN(t) {
			return String("Invalid Date"), nil
		}
		return String(dateTime(t).Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")), nil
	})

	ctor := r.NewFunctionFrom(FunctionSpec{
		Name:        "Date",
		Length:      7,
		Constructor: true,
		Prototype:   dp,
		Construct: func(ctx context.Context, call *CallInfo) (*Object, error) {
			p, err := r.prototypeFromConstructor(ctx, call.NewTarget, dp)
			if err != nil {
				return nil, err
			}
			ms := float64(time.Now().UnixMilli())
			if len(call.Args) > 0 {
				arg := call.Arg(0)
				if o, ok := arg.(*Object); ok {
					if t, ok := o.DateValue(); ok {
						arg = Number(t)
					}
				}
				prim, err := r.ToPrimitive(ctx, arg, HintDefault)
				if err != nil {
					return nil, err
				}
				if s, ok := prim.(String); ok {
					ms = parseDate(string(s))
				} else if ms, err = r.ToNumber(ctx, prim); err != nil {
					return nil, err
				}
			}
			d := r.NewDate(ms)
			d.proto = p
			return d, nil
		},
		Call: func(context.Context, *CallInfo) (Value, error) {
			return String(time.Now().UTC().Format("Mon Jan 02 2006 15:04:05 GMT+0000 (Coordinated Universal Time)")), nil
		},
	})
	r.method(ctor, "now", 0, func(context.Context, *CallInfo) (Value, error) {
		return Number(time.Now().UnixMilli()), nil
	})
	r.global("Date", ctor)
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
	"2006-01",
	"2006",
}

func parseDate(s string) float64 {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.UnixMilli())
		}
	}
	return math.NaN()
}
