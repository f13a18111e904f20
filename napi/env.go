package napi

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"weak"

	"go.uber.org/zap"

	"github.com/wippyai/wasm-napi/codec"
	"github.com/wippyai/wasm-napi/errors"
	"github.com/wippyai/wasm-napi/handle"
	"github.com/wippyai/wasm-napi/value"
)

// Version is the N-API version reported by napi_get_version.
const Version = 8

// Env is one napi_env: the state behind every ABI call a single guest
// instance makes. An Env is not safe for concurrent use; guest calls into it
// are re-entrant but never parallel.
type Env struct {
	realm     *value.Realm
	guest     Guest
	view      *codec.View
	handles   *handle.Table[value.Value]
	refs      *handle.Refs[value.Value]
	deferreds *handle.Refs[*value.Capability]
	log       *zap.Logger
	abort     func(err error)

	pending   value.Value // nil when no exception is pending
	fatal     error
	lastError Status
	errorInfo uint32
	messages  map[string]uint32

	finalizers finalizerQueue
	cleanup    []cleanupHook
	instance   instanceData

	externalMemory int64
	base           uint32
	closed         bool
}

// Option configures an Env.
type Option func(*Env)

// WithRealm runs the environment against an existing realm.
func WithRealm(r *value.Realm) Option {
	return func(e *Env) {
		e.realm = r
	}
}

// WithLogger sets the logger used by the environment.
func WithLogger(l *zap.Logger) Option {
	return func(e *Env) {
		e.log = l
	}
}

// WithAbortHook replaces process termination on the fatal path. The hook may
// return; the environment then refuses all further work.
func WithAbortHook(fn func(err error)) Option {
	return func(e *Env) {
		e.abort = fn
	}
}

// NewEnv creates the environment for guest and opens its base scope.
func NewEnv(guest Guest, opts ...Option) *Env {
	e := &Env{
		guest:     guest,
		handles:   handle.NewTable[value.Value](),
		refs:      handle.NewRefs[value.Value](weakValue),
		deferreds: handle.NewRefs[*value.Capability](nil),
		abort:     exitProcess,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.realm == nil {
		e.realm = value.NewRealm()
	}
	if e.log == nil {
		e.log = Logger()
	}
	e.view = codec.New(guest.Memory())
	e.base = e.handles.Open(false)
	return e
}

func exitProcess(err error) {
	fmt.Fprintf(os.Stderr, "FATAL ERROR: %s\n", fatalText(err))
	os.Exit(134)
}

func fatalText(err error) string {
	var e *errors.Error
	if stderrors.As(err, &e) && e.Kind == errors.KindFatal {
		return e.Detail
	}
	return err.Error()
}

// weakValue holds objects through weak pointers; primitives stay strong.
func weakValue(v value.Value) func() (value.Value, bool) {
	o, ok := v.(*value.Object)
	if !ok {
		return nil
	}
	wp := weak.Make(o)
	return func() (value.Value, bool) {
		if o := wp.Value(); o != nil {
			return o, true
		}
		return nil, false
	}
}

// Realm returns the realm values live in.
func (e *Env) Realm() *value.Realm {
	return e.realm
}

// View returns the guest memory codec.
func (e *Env) View() *codec.View {
	return e.view
}

// Err returns the fatal error that stopped the environment, if any.
func (e *Env) Err() error {
	return e.fatal
}

// IsPending reports whether an exception is pending.
func (e *Env) IsPending() bool {
	return e.pending != nil
}

// TakeException clears and returns the pending exception.
func (e *Env) TakeException() (value.Value, bool) {
	v := e.pending
	e.pending = nil
	return v, v != nil
}

// Throw sets the pending exception. An exception that is already pending is
// kept.
func (e *Env) Throw(v value.Value) {
	if v == nil {
		v = value.Undefined
	}
	if e.pending != nil {
		e.log.Debug("exception dropped, another one is pending", zap.String("value", value.Describe(v)))
		return
	}
	e.pending = v
}

// LastError returns the status of the most recent operation.
func (e *Env) LastError() Status {
	return e.lastError
}

// Fatal reports an unrecoverable error and invokes the abort hook. From then
// on every operation fails.
func (e *Env) Fatal(location, message string) {
	e.fail(location, errors.Fatal(errors.PhaseRuntime, location, message))
}

// fail makes the environment fatal with err and invokes the abort hook.
func (e *Env) fail(location string, err *errors.Error) {
	e.log.Error("fatal error", zap.String("location", location), zap.Error(err))
	if e.fatal == nil {
		e.fatal = err
	}
	e.abort(err)
}

// exec runs an operation body behind the exception gate. Bodies report
// failure by returning a Status or any other error; non-status errors become
// the pending exception.
func (e *Env) exec(op string, gated bool, body func() error) Status {
	if e.fatal != nil {
		return StatusGenericFailure
	}
	if gated && e.pending != nil {
		e.lastError = StatusPendingException
		return StatusPendingException
	}
	e.lastError = StatusOK
	e.view.Refresh()
	st := e.status(body())
	if st != StatusOK {
		e.lastError = st
		if ce := e.log.Check(zap.DebugLevel, "napi call failed"); ce != nil {
			ce.Write(zap.String("op", op), zap.Uint32("status", uint32(st)))
		}
	}
	return st
}

func (e *Env) call(op string, body func() error) Status {
	return e.exec(op, true, body)
}

func (e *Env) bypass(op string, body func() error) Status {
	return e.exec(op, false, body)
}

func (e *Env) status(err error) Status {
	if err == nil {
		return StatusOK
	}
	var st Status
	if stderrors.As(err, &st) {
		return st
	}
	if e.fatal != nil {
		return StatusGenericFailure
	}
	e.Throw(e.exceptionFor(err))
	return StatusPendingException
}

// exceptionFor turns a Go error into the value a guest sees as thrown.
func (e *Env) exceptionFor(err error) value.Value {
	if v, ok := value.Thrown(err); ok {
		return v
	}
	var ee *errors.Error
	if stderrors.As(err, &ee) {
		switch ee.Kind {
		case errors.KindOutOfBounds:
			return e.realm.NewError(value.RangeError, err.Error())
		case errors.KindTrap:
			return e.realm.NewError(value.RuntimeError, err.Error())
		}
	}
	return e.realm.NewError(value.Error, err.Error())
}

// Handle table access

func (e *Env) load(h uint32) value.Value {
	v, ok := e.handles.Load(h)
	if !ok || v == nil {
		return value.Undefined
	}
	return v
}

func (e *Env) store(v value.Value) uint32 {
	if v == nil {
		v = value.Undefined
	}
	return e.handles.Store(v)
}

// Store places v in the current scope and returns its handle.
func (e *Env) Store(v value.Value) uint32 {
	return e.store(v)
}

// Load returns the value of handle h.
func (e *Env) Load(h uint32) value.Value {
	return e.load(h)
}

// putValue stores v and writes its handle to the result pointer.
func (e *Env) putValue(ptr uint32, v value.Value) error {
	if ptr == 0 {
		return StatusInvalidArg
	}
	return e.view.PutU32(ptr, e.store(v))
}

func (e *Env) putBool(ptr uint32, b bool) error {
	if ptr == 0 {
		return StatusInvalidArg
	}
	return e.view.PutBool(ptr, b)
}

func (e *Env) putU32(ptr uint32, n uint32) error {
	if ptr == 0 {
		return StatusInvalidArg
	}
	return e.view.PutU32(ptr, n)
}

// object loads h and requires an object or function.
func (e *Env) object(h uint32) (*value.Object, error) {
	o, ok := e.load(h).(*value.Object)
	if !ok {
		return nil, StatusObjectExpected
	}
	return o, nil
}

// toObject loads h and converts primitives to wrapper objects.
func (e *Env) toObject(h uint32) (*value.Object, error) {
	v := e.load(h)
	if value.IsNullish(v) {
		return nil, StatusObjectExpected
	}
	return e.realm.ToObject(v)
}

// RunJobs drains the realm's microtask queue.
func (e *Env) RunJobs(ctx context.Context) error {
	if err := e.realm.RunJobs(ctx); err != nil {
		return err
	}
	return e.fatal
}
