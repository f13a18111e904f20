package value

import (
	"context"
	"testing"
)

func TestPromiseReactionsRunAsJobs(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	c := r.NewPromise()

	var got Value
	onFulfilled := r.NewFunction("onFulfilled", 1, func(_ context.Context, call *CallInfo) (Value, error) {
		got = call.Arg(0)
		return Number(43), nil
	})
	derived, err := r.Then(c.Promise, onFulfilled, Undefined)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.Resolve.Call(ctx, Undefined, []Value{Number(42)}); err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Fatal("reaction must not run before the job queue drains")
	}
	if r.PendingJobs() != 1 {
		t.Fatalf("pending jobs = %d", r.PendingJobs())
	}
	if err := r.RunJobs(ctx); err != nil {
		t.Fatal(err)
	}
	if got != Number(42) {
		t.Fatalf("handler got %v", got)
	}
	st, res, _ := derived.PromiseState()
	if st != PromiseFulfilled || res != Number(43) {
		t.Fatalf("derived = %v %v", st, res)
	}
}

func TestPromiseSettlesOnce(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	c := r.NewPromise()
	c.Reject.Call(ctx, Undefined, []Value{String("first")})
	c.Resolve.Call(ctx, Undefined, []Value{String("second")})
	st, res, _ := c.Promise.PromiseState()
	if st != PromiseRejected || res != String("first") {
		t.Fatalf("state = %v %v", st, res)
	}
}

func TestPromiseAdoptsThenable(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	inner, err := r.PromiseResolve(ctx, Number(7))
	if err != nil {
		t.Fatal(err)
	}
	outer := r.NewPromise()
	outer.Resolve.Call(ctx, Undefined, []Value{inner})
	if st, _, _ := outer.Promise.PromiseState(); st != PromisePending {
		t.Fatalf("adoption is asynchronous, state = %v", st)
	}
	if err := r.RunJobs(ctx); err != nil {
		t.Fatal(err)
	}
	st, res, _ := outer.Promise.PromiseState()
	if st != PromiseFulfilled || res != Number(7) {
		t.Fatalf("state = %v %v", st, res)
	}
}

func TestPromiseSelfResolution(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	c := r.NewPromise()
	c.Resolve.Call(ctx, Undefined, []Value{c.Promise})
	st, res, _ := c.Promise.PromiseState()
	if st != PromiseRejected || !IsError(res) {
		t.Fatalf("state = %v %v", st, Describe(res))
	}
}

func TestPromiseHandlerThrowRejects(t *testing.T) {
	ctx := context.Background()
	r := NewRealm()
	c := r.NewPromise()
	boom := r.NewFunction("boom", 1, func(context.Context, *CallInfo) (Value, error) {
		return nil, r.Throwf(Error, "boom")
	})
	derived, _ := r.Then(c.Promise, boom, Undefined)
	c.Resolve.Call(ctx, Undefined, []Value{Undefined})
	if err := r.RunJobs(ctx); err != nil {
		t.Fatal(err)
	}
	st, res, _ := derived.PromiseState()
	if st != PromiseRejected || Describe(res) != "Error: boom" {
		t.Fatalf("state = %v %v", st, Describe(res))
	}
}
