package handle

import (
	"errors"
)

var (
	ErrInvalidRef = errors.New("invalid reference")
	ErrZeroCount  = errors.New("reference count is zero")
)

// WeakFunc makes a weak getter for v. It returns nil when v has to be held
// strongly, as primitives do. The getter reports false once v is collected.
type WeakFunc[T any] func(v T) func() (T, bool)

type ref[T any] struct {
	value T
	weak  func() (T, bool)
	count uint32
	live  bool
}

// Refs is a reference table. References outlive handle scopes; an index is
// never reused, deleted entries stay as holes.
//
// A reference with a zero count holds its value weakly when a WeakFunc is
// configured.
type Refs[T any] struct {
	entries []ref[T]
	weaken  WeakFunc[T]
	live    int
}

// NewRefs creates a reference table. Index 0 is reserved.
func NewRefs[T any](weaken WeakFunc[T]) *Refs[T] {
	return &Refs[T]{
		entries: make([]ref[T], 1, 16),
		weaken:  weaken,
	}
}

// Create adds a reference to v with the initial count.
func (r *Refs[T]) Create(v T, count uint32) uint32 {
	e := ref[T]{value: v, count: count, live: true}
	if count == 0 {
		r.makeWeak(&e)
	}
	r.entries = append(r.entries, e)
	r.live++
	return uint32(len(r.entries) - 1)
}

func (r *Refs[T]) makeWeak(e *ref[T]) {
	if r.weaken == nil {
		return
	}
	if w := r.weaken(e.value); w != nil {
		var zero T
		e.weak = w
		e.value = zero
	}
}

func (r *Refs[T]) lookup(i uint32) (*ref[T], error) {
	if i == 0 || int(i) >= len(r.entries) || !r.entries[i].live {
		return nil, ErrInvalidRef
	}
	return &r.entries[i], nil
}

// Delete clears the reference. The index is not reused.
func (r *Refs[T]) Delete(i uint32) error {
	e, err := r.lookup(i)
	if err != nil {
		return err
	}
	*e = ref[T]{}
	r.live--
	return nil
}

// Ref increments the count. A reference whose count is already zero cannot be
// revived and fails with ErrZeroCount.
func (r *Refs[T]) Ref(i uint32) (uint32, error) {
	e, err := r.lookup(i)
	if err != nil {
		return 0, err
	}
	if e.count == 0 {
		return 0, ErrZeroCount
	}
	e.count++
	return e.count, nil
}

// Unref decrements the count. Reaching zero makes the reference weak; a count
// that is already zero fails with ErrZeroCount.
func (r *Refs[T]) Unref(i uint32) (uint32, error) {
	e, err := r.lookup(i)
	if err != nil {
		return 0, err
	}
	if e.count == 0 {
		return 0, ErrZeroCount
	}
	e.count--
	if e.count == 0 {
		r.makeWeak(e)
	}
	return e.count, nil
}

// Get returns the referenced value. A weak reference whose value was collected
// yields the zero value and false.
func (r *Refs[T]) Get(i uint32) (T, bool, error) {
	e, err := r.lookup(i)
	if err != nil {
		var zero T
		return zero, false, err
	}
	if e.weak != nil {
		v, ok := e.weak()
		return v, ok, nil
	}
	return e.value, true, nil
}

// Count returns the current count of the reference.
func (r *Refs[T]) Count(i uint32) (uint32, error) {
	e, err := r.lookup(i)
	if err != nil {
		return 0, err
	}
	return e.count, nil
}

// Len returns the number of live references.
func (r *Refs[T]) Len() int {
	return r.live
}
