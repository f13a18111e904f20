package handle

import (
	"errors"
)

var (
	ErrScopeMismatch     = errors.New("handle scope is not the innermost open scope")
	ErrNotEscapable      = errors.New("handle scope is not escapable")
	ErrEscapeCalledTwice = errors.New("escape called twice on the same scope")
	ErrNoScope           = errors.New("no handle scope open")
)

// Handle indexes a value in a Table. Handle 0 always holds the zero value.
type Handle = uint32

type scope struct {
	start      int
	escapeSlot int
	escapable  bool
	escaped    bool
}

// Table is an append-only value store partitioned by a LIFO stack of scopes.
// Closing a scope truncates the store back to where the scope began.
//
// Table is not safe for concurrent use.
type Table[T any] struct {
	slots  []T
	scopes []scope
}

// NewTable creates a table with slot 0 reserved.
func NewTable[T any]() *Table[T] {
	return &Table[T]{
		slots:  make([]T, 1, 64),
		scopes: make([]scope, 0, 8),
	}
}

// Store appends v and returns its handle.
func (t *Table[T]) Store(v T) Handle {
	t.slots = append(t.slots, v)
	return Handle(len(t.slots) - 1)
}

// Load returns the value at h. Handles past the live region load the zero
// value and false.
func (t *Table[T]) Load(h Handle) (T, bool) {
	if int(h) >= len(t.slots) {
		var zero T
		return zero, false
	}
	return t.slots[h], true
}

// Set overwrites a live slot. Slot 0 cannot be written.
func (t *Table[T]) Set(h Handle, v T) bool {
	if h == 0 || int(h) >= len(t.slots) {
		return false
	}
	t.slots[h] = v
	return true
}

// Len returns the number of slots, including the reserved slot.
func (t *Table[T]) Len() int {
	return len(t.slots)
}

// Depth returns the number of open scopes.
func (t *Table[T]) Depth() int {
	return len(t.scopes)
}

// Open pushes a scope and returns its id. An escapable scope reserves its
// escape slot first, so the slot sits in the parent's region.
func (t *Table[T]) Open(escapable bool) uint32 {
	s := scope{escapable: escapable}
	if escapable {
		var zero T
		s.escapeSlot = int(t.Store(zero))
	}
	s.start = len(t.slots)
	t.scopes = append(t.scopes, s)
	return uint32(len(t.scopes) - 1)
}

// Close pops the scope id, which must be the innermost one, and discards every
// handle allocated since it was opened.
func (t *Table[T]) Close(id uint32) error {
	if len(t.scopes) == 0 {
		return ErrNoScope
	}
	if int(id) != len(t.scopes)-1 {
		return ErrScopeMismatch
	}
	s := t.scopes[id]
	t.scopes = t.scopes[:id]
	clear(t.slots[s.start:])
	t.slots = t.slots[:s.start]
	return nil
}

// Escape copies the value at h into the escape slot of scope id and returns
// the slot's handle. It succeeds at most once per scope.
func (t *Table[T]) Escape(id uint32, h Handle) (Handle, error) {
	if int(id) >= len(t.scopes) {
		return 0, ErrScopeMismatch
	}
	s := &t.scopes[id]
	if !s.escapable {
		return 0, ErrNotEscapable
	}
	if s.escaped {
		return 0, ErrEscapeCalledTwice
	}
	v, _ := t.Load(h)
	t.slots[s.escapeSlot] = v
	s.escaped = true
	return Handle(s.escapeSlot), nil
}

// Reset closes every scope and releases all handles except slot 0.
func (t *Table[T]) Reset() {
	t.scopes = t.scopes[:0]
	clear(t.slots[1:])
	t.slots = t.slots[:1]
}
