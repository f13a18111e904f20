// Package handle implements the handle table, the handle scope stack and the
// reference table behind napi_value and napi_ref.
//
// # Handles and Scopes
//
// A Table stores values in slots addressed by small integers. Slots are
// appended while a scope is open and truncated when it closes:
//
//	t := handle.NewTable[value.Value]()
//	root := t.Open(false)
//	h := t.Store(v)       // valid until root closes
//	_ = t.Close(root)     // h is gone
//
// Slot 0 is reserved and always holds the zero value, so a NULL napi_value
// never aliases a live handle.
//
// Scopes close in strict LIFO order; Close on any other scope fails with
// ErrScopeMismatch. An escapable scope reserves one slot in its parent's
// region when it opens. Escape copies a value there exactly once:
//
//	outer := t.Open(false)
//	inner := t.Open(true)
//	esc, _ := t.Escape(inner, t.Store(v))
//	_ = t.Close(inner)    // esc still holds v
//
// # References
//
// Refs holds values across scopes with an explicit count. Indices start at 1
// and are never reused. When the count is zero the value is held through a
// WeakFunc, so objects can be collected while the reference still exists.
package handle
