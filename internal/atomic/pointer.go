package atomic

import "sync/atomic"

// Pointer is an atomic pointer to a T. The zero value is nil.
//
// Pointer cells are used to hand an object from one goroutine to another, so
// they only offer barrier operations.
type Pointer[T any] struct {
	_ noCopy
	p atomic.Pointer[T]
}

// Load atomically loads the pointer.
func (c *Pointer[T]) Load() *T {
	return c.p.Load()
}

// Store atomically stores val.
func (c *Pointer[T]) Store(val *T) {
	c.p.Store(val)
}

// Swap atomically stores val and returns the previous pointer.
func (c *Pointer[T]) Swap(val *T) *T {
	return c.p.Swap(val)
}

// CompareAndSwap stores new iff the current pointer is old.
func (c *Pointer[T]) CompareAndSwap(old, new *T) bool {
	return c.p.CompareAndSwap(old, new)
}
