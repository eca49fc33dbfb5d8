package atomic

import (
	"sync/atomic"
	"unsafe"
)

type integer interface {
	~int32 | ~int64 | ~uint32 | ~uint64 | ~uintptr
}

// word is the method set shared by the sync/atomic integer types.
type word[T integer] interface {
	Load() T
	Store(val T)
	Swap(val T) T
	CompareAndSwap(old, new T) bool
	Add(delta T) T
	And(mask T) T
	Or(mask T) T
}

// cell holds a sync/atomic integer A of type T. PA is *A.
type cell[T integer, A any, PA interface {
	*A
	word[T]
}] struct {
	_ noCopy
	v A
}

func (c *cell[T, A, PA]) ptr() PA { return PA(&c.v) }

// Load atomically loads the value.
func (c *cell[T, A, PA]) Load() T {
	return c.ptr().Load()
}

// Store atomically stores val.
func (c *cell[T, A, PA]) Store(val T) {
	c.ptr().Store(val)
}

// Swap atomically stores val and returns the previous value.
func (c *cell[T, A, PA]) Swap(val T) T {
	return c.ptr().Swap(val)
}

// CompareAndSwap stores new iff the current value equals old, and reports
// whether it did. On failure the cell is left unchanged.
func (c *cell[T, A, PA]) CompareAndSwap(old, new T) bool {
	return c.ptr().CompareAndSwap(old, new)
}

// FetchAdd atomically adds delta and returns the new value.
func (c *cell[T, A, PA]) FetchAdd(delta T) T {
	return c.ptr().Add(delta)
}

// FetchOr atomically ors mask into the value and returns the new value.
func (c *cell[T, A, PA]) FetchOr(mask T) T {
	return c.ptr().Or(mask) | mask
}

// FetchAnd atomically ands mask into the value and returns the new value.
func (c *cell[T, A, PA]) FetchAnd(mask T) T {
	return c.ptr().And(mask) & mask
}

// LoadRelaxed loads the value for statistics purposes.
func (c *cell[T, A, PA]) LoadRelaxed() T {
	return c.ptr().Load()
}

// StoreRelaxed stores val for statistics purposes.
func (c *cell[T, A, PA]) StoreRelaxed(val T) {
	c.ptr().Store(val)
}

// FetchAddRelaxed adds delta to a counter and returns the new value.
func (c *cell[T, A, PA]) FetchAddRelaxed(delta T) T {
	return c.ptr().Add(delta)
}

// CompareAndSwapRelaxed is CompareAndSwap for cells that order nothing.
func (c *cell[T, A, PA]) CompareAndSwapRelaxed(old, new T) bool {
	return c.ptr().CompareAndSwap(old, new)
}

func (c *cell[T, A, PA]) width() uint {
	var zero T
	return uint(unsafe.Sizeof(zero)) * 8
}

// Int32 is an atomic int32. The zero value is 0.
type Int32 struct {
	cell[int32, atomic.Int32, *atomic.Int32]
}

// Int64 is an atomic int64. The zero value is 0.
type Int64 struct {
	cell[int64, atomic.Int64, *atomic.Int64]
}

// Uint32 is an atomic uint32. The zero value is 0.
type Uint32 struct {
	cell[uint32, atomic.Uint32, *atomic.Uint32]
}

// Uint64 is an atomic uint64. The zero value is 0.
type Uint64 struct {
	cell[uint64, atomic.Uint64, *atomic.Uint64]
}

// Uintptr is an atomic uintptr. The zero value is 0.
type Uintptr struct {
	cell[uintptr, atomic.Uintptr, *atomic.Uintptr]
}

func NewInt32(val int32) *Int32 {
	c := &Int32{}
	c.Store(val)
	return c
}

func NewInt64(val int64) *Int64 {
	c := &Int64{}
	c.Store(val)
	return c
}

func NewUint32(val uint32) *Uint32 {
	c := &Uint32{}
	c.Store(val)
	return c
}

func NewUint64(val uint64) *Uint64 {
	c := &Uint64{}
	c.Store(val)
	return c
}

func NewUintptr(val uintptr) *Uintptr {
	c := &Uintptr{}
	c.Store(val)
	return c
}
