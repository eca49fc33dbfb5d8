package atomic

import "math"

// Float32 is an atomic float32 stored as its IEEE-754 bits.
type Float32 struct {
	bits Uint32
}

// NewFloat32 returns a Float32 holding val.
func NewFloat32(val float32) *Float32 {
	c := &Float32{}
	c.Store(val)
	return c
}

// Load atomically loads the value.
func (c *Float32) Load() float32 {
	return math.Float32frombits(c.bits.Load())
}

// Store atomically stores val.
func (c *Float32) Store(val float32) {
	c.bits.Store(math.Float32bits(val))
}

// Swap atomically stores val and returns the previous value.
func (c *Float32) Swap(val float32) float32 {
	return math.Float32frombits(c.bits.Swap(math.Float32bits(val)))
}

// CompareAndSwap compares bit patterns, so -0 and +0 are different values and
// a NaN only matches the identical NaN.
func (c *Float32) CompareAndSwap(old, new float32) bool {
	return c.bits.CompareAndSwap(math.Float32bits(old), math.Float32bits(new))
}
