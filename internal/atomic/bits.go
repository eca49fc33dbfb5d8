package atomic

import "fmt"

// Bit flags are packed into a single Uint32 or Uint64 cell so that related
// one-bit states can be read together with one load.

type unsigned interface {
	~uint32 | ~uint64
}

func (c *cell[T, A, PA]) mask(bit uint) T {
	if w := c.width(); bit >= w {
		panic(fmt.Sprintf("atomic: bit index %d out of range for %d-bit cell", bit, w))
	}
	return T(1) << bit
}

func testAndSet[T unsigned, A any, PA interface {
	*A
	word[T]
}](c *cell[T, A, PA], bit uint) bool {
	mask := c.mask(bit)
	return c.ptr().Or(mask)&mask != 0
}

func testAndClear[T unsigned, A any, PA interface {
	*A
	word[T]
}](c *cell[T, A, PA], bit uint) bool {
	mask := c.mask(bit)
	return c.ptr().And(^mask)&mask != 0
}

// TestAndSet atomically sets the given bit and reports its previous value.
func (c *Uint32) TestAndSet(bit uint) bool { return testAndSet(&c.cell, bit) }

// TestAndClear atomically clears the given bit and reports its previous
// value.
func (c *Uint32) TestAndClear(bit uint) bool { return testAndClear(&c.cell, bit) }

// Test reports whether the given bit is set.
func (c *Uint32) Test(bit uint) bool { return c.Load()&c.mask(bit) != 0 }

// TestAndSet atomically sets the given bit and reports its previous value.
func (c *Uint64) TestAndSet(bit uint) bool { return testAndSet(&c.cell, bit) }

// TestAndClear atomically clears the given bit and reports its previous
// value.
func (c *Uint64) TestAndClear(bit uint) bool { return testAndClear(&c.cell, bit) }

// Test reports whether the given bit is set.
func (c *Uint64) Test(bit uint) bool { return c.Load()&c.mask(bit) != 0 }
