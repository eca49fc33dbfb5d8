package spinlock

import (
	"runtime"
	"time"
)

// Backoff controls how a contended Lock waits.
//
// The first Spins attempts retry immediately. The next Yields attempts call
// runtime.Gosched between retries so the holder can be scheduled on the same
// P. After that every retry sleeps for Sleep, which bounds the CPU burned by a
// waiter whose holder has been preempted.
type Backoff struct {
	Spins  int
	Yields int
	Sleep  time.Duration
}

// DefaultBackoff suits locks held for at most a few microseconds.
var DefaultBackoff = Backoff{
	Spins:  64,
	Yields: 256,
	Sleep:  50 * time.Microsecond,
}

func (b Backoff) normalize() Backoff {
	if b.Spins < 0 {
		b.Spins = 0
	}
	if b.Yields < 0 {
		b.Yields = 0
	}
	if b.Sleep <= 0 {
		b.Sleep = DefaultBackoff.Sleep
	}
	return b
}

func (b *Backoff) wait(attempt int) {
	switch {
	case attempt < b.Spins:
		// Busy retry.
	case attempt < b.Spins+b.Yields:
		runtime.Gosched()
	default:
		time.Sleep(b.Sleep)
	}
}
