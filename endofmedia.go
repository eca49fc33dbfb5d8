package alohamovie

import (
	"github.com/lanikai/alohamovie/internal/atomic"
)

// End-of-media states.
const (
	eomIdle int32 = iota
	eomRequested
	eomNotified
)

// endOfMedia deduplicates the end-of-media signal. Any number of goroutines
// may observe the end of the active range; the first to move the cell from
// idle to requested hands it to the control goroutine, which moves it on to
// notified and raises the event. Rewinding the timeline puts it back to idle.
type endOfMedia struct {
	state atomic.Int32
}

// request reports whether the caller won the idle to requested transition.
func (e *endOfMedia) request() bool {
	return e.state.CompareAndSwap(eomIdle, eomRequested)
}

// deliver reports whether the caller won the requested to notified
// transition and must raise the event.
func (e *endOfMedia) deliver() bool {
	return e.state.CompareAndSwap(eomRequested, eomNotified)
}

func (e *endOfMedia) rewind() {
	e.state.Store(eomIdle)
}

func (e *endOfMedia) load() int32 {
	return e.state.Load()
}
