package alohamovie

import (
	"github.com/lanikai/alohamovie/internal/atomic"
)

// Stats is a snapshot of a movie's counters. The counters are updated without
// ordering guarantees, so a snapshot may be slightly inconsistent.
type Stats struct {
	FramesDelivered uint64 // frames installed as the current image
	FramesDropped   uint64 // frames outside the active range, or after reset
	FramesRendered  uint64 // render ticks
	Uploads         uint64 // texture uploads
	EndOfMedia      uint64
	Loops           uint64
	Errors          uint64
}

type counters struct {
	delivered atomic.Uint64
	dropped   atomic.Uint64
	rendered  atomic.Uint64
	uploads   atomic.Uint64
	ends      atomic.Uint64
	loops     atomic.Uint64
	errors    atomic.Uint64
}

func (c *counters) snapshot() Stats {
	return Stats{
		FramesDelivered: c.delivered.LoadRelaxed(),
		FramesDropped:   c.dropped.LoadRelaxed(),
		FramesRendered:  c.rendered.LoadRelaxed(),
		Uploads:         c.uploads.LoadRelaxed(),
		EndOfMedia:      c.ends.LoadRelaxed(),
		Loops:           c.loops.LoadRelaxed(),
		Errors:          c.errors.LoadRelaxed(),
	}
}
