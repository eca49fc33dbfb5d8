package alohamovie

import (
	"fmt"
	"time"
)

// TimeRange is a closed interval [Start, End] of the media timeline.
type TimeRange struct {
	Start time.Duration
	End   time.Duration
}

func (r TimeRange) Contains(t time.Duration) bool {
	return r.Start <= t && t <= r.End
}

func (r TimeRange) Duration() time.Duration {
	return r.End - r.Start
}

// clamp limits t to r.
func (r TimeRange) clamp(t time.Duration) time.Duration {
	if t < r.Start {
		return r.Start
	}
	if t > r.End {
		return r.End
	}
	return t
}

func (r TimeRange) String() string {
	return fmt.Sprintf("[%v, %v]", r.Start, r.End)
}
