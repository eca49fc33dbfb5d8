package alohamovie

import (
	"sync"
	"time"
)

type EventType int

const (
	// Playback reached the end of the active range and stopped.
	EventEndOfMedia EventType = iota + 1

	// Playback reached the end of the active range and restarted at its
	// start.
	EventLooped

	EventRateChanged

	// A decode or resource error halted playback. Err is set.
	EventError

	// The movie was reset. Always the last event.
	EventReset
)

func (t EventType) String() string {
	switch t {
	case EventEndOfMedia:
		return "end-of-media"
	case EventLooped:
		return "looped"
	case EventRateChanged:
		return "rate-changed"
	case EventError:
		return "error"
	case EventReset:
		return "reset"
	}
	return "unknown"
}

type Event struct {
	Type  EventType
	Movie *Movie

	// Timeline position when the event was raised.
	Time time.Duration

	// New rate, for EventRateChanged.
	Rate float32

	Err error
}

// eventQueue is an unbounded FIFO between the goroutines raising events and
// the control goroutine delivering them.
type eventQueue struct {
	mu      sync.Mutex
	pending []Event
	signal  chan struct{}
}

func newEventQueue() *eventQueue {
	return &eventQueue{signal: make(chan struct{}, 1)}
}

func (q *eventQueue) push(ev Event) {
	q.mu.Lock()
	q.pending = append(q.pending, ev)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
}

func (q *eventQueue) drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	evs := q.pending
	q.pending = nil
	return evs
}
