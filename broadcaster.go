//////////////////////////////////////////////////////////////////////////////
//
// Broadcast movie events from one writer to multiple subscribers.
//
// Each subscriber has its own channel (i.e. queue). When the movie raises an
// event, it is added to each subscriber's channel.
//
// Each subscriber may specify the maximum number of events it wishes to
// buffer. Once this capacity is reached, the oldest event is dropped for each
// newly written one.
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package alohamovie

import (
	"sync"

	"github.com/pkg/errors"
)

var errNotSubscribed = errors.New("Not subscribed")

type Subscriber interface {
	Subscribe(n int) <-chan Event
	Unsubscribe(s <-chan Event) error
}

// Broadcaster and Movie implement the Subscriber interface.
var (
	_ Subscriber = (*Broadcaster)(nil)
	_ Subscriber = (*Movie)(nil)
)

// Broadcaster fans events out to subscriber channels.
type Broadcaster struct {
	mutex       sync.Mutex
	subscribers []chan Event
	closed      bool
}

// NewBroadcaster instantiates a new one-to-many event broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Close the broadcaster. All subscriber channels are closed after the events
// already queued in them, and later subscribers get a closed channel.
func (b *Broadcaster) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	for _, subscriber := range b.subscribers {
		close(subscriber)
	}

	// Allow subscriber channels to be garbage collected
	b.subscribers = nil
	return nil
}

// Subscribe to broadcasts, buffering up to n events for the subscriber.
func (b *Broadcaster) Subscribe(n int) <-chan Event {
	if n < 1 {
		panic("malformed buffer size")
	}

	// Create a new _buffered_ channel
	channel := make(chan Event, n)
	b.mutex.Lock()
	defer b.mutex.Unlock()
	if b.closed {
		close(channel)
	} else {
		b.subscribers = append(b.subscribers, channel)
	}
	return channel
}

// Unsubscribe from broadcaster by providing the read-only channel returned
// by Subscribe().
func (b *Broadcaster) Unsubscribe(s <-chan Event) error {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for i, subscriber := range b.subscribers {
		if s == subscriber {
			// Remove subscriber from slice (order not preserved)
			subs := b.subscribers
			close(subs[i])
			subs[len(subs)-1], subs[i] = subs[i], subs[len(subs)-1]
			b.subscribers = subs[:len(subs)-1]
			return nil
		}
	}

	return errNotSubscribed
}

// Write an event to all subscribers.
func (b *Broadcaster) Write(ev Event) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	for _, subscriber := range b.subscribers {
		select {
		case subscriber <- ev:
		default:
			// Subscriber backlogged. Drop oldest event, add newest.
			select {
			case <-subscriber:
			default:
			}
			subscriber <- ev
		}
	}
}
