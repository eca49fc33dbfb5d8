//////////////////////////////////////////////////////////////////////////////
//
// Spinlock for very short critical sections shared with the render goroutine
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

// Package spinlock implements a non-reentrant, non-fair busy-wait lock.
//
// A Spinlock is meant for critical sections that complete in nanoseconds to
// low microseconds (read a timestamp, swap an image reference, flip a flag)
// on goroutines that run once per display refresh. Parking a goroutine on a
// sync.Mutex costs more than such a section takes to complete.
//
// Attempting to re-acquire a Spinlock from the goroutine that holds it
// deadlocks. Build with the spindebug tag to turn reentrant locking and
// unlocking by a non-holder into panics.
package spinlock

import (
	"github.com/lanikai/alohamovie/internal/atomic"
)

const (
	unlocked uint32 = 0
	locked   uint32 = 1
)

// Spinlock is a mutual exclusion lock that busy-waits. The zero value is an
// unlocked Spinlock using DefaultBackoff.
//
// A Spinlock must not be copied after first use.
type Spinlock struct {
	state   atomic.Uint32
	backoff *Backoff
	owner   atomic.Int64 // goroutine id, spindebug builds only
}

// New returns an unlocked Spinlock using the given backoff policy.
func New(b Backoff) *Spinlock {
	l := &Spinlock{}
	l.SetBackoff(b)
	return l
}

// SetBackoff replaces the backoff policy. It must be called before the lock
// is shared with other goroutines.
func (l *Spinlock) SetBackoff(b Backoff) {
	b = b.normalize()
	l.backoff = &b
}

// Lock blocks until the lock is acquired.
func (l *Spinlock) Lock() {
	if debug {
		l.checkReentry()
	}
	if !l.state.CompareAndSwap(unlocked, locked) {
		l.lockSlow()
	}
	if debug {
		l.owner.Store(goid())
	}
}

func (l *Spinlock) lockSlow() {
	b := l.backoff
	if b == nil {
		b = &DefaultBackoff
	}
	for attempt := 0; ; attempt++ {
		// Test before test-and-set, to keep the cache line shared while the
		// holder is busy.
		if l.state.Load() == unlocked && l.state.CompareAndSwap(unlocked, locked) {
			return
		}
		b.wait(attempt)
	}
}

// TryLock acquires the lock if it is free and reports whether it did. It
// never blocks.
func (l *Spinlock) TryLock() bool {
	if !l.state.CompareAndSwap(unlocked, locked) {
		return false
	}
	if debug {
		l.owner.Store(goid())
	}
	return true
}

// Unlock releases the lock. Unlocking a lock that is not held panics; this is
// a programming error and is never recovered.
func (l *Spinlock) Unlock() {
	if debug {
		l.checkOwner()
		l.owner.Store(0)
	}
	if !l.state.CompareAndSwap(locked, unlocked) {
		panic("spinlock: unlock of unlocked lock")
	}
}

// Locked reports whether the lock is currently held by anyone. The answer may
// be stale by the time the caller looks at it; use it for assertions only.
func (l *Spinlock) Locked() bool {
	return l.state.Load() == locked
}

// Do runs fn with the lock held. The lock is released on every exit path of
// fn, including a panic.
func (l *Spinlock) Do(fn func()) {
	l.Lock()
	defer l.Unlock()
	fn()
}

// Guard acquires the lock and returns a Guard that releases it:
//
//	defer l.Guard().Release()
func (l *Spinlock) Guard() Guard {
	l.Lock()
	return Guard{l}
}

// Guard is a scoped acquisition of a Spinlock.
type Guard struct {
	l *Spinlock
}

// Release unlocks the guarded Spinlock. Releasing a Guard twice panics.
func (g Guard) Release() {
	g.l.Unlock()
}
