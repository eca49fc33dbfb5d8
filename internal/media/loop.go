package media

import (
	"sync"
)

// A loopFunc is a long-running function, e.g. a delivery loop. It should
// terminate promptly when the quit channel is closed.
type loopFunc func(quit <-chan struct{})

// A singletonLoop is a wrapper for a long-running function that should only run
// in a single goroutine at any given time. start() launches the function unless
// it is already running; stop() closes its quit channel and waits for it to
// return. A loop that returned on its own (e.g. after a decode error) can be
// started again.
type singletonLoop struct {
	name string

	// The long-running function.
	run loopFunc

	// Closed when stop() is requested, to trigger run loop exit.
	quit chan struct{}

	// Closed when run loop actually terminates.
	terminated chan struct{}

	sync.Mutex
}

func newSingletonLoop(name string, run loopFunc) *singletonLoop {
	return &singletonLoop{
		name: name,
		run:  run,
	}
}

// start launches the loop and reports whether it was not already running.
func (loop *singletonLoop) start() bool {
	loop.Lock()
	defer loop.Unlock()

	if loop.runningLocked() {
		return false
	}

	quit := make(chan struct{})
	terminated := make(chan struct{})
	loop.quit = quit
	loop.terminated = terminated

	go func() {
		log.Debug("Starting %s loop", loop.name)
		loop.run(quit)
		log.Debug("%s loop terminated", loop.name)
		// Close terminated channel to unblock stop().
		close(terminated)
	}()
	return true
}

// stop terminates the loop and waits for it. Stopping a loop that is not
// running is a no-op.
func (loop *singletonLoop) stop() {
	loop.Lock()
	defer loop.Unlock()

	if loop.quit == nil {
		return
	}

	select {
	case <-loop.quit:
	default:
		close(loop.quit)
	}
	<-loop.terminated

	loop.quit = nil
	loop.terminated = nil
}

func (loop *singletonLoop) running() bool {
	loop.Lock()
	defer loop.Unlock()

	return loop.runningLocked()
}

func (loop *singletonLoop) runningLocked() bool {
	if loop.terminated == nil {
		return false
	}
	select {
	case <-loop.terminated:
		return false
	default:
		return true
	}
}
