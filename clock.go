package alohamovie

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/alohamovie/internal/atomic"
	"github.com/lanikai/alohamovie/internal/texture"
)

// A DisplayClock calls tick at the display's refresh cadence, always from
// the same goroutine.
type DisplayClock interface {
	Start(tick func(now time.Time)) error
	Stop()
}

// TickerClock is a DisplayClock driven by a time.Ticker.
type TickerClock struct {
	interval time.Duration

	mu   sync.Mutex
	quit chan struct{}
	done chan struct{}
}

// NewTickerClock returns a clock ticking hz times per second.
func NewTickerClock(hz float64) *TickerClock {
	if hz <= 0 {
		hz = 60
	}
	return &TickerClock{interval: time.Duration(float64(time.Second) / hz)}
}

func (c *TickerClock) Interval() time.Duration {
	return c.interval
}

func (c *TickerClock) Start(tick func(now time.Time)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quit != nil {
		return errors.New("clock already running")
	}
	quit := make(chan struct{})
	done := make(chan struct{})
	c.quit, c.done = quit, done

	go func() {
		defer close(done)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-quit:
				return
			case now := <-ticker.C:
				tick(now)
			}
		}
	}()
	return nil
}

// Stop halts the clock and waits for a tick in progress to return.
func (c *TickerClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.quit == nil {
		return
	}
	close(c.quit)
	<-c.done
	c.quit, c.done = nil, nil
}

// Renderer renders a set of movies into one texture sink on every tick of a
// display clock.
type Renderer struct {
	sink texture.Sink

	mu     sync.Mutex
	movies []*Movie
	frames map[*Movie]Frame

	ticks  atomic.Uint64
	errors atomic.Uint64
}

func NewRenderer(sink texture.Sink) *Renderer {
	return &Renderer{
		sink:   sink,
		frames: make(map[*Movie]Frame),
	}
}

func (r *Renderer) Attach(m *Movie) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.movies = append(r.movies, m)
}

func (r *Renderer) Detach(m *Movie) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, x := range r.movies {
		if x == m {
			r.movies = append(r.movies[:i], r.movies[i+1:]...)
			break
		}
	}
	delete(r.frames, m)
}

// Tick renders every attached movie. Errors are logged and counted; a movie
// that has been reset is detached.
func (r *Renderer) Tick(now time.Time) {
	r.ticks.FetchAddRelaxed(1)

	r.mu.Lock()
	movies := append([]*Movie(nil), r.movies...)
	r.mu.Unlock()

	for _, m := range movies {
		frame, err := m.Render(r.sink)
		if err == ErrReset {
			r.Detach(m)
			continue
		}
		if err != nil {
			r.errors.FetchAddRelaxed(1)
			log.Debug("Render %q: %v", m.Source(), err)
		}
		r.mu.Lock()
		r.frames[m] = frame
		r.mu.Unlock()
	}
}

// Frame returns the frame m rendered on the last tick. There is none once m
// has been reset, since its texture is gone.
func (r *Renderer) Frame(m *Movie) (Frame, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.isReset() {
		delete(r.frames, m)
		return Frame{}, false
	}
	f, ok := r.frames[m]
	return f, ok
}

func (r *Renderer) Ticks() uint64  { return r.ticks.LoadRelaxed() }
func (r *Renderer) Errors() uint64 { return r.errors.LoadRelaxed() }

// Run drives the renderer from clock until Stop is called on the clock.
func (r *Renderer) Run(clock DisplayClock) error {
	return clock.Start(r.Tick)
}
