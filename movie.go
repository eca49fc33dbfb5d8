// Package alohamovie synchronizes movie playback between a control goroutine
// and a render goroutine.
//
// A Movie is driven (played, stopped, rate-changed, looped, restricted to a
// selection) from the control side while a renderer, clocked by the display,
// samples its current frame and presentation time on every tick. The render
// side never waits on decoding; the two sides share state through a pair of
// spinlocks that are only held for a handful of field reads and writes.
//
// Example usage:
//
//	m, err := alohamovie.Open("mp4:intro.mp4", alohamovie.Config{
//		Observer: func(ev alohamovie.Event) { log.Printf("%v at %v", ev.Type, ev.Time) },
//	})
//	if err != nil {
//		return err
//	}
//	defer m.Reset()
//
//	m.SetLooping(true)
//	m.Play()
//
//	// On the render goroutine, once per display refresh:
//	frame, err := m.Render(sink)
package alohamovie

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/cpu"

	"github.com/lanikai/alohamovie/internal/atomic"
	"github.com/lanikai/alohamovie/internal/logging"
	"github.com/lanikai/alohamovie/internal/media"
	"github.com/lanikai/alohamovie/internal/spinlock"
	"github.com/lanikai/alohamovie/internal/texture"
)

// Bits in Movie.flags.
const (
	flagLooping uint = iota
	flagReset
	flagHalted // stopped by a failure; the engine needs a seek to resume
)

// Movie is an open media source together with its playback state.
//
// Lock order is timeLock before renderLock. Reset is the only place that
// holds both.
type Movie struct {
	config Config
	log    *logging.Logger
	source string
	handle media.Handle

	// Fixed at open.
	duration      time.Duration
	videoDuration time.Duration
	size          image.Point

	flags    atomic.Uint32
	rate     atomic.Float32
	lastRate atomic.Float32 // last non-zero rate
	volume   atomic.Float32
	eom      endOfMedia

	// Failure waiting for the control goroutine, and the last one reported.
	pendingFailure atomic.Pointer[failure]
	lastFailure    atomic.Pointer[failure]

	stats counters

	// Held from a seekTarget update until the engine has been told, so the
	// engine sees seeks in the same order.
	seekMu sync.Mutex

	_ cpu.CacheLinePad

	// Guarded by timeLock.
	timeLock     spinlock.Spinlock
	currentTime  time.Duration
	currentImage *media.Image
	imageSeq     uint64
	selection    TimeRange
	hasSelection bool
	seeking      bool // engine seek in flight, drop stale frames
	seekTarget   time.Duration
	seekUnacked  bool // engine has not yet reported moving to seekTarget

	_ cpu.CacheLinePad

	// Guarded by renderLock.
	renderLock  spinlock.Spinlock
	renderRect  image.Rectangle
	texture     texture.Handle
	textureSink texture.Sink
	textureSize image.Point
	uploadedSeq uint64

	_ cpu.CacheLinePad

	events      *eventQueue
	broadcaster *Broadcaster
	endSignal   chan struct{}
	failSignal  chan struct{}
	quit        chan struct{}
	done        chan struct{}
}

type failure struct {
	err error
}

// Open a movie from a source spec such as "mp4:intro.mp4" or
// "pattern:640x480@30/10s". See media.OpenSource.
func Open(source string, config Config) (*Movie, error) {
	return OpenWithContext(context.Background(), source, config)
}

// OpenWithContext is like Open, but gives up when ctx is done. A source that
// finishes opening after that is closed again.
func OpenWithContext(ctx context.Context, source string, config Config) (*Movie, error) {
	type result struct {
		h   media.Handle
		err error
	}
	ch := make(chan result, 1)
	go func() {
		h, err := media.OpenSource(source)
		ch <- result{h, err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			return nil, &MediaOpenError{Source: source, Err: r.err}
		}
		return newMovie(source, r.h, config)
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				r.h.Close()
			}
		}()
		return nil, &MediaOpenError{Source: source, Err: ctx.Err()}
	}
}

// OpenHandle binds a movie to an already open decode handle. The movie takes
// ownership of h and closes it on Reset.
func OpenHandle(h media.Handle, config Config) (*Movie, error) {
	return newMovie("", h, config)
}

func newMovie(source string, h media.Handle, config Config) (*Movie, error) {
	m := &Movie{
		config:        config,
		log:           config.Logger,
		source:        source,
		handle:        h,
		duration:      h.Duration(),
		videoDuration: h.VideoDuration(),
		size:          h.Size(),
		events:        newEventQueue(),
		broadcaster:   NewBroadcaster(),
		endSignal:     make(chan struct{}, 1),
		failSignal:    make(chan struct{}, 1),
		quit:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	if m.log == nil {
		m.log = log
	}
	m.log = m.log.With("src", source)
	if config.Backoff != (spinlock.Backoff{}) {
		m.timeLock.SetBackoff(config.Backoff)
		m.renderLock.SetBackoff(config.Backoff)
	}
	m.volume.Store(1)
	m.renderRect = image.Rectangle{Max: m.size}

	h.SetReadAhead(config.ReadAhead)
	if err := h.Start(receiver{m}); err != nil {
		h.Close()
		return nil, &MediaOpenError{Source: source, Err: err}
	}
	m.log.Info("Opened %dx%d, %v", m.size.X, m.size.Y, m.duration)

	go m.control()
	return m, nil
}

func (m *Movie) isReset() bool {
	return m.flags.Test(flagReset)
}

// Source returns the source spec the movie was opened from.
func (m *Movie) Source() string               { return m.source }
func (m *Movie) Owner() interface{}           { return m.config.Owner }
func (m *Movie) Duration() time.Duration      { return m.duration }
func (m *Movie) VideoDuration() time.Duration { return m.videoDuration }

// Play resumes playback at the last non-zero rate, or 1 if none was set.
// A movie that stopped at the end of its active range starts over; one
// halted by a failure retries from its current frame.
func (m *Movie) Play() error {
	rate := m.lastRate.Load()
	if rate == 0 {
		rate = 1
	}
	return m.SetRate(rate)
}

// Stop sets the rate to zero. The last non-zero rate is kept for Play.
func (m *Movie) Stop() {
	if m.isReset() {
		return
	}
	m.handle.SetRate(0)
	if old := m.rate.Swap(0); old != 0 {
		m.events.push(Event{Type: EventRateChanged, Movie: m, Time: m.CurrentTime()})
	}
}

// SetRate sets the playback rate. 1 is normal speed, negative rates play in
// reverse and need engine support. A rate of 0 is the same as Stop.
func (m *Movie) SetRate(rate float32) error {
	if m.isReset() {
		return ErrReset
	}
	if rate == 0 {
		m.Stop()
		return nil
	}
	if rate < 0 && !m.handle.CanReverse() {
		return errors.Wrapf(ErrNotSupported, "rate %v", rate)
	}

	m.replayIfEnded(rate)
	if m.flags.TestAndClear(flagHalted) {
		// Decode again from the current frame.
		m.seekTo(m.CurrentTime())
	}
	if err := m.handle.SetRate(rate); err != nil {
		return errors.Wrapf(err, "rate %v", rate)
	}
	m.lastRate.Store(rate)
	if old := m.rate.Swap(rate); old != rate {
		m.log.Debug("Rate %v -> %v", old, rate)
		m.events.push(Event{Type: EventRateChanged, Movie: m, Time: m.CurrentTime(), Rate: rate})
	}
	return nil
}

// replayIfEnded rewinds a movie sitting at the end of its active range in
// the direction of rate, so that playing again starts over.
func (m *Movie) replayIfEnded(rate float32) {
	if m.eom.load() != eomNotified {
		return
	}

	m.timeLock.Lock()
	rg := m.activeRangeLocked()
	t := m.currentTime
	m.timeLock.Unlock()

	switch {
	case rate > 0 && t >= rg.End:
		m.seekTo(rg.Start)
	case rate < 0 && t <= rg.Start:
		m.seekTo(rg.End)
	default:
		// Leaving the boundary in the other direction.
		m.eom.rewind()
	}
}

func (m *Movie) Rate() float32 {
	return m.rate.Load()
}

func (m *Movie) IsPlaying() bool {
	return m.rate.Load() != 0
}

// SetLooping makes the end of the active range restart playback at its
// start, instead of stopping.
func (m *Movie) SetLooping(looping bool) {
	if looping {
		m.flags.TestAndSet(flagLooping)
	} else {
		m.flags.TestAndClear(flagLooping)
	}
}

func (m *Movie) Looping() bool {
	return m.flags.Test(flagLooping)
}

// SetPlaybackSelection restricts playback to r, clamped to the media
// duration. Both bounds are replaced together; concurrent readers see either
// the old selection or the new one. If the current time lies outside r,
// playback moves to its start.
func (m *Movie) SetPlaybackSelection(r TimeRange) error {
	if m.isReset() {
		return ErrReset
	}
	if r.Start > r.End {
		return &InvalidStateError{
			Op:     "SetPlaybackSelection",
			Reason: "selection " + r.String() + " ends before it starts",
		}
	}
	r = TimeRange{m.mediaRange().clamp(r.Start), m.mediaRange().clamp(r.End)}

	m.seekMu.Lock()
	defer m.seekMu.Unlock()

	m.timeLock.Lock()
	m.selection = r
	m.hasSelection = true
	moved := !r.Contains(m.currentTime)
	if moved {
		m.currentTime = r.Start
		m.beginSeekLocked(r.Start)
	}
	m.eom.rewind()
	m.timeLock.Unlock()

	m.log.Debug("Selection %v", r)
	if moved {
		m.seekEngine(r.Start)
	}
	return nil
}

// ClearPlaybackSelection makes the whole media playable again.
func (m *Movie) ClearPlaybackSelection() {
	m.timeLock.Lock()
	m.hasSelection = false
	m.selection = TimeRange{}
	m.eom.rewind()
	m.timeLock.Unlock()
}

// PlaybackSelection returns the active selection, if any.
func (m *Movie) PlaybackSelection() (TimeRange, bool) {
	defer m.timeLock.Guard().Release()
	return m.selection, m.hasSelection
}

func (m *Movie) IsPlayingSelection() bool {
	m.timeLock.Lock()
	defer m.timeLock.Unlock()
	return m.hasSelection
}

func (m *Movie) mediaRange() TimeRange {
	return TimeRange{0, m.duration}
}

// Caller holds timeLock.
func (m *Movie) activeRangeLocked() TimeRange {
	if m.hasSelection {
		return m.selection
	}
	return m.mediaRange()
}

// Seek moves playback to t, clamped to the active range.
func (m *Movie) Seek(t time.Duration) error {
	if m.isReset() {
		return ErrReset
	}
	m.seekTo(t)
	return nil
}

func (m *Movie) seekTo(t time.Duration) {
	m.seekMu.Lock()
	defer m.seekMu.Unlock()

	m.timeLock.Lock()
	t = m.activeRangeLocked().clamp(t)
	m.currentTime = t
	m.beginSeekLocked(t)
	m.eom.rewind()
	m.timeLock.Unlock()

	m.seekEngine(t)
}

// beginSeekLocked drops delivered frames until the engine reports that it
// moved to t, and then until one at or beyond t arrives. Caller holds
// timeLock.
func (m *Movie) beginSeekLocked(t time.Duration) {
	m.seeking, m.seekTarget, m.seekUnacked = true, t, true
}

// Caller holds seekMu.
func (m *Movie) seekEngine(t time.Duration) {
	err := m.handle.Seek(t)
	if err == nil {
		return
	}
	if !m.isReset() {
		m.log.Warn("Seek to %v failed: %v", t, err)
	}

	// No report is coming; fall back to the timestamp check.
	m.timeLock.Lock()
	if m.seekTarget == t {
		m.seekUnacked = false
	}
	m.timeLock.Unlock()
}

// GotoEnd moves playback to the end of the active range (its start, when
// playing in reverse) and raises end-of-media. Calling it again while still
// at the end does nothing. A looping movie restarts at once.
func (m *Movie) GotoEnd() {
	if m.isReset() {
		return
	}
	reverse := m.rate.Load() < 0

	m.seekMu.Lock()
	m.timeLock.Lock()
	rg := m.activeRangeLocked()
	target := rg.End
	if reverse {
		target = rg.Start
	}
	won := m.eom.request()
	if won {
		m.currentTime = target
		m.beginSeekLocked(target)
	}
	m.timeLock.Unlock()

	if won && !m.Looping() {
		m.seekEngine(target)
	}
	m.seekMu.Unlock()

	if won {
		m.deliverEnd()
	}
}

// CurrentTime returns the presentation time of the current frame.
func (m *Movie) CurrentTime() time.Duration {
	m.timeLock.Lock()
	defer m.timeLock.Unlock()
	return m.currentTimeLocked()
}

// currentTimeLocked is CurrentTime for callers that already hold timeLock.
// The lock is not reentrant.
func (m *Movie) currentTimeLocked() time.Duration {
	return m.currentTime
}

// CurrentSize returns the size of the frames being rendered.
func (m *Movie) CurrentSize() image.Point {
	m.renderLock.Lock()
	defer m.renderLock.Unlock()
	if m.texture != 0 {
		return m.textureSize
	}
	return m.size
}

func (m *Movie) RenderRect() image.Rectangle {
	defer m.renderLock.Guard().Release()
	return m.renderRect
}

// SetRenderRect sets where in the scene the movie is drawn.
func (m *Movie) SetRenderRect(r image.Rectangle) {
	m.renderLock.Lock()
	m.renderRect = r
	m.renderLock.Unlock()
}

func (m *Movie) Volume() float32 {
	return m.volume.Load()
}

// SetVolume sets the audio gain, clamped to [0, 1].
func (m *Movie) SetVolume(v float32) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	m.volume.Store(v)
	if !m.isReset() {
		m.handle.SetVolume(v)
	}
}

// SetReadAhead asks the engine to deliver frames d ahead of their
// presentation time, typically the display clock's latency.
func (m *Movie) SetReadAhead(d time.Duration) {
	if !m.isReset() {
		m.handle.SetReadAhead(d)
	}
}

// Err returns the last error that halted playback.
func (m *Movie) Err() error {
	if f := m.lastFailure.Load(); f != nil {
		return f.err
	}
	return nil
}

func (m *Movie) Stats() Stats {
	return m.stats.snapshot()
}

// Subscribe returns a channel receiving the movie's events, buffering up to
// n of them. The channel is closed after EventReset.
func (m *Movie) Subscribe(n int) <-chan Event {
	return m.broadcaster.Subscribe(n)
}

func (m *Movie) Unsubscribe(ch <-chan Event) error {
	return m.broadcaster.Unsubscribe(ch)
}

// Reset stops playback and frees the decode handle, the current frame and
// the texture. It waits for an in-flight Render to leave its critical
// sections before freeing anything. The movie cannot be used afterwards.
//
// Reset must not be called from an Observer.
func (m *Movie) Reset() {
	if m.flags.TestAndSet(flagReset) {
		return
	}

	close(m.quit)
	<-m.done

	// The engine may be inside Deliver, which takes timeLock.
	if err := m.handle.Close(); err != nil {
		m.log.Warn("Close: %v", err)
	}

	m.timeLock.Lock()
	m.renderLock.Lock()
	t := m.currentTime
	m.currentImage.Release()
	m.currentImage = nil
	if m.texture != 0 {
		m.textureSink.Release(m.texture)
		m.texture = 0
		m.textureSink = nil
	}
	m.renderLock.Unlock()
	m.timeLock.Unlock()

	m.rate.Store(0)
	m.log.Info("Reset")

	ev := Event{Type: EventReset, Movie: m, Time: t}
	if m.config.Observer != nil {
		m.config.Observer(ev)
	}
	m.broadcaster.Write(ev)
	m.broadcaster.Close()
}

func notify(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

// control runs on its own goroutine for the lifetime of the movie. It raises
// end-of-media, halts playback after failures, and delivers events.
func (m *Movie) control() {
	defer close(m.done)

	for {
		select {
		case <-m.quit:
			m.dispatch()
			return
		case <-m.endSignal:
			m.deliverEnd()
		case <-m.failSignal:
			m.handleFailure()
		case <-m.events.signal:
		}
		m.dispatch()
	}
}

func (m *Movie) dispatch() {
	for _, ev := range m.events.drain() {
		if m.config.Observer != nil {
			m.config.Observer(ev)
		}
		m.broadcaster.Write(ev)
	}
}

// deliverEnd completes a requested end-of-media, at most once per request.
func (m *Movie) deliverEnd() {
	if !m.eom.deliver() {
		return
	}
	t := m.CurrentTime()

	if m.Looping() {
		rate := m.rate.Load()
		m.timeLock.Lock()
		rg := m.activeRangeLocked()
		m.timeLock.Unlock()
		if rate < 0 {
			m.seekTo(rg.End)
		} else {
			m.seekTo(rg.Start)
		}
		m.stats.loops.FetchAddRelaxed(1)
		m.log.Debug("Looped at %v", t)
		m.events.push(Event{Type: EventLooped, Movie: m, Time: t})
		return
	}

	m.Stop()
	m.stats.ends.FetchAddRelaxed(1)
	m.log.Debug("End of media at %v", t)
	m.events.push(Event{Type: EventEndOfMedia, Movie: m, Time: t})
}

// fail hands err to the control goroutine, which halts playback.
func (m *Movie) fail(err error) {
	m.pendingFailure.Store(&failure{err})
	notify(m.failSignal)
}

func (m *Movie) handleFailure() {
	f := m.pendingFailure.Swap(nil)
	if f == nil {
		return
	}
	m.lastFailure.Store(f)
	m.flags.TestAndSet(flagHalted)
	m.Stop()
	m.stats.errors.FetchAddRelaxed(1)
	m.log.Error("Playback halted: %v", f.err)
	m.events.push(Event{Type: EventError, Movie: m, Time: m.CurrentTime(), Err: f.err})
}

// receiver accepts frames from the decode engine.
type receiver struct {
	m *Movie
}

// Deliver installs img as the current frame. Frames outside the active range
// are dropped; one past the end in the playing direction pins the time to
// the boundary. While a seek is in flight, every frame before the engine's
// Seeked report predates it, and so do frames short of the seek target.
func (r receiver) Deliver(img *media.Image, pts time.Duration) {
	m := r.m

	m.timeLock.Lock()
	if m.isReset() {
		m.timeLock.Unlock()
		m.drop(img)
		return
	}
	rg := m.activeRangeLocked()
	rate := m.rate.Load()
	if m.seeking {
		stale := m.seekUnacked ||
			(rate >= 0 && pts < m.seekTarget) || (rate < 0 && pts > m.seekTarget)
		if stale || !rg.Contains(pts) {
			m.timeLock.Unlock()
			m.drop(img)
			return
		}
		m.seeking = false
	}
	if !rg.Contains(pts) {
		if rate > 0 && pts > rg.End {
			m.currentTime = rg.End
		} else if rate < 0 && pts < rg.Start {
			m.currentTime = rg.Start
		}
		m.timeLock.Unlock()
		m.drop(img)
		return
	}

	old := m.currentImage
	m.currentImage = img
	m.currentTime = pts
	m.imageSeq++
	m.timeLock.Unlock()

	old.Release()
	m.stats.delivered.FetchAddRelaxed(1)
}

func (m *Movie) drop(img *media.Image) {
	img.Release()
	m.stats.dropped.FetchAddRelaxed(1)
}

// Seeked reports that the engine moved to t. Only a report for the latest
// seek target ends the wait.
func (r receiver) Seeked(t time.Duration) {
	m := r.m

	m.timeLock.Lock()
	if m.seeking && m.seekTarget == t {
		m.seekUnacked = false
	}
	m.timeLock.Unlock()
}

// Ended pins the time to the boundary the engine ran into and requests
// end-of-media. An end reported before the engine acknowledged a seek
// predates it and is ignored; after that it only counts if the seek target
// was the boundary itself.
func (r receiver) Ended(pts time.Duration) {
	m := r.m

	m.timeLock.Lock()
	if m.isReset() {
		m.timeLock.Unlock()
		return
	}
	boundary := m.activeRangeLocked().clamp(pts)
	won := false
	if !m.seeking {
		m.currentTime = boundary
		won = m.eom.request()
	} else if !m.seekUnacked {
		m.seeking = false
		if m.currentTime == boundary {
			won = m.eom.request()
		}
	}
	m.timeLock.Unlock()

	if won {
		notify(m.endSignal)
	}
}

func (r receiver) Fail(err error) {
	if errors.Cause(err) == media.ErrOutOfBuffers {
		err = &ResourceExhaustedError{Resource: "decode buffers", Err: err}
	}
	r.m.fail(err)
}
