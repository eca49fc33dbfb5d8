package alohamovie

import (
	"context"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanikai/alohamovie/internal/atomic"
	"github.com/lanikai/alohamovie/internal/media"
	"github.com/lanikai/alohamovie/internal/texture"
)

// fakeHandle is a decode engine driven by the test.
type fakeHandle struct {
	duration time.Duration
	size     image.Point
	reverse  bool

	// Leave Seeked reports to the test.
	holdSeeks bool

	mu        sync.Mutex
	recv      media.Receiver
	rates     []float32
	seeks     []time.Duration
	volume    float32
	readAhead time.Duration
	closed    int

	images   atomic.Int32
	released atomic.Int32
}

func newFakeHandle(duration time.Duration) *fakeHandle {
	return &fakeHandle{duration: duration, size: image.Pt(2, 2), reverse: true}
}

func (h *fakeHandle) Duration() time.Duration      { return h.duration }
func (h *fakeHandle) VideoDuration() time.Duration { return h.duration }
func (h *fakeHandle) Size() image.Point            { return h.size }
func (h *fakeHandle) CanReverse() bool             { return h.reverse }

func (h *fakeHandle) Start(r media.Receiver) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.recv = r
	return nil
}

func (h *fakeHandle) SetRate(rate float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rates = append(h.rates, rate)
	return nil
}

func (h *fakeHandle) Seek(t time.Duration) error {
	h.mu.Lock()
	h.seeks = append(h.seeks, t)
	recv, echo := h.recv, !h.holdSeeks
	h.mu.Unlock()

	if echo && recv != nil {
		recv.Seeked(t)
	}
	return nil
}

func (h *fakeHandle) SetVolume(v float32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.volume = v
}

func (h *fakeHandle) SetReadAhead(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readAhead = d
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed++
	return nil
}

func (h *fakeHandle) receiver() media.Receiver {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.recv
}

func (h *fakeHandle) lastRate() float32 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.rates) == 0 {
		return 0
	}
	return h.rates[len(h.rates)-1]
}

func (h *fakeHandle) lastSeek() (time.Duration, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.seeks) == 0 {
		return 0, false
	}
	return h.seeks[len(h.seeks)-1], true
}

// deliver hands the movie a new frame at pts.
func (h *fakeHandle) deliver(pts time.Duration) {
	h.images.FetchAdd(1)
	img := media.NewImage(make([]byte, 4*h.size.X*h.size.Y), h.size, func() {
		h.released.FetchAdd(1)
	})
	h.receiver().Deliver(img, pts)
}

func openFake(t *testing.T, h *fakeHandle) *Movie {
	m, err := OpenHandle(h, Config{})
	require.NoError(t, err)
	t.Cleanup(m.Reset)
	return m
}

func waitEvent(t *testing.T, ch <-chan Event, typ EventType) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-ch:
			require.True(t, ok, "event channel closed waiting for %v", typ)
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %v", typ)
		}
	}
}

func TestOpenHandleInitialState(t *testing.T) {
	h := newFakeHandle(10 * time.Second)
	m, err := OpenHandle(h, Config{Owner: "lobby", ReadAhead: 16 * time.Millisecond})
	require.NoError(t, err)
	defer m.Reset()

	assert.Equal(t, "lobby", m.Owner())
	assert.Equal(t, 10*time.Second, m.Duration())
	assert.Equal(t, 10*time.Second, m.VideoDuration())
	assert.Equal(t, float32(0), m.Rate())
	assert.False(t, m.IsPlaying())
	assert.False(t, m.Looping())
	assert.False(t, m.IsPlayingSelection())
	assert.Equal(t, time.Duration(0), m.CurrentTime())
	assert.Equal(t, image.Pt(2, 2), m.CurrentSize())
	assert.Equal(t, image.Rect(0, 0, 2, 2), m.RenderRect())
	assert.Equal(t, float32(1), m.Volume())
	assert.Equal(t, 16*time.Millisecond, h.readAhead)
	assert.NoError(t, m.Err())
}

func TestOpenErrors(t *testing.T) {
	_, err := Open("webcam:/dev/video0", Config{})
	var openErr *MediaOpenError
	require.True(t, errors.As(err, &openErr))
	assert.Equal(t, "webcam:/dev/video0", openErr.Source)
	assert.Equal(t, media.ErrNotFound, errors.Cause(openErr.Err))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = OpenWithContext(ctx, "webcam:/dev/video0", Config{})
	assert.True(t, errors.As(err, &openErr))
}

func TestPlayStopRemembersRate(t *testing.T) {
	h := newFakeHandle(10 * time.Second)
	m := openFake(t, h)
	events := m.Subscribe(16)

	require.NoError(t, m.Play())
	assert.Equal(t, float32(1), m.Rate())
	assert.Equal(t, float32(1), h.lastRate())
	ev := waitEvent(t, events, EventRateChanged)
	assert.Equal(t, float32(1), ev.Rate)

	require.NoError(t, m.SetRate(2))
	m.Stop()
	assert.False(t, m.IsPlaying())
	assert.Equal(t, float32(0), h.lastRate())

	require.NoError(t, m.Play())
	assert.Equal(t, float32(2), m.Rate())

	require.NoError(t, m.SetRate(0))
	assert.Equal(t, float32(0), m.Rate())
	require.NoError(t, m.Play())
	assert.Equal(t, float32(2), m.Rate())
}

func TestSetRateReverse(t *testing.T) {
	h := newFakeHandle(10 * time.Second)
	h.reverse = false
	m := openFake(t, h)

	err := m.SetRate(-1)
	assert.Equal(t, ErrNotSupported, errors.Cause(err))
	assert.Equal(t, float32(0), m.Rate())
}

func TestVolumeIsClamped(t *testing.T) {
	h := newFakeHandle(time.Second)
	m := openFake(t, h)

	m.SetVolume(3)
	assert.Equal(t, float32(1), m.Volume())
	m.SetVolume(-1)
	assert.Equal(t, float32(0), m.Volume())
	assert.Equal(t, float32(0), h.volume)
}

// One writer publishes increasing timestamps; no reader may ever see time go
// backwards.
func TestTimestampsNeverTear(t *testing.T) {
	h := newFakeHandle(time.Hour)
	m := openFake(t, h)

	const (
		frames  = 5000
		readers = 8
	)
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < readers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var last time.Duration
			for {
				select {
				case <-stop:
					return
				default:
				}
				cur := m.CurrentTime()
				if cur < last {
					t.Errorf("time went backwards: %v after %v", cur, last)
					return
				}
				last = cur
			}
		}()
	}

	for i := 1; i <= frames; i++ {
		h.deliver(time.Duration(i) * time.Millisecond)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, frames*time.Millisecond, m.CurrentTime())
	assert.Equal(t, uint64(frames), m.Stats().FramesDelivered)
	// All but the current frame have been released.
	assert.Equal(t, int32(frames-1), h.released.Load())
}

func TestEndOfMediaRequestHasOneWinner(t *testing.T) {
	for round := 0; round < 100; round++ {
		var eom endOfMedia
		var winners atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})
		for i := 0; i < 32; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if eom.request() {
					winners.FetchAdd(1)
				}
			}()
		}
		close(start)
		wg.Wait()
		require.Equal(t, int32(1), winners.Load())
		require.True(t, eom.deliver())
		require.False(t, eom.deliver())
	}
}

func TestEndOfMediaFiresOnce(t *testing.T) {
	h := newFakeHandle(time.Second)
	m := openFake(t, h)
	events := m.Subscribe(64)

	require.NoError(t, m.Play())
	h.deliver(900 * time.Millisecond)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			h.receiver().Ended(time.Second)
		}()
	}
	close(start)
	wg.Wait()

	ev := waitEvent(t, events, EventEndOfMedia)
	assert.Equal(t, time.Second, ev.Time)
	assert.Equal(t, m, ev.Movie)

	// Ticks keep observing the end without raising it again.
	sink := texture.NewMemory(0, 1)
	for i := 0; i < 10; i++ {
		_, err := m.Render(sink)
		require.NoError(t, err)
	}
	m.GotoEnd()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(1), m.Stats().EndOfMedia)
	assert.False(t, m.IsPlaying())
	assert.Equal(t, time.Second, m.CurrentTime())
}

func TestRenderObservesEnd(t *testing.T) {
	h := newFakeHandle(time.Second)
	m := openFake(t, h)
	events := m.Subscribe(16)
	sink := texture.NewMemory(0, 1)

	require.NoError(t, m.SetPlaybackSelection(TimeRange{100 * time.Millisecond, 200 * time.Millisecond}))
	require.NoError(t, m.Play())

	// Stale frame from before the seek.
	h.deliver(600 * time.Millisecond)
	assert.Equal(t, 100*time.Millisecond, m.CurrentTime())

	h.deliver(150 * time.Millisecond)
	h.deliver(250 * time.Millisecond)
	assert.Equal(t, 200*time.Millisecond, m.CurrentTime())
	assert.Equal(t, uint64(2), m.Stats().FramesDropped)

	frame, err := m.Render(sink)
	require.NoError(t, err)
	assert.Equal(t, 200*time.Millisecond, frame.Time)
	waitEvent(t, events, EventEndOfMedia)
}

// Replacing the selection must never expose one bound of the old selection
// with one of the new.
func TestSelectionNeverTears(t *testing.T) {
	h := newFakeHandle(time.Minute)
	m := openFake(t, h)

	a := TimeRange{10 * time.Second, 20 * time.Second}
	b := TimeRange{30 * time.Second, 40 * time.Second}
	require.NoError(t, m.SetPlaybackSelection(a))

	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				sel, ok := m.PlaybackSelection()
				if !ok || (sel != a && sel != b) {
					t.Errorf("torn selection %v (%v)", sel, ok)
					return
				}
			}
		}()
	}

	for i := 0; i < 5000; i++ {
		if i%2 == 0 {
			require.NoError(t, m.SetPlaybackSelection(b))
		} else {
			require.NoError(t, m.SetPlaybackSelection(a))
		}
	}
	close(stop)
	wg.Wait()
}

func TestSetPlaybackSelection(t *testing.T) {
	h := newFakeHandle(30 * time.Second)
	m := openFake(t, h)

	err := m.SetPlaybackSelection(TimeRange{20 * time.Second, 10 * time.Second})
	var invalid *InvalidStateError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "SetPlaybackSelection", invalid.Op)
	assert.False(t, m.IsPlayingSelection())

	require.NoError(t, m.SetPlaybackSelection(TimeRange{10 * time.Second, time.Minute}))
	sel, ok := m.PlaybackSelection()
	require.True(t, ok)
	assert.Equal(t, TimeRange{10 * time.Second, 30 * time.Second}, sel)
	assert.Equal(t, 10*time.Second, m.CurrentTime())
	seek, ok := h.lastSeek()
	require.True(t, ok)
	assert.Equal(t, 10*time.Second, seek)

	m.ClearPlaybackSelection()
	_, ok = m.PlaybackSelection()
	assert.False(t, ok)
}

func TestGotoEndLooping(t *testing.T) {
	h := newFakeHandle(time.Minute)
	m := openFake(t, h)
	events := m.Subscribe(16)

	m.SetLooping(true)
	require.NoError(t, m.SetPlaybackSelection(TimeRange{10 * time.Second, 20 * time.Second}))
	require.NoError(t, m.Play())

	m.GotoEnd()
	assert.Equal(t, 10*time.Second, m.CurrentTime())
	assert.Equal(t, eomIdle, m.eom.load())
	assert.True(t, m.IsPlaying())

	ev := waitEvent(t, events, EventLooped)
	assert.Equal(t, 20*time.Second, ev.Time)
	assert.Equal(t, uint64(1), m.Stats().Loops)
	assert.Equal(t, uint64(0), m.Stats().EndOfMedia)
}

func TestLoopingAtSelectionEnd(t *testing.T) {
	h := newFakeHandle(time.Minute)
	m := openFake(t, h)
	events := m.Subscribe(16)
	sink := texture.NewMemory(0, 1)

	m.SetLooping(true)
	sel := TimeRange{10 * time.Second, 20 * time.Second}
	require.NoError(t, m.SetPlaybackSelection(sel))
	require.NoError(t, m.Play())

	h.deliver(15 * time.Second)
	h.deliver(21 * time.Second)
	assert.Equal(t, 20*time.Second, m.CurrentTime())

	// A render tick finds the time at the end and starts over.
	_, err := m.Render(sink)
	require.NoError(t, err)
	ev := waitEvent(t, events, EventLooped)
	assert.Equal(t, 20*time.Second, ev.Time)
	assert.Equal(t, sel.Start, m.CurrentTime())
	assert.Equal(t, eomIdle, m.eom.load())
	assert.True(t, m.IsPlaying())
	seek, _ := h.lastSeek()
	assert.Equal(t, sel.Start, seek)

	// So does the engine running out of frames.
	h.deliver(12 * time.Second)
	h.receiver().Ended(time.Minute)
	ev = waitEvent(t, events, EventLooped)
	assert.Equal(t, sel.End, ev.Time)
	assert.Equal(t, sel.Start, m.CurrentTime())
	assert.Equal(t, eomIdle, m.eom.load())

	stats := m.Stats()
	assert.Equal(t, uint64(2), stats.Loops)
	assert.Equal(t, uint64(0), stats.EndOfMedia)
	for {
		select {
		case ev := <-events:
			assert.NotEqual(t, EventEndOfMedia, ev.Type)
			continue
		default:
		}
		break
	}
}

func TestReverseEndOfMedia(t *testing.T) {
	h := newFakeHandle(10 * time.Second)
	m := openFake(t, h)
	events := m.Subscribe(16)
	sink := texture.NewMemory(0, 1)

	require.NoError(t, m.Seek(5*time.Second))
	require.NoError(t, m.SetRate(-1))
	h.deliver(4 * time.Second)
	h.receiver().Ended(0)
	h.receiver().Ended(0)

	ev := waitEvent(t, events, EventEndOfMedia)
	assert.Equal(t, time.Duration(0), ev.Time)
	assert.False(t, m.IsPlaying())
	assert.Equal(t, eomNotified, m.eom.load())

	_, err := m.Render(sink)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, uint64(1), m.Stats().EndOfMedia)

	// Reversing again starts from the end.
	require.NoError(t, m.SetRate(-1))
	assert.Equal(t, 10*time.Second, m.CurrentTime())
	seek, _ := h.lastSeek()
	assert.Equal(t, 10*time.Second, seek)
	assert.Equal(t, eomIdle, m.eom.load())
	assert.Equal(t, float32(-1), h.lastRate())
}

func TestRenderObservesStartInReverse(t *testing.T) {
	h := newFakeHandle(10 * time.Second)
	m := openFake(t, h)
	events := m.Subscribe(16)
	sink := texture.NewMemory(0, 1)

	sel := TimeRange{2 * time.Second, 8 * time.Second}
	require.NoError(t, m.SetPlaybackSelection(sel))
	require.NoError(t, m.Seek(6*time.Second))
	require.NoError(t, m.SetRate(-1))

	// Behind the seek target in reverse.
	h.deliver(7 * time.Second)
	assert.Equal(t, 6*time.Second, m.CurrentTime())
	h.deliver(5 * time.Second)
	h.deliver(time.Second)
	assert.Equal(t, sel.Start, m.CurrentTime())

	_, err := m.Render(sink)
	require.NoError(t, err)
	ev := waitEvent(t, events, EventEndOfMedia)
	assert.Equal(t, sel.Start, ev.Time)
	assert.False(t, m.IsPlaying())

	// Looping in reverse restarts at the selection end.
	m.SetLooping(true)
	require.NoError(t, m.SetRate(-1))
	assert.Equal(t, sel.End, m.CurrentTime())
	h.deliver(7 * time.Second)
	h.deliver(time.Second)
	_, err = m.Render(sink)
	require.NoError(t, err)
	ev = waitEvent(t, events, EventLooped)
	assert.Equal(t, sel.Start, ev.Time)
	assert.Equal(t, sel.End, m.CurrentTime())
	assert.True(t, m.IsPlaying())
	assert.Equal(t, uint64(1), m.Stats().EndOfMedia)
}

// A frame the engine decoded before a backward seek must not move the time
// forward again.
func TestSeekDropsFramesUntilEngineMoves(t *testing.T) {
	h := newFakeHandle(10 * time.Second)
	h.holdSeeks = true
	m := openFake(t, h)
	require.NoError(t, m.Play())

	require.NoError(t, m.Seek(8*time.Second))
	h.receiver().Seeked(8 * time.Second)
	h.deliver(8 * time.Second)
	assert.Equal(t, 8*time.Second, m.CurrentTime())

	require.NoError(t, m.Seek(2*time.Second))
	h.deliver(8100 * time.Millisecond)
	assert.Equal(t, 2*time.Second, m.CurrentTime())
	h.receiver().Ended(10 * time.Second)
	assert.Equal(t, eomIdle, m.eom.load())
	assert.Equal(t, 2*time.Second, m.CurrentTime())

	// A report for an older seek does not count.
	h.receiver().Seeked(8 * time.Second)
	h.deliver(8200 * time.Millisecond)
	assert.Equal(t, 2*time.Second, m.CurrentTime())

	h.receiver().Seeked(2 * time.Second)
	h.deliver(2 * time.Second)
	h.deliver(2100 * time.Millisecond)
	assert.Equal(t, 2100*time.Millisecond, m.CurrentTime())

	stats := m.Stats()
	assert.Equal(t, uint64(3), stats.FramesDelivered)
	assert.Equal(t, uint64(2), stats.FramesDropped)
}

func TestGotoEndAndReplay(t *testing.T) {
	h := newFakeHandle(time.Minute)
	m := openFake(t, h)
	events := m.Subscribe(16)

	require.NoError(t, m.Play())
	m.GotoEnd()
	m.GotoEnd()
	waitEvent(t, events, EventEndOfMedia)

	assert.Equal(t, time.Minute, m.CurrentTime())
	assert.False(t, m.IsPlaying())
	assert.Equal(t, eomNotified, m.eom.load())
	assert.Equal(t, uint64(1), m.Stats().EndOfMedia)

	// Playing again starts over.
	require.NoError(t, m.Play())
	assert.Equal(t, time.Duration(0), m.CurrentTime())
	assert.Equal(t, eomIdle, m.eom.load())
	seek, _ := h.lastSeek()
	assert.Equal(t, time.Duration(0), seek)
}

func TestSeekRewindsEndOfMedia(t *testing.T) {
	h := newFakeHandle(time.Minute)
	m := openFake(t, h)

	m.GotoEnd()
	require.NoError(t, m.Seek(30*time.Second))
	assert.Equal(t, eomIdle, m.eom.load())
	assert.Equal(t, 30*time.Second, m.CurrentTime())

	require.NoError(t, m.Seek(2*time.Minute))
	assert.Equal(t, time.Minute, m.CurrentTime())
}

func TestRenderUploadsNewFramesOnly(t *testing.T) {
	h := newFakeHandle(time.Minute)
	m := openFake(t, h)
	sink := texture.NewMemory(0, 2)

	frame, err := m.Render(sink)
	require.NoError(t, err)
	assert.Zero(t, frame.Texture)
	assert.False(t, frame.Uploaded)

	h.deliver(time.Second)
	frame, err = m.Render(sink)
	require.NoError(t, err)
	assert.NotZero(t, frame.Texture)
	assert.True(t, frame.Uploaded)
	assert.Equal(t, time.Second, frame.Time)
	assert.Equal(t, image.Pt(2, 2), frame.Size)

	again, err := m.Render(sink)
	require.NoError(t, err)
	assert.False(t, again.Uploaded)
	assert.Equal(t, frame.Texture, again.Texture)

	m.SetRenderRect(image.Rect(10, 10, 50, 50))
	again, err = m.Render(sink)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(10, 10, 50, 50), again.Rect)

	stats := m.Stats()
	assert.Equal(t, uint64(1), stats.Uploads)
	assert.Equal(t, uint64(4), stats.FramesRendered)
	assert.Equal(t, 1, sink.Live())

	m.Reset()
	assert.Equal(t, 0, sink.Live())
	assert.True(t, sink.Released(frame.Texture))
}

func TestRenderTextureExhausted(t *testing.T) {
	h := newFakeHandle(time.Minute)
	m := openFake(t, h)
	events := m.Subscribe(16)
	sink := texture.NewMemory(8, 1)

	require.NoError(t, m.Play())
	h.deliver(time.Second)

	_, err := m.Render(sink)
	var exhausted *ResourceExhaustedError
	require.True(t, errors.As(err, &exhausted))
	assert.Equal(t, texture.ErrExhausted, errors.Cause(exhausted.Err))

	ev := waitEvent(t, events, EventError)
	assert.Equal(t, err, ev.Err)
	assert.False(t, m.IsPlaying())
	assert.Equal(t, err, m.Err())

	// The last good frame stays current and is not retried.
	assert.Equal(t, time.Second, m.CurrentTime())
	_, err = m.Render(sink)
	assert.NoError(t, err)
}

func TestDecodeFailureHaltsPlayback(t *testing.T) {
	h := newFakeHandle(time.Minute)
	m := openFake(t, h)
	events := m.Subscribe(16)

	require.NoError(t, m.Play())
	h.deliver(time.Second)
	h.receiver().Fail(errors.Wrap(media.ErrOutOfBuffers, "pattern"))

	ev := waitEvent(t, events, EventError)
	var exhausted *ResourceExhaustedError
	require.True(t, errors.As(ev.Err, &exhausted))
	assert.Equal(t, "decode buffers", exhausted.Resource)
	assert.False(t, m.IsPlaying())
	assert.Equal(t, time.Second, m.CurrentTime())
	assert.Equal(t, uint64(1), m.Stats().Errors)

	// Playing again restarts decoding at the current frame.
	require.NoError(t, m.Play())
	assert.True(t, m.IsPlaying())
	seek, ok := h.lastSeek()
	require.True(t, ok)
	assert.Equal(t, time.Second, seek)
	assert.Equal(t, float32(1), h.lastRate())
	assert.Equal(t, ev.Err, m.Err())

	// Only once.
	h.mu.Lock()
	seeks := len(h.seeks)
	h.mu.Unlock()
	m.Stop()
	require.NoError(t, m.Play())
	h.mu.Lock()
	assert.Len(t, h.seeks, seeks)
	h.mu.Unlock()
}

func TestPlayResumesAfterBuffersRunOut(t *testing.T) {
	h, err := media.OpenPattern(media.PatternOptions{
		Size:     image.Pt(2, 2),
		FPS:      100,
		Duration: 10 * time.Second,
		Buffers:  2,
	})
	require.NoError(t, err)
	m, err := OpenHandle(h, Config{})
	require.NoError(t, err)
	defer m.Reset()
	events := m.Subscribe(64)

	require.NoError(t, m.Play())
	require.Eventually(t, func() bool { return m.Stats().FramesDelivered > 0 },
		2*time.Second, time.Millisecond)

	// A second reference to the current frame leaves the engine one buffer
	// short.
	m.timeLock.Lock()
	held := m.currentImage.Hold()
	m.timeLock.Unlock()

	ev := waitEvent(t, events, EventError)
	var exhausted *ResourceExhaustedError
	require.True(t, errors.As(ev.Err, &exhausted))
	assert.False(t, m.IsPlaying())
	delivered := m.Stats().FramesDelivered
	stalledAt := m.CurrentTime()

	held.Release()
	require.NoError(t, m.Play())
	require.Eventually(t, func() bool { return m.Stats().FramesDelivered > delivered+2 },
		2*time.Second, time.Millisecond)
	assert.Greater(t, m.CurrentTime(), stalledAt)
}

func TestResetIsTerminal(t *testing.T) {
	h := newFakeHandle(time.Minute)
	var observed []EventType
	var mu sync.Mutex
	m, err := OpenHandle(h, Config{Observer: func(ev Event) {
		mu.Lock()
		observed = append(observed, ev.Type)
		mu.Unlock()
	}})
	require.NoError(t, err)
	events := m.Subscribe(16)

	h.deliver(time.Second)
	m.Reset()
	m.Reset()

	assert.Equal(t, 1, h.closed)
	assert.Equal(t, h.images.Load(), h.released.Load())

	assert.Equal(t, ErrReset, m.Play())
	assert.Equal(t, ErrReset, m.SetRate(2))
	assert.Equal(t, ErrReset, m.Seek(0))
	assert.Equal(t, ErrReset, m.SetPlaybackSelection(TimeRange{0, time.Second}))
	_, err = m.Render(texture.NewMemory(0, 1))
	assert.Equal(t, ErrReset, err)

	// Frames still in flight from the engine are released.
	h.deliver(2 * time.Second)
	assert.Equal(t, h.images.Load(), h.released.Load())

	waitEvent(t, events, EventReset)
	_, ok := <-events
	assert.False(t, ok)

	mu.Lock()
	assert.Equal(t, []EventType{EventReset}, observed)
	mu.Unlock()
}

// Reset racing a render loop and a decode loop must not upload into a
// released texture or release anything twice.
func TestResetDuringRender(t *testing.T) {
	for round := 0; round < 20; round++ {
		h := newFakeHandle(time.Hour)
		m, err := OpenHandle(h, Config{})
		require.NoError(t, err)
		require.NoError(t, m.Play())
		sink := texture.NewMemory(0, 4)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for {
				_, err := m.Render(sink)
				if err == ErrReset {
					return
				}
				if err != nil {
					t.Errorf("render: %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for i := 1; i <= 200; i++ {
				h.deliver(time.Duration(i) * time.Millisecond)
			}
		}()

		time.Sleep(time.Millisecond)
		m.Reset()
		wg.Wait()

		assert.Equal(t, 0, sink.Live())
		assert.Equal(t, h.images.Load(), h.released.Load())
	}
}

func TestOpenPatternPlaysToEnd(t *testing.T) {
	m, err := Open("pattern:4x4@200/50ms", Config{})
	require.NoError(t, err)
	defer m.Reset()
	events := m.Subscribe(32)

	sink := texture.NewMemory(0, 2)
	clock := NewTickerClock(500)
	r := NewRenderer(sink)
	r.Attach(m)
	require.NoError(t, r.Run(clock))
	defer clock.Stop()

	require.NoError(t, m.Play())
	ev := waitEvent(t, events, EventEndOfMedia)
	assert.Equal(t, 50*time.Millisecond, ev.Time)
	assert.NotZero(t, m.Stats().FramesDelivered)
}
