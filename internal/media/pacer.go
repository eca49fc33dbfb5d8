package media

import (
	"image"
	"io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/alohamovie/internal/atomic"
)

// A frameReader produces frames for a pacer. It is only ever called from one
// goroutine at a time.
type frameReader interface {
	// readFrame returns the next frame in the given direction, or io.EOF at
	// the end (or, in reverse, the start) of the stream.
	readFrame(reverse bool) (*Image, time.Duration, error)

	seek(t time.Duration) error

	close() error
}

type streamInfo struct {
	duration      time.Duration
	videoDuration time.Duration
	size          image.Point
	canReverse    bool
}

// pacer implements Handle on top of a frameReader. Its delivery loop reads
// frames ahead and hands each one to the receiver when the wall clock reaches
// its presentation time, scaled by the playback rate.
type pacer struct {
	name   string
	reader frameReader
	info   streamInfo

	rate      atomic.Float32
	volume    atomic.Float32
	readAhead atomic.Int64

	// Wakes the delivery loop after a rate change.
	wake chan struct{}

	// Pending seek target. Only the latest one matters.
	seekCh chan time.Duration

	mu       sync.Mutex
	receiver Receiver
	started  bool
	closed   bool
	loop     *singletonLoop
}

func newPacer(name string, reader frameReader, info streamInfo) *pacer {
	p := &pacer{
		name:   name,
		reader: reader,
		info:   info,
		wake:   make(chan struct{}, 1),
		seekCh: make(chan time.Duration, 1),
	}
	p.volume.Store(1)
	p.loop = newSingletonLoop(name, p.run)
	return p
}

func (p *pacer) Duration() time.Duration      { return p.info.duration }
func (p *pacer) VideoDuration() time.Duration { return p.info.videoDuration }
func (p *pacer) Size() image.Point            { return p.info.size }
func (p *pacer) CanReverse() bool             { return p.info.canReverse }

func (p *pacer) Start(r Receiver) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.started {
		return errors.Errorf("%s: already started", p.name)
	}
	p.receiver = r
	p.started = true
	p.loop.start()
	return nil
}

func (p *pacer) SetRate(rate float32) error {
	if rate < 0 && !p.info.canReverse {
		return errors.Wrapf(ErrNotSupported, "%s: reverse playback", p.name)
	}
	if p.rate.Swap(rate) != rate {
		select {
		case p.wake <- struct{}{}:
		default:
		}
	}
	return nil
}

func (p *pacer) Seek(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if !p.started {
		return p.reader.seek(t)
	}

	// Replace any seek the loop has not picked up yet.
	for {
		select {
		case p.seekCh <- t:
			return nil
		default:
		}
		select {
		case <-p.seekCh:
		default:
		}
	}
}

func (p *pacer) SetVolume(v float32) {
	if v < 0 {
		v = 0
	} else if v > 1 {
		v = 1
	}
	p.volume.Store(v)
}

func (p *pacer) SetReadAhead(d time.Duration) {
	if d < 0 {
		d = 0
	}
	p.readAhead.Store(int64(d))
}

func (p *pacer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.closed = true
	p.loop.stop()
	return p.reader.close()
}

func direction(rate float32) int {
	switch {
	case rate > 0:
		return 1
	case rate < 0:
		return -1
	}
	return 0
}

func (p *pacer) run(quit <-chan struct{}) {
	var (
		pending    *Image
		pendingPTS time.Duration

		// Wall clock time at which the frame at origin is due.
		anchored bool
		wall     time.Time
		origin   time.Duration

		stalled  bool // decode error, wait for a seek or a rate change
		endedDir int  // direction in which the stream ran out
	)
	defer func() { pending.Release() }()

	seek := func(t time.Duration) {
		pending.Release()
		pending = nil
		anchored = false
		endedDir = 0
		stalled = false
		if err := p.reader.seek(t); err != nil {
			stalled = true
			p.receiver.Fail(errors.Wrapf(err, "%s: seek to %v", p.name, t))
			return
		}
		p.receiver.Seeked(t)
	}

	for {
		rate := p.rate.Load()
		dir := direction(rate)

		if dir == 0 || stalled || endedDir == dir {
			select {
			case <-quit:
				return
			case t := <-p.seekCh:
				seek(t)
			case <-p.wake:
				anchored = false
				stalled = false
			}
			continue
		}

		if pending == nil {
			img, pts, err := p.reader.readFrame(dir < 0)
			if err == io.EOF {
				endedDir = dir
				if dir > 0 {
					p.receiver.Ended(p.info.duration)
				} else {
					p.receiver.Ended(0)
				}
				continue
			}
			if err != nil {
				log.Error("%s: %v", p.name, err)
				stalled = true
				p.receiver.Fail(err)
				continue
			}
			pending, pendingPTS = img, pts
		}

		if !anchored {
			wall = time.Now()
			origin = pendingPTS
			anchored = true
		}
		offset := time.Duration(float64(pendingPTS-origin) / float64(rate))
		due := wall.Add(offset - time.Duration(p.readAhead.Load()))

		if d := time.Until(due); d > 0 {
			timer := time.NewTimer(d)
			select {
			case <-quit:
				timer.Stop()
				return
			case t := <-p.seekCh:
				timer.Stop()
				seek(t)
				continue
			case <-p.wake:
				timer.Stop()
				anchored = false
				if direction(p.rate.Load()) != dir {
					// Read for the other direction.
					pending.Release()
					pending = nil
				}
				continue
			case <-timer.C:
			}
		}

		p.receiver.Deliver(pending, pendingPTS)
		pending = nil
	}
}
