package media

import (
	"image"
	"time"
)

// A Receiver accepts decoded frames from a Handle. Its methods are called from
// the handle's delivery goroutine, one at a time.
type Receiver interface {
	// Deliver hands over a frame and its presentation timestamp. The receiver
	// owns the one reference carried by img and must Release it eventually.
	Deliver(img *Image, pts time.Duration)

	// Ended reports that the stream ran out of frames in the current playback
	// direction. pts is the timeline position at the boundary: the duration
	// when playing forward, zero when playing in reverse.
	Ended(pts time.Duration)

	// Seeked reports that a Seek to t took effect. Frames delivered after it
	// come from the new position.
	Seeked(t time.Duration)

	// Fail reports a decode error. Delivery stops afterwards until the
	// next Seek or rate change.
	Fail(err error)
}

// A Handle is an open media source driven by a decode engine.
type Handle interface {
	// Duration of the longest stream in the media.
	Duration() time.Duration

	// VideoDuration is the duration of the video stream.
	VideoDuration() time.Duration

	// Size of the decoded frames in pixels.
	Size() image.Point

	// CanReverse reports whether negative rates are supported.
	CanReverse() bool

	// Start begins asynchronous delivery to r. Delivery is paced by the
	// current rate; at rate zero no frames are delivered.
	Start(r Receiver) error

	// SetRate changes the playback rate. Negative rates fail with
	// ErrNotSupported unless CanReverse is true.
	SetRate(rate float32) error

	// Seek moves the read position. The next delivered frame is the one at or
	// after t (at or before t when playing in reverse).
	Seek(t time.Duration) error

	// SetVolume sets the audio gain in [0, 1].
	SetVolume(v float32)

	// SetReadAhead delivers frames up to d ahead of their presentation time,
	// so they are ready by the time the display clock samples them.
	SetReadAhead(d time.Duration)

	// Close stops delivery and frees all resources. It must be called
	// exactly once.
	Close() error
}
