package alohamovie

import (
	"image"
	"time"

	"github.com/pkg/errors"

	"github.com/lanikai/alohamovie/internal/media"
	"github.com/lanikai/alohamovie/internal/texture"
)

// Frame describes what a render tick should draw.
type Frame struct {
	// Presentation time of the frame.
	Time time.Duration

	// Texture holding the frame, zero until the first frame is uploaded.
	Texture texture.Handle
	Size    image.Point
	Rect    image.Rectangle

	// Whether a new image was uploaded during this tick.
	Uploaded bool
}

// Render samples the current frame and uploads it into a texture allocated
// from sink, if it changed since the last call. It must be called from one
// goroutine at a time, typically once per display refresh.
//
// Render never waits for the decode engine. An upload failure halts playback;
// the texture keeps the last good frame.
func (m *Movie) Render(sink texture.Sink) (Frame, error) {
	if m.isReset() {
		return Frame{}, ErrReset
	}

	m.timeLock.Lock()
	if m.isReset() {
		m.timeLock.Unlock()
		return Frame{}, ErrReset
	}
	t := m.currentTimeLocked()
	img, checkin := m.currentImage.Checkout()
	seq := m.imageSeq
	ended := m.observeEndLocked(t)
	m.timeLock.Unlock()
	defer checkin()

	m.stats.rendered.FetchAddRelaxed(1)
	if ended {
		notify(m.endSignal)
	}

	frame := Frame{Time: t}
	var err error

	m.renderLock.Lock()
	if m.isReset() {
		m.renderLock.Unlock()
		return frame, ErrReset
	}
	if img != nil && seq != m.uploadedSeq {
		// Do not retry a failed upload on every tick.
		m.uploadedSeq = seq
		if err = m.uploadLocked(sink, img); err == nil {
			frame.Uploaded = true
		}
	}
	frame.Texture = m.texture
	frame.Size = m.textureSize
	frame.Rect = m.renderRect
	m.renderLock.Unlock()

	if err != nil {
		m.fail(err)
	}
	return frame, err
}

// observeEndLocked requests end-of-media if t is at or past the end of the
// active range in the playing direction, and reports whether this call won
// the request. Caller holds timeLock.
func (m *Movie) observeEndLocked(t time.Duration) bool {
	rg := m.activeRangeLocked()
	rate := m.rate.Load()
	if (rate > 0 && t >= rg.End) || (rate < 0 && t <= rg.Start) {
		return m.eom.request()
	}
	return false
}

// Caller holds renderLock.
func (m *Movie) uploadLocked(sink texture.Sink, img *media.Image) error {
	size := img.Size()
	if m.texture == 0 || m.textureSink != sink || m.textureSize != size {
		h, err := sink.Allocate(size)
		if err != nil {
			if errors.Cause(err) == texture.ErrExhausted {
				return &ResourceExhaustedError{Resource: "texture memory", Err: err}
			}
			return errors.Wrapf(err, "allocate %dx%d texture", size.X, size.Y)
		}
		if m.texture != 0 {
			m.textureSink.Release(m.texture)
		}
		m.texture, m.textureSink, m.textureSize = h, sink, size
	}

	if err := sink.Upload(m.texture, img); err != nil {
		return errors.Wrap(err, "upload")
	}
	m.stats.uploads.FetchAddRelaxed(1)
	return nil
}
