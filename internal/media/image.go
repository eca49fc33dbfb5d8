package media

import (
	"image"

	"github.com/lanikai/alohamovie/internal/atomic"
)

/*
An Image is a decoded frame delivered by a decode engine. It is immutable once
delivered and may be read concurrently from multiple goroutines.

Sharing is managed by reference counting. A new Image starts with one
reference, owned by whoever the engine delivers it to. Hold() adds a reference
for another owner, Release() drops one. The release function passed to
NewImage runs exactly once, when the last reference is dropped, and typically
returns the pixel storage to the engine's buffer pool.

Example usage:

	func (r *renderer) draw(img *media.Image) {
		img.Hold()          // Keep the image alive for this tick.
		defer img.Release() // And no longer.
		upload(img.Bytes())
	}
*/
type Image struct {
	data []byte
	size image.Point

	count   atomic.Int32
	release func()
}

// NewImage wraps data in an Image holding one reference.
func NewImage(data []byte, size image.Point, release func()) *Image {
	img := &Image{data: data, size: size, release: release}
	img.count.Store(1)
	return img
}

// Bytes returns the underlying pixel data. It must not be modified.
func (img *Image) Bytes() []byte {
	return img.data
}

// Size returns the image dimensions in pixels.
func (img *Image) Size() image.Point {
	return img.size
}

// Hold adds a reference and returns img, so it can be chained.
func (img *Image) Hold() *Image {
	if img.count.FetchAdd(1) <= 1 {
		panic("media: Hold on released image")
	}
	return img
}

// Release drops a reference. When the count reaches zero, the release
// function is called. Release on a nil Image is a no-op.
func (img *Image) Release() {
	if img == nil {
		return
	}
	switch n := img.count.FetchAdd(-1); {
	case n == 0:
		if img.release != nil {
			img.release()
		}
	case n < 0:
		panic("media: image released too many times")
	}
}

// Checkout holds img for the caller and returns it along with the matching
// checkin function. Checkout on a nil Image returns nil and a no-op.
//
//	img, checkin := current.Checkout()
//	defer checkin()
func (img *Image) Checkout() (*Image, func()) {
	if img == nil {
		return nil, func() {}
	}
	img.Hold()
	return img, img.Release
}

// Released reports whether the last reference has been dropped.
func (img *Image) Released() bool {
	return img.count.Load() <= 0
}
