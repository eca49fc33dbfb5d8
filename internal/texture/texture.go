// Package texture defines the boundary between a movie and the GPU upload
// path, plus a software implementation used by tools and tests.
package texture

import (
	"image"

	"github.com/pkg/errors"

	"github.com/lanikai/alohamovie/internal/media"
)

// Handle names a texture allocated by a Sink. Zero is never a valid handle.
type Handle uint32

var (
	ErrExhausted = errors.New("Texture memory exhausted")
	ErrReleased  = errors.New("Texture already released")
	ErrTooSmall  = errors.New("Image larger than texture")
)

// A Sink allocates textures and uploads decoded images into them. The caller
// owns every handle returned by Allocate and must Release it exactly once.
//
// All methods are called from the render goroutine, except Release, which may
// also be called from the goroutine tearing a movie down.
type Sink interface {
	Allocate(size image.Point) (Handle, error)
	Upload(h Handle, img *media.Image) error
	Release(h Handle)
}
