package alohamovie

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lanikai/alohamovie/internal/media"
)

var (
	// Returned by every command on a movie after Reset.
	ErrReset = errors.New("Movie has been reset")

	// The decode engine cannot do what was asked, e.g. play in reverse.
	ErrNotSupported = media.ErrNotSupported
)

// MediaOpenError is returned by Open when the source cannot be parsed or
// opened. It is not retried.
type MediaOpenError struct {
	Source string
	Err    error
}

func (e *MediaOpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Source, e.Err)
}

func (e *MediaOpenError) Unwrap() error { return e.Err }
func (e *MediaOpenError) Cause() error  { return e.Err }

// ResourceExhaustedError reports that a texture or decode buffer could not
// be allocated. Playback halts; the last good frame stays current.
type ResourceExhaustedError struct {
	Resource string
	Err      error
}

func (e *ResourceExhaustedError) Error() string {
	return fmt.Sprintf("%s exhausted: %v", e.Resource, e.Err)
}

func (e *ResourceExhaustedError) Unwrap() error { return e.Err }

// InvalidStateError reports a call that is not valid for the arguments or the
// current state, such as a selection that ends before it starts.
type InvalidStateError struct {
	Op     string
	Reason string
}

func (e *InvalidStateError) Error() string {
	return e.Op + ": " + e.Reason
}
