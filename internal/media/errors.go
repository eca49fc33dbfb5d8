//////////////////////////////////////////////////////////////////////////////
//
// Media errors
//
// Copyright 2019 Lanikai Labs LLC. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package media

import "github.com/pkg/errors"

var (
	ErrNotFound     = errors.New("Not found")
	ErrNotSupported = errors.New("Not supported") // "can't do" items
	ErrClosed       = errors.New("Handle closed")
	ErrOutOfBuffers = errors.New("Out of decode buffers")
	ErrNoVideo      = errors.New("No compatible video stream found")
)
