//////////////////////////////////////////////////////////////////////////////
//
// Config contains configuration data for Movie
//
// Copyright 2019 Lanikai Labs. All rights reserved.
//
//////////////////////////////////////////////////////////////////////////////

package alohamovie

import (
	"time"

	"github.com/lanikai/alohamovie/internal/logging"
	"github.com/lanikai/alohamovie/internal/spinlock"
)

type Config struct {
	// Opaque value identifying whoever owns the movie. Returned by Owner.
	Owner interface{}

	// Called with every event on the movie's control goroutine. Must not
	// call Reset.
	Observer func(Event)

	// Defaults to the "movie" tagged logger.
	Logger *logging.Logger

	// Backoff for the time and render locks. Zero value selects
	// spinlock.DefaultBackoff.
	Backoff spinlock.Backoff

	// How far ahead of their presentation time frames are delivered.
	ReadAhead time.Duration
}
