package alohamovie

import (
	"github.com/lanikai/alohamovie/internal/logging"
)

var log = logging.DefaultLogger.WithTag("movie")
