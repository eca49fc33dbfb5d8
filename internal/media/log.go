package media

import "github.com/lanikai/alohamovie/internal/logging"

var log = logging.DefaultLogger.WithTag("media")
