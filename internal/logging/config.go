package logging

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

const envVar = "LOGLEVEL"

type tagLevel struct {
	tag   string
	level Level
}

var (
	directivesMu sync.RWMutex
	tagLevels    []tagLevel
)

func init() {
	if err := SetDirectives(os.Getenv(envVar)); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid %s: %v\n", envVar, err)
	}
}

// SetDirectives parses comma-separated "tag=level" directives, e.g.
// "movie=debug,media=warn". A directive without "tag=" sets the default
// level. Loggers derived afterwards pick up the new levels.
func SetDirectives(s string) error {
	var levels []tagLevel
	def := Info

	for _, d := range strings.Split(s, ",") {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		v := strings.SplitN(d, "=", 2)
		level, err := ParseLevel(v[len(v)-1])
		if err != nil {
			return errors.Wrapf(err, "directive '%s'", d)
		}
		if len(v) == 1 {
			def = level
		} else {
			levels = append(levels, tagLevel{v[0], level})
		}
	}

	directivesMu.Lock()
	defaultLevel = def
	tagLevels = levels
	directivesMu.Unlock()

	DefaultLogger.Level = def
	return nil
}

func determineLevel(tag string, fallback Level) Level {
	directivesMu.RLock()
	defer directivesMu.RUnlock()

	for _, e := range tagLevels {
		if e.tag == tag {
			return e.level
		}
	}
	return fallback
}
