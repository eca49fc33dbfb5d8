package media

import (
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"
)

// A function used to open a specific source type.
type OpenFunc func(path string) (Handle, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]OpenFunc{}
)

// Register a source type, identified by its "source tag". Sources of this type will be
// opened with the given function.
func RegisterEngine(tag string, open OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()

	registry[tag] = open
}

// Engines returns the registered source tags in sorted order.
func Engines() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	var tags []string
	for t := range registry {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// Open a source based on its "source spec". A source spec is a colon-separated string
// consisting of a source tag and a source path:
//
//	sourceSpec = sourceTag + ":" + sourcePath
//
// The format of the source path is defined by the registered OpenFunc. A spec
// without a tag whose path ends in ".mp4" is opened by the "mp4" engine.
func OpenSource(spec string) (Handle, error) {
	log.Debug("Registered source types: %v", Engines())

	// Split the spec string into tag and path
	parts := strings.SplitN(spec, ":", 2)
	var tag, path string
	if len(parts) == 2 {
		tag, path = parts[0], parts[1]
	} else if strings.HasSuffix(strings.ToLower(spec), ".mp4") {
		tag, path = "mp4", spec
	} else {
		tag = parts[0]
	}

	registryMu.RLock()
	open, found := registry[tag]
	registryMu.RUnlock()

	if !found {
		return nil, errors.Wrapf(ErrNotFound, "source type '%s'", tag)
	}
	return open(path)
}
