package texture

import (
	"fmt"
	"image"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"

	"github.com/lanikai/alohamovie/internal/logging"
	"github.com/lanikai/alohamovie/internal/media"
)

var log = logging.DefaultLogger.WithTag("texture")

const bytesPerPixel = 4

// Memory is a Sink that keeps textures in main memory. Storage of released
// textures is kept in a small pool keyed by byte size and reused by later
// allocations of the same size.
type Memory struct {
	mu sync.Mutex

	// Maximum bytes of live texture storage. Zero means unlimited.
	budget int
	used   int

	next     Handle
	textures map[Handle]*storage
	released map[Handle]bool

	// Free storage, size in bytes -> *freeList.
	pool *lru.Cache

	uploads int
}

type storage struct {
	size image.Point
	data []byte
}

type freeList struct {
	bufs [][]byte
}

// NewMemory returns a memory sink limited to budget bytes of live texture
// storage (zero for no limit), pooling free storage for up to poolSizes
// distinct texture sizes.
func NewMemory(budget, poolSizes int) *Memory {
	return &Memory{
		budget:   budget,
		textures: make(map[Handle]*storage),
		released: make(map[Handle]bool),
		pool:     lru.New(poolSizes),
	}
}

func (m *Memory) Allocate(size image.Point) (Handle, error) {
	if size.X <= 0 || size.Y <= 0 {
		return 0, errors.Errorf("texture: invalid size %v", size)
	}
	n := bytesPerPixel * size.X * size.Y

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.budget > 0 && m.used+n > m.budget {
		return 0, errors.Wrapf(ErrExhausted, "%d bytes requested, %d of %d in use", n, m.used, m.budget)
	}

	data := m.takeFree(n)
	if data == nil {
		data = make([]byte, n)
	}

	m.next++
	h := m.next
	m.textures[h] = &storage{size, data}
	m.used += n
	log.Debug("Allocated texture %d (%dx%d)", h, size.X, size.Y)
	return h, nil
}

func (m *Memory) Upload(h Handle, img *media.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.textures[h]
	if !ok {
		if m.released[h] {
			return errors.Wrapf(ErrReleased, "upload to texture %d", h)
		}
		return errors.Errorf("texture: unknown handle %d", h)
	}
	src := img.Bytes()
	if len(src) > len(s.data) {
		return errors.Wrapf(ErrTooSmall, "%d bytes into texture %d of %d", len(src), h, len(s.data))
	}
	copy(s.data, src)
	m.uploads++
	return nil
}

// Release frees a texture. Releasing a handle twice is a programming error
// and panics.
func (m *Memory) Release(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.textures[h]
	if !ok {
		if m.released[h] {
			panic(fmt.Sprintf("texture: double release of handle %d", h))
		}
		panic(fmt.Sprintf("texture: release of unknown handle %d", h))
	}
	delete(m.textures, h)
	m.released[h] = true
	m.used -= len(s.data)
	m.putFree(s.data)
	log.Debug("Released texture %d", h)
}

func (m *Memory) takeFree(n int) []byte {
	v, ok := m.pool.Get(n)
	if !ok {
		return nil
	}
	fl := v.(*freeList)
	buf := fl.bufs[len(fl.bufs)-1]
	fl.bufs = fl.bufs[:len(fl.bufs)-1]
	if len(fl.bufs) == 0 {
		m.pool.Remove(n)
	}
	return buf
}

func (m *Memory) putFree(buf []byte) {
	n := len(buf)
	if v, ok := m.pool.Get(n); ok {
		fl := v.(*freeList)
		fl.bufs = append(fl.bufs, buf)
		return
	}
	m.pool.Add(n, &freeList{[][]byte{buf}})
}

// Contents returns a copy of a live texture's storage.
func (m *Memory) Contents(h Handle) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.textures[h]
	if !ok {
		return nil, false
	}
	return append([]byte(nil), s.data...), true
}

// Live returns the number of allocated, unreleased textures.
func (m *Memory) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.textures)
}

// Uploads returns the number of successful uploads.
func (m *Memory) Uploads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploads
}

// Used returns the bytes of live texture storage.
func (m *Memory) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used
}

// Released reports whether h was allocated and has since been released.
func (m *Memory) Released(h Handle) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.released[h]
}
