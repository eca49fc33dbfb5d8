package media

import (
	"encoding/binary"
	"fmt"
	"image"
	"io"
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

func init() {
	RegisterEngine("pattern", func(path string) (Handle, error) {
		opts, err := ParsePattern(path)
		if err != nil {
			return nil, err
		}
		return OpenPattern(opts)
	})
}

// PatternOptions describes a synthetic test pattern source. Each frame carries
// its index in the first 8 bytes, see PatternFrameIndex.
type PatternOptions struct {
	Size     image.Point
	FPS      float64
	Duration time.Duration

	// Number of frame buffers in the decode pool. Delivery fails with
	// ErrOutOfBuffers when every buffer is still referenced.
	Buffers int
}

var defaultPattern = PatternOptions{
	Size:     image.Pt(320, 240),
	FPS:      30,
	Duration: 10 * time.Second,
	Buffers:  4,
}

// ParsePattern parses a pattern path of the form WxH@FPS/DURATION, e.g.
// "640x480@30/10s". An empty path selects 320x240@30/10s.
func ParsePattern(path string) (PatternOptions, error) {
	opts := defaultPattern
	if path == "" {
		return opts, nil
	}

	var w, h int
	var fps float64
	var dur string
	if n, err := fmt.Sscanf(strings.Replace(path, "/", " ", 1), "%dx%d@%f %s", &w, &h, &fps, &dur); n != 4 || err != nil {
		return opts, errors.Errorf("pattern: malformed spec '%s', want WxH@FPS/DURATION", path)
	}
	d, err := time.ParseDuration(dur)
	if err != nil {
		return opts, errors.Wrapf(err, "pattern: duration in '%s'", path)
	}

	opts.Size = image.Pt(w, h)
	opts.FPS = fps
	opts.Duration = d
	return opts, nil
}

// OpenPattern opens a synthetic test pattern. Patterns support reverse
// playback.
func OpenPattern(opts PatternOptions) (Handle, error) {
	if opts.Size.X <= 0 || opts.Size.Y <= 0 {
		return nil, errors.Errorf("pattern: invalid size %v", opts.Size)
	}
	if opts.FPS <= 0 || opts.Duration <= 0 {
		return nil, errors.Errorf("pattern: invalid rate %v fps over %v", opts.FPS, opts.Duration)
	}
	if opts.Buffers <= 0 {
		opts.Buffers = defaultPattern.Buffers
	}

	frames := int(math.Ceil(opts.Duration.Seconds() * opts.FPS))
	r := &patternReader{
		opts:   opts,
		frames: frames,
		pool:   newBufferPool(opts.Buffers, max(4*opts.Size.X*opts.Size.Y, 8)),
	}
	log.Info("Pattern %dx%d, %d frames at %g fps", opts.Size.X, opts.Size.Y, frames, opts.FPS)

	return newPacer("pattern", r, streamInfo{
		duration:      opts.Duration,
		videoDuration: opts.Duration,
		size:          opts.Size,
		canReverse:    true,
	}), nil
}

// PatternFrameIndex returns the frame index stamped into a pattern image.
func PatternFrameIndex(img *Image) int {
	return int(binary.BigEndian.Uint64(img.Bytes()))
}

type patternReader struct {
	opts   PatternOptions
	frames int

	// Index of the next frame when reading forward.
	next int

	pool *bufferPool
}

func (r *patternReader) pts(i int) time.Duration {
	return time.Duration(float64(i) * float64(time.Second) / r.opts.FPS)
}

func (r *patternReader) readFrame(reverse bool) (*Image, time.Duration, error) {
	i := r.next
	if reverse {
		i--
	}
	if i < 0 || i >= r.frames {
		return nil, 0, io.EOF
	}

	// A frame that finds no buffer is read again on the next attempt.
	buf, ok := r.pool.get()
	if !ok {
		return nil, 0, errors.Wrapf(ErrOutOfBuffers, "pattern: frame %d", i)
	}
	if reverse {
		r.next = i
	} else {
		r.next = i + 1
	}
	binary.BigEndian.PutUint64(buf, uint64(i))
	return NewImage(buf, r.opts.Size, func() { r.pool.put(buf) }), r.pts(i), nil
}

func (r *patternReader) seek(t time.Duration) error {
	if t < 0 {
		t = 0
	}
	i := int(math.Ceil(t.Seconds()*r.opts.FPS - 1e-9))
	if i > r.frames {
		i = r.frames
	}
	r.next = i
	return nil
}

func (r *patternReader) close() error {
	return nil
}

// bufferPool hands out at most n buffers of a fixed size.
type bufferPool struct {
	size      int
	free      chan []byte
	allocated chan struct{}
}

func newBufferPool(n, size int) *bufferPool {
	return &bufferPool{
		size:      size,
		free:      make(chan []byte, n),
		allocated: make(chan struct{}, n),
	}
}

func (p *bufferPool) get() ([]byte, bool) {
	select {
	case buf := <-p.free:
		return buf, true
	default:
	}
	select {
	case p.allocated <- struct{}{}:
		return make([]byte, p.size), true
	default:
		return nil, false
	}
}

func (p *bufferPool) put(buf []byte) {
	p.free <- buf
}
