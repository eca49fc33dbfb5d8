package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

const timestampFormat = "2006-01-02 15:04:05.000"

// Logger writes leveled, tagged lines of the form
//
//	2019-06-01 12:00:00.000 I/movie[movie.go:183] src=clip.mp4 Opened ...
//
// Loggers are cheap to derive and safe for concurrent use.
type Logger struct {
	// Messages more verbose than this are dropped.
	Level

	// Tag used to filter and classify log messages.
	Tag string

	// Rendered " key=value" pairs, oldest first.
	fields string

	out io.Writer

	// Shared by every logger derived from the same root, so lines written
	// from different goroutines never interleave.
	mu *sync.Mutex
}

// Write to stderr by default.
var DefaultLogger = &Logger{Level: defaultLevel, out: os.Stderr, mu: new(sync.Mutex)}

func (log *Logger) derive() *Logger {
	l := *log
	return &l
}

// Override the destination for this logger.
func (log *Logger) SetDestination(out io.Writer) {
	log.mu.Lock()
	log.out = out
	log.mu.Unlock()
}

// Derive a new logger with the given tag. Look up the level based on the tag.
func (log *Logger) WithTag(tag string) *Logger {
	l := log.derive()
	l.Tag = tag
	l.Level = determineLevel(tag, log.Level)
	return l
}

// Derive a new logger with the given default level. This can still be
// overridden by directives.
func (log *Logger) WithDefaultLevel(level Level) *Logger {
	l := log.derive()
	l.Level = determineLevel(log.Tag, level)
	return l
}

// With derives a logger that prefixes every message with key=value. Movies
// use it to tell their lines apart.
func (log *Logger) With(key string, value interface{}) *Logger {
	l := log.derive()
	l.fields = fmt.Sprintf("%s %s=%v", log.fields, key, value)
	return l
}

// Derive a new logger writing to out, with its own interleaving lock. Used to
// give a component (or a test) a private log destination.
func (log *Logger) WithWriter(out io.Writer) *Logger {
	l := log.derive()
	l.out = out
	l.mu = new(sync.Mutex)
	return l
}

// Enabled reports whether messages at level would be written.
func (log *Logger) Enabled(level Level) bool {
	return level <= log.Level
}

type buffer []byte

func (b *buffer) Write(p []byte) (int, error) {
	*b = append(*b, p...)
	return len(p), nil
}

var bufPool = sync.Pool{
	New: func() interface{} {
		b := make(buffer, 0, 256)
		return &b
	},
}

// Log a message at the given level, attributed to the caller 'calldepth'
// frames above Log.
func (log *Logger) Log(level Level, calldepth int, format string, a ...interface{}) {
	if !log.Enabled(level) {
		return
	}

	bp := bufPool.Get().(*buffer)
	defer func() {
		*bp = (*bp)[:0]
		bufPool.Put(bp)
	}()

	_, file, line, ok := runtime.Caller(calldepth + 1)
	if !ok {
		file, line = "?", 0
	}

	headerColor.Fprint(bp, time.Now().Format(timestampFormat))
	level.color().Fprintf(bp, " %c/%s", level.letter(), log.Tag)
	headerColor.Fprintf(bp, "[%s:%d]", filepath.Base(file), line)
	if log.fields != "" {
		fieldColor.Fprint(bp, log.fields)
	}
	*bp = append(*bp, ' ')
	fmt.Fprintf(bp, format, a...)
	if n := len(*bp); (*bp)[n-1] != '\n' {
		*bp = append(*bp, '\n')
	}

	log.mu.Lock()
	_, err := log.out.Write(*bp)
	log.mu.Unlock()
	if err != nil {
		panic(fmt.Sprintf("Failed to log to %v: %v", log.out, err))
	}
}

func (log *Logger) Error(format string, a ...interface{}) {
	log.Log(Error, 1, format, a...)
}

func (log *Logger) Warn(format string, a ...interface{}) {
	log.Log(Warn, 1, format, a...)
}

func (log *Logger) Info(format string, a ...interface{}) {
	log.Log(Info, 1, format, a...)
}

func (log *Logger) Debug(format string, a ...interface{}) {
	log.Log(Debug, 1, format, a...)
}

// Trace logs at numeric verbosity n, above Debug.
func (log *Logger) Trace(n int, format string, a ...interface{}) {
	log.Log(Level(n), 1, format, a...)
}
