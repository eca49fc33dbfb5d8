//go:build spindebug

package spinlock

import (
	"bytes"
	"fmt"
	"runtime"
	"strconv"
)

const debug = true

var goroutinePrefix = []byte("goroutine ")

// goid parses the current goroutine id out of the stack header. It is slow
// and only used by spindebug builds.
func goid() int64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		panic(fmt.Sprintf("spinlock: cannot parse goroutine id: %v", err))
	}
	return id
}

func (l *Spinlock) checkReentry() {
	if l.state.Load() == locked && l.owner.Load() == goid() {
		panic("spinlock: recursive lock")
	}
}

func (l *Spinlock) checkOwner() {
	if owner := l.owner.Load(); owner != goid() {
		panic(fmt.Sprintf("spinlock: unlock by goroutine %d, held by %d", goid(), owner))
	}
}
