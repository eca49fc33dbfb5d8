package logging

import (
	stdlog "log"
	"strings"
)

type levelWriter struct {
	log   *Logger
	level Level
}

func (w levelWriter) Write(p []byte) (int, error) {
	w.log.Log(w.level, 3, "%s", strings.TrimSuffix(string(p), "\n"))
	return len(p), nil
}

// StdLogger returns a standard library logger that forwards every line to log
// at the given level. Useful for packages that only accept a *log.Logger,
// e.g. http.Server.ErrorLog.
func (log *Logger) StdLogger(level Level) *stdlog.Logger {
	return stdlog.New(levelWriter{log, level}, "", 0)
}
