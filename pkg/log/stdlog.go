package log

import (
	"log"
	"log/slog"
)

// RedirectStdLog points the standard library's log package at logger, so
// that third-party code using log.Printf (e.g. Pebble) is captured by our
// formatter/output pipeline instead of writing directly to stderr.
func RedirectStdLog(logger Logger) {
	base, ok := logger.(*BaseLogger)
	if !ok {
		return
	}
	log.SetFlags(0)
	log.SetOutput(slogWriter{logger: base})
}

type slogWriter struct {
	logger *BaseLogger
}

func (w slogWriter) Write(p []byte) (int, error) {
	msg := string(p)
	if n := len(msg); n > 0 && msg[n-1] == '\n' {
		msg = msg[:n-1]
	}
	w.logger.Info(msg)
	return len(p), nil
}

// ToStdLogger adapts logger to a *log.Logger for libraries that require
// one directly rather than an io.Writer.
func ToStdLogger(logger Logger) *log.Logger {
	base, ok := logger.(*BaseLogger)
	if !ok {
		return log.Default()
	}
	return slog.NewLogLogger(base.slogLogger.Handler(), slog.LevelInfo)
}
