package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New returns a text slog logger at the named level ("debug", "info",
// "warn", "error"; anything else is info). It writes to w, and additionally
// appends to logFile when one is given. The returned closer releases the file.
func New(level string, w io.Writer, logFile string) (*slog.Logger, io.Closer, error) {
	if w == nil {
		w = os.Stdout
	}
	writers := []io.Writer{w}

	var closer io.Closer = nopCloser{}
	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, f)
		closer = f
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{Level: ParseLevel(level)})
	return slog.New(handler), closer, nil
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
