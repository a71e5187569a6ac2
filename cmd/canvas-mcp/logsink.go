package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ggoodman/canvas-mcp/internal/config"
	"github.com/ggoodman/canvas-mcp/internal/logctx"
)

// defaultLogPath is the daily diagnostic file used when no path is configured.
func defaultLogPath(now time.Time) string {
	return filepath.Join(os.TempDir(), "canvas-mcp", "server-"+now.Format("2006-01-02")+".log")
}

// openDiagnostics builds the diagnostic logger. Records never reach stdout.
// When no path was configured and the default location is not writable the
// sink is discarded rather than failing startup.
func openDiagnostics(path string, debug bool, now time.Time) (*slog.Logger, func(), error) {
	if path == config.LogFileOff {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	explicit := path != ""
	if !explicit {
		path = defaultLogPath(now)
	}
	f, err := openAppend(path)
	if err != nil {
		if explicit {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return newLogger(f, level), func() { _ = f.Close() }, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(logctx.Handler{Handler: h})
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
