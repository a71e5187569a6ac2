package stdio

import (
	"io"
	"log/slog"
	"time"

	"github.com/ggoodman/canvas-mcp/internal/engine"
)

// Option customizes a Handler.
type Option func(*Handler)

// WithIO sets the reader and writer for the handler.
func WithIO(r io.Reader, w io.Writer) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
		if w != nil {
			h.w = w
		}
	}
}

// WithReader overrides the input stream.
func WithReader(r io.Reader) Option {
	return func(h *Handler) {
		if r != nil {
			h.r = r
		}
	}
}

// WithWriter overrides the output stream.
func WithWriter(w io.Writer) Option {
	return func(h *Handler) {
		if w != nil {
			h.w = w
		}
	}
}

// WithLogger overrides the logger. It must not write to the output stream.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.l = l
		}
	}
}

// WithEngineOptions forwards options to the dispatcher (cache, server info,
// instructions, timeouts, in-flight bound).
func WithEngineOptions(opts ...engine.EngineOption) Option {
	return func(h *Handler) {
		h.engineOpts = append(h.engineOpts, opts...)
	}
}

// WithMaxFrameSize sets the largest accepted input line in bytes. Longer
// lines are answered with a parse error and skipped.
func WithMaxFrameSize(n int) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxFrame = n
		}
	}
}

// WithDrainTimeout bounds how long Serve waits for in-flight calls after
// input ends. Calls still running afterwards are cancelled.
func WithDrainTimeout(d time.Duration) Option {
	return func(h *Handler) {
		if d > 0 {
			h.drainTimeout = d
		}
	}
}
