package stdio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ggoodman/canvas-mcp/internal/engine"
	"github.com/ggoodman/canvas-mcp/internal/jsonrpc"
	"github.com/ggoodman/canvas-mcp/mcpservice"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMaxFrameSize = 4 << 20
	defaultDrainTimeout = 10 * time.Second
	outboxDepth         = 64
)

// Handler is a single-connection stdio transport that reads JSON-RPC messages
// from an io.Reader and writes responses to an io.Writer. By default, it uses
// os.Stdin and os.Stdout.
//
// The handler is transport-only; it delegates all MCP semantics to the
// engine built over the provided tools.
type Handler struct {
	r io.Reader
	w io.Writer
	l *slog.Logger

	tools      *mcpservice.ToolsContainer
	engineOpts []engine.EngineOption

	maxFrame     int
	drainTimeout time.Duration
}

// NewHandler constructs a stdio Handler with defaults and applies options.
func NewHandler(tools *mcpservice.ToolsContainer, opts ...Option) *Handler {
	if tools == nil {
		tools, _ = mcpservice.NewToolsContainer()
	}
	h := &Handler{
		r:            os.Stdin,
		w:            os.Stdout,
		l:            slog.New(slog.DiscardHandler),
		tools:        tools,
		maxFrame:     defaultMaxFrameSize,
		drainTimeout: defaultDrainTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Serve runs the stdio event loop until the peer closes the input, the
// client requests shutdown, or ctx is cancelled. In every case the
// in-flight tool calls are drained (bounded by the drain timeout) and their
// responses flushed before Serve returns.
//
// After a shutdown request the input is still read, so requests arriving
// while calls drain are answered with an error. Reading stops once the
// drain completes.
//
// Serve returns nil on end of input and after shutdown, ctx.Err() when ctx
// was cancelled, and a *TransportError when either stream fails. It is safe
// to call at most once per Handler.
func (h *Handler) Serve(ctx context.Context) error {
	ob := newOutbox(h.w)
	opts := append([]engine.EngineOption{engine.WithLogger(h.l)}, h.engineOpts...)
	eng := engine.NewEngine(h.tools, ob, opts...)

	h.l.InfoContext(ctx, "stdio.serve.start",
		slog.Int("tools", h.tools.Len()),
		slog.Int("max_frame_bytes", h.maxFrame),
	)

	var once sync.Once
	drain := func() {
		once.Do(func() {
			dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), h.drainTimeout)
			defer cancel()
			if err := eng.Drain(dctx); err != nil {
				h.l.WarnContext(ctx, "stdio.serve.drain_timeout", slog.Duration("timeout", h.drainTimeout))
			}
		})
	}

	var g errgroup.Group
	g.Go(ob.run)
	g.Go(func() error {
		err := h.readLoop(ctx, eng, ob, drain)
		drain()
		ob.close()
		h.l.InfoContext(ctx, "stdio.serve.drained", slog.String("state", eng.State().String()))
		return err
	})
	return g.Wait()
}

type frame struct {
	data []byte
	err  error
}

func (h *Handler) readLoop(ctx context.Context, eng *engine.Engine, ob *outbox, drain func()) error {
	frames := make(chan frame)
	stop := make(chan struct{})
	defer close(stop)
	go h.readFrames(frames, stop)

	// drained stays nil until shutdown begins.
	var drained chan struct{}
	for {
		select {
		case <-ctx.Done():
			h.l.InfoContext(ctx, "stdio.serve.cancelled", slog.String("cause", context.Cause(ctx).Error()))
			return ctx.Err()
		case <-ob.done:
			// The writer has failed and reports its own error.
			return nil
		case <-drained:
			h.l.InfoContext(ctx, "stdio.read.stop", slog.String("state", eng.State().String()))
			return nil
		case f := <-frames:
			switch {
			case f.err == nil:
				h.handleFrame(ctx, eng, ob, f.data)
			case errors.Is(f.err, errFrameTooLarge):
				h.l.WarnContext(ctx, "stdio.read.frame_too_large", slog.Int("max_frame_bytes", h.maxFrame))
				h.writeError(ctx, ob, nil, jsonrpc.NewError(jsonrpc.ErrorCodeParseError, "parse error", map[string]any{
					"reason": "frame exceeds maximum size",
				}))
			case errors.Is(f.err, io.EOF):
				h.l.InfoContext(ctx, "stdio.read.eof")
				return nil
			default:
				h.l.ErrorContext(ctx, "stdio.read.fail", slog.String("err", f.err.Error()))
				return &TransportError{Op: "read", Err: f.err}
			}
			if drained == nil && eng.State() >= engine.StateShuttingDown {
				h.l.InfoContext(ctx, "stdio.read.shutting_down")
				drained = make(chan struct{})
				go func(done chan<- struct{}) {
					drain()
					close(done)
				}(drained)
			}
		}
	}
}

// readFrames owns the input stream. It cannot be interrupted while blocked
// in Read, so it is not joined; it exits on the next frame after stop closes
// or when the stream ends.
func (h *Handler) readFrames(out chan<- frame, stop <-chan struct{}) {
	fr := newFrameReader(h.r, h.maxFrame)
	for {
		data, err := fr.next()
		if data != nil {
			data = bytes.Clone(data)
		}
		select {
		case out <- frame{data: data, err: err}:
		case <-stop:
			return
		}
		if err != nil && !errors.Is(err, errFrameTooLarge) {
			return
		}
	}
}

func (h *Handler) handleFrame(ctx context.Context, eng *engine.Engine, ob *outbox, data []byte) {
	if len(bytes.TrimSpace(data)) == 0 {
		return
	}
	msg, rpcErr := jsonrpc.Decode(data)
	if rpcErr != nil {
		var id *jsonrpc.RequestID
		if msg != nil {
			id = msg.ID
		}
		h.l.WarnContext(ctx, "stdio.read.parse_error",
			slog.String("code", rpcErr.Code.String()),
			slog.String("err", rpcErr.Message),
		)
		h.writeError(ctx, ob, id, rpcErr)
		return
	}
	eng.Dispatch(ctx, msg)
}

func (h *Handler) writeError(ctx context.Context, ob *outbox, id *jsonrpc.RequestID, rpcErr *jsonrpc.Error) {
	if err := ob.WriteMessage(ctx, jsonrpc.NewErrorObjectResponse(id, rpcErr)); err != nil {
		h.l.ErrorContext(ctx, "stdio.write.fail", slog.String("err", err.Error()))
	}
}

// outbox serializes frames onto the output stream. Every response passes
// through a single goroutine so frames are never interleaved.
type outbox struct {
	w    io.Writer
	ch   chan []byte
	done chan struct{}
}

func newOutbox(w io.Writer) *outbox {
	return &outbox{w: w, ch: make(chan []byte, outboxDepth), done: make(chan struct{})}
}

// WriteMessage implements engine.MessageWriter. The response is queued even
// if ctx is already cancelled; only a failed writer drops it.
func (o *outbox) WriteMessage(_ context.Context, msg *jsonrpc.Response) error {
	frame := jsonrpc.Encode(msg)
	select {
	case o.ch <- frame:
		return nil
	case <-o.done:
		return ErrClosed
	}
}

func (o *outbox) run() error {
	defer close(o.done)
	for frame := range o.ch {
		if _, err := o.w.Write(frame); err != nil {
			return &TransportError{Op: "write", Err: err}
		}
	}
	return nil
}

// close flushes queued frames and stops the writer. Callers must ensure no
// further WriteMessage calls happen.
func (o *outbox) close() {
	close(o.ch)
}
