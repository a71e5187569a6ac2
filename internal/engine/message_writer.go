package engine

import (
	"context"

	"github.com/ggoodman/canvas-mcp/internal/jsonrpc"
)

// MessageWriter delivers responses to the peer. Implementations must be safe
// for concurrent use; the stdio transport funnels every call into its single
// writer goroutine.
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg *jsonrpc.Response) error
}

type MessageWriterFunc func(ctx context.Context, msg *jsonrpc.Response) error

func NewMessageWriterFunc(f func(ctx context.Context, msg *jsonrpc.Response) error) MessageWriterFunc {
	return f
}

func (f MessageWriterFunc) WriteMessage(ctx context.Context, msg *jsonrpc.Response) error {
	return f(ctx, msg)
}
