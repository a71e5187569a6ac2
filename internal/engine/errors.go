package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/ggoodman/canvas-mcp/internal/jsonrpc"
	"github.com/ggoodman/canvas-mcp/mcpservice"
	"github.com/ggoodman/canvas-mcp/upstream"
)

var (
	// ErrToolTimeout is reported when a tool exceeds its time budget.
	ErrToolTimeout = errors.New("tool call timed out")
	// ErrCancelled is the cause attached to a call abandoned by the client.
	ErrCancelled = errors.New("operation cancelled")
)

// panicError wraps a value recovered from a tool handler.
type panicError struct {
	value any
}

func (p *panicError) Error() string {
	return fmt.Sprintf("tool handler panic: %v", p.value)
}

// mapError converts a failure from the tool path into the protocol error
// returned to the caller. Messages are limited to what is safe to expose;
// anything unclassified becomes a generic internal error.
func mapError(err error) *jsonrpc.Error {
	var rpcErr *jsonrpc.Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}

	var ipe *mcpservice.InvalidParamsError
	if errors.As(err, &ipe) {
		return jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, ipe.Error(), ipe.Data())
	}

	var nfe *mcpservice.NotFoundError
	if errors.As(err, &nfe) {
		return jsonrpc.NewError(jsonrpc.ErrorCodeMethodNotFound, nfe.Error(), nil)
	}

	if ue, ok := upstream.As(err); ok {
		code := jsonrpc.ErrorCodeUpstreamRejected
		if ue.Retryable() {
			code = jsonrpc.ErrorCodeUpstreamUnavailable
		}
		data := map[string]any{
			"kind":      string(ue.Kind),
			"retryable": ue.Retryable(),
		}
		if ue.Status != 0 {
			data["status"] = ue.Status
		}
		msg := ue.Message
		if msg == "" {
			msg = string(ue.Kind)
		}
		return jsonrpc.NewError(code, msg, data)
	}

	if errors.Is(err, ErrToolTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return jsonrpc.NewError(jsonrpc.ErrorCodeUpstreamUnavailable, ErrToolTimeout.Error(), map[string]any{
			"kind":      "timeout",
			"retryable": true,
		})
	}

	return jsonrpc.NewError(jsonrpc.ErrorCodeInternalError, "internal error", nil)
}
