package logctx

import (
	"context"
	"log/slog"
)

// Handler decorates records with the rpc and tool context attached to ctx.
type Handler struct {
	slog.Handler
}

func (h Handler) Handle(ctx context.Context, r slog.Record) error {
	if msg, ok := ctx.Value(rpcMsg{}).(*RPCMessage); ok {
		r.AddAttrs(slog.Group("rpc",
			slog.String("method", msg.Method),
			slog.String("id", msg.ID),
			slog.String("type", msg.Type),
		))
	}

	if td, ok := ctx.Value(toolCallDataKey{}).(*ToolCallData); ok {
		attrs := []any{slog.String("name", td.ToolName)}
		if td.CacheKey != "" {
			attrs = append(attrs, slog.String("cache_key", td.CacheKey))
		}
		r.AddAttrs(slog.Group("tool", attrs...))
	}

	return h.Handler.Handle(ctx, r)
}

func (h Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return Handler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h Handler) WithGroup(name string) slog.Handler {
	return Handler{Handler: h.Handler.WithGroup(name)}
}

type rpcMsg struct{}

type RPCMessage struct {
	Method string
	ID     string
	Type   string
}

func WithRPCMessage(ctx context.Context, msg *RPCMessage) context.Context {
	return context.WithValue(ctx, rpcMsg{}, msg)
}

type toolCallDataKey struct{}

type ToolCallData struct {
	ToolName string
	CacheKey string
}

func WithToolCallData(ctx context.Context, data *ToolCallData) context.Context {
	return context.WithValue(ctx, toolCallDataKey{}, data)
}

// ToolCallDataFrom returns the tool call data attached to ctx, if any.
func ToolCallDataFrom(ctx context.Context) (*ToolCallData, bool) {
	td, ok := ctx.Value(toolCallDataKey{}).(*ToolCallData)
	return td, ok
}
