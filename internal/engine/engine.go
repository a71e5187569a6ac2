package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ggoodman/canvas-mcp/cache"
	"github.com/ggoodman/canvas-mcp/internal/jsonrpc"
	"github.com/ggoodman/canvas-mcp/internal/logctx"
	"github.com/ggoodman/canvas-mcp/mcp"
	"github.com/ggoodman/canvas-mcp/mcpservice"
	"golang.org/x/sync/semaphore"
)

const (
	defaultToolTimeout = 30 * time.Second
	defaultMaxInFlight = 16
)

// State is the connection lifecycle state.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateShuttingDown
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateShuttingDown:
		return "shutting_down"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Engine dispatches decoded messages for a single connection. Lifecycle
// methods are answered synchronously on the caller's goroutine so that state
// transitions are ordered with the input stream; tool calls run on their own
// goroutines and reply through the MessageWriter when they finish.
type Engine struct {
	tools *mcpservice.ToolsContainer
	out   MessageWriter
	cache cache.Cache
	log   *slog.Logger

	serverInfo   mcp.ImplementationInfo
	instructions string
	toolTimeout  time.Duration
	maxInFlight  int64

	sem   *semaphore.Weighted
	state atomic.Int32

	mu         sync.Mutex
	negotiated string
	inflight   map[string]*call // canonical request id -> call
	wg         sync.WaitGroup
}

// call tracks one in-flight tool invocation.
type call struct {
	id        string
	cancel    context.CancelCauseFunc
	cancelled atomic.Bool
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger for the Engine.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithCache enables response caching for tools registered with a cache TTL.
func WithCache(c cache.Cache) EngineOption {
	return func(e *Engine) { e.cache = c }
}

// WithServerInfo sets the implementation info returned from initialize.
func WithServerInfo(info mcp.ImplementationInfo) EngineOption {
	return func(e *Engine) { e.serverInfo = info }
}

// WithInstructions sets the instructions returned from initialize.
func WithInstructions(s string) EngineOption {
	return func(e *Engine) { e.instructions = s }
}

// WithToolTimeout sets the time budget for tools that do not declare their own.
func WithToolTimeout(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.toolTimeout = d
		}
	}
}

// WithMaxInFlight bounds the number of tool handlers executing at once.
// Calls beyond the bound wait for a slot; they are still tracked and
// cancellable while waiting.
func WithMaxInFlight(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.maxInFlight = int64(n)
		}
	}
}

// NewEngine constructs an engine serving tools and replying through out.
func NewEngine(tools *mcpservice.ToolsContainer, out MessageWriter, opts ...EngineOption) *Engine {
	e := &Engine{
		tools:       tools,
		out:         out,
		log:         slog.New(slog.DiscardHandler),
		serverInfo:  mcp.ImplementationInfo{Name: "canvas-mcp", Version: "dev"},
		toolTimeout: defaultToolTimeout,
		maxInFlight: defaultMaxInFlight,
		inflight:    make(map[string]*call),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.sem = semaphore.NewWeighted(e.maxInFlight)
	return e
}

// State reports the current lifecycle state.
func (e *Engine) State() State {
	return State(e.state.Load())
}

// ProtocolVersion reports the version negotiated during initialize.
func (e *Engine) ProtocolVersion() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.negotiated
}

func (e *Engine) transition(ctx context.Context, from, to State) bool {
	if !e.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	e.log.InfoContext(ctx, "engine.state.transition", slog.String("from", from.String()), slog.String("to", to.String()))
	return true
}

// BeginShutdown stops the engine from accepting new requests. In-flight
// calls keep running; use Drain to wait for them.
func (e *Engine) BeginShutdown(ctx context.Context) {
	for {
		s := e.State()
		if s >= StateShuttingDown {
			return
		}
		if e.transition(ctx, s, StateShuttingDown) {
			return
		}
	}
}

// Drain waits for in-flight calls to finish and closes the engine. If ctx
// ends first, the remaining calls are cancelled and Drain returns ctx's
// error once they have unwound.
func (e *Engine) Drain(ctx context.Context) error {
	e.BeginShutdown(ctx)

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		e.mu.Lock()
		for _, c := range e.inflight {
			c.cancel(err)
		}
		e.mu.Unlock()
		<-done
	}
	e.transition(ctx, StateShuttingDown, StateClosed)
	return err
}

// Dispatch handles one decoded message.
func (e *Engine) Dispatch(ctx context.Context, msg *jsonrpc.AnyMessage) {
	switch msg.Type() {
	case jsonrpc.TypeRequest:
		e.handleRequest(ctx, msg.AsRequest())
	case jsonrpc.TypeNotification:
		e.handleNotification(ctx, msg.AsRequest())
	default:
		// The server never issues requests, so there is nothing to correlate.
		res := msg.AsResponse()
		e.log.DebugContext(ctx, "engine.handle_response.ignored",
			slog.String("id", res.ID.String()),
			slog.Bool("is_error", res.Error != nil),
		)
	}
}

func (e *Engine) reply(ctx context.Context, res *jsonrpc.Response) {
	if err := e.out.WriteMessage(ctx, res); err != nil {
		e.log.ErrorContext(ctx, "engine.write.fail", slog.String("err", err.Error()))
	}
}

func (e *Engine) replyError(ctx context.Context, id *jsonrpc.RequestID, rpcErr *jsonrpc.Error) {
	e.reply(ctx, jsonrpc.NewErrorObjectResponse(id, rpcErr))
}

func (e *Engine) replyResult(ctx context.Context, id *jsonrpc.RequestID, result any) {
	res, err := jsonrpc.NewResultResponse(id, result)
	if err != nil {
		e.log.ErrorContext(ctx, "engine.handle_request.fail", slog.String("err", err.Error()))
		e.replyError(ctx, id, jsonrpc.NewError(jsonrpc.ErrorCodeInternalError, "internal error", nil))
		return
	}
	e.reply(ctx, res)
}

func (e *Engine) handleRequest(ctx context.Context, req *jsonrpc.Request) {
	start := time.Now()
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{
		Method: req.Method,
		ID:     req.ID.String(),
		Type:   jsonrpc.TypeRequest,
	})
	log := e.log.With(slog.String("method", req.Method))

	method := mcp.Method(req.Method)
	tool, isTool := e.tools.Lookup(req.Method)
	switch method {
	case mcp.InitializeMethod, mcp.PingMethod, mcp.ToolsListMethod, mcp.ToolsCallMethod, mcp.ShutdownMethod:
	default:
		if !isTool {
			log.InfoContext(ctx, "engine.handle_request.not_found", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeMethodNotFound, fmt.Sprintf("method not found: %s", req.Method), nil))
			return
		}
	}

	switch state := e.State(); {
	case state >= StateShuttingDown:
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "shutting down"))
		e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "server shutting down", nil))
		return
	case state == StateUninitialized && method != mcp.InitializeMethod:
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "not initialized"))
		e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "server not initialized", nil))
		return
	case state == StateReady && method == mcp.InitializeMethod:
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "already initialized"))
		e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "server already initialized", nil))
		return
	}

	e.mu.Lock()
	_, dup := e.inflight[req.ID.String()]
	e.mu.Unlock()
	if dup {
		log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "duplicate request id"))
		e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "duplicate request id", nil))
		return
	}

	switch method {
	case mcp.InitializeMethod:
		e.handleInitialize(ctx, log, start, req)
	case mcp.PingMethod:
		e.replyResult(ctx, req.ID, mcp.EmptyResult{})
	case mcp.ToolsListMethod:
		tools := e.tools.List()
		log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()), slog.Int("tool_count", len(tools)))
		e.replyResult(ctx, req.ID, mcp.ListToolsResult{Tools: tools})
	case mcp.ShutdownMethod:
		e.BeginShutdown(ctx)
		log.InfoContext(ctx, "engine.handle_request.ok", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		e.replyResult(ctx, req.ID, mcp.EmptyResult{})
	case mcp.ToolsCallMethod:
		var params mcp.CallToolRequestReceived
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
				e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "invalid params", map[string]any{"field": "params"}))
				return
			}
		}
		if params.Name == "" {
			log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", "missing tool name"), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "invalid parameter name: required field is missing", map[string]any{"field": "name"}))
			return
		}
		named, ok := e.tools.Lookup(params.Name)
		if !ok {
			log.InfoContext(ctx, "engine.handle_request.not_found", slog.String("tool", params.Name), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			e.replyError(ctx, req.ID, mapError(&mcpservice.NotFoundError{Type: "tool", Name: params.Name}))
			return
		}
		e.startToolCall(ctx, req.ID, named, params.Arguments)
	default:
		// A registered tool name used directly as the method.
		e.startToolCall(ctx, req.ID, tool, req.Params)
	}
}

func (e *Engine) handleInitialize(ctx context.Context, log *slog.Logger, start time.Time, req *jsonrpc.Request) {
	var params mcp.InitializeRequest
	if len(req.Params) > 0 {
		if err := json.Unmarshal(req.Params, &params); err != nil {
			log.InfoContext(ctx, "engine.handle_request.invalid", slog.String("err", err.Error()), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
			e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidParams, "invalid params", nil))
			return
		}
	}

	version := mcp.NegotiateProtocolVersion(params.ProtocolVersion)
	if !e.transition(ctx, StateUninitialized, StateReady) {
		e.replyError(ctx, req.ID, jsonrpc.NewError(jsonrpc.ErrorCodeInvalidRequest, "server already initialized", nil))
		return
	}
	e.mu.Lock()
	e.negotiated = version
	e.mu.Unlock()

	res := &mcp.InitializeResult{
		ProtocolVersion: version,
		Capabilities: mcp.ServerCapabilities{
			Tools: &mcp.ToolsCapability{ListChanged: false},
		},
		ServerInfo:   e.serverInfo,
		Instructions: e.instructions,
	}
	log.InfoContext(ctx, "engine.handle_request.ok",
		slog.Int64("dur_ms", time.Since(start).Milliseconds()),
		slog.String("requested_version", params.ProtocolVersion),
		slog.String("protocol_version", version),
		slog.String("client", params.ClientInfo.Name),
		slog.String("client_version", params.ClientInfo.Version),
		slog.Int("tool_count", e.tools.Len()),
	)
	e.replyResult(ctx, req.ID, res)
}

func (e *Engine) handleNotification(ctx context.Context, note *jsonrpc.Request) {
	ctx = logctx.WithRPCMessage(ctx, &logctx.RPCMessage{Method: note.Method, Type: jsonrpc.TypeNotification})

	switch mcp.Method(note.Method) {
	case mcp.InitializedNotificationMethod:
		e.log.InfoContext(ctx, "engine.handle_notification.ok")
	case mcp.CancelledNotificationMethod:
		var params mcp.CancelledNotification
		if err := json.Unmarshal(note.Params, &params); err != nil {
			e.log.InfoContext(ctx, "engine.handle_notification.invalid", slog.String("err", err.Error()))
			return
		}
		if e.cancelInFlightRequest(params.RequestID.String(), params.Reason) {
			e.log.InfoContext(ctx, "engine.handle_notification.ok", slog.String("request_id", params.RequestID.String()))
		} else {
			e.log.DebugContext(ctx, "engine.handle_notification.cancel_unknown", slog.String("request_id", params.RequestID.String()))
		}
	case mcp.ShutdownMethod:
		e.BeginShutdown(ctx)
	default:
		e.log.DebugContext(ctx, "engine.handle_notification.ignored")
	}
}

// cancelInFlightRequest marks the call abandoned and cancels its context.
// The call will not produce a response.
func (e *Engine) cancelInFlightRequest(reqID string, reason string) bool {
	if reqID == "" {
		return false
	}
	e.mu.Lock()
	c, exists := e.inflight[reqID]
	e.mu.Unlock()
	if !exists {
		return false
	}
	if reason == "" {
		reason = ErrCancelled.Error()
	}
	c.cancelled.Store(true)
	c.cancel(fmt.Errorf("%w: %s", ErrCancelled, reason))
	return true
}

// startToolCall registers the call and runs it on a new goroutine. The
// registration happens before returning so a cancellation that follows on
// the input stream always finds it.
func (e *Engine) startToolCall(ctx context.Context, id *jsonrpc.RequestID, tool mcpservice.StaticTool, args json.RawMessage) {
	ctx = logctx.WithToolCallData(ctx, &logctx.ToolCallData{ToolName: tool.Descriptor.Name})
	// Calls outlive the read loop so that EOF and shutdown can drain them.
	callCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	c := &call{id: id.String(), cancel: cancel}

	e.mu.Lock()
	e.inflight[c.id] = c
	e.mu.Unlock()
	e.wg.Add(1)

	go func() {
		defer e.wg.Done()
		defer func() {
			e.forget(c)
			cancel(context.Canceled)
		}()
		e.runToolCall(callCtx, c, id, tool, args)
	}()
}

// forget releases the call's id. It runs before the reply is queued so a
// client may reuse the id as soon as it sees the response; a later call
// registered under the same id is left alone.
func (e *Engine) forget(c *call) {
	e.mu.Lock()
	if e.inflight[c.id] == c {
		delete(e.inflight, c.id)
	}
	e.mu.Unlock()
}

func (e *Engine) runToolCall(ctx context.Context, c *call, id *jsonrpc.RequestID, tool mcpservice.StaticTool, args json.RawMessage) {
	start := time.Now()
	log := e.log.With(slog.String("method", string(mcp.ToolsCallMethod)))

	if err := e.sem.Acquire(ctx, 1); err != nil {
		log.InfoContext(ctx, "engine.handle_request.cancelled", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return
	}
	result, hit, err := e.callTool(ctx, tool, args)
	e.sem.Release(1)

	if c.cancelled.Load() {
		log.InfoContext(ctx, "engine.handle_request.cancelled", slog.Int64("dur_ms", time.Since(start).Milliseconds()))
		return
	}
	if err != nil {
		rpcErr := mapError(err)
		level := slog.LevelInfo
		if rpcErr.Code == jsonrpc.ErrorCodeInternalError {
			level = slog.LevelError
		}
		log.Log(ctx, level, "engine.handle_request.fail",
			slog.String("err", err.Error()),
			slog.Int("code", int(rpcErr.Code)),
			slog.Int64("dur_ms", time.Since(start).Milliseconds()),
		)
		e.forget(c)
		e.replyError(ctx, id, rpcErr)
		return
	}
	log.InfoContext(ctx, "engine.handle_request.ok", slog.Bool("cache_hit", hit), slog.Int64("dur_ms", time.Since(start).Milliseconds()))
	e.forget(c)
	e.reply(ctx, jsonrpc.NewRawResultResponse(id, result))
}

// callTool validates, consults the cache, and invokes the handler. The
// returned bytes are the encoded CallToolResult; a cache hit returns exactly
// the bytes stored by the call that populated it.
func (e *Engine) callTool(ctx context.Context, tool mcpservice.StaticTool, raw json.RawMessage) (json.RawMessage, bool, error) {
	args, err := mcpservice.ValidateArguments(tool.Descriptor.InputSchema, raw)
	if err != nil {
		return nil, false, err
	}

	var key string
	if tool.Cacheable() && e.cache != nil {
		key, err = cache.Key(tool.Descriptor.Name, args)
		if err != nil {
			return nil, false, err
		}
		if td, ok := logctx.ToolCallDataFrom(ctx); ok {
			td.CacheKey = key
		}
		if b, ok, err := e.cache.Get(ctx, key); err != nil {
			e.log.WarnContext(ctx, "engine.cache.get_fail", slog.String("err", err.Error()))
		} else if ok {
			return b, true, nil
		}
	}

	timeout := tool.Timeout
	if timeout <= 0 {
		timeout = e.toolTimeout
	}
	tctx, cancel := context.WithTimeoutCause(ctx, timeout, ErrToolTimeout)
	defer cancel()

	res, err := invoke(tctx, tool, args)
	if err != nil {
		if errors.Is(context.Cause(tctx), ErrToolTimeout) && errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s: %w", tool.Descriptor.Name, ErrToolTimeout)
		}
		return nil, false, err
	}
	if res == nil {
		res = &mcp.CallToolResult{}
	}
	if res.Content == nil {
		res.Content = []mcp.ContentBlock{}
	}
	b, err := json.Marshal(res)
	if err != nil {
		return nil, false, fmt.Errorf("encode result: %w", err)
	}

	if key != "" && !res.IsError {
		if err := e.cache.Put(ctx, key, b, tool.CacheTTL); err != nil {
			e.log.WarnContext(ctx, "engine.cache.put_fail", slog.String("err", err.Error()))
		}
	}
	return b, false, nil
}

// invoke runs the handler, converting a panic into an error.
func invoke(ctx context.Context, tool mcpservice.StaticTool, args map[string]any) (res *mcp.CallToolResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, &panicError{value: r}
		}
	}()
	return tool.Handler(ctx, args)
}
