// Package stdio implements a single-connection MCP transport over
// stdin/stdout. It is intended for embedding the server as a subprocess of
// an MCP client.
//
// Characteristics
//
//	Connection model : 1 process <-> 1 client
//	Framing          : newline-delimited JSON-RPC 2.0, one message per line
//	Output           : protocol frames only; diagnostics go to the logger
//	Concurrency      : tool calls run concurrently, one goroutine owns stdout
//
// Options allow supplying alternate io.Reader / io.Writer, a logger, and the
// engine settings (cache, timeouts, in-flight bound).
//
// Example:
//
//	tools, _ := mcpservice.NewToolsContainer(myTool)
//	h := stdio.NewHandler(tools, stdio.WithLogger(diag))
//	if err := h.Serve(ctx); err != nil { ... }
package stdio
