// Package mcpservice provides the tool-side building blocks of the server:
// a registry of tool descriptors, typed tool construction from Go argument
// structs, and the validator that turns loosely typed call arguments into a
// canonical form.
//
// Quick start:
//
//	type EchoArgs struct {
//	    Message string `json:"message" jsonschema:"description=Text to echo"`
//	}
//	echo := mcpservice.NewTool[EchoArgs]("echo",
//	    func(ctx context.Context, w mcpservice.ToolResponseWriter, r *mcpservice.ToolRequest[EchoArgs]) error {
//	        return w.AppendText(r.Args().Message)
//	    },
//	    mcpservice.WithToolDescription("Echo a message back to the caller"),
//	    mcpservice.WithToolCacheTTL(time.Minute),
//	)
//	tools, err := mcpservice.NewToolsContainer(echo)
//
// Fields typed as ident.ID accept either a string or a non-negative integer
// on the wire and reach the handler in canonical form, so both spellings of
// the same identifier share one cache entry.
package mcpservice
