// Package mcp contains the Model Context Protocol method names and payload
// types spoken by the stdio server. The types mirror the wire representation
// (exported structs with json tags, string constants for method names) and
// carry no transport logic: the stdio package frames them and the engine
// package decides which ones are legal in each connection state.
//
// # Method Names
//
// JSON-RPC method and notification names are enumerated as Method constants
// (e.g. ToolsListMethod). Using the constants keeps a single point of truth
// for the lifecycle table in the engine.
//
// # Protocol Versions
//
// SupportedProtocolVersions lists the revisions the server can speak.
// NegotiateProtocolVersion echoes a client's requested revision when it is
// supported and otherwise answers with LatestProtocolVersion.
//
// Example (tool result construction):
//
//	res := &mcp.CallToolResult{
//	    Content: []mcp.ContentBlock{{Type: mcp.ContentTypeText, Text: "hello"}},
//	}
package mcp
