package jsonrpc

import "github.com/ggoodman/canvas-mcp/ident"

// RequestID is a JSON-RPC id. Ids are either strings or non-negative
// integers and are correlated by their canonical string form.
type RequestID = ident.ID

// NewRequestID creates a RequestID from a string or an integer value. Any
// other value yields an absent id.
func NewRequestID(value any) *RequestID {
	id, err := ident.FromValue(value)
	if err != nil {
		return &RequestID{}
	}
	return &id
}
