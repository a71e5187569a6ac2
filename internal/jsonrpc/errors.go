package jsonrpc

import "fmt"

// ErrorCode is a JSON-RPC 2.0 error code.
type ErrorCode int

const (
	// ErrorCodeParseError indicates invalid JSON was received by the server.
	ErrorCodeParseError ErrorCode = -32700
	// ErrorCodeInvalidRequest indicates the JSON sent is not a valid Request object,
	// or that the request is not acceptable in the current protocol state.
	ErrorCodeInvalidRequest ErrorCode = -32600
	// ErrorCodeMethodNotFound indicates the method or tool does not exist.
	ErrorCodeMethodNotFound ErrorCode = -32601
	// ErrorCodeInvalidParams indicates invalid method parameters.
	ErrorCodeInvalidParams ErrorCode = -32602
	// ErrorCodeInternalError indicates an unclassified server or handler fault.
	ErrorCodeInternalError ErrorCode = -32603

	// ErrorCodeUpstreamUnavailable indicates a transient failure reaching the
	// upstream API. The caller may retry.
	ErrorCodeUpstreamUnavailable ErrorCode = -32001
	// ErrorCodeUpstreamRejected indicates the upstream API refused the request
	// (authorization, permission or not-found). Retrying will not help.
	ErrorCodeUpstreamRejected ErrorCode = -32002
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeParseError:
		return "ParseError"
	case ErrorCodeInvalidRequest:
		return "InvalidRequest"
	case ErrorCodeMethodNotFound:
		return "MethodNotFound"
	case ErrorCodeInvalidParams:
		return "InvalidParams"
	case ErrorCodeInternalError:
		return "InternalError"
	case ErrorCodeUpstreamUnavailable:
		return "UpstreamUnavailable"
	case ErrorCodeUpstreamRejected:
		return "UpstreamRejected"
	default:
		return fmt.Sprintf("ErrorCode(%d)", int(c))
	}
}

// Error is a JSON-RPC error object.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Data    any       `json:"data,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("jsonrpc %s (%d): %s", e.Code, int(e.Code), e.Message)
}

// NewError builds an error object with the given code.
func NewError(code ErrorCode, message string, data any) *Error {
	return &Error{Code: code, Message: message, Data: data}
}
