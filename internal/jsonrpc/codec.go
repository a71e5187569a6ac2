package jsonrpc

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// envelope mirrors AnyMessage but keeps every member raw so that absence,
// null and malformed values can be told apart, and so that a badly typed
// member does not prevent the id from being recovered.
type envelope struct {
	JSONRPCVersion json.RawMessage `json:"jsonrpc"`
	Method         json.RawMessage `json:"method"`
	Params         json.RawMessage `json:"params"`
	Result         json.RawMessage `json:"result"`
	Error          json.RawMessage `json:"error"`
	ID             json.RawMessage `json:"id"`
}

var jsonNull = []byte("null")

// present reports whether a member was supplied with a non-null value.
func present(raw json.RawMessage) bool {
	return len(raw) > 0 && !bytes.Equal(raw, jsonNull)
}

// Decode parses one frame into a message.
//
// It fails with ErrorCodeParseError when the frame is not well-formed JSON and
// with ErrorCodeInvalidRequest when the JSON does not describe a JSON-RPC 2.0
// message. When the failure is an InvalidRequest and the id could still be
// recovered, the returned message is non-nil and carries that id so the caller
// can correlate the error response.
func Decode(frame []byte) (*AnyMessage, *Error) {
	frame = bytes.TrimSpace(frame)
	if !json.Valid(frame) {
		return nil, NewError(ErrorCodeParseError, "parse error", nil)
	}
	switch frame[0] {
	case '{':
	case '[':
		return nil, NewError(ErrorCodeInvalidRequest, "batch requests are not supported", nil)
	default:
		return nil, NewError(ErrorCodeInvalidRequest, "message must be a JSON object", nil)
	}

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, NewError(ErrorCodeInvalidRequest, "invalid request envelope", nil)
	}

	msg := &AnyMessage{JSONRPCVersion: ProtocolVersion}
	if present(env.ID) {
		var id RequestID
		if err := json.Unmarshal(env.ID, &id); err != nil {
			return nil, NewError(ErrorCodeInvalidRequest, "invalid request id", nil)
		}
		msg.ID = &id
	}

	var version string
	if !present(env.JSONRPCVersion) || json.Unmarshal(env.JSONRPCVersion, &version) != nil || version != ProtocolVersion {
		return msg, NewError(ErrorCodeInvalidRequest, fmt.Sprintf("jsonrpc version must be %q", ProtocolVersion), nil)
	}

	var rpcErr *Error
	if present(env.Error) {
		if err := json.Unmarshal(env.Error, &rpcErr); err != nil || rpcErr == nil {
			return msg, NewError(ErrorCodeInvalidRequest, "error must be an object", nil)
		}
	}
	hasResult := len(env.Result) > 0
	hasError := rpcErr != nil

	if present(env.Method) {
		var method string
		if err := json.Unmarshal(env.Method, &method); err != nil {
			return msg, NewError(ErrorCodeInvalidRequest, "method must be a string", nil)
		}
		if method == "" {
			return msg, NewError(ErrorCodeInvalidRequest, "missing method", nil)
		}
		if hasResult || hasError {
			return msg, NewError(ErrorCodeInvalidRequest, "request message cannot have result or error fields", nil)
		}
		if len(env.Params) > 0 && env.Params[0] != '{' && env.Params[0] != '[' && !bytes.Equal(env.Params, jsonNull) {
			return msg, NewError(ErrorCodeInvalidRequest, "params must be an object or array", nil)
		}
		msg.Method = method
		if !bytes.Equal(env.Params, jsonNull) {
			msg.Params = env.Params
		}
		return msg, nil
	}

	// Without a method the frame must be a response to something we sent.
	if !hasResult && !hasError {
		return msg, NewError(ErrorCodeInvalidRequest, "missing method", nil)
	}
	if hasResult && hasError {
		return msg, NewError(ErrorCodeInvalidRequest, "response message cannot have both result and error fields", nil)
	}
	if msg.ID == nil {
		return msg, NewError(ErrorCodeInvalidRequest, "response message requires an id", nil)
	}
	msg.Result = env.Result
	msg.Error = rpcErr
	return msg, nil
}

// Encode renders a message as a single newline-terminated frame. Messages are
// built internally from encodable values, so a marshal failure is a
// programming error.
func Encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("jsonrpc: encode %T: %v", v, err))
	}
	return append(b, '\n')
}
