package mcpservice

import "fmt"

// NotFoundError indicates a requested tool doesn't exist.
// It results in a JSON-RPC "Method not found" error.
type NotFoundError struct {
	Type string // "tool" or "method"
	Name string // identifier that wasn't found
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Type, e.Name)
}

// InvalidParamsError indicates that the provided parameters are invalid.
// It results in a JSON-RPC "Invalid params" error whose data names the field
// and, for type mismatches, the expected and actual kinds.
type InvalidParamsError struct {
	Field    string // which field is invalid
	Reason   string // why it's invalid
	Expected string // accepted kinds, e.g. "string|integer"
	Actual   string // kind that was supplied
}

func (e *InvalidParamsError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid parameter %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid parameters: %s", e.Reason)
}

// Data returns the structured payload attached to the protocol error.
func (e *InvalidParamsError) Data() map[string]any {
	d := map[string]any{"field": e.Field}
	if e.Expected != "" {
		d["expected"] = e.Expected
	}
	if e.Actual != "" {
		d["actual"] = e.Actual
	}
	return d
}
