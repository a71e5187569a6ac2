package stdio

import (
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned when writing after the output stream shut down.
	ErrClosed = errors.New("stdio: output closed")

	errFrameTooLarge = errors.New("stdio: frame exceeds maximum size")
)

// TransportError reports an unrecoverable failure of the input or output
// stream.
type TransportError struct {
	Op  string // "read" or "write"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stdio %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
