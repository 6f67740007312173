package session

import "fmt"

// ValidationError indicates bad input to Start. It is returned before any
// network action is taken.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// TransportError indicates the subscription could not open or dropped
// unexpectedly. It resets the session to idle with a user-visible message.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("stream transport failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError indicates a frame that could not be parsed. Treated as
// fatal, equivalent to a fatal-error event with a generic message.
type ProtocolError struct {
	Frame string
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("malformed stream frame: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
