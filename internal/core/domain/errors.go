package domain

import "fmt"

// TransportError wraps a network/timeout failure talking to a backend or
// collaborator. Retried only on the next scheduled cycle.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ResponseError marks a malformed or infeasible optimizer response. Control
// must not be applied; the previous result is retained.
type ResponseError struct {
	Source string
	Reason string
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("bad %s response: %s", e.Source, e.Reason)
}

// ValidationError rejects bad mode/duration/power input before any state
// mutation.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// DriverError marks a failed hardware command. The previous commanded state
// is assumed to still hold; the next cycle retries.
type DriverError struct {
	Op  string
	Err error
}

func (e *DriverError) Error() string {
	return fmt.Sprintf("driver error: %s: %v", e.Op, e.Err)
}

func (e *DriverError) Unwrap() error { return e.Err }
