package logging

import "fmt"

// OperationError annotates an error with the pipeline operation that produced it.
type OperationError struct {
	Operation string
	Frame     uint64
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	if e == nil || e.Err == nil {
		return ""
	}
	if e.Frame > 0 {
		return fmt.Sprintf("%s (frame=%d): %v", e.Operation, e.Frame, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *OperationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOperationError wraps an error with the operation and frame sequence number.
func NewOperationError(operation string, frame uint64, err error) error {
	if err == nil {
		return nil
	}
	return &OperationError{Operation: operation, Frame: frame, Err: err}
}
