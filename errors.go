// Package vecadd structured error types for better error handling
package vecadd

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorType represents categories of errors
type ErrorType int

const (
	// Buffer is not accessible to the execution backend
	ErrTypeResidency ErrorType = iota
	// Buffer lengths differ
	ErrTypeShape
	// Buffer element types differ
	ErrTypeDType
	// Memory errors
	ErrTypeMemory
	// Invalid argument errors
	ErrTypeInvalidArg
	// Execution errors
	ErrTypeExecution
)

// Error represents a structured error with context
type Error struct {
	Type    ErrorType
	Op      string // Operation that failed
	Message string // Human-readable message
	Err     error  // Underlying error if any
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("vecadd %s error: %s", e.Type.String(), e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("vecadd %s error in %s: %s (caused by: %v)",
			e.Type.String(), e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("vecadd %s error in %s: %s",
		e.Type.String(), e.Op, e.Message)
}

// Unwrap allows error chain inspection
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same type raised by the same
// operation, so sentinels match errors built with extra detail. A target
// without an operation matches every operation.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Op == "" || t.Op == e.Op)
}

// String returns the error type as a string
func (t ErrorType) String() string {
	switch t {
	case ErrTypeResidency:
		return "Residency"
	case ErrTypeShape:
		return "ShapeMismatch"
	case ErrTypeDType:
		return "DTypeMismatch"
	case ErrTypeMemory:
		return "Memory"
	case ErrTypeInvalidArg:
		return "InvalidArgument"
	case ErrTypeExecution:
		return "Execution"
	default:
		return "Unknown"
	}
}

// NewResidencyError creates an error for a buffer the backend cannot access.
func NewResidencyError(op string, message string) error {
	return &Error{
		Type:    ErrTypeResidency,
		Op:      op,
		Message: message,
	}
}

// NewShapeError creates a length mismatch error
func NewShapeError(op string, message string) error {
	return &Error{
		Type:    ErrTypeShape,
		Op:      op,
		Message: message,
	}
}

// NewDTypeError creates an element type mismatch error
func NewDTypeError(op string, message string) error {
	return &Error{
		Type:    ErrTypeDType,
		Op:      op,
		Message: message,
	}
}

// NewMemoryError creates a memory-related error
func NewMemoryError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeMemory,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// NewInvalidArgError creates an invalid argument error
func NewInvalidArgError(op string, message string) error {
	return &Error{
		Type:    ErrTypeInvalidArg,
		Op:      op,
		Message: message,
	}
}

// NewExecutionError creates an execution error
func NewExecutionError(op string, message string, err error) error {
	return &Error{
		Type:    ErrTypeExecution,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// Common pre-defined errors

var (
	// ErrNotDeviceResident indicates an operand outside device memory, or a
	// released buffer, in any operation
	ErrNotDeviceResident = NewResidencyError("", "buffer is not device resident")

	// ErrShapeMismatch indicates operands of different lengths
	ErrShapeMismatch = NewShapeError("", "buffer lengths differ")

	// ErrDTypeMismatch indicates operands of different element types
	ErrDTypeMismatch = NewDTypeError("", "buffer dtypes differ")

	// ErrInvalidBlockSize indicates a block size that is not a power of two
	ErrInvalidBlockSize = NewInvalidArgError("Launch", "block size must be a positive power of two")

	// ErrInvalidSize indicates invalid size parameter
	ErrInvalidSize = NewInvalidArgError("Malloc", "size must not be negative")

	// ErrDoubleFree indicates double free attempt
	ErrDoubleFree = NewMemoryError("Free", "double free detected", nil)

	// ErrKernelPanicked indicates a kernel program panicked during dispatch
	ErrKernelPanicked = NewExecutionError("Launch", "kernel panicked", nil)
)

func hasType(err error, typ ErrorType) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Type == typ
	}
	return false
}

// IsResidencyError checks if an error is a residency precondition violation
func IsResidencyError(err error) bool {
	return hasType(err, ErrTypeResidency)
}

// IsShapeError checks if an error is a length mismatch
func IsShapeError(err error) bool {
	return hasType(err, ErrTypeShape)
}

// IsDTypeError checks if an error is an element type mismatch
func IsDTypeError(err error) bool {
	return hasType(err, ErrTypeDType)
}

// IsMemoryError checks if an error is a memory error
func IsMemoryError(err error) bool {
	return hasType(err, ErrTypeMemory)
}

// IsInvalidArgError checks if an error is an invalid argument error
func IsInvalidArgError(err error) bool {
	return hasType(err, ErrTypeInvalidArg)
}

// IsExecutionError checks if an error is an execution error
func IsExecutionError(err error) bool {
	return hasType(err, ErrTypeExecution)
}
