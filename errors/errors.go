// Package errors provides error types and handling for storage transfers.
package errors

import (
	"errors"
	"fmt"
)

// Error represents a storage operation error with context about the operation that failed.
type Error struct {
	// Op is the operation that failed (e.g., "createBlob", "getFile", "upload")
	Op string

	// Container is the blob container, file share or bucket (if applicable)
	Container string

	// Name is the blob name, file path or object key (if applicable)
	Name string

	// Err is the underlying error
	Err error
}

// Error implements the error interface by providing a formatted error message.
func (e *Error) Error() string {
	if e.Container != "" && e.Name != "" {
		return fmt.Sprintf("storage.%s %s/%s: %v", e.Op, e.Container, e.Name, e.Err)
	}
	if e.Container != "" {
		return fmt.Sprintf("storage.%s container %s: %v", e.Op, e.Container, e.Err)
	}
	if e.Name != "" {
		return fmt.Sprintf("storage.%s %s: %v", e.Op, e.Name, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error chaining support.
func (e *Error) Unwrap() error {
	return e.Err
}

// WithContainer adds container context to an existing error.
func (e *Error) WithContainer(container string) *Error {
	e.Container = container
	return e
}

// WithName adds blob or file name context to an existing error.
func (e *Error) WithName(name string) *Error {
	e.Name = name
	return e
}

// WithMessage wraps the underlying error with a custom message.
func (e *Error) WithMessage(message string) *Error {
	e.Err = fmt.Errorf("%s: %w", message, e.Err)
	return e
}

// NewError creates a new Error with the given operation and underlying error.
func NewError(op string, err error) *Error {
	return &Error{
		Op:  op,
		Err: err,
	}
}

// NewObjectError creates a new Error with container and name context.
func NewObjectError(op, container, name string, err error) *Error {
	return &Error{
		Op:        op,
		Container: container,
		Name:      name,
		Err:       err,
	}
}

// ChunkError reports a chunk that failed every attempt of its retry budget.
// It matches ErrChunkFailed with errors.Is.
type ChunkError struct {
	// Index is the zero-based chunk index
	Index int

	// Offset is the chunk's starting byte offset within the transfer
	Offset int64

	// Length is the chunk's length in bytes
	Length int64

	// Attempts is the number of attempts made
	Attempts int

	// Err is the error returned by the last attempt
	Err error
}

func (e *ChunkError) Error() string {
	return fmt.Sprintf("chunk %d [%d, %d) failed after %d attempt(s): %v",
		e.Index, e.Offset, e.Offset+e.Length, e.Attempts, e.Err)
}

// Unwrap returns the last attempt's error.
func (e *ChunkError) Unwrap() error {
	return e.Err
}

// Is reports whether target is ErrChunkFailed.
func (e *ChunkError) Is(target error) bool {
	return target == ErrChunkFailed
}

// Sentinel errors for common storage failures.
// These can be used with errors.Is() for error checking.
var (
	// ErrNotFound indicates that the requested blob, file or object does not exist
	ErrNotFound = errors.New("storage: not found")

	// ErrContainerNotFound indicates that the container, share or bucket does not exist
	ErrContainerNotFound = errors.New("storage: container not found")

	// ErrInvalidInput indicates that the provided input is invalid
	ErrInvalidInput = errors.New("storage: invalid input")

	// ErrNotSeekable indicates that parallel transfer needs positioned reads or writes
	ErrNotSeekable = errors.New("storage: stream is not seekable")

	// ErrChunkFailed indicates that a chunk exhausted its retries
	ErrChunkFailed = errors.New("storage: chunk failed")

	// ErrCancelled indicates that the transfer was cancelled by its context
	ErrCancelled = errors.New("storage: transfer cancelled")

	// ErrUnsupportedCredential indicates the credential cannot be used with the service
	ErrUnsupportedCredential = errors.New("storage: unsupported credential")
)

// IsNotFound checks if an error indicates that a blob, file or object was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsChunkFailed checks if an error indicates that a chunk exhausted its retries.
func IsChunkFailed(err error) bool {
	return errors.Is(err, ErrChunkFailed)
}

// IsNotSeekable checks if an error indicates a non-seekable stream in parallel mode.
func IsNotSeekable(err error) bool {
	return errors.Is(err, ErrNotSeekable)
}

// IsCancelled checks if an error indicates that the transfer was cancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

// AsChunkError returns the ChunkError in err's chain, if any.
func AsChunkError(err error) (*ChunkError, bool) {
	var ce *ChunkError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}
