package errors

import "errors"

// ErrorCode classifies a storage failure. Codes are string-based so they can be
// logged and surfaced by the CLI without further translation.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates the blob, file or object does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeContainerNotFound indicates the container, share or bucket does not exist.
	CodeContainerNotFound ErrorCode = "CONTAINER_NOT_FOUND"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeNotSeekable indicates a parallel transfer was requested on a stream
	// without positioned I/O.
	CodeNotSeekable ErrorCode = "NOT_SEEKABLE"

	// CodeUnsupportedCredential indicates the credential cannot be used for the service.
	CodeUnsupportedCredential ErrorCode = "UNSUPPORTED_CREDENTIAL"

	// Transfer errors.

	// CodeChunkFailed indicates a chunk exhausted its retry budget.
	CodeChunkFailed ErrorCode = "CHUNK_FAILED"

	// CodeCancelled indicates the caller cancelled the transfer.
	CodeCancelled ErrorCode = "CANCELLED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

var codeSentinels = []struct {
	err  error
	code ErrorCode
}{
	{ErrCancelled, CodeCancelled},
	{ErrChunkFailed, CodeChunkFailed},
	{ErrNotSeekable, CodeNotSeekable},
	{ErrUnsupportedCredential, CodeUnsupportedCredential},
	{ErrContainerNotFound, CodeContainerNotFound},
	{ErrNotFound, CodeNotFound},
	{ErrInvalidInput, CodeInvalidInput},
}

// CodeOf returns the code of the first sentinel found in err's chain.
// A nil error has no code.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, s := range codeSentinels {
		if errors.Is(err, s.err) {
			return s.code
		}
	}
	return CodeUnknown
}
