// Package validation provides centralized input validation logic.
// This includes container, share and bucket names, blob and file names,
// metadata, content types and byte ranges.
//
// All inputs are validated before any request is sent so that naming
// mistakes surface as ErrInvalidInput instead of opaque service errors.
package validation
