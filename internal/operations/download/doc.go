// Package download handles block blob, Azure Files and S3 downloads.
//
// Sequential downloads and ranges below the single-get threshold are served by
// one streamed request. Larger ranges in parallel mode are split into ranged
// requests pinned to the remote ETag and written at their offsets.
package download
