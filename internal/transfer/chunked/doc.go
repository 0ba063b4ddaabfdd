// Package chunked implements range-based chunked transfers.
//
// A Plan splits [0, size) into fixed-size chunks with a short final chunk.
// An Engine runs one caller-supplied request per chunk, either sequentially in
// index order or on a bounded pool of workers, retries each failing chunk with
// a fixed delay, and reports cumulative progress after every successful chunk.
//
// Parallel runs need positioned I/O on the local stream. A stream that cannot
// provide it fails with ErrNotSeekable before any request is issued. When one
// chunk exhausts its retries, chunks already in flight finish their current
// attempt, nothing new is dispatched, and the first failure is returned.
package chunked
