// Package transfer groups the machinery that moves large payloads in pieces.
//
// The chunked subpackage owns planning, retries, bounded parallelism and
// progress accounting. It knows nothing about Azure or S3: callers hand it a
// function that performs one remote request per chunk.
package transfer
