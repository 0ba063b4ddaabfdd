// Package pool provides chunk buffer reuse for transfers.
//
// Every chunk of a transfer is staged in a buffer exactly one chunk size long.
// Pooling them by size keeps a long parallel transfer from allocating a fresh
// multi-megabyte slice per chunk.
package pool
