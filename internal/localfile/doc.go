// Package localfile opens, creates and types the local files behind the
// path-based transfer operations. All access goes through a billy filesystem.
package localfile
