// Package operations contains the request-level building blocks behind the
// public clients. Each subpackage turns a transfer into SDK calls, delegating
// chunked work to the transfer engine.
package operations
