// Package upload handles block blob, append blob, Azure Files and S3 uploads.
//
// Small uploads of known size go out in a single request. Everything else is
// split into chunks and driven through the chunked transfer engine, which
// stages blocks, appends blocks, writes file ranges or uploads multipart parts.
package upload
