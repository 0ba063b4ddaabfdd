// Command storagectl moves files between the local disk and Azure Storage
// blobs, Azure file shares or S3 buckets using chunked, retried transfers.
//
// Usage:
//
//	storagectl blob upload <container> <blob> <local-file>
//	storagectl blob download <container> <blob> <local-file>
//	storagectl blob append <container> <blob> <local-file>
//	storagectl file upload <share> <path> <local-file>
//	storagectl file download <share> <path> <local-file>
//	storagectl s3 upload <bucket> <key> <local-file>
//	storagectl s3 download <bucket> <key> <local-file>
//
// Settings come from flags, STORAGECTL_* environment variables, a .env file
// and an optional config file, in that order of precedence.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(newApp()).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
