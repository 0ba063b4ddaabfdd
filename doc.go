// Package storage transfers data to and from Azure Storage block blobs,
// append blobs and Azure Files.
//
// Large transfers are split into fixed-size chunks and run through a chunked
// transfer engine with per-chunk retries, bounded parallelism and progress
// reporting. Small transfers go out as a single request.
//
// Example:
//
//	client, err := storage.New(storage.SharedKeyCredential{
//	    AccountName: "myaccount",
//	    AccountKey:  os.Getenv("AZURE_STORAGE_KEY"),
//	}, storage.WithLogger(slog.Default()))
//	if err != nil {
//	    return err
//	}
//
//	result, err := client.CreateBlobFromPath(ctx, "backups", "db.tar.gz", "/var/backups/db.tar.gz",
//	    storage.WithMaxConnections(8),
//	    storage.WithProgressFunc(func(current, total int64) {
//	        fmt.Printf("%d/%d\n", current, total)
//	    }),
//	)
package storage
