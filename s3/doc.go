// Package s3 runs the chunked transfer engine against Amazon S3 and
// S3-compatible services.
//
// Uploads below the part size are sent with a single PutObject. Larger or
// unsized uploads become multipart uploads whose parts are sent through the
// engine, and the upload is aborted when a part exhausts its retries.
// Downloads issue ranged GetObject requests pinned to the object's ETag.
//
// Transfer options are shared with the Azure client:
//
//	client, err := s3.New(ctx, s3.WithRegion("eu-central-1"))
//	if err != nil {
//	    return err
//	}
//	_, err = client.Upload(ctx, "bucket", "backups/db.tar", f, size,
//	    storage.WithMaxConnections(8),
//	    storage.WithMaxRetries(3),
//	)
package s3
