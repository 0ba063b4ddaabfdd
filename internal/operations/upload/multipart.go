package upload

import (
	"bytes"
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	awstypes "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/s3api"
	"github.com/input-output-hk/catalyst-forge-libs/storage/internal/transfer/chunked"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

// MinPartSize is the smallest part S3 accepts for every part but the last.
const MinPartSize = 5 * 1024 * 1024

// PartSize returns the multipart part size used for a configured block size.
func PartSize(blockSize int64) int64 {
	return max(blockSize, MinPartSize)
}

// Object uploads src to S3. A known size below the part size is sent with a
// single PutObject. Otherwise parts are uploaded through the engine and the
// multipart upload is completed, or aborted when any step fails.
func (u *Uploader) Object(
	ctx context.Context,
	api s3api.S3API,
	req Request,
	src io.Reader,
) (*storagetypes.UploadResult, error) {
	start := time.Now()
	partSize := PartSize(u.blockSize)

	if req.Size >= 0 && req.Size < partSize {
		data, err := readSized(src, req.Size)
		if err != nil {
			return nil, err
		}
		return u.putObject(ctx, api, req, data, start)
	}

	plan, err := u.plan(req.Size, partSize)
	if err != nil {
		return nil, err
	}

	created, err := api.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(req.Container),
		Key:         aws.String(req.Name),
		ContentType: optional(req.ContentType),
		Metadata:    req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	uploadID := aws.ToString(created.UploadId)
	u.logger.DebugContext(ctx, "multipart upload created",
		"bucket", req.Container, "key", req.Name, "upload_id", uploadID, "part_size", partSize)

	var (
		mu    sync.Mutex
		parts []awstypes.CompletedPart
	)
	res, err := u.engine(req, false).Upload(ctx, plan, src,
		func(ctx context.Context, c chunked.Chunk, buf []byte) error {
			partNumber := aws.Int32(int32(c.Index + 1))
			output, err := api.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:        aws.String(req.Container),
				Key:           aws.String(req.Name),
				UploadId:      aws.String(uploadID),
				PartNumber:    partNumber,
				Body:          bytes.NewReader(buf),
				ContentLength: aws.Int64(c.Length),
			})
			if err != nil {
				return err
			}
			mu.Lock()
			parts = append(parts, awstypes.CompletedPart{ETag: output.ETag, PartNumber: partNumber})
			mu.Unlock()
			return nil
		},
	)
	if err != nil {
		u.abort(ctx, api, req, uploadID)
		return nil, err
	}
	// S3 refuses to complete an upload with no parts.
	if res.Chunks == 0 {
		u.abort(ctx, api, req, uploadID)
		return u.putObject(ctx, api, req, nil, start)
	}

	sort.Slice(parts, func(i, j int) bool {
		return aws.ToInt32(parts[i].PartNumber) < aws.ToInt32(parts[j].PartNumber)
	})
	completed, err := api.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(req.Container),
		Key:             aws.String(req.Name),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &awstypes.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		u.abort(ctx, api, req, uploadID)
		return nil, err
	}
	return result(req, res.Bytes, res.Chunks, start, aws.ToString(completed.ETag), nil), nil
}

// putObject sends data with a single PutObject.
func (u *Uploader) putObject(
	ctx context.Context,
	api s3api.S3API,
	req Request,
	data []byte,
	start time.Time,
) (*storagetypes.UploadResult, error) {
	size := int64(len(data))
	report(req.Progress, 0, size)
	output, err := api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(req.Container),
		Key:           aws.String(req.Name),
		Body:          bytes.NewReader(data),
		ContentType:   optional(req.ContentType),
		ContentLength: aws.Int64(size),
		Metadata:      req.Metadata,
	})
	if err != nil {
		return nil, err
	}
	report(req.Progress, size, size)
	return result(req, size, 0, start, aws.ToString(output.ETag), nil), nil
}

// abort cleans up a failed multipart upload. It runs even when ctx is done.
func (u *Uploader) abort(ctx context.Context, api s3api.S3API, req Request, uploadID string) {
	_, err := api.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(req.Container),
		Key:      aws.String(req.Name),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		u.logger.WarnContext(ctx, "abort multipart upload failed",
			"bucket", req.Container, "key", req.Name, "upload_id", uploadID, "error", err)
	}
}
