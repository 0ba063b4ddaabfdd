package main

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-libs/storage"
	"github.com/input-output-hk/catalyst-forge-libs/storage/storagetypes"
)

// transferFlags are the per-command flags shared by uploads and downloads.
type transferFlags struct {
	contentType string
	metadata    map[string]string
	byteRange   string
}

func addUploadFlags(cmd *cobra.Command, f *transferFlags) {
	cmd.Flags().StringVar(&f.contentType, "content-type", "", "content type (detected when empty)")
	cmd.Flags().StringToStringVar(&f.metadata, "metadata", nil, "metadata as key=value pairs")
}

func addDownloadFlags(cmd *cobra.Command, f *transferFlags) {
	cmd.Flags().StringVar(&f.byteRange, "range", "", "inclusive byte range START-END or START-")
}

// transferOptions turns the flags into transfer options and attaches a
// progress bar unless --quiet is set.
func (a *app) transferOptions(label string, f *transferFlags) ([]storagetypes.TransferOption, error) {
	var opts []storagetypes.TransferOption
	if !a.quiet {
		opts = append(opts, storage.WithProgress(newProgressTracker(a.stderr, label)))
	}
	if f.contentType != "" {
		opts = append(opts, storage.WithContentType(f.contentType))
	}
	if len(f.metadata) > 0 {
		opts = append(opts, storage.WithMetadata(f.metadata))
	}
	if f.byteRange != "" {
		start, end, err := parseRange(f.byteRange)
		if err != nil {
			return nil, err
		}
		opts = append(opts, storage.WithRange(start, end))
	}
	return opts, nil
}

// parseRange parses "START-END" or the open-ended "START-".
func parseRange(s string) (start, end int64, err error) {
	from, to, ok := strings.Cut(s, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid range %q: want START-END or START-", s)
	}
	if start, err = strconv.ParseInt(from, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid range start %q: %w", from, err)
	}
	if to == "" {
		return start, -1, nil
	}
	if end, err = strconv.ParseInt(to, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid range end %q: %w", to, err)
	}
	return start, end, nil
}

// localPath makes p absolute; the client filesystem is rooted at /.
func localPath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("invalid local path %q: %w", p, err)
	}
	return abs, nil
}

func (a *app) reportUpload(res *storagetypes.UploadResult) {
	fmt.Fprintf(a.stdout, "uploaded %d bytes to %s/%s in %s\n",
		res.Size, res.Container, res.Name, res.Duration.Round(time.Millisecond))
}

func (a *app) reportDownload(res *storagetypes.DownloadResult, dst string) {
	fmt.Fprintf(a.stdout, "downloaded %d bytes from %s/%s to %s in %s\n",
		res.Size, res.Container, res.Name, dst, res.Duration.Round(time.Millisecond))
}
