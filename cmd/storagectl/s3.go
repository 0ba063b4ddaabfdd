package main

import (
	"github.com/spf13/cobra"
)

func newS3Command(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "s3",
		Short: "Transfer S3 objects",
	}
	cmd.AddCommand(newS3UploadCommand(a), newS3DownloadCommand(a))
	return cmd
}

func newS3UploadCommand(a *app) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "upload <bucket> <key> <local-file>",
		Short: "Upload a local file to S3",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := localPath(args[2])
			if err != nil {
				return err
			}
			opts, err := a.transferOptions("uploading "+args[1], &f)
			if err != nil {
				return err
			}
			client, err := a.newS3(cmd.Context())
			if err != nil {
				return err
			}
			res, err := client.UploadFromPath(cmd.Context(), args[0], args[1], src, opts...)
			if err != nil {
				return err
			}
			a.reportUpload(res)
			return nil
		},
	}
	addUploadFlags(cmd, &f)
	return cmd
}

func newS3DownloadCommand(a *app) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "download <bucket> <key> <local-file>",
		Short: "Download an S3 object to a local file",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			dst, err := localPath(args[2])
			if err != nil {
				return err
			}
			opts, err := a.transferOptions("downloading "+args[1], &f)
			if err != nil {
				return err
			}
			client, err := a.newS3(cmd.Context())
			if err != nil {
				return err
			}
			res, err := client.DownloadToPath(cmd.Context(), args[0], args[1], dst, opts...)
			if err != nil {
				return err
			}
			a.reportDownload(res, dst)
			return nil
		},
	}
	addDownloadFlags(cmd, &f)
	return cmd
}
