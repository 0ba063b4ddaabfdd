package main

import (
	"path"
	"strings"

	"github.com/spf13/cobra"
)

// splitFilePath splits a share path into its directory and file name.
func splitFilePath(p string) (directory, name string) {
	directory, name = path.Split(strings.Trim(p, "/"))
	return strings.TrimSuffix(directory, "/"), name
}

func newFileCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "file",
		Short: "Transfer Azure Files",
	}
	cmd.AddCommand(newFileUploadCommand(a), newFileDownloadCommand(a))
	return cmd
}

func newFileUploadCommand(a *app) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "upload <share> <path> <local-file>",
		Short: "Upload a local file to a file share",
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
			client, err := a.newAzure(cmd.Context())
			if err != nil {
				return err
			}
			dir, name := splitFilePath(args[1])
			res, err := client.CreateFileFromPath(cmd.Context(), args[0], dir, name, src, opts...)
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

func newFileDownloadCommand(a *app) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "download <share> <path> <local-file>",
		Short: "Download a file from a file share",
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
			client, err := a.newAzure(cmd.Context())
			if err != nil {
				return err
			}
			dir, name := splitFilePath(args[1])
			res, err := client.GetFileToPath(cmd.Context(), args[0], dir, name, dst, opts...)
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
