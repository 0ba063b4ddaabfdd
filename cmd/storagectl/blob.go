package main

import (
	"github.com/spf13/cobra"
)

func newBlobCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blob",
		Short: "Transfer block and append blobs",
	}
	cmd.AddCommand(newBlobUploadCommand(a), newBlobDownloadCommand(a), newBlobAppendCommand(a))
	return cmd
}

func newBlobUploadCommand(a *app) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "upload <container> <blob> <local-file>",
		Short: "Upload a local file as a block blob",
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
			res, err := client.CreateBlobFromPath(cmd.Context(), args[0], args[1], src, opts...)
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

func newBlobDownloadCommand(a *app) *cobra.Command {
	var f transferFlags
	cmd := &cobra.Command{
		Use:   "download <container> <blob> <local-file>",
		Short: "Download a blob to a local file",
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
			res, err := client.GetBlobToPath(cmd.Context(), args[0], args[1], dst, opts...)
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

func newBlobAppendCommand(a *app) *cobra.Command {
	var (
		f      transferFlags
		create bool
	)
	cmd := &cobra.Command{
		Use:   "append <container> <blob> <local-file>",
		Short: "Append a local file to an append blob",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := localPath(args[2])
			if err != nil {
				return err
			}
			opts, err := a.transferOptions("appending to "+args[1], &f)
			if err != nil {
				return err
			}
			client, err := a.newAzure(cmd.Context())
			if err != nil {
				return err
			}
			if create {
				if _, err := client.CreateAppendBlob(cmd.Context(), args[0], args[1], opts...); err != nil {
					return err
				}
			}
			res, err := client.AppendBlobFromPath(cmd.Context(), args[0], args[1], src, opts...)
			if err != nil {
				return err
			}
			a.reportUpload(res)
			return nil
		},
	}
	addUploadFlags(cmd, &f)
	cmd.Flags().BoolVar(&create, "create", false, "create (or replace) the append blob first")
	return cmd
}
