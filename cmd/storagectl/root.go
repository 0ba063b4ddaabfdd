package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// flagKeys maps persistent flags to configuration keys.
var flagKeys = map[string]string{
	"account":         "account.name",
	"auth":            "account.auth",
	"account-key":     "account.key",
	"key-secret-id":   "account.key_secret_id",
	"sas-token":       "account.sas_token",
	"blob-endpoint":   "account.blob_endpoint",
	"file-endpoint":   "account.file_endpoint",
	"emulator":        "account.emulator",
	"max-connections": "transfer.max_connections",
	"max-retries":     "transfer.max_retries",
	"retry-wait":      "transfer.retry_wait",
	"region":          "s3.region",
	"s3-endpoint":     "s3.endpoint",
	"path-style":      "s3.path_style",
	"part-size":       "s3.part_size",
	"log-level":       "log.level",
	"log-file":        "log.file",
}

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storagectl",
		Short:         "Chunked transfers for Azure Storage and S3",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (yaml, json or toml)")
	flags.BoolVarP(&a.quiet, "quiet", "q", false, "do not show a progress bar")

	flags.String("account", "", "storage account name")
	flags.String("auth", "shared-key", "authentication: shared-key, sas, anonymous or token")
	flags.String("account-key", "", "storage account key")
	flags.String("key-secret-id", "", "AWS Secrets Manager secret holding the account key")
	flags.String("sas-token", "", "SAS token")
	flags.String("blob-endpoint", "", "blob service URL")
	flags.String("file-endpoint", "", "file service URL")
	flags.Bool("emulator", false, "use the local Azurite emulator")
	flags.Int("max-connections", 1, "parallel chunk requests per transfer")
	flags.Int("max-retries", 5, "attempts per chunk")
	flags.Duration("retry-wait", 0, "wait between attempts (default 1s)")
	flags.String("region", "", "AWS region")
	flags.String("s3-endpoint", "", "S3 endpoint URL")
	flags.Bool("path-style", false, "use path-style S3 addressing")
	flags.Int64("part-size", 0, "S3 multipart part size in bytes (default 8 MiB)")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-file", "", "also write logs to this rotating file")

	flags.VisitAll(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			_ = a.v.BindPFlag(key, f)
		}
	})

	cmd.AddCommand(newBlobCommand(a), newFileCommand(a), newS3Command(a))
	return cmd
}
