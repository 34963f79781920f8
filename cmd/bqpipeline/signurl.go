package main

import (
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/mevdschee/bqpipeline/gcs"
)

func newSignURLCommand(logger *log.Logger) *cobra.Command {
	var (
		bucket      string
		prefix      string
		credentials string
		expiry      time.Duration
	)
	cmd := &cobra.Command{
		Use:   "signurl",
		Short: "Generate V4 signed URLs for objects in a Cloud Storage bucket",
		Long: `Generate V4 GET signed URLs for every object under a prefix, one URL per
line. Signing requires service account credentials with a private key.

Example:
  bqpipeline signurl --bucket my-bucket --prefix reports/ --credentials key.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			client, err := gcs.Connect(ctx, gcs.Config{CredentialsFile: credentials}, logger)
			if err != nil {
				return err
			}
			defer client.Close()

			urls, err := client.SignedURLs(ctx, bucket, prefix, expiry)
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Bucket to sign URLs for (required)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Only sign objects under this prefix")
	cmd.Flags().StringVar(&credentials, "credentials", "", "Path to service account JSON credentials")
	cmd.Flags().DurationVar(&expiry, "expiry", 15*time.Minute, "How long the URLs stay valid")

	_ = cmd.MarkFlagRequired("bucket")

	return cmd
}
