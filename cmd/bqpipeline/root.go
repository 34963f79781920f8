package main

import (
	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

func newRootCommand(fsys afero.Fs, logger *log.Logger) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "bqpipeline",
		Short:         "Run templated BigQuery pipelines and export results to Cloud Storage",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(newRunCommand(fsys, logger))
	rootCmd.AddCommand(newSignURLCommand(logger))
	return rootCmd
}
