// Command bqpipeline runs templated BigQuery queries from the command
// line, optionally exporting the results to Cloud Storage.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := newLogger()
	fsys := afero.NewOsFs()

	if err := newRootCommand(fsys, logger).ExecuteContext(ctx); err != nil {
		logger.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func newLogger() *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		Prefix:          "bqpipeline",
	})
	if os.Getenv("DEBUG") == "1" {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}
