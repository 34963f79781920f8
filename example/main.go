package main

import (
	"context"
	"os"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mevdschee/bqpipeline"
)

func main() {
	ctx := context.Background()
	logger := log.New(os.Stderr)

	// Connect once; the client handle is reused for the pipeline's lifetime.
	p, err := bqpipeline.Connect(ctx, nil, bqpipeline.Config{
		JobName:        "daily-report",
		DefaultProject: "my-project",
		DefaultDataset: "my_dataset",
	}, logger)
	if err != nil {
		logger.Fatal("Connect failed", "error", err)
	}
	defer p.Close()

	// Example 1: run a templated query into a destination table. Partial
	// TableSpecs resolve against the configured defaults, so "events_daily"
	// becomes "my-project.my_dataset.events_daily".
	opts := bqpipeline.DefaultRunOptions()
	opts.Timeout = 10 * time.Minute
	opts.Vars = map[string]any{"source": "my_dataset.events"}
	_, err = p.RunQuery(ctx, bqpipeline.QuerySpec{
		Path:        "queries/rollup.sql",
		Destination: "events_daily",
		Params:      map[string]any{"min_count": 10},
	}, opts)
	if err != nil {
		logger.Fatal("Query failed", "error", err)
	}

	// Example 2: export query results straight to Cloud Storage as
	// newline-delimited JSON.
	opts = bqpipeline.DefaultRunOptions()
	opts.ExportFormat = bqpipeline.FormatJSON
	_, err = p.RunQuery(ctx, bqpipeline.QuerySpec{
		Path:        "queries/report.sql",
		Destination: "gs://my-bucket/reports",
	}, opts)
	if err != nil {
		logger.Fatal("Export failed", "error", err)
	}

	// Example 3: run a sequence with batch priority; the first failure
	// aborts the rest.
	_, err = p.RunQueries(ctx, []bqpipeline.QuerySpec{
		{Path: "queries/stage.sql", Destination: "staging_table"},
		{Path: "queries/final.sql", Destination: "final_table"},
	}, bqpipeline.DefaultRunQueriesOptions())
	if err != nil {
		logger.Fatal("Sequence failed", "error", err)
	}

	// Example 4: copy and clean up.
	if _, err := p.CopyTable(ctx, "final_table", "backup.final_table", bqpipeline.DefaultCopyOptions()); err != nil {
		logger.Fatal("Copy failed", "error", err)
	}
	if err := p.DeleteTables(ctx, []string{"staging_table"}); err != nil {
		logger.Fatal("Delete failed", "error", err)
	}
}
