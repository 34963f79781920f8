// Package bqpipeline provides a convenience layer over the BigQuery Go SDK
// for running templated SQL pipelines.
//
// A Pipeline resolves shorthand TableSpecs ("table", "dataset.table") into
// fully qualified "project.dataset.table" identifiers using configured
// defaults, builds query job configurations from a handful of boolean
// switches, waits for asynchronous jobs to finish, and exports query results
// to Cloud Storage as CSV, newline-delimited JSON or AVRO.
//
// SQL is read from UTF-8 template files and rendered with double-brace
// variable substitution. The ident template function quotes a value as a
// BigQuery identifier, so resolved table specs can be substituted safely:
//
//	SELECT name, count FROM {{ident .source}} WHERE corpus = @corpus
//
// Construction is two-phase: fill in a Config, then Connect.
//
//	cfg := bqpipeline.Config{
//	    JobName:        "daily-report",
//	    DefaultProject: "my-project",
//	    DefaultDataset: "my_dataset",
//	}
//	p, err := bqpipeline.Connect(ctx, nil, cfg, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	opts := bqpipeline.DefaultRunOptions()
//	opts.Vars = map[string]any{"source": "events"}
//	_, err = p.RunQuery(ctx, bqpipeline.QuerySpec{
//	    Path:        "queries/report.sql",
//	    Destination: "gs://my-bucket/reports",
//	}, opts)
//
// Query parameters may be named (map[string]any) or positional ([]any).
// Values are classified into the warehouse parameter kinds (STRING, INT64,
// FLOAT64, NUMERIC, BOOL, BYTES, TIMESTAMP, DATE, plus homogeneous arrays
// and string-keyed structs) and every produced parameter carries an explicit
// type, so nothing relies on server-side inference. Callers that want full
// control can pass a pre-built []bigquery.QueryParameter instead.
package bqpipeline
