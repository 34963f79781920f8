package bqpipeline

import (
	"fmt"

	"cloud.google.com/go/bigquery"
)

// JobOptions holds the boolean switches that shape a query job.
type JobOptions struct {
	// Batch submits with batch priority instead of interactive.
	Batch bool
	// Create allows the destination table to be created; when false it
	// must already exist.
	Create bool
	// Overwrite truncates the destination table.
	Overwrite bool
	// Append appends to the destination table when Overwrite is false.
	// With both false the destination table must be empty.
	Append bool
}

// DefaultJobOptions returns the standard switches: interactive priority,
// create if needed, overwrite.
func DefaultJobOptions() JobOptions {
	return JobOptions{Create: true, Overwrite: true}
}

// JobConfig is the fully resolved configuration for one query submission.
// It is built fresh per query and never mutated afterwards.
type JobConfig struct {
	Priority          bigquery.QueryPriority
	CreateDisposition bigquery.TableCreateDisposition
	WriteDisposition  bigquery.TableWriteDisposition

	// Destination is the fully qualified destination TableSpec. Empty when
	// the query has no destination or when the destination is a gs:// path,
	// which is handled by the export step instead.
	Destination string

	// DefaultProjectID and DefaultDatasetID qualify partial table names
	// inside the SQL itself. Set only when both defaults are configured.
	DefaultProjectID string
	DefaultDatasetID string

	Parameters []bigquery.QueryParameter
}

// BuildJobConfig assembles a JobConfig from boolean switches, an optional
// destination and the configured defaults. A table destination that cannot
// be resolved to three segments is rejected with ErrPartialTableSpec;
// otherwise the results would land in a discarded temporary table. It is
// pure: validation failures abort before any network call is made.
func BuildJobConfig(opts JobOptions, dest, defaultProject, defaultDataset string, params any) (JobConfig, error) {
	cfg := JobConfig{
		Priority:          bigquery.InteractivePriority,
		CreateDisposition: bigquery.CreateIfNeeded,
		WriteDisposition:  bigquery.WriteEmpty,
	}
	if opts.Batch {
		cfg.Priority = bigquery.BatchPriority
	}
	if !opts.Create {
		cfg.CreateDisposition = bigquery.CreateNever
	}
	if opts.Overwrite {
		cfg.WriteDisposition = bigquery.WriteTruncate
	} else if opts.Append {
		cfg.WriteDisposition = bigquery.WriteAppend
	}
	if dest != "" && !IsGCSPath(dest) {
		resolved := ResolveTableSpec(dest, defaultProject, defaultDataset)
		if _, _, _, ok := splitTableSpec(resolved); !ok {
			return JobConfig{}, fmt.Errorf("%w: %q", ErrPartialTableSpec, resolved)
		}
		cfg.Destination = resolved
	}
	if defaultProject != "" && defaultDataset != "" {
		cfg.DefaultProjectID = defaultProject
		cfg.DefaultDatasetID = defaultDataset
	}
	qp, err := Params(params)
	if err != nil {
		return JobConfig{}, err
	}
	cfg.Parameters = qp
	return cfg, nil
}

// apply copies the configuration onto a query. The destination table
// handle needs the client, so this is the only non-pure step.
func (cfg JobConfig) apply(q *bigquery.Query, client *bigquery.Client) {
	q.Priority = cfg.Priority
	q.CreateDisposition = cfg.CreateDisposition
	q.WriteDisposition = cfg.WriteDisposition
	q.DefaultProjectID = cfg.DefaultProjectID
	q.DefaultDatasetID = cfg.DefaultDatasetID
	q.Parameters = cfg.Parameters
	if project, dataset, table, ok := splitTableSpec(cfg.Destination); ok {
		q.Dst = client.DatasetInProject(project, dataset).Table(table)
	}
}
