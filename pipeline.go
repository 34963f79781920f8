package bqpipeline

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Config describes a pipeline before it is connected.
type Config struct {
	// JobName prefixes BigQuery job IDs and export paths.
	JobName string

	// Location of the jobs; "US" when empty.
	Location string

	// QueryProject submits the jobs. Detected from the credentials when
	// empty.
	QueryProject string

	// DefaultProject fills TableSpecs that lack a project segment. Falls
	// back to the detected query project when empty.
	DefaultProject string

	// DefaultDataset fills TableSpecs that lack a dataset segment. Only
	// effective together with a default project.
	DefaultDataset string

	// CredentialsFile optionally points at service account JSON
	// credentials.
	CredentialsFile string
}

// Pipeline runs templated SQL queries against BigQuery and exports results
// to Cloud Storage. The client handle and the resolved defaults are set
// during Connect and read-only afterwards. A Pipeline is not safe for
// concurrent use; run independent pipelines for parallel execution.
type Pipeline struct {
	cfg    Config
	fsys   afero.Fs
	logger *log.Logger
	client *bigquery.Client

	defaultProject string
	defaultDataset string
}

// Connect creates the BigQuery client and resolves the pipeline defaults.
// fsys provides the SQL template files; nil means the OS filesystem. When
// no default project is configured it falls back to the project detected
// from the credentials.
func Connect(ctx context.Context, fsys afero.Fs, cfg Config, logger *log.Logger, opts ...option.ClientOption) (*Pipeline, error) {
	if cfg.Location == "" {
		cfg.Location = "US"
	}
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	if logger == nil {
		logger = log.Default()
	}
	if cfg.CredentialsFile != "" {
		opts = append([]option.ClientOption{option.WithCredentialsFile(cfg.CredentialsFile)}, opts...)
	}
	project := cfg.QueryProject
	if project == "" {
		project = bigquery.DetectProjectID
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to bigquery: %w", err)
	}
	client.Location = cfg.Location

	defaultProject := cfg.DefaultProject
	if defaultProject == "" {
		defaultProject = client.Project()
	}
	return &Pipeline{
		cfg:            cfg,
		fsys:           fsys,
		logger:         logger.With("job_name", cfg.JobName, "run_id", uuid.NewString()),
		client:         client,
		defaultProject: defaultProject,
		defaultDataset: cfg.DefaultDataset,
	}, nil
}

// Close releases the underlying client.
func (p *Pipeline) Close() error {
	return p.client.Close()
}

// DefaultProject returns the project used to fill partial TableSpecs.
func (p *Pipeline) DefaultProject() string {
	return p.defaultProject
}

// ResolveTable resolves a partial TableSpec against the pipeline defaults.
func (p *Pipeline) ResolveTable(spec string) string {
	return ResolveTableSpec(spec, p.defaultProject, p.defaultDataset)
}

// ResolveDataset resolves a partial DatasetSpec against the default project.
func (p *Pipeline) ResolveDataset(spec string) string {
	return ResolveDatasetSpec(spec, p.defaultProject)
}

// BuildJobConfig builds the configuration for one query submission using
// the pipeline defaults, without touching the network.
func (p *Pipeline) BuildJobConfig(opts JobOptions, dest string, params any) (JobConfig, error) {
	return BuildJobConfig(opts, dest, p.defaultProject, p.defaultDataset, params)
}

// QuerySpec names one templated query and its optional destination.
type QuerySpec struct {
	// Path to the SQL template file.
	Path string

	// Destination is a TableSpec, a gs:// path, or empty to discard
	// results.
	Destination string

	// Params are named (map[string]any) or positional ([]any) query
	// parameters, or a pre-built []bigquery.QueryParameter.
	Params any
}

// RunOptions controls how a query runs.
type RunOptions struct {
	JobOptions

	// Wait blocks until the job reaches a terminal state. Exports always
	// wait.
	Wait bool

	// Timeout bounds each wait; zero means no bound.
	Timeout time.Duration

	// ExportFormat selects the encoding for gs:// destinations.
	ExportFormat Format

	// Vars are substituted into the SQL template.
	Vars map[string]any
}

// DefaultRunOptions returns the standard run behavior: default job
// switches, wait for completion, CSV exports.
func DefaultRunOptions() RunOptions {
	return RunOptions{JobOptions: DefaultJobOptions(), Wait: true, ExportFormat: FormatCSV}
}

// DefaultRunQueriesOptions returns the standard behavior for query
// sequences: as DefaultRunOptions, but with batch priority since a
// sequence is bulk work that should yield to interactive queries.
func DefaultRunQueriesOptions() RunOptions {
	opts := DefaultRunOptions()
	opts.Batch = true
	return opts
}

// RunQuery renders the SQL template at spec.Path and submits it as a query
// job. With a gs:// destination the finished result table is exported in
// the requested format. Errors are logged once with the operation name and
// returned unchanged.
func (p *Pipeline) RunQuery(ctx context.Context, spec QuerySpec, opts RunOptions) (*bigquery.Job, error) {
	job, err := p.runQuery(ctx, spec, opts)
	if err != nil {
		p.logger.Error("Query failed", "op", "run_query", "path", spec.Path, "error", err)
		return nil, err
	}
	return job, nil
}

func (p *Pipeline) runQuery(ctx context.Context, spec QuerySpec, opts RunOptions) (*bigquery.Job, error) {
	text, err := ReadSQL(p.fsys, spec.Path)
	if err != nil {
		return nil, err
	}
	sql, err := RenderSQL(filepath.Base(spec.Path), text, opts.Vars)
	if err != nil {
		return nil, err
	}
	cfg, err := p.BuildJobConfig(opts.JobOptions, spec.Destination, spec.Params)
	if err != nil {
		return nil, err
	}

	q := p.client.Query(sql)
	q.JobID = p.cfg.JobName
	q.AddJobIDSuffix = true
	cfg.apply(q, p.client)

	job, err := q.Run(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Executing query", "path", spec.Path, "job_id", job.ID())

	isGCS := IsGCSPath(spec.Destination)
	if opts.Wait || isGCS {
		if err := p.waitForJob(ctx, job, opts.Timeout); err != nil {
			return nil, err
		}
		p.logger.Info("Finished query", "path", spec.Path, "job_id", job.ID())
	}

	if isGCS {
		src, err := p.queryDestination(job)
		if err != nil {
			return nil, err
		}
		exportOpts := ExportOptions{Timeout: opts.Timeout}
		if err := p.exportTable(ctx, src, spec.Destination, opts.ExportFormat, exportOpts); err != nil {
			return nil, err
		}
	}
	return job, nil
}

// RunQueries executes the specs sequentially in order with one shared set
// of options; see DefaultRunQueriesOptions for the usual starting point.
// The first failure aborts the remaining sequence; the jobs submitted so
// far are returned.
func (p *Pipeline) RunQueries(ctx context.Context, specs []QuerySpec, opts RunOptions) ([]*bigquery.Job, error) {
	jobs := make([]*bigquery.Job, 0, len(specs))
	for _, spec := range specs {
		job, err := p.RunQuery(ctx, spec, opts)
		if err != nil {
			return jobs, err
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

// CopyOptions controls table copies.
type CopyOptions struct {
	// Overwrite truncates the destination; when false it must not exist.
	Overwrite bool
	// Wait blocks until the copy job completes.
	Wait bool
	// Timeout bounds the wait; zero means no bound.
	Timeout time.Duration
}

// DefaultCopyOptions returns the standard copy behavior: overwrite, wait.
func DefaultCopyOptions() CopyOptions {
	return CopyOptions{Overwrite: true, Wait: true}
}

// CopyTable copies src to dest, resolving both against the pipeline
// defaults.
func (p *Pipeline) CopyTable(ctx context.Context, src, dest string, opts CopyOptions) (*bigquery.Job, error) {
	job, err := p.copyTable(ctx, src, dest, opts)
	if err != nil {
		p.logger.Error("Copy failed", "op", "copy_table", "src", src, "dest", dest, "error", err)
		return nil, err
	}
	return job, nil
}

func (p *Pipeline) copyTable(ctx context.Context, src, dest string, opts CopyOptions) (*bigquery.Job, error) {
	srcSpec := p.ResolveTable(src)
	destSpec := p.ResolveTable(dest)
	srcTable, err := p.tableHandle(srcSpec)
	if err != nil {
		return nil, err
	}
	destTable, err := p.tableHandle(destSpec)
	if err != nil {
		return nil, err
	}

	copier := destTable.CopierFrom(srcTable)
	copier.JobID = p.cfg.JobName
	copier.AddJobIDSuffix = true
	if opts.Overwrite {
		copier.WriteDisposition = bigquery.WriteTruncate
	} else {
		copier.WriteDisposition = bigquery.WriteEmpty
	}

	job, err := copier.Run(ctx)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Copying table", "src", srcSpec, "dest", destSpec, "job_id", job.ID())
	if opts.Wait {
		if err := p.waitForJob(ctx, job, opts.Timeout); err != nil {
			return nil, err
		}
		p.logger.Info("Finished copying table", "src", srcSpec, "dest", destSpec, "job_id", job.ID())
	}
	return job, nil
}

// DeleteTable deletes the table named by spec, resolved against the
// pipeline defaults.
func (p *Pipeline) DeleteTable(ctx context.Context, spec string) error {
	resolved := p.ResolveTable(spec)
	table, err := p.tableHandle(resolved)
	if err != nil {
		p.logger.Error("Delete failed", "op", "delete_table", "table", resolved, "error", err)
		return err
	}
	p.logger.Info("Deleting table", "table", resolved)
	if err := table.Delete(ctx); err != nil {
		p.logger.Error("Delete failed", "op", "delete_table", "table", resolved, "error", err)
		return err
	}
	return nil
}

// DeleteTables deletes the tables in order, stopping at the first failure.
func (p *Pipeline) DeleteTables(ctx context.Context, specs []string) error {
	for _, spec := range specs {
		if err := p.DeleteTable(ctx, spec); err != nil {
			return err
		}
	}
	return nil
}

// CreateDataset creates the dataset named by spec, resolved against the
// default project. An already-existing dataset is tolerated when existsOK
// is set.
func (p *Pipeline) CreateDataset(ctx context.Context, spec string, existsOK bool) error {
	resolved := p.ResolveDataset(spec)
	project, dataset, ok := splitDatasetSpec(resolved)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrPartialDatasetSpec, resolved)
		p.logger.Error("Create dataset failed", "op", "create_dataset", "dataset", resolved, "error", err)
		return err
	}
	md := &bigquery.DatasetMetadata{Location: p.cfg.Location}
	if err := p.client.DatasetInProject(project, dataset).Create(ctx, md); err != nil {
		var apiErr *googleapi.Error
		if existsOK && errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict {
			return nil
		}
		p.logger.Error("Create dataset failed", "op", "create_dataset", "dataset", resolved, "error", err)
		return err
	}
	p.logger.Info("Created dataset", "dataset", resolved)
	return nil
}

// tableHandle turns a fully qualified TableSpec into a table handle. The
// SDK addresses tables by their three segments, so an unresolved spec is
// reported here instead of by the service.
func (p *Pipeline) tableHandle(spec string) (*bigquery.Table, error) {
	project, dataset, table, ok := splitTableSpec(spec)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPartialTableSpec, spec)
	}
	return p.client.DatasetInProject(project, dataset).Table(table), nil
}

// waitForJob blocks until the job reaches a terminal state, bounded by
// timeout when non-zero. A job that completed with an error surfaces that
// error.
func (p *Pipeline) waitForJob(ctx context.Context, job *bigquery.Job, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return err
	}
	return status.Err()
}

// queryDestination reports the result table of a completed query job. For
// queries without an explicit destination this is the server-assigned
// temporary table.
func (p *Pipeline) queryDestination(job *bigquery.Job) (string, error) {
	cfg, err := job.Config()
	if err != nil {
		return "", err
	}
	qc, ok := cfg.(*bigquery.QueryConfig)
	if !ok || qc.Dst == nil {
		return "", fmt.Errorf("query job %s has no destination table", job.ID())
	}
	return qc.Dst.ProjectID + "." + qc.Dst.DatasetID + "." + qc.Dst.TableID, nil
}
