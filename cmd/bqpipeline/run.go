package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/user"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/mevdschee/bqpipeline"
)

type runFlags struct {
	queryFile      string
	gcsDestination string
	destination    string
	exportFormat   string
	paramsJSON     string
	varsJSON       string

	jobName        string
	queryProject   string
	defaultProject string
	defaultDataset string
	location       string
	credentials    string

	batch       bool
	noWait      bool
	noCreate    bool
	noOverwrite bool
	appendRows  bool
	timeout     time.Duration
}

func newRunCommand(fsys afero.Fs, logger *log.Logger) *cobra.Command {
	var flags runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Render a SQL template and run it as a BigQuery job",
		Long: `Render a SQL template file with double-brace variable substitution and
submit it as a BigQuery query job.

With --gcs-destination the query results are exported to Cloud Storage in
the requested format; with --destination they are written to a table.

Example:
  bqpipeline run --query-file report.sql --gcs-destination gs://bucket/reports
  bqpipeline run --query-file load.sql --destination mydataset.mytable --params '{"day":"2026-08-25"}'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), fsys, logger, flags)
		},
	}

	cmd.Flags().StringVar(&flags.queryFile, "query-file", "", "Path to the SQL template file (required)")
	cmd.Flags().StringVar(&flags.gcsDestination, "gcs-destination", "", "gs:// path to export query results to")
	cmd.Flags().StringVar(&flags.destination, "destination", "", "Destination TableSpec for query results")
	cmd.Flags().StringVar(&flags.exportFormat, "export-format", "CSV", "Export format: CSV | AVRO | JSON")
	cmd.Flags().StringVar(&flags.paramsJSON, "params", "", "Query parameters as a JSON object (named) or array (positional)")
	cmd.Flags().StringVar(&flags.varsJSON, "vars", "", "Template variables as a JSON object")
	cmd.Flags().StringVar(&flags.jobName, "job-name", defaultJobName(), "Job name used as job ID and export path prefix")
	cmd.Flags().StringVar(&flags.queryProject, "query-project", "", "Project that submits the jobs (detected from credentials when empty)")
	cmd.Flags().StringVar(&flags.defaultProject, "project", "", "Default project for partial TableSpecs")
	cmd.Flags().StringVar(&flags.defaultDataset, "dataset", "", "Default dataset for partial TableSpecs")
	cmd.Flags().StringVar(&flags.location, "location", "US", "BigQuery location")
	cmd.Flags().StringVar(&flags.credentials, "credentials", "", "Path to service account JSON credentials")
	cmd.Flags().BoolVar(&flags.batch, "batch", false, "Submit with batch priority")
	cmd.Flags().BoolVar(&flags.noWait, "no-wait", false, "Do not wait for job completion")
	cmd.Flags().BoolVar(&flags.noCreate, "no-create", false, "Require the destination table to already exist")
	cmd.Flags().BoolVar(&flags.noOverwrite, "no-overwrite", false, "Do not truncate the destination table")
	cmd.Flags().BoolVar(&flags.appendRows, "append", false, "Append to the destination table (with --no-overwrite)")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", 20*time.Minute, "Wait timeout per job (0 for no bound)")

	_ = cmd.MarkFlagRequired("query-file")
	cmd.MarkFlagsMutuallyExclusive("gcs-destination", "destination")

	return cmd
}

func runPipeline(ctx context.Context, fsys afero.Fs, logger *log.Logger, flags runFlags) error {
	format, err := bqpipeline.ParseFormat(flags.exportFormat)
	if err != nil {
		return err
	}
	params, err := decodeParams(flags.paramsJSON)
	if err != nil {
		return err
	}
	vars, err := decodeVars(flags.varsJSON)
	if err != nil {
		return err
	}

	p, err := bqpipeline.Connect(ctx, fsys, bqpipeline.Config{
		JobName:         flags.jobName,
		Location:        flags.location,
		QueryProject:    flags.queryProject,
		DefaultProject:  flags.defaultProject,
		DefaultDataset:  flags.defaultDataset,
		CredentialsFile: flags.credentials,
	}, logger)
	if err != nil {
		return err
	}
	defer p.Close()

	opts := bqpipeline.DefaultRunOptions()
	opts.Batch = flags.batch
	opts.Create = !flags.noCreate
	opts.Overwrite = !flags.noOverwrite
	opts.Append = flags.appendRows
	opts.Wait = !flags.noWait
	opts.Timeout = flags.timeout
	opts.ExportFormat = format
	opts.Vars = vars

	dest := flags.destination
	if flags.gcsDestination != "" {
		dest = flags.gcsDestination
	}
	_, err = p.RunQuery(ctx, bqpipeline.QuerySpec{
		Path:        flags.queryFile,
		Destination: dest,
		Params:      params,
	}, opts)
	return err
}

// decodeParams decodes the --params JSON into named or positional
// parameters. Numbers decode as json.Number so integers stay INT64.
func decodeParams(s string) (any, error) {
	if s == "" {
		return nil, nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decoding --params: %w", err)
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	}
	return nil, fmt.Errorf("--params must be a JSON object or array, got %T", v)
}

// decodeVars decodes the --vars JSON object for template substitution.
func decodeVars(s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var vars map[string]any
	if err := json.Unmarshal([]byte(s), &vars); err != nil {
		return nil, fmt.Errorf("decoding --vars: %w", err)
	}
	return vars, nil
}

func defaultJobName() string {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "bqpipeline-cli-job"
	}
	return u.Username + "-cli-job"
}
