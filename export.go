package bqpipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
)

// Format selects the encoding for exports to Cloud Storage.
type Format string

// Supported export formats.
const (
	FormatCSV  Format = "CSV"
	FormatJSON Format = "JSON"
	FormatAvro Format = "AVRO"
)

// ErrUnknownFormat is returned for export formats other than CSV, JSON and
// AVRO.
var ErrUnknownFormat = errors.New("unknown export format")

// ParseFormat parses a format name, case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToUpper(s)); f {
	case FormatCSV, FormatJSON, FormatAvro:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

func (f Format) extension() string {
	return strings.ToLower(string(f))
}

// ExportOptions controls exports to Cloud Storage.
type ExportOptions struct {
	// Delimiter separates CSV fields; "," when empty.
	Delimiter string

	// NoHeader drops the CSV header row.
	NoHeader bool

	// Compression applies to AVRO output; snappy when empty. CSV and JSON
	// are always uncompressed.
	Compression bigquery.Compression

	// Timeout bounds the wait for the extract job; zero means no bound.
	Timeout time.Duration
}

// exportPath appends the job name, a run-time partition segment and a
// wildcard filename to the caller-supplied gs:// path.
func exportPath(gcsPath, jobName string, now time.Time, ext string) string {
	return fmt.Sprintf("%s/%s/jobRunTime=%s/%s-export-*.%s",
		strings.TrimSuffix(gcsPath, "/"), jobName,
		now.Format("2006-01-02T150405"), jobName, ext)
}

// ExportCSV exports a table to Cloud Storage as CSV. Errors are logged
// once with the operation name and returned unchanged.
func (p *Pipeline) ExportCSV(ctx context.Context, table, gcsPath string, opts ExportOptions) error {
	if err := p.exportTable(ctx, table, gcsPath, FormatCSV, opts); err != nil {
		p.logger.Error("Extract failed", "op", "export_csv", "table", table, "error", err)
		return err
	}
	return nil
}

// ExportJSON exports a table to Cloud Storage as newline-delimited JSON.
func (p *Pipeline) ExportJSON(ctx context.Context, table, gcsPath string, opts ExportOptions) error {
	if err := p.exportTable(ctx, table, gcsPath, FormatJSON, opts); err != nil {
		p.logger.Error("Extract failed", "op", "export_json", "table", table, "error", err)
		return err
	}
	return nil
}

// ExportAvro exports a table to Cloud Storage as AVRO, snappy-compressed
// by default.
func (p *Pipeline) ExportAvro(ctx context.Context, table, gcsPath string, opts ExportOptions) error {
	if err := p.exportTable(ctx, table, gcsPath, FormatAvro, opts); err != nil {
		p.logger.Error("Extract failed", "op", "export_avro", "table", table, "error", err)
		return err
	}
	return nil
}

// exportReference builds the extract destination for one format, applying
// its delimiter and compression rules. The returned noHeader flag is
// CSV-only; the other formats carry no header row to drop.
func exportReference(uri string, format Format, opts ExportOptions) (ref *bigquery.GCSReference, noHeader bool, err error) {
	ref = bigquery.NewGCSReference(uri)
	switch format {
	case FormatCSV:
		ref.DestinationFormat = bigquery.CSV
		ref.Compression = bigquery.None
		ref.FieldDelimiter = opts.Delimiter
		if ref.FieldDelimiter == "" {
			ref.FieldDelimiter = ","
		}
		noHeader = opts.NoHeader
	case FormatJSON:
		ref.DestinationFormat = bigquery.JSON
		ref.Compression = bigquery.None
	case FormatAvro:
		ref.DestinationFormat = bigquery.Avro
		ref.Compression = opts.Compression
		if ref.Compression == "" {
			ref.Compression = bigquery.Snappy
		}
	default:
		return nil, false, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return ref, noHeader, nil
}

// exportTable submits an extract job for the resolved table and blocks
// until it completes.
func (p *Pipeline) exportTable(ctx context.Context, table, gcsPath string, format Format, opts ExportOptions) error {
	resolved := p.ResolveTable(table)
	src, err := p.tableHandle(resolved)
	if err != nil {
		return err
	}

	uri := exportPath(gcsPath, p.cfg.JobName, time.Now(), format.extension())
	ref, noHeader, err := exportReference(uri, format, opts)
	if err != nil {
		return err
	}

	extractor := src.ExtractorTo(ref)
	extractor.JobID = p.cfg.JobName
	extractor.AddJobIDSuffix = true
	extractor.DisableHeader = noHeader

	job, err := extractor.Run(ctx)
	if err != nil {
		return err
	}
	p.logger.Info("Extracting table", "table", resolved, "uri", ref.URIs[0],
		"format", string(format), "job_id", job.ID())
	if err := p.waitForJob(ctx, job, opts.Timeout); err != nil {
		return err
	}
	p.logger.Info("Finished extract", "table", resolved, "job_id", job.ID())
	return nil
}
