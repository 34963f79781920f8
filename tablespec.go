package bqpipeline

import (
	"errors"
	"strings"
)

// gcsPrefix marks destinations that live in Cloud Storage rather than BigQuery.
const gcsPrefix = "gs://"

var (
	// ErrPartialTableSpec is returned when an operation needs a fully
	// qualified table and the spec could not be resolved to three segments.
	ErrPartialTableSpec = errors.New("table spec is not fully qualified")

	// ErrPartialDatasetSpec is returned when an operation needs a fully
	// qualified dataset and the spec could not be resolved to two segments.
	ErrPartialDatasetSpec = errors.New("dataset spec is not fully qualified")
)

// IsGCSPath reports whether dest is a Cloud Storage URI.
func IsGCSPath(dest string) bool {
	return strings.HasPrefix(dest, gcsPrefix)
}

// ResolveTableSpec fills the missing segments of a partial TableSpec from
// the configured defaults:
//
//	table                   -> defaultProject.defaultDataset.table
//	dataset.table           -> defaultProject.dataset.table
//	project.dataset.table   -> unchanged
//
// A fully qualified spec is never altered. When the defaults needed to
// complete a partial spec are not configured the input is returned
// unchanged; the service rejects it on submission.
func ResolveTableSpec(spec, defaultProject, defaultDataset string) string {
	if spec == "" {
		return spec
	}
	switch strings.Count(spec, ".") {
	case 1:
		if defaultProject != "" {
			return defaultProject + "." + spec
		}
	case 0:
		if defaultProject != "" && defaultDataset != "" {
			return defaultProject + "." + defaultDataset + "." + spec
		}
	}
	return spec
}

// ResolveDatasetSpec fills the missing project segment of a partial
// DatasetSpec from the default project. A "project.dataset" spec is never
// altered.
func ResolveDatasetSpec(spec, defaultProject string) string {
	if spec == "" {
		return spec
	}
	if !strings.Contains(spec, ".") && defaultProject != "" {
		return defaultProject + "." + spec
	}
	return spec
}

// splitTableSpec splits a fully qualified TableSpec into its segments.
// ok is false unless spec has exactly three segments.
func splitTableSpec(spec string) (project, dataset, table string, ok bool) {
	parts := strings.Split(spec, ".")
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

// splitDatasetSpec splits a fully qualified DatasetSpec into its segments.
func splitDatasetSpec(spec string) (project, dataset string, ok bool) {
	parts := strings.Split(spec, ".")
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}
