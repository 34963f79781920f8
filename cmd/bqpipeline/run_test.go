package main

import (
	"encoding/json"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeParamsNamed(t *testing.T) {
	v, err := decodeParams(`{"day": "2026-08-25", "count": 3}`)
	require.NoError(t, err)

	m, ok := v.(map[string]any)
	require.True(t, ok, "named params decode to a map")
	assert.Equal(t, "2026-08-25", m["day"])
	// Numbers stay json.Number so integers remain INT64.
	assert.Equal(t, json.Number("3"), m["count"])
}

func TestDecodeParamsPositional(t *testing.T) {
	v, err := decodeParams(`["abc", 1]`)
	require.NoError(t, err)

	s, ok := v.([]any)
	require.True(t, ok, "positional params decode to a slice")
	assert.Len(t, s, 2)
}

func TestDecodeParamsEmpty(t *testing.T) {
	v, err := decodeParams("")
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestDecodeParamsErrors(t *testing.T) {
	_, err := decodeParams("{not json")
	assert.Error(t, err)

	_, err = decodeParams(`"a bare string"`)
	assert.Error(t, err)

	_, err = decodeParams("42")
	assert.Error(t, err)
}

func TestDecodeVars(t *testing.T) {
	vars, err := decodeVars(`{"table": "events"}`)
	require.NoError(t, err)
	assert.Equal(t, "events", vars["table"])

	vars, err = decodeVars("")
	require.NoError(t, err)
	assert.Nil(t, vars)

	_, err = decodeVars("[1, 2]")
	assert.Error(t, err)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCommand(afero.NewMemMapFs(), newLogger())

	names := make([]string, 0, 2)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "run")
	assert.Contains(t, names, "signurl")
}

func TestRunCommandFlagDefaults(t *testing.T) {
	cmd := newRunCommand(afero.NewMemMapFs(), newLogger())

	format, err := cmd.Flags().GetString("export-format")
	require.NoError(t, err)
	assert.Equal(t, "CSV", format)

	location, err := cmd.Flags().GetString("location")
	require.NoError(t, err)
	assert.Equal(t, "US", location)

	jobName, err := cmd.Flags().GetString("job-name")
	require.NoError(t, err)
	assert.NotEmpty(t, jobName)
}

func TestDefaultJobName(t *testing.T) {
	assert.NotEmpty(t, defaultJobName())
}
