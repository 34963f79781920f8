package bqpipeline

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/spf13/afero"
)

// ReadSQL reads UTF-8 SQL template text from path.
func ReadSQL(fsys afero.Fs, path string) (string, error) {
	b, err := afero.ReadFile(fsys, path)
	if err != nil {
		return "", fmt.Errorf("reading sql template: %w", err)
	}
	return string(b), nil
}

// RenderSQL substitutes double-brace variables into a SQL template.
// Variables are plain data, never code; referencing a variable that is not
// provided fails the render. The ident function quotes a value as a
// BigQuery identifier:
//
//	SELECT * FROM {{ident .table}} WHERE id = @id
func RenderSQL(name, text string, vars map[string]any) (string, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(template.FuncMap{"ident": Ident}).
		Parse(text)
	if err != nil {
		return "", fmt.Errorf("parsing sql template: %w", err)
	}
	var buf strings.Builder
	if err := tmpl.Execute(&buf, vars); err != nil {
		return "", fmt.Errorf("rendering sql template: %w", err)
	}
	return buf.String(), nil
}
