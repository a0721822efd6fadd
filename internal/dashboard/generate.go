// Package dashboard renders Grafana dashboards for the published status and
// alert tables.
package dashboard

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.json.tmpl
var templates embed.FS

// Tables names the tables or measurements the dashboards query.
type Tables struct {
	StatusTable string
	AlertTable  string
	Bucket      string
}

// Render executes every dashboard template and writes the results to outDir.
// Datasource UIDs come from the environment (GREPTIMEDB_DATASOURCE_UID,
// INFLUXDB_DATASOURCE_UID); a missing variable fails the render.
func Render(outDir string, tables Tables) ([]string, error) {
	funcMap := template.FuncMap{
		"env": func(key string) (string, error) {
			v := os.Getenv(key)
			if v == "" {
				return "", fmt.Errorf("environment variable %s not set", key)
			}
			return v, nil
		},
	}

	names, err := fs.Glob(templates, "templates/*.json.tmpl")
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, err
	}
	var written []string
	for _, name := range names {
		t, err := template.New(filepath.Base(name)).Funcs(funcMap).ParseFS(templates, name)
		if err != nil {
			return written, err
		}
		var b strings.Builder
		if err := t.Execute(&b, tables); err != nil {
			return written, fmt.Errorf("render %s: %w", filepath.Base(name), err)
		}
		if !json.Valid([]byte(b.String())) {
			return written, fmt.Errorf("render %s: output is not valid JSON", filepath.Base(name))
		}
		outPath := filepath.Join(outDir, strings.TrimSuffix(filepath.Base(name), ".tmpl"))
		if err := os.WriteFile(outPath, []byte(b.String()), 0o644); err != nil {
			return written, err
		}
		written = append(written, outPath)
	}
	return written, nil
}
