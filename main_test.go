package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config whose domain list lives in a temp dir and
// fetches only from sources.
func writeConfig(t *testing.T, sources ...string) (configPath, storagePath string) {
	t.Helper()
	dir := t.TempDir()
	storagePath = filepath.Join(dir, "domains.json")

	quoted := make([]string, len(sources))
	for i, s := range sources {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	cfg := fmt.Sprintf(`environment: development
logLevel: error
tempDomains:
  autoUpdate: false
  localStoragePath: %q
  externalSources: [%s]
`, storagePath, strings.Join(quoted, ", "))

	configPath = filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte(cfg), 0o644))
	return configPath, storagePath
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_AddSearchRemove(t *testing.T) {
	cfg, storage := writeConfig(t)

	code, out, _ := runCLI(t, "-config", cfg, "add", "Burner-One.io", "burner-two.io", "mailinator.com")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "added 2 domains")
	assert.FileExists(t, storage)

	code, out, _ = runCLI(t, "-config", cfg, "search", "burner-")
	require.Equal(t, 0, code)
	assert.Equal(t, "burner-one.io\nburner-two.io\n", out)

	code, out, _ = runCLI(t, "-config", cfg, "search", "-regex", "^burner-t")
	require.Equal(t, 0, code)
	assert.Equal(t, "burner-two.io\n", out)

	code, out, _ = runCLI(t, "-config", cfg, "remove", "burner-one.io", "not-there.io")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "removed 1 domains")

	code, out, _ = runCLI(t, "-config", cfg, "search", "burner-")
	require.Equal(t, 0, code)
	assert.Equal(t, "burner-two.io\n", out)
}

func TestRun_Check(t *testing.T) {
	cfg, _ := writeConfig(t)

	code, out, _ := runCLI(t, "-config", cfg, "check", "someone@Mailinator.com")
	require.Equal(t, 0, code)
	assert.Equal(t, "Mailinator.com: temporary\n", out)

	code, out, _ = runCLI(t, "-config", cfg, "check", "example.org")
	require.Equal(t, 0, code)
	assert.Equal(t, "example.org: not listed\n", out)

	code, _, _ = runCLI(t, "-config", cfg, "check")
	assert.Equal(t, 2, code)
}

func TestRun_Stats(t *testing.T) {
	cfg, storage := writeConfig(t)

	code, out, _ := runCLI(t, "-config", cfg, "stats")
	require.Equal(t, 0, code)

	var stats struct {
		TotalDomains      int    `json:"totalDomains"`
		AutoUpdateEnabled bool   `json:"autoUpdateEnabled"`
		SourceCount       int    `json:"sourceCount"`
		StoragePath       string `json:"storagePath"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Positive(t, stats.TotalDomains)
	assert.False(t, stats.AutoUpdateEnabled)
	assert.Equal(t, 0, stats.SourceCount)
	assert.Equal(t, storage, stats.StoragePath)
}

func TestRun_ExportImport(t *testing.T) {
	cfg, _ := writeConfig(t)
	dir := t.TempDir()

	code, out, _ := runCLI(t, "-config", cfg, "export")
	require.Equal(t, 0, code)
	var doc struct {
		Domains []string `json:"domains"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Contains(t, doc.Domains, "mailinator.com")

	txt := filepath.Join(dir, "list.txt")
	code, _, errOut := runCLI(t, "-config", cfg, "export", "-o", txt, "-format", "txt")
	require.Equal(t, 0, code)
	assert.Contains(t, errOut, "exported")
	data, err := os.ReadFile(txt)
	require.NoError(t, err)
	assert.Equal(t, len(doc.Domains), strings.Count(string(data), "\n"))

	code, _, _ = runCLI(t, "-config", cfg, "export", "-format", "xml")
	assert.Equal(t, 2, code)

	extra := filepath.Join(dir, "extra.json")
	require.NoError(t, os.WriteFile(extra, []byte(`["imported-one.io", "mailinator.com", "not a domain"]`), 0o644))

	code, out, _ = runCLI(t, "-config", cfg, "import", extra)
	require.Equal(t, 0, code)
	assert.Contains(t, out, "imported 1 new domains")

	code, out, _ = runCLI(t, "-config", cfg, "check", "imported-one.io")
	require.Equal(t, 0, code)
	assert.Equal(t, "imported-one.io: temporary\n", out)

	code, _, errOut = runCLI(t, "-config", cfg, "import", filepath.Join(dir, "missing.txt"))
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "import:")
}

func TestRun_Update(t *testing.T) {
	list := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "cli-fetched.io")
	}))
	t.Cleanup(list.Close)

	cfg, _ := writeConfig(t, list.URL+"/list.txt")

	code, out, _ := runCLI(t, "-config", cfg, "update")
	require.Equal(t, 0, code)

	var res struct {
		Sources   int      `json:"sources"`
		Succeeded []string `json:"succeeded"`
		Added     int      `json:"added"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 1, res.Sources)
	assert.Len(t, res.Succeeded, 1)
	assert.Equal(t, 1, res.Added)

	code, out, _ = runCLI(t, "-config", cfg, "check", "cli-fetched.io")
	require.Equal(t, 0, code)
	assert.Equal(t, "cli-fetched.io: temporary\n", out)
}

func TestRun_UpdateAllSourcesFail(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(broken.Close)

	cfg, _ := writeConfig(t, broken.URL+"/list.txt")

	code, out, _ := runCLI(t, "-config", cfg, "update")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, `"failed"`)
}

func TestRun_Errors(t *testing.T) {
	cfg, _ := writeConfig(t)

	tests := []struct {
		name   string
		args   []string
		code   int
		stderr string
	}{
		{"unknown command", []string{"-config", cfg, "frobnicate"}, 2, `unknown command "frobnicate"`},
		{"missing config", []string{"-config", filepath.Join(t.TempDir(), "nope.yaml")}, 1, "config:"},
		{"bad flag", []string{"-nope"}, 2, ""},
		{"bad regex", []string{"-config", cfg, "search", "-regex", "("}, 1, "search:"},
		{"add without args", []string{"-config", cfg, "add"}, 2, "usage:"},
		{"remove without args", []string{"-config", cfg, "remove"}, 2, "usage:"},
		{"import without args", []string{"-config", cfg, "import"}, 2, "usage:"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, tt.args...)
			assert.Equal(t, tt.code, code)
			if tt.stderr != "" {
				assert.Contains(t, errOut, tt.stderr)
			}
		})
	}
}

func TestRun_Help(t *testing.T) {
	cfg, _ := writeConfig(t)

	code, out, _ := runCLI(t, "-config", cfg, "help")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "usage: trial-abuse-guard")

	code, _, errOut := runCLI(t, "-h")
	assert.Equal(t, 0, code)
	assert.Contains(t, errOut, "commands:")
}
