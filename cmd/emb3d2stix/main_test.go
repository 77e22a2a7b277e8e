package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/emb3d/config"
)

func writeCheckout(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	sources := map[string]string{
		config.DefaultMitigations: `{"mitigations": [{"id": "MID-001", "name": "Secure Boot", "threats": [{"id": "TID-101"}]}]}`,
		config.DefaultProperties:  `{"properties": []}`,
		config.DefaultThreats:     `{"threats": [{"id": "TID-101", "category": "Hardware"}]}`,
	}
	for name, body := range sources {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestRootCommandWritesBundle(t *testing.T) {
	dir := writeCheckout(t)
	out := filepath.Join(t.TempDir(), "bundle.json")

	_, stderr, err := execute(t, "--base-dir", dir, "--out", out, "--deterministic")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type": "bundle"`)
	assert.Contains(t, string(data), `"relationship_type": "mitigates"`)
	assert.Contains(t, stderr, "bundle written")
}

func TestRootCommandTrace(t *testing.T) {
	dir := writeCheckout(t)
	out := filepath.Join(t.TempDir(), "bundle.json")

	stdout, _, err := execute(t, "--base-dir", dir, "--out", out, "--trace")
	require.NoError(t, err)

	for _, span := range []string{"emb3d.ingest", "emb3d.enrich", "emb3d.link", "emb3d.assemble"} {
		assert.Contains(t, stdout, span)
	}
}

func TestRootCommandErrors(t *testing.T) {
	tests := []struct {
		name string
		args func(dir string) []string
	}{
		{
			name: "invalid log level",
			args: func(dir string) []string { return []string{"--base-dir", dir, "--log-level", "loud"} },
		},
		{
			name: "missing config file",
			args: func(dir string) []string { return []string{"--config", filepath.Join(dir, "absent.yaml")} },
		},
		{
			name: "missing base dir",
			args: func(dir string) []string { return []string{"--base-dir", filepath.Join(dir, "absent")} },
		},
		{
			name: "positional argument",
			args: func(dir string) []string { return []string{"extra"} },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			_, _, err := execute(t, append(tt.args(dir), "--out", filepath.Join(dir, "out.json"))...)
			assert.Error(t, err)
		})
	}
}

func TestRootCommandReportsFailureOnce(t *testing.T) {
	dir := t.TempDir()

	_, stderr, err := execute(t, "--base-dir", filepath.Join(dir, "absent"), "--out", filepath.Join(dir, "out.json"))
	require.Error(t, err)

	var logged loggedError
	assert.True(t, errors.As(err, &logged))
	assert.Equal(t, 1, strings.Count(stderr, "conversion failed"))
	assert.NotContains(t, stderr, "Error:")
}

func TestRootCommandConfigErrorNotLogged(t *testing.T) {
	dir := t.TempDir()

	_, stderr, err := execute(t, "--config", filepath.Join(dir, "absent.yaml"))
	require.Error(t, err)

	var logged loggedError
	assert.False(t, errors.As(err, &logged))
	assert.Empty(t, stderr)
}

func TestLoadConfigFlagsOverrideFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "emb3d.yaml"), []byte(`
base_dir: kb
output: from-file.json
log:
  level: warn
  format: json
`), 0o644))

	cmd := newRootCommand()
	require.NoError(t, cmd.ParseFlags([]string{"--config", dir, "--out", "from-flag.json", "--log-level", "debug"}))

	f := &flags{}
	f.config, _ = cmd.Flags().GetString("config")
	f.out, _ = cmd.Flags().GetString("out")
	f.logLevel, _ = cmd.Flags().GetString("log-level")

	cfg, err := loadConfig(cmd, f)
	require.NoError(t, err)
	assert.Equal(t, "kb", cfg.GetBaseDir())
	assert.Equal(t, "from-flag.json", cfg.GetOutput())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.GetFormat())
	assert.False(t, cfg.IDs.IsDeterministic())
}
