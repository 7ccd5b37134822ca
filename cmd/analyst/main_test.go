package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestRootCmd_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("analyst %s (%s)\n", Version, GitCommit), out)
}

func TestRootCmd_Subcommands(t *testing.T) {
	cmd := newRootCmd()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"chat", "serve", "init-db", "upload-snapshot", "version"})
	assert.NotNil(t, cmd.PersistentFlags().Lookup("config"))

	_, err := execute(t, "bogus")
	assert.Error(t, err)
}

func TestRootCmd_InitDBAndUploadSnapshot(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "analyst.yaml")
	cfg := fmt.Sprintf("database:\n  driver: sqlite\n  dsn: %q\nlog:\n  level: error\n", filepath.Join(dir, "analytics.db"))
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	dataDir := filepath.Join(dir, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "stores_t.csv"), []byte(
		"store_id,store_name,city,address,manager\n1,Central,Berlin,Main St 1,Ada\n"), 0o600))

	out, err := execute(t, "init-db", "--config", cfgPath)
	require.NoError(t, err)
	assert.Equal(t, "analytics schema ready\n", out)

	out, err = execute(t, "upload-snapshot", "--config", cfgPath, "--dir", dataDir)
	require.NoError(t, err)
	assert.Contains(t, out, "stores_t")
	assert.Contains(t, out, "1 rows")
}
