package main

import (
	"bytes"
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHelpListsSubcommands(t *testing.T) {
	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stdout)
	cmd.SetArgs([]string{"--help"})

	require.NoError(t, cmd.Execute())
	for _, name := range []string{"serve", "catalog", "--env-file"} {
		assert.Contains(t, stdout.String(), name)
	}
}

func TestRootCommandVersionFlag(t *testing.T) {
	original := Version
	t.Cleanup(func() { Version = original })
	Version = "v0.1.0-test"

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--version"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "v0.1.0-test", strings.TrimSpace(stdout.String()))
}

func TestCatalogCommandUsesEnvFile(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "catalog.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`{"topics": ["Is water wet?"]}`), 0o600))

	envPath := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envPath, []byte("CATALOG_FILE="+catalogPath+"\n"), 0o600))

	// godotenv 不覆盖已存在的变量，先确保未设置。
	t.Setenv("CATALOG_FILE", "")
	require.NoError(t, os.Unsetenv("CATALOG_FILE"))

	cmd := newRootCommand()
	var stdout bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetArgs([]string{"--env-file", envPath, "catalog"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "Ada Lovelace")
	assert.Contains(t, stdout.String(), "Is water wet?")
}

func TestExplicitEnvFileMustExist(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"--env-file", filepath.Join(t.TempDir(), "missing.env"), "catalog"})

	require.Error(t, cmd.Execute())
}

func TestDefaultEnvFileIsOptional(t *testing.T) {
	t.Chdir(t.TempDir())
	require.NoError(t, loadEnvFile(defaultEnvFile))
}

func TestServeFailsWithoutCredential(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "gmi")
	t.Setenv("GMI_API_KEY", "")
	t.Setenv("CATALOG_FILE", "")

	err := serve(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GMI_API_KEY not found")
}

func TestRootCommandServesWithExecuteContext(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LLM_PROVIDER", "gmi")
	t.Setenv("GMI_API_KEY", "")
	t.Setenv("CATALOG_FILE", "")

	cmd := newRootCommand()
	cmd.SetArgs(nil)

	err := cmd.ExecuteContext(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GMI_API_KEY not found")
}

func TestRunServerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() { done <- runServer(ctx, srv, log.New(&bytes.Buffer{})) }()
	cancel()

	require.NoError(t, <-done)
}
