package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mediacrawl/pkg/config"
	"mediacrawl/pkg/ui"
)

func quietOutput(t *testing.T) {
	t.Helper()
	prev := ui.Output
	ui.Output = io.Discard
	t.Cleanup(func() { ui.Output = prev })
}

func withConfigFile(t *testing.T, path string) {
	t.Helper()
	prev := configFile
	configFile = path
	t.Cleanup(func() { configFile = prev })
}

func TestConfigInitWritesValidDocument(t *testing.T) {
	quietOutput(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	withConfigFile(t, path)

	require.NoError(t, runConfigInit(configInitCmd, nil))

	cfg, err := config.LoadFromFile(path)
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.LastPage)
	assert.Equal(t, config.DefaultTiming(), cfg.Timing)
	assert.Equal(t, "forum.example.com-showthread.php", filepath.Base(cfg.DownloadPath()))
}

func TestConfigInitRefusesOverwrite(t *testing.T) {
	quietOutput(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	withConfigFile(t, path)

	require.NoError(t, runConfigInit(configInitCmd, nil))
	assert.Error(t, runConfigInit(configInitCmd, nil))
}

func TestConfigValidateReportsProblems(t *testing.T) {
	quietOutput(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	withConfigFile(t, path)

	cfg := config.DefaultConfig()
	cfg.DownloadDir = filepath.Join(dir, "downloads")
	data, err := cfg.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	err = runConfigValidate(configValidateCmd, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error(s)")
}

func TestResolveConfigPathPrefersFlag(t *testing.T) {
	withConfigFile(t, "/tmp/explicit.yaml")

	path, err := resolveConfigPath()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/explicit.yaml", path)
}

func TestOverridesFromFlags(t *testing.T) {
	prevDir, prevLevel := downloadDir, logLevel
	t.Cleanup(func() { downloadDir, logLevel = prevDir, prevLevel })

	cmd := runCmd
	require.NoError(t, cmd.Flags().Set("headless", "false"))
	t.Cleanup(func() {
		_ = cmd.Flags().Set("headless", "true")
		cmd.Flags().Lookup("headless").Changed = false
	})
	downloadDir = "/data"
	logLevel = "debug"

	o := overridesFromFlags(cmd)
	assert.Equal(t, "/data", o.DownloadDir)
	assert.Equal(t, "debug", o.LogLevel)
	require.NotNil(t, o.Headless)
	assert.False(t, *o.Headless)
	assert.Nil(t, o.History, "unset flags leave the file value alone")
}

func TestSplitJoined(t *testing.T) {
	joined := errors.Join(errors.New("a"), errors.New("b"))
	assert.Equal(t, []string{"a", "b"}, splitJoined(joined))
	assert.Equal(t, []string{"single"}, splitJoined(errors.New("single")))
}

func TestIgnoreInterrupt(t *testing.T) {
	assert.NoError(t, ignoreInterrupt(nil))
	assert.NoError(t, ignoreInterrupt(context.Canceled))
	boom := errors.New("boom")
	assert.Equal(t, boom, ignoreInterrupt(boom))
}
