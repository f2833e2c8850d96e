package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.LoginURL = "https://forum.example.com/login.php"
	cfg.Username = "alice"
	cfg.PageURLPattern = "https://forum.example.com/thread-{n}.html"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 1, cfg.LastPage)
	assert.Equal(t, DefaultContentSelector, cfg.ContentSelector)
	assert.Equal(t, "./downloads", cfg.DownloadDir)
	assert.Equal(t, "failed_downloads.log", cfg.FailedLog)
	assert.Equal(t, 30*time.Second, cfg.Timing.DownloadTimeout)
	assert.Equal(t, 2*time.Second, cfg.Timing.PageDelay)
	assert.Equal(t, 10*time.Second, cfg.Timing.RestartDelay)
	assert.True(t, cfg.Browser.Headless)
}

func TestParse(t *testing.T) {
	doc := `
login_url: https://forum.example.com/login.php
username: alice
password: s3cret
page_url_pattern: https://forum.example.com/thread-{n}.html
download_dir: /data
last_page: 12
timing:
  page_delay: 500ms
  download_timeout: 1m
`
	cfg, err := Parse([]byte(doc))
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Username)
	assert.Equal(t, 12, cfg.LastPage)
	assert.Equal(t, 500*time.Millisecond, cfg.Timing.PageDelay)
	assert.Equal(t, time.Minute, cfg.Timing.DownloadTimeout)
	// untouched sections keep their defaults
	assert.Equal(t, DefaultContentSelector, cfg.ContentSelector)
	assert.Equal(t, 5*time.Second, cfg.Timing.LoginRetry)
	assert.NoError(t, cfg.Validate())
}

func TestParseInvalidYAML(t *testing.T) {
	_, err := Parse([]byte("username: [unterminated"))
	assert.Error(t, err)
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{LastPage: 0}
	cfg.Timing.PageDelay = -time.Second
	cfg.ApplyDefaults()

	assert.Equal(t, 1, cfg.LastPage)
	assert.Equal(t, DefaultContentSelector, cfg.ContentSelector)
	assert.Equal(t, time.Duration(0), cfg.Timing.PageDelay)
	assert.Equal(t, DefaultTiming().SelectorWait, cfg.Timing.SelectorWait)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing login url", func(c *Config) { c.LoginURL = "" }, "login_url"},
		{"bad scheme", func(c *Config) { c.LoginURL = "ftp://x.com/login" }, "unsupported scheme"},
		{"missing username", func(c *Config) { c.Username = "" }, "username is required"},
		{"no placeholder", func(c *Config) { c.PageURLPattern = "https://forum.example.com/thread.html" }, "placeholder"},
		{"blank selector", func(c *Config) { c.ContentSelector = "  " }, "content_selector"},
		{"zero page", func(c *Config) { c.LastPage = 0 }, "last_page"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "invalid log level"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateJoinsErrors(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.GreaterOrEqual(t, len(strings.Split(err.Error(), "\n")), 4)
}

func TestDownloadPath(t *testing.T) {
	cfg := validConfig()
	cfg.DownloadDir = "/data"
	assert.Equal(t, filepath.Join("/data", "forum.example.com-thread-{n}.html"), cfg.DownloadPath())
}

func TestMergeCommandLineFlags(t *testing.T) {
	cfg := validConfig()
	headless := false
	cfg.MergeCommandLineFlags(Overrides{
		DownloadDir: "/other",
		StartPage:   40,
		LogLevel:    "debug",
		Headless:    &headless,
	})

	assert.Equal(t, "/other", cfg.DownloadDir)
	assert.Equal(t, 40, cfg.LastPage)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.False(t, cfg.Browser.Headless)
	assert.False(t, cfg.History.Enabled)

	before := *cfg
	cfg.MergeCommandLineFlags(Overrides{})
	assert.Equal(t, before, *cfg)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	data, err := validConfig().Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0600))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, validConfig(), cfg)

	_, err = LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestMasked(t *testing.T) {
	cfg := validConfig()
	cfg.Password = "hunter2"

	masked := cfg.Masked()
	assert.Equal(t, "********", masked.Password)
	assert.Equal(t, "hunter2", cfg.Password)
}

func TestHistoryPath(t *testing.T) {
	cfg := validConfig()
	assert.True(t, strings.HasSuffix(cfg.HistoryPath(), filepath.Join(AppName, "history.db")))

	cfg.History.Path = "/tmp/h.db"
	assert.Equal(t, "/tmp/h.db", cfg.HistoryPath())
}
