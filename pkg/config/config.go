package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"mediacrawl/pkg/naming"
)

// AppName is used for configuration and data directory names
const AppName = "mediacrawl"

// DefaultContentSelector matches post bodies on vBulletin boards
const DefaultContentSelector = "blockquote.postcontent.restore"

// DefaultFileName is the config file looked up in the working directory
const DefaultFileName = "config.yaml"

// Config is the persisted crawl document. It carries the resume position
// (LastPage) alongside credentials and tuning sections, and is rewritten
// whole after every completed page.
type Config struct {
	LoginURL        string `yaml:"login_url" json:"login_url"`
	Username        string `yaml:"username" json:"username"`
	Password        string `yaml:"password,omitempty" json:"password,omitempty"`
	PageURLPattern  string `yaml:"page_url_pattern" json:"page_url_pattern"`
	ContentSelector string `yaml:"content_selector,omitempty" json:"content_selector,omitempty"`
	DownloadDir     string `yaml:"download_dir" json:"download_dir"`
	LastPage        int    `yaml:"last_page" json:"last_page"`
	FailedLog       string `yaml:"failed_log,omitempty" json:"failed_log,omitempty"`

	Timing        TimingConfig       `yaml:"timing" json:"timing"`
	Browser       BrowserConfig      `yaml:"browser" json:"browser"`
	Fetch         FetchConfig        `yaml:"fetch" json:"fetch"`
	Logging       LoggingConfig      `yaml:"logging" json:"logging"`
	History       HistoryConfig      `yaml:"history" json:"history"`
	Notifications NotificationConfig `yaml:"notifications" json:"notifications"`
}

// TimingConfig holds every wait and backoff used by the crawl loop
type TimingConfig struct {
	LoginFormWait   time.Duration `yaml:"login_form_wait" json:"login_form_wait"`
	LoginSettle     time.Duration `yaml:"login_settle" json:"login_settle"`
	LoginRetry      time.Duration `yaml:"login_retry" json:"login_retry"`
	SelectorWait    time.Duration `yaml:"selector_wait" json:"selector_wait"`
	NavigateTimeout time.Duration `yaml:"navigate_timeout" json:"navigate_timeout"`
	DownloadTimeout time.Duration `yaml:"download_timeout" json:"download_timeout"`
	PageDelay       time.Duration `yaml:"page_delay" json:"page_delay"`
	DriverRetry     time.Duration `yaml:"driver_retry" json:"driver_retry"`
	UnexpectedRetry time.Duration `yaml:"unexpected_retry" json:"unexpected_retry"`
	RestartDelay    time.Duration `yaml:"restart_delay" json:"restart_delay"`
}

// BrowserConfig configures the headless browser
type BrowserConfig struct {
	Headless  bool   `yaml:"headless" json:"headless"`
	ExecPath  string `yaml:"exec_path,omitempty" json:"exec_path,omitempty"`
	UserAgent string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
}

// FetchConfig configures the media fetcher
type FetchConfig struct {
	UserAgent           string `yaml:"user_agent,omitempty" json:"user_agent,omitempty"`
	ShareSessionCookies bool   `yaml:"share_session_cookies" json:"share_session_cookies"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" json:"level"`
	File  string `yaml:"file,omitempty" json:"file,omitempty"`
}

// HistoryConfig controls the download history journal
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// NotificationConfig holds notification preferences
type NotificationConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// DefaultTiming returns the production waits
func DefaultTiming() TimingConfig {
	return TimingConfig{
		LoginFormWait:   10 * time.Second,
		LoginSettle:     3 * time.Second,
		LoginRetry:      5 * time.Second,
		SelectorWait:    10 * time.Second,
		NavigateTimeout: 60 * time.Second,
		DownloadTimeout: 30 * time.Second,
		PageDelay:       2 * time.Second,
		DriverRetry:     5 * time.Second,
		UnexpectedRetry: 10 * time.Second,
		RestartDelay:    10 * time.Second,
	}
}

// DefaultConfig returns a Config instance with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		ContentSelector: DefaultContentSelector,
		DownloadDir:     "./downloads",
		LastPage:        1,
		FailedLog:       "failed_downloads.log",
		Timing:          DefaultTiming(),
		Browser: BrowserConfig{
			Headless: true,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		History: HistoryConfig{
			Enabled: false,
		},
		Notifications: NotificationConfig{
			Enabled: false,
		},
	}
}

// Parse decodes a YAML document on top of the defaults
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.ApplyDefaults()
	return cfg, nil
}

// Marshal encodes the config as YAML
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}

// ApplyDefaults fills zero values left by a sparse document
func (c *Config) ApplyDefaults() {
	if c.ContentSelector == "" {
		c.ContentSelector = DefaultContentSelector
	}
	if c.LastPage < 1 {
		c.LastPage = 1
	}
	if c.FailedLog == "" {
		c.FailedLog = "failed_downloads.log"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	def := DefaultTiming()
	fill := func(v *time.Duration, d time.Duration) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&c.Timing.LoginFormWait, def.LoginFormWait)
	fill(&c.Timing.LoginSettle, def.LoginSettle)
	fill(&c.Timing.LoginRetry, def.LoginRetry)
	fill(&c.Timing.SelectorWait, def.SelectorWait)
	fill(&c.Timing.NavigateTimeout, def.NavigateTimeout)
	fill(&c.Timing.DownloadTimeout, def.DownloadTimeout)
	fill(&c.Timing.DriverRetry, def.DriverRetry)
	fill(&c.Timing.UnexpectedRetry, def.UnexpectedRetry)
	fill(&c.Timing.RestartDelay, def.RestartDelay)
	// PageDelay may legitimately be zero
	if c.Timing.PageDelay < 0 {
		c.Timing.PageDelay = 0
	}
}

// Clone returns a deep copy
func (c *Config) Clone() *Config {
	cp := *c
	return &cp
}

// DownloadPath is the effective download directory: DownloadDir joined with
// the folder derived from the page pattern
func (c *Config) DownloadPath() string {
	return filepath.Join(c.DownloadDir, naming.DeriveFolderName(c.PageURLPattern))
}

// Validate checks if the configuration is valid. Credentials are not checked
// here because the password may come from a credential store.
func (c *Config) Validate() error {
	var errs []error

	if err := validateHTTPURL(c.LoginURL); err != nil {
		errs = append(errs, fmt.Errorf("login_url: %w", err))
	}
	if c.Username == "" {
		errs = append(errs, errors.New("username is required"))
	}
	if err := validateHTTPURL(c.PageURLPattern); err != nil {
		errs = append(errs, fmt.Errorf("page_url_pattern: %w", err))
	} else if !strings.Contains(c.PageURLPattern, naming.PagePlaceholder) {
		errs = append(errs, fmt.Errorf("page_url_pattern must contain the %s placeholder", naming.PagePlaceholder))
	}
	if strings.TrimSpace(c.ContentSelector) == "" {
		errs = append(errs, errors.New("content_selector must not be blank"))
	}
	if c.DownloadDir == "" {
		errs = append(errs, errors.New("download_dir is required"))
	}
	if c.LastPage < 1 {
		errs = append(errs, errors.New("last_page must be at least 1"))
	}
	if c.Timing.DownloadTimeout <= 0 {
		errs = append(errs, errors.New("download timeout must be positive"))
	}
	if c.Timing.SelectorWait <= 0 {
		errs = append(errs, errors.New("selector wait must be positive"))
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, errors.New("invalid log level"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return errors.New("is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("missing host")
	}
	return nil
}

// FindConfigFile searches for the config file in standard locations
func FindConfigFile() string {
	locations := []string{
		DefaultFileName,
		filepath.Join(xdg.ConfigHome, AppName, DefaultFileName),
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc
		}
	}
	return ""
}

// DefaultConfigPath is where a new config file is written when none exists
func DefaultConfigPath() string {
	return DefaultFileName
}

// DataDir returns the application data directory
func DataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// ConfigDir returns the application config directory
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// HistoryPath returns the configured history database path or the default
func (c *Config) HistoryPath() string {
	if c.History.Path != "" {
		return c.History.Path
	}
	return filepath.Join(DataDir(), "history.db")
}

// Masked returns a copy with secrets replaced, for display
func (c *Config) Masked() *Config {
	cp := c.Clone()
	if cp.Password != "" {
		cp.Password = "********"
	}
	return cp
}

// LoadFromFile reads and parses a config file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Overrides carries command line values that take precedence over the file
type Overrides struct {
	DownloadDir string
	StartPage   int
	LogLevel    string
	Headless    *bool
	History     *bool
}

// MergeCommandLineFlags applies non-zero overrides
func (c *Config) MergeCommandLineFlags(o Overrides) {
	if o.DownloadDir != "" {
		c.DownloadDir = o.DownloadDir
	}
	if o.StartPage > 0 {
		c.LastPage = o.StartPage
	}
	if o.LogLevel != "" {
		c.Logging.Level = o.LogLevel
	}
	if o.Headless != nil {
		c.Browser.Headless = *o.Headless
	}
	if o.History != nil {
		c.History.Enabled = *o.History
	}
}
