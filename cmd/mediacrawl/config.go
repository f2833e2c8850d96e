package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"mediacrawl/pkg/auth"
	"mediacrawl/pkg/config"
	"mediacrawl/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the crawl document",
	Long: `Manage the YAML file that describes the crawl.

The same file holds the resume position (last_page), which the crawler
rewrites after every completed page. It is looked up in this order:
  - the --config flag
  - ./config.yaml
  - $XDG_CONFIG_HOME/mediacrawl/config.yaml`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an example configuration file",
	Long: `Create an example configuration file with all available options.

The file is written to ./config.yaml unless --config names another path.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Long: `Show the configuration after defaults are applied.

The password is masked.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration file",
	Long: `Check the configuration file for syntax errors and invalid values.

Besides the document itself this checks that the download and log
directories can be created and that a password can be resolved.`,
	Args: cobra.NoArgs,
	RunE: runConfigValidate,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
}

const exampleConfig = `# mediacrawl configuration
#
# The crawler rewrites this file after every page to advance last_page.
# Comments are not preserved once a crawl has run.

# vBulletin login page
login_url: "https://forum.example.com/login.php"

# Account used to log in. The password may be left out and stored with
# 'mediacrawl auth login' or the MEDIACRAWL_PASSWORD variable instead.
username: "YOUR_USERNAME"
password: ""

# Thread page URL; {n} is replaced with the page number
page_url_pattern: "https://forum.example.com/showthread.php?t=12345&page={n}"

# CSS selector for post bodies; a page without a match ends the crawl cycle
content_selector: "blockquote.postcontent.restore"

# Files land in download_dir/<host>-<path>/
download_dir: "./downloads"

# Next page to crawl
last_page: 1

# Permanent download failures, one "<url>  # <reason>" per line
failed_log: "failed_downloads.log"

timing:
  login_form_wait: 10s
  login_settle: 3s
  login_retry: 5s
  selector_wait: 10s
  navigate_timeout: 60s
  download_timeout: 30s
  page_delay: 2s
  driver_retry: 5s
  unexpected_retry: 10s
  restart_delay: 10s

browser:
  headless: true
  # exec_path: "/usr/bin/chromium"
  # user_agent: ""

fetch:
  # user_agent: ""
  # copy the browser's cookies into the downloader after each login
  share_session_cookies: false

logging:
  # debug, info, warn, error
  level: "info"
  # file: "mediacrawl.log"

history:
  # record every download attempt in a SQLite journal
  enabled: false
  # path: ""

notifications:
  enabled: false
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = config.DefaultConfigPath()
	}

	if _, err := os.Stat(path); err == nil {
		ui.PrintError("Configuration file already exists", path)
		fmt.Fprintln(ui.Output, "\nTo overwrite, first remove the existing file:")
		fmt.Fprintf(ui.Output, "  rm %s\n", path)
		return errors.New("refusing to overwrite " + path)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	// the file may hold a password
	if err := os.WriteFile(path, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to create configuration file: %w", err)
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(ui.Output, "\nNext steps:")
	fmt.Fprintln(ui.Output, "1. Edit login_url, username and page_url_pattern")
	fmt.Fprintln(ui.Output, "2. Store the password with 'mediacrawl auth login'")
	fmt.Fprintln(ui.Output, "3. Run 'mediacrawl config validate' to check the file")
	fmt.Fprintln(ui.Output, "4. Start crawling with 'mediacrawl'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}

	data, err := cfg.Masked().Marshal()
	if err != nil {
		return err
	}

	ui.PrintHighlight("Current Configuration")
	ui.PrintInfo("File", path)
	ui.PrintInfo("Download path", cfg.DownloadPath())
	fmt.Fprintln(ui.Output)
	fmt.Fprint(ui.Output, string(data))
	return nil
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	path, err := resolveConfigPath()
	if err != nil {
		return err
	}
	ui.PrintInfo("Validating configuration", path)

	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return err
	}

	var problems []string
	if err := cfg.Validate(); err != nil {
		problems = append(problems, splitJoined(err)...)
	}
	if err := os.MkdirAll(cfg.DownloadPath(), 0o755); err != nil {
		problems = append(problems, fmt.Sprintf("cannot create download directory: %v", err))
	}
	if cfg.Logging.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Logging.File), 0o755); err != nil {
			problems = append(problems, fmt.Sprintf("cannot create log directory: %v", err))
		}
	}

	if len(problems) > 0 {
		ui.PrintError("Configuration has errors")
		for _, p := range problems {
			fmt.Fprintf(ui.Output, "  - %s\n", p)
		}
		return fmt.Errorf("%d configuration error(s)", len(problems))
	}

	var warnings []string
	if cfg.Password != "" {
		warnings = append(warnings, "password is stored in plain text; consider 'mediacrawl auth login'")
	} else if manager, err := auth.NewDefaultManager(); err == nil {
		if _, err := manager.ResolvePassword(cfg); err != nil {
			warnings = append(warnings, fmt.Sprintf("no password found for %s", cfg.Username))
		}
	}
	if len(warnings) > 0 {
		ui.PrintWarning("Configuration warnings")
		for _, w := range warnings {
			fmt.Fprintf(ui.Output, "  - %s\n", w)
		}
		fmt.Fprintln(ui.Output)
	}

	ui.PrintSuccess("Configuration is valid")

	fmt.Fprintln(ui.Output, "\nConfiguration summary:")
	fmt.Fprintf(ui.Output, "  Thread:         %s\n", cfg.PageURLPattern)
	fmt.Fprintf(ui.Output, "  Download path:  %s\n", cfg.DownloadPath())
	fmt.Fprintf(ui.Output, "  Next page:      %d\n", cfg.LastPage)
	fmt.Fprintf(ui.Output, "  Page delay:     %s\n", cfg.Timing.PageDelay)
	fmt.Fprintf(ui.Output, "  History:        %t\n", cfg.History.Enabled)
	fmt.Fprintf(ui.Output, "  Log level:      %s\n", cfg.Logging.Level)
	return nil
}

// splitJoined flattens an errors.Join result into its messages
func splitJoined(err error) []string {
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		var out []string
		for _, e := range joined.Unwrap() {
			out = append(out, e.Error())
		}
		return out
	}
	return []string{err.Error()}
}
