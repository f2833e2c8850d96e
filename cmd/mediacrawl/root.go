package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mediacrawl/pkg/config"
	"mediacrawl/pkg/ui"
)

var (
	// Version information
	version   = "1.0.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	notifications bool
	quiet         bool
	verbose       bool
)

// envLogLevel overrides the configured log level when --log-level is absent
const envLogLevel = "MEDIACRAWL_LOG_LEVEL"

var rootCmd = &cobra.Command{
	Use:   config.AppName,
	Short: "Crawl a members-only forum thread and download its media",
	Long: `mediacrawl logs into a vBulletin forum with a headless browser, walks a
thread page by page and downloads every image and video it finds.

Progress is written back to the config file after each page, so an
interrupted crawl resumes where it stopped. Files already present in the
download directory are never fetched twice.`,
	Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// a missing .env is fine
		_ = godotenv.Load()

		if !cmd.Flags().Changed("log-level") {
			if level := strings.TrimSpace(os.Getenv(envLogLevel)); level != "" {
				logLevel = level
			}
		}
		if verbose {
			logLevel = "debug"
		}
		if quiet {
			ui.Output = io.Discard
		}

		switch cmd.Name() {
		case "version", "help", "completion":
		default:
			if !quiet {
				ui.PrintBanner()
			}
		}
	},
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runCrawl(cmd, args)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.Red("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file (default ./config.yaml, then $XDG_CONFIG_HOME/mediacrawl/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&notifications, "notifications", false, "enable desktop notifications")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress console output except errors")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and one line per download")

	addRunFlags(rootCmd)

	rootCmd.SetVersionTemplate(`mediacrawl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// resolveConfigPath returns --config or the first config file found in the
// standard locations
func resolveConfigPath() (string, error) {
	if configFile != "" {
		return configFile, nil
	}
	if path := config.FindConfigFile(); path != "" {
		return path, nil
	}
	return "", fmt.Errorf("no config file found; run '%s config init' or pass --config", config.AppName)
}
