package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"mediacrawl/pkg/config"
	"mediacrawl/pkg/history"
	"mediacrawl/pkg/ui"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show download totals and recent failures",
	Long: `Summarize the download history journal.

The journal is only written when history.enabled is set or the crawl runs
with --history.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of recent failures to show")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	path := config.DefaultConfig().HistoryPath()
	if cfgPath, err := resolveConfigPath(); err == nil {
		if cfg, err := config.LoadFromFile(cfgPath); err == nil {
			path = cfg.HistoryPath()
		}
	}

	if _, err := os.Stat(path); err != nil {
		ui.PrintInfo("No history yet", path)
		return nil
	}

	journal, err := history.Open(path)
	if err != nil {
		return err
	}
	defer journal.Close()

	ctx := cmd.Context()
	totals, err := journal.Totals(ctx)
	if err != nil {
		return err
	}

	ui.PrintHighlight("Download History")
	ui.PrintInfo("Journal", path)
	ui.PrintInfo("Runs", fmt.Sprint(totals.Runs))
	ui.PrintInfo("Downloaded", fmt.Sprintf("%d (%s)", totals.Downloaded, ui.FormatBytes(totals.Bytes)))
	ui.PrintInfo("Skipped", fmt.Sprint(totals.Skipped))
	ui.PrintInfo("Failed", fmt.Sprint(totals.Failed))

	failures, err := journal.RecentFailures(ctx, historyLimit)
	if err != nil {
		return err
	}
	if len(failures) == 0 {
		return nil
	}

	fmt.Fprintln(ui.Output)
	ui.PrintWarning("Recent failures")
	for _, f := range failures {
		fmt.Fprintf(ui.Output, "  %s  %s\n", ui.Dim(f.At.Format("2006-01-02 15:04:05")), f.URL)
		if f.Reason != "" {
			fmt.Fprintf(ui.Output, "      %s\n", ui.Red(f.Reason))
		}
	}
	return nil
}
