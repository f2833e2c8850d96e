package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"mediacrawl/pkg/config"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/ui/tui"
)

// dashboardWriter turns zerolog JSON lines into dashboard log entries. The
// alternate screen owns the terminal, so nothing may reach stderr.
type dashboardWriter struct {
	dashboard *tui.TUI
}

func (w dashboardWriter) Write(p []byte) (int, error) {
	var entry struct {
		Level   string `json:"level"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(p, &entry); err != nil {
		w.dashboard.Log("info", "%s", strings.TrimSpace(string(p)))
		return len(p), nil
	}

	msg := entry.Message
	if entry.Error != "" {
		msg += ": " + entry.Error
	}
	w.dashboard.Log(entry.Level, "%s", msg)
	return len(p), nil
}

// initTUILogger installs a global logger that feeds the dashboard and, when
// logging.file is set, the log file
func initTUILogger(cfg *config.Config, dashboard *tui.TUI) error {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Logging.Level))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}

	var out io.Writer = dashboardWriter{dashboard: dashboard}
	if cfg.Logging.File != "" {
		file, err := logger.OpenLogFile(cfg.Logging.File)
		if err != nil {
			return err
		}
		out = zerolog.MultiLevelWriter(out, file)
	}

	logger.SetLogger(logger.NewWithWriter(out, level))
	return nil
}
