package downloader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FailureRecorder stores permanent download failures
type FailureRecorder interface {
	Record(url, reason string) error
}

// FailureLog appends "<url>  # <reason>" lines to a text file. The file is
// opened per record so it can be rotated or inspected while the crawler
// runs.
type FailureLog struct {
	path string
	mu   sync.Mutex
}

// NewFailureLog creates a failure log at path
func NewFailureLog(path string) *FailureLog {
	return &FailureLog{path: path}
}

// Path returns the log file location
func (f *FailureLog) Path() string {
	return f.path
}

// Record appends one line
func (f *FailureLog) Record(url, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create failure log directory: %w", err)
		}
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open failure log: %w", err)
	}
	defer file.Close()

	if _, err := fmt.Fprintf(file, "%s  # %s\n", url, oneLine(reason)); err != nil {
		return fmt.Errorf("failed to write failure log: %w", err)
	}
	return nil
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
