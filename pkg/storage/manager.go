package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"mediacrawl/pkg/logger"
)

// PartialSuffix marks a download in progress
const PartialSuffix = ".part"

// Manager is the dedup ledger for one download directory. It remembers every
// filename found on disk at startup and every filename reserved since.
type Manager struct {
	outputDir string
	reserved  map[string]struct{}
	mu        sync.RWMutex
	logger    logger.Logger
}

// NewManager creates the directory if needed and seeds the ledger from its
// listing
func NewManager(outputDir string) (*Manager, error) {
	return NewManagerWithLogger(outputDir, nil)
}

// NewManagerWithLogger is NewManager with a logger for startup cleanup
func NewManagerWithLogger(outputDir string, log logger.Logger) (*Manager, error) {
	if log == nil {
		log = logger.NewNopLogger()
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		reserved:  make(map[string]struct{}),
		logger:    log,
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

// scanExistingFiles seeds the ledger with complete files. Leftover partial
// downloads are removed so they do not shadow a retry.
func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(name, PartialSuffix) {
			// never seeded either way; Save truncates it on the next attempt
			if err := os.Remove(filepath.Join(m.outputDir, name)); err != nil {
				m.logger.WithError(err).WarnWithFields("Could not remove partial download", map[string]interface{}{
					"file": name,
				})
				continue
			}
			m.logger.DebugWithFields("Removed partial download", map[string]interface{}{
				"file": name,
			})
			continue
		}
		m.reserved[name] = struct{}{}
	}

	return nil
}

// Contains reports whether filename is already in the ledger
func (m *Manager) Contains(filename string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.reserved[filename]
	return ok
}

// Reserve adds filename to the ledger. It returns false when the name was
// already present.
func (m *Manager) Reserve(filename string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reserved[filename]; ok {
		return false
	}
	m.reserved[filename] = struct{}{}
	return true
}

// Save streams r into the directory under filename. The data lands in a
// .part file first and is renamed into place once fully written; on any
// error the partial file is removed. It returns the number of bytes written.
func (m *Manager) Save(r io.Reader, filename string) (int64, error) {
	target := filepath.Join(m.outputDir, filename)
	if filepath.Dir(target) != filepath.Clean(m.outputDir) {
		return 0, fmt.Errorf("refusing to write outside %s: %q", m.outputDir, filename)
	}

	tempFile := target + PartialSuffix
	out, err := os.Create(tempFile)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	n, err := io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to save data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, target); err != nil {
		os.Remove(tempFile)
		return n, fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return n, nil
}

// Dir returns the output directory path
func (m *Manager) Dir() string {
	return m.outputDir
}

// Count returns the number of filenames in the ledger
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.reserved)
}
