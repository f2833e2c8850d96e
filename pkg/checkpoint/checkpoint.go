package checkpoint

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"mediacrawl/pkg/config"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
)

// ErrPageRegression is returned when a save would move last_page backwards
var ErrPageRegression = errors.New("checkpoint: last_page may not decrease")

// Store reads and atomically rewrites the crawl document at a single path.
// It assumes a single writer process.
type Store struct {
	path   string
	logger logger.Logger

	mu        sync.Mutex
	highWater int
}

// NewStore creates a store for the document at path
func NewStore(path string, log logger.Logger) *Store {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &Store{path: path, logger: log}
}

// Path returns the document location
func (s *Store) Path() string {
	return s.path
}

// Exists checks if the document exists
func (s *Store) Exists() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

// Load reads the document and remembers its last_page as the floor for
// later saves
func (s *Store) Load() (*config.Config, error) {
	cfg, err := config.LoadFromFile(s.path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeStorage, err, "load checkpoint")
	}

	s.mu.Lock()
	if cfg.LastPage > s.highWater {
		s.highWater = cfg.LastPage
	}
	s.mu.Unlock()

	s.logger.DebugWithFields("Checkpoint loaded", map[string]interface{}{
		"path":      s.path,
		"last_page": cfg.LastPage,
	})
	return cfg, nil
}

// Save writes cfg over the document. It fails with ErrPageRegression when
// cfg.LastPage is below the highest page this store has seen.
func (s *Store) Save(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.highWater == 0 {
		if current, err := config.LoadFromFile(s.path); err == nil {
			s.highWater = current.LastPage
		}
	}
	if cfg.LastPage < s.highWater {
		return fmt.Errorf("%w: have %d, got %d", ErrPageRegression, s.highWater, cfg.LastPage)
	}

	data, err := cfg.Marshal()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "encode checkpoint")
	}
	if err := writeAtomic(s.path, data); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "save checkpoint")
	}
	s.highWater = cfg.LastPage

	s.logger.DebugWithFields("Checkpoint saved", map[string]interface{}{
		"path":      s.path,
		"last_page": cfg.LastPage,
	})
	return nil
}

// Reset writes cfg without the regression check and makes its page the new
// high-water mark. It backs an explicit operator request to restart from an
// earlier page.
func (s *Store) Reset(cfg *config.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := cfg.Marshal()
	if err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "encode checkpoint")
	}
	if err := writeAtomic(s.path, data); err != nil {
		return errs.Wrap(errs.ErrorTypeStorage, err, "reset checkpoint")
	}
	s.highWater = cfg.LastPage

	s.logger.InfoWithFields("Checkpoint reset", map[string]interface{}{
		"path":      s.path,
		"last_page": cfg.LastPage,
	})
	return nil
}

// Backup copies the current document to <path>.backup. A missing document is
// not an error.
func (s *Store) Backup() error {
	src, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open checkpoint for backup: %w", err)
	}
	defer src.Close()

	dst, err := os.OpenFile(s.path+".backup", os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to copy checkpoint to backup: %w", err)
	}
	return nil
}

// writeAtomic replaces path with data via a synced temporary file
func writeAtomic(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create checkpoint directory: %w", err)
		}
	}

	tempPath := path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temporary checkpoint file: %w", err)
	}

	if _, err := file.Write(data); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync checkpoint file: %w", err)
	}
	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close checkpoint file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace checkpoint file: %w", err)
	}
	return nil
}
