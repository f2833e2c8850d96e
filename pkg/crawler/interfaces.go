package crawler

import (
	"context"

	"mediacrawl/internal/downloader"
	"mediacrawl/pkg/browser"
	"mediacrawl/pkg/config"
)

// Queue accepts media URLs and downloads them
type Queue interface {
	Enqueue(url string)
	DrainAll(ctx context.Context) (downloader.Summary, error)
}

// SessionKeeper logs in and checks the login
type SessionKeeper interface {
	Establish(ctx context.Context, r browser.Renderer) error
	Verify(ctx context.Context, r browser.Renderer) bool
}

// Store persists the crawl document
type Store interface {
	Load() (*config.Config, error)
	Save(cfg *config.Config) error
}
