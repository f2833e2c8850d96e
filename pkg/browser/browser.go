// Package browser defines the page renderer the crawler drives. The
// production implementation lives in browser/chrome; browser/fakedom is a
// scripted DOM for tests.
package browser

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"
)

// ErrTimeout is returned by WaitForSelector when nothing matched in time
var ErrTimeout = errors.New("browser: timed out waiting for selector")

// Element is a node of the rendered page
type Element interface {
	// Attribute returns the named attribute. URL-valued attributes (src,
	// href) are resolved against the document URL, as the DOM property
	// would be.
	Attribute(name string) (string, bool)
	// FindAll returns descendants matching selector in document order
	// without waiting.
	FindAll(ctx context.Context, selector string) ([]Element, error)
}

// Renderer is one browser tab. Implementations are not safe for concurrent
// use.
type Renderer interface {
	Navigate(ctx context.Context, url string) error
	// WaitForSelector waits up to timeout for at least one match and returns
	// all matches in document order, or ErrTimeout.
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) ([]Element, error)
	// PageContainsText reports whether the page source contains needle
	PageContainsText(ctx context.Context, needle string) (bool, error)
	// Fill clears the matched input and types value into it
	Fill(ctx context.Context, selector, value string) error
	Click(ctx context.Context, selector string) error
	Submit(ctx context.Context, selector string) error
	RunScript(ctx context.Context, script string) error
	Close() error
}

// CookieSource is implemented by renderers that can export their cookies
type CookieSource interface {
	Cookies(ctx context.Context) ([]*http.Cookie, error)
}

// Factory starts a new renderer
type Factory func(ctx context.Context) (Renderer, error)

var urlAttributes = map[string]bool{
	"src":    true,
	"href":   true,
	"poster": true,
}

// IsURLAttribute reports whether name is resolved against the document URL
func IsURLAttribute(name string) bool {
	return urlAttributes[name]
}

// ResolveURL resolves ref against base. An unparseable ref is returned as is.
func ResolveURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil || base == "" {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}
