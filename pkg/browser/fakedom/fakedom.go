// Package fakedom is a scripted browser.Renderer backed by goquery. Pages are
// registered by URL; navigation parses the registered HTML and every
// interaction is recorded for assertions.
package fakedom

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"

	"mediacrawl/pkg/browser"
	errs "mediacrawl/pkg/errors"
)

// Renderer is an in-memory browser.Renderer
type Renderer struct {
	mu sync.Mutex

	pages        map[string]string
	navigateErrs map[string][]error
	current      string
	source       string
	doc          *goquery.Document
	closed       bool

	// OnSubmit runs after a successful Submit, typically to Show the page
	// the form would lead to
	OnSubmit func(r *Renderer, selector string)

	// CookieJar is returned by Cookies
	CookieJar []*http.Cookie

	Navigations []string
	Fills       map[string]string
	Clicks      []string
	Submits     []string
	Scripts     []string
}

// New creates an empty renderer
func New() *Renderer {
	return &Renderer{
		pages:        make(map[string]string),
		navigateErrs: make(map[string][]error),
		Fills:        make(map[string]string),
	}
}

// SetPage registers the HTML served at url
func (r *Renderer) SetPage(url, html string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages[url] = html
}

// FailNavigate queues errors returned by the next navigations to url, one
// per call
func (r *Renderer) FailNavigate(url string, failures ...error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigateErrs[url] = append(r.navigateErrs[url], failures...)
}

// Show replaces the current document without recording a navigation
func (r *Renderer) Show(url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(url)
}

// Closed reports whether Close was called
func (r *Renderer) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// NavigationCount returns how many times url was navigated to
func (r *Renderer) NavigationCount(url string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, u := range r.Navigations {
		if u == url {
			n++
		}
	}
	return n
}

func (r *Renderer) load(url string) error {
	html, ok := r.pages[url]
	if !ok {
		return errs.New(errs.ErrorTypeNavigation, "net::ERR_NAME_NOT_RESOLVED at "+url)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return errs.Wrap(errs.ErrorTypeDriver, err, "parse page")
	}
	r.current = url
	r.source = html
	r.doc = doc
	return nil
}

func (r *Renderer) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.closed {
		return errs.New(errs.ErrorTypeDriver, "invalid session id")
	}
	return nil
}

func (r *Renderer) requireMatch(selector string) error {
	if r.doc == nil || r.doc.Find(selector).Length() == 0 {
		return errs.New(errs.ErrorTypeDriver, "no such element: "+selector)
	}
	return nil
}

// Navigate implements browser.Renderer
func (r *Renderer) Navigate(ctx context.Context, url string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return err
	}
	r.Navigations = append(r.Navigations, url)

	if queued := r.navigateErrs[url]; len(queued) > 0 {
		r.navigateErrs[url] = queued[1:]
		return queued[0]
	}
	return r.load(url)
}

// WaitForSelector never waits: it fails with browser.ErrTimeout as soon as
// nothing matches
func (r *Renderer) WaitForSelector(ctx context.Context, selector string, _ time.Duration) ([]browser.Element, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	if r.doc == nil {
		return nil, browser.ErrTimeout
	}
	found := r.wrap(r.doc.Find(selector))
	if len(found) == 0 {
		return nil, browser.ErrTimeout
	}
	return found, nil
}

func (r *Renderer) wrap(sel *goquery.Selection) []browser.Element {
	elements := make([]browser.Element, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		elements = append(elements, &element{sel: s, base: r.current})
	})
	return elements
}

// PageContainsText implements browser.Renderer
func (r *Renderer) PageContainsText(ctx context.Context, needle string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return false, err
	}
	return strings.Contains(r.source, needle), nil
}

// Fill implements browser.Renderer
func (r *Renderer) Fill(ctx context.Context, selector, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return err
	}
	if err := r.requireMatch(selector); err != nil {
		return err
	}
	r.Fills[selector] = value
	return nil
}

// Click implements browser.Renderer
func (r *Renderer) Click(ctx context.Context, selector string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return err
	}
	if err := r.requireMatch(selector); err != nil {
		return err
	}
	r.Clicks = append(r.Clicks, selector)
	return nil
}

// Submit implements browser.Renderer
func (r *Renderer) Submit(ctx context.Context, selector string) error {
	r.mu.Lock()
	if err := r.check(ctx); err != nil {
		r.mu.Unlock()
		return err
	}
	if err := r.requireMatch(selector); err != nil {
		r.mu.Unlock()
		return err
	}
	r.Submits = append(r.Submits, selector)
	hook := r.OnSubmit
	r.mu.Unlock()

	if hook != nil {
		hook(r, selector)
	}
	return nil
}

// RunScript records the script
func (r *Renderer) RunScript(ctx context.Context, script string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return err
	}
	r.Scripts = append(r.Scripts, script)
	return nil
}

// Cookies returns CookieJar
func (r *Renderer) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.check(ctx); err != nil {
		return nil, err
	}
	return r.CookieJar, nil
}

// Close implements browser.Renderer
func (r *Renderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

type element struct {
	sel  *goquery.Selection
	base string
}

func (e *element) Attribute(name string) (string, bool) {
	value, ok := e.sel.Attr(name)
	if !ok {
		return "", false
	}
	if browser.IsURLAttribute(name) {
		return browser.ResolveURL(e.base, value), true
	}
	return value, true
}

func (e *element) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var found []browser.Element
	e.sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
		found = append(found, &element{sel: s, base: e.base})
	})
	return found, nil
}

// String describes the current page, for test failure messages
func (r *Renderer) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("fakedom(%s, %d navigations)", r.current, len(r.Navigations))
}

var (
	_ browser.Renderer     = (*Renderer)(nil)
	_ browser.CookieSource = (*Renderer)(nil)
)
