// Package chrome implements browser.Renderer on a headless Chrome driven
// through the DevTools protocol.
package chrome

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"mediacrawl/pkg/browser"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
)

// Options configures the browser process
type Options struct {
	Headless        bool
	ExecPath        string
	UserAgent       string
	NavigateTimeout time.Duration
}

// Renderer is a single Chrome tab
type Renderer struct {
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	opts          Options
	logger        logger.Logger

	location string
}

// New launches Chrome and opens a tab. The browser lives until Close, not
// until ctx is done; ctx only bounds the launch.
func New(ctx context.Context, opts Options, log logger.Logger) (*Renderer, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	r := &Renderer{
		allocCancel:   allocCancel,
		browserCtx:    browserCtx,
		browserCancel: browserCancel,
		opts:          opts,
		logger:        log,
	}

	// the first Run starts the browser process
	if err := r.run(ctx, 0, network.Enable()); err != nil {
		r.Close()
		return nil, errs.Wrap(errs.ErrorTypeDriver, err, "failed to start browser")
	}

	log.DebugWithFields("Browser started", map[string]interface{}{
		"headless": opts.Headless,
	})
	return r, nil
}

// run executes actions on the tab, bounded by ctx and by timeout when it is
// positive
func (r *Renderer) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(r.browserCtx)
	defer cancel()
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, timeout)
		defer cancelTimeout()
	}
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func classify(err error, action string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.ErrorTypeTimeout, err, action)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return errs.Wrap(errs.ErrorTypeDriver, err, action)
}

// Navigate loads url and waits for the load event
func (r *Renderer) Navigate(ctx context.Context, url string) error {
	var location string
	err := r.run(ctx, r.opts.NavigateTimeout,
		chromedp.Navigate(url),
		chromedp.Location(&location),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return classify(err, "navigate")
		}
		return errs.Wrap(errs.ErrorTypeNavigation, err, "navigate "+url)
	}
	r.location = location
	return nil
}

// WaitForSelector implements browser.Renderer
func (r *Renderer) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) ([]browser.Element, error) {
	var nodes []*cdp.Node
	err := r.run(ctx, timeout, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, browser.ErrTimeout
		}
		return nil, classify(err, "wait for "+selector)
	}
	return r.wrap(nodes), nil
}

func (r *Renderer) wrap(nodes []*cdp.Node) []browser.Element {
	elements := make([]browser.Element, 0, len(nodes))
	for _, n := range nodes {
		elements = append(elements, &element{renderer: r, node: n})
	}
	return elements
}

// PageContainsText checks the serialized document
func (r *Renderer) PageContainsText(ctx context.Context, needle string) (bool, error) {
	var html string
	if err := r.run(ctx, r.opts.NavigateTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return false, classify(err, "read page source")
	}
	return strings.Contains(html, needle), nil
}

// Fill implements browser.Renderer
func (r *Renderer) Fill(ctx context.Context, selector, value string) error {
	err := r.run(ctx, r.opts.NavigateTimeout,
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
	)
	return classify(err, "fill "+selector)
}

// Click implements browser.Renderer
func (r *Renderer) Click(ctx context.Context, selector string) error {
	return classify(r.run(ctx, r.opts.NavigateTimeout, chromedp.Click(selector, chromedp.ByQuery)), "click "+selector)
}

// Submit implements browser.Renderer
func (r *Renderer) Submit(ctx context.Context, selector string) error {
	return classify(r.run(ctx, r.opts.NavigateTimeout, chromedp.Submit(selector, chromedp.ByQuery)), "submit "+selector)
}

// RunScript evaluates script in the page and discards its value
func (r *Renderer) RunScript(ctx context.Context, script string) error {
	err := r.run(ctx, r.opts.NavigateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		_, exception, err := runtime.Evaluate(script).Do(ctx)
		if err != nil {
			return err
		}
		if exception != nil {
			return fmt.Errorf("script exception: %s", exception.Text)
		}
		return nil
	}))
	return classify(err, "run script")
}

// Cookies exports the tab's cookies for the current page
func (r *Renderer) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var cookies []*network.Cookie
	err := r.run(ctx, r.opts.NavigateTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, classify(err, "get cookies")
	}

	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if !c.Session && c.Expires > 0 {
			hc.Expires = time.Unix(int64(c.Expires), 0)
		}
		out = append(out, hc)
	}
	return out, nil
}

// Close shuts the tab and the browser process
func (r *Renderer) Close() error {
	r.browserCancel()
	r.allocCancel()
	return nil
}

type element struct {
	renderer *Renderer
	node     *cdp.Node
}

func (e *element) Attribute(name string) (string, bool) {
	value, ok := e.node.Attribute(name)
	if !ok {
		return "", false
	}
	if browser.IsURLAttribute(name) {
		return browser.ResolveURL(e.renderer.location, value), true
	}
	return value, true
}

func (e *element) FindAll(ctx context.Context, selector string) ([]browser.Element, error) {
	var nodes []*cdp.Node
	err := e.renderer.run(ctx, e.renderer.opts.NavigateTimeout,
		chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.FromNode(e.node), chromedp.AtLeast(0)),
	)
	if err != nil {
		return nil, classify(err, "find "+selector)
	}
	return e.renderer.wrap(nodes), nil
}

var (
	_ browser.Renderer     = (*Renderer)(nil)
	_ browser.CookieSource = (*Renderer)(nil)
)
