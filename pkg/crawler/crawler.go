package crawler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediacrawl/internal/downloader"
	"mediacrawl/pkg/browser"
	"mediacrawl/pkg/config"
	errs "mediacrawl/pkg/errors"
	"mediacrawl/pkg/logger"
	"mediacrawl/pkg/naming"
	"mediacrawl/pkg/ratelimit"
	"mediacrawl/pkg/retry"
)

// ErrNoContainers ends a crawl when a page has no content containers, which
// is how the end of a thread (or a silently lost session) shows up
var ErrNoContainers = errors.New("crawler: no content containers on page")

// mediaTags are searched in this order inside every container
var mediaTags = []string{"video", "img", "source"}

// Halt describes why Run stopped
type Halt struct {
	Page    int
	URL     string
	Reason  error
	Pages   int
	Summary downloader.Summary
}

// Config wires a Crawler
type Config struct {
	Renderer browser.Renderer
	Session  SessionKeeper
	Queue    Queue
	Store    Store
	Pacer    ratelimit.Limiter

	SelectorWait time.Duration
	Backoff      retry.ClassifiedBackoff
	Logger       logger.Logger

	// OnTransition observes every state change. EnqueueDrain is entered once
	// the page's links are queued.
	OnTransition func(from, to State, page int)
}

// Crawler walks pages from the persisted position until a page has no
// content containers. It owns one renderer for its lifetime.
type Crawler struct {
	cfg    Config
	logger logger.Logger
	state  State

	pages   int
	summary downloader.Summary
}

// New creates a crawler
func New(cfg Config) *Crawler {
	log := cfg.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	if cfg.Pacer == nil {
		cfg.Pacer = ratelimit.NewPacer(0)
	}
	return &Crawler{cfg: cfg, logger: log, state: StateInit}
}

// State returns the current state
func (c *Crawler) State() State {
	return c.state
}

func (c *Crawler) transition(to State, page int) {
	from := c.state
	c.state = to
	if c.cfg.OnTransition != nil {
		c.cfg.OnTransition(from, to, page)
	}
}

// Run crawls until a halt or until ctx is cancelled. Recoverable errors are
// retried on the same page after a classified backoff. A non-nil error is
// either ctx's error or a failure to load the store.
func (c *Crawler) Run(ctx context.Context) (*Halt, error) {
	c.transition(StateInit, 0)
	doc, err := c.cfg.Store.Load()
	if err != nil {
		return nil, fmt.Errorf("load progress: %w", err)
	}

	page := doc.LastPage
	logger.LogComponentStart(c.logger, "crawler", map[string]interface{}{
		"start_page": page,
		"pattern":    doc.PageURLPattern,
	})

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		halt, err := c.processPage(ctx, doc, page)
		if halt != nil {
			c.transition(StateHalt, page)
			halt.Pages = c.pages
			halt.Summary = c.summary
			logger.LogComponentStop(c.logger, "crawler", halt.Reason.Error())
			return halt, nil
		}
		if err == nil {
			page++
			continue
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		c.transition(StateRecoverableError, page)
		// the backoff counts toward the page gap
		c.cfg.Pacer.Done()
		delay := c.cfg.Backoff.DelayFor(err)
		c.logger.WithError(err).WarnWithFields("Page failed, retrying", map[string]interface{}{
			"page":       page,
			"error_type": string(errs.Classify(err)),
			"delay":      delay,
		})
		if err := retry.Wait(ctx, delay); err != nil {
			return nil, err
		}
	}
}

// processPage runs one pass of FetchPage through Checkpoint. Panics are
// turned into unknown errors so the loop can retry.
func (c *Crawler) processPage(ctx context.Context, doc *config.Config, page int) (halt *Halt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errs.New(errs.ErrorTypeUnknown, fmt.Sprintf("panic: %v", r))
		}
	}()

	r := c.cfg.Renderer
	url := naming.PageURL(doc.PageURLPattern, page)

	c.transition(StateFetchPage, page)
	if err := c.cfg.Pacer.Wait(ctx); err != nil {
		return nil, err
	}
	if err := r.Navigate(ctx, url); err != nil {
		return nil, err
	}

	c.transition(StateVerifySession, page)
	if !c.cfg.Session.Verify(ctx, r) {
		c.logger.WarnWithFields("Session lost, logging in again", map[string]interface{}{
			"page": page,
		})
		if err := c.cfg.Session.Establish(ctx, r); err != nil {
			return nil, err
		}
		if err := r.Navigate(ctx, url); err != nil {
			return nil, err
		}
	}

	c.transition(StateExtract, page)
	links, err := c.extract(ctx, doc.ContentSelector)
	if errors.Is(err, ErrNoContainers) {
		c.cfg.Pacer.Done()
		return &Halt{Page: page, URL: url, Reason: ErrNoContainers}, nil
	}
	if err != nil {
		return nil, err
	}

	for _, link := range links {
		c.cfg.Queue.Enqueue(link)
	}
	c.transition(StateEnqueueDrain, page)
	summary, err := c.cfg.Queue.DrainAll(ctx)
	c.summary.Add(summary)
	if err != nil {
		return nil, err
	}

	c.transition(StateCheckpoint, page)
	next := doc.Clone()
	next.LastPage = page + 1
	if err := c.cfg.Store.Save(next); err != nil {
		return nil, err
	}
	doc.LastPage = next.LastPage
	c.pages++
	c.cfg.Pacer.Done()

	logger.LogPage(c.logger, page, url, map[string]interface{}{
		"links":      len(links),
		"downloaded": summary.Downloaded,
		"skipped":    summary.Skipped,
		"failed":     summary.Failed,
	})
	return nil, nil
}

// extract collects media URLs from every container: video, then img, then
// source elements, each in document order. Only absolute http(s) URLs are
// kept.
func (c *Crawler) extract(ctx context.Context, selector string) ([]string, error) {
	containers, err := c.cfg.Renderer.WaitForSelector(ctx, selector, c.cfg.SelectorWait)
	if errors.Is(err, browser.ErrTimeout) {
		return nil, ErrNoContainers
	}
	if err != nil {
		return nil, err
	}

	var links []string
	for _, container := range containers {
		for _, tag := range mediaTags {
			elements, err := container.FindAll(ctx, tag)
			if err != nil {
				return nil, err
			}
			for _, el := range elements {
				src, ok := el.Attribute("src")
				if ok && strings.HasPrefix(src, "http") {
					links = append(links, src)
				}
			}
		}
	}
	return links, nil
}
