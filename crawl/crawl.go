// Package crawl walks a site breadth-first from a seed URL, capturing one
// full-page screenshot per reachable same-domain page. The crawler receives
// its Browser capability explicitly and owns it for the duration of one
// crawl; it holds no global state.
//
// Traversal is single-threaded and sequential: each navigation and capture
// completes before the next begins, keeping shared browser state consistent
// and avoiding parallel load on the (typically small) target site.
package crawl

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/hazyhaar/dasite/crawl/internal/links"
	"github.com/hazyhaar/dasite/snapshot"
)

// Page is a loaded page capability.
type Page interface {
	// Location is the final URL after redirects; links resolve against it.
	Location(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	// Hrefs returns raw anchor hrefs in document order.
	Hrefs(ctx context.Context) ([]string, error)
	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	Close() error
}

// Browser opens pages. Implemented by the rod-backed adapter in this
// package and by fakes in tests.
type Browser interface {
	Open(ctx context.Context, pageURL string) (Page, error)
	Close() error
}

// Result summarises one crawl.
type Result struct {
	Visited     []string // identities, in visit order
	Screenshots []string // written file paths
	Failed      int      // pages that could not be visited or captured
}

// Crawler orchestrates the breadth-first traversal.
type Crawler struct {
	browser  Browser
	store    *snapshot.Store
	logger   *slog.Logger
	follow   bool
	maxPages int
}

// Option configures a Crawler.
type Option func(*Crawler)

// WithFollowLinks enables breadth-first crawling of same-domain links.
// Disabled, the crawler captures only the seed URL.
func WithFollowLinks(follow bool) Option {
	return func(c *Crawler) { c.follow = follow }
}

// WithMaxPages caps the number of visited pages. 0 = unlimited.
func WithMaxPages(n int) Option {
	return func(c *Crawler) { c.maxPages = n }
}

// New creates a Crawler writing captures into store.
func New(b Browser, store *snapshot.Store, logger *slog.Logger, opts ...Option) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Crawler{browser: b, store: store, logger: logger}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Run crawls from startURL until the queue empties. Every reachable
// same-domain page is visited exactly once, keyed by its hostname+path
// identity, so URLs differing only in query or fragment do not cause
// re-visits and cycles terminate. A failing page is logged and skipped —
// unless crawling is disabled, in which case the single page's error is the
// run's error.
func (c *Crawler) Run(ctx context.Context, startURL string) (*Result, error) {
	origin, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("crawl: parse seed %q: %w", startURL, err)
	}
	if origin.Hostname() == "" {
		return nil, fmt.Errorf("crawl: seed %q has no hostname", startURL)
	}

	visited := make(map[string]bool) // identities already dequeued
	pending := make(map[string]bool) // identities sitting in the queue
	queue := []string{startURL}

	result := &Result{}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("crawl: interrupted: %w", err)
		}

		pageURL := queue[0]
		queue = queue[1:]

		id, err := snapshot.Identity(pageURL)
		if err != nil {
			c.logger.Warn("crawl: skipping unidentifiable url", "url", pageURL, "error", err)
			continue
		}
		delete(pending, id)
		if visited[id] {
			continue
		}
		visited[id] = true

		found, err := c.visit(ctx, pageURL, id, origin, result)
		if err != nil {
			result.Failed++
			if !c.follow {
				return result, err
			}
			c.logger.Error("crawl: page failed, continuing", "url", pageURL, "error", err)
			continue
		}

		if c.maxPages > 0 && len(result.Visited) >= c.maxPages {
			c.logger.Info("crawl: page limit reached", "max_pages", c.maxPages)
			break
		}

		for _, link := range found {
			lid, err := snapshot.Identity(link)
			if err != nil {
				continue
			}
			if visited[lid] || pending[lid] {
				continue
			}
			pending[lid] = true
			queue = append(queue, link)
		}
	}

	c.logger.Info("crawl: finished",
		"visited", len(result.Visited),
		"failed", result.Failed)
	return result, nil
}

// visit loads one page, captures it, and returns the same-domain links to
// enqueue (nil when crawling is disabled).
func (c *Crawler) visit(ctx context.Context, pageURL, id string, origin *url.URL, result *Result) ([]string, error) {
	c.logger.Info("crawl: visiting", "url", pageURL, "target", id)

	page, err := c.browser.Open(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("crawl: open %s: %w", pageURL, err)
	}
	defer page.Close()

	loc, err := page.Location(ctx)
	if err != nil || loc == "" {
		loc = pageURL
	}
	locURL, err := url.Parse(loc)
	if err != nil {
		locURL = origin
	}

	shot, err := page.Screenshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("crawl: capture %s: %w", pageURL, err)
	}
	path, err := c.store.WriteCurrent(id, shot)
	if err != nil {
		return nil, err
	}

	title, _ := page.Title(ctx)
	if err := c.store.WriteMeta(id, snapshot.Meta{
		URL:        loc,
		Title:      title,
		CapturedAt: time.Now().UTC(),
	}); err != nil {
		c.logger.Warn("crawl: write meta failed", "target", id, "error", err)
	}

	result.Visited = append(result.Visited, id)
	result.Screenshots = append(result.Screenshots, path)

	if !c.follow {
		return nil, nil
	}

	hrefs, err := page.Hrefs(ctx)
	if err != nil {
		c.logger.Warn("crawl: extract links failed", "url", pageURL, "error", err)
		return nil, nil
	}
	return links.Filter(locURL, origin, hrefs), nil
}
