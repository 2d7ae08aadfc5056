package crawl

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/dasite/crawl/internal/browser"
)

// RodBrowser adapts the Rod-backed browser manager to the Browser interface.
type RodBrowser struct {
	mgr *browser.Manager
}

// BrowserOptions configure the Chrome instance backing a crawl.
type BrowserOptions struct {
	RemoteURL  string // attach to a running Chrome instead of launching
	Headful    bool
	Stealth    bool
	NavTimeout time.Duration
	Logger     *slog.Logger
}

// StartBrowser launches (or attaches to) Chrome and returns the crawl
// Browser capability. The caller must Close it; pair with defer so the
// browser is shut down even when the crawl errors.
func StartBrowser(ctx context.Context, opts BrowserOptions) (*RodBrowser, error) {
	mgr := browser.NewManager(browser.Config{
		RemoteURL:  opts.RemoteURL,
		Headless:   !opts.Headful,
		Stealth:    opts.Stealth,
		NavTimeout: opts.NavTimeout,
		Logger:     opts.Logger,
	})
	if _, err := mgr.Start(ctx); err != nil {
		mgr.Close()
		return nil, err
	}
	return &RodBrowser{mgr: mgr}, nil
}

// Open navigates a fresh tab to pageURL.
func (b *RodBrowser) Open(ctx context.Context, pageURL string) (Page, error) {
	return browser.OpenTab(ctx, b.mgr, pageURL)
}

// Close shuts down the Chrome instance.
func (b *RodBrowser) Close() error { return b.mgr.Close() }
