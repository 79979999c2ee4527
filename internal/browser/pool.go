// Package browser shares one headless Chrome between adapters that
// need client-side rendering, capping concurrent tabs.
package browser

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

const (
	defaultMaxTabs = 8
	renderTimeout  = 60 * time.Second
	scrollPause    = 700 * time.Millisecond
	maxScrolls     = 10
)

// Heavy assets are blocked; listings only need the DOM.
var blockedURLPatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg", "*.ico",
	"*.woff", "*.woff2", "*.ttf", "*.otf",
	"*.mp4", "*.webm", "*.mp3", "*.avi",
	"*.css",
}

// Pool owns the browser process. It starts lazily on first use and
// renders at most maxTabs pages at once.
type Pool struct {
	mu            sync.Mutex
	sem           chan struct{}
	allocCtx      context.Context
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
	started       bool
}

// NewPool creates a pool allowing maxTabs concurrent renders;
// maxTabs <= 0 selects the default of 8.
func NewPool(maxTabs int) *Pool {
	if maxTabs <= 0 {
		maxTabs = defaultMaxTabs
	}
	return &Pool{sem: make(chan struct{}, maxTabs)}
}

func (p *Pool) ensureStarted() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("blink-settings", "imagesEnabled=false"),
	)
	p.allocCtx, p.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	p.browserCtx, p.browserCancel = chromedp.NewContext(p.allocCtx)
	// Run with no actions launches the browser process.
	if err := chromedp.Run(p.browserCtx); err != nil {
		p.browserCancel()
		p.allocCancel()
		return fmt.Errorf("failed to start headless browser: %w", err)
	}
	p.started = true
	log.Printf("[browser] headless browser started (max %d tabs)", cap(p.sem))
	return nil
}

// RenderPage loads a URL in a fresh tab, scrolls until the page stops
// growing so lazy-loaded listings appear, and returns the final HTML.
func (p *Pool) RenderPage(ctx context.Context, pageURL string) (string, error) {
	if err := p.ensureStarted(); err != nil {
		return "", err
	}
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return "", ctx.Err()
	}

	tabCtx, cancelTab := chromedp.NewContext(p.browserCtx)
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, renderTimeout)
	defer cancelTimeout()

	var html string
	err := chromedp.Run(tabCtx,
		network.Enable(),
		network.SetBlockedURLs(blockedURLPatterns),
		chromedp.Navigate(pageURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(scrollToBottom),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", pageURL, err)
	}
	return html, nil
}

func scrollToBottom(ctx context.Context) error {
	var lastHeight int64
	for i := 0; i < maxScrolls; i++ {
		var height int64
		if err := chromedp.Evaluate("document.body.scrollHeight", &height).Do(ctx); err != nil {
			return err
		}
		if height == lastHeight {
			return nil
		}
		lastHeight = height
		if err := chromedp.Evaluate("window.scrollTo(0, document.body.scrollHeight)", nil).Do(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(scrollPause):
		}
	}
	return nil
}

// Close shuts the browser down. The pool can be reused; the next
// render starts a fresh process.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return
	}
	p.browserCancel()
	p.allocCancel()
	p.started = false
	log.Printf("[browser] headless browser stopped")
}
