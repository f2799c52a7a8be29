// Package browser drives a headless Chrome instance so page reloads can
// be timed alongside builds.
package browser

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// Browser is a headless Chrome instance with one open page.
type Browser struct {
	ctx     context.Context
	cancels []context.CancelFunc
}

// Launch starts headless Chrome and opens a blank page.
func Launch(parent context.Context) (*Browser, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, chromedp.DefaultExecAllocatorOptions[:]...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx)
	b := &Browser{ctx: tabCtx, cancels: []context.CancelFunc{cancelTab, cancelAlloc}}

	// Run with no actions forces the browser process to start now, so a
	// missing Chrome binary fails here instead of mid-benchmark.
	if err := chromedp.Run(tabCtx); err != nil {
		b.Close()
		return nil, fmt.Errorf("browser: launch: %w", err)
	}
	return b, nil
}

// Navigate dispatches navigation to url without waiting for the load to
// finish. Load completion is observed through the profile log instead, so
// the measurement shares a channel with build events.
func (b *Browser) Navigate(url string) error {
	err := chromedp.Run(b.ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("navigation refused: %s", errText)
		}
		return nil
	}))
	if err != nil {
		return fmt.Errorf("browser: navigate %s: %w", url, err)
	}
	return nil
}

// Close tears down the page and the browser process.
func (b *Browser) Close() {
	for _, cancel := range b.cancels {
		cancel()
	}
}
