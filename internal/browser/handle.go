package browser

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/chromedp/chromedp"
)

// Handle wraps one running headless Chrome process. While idle it is owned
// by the pool; while acquired it is loaned to exactly one in-flight check.
type Handle struct {
	createdAt     time.Time
	browserCtx    context.Context
	cancelBrowser context.CancelFunc
	cancelAlloc   context.CancelFunc
	failed        atomic.Bool
}

// Context returns the browser-level context. Tabs are opened as child
// contexts of it.
func (h *Handle) Context() context.Context {
	return h.browserCtx
}

// CreatedAt reports when the underlying browser process was started.
func (h *Handle) CreatedAt() time.Time {
	return h.createdAt
}

// MarkUnhealthy flags the handle so the pool destroys it on release instead
// of returning it to the idle set.
func (h *Handle) MarkUnhealthy() {
	h.failed.Store(true)
}

// Healthy reports whether the browser process is still usable.
func (h *Handle) Healthy() bool {
	return !h.failed.Load() && h.browserCtx.Err() == nil
}

func (h *Handle) close() {
	if h.cancelBrowser != nil {
		h.cancelBrowser()
	}
	if h.cancelAlloc != nil {
		h.cancelAlloc()
	}
}

// Factory creates a ready-to-use handle. Split out so pool tests can run
// against stub handles without a Chrome binary.
type Factory func(ctx context.Context) (*Handle, error)

// NewHandle wraps an existing browser context in a pool handle. Most callers
// go through ChromeFactory; custom factories build handles directly.
func NewHandle(browserCtx context.Context, cancel context.CancelFunc) *Handle {
	return &Handle{
		createdAt:     time.Now(),
		browserCtx:    browserCtx,
		cancelBrowser: cancel,
	}
}

// ChromeFactory returns a Factory that starts one Chrome process per handle
// via a dedicated exec allocator.
func ChromeFactory(userAgent string) Factory {
	return func(ctx context.Context) (*Handle, error) {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("disable-blink-features", "AutomationControlled"),
			chromedp.UserAgent(userAgent),
			chromedp.WindowSize(1440, 900),
		)
		allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), opts...)
		browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

		// Start the process now so creation failures surface here, not on
		// the first navigation.
		if err := chromedp.Run(browserCtx); err != nil {
			cancelBrowser()
			cancelAlloc()
			return nil, err
		}

		return &Handle{
			createdAt:     time.Now(),
			browserCtx:    browserCtx,
			cancelBrowser: cancelBrowser,
			cancelAlloc:   cancelAlloc,
		}, nil
	}
}
