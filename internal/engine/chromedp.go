package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/fetch"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/qorlgns1/binbang-sub001/internal/browser"
	"github.com/qorlgns1/binbang-sub001/internal/extract"
	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// ChromeDriver opens chromedp tabs on pooled browser handles.
type ChromeDriver struct{}

// NewChromeDriver returns the production page driver.
func NewChromeDriver() *ChromeDriver {
	return &ChromeDriver{}
}

type chromePage struct {
	tabCtx    context.Context
	cancelTab context.CancelFunc
}

// Open creates a tab on the handle's browser, applies the locale header and
// arms request interception for the blocked resource types.
func (d *ChromeDriver) Open(h *browser.Handle, cfg PageConfig) (Page, error) {
	tabCtx, cancelTab := chromedp.NewContext(h.Context())

	locale := cfg.Locale
	if locale == "" {
		locale = "ko-KR,ko;q=0.9,en;q=0.8"
	}

	actions := []chromedp.Action{
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": locale}),
	}

	if len(cfg.BlockedResourceTypes) > 0 {
		blocked := make(map[network.ResourceType]bool, len(cfg.BlockedResourceTypes))
		for _, t := range cfg.BlockedResourceTypes {
			blocked[network.ResourceType(t)] = true
		}
		chromedp.ListenTarget(tabCtx, func(ev interface{}) {
			e, ok := ev.(*fetch.EventRequestPaused)
			if !ok {
				return
			}
			go func() {
				c := chromedp.FromContext(tabCtx)
				ectx := cdp.WithExecutor(tabCtx, c.Target)
				if blocked[e.ResourceType] {
					_ = fetch.FailRequest(e.RequestID, network.ErrorReasonBlockedByClient).Do(ectx)
				} else {
					_ = fetch.ContinueRequest(e.RequestID).Do(ectx)
				}
			}()
		})
		actions = append(actions, fetch.Enable())
	}

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		cancelTab()
		return nil, fmt.Errorf("page setup: %w", err)
	}
	return &chromePage{tabCtx: tabCtx, cancelTab: cancelTab}, nil
}

func (p *chromePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(p.tabCtx, timeout)
	defer cancel()
	err := chromedp.Run(navCtx, chromedp.Navigate(url))
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("Navigation timeout of %dms exceeded", timeout.Milliseconds())
	}
	return err
}

func (p *chromePage) ScrollBy(ctx context.Context, pixels int) error {
	script := fmt.Sprintf(`window.scrollBy(0, %d)`, pixels)
	return p.run(ctx, chromedp.Evaluate(script, nil))
}

func (p *chromePage) BodyText(ctx context.Context) (string, error) {
	var text string
	err := p.run(ctx, chromedp.Evaluate(extract.BodyTextScript, &text))
	return text, err
}

func (p *chromePage) SelectorTexts(ctx context.Context, selectors []string) ([]string, error) {
	arg, _ := json.Marshal(selectors)
	var texts []string
	err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf("(%s)(%s)", extract.SelectorTextScript, arg), &texts))
	return texts, err
}

func (p *chromePage) RunExtractor(ctx context.Context, script string) (*extract.ExtractorResult, error) {
	var res extract.ExtractorResult
	if err := p.run(ctx, chromedp.Evaluate(script, &res)); err != nil {
		return nil, err
	}
	return &res, nil
}

func (p *chromePage) TestableElements(ctx context.Context, attrs []string) ([]model.TestableElement, error) {
	arg, _ := json.Marshal(attrs)
	var els []model.TestableElement
	err := p.run(ctx, chromedp.Evaluate(fmt.Sprintf("(%s)(%s)", extract.TestableElementsScript, arg), &els))
	return els, err
}

func (p *chromePage) Close() {
	p.cancelTab()
}

// run executes actions on the tab, honoring the caller's cancellation.
func (p *chromePage) run(ctx context.Context, actions ...chromedp.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(p.tabCtx, actions...) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
