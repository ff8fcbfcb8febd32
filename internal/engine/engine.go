package engine

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/browser"
	"github.com/qorlgns1/binbang-sub001/internal/extract"
	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// ErrPatternNotDetected is the soft outcome text recorded when no extraction
// stage matched. It usually means the page layout changed and a selector
// update is due, not that anything is broken.
const ErrPatternNotDetected = "pattern not detected"

// settlePollInterval is how often the settle phase re-reads page text while
// waiting for an availability pattern to render.
const settlePollInterval = 500 * time.Millisecond

// RuntimeConfig is the engine's per-check configuration snapshot. The caller
// sources it from the settings resolver; the engine never reads settings
// itself, which keeps it pure and testable.
type RuntimeConfig struct {
	NavigationTimeout    time.Duration
	ContentWaitTimeout   time.Duration
	PatternRetryWait     time.Duration
	RetryDelay           time.Duration
	MaxRetries           int
	BlockedResourceTypes []string
	ScrollDistanceAirbnb int
	ScrollDistanceAgoda  int

	// Diagnostics keeps the matched-selector/matched-pattern traces on the
	// result; production checks drop them. TestableAttrs additionally
	// switches on the element snapshot used by selector-authoring tooling.
	Diagnostics   bool
	TestableAttrs []string
}

func (c RuntimeConfig) scrollDistance(p model.Platform) int {
	if p == model.PlatformAgoda {
		return c.ScrollDistanceAgoda
	}
	return c.ScrollDistanceAirbnb
}

// HandlePool is the slice of the browser pool the engine uses.
type HandlePool interface {
	Acquire(ctx context.Context) (*browser.Handle, error)
	Release(h *browser.Handle)
}

// RuleSource supplies the cached extraction rule set per platform.
type RuleSource interface {
	Rules(ctx context.Context, platform model.Platform) (*model.ExtractionRuleSet, error)
}

// Engine executes availability checks. It owns the retry loop and the
// extraction fallback chain; persistence and notification belong to the
// caller.
type Engine struct {
	pool   HandlePool
	driver PageDriver
	rules  RuleSource
	log    *zap.Logger

	// sleep is swapped in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration)
}

// New creates a check engine.
func New(pool HandlePool, driver PageDriver, rules RuleSource, log *zap.Logger) *Engine {
	return &Engine{
		pool:   pool,
		driver: driver,
		rules:  rules,
		log:    log,
		sleep:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Check runs the full attempt sequence for one accommodation and always
// returns a result; infrastructure failures are folded into the result's
// Error field after the retry budget is spent.
func (e *Engine) Check(ctx context.Context, acc model.Accommodation, cfg RuntimeConfig) model.CheckResult {
	checkURL, err := BuildCheckURL(acc)
	if err != nil {
		return model.CheckResult{Available: false, Error: err.Error()}
	}

	rules, err := e.rules.Rules(ctx, acc.Platform)
	if err != nil {
		return model.CheckResult{Available: false, CheckedURL: checkURL, Error: err.Error()}
	}

	// A negative budget would skip the loop entirely and leave no error to
	// report; treat it as "no retries".
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		res, err := e.attempt(ctx, acc, checkURL, rules, cfg)
		if err == nil {
			res.CheckedURL = checkURL
			res.RetryCount = attempt
			if !cfg.Diagnostics {
				res.MatchedSelector = ""
				res.MatchedPattern = ""
			}
			return *res
		}
		lastErr = err

		if !Retryable(err) {
			e.log.Warn("check failed with fatal error",
				zap.String("accommodation_id", acc.ID),
				zap.Error(err))
			return model.CheckResult{
				Available:  false,
				CheckedURL: checkURL,
				Error:      err.Error(),
				RetryCount: attempt,
			}
		}
		if attempt < cfg.MaxRetries {
			e.log.Info("retrying check after transient error",
				zap.String("accommodation_id", acc.ID),
				zap.Int("attempt", attempt),
				zap.Error(err))
			e.sleep(ctx, cfg.RetryDelay)
		}
		if ctx.Err() != nil {
			break
		}
	}

	return model.CheckResult{
		Available:  false,
		CheckedURL: checkURL,
		Error:      lastErr.Error(),
		RetryCount: cfg.MaxRetries,
	}
}

// attempt performs one navigate/settle/extract pass on a freshly acquired
// browser. The acquire is always paired with exactly one release, and a
// failed attempt marks its handle unhealthy so the pool retires the browser.
func (e *Engine) attempt(ctx context.Context, acc model.Accommodation, checkURL string, rules *model.ExtractionRuleSet, cfg RuntimeConfig) (res *model.CheckResult, err error) {
	h, err := e.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			h.MarkUnhealthy()
		}
		e.pool.Release(h)
	}()

	page, err := e.driver.Open(h, PageConfig{BlockedResourceTypes: cfg.BlockedResourceTypes})
	if err != nil {
		return nil, err
	}
	defer page.Close()

	if err = page.Navigate(ctx, checkURL, cfg.NavigationTimeout); err != nil {
		return nil, err
	}

	// Settle: nudge lazy content, then wait for either pattern family to
	// show up in the rendered text. Timing out here is not fatal; we
	// extract from whatever is on screen.
	if serr := page.ScrollBy(ctx, cfg.scrollDistance(acc.Platform)); serr != nil {
		e.log.Debug("scroll failed", zap.Error(serr))
	}
	e.waitForPatterns(ctx, page, rules, cfg.ContentWaitTimeout)

	res, err = e.extractOnce(ctx, page, acc.Platform, rules)
	if err != nil {
		return nil, err
	}
	if res == nil && cfg.PatternRetryWait > 0 {
		// One in-place re-scan without re-navigating; a fresh page load
		// would silently change the retry-budget semantics.
		e.sleep(ctx, cfg.PatternRetryWait)
		res, err = e.extractOnce(ctx, page, acc.Platform, rules)
		if err != nil {
			return nil, err
		}
	}
	if res == nil {
		res = &model.CheckResult{Available: false, Error: ErrPatternNotDetected}
	}

	if len(cfg.TestableAttrs) > 0 {
		els, terr := page.TestableElements(ctx, cfg.TestableAttrs)
		if terr != nil {
			e.log.Debug("testable element snapshot failed", zap.Error(terr))
		} else {
			res.TestableElements = els
		}
	}
	return res, nil
}

// waitForPatterns polls page text until an available or unavailable pattern
// appears, or the content-wait window elapses.
func (e *Engine) waitForPatterns(ctx context.Context, page Page, rules *model.ExtractionRuleSet, wait time.Duration) {
	deadline := time.Now().Add(wait)
	for {
		text, err := page.BodyText(ctx)
		if err == nil {
			if _, ok := extract.MatchPattern(text, rules.AvailablePatterns); ok {
				return
			}
			if _, ok := extract.MatchPattern(text, rules.UnavailablePatterns); ok {
				return
			}
		}
		if time.Now().After(deadline) || ctx.Err() != nil {
			return
		}
		e.sleep(ctx, settlePollInterval)
	}
}

// extractOnce runs the fallback chain in strict order: custom extractor,
// declarative selector rules, whole-page pattern match. It returns nil when
// nothing matched, with any partial diagnostics discarded only if a later
// pass supersedes them.
func (e *Engine) extractOnce(ctx context.Context, page Page, platform model.Platform, rules *model.ExtractionRuleSet) (*model.CheckResult, error) {
	script := rules.CustomExtractor
	if script == "" {
		script = extract.DefaultExtractor(platform)
	}
	er, err := page.RunExtractor(ctx, script)
	if err != nil {
		return nil, err
	}
	if er != nil && er.Matched {
		return &model.CheckResult{
			Available:      er.Available,
			Price:          er.Price,
			Metadata:       er.Metadata,
			MatchedPattern: er.Trace,
		}, nil
	}
	// Even an unmatched extractor keeps its metadata so later stages are
	// not starved of diagnostics.
	var partialMeta *model.PlatformMetadata
	if er != nil {
		partialMeta = er.Metadata
	}

	res, err := e.extractBySelectors(ctx, page, rules)
	if err != nil {
		return nil, err
	}
	if res == nil {
		res, err = e.extractByPageText(ctx, page, rules)
		if err != nil {
			return nil, err
		}
	}
	if res != nil && res.Metadata == nil {
		res.Metadata = partialMeta
	}
	return res, nil
}

// extractBySelectors tests availability-category selector text against the
// unavailable patterns first, then the available patterns, taking the price
// from the highest-priority price selector that yields one.
func (e *Engine) extractBySelectors(ctx context.Context, page Page, rules *model.ExtractionRuleSet) (*model.CheckResult, error) {
	availRules := rules.ByCategory(model.SelectorAvailability)
	if len(availRules) == 0 {
		return nil, nil
	}
	selectors := make([]string, len(availRules))
	for i, r := range availRules {
		selectors[i] = r.Selector
	}
	texts, err := page.SelectorTexts(ctx, selectors)
	if err != nil {
		return nil, err
	}

	for i, text := range texts {
		if text == "" {
			continue
		}
		if pat, ok := extract.MatchPattern(text, rules.UnavailablePatterns); ok {
			return &model.CheckResult{
				Available:       false,
				MatchedSelector: selectors[i],
				MatchedPattern:  pat,
			}, nil
		}
	}
	for i, text := range texts {
		if text == "" {
			continue
		}
		if pat, ok := extract.MatchPattern(text, rules.AvailablePatterns); ok {
			price, perr := e.priceFromSelectors(ctx, page, rules)
			if perr != nil {
				return nil, perr
			}
			return &model.CheckResult{
				Available:       true,
				Price:           price,
				MatchedSelector: selectors[i],
				MatchedPattern:  pat,
			}, nil
		}
	}
	return nil, nil
}

func (e *Engine) priceFromSelectors(ctx context.Context, page Page, rules *model.ExtractionRuleSet) (string, error) {
	priceRules := rules.ByCategory(model.SelectorPrice)
	if len(priceRules) == 0 {
		return "", nil
	}
	selectors := make([]string, len(priceRules))
	for i, r := range priceRules {
		selectors[i] = r.Selector
	}
	texts, err := page.SelectorTexts(ctx, selectors)
	if err != nil {
		return "", err
	}
	for _, text := range texts {
		if p := extract.FindPrice(text); p != "" {
			return p, nil
		}
	}
	return "", nil
}

// extractByPageText is the last stage: free-text pattern matching over the
// whole rendered page, with a generic price regex as the final price source.
func (e *Engine) extractByPageText(ctx context.Context, page Page, rules *model.ExtractionRuleSet) (*model.CheckResult, error) {
	text, err := page.BodyText(ctx)
	if err != nil {
		return nil, err
	}
	if pat, ok := extract.MatchPattern(text, rules.UnavailablePatterns); ok {
		return &model.CheckResult{Available: false, MatchedPattern: pat}, nil
	}
	if pat, ok := extract.MatchPattern(text, rules.AvailablePatterns); ok {
		return &model.CheckResult{
			Available:      true,
			Price:          extract.FindPrice(text),
			MatchedPattern: pat,
		}, nil
	}
	return nil, nil
}
