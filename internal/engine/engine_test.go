package engine

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/qorlgns1/binbang-sub001/internal/browser"
	"github.com/qorlgns1/binbang-sub001/internal/extract"
	"github.com/qorlgns1/binbang-sub001/internal/model"
)

type fakePage struct {
	navErr   error
	navCalls int
	body     string
	selTexts map[string]string
	selCalls int
	extSeq   []*extract.ExtractorResult
	extErr   error
	extCalls int
	elements []model.TestableElement
	closed   bool
}

func (p *fakePage) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	p.navCalls++
	return p.navErr
}

func (p *fakePage) ScrollBy(ctx context.Context, pixels int) error { return nil }

func (p *fakePage) BodyText(ctx context.Context) (string, error) { return p.body, nil }

func (p *fakePage) SelectorTexts(ctx context.Context, selectors []string) ([]string, error) {
	p.selCalls++
	out := make([]string, len(selectors))
	for i, s := range selectors {
		out[i] = p.selTexts[s]
	}
	return out, nil
}

func (p *fakePage) RunExtractor(ctx context.Context, script string) (*extract.ExtractorResult, error) {
	p.extCalls++
	if p.extErr != nil {
		return nil, p.extErr
	}
	if len(p.extSeq) == 0 {
		return &extract.ExtractorResult{}, nil
	}
	i := p.extCalls - 1
	if i >= len(p.extSeq) {
		i = len(p.extSeq) - 1
	}
	return p.extSeq[i], nil
}

func (p *fakePage) TestableElements(ctx context.Context, attrs []string) ([]model.TestableElement, error) {
	return p.elements, nil
}

func (p *fakePage) Close() { p.closed = true }

// fakeDriver hands out one scripted page per attempt, repeating the last
// page when attempts outnumber the script.
type fakeDriver struct {
	pages  []*fakePage
	opened int
}

func (d *fakeDriver) Open(h *browser.Handle, cfg PageConfig) (Page, error) {
	i := d.opened
	d.opened++
	if i >= len(d.pages) {
		i = len(d.pages) - 1
	}
	return d.pages[i], nil
}

type fakePool struct {
	acquires   int
	releases   int
	retired    int
	acquireErr error
}

func (p *fakePool) Acquire(ctx context.Context) (*browser.Handle, error) {
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	p.acquires++
	return browser.NewHandle(context.Background(), func() {}), nil
}

func (p *fakePool) Release(h *browser.Handle) {
	p.releases++
	if !h.Healthy() {
		p.retired++
	}
}

type fakeRules struct {
	set *model.ExtractionRuleSet
	err error
}

func (r *fakeRules) Rules(ctx context.Context, platform model.Platform) (*model.ExtractionRuleSet, error) {
	return r.set, r.err
}

func testRules() *model.ExtractionRuleSet {
	return &model.ExtractionRuleSet{
		Platform:            model.PlatformAirbnb,
		AvailablePatterns:   []string{"예약 가능", "available"},
		UnavailablePatterns: []string{"예약 마감", "sold out"},
	}
}

func testAccommodation() model.Accommodation {
	return model.Accommodation{
		ID:       "acc-1",
		URL:      "https://www.airbnb.co.kr/rooms/12345",
		Platform: model.PlatformAirbnb,
		CheckIn:  time.Date(2026, 9, 10, 0, 0, 0, 0, time.UTC),
		CheckOut: time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC),
		Adults:   2,
		Active:   true,
	}
}

func testConfig() RuntimeConfig {
	return RuntimeConfig{
		NavigationTimeout:  30 * time.Second,
		ContentWaitTimeout: 0,
		PatternRetryWait:   time.Second,
		RetryDelay:         time.Second,
		MaxRetries:         3,
	}
}

func newTestEngine(pool HandlePool, driver PageDriver, rules RuleSource) *Engine {
	e := New(pool, driver, rules, zap.NewNop())
	e.sleep = func(ctx context.Context, d time.Duration) {}
	return e
}

func TestCheckFatalNavigationTimeoutStopsRetrying(t *testing.T) {
	page := &fakePage{navErr: errors.New("Navigation timeout of 30000ms exceeded")}
	pool := &fakePool{}
	e := newTestEngine(pool, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if res.Available {
		t.Fatal("expected unavailable result")
	}
	if !strings.Contains(res.Error, "Navigation timeout") {
		t.Fatalf("expected navigation timeout error, got %q", res.Error)
	}
	if res.RetryCount != 0 {
		t.Fatalf("fatal error must not consume retries, got RetryCount=%d", res.RetryCount)
	}
	if pool.acquires != 1 {
		t.Fatalf("expected exactly one attempt, got %d acquires", pool.acquires)
	}
	if pool.retired != 1 {
		t.Fatalf("failed attempt must retire its browser, retired=%d", pool.retired)
	}
}

func TestCheckRetriesTransientThenSucceeds(t *testing.T) {
	broken := &fakePage{navErr: errors.New("net::ERR_CONNECTION_RESET")}
	ok := &fakePage{body: "이 숙소는 현재 예약 마감 상태입니다"}
	pool := &fakePool{}
	e := newTestEngine(pool, &fakeDriver{pages: []*fakePage{broken, broken, ok}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if res.Available {
		t.Fatal("expected unavailable")
	}
	if res.Error != "" {
		t.Fatalf("recovered check must report no error, got %q", res.Error)
	}
	if res.RetryCount != 2 {
		t.Fatalf("expected RetryCount=2, got %d", res.RetryCount)
	}
	if pool.acquires != 3 {
		t.Fatalf("expected 3 attempts, got %d", pool.acquires)
	}
	if pool.releases != 3 {
		t.Fatalf("every acquire needs a release, got %d", pool.releases)
	}
	if pool.retired != 2 {
		t.Fatalf("expected 2 retired browsers, got %d", pool.retired)
	}
}

func TestCheckExhaustsRetryBudget(t *testing.T) {
	page := &fakePage{navErr: errors.New("net::ERR_CONNECTION_REFUSED")}
	pool := &fakePool{}
	cfg := testConfig()
	cfg.MaxRetries = 2
	e := newTestEngine(pool, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), cfg)

	if res.Error == "" {
		t.Fatal("exhausted budget must surface the last error")
	}
	if res.RetryCount != 2 {
		t.Fatalf("expected RetryCount=2, got %d", res.RetryCount)
	}
	if pool.acquires != 3 {
		t.Fatalf("expected initial attempt plus 2 retries, got %d acquires", pool.acquires)
	}
}

func TestCustomExtractorWinsOverSelectors(t *testing.T) {
	page := &fakePage{
		extSeq: []*extract.ExtractorResult{{
			Matched:   true,
			Available: true,
			Price:     "₩150,000",
			Metadata:  &model.PlatformMetadata{Name: "한강뷰 아파트"},
		}},
	}
	rules := testRules()
	rules.CustomExtractor = "() => ({matched: true})"
	rules.Selectors = []model.SelectorRule{
		{Category: model.SelectorAvailability, Selector: "#avail", Priority: 10},
	}
	pool := &fakePool{}
	e := newTestEngine(pool, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: rules})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if !res.Available {
		t.Fatal("expected available")
	}
	if res.Price != "₩150,000" {
		t.Fatalf("expected extractor price, got %q", res.Price)
	}
	if res.Metadata == nil || res.Metadata.Name != "한강뷰 아파트" {
		t.Fatalf("expected extractor metadata, got %+v", res.Metadata)
	}
	if page.selCalls != 0 {
		t.Fatalf("matched extractor must short-circuit selector stage, got %d selector reads", page.selCalls)
	}
	if res.RetryCount != 0 || res.Error != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestSelectorStageUnavailableBeatsAvailable(t *testing.T) {
	page := &fakePage{
		selTexts: map[string]string{
			"#banner": "지금 예약 가능",
			"#status": "해당 날짜는 예약 마감",
		},
	}
	rules := testRules()
	rules.Selectors = []model.SelectorRule{
		{Category: model.SelectorAvailability, Selector: "#banner", Priority: 20},
		{Category: model.SelectorAvailability, Selector: "#status", Priority: 10},
	}
	cfg := testConfig()
	cfg.Diagnostics = true
	e := newTestEngine(&fakePool{}, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: rules})

	res := e.Check(context.Background(), testAccommodation(), cfg)

	if res.Available {
		t.Fatal("an unavailable pattern on any selector must win")
	}
	if res.MatchedSelector != "#status" {
		t.Fatalf("expected #status, got %q", res.MatchedSelector)
	}
	if res.MatchedPattern != "예약 마감" {
		t.Fatalf("expected matched pattern trace, got %q", res.MatchedPattern)
	}
}

func TestSelectorStageAvailableWithPrice(t *testing.T) {
	page := &fakePage{
		selTexts: map[string]string{
			"#avail":   "예약 가능",
			".price":   "총액 ₩99,000 / 박",
			".price-2": "₩120,000",
		},
	}
	rules := testRules()
	rules.Selectors = []model.SelectorRule{
		{Category: model.SelectorAvailability, Selector: "#avail", Priority: 10},
		{Category: model.SelectorPrice, Selector: ".price", Priority: 20},
		{Category: model.SelectorPrice, Selector: ".price-2", Priority: 10},
	}
	e := newTestEngine(&fakePool{}, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: rules})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if !res.Available {
		t.Fatal("expected available")
	}
	if res.Price != "₩99,000" {
		t.Fatalf("expected price from highest-priority selector, got %q", res.Price)
	}
}

func TestPageTextFallback(t *testing.T) {
	page := &fakePage{body: "이 날짜에 예약 가능합니다. 1박 ₩88,000부터"}
	e := newTestEngine(&fakePool{}, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if !res.Available {
		t.Fatal("expected available from page text")
	}
	if res.Price != "₩88,000" {
		t.Fatalf("expected generic price scan result, got %q", res.Price)
	}
}

func TestPatternRetryRescansWithoutRenavigating(t *testing.T) {
	page := &fakePage{
		extSeq: []*extract.ExtractorResult{
			{Matched: false},
			{Matched: true, Available: true, Price: "₩70,000"},
		},
	}
	e := newTestEngine(&fakePool{}, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if !res.Available {
		t.Fatal("expected the re-scan to match")
	}
	if page.navCalls != 1 {
		t.Fatalf("re-scan must not re-navigate, got %d navigations", page.navCalls)
	}
	if page.extCalls != 2 {
		t.Fatalf("expected exactly one re-scan, got %d extractor runs", page.extCalls)
	}
	if res.RetryCount != 0 {
		t.Fatalf("in-place re-scan must not consume the retry budget, RetryCount=%d", res.RetryCount)
	}
}

func TestPatternNotDetectedIsSoftOutcome(t *testing.T) {
	page := &fakePage{body: "쿠키 동의 배너"}
	pool := &fakePool{}
	e := newTestEngine(pool, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if res.Available {
		t.Fatal("expected unavailable")
	}
	if res.Error != ErrPatternNotDetected {
		t.Fatalf("expected %q, got %q", ErrPatternNotDetected, res.Error)
	}
	if res.RetryCount != 0 {
		t.Fatalf("soft outcome must not burn retries, RetryCount=%d", res.RetryCount)
	}
	if pool.acquires != 1 {
		t.Fatalf("expected a single attempt, got %d", pool.acquires)
	}
	if pool.retired != 0 {
		t.Fatal("soft outcome must not retire the browser")
	}
}

func TestCheckDiagnosticsStrippedByDefault(t *testing.T) {
	page := &fakePage{body: "예약 가능"}
	e := newTestEngine(&fakePool{}, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if res.MatchedPattern != "" || res.MatchedSelector != "" {
		t.Fatalf("production checks must drop traces, got %+v", res)
	}
}

func TestCheckTestableElementsSnapshot(t *testing.T) {
	page := &fakePage{
		body:     "예약 가능",
		elements: []model.TestableElement{{Tag: "button", Attribute: "data-testid", Value: "reserve"}},
	}
	cfg := testConfig()
	cfg.TestableAttrs = []string{"data-testid"}
	e := newTestEngine(&fakePool{}, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), cfg)

	if len(res.TestableElements) != 1 || res.TestableElements[0].Value != "reserve" {
		t.Fatalf("expected element snapshot, got %+v", res.TestableElements)
	}
}

func TestCheckRulesLoadFailure(t *testing.T) {
	pool := &fakePool{}
	e := newTestEngine(pool, &fakeDriver{pages: []*fakePage{{}}}, &fakeRules{err: errors.New("rules query failed")})

	res := e.Check(context.Background(), testAccommodation(), testConfig())

	if res.Error != "rules query failed" {
		t.Fatalf("expected rules error, got %q", res.Error)
	}
	if pool.acquires != 0 {
		t.Fatal("rules failure must not touch the browser pool")
	}
}

func TestCheckNegativeMaxRetriesStillReturnsResult(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = -1

	// A healthy page must yield a normal single-attempt result.
	page := &fakePage{body: "예약 가능"}
	pool := &fakePool{}
	e := newTestEngine(pool, &fakeDriver{pages: []*fakePage{page}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), cfg)
	if !res.Available || res.Error != "" {
		t.Fatalf("expected a clean result, got %+v", res)
	}
	if pool.acquires != 1 {
		t.Fatalf("expected one attempt, got %d", pool.acquires)
	}

	// A failing page must surface its error instead of panicking.
	broken := &fakePage{navErr: errors.New("net::ERR_CONNECTION_RESET")}
	pool = &fakePool{}
	e = newTestEngine(pool, &fakeDriver{pages: []*fakePage{broken}}, &fakeRules{set: testRules()})

	res = e.Check(context.Background(), testAccommodation(), cfg)
	if res.Error == "" {
		t.Fatal("expected the transport error on the result")
	}
	if res.RetryCount != 0 {
		t.Fatalf("negative budget must mean no retries, RetryCount=%d", res.RetryCount)
	}
	if pool.acquires != 1 {
		t.Fatalf("expected a single attempt, got %d", pool.acquires)
	}
}

func TestCheckPoolAcquireFailure(t *testing.T) {
	pool := &fakePool{acquireErr: errors.New("browser pool is closed")}
	e := newTestEngine(pool, &fakeDriver{pages: []*fakePage{{}}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), testAccommodation(), testConfig())
	if res.Error != "browser pool is closed" {
		t.Fatalf("expected the pool error, got %q", res.Error)
	}
	if res.Available {
		t.Fatal("expected unavailable result")
	}
	if pool.releases != 0 {
		t.Fatal("a failed acquire must not be released")
	}
}

func TestCheckInvalidURL(t *testing.T) {
	acc := testAccommodation()
	acc.URL = "://not-a-url"
	e := newTestEngine(&fakePool{}, &fakeDriver{pages: []*fakePage{{}}}, &fakeRules{set: testRules()})

	res := e.Check(context.Background(), acc, testConfig())
	if res.Error == "" {
		t.Fatal("expected URL build error")
	}
}
