package engine

import (
	"context"
	"time"

	"github.com/qorlgns1/binbang-sub001/internal/browser"
	"github.com/qorlgns1/binbang-sub001/internal/extract"
	"github.com/qorlgns1/binbang-sub001/internal/model"
)

// PageConfig is the per-page setup applied before navigation.
type PageConfig struct {
	BlockedResourceTypes []string
	Locale               string
}

// Page is one open browser tab. The engine drives checks exclusively
// through this interface so its control flow is testable without Chrome.
type Page interface {
	Navigate(ctx context.Context, url string, timeout time.Duration) error
	ScrollBy(ctx context.Context, pixels int) error
	BodyText(ctx context.Context) (string, error)
	SelectorTexts(ctx context.Context, selectors []string) ([]string, error)
	RunExtractor(ctx context.Context, script string) (*extract.ExtractorResult, error)
	TestableElements(ctx context.Context, attrs []string) ([]model.TestableElement, error)
	Close()
}

// PageDriver opens pages on a pooled browser handle.
type PageDriver interface {
	Open(h *browser.Handle, cfg PageConfig) (Page, error)
}
