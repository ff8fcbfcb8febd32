package model

import "time"

// SelectorCategory groups declarative selector rules by what they locate.
type SelectorCategory string

const (
	SelectorPrice        SelectorCategory = "price"
	SelectorAvailability SelectorCategory = "availability"
	SelectorMetadata     SelectorCategory = "metadata"
	SelectorPlatformID   SelectorCategory = "platform_id"
)

// SelectorRule is one declarative CSS selector rule. Higher priority rules
// are tried first within their category.
type SelectorRule struct {
	Category SelectorCategory `json:"category"`
	Selector string           `json:"selector"`
	Priority int              `json:"priority"`
}

// ExtractionRuleSet is the per-platform bundle the engine extracts with:
// an optional custom in-page extractor script, selector rules ordered by
// descending priority, and the two free-text pattern lists.
type ExtractionRuleSet struct {
	Platform            Platform       `json:"platform"`
	CustomExtractor     string         `json:"custom_extractor,omitempty"`
	Selectors           []SelectorRule `json:"selectors"`
	AvailablePatterns   []string       `json:"available_patterns"`
	UnavailablePatterns []string       `json:"unavailable_patterns"`
	LoadedAt            time.Time      `json:"loaded_at"`
}

// ByCategory returns the rules for one category, preserving priority order.
func (rs *ExtractionRuleSet) ByCategory(c SelectorCategory) []SelectorRule {
	var out []SelectorRule
	for _, r := range rs.Selectors {
		if r.Category == c {
			out = append(out, r)
		}
	}
	return out
}
