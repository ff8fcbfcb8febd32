package extract

import (
	"regexp"
	"strings"
)

// priceRe is the last-resort price scan over free text: a currency marker
// followed by a grouped number, e.g. "₩150,000", "$120", "120,000원".
var priceRe = regexp.MustCompile(`(?:[₩$€£]\s?[0-9][0-9,.]*|[0-9][0-9,.]*\s?원)`)

// MatchPattern returns the first pattern found in text, case-insensitively.
// The boolean reports whether any pattern matched.
func MatchPattern(text string, patterns []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, p := range patterns {
		if p == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", false
}

// FindPrice extracts the first price-looking substring from text.
func FindPrice(text string) string {
	return priceRe.FindString(text)
}

// Default free-text pattern lists, used when a platform has no configured
// patterns. Korean first: both platforms serve localized pages for the
// monitored listings.
var (
	defaultAvailable = []string{
		"예약 가능",
		"예약하기",
		"reserve",
		"book now",
		"available",
	}
	defaultUnavailable = []string{
		"예약 마감",
		"이용할 수 없",
		"날짜를 이용할 수 없습니다",
		"sold out",
		"not available",
		"unavailable for your dates",
	}
)
