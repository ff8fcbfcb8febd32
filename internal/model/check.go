package model

// PlatformMetadata holds structured data captured from page-embedded JSON
// (schema.org blocks and platform data attributes).
type PlatformMetadata struct {
	PlatformID  string  `json:"platform_id,omitempty"`
	Name        string  `json:"name,omitempty"`
	Image       string  `json:"image,omitempty"`
	Description string  `json:"description,omitempty"`
	Address     string  `json:"address,omitempty"`
	Rating      string  `json:"rating,omitempty"`
	Latitude    float64 `json:"latitude,omitempty"`
	Longitude   float64 `json:"longitude,omitempty"`
}

// TestableElement is a diagnostic snapshot of one page element carrying an
// attribute the caller asked about. Used by selector-authoring tooling only.
type TestableElement struct {
	Tag       string `json:"tag"`
	Attribute string `json:"attribute"`
	Value     string `json:"value"`
	Text      string `json:"text"`
	HTML      string `json:"html"`
}

// CheckResult is the output of one check attempt sequence.
type CheckResult struct {
	Available  bool              `json:"available"`
	Price      string            `json:"price,omitempty"`
	CheckedURL string            `json:"checked_url"`
	Error      string            `json:"error,omitempty"`
	RetryCount int               `json:"retry_count"`
	Metadata   *PlatformMetadata `json:"metadata,omitempty"`

	// Diagnostic traces, populated only for test/diagnostic invocations.
	MatchedSelector  string            `json:"matched_selector,omitempty"`
	MatchedPattern   string            `json:"matched_pattern,omitempty"`
	TestableElements []TestableElement `json:"testable_elements,omitempty"`
}

// NotificationPayload is the boundary contract handed to the outbound
// messaging collaborator when a listing becomes bookable.
type NotificationPayload struct {
	AccommodationName string `json:"accommodation_name"`
	CheckIn           string `json:"check_in"`
	CheckOut          string `json:"check_out"`
	Price             string `json:"price,omitempty"`
	URL               string `json:"url"`
}
