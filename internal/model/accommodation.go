package model

import "time"

// Platform identifies which booking site an accommodation lives on.
type Platform string

const (
	PlatformAirbnb Platform = "airbnb"
	PlatformAgoda  Platform = "agoda"
)

// Valid reports whether p is one of the supported platforms.
func (p Platform) Valid() bool {
	return p == PlatformAirbnb || p == PlatformAgoda
}

// Accommodation is one tracked listing to check. It is supplied by the
// persistence layer and never mutated by the worker.
type Accommodation struct {
	ID       string    `json:"id"`
	URL      string    `json:"url"`
	Platform Platform  `json:"platform"`
	CheckIn  time.Time `json:"check_in"`
	CheckOut time.Time `json:"check_out"`
	Adults   int       `json:"adults"`
	Children int       `json:"children"`
	Rooms    int       `json:"rooms"`
	Active   bool      `json:"active"`
}
