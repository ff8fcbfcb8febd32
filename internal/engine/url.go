package engine

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/qorlgns1/binbang-sub001/internal/model"
)

const dateLayout = "2006-01-02"

// BuildCheckURL produces the deterministic URL for one check. The source
// URL's own query string is dropped entirely; date and guest parameters are
// rebuilt from the accommodation record so two checks of the same listing
// always hit the same address.
func BuildCheckURL(acc model.Accommodation) (string, error) {
	u, err := url.Parse(acc.URL)
	if err != nil {
		return "", fmt.Errorf("parse accommodation url: %w", err)
	}
	u.Fragment = ""

	q := url.Values{}
	switch acc.Platform {
	case model.PlatformAirbnb:
		q.Set("check_in", acc.CheckIn.Format(dateLayout))
		q.Set("check_out", acc.CheckOut.Format(dateLayout))
		q.Set("adults", strconv.Itoa(acc.Adults))
		if acc.Children > 0 {
			q.Set("children", strconv.Itoa(acc.Children))
		}
	case model.PlatformAgoda:
		q.Set("checkIn", acc.CheckIn.Format(dateLayout))
		q.Set("checkOut", acc.CheckOut.Format(dateLayout))
		q.Set("adults", strconv.Itoa(acc.Adults))
		if acc.Children > 0 {
			q.Set("children", strconv.Itoa(acc.Children))
		}
		rooms := acc.Rooms
		if rooms < 1 {
			rooms = 1
		}
		q.Set("rooms", strconv.Itoa(rooms))
	default:
		return "", fmt.Errorf("unsupported platform %q", acc.Platform)
	}

	u.RawQuery = q.Encode()
	return u.String(), nil
}
