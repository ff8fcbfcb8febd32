package engine

import "strings"

// fatalMarkers always end the retry loop. Both indicate the target is
// unreachable or unresponsive rather than transiently flaky; retrying would
// only burn pool capacity.
var fatalMarkers = []string{
	"navigation timeout",
	"script timeout",
}

// retryableVocab matches transient infrastructure failures worth another
// attempt on a fresh browser.
var retryableVocab = []string{
	"net::err_connection",
	"net::err_network_changed",
	"net::err_internet_disconnected",
	"net::err_name_not_resolved",
	"net::err_timed_out",
	"net::err_aborted",
	"connection closed",
	"connection reset",
	"connection refused",
	"protocol error",
	"target closed",
	"target crashed",
	"websocket url timeout",
	"navigation failed",
	"dns",
	"timeout",
}

// Retryable classifies a thrown navigation/protocol/network error. Fatal
// markers win over any vocabulary overlap; unknown errors are not retried.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, m := range fatalMarkers {
		if strings.Contains(msg, m) {
			return false
		}
	}
	for _, v := range retryableVocab {
		if strings.Contains(msg, v) {
			return true
		}
	}
	return false
}
