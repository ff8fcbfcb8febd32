package settings

import (
	"encoding/json"
	"os"
	"strconv"
	"time"
)

// Settings is one immutable, fully resolved configuration snapshot. A new
// snapshot replaces the whole object on reload; callers never see a
// partially updated value set.
type Settings struct {
	CheckCycleCron string

	NavigationTimeout  time.Duration
	ContentWaitTimeout time.Duration
	PatternRetryWait   time.Duration
	RetryDelay         time.Duration
	MaxRetries         int

	BrowserPoolSize  int
	CheckConcurrency int

	BlockedResourceTypes []string
	ScrollDistanceAirbnb int
	ScrollDistanceAgoda  int

	HeartbeatInterval   time.Duration
	CycleWindow         time.Duration
	HealthyThreshold    time.Duration
	DegradedThreshold   time.Duration
	MaxProcessingTime   time.Duration
	WorkerDownCooldown  time.Duration
	WorkerStuckCooldown time.Duration
}

type kind int

const (
	kindString kind = iota
	kindInt
	kindMillis
	kindStrings
)

// definition maps one settings key to its dynamic-store name, optional
// environment variable, and compiled-in default.
type definition struct {
	key  string
	env  string
	def  string
	kind kind
}

var registry = []definition{
	{key: "checkCycleCron", env: "WORKER_CHECK_CYCLE_CRON", def: "*/10 * * * *", kind: kindString},
	{key: "navigationTimeoutMs", env: "WORKER_NAVIGATION_TIMEOUT_MS", def: "30000", kind: kindMillis},
	{key: "contentWaitTimeoutMs", env: "WORKER_CONTENT_WAIT_TIMEOUT_MS", def: "10000", kind: kindMillis},
	{key: "patternRetryWaitMs", env: "WORKER_PATTERN_RETRY_WAIT_MS", def: "3000", kind: kindMillis},
	{key: "retryDelayMs", env: "WORKER_RETRY_DELAY_MS", def: "2000", kind: kindMillis},
	{key: "maxRetries", env: "WORKER_MAX_RETRIES", def: "2", kind: kindInt},
	{key: "browserPoolSize", env: "WORKER_BROWSER_POOL_SIZE", def: "3", kind: kindInt},
	{key: "checkConcurrency", env: "WORKER_CHECK_CONCURRENCY", def: "3", kind: kindInt},
	{key: "blockedResourceTypes", env: "", def: `["Image","Media","Font"]`, kind: kindStrings},
	{key: "scrollDistanceAirbnb", env: "", def: "1200", kind: kindInt},
	{key: "scrollDistanceAgoda", env: "", def: "2000", kind: kindInt},
	{key: "heartbeatIntervalMs", env: "WORKER_HEARTBEAT_INTERVAL_MS", def: "60000", kind: kindMillis},
	{key: "cycleWindowMs", env: "WORKER_CYCLE_WINDOW_MS", def: "600000", kind: kindMillis},
	{key: "healthyThresholdMs", env: "", def: "2400000", kind: kindMillis},
	{key: "degradedThresholdMs", env: "", def: "5400000", kind: kindMillis},
	{key: "maxProcessingTimeMs", env: "", def: "1800000", kind: kindMillis},
	{key: "workerDownCooldownMs", env: "", def: "3600000", kind: kindMillis},
	{key: "workerStuckCooldownMs", env: "", def: "1800000", kind: kindMillis},
}

// resolve picks the value for one definition: dynamic store value if present
// and non-empty, then the mapped environment variable, then the default.
func resolve(d definition, store map[string]string) string {
	if v, ok := store[d.key]; ok && v != "" {
		return v
	}
	if d.env != "" {
		if v := os.Getenv(d.env); v != "" {
			return v
		}
	}
	return d.def
}

// build assembles a Settings snapshot from raw store values. Typed coercion
// falls back to the compiled-in default on parse failure instead of
// propagating an error.
func build(store map[string]string) *Settings {
	raw := make(map[string]string, len(registry))
	for _, d := range registry {
		raw[d.key] = resolve(d, store)
	}

	intOf := func(key string) int {
		d := lookup(key)
		if n, err := strconv.Atoi(raw[key]); err == nil {
			return n
		}
		n, _ := strconv.Atoi(d.def)
		return n
	}
	millisOf := func(key string) time.Duration {
		return time.Duration(intOf(key)) * time.Millisecond
	}
	stringsOf := func(key string) []string {
		d := lookup(key)
		var out []string
		if err := json.Unmarshal([]byte(raw[key]), &out); err == nil {
			return out
		}
		out = nil
		_ = json.Unmarshal([]byte(d.def), &out)
		return out
	}

	maxRetries := intOf("maxRetries")
	if maxRetries < 0 {
		maxRetries = 0
	}

	return &Settings{
		CheckCycleCron:       raw["checkCycleCron"],
		NavigationTimeout:    millisOf("navigationTimeoutMs"),
		ContentWaitTimeout:   millisOf("contentWaitTimeoutMs"),
		PatternRetryWait:     millisOf("patternRetryWaitMs"),
		RetryDelay:           millisOf("retryDelayMs"),
		MaxRetries:           maxRetries,
		BrowserPoolSize:      intOf("browserPoolSize"),
		CheckConcurrency:     intOf("checkConcurrency"),
		BlockedResourceTypes: stringsOf("blockedResourceTypes"),
		ScrollDistanceAirbnb: intOf("scrollDistanceAirbnb"),
		ScrollDistanceAgoda:  intOf("scrollDistanceAgoda"),
		HeartbeatInterval:    millisOf("heartbeatIntervalMs"),
		CycleWindow:          millisOf("cycleWindowMs"),
		HealthyThreshold:     millisOf("healthyThresholdMs"),
		DegradedThreshold:    millisOf("degradedThresholdMs"),
		MaxProcessingTime:    millisOf("maxProcessingTimeMs"),
		WorkerDownCooldown:   millisOf("workerDownCooldownMs"),
		WorkerStuckCooldown:  millisOf("workerStuckCooldownMs"),
	}
}

func lookup(key string) definition {
	for _, d := range registry {
		if d.key == key {
			return d
		}
	}
	return definition{}
}
