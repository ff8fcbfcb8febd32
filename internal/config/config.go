package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds bootstrap configuration from environment. Operational
// tunables (timeouts, concurrency, cron expression) are not here: they flow
// through the settings resolver so operators can change them live.
type Config struct {
	Port        int
	PostgresURL string
	RedisURL    string
	AdminTokens map[string]struct{}
	WorkerID    string
	WebhookURL  string
	UserAgent   string
}

// Load reads configuration from environment variables.
// Env prefix: WORKER_
func Load() *Config {
	port := getEnvInt("WORKER_PORT", 8082)
	postgres := getEnv("WORKER_POSTGRES_URL", "postgres://localhost:5432/binbang")
	redis := getEnv("WORKER_REDIS_URL", "redis://localhost:6379/0")
	tokensRaw := getEnv("WORKER_ADMIN_TOKENS", "")
	workerID := getEnv("WORKER_ID", "")
	if workerID == "" {
		host, _ := os.Hostname()
		if host == "" {
			host = "worker"
		}
		workerID = host
	}

	tokens := make(map[string]struct{})
	for _, t := range strings.Split(tokensRaw, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tokens[t] = struct{}{}
		}
	}

	return &Config{
		Port:        port,
		PostgresURL: postgres,
		RedisURL:    redis,
		AdminTokens: tokens,
		WorkerID:    workerID,
		WebhookURL:  getEnv("WORKER_NOTIFY_WEBHOOK_URL", ""),
		UserAgent: getEnv("WORKER_USER_AGENT",
			"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) "+
				"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}
