package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != 8082 {
		t.Errorf("Port = %d, want 8082", cfg.Port)
	}
	if cfg.PostgresURL == "" || cfg.RedisURL == "" {
		t.Error("connection URLs must have defaults")
	}
	if cfg.WorkerID == "" {
		t.Error("WorkerID must fall back to the hostname")
	}
	if len(cfg.AdminTokens) != 0 {
		t.Errorf("expected no admin tokens by default, got %d", len(cfg.AdminTokens))
	}
	if cfg.UserAgent == "" {
		t.Error("UserAgent must have a default")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("WORKER_PORT", "9090")
	t.Setenv("WORKER_ID", "worker-7")
	t.Setenv("WORKER_ADMIN_TOKENS", "tok-a, tok-b,,")
	t.Setenv("WORKER_NOTIFY_WEBHOOK_URL", "https://hooks.example.com/x")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.WorkerID != "worker-7" {
		t.Errorf("WorkerID = %q", cfg.WorkerID)
	}
	if len(cfg.AdminTokens) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(cfg.AdminTokens))
	}
	if _, ok := cfg.AdminTokens["tok-b"]; !ok {
		t.Error("token list must be trimmed and split on commas")
	}
	if cfg.WebhookURL != "https://hooks.example.com/x" {
		t.Errorf("WebhookURL = %q", cfg.WebhookURL)
	}
}

func TestLoadBadPortFallsBack(t *testing.T) {
	t.Setenv("WORKER_PORT", "not-a-port")
	if cfg := Load(); cfg.Port != 8082 {
		t.Errorf("Port = %d, want default 8082", cfg.Port)
	}
}
