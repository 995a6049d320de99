package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := `
server:
  address: 127.0.0.1
  port: 9090
storage:
  db_path: /tmp/flockd-db
feed:
  page_size: 10
  max_page_size: 40
conversation:
  page_size: 15
live:
  poll_interval_ms: 2000
  fetch_timeout_ms: 1000
  max_retries: 5
recount:
  enabled: true
  cron: "0 4 * * *"
security:
  api_keys:
    backend: ["bk1"]
    admin: ["ak1"]
logging:
  level: debug
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Addr() != "127.0.0.1:9090" {
		t.Fatalf("unexpected addr %q", cfg.Addr())
	}
	if cfg.Storage.DBPath != "/tmp/flockd-db" {
		t.Fatalf("unexpected db path %q", cfg.Storage.DBPath)
	}
	if cfg.FeedPageSize() != 10 || cfg.FeedMaxPageSize() != 40 {
		t.Fatalf("unexpected feed sizes %d/%d", cfg.FeedPageSize(), cfg.FeedMaxPageSize())
	}
	if cfg.ConversationPageSize() != 15 {
		t.Fatalf("unexpected conversation page size %d", cfg.ConversationPageSize())
	}
	if cfg.PollInterval() != 2*time.Second || cfg.FetchTimeout() != time.Second || cfg.MaxRetries() != 5 {
		t.Fatalf("unexpected live tuning %v/%v/%d", cfg.PollInterval(), cfg.FetchTimeout(), cfg.MaxRetries())
	}
	if !cfg.Recount.Enabled || cfg.Recount.Cron != "0 4 * * *" {
		t.Fatalf("unexpected recount config %+v", cfg.Recount)
	}
}

func TestDefaultsWhenUnset(t *testing.T) {
	cfg := &Config{}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Fatalf("unexpected default addr %q", cfg.Addr())
	}
	if cfg.FeedPageSize() != DefaultFeedPageSize || cfg.FeedMaxPageSize() != DefaultFeedMaxPageSize {
		t.Fatalf("unexpected feed defaults %d/%d", cfg.FeedPageSize(), cfg.FeedMaxPageSize())
	}
	if cfg.ConversationPageSize() != DefaultConversationPageSize {
		t.Fatalf("unexpected conversation default %d", cfg.ConversationPageSize())
	}
	if cfg.PollInterval() != 5*time.Second || cfg.FetchTimeout() != 3*time.Second || cfg.MaxRetries() != DefaultMaxRetries {
		t.Fatalf("unexpected live defaults %v/%v/%d", cfg.PollInterval(), cfg.FetchTimeout(), cfg.MaxRetries())
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FLOCKD_ADDR", "127.0.0.1:7000")
	t.Setenv("FLOCKD_DB_PATH", "/tmp/env-db")
	t.Setenv("FLOCKD_FEED_PAGE_SIZE", "33")
	t.Setenv("FLOCKD_POLL_INTERVAL_MS", "1500")
	t.Setenv("FLOCKD_API_BACKEND_KEYS", "k1,k2")

	cfg := &Config{}
	backendKeys, signingKeys, envUsed := LoadEnvOverrides(cfg)
	if !envUsed {
		t.Fatalf("expected env to be detected")
	}
	if cfg.Storage.DBPath != "/tmp/env-db" {
		t.Fatalf("db path override missing: %q", cfg.Storage.DBPath)
	}
	if cfg.Feed.PageSize != 33 {
		t.Fatalf("feed page size override missing: %d", cfg.Feed.PageSize)
	}
	if cfg.Live.PollIntervalMS != 1500 {
		t.Fatalf("poll interval override missing: %d", cfg.Live.PollIntervalMS)
	}
	if _, ok := backendKeys["k1"]; !ok {
		t.Fatalf("backend key k1 missing: %v", backendKeys)
	}
	if _, ok := backendKeys["k2"]; !ok {
		t.Fatalf("backend key k2 missing: %v", backendKeys)
	}
	// backend keys double as signing keys
	if _, ok := signingKeys["k1"]; !ok {
		t.Fatalf("signing key k1 missing: %v", signingKeys)
	}
}

func TestRuntimeKeys(t *testing.T) {
	SetRuntime(&RuntimeConfig{
		BackendKeys: map[string]struct{}{"b": {}},
		SigningKeys: map[string]struct{}{"s": {}},
	})
	t.Cleanup(func() { SetRuntime(nil) })
	if _, ok := GetBackendKeys()["b"]; !ok {
		t.Fatalf("backend key not retrievable")
	}
	if _, ok := GetSigningKeys()["s"]; !ok {
		t.Fatalf("signing key not retrievable")
	}
	// returned maps are copies
	GetSigningKeys()["x"] = struct{}{}
	if _, ok := GetSigningKeys()["x"]; ok {
		t.Fatalf("mutating the returned map leaked into runtime state")
	}
}
