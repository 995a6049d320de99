package app

import (
	"os"
	"path/filepath"
	"testing"

	"flockd/pkg/config"
)

func effWith(dbPath string) config.EffectiveConfigResult {
	return config.EffectiveConfigResult{Config: &config.Config{}, Addr: ":8080", DBPath: dbPath}
}

func TestValidateConfigRequiresDBPath(t *testing.T) {
	if err := validateConfig(effWith("")); err == nil {
		t.Fatalf("expected error for empty db path")
	}
	if err := validateConfig(effWith("/tmp/db")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateConfigTLSPairing(t *testing.T) {
	eff := effWith("/tmp/db")
	eff.Config.Server.TLS.CertFile = "/nonexistent/cert.pem"
	if err := validateConfig(eff); err == nil {
		t.Fatalf("expected error for cert without key")
	}

	dir := t.TempDir()
	cert := filepath.Join(dir, "cert.pem")
	key := filepath.Join(dir, "key.pem")
	for _, f := range []string{cert, key} {
		if err := os.WriteFile(f, []byte("x"), 0o600); err != nil {
			t.Fatalf("write %s: %v", f, err)
		}
	}
	eff.Config.Server.TLS.CertFile = cert
	eff.Config.Server.TLS.KeyFile = key
	if err := validateConfig(eff); err != nil {
		t.Fatalf("accessible cert/key rejected: %v", err)
	}
	eff.Config.Server.TLS.KeyFile = filepath.Join(dir, "missing.pem")
	if err := validateConfig(eff); err == nil {
		t.Fatalf("expected error for missing key file")
	}
}

func TestValidateConfigPageSizeCoherence(t *testing.T) {
	eff := effWith("/tmp/db")
	eff.Config.Feed.PageSize = 60
	eff.Config.Feed.MaxPageSize = 50
	if err := validateConfig(eff); err == nil {
		t.Fatalf("expected error for page size above max")
	}
	eff.Config.Feed.PageSize = 20
	if err := validateConfig(eff); err != nil {
		t.Fatalf("coherent page sizes rejected: %v", err)
	}

	eff.Config.Live.PollIntervalMS = 1000
	eff.Config.Live.FetchTimeoutMS = 2000
	if err := validateConfig(eff); err == nil {
		t.Fatalf("expected error for fetch timeout above poll interval")
	}
}
