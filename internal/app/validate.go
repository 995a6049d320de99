package app

import (
	"fmt"
	"os"

	"flockd/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	// DB path must be present
	if p := eff.DBPath; p == "" {
		return fmt.Errorf("database path is empty: set --db flag, FLOCKD_DB_PATH env, or storage.db_path in config")
	}

	// TLS cert/key presence check if one is set
	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	// Page sizes must stay coherent when both are set.
	if f := eff.Config.Feed; f.PageSize > 0 && f.MaxPageSize > 0 && f.PageSize > f.MaxPageSize {
		return fmt.Errorf("feed.page_size (%d) exceeds feed.max_page_size (%d)", f.PageSize, f.MaxPageSize)
	}
	if c := eff.Config.Conversation; c.PageSize > 0 && c.MaxPageSize > 0 && c.PageSize > c.MaxPageSize {
		return fmt.Errorf("conversation.page_size (%d) exceeds conversation.max_page_size (%d)", c.PageSize, c.MaxPageSize)
	}

	// A live fetch slower than the poll cadence would pile up requests.
	if l := eff.Config.Live; l.FetchTimeoutMS > 0 && l.PollIntervalMS > 0 && l.FetchTimeoutMS > l.PollIntervalMS {
		return fmt.Errorf("live.fetch_timeout_ms (%d) exceeds live.poll_interval_ms (%d)", l.FetchTimeoutMS, l.PollIntervalMS)
	}

	return nil
}
