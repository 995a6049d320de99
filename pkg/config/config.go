package config

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"flockd/pkg/models"
)

// EffectiveConfigResult carries the merged configuration plus the values
// resolved across flags, env and file, and which source won.
type EffectiveConfigResult struct {
	Config *Config
	Addr   string
	DBPath string
	Source string
}

// RuntimeConfig holds derived runtime values that other packages may query
// at runtime (populated during startup after merging env+file).
type RuntimeConfig struct {
	BackendKeys map[string]struct{}
	SigningKeys map[string]struct{}
}

var (
	runtimeMu  sync.RWMutex
	runtimeCfg *RuntimeConfig
)

// SetRuntime sets the canonical runtime config used by the running server.
func SetRuntime(rc *RuntimeConfig) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()
	runtimeCfg = rc
}

func copyRuntimeKeys(pick func(*RuntimeConfig) map[string]struct{}) map[string]struct{} {
	runtimeMu.RLock()
	defer runtimeMu.RUnlock()
	out := map[string]struct{}{}
	if runtimeCfg == nil {
		return out
	}
	for k := range pick(runtimeCfg) {
		out[k] = struct{}{}
	}
	return out
}

// GetBackendKeys returns a copy of configured backend keys.
func GetBackendKeys() map[string]struct{} {
	return copyRuntimeKeys(func(rc *RuntimeConfig) map[string]struct{} { return rc.BackendKeys })
}

// GetSigningKeys returns a copy of configured signing keys.
func GetSigningKeys() map[string]struct{} {
	return copyRuntimeKeys(func(rc *RuntimeConfig) map[string]struct{} { return rc.SigningKeys })
}

type Config struct {
	Server struct {
		Address string `yaml:"address"`
		Port    int    `yaml:"port"`
		TLS     struct {
			CertFile string `yaml:"cert_file"`
			KeyFile  string `yaml:"key_file"`
		} `yaml:"tls"`
	} `yaml:"server"`
	Storage struct {
		DBPath string `yaml:"db_path"`
	} `yaml:"storage"`
	Feed struct {
		// PageSize is the default number of timeline items per fetch.
		PageSize    int `yaml:"page_size"`
		MaxPageSize int `yaml:"max_page_size"`
	} `yaml:"feed"`
	Conversation struct {
		// PageSize is the default number of messages per page fetch.
		PageSize    int `yaml:"page_size"`
		MaxPageSize int `yaml:"max_page_size"`
	} `yaml:"conversation"`
	Live struct {
		// PollIntervalMS is the reconciliation cadence for active views.
		PollIntervalMS int `yaml:"poll_interval_ms"`
		// FetchTimeoutMS bounds a single poll; an overrun counts as a
		// failed tick, retried on the next scheduled tick.
		FetchTimeoutMS int `yaml:"fetch_timeout_ms"`
		// MaxRetries is the number of consecutive failed ticks tolerated
		// before the loop reports a stalled view.
		MaxRetries int `yaml:"max_retries"`
	} `yaml:"live"`
	Recount struct {
		Enabled bool   `yaml:"enabled"`
		Cron    string `yaml:"cron"`
	} `yaml:"recount"`
	Security struct {
		CORS struct {
			AllowedOrigins []string `yaml:"allowed_origins"`
		} `yaml:"cors"`
		RateLimit struct {
			RPS   float64 `yaml:"rps"`
			Burst int     `yaml:"burst"`
		} `yaml:"rate_limit"`
		IPWhitelist []string `yaml:"ip_whitelist"`
		APIKeys     struct {
			Backend  []string `yaml:"backend"`
			Frontend []string `yaml:"frontend"`
			Admin    []string `yaml:"admin"`
		} `yaml:"api_keys"`
	} `yaml:"security"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text|json
	} `yaml:"logging"`
}

// Defaults mirrored from the reference clients: feed pages of 20, message
// pages of 25, a 5 second reconciliation cadence and a 3-tick retry budget.
const (
	DefaultFeedPageSize         = 20
	DefaultFeedMaxPageSize      = 50
	DefaultConversationPageSize = 25
	DefaultConversationMaxPage  = 100
	DefaultPollIntervalMS       = 5000
	DefaultFetchTimeoutMS       = 3000
	DefaultMaxRetries           = 3
)

// Addr returns host:port for the HTTP server.
func (c *Config) Addr() string {
	addr := c.Server.Address
	if addr == "" {
		addr = "0.0.0.0"
	}
	p := c.Server.Port
	if p == 0 {
		p = 8080
	}
	return fmt.Sprintf("%s:%d", addr, p)
}

// FeedPageSize returns the effective feed page size.
func (c *Config) FeedPageSize() int {
	if c.Feed.PageSize > 0 {
		return c.Feed.PageSize
	}
	return DefaultFeedPageSize
}

// FeedMaxPageSize returns the cap on a caller-requested feed page size.
func (c *Config) FeedMaxPageSize() int {
	if c.Feed.MaxPageSize > 0 {
		return c.Feed.MaxPageSize
	}
	return DefaultFeedMaxPageSize
}

// ConversationPageSize returns the effective conversation page size.
func (c *Config) ConversationPageSize() int {
	if c.Conversation.PageSize > 0 {
		return c.Conversation.PageSize
	}
	return DefaultConversationPageSize
}

// ConversationMaxPageSize returns the cap on a caller-requested page size.
func (c *Config) ConversationMaxPageSize() int {
	if c.Conversation.MaxPageSize > 0 {
		return c.Conversation.MaxPageSize
	}
	return DefaultConversationMaxPage
}

// PollInterval returns the live reconciliation cadence.
func (c *Config) PollInterval() time.Duration {
	ms := c.Live.PollIntervalMS
	if ms <= 0 {
		ms = DefaultPollIntervalMS
	}
	return time.Duration(ms) * time.Millisecond
}

// FetchTimeout returns the bound on a single live poll.
func (c *Config) FetchTimeout() time.Duration {
	ms := c.Live.FetchTimeoutMS
	if ms <= 0 {
		ms = DefaultFetchTimeoutMS
	}
	return time.Duration(ms) * time.Millisecond
}

// MaxRetries returns the consecutive poll failure tolerance.
func (c *Config) MaxRetries() int {
	if c.Live.MaxRetries > 0 {
		return c.Live.MaxRetries
	}
	return DefaultMaxRetries
}

// DefaultPrivacy is applied when a post create omits the privacy field.
func DefaultPrivacy() models.Privacy { return models.PrivacyPublic }

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", path)
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ParseCommandFlags defines and parses command-line flags and returns their
// values along with a map indicating which flags were explicitly set.
func ParseCommandFlags() (addr string, dbPath string, cfgPath string, setFlags map[string]bool) {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags = map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return *addrPtr, *dbPtr, *cfgPtr, setFlags
}

// LoadEnvOverrides applies environment overrides onto the provided cfg and
// returns derived backend and signing key maps plus whether env vars were used.
func LoadEnvOverrides(cfg *Config) (map[string]struct{}, map[string]struct{}, bool) {
	envUsed := false
	parseList := func(v string) []string {
		if v == "" {
			return nil
		}
		parts := []string{}
		for _, p := range strings.Split(v, ",") {
			if s := strings.TrimSpace(p); s != "" {
				parts = append(parts, s)
			}
		}
		return parts
	}
	parseInt := func(v string, dst *int) {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			envUsed = true
			*dst = n
		}
	}

	if v := os.Getenv("FLOCKD_ADDR"); v != "" {
		envUsed = true
		if h, p, err := net.SplitHostPort(v); err == nil {
			cfg.Server.Address = h
			if pi, err := strconv.Atoi(p); err == nil {
				cfg.Server.Port = pi
			}
		} else {
			cfg.Server.Address = v
		}
	}
	if v := os.Getenv("FLOCKD_DB_PATH"); v != "" {
		envUsed = true
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("FLOCKD_FEED_PAGE_SIZE"); v != "" {
		parseInt(v, &cfg.Feed.PageSize)
	}
	if v := os.Getenv("FLOCKD_CONV_PAGE_SIZE"); v != "" {
		parseInt(v, &cfg.Conversation.PageSize)
	}
	if v := os.Getenv("FLOCKD_POLL_INTERVAL_MS"); v != "" {
		parseInt(v, &cfg.Live.PollIntervalMS)
	}
	if v := os.Getenv("FLOCKD_FETCH_TIMEOUT_MS"); v != "" {
		parseInt(v, &cfg.Live.FetchTimeoutMS)
	}
	if v := os.Getenv("FLOCKD_MAX_RETRIES"); v != "" {
		parseInt(v, &cfg.Live.MaxRetries)
	}
	if v := os.Getenv("FLOCKD_RECOUNT_CRON"); v != "" {
		envUsed = true
		cfg.Recount.Enabled = true
		cfg.Recount.Cron = strings.TrimSpace(v)
	}
	if v := os.Getenv("FLOCKD_CORS_ORIGINS"); v != "" {
		envUsed = true
		cfg.Security.CORS.AllowedOrigins = parseList(v)
	}
	if v := os.Getenv("FLOCKD_RATE_RPS"); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			envUsed = true
			cfg.Security.RateLimit.RPS = f
		}
	}
	if v := os.Getenv("FLOCKD_RATE_BURST"); v != "" {
		parseInt(v, &cfg.Security.RateLimit.Burst)
	}
	if v := os.Getenv("FLOCKD_IP_WHITELIST"); v != "" {
		envUsed = true
		cfg.Security.IPWhitelist = parseList(v)
	}
	if v := os.Getenv("FLOCKD_API_BACKEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Backend = parseList(v)
	}
	if v := os.Getenv("FLOCKD_API_FRONTEND_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Frontend = parseList(v)
	}
	if v := os.Getenv("FLOCKD_API_ADMIN_KEYS"); v != "" {
		envUsed = true
		cfg.Security.APIKeys.Admin = parseList(v)
	}
	if c := os.Getenv("FLOCKD_TLS_CERT"); c != "" {
		envUsed = true
		cfg.Server.TLS.CertFile = c
	}
	if k := os.Getenv("FLOCKD_TLS_KEY"); k != "" {
		envUsed = true
		cfg.Server.TLS.KeyFile = k
	}

	backendKeys := map[string]struct{}{}
	for _, k := range cfg.Security.APIKeys.Backend {
		backendKeys[k] = struct{}{}
	}
	// Signing keys are identical to backend API keys.
	signingKeys := map[string]struct{}{}
	for k := range backendKeys {
		signingKeys[k] = struct{}{}
	}
	return backendKeys, signingKeys, envUsed
}

// LoadEffective loads config from the given path (file) and applies
// environment overrides. It returns the effective config, runtime key maps
// and a boolean indicating whether env vars were used.
func LoadEffective(path string) (*Config, map[string]struct{}, map[string]struct{}, bool, error) {
	cfg, err := Load(path)
	if err != nil {
		cfg = &Config{}
	}
	backendKeys, signingKeys, envUsed := LoadEnvOverrides(cfg)
	return cfg, backendKeys, signingKeys, envUsed, nil
}

// ResolveConfigPath decides the config file path using the flag-provided
// value and the environment variable `FLOCKD_CONFIG` when the flag was not set.
func ResolveConfigPath(flagPath string, flagSet bool) string {
	if flagSet {
		return flagPath
	}
	if p := os.Getenv("FLOCKD_CONFIG"); p != "" {
		return p
	}
	return flagPath
}
