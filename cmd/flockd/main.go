package main

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"flockd/internal/app"
	"flockd/pkg/config"
	"flockd/pkg/logger"
	"flockd/pkg/shutdown"
)

// build metadata - set via ldflags during build/release
var (
	version   = "dev"
	commit    = "none"
	buildDate = "unknown"
)

func main() {
	_ = godotenv.Load(".env")
	addrVal, dbVal, cfgVal, setFlags := config.ParseCommandFlags()

	// Resolve config path (file flag wins over env)
	cfgPath := config.ResolveConfigPath(cfgVal, setFlags["config"])

	// Load effective config (file + env)
	cfg, backendKeys, signingKeys, envUsed, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// Flags win over config/env when explicitly provided.
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Storage.DBPath
	if setFlags["db"] {
		dbPath = dbVal
	} else if dbPath == "" {
		dbPath = dbVal
	}

	if cfg.Logging.Format != "" && os.Getenv("FLOCKD_LOG_FORMAT") == "" {
		_ = os.Setenv("FLOCKD_LOG_FORMAT", cfg.Logging.Format)
	}
	logger.InitWithLevel(cfg.Logging.Level)

	// Summarise where the effective settings came from.
	srcs := []string{}
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if _, err := config.Load(cfgPath); err == nil {
		srcs = append(srcs, "config")
	}

	eff := config.EffectiveConfigResult{
		Config: cfg,
		Addr:   addr,
		DBPath: dbPath,
		Source: strings.Join(srcs, ", "),
	}

	a, err := app.New(eff, version, commit, buildDate, backendKeys, signingKeys)
	if err != nil {
		shutdown.Abort("startup failed", err, dbPath, 0)
	}

	ctx, cancel := shutdown.SetupSignalHandler(context.Background())
	defer cancel()

	if err := a.Run(ctx); err != nil {
		logger.Error("server_exit", "error", err)
		os.Exit(1)
	}
}
