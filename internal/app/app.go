package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"flockd/internal/recount"
	"flockd/pkg/api/handlers"
	"flockd/pkg/banner"
	"flockd/pkg/config"
	"flockd/pkg/store"
	"flockd/pkg/telemetry"
)

// App encapsulates the server components and lifecycle.
type App struct {
	eff       config.EffectiveConfigResult
	version   string
	commit    string
	buildDate string

	srv *http.Server
}

// New initializes resources that do not require a running context (DB,
// runtime keys, page size knobs). It does not start the HTTP server or
// the recount scheduler; call Run to start those and block until shutdown.
func New(eff config.EffectiveConfigResult, version, commit, buildDate string, backendKeys, signingKeys map[string]struct{}) (*App, error) {
	// validate effective config early and fail fast
	if err := validateConfig(eff); err != nil {
		return nil, err
	}

	// runtime keys
	runtimeCfg := &config.RuntimeConfig{BackendKeys: map[string]struct{}{}, SigningKeys: map[string]struct{}{}}
	for k := range backendKeys {
		runtimeCfg.BackendKeys[k] = struct{}{}
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	for k := range signingKeys {
		runtimeCfg.SigningKeys[k] = struct{}{}
	}
	config.SetRuntime(runtimeCfg)

	// page size knobs for the HTTP layer
	handlers.ConfigureFeed(eff.Config.Feed.PageSize, eff.Config.Feed.MaxPageSize)
	handlers.ConfigureConversations(eff.Config.Conversation.PageSize, eff.Config.Conversation.MaxPageSize)

	// telemetry spool lives next to the DB
	telemetry.SetSpoolDir(eff.DBPath)

	// open store
	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	a := &App{eff: eff, version: version, commit: commit, buildDate: buildDate}
	return a, nil
}

// Run starts the recount scheduler (if enabled) and the HTTP server, and
// blocks until ctx is canceled or a fatal server error occurs.
func (a *App) Run(ctx context.Context) error {
	cancelRecount, err := recount.Start(ctx, a.eff.Config.Recount.Enabled, a.eff.Config.Recount.Cron)
	if err != nil {
		return err
	}
	defer cancelRecount()

	a.printBanner()

	errCh := a.startHTTP(ctx)

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.srv.Shutdown(sctx)
		return store.Close()
	case err := <-errCh:
		_ = store.Close()
		return err
	}
}

// printBanner prints the startup banner and build info.
func (a *App) printBanner() {
	verStr := a.version
	if a.commit != "none" {
		verStr += " (" + a.commit + ")"
	}
	if a.buildDate != "unknown" {
		verStr += " @ " + a.buildDate
	}
	banner.PrintWithEff(a.eff, verStr)
}
