package banner

import (
	"fmt"

	"flockd/pkg/config"
)

const banner = `
███████╗██╗      ██████╗  ██████╗██╗  ██╗██████╗
██╔════╝██║     ██╔═══██╗██╔════╝██║ ██╔╝██╔══██╗
█████╗  ██║     ██║   ██║██║     █████╔╝ ██║  ██║
██╔══╝  ██║     ██║   ██║██║     ██╔═██╗ ██║  ██║
██║     ███████╗╚██████╔╝╚██████╗██║  ██╗██████╔╝
╚═╝     ╚══════╝ ╚═════╝  ╚═════╝╚═╝  ╚═╝╚═════╝
`

// PrintWithEff prints the banner using an EffectiveConfigResult which
// provides richer context (config, addr, dbpath, source).
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	var addr = eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	var dbPath = eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Storage.DBPath
	}
	var src = eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config: %s\n", src)

	fmt.Println("\n== Examples ===================================================")
	fmt.Println("curl 'http://<host>:<port>/v1/feed?limit=20'")
	fmt.Println("curl -X POST 'http://<host>:<port>/v1/posts' -d '{\"content\": \"hello\"}'")
	fmt.Println("curl 'http://<host>:<port>/v1/conversations/<id>/messages?page=1'")
	fmt.Println("\n== Production? =================================================")
	keyLine := func(name string, n int, hint string) {
		if n > 0 {
			fmt.Printf("- %s API keys: OK (%d)\n", name, n)
		} else {
			fmt.Printf("- %s API keys: MISSING (%s)\n", name, hint)
		}
	}
	var be, fe, ak int
	if eff.Config != nil {
		be = len(eff.Config.Security.APIKeys.Backend)
		fe = len(eff.Config.Security.APIKeys.Frontend)
		ak = len(eff.Config.Security.APIKeys.Admin)
	}
	keyLine("Backend", be, "required for backend services")
	keyLine("Frontend", fe, "required for client access")
	keyLine("Admin", ak, "required for admin tooling")

	if eff.Config != nil && eff.Config.Server.TLS.CertFile != "" && eff.Config.Server.TLS.KeyFile != "" {
		fmt.Println("- TLS: configured")
	} else {
		fmt.Println("- TLS: unconfigured")
	}

	if dbPath != "" {
		fmt.Printf("- DB Path: %s\n", dbPath)
	} else {
		fmt.Println("- DB Path: not set (use --db or FLOCKD_DB_PATH)")
	}

	// Recount sweeper
	if eff.Config != nil && eff.Config.Recount.Enabled {
		if eff.Config.Recount.Cron != "" {
			fmt.Printf("- Recount: enabled (cron=%s)\n", eff.Config.Recount.Cron)
		} else {
			fmt.Println("- Recount: enabled")
		}
	} else {
		fmt.Println("- Recount: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
