package main

import (
	"context"
	"log"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"dialogd/internal/app"
	"dialogd/pkg/banner"
	"dialogd/pkg/config"
	"dialogd/pkg/logger"
	"dialogd/pkg/shutdown"
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

	// Load config file; a missing file is fine, env and flags still apply.
	cfg, err := config.Load(cfgPath)
	fileUsed := err == nil
	if !fileUsed {
		cfg = &config.Config{}
	}
	envUsed := config.LoadEnvOverrides(cfg)

	logger.Init(cfg.Logging.Level)

	// Flags explicitly set win over env/config for addr and dbPath.
	addr := cfg.Addr()
	if setFlags["addr"] {
		addr = addrVal
	}
	dbPath := cfg.Server.DBPath
	if dbPath == "" || setFlags["db"] {
		dbPath = dbVal
	}

	a, err := app.New(cfg, addr, dbPath, version)
	if err != nil {
		shutdown.Abort("startup failed", err, dbPath)
	}

	// Config sources summary for the banner
	var srcs []string
	if len(setFlags) > 0 {
		srcs = append(srcs, "flags")
	}
	if envUsed {
		srcs = append(srcs, "env")
	}
	if fileUsed {
		srcs = append(srcs, "config")
	}
	verStr := version
	if commit != "none" {
		verStr += " (" + commit + ")"
	}
	if buildDate != "unknown" {
		verStr += " @ " + buildDate
	}
	banner.Print(addr, dbPath, strings.Join(srcs, ", "), verStr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("server exited: %v", err)
	}
}
