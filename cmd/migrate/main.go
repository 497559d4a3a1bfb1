// Command migrate applies the dealer schema migrations and exits.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"dealer_portal_backend/migrations"
	"dealer_portal_backend/platform/config"
	"dealer_portal_backend/platform/db"
	"dealer_portal_backend/platform/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.RunMigrations(ctx, cfg, migrations.FS, "."); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}
	log.Info("migrations complete")
}
