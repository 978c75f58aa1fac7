package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bodega/internal/config"
	"bodega/internal/http/handlers"
	"bodega/internal/invoicing"
	applog "bodega/internal/log"
	"bodega/internal/repos"
	"bodega/internal/services"
)

func main() {
	cfg := config.Load()
	applog.SetLevel(cfg.LogLevel)

	// Optional file logging
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			applog.Warn(nil, "log.file.open", err, map[string]any{"path": cfg.LogFile})
		} else {
			defer f.Close()
			applog.SetOutput(io.MultiWriter(os.Stdout, f))
		}
	}

	db, err := repos.OpenDB(cfg.DBDSN)
	if err != nil {
		applog.Logger().WithError(err).Fatal("db.open")
	}
	defer db.Close()

	if err := repos.SeedAdmin(db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		applog.Logger().WithError(err).Fatal("seed.admin")
	}
	if cfg.SeedDemo {
		if _, err := repos.SeedDemoCatalog(db); err != nil {
			applog.Error(nil, "seed.catalog", err, nil)
		}
	}

	// Invoicing is optional; a nil submitter skips it
	var invoices services.InvoiceSubmitter
	if cfg.Invoice.Enabled {
		invoices = invoicing.NewClient(cfg.Invoice)
	}

	deps := handlers.NewDeps(db, cfg, invoices)
	app := handlers.NewApp(cfg, deps)

	go func() {
		stop := make(chan os.Signal, 1)
		signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
		<-stop
		applog.Info(nil, "server.shutdown", nil)
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	applog.Info(nil, "server.start", map[string]any{"port": cfg.Port})
	if err := app.Listen(":" + cfg.Port); err != nil && !errors.Is(err, context.Canceled) {
		applog.Logger().WithError(err).Fatal("server.listen")
	}
}
