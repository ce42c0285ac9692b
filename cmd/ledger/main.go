package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/config"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/events"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/logger"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/quotes"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/storage"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/usecase"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/web"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	flag.Parse()

	// 1. Load Config
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Init Logger
	var log *zap.Logger
	if cfg.Logging.File != "" {
		log, err = logger.NewFileLogger(cfg.Logging.File, cfg.Logging.Level)
	} else {
		log, err = logger.NewLogger(cfg.Logging.Level, cfg.Logging.Encoding)
	}
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Init Storage
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		log.Fatal("Failed to init storage", zap.String("driver", cfg.Storage.Driver), zap.Error(err))
	}
	defer store.Close()

	// 4. Init Quotes (optional)
	var prices domain.PriceSource
	if cfg.Quotes.BaseURL != "" {
		prices = quotes.NewHTTPQuoteSource(cfg.Quotes.BaseURL, cfg.Quotes.ParsedTimeout)
		log.Info("Quote source enabled", zap.String("base_url", cfg.Quotes.BaseURL))
	}

	// 5. Init Services
	hub := events.NewHub[domain.LedgerEvent]()
	locks := usecase.NewSymbolLocker()
	ledger := usecase.NewLedgerService(store, store, prices, locks, hub, log.Named("ledger"))
	reconciler := usecase.NewReconciler(store, store, locks, hub, log.Named("reconciler"))

	if cfg.Reconcile.OnStartup {
		if _, err := reconciler.RepairMissingPositions(ctx); err != nil {
			log.Error("Startup position repair failed", zap.Error(err))
		}
	}
	if cfg.Reconcile.ParsedInterval > 0 {
		go reconciler.Run(ctx, cfg.Reconcile.ParsedInterval)
	}

	// 6. Start Server
	server := web.NewServer(cfg.Server.Port, ledger, reconciler, hub, os.Getenv("CORS_ORIGIN"), log)
	go func() {
		if err := server.Start(); err != nil {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	// 7. Wait for Shutdown
	<-ctx.Done()

	log.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ParsedShutdown)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Graceful shutdown failed", zap.Error(err))
	}
}
