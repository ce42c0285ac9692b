package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/config"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/logger"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/storage"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/usecase"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	dryRun := flag.Bool("dry-run", false, "only report drift, do not repair")
	backfill := flag.Bool("backfill-orders", false, "also synthesize orders for positions without any")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level, "console")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		fmt.Printf("Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	reconciler := usecase.NewReconciler(store, store, nil, nil, log)

	drifts, err := reconciler.Verify(ctx)
	if err != nil {
		fmt.Printf("Failed to verify: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d drift(s):\n", len(drifts))
	for _, d := range drifts {
		fmt.Printf("- %s: %s\n", d.Instrument, d.Kind)
		if d.Stored != nil {
			fmt.Printf("    stored:   qty=%d avg=%s\n", d.Stored.Quantity, d.Stored.AverageCost.StringFixed(2))
		}
		if d.Expected != nil {
			fmt.Printf("    expected: qty=%d avg=%s\n", d.Expected.Quantity, d.Expected.AverageCost.StringFixed(2))
		}
	}

	if *dryRun {
		return
	}

	fixed, err := reconciler.RepairMissingPositions(ctx)
	if err != nil {
		fmt.Printf("Position repair failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Rebuilt %d position(s)\n", fixed.FixedCount)
	for _, p := range fixed.Fixed {
		fmt.Printf("  %s qty=%d avg=%s\n", p.Instrument, p.Quantity, p.AverageCost.StringFixed(2))
	}

	if !*backfill {
		return
	}
	created, err := reconciler.RepairMissingOrders(ctx)
	if err != nil {
		fmt.Printf("Order backfill failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Backfilled %d order(s)\n", created.CreatedCount)
	for _, o := range created.Created {
		fmt.Printf("  %s %s qty=%d @ %s\n", o.ID, o.Instrument, o.Quantity, o.Price.StringFixed(2))
	}
}
