package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/config"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	limit := flag.Int("limit", 20, "number of orders to print")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	store, err := storage.Open(ctx, cfg.Storage.Driver, cfg.Storage.DSN)
	if err != nil {
		fmt.Printf("Failed to open storage: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	positions, err := store.ListPositions(ctx)
	if err != nil {
		fmt.Printf("Failed to list positions: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d positions:\n", len(positions))
	for _, p := range positions {
		fmt.Printf("- %s qty=%d avg=%s last=%s\n", p.Instrument, p.Quantity, p.AverageCost.StringFixed(2), p.LastPrice.StringFixed(2))
	}

	orders, err := store.ListOrders(ctx, domain.OrderFilter{Limit: *limit})
	if err != nil {
		fmt.Printf("Failed to list orders: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Latest %d orders:\n", len(orders))
	for _, o := range orders {
		mark := ""
		if o.Backfilled {
			mark = " (backfilled)"
		}
		fmt.Printf("- %s %s %s %s %d @ %s [%s/%s]%s\n",
			o.CreatedAt.Format("2006-01-02 15:04:05"), o.ID, o.Instrument, o.Side, o.Quantity, o.Price.StringFixed(2), o.Origin, o.Status, mark)
	}
}
