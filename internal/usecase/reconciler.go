package usecase

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

type RepairPositionsResult struct {
	FixedCount int                `json:"fixed_count"`
	Fixed      []*domain.Position `json:"fixed"`
}

type RepairOrdersResult struct {
	CreatedCount int             `json:"created_count"`
	Created      []*domain.Order `json:"created"`
}

type DriftKind string

const (
	DriftMissingPosition DriftKind = "missing_position"
	DriftOrphanPosition  DriftKind = "orphan_position"
	DriftQuantity        DriftKind = "quantity_mismatch"
	DriftAverageCost     DriftKind = "average_cost_mismatch"
)

// Drift is one disagreement between a stored position and the position
// replayed from executed orders.
type Drift struct {
	Instrument string           `json:"instrument"`
	Kind       DriftKind        `json:"kind"`
	Stored     *domain.Position `json:"stored,omitempty"`
	Expected   *domain.Position `json:"expected,omitempty"`
}

// Reconciler repairs drift between the order history and the positions.
// Every repair re-checks under the instrument lock right before writing, so
// it can run at any time and as often as needed.
type Reconciler struct {
	orders    domain.OrderRepository
	positions domain.PositionRepository
	locks     *SymbolLocker
	events    domain.EventPublisher
	logger    *zap.Logger
}

func NewReconciler(
	orders domain.OrderRepository,
	positions domain.PositionRepository,
	locks *SymbolLocker,
	events domain.EventPublisher,
	logger *zap.Logger,
) *Reconciler {
	if locks == nil {
		locks = NewSymbolLocker()
	}
	if events == nil {
		events = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		orders:    orders,
		positions: positions,
		locks:     locks,
		events:    events,
		logger:    logger,
	}
}

// RepairMissingPositions rebuilds the position of every instrument that has an
// executed buy but no stored position. Instruments whose history nets to zero
// need no position and are not counted.
func (r *Reconciler) RepairMissingPositions(ctx context.Context) (*RepairPositionsResult, error) {
	buys, err := r.orders.ListOrders(ctx, domain.OrderFilter{Status: domain.StatusExecuted, Side: domain.SideBuy})
	if err != nil {
		return nil, domain.Persistence("list executed buys", err)
	}

	result := &RepairPositionsResult{Fixed: []*domain.Position{}}
	for _, instrument := range instrumentsOf(buys) {
		pos, err := r.repairPosition(ctx, instrument)
		if err != nil {
			return result, err
		}
		if pos != nil {
			result.Fixed = append(result.Fixed, pos)
		}
	}
	result.FixedCount = len(result.Fixed)

	r.logger.Info("Position repair finished", zap.Int("fixed", result.FixedCount))
	return result, nil
}

func (r *Reconciler) repairPosition(ctx context.Context, instrument string) (*domain.Position, error) {
	unlock := r.locks.Lock(instrument)
	defer unlock()

	existing, err := loadPosition(ctx, r.positions, instrument)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, nil
	}

	history, err := r.orders.ListOrders(ctx, domain.OrderFilter{
		Instrument:  instrument,
		Status:      domain.StatusExecuted,
		OldestFirst: true,
	})
	if err != nil {
		return nil, domain.Persistence("list order history", err)
	}

	pos, skipped := Replay(instrument, history)
	for _, o := range skipped {
		r.logger.Warn("Skipped oversell during replay",
			zap.String("order_id", o.ID),
			zap.String("instrument", instrument),
			zap.Int64("quantity", o.Quantity))
	}
	if pos == nil {
		return nil, nil
	}

	if err := storePosition(ctx, r.positions, instrument, pos); err != nil {
		return nil, err
	}

	r.logger.Info("Rebuilt missing position",
		zap.String("instrument", instrument),
		zap.Int64("quantity", pos.Quantity),
		zap.String("average_cost", pos.AverageCost.String()))
	r.publish(domain.EventPositionRepaired, instrument, nil, pos)
	return pos, nil
}

// RepairMissingOrders backfills an executed buy for every position that has
// none, so the order history accounts for positions seeded directly. The
// positions themselves are left alone.
func (r *Reconciler) RepairMissingOrders(ctx context.Context) (*RepairOrdersResult, error) {
	positions, err := r.positions.ListPositions(ctx)
	if err != nil {
		return nil, domain.Persistence("list positions", err)
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Instrument < positions[j].Instrument })

	result := &RepairOrdersResult{Created: []*domain.Order{}}
	for _, p := range positions {
		order, err := r.backfillOrder(ctx, p.Instrument)
		if err != nil {
			return result, err
		}
		if order != nil {
			result.Created = append(result.Created, order)
		}
	}
	result.CreatedCount = len(result.Created)

	r.logger.Info("Order backfill finished", zap.Int("created", result.CreatedCount))
	return result, nil
}

func (r *Reconciler) backfillOrder(ctx context.Context, instrument string) (*domain.Order, error) {
	unlock := r.locks.Lock(instrument)
	defer unlock()

	pos, err := loadPosition(ctx, r.positions, instrument)
	if err != nil || pos == nil {
		return nil, err
	}

	n, err := r.orders.CountOrders(ctx, domain.OrderFilter{
		Instrument: instrument,
		Status:     domain.StatusExecuted,
		Side:       domain.SideBuy,
	})
	if err != nil {
		return nil, domain.Persistence("count executed buys", err)
	}
	if n > 0 {
		return nil, nil
	}

	price := pos.AverageCost
	if !price.IsPositive() {
		price = pos.LastPrice
	}
	order := &domain.Order{
		Instrument: instrument,
		Quantity:   pos.Quantity,
		Price:      price,
		Side:       domain.SideBuy,
		Origin:     domain.OriginManual,
		Status:     domain.StatusExecuted,
		Backfilled: true,
	}
	if err := order.Validate(); err != nil {
		r.logger.Warn("Cannot backfill order for position", zap.String("instrument", instrument), zap.Error(err))
		return nil, nil
	}

	if err := r.orders.CreateOrder(ctx, order); err != nil {
		return nil, domain.Persistence("create backfill order", err)
	}

	r.logger.Info("Backfilled order for position",
		zap.String("order_id", order.ID),
		zap.String("instrument", instrument),
		zap.Int64("quantity", order.Quantity))
	r.publish(domain.EventOrderBackfilled, instrument, order, nil)
	return order, nil
}

// Verify compares every stored position with its replayed value without
// writing anything.
func (r *Reconciler) Verify(ctx context.Context) ([]Drift, error) {
	executed, err := r.orders.ListOrders(ctx, domain.OrderFilter{Status: domain.StatusExecuted, OldestFirst: true})
	if err != nil {
		return nil, domain.Persistence("list executed orders", err)
	}
	positions, err := r.positions.ListPositions(ctx)
	if err != nil {
		return nil, domain.Persistence("list positions", err)
	}

	stored := make(map[string]*domain.Position, len(positions))
	for _, p := range positions {
		stored[p.Instrument] = p
	}

	instruments := instrumentsOf(executed)
	seen := make(map[string]bool, len(instruments))
	for _, i := range instruments {
		seen[i] = true
	}
	for i := range stored {
		if !seen[i] {
			instruments = append(instruments, i)
		}
	}
	sort.Strings(instruments)

	drifts := []Drift{}
	for _, instrument := range instruments {
		expected, _ := Replay(instrument, executed)
		have := stored[instrument]

		switch {
		case expected == nil && have == nil:
			continue
		case expected == nil:
			drifts = append(drifts, Drift{Instrument: instrument, Kind: DriftOrphanPosition, Stored: have})
		case have == nil:
			drifts = append(drifts, Drift{Instrument: instrument, Kind: DriftMissingPosition, Expected: expected})
		case have.Quantity != expected.Quantity:
			drifts = append(drifts, Drift{Instrument: instrument, Kind: DriftQuantity, Stored: have, Expected: expected})
		case !have.AverageCost.Equal(expected.AverageCost):
			drifts = append(drifts, Drift{Instrument: instrument, Kind: DriftAverageCost, Stored: have, Expected: expected})
		}
	}
	return drifts, nil
}

func (r *Reconciler) publish(t domain.EventType, instrument string, order *domain.Order, pos *domain.Position) {
	r.events.Publish(domain.LedgerEvent{
		Type:       t,
		Instrument: instrument,
		Order:      order,
		Position:   pos.Clone(),
		At:         time.Now(),
	})
}

// instrumentsOf returns the distinct instruments of orders, sorted.
func instrumentsOf(orders []*domain.Order) []string {
	seen := make(map[string]bool)
	var out []string
	for _, o := range orders {
		if !seen[o.Instrument] {
			seen[o.Instrument] = true
			out = append(out, o.Instrument)
		}
	}
	sort.Strings(out)
	return out
}

// Run repairs missing positions every interval until ctx is done. Only the
// position direction is scheduled; order backfill stays a manual action.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := r.RepairMissingPositions(ctx); err != nil {
				r.logger.Error("Scheduled position repair failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
