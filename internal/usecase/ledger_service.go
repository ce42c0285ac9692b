package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

// PlaceOrderRequest is what a caller submits. A zero Price is filled from the
// price source when one is configured.
type PlaceOrderRequest struct {
	Instrument string
	Quantity   int64
	Price      decimal.Decimal
	Side       domain.Side
	Origin     domain.Origin
}

type PlaceResult struct {
	Order             *domain.Order
	NeedsConfirmation bool
	// Warning is a *domain.PartialApplicationError when the order was saved
	// as executed but its position could not be updated.
	Warning error
}

// LedgerService owns the order lifecycle and keeps positions in step with
// executed orders.
type LedgerService struct {
	orders    domain.OrderRepository
	positions domain.PositionRepository
	prices    domain.PriceSource
	locks     *SymbolLocker
	events    domain.EventPublisher
	logger    *zap.Logger
}

func NewLedgerService(
	orders domain.OrderRepository,
	positions domain.PositionRepository,
	prices domain.PriceSource,
	locks *SymbolLocker,
	events domain.EventPublisher,
	logger *zap.Logger,
) *LedgerService {
	if locks == nil {
		locks = NewSymbolLocker()
	}
	if events == nil {
		events = noopPublisher{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		orders:    orders,
		positions: positions,
		prices:    prices,
		locks:     locks,
		events:    events,
		logger:    logger,
	}
}

// PlaceOrder records a new order. Manual orders are executed immediately; if
// that execution cannot be applied to the position the order is kept and the
// result carries a warning instead of an error.
func (s *LedgerService) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceResult, error) {
	order := &domain.Order{
		Instrument: domain.NormalizeSymbol(req.Instrument),
		Quantity:   req.Quantity,
		Price:      req.Price,
		Side:       req.Side,
		Origin:     req.Origin,
		Status:     req.Origin.InitialStatus(),
	}

	if order.Price.IsZero() && s.prices != nil && order.Instrument != "" {
		price, err := s.prices.GetCurrentPrice(ctx, order.Instrument)
		if err != nil {
			return nil, fmt.Errorf("failed to quote %s: %w", order.Instrument, err)
		}
		order.Price = price
	}

	if err := order.Validate(); err != nil {
		return nil, err
	}

	executed := order.Status == domain.StatusExecuted
	if executed {
		unlock := s.locks.Lock(order.Instrument)
		defer unlock()
	}

	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, domain.Persistence("create order", err)
	}
	s.publish(domain.EventOrderPlaced, order.Instrument, order, nil)

	result := &PlaceResult{Order: order, NeedsConfirmation: !executed}
	if !executed {
		s.logger.Info("Order awaiting confirmation",
			zap.String("order_id", order.ID),
			zap.String("instrument", order.Instrument),
			zap.String("origin", string(order.Origin)))
		return result, nil
	}

	_, next, err := s.applyLocked(ctx, order)
	if err != nil {
		s.logger.Warn("Order saved but position not updated",
			zap.String("order_id", order.ID),
			zap.String("instrument", order.Instrument),
			zap.Error(err))
		result.Warning = &domain.PartialApplicationError{
			OrderID:    order.ID,
			Instrument: order.Instrument,
			Cause:      err,
		}
		return result, nil
	}
	s.publishPosition(order.Instrument, next)

	return result, nil
}

// ConfirmOrder executes a pending order. Nothing is recorded unless both the
// position update and the status change succeed.
func (s *LedgerService) ConfirmOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, unlock, err := s.lockOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := requirePending(order); err != nil {
		return nil, err
	}

	prev, next, err := s.applyLocked(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("confirm order %s: %w", id, err)
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, id, domain.StatusPending, domain.StatusExecuted)
	if err != nil {
		if rerr := s.restore(ctx, order.Instrument, prev); rerr != nil {
			s.logger.Error("Failed to restore position after confirm failure",
				zap.String("order_id", id),
				zap.String("instrument", order.Instrument),
				zap.Error(rerr))
		}
		return nil, domain.Persistence("confirm order", err)
	}

	s.logger.Info("Order confirmed", zap.String("order_id", id), zap.String("instrument", order.Instrument))
	s.publish(domain.EventOrderConfirmed, updated.Instrument, updated, nil)
	s.publishPosition(updated.Instrument, next)
	return updated, nil
}

// RejectOrder discards a pending order. Positions are never touched.
func (s *LedgerService) RejectOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, unlock, err := s.lockOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := requirePending(order); err != nil {
		return nil, err
	}

	updated, err := s.orders.UpdateOrderStatus(ctx, id, domain.StatusPending, domain.StatusRejected)
	if err != nil {
		return nil, domain.Persistence("reject order", err)
	}

	s.logger.Info("Order rejected", zap.String("order_id", id), zap.String("instrument", order.Instrument))
	s.publish(domain.EventOrderRejected, updated.Instrument, updated, nil)
	return updated, nil
}

// DeleteOrder is an administrative escape hatch for pending or rejected
// orders. Executed orders are history and stay.
func (s *LedgerService) DeleteOrder(ctx context.Context, id string) error {
	order, unlock, err := s.lockOrder(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	if order.Status == domain.StatusExecuted {
		return domain.ErrAlreadyExecuted
	}
	if err := s.orders.DeleteOrder(ctx, id); err != nil {
		return domain.Persistence("delete order", err)
	}

	s.logger.Info("Order deleted", zap.String("order_id", id), zap.String("status", string(order.Status)))
	s.publish(domain.EventOrderDeleted, order.Instrument, order, nil)
	return nil
}

func (s *LedgerService) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, domain.Persistence("get order", err)
	}
	return order, nil
}

// ListOrders returns the matching page of orders and the total match count.
func (s *LedgerService) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	orders, err := s.orders.ListOrders(ctx, filter)
	if err != nil {
		return nil, 0, domain.Persistence("list orders", err)
	}
	total, err := s.orders.CountOrders(ctx, filter)
	if err != nil {
		return nil, 0, domain.Persistence("count orders", err)
	}
	return orders, total, nil
}

func (s *LedgerService) GetPosition(ctx context.Context, instrument string) (*domain.Position, error) {
	pos, err := s.positions.GetPosition(ctx, domain.NormalizeSymbol(instrument))
	if err != nil {
		return nil, domain.Persistence("get position", err)
	}
	return pos, nil
}

func (s *LedgerService) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	positions, err := s.positions.ListPositions(ctx)
	if err != nil {
		return nil, domain.Persistence("list positions", err)
	}
	return positions, nil
}

// lockOrder loads the order, takes its instrument lock and reloads it so the
// caller sees the state no other mutation can change underneath it.
func (s *LedgerService) lockOrder(ctx context.Context, id string) (*domain.Order, func(), error) {
	order, err := s.orders.GetOrder(ctx, id)
	if err != nil {
		return nil, nil, domain.Persistence("get order", err)
	}

	unlock := s.locks.Lock(order.Instrument)
	order, err = s.orders.GetOrder(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, domain.Persistence("get order", err)
	}
	return order, unlock, nil
}

func requirePending(order *domain.Order) error {
	switch order.Status {
	case domain.StatusExecuted:
		return domain.ErrAlreadyExecuted
	case domain.StatusRejected:
		return domain.ErrAlreadyRejected
	}
	return nil
}

// applyLocked runs the read-modify-write of one execution. The caller must
// hold the instrument lock. It returns the position before and after.
func (s *LedgerService) applyLocked(ctx context.Context, order *domain.Order) (prev, next *domain.Position, err error) {
	prev, err = loadPosition(ctx, s.positions, order.Instrument)
	if err != nil {
		return nil, nil, err
	}

	next, err = ApplyExecution(prev, order)
	if err != nil {
		return prev, prev, err
	}

	if err := storePosition(ctx, s.positions, order.Instrument, next); err != nil {
		return prev, prev, err
	}
	return prev, next, nil
}

func (s *LedgerService) restore(ctx context.Context, instrument string, prev *domain.Position) error {
	return storePosition(ctx, s.positions, instrument, prev)
}

func (s *LedgerService) publish(t domain.EventType, instrument string, order *domain.Order, pos *domain.Position) {
	s.events.Publish(domain.LedgerEvent{
		Type:       t,
		Instrument: instrument,
		Order:      order,
		Position:   pos.Clone(),
		At:         time.Now(),
	})
}

func (s *LedgerService) publishPosition(instrument string, pos *domain.Position) {
	if pos == nil {
		s.publish(domain.EventPositionClosed, instrument, nil, nil)
		return
	}
	s.publish(domain.EventPositionUpdated, instrument, nil, pos)
}

// loadPosition returns nil, nil when the instrument has no position.
func loadPosition(ctx context.Context, repo domain.PositionRepository, instrument string) (*domain.Position, error) {
	pos, err := repo.GetPosition(ctx, instrument)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Persistence("load position", err)
	}
	return pos, nil
}

// storePosition writes pos, or deletes the row when pos is nil.
func storePosition(ctx context.Context, repo domain.PositionRepository, instrument string, pos *domain.Position) error {
	if pos == nil {
		err := repo.DeletePosition(ctx, instrument)
		if err != nil && !errors.Is(err, domain.ErrNotFound) {
			return domain.Persistence("delete position", err)
		}
		return nil
	}
	if err := repo.SavePosition(ctx, pos); err != nil {
		return domain.Persistence("save position", err)
	}
	return nil
}

type noopPublisher struct{}

func (noopPublisher) Publish(domain.LedgerEvent) {}
