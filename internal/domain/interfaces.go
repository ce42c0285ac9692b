package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// OrderRepository defines storage operations for orders.
// CreateOrder assigns ID (when empty), Seq and timestamps, plus ExecSeq when
// the order is created EXECUTED.
// UpdateOrderStatus only succeeds when the stored status equals from; moving
// to EXECUTED assigns ExecSeq.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *Order) error
	GetOrder(ctx context.Context, id string) (*Order, error)
	ListOrders(ctx context.Context, filter OrderFilter) ([]*Order, error)
	CountOrders(ctx context.Context, filter OrderFilter) (int, error)
	UpdateOrderStatus(ctx context.Context, id string, from, to Status) (*Order, error)
	DeleteOrder(ctx context.Context, id string) error
}

// PositionRepository defines storage operations for positions, keyed by instrument.
type PositionRepository interface {
	GetPosition(ctx context.Context, instrument string) (*Position, error)
	ListPositions(ctx context.Context) ([]*Position, error)
	SavePosition(ctx context.Context, position *Position) error
	DeletePosition(ctx context.Context, instrument string) error
}

// PriceSource returns the current market price of an instrument.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

type EventType string

const (
	EventOrderPlaced      EventType = "order.placed"
	EventOrderConfirmed   EventType = "order.confirmed"
	EventOrderRejected    EventType = "order.rejected"
	EventOrderDeleted     EventType = "order.deleted"
	EventOrderBackfilled  EventType = "order.backfilled"
	EventPositionUpdated  EventType = "position.updated"
	EventPositionClosed   EventType = "position.closed"
	EventPositionRepaired EventType = "position.repaired"
)

// LedgerEvent describes one state change of the ledger.
type LedgerEvent struct {
	Type       EventType `json:"type"`
	Instrument string    `json:"instrument"`
	Order      *Order    `json:"order,omitempty"`
	Position   *Position `json:"position,omitempty"`
	At         time.Time `json:"at"`
}

// EventPublisher receives ledger events. Publish must not block.
type EventPublisher interface {
	Publish(event LedgerEvent)
}
