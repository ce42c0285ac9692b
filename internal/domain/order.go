package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Origin records who produced an order. It alone decides the initial status.
type Origin string

const (
	OriginManual    Origin = "MANUAL"
	OriginVoice     Origin = "VOICE"
	OriginAssistant Origin = "ASSISTANT"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginManual, OriginVoice, OriginAssistant:
		return true
	}
	return false
}

// InitialStatus returns EXECUTED for manual orders (a human already acted)
// and PENDING for everything that still needs a human to confirm it.
func (o Origin) InitialStatus() Status {
	if o == OriginManual {
		return StatusExecuted
	}
	return StatusPending
}

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusExecuted Status = "EXECUTED"
	StatusRejected Status = "REJECTED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusExecuted, StatusRejected:
		return true
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusExecuted || s == StatusRejected
}

// NormalizeSymbol returns the canonical form used for every instrument comparison.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// MaxOrderQuantity bounds a single order so position arithmetic stays far
// from int64 overflow.
const MaxOrderQuantity int64 = 1_000_000_000

// Order is a request to trade a quantity of an instrument at a price.
type Order struct {
	ID         string          `json:"id"`
	Seq        int64           `json:"-"` // store-assigned creation sequence
	ExecSeq    int64           `json:"-"` // store-assigned when the order becomes EXECUTED, 0 before
	Instrument string          `json:"instrument"`
	Quantity   int64           `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	Side       Side            `json:"side"`
	Origin     Origin          `json:"origin"`
	Status     Status          `json:"status"`
	Backfilled bool            `json:"backfilled,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

func (o *Order) Validate() error {
	if o.Instrument == "" {
		return fmt.Errorf("%w: instrument is required", ErrInvalidOrder)
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("%w: quantity must be positive, got %d", ErrInvalidOrder, o.Quantity)
	}
	if o.Quantity > MaxOrderQuantity {
		return fmt.Errorf("%w: quantity %d exceeds %d", ErrInvalidOrder, o.Quantity, MaxOrderQuantity)
	}
	if !o.Price.IsPositive() {
		return fmt.Errorf("%w: price must be positive, got %s", ErrInvalidOrder, o.Price)
	}
	if !o.Side.Valid() {
		return fmt.Errorf("%w: unknown side %q", ErrInvalidOrder, o.Side)
	}
	if !o.Origin.Valid() {
		return fmt.Errorf("%w: unknown origin %q", ErrInvalidOrder, o.Origin)
	}
	return nil
}

// Notional is quantity * price.
func (o *Order) Notional() decimal.Decimal {
	return o.Price.Mul(decimal.NewFromInt(o.Quantity))
}

// OrderFilter narrows ListOrders. Zero values match everything.
type OrderFilter struct {
	Instrument  string
	Status      Status
	Side        Side
	Origin      Origin
	Limit       int
	Offset      int
	OldestFirst bool
}

func (f OrderFilter) Matches(o *Order) bool {
	if f.Instrument != "" && NormalizeSymbol(f.Instrument) != o.Instrument {
		return false
	}
	if f.Status != "" && f.Status != o.Status {
		return false
	}
	if f.Side != "" && f.Side != o.Side {
		return false
	}
	if f.Origin != "" && f.Origin != o.Origin {
		return false
	}
	return true
}
