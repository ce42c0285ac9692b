package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the holding derived from the executed orders of one instrument.
// A position with zero quantity is never stored.
type Position struct {
	Instrument  string          `json:"instrument"`
	Quantity    int64           `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
	LastPrice   decimal.Decimal `json:"last_price"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (p *Position) Clone() *Position {
	if p == nil {
		return nil
	}
	c := *p
	return &c
}

func (p *Position) CostBasis() decimal.Decimal {
	return p.AverageCost.Mul(decimal.NewFromInt(p.Quantity))
}

func (p *Position) MarketValue() decimal.Decimal {
	return p.LastPrice.Mul(decimal.NewFromInt(p.Quantity))
}

// UnrealizedPnL is derived on read and never persisted.
func (p *Position) UnrealizedPnL() decimal.Decimal {
	return p.MarketValue().Sub(p.CostBasis())
}

// Holding is a position decorated with the values a dashboard shows.
type Holding struct {
	*Position
	CostBasis        decimal.Decimal `json:"cost_basis"`
	MarketValue      decimal.Decimal `json:"market_value"`
	UnrealizedPnL    decimal.Decimal `json:"unrealized_pnl"`
	UnrealizedPnLPct decimal.Decimal `json:"unrealized_pnl_pct"`
}

func NewHolding(p *Position) Holding {
	h := Holding{
		Position:      p,
		CostBasis:     p.CostBasis(),
		MarketValue:   p.MarketValue(),
		UnrealizedPnL: p.UnrealizedPnL(),
	}
	if h.CostBasis.IsPositive() {
		h.UnrealizedPnLPct = h.UnrealizedPnL.Div(h.CostBasis).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return h
}

// Portfolio summarises all holdings.
type Portfolio struct {
	Holdings      []Holding       `json:"holdings"`
	TotalCost     decimal.Decimal `json:"total_cost"`
	TotalValue    decimal.Decimal `json:"total_value"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
}
