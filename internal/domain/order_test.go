package domain_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

func TestOrigin_InitialStatus(t *testing.T) {
	assert.Equal(t, domain.StatusExecuted, domain.OriginManual.InitialStatus())
	assert.Equal(t, domain.StatusPending, domain.OriginVoice.InitialStatus())
	assert.Equal(t, domain.StatusPending, domain.OriginAssistant.InitialStatus())
}

func TestNormalizeSymbol(t *testing.T) {
	assert.Equal(t, "TCS", domain.NormalizeSymbol(" tcs "))
	assert.Equal(t, "RELIANCE.NS", domain.NormalizeSymbol("Reliance.ns"))
}

func TestOrder_Validate(t *testing.T) {
	valid := func() *domain.Order {
		return &domain.Order{
			Instrument: "TCS",
			Quantity:   10,
			Price:      decimal.NewFromInt(100),
			Side:       domain.SideBuy,
			Origin:     domain.OriginManual,
		}
	}

	assert.NoError(t, valid().Validate())

	cases := map[string]func(o *domain.Order){
		"empty instrument": func(o *domain.Order) { o.Instrument = "" },
		"zero quantity":    func(o *domain.Order) { o.Quantity = 0 },
		"huge quantity":    func(o *domain.Order) { o.Quantity = domain.MaxOrderQuantity + 1 },
		"negative price":   func(o *domain.Order) { o.Price = decimal.NewFromInt(-1) },
		"unknown side":     func(o *domain.Order) { o.Side = "HOLD" },
		"unknown origin":   func(o *domain.Order) { o.Origin = "EMAIL" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			o := valid()
			mutate(o)
			err := o.Validate()
			assert.True(t, errors.Is(err, domain.ErrInvalidOrder), "got %v", err)
		})
	}
}

func TestOrderFilter_Matches(t *testing.T) {
	o := &domain.Order{Instrument: "INFY", Status: domain.StatusPending, Side: domain.SideBuy, Origin: domain.OriginVoice}

	assert.True(t, domain.OrderFilter{}.Matches(o))
	assert.True(t, domain.OrderFilter{Instrument: "infy", Status: domain.StatusPending}.Matches(o))
	assert.False(t, domain.OrderFilter{Status: domain.StatusExecuted}.Matches(o))
	assert.False(t, domain.OrderFilter{Origin: domain.OriginManual}.Matches(o))
}

func TestPartialApplicationError_Is(t *testing.T) {
	err := error(&domain.PartialApplicationError{OrderID: "o1", Instrument: "TCS", Cause: domain.ErrInsufficientPosition})

	assert.True(t, errors.Is(err, domain.ErrPartialApplication))
	assert.True(t, errors.Is(err, domain.ErrInsufficientPosition))
	assert.False(t, errors.Is(err, domain.ErrNotFound))
}

func TestHolding_PnL(t *testing.T) {
	p := &domain.Position{
		Instrument:  "TCS",
		Quantity:    10,
		AverageCost: decimal.NewFromInt(100),
		LastPrice:   decimal.NewFromInt(110),
	}
	h := domain.NewHolding(p)

	assert.True(t, h.CostBasis.Equal(decimal.NewFromInt(1000)))
	assert.True(t, h.MarketValue.Equal(decimal.NewFromInt(1100)))
	assert.True(t, h.UnrealizedPnL.Equal(decimal.NewFromInt(100)))
	assert.True(t, h.UnrealizedPnLPct.Equal(decimal.NewFromInt(10)))
}
