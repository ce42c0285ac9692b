package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

var ErrNoPriceSource = errors.New("no price source configured")

// Portfolio values every position at its last observed price.
func (s *LedgerService) Portfolio(ctx context.Context) (*domain.Portfolio, error) {
	positions, err := s.ListPositions(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(positions, func(i, j int) bool { return positions[i].Instrument < positions[j].Instrument })

	p := &domain.Portfolio{
		Holdings:      make([]domain.Holding, 0, len(positions)),
		TotalCost:     decimal.Zero,
		TotalValue:    decimal.Zero,
		UnrealizedPnL: decimal.Zero,
	}
	for _, pos := range positions {
		h := domain.NewHolding(pos)
		p.Holdings = append(p.Holdings, h)
		p.TotalCost = p.TotalCost.Add(h.CostBasis)
		p.TotalValue = p.TotalValue.Add(h.MarketValue)
	}
	p.UnrealizedPnL = p.TotalValue.Sub(p.TotalCost)
	return p, nil
}

// RefreshPrices overwrites LastPrice of every position from the price source.
// Instruments whose quote fails are logged and skipped.
func (s *LedgerService) RefreshPrices(ctx context.Context) (int, error) {
	if s.prices == nil {
		return 0, ErrNoPriceSource
	}

	positions, err := s.ListPositions(ctx)
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, pos := range positions {
		price, err := s.prices.GetCurrentPrice(ctx, pos.Instrument)
		if err != nil {
			s.logger.Warn("Failed to quote instrument", zap.String("instrument", pos.Instrument), zap.Error(err))
			continue
		}
		if !price.IsPositive() {
			continue
		}

		ok, err := s.markPrice(ctx, pos.Instrument, price)
		if err != nil {
			return updated, fmt.Errorf("refresh %s: %w", pos.Instrument, err)
		}
		if ok {
			updated++
		}
	}
	return updated, nil
}

func (s *LedgerService) markPrice(ctx context.Context, instrument string, price decimal.Decimal) (bool, error) {
	unlock := s.locks.Lock(instrument)
	defer unlock()

	pos, err := loadPosition(ctx, s.positions, instrument)
	if err != nil || pos == nil {
		return false, err
	}
	pos.LastPrice = price
	if err := storePosition(ctx, s.positions, instrument, pos); err != nil {
		return false, err
	}
	s.publish(domain.EventPositionUpdated, instrument, nil, pos)
	return true, nil
}
