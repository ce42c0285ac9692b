package usecase

import (
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

// ApplyExecution folds one executed order into the current position of its
// instrument and returns the next position. A nil result with a nil error
// means the position was closed. On ErrInsufficientPosition the current
// position is returned untouched.
func ApplyExecution(current *domain.Position, order *domain.Order) (*domain.Position, error) {
	if current != nil && current.Instrument != order.Instrument {
		return current, fmt.Errorf("position %s cannot absorb order for %s", current.Instrument, order.Instrument)
	}

	switch order.Side {
	case domain.SideBuy:
		if current == nil {
			return &domain.Position{
				Instrument:  order.Instrument,
				Quantity:    order.Quantity,
				AverageCost: order.Price,
				LastPrice:   order.Price,
			}, nil
		}
		newQty := current.Quantity + order.Quantity
		if newQty <= current.Quantity {
			return current, fmt.Errorf("%w: buy %d %s on top of %d overflows the position",
				domain.ErrInvalidOrder, order.Quantity, order.Instrument, current.Quantity)
		}
		cost := current.CostBasis().Add(order.Notional())
		next := current.Clone()
		next.Quantity = newQty
		next.AverageCost = cost.Div(decimal.NewFromInt(newQty))
		next.LastPrice = order.Price
		return next, nil

	case domain.SideSell:
		if current == nil {
			return nil, fmt.Errorf("%w: sell %d %s with no position", domain.ErrInsufficientPosition, order.Quantity, order.Instrument)
		}
		if order.Quantity > current.Quantity {
			return current, fmt.Errorf("%w: sell %d %s but only %d held",
				domain.ErrInsufficientPosition, order.Quantity, order.Instrument, current.Quantity)
		}
		newQty := current.Quantity - order.Quantity
		if newQty == 0 {
			return nil, nil
		}
		next := current.Clone()
		next.Quantity = newQty
		next.LastPrice = order.Price
		return next, nil
	}

	return current, fmt.Errorf("unknown side %q", order.Side)
}

// Replay rebuilds the position of one instrument from scratch. Only executed
// orders of that instrument are used, in the order they were executed. Sells that would
// oversell are skipped exactly like the incremental path skips them, and are
// returned so the caller can report them.
func Replay(instrument string, orders []*domain.Order) (*domain.Position, []*domain.Order) {
	instrument = domain.NormalizeSymbol(instrument)

	var history []*domain.Order
	for _, o := range orders {
		if o.Status == domain.StatusExecuted && o.Instrument == instrument {
			history = append(history, o)
		}
	}
	sortByExecution(history)

	var (
		pos     *domain.Position
		skipped []*domain.Order
	)
	for _, o := range history {
		next, err := ApplyExecution(pos, o)
		if err != nil {
			if errors.Is(err, domain.ErrInsufficientPosition) {
				skipped = append(skipped, o)
			}
			continue
		}
		pos = next
	}
	return pos, skipped
}

// sortByExecution orders by ExecSeq. Orders without one (rows written before
// execution sequencing existed) fall back to creation order and sort first.
func sortByExecution(orders []*domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		if orders[i].ExecSeq != orders[j].ExecSeq {
			return orders[i].ExecSeq < orders[j].ExecSeq
		}
		if orders[i].Seq != orders[j].Seq {
			return orders[i].Seq < orders[j].Seq
		}
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
