package usecase_test

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/usecase"
)

func executed(seq int64, instrument string, side domain.Side, qty int64, price string) *domain.Order {
	return &domain.Order{
		ID:         instrument + "-" + decimal.NewFromInt(seq).String(),
		Seq:        seq,
		Instrument: instrument,
		Quantity:   qty,
		Price:      decimal.RequireFromString(price),
		Side:       side,
		Origin:     domain.OriginManual,
		Status:     domain.StatusExecuted,
	}
}

func TestApplyExecution_BuyOpensPosition(t *testing.T) {
	pos, err := usecase.ApplyExecution(nil, executed(1, "TCS", domain.SideBuy, 10, "100"))
	require.NoError(t, err)
	require.NotNil(t, pos)

	assert.Equal(t, "TCS", pos.Instrument)
	assert.Equal(t, int64(10), pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(100)))
	assert.True(t, pos.LastPrice.Equal(decimal.NewFromInt(100)))
}

func TestApplyExecution_BuyAveragesCost(t *testing.T) {
	start := &domain.Position{Instrument: "TCS", Quantity: 10, AverageCost: decimal.NewFromInt(100), LastPrice: decimal.NewFromInt(100)}

	pos, err := usecase.ApplyExecution(start, executed(2, "TCS", domain.SideBuy, 5, "120"))
	require.NoError(t, err)

	assert.Equal(t, int64(15), pos.Quantity)
	assert.Equal(t, "106.67", pos.AverageCost.StringFixed(2))
	assert.True(t, pos.LastPrice.Equal(decimal.NewFromInt(120)))

	// input is not mutated
	assert.Equal(t, int64(10), start.Quantity)
}

func TestApplyExecution_SellKeepsAverageCost(t *testing.T) {
	start := &domain.Position{Instrument: "TCS", Quantity: 15, AverageCost: decimal.RequireFromString("106.5"), LastPrice: decimal.NewFromInt(120)}

	pos, err := usecase.ApplyExecution(start, executed(3, "TCS", domain.SideSell, 5, "130"))
	require.NoError(t, err)

	assert.Equal(t, int64(10), pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("106.5")))
	assert.True(t, pos.LastPrice.Equal(decimal.NewFromInt(130)))
}

func TestApplyExecution_SellToZeroClosesPosition(t *testing.T) {
	start := &domain.Position{Instrument: "TCS", Quantity: 15, AverageCost: decimal.NewFromInt(100)}

	pos, err := usecase.ApplyExecution(start, executed(3, "TCS", domain.SideSell, 15, "130"))
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestApplyExecution_Oversell(t *testing.T) {
	start := &domain.Position{Instrument: "TCS", Quantity: 5, AverageCost: decimal.NewFromInt(100), LastPrice: decimal.NewFromInt(100)}

	pos, err := usecase.ApplyExecution(start, executed(2, "TCS", domain.SideSell, 6, "130"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientPosition))
	assert.Same(t, start, pos)
	assert.Equal(t, int64(5), start.Quantity)
	assert.True(t, start.AverageCost.Equal(decimal.NewFromInt(100)))

	pos, err = usecase.ApplyExecution(nil, executed(1, "TCS", domain.SideSell, 1, "130"))
	assert.True(t, errors.Is(err, domain.ErrInsufficientPosition))
	assert.Nil(t, pos)
}

func TestApplyExecution_QuantityOverflow(t *testing.T) {
	start := &domain.Position{Instrument: "TCS", Quantity: math.MaxInt64, AverageCost: decimal.NewFromInt(1), LastPrice: decimal.NewFromInt(1)}

	pos, err := usecase.ApplyExecution(start, executed(2, "TCS", domain.SideBuy, 1, "1"))
	assert.True(t, errors.Is(err, domain.ErrInvalidOrder), "got %v", err)
	assert.Same(t, start, pos)
	assert.Equal(t, int64(math.MaxInt64), start.Quantity)
}

func TestReplay_UsesExecutionOrder(t *testing.T) {
	buy := executed(1, "TCS", domain.SideBuy, 10, "100")
	buy.ExecSeq = 1
	late := executed(2, "TCS", domain.SideBuy, 10, "200")
	late.ExecSeq = 3
	sell := executed(3, "TCS", domain.SideSell, 5, "150")
	sell.ExecSeq = 2

	pos, skipped := usecase.Replay("TCS", []*domain.Order{late, sell, buy})
	require.NotNil(t, pos)
	assert.Empty(t, skipped)
	assert.Equal(t, int64(15), pos.Quantity)
	// (5*100 + 10*200) / 15
	assert.Equal(t, "166.6667", pos.AverageCost.StringFixed(4))
}

func TestApplyExecution_InstrumentMismatch(t *testing.T) {
	start := &domain.Position{Instrument: "TCS", Quantity: 5, AverageCost: decimal.NewFromInt(100)}

	_, err := usecase.ApplyExecution(start, executed(2, "INFY", domain.SideBuy, 1, "10"))
	assert.Error(t, err)
}

func TestReplay_SkipsOtherInstrumentsAndNonExecuted(t *testing.T) {
	pending := executed(2, "TCS", domain.SideBuy, 100, "1")
	pending.Status = domain.StatusPending

	orders := []*domain.Order{
		executed(3, "TCS", domain.SideSell, 4, "110"),
		executed(1, "TCS", domain.SideBuy, 10, "100"),
		pending,
		executed(4, "INFY", domain.SideBuy, 7, "50"),
	}

	pos, skipped := usecase.Replay("tcs", orders)
	require.NotNil(t, pos)
	assert.Empty(t, skipped)
	assert.Equal(t, int64(6), pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.NewFromInt(100)))
}

func TestReplay_ReportsOversells(t *testing.T) {
	orders := []*domain.Order{
		executed(1, "TCS", domain.SideSell, 5, "100"),
		executed(2, "TCS", domain.SideBuy, 3, "100"),
		executed(3, "TCS", domain.SideSell, 4, "100"),
	}

	pos, skipped := usecase.Replay("TCS", orders)
	require.NotNil(t, pos)
	assert.Equal(t, int64(3), pos.Quantity)
	require.Len(t, skipped, 2)
	assert.Equal(t, int64(1), skipped[0].Seq)
	assert.Equal(t, int64(3), skipped[1].Seq)
}

// randomHistory builds a valid-looking mix of buys and sells, including
// occasional oversells.
func randomHistory(rng *rand.Rand, n int) []*domain.Order {
	prices := []string{"99.5", "100", "101.25", "87.3", "120"}
	orders := make([]*domain.Order, 0, n)
	for i := 0; i < n; i++ {
		side := domain.SideBuy
		if rng.Intn(3) == 0 {
			side = domain.SideSell
		}
		orders = append(orders, executed(int64(i+1), "TCS", side, int64(1+rng.Intn(20)), prices[rng.Intn(len(prices))]))
	}
	return orders
}

func TestReplay_MatchesIncrementalFold(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		history := randomHistory(rng, 1+rng.Intn(30))

		var incremental *domain.Position
		var bought, sold int64
		for _, o := range history {
			next, err := usecase.ApplyExecution(incremental, o)
			if err != nil {
				require.True(t, errors.Is(err, domain.ErrInsufficientPosition))
				continue
			}
			if o.Side == domain.SideBuy {
				bought += o.Quantity
			} else {
				sold += o.Quantity
			}
			incremental = next
		}

		replayed, _ := usecase.Replay("TCS", history)

		if incremental == nil {
			assert.Nil(t, replayed, "round %d", round)
			assert.Equal(t, bought, sold)
			continue
		}
		require.NotNil(t, replayed, "round %d", round)
		assert.Equal(t, incremental.Quantity, replayed.Quantity, "round %d", round)
		assert.True(t, incremental.AverageCost.Equal(replayed.AverageCost), "round %d", round)
		assert.Equal(t, bought-sold, replayed.Quantity, "quantity must equal applied buys minus applied sells")
	}
}

func TestReplay_SamePriceBuysAreOrderIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	var buys []*domain.Order
	for i := 0; i < 10; i++ {
		price := "100"
		if i%2 == 0 {
			price = "125.5"
		}
		buys = append(buys, executed(int64(i+1), "TCS", domain.SideBuy, int64(1+rng.Intn(50)), price))
	}
	base, _ := usecase.Replay("TCS", buys)
	require.NotNil(t, base)

	// Swap the creation order of orders sharing a price.
	shuffled := make([]*domain.Order, len(buys))
	for i, o := range buys {
		c := *o
		shuffled[i] = &c
	}
	var same []int
	for i, o := range shuffled {
		if o.Price.Equal(decimal.NewFromInt(100)) {
			same = append(same, i)
		}
	}
	rng.Shuffle(len(same), func(i, j int) {
		a, b := shuffled[same[i]], shuffled[same[j]]
		a.Seq, b.Seq = b.Seq, a.Seq
	})

	again, _ := usecase.Replay("TCS", shuffled)
	require.NotNil(t, again)
	assert.Equal(t, base.Quantity, again.Quantity)
	assert.Equal(t, base.AverageCost.StringFixed(8), again.AverageCost.StringFixed(8))
}
