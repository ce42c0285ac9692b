package usecase_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
	"github.com/Ankur-Sura/Nivesh-Copilot/internal/infrastructure/storage"
)

var errDiskFull = errors.New("disk full")

// FlakyStore is a MemoryStore whose writes can be switched to fail.
type FlakyStore struct {
	*storage.MemoryStore

	mu               sync.Mutex
	failSavePosition bool
	failUpdateStatus bool
}

func NewFlakyStore() *FlakyStore {
	return &FlakyStore{MemoryStore: storage.NewMemoryStore()}
}

func (f *FlakyStore) FailSavePosition(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSavePosition = v
}

func (f *FlakyStore) FailUpdateStatus(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failUpdateStatus = v
}

func (f *FlakyStore) SavePosition(ctx context.Context, p *domain.Position) error {
	f.mu.Lock()
	fail := f.failSavePosition
	f.mu.Unlock()
	if fail {
		return errDiskFull
	}
	return f.MemoryStore.SavePosition(ctx, p)
}

func (f *FlakyStore) UpdateOrderStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	f.mu.Lock()
	fail := f.failUpdateStatus
	f.mu.Unlock()
	if fail {
		return nil, errDiskFull
	}
	return f.MemoryStore.UpdateOrderStatus(ctx, id, from, to)
}

// MockQuotes serves fixed prices per instrument.
type MockQuotes struct {
	mu     sync.Mutex
	Prices map[string]decimal.Decimal
	Calls  int
}

func (m *MockQuotes) GetCurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	p, ok := m.Prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no quote for %s", symbol)
	}
	return p, nil
}

// RecordingPublisher keeps every published event.
type RecordingPublisher struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

func (r *RecordingPublisher) Publish(e domain.LedgerEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *RecordingPublisher) Types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}
