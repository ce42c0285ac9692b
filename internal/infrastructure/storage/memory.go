package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

// MemoryStore keeps orders and positions in process memory. Values are
// copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu        sync.RWMutex
	seq       int64
	execSeq   int64
	orders    map[string]*domain.Order
	positions map[string]*domain.Position
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		orders:    make(map[string]*domain.Order),
		positions: make(map[string]*domain.Position),
	}
}

func (m *MemoryStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	if _, ok := m.orders[order.ID]; ok {
		return fmt.Errorf("order %s already exists", order.ID)
	}

	m.seq++
	now := time.Now().UTC()
	order.Seq = m.seq
	if order.Status == domain.StatusExecuted {
		m.execSeq++
		order.ExecSeq = m.execSeq
	}
	order.CreatedAt = now
	order.UpdatedAt = now

	c := *order
	m.orders[order.ID] = &c
	return nil
}

func (m *MemoryStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	c := *o
	return &c, nil
}

func (m *MemoryStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	matched := m.match(filter)

	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return []*domain.Order{}, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

func (m *MemoryStore) CountOrders(ctx context.Context, filter domain.OrderFilter) (int, error) {
	return len(m.match(filter)), nil
}

func (m *MemoryStore) match(filter domain.OrderFilter) []*domain.Order {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := []*domain.Order{}
	for _, o := range m.orders {
		if filter.Matches(o) {
			c := *o
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if filter.OldestFirst {
			return out[i].Seq < out[j].Seq
		}
		return out[i].Seq > out[j].Seq
	})
	return out
}

func (m *MemoryStore) UpdateOrderStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if o.Status != from {
		return nil, fmt.Errorf("%w: order %s is %s, not %s", domain.ErrInvalidTransition, id, o.Status, from)
	}
	o.Status = to
	if to == domain.StatusExecuted {
		m.execSeq++
		o.ExecSeq = m.execSeq
	}
	o.UpdatedAt = time.Now().UTC()

	c := *o
	return &c, nil
}

func (m *MemoryStore) DeleteOrder(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[id]; !ok {
		return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	delete(m.orders, id)
	return nil
}

func (m *MemoryStore) GetPosition(ctx context.Context, instrument string) (*domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.positions[instrument]
	if !ok {
		return nil, fmt.Errorf("position %s: %w", instrument, domain.ErrNotFound)
	}
	return p.Clone(), nil
}

func (m *MemoryStore) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Position, 0, len(m.positions))
	for _, p := range m.positions {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Instrument < out[j].Instrument })
	return out, nil
}

func (m *MemoryStore) SavePosition(ctx context.Context, position *domain.Position) error {
	if position.Quantity <= 0 {
		return fmt.Errorf("position %s: quantity must be positive, got %d", position.Instrument, position.Quantity)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	position.UpdatedAt = time.Now().UTC()
	m.positions[position.Instrument] = position.Clone()
	return nil
}

func (m *MemoryStore) DeletePosition(ctx context.Context, instrument string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.positions, instrument)
	return nil
}

func (m *MemoryStore) Close() error {
	return nil
}
