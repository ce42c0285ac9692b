package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

// PostgresStore is the PostgreSQL backend for orders and positions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create db pool: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.initSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS order_exec_seq`,
		`CREATE TABLE IF NOT EXISTS orders (
			seq BIGSERIAL PRIMARY KEY,
			id UUID NOT NULL UNIQUE,
			instrument TEXT NOT NULL,
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			price NUMERIC NOT NULL,
			side TEXT NOT NULL,
			origin TEXT NOT NULL,
			status TEXT NOT NULL,
			backfilled BOOLEAN NOT NULL DEFAULT FALSE,
			exec_seq BIGINT,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_instrument_status ON orders(instrument, status)`,
		`ALTER TABLE orders ADD COLUMN IF NOT EXISTS exec_seq BIGINT`,
		`CREATE INDEX IF NOT EXISTS idx_orders_exec_seq ON orders(exec_seq)`,
		`CREATE TABLE IF NOT EXISTS positions (
			instrument TEXT PRIMARY KEY,
			quantity BIGINT NOT NULL CHECK (quantity > 0),
			average_cost NUMERIC NOT NULL,
			last_price NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	// Executed rows from before execution sequencing replay in creation order.
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET exec_seq = seq WHERE status = $1 AND exec_seq IS NULL`,
		string(domain.StatusExecuted))
	if err != nil {
		return fmt.Errorf("failed to backfill exec_seq: %w", err)
	}
	if tag.RowsAffected() > 0 {
		if _, err := s.pool.Exec(ctx, `SELECT setval('order_exec_seq', GREATEST(m, 1), m > 0)
			FROM (SELECT COALESCE(MAX(exec_seq), 0) AS m FROM orders) t`); err != nil {
			return fmt.Errorf("failed to advance order_exec_seq: %w", err)
		}
	}
	return nil
}

func pgExecSeq(status domain.Status) string {
	if status == domain.StatusExecuted {
		return `nextval('order_exec_seq')`
	}
	return "NULL"
}

func (s *PostgresStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	query := `INSERT INTO orders (id, instrument, quantity, price, side, origin, status, backfilled, exec_seq, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, ` + pgExecSeq(order.Status) + `, $9, $10)
			  RETURNING seq, COALESCE(exec_seq, 0)`
	return s.pool.QueryRow(ctx, query,
		order.ID, order.Instrument, order.Quantity, order.Price, string(order.Side),
		string(order.Origin), string(order.Status), order.Backfilled, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.Seq, &order.ExecSeq)
}

func (s *PostgresStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}

	row := s.pool.QueryRow(ctx, `SELECT `+pgOrderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *PostgresStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	where, args := orderWhere(filter, dollar)

	query := `SELECT ` + pgOrderColumns + ` FROM orders` + where + orderBy(filter)
	offset := max(filter.Offset, 0)
	switch {
	case filter.Limit > 0:
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	case offset > 0:
		query += fmt.Sprintf(" OFFSET %d", offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*domain.Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

func (s *PostgresStore) CountOrders(ctx context.Context, filter domain.OrderFilter) (int, error) {
	where, args := orderWhere(filter, dollar)

	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&n)
	return n, err
}

func (s *PostgresStore) UpdateOrderStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	// Transaction to ensure the status check and the write see the same row
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+pgOrderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	current, err := scanOrder(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if current.Status != from {
		return nil, fmt.Errorf("%w: order %s is %s, not %s", domain.ErrInvalidTransition, id, current.Status, from)
	}

	current.Status = to
	current.UpdatedAt = time.Now().UTC()
	err = tx.QueryRow(ctx, `UPDATE orders SET status = $1, updated_at = $2, exec_seq = `+pgExecSeq(to)+`
		WHERE id = $3 RETURNING COALESCE(exec_seq, 0)`,
		string(to), current.UpdatedAt, id).Scan(&current.ExecSeq)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return current, nil
}

func (s *PostgresStore) DeleteOrder(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, instrument string) (*domain.Position, error) {
	query := `SELECT instrument, quantity, average_cost, last_price, updated_at FROM positions WHERE instrument = $1`
	p, err := scanPosition(s.pool.QueryRow(ctx, query, instrument))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", instrument, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PostgresStore) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	rows, err := s.pool.Query(ctx, `SELECT instrument, quantity, average_cost, last_price, updated_at FROM positions ORDER BY instrument`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	positions := []*domain.Position{}
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

func (s *PostgresStore) SavePosition(ctx context.Context, position *domain.Position) error {
	position.UpdatedAt = time.Now().UTC()

	query := `INSERT INTO positions (instrument, quantity, average_cost, last_price, updated_at)
			  VALUES ($1, $2, $3, $4, $5)
			  ON CONFLICT (instrument) DO UPDATE SET
			  quantity = EXCLUDED.quantity,
			  average_cost = EXCLUDED.average_cost,
			  last_price = EXCLUDED.last_price,
			  updated_at = EXCLUDED.updated_at`
	_, err := s.pool.Exec(ctx, query,
		position.Instrument, position.Quantity, position.AverageCost, position.LastPrice, position.UpdatedAt)
	return err
}

func (s *PostgresStore) DeletePosition(ctx context.Context, instrument string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM positions WHERE instrument = $1`, instrument)
	return err
}

// id is cast to text so the shared scanner reads it into a string.
const pgOrderColumns = `seq, COALESCE(exec_seq, 0), id::text, instrument, quantity, price, side, origin, status, backfilled, created_at, updated_at`

func dollar(n int) string {
	return fmt.Sprintf("$%d", n)
}
