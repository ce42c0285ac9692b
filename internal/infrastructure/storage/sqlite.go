package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/Ankur-Sura/Nivesh-Copilot/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dsn := dbPath
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_foreign_keys=on"
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS orders (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			instrument TEXT NOT NULL,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			price TEXT NOT NULL,
			side TEXT NOT NULL,
			origin TEXT NOT NULL,
			status TEXT NOT NULL,
			backfilled BOOLEAN NOT NULL DEFAULT 0,
			exec_seq INTEGER,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_orders_instrument_status ON orders(instrument, status);`,
		`CREATE TABLE IF NOT EXISTS positions (
			instrument TEXT PRIMARY KEY,
			quantity INTEGER NOT NULL CHECK (quantity > 0),
			average_cost TEXT NOT NULL,
			last_price TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	// Migration: databases created before backfill support lack the column.
	// We ignore the error if the column already exists
	_, _ = s.db.Exec(`ALTER TABLE orders ADD COLUMN backfilled BOOLEAN NOT NULL DEFAULT 0`)
	_, _ = s.db.Exec(`ALTER TABLE orders ADD COLUMN exec_seq INTEGER`)

	// Executed rows from before execution sequencing replay in creation order.
	if _, err := s.db.Exec(`UPDATE orders SET exec_seq = seq WHERE status = ? AND exec_seq IS NULL`,
		string(domain.StatusExecuted)); err != nil {
		return fmt.Errorf("failed to backfill exec_seq: %w", err)
	}
	if _, err := s.db.Exec(`CREATE INDEX IF NOT EXISTS idx_orders_exec_seq ON orders(exec_seq)`); err != nil {
		return fmt.Errorf("failed to index exec_seq: %w", err)
	}

	return nil
}

// OrderRepository Implementation

const orderColumns = `seq, COALESCE(exec_seq, 0), id, instrument, quantity, price, side, origin, status, backfilled, created_at, updated_at`

// nextExecSeq is evaluated inside the writing statement; with a single
// connection no other write can interleave.
const nextExecSeq = `(SELECT COALESCE(MAX(exec_seq), 0) + 1 FROM orders)`

func sqliteExecSeq(status domain.Status) string {
	if status == domain.StatusExecuted {
		return nextExecSeq
	}
	return "NULL"
}

func (s *SQLiteStore) CreateOrder(ctx context.Context, order *domain.Order) error {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	order.CreatedAt = now
	order.UpdatedAt = now

	query := `INSERT INTO orders (id, instrument, quantity, price, side, origin, status, backfilled, exec_seq, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ` + sqliteExecSeq(order.Status) + `, ?, ?)
			  RETURNING seq, COALESCE(exec_seq, 0)`
	return s.db.QueryRowContext(ctx, query,
		order.ID, order.Instrument, order.Quantity, order.Price.String(), string(order.Side),
		string(order.Origin), string(order.Status), order.Backfilled, order.CreatedAt, order.UpdatedAt,
	).Scan(&order.Seq, &order.ExecSeq)
}

func (s *SQLiteStore) GetOrder(ctx context.Context, id string) (*domain.Order, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, id)

	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (s *SQLiteStore) ListOrders(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, error) {
	where, args := orderWhere(filter, func(int) string { return "?" })

	query := `SELECT ` + orderColumns + ` FROM orders` + where + orderBy(filter)
	offset := max(filter.Offset, 0)
	switch {
	case filter.Limit > 0:
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", filter.Limit, offset)
	case offset > 0:
		query += fmt.Sprintf(" LIMIT -1 OFFSET %d", offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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

func (s *SQLiteStore) CountOrders(ctx context.Context, filter domain.OrderFilter) (int, error) {
	where, args := orderWhere(filter, func(int) string { return "?" })

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM orders`+where, args...).Scan(&n)
	return n, err
}

func (s *SQLiteStore) UpdateOrderStatus(ctx context.Context, id string, from, to domain.Status) (*domain.Order, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ?, exec_seq = `+sqliteExecSeq(to)+`
		 WHERE id = ? AND status = ?`,
		string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return nil, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	current, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: order %s is %s, not %s", domain.ErrInvalidTransition, id, current.Status, from)
	}
	return current, nil
}

func (s *SQLiteStore) DeleteOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM orders WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// PositionRepository Implementation

func (s *SQLiteStore) GetPosition(ctx context.Context, instrument string) (*domain.Position, error) {
	query := `SELECT instrument, quantity, average_cost, last_price, updated_at FROM positions WHERE instrument = ?`
	row := s.db.QueryRowContext(ctx, query, instrument)

	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", instrument, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *SQLiteStore) ListPositions(ctx context.Context) ([]*domain.Position, error) {
	query := `SELECT instrument, quantity, average_cost, last_price, updated_at FROM positions ORDER BY instrument`
	rows, err := s.db.QueryContext(ctx, query)
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

func (s *SQLiteStore) SavePosition(ctx context.Context, position *domain.Position) error {
	position.UpdatedAt = time.Now().UTC()

	query := `INSERT INTO positions (instrument, quantity, average_cost, last_price, updated_at)
			  VALUES (?, ?, ?, ?, ?)
			  ON CONFLICT(instrument) DO UPDATE SET
			  quantity=excluded.quantity,
			  average_cost=excluded.average_cost,
			  last_price=excluded.last_price,
			  updated_at=excluded.updated_at`
	_, err := s.db.ExecContext(ctx, query,
		position.Instrument, position.Quantity, position.AverageCost.String(), position.LastPrice.String(), position.UpdatedAt)
	return err
}

func (s *SQLiteStore) DeletePosition(ctx context.Context, instrument string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM positions WHERE instrument = ?", instrument)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*domain.Order, error) {
	var (
		o                    domain.Order
		price                decimal.Decimal
		side, origin, status string
	)
	err := row.Scan(&o.Seq, &o.ExecSeq, &o.ID, &o.Instrument, &o.Quantity, &price, &side, &origin, &status,
		&o.Backfilled, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Price = price
	o.Side = domain.Side(side)
	o.Origin = domain.Origin(origin)
	o.Status = domain.Status(status)
	return &o, nil
}

func scanPosition(row rowScanner) (*domain.Position, error) {
	var p domain.Position
	if err := row.Scan(&p.Instrument, &p.Quantity, &p.AverageCost, &p.LastPrice, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// orderWhere builds the WHERE clause for filter. placeholder renders the
// n-th (1-based) bind parameter for the target dialect.
func orderWhere(filter domain.OrderFilter, placeholder func(n int) string) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(column string, value string) {
		args = append(args, value)
		conds = append(conds, column+" = "+placeholder(len(args)))
	}

	if filter.Instrument != "" {
		add("instrument", domain.NormalizeSymbol(filter.Instrument))
	}
	if filter.Status != "" {
		add("status", string(filter.Status))
	}
	if filter.Side != "" {
		add("side", string(filter.Side))
	}
	if filter.Origin != "" {
		add("origin", string(filter.Origin))
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(filter domain.OrderFilter) string {
	if filter.OldestFirst {
		return " ORDER BY seq ASC"
	}
	return " ORDER BY seq DESC"
}
