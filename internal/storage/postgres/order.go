package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-commerce/internal/domain/discount"
	"github.com/xenking/kart-commerce/internal/domain/order"
)

const (
	orderSelect = `SELECT o.id, o.customer_id, c.username, o.status, o.subtotal, o.discount_total, o.total,
		o.discounts, o.created_at, o.updated_at
		FROM orders o JOIN customers c ON c.id = o.customer_id`

	getOrderByIDSQL         = orderSelect + ` WHERE o.id = $1`
	listOrdersSQL           = orderSelect + ` ORDER BY o.id`
	listOrdersByCustomerSQL = orderSelect + ` WHERE o.customer_id = $1 ORDER BY o.id`

	listLinesSQL = `SELECT order_id, product_id, product_name, product_sku, quantity, unit_price, subtotal
		FROM order_lines WHERE order_id = ANY($1) ORDER BY id`

	insertOrderSQL = `INSERT INTO orders (customer_id, status, subtotal, discount_total, total, discounts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`

	insertLineSQL = `INSERT INTO order_lines (order_id, product_id, product_name, product_sku, quantity, unit_price, subtotal)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	countOrdersSinceSQL = `SELECT count(*) FROM orders WHERE customer_id = $1 AND created_at >= $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Lines
// live in order_lines; applied discounts are kept as JSONB on the order.
type OrderRepository struct {
	db *DB
}

// NewOrderRepository returns an OrderRepository.
func NewOrderRepository(db *DB) *OrderRepository {
	return &OrderRepository{db: db}
}

type discountRecord struct {
	Kind   discount.Kind   `json:"kind"`
	Rate   decimal.Decimal `json:"rate"`
	Base   decimal.Decimal `json:"base"`
	Amount decimal.Decimal `json:"amount"`
}

// Create persists the order and its lines and assigns o.ID.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	records := make([]discountRecord, len(o.Discounts))
	for i, d := range o.Discounts {
		records[i] = discountRecord(d)
	}
	discountsJSON, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshaling order discounts: %w", err)
	}

	q := r.db.conn(ctx)
	err = q.QueryRow(ctx, insertOrderSQL,
		o.CustomerID, string(o.Status), o.Subtotal, o.DiscountTotal, o.Total,
		discountsJSON, o.CreatedAt, o.UpdatedAt,
	).Scan(&o.ID)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}

	batch := &pgx.Batch{}
	for _, l := range o.Lines {
		batch.Queue(insertLineSQL,
			o.ID, l.ProductID, l.ProductName, l.ProductSKU, l.Quantity, l.UnitPrice, l.Subtotal,
		)
	}
	if err := q.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting lines of order %d: %w", o.ID, err)
	}
	return nil
}

// GetByID returns an order with its lines.
func (r *OrderRepository) GetByID(ctx context.Context, id int64) (*order.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, getOrderByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}
	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %d: %w", id, err)
	}

	orders := []order.Order{o}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// List returns every order ordered by ID.
func (r *OrderRepository) List(ctx context.Context) ([]order.Order, error) {
	return r.list(ctx, listOrdersSQL)
}

// ListByCustomer returns the orders of one customer ordered by ID.
func (r *OrderRepository) ListByCustomer(ctx context.Context, customerID int64) ([]order.Order, error) {
	return r.list(ctx, listOrdersByCustomerSQL, customerID)
}

func (r *OrderRepository) list(ctx context.Context, sql string, args ...any) ([]order.Order, error) {
	rows, err := r.db.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	if err := r.attachLines(ctx, orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (r *OrderRepository) attachLines(ctx context.Context, orders []order.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]int64, len(orders))
	index := make(map[int64]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
		index[o.ID] = i
	}

	rows, err := r.db.conn(ctx).Query(ctx, listLinesSQL, ids)
	if err != nil {
		return fmt.Errorf("listing order lines: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			orderID int64
			l       order.Line
		)
		if err := rows.Scan(&orderID, &l.ProductID, &l.ProductName, &l.ProductSKU,
			&l.Quantity, &l.UnitPrice, &l.Subtotal); err != nil {
			return fmt.Errorf("scanning order line: %w", err)
		}
		i := index[orderID]
		orders[i].Lines = append(orders[i].Lines, l)
	}
	return rows.Err()
}

// UpdateStatus sets the status of an order.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id int64, status order.Status, at time.Time) error {
	tag, err := r.db.conn(ctx).Exec(ctx, updateOrderStatusSQL, id, string(status), at)
	if err != nil {
		return fmt.Errorf("updating status of order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Delete removes an order and, by cascade, its lines.
func (r *OrderRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// CountSince counts the orders a customer placed at or after since.
func (r *OrderRepository) CountSince(ctx context.Context, customerID int64, since time.Time) (int, error) {
	var n int
	if err := r.db.conn(ctx).QueryRow(ctx, countOrdersSinceSQL, customerID, since).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting orders of customer %d: %w", customerID, err)
	}
	return n, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		status        string
		discountsJSON []byte
	)
	if err := row.Scan(
		&o.ID, &o.CustomerID, &o.CustomerName, &status, &o.Subtotal, &o.DiscountTotal, &o.Total,
		&discountsJSON, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return o, err
	}
	o.Status = order.Status(status)

	var records []discountRecord
	if err := json.Unmarshal(discountsJSON, &records); err != nil {
		return o, fmt.Errorf("unmarshaling discounts of order %d: %w", o.ID, err)
	}
	for _, d := range records {
		o.Discounts = append(o.Discounts, discount.Applied(d))
	}
	return o, nil
}
