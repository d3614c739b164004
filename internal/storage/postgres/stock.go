package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-commerce/internal/domain/stock"
)

const (
	stockColumns = `id, product_id, available, reserved, minimum, created_at, updated_at`

	getStockByIDSQL        = `SELECT ` + stockColumns + ` FROM inventory WHERE id = $1`
	getStockByProductIDSQL = `SELECT ` + stockColumns + ` FROM inventory WHERE product_id = $1`
	listStockSQL           = `SELECT ` + stockColumns + ` FROM inventory ORDER BY id`

	// Guarded so that concurrent orders can never drive available below zero.
	decrementStockSQL = `UPDATE inventory
		SET available = available - $2, updated_at = now()
		WHERE product_id = $1 AND available >= $2`

	insertStockSQL = `INSERT INTO inventory (product_id, available, reserved, minimum)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	updateStockSQL = `UPDATE inventory
		SET product_id = $2, available = $3, reserved = $4, minimum = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteStockSQL = `DELETE FROM inventory WHERE id = $1`
)

var _ stock.Repository = (*StockRepository)(nil)

// StockRepository implements stock.Repository backed by PostgreSQL.
type StockRepository struct {
	db *DB
}

// NewStockRepository returns a StockRepository.
func NewStockRepository(db *DB) *StockRepository {
	return &StockRepository{db: db}
}

// GetByID returns a stock record by its own id.
func (r *StockRepository) GetByID(ctx context.Context, id int64) (*stock.Record, error) {
	return r.getOne(ctx, getStockByIDSQL, id)
}

// GetByProductID returns the stock record of a product.
func (r *StockRepository) GetByProductID(ctx context.Context, productID int64) (*stock.Record, error) {
	return r.getOne(ctx, getStockByProductIDSQL, productID)
}

func (r *StockRepository) getOne(ctx context.Context, sql string, id int64) (*stock.Record, error) {
	rows, err := r.db.conn(ctx).Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting stock %d: %w", id, err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, scanStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stock.ErrNotFound
		}
		return nil, fmt.Errorf("getting stock %d: %w", id, err)
	}
	return &rec, nil
}

// List returns every stock record ordered by ID.
func (r *StockRepository) List(ctx context.Context) ([]stock.Record, error) {
	rows, err := r.db.conn(ctx).Query(ctx, listStockSQL)
	if err != nil {
		return nil, fmt.Errorf("listing stock: %w", err)
	}
	return pgx.CollectRows(rows, scanStock)
}

// Decrement subtracts qty when enough units are available and reports
// whether it did.
func (r *StockRepository) Decrement(ctx context.Context, productID int64, qty int) (bool, error) {
	tag, err := r.db.conn(ctx).Exec(ctx, decrementStockSQL, productID, qty)
	if err != nil {
		return false, fmt.Errorf("decrementing stock of product %d: %w", productID, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Create inserts rec and fills its ID and timestamps.
func (r *StockRepository) Create(ctx context.Context, rec *stock.Record) error {
	err := r.db.conn(ctx).QueryRow(ctx, insertStockSQL,
		rec.ProductID, rec.Available, rec.Reserved, rec.Minimum,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return stock.ErrAlreadyExists
		}
		return fmt.Errorf("inserting stock for product %d: %w", rec.ProductID, err)
	}
	return nil
}

// Update writes every mutable field of rec.
func (r *StockRepository) Update(ctx context.Context, rec *stock.Record) error {
	err := r.db.conn(ctx).QueryRow(ctx, updateStockSQL,
		rec.ID, rec.ProductID, rec.Available, rec.Reserved, rec.Minimum,
	).Scan(&rec.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return stock.ErrNotFound
		case isUniqueViolation(err):
			return stock.ErrAlreadyExists
		}
		return fmt.Errorf("updating stock %d: %w", rec.ID, err)
	}
	return nil
}

// Delete removes a stock record.
func (r *StockRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteStockSQL, id)
	if err != nil {
		return fmt.Errorf("deleting stock %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrNotFound
	}
	return nil
}

func scanStock(row pgx.CollectableRow) (stock.Record, error) {
	var rec stock.Record
	err := row.Scan(
		&rec.ID, &rec.ProductID, &rec.Available, &rec.Reserved, &rec.Minimum,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	return rec, err
}
