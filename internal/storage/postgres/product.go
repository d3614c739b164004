package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"

	"github.com/xenking/kart-commerce/internal/domain/product"
)

const (
	productColumns = `id, name, description, category, sku, price, active, created_at, updated_at`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	listProductsSQL = `SELECT ` + productColumns + ` FROM products
		WHERE ($1 = '' OR lower(category) = lower($1))
		  AND (NOT $2 OR active)
		  AND ($3 = '' OR name ILIKE '%' || $3 || '%')
		ORDER BY id`

	productSKUExistsSQL = `SELECT EXISTS (SELECT 1 FROM products WHERE lower(sku) = lower($1))`

	insertProductSQL = `INSERT INTO products (name, description, category, sku, price, active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	updateProductSQL = `UPDATE products
		SET name = $2, description = $3, category = $4, sku = $5, price = $6, active = $7, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository backed by PostgreSQL.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// GetByID returns a single product.
func (r *ProductRepository) GetByID(ctx context.Context, id int64) (*product.Product, error) {
	rows, err := r.db.conn(ctx).Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}

	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, fmt.Errorf("getting product %d: %w", id, err)
	}
	return &p, nil
}

// List returns products matching f ordered by ID.
func (r *ProductRepository) List(ctx context.Context, f product.Filter) ([]product.Product, error) {
	rows, err := r.db.conn(ctx).Query(ctx, listProductsSQL, f.Category, f.ActiveOnly, likeEscaper.Replace(f.Name))
	if err != nil {
		return nil, fmt.Errorf("listing products: %w", err)
	}
	return pgx.CollectRows(rows, scanProduct)
}

// ExistsBySKU reports whether a product with sku exists, ignoring case.
func (r *ProductRepository) ExistsBySKU(ctx context.Context, sku string) (bool, error) {
	var exists bool
	if err := r.db.conn(ctx).QueryRow(ctx, productSKUExistsSQL, sku).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking sku %q: %w", sku, err)
	}
	return exists, nil
}

// Create inserts p and fills its ID and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	err := r.db.conn(ctx).QueryRow(ctx, insertProductSQL,
		p.Name, p.Description, p.Category, p.SKU, p.Price, p.Active,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return product.ErrDuplicateSKU
		}
		return fmt.Errorf("inserting product %q: %w", p.SKU, err)
	}
	return nil
}

// Update writes the mutable fields of p.
func (r *ProductRepository) Update(ctx context.Context, p *product.Product) error {
	err := r.db.conn(ctx).QueryRow(ctx, updateProductSQL,
		p.ID, p.Name, p.Description, p.Category, p.SKU, p.Price, p.Active,
	).Scan(&p.UpdatedAt)
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return product.ErrNotFound
		case isUniqueViolation(err):
			return product.ErrDuplicateSKU
		}
		return fmt.Errorf("updating product %d: %w", p.ID, err)
	}
	return nil
}

// Delete removes a product. Its stock record goes with it. Products that
// appear on order lines are kept and ErrInUse is returned.
func (r *ProductRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteProductSQL, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return product.ErrInUse
		}
		return fmt.Errorf("deleting product %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// likeEscaper makes user input match literally inside a LIKE pattern.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Category, &p.SKU,
		&p.Price, &p.Active, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
