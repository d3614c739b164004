package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xenking/kart-commerce/internal/domain/customer"
)

const (
	customerColumns = `id, username, email, password_hash, roles, created_at, updated_at`

	getCustomerByIDSQL       = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	getCustomerByUsernameSQL = `SELECT ` + customerColumns + ` FROM customers WHERE username = $1`
	listCustomersSQL         = `SELECT ` + customerColumns + ` FROM customers ORDER BY id`

	customerUsernameExistsSQL = `SELECT EXISTS (SELECT 1 FROM customers WHERE username = $1)`
	customerEmailExistsSQL    = `SELECT EXISTS (SELECT 1 FROM customers WHERE email = $1)`

	insertCustomerSQL = `INSERT INTO customers (username, email, password_hash, roles)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	updateCustomerSQL = `UPDATE customers
		SET username = $2, email = $3, password_hash = $4, roles = $5, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`

	deleteCustomerSQL = `DELETE FROM customers WHERE id = $1`
)

var _ customer.Repository = (*CustomerRepository)(nil)

// CustomerRepository implements customer.Repository backed by PostgreSQL.
type CustomerRepository struct {
	db *DB
}

// NewCustomerRepository returns a CustomerRepository.
func NewCustomerRepository(db *DB) *CustomerRepository {
	return &CustomerRepository{db: db}
}

// GetByID returns a customer by id.
func (r *CustomerRepository) GetByID(ctx context.Context, id int64) (*customer.Customer, error) {
	return r.getOne(ctx, getCustomerByIDSQL, id)
}

// GetByUsername returns a customer by username.
func (r *CustomerRepository) GetByUsername(ctx context.Context, username string) (*customer.Customer, error) {
	return r.getOne(ctx, getCustomerByUsernameSQL, username)
}

func (r *CustomerRepository) getOne(ctx context.Context, sql string, arg any) (*customer.Customer, error) {
	rows, err := r.db.conn(ctx).Query(ctx, sql, arg)
	if err != nil {
		return nil, fmt.Errorf("getting customer %v: %w", arg, err)
	}
	c, err := pgx.CollectExactlyOneRow(rows, scanCustomer)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("getting customer %v: %w", arg, err)
	}
	return &c, nil
}

// ExistsByUsername reports whether username is taken.
func (r *CustomerRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return r.exists(ctx, customerUsernameExistsSQL, username)
}

// ExistsByEmail reports whether email is taken.
func (r *CustomerRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, customerEmailExistsSQL, email)
}

func (r *CustomerRepository) exists(ctx context.Context, sql, arg string) (bool, error) {
	var ok bool
	if err := r.db.conn(ctx).QueryRow(ctx, sql, arg).Scan(&ok); err != nil {
		return false, fmt.Errorf("checking customer %q: %w", arg, err)
	}
	return ok, nil
}

// List returns all customers ordered by ID.
func (r *CustomerRepository) List(ctx context.Context) ([]customer.Customer, error) {
	rows, err := r.db.conn(ctx).Query(ctx, listCustomersSQL)
	if err != nil {
		return nil, fmt.Errorf("listing customers: %w", err)
	}
	return pgx.CollectRows(rows, scanCustomer)
}

// Create inserts c and fills its ID and timestamps.
func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) error {
	err := r.db.conn(ctx).QueryRow(ctx, insertCustomerSQL,
		c.Username, c.Email, c.PasswordHash, rolesToText(c.Roles),
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if uerr := uniqueCustomerError(err); uerr != nil {
			return uerr
		}
		return fmt.Errorf("inserting customer %q: %w", c.Username, err)
	}
	return nil
}

// Update writes the mutable fields of c.
func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) error {
	err := r.db.conn(ctx).QueryRow(ctx, updateCustomerSQL,
		c.ID, c.Username, c.Email, c.PasswordHash, rolesToText(c.Roles),
	).Scan(&c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customer.ErrNotFound
		}
		if uerr := uniqueCustomerError(err); uerr != nil {
			return uerr
		}
		return fmt.Errorf("updating customer %d: %w", c.ID, err)
	}
	return nil
}

// Delete removes a customer and, by cascade, their orders.
func (r *CustomerRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.conn(ctx).Exec(ctx, deleteCustomerSQL, id)
	if err != nil {
		return fmt.Errorf("deleting customer %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

// uniqueCustomerError maps a unique violation to the matching domain error.
func uniqueCustomerError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return nil
	}
	if pgErr.ConstraintName == "customers_email_key" {
		return customer.ErrEmailTaken
	}
	return customer.ErrUsernameTaken
}

func rolesToText(roles []customer.Role) []string {
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = string(r)
	}
	return out
}

func scanCustomer(row pgx.CollectableRow) (customer.Customer, error) {
	var (
		c     customer.Customer
		roles []string
	)
	err := row.Scan(&c.ID, &c.Username, &c.Email, &c.PasswordHash, &roles, &c.CreatedAt, &c.UpdatedAt)
	c.Roles = make([]customer.Role, len(roles))
	for i, r := range roles {
		c.Roles[i] = customer.Role(r)
	}
	return c, err
}
