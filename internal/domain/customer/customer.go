package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
)

var (
	// ErrNotFound is returned when a requested customer does not exist.
	ErrNotFound = errors.New("customer not found")
	// ErrUsernameTaken is returned when the username is already registered.
	ErrUsernameTaken = errors.New("username already in use")
	// ErrEmailTaken is returned when the email is already registered.
	ErrEmailTaken = errors.New("email already in use")
)

// Role is an authorization role granted to a customer.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Customer is a registered account that places orders.
type Customer struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	Roles        []Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// HasRole reports whether c was granted r.
func (c *Customer) HasRole(r Role) bool {
	for _, have := range c.Roles {
		if have == r {
			return true
		}
	}
	return false
}

// Reader is the lookup used by order placement.
type Reader interface {
	GetByID(ctx context.Context, id int64) (*Customer, error)
}

// Repository defines persistence operations for customers.
type Repository interface {
	Reader
	GetByUsername(ctx context.Context, username string) (*Customer, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	List(ctx context.Context) ([]Customer, error)
	Create(ctx context.Context, c *Customer) error
	Update(ctx context.Context, c *Customer) error
	Delete(ctx context.Context, id int64) error
}

// OrderCounter counts a customer's orders created at or after a cutoff.
type OrderCounter interface {
	CountSince(ctx context.Context, customerID int64, since time.Time) (int, error)
}
