package customer

import (
	"context"

	"github.com/go-faster/errors"
)

// PasswordHasher turns a plain password into a storable hash.
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// UpdateInput holds the writable customer fields. An empty Password keeps
// the current hash.
type UpdateInput struct {
	Username string
	Email    string
	Password string
}

// Service manages customer accounts.
type Service struct {
	repo   Repository
	hasher PasswordHasher
}

// NewService creates a customer Service.
func NewService(repo Repository, hasher PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// Get returns a customer by id.
func (s *Service) Get(ctx context.Context, id int64) (*Customer, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all customers.
func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.repo.List(ctx)
}

// Update changes username, email and optionally the password. Username and
// email stay unique across customers.
func (s *Service) Update(ctx context.Context, id int64, in UpdateInput) (*Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.Username != in.Username {
		taken, err := s.repo.ExistsByUsername(ctx, in.Username)
		if err != nil {
			return nil, errors.Wrap(err, "check username")
		}
		if taken {
			return nil, ErrUsernameTaken
		}
	}
	if c.Email != in.Email {
		taken, err := s.repo.ExistsByEmail(ctx, in.Email)
		if err != nil {
			return nil, errors.Wrap(err, "check email")
		}
		if taken {
			return nil, ErrEmailTaken
		}
	}

	c.Username = in.Username
	c.Email = in.Email
	if in.Password != "" {
		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return nil, errors.Wrap(err, "hash password")
		}
		c.PasswordHash = hash
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return nil, errors.Wrapf(err, "update customer %d", id)
	}
	return c, nil
}

// Delete removes a customer.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
