// Package auth registers customers, checks their credentials and issues
// bearer tokens.
package auth

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-commerce/internal/domain/customer"
)

// Session is the result of a successful register or login.
type Session struct {
	Token    string
	Customer *customer.Customer
}

// RegisterInput holds the fields of a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
}

// Service implements registration and login.
type Service struct {
	customers customer.Repository
	hasher    BcryptHasher
	tokens    *Tokens
}

// NewService creates an auth Service.
func NewService(customers customer.Repository, hasher BcryptHasher, tokens *Tokens) *Service {
	return &Service{customers: customers, hasher: hasher, tokens: tokens}
}

// Register creates a customer with the USER role and returns a session.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Session, error) {
	taken, err := s.customers.ExistsByUsername(ctx, in.Username)
	if err != nil {
		return nil, errors.Wrap(err, "check username")
	}
	if taken {
		return nil, customer.ErrUsernameTaken
	}
	taken, err = s.customers.ExistsByEmail(ctx, in.Email)
	if err != nil {
		return nil, errors.Wrap(err, "check email")
	}
	if taken {
		return nil, customer.ErrEmailTaken
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, errors.Wrap(err, "hash password")
	}
	c := &customer.Customer{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Roles:        []customer.Role{customer.RoleUser},
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, errors.Wrap(err, "create customer")
	}
	return s.session(c)
}

// Login checks credentials and returns a session. Unknown usernames and wrong
// passwords both yield ErrUnauthorized.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	c, err := s.customers.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, errors.Wrap(err, "lookup customer")
	}
	if !s.hasher.Compare(c.PasswordHash, password) {
		return nil, ErrUnauthorized
	}
	return s.session(c)
}

// Verify resolves a bearer token to its claims.
func (s *Service) Verify(token string) (*Claims, error) {
	return s.tokens.Verify(token)
}

func (s *Service) session(c *customer.Customer) (*Session, error) {
	token, err := s.tokens.Issue(c)
	if err != nil {
		return nil, err
	}
	return &Session{Token: token, Customer: c}, nil
}
