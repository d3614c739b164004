package product

import (
	"context"
	"strings"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidPrice is returned when a product price is not positive.
var ErrInvalidPrice = errors.New("price must be greater than 0")

// Input holds the writable product fields.
type Input struct {
	Name        string
	Description string
	Category    string
	SKU         string
	Price       decimal.Decimal
	Active      *bool
}

// Service implements catalog management on top of a Repository.
type Service struct {
	repo Repository
}

// NewService creates a product Service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Create adds a product, rejecting duplicate SKUs. Products are active
// unless explicitly created inactive.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	if !in.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	exists, err := s.repo.ExistsBySKU(ctx, in.SKU)
	if err != nil {
		return nil, errors.Wrap(err, "check sku")
	}
	if exists {
		return nil, ErrDuplicateSKU
	}

	p := &Product{
		Name:        in.Name,
		Description: in.Description,
		Category:    in.Category,
		SKU:         in.SKU,
		Price:       in.Price.Round(2),
		Active:      in.Active == nil || *in.Active,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	return p, nil
}

// Get returns a product by id.
func (s *Service) Get(ctx context.Context, id int64) (*Product, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns products matching f.
func (s *Service) List(ctx context.Context, f Filter) ([]Product, error) {
	f.Name = strings.TrimSpace(f.Name)
	f.Category = strings.TrimSpace(f.Category)
	return s.repo.List(ctx, f)
}

// Update replaces the writable fields of an existing product. Existing order
// lines keep their captured price.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Product, error) {
	if !in.Price.IsPositive() {
		return nil, ErrInvalidPrice
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(p.SKU, in.SKU) {
		exists, err := s.repo.ExistsBySKU(ctx, in.SKU)
		if err != nil {
			return nil, errors.Wrap(err, "check sku")
		}
		if exists {
			return nil, ErrDuplicateSKU
		}
	}

	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.SKU = in.SKU
	p.Price = in.Price.Round(2)
	if in.Active != nil {
		p.Active = *in.Active
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, errors.Wrapf(err, "update product %d", id)
	}
	return p, nil
}

// Delete removes a product.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
