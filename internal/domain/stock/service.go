package stock

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-commerce/internal/domain/product"
)

// Input holds the writable fields of a stock record.
type Input struct {
	ProductID int64
	Available int
	Reserved  int
	Minimum   int
}

func (in Input) validate() error {
	if in.Available < 0 || in.Reserved < 0 || in.Minimum < 0 {
		return ErrNegativeQuantity
	}
	return nil
}

// Service manages inventory records. Each product has at most one record.
type Service struct {
	repo     Repository
	products product.Reader
}

// NewService creates an inventory Service.
func NewService(repo Repository, products product.Reader) *Service {
	return &Service{repo: repo, products: products}
}

// Create registers stock for a product that has none yet.
func (s *Service) Create(ctx context.Context, in Input) (*Record, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if _, err := s.products.GetByID(ctx, in.ProductID); err != nil {
		return nil, err
	}
	if err := s.ensureFree(ctx, in.ProductID, 0); err != nil {
		return nil, err
	}

	r := &Record{
		ProductID: in.ProductID,
		Available: in.Available,
		Reserved:  in.Reserved,
		Minimum:   in.Minimum,
	}
	if err := s.repo.Create(ctx, r); err != nil {
		return nil, errors.Wrap(err, "create stock record")
	}
	return r, nil
}

// Get returns a stock record by its id.
func (s *Service) Get(ctx context.Context, id int64) (*Record, error) {
	return s.repo.GetByID(ctx, id)
}

// GetByProduct returns the stock record of a product.
func (s *Service) GetByProduct(ctx context.Context, productID int64) (*Record, error) {
	return s.repo.GetByProductID(ctx, productID)
}

// List returns every stock record.
func (s *Service) List(ctx context.Context) ([]Record, error) {
	return s.repo.List(ctx)
}

// Update overwrites quantities and may move the record to another product,
// provided that product has no record of its own.
func (s *Service) Update(ctx context.Context, id int64, in Input) (*Record, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	r, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.ProductID != in.ProductID {
		if _, err := s.products.GetByID(ctx, in.ProductID); err != nil {
			return nil, err
		}
		if err := s.ensureFree(ctx, in.ProductID, id); err != nil {
			return nil, err
		}
		r.ProductID = in.ProductID
	}

	r.Available = in.Available
	r.Reserved = in.Reserved
	r.Minimum = in.Minimum
	if err := s.repo.Update(ctx, r); err != nil {
		return nil, errors.Wrapf(err, "update stock record %d", id)
	}
	return r, nil
}

// Delete removes a stock record.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// ensureFree fails with ErrAlreadyExists when productID already has a record
// other than ownID.
func (s *Service) ensureFree(ctx context.Context, productID, ownID int64) error {
	existing, err := s.repo.GetByProductID(ctx, productID)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		return errors.Wrap(err, "lookup stock by product")
	case existing.ID != ownID:
		return ErrAlreadyExists
	default:
		return nil
	}
}
