package stock

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-commerce/internal/domain/product"
)

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	products := &mockProducts{ids: map[int64]bool{1: true, 2: true}}

	t.Run("creates record", func(t *testing.T) {
		svc := NewService(newMemRepo(), products)
		rec, err := svc.Create(ctx, Input{ProductID: 1, Available: 10, Minimum: 3})
		require.NoError(t, err)
		assert.NotZero(t, rec.ID)
		assert.Equal(t, 10, rec.Available)
	})

	t.Run("unknown product", func(t *testing.T) {
		svc := NewService(newMemRepo(), products)
		_, err := svc.Create(ctx, Input{ProductID: 99, Available: 1})
		require.ErrorIs(t, err, product.ErrNotFound)
	})

	t.Run("second record for product", func(t *testing.T) {
		svc := NewService(newMemRepo(Record{ProductID: 1, Available: 1}), products)
		_, err := svc.Create(ctx, Input{ProductID: 1, Available: 5})
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("negative quantity", func(t *testing.T) {
		svc := NewService(newMemRepo(), products)
		_, err := svc.Create(ctx, Input{ProductID: 1, Available: -1})
		require.ErrorIs(t, err, ErrNegativeQuantity)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	products := &mockProducts{ids: map[int64]bool{1: true, 2: true, 3: true}}

	t.Run("quantities", func(t *testing.T) {
		repo := newMemRepo(Record{ID: 1, ProductID: 1, Available: 1})
		svc := NewService(repo, products)

		rec, err := svc.Update(ctx, 1, Input{ProductID: 1, Available: 20, Reserved: 2, Minimum: 5})
		require.NoError(t, err)
		assert.Equal(t, 20, rec.Available)
		assert.Equal(t, 22, rec.Total())
	})

	t.Run("reassign to free product", func(t *testing.T) {
		repo := newMemRepo(Record{ID: 1, ProductID: 1})
		svc := NewService(repo, products)

		rec, err := svc.Update(ctx, 1, Input{ProductID: 3, Available: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(3), rec.ProductID)
	})

	t.Run("reassign to taken product", func(t *testing.T) {
		repo := newMemRepo(Record{ID: 1, ProductID: 1}, Record{ID: 2, ProductID: 2})
		svc := NewService(repo, products)

		_, err := svc.Update(ctx, 1, Input{ProductID: 2})
		require.ErrorIs(t, err, ErrAlreadyExists)
	})

	t.Run("missing record", func(t *testing.T) {
		svc := NewService(newMemRepo(), products)
		_, err := svc.Update(ctx, 5, Input{ProductID: 1})
		require.ErrorIs(t, err, ErrNotFound)
	})
}
