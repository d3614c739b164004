package product

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	byID   map[int64]*Product
	nextID int64
}

func newMemRepo(products ...Product) *memRepo {
	m := &memRepo{byID: make(map[int64]*Product)}
	for i := range products {
		p := products[i]
		m.nextID++
		p.ID = m.nextID
		m.byID[p.ID] = &p
	}
	return m
}

func (m *memRepo) GetByID(_ context.Context, id int64) (*Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f Filter) ([]Product, error) {
	var out []Product
	for _, p := range m.byID {
		if f.Category != "" && !strings.EqualFold(p.Category, f.Category) {
			continue
		}
		if f.ActiveOnly && !p.Active {
			continue
		}
		if !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Name)) {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (m *memRepo) ExistsBySKU(_ context.Context, sku string) (bool, error) {
	for _, p := range m.byID {
		if strings.EqualFold(p.SKU, sku) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memRepo) Create(_ context.Context, p *Product) error {
	m.nextID++
	p.ID = m.nextID
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memRepo) Update(_ context.Context, p *Product) error {
	cp := *p
	m.byID[p.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.byID[id]; !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	return nil
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to active and rounds price", func(t *testing.T) {
		svc := NewService(newMemRepo())
		p, err := svc.Create(ctx, Input{Name: "Mouse", SKU: "MS-1", Price: decimal.RequireFromString("19.999")})
		require.NoError(t, err)
		assert.NotZero(t, p.ID)
		assert.True(t, p.Active)
		assert.Equal(t, "20", p.Price.String())
	})

	t.Run("explicitly inactive", func(t *testing.T) {
		svc := NewService(newMemRepo())
		inactive := false
		p, err := svc.Create(ctx, Input{Name: "Old", SKU: "OLD-1", Price: decimal.NewFromInt(1), Active: &inactive})
		require.NoError(t, err)
		assert.False(t, p.Active)
	})

	t.Run("duplicate sku", func(t *testing.T) {
		svc := NewService(newMemRepo(Product{SKU: "MS-1", Price: decimal.NewFromInt(1)}))
		_, err := svc.Create(ctx, Input{Name: "Mouse", SKU: "ms-1", Price: decimal.NewFromInt(5)})
		require.ErrorIs(t, err, ErrDuplicateSKU)
	})

	t.Run("non-positive price", func(t *testing.T) {
		svc := NewService(newMemRepo())
		_, err := svc.Create(ctx, Input{Name: "Free", SKU: "F-1", Price: decimal.Zero})
		require.ErrorIs(t, err, ErrInvalidPrice)
	})
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	repo := newMemRepo(
		Product{Name: "Mouse", SKU: "MS-1", Price: decimal.NewFromInt(10), Active: true},
		Product{Name: "Keyboard", SKU: "KB-1", Price: decimal.NewFromInt(20), Active: true},
	)
	svc := NewService(repo)

	t.Run("keeps own sku", func(t *testing.T) {
		p, err := svc.Update(ctx, 1, Input{Name: "Mouse 2", SKU: "ms-1", Price: decimal.NewFromInt(12)})
		require.NoError(t, err)
		assert.Equal(t, "Mouse 2", p.Name)
		assert.True(t, p.Active, "active is kept when not given")
	})

	t.Run("takes another product's sku", func(t *testing.T) {
		_, err := svc.Update(ctx, 1, Input{Name: "Mouse", SKU: "KB-1", Price: decimal.NewFromInt(12)})
		require.ErrorIs(t, err, ErrDuplicateSKU)
	})

	t.Run("unknown product", func(t *testing.T) {
		_, err := svc.Update(ctx, 99, Input{Name: "X", SKU: "X", Price: decimal.NewFromInt(1)})
		require.ErrorIs(t, err, ErrNotFound)
	})
}

func TestService_List(t *testing.T) {
	repo := newMemRepo(
		Product{Name: "Mouse", Category: "peripherals", SKU: "MS-1", Price: decimal.NewFromInt(10), Active: true},
		Product{Name: "Old mouse", Category: "peripherals", SKU: "MS-0", Price: decimal.NewFromInt(5)},
		Product{Name: "Desk", Category: "furniture", SKU: "DK-1", Price: decimal.NewFromInt(100), Active: true},
	)
	svc := NewService(repo)

	got, err := svc.List(context.Background(), Filter{Category: " peripherals ", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "MS-1", got[0].SKU)

	got, err = svc.List(context.Background(), Filter{Name: "  MOUSE "})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	got, err = svc.List(context.Background(), Filter{Name: "mouse", ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "MS-1", got[0].SKU)
}
