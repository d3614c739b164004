package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/domain/stock"
)

type noTx struct{}

func (noTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) }

type memCatalog struct {
	product.Repository

	mu       sync.Mutex
	products []product.Product
	records  []stock.Record
}

func (m *memCatalog) List(context.Context, product.Filter) ([]product.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]product.Product(nil), m.products...), nil
}

func (m *memCatalog) ExistsBySKU(_ context.Context, sku string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.products {
		if strings.EqualFold(p.SKU, sku) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memCatalog) Create(_ context.Context, p *product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, have := range m.products {
		if strings.EqualFold(have.SKU, p.SKU) {
			return product.ErrDuplicateSKU
		}
	}
	p.ID = int64(len(m.products) + 1)
	m.products = append(m.products, *p)
	return nil
}

type memInventory struct {
	stock.Repository
	c *memCatalog
}

func (m memInventory) Create(_ context.Context, r *stock.Record) error {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()
	m.c.records = append(m.c.records, *r)
	return nil
}

func writeGz(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	require.NoError(t, err)
	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
	return path
}

func newTestImporter(c *memCatalog, dryRun bool) *Importer {
	return NewImporter(zap.NewNop(), noTx{}, c, memInventory{c: c}, ImporterConfig{
		Workers:       3,
		BloomCapacity: 1000,
		BloomFPR:      0.01,
		DryRun:        dryRun,
	})
}

func TestParseRow(t *testing.T) {
	r, err := parseRow([]string{" KB-1 ", "Keyboard", "peripherals", "49.999", "7", "2"})
	require.NoError(t, err)
	assert.Equal(t, "KB-1", r.sku)
	assert.Equal(t, "50", r.price.String())
	assert.Equal(t, 7, r.available)
	assert.Equal(t, 2, r.minimum)

	for name, rec := range map[string][]string{
		"no sku":         {"", "Keyboard", "", "1", "1", "0"},
		"bad price":      {"A", "A", "", "cheap", "1", "0"},
		"zero price":     {"A", "A", "", "0", "1", "0"},
		"bad quantity":   {"A", "A", "", "1", "many", "0"},
		"negative stock": {"A", "A", "", "1", "-3", "0"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := parseRow(rec)
			require.Error(t, err)
		})
	}
}

func TestImporter_Run(t *testing.T) {
	first := writeGz(t, "a.csv.gz", strings.Join([]string{
		"sku,name,category,price,available,minimum",
		"KB-1,Keyboard,peripherals,49.90,10,2",
		"MS-1,Mouse,peripherals,19.90,50,5",
		"EXIST-1,Already there,misc,5.00,1,0",
		"BAD-1,Broken,misc,free,1,0",
		"SHORT,row",
	}, "\n"))
	second := writeGz(t, "b.csv.gz", strings.Join([]string{
		"kb-1,Keyboard dup,peripherals,49.90,10,2",
		"DK-1,Desk,furniture,299.00,3,1",
	}, "\n"))

	c := &memCatalog{products: []product.Product{{ID: 1, SKU: "exist-1"}}}
	stats, err := newTestImporter(c, false).Run(context.Background(), []string{first, second})
	require.NoError(t, err)

	assert.EqualValues(t, 3, stats.Created.Load())
	assert.EqualValues(t, 2, stats.Duplicates.Load())
	assert.EqualValues(t, 2, stats.Invalid.Load())

	skus := make([]string, 0, len(c.products))
	for _, p := range c.products {
		skus = append(skus, strings.ToUpper(p.SKU))
	}
	assert.ElementsMatch(t, []string{"EXIST-1", "KB-1", "MS-1", "DK-1"}, skus)
	assert.Len(t, c.records, 3)
}

func TestImporter_DryRun(t *testing.T) {
	file := writeGz(t, "a.csv.gz", "KB-1,Keyboard,peripherals,49.90,10,2\nMS-1,Mouse,peripherals,19.90,50,5\n")

	c := &memCatalog{}
	stats, err := newTestImporter(c, true).Run(context.Background(), []string{file})
	require.NoError(t, err)
	assert.EqualValues(t, 2, stats.Created.Load())
	assert.Empty(t, c.products)
	assert.Empty(t, c.records)
}

func TestImporter_MissingFile(t *testing.T) {
	_, err := newTestImporter(&memCatalog{}, false).Run(context.Background(), []string{filepath.Join(t.TempDir(), "nope.csv.gz")})
	require.ErrorContains(t, err, "open")
}
