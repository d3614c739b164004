package main

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/domain/stock"
)

// Columns of a catalog file. A first row starting with "sku" is a header.
const (
	colSKU = iota
	colName
	colCategory
	colPrice
	colAvailable
	colMinimum
	numColumns
)

const progressEvery = 10_000

type row struct {
	file      string
	record    int
	sku       string
	name      string
	category  string
	price     decimal.Decimal
	available int
	minimum   int
}

func parseRow(rec []string) (row, error) {
	r := row{
		sku:      strings.TrimSpace(rec[colSKU]),
		name:     strings.TrimSpace(rec[colName]),
		category: strings.TrimSpace(rec[colCategory]),
	}
	if r.sku == "" || r.name == "" {
		return row{}, errors.New("sku and name are required")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(rec[colPrice]))
	if err != nil {
		return row{}, errors.Wrap(err, "price")
	}
	if !price.IsPositive() {
		return row{}, product.ErrInvalidPrice
	}
	r.price = price.Round(2)
	if r.available, err = strconv.Atoi(strings.TrimSpace(rec[colAvailable])); err != nil {
		return row{}, errors.Wrap(err, "available")
	}
	if r.minimum, err = strconv.Atoi(strings.TrimSpace(rec[colMinimum])); err != nil {
		return row{}, errors.Wrap(err, "minimum")
	}
	if r.available < 0 || r.minimum < 0 {
		return row{}, stock.ErrNegativeQuantity
	}
	return r, nil
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stats counts the outcome of an import.
type Stats struct {
	Read       atomic.Int64
	Invalid    atomic.Int64
	Duplicates atomic.Int64
	Created    atomic.Int64
}

type job struct {
	row
	// maybeKnown is set when the filter could not rule out an existing SKU.
	maybeKnown bool
}

// Importer streams gzipped CSV catalogs into products and inventory.
//
// Files are read concurrently. A single stage owns the bloom filter, seeded
// with the SKUs already in the catalog, so that only possible duplicates pay
// for an exact lookup. Writers insert each product with its stock record in
// one transaction; a unique violation from a concurrent writer still counts
// as a duplicate.
type Importer struct {
	lg       *zap.Logger
	tx       txRunner
	products product.Repository
	stock    stock.Repository
	workers  int
	filter   *bloom.BloomFilter
	dryRun   bool
}

// ImporterConfig holds the Importer tunables.
type ImporterConfig struct {
	Workers       int
	BloomCapacity uint
	BloomFPR      float64
	// DryRun skips writes. SKUs repeated within the input are then counted
	// as created more than once.
	DryRun bool
}

// NewImporter creates an Importer.
func NewImporter(lg *zap.Logger, tx txRunner, products product.Repository, inventory stock.Repository, cfg ImporterConfig) *Importer {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &Importer{
		lg:       lg,
		tx:       tx,
		products: products,
		stock:    inventory,
		workers:  cfg.Workers,
		filter:   bloom.NewWithEstimates(cfg.BloomCapacity, cfg.BloomFPR),
		dryRun:   cfg.DryRun,
	}
}

// Run imports files and returns the counters.
func (im *Importer) Run(ctx context.Context, files []string) (*Stats, error) {
	existing, err := im.products.List(ctx, product.Filter{})
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	for _, p := range existing {
		im.filter.AddString(strings.ToLower(p.SKU))
	}
	im.lg.Info("Filter seeded", zap.Int("existing_skus", len(existing)))

	var (
		stats = new(Stats)
		rows  = make(chan row, 1024)
		jobs  = make(chan job, 1024)
	)

	g, gctx := errgroup.WithContext(ctx)
	readers, rctx := errgroup.WithContext(gctx)
	for _, f := range files {
		readers.Go(func() error { return im.readFile(rctx, f, rows, stats) })
	}
	g.Go(func() error {
		defer close(rows)
		return readers.Wait()
	})
	g.Go(func() error {
		defer close(jobs)
		for r := range rows {
			key := strings.ToLower(r.sku)
			j := job{row: r, maybeKnown: im.filter.TestOrAddString(key)}
			select {
			case jobs <- j:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range im.workers {
		g.Go(func() error {
			for j := range jobs {
				if err := im.write(gctx, j, stats); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return stats, err
	}
	return stats, nil
}

func (im *Importer) readFile(ctx context.Context, path string, out chan<- row, stats *Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "create gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	cr := csv.NewReader(gz)
	cr.FieldsPerRecord = numColumns
	cr.ReuseRecord = true

	for n := 1; ; n++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				stats.Invalid.Add(1)
				im.lg.Warn("Skipping malformed row", zap.String("file", path), zap.Int("record", n), zap.Error(err))
				continue
			}
			return errors.Wrapf(err, "read %s", path)
		}
		if n == 1 && strings.EqualFold(strings.TrimSpace(rec[colSKU]), "sku") {
			continue
		}
		if read := stats.Read.Add(1); read%progressEvery == 0 {
			im.lg.Info("Import progress", zap.Int64("rows", read))
		}

		r, err := parseRow(rec)
		if err != nil {
			stats.Invalid.Add(1)
			im.lg.Warn("Skipping invalid row", zap.String("file", path), zap.Int("record", n), zap.Error(err))
			continue
		}
		r.file, r.record = path, n
		select {
		case out <- r:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (im *Importer) write(ctx context.Context, j job, stats *Stats) error {
	if j.maybeKnown {
		exists, err := im.products.ExistsBySKU(ctx, j.sku)
		if err != nil {
			return errors.Wrapf(err, "check sku %s", j.sku)
		}
		if exists {
			stats.Duplicates.Add(1)
			return nil
		}
	}
	if im.dryRun {
		stats.Created.Add(1)
		return nil
	}

	err := im.tx.WithinTx(ctx, func(ctx context.Context) error {
		p := &product.Product{
			Name:     j.name,
			Category: j.category,
			SKU:      j.sku,
			Price:    j.price,
			Active:   true,
		}
		if err := im.products.Create(ctx, p); err != nil {
			return err
		}
		return im.stock.Create(ctx, &stock.Record{
			ProductID: p.ID,
			Available: j.available,
			Minimum:   j.minimum,
		})
	})
	switch {
	case errors.Is(err, product.ErrDuplicateSKU):
		stats.Duplicates.Add(1)
		return nil
	case err != nil:
		return errors.Wrapf(err, "import %s (%s:%d)", j.sku, j.file, j.record)
	}
	stats.Created.Add(1)
	return nil
}
