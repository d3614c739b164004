// Command seed-db loads the demo catalog, its inventory and an admin account.
// Existing SKUs and usernames are left untouched, so it is safe to rerun.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/db"
	"github.com/xenking/kart-commerce/internal/domain/auth"
	"github.com/xenking/kart-commerce/internal/domain/customer"
	"github.com/xenking/kart-commerce/internal/domain/product"
	"github.com/xenking/kart-commerce/internal/domain/stock"
	"github.com/xenking/kart-commerce/internal/storage/postgres"
)

type config struct {
	DatabaseURL   string `env:"DATABASE_URL" flag:"database-url" usage:"PostgreSQL connection URL"`
	CatalogFile   string `flag:"catalog-file" usage:"JSON catalog to load instead of the embedded one"`
	AdminUsername string `default:"admin" flag:"admin-username" usage:"Username of the seeded admin"`
	AdminEmail    string `default:"admin@kart.local" flag:"admin-email" usage:"Email of the seeded admin"`
	AdminPassword string `env:"ADMIN_PASSWORD" flag:"admin-password" usage:"Password of the seeded admin, empty skips the account"`
}

type catalogItem struct {
	SKU         string          `json:"sku"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Available   int             `json:"available"`
	Minimum     int             `json:"minimum"`
}

func (it catalogItem) validate() error {
	switch {
	case strings.TrimSpace(it.SKU) == "":
		return errors.New("sku is empty")
	case strings.TrimSpace(it.Name) == "":
		return errors.Errorf("%s: name is empty", it.SKU)
	case !it.Price.IsPositive():
		return errors.Errorf("%s: %w", it.SKU, product.ErrInvalidPrice)
	case it.Available < 0 || it.Minimum < 0:
		return errors.Errorf("%s: %w", it.SKU, stock.ErrNegativeQuantity)
	}
	return nil
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		var cfg config
		if err := aconfig.LoaderFor(&cfg, aconfig.Config{
			EnvPrefix:        "KART",
			SkipFiles:        true,
			AllowUnknownEnvs: true,
		}).Load(); err != nil {
			return errors.Wrap(err, "load config")
		}
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		}
		if cfg.DatabaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		return run(ctx, lg, cfg)
	})
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	raw := db.Catalog
	if cfg.CatalogFile != "" {
		b, err := os.ReadFile(cfg.CatalogFile)
		if err != nil {
			return errors.Wrap(err, "read catalog")
		}
		raw = b
	}
	items, err := parseCatalog(raw)
	if err != nil {
		return err
	}

	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	conn := postgres.NewDB(pool)
	s := &seeder{
		lg:        lg,
		tx:        conn,
		products:  postgres.NewProductRepository(conn),
		stock:     postgres.NewStockRepository(conn),
		customers: postgres.NewCustomerRepository(conn),
		hasher:    auth.BcryptHasher{},
	}

	created, skipped, err := s.seedCatalog(ctx, items)
	if err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	lg.Info("Catalog seeded", zap.Int("created", created), zap.Int("skipped", skipped))

	if cfg.AdminPassword == "" {
		lg.Info("No admin password given, skipping admin account")
		return nil
	}
	if _, err := s.seedAdmin(ctx, cfg.AdminUsername, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		return errors.Wrap(err, "seed admin")
	}
	return nil
}

func parseCatalog(raw []byte) ([]catalogItem, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var items []catalogItem
	if err := dec.Decode(&items); err != nil {
		return nil, errors.Wrap(err, "parse catalog")
	}
	for _, it := range items {
		if err := it.validate(); err != nil {
			return nil, errors.Wrap(err, "invalid catalog item")
		}
	}
	return items, nil
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type seeder struct {
	lg        *zap.Logger
	tx        txRunner
	products  product.Repository
	stock     stock.Repository
	customers customer.Repository
	hasher    auth.BcryptHasher
}

// seedCatalog creates each unknown SKU together with its stock record.
func (s *seeder) seedCatalog(ctx context.Context, items []catalogItem) (created, skipped int, err error) {
	existing, err := s.products.List(ctx, product.Filter{})
	if err != nil {
		return 0, 0, errors.Wrap(err, "list products")
	}
	known := make(map[string]struct{}, len(existing))
	for _, p := range existing {
		known[strings.ToLower(p.SKU)] = struct{}{}
	}

	for _, it := range items {
		key := strings.ToLower(it.SKU)
		if _, ok := known[key]; ok {
			skipped++
			continue
		}
		err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
			p := &product.Product{
				Name:        it.Name,
				Description: it.Description,
				Category:    it.Category,
				SKU:         it.SKU,
				Price:       it.Price.Round(2),
				Active:      true,
			}
			if err := s.products.Create(ctx, p); err != nil {
				return errors.Wrap(err, "create product")
			}
			return s.stock.Create(ctx, &stock.Record{
				ProductID: p.ID,
				Available: it.Available,
				Minimum:   it.Minimum,
			})
		})
		if err != nil {
			return created, skipped, errors.Wrapf(err, "seed %s", it.SKU)
		}
		known[key] = struct{}{}
		created++
		s.lg.Debug("Seeded product", zap.String("sku", it.SKU), zap.Int("available", it.Available))
	}
	return created, skipped, nil
}

// seedAdmin creates an ADMIN account unless the username is taken.
func (s *seeder) seedAdmin(ctx context.Context, username, email, password string) (bool, error) {
	taken, err := s.customers.ExistsByUsername(ctx, username)
	if err != nil {
		return false, errors.Wrap(err, "check username")
	}
	if taken {
		s.lg.Info("Admin account exists", zap.String("username", username))
		return false, nil
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	c := &customer.Customer{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Roles:        []customer.Role{customer.RoleAdmin, customer.RoleUser},
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return false, errors.Wrap(err, "create admin")
	}
	s.lg.Info("Admin account created", zap.String("username", username), zap.Int64("id", c.ID))
	return true, nil
}
