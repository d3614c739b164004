// Command catalog-import bulk loads products and their inventory from gzipped
// CSV files with the columns sku,name,category,price,available,minimum.
// SKUs that already exist are skipped.
package main

import (
	"context"
	"os"

	"github.com/cristalhq/aconfig"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"go.uber.org/zap"

	"github.com/xenking/kart-commerce/internal/storage/postgres"
)

type config struct {
	DatabaseURL   string   `env:"DATABASE_URL" flag:"database-url" usage:"PostgreSQL connection URL"`
	Files         []string `flag:"files" usage:"Comma separated list of .csv.gz catalog files"`
	Workers       int      `default:"4" flag:"workers" usage:"Concurrent database writers"`
	BloomCapacity uint     `default:"1000000" flag:"bloom-capacity" usage:"Expected number of distinct SKUs"`
	BloomFPR      float64  `default:"0.001" flag:"bloom-fpr" usage:"Bloom filter false positive rate"`
	DryRun        bool     `default:"false" flag:"dry-run" usage:"Parse and dedupe without writing"`
}

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		var cfg config
		if err := aconfig.LoaderFor(&cfg, aconfig.Config{
			EnvPrefix:        "KART_IMPORT",
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
		if len(cfg.Files) == 0 {
			return errors.New("no input files: set --files")
		}
		for _, f := range cfg.Files {
			if _, err := os.Stat(f); err != nil {
				return errors.Wrapf(err, "check file %s", f)
			}
		}
		return run(ctx, lg, cfg)
	})
}

func run(ctx context.Context, lg *zap.Logger, cfg config) error {
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	conn := postgres.NewDB(pool)
	im := NewImporter(lg, conn,
		postgres.NewProductRepository(conn),
		postgres.NewStockRepository(conn),
		ImporterConfig{
			Workers:       cfg.Workers,
			BloomCapacity: cfg.BloomCapacity,
			BloomFPR:      cfg.BloomFPR,
			DryRun:        cfg.DryRun,
		},
	)

	lg.Info("Importing catalog", zap.Strings("files", cfg.Files), zap.Int("workers", cfg.Workers), zap.Bool("dry_run", cfg.DryRun))
	stats, err := im.Run(ctx, cfg.Files)
	if stats != nil {
		lg.Info("Import finished",
			zap.Int64("read", stats.Read.Load()),
			zap.Int64("invalid", stats.Invalid.Load()),
			zap.Int64("duplicates", stats.Duplicates.Load()),
			zap.Int64("created", stats.Created.Load()),
		)
	}
	return err
}
