// Command seed-db loads a catalog seed file (colors, sizes, products with
// their variant stock) into the database. Existing rows are upserted.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/phamdo/boutique-orders/internal/repository"
)

type seedFile struct {
	Colors   []colorJSON   `json:"colors"`
	Sizes    []sizeJSON    `json:"sizes"`
	Products []productJSON `json:"products"`
}

type colorJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Code string `json:"code"`
}

type sizeJSON struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productJSON struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    int             `json:"discount"`
	CategoryID  string          `json:"category_id"`
	Images      []string        `json:"images"`
	IsActive    *bool           `json:"is_active"`
	Featured    bool            `json:"featured"`
	Variants    []variantJSON   `json:"variants"`
}

type variantJSON struct {
	ColorID string `json:"color"`
	Sizes   []struct {
		SizeID   string `json:"size"`
		Quantity int    `json:"quantity"`
	} `json:"sizes"`
}

func main() {
	var (
		databaseURL string
		seedPath    string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to catalog seed JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath string) error {
	data, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrap(err, "read seed file")
	}

	var seed seedFile
	if err := json.Unmarshal(data, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	slog.Info("connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, seed); err != nil {
		return err
	}

	slog.Info("seeded catalog",
		slog.Int("colors", len(seed.Colors)),
		slog.Int("sizes", len(seed.Sizes)),
		slog.Int("products", len(seed.Products)),
	)
	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, seed seedFile) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, c := range seed.Colors {
		_, err := tx.Exec(ctx, `INSERT INTO colors (id, name, code) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, code = EXCLUDED.code`,
			c.ID, c.Name, c.Code)
		if err != nil {
			return errors.Wrapf(err, "seed color %s", c.ID)
		}
	}

	for _, s := range seed.Sizes {
		_, err := tx.Exec(ctx, `INSERT INTO sizes (id, name) VALUES ($1, $2)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`,
			s.ID, s.Name)
		if err != nil {
			return errors.Wrapf(err, "seed size %s", s.ID)
		}
	}

	for _, p := range seed.Products {
		active := true
		if p.IsActive != nil {
			active = *p.IsActive
		}
		_, err := tx.Exec(ctx, `INSERT INTO products (id, name, description, price, discount, category_id, images, is_active, featured)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
				price = EXCLUDED.price, discount = EXCLUDED.discount, category_id = EXCLUDED.category_id,
				images = EXCLUDED.images, is_active = EXCLUDED.is_active, featured = EXCLUDED.featured,
				updated_at = now()`,
			p.ID, p.Name, p.Description, p.Price, p.Discount, p.CategoryID, p.Images, active, p.Featured)
		if err != nil {
			return errors.Wrapf(err, "seed product %s", p.ID)
		}

		for _, v := range p.Variants {
			for _, s := range v.Sizes {
				_, err := tx.Exec(ctx, `INSERT INTO product_variant_sizes (product_id, color_id, size_id, quantity)
					VALUES ($1, $2, $3, $4)
					ON CONFLICT (product_id, color_id, size_id) DO UPDATE SET quantity = EXCLUDED.quantity`,
					p.ID, v.ColorID, s.SizeID, s.Quantity)
				if err != nil {
					return errors.Wrapf(err, "seed stock for product %s", p.ID)
				}
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}
