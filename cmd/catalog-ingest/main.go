// Command catalog-ingest bulk-imports product feeds into the catalog.
//
// Feeds are gzipped NDJSON files, one product per line, as exported by the
// back office. Feeds overlap (each export contains the full catalog), so
// product IDs are deduplicated across files: a bloom filter gives a cheap
// definitely-new answer and an exact set confirms the maybes.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/phamdo/boutique-orders/internal/repository"
)

const (
	bloomCapacity = 1_000_000
	bloomFPR      = 0.001
	progressEvery = 100_000
)

type feedProduct struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Discount    int             `json:"discount"`
	CategoryID  string          `json:"category_id"`
	Images      []string        `json:"images"`
	IsActive    bool            `json:"is_active"`
	Variants    []struct {
		ColorID string `json:"color"`
		Sizes   []struct {
			SizeID   string `json:"size"`
			Quantity int    `json:"quantity"`
		} `json:"sizes"`
	} `json:"variants"`
}

// dedup tracks product IDs already accepted from any feed.
type dedup struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
	seen   map[string]struct{}
}

func newDedup() *dedup {
	return &dedup{
		filter: bloom.NewWithEstimates(bloomCapacity, bloomFPR),
		seen:   make(map[string]struct{}),
	}
}

// add reports whether id was new. The bloom filter short-circuits the
// common case; the exact set resolves its false positives.
func (d *dedup) add(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.filter.TestString(id) {
		d.filter.AddString(id)
		d.seen[id] = struct{}{}
		return true
	}
	if _, ok := d.seen[id]; ok {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}

func main() {
	var databaseURL string
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	files := flag.Args()
	if len(files) == 0 {
		slog.Error("no feed files given: pass one or more products.ndjson.gz paths")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, files); err != nil {
		slog.Error("catalog ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("catalog ingest completed successfully")
}

func run(ctx context.Context, databaseURL string, files []string) error {
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	d := newDedup()
	var (
		mu       sync.Mutex
		products []feedProduct
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		g.Go(func() error {
			found, err := readFeed(gctx, f, d)
			if err != nil {
				return errors.Wrapf(err, "read feed %s", f)
			}
			mu.Lock()
			products = append(products, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	slog.Info("feeds parsed", slog.Int("files", len(files)), slog.Int("products", len(products)))
	if len(products) == 0 {
		return nil
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

	return writeProducts(ctx, pool, products)
}

// readFeed parses one gzipped NDJSON feed, keeping only products whose ID
// has not been accepted from another feed yet.
func readFeed(ctx context.Context, path string, d *dedup) ([]feedProduct, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open")
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	var (
		products []feedProduct
		lines    int
	)
	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lines++
		if lines%progressEvery == 0 {
			slog.Info("parsing feed", slog.String("file", path), slog.Int("lines", lines))
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var p feedProduct
		if err := json.Unmarshal(line, &p); err != nil {
			return nil, errors.Wrapf(err, "line %d", lines)
		}
		if p.ID == "" {
			return nil, errors.Errorf("line %d: missing product id", lines)
		}
		if d.add(p.ID) {
			products = append(products, p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "scan")
	}
	return products, nil
}

const (
	upsertProductSQL = `INSERT INTO products (id, name, description, price, discount, category_id, images, is_active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name,
	description = EXCLUDED.description,
	price = EXCLUDED.price,
	discount = EXCLUDED.discount,
	category_id = EXCLUDED.category_id,
	images = EXCLUDED.images,
	is_active = EXCLUDED.is_active,
	updated_at = now()`

	upsertStockSQL = `INSERT INTO product_variant_sizes (product_id, color_id, size_id, quantity)
VALUES ($1, $2, $3, $4)
ON CONFLICT (product_id, color_id, size_id) DO UPDATE SET quantity = EXCLUDED.quantity`
)

func writeProducts(ctx context.Context, pool *pgxpool.Pool, products []feedProduct) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback(ctx)

	var written int
	for _, p := range products {
		images := p.Images
		if images == nil {
			images = []string{}
		}
		_, err := tx.Exec(ctx, upsertProductSQL,
			p.ID, p.Name, p.Description, p.Price, p.Discount, p.CategoryID, images, p.IsActive)
		if err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		for _, v := range p.Variants {
			for _, s := range v.Sizes {
				_, err := tx.Exec(ctx, upsertStockSQL, p.ID, v.ColorID, s.SizeID, s.Quantity)
				if err != nil {
					return errors.Wrapf(err, "upsert stock %s/%s/%s", p.ID, v.ColorID, s.SizeID)
				}
			}
		}
		written++
		if written%progressEvery == 0 {
			slog.Info("writing products", slog.Int("written", written))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "commit transaction")
	}
	slog.Info("products written", slog.Int("count", written))
	return nil
}
