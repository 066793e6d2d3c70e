package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phamdo/boutique-orders/internal/domain/catalog"
)

const (
	getProductsByIDsSQL = `SELECT id, name, description, price, discount, category_id, images, is_active, featured, sold_count
		FROM products WHERE id = ANY($1)`

	getVariantsSQL = `SELECT product_id, color_id, size_id, quantity
		FROM product_variant_sizes WHERE product_id = ANY($1)
		ORDER BY product_id, color_id, size_id`

	getColorsSQL = `SELECT id, name, code FROM colors WHERE id = ANY($1)`

	getSizesSQL = `SELECT id, name FROM sizes WHERE id = ANY($1)`

	// debitStockSQL is the single conditional write that serializes
	// concurrent checkouts: the quantity guard and the decrement are
	// evaluated atomically by the database, never read-then-write in
	// application code. Zero affected rows means the condition failed.
	debitStockSQL = `WITH debit AS (
		UPDATE product_variant_sizes
		   SET quantity = quantity - $4
		 WHERE product_id = $1 AND color_id = $2 AND size_id = $3 AND quantity >= $4
		RETURNING product_id
	)
	UPDATE products p
	   SET sold_count = sold_count + $4, updated_at = now()
	  FROM debit d
	 WHERE p.id = d.product_id`

	creditStockSQL = `WITH credit AS (
		UPDATE product_variant_sizes
		   SET quantity = quantity + $4
		 WHERE product_id = $1 AND color_id = $2 AND size_id = $3
		RETURNING product_id
	)
	UPDATE products p
	   SET sold_count = GREATEST(p.sold_count - $4, 0), updated_at = now()
	  FROM credit d
	 WHERE p.id = d.product_id`
)

var (
	_ catalog.Repository = (*CatalogRepository)(nil)
	_ catalog.Ledger     = (*CatalogRepository)(nil)
)

// CatalogRepository implements catalog reads and the stock ledger backed
// by PostgreSQL.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository returns a CatalogRepository that uses the given pool.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetByIDs returns the products matching any of the given IDs, each with
// its variant stock tree. Missing IDs are simply absent from the result.
func (r *CatalogRepository) GetByIDs(ctx context.Context, ids []string) ([]catalog.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}
	products, err := pgx.CollectRows(rows, scanProduct)
	if err != nil {
		return nil, fmt.Errorf("getting products by ids: %w", err)
	}

	byID := make(map[string]*catalog.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	if err := r.attachVariants(ctx, byID); err != nil {
		return nil, err
	}
	return products, nil
}

// attachVariants loads the variant rows for all products in byID and
// rebuilds each product's color-grouped stock tree.
func (r *CatalogRepository) attachVariants(ctx context.Context, byID map[string]*catalog.Product) error {
	if len(byID) == 0 {
		return nil
	}
	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}

	rows, err := r.pool.Query(ctx, getVariantsSQL, ids)
	if err != nil {
		return fmt.Errorf("getting variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			productID, colorID, sizeID string
			quantity                   int
		)
		if err := rows.Scan(&productID, &colorID, &sizeID, &quantity); err != nil {
			return fmt.Errorf("scanning variant: %w", err)
		}
		p, ok := byID[productID]
		if !ok {
			continue
		}
		appendStock(p, colorID, catalog.SizeStock{SizeID: sizeID, Quantity: quantity})
	}
	return rows.Err()
}

// appendStock adds a size entry to the product's variant for colorID,
// creating the variant when needed. Rows arrive ordered by color, so the
// matching variant is almost always the last one.
func appendStock(p *catalog.Product, colorID string, s catalog.SizeStock) {
	for i := len(p.Variants) - 1; i >= 0; i-- {
		if p.Variants[i].ColorID == colorID {
			p.Variants[i].Sizes = append(p.Variants[i].Sizes, s)
			return
		}
	}
	p.Variants = append(p.Variants, catalog.Variant{
		ColorID: colorID,
		Sizes:   []catalog.SizeStock{s},
	})
}

// Colors returns the color records for the given IDs keyed by ID.
func (r *CatalogRepository) Colors(ctx context.Context, ids []string) (map[string]catalog.Color, error) {
	rows, err := r.pool.Query(ctx, getColorsSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting colors: %w", err)
	}
	colors, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Color, error) {
		var c catalog.Color
		err := row.Scan(&c.ID, &c.Name, &c.Code)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting colors: %w", err)
	}

	out := make(map[string]catalog.Color, len(colors))
	for _, c := range colors {
		out[c.ID] = c
	}
	return out, nil
}

// Sizes returns the size records for the given IDs keyed by ID.
func (r *CatalogRepository) Sizes(ctx context.Context, ids []string) (map[string]catalog.Size, error) {
	rows, err := r.pool.Query(ctx, getSizesSQL, ids)
	if err != nil {
		return nil, fmt.Errorf("getting sizes: %w", err)
	}
	sizes, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (catalog.Size, error) {
		var s catalog.Size
		err := row.Scan(&s.ID, &s.Name)
		return s, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting sizes: %w", err)
	}

	out := make(map[string]catalog.Size, len(sizes))
	for _, s := range sizes {
		out[s.ID] = s
	}
	return out, nil
}

// Debit decrements the variant quantity and increments the product sold
// count in one conditional statement. It returns InsufficientStockError
// when the remaining quantity does not cover qty.
func (r *CatalogRepository) Debit(ctx context.Context, productID, colorID, sizeID string, qty int) error {
	tag, err := r.pool.Exec(ctx, debitStockSQL, productID, colorID, sizeID, qty)
	if err != nil {
		return fmt.Errorf("debiting stock for product %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return &catalog.InsufficientStockError{
			ProductID: productID,
			ColorID:   colorID,
			SizeID:    sizeID,
			Requested: qty,
		}
	}
	return nil
}

// Credit reverses a Debit. The sold count floors at zero as a safety net;
// a correct compensation sequence never hits the floor.
func (r *CatalogRepository) Credit(ctx context.Context, productID, colorID, sizeID string, qty int) error {
	tag, err := r.pool.Exec(ctx, creditStockSQL, productID, colorID, sizeID, qty)
	if err != nil {
		return fmt.Errorf("crediting stock for product %q: %w", productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("crediting stock for product %q: variant not found", productID)
	}
	return nil
}

func scanProduct(row pgx.CollectableRow) (catalog.Product, error) {
	var p catalog.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Discount,
		&p.CategoryID, &p.Images, &p.IsActive, &p.Featured, &p.SoldCount,
	)
	return p, err
}
