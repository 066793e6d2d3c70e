package catalog

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Product represents a catalog item with its per-variant stock tree.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Discount    int
	CategoryID  string
	Images      []string
	IsActive    bool
	Featured    bool
	SoldCount   int64
	Variants    []Variant
}

// Variant groups the size stock entries of a single color.
type Variant struct {
	ColorID string
	Sizes   []SizeStock
}

// SizeStock tracks the remaining quantity for one size of a variant.
type SizeStock struct {
	SizeID   string
	Quantity int
}

// FindStock returns the tracked quantity for the given color/size pair.
// The second return is false when the product has no such variant entry.
func (p *Product) FindStock(colorID, sizeID string) (int, bool) {
	for _, v := range p.Variants {
		if v.ColorID != colorID {
			continue
		}
		for _, s := range v.Sizes {
			if s.SizeID == sizeID {
				return s.Quantity, true
			}
		}
	}
	return 0, false
}

// Color is a read-only lookup record used to enrich order reads.
type Color struct {
	ID   string
	Name string
	Code string
}

// Size is a read-only lookup record used to enrich order reads.
type Size struct {
	ID   string
	Name string
}

// Repository defines read operations against the product catalog.
// Lookups are batched; IDs with no matching row are absent from the
// result rather than an error.
type Repository interface {
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
	Colors(ctx context.Context, ids []string) (map[string]Color, error)
	Sizes(ctx context.Context, ids []string) (map[string]Size, error)
}

// Ledger performs the atomic stock mutations triggered by checkout.
//
// Debit must be implemented as a single conditional write evaluated by the
// storage layer: decrement the variant quantity and increment the product
// sold count only when the current quantity covers the request. It is the
// sole serialization point between concurrent checkouts.
type Ledger interface {
	Debit(ctx context.Context, productID, colorID, sizeID string, qty int) error
	// Credit reverses an earlier Debit. Used only to compensate a checkout
	// that failed after some lines were already debited.
	Credit(ctx context.Context, productID, colorID, sizeID string, qty int) error
}

// InsufficientStockError reports a debit whose condition failed: a
// concurrent checkout consumed the stock between validation and commit.
type InsufficientStockError struct {
	ProductID string
	ColorID   string
	SizeID    string
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s (color %s, size %s): requested %d",
		e.ProductID, e.ColorID, e.SizeID, e.Requested)
}
