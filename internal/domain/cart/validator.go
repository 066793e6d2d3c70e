package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/phamdo/boutique-orders/internal/domain/catalog"
)

// Validator checks cart lines against the catalog. It performs no stock
// reservation: the checks are point-in-time and the ledger re-enforces the
// quantity constraint atomically at commit.
type Validator struct {
	catalog catalog.Repository
}

// NewValidator creates a Validator backed by the given catalog repository.
func NewValidator(c catalog.Repository) *Validator {
	return &Validator{catalog: c}
}

// Validate checks every cart line independently and returns the corrected
// lines plus all accumulated errors. Lines are checked in order: existence,
// active flag, price drift, variant availability, stock quantity. A price
// drift is recorded but does not stop the remaining checks for the line,
// so all drift across the cart surfaces at once.
func (v *Validator) Validate(ctx context.Context, items []Item) (*Result, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}

	fetched, err := v.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}

	byID := make(map[string]*catalog.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	res := &Result{}
	for _, it := range items {
		v.validateItem(res, it, byID[it.ProductID])
	}
	return res, nil
}

func (v *Validator) validateItem(res *Result, it Item, p *catalog.Product) {
	if p == nil {
		res.Errors = append(res.Errors, ItemError{
			ProductID: it.ProductID,
			Name:      it.Name,
			Reason:    ReasonNotFound,
			Message:   fmt.Sprintf("product %q does not exist", it.Name),
		})
		return
	}

	if !p.IsActive {
		res.Errors = append(res.Errors, ItemError{
			ProductID: p.ID,
			Name:      p.Name,
			Reason:    ReasonDiscontinued,
			Message:   fmt.Sprintf("product %q has been discontinued", p.Name),
		})
		return
	}

	if !p.Price.Equal(it.Price) {
		oldPrice, newPrice := it.Price, p.Price
		res.Errors = append(res.Errors, ItemError{
			ProductID: p.ID,
			Name:      p.Name,
			Reason:    ReasonPriceChanged,
			Message: fmt.Sprintf("price of %q changed from %s to %s",
				p.Name, oldPrice, newPrice),
			OldPrice: &oldPrice,
			NewPrice: &newPrice,
		})
		// Keep checking availability so the client learns everything in
		// one round trip; the corrected line carries the catalog price.
	}

	available, ok := p.FindStock(it.ColorID, it.SizeID)
	if !ok {
		res.Errors = append(res.Errors, ItemError{
			ProductID: p.ID,
			Name:      p.Name,
			Reason:    ReasonVariantUnavailable,
			Message:   fmt.Sprintf("product %q is no longer available in this color or size", p.Name),
		})
		return
	}

	if available < it.Quantity {
		remaining := available
		res.Errors = append(res.Errors, ItemError{
			ProductID: p.ID,
			Name:      p.Name,
			Reason:    ReasonInsufficientStock,
			Message:   fmt.Sprintf("only %d left of %q", remaining, p.Name),
			Remaining: &remaining,
		})
		return
	}

	res.Items = append(res.Items, CorrectedItem{
		ProductID: p.ID,
		Name:      p.Name,
		ColorID:   it.ColorID,
		SizeID:    it.SizeID,
		Quantity:  it.Quantity,
		Price:     p.Price,
		Available: available,
	})
}
