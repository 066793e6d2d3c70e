// Package cart validates client-submitted shopping carts against live
// catalog state before checkout.
package cart

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Item is a client-supplied cart line. It exists only for the duration of
// a checkout request and is never persisted. Name and Price are the values
// the client remembers; both may have drifted from the catalog.
type Item struct {
	ProductID string
	Name      string
	ColorID   string
	SizeID    string
	Quantity  int
	Price     decimal.Decimal
}

// CorrectedItem is a validated cart line carrying the current catalog
// price and the stock observed at validation time.
type CorrectedItem struct {
	ProductID string
	Name      string
	ColorID   string
	SizeID    string
	Quantity  int
	// Price is always the current catalog price, never the client's.
	Price decimal.Decimal
	// Available is the stock quantity observed during validation. It is a
	// point-in-time value; the stock ledger re-checks it at commit.
	Available int
}

// ErrorReason classifies a per-item validation failure.
type ErrorReason string

const (
	ReasonNotFound           ErrorReason = "product_not_found"
	ReasonDiscontinued       ErrorReason = "product_discontinued"
	ReasonPriceChanged       ErrorReason = "price_changed"
	ReasonVariantUnavailable ErrorReason = "variant_unavailable"
	ReasonInsufficientStock  ErrorReason = "insufficient_stock"
)

// ItemError describes one validation failure with enough detail for a
// client to reconcile its cart without re-deriving catalog state.
type ItemError struct {
	ProductID string
	Name      string
	Reason    ErrorReason
	Message   string
	// OldPrice/NewPrice are set for price_changed errors.
	OldPrice *decimal.Decimal
	NewPrice *decimal.Decimal
	// Remaining is set for insufficient_stock errors: the true quantity
	// left, which may be zero.
	Remaining *int
}

// Result is the outcome of validating a whole cart. Items holds every line
// that passed the availability checks (including lines flagged for price
// drift, corrected to the catalog price); Errors holds every failure.
type Result struct {
	Items  []CorrectedItem
	Errors []ItemError
}

// Valid reports whether the cart can proceed to checkout: zero errors
// across all lines.
func (r *Result) Valid() bool {
	return len(r.Errors) == 0
}

// ConflictError is returned when cart contents diverge from the live
// catalog. It carries the full per-item error list plus whatever corrected
// lines could be computed, so the caller can re-render the cart.
type ConflictError struct {
	Result *Result
}

func (e *ConflictError) Error() string {
	msgs := make([]string, len(e.Result.Errors))
	for i, ie := range e.Result.Errors {
		msgs[i] = ie.Message
	}
	return fmt.Sprintf("cart conflicts with catalog: %s", strings.Join(msgs, "; "))
}
