package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/phamdo/boutique-orders/internal/domain/cart"
	"github.com/phamdo/boutique-orders/internal/domain/catalog"
)

// ErrNotFound is returned when a referenced order does not exist.
var ErrNotFound = errors.New("order not found")

// ValidationError reports a malformed checkout request: a missing required
// field or an unrecognized payment method. User-correctable.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// ShippingPolicy is the flat-fee shipping rule: orders outside the home
// province pay Fee, orders inside ship free.
type ShippingPolicy struct {
	HomeProvince string
	Fee          decimal.Decimal
}

// FeeFor returns the shipping fee for the given destination province.
// Province comparison is case-insensitive.
func (p ShippingPolicy) FeeFor(province string) decimal.Decimal {
	if strings.EqualFold(strings.TrimSpace(province), p.HomeProvince) {
		return decimal.Zero
	}
	return p.Fee
}

// BankAccount holds the static destination account for bank transfers.
type BankAccount struct {
	AccountNumber string
	AccountName   string
	BankName      string
}

// ShippingInfo is the recipient and destination data for a checkout.
type ShippingInfo struct {
	UserID      string // optional: empty for guest checkout
	FullName    string
	PhoneNumber string
	Address     Address
	Note        string
}

// CheckoutRequest is the input of the checkout operation.
type CheckoutRequest struct {
	Items         []cart.Item
	Shipping      ShippingInfo
	PaymentMethod PaymentMethod
}

// CheckoutResult is the output of a successful checkout.
type CheckoutResult struct {
	Order *Order
	Items []Item
}

// Service implements the order factory, the status state machine, and the
// order read paths.
type Service struct {
	catalog   catalog.Repository
	ledger    catalog.Ledger
	orders    Repository
	validator *cart.Validator
	shipping  ShippingPolicy
	bank      BankAccount
	now       func() time.Time
}

// NewService creates a Service with the required domain dependencies.
func NewService(
	c catalog.Repository,
	ledger catalog.Ledger,
	orders Repository,
	shipping ShippingPolicy,
	bank BankAccount,
) *Service {
	return &Service{
		catalog:   c,
		ledger:    ledger,
		orders:    orders,
		validator: cart.NewValidator(c),
		shipping:  shipping,
		bank:      bank,
		now:       time.Now,
	}
}

// Checkout converts a client cart into a durable order.
//
// The cart is validated against a single consistent catalog read; every
// line total uses the current catalog price. The order and its items are
// persisted first, then stock is debited per line through the ledger's
// atomic conditional write. Validation does not reserve stock, so a debit
// can still lose a race against a concurrent checkout; in that case all
// lines debited so far are credited back, the order is deleted, and the
// insufficient-stock error propagates for the client to retry with a
// fresh cart.
func (s *Service) Checkout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	res, err := s.validator.Validate(ctx, req.Items)
	if err != nil {
		return nil, errors.Wrap(err, "validate cart")
	}
	if !res.Valid() {
		return nil, &cart.ConflictError{Result: res}
	}

	subtotal := decimal.Zero
	for _, it := range res.Items {
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	shippingFee := s.shipping.FeeFor(req.Shipping.Address.Province)
	total := subtotal.Add(shippingFee)

	now := s.now().UTC()
	o := &Order{
		ID:            uuid.New().String(),
		UserID:        req.Shipping.UserID,
		FullName:      req.Shipping.FullName,
		PhoneNumber:   req.Shipping.PhoneNumber,
		Address:       req.Shipping.Address,
		Note:          req.Shipping.Note,
		TotalPrice:    total,
		ShippingFee:   shippingFee,
		Status:        initialStatus(req.PaymentMethod),
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: PaymentPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.PaymentMethod == PaymentBankTransfer {
		o.BankTransfer = &BankTransferInfo{
			AccountNumber:   s.bank.AccountNumber,
			AccountName:     s.bank.AccountName,
			BankName:        s.bank.BankName,
			TransferAmount:  total,
			TransferContent: fmt.Sprintf("Thanh toan don hang %d", now.UnixMilli()),
		}
	}

	items := make([]Item, len(res.Items))
	for i, ci := range res.Items {
		items[i] = Item{
			ID:        uuid.New().String(),
			OrderID:   o.ID,
			ProductID: ci.ProductID,
			Name:      ci.Name,
			ColorID:   ci.ColorID,
			SizeID:    ci.SizeID,
			Quantity:  ci.Quantity,
			Price:     ci.Price,
		}
	}

	if err := s.orders.Create(ctx, o, items); err != nil {
		return nil, errors.Wrap(err, "create order")
	}

	if err := s.debitStock(ctx, o, items); err != nil {
		return nil, err
	}

	return &CheckoutResult{Order: o, Items: items}, nil
}

// debitStock debits one ledger entry per line and compensates on failure:
// already-debited lines are credited back and the persisted order is
// removed, so a lost stock race never leaves an order behind.
func (s *Service) debitStock(ctx context.Context, o *Order, items []Item) error {
	for i, it := range items {
		err := s.ledger.Debit(ctx, it.ProductID, it.ColorID, it.SizeID, it.Quantity)
		if err == nil {
			continue
		}
		s.compensate(ctx, o, items[:i])
		var insufficient *catalog.InsufficientStockError
		if errors.As(err, &insufficient) {
			return insufficient
		}
		return errors.Wrapf(err, "debit stock for product %s", it.ProductID)
	}
	return nil
}

// compensate reverses the debited lines and deletes the order. Failures
// here cannot be retried in-request; they are logged for manual
// reconciliation.
func (s *Service) compensate(ctx context.Context, o *Order, debited []Item) {
	lg := zctx.From(ctx)
	for _, it := range debited {
		if err := s.ledger.Credit(ctx, it.ProductID, it.ColorID, it.SizeID, it.Quantity); err != nil {
			lg.Error("checkout compensation: restock failed, reconcile manually",
				zap.String("order_id", o.ID),
				zap.String("product_id", it.ProductID),
				zap.String("color_id", it.ColorID),
				zap.String("size_id", it.SizeID),
				zap.Int("quantity", it.Quantity),
				zap.Error(err),
			)
		}
	}
	if err := s.orders.Delete(ctx, o.ID); err != nil {
		lg.Error("checkout compensation: order delete failed, reconcile manually",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}

func validateRequest(req CheckoutRequest) error {
	if len(req.Items) == 0 {
		return &ValidationError{Field: "items", Reason: "cart is empty"}
	}
	for _, it := range req.Items {
		if it.Quantity < 1 {
			return &ValidationError{Field: "items", Reason: fmt.Sprintf("quantity must be at least 1 for product %s", it.ProductID)}
		}
	}
	if !req.PaymentMethod.Valid() {
		return &ValidationError{Field: "payment_method", Reason: "only cod and bank_transfer are supported"}
	}
	required := []struct{ field, value string }{
		{"full_name", req.Shipping.FullName},
		{"phone_number", req.Shipping.PhoneNumber},
		{"province", req.Shipping.Address.Province},
		{"district", req.Shipping.Address.District},
		{"ward", req.Shipping.Address.Ward},
		{"specific_address", req.Shipping.Address.SpecificAddress},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Reason: "required"}
		}
	}
	return nil
}

func initialStatus(m PaymentMethod) Status {
	if m == PaymentBankTransfer {
		return StatusWaitingPayment
	}
	return StatusPending
}

// SetStatus transitions the order status. The new status must belong to
// the enumerated set and the transition must be allowed by the lifecycle
// graph. Transitioning to delivered forces the payment status to
// completed: delivery confirms settlement regardless of method.
func (s *Service) SetStatus(ctx context.Context, orderID string, next Status) (*Order, error) {
	if !next.Valid() {
		return nil, &InvalidStatusError{Value: string(next)}
	}

	current, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransition(next) {
		return nil, &IllegalTransitionError{From: current.Status, To: next}
	}

	var paymentStatus *PaymentStatus
	if next == StatusDelivered {
		completed := PaymentCompleted
		paymentStatus = &completed
	}

	return s.orders.UpdateStatus(ctx, orderID, next, paymentStatus)
}

// SetPaymentStatus sets the payment axis directly. When bank transfer
// details are supplied the transfer timestamp is stamped server-side.
func (s *Service) SetPaymentStatus(ctx context.Context, orderID string, ps PaymentStatus, bank *BankTransferInfo) (*Order, error) {
	if !ps.Valid() {
		return nil, &InvalidStatusError{Value: string(ps)}
	}
	if bank != nil {
		stamped := s.now().UTC()
		bank.TransferDate = &stamped
	}
	return s.orders.UpdatePaymentStatus(ctx, orderID, ps, bank)
}

// EnrichedItem is an order line joined with catalog lookups for display.
// The snapshot fields (Name, Price) always come from the order item; the
// catalog is only consulted for color/size labels and current images.
type EnrichedItem struct {
	Item
	ColorName string
	ColorCode string
	SizeName  string
	Images    []string
}

// Detail is a full order read: the order plus its enriched lines.
type Detail struct {
	Order *Order
	Items []EnrichedItem
}

// GetOrder returns the order with its items enriched with color, size and
// product data. Missing catalog rows degrade to "Unknown" labels rather
// than failing the read: orders outlive catalog entries.
func (s *Service) GetOrder(ctx context.Context, orderID string) (*Detail, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	items, err := s.orders.ListItems(ctx, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "list order items")
	}

	enriched, err := s.enrichItems(ctx, items)
	if err != nil {
		return nil, err
	}
	return &Detail{Order: o, Items: enriched}, nil
}

// enrichItems resolves color/size labels and product images for the given
// lines with the three lookups running concurrently.
func (s *Service) enrichItems(ctx context.Context, items []Item) ([]EnrichedItem, error) {
	colorIDs := make([]string, 0, len(items))
	sizeIDs := make([]string, 0, len(items))
	productIDs := make([]string, 0, len(items))
	for _, it := range items {
		colorIDs = append(colorIDs, it.ColorID)
		sizeIDs = append(sizeIDs, it.SizeID)
		productIDs = append(productIDs, it.ProductID)
	}

	var (
		colors   map[string]catalog.Color
		sizes    map[string]catalog.Size
		products []catalog.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if colors, err = s.catalog.Colors(gctx, colorIDs); err != nil {
			return errors.Wrap(err, "lookup colors")
		}
		return nil
	})
	g.Go(func() (err error) {
		if sizes, err = s.catalog.Sizes(gctx, sizeIDs); err != nil {
			return errors.Wrap(err, "lookup sizes")
		}
		return nil
	})
	g.Go(func() (err error) {
		if products, err = s.catalog.GetByIDs(gctx, productIDs); err != nil {
			return errors.Wrap(err, "lookup products")
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	productByID := make(map[string]*catalog.Product, len(products))
	for i := range products {
		productByID[products[i].ID] = &products[i]
	}

	enriched := make([]EnrichedItem, len(items))
	for i, it := range items {
		e := EnrichedItem{
			Item:      it,
			ColorName: "Unknown",
			ColorCode: "#000000",
			SizeName:  "Unknown",
		}
		if c, ok := colors[it.ColorID]; ok {
			e.ColorName, e.ColorCode = c.Name, c.Code
		}
		if sz, ok := sizes[it.SizeID]; ok {
			e.SizeName = sz.Name
		}
		if p, ok := productByID[it.ProductID]; ok {
			e.Images = p.Images
		}
		enriched[i] = e
	}
	return enriched, nil
}

// OrderList is a page of orders with pagination metadata.
type OrderList struct {
	Orders     []Order
	Pagination Pagination
}

// ListUserOrders returns the user's order history, newest first.
func (s *Service) ListUserOrders(ctx context.Context, userID string, f Filter, p Page) (*OrderList, error) {
	p = normalizePage(p)
	orders, total, err := s.orders.ListByUser(ctx, userID, f, p)
	if err != nil {
		return nil, errors.Wrap(err, "list user orders")
	}
	return &OrderList{Orders: orders, Pagination: paginate(total, p)}, nil
}

// ListOrders returns the admin order listing, newest first.
func (s *Service) ListOrders(ctx context.Context, f Filter, p Page) (*OrderList, error) {
	p = normalizePage(p)
	orders, total, err := s.orders.List(ctx, f, p)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return &OrderList{Orders: orders, Pagination: paginate(total, p)}, nil
}

// UserAddresses returns up to five distinct shipping addresses the user
// has ordered to before.
func (s *Service) UserAddresses(ctx context.Context, userID string) ([]Address, error) {
	addrs, err := s.orders.UserAddresses(ctx, userID, 5)
	if err != nil {
		return nil, errors.Wrap(err, "user addresses")
	}
	return addrs, nil
}

func normalizePage(p Page) Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Limit < 1 {
		p.Limit = 10
	}
	return p
}

func paginate(total int, p Page) Pagination {
	totalPages := (total + p.Limit - 1) / p.Limit
	return Pagination{
		Total:      total,
		TotalPages: totalPages,
		Page:       p.Number,
		Limit:      p.Limit,
	}
}
