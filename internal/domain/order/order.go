// Package order implements the order-fulfillment core: converting a
// validated cart into a durable order, debiting variant stock through the
// catalog ledger, and driving the order/payment status lifecycle.
package order

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Status is the fulfillment state of an order.
type Status string

const (
	StatusPending        Status = "pending"
	StatusWaitingPayment Status = "waiting_payment"
	StatusConfirmed      Status = "confirmed"
	StatusShipped        Status = "shipped"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
)

// PaymentMethod selects how an order is settled.
type PaymentMethod string

const (
	PaymentCOD          PaymentMethod = "cod"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// PaymentStatus is the settlement state of an order. It is a second axis,
// loosely coupled to Status: the only automatic rule is that delivery
// forces completion.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

// Address is the structured shipping destination. All four fields are
// required at checkout.
type Address struct {
	Province        string
	District        string
	Ward            string
	SpecificAddress string
}

// BankTransferInfo holds the static transfer instructions attached to
// bank-transfer orders so the client can display them. No bank API is
// contacted; TransferDate is stamped when an operator confirms payment.
type BankTransferInfo struct {
	AccountNumber   string          `json:"account_number"`
	AccountName     string          `json:"account_name"`
	BankName        string          `json:"bank_name"`
	TransferAmount  decimal.Decimal `json:"transfer_amount"`
	TransferContent string          `json:"transfer_content"`
	TransferDate    *time.Time      `json:"transfer_date,omitempty"`
}

// Order is created once at checkout and mutated only through the status
// transition operations afterwards. CreatedAt is immutable; UpdatedAt
// changes on every transition.
type Order struct {
	ID            string
	UserID        string // empty for guest checkout
	FullName      string
	PhoneNumber   string
	Address       Address
	Note          string
	TotalPrice    decimal.Decimal
	ShippingFee   decimal.Decimal
	Status        Status
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	BankTransfer  *BankTransferInfo
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Item is an immutable order line. Name and Price are snapshots taken at
// creation time: catalog prices can change after purchase, and the order
// must reflect what was actually charged.
type Item struct {
	ID        string
	OrderID   string
	ProductID string
	Name      string
	ColorID   string
	SizeID    string
	Quantity  int
	Price     decimal.Decimal
}

// Filter narrows order listings. Zero values match everything.
type Filter struct {
	Status        Status
	PaymentStatus PaymentStatus
	PaymentMethod PaymentMethod
	From          time.Time
	To            time.Time
}

// Page selects a slice of a listing. Page numbers start at 1.
type Page struct {
	Number int
	Limit  int
}

// Pagination describes the full result set a page was cut from.
type Pagination struct {
	Total      int
	TotalPages int
	Page       int
	Limit      int
}

// Repository defines persistence operations for orders and their items.
type Repository interface {
	// Create persists the order and all its items transactionally.
	Create(ctx context.Context, o *Order, items []Item) error
	// Delete removes the order and its items. Used only to compensate a
	// checkout that failed at the stock ledger.
	Delete(ctx context.Context, orderID string) error
	GetByID(ctx context.Context, orderID string) (*Order, error)
	ListItems(ctx context.Context, orderID string) ([]Item, error)
	// UpdateStatus sets the order status and, when paymentStatus is
	// non-nil, the payment status in the same write. Returns the updated
	// order or ErrNotFound.
	UpdateStatus(ctx context.Context, orderID string, status Status, paymentStatus *PaymentStatus) (*Order, error)
	// UpdatePaymentStatus sets the payment status and optionally replaces
	// the bank transfer info. Returns the updated order or ErrNotFound.
	UpdatePaymentStatus(ctx context.Context, orderID string, ps PaymentStatus, bank *BankTransferInfo) (*Order, error)
	ListByUser(ctx context.Context, userID string, f Filter, p Page) ([]Order, int, error)
	List(ctx context.Context, f Filter, p Page) ([]Order, int, error)
	// UserAddresses returns up to limit distinct shipping addresses from
	// the user's past orders, newest first.
	UserAddresses(ctx context.Context, userID string, limit int) ([]Address, error)
}
