package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/phamdo/boutique-orders/internal/domain/order"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, full_name, phone_number, province, district, ward,
		specific_address, note, total_price, shipping_fee, status, payment_method, payment_status,
		bank_transfer_info, created_at, updated_at)
	VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	insertOrderItemSQL = `INSERT INTO order_items (id, order_id, product_id, name, color_id, size_id, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`

	orderColumns = `id, COALESCE(user_id, ''), full_name, phone_number, province, district, ward,
		specific_address, note, total_price, shipping_fee, status, payment_method, payment_status,
		bank_transfer_info, created_at, updated_at`

	listItemsSQL = `SELECT id, order_id, product_id, name, color_id, size_id, quantity, price
		FROM order_items WHERE order_id = $1 ORDER BY id`

	userAddressesSQL = `SELECT province, district, ward, specific_address
		FROM orders WHERE user_id = $1
		GROUP BY province, district, ward, specific_address
		ORDER BY MAX(created_at) DESC
		LIMIT $2`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order and all its items in a single transaction.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, items []order.Item) (err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	_, err = tx.Exec(ctx, insertOrderSQL,
		o.ID, o.UserID, o.FullName, o.PhoneNumber,
		o.Address.Province, o.Address.District, o.Address.Ward, o.Address.SpecificAddress,
		o.Note, o.TotalPrice, o.ShippingFee,
		string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus),
		o.BankTransfer, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting order %q: %w", o.ID, err)
	}

	for _, it := range items {
		_, err = tx.Exec(ctx, insertOrderItemSQL,
			it.ID, it.OrderID, it.ProductID, it.Name, it.ColorID, it.SizeID, it.Quantity, it.Price,
		)
		if err != nil {
			return fmt.Errorf("inserting order item for order %q: %w", o.ID, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing order %q: %w", o.ID, err)
	}
	return nil
}

// Delete removes the order; items go with it via ON DELETE CASCADE.
func (r *OrderRepository) Delete(ctx context.Context, orderID string) error {
	_, err := r.pool.Exec(ctx, deleteOrderSQL, orderID)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", orderID, err)
	}
	return nil
}

// GetByID returns a single order by its identifier.
func (r *OrderRepository) GetByID(ctx context.Context, orderID string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", orderID, err)
	}
	return &o, nil
}

// ListItems returns the order's line items.
func (r *OrderRepository) ListItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, listItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("listing items for order %q: %w", orderID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var it order.Item
		err := row.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Name, &it.ColorID, &it.SizeID, &it.Quantity, &it.Price)
		return it, err
	})
}

// UpdateStatus writes the new order status (and the payment status when
// non-nil) and returns the updated row.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID string, status order.Status, paymentStatus *order.PaymentStatus) (*order.Order, error) {
	var ps *string
	if paymentStatus != nil {
		s := string(*paymentStatus)
		ps = &s
	}

	rows, err := r.pool.Query(ctx, `UPDATE orders
		SET status = $2, payment_status = COALESCE($3, payment_status), updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, orderID, string(status), ps)
	if err != nil {
		return nil, fmt.Errorf("updating status of order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating status of order %q: %w", orderID, err)
	}
	return &o, nil
}

// UpdatePaymentStatus writes the new payment status, replacing the bank
// transfer info when one is supplied, and returns the updated row.
func (r *OrderRepository) UpdatePaymentStatus(ctx context.Context, orderID string, ps order.PaymentStatus, bank *order.BankTransferInfo) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, `UPDATE orders
		SET payment_status = $2, bank_transfer_info = COALESCE($3, bank_transfer_info), updated_at = now()
		WHERE id = $1
		RETURNING `+orderColumns, orderID, string(ps), bank)
	if err != nil {
		return nil, fmt.Errorf("updating payment status of order %q: %w", orderID, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("updating payment status of order %q: %w", orderID, err)
	}
	return &o, nil
}

// ListByUser returns a page of the user's orders, newest first, plus the
// total count matching the filter.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string, f order.Filter, p order.Page) ([]order.Order, int, error) {
	where, args := buildFilter(f, []string{"user_id = $1"}, []any{userID})
	return r.listOrders(ctx, where, args, p)
}

// List returns a page of all orders, newest first, plus the total count
// matching the filter.
func (r *OrderRepository) List(ctx context.Context, f order.Filter, p order.Page) ([]order.Order, int, error) {
	where, args := buildFilter(f, nil, nil)
	return r.listOrders(ctx, where, args, p)
}

func (r *OrderRepository) listOrders(ctx context.Context, conds []string, args []any, p order.Page) ([]order.Order, int, error) {
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	limitArg := len(args) + 1
	offsetArg := len(args) + 2
	args = append(args, p.Limit, (p.Number-1)*p.Limit)

	rows, err := r.pool.Query(ctx, fmt.Sprintf(
		`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, limitArg, offsetArg,
	), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return orders, total, nil
}

// buildFilter appends the filter's non-zero fields as numbered conditions.
func buildFilter(f order.Filter, conds []string, args []any) ([]string, []any) {
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", string(f.PaymentStatus))
	}
	if f.PaymentMethod != "" {
		add("payment_method = $%d", string(f.PaymentMethod))
	}
	if !f.From.IsZero() {
		add("created_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("created_at <= $%d", f.To)
	}
	return conds, args
}

// UserAddresses returns up to limit distinct shipping addresses from the
// user's past orders, most recently used first.
func (r *OrderRepository) UserAddresses(ctx context.Context, userID string, limit int) ([]order.Address, error) {
	rows, err := r.pool.Query(ctx, userAddressesSQL, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing addresses for user %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Address, error) {
		var a order.Address
		err := row.Scan(&a.Province, &a.District, &a.Ward, &a.SpecificAddress)
		return a, err
	})
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID, &o.UserID, &o.FullName, &o.PhoneNumber,
		&o.Address.Province, &o.Address.District, &o.Address.Ward, &o.Address.SpecificAddress,
		&o.Note, &o.TotalPrice, &o.ShippingFee,
		&o.Status, &o.PaymentMethod, &o.PaymentStatus,
		&o.BankTransfer, &o.CreatedAt, &o.UpdatedAt,
	)
	return o, err
}
