package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/phamdo/boutique-orders/internal/domain/cart"
	"github.com/phamdo/boutique-orders/internal/domain/order"
)

type checkoutRequest struct {
	CartItems     []checkoutItem `json:"cart_items"`
	ShippingInfo  shippingInfo   `json:"shipping_info"`
	PaymentMethod string         `json:"payment_method"`
}

type checkoutItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	ColorID   string          `json:"color"`
	SizeID    string          `json:"size"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type shippingInfo struct {
	UserID          string `json:"user_id,omitempty"`
	FullName        string `json:"full_name"`
	PhoneNumber     string `json:"phone_number"`
	Province        string `json:"province"`
	District        string `json:"district"`
	Ward            string `json:"ward"`
	SpecificAddress string `json:"specific_address"`
	Note            string `json:"note,omitempty"`
}

type checkoutResponse struct {
	OrderID       string                  `json:"order_id"`
	Status        string                  `json:"status"`
	PaymentStatus string                  `json:"payment_status"`
	TotalPrice    string                  `json:"total_price"`
	ShippingFee   string                  `json:"shipping_fee"`
	BankTransfer  *order.BankTransferInfo `json:"bank_transfer_info,omitempty"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	items := make([]cart.Item, len(req.CartItems))
	for i, it := range req.CartItems {
		items[i] = cart.Item{
			ProductID: it.ProductID,
			Name:      it.Name,
			ColorID:   it.ColorID,
			SizeID:    it.SizeID,
			Quantity:  it.Quantity,
			Price:     it.Price,
		}
	}

	result, err := h.orders.Checkout(r.Context(), order.CheckoutRequest{
		Items: items,
		Shipping: order.ShippingInfo{
			UserID:      req.ShippingInfo.UserID,
			FullName:    req.ShippingInfo.FullName,
			PhoneNumber: req.ShippingInfo.PhoneNumber,
			Address: order.Address{
				Province:        req.ShippingInfo.Province,
				District:        req.ShippingInfo.District,
				Ward:            req.ShippingInfo.Ward,
				SpecificAddress: req.ShippingInfo.SpecificAddress,
			},
			Note: req.ShippingInfo.Note,
		},
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID:       result.Order.ID,
		Status:        string(result.Order.Status),
		PaymentStatus: string(result.Order.PaymentStatus),
		TotalPrice:    result.Order.TotalPrice.String(),
		ShippingFee:   result.Order.ShippingFee.String(),
		BankTransfer:  result.Order.BankTransfer,
	})
}

type orderJSON struct {
	ID            string                  `json:"id"`
	UserID        string                  `json:"user_id,omitempty"`
	FullName      string                  `json:"full_name"`
	PhoneNumber   string                  `json:"phone_number"`
	Address       addressJSON             `json:"address"`
	Note          string                  `json:"note,omitempty"`
	TotalPrice    string                  `json:"total_price"`
	ShippingFee   string                  `json:"shipping_fee"`
	Status        string                  `json:"status"`
	PaymentMethod string                  `json:"payment_method"`
	PaymentStatus string                  `json:"payment_status"`
	BankTransfer  *order.BankTransferInfo `json:"bank_transfer_info,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	UpdatedAt     time.Time               `json:"updated_at"`
}

type addressJSON struct {
	Province        string `json:"province"`
	District        string `json:"district"`
	Ward            string `json:"ward"`
	SpecificAddress string `json:"specific_address"`
}

type orderItemJSON struct {
	ID        string   `json:"id"`
	ProductID string   `json:"product_id"`
	Name      string   `json:"name"`
	ColorID   string   `json:"color"`
	ColorName string   `json:"color_name"`
	ColorCode string   `json:"color_code"`
	SizeID    string   `json:"size"`
	SizeName  string   `json:"size_name"`
	Quantity  int      `json:"quantity"`
	Price     string   `json:"price"`
	Images    []string `json:"images,omitempty"`
}

func toOrderJSON(o *order.Order) orderJSON {
	return orderJSON{
		ID:          o.ID,
		UserID:      o.UserID,
		FullName:    o.FullName,
		PhoneNumber: o.PhoneNumber,
		Address: addressJSON{
			Province:        o.Address.Province,
			District:        o.Address.District,
			Ward:            o.Address.Ward,
			SpecificAddress: o.Address.SpecificAddress,
		},
		Note:          o.Note,
		TotalPrice:    o.TotalPrice.String(),
		ShippingFee:   o.ShippingFee.String(),
		Status:        string(o.Status),
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		BankTransfer:  o.BankTransfer,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	detail, err := h.orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	items := make([]orderItemJSON, len(detail.Items))
	for i, it := range detail.Items {
		items[i] = orderItemJSON{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.Name,
			ColorID:   it.ColorID,
			ColorName: it.ColorName,
			ColorCode: it.ColorCode,
			SizeID:    it.SizeID,
			SizeName:  it.SizeName,
			Quantity:  it.Quantity,
			Price:     it.Price.String(),
			Images:    it.Images,
		}
	}

	writeJSON(w, http.StatusOK, struct {
		Order orderJSON       `json:"order"`
		Items []orderItemJSON `json:"items"`
	}{Order: toOrderJSON(detail.Order), Items: items})
}

type statusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.orders.SetStatus(r.Context(), r.PathValue("id"), order.Status(req.Status))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

type paymentStatusRequest struct {
	PaymentStatus string                  `json:"payment_status"`
	BankTransfer  *order.BankTransferInfo `json:"bank_transfer_info,omitempty"`
}

func (h *Handler) setPaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req paymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	o, err := h.orders.SetPaymentStatus(r.Context(),
		r.PathValue("id"), order.PaymentStatus(req.PaymentStatus), req.BankTransfer)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderJSON(o))
}

type listResponse struct {
	Orders     []orderJSON    `json:"orders"`
	Pagination paginationJSON `json:"pagination"`
}

type paginationJSON struct {
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
	Page       int `json:"page"`
	Limit      int `json:"limit"`
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListOrders(r.Context(), filterFromQuery(r), pageFromQuery(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(list))
}

func (h *Handler) listUserOrders(w http.ResponseWriter, r *http.Request) {
	list, err := h.orders.ListUserOrders(r.Context(), r.PathValue("id"), filterFromQuery(r), pageFromQuery(r))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toListResponse(list))
}

func (h *Handler) userAddresses(w http.ResponseWriter, r *http.Request) {
	addrs, err := h.orders.UserAddresses(r.Context(), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	out := make([]addressJSON, len(addrs))
	for i, a := range addrs {
		out[i] = addressJSON{
			Province:        a.Province,
			District:        a.District,
			Ward:            a.Ward,
			SpecificAddress: a.SpecificAddress,
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Addresses []addressJSON `json:"addresses"`
	}{Addresses: out})
}

func toListResponse(list *order.OrderList) listResponse {
	orders := make([]orderJSON, len(list.Orders))
	for i := range list.Orders {
		orders[i] = toOrderJSON(&list.Orders[i])
	}
	return listResponse{
		Orders: orders,
		Pagination: paginationJSON{
			Total:      list.Pagination.Total,
			TotalPages: list.Pagination.TotalPages,
			Page:       list.Pagination.Page,
			Limit:      list.Pagination.Limit,
		},
	}
}

// filterFromQuery reads the optional listing filters. Timestamps use
// RFC 3339; invalid values are ignored rather than rejected.
func filterFromQuery(r *http.Request) order.Filter {
	q := r.URL.Query()
	f := order.Filter{
		Status:        order.Status(q.Get("status")),
		PaymentStatus: order.PaymentStatus(q.Get("payment_status")),
		PaymentMethod: order.PaymentMethod(q.Get("payment_method")),
	}
	if v := q.Get("from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = t
		}
	}
	if v := q.Get("to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = t
		}
	}
	return f
}

func pageFromQuery(r *http.Request) order.Page {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	return order.Page{Number: page, Limit: limit}
}
