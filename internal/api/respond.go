package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/phamdo/boutique-orders/internal/domain/cart"
	"github.com/phamdo/boutique-orders/internal/domain/catalog"
	"github.com/phamdo/boutique-orders/internal/domain/order"
)

// errorResponse is the uniform error envelope.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// conflictResponse is the cart-conflict envelope: the full per-item error
// list plus whatever corrected lines could be computed, so the client can
// re-render its cart without re-deriving catalog state.
type conflictResponse struct {
	Code         int             `json:"code"`
	Message      string          `json:"message"`
	Errors       []itemErrorJSON `json:"errors"`
	UpdatedItems []cartItemJSON  `json:"updated_items"`
}

type itemErrorJSON struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	OldPrice  string `json:"old_price,omitempty"`
	NewPrice  string `json:"new_price,omitempty"`
	Remaining *int   `json:"remaining,omitempty"`
}

type cartItemJSON struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	ColorID   string `json:"color"`
	SizeID    string `json:"size"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
	Available int    `json:"available_quantity"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps typed domain errors onto HTTP responses. Unknown
// errors are logged and reported as 500 without leaking details.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *order.ValidationError
		conflictErr   *cart.ConflictError
		stockErr      *catalog.InsufficientStockError
		statusErr     *order.InvalidStatusError
		transitionErr *order.IllegalTransitionError
	)
	switch {
	case errors.As(err, &validationErr):
		writeError(w, http.StatusBadRequest, validationErr.Error())
	case errors.As(err, &conflictErr):
		writeConflict(w, conflictErr.Result)
	case errors.As(err, &stockErr):
		writeError(w, http.StatusConflict, stockErr.Error())
	case errors.As(err, &statusErr):
		writeError(w, http.StatusUnprocessableEntity, statusErr.Error())
	case errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, transitionErr.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	default:
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeConflict(w http.ResponseWriter, res *cart.Result) {
	resp := conflictResponse{
		Code:         http.StatusConflict,
		Message:      "cart conflicts with catalog state",
		Errors:       make([]itemErrorJSON, len(res.Errors)),
		UpdatedItems: make([]cartItemJSON, len(res.Items)),
	}
	for i, e := range res.Errors {
		ie := itemErrorJSON{
			ProductID: e.ProductID,
			Name:      e.Name,
			Reason:    string(e.Reason),
			Message:   e.Message,
			Remaining: e.Remaining,
		}
		if e.OldPrice != nil {
			ie.OldPrice = e.OldPrice.String()
		}
		if e.NewPrice != nil {
			ie.NewPrice = e.NewPrice.String()
		}
		resp.Errors[i] = ie
	}
	for i, it := range res.Items {
		resp.UpdatedItems[i] = cartItemJSON{
			ProductID: it.ProductID,
			Name:      it.Name,
			ColorID:   it.ColorID,
			SizeID:    it.SizeID,
			Quantity:  it.Quantity,
			Price:     it.Price.String(),
			Available: it.Available,
		}
	}
	writeJSON(w, http.StatusConflict, resp)
}
