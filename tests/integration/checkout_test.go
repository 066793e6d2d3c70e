//go:build integration

package integration

import (
	"bytes"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"sync"
	"testing"
)

var uuidPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// num parses a decimal string from a response body. Database round trips
// may add trailing zeros, so amounts are compared numerically.
func num(t *testing.T, s string) float64 {
	t.Helper()
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		t.Fatalf("parse amount %q: %v", s, err)
	}
	return v
}

func linenShirt(qty int) cartItem {
	return cartItem{
		ProductID: "shirt-linen",
		Name:      "Linen Shirt",
		Color:     "white",
		Size:      "m",
		Quantity:  qty,
		Price:     "590000",
	}
}

func TestCheckout_COD(t *testing.T) {
	req := checkoutRequest{
		CartItems:     []cartItem{linenShirt(2)},
		ShippingInfo:  defaultShipping(),
		PaymentMethod: "cod",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	out := decodeJSON[checkoutResponse](t, resp)
	if !uuidPattern.MatchString(out.OrderID) {
		t.Errorf("order ID %q is not a valid UUID", out.OrderID)
	}
	if out.Status != "pending" {
		t.Errorf("status: got %q, want %q", out.Status, "pending")
	}
	if out.PaymentStatus != "pending" {
		t.Errorf("payment status: got %q, want %q", out.PaymentStatus, "pending")
	}
	// Hà Nội ships free: 2 x 590000.
	if got := num(t, out.ShippingFee); got != 0 {
		t.Errorf("shipping fee: got %v, want 0", got)
	}
	if got := num(t, out.TotalPrice); got != 1180000 {
		t.Errorf("total: got %v, want 1180000", got)
	}
	if out.BankTransfer != nil {
		t.Error("cod order must not carry bank transfer info")
	}
}

func TestCheckout_RemoteProvinceShippingFee(t *testing.T) {
	shipping := defaultShipping()
	shipping.Province = "Đà Nẵng"
	req := checkoutRequest{
		CartItems:     []cartItem{linenShirt(1)},
		ShippingInfo:  shipping,
		PaymentMethod: "cod",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	out := decodeJSON[checkoutResponse](t, resp)
	if got := num(t, out.ShippingFee); got != 20000 {
		t.Errorf("shipping fee: got %v, want 20000", got)
	}
	if got := num(t, out.TotalPrice); got != 610000 {
		t.Errorf("total: got %v, want 610000", got)
	}
}

func TestCheckout_BankTransfer(t *testing.T) {
	req := checkoutRequest{
		CartItems:     []cartItem{linenShirt(1)},
		ShippingInfo:  defaultShipping(),
		PaymentMethod: "bank_transfer",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}

	out := decodeJSON[checkoutResponse](t, resp)
	if out.Status != "waiting_payment" {
		t.Errorf("status: got %q, want %q", out.Status, "waiting_payment")
	}
	if out.BankTransfer == nil {
		t.Fatal("bank transfer order must carry transfer instructions")
	}
	if out.BankTransfer.AccountNumber != "666666" {
		t.Errorf("account number: got %q", out.BankTransfer.AccountNumber)
	}
	if out.BankTransfer.TransferAmount != out.TotalPrice {
		t.Errorf("transfer amount %q != total %q", out.BankTransfer.TransferAmount, out.TotalPrice)
	}
	if out.BankTransfer.TransferContent == "" {
		t.Error("transfer content is empty")
	}
	if out.BankTransfer.TransferDate != "" {
		t.Errorf("transfer date must be unset at checkout, got %q", out.BankTransfer.TransferDate)
	}
}

func TestCheckout_EmptyCart(t *testing.T) {
	req := checkoutRequest{
		CartItems:     []cartItem{},
		ShippingInfo:  defaultShipping(),
		PaymentMethod: "cod",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_MissingShippingField(t *testing.T) {
	shipping := defaultShipping()
	shipping.Ward = ""
	req := checkoutRequest{
		CartItems:     []cartItem{linenShirt(1)},
		ShippingInfo:  shipping,
		PaymentMethod: "cod",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestCheckout_UnknownProduct(t *testing.T) {
	req := checkoutRequest{
		CartItems: []cartItem{{
			ProductID: "does-not-exist", Name: "Ghost", Color: "black", Size: "m",
			Quantity: 1, Price: "100",
		}},
		ShippingInfo:  defaultShipping(),
		PaymentMethod: "cod",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	out := decodeJSON[conflictResponse](t, resp)
	if len(out.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(out.Errors))
	}
	if out.Errors[0].Reason != "product_not_found" {
		t.Errorf("reason: got %q", out.Errors[0].Reason)
	}
}

func TestCheckout_DiscontinuedProduct(t *testing.T) {
	req := checkoutRequest{
		CartItems: []cartItem{{
			ProductID: "jacket-retired", Name: "Quilted Jacket", Color: "black", Size: "m",
			Quantity: 1, Price: "1150000",
		}},
		ShippingInfo:  defaultShipping(),
		PaymentMethod: "cod",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	out := decodeJSON[conflictResponse](t, resp)
	if len(out.Errors) != 1 || out.Errors[0].Reason != "product_discontinued" {
		t.Fatalf("unexpected errors: %+v", out.Errors)
	}
}

func TestCheckout_PriceDrift(t *testing.T) {
	req := checkoutRequest{
		CartItems: []cartItem{{
			ProductID: "scarf-silk", Name: "Silk Scarf", Color: "navy", Size: "m",
			Quantity: 1, Price: "400000", // catalog price is 450000
		}},
		ShippingInfo:  defaultShipping(),
		PaymentMethod: "cod",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	out := decodeJSON[conflictResponse](t, resp)
	if len(out.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(out.Errors))
	}
	e := out.Errors[0]
	if e.Reason != "price_changed" {
		t.Errorf("reason: got %q", e.Reason)
	}
	if num(t, e.OldPrice) != 400000 || num(t, e.NewPrice) != 450000 {
		t.Errorf("prices: old %q new %q", e.OldPrice, e.NewPrice)
	}
	// The corrected line carries the catalog price so the client can retry.
	if len(out.UpdatedItems) != 1 {
		t.Fatalf("unexpected updated items: %+v", out.UpdatedItems)
	}
	if num(t, out.UpdatedItems[0].Price) != 450000 {
		t.Errorf("corrected price: got %q, want 450000", out.UpdatedItems[0].Price)
	}
}

func TestCheckout_InsufficientStock(t *testing.T) {
	req := checkoutRequest{
		CartItems: []cartItem{{
			ProductID: "coat-wool", Name: "Wool Coat", Color: "black", Size: "l",
			Quantity: 999, Price: "2450000",
		}},
		ShippingInfo:  defaultShipping(),
		PaymentMethod: "cod",
	}
	resp := doJSON(t, http.MethodPost, "/api/checkout", req)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}

	out := decodeJSON[conflictResponse](t, resp)
	if len(out.Errors) != 1 || out.Errors[0].Reason != "insufficient_stock" {
		t.Fatalf("unexpected errors: %+v", out.Errors)
	}
	if out.Errors[0].Remaining == nil || *out.Errors[0].Remaining != 6 {
		t.Errorf("remaining: got %v, want 6", out.Errors[0].Remaining)
	}
}

// TestCheckout_ConcurrentStock hammers the 5-unit canvas tote with parallel
// single-unit checkouts. Exactly five may succeed; the rest must fail with
// 409 and the variant must never go negative.
func TestCheckout_ConcurrentStock(t *testing.T) {
	const attempts = 12
	const stock = 5

	body, err := json.Marshal(checkoutRequest{
		CartItems: []cartItem{{
			ProductID: "tote-canvas", Name: "Canvas Tote", Color: "black", Size: "m",
			Quantity: 1, Price: "320000",
		}},
		ShippingInfo:  defaultShipping(),
		PaymentMethod: "cod",
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}

	results := make(chan int, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			// t.Fatalf is off-limits outside the test goroutine, so errors
			// are reported as a sentinel status.
			resp, err := httpClient.Post(baseURL+"/api/checkout", "application/json", bytes.NewReader(body))
			if err != nil {
				results <- 0
				return
			}
			resp.Body.Close()
			results <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(results)

	var created, conflicted int
	for code := range results {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicted++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}

	if created != stock {
		t.Errorf("created: got %d, want %d", created, stock)
	}
	if conflicted != attempts-stock {
		t.Errorf("conflicted: got %d, want %d", conflicted, attempts-stock)
	}
}
