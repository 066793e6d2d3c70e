package cart

import (
	"context"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phamdo/boutique-orders/internal/domain/catalog"
)

// --- Mock implementations ---

type mockCatalogRepo struct {
	products []catalog.Product
	err      error
}

func (m *mockCatalogRepo) GetByIDs(_ context.Context, ids []string) ([]catalog.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []catalog.Product
	for _, id := range ids {
		for i := range m.products {
			if m.products[i].ID == id {
				out = append(out, m.products[i])
			}
		}
	}
	return out, nil
}

func (m *mockCatalogRepo) Colors(_ context.Context, _ []string) (map[string]catalog.Color, error) {
	return nil, nil
}

func (m *mockCatalogRepo) Sizes(_ context.Context, _ []string) (map[string]catalog.Size, error) {
	return nil, nil
}

// --- Helpers ---

func newTestProduct(id, name string, price string, qty int) catalog.Product {
	return catalog.Product{
		ID:       id,
		Name:     name,
		Price:    decimal.RequireFromString(price),
		IsActive: true,
		Variants: []catalog.Variant{
			{ColorID: "black", Sizes: []catalog.SizeStock{{SizeID: "m", Quantity: qty}}},
		},
	}
}

func testItem(p catalog.Product, qty int) Item {
	return Item{
		ProductID: p.ID,
		Name:      p.Name,
		ColorID:   "black",
		SizeID:    "m",
		Quantity:  qty,
		Price:     p.Price,
	}
}

// --- Tests ---

func TestValidate_AllLinesPass(t *testing.T) {
	p1 := newTestProduct("p1", "Linen Shirt", "100.00", 10)
	p2 := newTestProduct("p2", "Wool Coat", "250.00", 3)
	v := NewValidator(&mockCatalogRepo{products: []catalog.Product{p1, p2}})

	res, err := v.Validate(context.Background(), []Item{testItem(p1, 2), testItem(p2, 1)})

	require.NoError(t, err)
	assert.True(t, res.Valid())
	require.Len(t, res.Items, 2)
	assert.Equal(t, 10, res.Items[0].Available)
	assert.True(t, decimal.RequireFromString("100.00").Equal(res.Items[0].Price))
}

func TestValidate_ProductNotFound(t *testing.T) {
	v := NewValidator(&mockCatalogRepo{})

	res, err := v.Validate(context.Background(), []Item{
		{ProductID: "ghost", Name: "Ghost Shirt", ColorID: "black", SizeID: "m", Quantity: 1},
	})

	require.NoError(t, err)
	assert.False(t, res.Valid())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ReasonNotFound, res.Errors[0].Reason)
	assert.Equal(t, "ghost", res.Errors[0].ProductID)
	assert.Empty(t, res.Items)
}

func TestValidate_DiscontinuedProduct(t *testing.T) {
	p := newTestProduct("p1", "Old Jacket", "80.00", 5)
	p.IsActive = false
	v := NewValidator(&mockCatalogRepo{products: []catalog.Product{p}})

	res, err := v.Validate(context.Background(), []Item{testItem(p, 1)})

	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ReasonDiscontinued, res.Errors[0].Reason)
	assert.Empty(t, res.Items)
}

func TestValidate_PriceDrift(t *testing.T) {
	p := newTestProduct("p1", "Silk Scarf", "45.00", 8)
	v := NewValidator(&mockCatalogRepo{products: []catalog.Product{p}})

	stale := testItem(p, 2)
	stale.Price = decimal.RequireFromString("40.00")

	res, err := v.Validate(context.Background(), []Item{stale})

	require.NoError(t, err)
	assert.False(t, res.Valid())
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ReasonPriceChanged, res.Errors[0].Reason)
	require.NotNil(t, res.Errors[0].OldPrice)
	require.NotNil(t, res.Errors[0].NewPrice)
	assert.True(t, decimal.RequireFromString("40.00").Equal(*res.Errors[0].OldPrice))
	assert.True(t, decimal.RequireFromString("45.00").Equal(*res.Errors[0].NewPrice))

	// The line still passes availability, corrected to the catalog price.
	require.Len(t, res.Items, 1)
	assert.True(t, decimal.RequireFromString("45.00").Equal(res.Items[0].Price))
}

func TestValidate_PriceDriftAndStockShortageOnSameLine(t *testing.T) {
	p := newTestProduct("p1", "Silk Scarf", "45.00", 1)
	v := NewValidator(&mockCatalogRepo{products: []catalog.Product{p}})

	stale := testItem(p, 3)
	stale.Price = decimal.RequireFromString("40.00")

	res, err := v.Validate(context.Background(), []Item{stale})

	require.NoError(t, err)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, ReasonPriceChanged, res.Errors[0].Reason)
	assert.Equal(t, ReasonInsufficientStock, res.Errors[1].Reason)
	assert.Empty(t, res.Items)
}

func TestValidate_VariantUnavailable(t *testing.T) {
	p := newTestProduct("p1", "Denim Jeans", "120.00", 5)
	v := NewValidator(&mockCatalogRepo{products: []catalog.Product{p}})

	item := testItem(p, 1)
	item.SizeID = "xxl"

	res, err := v.Validate(context.Background(), []Item{item})

	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ReasonVariantUnavailable, res.Errors[0].Reason)
}

func TestValidate_InsufficientStock(t *testing.T) {
	p := newTestProduct("p1", "Canvas Tote", "35.00", 2)
	v := NewValidator(&mockCatalogRepo{products: []catalog.Product{p}})

	res, err := v.Validate(context.Background(), []Item{testItem(p, 5)})

	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, ReasonInsufficientStock, res.Errors[0].Reason)
	require.NotNil(t, res.Errors[0].Remaining)
	assert.Equal(t, 2, *res.Errors[0].Remaining)
	assert.Contains(t, res.Errors[0].Message, "only 2 left")
}

func TestValidate_MixedCart(t *testing.T) {
	good := newTestProduct("p1", "Linen Shirt", "100.00", 10)
	short := newTestProduct("p2", "Canvas Tote", "35.00", 0)
	v := NewValidator(&mockCatalogRepo{products: []catalog.Product{good, short}})

	res, err := v.Validate(context.Background(), []Item{
		testItem(good, 1),
		testItem(short, 1),
		{ProductID: "missing", Name: "Gone", ColorID: "black", SizeID: "m", Quantity: 1},
	})

	require.NoError(t, err)
	assert.False(t, res.Valid())
	assert.Len(t, res.Items, 1)
	assert.Len(t, res.Errors, 2)
}

func TestValidate_CatalogError(t *testing.T) {
	v := NewValidator(&mockCatalogRepo{err: errors.New("connection refused")})

	_, err := v.Validate(context.Background(), []Item{
		{ProductID: "p1", ColorID: "black", SizeID: "m", Quantity: 1},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get products")
}
