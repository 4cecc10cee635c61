package cart_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/card"
	"github.com/noah-isme/toko-cart/internal/cart"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/money"
	"github.com/noah-isme/toko-cart/internal/shipping"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func now() time.Time { return fixedNow }

func fixtureSnapshot() *catalog.Snapshot {
	vat := money.MustParse("0.23")
	return catalog.NewSnapshot(catalog.Contents{
		Products: []catalog.Product{
			{ID: "shirt", SKU: "SH", Name: "Shirt", PriceVat: money.MustParse("10.00"), VatRate: vat, Stock: 10, Weight: money.MustParse("0.5")},
			{ID: "mug", SKU: "MG", Name: "Mug", PriceVat: money.MustParse("5.00"), VatRate: vat, Stock: 100, Weight: money.MustParse("0.3")},
			{ID: "hat", SKU: "HT", Name: "Hat", PriceVat: money.MustParse("3.00"), VatRate: vat, Stock: 100, Weight: money.MustParse("0.2")},
			{ID: "gone", SKU: "GN", Name: "Gone", PriceVat: money.MustParse("1.00"), VatRate: vat, Stock: 0},
			{ID: "kit", SKU: "KT", Name: "Kit", Type: catalog.TypeBundle, PriceVat: money.MustParse("20.00"), Stock: 5},
		},
		Campaigns: []catalog.Campaign{
			{ID: "three-for-two", Name: "3 for 2", Tag: catalog.TagCheapestFree, PurchaseNumber: 3},
		},
		Targets: map[string][]string{"three-for-two": {"mug", "hat"}},
		Coupons: []coupon.Coupon{
			{Code: "TEN", Type: coupon.TypePercentage, Value: money.MustParse("10"), Active: true, CombinesWithDiscounts: true},
			{Code: "FREESHIP", Type: coupon.TypeFreeShipping, Active: true},
			{Code: "BIG", Type: coupon.TypeNumeric, Value: money.MustParse("5"), Active: true, MinOrderValue: money.MustParse("100")},
		},
		Methods: []shipping.Method{
			{ID: "flat", Name: "Standard", Price: money.MustParse("4.00"), Model: shipping.ModelFlat, Zones: []shipping.Zone{{ID: "pt", Countries: []string{"PT"}}}},
		},
	})
}

type options struct {
	stock     cart.StockPolicy
	fees      cart.FeeCalculator
	packaging string
	cardPct   string
}

type fixture struct {
	snapshot *catalog.Snapshot
	engine   *cart.Engine
	svc      *cart.Service
	manager  *cart.Manager
	usage    *coupon.MemoryUsage
}

func newFixture(t *testing.T, opts options) *fixture {
	t.Helper()
	snap := fixtureSnapshot()
	fees := opts.fees
	if fees == nil {
		fees = &shipping.Calculator{}
	}
	usage := &coupon.MemoryUsage{}
	engine := cart.NewEngine(cart.EngineConfig{
		Card:         card.Settings{Percentage: money.MustParse(orZero(opts.cardPct))},
		PackagingFee: money.MustParse(orZero(opts.packaging)),
		Fees:         fees,
		Methods:      snap,
		Coupons:      &coupon.Validator{Now: now, Usage: usage},
		Now:          now,
	})
	ids := 0
	svc, err := cart.NewService(cart.ServiceConfig{
		Engine:   engine,
		Products: snap,
		Coupons:  snap,
		Stock:    opts.stock,
		Usage:    usage,
		Now:      now,
		NewID: func() string {
			ids++
			return "item-" + string(rune('a'+ids-1))
		},
	})
	require.NoError(t, err)
	carts := 0
	manager := cart.NewManager(cart.ManagerConfig{
		Service: svc,
		Now:     now,
		NewID: func() string {
			carts++
			return "cart-" + string(rune('0'+carts))
		},
	})
	return &fixture{snapshot: snap, engine: engine, svc: svc, manager: manager, usage: usage}
}

func orZero(v string) string {
	if v == "" {
		return "0"
	}
	return v
}

func (f *fixture) cart(t *testing.T) *cart.Cart {
	t.Helper()
	c, err := f.manager.FindOrCreate("session-1")
	require.NoError(t, err)
	return c
}

func (f *fixture) add(t *testing.T, c *cart.Cart, productID string, qty int) []string {
	t.Helper()
	warnings, err := f.svc.AddItem(context.Background(), c, productID, qty)
	require.NoError(t, err)
	return warnings
}

func itemFor(t *testing.T, c *cart.Cart, productID string) cart.Item {
	t.Helper()
	it, ok := c.Item(productID)
	require.True(t, ok, "missing line for %s", productID)
	return it
}

type reentrantFees struct {
	engine *cart.Engine
	target *cart.Cart
	calls  int
	inner  error
}

func (f *reentrantFees) Fee(ctx context.Context, req shipping.Request) (*shipping.Fee, error) {
	f.calls++
	f.inner = f.engine.Recalculate(ctx, f.target)
	price := money.MustParse("4.00")
	return &shipping.Fee{MethodID: req.Method.ID, Price: price, Amount: price}, nil
}

var errFeeBoom = errors.New("directory offline")

type failingFees struct{}

func (failingFees) Fee(context.Context, shipping.Request) (*shipping.Fee, error) {
	return nil, errFeeBoom
}

type switchFees struct {
	fail bool
}

func (f *switchFees) Fee(_ context.Context, req shipping.Request) (*shipping.Fee, error) {
	if f.fail {
		return nil, errFeeBoom
	}
	price := money.MustParse("4.00")
	return &shipping.Fee{MethodID: req.Method.ID, Price: price, Amount: price}, nil
}
