package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/card"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/discount"
	"github.com/noah-isme/toko-cart/internal/money"
	"github.com/noah-isme/toko-cart/internal/obs"
	"github.com/noah-isme/toko-cart/internal/shipping"
)

// FeeCalculator prices the shipping selection of a cart.
type FeeCalculator interface {
	Fee(ctx context.Context, req shipping.Request) (*shipping.Fee, error)
}

// MethodSource resolves shipment methods by id.
type MethodSource interface {
	Method(ctx context.Context, id string) (shipping.Method, error)
}

// CouponValidator decides whether an attached coupon applies.
type CouponValidator interface {
	Validate(ctx context.Context, s coupon.Subject) coupon.Result
}

// EngineConfig configures NewEngine.
type EngineConfig struct {
	Discounts    discount.Settings
	Card         card.Settings
	PackagingFee decimal.Decimal
	Fees         FeeCalculator
	Methods      MethodSource
	Coupons      CouponValidator
	Now          func() time.Time
	Logger       zerolog.Logger
}

// Engine recomputes every adjustment of a cart from scratch.
type Engine struct {
	resolver     discount.Resolver
	applier      *discount.Applier
	card         card.Calculator
	packagingFee decimal.Decimal
	fees         FeeCalculator
	methods      MethodSource
	coupons      CouponValidator
	now          func() time.Time
	logger       zerolog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(cfg EngineConfig) *Engine {
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		resolver:     discount.Resolver{Now: now},
		applier:      &discount.Applier{Settings: cfg.Discounts, Now: now, Logger: cfg.Logger},
		card:         card.Calculator{Settings: cfg.Card},
		packagingFee: cfg.PackagingFee,
		fees:         cfg.Fees,
		methods:      cfg.Methods,
		coupons:      cfg.Coupons,
		now:          now,
		logger:       cfg.Logger,
	}
}

// outcome is the result of one pass, swapped into the cart on success.
type outcome struct {
	ledger     *adjustment.Ledger
	applyable  []discount.Entry
	conflicts  []string
	validation *coupon.Result
	active     *coupon.Coupon
}

// Recalculate rebuilds the ledger of c. It is a no-op while c is already
// recalculating. On error the previous ledger is kept.
func (e *Engine) Recalculate(ctx context.Context, c *Cart) (err error) {
	if c == nil {
		return ErrNotFound
	}
	if c.State == StateLoading {
		return nil
	}
	if !c.IsActive() {
		return ErrNotEditable
	}
	prev := c.State
	c.State = StateLoading
	defer func() { c.State = prev }()

	ctx, span := otel.Tracer("cart.Engine").Start(ctx, "Engine.Recalculate")
	defer span.End()
	span.SetAttributes(attribute.String("cart.id", c.ID), attribute.Int("cart.items", len(c.items)))

	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		if obs.CartRecalculationsTotal != nil {
			obs.CartRecalculationsTotal.WithLabelValues(result).Inc()
		}
		if obs.CartRecalculationDuration != nil {
			obs.CartRecalculationDuration.Observe(float64(time.Since(start).Microseconds()) / 1000)
		}
	}()

	e.logger.Debug().Str("cart_id", c.ID).Int("items", len(c.items)).Msg("cart_recalculation_started")
	out, err := e.run(ctx, c)
	if err != nil {
		span.RecordError(err)
		e.logger.Error().Err(err).Str("cart_id", c.ID).Msg("cart_recalculation_failed")
		return err
	}
	c.ledger = out.ledger
	c.applyable = out.applyable
	c.conflicts = out.conflicts
	c.validation = out.validation
	c.activeCoupon = out.active
	c.UpdatedAt = e.now()

	e.logger.Debug().
		Str("cart_id", c.ID).
		Int("adjustments", out.ledger.Len()).
		Str("total", c.Total().StringFixed(money.Places)).
		Float64("duration_ms", float64(time.Since(start).Microseconds())/1000).
		Msg("cart_recalculated")
	return nil
}

func (e *Engine) run(ctx context.Context, c *Cart) (*outcome, error) {
	// Coupon entries go first, then everything else; rules rebuild from empty.
	ledger := c.ledger.Clone()
	ledger.ClearTypes(adjustment.CouponTypes()...)
	ledger.Reset()

	out := &outcome{ledger: ledger}
	lines := make([]discount.Line, 0, len(c.items))
	for _, it := range c.items {
		lines = append(lines, it.line())
	}

	if err := e.applier.ApplyItemRules(out.ledger, lines); err != nil {
		return nil, fmt.Errorf("item rules: %w", err)
	}
	out.applyable = discount.Applyable(e.resolver.Resolve(lines))
	out.conflicts = discount.Conflicts(out.applyable)
	if len(out.conflicts) > 0 {
		e.logger.Warn().Str("cart_id", c.ID).Strs("campaigns", out.conflicts).Msg("conflicting_discounts")
	}
	if err := e.applier.ApplyCampaigns(out.ledger, out.applyable); err != nil {
		return nil, err
	}
	if err := e.applier.ApplyStoreDiscount(out.ledger, lines); err != nil {
		return nil, fmt.Errorf("store discount: %w", err)
	}

	fee, err := e.shippingFee(ctx, c, out.ledger)
	if err != nil {
		return nil, err
	}
	if fee != nil {
		if _, err := out.ledger.Add(fee.Adjustment(c.owner)); err != nil {
			return nil, err
		}
	}

	if e.packagingFee.IsPositive() {
		amount := money.Round(e.packagingFee)
		if _, err := out.ledger.Add(adjustment.New(adjustment.PackagingFee, c.owner, amount, adjustment.Data{
			adjustment.KeyValue: amount,
		})); err != nil {
			return nil, err
		}
	}

	if c.coupon != nil {
		if err := e.applyCoupon(ctx, c, fee, out); err != nil {
			return nil, err
		}
	}

	if c.Card != nil {
		if adj, ok := e.card.Adjustment(c.Card, e.cardLines(c, out.ledger), c.owner); ok {
			if _, err := out.ledger.Add(adj); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func (e *Engine) method(ctx context.Context, c *Cart) (*shipping.Method, error) {
	if c.Shipping.MethodID == "" || e.methods == nil {
		return nil, nil
	}
	m, err := e.methods.Method(ctx, c.Shipping.MethodID)
	if err != nil {
		return nil, fmt.Errorf("shipping method %s: %w", c.Shipping.MethodID, err)
	}
	return &m, nil
}

func (e *Engine) shippingFee(ctx context.Context, c *Cart, ledger *adjustment.Ledger) (*shipping.Fee, error) {
	if e.fees == nil {
		return nil, nil
	}
	m, err := e.method(ctx, c)
	if err != nil || m == nil {
		return nil, err
	}
	blocks := false
	for _, it := range c.items {
		blocks = blocks || it.product.BlocksFreeShipping
	}
	return e.fees.Fee(ctx, shipping.Request{
		Method:             m,
		Country:            c.Shipping.Country,
		PostalCode:         c.Shipping.PostalCode,
		Weight:             c.Weight(),
		ItemsTotal:         itemsTotal(c.items, ledger),
		BlocksFreeShipping: blocks,
	})
}

func (e *Engine) applyCoupon(ctx context.Context, c *Cart, fee *shipping.Fee, out *outcome) error {
	view := book{owner: c.owner, items: c.items, ledger: out.ledger}
	lines := make([]coupon.Line, 0, len(c.items))
	for _, it := range c.items {
		lines = append(lines, coupon.Line{
			ItemID:             it.ID,
			ProductID:          it.ProductID,
			Quantity:           view.EffectiveQuantity(it),
			AdjustedPrice:      view.AdjustedPrice(it),
			Total:              view.ItemTotal(it),
			Discounted:         campaignDiscounted(out.ledger, it),
			BlocksFreeShipping: it.product.BlocksFreeShipping,
		})
	}
	ship := coupon.Shipping{
		MethodID:       c.Shipping.MethodID,
		Country:        c.Shipping.Country,
		HasDestination: c.Shipping.MethodID != "" && (c.Shipping.Country != "" || c.Shipping.PostalCode != ""),
	}
	if fee != nil {
		ship.Computed = true
		ship.Amount = fee.Amount
		ship.ZoneID = fee.ZoneID
	}
	subject := coupon.Subject{
		Coupon:     *c.coupon,
		UserID:     c.UserID,
		ItemsTotal: view.ItemsTotal(),
		Lines:      lines,
		Shipping:   ship,
	}

	var result coupon.Result
	if e.coupons != nil {
		result = e.coupons.Validate(ctx, subject)
	} else {
		result = (&coupon.Validator{Now: e.now, Logger: e.logger}).Validate(ctx, subject)
	}
	out.validation = &result
	if !result.Passed {
		return nil
	}
	active := *c.coupon
	out.active = &active
	for _, adj := range coupon.Apply(active, lines, ship, c.owner) {
		if _, err := out.ledger.Add(adj); err != nil {
			return fmt.Errorf("coupon %s: %w", active.Code, err)
		}
	}
	return nil
}

func campaignDiscounted(ledger *adjustment.Ledger, it *Item) bool {
	for _, adj := range ledger.For(it.Owner()) {
		if adj.Type.IsCampaign() {
			return true
		}
	}
	return false
}

func (e *Engine) cardLines(c *Cart, ledger *adjustment.Ledger) []card.Line {
	now := e.now()
	out := make([]card.Line, 0, len(c.items))
	for _, it := range c.items {
		out = append(out, card.Line{
			ItemID:    it.ID,
			UnitPrice: it.UnitPrice,
			Total:     it.Base().Add(ledger.Sum(it.Owner())),
			Medical:   it.product.Medical,
			Rate:      card.RateOverride(it.product, now),
		})
	}
	return out
}
