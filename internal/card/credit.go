// Package card computes the loyalty-card credit a cart may redeem.
package card

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/money"
)

// Card is a loyalty card attached to a cart.
type Card struct {
	Number  string
	Balance decimal.Decimal
}

// Settings configure how much of each line a card may cover.
type Settings struct {
	Percentage        decimal.Decimal
	MedicalPercentage decimal.Decimal
	// PriceCeiling excludes lines whose unit price exceeds it. Zero disables it.
	PriceCeiling decimal.Decimal
}

// Line is the part of a cart item the credit calculation reads.
type Line struct {
	ItemID    string
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Medical   bool
	// Rate overrides the configured percentage when set.
	Rate *decimal.Decimal
}

// RateOverride returns the card rate of the first live campaign that defines one.
func RateOverride(p catalog.Product, now time.Time) *decimal.Decimal {
	for _, c := range p.ValidCampaigns(now) {
		if c.CardRate != nil {
			rate := *c.CardRate
			return &rate
		}
	}
	return nil
}

// Calculator derives card credit from Settings.
type Calculator struct {
	Settings Settings
}

func (c Calculator) rate(l Line) decimal.Decimal {
	if l.Rate != nil {
		return *l.Rate
	}
	if l.Medical {
		return c.Settings.MedicalPercentage
	}
	return c.Settings.Percentage
}

// Cap is the most credit a single line may absorb.
func (c Calculator) Cap(l Line) decimal.Decimal {
	if c.Settings.PriceCeiling.IsPositive() && l.UnitPrice.GreaterThan(c.Settings.PriceCeiling) {
		return decimal.Zero
	}
	if !l.Total.IsPositive() {
		return decimal.Zero
	}
	return money.Percent(l.Total, c.rate(l))
}

// Credit returns the negative amount the card covers, zero when none.
func (c Calculator) Credit(card *Card, lines []Line) decimal.Decimal {
	if card == nil || !card.Balance.IsPositive() {
		return decimal.Zero
	}
	capacity := decimal.Zero
	for _, l := range lines {
		capacity = capacity.Add(c.Cap(l))
	}
	return money.Round(money.Min(card.Balance, capacity)).Neg()
}

// Adjustment builds the cart-level credit adjustment. ok is false when the
// card covers nothing.
func (c Calculator) Adjustment(card *Card, lines []Line, owner adjustment.Owner) (adj adjustment.Adjustment, ok bool) {
	credit := c.Credit(card, lines)
	if credit.IsZero() {
		return adjustment.Adjustment{}, false
	}
	return adjustment.New(adjustment.ClientCard, owner, credit, adjustment.Data{
		adjustment.KeyValue: card.Balance,
	}), true
}
