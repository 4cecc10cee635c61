package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tag selects the behaviour class of a discount campaign.
type Tag string

const (
	TagPercentageOrNumeric Tag = "percentage_or_numeric"
	TagCheapestFree        Tag = "cheapest_free"
	TagSameProductFree     Tag = "same_product_free"
	TagFreeGift            Tag = "free_gift_product"
	TagScalablePercentage  Tag = "scalable_percentage_tiered"
	TagCartWideOffer       Tag = "cart_wide_offer"
)

// ValueKind tells how a discount value is interpreted.
type ValueKind string

const (
	KindPercentage ValueKind = "percentage"
	KindNumeric    ValueKind = "numeric"
)

// Campaign is a read-only discount definition targeting a set of products.
type Campaign struct {
	ID                     string
	Name                   string
	Tag                    Tag
	Kind                   ValueKind
	Value                  decimal.Decimal
	PurchaseNumber         int
	FreeQuantity           int
	Repeat                 bool
	MinimumValue           decimal.Decimal
	MinimumBuy             int
	Levels                 []decimal.Decimal
	Highest                bool
	GiftSKU                string
	GiftQuantity           int
	CanStackDirectDiscount bool
	CardRate               *decimal.Decimal
	StartsAt               *time.Time
	EndsAt                 *time.Time
}

// ValidAt reports whether the campaign window contains t.
func (c Campaign) ValidAt(t time.Time) bool {
	return within(t, c.StartsAt, c.EndsAt)
}

// FreeUnits returns the number of free units granted per purchase group.
func (c Campaign) FreeUnits() int {
	if c.FreeQuantity <= 0 {
		return 1
	}
	return c.FreeQuantity
}

// GiftUnits returns the number of gifted units, at least one.
func (c Campaign) GiftUnits() int {
	if c.GiftQuantity <= 0 {
		return 1
	}
	return c.GiftQuantity
}

// DirectDiscount is a standing per-product discount independent of campaigns.
type DirectDiscount struct {
	Kind  ValueKind
	Value decimal.Decimal
	// StacksWithCampaigns lets campaign discounts apply on top of this one.
	StacksWithCampaigns bool
	StartsAt            *time.Time
	EndsAt              *time.Time
}

// Single returns the per-unit reduction for a unit priced at price.
func (d *DirectDiscount) Single(price decimal.Decimal) decimal.Decimal {
	return reduction(d.Kind, d.Value, price)
}

// ValidAt reports whether the discount is live at t.
func (d *DirectDiscount) ValidAt(t time.Time) bool {
	if d == nil || !d.Value.IsPositive() {
		return false
	}
	return within(t, d.StartsAt, d.EndsAt)
}

// Single returns the per-unit reduction the campaign grants for a unit priced at price.
func (c Campaign) Single(price decimal.Decimal) decimal.Decimal {
	return reduction(c.Kind, c.Value, price)
}

func reduction(kind ValueKind, value, price decimal.Decimal) decimal.Decimal {
	if !price.IsPositive() || !value.IsPositive() {
		return decimal.Zero
	}
	if kind == KindNumeric {
		if value.GreaterThan(price) {
			return price
		}
		return value
	}
	return price.Mul(value).Div(decimal.NewFromInt(100))
}

func within(t time.Time, start, end *time.Time) bool {
	if start != nil && t.Before(*start) {
		return false
	}
	if end != nil && t.After(*end) {
		return false
	}
	return true
}
