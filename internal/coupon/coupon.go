// Package coupon validates attached coupon codes against the cart and turns
// accepted coupons into ledger adjustments.
package coupon

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Type selects how a coupon discounts the cart.
type Type string

const (
	TypePercentage   Type = "percentage"
	TypeNumeric      Type = "numeric"
	TypeFreeShipping Type = "free_shipping"
)

// Coupon is a read-only coupon definition.
type Coupon struct {
	Code                  string
	Type                  Type
	Value                 decimal.Decimal
	Active                bool
	StartsAt              *time.Time
	ExpiresAt             *time.Time
	UsesLeft              *int
	PerUserLimit          *int
	AllowedUsers          []string
	MinOrderValue         decimal.Decimal
	ProductIDs            []string
	CombinesWithDiscounts bool
	ZoneIDs               []string
	// Condition is an optional CEL expression that must evaluate to true.
	Condition string
}

// NormalizeCode canonicalises a user supplied code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Restricted reports whether the coupon only applies to a product subset.
func (c Coupon) Restricted() bool { return len(c.ProductIDs) > 0 }

// AllowsProduct reports whether items of productID are eligible.
func (c Coupon) AllowsProduct(productID string) bool {
	if !c.Restricted() {
		return true
	}
	for _, id := range c.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// AllowsZone reports whether zoneID is part of the coupon's zone list.
func (c Coupon) AllowsZone(zoneID string) bool {
	if len(c.ZoneIDs) == 0 {
		return true
	}
	for _, id := range c.ZoneIDs {
		if id == zoneID {
			return true
		}
	}
	return false
}

// AllowsUser reports whether userID may redeem the coupon.
func (c Coupon) AllowsUser(userID string) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if strings.EqualFold(id, userID) {
			return true
		}
	}
	return false
}

// Line is the coupon view of a cart item.
type Line struct {
	ItemID             string
	ProductID          string
	Quantity           int
	AdjustedPrice      decimal.Decimal
	Total              decimal.Decimal
	Discounted         bool
	BlocksFreeShipping bool
}

// Shipping describes the shipping context of the cart being validated.
type Shipping struct {
	// Computed is true when the cart carries a shipping adjustment.
	Computed bool
	Amount   decimal.Decimal
	MethodID string
	ZoneID   string
	Country  string
	// HasDestination is true when a method and a destination are selected.
	HasDestination bool
}

// Subject is everything a validation needs to know about the cart.
type Subject struct {
	Coupon     Coupon
	UserID     string
	ItemsTotal decimal.Decimal
	Lines      []Line
	Shipping   Shipping
}

// Result is the outcome retained on the cart after validation.
type Result struct {
	Passed  bool
	Rule    string
	Message string
	Err     error
}

// Failed reports whether validation rejected the coupon.
func (r *Result) Failed() bool { return r != nil && !r.Passed }
