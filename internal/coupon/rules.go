package coupon

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInactive is returned when the coupon is switched off.
	ErrInactive = errors.New("coupon is not active")
	// ErrNotStarted is returned before the coupon start date.
	ErrNotStarted = errors.New("coupon is not valid yet")
	// ErrExpired is returned after the coupon expiry date.
	ErrExpired = errors.New("coupon has expired")
	// ErrNoUsesLeft is returned when the global or per-user allowance is exhausted.
	ErrNoUsesLeft = errors.New("coupon has no uses left")
	// ErrUserNotAllowed is returned when the coupon is reserved for other users.
	ErrUserNotAllowed = errors.New("coupon is not available for this user")
	// ErrMinimumOrder is returned when the cart does not reach the minimum order value.
	ErrMinimumOrder = errors.New("order does not reach the coupon minimum value")
	// ErrDiscountsIncompatible is returned when the cart already has discounted items.
	ErrDiscountsIncompatible = errors.New("coupon cannot be combined with active discounts")
	// ErrProductsIncompatible is returned when no cart product is eligible.
	ErrProductsIncompatible = errors.New("coupon does not apply to products in cart")
	// ErrConditionUnmet is returned when the coupon condition evaluates to false.
	ErrConditionUnmet = errors.New("coupon condition is not met")
	// ErrShippingAlreadyFree is returned when a free shipping coupon has nothing to waive.
	ErrShippingAlreadyFree = errors.New("shipping is already free")
	// ErrZoneNotEligible is returned when the destination zone is excluded.
	ErrZoneNotEligible = errors.New("coupon is not valid for the shipping zone")
	// ErrProductsBlockFreeShipping is returned when an item rules out free shipping.
	ErrProductsBlockFreeShipping = errors.New("cart contains products excluded from free shipping")
)

// Rule names, in evaluation order.
const (
	RuleActive              = "active"
	RuleStartDate           = "start_date"
	RuleExpiry              = "expiry"
	RuleUsesLeft            = "uses_left"
	RuleUserAllowed         = "user_allowed"
	RuleMinOrder            = "min_order"
	RuleDiscounts           = "discounts_compatible"
	RuleProducts            = "products_compatible"
	RuleCondition           = "condition"
	RuleShippingAdjustment  = "shipping_adjustment"
	RuleZone                = "zone"
	RuleFreeShippingProduct = "products_allow_free_shipping"
)

type rule struct {
	name  string
	check func(ctx context.Context, v *Validator, s Subject, now time.Time) error
}

var baseRules = []rule{
	{RuleActive, checkActive},
	{RuleStartDate, checkStart},
	{RuleExpiry, checkExpiry},
	{RuleUsesLeft, checkUsesLeft},
	{RuleUserAllowed, checkUser},
	{RuleMinOrder, checkMinOrder},
	{RuleDiscounts, checkDiscounts},
	{RuleProducts, checkProducts},
}

// chain assembles the ordered rules that apply to s.
func chain(s Subject) []rule {
	rules := make([]rule, 0, len(baseRules)+4)
	rules = append(rules, baseRules...)
	if s.Coupon.Condition != "" {
		rules = append(rules, rule{RuleCondition, checkCondition})
	}
	if s.Coupon.Type != TypeFreeShipping {
		return rules
	}
	if s.Shipping.Computed {
		rules = append(rules, rule{RuleShippingAdjustment, checkShippingAdjustment})
	}
	if s.Shipping.HasDestination {
		rules = append(rules, rule{RuleZone, checkZone})
	}
	return append(rules, rule{RuleFreeShippingProduct, checkFreeShippingProducts})
}

func checkActive(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	if !s.Coupon.Active {
		return ErrInactive
	}
	return nil
}

func checkStart(_ context.Context, _ *Validator, s Subject, now time.Time) error {
	if s.Coupon.StartsAt != nil && now.Before(*s.Coupon.StartsAt) {
		return ErrNotStarted
	}
	return nil
}

func checkExpiry(_ context.Context, _ *Validator, s Subject, now time.Time) error {
	if s.Coupon.ExpiresAt != nil && now.After(*s.Coupon.ExpiresAt) {
		return ErrExpired
	}
	return nil
}

func checkUsesLeft(ctx context.Context, v *Validator, s Subject, _ time.Time) error {
	if s.Coupon.UsesLeft != nil && *s.Coupon.UsesLeft <= 0 {
		return ErrNoUsesLeft
	}
	if s.UserID == "" || s.Coupon.PerUserLimit == nil || v.Usage == nil {
		return nil
	}
	used, err := v.Usage.CountUsage(ctx, s.Coupon.Code, s.UserID)
	if err != nil {
		return fmt.Errorf("count coupon usage: %w", err)
	}
	if used >= *s.Coupon.PerUserLimit {
		return ErrNoUsesLeft
	}
	return nil
}

func checkUser(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	if len(s.Coupon.AllowedUsers) == 0 {
		return nil
	}
	if s.UserID == "" || !s.Coupon.AllowsUser(s.UserID) {
		return ErrUserNotAllowed
	}
	return nil
}

func checkMinOrder(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	if s.Coupon.MinOrderValue.IsPositive() && s.ItemsTotal.LessThan(s.Coupon.MinOrderValue) {
		return ErrMinimumOrder
	}
	return nil
}

func checkDiscounts(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	if s.Coupon.CombinesWithDiscounts {
		return nil
	}
	for _, line := range s.Lines {
		if line.Discounted {
			return ErrDiscountsIncompatible
		}
	}
	return nil
}

func checkProducts(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	if !s.Coupon.Restricted() {
		return nil
	}
	for _, line := range s.Lines {
		if s.Coupon.AllowsProduct(line.ProductID) {
			return nil
		}
	}
	return ErrProductsIncompatible
}

func checkCondition(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	ok, err := evalCondition(s.Coupon.Condition, s)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConditionUnmet
	}
	return nil
}

func checkShippingAdjustment(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	if !s.Shipping.Amount.IsPositive() {
		return ErrShippingAlreadyFree
	}
	return nil
}

func checkZone(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	if !s.Coupon.AllowsZone(s.Shipping.ZoneID) {
		return ErrZoneNotEligible
	}
	return nil
}

func checkFreeShippingProducts(_ context.Context, _ *Validator, s Subject, _ time.Time) error {
	for _, line := range s.Lines {
		if line.BlocksFreeShipping {
			return ErrProductsBlockFreeShipping
		}
	}
	return nil
}
