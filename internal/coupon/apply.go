package coupon

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/money"
)

// Apply turns an accepted coupon into adjustments. Item adjustments are
// anchored on the lines, the free shipping credit on cart.
func Apply(c Coupon, lines []Line, shipping Shipping, cart adjustment.Owner) []adjustment.Adjustment {
	payload := adjustment.Data{adjustment.KeyCoupon: c.Code}
	switch c.Type {
	case TypePercentage:
		var out []adjustment.Adjustment
		for _, line := range eligible(c, lines) {
			single := money.Round(money.Percent(line.AdjustedPrice, c.Value))
			if !single.IsPositive() {
				continue
			}
			data := withValue(payload, c.Value)
			data[adjustment.KeySingleAmount] = single
			amount := single.Mul(decimal.NewFromInt(int64(line.Quantity))).Neg()
			out = append(out, adjustment.New(adjustment.CouponPercentage, adjustment.ItemOwner(line.ItemID), amount, data))
		}
		return out
	case TypeNumeric:
		targets := eligible(c, lines)
		shares := prorate(c.Value, targets)
		out := make([]adjustment.Adjustment, 0, len(shares))
		for i, share := range shares {
			if !share.IsPositive() {
				continue
			}
			out = append(out, adjustment.New(adjustment.CouponNumeric, adjustment.ItemOwner(targets[i].ItemID), share.Neg(), withValue(payload, c.Value)))
		}
		return out
	case TypeFreeShipping:
		if !shipping.Computed || !shipping.Amount.IsPositive() {
			return nil
		}
		data := withValue(payload, shipping.Amount)
		return []adjustment.Adjustment{adjustment.New(adjustment.CouponFreeShipping, cart, shipping.Amount.Neg(), data)}
	}
	return nil
}

func eligible(c Coupon, lines []Line) []Line {
	out := make([]Line, 0, len(lines))
	for _, line := range lines {
		if !line.Total.IsPositive() || line.Quantity <= 0 {
			continue
		}
		if c.AllowsProduct(line.ProductID) {
			out = append(out, line)
		}
	}
	return out
}

// prorate splits value over lines in proportion to their totals, capped at
// the lines' sum. The rounding remainder lands on the largest line.
func prorate(value decimal.Decimal, lines []Line) []decimal.Decimal {
	shares := make([]decimal.Decimal, len(lines))
	if len(lines) == 0 || !value.IsPositive() {
		return shares
	}
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.Total)
	}
	target := money.Round(money.Min(value, sum))
	if !sum.IsPositive() {
		return shares
	}
	allocated := decimal.Zero
	for i, line := range lines {
		shares[i] = money.Round(line.Total.Mul(target).Div(sum))
		allocated = allocated.Add(shares[i])
	}
	if diff := target.Sub(allocated); !diff.IsZero() {
		order := make([]int, len(lines))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool { return lines[order[a]].Total.GreaterThan(lines[order[b]].Total) })
		largest := order[0]
		shares[largest] = money.Min(shares[largest].Add(diff), lines[largest].Total)
	}
	return shares
}

func withValue(base adjustment.Data, value decimal.Decimal) adjustment.Data {
	out := make(adjustment.Data, len(base)+2)
	for k, v := range base {
		out[k] = v
	}
	out[adjustment.KeyValue] = value
	return out
}
