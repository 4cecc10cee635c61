package cart

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/discount"
	"github.com/noah-isme/toko-cart/internal/money"
)

// book is the derived view shared by carts and orders: lines plus the
// ledger whose sums yield every total.
type book struct {
	owner  adjustment.Owner
	items  []*Item
	ledger *adjustment.Ledger
}

func newBook(id string) book {
	return book{owner: adjustment.CartOwner(id), ledger: adjustment.NewLedger()}
}

// DisplayLine is a rendered cart line. Free lines carry a zero total.
type DisplayLine struct {
	ItemID    string
	ProductID string
	SKU       string
	Name      string
	Quantity  int
	UnitPrice decimal.Decimal
	Total     decimal.Decimal
	Free      bool
	Reason    adjustment.Type
}

// Items returns copies of the lines in insertion order.
func (b *book) Items() []Item {
	out := make([]Item, 0, len(b.items))
	for _, it := range b.items {
		out = append(out, *it.clone())
	}
	return out
}

// Item returns the line holding productID.
func (b *book) Item(productID string) (Item, bool) {
	if it := b.find(productID); it != nil {
		return *it.clone(), true
	}
	return Item{}, false
}

func (b *book) find(productID string) *Item {
	for _, it := range b.items {
		if it.ProductID == productID {
			return it
		}
	}
	return nil
}

func (b *book) byID(itemID string) *Item {
	for _, it := range b.items {
		if it.ID == itemID {
			return it
		}
	}
	return nil
}

// HasItems reports whether the cart holds any line.
func (b *book) HasItems() bool { return len(b.items) > 0 }

// HasItem reports whether a line for productID exists.
func (b *book) HasItem(productID string) bool { return b.find(productID) != nil }

// ItemCount is the summed stored quantity.
func (b *book) ItemCount() int {
	n := 0
	for _, it := range b.items {
		n += it.Quantity
	}
	return n
}

// Weight is the summed line weight.
func (b *book) Weight() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.items {
		total = total.Add(it.Weight.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return total
}

// Adjustments returns every ledger entry, cart level first.
func (b *book) Adjustments() []adjustment.Adjustment {
	out := b.ledger.For(b.owner)
	for _, it := range b.items {
		out = append(out, b.ledger.For(it.Owner())...)
	}
	return out
}

// ItemAdjustments returns the entries anchored on a line.
func (b *book) ItemAdjustments(itemID string) []adjustment.Adjustment {
	return b.ledger.For(adjustment.ItemOwner(itemID))
}

// ItemTotal is the line base plus its adjustments.
func (b *book) ItemTotal(it *Item) decimal.Decimal {
	return it.Base().Add(b.ledger.Sum(it.Owner()))
}

// EffectiveQuantity is the chargeable quantity of a line.
func (b *book) EffectiveQuantity(it *Item) int {
	return discount.EffectiveQuantity(b.ledger, it.line())
}

// AdjustedPrice is the unit price after per-unit reductions.
func (b *book) AdjustedPrice(it *Item) decimal.Decimal {
	return discount.AdjustedPrice(b.ledger, it.line())
}

// SubTotal is the undiscounted value of every line.
func (b *book) SubTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.items {
		total = total.Add(it.Base())
	}
	return total
}

// ItemsTotal sums the line totals.
func (b *book) ItemsTotal() decimal.Decimal {
	return itemsTotal(b.items, b.ledger)
}

func itemsTotal(items []*Item, ledger *adjustment.Ledger) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Base()).Add(ledger.Sum(it.Owner()))
	}
	return total
}

// Total is the items total plus every cart level adjustment.
func (b *book) Total() decimal.Decimal {
	return b.ItemsTotal().Add(b.ledger.Sum(b.owner))
}

// VatTotal extracts VAT per line and rounds the sum once.
func (b *book) VatTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range b.items {
		total = total.Add(money.ExtractVAT(b.ItemTotal(it), it.VatRate))
	}
	return money.Round(total)
}

// ShippingAdjustment returns the shipping fee and the amount to display,
// which folds in any free shipping coupon.
func (b *book) ShippingAdjustment() (adjustment.Adjustment, decimal.Decimal, bool) {
	adj, ok, _ := b.ledger.FirstByType(b.owner, adjustment.Shipping)
	if !ok {
		return adjustment.Adjustment{}, decimal.Zero, false
	}
	display := adj.Amount.Add(b.ledger.Sum(b.owner, adjustment.CouponFreeShipping))
	return adj, display, true
}

// AdjustmentTotals sums amounts per type across the cart and its lines.
func (b *book) AdjustmentTotals() map[adjustment.Type]decimal.Decimal {
	return b.ledger.SumByType()
}

// DiscountTotal is the absolute sum of the negative per-type totals.
func (b *book) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range b.AdjustmentTotals() {
		if amount.IsNegative() {
			total = total.Add(amount.Neg())
		}
	}
	return total
}

// CouponDiscount is the absolute amount granted by coupons.
func (b *book) CouponDiscount() decimal.Decimal {
	return b.ledger.SumAll(adjustment.CouponTypes()...).Abs()
}

// ItemsDisplay renders chargeable lines followed by the free units each
// line earned.
func (b *book) ItemsDisplay() []DisplayLine {
	var out []DisplayLine
	for _, it := range b.items {
		if qty := b.EffectiveQuantity(it); qty > 0 {
			out = append(out, DisplayLine{
				ItemID:    it.ID,
				ProductID: it.ProductID,
				SKU:       it.SKU,
				Name:      it.Name,
				Quantity:  qty,
				UnitPrice: it.UnitPrice,
				Total:     b.ItemTotal(it),
			})
		}
		for _, adj := range b.ledger.For(it.Owner()) {
			if !adj.Type.IsFreeUnit() {
				continue
			}
			line := DisplayLine{
				ItemID:    it.ID,
				ProductID: it.ProductID,
				SKU:       it.SKU,
				Name:      it.Name,
				Quantity:  adj.Int(adjustment.KeyQuantity),
				UnitPrice: it.UnitPrice,
				Total:     decimal.Zero,
				Free:      true,
				Reason:    adj.Type,
			}
			if adj.Type == adjustment.CampaignFreeGift {
				line.ProductID = ""
				line.Name = adj.Label
				line.SKU = adj.Text(adjustment.KeySKU)
				line.UnitPrice = decimal.Zero
			}
			out = append(out, line)
		}
	}
	return out
}
