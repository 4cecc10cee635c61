package cart

import (
	"time"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/coupon"
)

// Order is the frozen outcome of a completed cart. Its totals never change.
type Order struct {
	book

	ID       string
	CartID   string
	UserID   string
	Shipping Destination
	Coupon   *coupon.Coupon
	PlacedAt time.Time
}

var (
	_ Adjustable = (*Cart)(nil)
	_ Adjustable = (*Order)(nil)
)

func newOrder(id string, c *Cart, now time.Time) *Order {
	items := make([]*Item, 0, len(c.items))
	for _, it := range c.items {
		items = append(items, it.clone())
	}
	o := &Order{
		book:     book{owner: adjustment.CartOwner(c.ID), items: items, ledger: c.ledger.Clone()},
		ID:       id,
		CartID:   c.ID,
		UserID:   c.UserID,
		Shipping: c.Shipping,
		PlacedAt: now,
	}
	if c.activeCoupon != nil {
		cp := *c.activeCoupon
		o.Coupon = &cp
	}
	return o
}
