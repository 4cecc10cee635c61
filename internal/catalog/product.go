package catalog

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// ProductType distinguishes simple purchasable products from composed ones.
type ProductType string

const (
	TypeSimple       ProductType = "simple"
	TypeBundle       ProductType = "bundle"
	TypeConfigurable ProductType = "configurable"
)

// IntervalPrice is a quantity break: from MinQuantity units on, each unit costs Price.
type IntervalPrice struct {
	MinQuantity int
	Price       decimal.Decimal
}

// Product is the purchasable view of a catalog entry consumed by the cart.
type Product struct {
	ID                 string
	SKU                string
	Name               string
	Type               ProductType
	Stock              int
	PriceVat           decimal.Decimal
	VatRate            decimal.Decimal
	Weight             decimal.Decimal
	Intervals          []IntervalPrice
	Direct             *DirectDiscount
	Campaigns          []Campaign
	NoStoreDiscount    bool
	BlocksFreeShipping bool
	Medical            bool
	Attributes         map[string]string
}

// IsSimple reports whether the product can be added to a cart directly.
func (p Product) IsSimple() bool {
	return p.Type == "" || p.Type == TypeSimple
}

// Interval returns the unit price of the highest quantity break reached by qty.
func (p Product) Interval(qty int) (decimal.Decimal, bool) {
	if len(p.Intervals) == 0 || qty <= 0 {
		return decimal.Zero, false
	}
	breaks := make([]IntervalPrice, len(p.Intervals))
	copy(breaks, p.Intervals)
	sort.SliceStable(breaks, func(i, j int) bool { return breaks[i].MinQuantity < breaks[j].MinQuantity })
	var (
		price decimal.Decimal
		found bool
	)
	for _, b := range breaks {
		if qty < b.MinQuantity {
			break
		}
		price, found = b.Price, true
	}
	return price, found
}

// ValidCampaigns returns the campaigns live at t in declaration order.
func (p Product) ValidCampaigns(t time.Time) []Campaign {
	var out []Campaign
	for _, c := range p.Campaigns {
		if c.ValidAt(t) {
			out = append(out, c)
		}
	}
	return out
}

// ValidDirectDiscount returns the direct discount when it is live at t.
func (p Product) ValidDirectDiscount(t time.Time) *DirectDiscount {
	if p.Direct.ValidAt(t) {
		return p.Direct
	}
	return nil
}

// Attribute returns a named product attribute.
func (p Product) Attribute(name string) (string, bool) {
	v, ok := p.Attributes[name]
	return v, ok
}
