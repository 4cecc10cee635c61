// Package discount resolves which catalog campaigns apply to a cart and
// turns campaigns, item rules and the store discount into ledger entries.
package discount

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/catalog"
)

// Line is the part of a cart item the discount engine reads.
type Line struct {
	ID        string
	Product   catalog.Product
	Quantity  int
	UnitPrice decimal.Decimal
}

// Owner returns the ledger owner of the line.
func (l Line) Owner() adjustment.Owner { return adjustment.ItemOwner(l.ID) }

// Base is the undiscounted line value.
func (l Line) Base() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Entry groups the cart lines contributing to one campaign.
type Entry struct {
	Campaign catalog.Campaign
	Lines    []Line
}

// Quantity is the summed stored quantity of the entry's lines.
func (e Entry) Quantity() int {
	total := 0
	for _, l := range e.Lines {
		total += l.Quantity
	}
	return total
}

// Value is the summed undiscounted value of the entry's lines.
func (e Entry) Value() decimal.Decimal {
	total := decimal.Zero
	for _, l := range e.Lines {
		total = total.Add(l.Base())
	}
	return total
}

// Applyable reports whether the entry passes its campaign's eligibility
// predicate. The returned entry has its lines ordered for application.
func (e Entry) Applyable() (Entry, bool) {
	c := e.Campaign
	switch c.Tag {
	case catalog.TagPercentageOrNumeric, catalog.TagSameProductFree:
		return e, true
	case catalog.TagCheapestFree:
		if e.Quantity() < c.PurchaseNumber {
			return e, false
		}
		if c.MinimumValue.IsPositive() && e.Value().LessThan(c.MinimumValue) {
			return e, false
		}
		return e.byUnitPrice(), true
	case catalog.TagFreeGift:
		return e, e.Quantity() >= c.PurchaseNumber
	case catalog.TagScalablePercentage:
		if e.Quantity() < c.MinimumBuy {
			return e, false
		}
		return e.byUnitPrice(), true
	}
	return e, false
}

func (e Entry) byUnitPrice() Entry {
	lines := make([]Line, len(e.Lines))
	copy(lines, e.Lines)
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].UnitPrice.LessThan(lines[j].UnitPrice) })
	return Entry{Campaign: e.Campaign, Lines: lines}
}

// Map is the applicability map of one recalculation. Entries live in an
// arena in first-seen order; products point into it by campaign id.
type Map struct {
	entries   []Entry
	index     map[string]int
	byProduct map[string]string
}

func newMap() *Map {
	return &Map{index: make(map[string]int), byProduct: make(map[string]string)}
}

func (m *Map) add(c catalog.Campaign, l Line) {
	i, ok := m.index[c.ID]
	if !ok {
		i = len(m.entries)
		m.index[c.ID] = i
		m.entries = append(m.entries, Entry{Campaign: c})
	}
	m.entries[i].Lines = append(m.entries[i].Lines, l)
	m.byProduct[l.Product.ID] = c.ID
}

// Len returns the number of entries.
func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	return len(m.entries)
}

// Entries returns the entries in first-seen order.
func (m *Map) Entries() []Entry {
	if m == nil {
		return nil
	}
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// Entry returns the entry of a campaign.
func (m *Map) Entry(campaignID string) (Entry, bool) {
	if m == nil {
		return Entry{}, false
	}
	i, ok := m.index[campaignID]
	if !ok {
		return Entry{}, false
	}
	return m.entries[i], true
}

// CampaignFor returns the id of the campaign a product was resolved to.
func (m *Map) CampaignFor(productID string) (string, bool) {
	if m == nil {
		return "", false
	}
	id, ok := m.byProduct[productID]
	return id, ok
}

// Resolver builds applicability maps against the campaigns valid at Now.
type Resolver struct {
	Now func() time.Time
}

func (r Resolver) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Resolve groups lines by the first campaign valid for their product.
// Lines whose product has no valid campaign are left out.
func (r Resolver) Resolve(lines []Line) *Map {
	m := newMap()
	now := r.now()
	for _, l := range lines {
		campaigns := l.Product.ValidCampaigns(now)
		if len(campaigns) == 0 {
			continue
		}
		m.add(campaigns[0], l)
	}
	return m
}

// Applyable returns the entries that pass eligibility, in map order.
func Applyable(m *Map) []Entry {
	var out []Entry
	for _, e := range m.Entries() {
		if ordered, ok := e.Applyable(); ok {
			out = append(out, ordered)
		}
	}
	return out
}

// Conflicts returns the ids of campaigns sharing a product with another
// entry. The result is diagnostic and never blocks application.
func Conflicts(entries []Entry) []string {
	var out []string
	for i, e := range entries {
		if conflicting(e, entries, i) {
			out = append(out, e.Campaign.ID)
		}
	}
	return out
}

func conflicting(e Entry, entries []Entry, self int) bool {
	for j, other := range entries {
		if j == self || other.Campaign.ID == e.Campaign.ID {
			continue
		}
		for _, l := range e.Lines {
			for _, ol := range other.Lines {
				if l.Product.ID == ol.Product.ID {
					return true
				}
			}
		}
	}
	return false
}
