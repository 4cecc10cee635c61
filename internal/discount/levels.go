package discount

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/catalog"
)

// LevelList assigns a tier percentage to each of units purchased units.
// With Highest set every unit gets the tier reached by the unit count.
// Otherwise tiers are dealt round-robin and the list is sorted ascending.
func LevelList(c catalog.Campaign, units int) []decimal.Decimal {
	if len(c.Levels) == 0 || units <= 0 {
		return nil
	}
	out := make([]decimal.Decimal, units)
	if c.Highest {
		idx := units
		if idx > len(c.Levels) {
			idx = len(c.Levels)
		}
		level := c.Levels[idx-1]
		for i := range out {
			out[i] = level
		}
		return out
	}
	for i := range out {
		out[i] = c.Levels[i%len(c.Levels)]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LessThan(out[j]) })
	return out
}
