package shipping

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Model selects how a shipment method prices a cart.
type Model string

const (
	ModelFlat         Model = "flat"
	ModelWeight       Model = "weight"
	ModelHomeDelivery Model = "home_delivery"
)

// Band prices carts whose weight falls within [MinWeight, MaxWeight].
type Band struct {
	MinWeight decimal.Decimal
	MaxWeight decimal.Decimal
	Price     decimal.Decimal
}

// Contains reports whether weight lies inside the band, bounds included.
func (b Band) Contains(weight decimal.Decimal) bool {
	return weight.GreaterThanOrEqual(b.MinWeight) && weight.LessThanOrEqual(b.MaxWeight)
}

// Zone groups destination countries sharing weight bands and a free shipping offer.
type Zone struct {
	ID                string
	Countries         []string
	FreeShippingOffer bool
	MaxWeight         decimal.Decimal
	// MinValue is the free shipping threshold; nil disables the offer.
	MinValue *decimal.Decimal
	Bands    []Band
}

// Covers reports whether the zone ships to country.
func (z Zone) Covers(country string) bool {
	for _, c := range z.Countries {
		if strings.EqualFold(c, country) {
			return true
		}
	}
	return false
}

// Band returns the first band in declared order containing weight.
func (z Zone) Band(weight decimal.Decimal) (Band, bool) {
	for _, b := range z.Bands {
		if b.Contains(weight) {
			return b, true
		}
	}
	return Band{}, false
}

// OfferApplies reports whether a cart of the given weight qualifies for the
// zone's free shipping offer.
func (z Zone) OfferApplies(weight decimal.Decimal) bool {
	if !z.FreeShippingOffer {
		return false
	}
	return z.MaxWeight.IsZero() || weight.LessThan(z.MaxWeight)
}

// Method is a selectable shipment method.
type Method struct {
	ID    string
	Name  string
	Price decimal.Decimal
	Model Model
	Zones []Zone
}

// UsesWeight reports whether the method prices by weight band.
func (m Method) UsesWeight() bool { return m.Model == ModelWeight }

// IsHomeDelivery reports whether the method prices by postal code.
func (m Method) IsHomeDelivery() bool { return m.Model == ModelHomeDelivery }

// ZoneFor returns the first zone covering country.
func (m Method) ZoneFor(country string) (Zone, bool) {
	if country == "" {
		return Zone{}, false
	}
	for _, z := range m.Zones {
		if z.Covers(country) {
			return z, true
		}
	}
	return Zone{}, false
}
