// Package shipping computes the shipping fee of a cart from the selected
// shipment method and destination.
package shipping

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/money"
	"github.com/noah-isme/toko-cart/internal/obs"
)

var (
	// ErrNoZone is returned when a weight priced method has no zone for the destination country.
	ErrNoZone = errors.New("shipping method has no zone for destination")
	// ErrNoWeightBand is returned when no band of the zone contains the cart weight.
	ErrNoWeightBand = errors.New("shipping method has no weight band for cart")
	// ErrPostalCodeIneligible is returned when home delivery is unavailable for the postal code.
	ErrPostalCodeIneligible = errors.New("postal code is not eligible for home delivery")
	// ErrDirectoryUnavailable is returned when a home delivery method is used without a postal directory.
	ErrDirectoryUnavailable = errors.New("postal code directory not configured")
)

// Request carries the cart facts the fee depends on.
type Request struct {
	Method             *Method
	Country            string
	PostalCode         string
	Weight             decimal.Decimal
	ItemsTotal         decimal.Decimal
	BlocksFreeShipping bool
}

// Fee is a resolved shipping fee.
type Fee struct {
	MethodID  string
	ZoneID    string
	Price     decimal.Decimal
	Amount    decimal.Decimal
	Threshold *decimal.Decimal
}

// Adjustment renders the fee as a cart shipping adjustment.
func (f *Fee) Adjustment(owner adjustment.Owner) adjustment.Adjustment {
	data := adjustment.Data{adjustment.KeyMethod: f.MethodID, adjustment.KeyValue: f.Price}
	if f.Threshold != nil {
		data[adjustment.KeyThreshold] = *f.Threshold
	}
	return adjustment.New(adjustment.Shipping, owner, f.Amount, data)
}

// Calculator resolves shipping fees. Directory and Geocoder are only needed
// for home delivery methods.
type Calculator struct {
	Directory PostalDirectory
	Geocoder  Geocoder
	Logger    zerolog.Logger
}

// Fee prices req. It returns nil without error when the method or
// destination is missing.
func (c *Calculator) Fee(ctx context.Context, req Request) (*Fee, error) {
	if req.Method == nil {
		return nil, nil
	}
	m := req.Method
	if m.IsHomeDelivery() && req.PostalCode == "" {
		return nil, nil
	}
	if !m.IsHomeDelivery() && req.Country == "" {
		return nil, nil
	}

	fee := &Fee{MethodID: m.ID, Price: m.Price}
	if zone, ok := m.ZoneFor(req.Country); ok {
		fee.ZoneID = zone.ID
	}

	switch m.Model {
	case ModelWeight:
		if err := c.weightFee(fee, req); err != nil {
			return nil, c.fail(err, m)
		}
	case ModelHomeDelivery:
		if err := c.postalFee(ctx, fee, req); err != nil {
			return nil, c.fail(err, m)
		}
	}

	fee.Price = money.Round(fee.Price)
	fee.Amount = fee.Price
	if fee.Threshold != nil && req.ItemsTotal.GreaterThanOrEqual(*fee.Threshold) {
		fee.Amount = decimal.Zero
	}
	return fee, nil
}

func (c *Calculator) weightFee(fee *Fee, req Request) error {
	zone, ok := req.Method.ZoneFor(req.Country)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoZone, req.Country)
	}
	band, ok := zone.Band(req.Weight)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoWeightBand, req.Weight.String())
	}
	fee.ZoneID = zone.ID
	fee.Price = band.Price
	if zone.OfferApplies(req.Weight) && zone.MinValue != nil && !req.BlocksFreeShipping {
		threshold := *zone.MinValue
		fee.Threshold = &threshold
	}
	return nil
}

func (c *Calculator) postalFee(ctx context.Context, fee *Fee, req Request) error {
	if c == nil || c.Directory == nil {
		return ErrDirectoryUnavailable
	}
	rate, err := resolvePostalCode(ctx, c.Directory, c.Geocoder, req.PostalCode)
	if err != nil {
		return err
	}
	fee.Price = rate.Price
	if rate.FreeShippingOffer && rate.MinValue != nil && !req.BlocksFreeShipping {
		threshold := *rate.MinValue
		fee.Threshold = &threshold
	}
	return nil
}

func (c *Calculator) fail(err error, m *Method) error {
	reason := "other"
	switch {
	case errors.Is(err, ErrNoZone):
		reason = "no_zone"
	case errors.Is(err, ErrNoWeightBand):
		reason = "no_weight_band"
	case errors.Is(err, ErrPostalCodeIneligible):
		reason = "postal_code"
	case errors.Is(err, ErrDirectoryUnavailable):
		reason = "directory"
	}
	if obs.ShippingFeeErrorsTotal != nil {
		obs.ShippingFeeErrorsTotal.WithLabelValues(reason).Inc()
	}
	if c != nil {
		c.Logger.Error().Err(err).Str("method", m.ID).Str("reason", reason).Msg("shipping_fee_failed")
	}
	return fmt.Errorf("shipping fee for %s: %w", m.ID, err)
}
