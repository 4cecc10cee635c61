package shipping_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/money"
	"github.com/noah-isme/toko-cart/internal/shipping"
)

func limit(v string) *decimal.Decimal {
	d := money.MustParse(v)
	return &d
}

func weightMethod() *shipping.Method {
	return &shipping.Method{
		ID:    "ctt",
		Model: shipping.ModelWeight,
		Price: money.MustParse("9.99"),
		Zones: []shipping.Zone{{
			ID:                "mainland",
			Countries:         []string{"PT"},
			FreeShippingOffer: true,
			MaxWeight:         money.MustParse("10"),
			MinValue:          limit("50"),
			Bands: []shipping.Band{
				{MinWeight: money.MustParse("0"), MaxWeight: money.MustParse("2"), Price: money.MustParse("3.50")},
				{MinWeight: money.MustParse("2"), MaxWeight: money.MustParse("20"), Price: money.MustParse("6.00")},
			},
		}},
	}
}

func TestFeeNotComputedWithoutContext(t *testing.T) {
	t.Parallel()

	calc := &shipping.Calculator{}
	fee, err := calc.Fee(context.Background(), shipping.Request{Country: "PT"})
	require.NoError(t, err)
	require.Nil(t, fee)

	fee, err = calc.Fee(context.Background(), shipping.Request{Method: weightMethod()})
	require.NoError(t, err)
	require.Nil(t, fee)
}

func TestFlatFee(t *testing.T) {
	t.Parallel()

	method := &shipping.Method{ID: "pickup", Model: shipping.ModelFlat, Price: money.MustParse("2.5")}
	fee, err := (&shipping.Calculator{}).Fee(context.Background(), shipping.Request{Method: method, Country: "PT"})
	require.NoError(t, err)
	require.Equal(t, "2.50", fee.Amount.StringFixed(2))
	require.Nil(t, fee.Threshold)
}

func TestWeightFeeRecordsThresholdUnderMaxWeight(t *testing.T) {
	t.Parallel()

	calc := &shipping.Calculator{}
	fee, err := calc.Fee(context.Background(), shipping.Request{
		Method:     weightMethod(),
		Country:    "pt",
		Weight:     money.MustParse("2"),
		ItemsTotal: money.MustParse("20"),
	})
	require.NoError(t, err)
	require.Equal(t, "mainland", fee.ZoneID)
	require.Equal(t, "3.50", fee.Amount.StringFixed(2), "first matching band wins on shared bounds")
	require.NotNil(t, fee.Threshold)
	require.Equal(t, "50", fee.Threshold.String())

	adj := fee.Adjustment(cartOwner)
	require.True(t, adj.Has("threshold"))
	require.Equal(t, "ctt", adj.Text("method"))
}

func TestWeightFeeOverMaxWeightHasNoThreshold(t *testing.T) {
	t.Parallel()

	fee, err := (&shipping.Calculator{}).Fee(context.Background(), shipping.Request{
		Method:     weightMethod(),
		Country:    "PT",
		Weight:     money.MustParse("12"),
		ItemsTotal: money.MustParse("100"),
	})
	require.NoError(t, err)
	require.Nil(t, fee.Threshold)
	require.Equal(t, "6.00", fee.Amount.StringFixed(2))
	require.False(t, fee.Adjustment(cartOwner).Has("threshold"))
}

func TestWeightFeeBlockedItemsHaveNoThreshold(t *testing.T) {
	t.Parallel()

	fee, err := (&shipping.Calculator{}).Fee(context.Background(), shipping.Request{
		Method:             weightMethod(),
		Country:            "PT",
		Weight:             money.MustParse("1"),
		BlocksFreeShipping: true,
	})
	require.NoError(t, err)
	require.Nil(t, fee.Threshold)
}

func TestWeightFeeWaivedAboveThreshold(t *testing.T) {
	t.Parallel()

	fee, err := (&shipping.Calculator{}).Fee(context.Background(), shipping.Request{
		Method:     weightMethod(),
		Country:    "PT",
		Weight:     money.MustParse("1"),
		ItemsTotal: money.MustParse("50"),
	})
	require.NoError(t, err)
	require.True(t, fee.Amount.IsZero())
	require.Equal(t, "3.50", fee.Price.StringFixed(2))
	require.NotNil(t, fee.Threshold)
}

func TestWeightFeeOfferWithoutMinimumIsNotWaived(t *testing.T) {
	t.Parallel()

	method := weightMethod()
	method.Zones[0].MinValue = nil
	fee, err := (&shipping.Calculator{}).Fee(context.Background(), shipping.Request{
		Method:     method,
		Country:    "PT",
		Weight:     money.MustParse("1"),
		ItemsTotal: money.MustParse("80"),
	})
	require.NoError(t, err)
	require.Nil(t, fee.Threshold)
	require.Equal(t, "3.50", fee.Amount.StringFixed(2))
	require.False(t, fee.Adjustment(cartOwner).Has("threshold"))
}

func TestWeightFeeErrors(t *testing.T) {
	t.Parallel()

	calc := &shipping.Calculator{}
	_, err := calc.Fee(context.Background(), shipping.Request{Method: weightMethod(), Country: "ES", Weight: money.MustParse("1")})
	require.ErrorIs(t, err, shipping.ErrNoZone)

	_, err = calc.Fee(context.Background(), shipping.Request{Method: weightMethod(), Country: "PT", Weight: money.MustParse("25")})
	require.ErrorIs(t, err, shipping.ErrNoWeightBand)
}

type stubGeocoder struct {
	locality string
	err      error
	calls    int
}

func (s *stubGeocoder) Locality(ctx context.Context, prefix, suffix string) (string, error) {
	s.calls++
	return s.locality, s.err
}

func homeMethod() *shipping.Method {
	return &shipping.Method{ID: "home", Model: shipping.ModelHomeDelivery}
}

func directory() *shipping.MemoryDirectory {
	return shipping.NewMemoryDirectory([]shipping.PostalCodeRate{
		{PostalCode: "1000-001", Parish: "Arroios", Price: money.MustParse("2")},
		{PostalCode: "2000", Parish: "Santarém", Price: money.MustParse("4"), FreeShippingOffer: true, MinValue: limit("30")},
		{PostalCode: "5000", Parish: "Sé", Price: money.MustParse("6"), FreeShippingOffer: true},
		{PostalCode: "3000", Parish: "Sé Nova", Price: money.MustParse("5")},
		{PostalCode: "3000", Parish: "Santo António", Price: money.MustParse("5")},
		{PostalCode: "4000", Parish: "Bonfim", Price: money.MustParse("3")},
		{PostalCode: "4000", Parish: "Campanhã", Price: money.MustParse("7")},
	})
}

func TestHomeDeliveryResolution(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		code     string
		locality string
		price    string
		geocoded bool
	}{
		{name: "exact", code: "1000-001", price: "2.00"},
		{name: "single prefix", code: "2000-123", price: "4.00"},
		{name: "equal prefix prices", code: "3000-555", price: "5.00"},
		{name: "geocoded parish", code: "4000-100", locality: "CAMPANHÃ", price: "7.00", geocoded: true},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			geo := &stubGeocoder{locality: tc.locality}
			calc := &shipping.Calculator{Directory: directory(), Geocoder: geo}
			fee, err := calc.Fee(context.Background(), shipping.Request{Method: homeMethod(), PostalCode: tc.code})
			require.NoError(t, err)
			require.Equal(t, tc.price, fee.Amount.StringFixed(2))
			require.Equal(t, tc.geocoded, geo.calls > 0)
		})
	}
}

func TestHomeDeliveryThreshold(t *testing.T) {
	t.Parallel()

	calc := &shipping.Calculator{Directory: directory()}
	fee, err := calc.Fee(context.Background(), shipping.Request{Method: homeMethod(), PostalCode: "2000-123", ItemsTotal: money.MustParse("31")})
	require.NoError(t, err)
	require.True(t, fee.Amount.IsZero())
	require.Equal(t, "30", fee.Threshold.String())
}

func TestHomeDeliveryOfferWithoutMinimumIsNotWaived(t *testing.T) {
	t.Parallel()

	calc := &shipping.Calculator{Directory: directory()}
	fee, err := calc.Fee(context.Background(), shipping.Request{Method: homeMethod(), PostalCode: "5000", ItemsTotal: money.MustParse("200")})
	require.NoError(t, err)
	require.Nil(t, fee.Threshold)
	require.Equal(t, "6.00", fee.Amount.StringFixed(2))
}

func TestHomeDeliveryIneligible(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		code string
		geo  shipping.Geocoder
	}{
		{name: "unknown prefix", code: "9999-000", geo: &stubGeocoder{}},
		{name: "geocoder failure", code: "4000-100", geo: &stubGeocoder{err: errors.New("timeout")}},
		{name: "no parish match", code: "4000-100", geo: &stubGeocoder{locality: "Lisboa"}},
		{name: "no geocoder", code: "4000-100"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			calc := &shipping.Calculator{Directory: directory(), Geocoder: tc.geo}
			_, err := calc.Fee(context.Background(), shipping.Request{Method: homeMethod(), PostalCode: tc.code})
			require.ErrorIs(t, err, shipping.ErrPostalCodeIneligible)
		})
	}
}

func TestHomeDeliveryRequiresDirectory(t *testing.T) {
	t.Parallel()

	_, err := (&shipping.Calculator{}).Fee(context.Background(), shipping.Request{Method: homeMethod(), PostalCode: "1000-001"})
	require.ErrorIs(t, err, shipping.ErrDirectoryUnavailable)
}
