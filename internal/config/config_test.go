package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"CART_SESSION_KEY":       "cart",
		"CHECKOUT_PACKAGING_FEE": "",
		"STORE_DISCOUNT":         "",
		"MAX_STOCK_CART":         "",
		"RATE_LIMIT_MAX":         "",
		"GEOCODER_TIMEOUT":       "",
		"PORT":                   "",
	})
	require.NoError(t, err)
	require.Equal(t, "cart", cfg.Cart.SessionKey)
	require.Nil(t, cfg.Cart.PackagingFee)
	require.True(t, cfg.Cart.StoreDiscount.IsZero())
	require.Zero(t, cfg.Cart.MaxStockCart)
	require.Equal(t, 60, cfg.RateLimit.Max)
	require.Equal(t, 3*time.Second, cfg.Geocoder.Timeout)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadCartSettings(t *testing.T) {
	cfg, err := config.LoadForTests(map[string]string{
		"CART_SESSION_KEY":               "cart",
		"STORE_DISCOUNT":                 "5",
		"CAMPAIGN_IGNORE_STORE_DISCOUNT": "true",
		"CHECKOUT_PACKAGING_FEE":         "1.50",
		"INFINITE_STOCK":                 "yes",
		"MAX_STOCK_CART":                 "12",
		"CARD_PERCENTAGE":                "10",
		"CARD_MEDICAL_PERCENTAGE":        "5",
		"CARD_PRICE_CEILING":             "250",
		"CART_EXTRA_PRODUCT_ATTRIBUTES":  "color,size",
		"GEOCODE_CACHE_TTL":              "1h",
	})
	require.NoError(t, err)
	require.Equal(t, "5", cfg.Cart.StoreDiscount.String())
	require.True(t, cfg.Cart.CampaignsIgnoreStoreDiscount)
	require.NotNil(t, cfg.Cart.PackagingFee)
	require.Equal(t, "1.5", cfg.Cart.PackagingFee.String())
	require.True(t, cfg.Cart.InfiniteStock)
	require.Equal(t, 12, cfg.Cart.MaxStockCart)
	require.Equal(t, "10", cfg.Card.Percentage.String())
	require.Equal(t, "5", cfg.Card.MedicalPercentage.String())
	require.Equal(t, "250", cfg.Card.PriceCeiling.String())
	require.Equal(t, "color,size", cfg.Cart.ExtraProductAttributes)
	require.Equal(t, time.Hour, cfg.Geocoder.CacheTTL)
}

func TestLoadRejectsMissingSessionKey(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{"CART_SESSION_KEY": ""})
	require.ErrorContains(t, err, "CART_SESSION_KEY")
}

func TestLoadRejectsInvalidNumbers(t *testing.T) {
	_, err := config.LoadForTests(map[string]string{
		"CART_SESSION_KEY":       "cart",
		"STORE_DISCOUNT":         "ten",
		"MAX_STOCK_CART":         "many",
		"CHECKOUT_PACKAGING_FEE": "-1",
	})
	require.Error(t, err)
	require.ErrorContains(t, err, "STORE_DISCOUNT")
	require.ErrorContains(t, err, "MAX_STOCK_CART")
	require.ErrorContains(t, err, "CHECKOUT_PACKAGING_FEE")
}
