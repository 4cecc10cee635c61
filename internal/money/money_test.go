package money_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/money"
)

func TestRound(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"1.005":  "1.01",
		"-0.005": "-0.01",
		"2.344":  "2.34",
		"2.345":  "2.35",
		"-2.345": "-2.35",
		"7":      "7.00",
	}
	for in, want := range cases {
		in, want := in, want
		t.Run(in, func(t *testing.T) {
			t.Parallel()
			require.Equal(t, want, money.Round(money.MustParse(in)).StringFixed(money.Places))
		})
	}
}

func TestExtractVAT(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		total string
		rate  string
		want  string
	}{
		{name: "standard rate", total: "30.00", rate: "0.23", want: "5.61"},
		{name: "reduced rate", total: "10.60", rate: "0.06", want: "0.60"},
		{name: "zero rate", total: "12.00", rate: "0", want: "0.00"},
		{name: "zero divisor", total: "30.00", rate: "-1", want: "0.00"},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := money.ExtractVAT(money.MustParse(tc.total), money.MustParse(tc.rate))
			require.Equal(t, tc.want, money.Round(got).StringFixed(money.Places))
		})
	}
}

func TestParseOptional(t *testing.T) {
	t.Parallel()

	d, err := money.ParseOptional("  ")
	require.NoError(t, err)
	require.Nil(t, d)

	d, err = money.ParseOptional("0")
	require.NoError(t, err)
	require.NotNil(t, d)
	require.True(t, d.IsZero())

	_, err = money.ParseOptional("ten")
	require.Error(t, err)
}
