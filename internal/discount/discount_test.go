package discount_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/discount"
	"github.com/noah-isme/toko-cart/internal/money"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func now() time.Time { return fixedNow }

func line(id string, price string, qty int, campaigns ...catalog.Campaign) discount.Line {
	return discount.Line{
		ID:        id,
		Product:   catalog.Product{ID: "p-" + id, SKU: "SKU-" + id, PriceVat: money.MustParse(price), Campaigns: campaigns},
		Quantity:  qty,
		UnitPrice: money.MustParse(price),
	}
}

func amounts(ledger *adjustment.Ledger, l discount.Line, t adjustment.Type) []string {
	var out []string
	for _, adj := range ledger.ByType(l.Owner(), t) {
		out = append(out, adj.Amount.StringFixed(2))
	}
	return out
}

func apply(t *testing.T, a *discount.Applier, lines ...discount.Line) *adjustment.Ledger {
	t.Helper()
	ledger := adjustment.NewLedger()
	require.NoError(t, a.ApplyItemRules(ledger, lines))
	entries := discount.Applyable(discount.Resolver{Now: now}.Resolve(lines))
	require.NoError(t, a.ApplyCampaigns(ledger, entries))
	require.NoError(t, a.ApplyStoreDiscount(ledger, lines))
	return ledger
}

func TestResolveFirstCampaignWins(t *testing.T) {
	first := catalog.Campaign{ID: "first", Tag: catalog.TagPercentageOrNumeric}
	second := catalog.Campaign{ID: "second", Tag: catalog.TagPercentageOrNumeric}
	expired := catalog.Campaign{ID: "old", Tag: catalog.TagPercentageOrNumeric, EndsAt: ptrTime(fixedNow.Add(-time.Hour))}

	m := discount.Resolver{Now: now}.Resolve([]discount.Line{
		line("a", "10.00", 1, expired, first, second),
		line("b", "5.00", 1, second),
		line("c", "5.00", 1),
	})

	require.Equal(t, 2, m.Len())
	id, ok := m.CampaignFor("p-a")
	require.True(t, ok)
	require.Equal(t, "first", id)
	_, ok = m.CampaignFor("p-c")
	require.False(t, ok)
	entry, ok := m.Entry("second")
	require.True(t, ok)
	require.Len(t, entry.Lines, 1)
	require.Equal(t, "b", entry.Lines[0].ID)
}

func TestApplyableThresholdsAndOrdering(t *testing.T) {
	cheapest := catalog.Campaign{ID: "c", Tag: catalog.TagCheapestFree, PurchaseNumber: 3, MinimumValue: money.MustParse("15")}
	lines := []discount.Line{line("a", "5.00", 1, cheapest), line("b", "3.00", 1, cheapest), line("c", "8.00", 1, cheapest)}

	entries := discount.Applyable(discount.Resolver{Now: now}.Resolve(lines))
	require.Len(t, entries, 1)
	require.Equal(t, []string{"b", "a", "c"}, lineIDs(entries[0]))

	entries = discount.Applyable(discount.Resolver{Now: now}.Resolve(lines[:2]))
	require.Empty(t, entries)

	wide := catalog.Campaign{ID: "w", Tag: catalog.TagCartWideOffer}
	unknown := catalog.Campaign{ID: "u", Tag: "mystery"}
	entries = discount.Applyable(discount.Resolver{Now: now}.Resolve([]discount.Line{line("x", "1.00", 5, wide), line("y", "1.00", 5, unknown)}))
	require.Empty(t, entries)
}

func TestConflictsReportSharedProducts(t *testing.T) {
	shared := line("a", "5.00", 1)
	entries := []discount.Entry{
		{Campaign: catalog.Campaign{ID: "one"}, Lines: []discount.Line{shared}},
		{Campaign: catalog.Campaign{ID: "two"}, Lines: []discount.Line{shared, line("b", "1.00", 1)}},
		{Campaign: catalog.Campaign{ID: "three"}, Lines: []discount.Line{line("c", "1.00", 1)}},
	}
	require.Equal(t, []string{"one", "two"}, discount.Conflicts(entries))
}

func TestCheapestFreeSingleUnit(t *testing.T) {
	c := catalog.Campaign{ID: "c", Tag: catalog.TagCheapestFree, PurchaseNumber: 3}
	a, b, d := line("a", "5.00", 1, c), line("b", "3.00", 1, c), line("d", "8.00", 1, c)

	ledger := apply(t, &discount.Applier{Now: now}, a, b, d)

	require.Equal(t, []string{"-3.00"}, amounts(ledger, b, adjustment.CampaignCheapest))
	require.Empty(t, amounts(ledger, a, adjustment.CampaignCheapest))
	require.Empty(t, amounts(ledger, d, adjustment.CampaignCheapest))
	adj, ok, err := ledger.FirstByType(b.Owner(), adjustment.CampaignCheapest)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, adj.Int(adjustment.KeyQuantity))
	require.Equal(t, 0, adj.Int(adjustment.KeyRemainderQuantity))
	require.Equal(t, 0, discount.EffectiveQuantity(ledger, b))
}

func TestCheapestFreeCarriesRemainder(t *testing.T) {
	c := catalog.Campaign{ID: "c", Tag: catalog.TagCheapestFree, PurchaseNumber: 3, Repeat: true}
	cheap, dear := line("cheap", "3.00", 1, c), line("dear", "5.00", 5, c)

	ledger := apply(t, &discount.Applier{Now: now}, dear, cheap)

	first, _, err := ledger.FirstByType(cheap.Owner(), adjustment.CampaignCheapest)
	require.NoError(t, err)
	require.Equal(t, "-3.00", first.Amount.StringFixed(2))
	require.Equal(t, 1, first.Int(adjustment.KeyRemainderQuantity))
	require.Equal(t, []string{"-5.00"}, amounts(ledger, dear, adjustment.CampaignCheapest))
	require.Equal(t, 4, discount.EffectiveQuantity(ledger, dear))
}

func TestSameProductFreeAndGift(t *testing.T) {
	same := catalog.Campaign{ID: "s", Tag: catalog.TagSameProductFree, PurchaseNumber: 2}
	gift := catalog.Campaign{ID: "g", Tag: catalog.TagFreeGift, PurchaseNumber: 1, GiftSKU: "GIFT", GiftQuantity: 2}
	a, b := line("a", "4.00", 5, same), line("b", "4.00", 1, same)
	g1, g2 := line("g1", "9.00", 1, gift), line("g2", "9.00", 1, gift)

	ledger := apply(t, &discount.Applier{Now: now}, a, b, g1, g2)

	adj, ok, err := ledger.FirstByType(a.Owner(), adjustment.CampaignSameFree)
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, adj.Amount.IsZero())
	require.Equal(t, 2, adj.Int(adjustment.KeyQuantity))
	require.Equal(t, "SKU-a", adj.Text(adjustment.KeySKU))
	require.Empty(t, ledger.ByType(b.Owner(), adjustment.CampaignSameFree))

	require.Len(t, ledger.ByType(g1.Owner(), adjustment.CampaignFreeGift), 1)
	require.Empty(t, ledger.ByType(g2.Owner(), adjustment.CampaignFreeGift))
	giftAdj, _, err := ledger.FirstByType(g1.Owner(), adjustment.CampaignFreeGift)
	require.NoError(t, err)
	require.Equal(t, "GIFT", giftAdj.Text(adjustment.KeySKU))
	require.Equal(t, 2, giftAdj.Int(adjustment.KeyQuantity))
}

func TestTieredLevels(t *testing.T) {
	levels := []decimal.Decimal{money.MustParse("10"), money.MustParse("20"), money.MustParse("30")}
	c := catalog.Campaign{ID: "t", Tag: catalog.TagScalablePercentage, MinimumBuy: 2, Levels: levels}

	require.Equal(t, []string{"10", "10", "20", "20", "30"}, levelStrings(discount.LevelList(c, 5)))
	c.Highest = true
	require.Equal(t, []string{"20", "20"}, levelStrings(discount.LevelList(c, 2)))
	require.Equal(t, []string{"30", "30", "30", "30"}, levelStrings(discount.LevelList(c, 4)))
	c.Highest = false

	l := line("a", "10.00", 3, c)
	ledger := apply(t, &discount.Applier{Now: now}, l)
	require.Equal(t, []string{"-1.00", "-2.00", "-3.00"}, amounts(ledger, l, adjustment.CampaignScalable))

	again := apply(t, &discount.Applier{Now: now}, l)
	require.Equal(t, ledger.Fingerprint(), again.Fingerprint())
}

func TestPercentageCampaignAfterItemRules(t *testing.T) {
	c := catalog.Campaign{ID: "p", Tag: catalog.TagPercentageOrNumeric, Kind: catalog.KindPercentage, Value: money.MustParse("10"), CanStackDirectDiscount: true}
	l := line("a", "10.00", 3, c)
	l.Product.Intervals = []catalog.IntervalPrice{{MinQuantity: 3, Price: money.MustParse("9.00")}}
	l.Product.Direct = &catalog.DirectDiscount{Kind: catalog.KindNumeric, Value: money.MustParse("1.00"), StacksWithCampaigns: true}

	ledger := apply(t, &discount.Applier{Now: now}, l)

	require.Equal(t, []string{"-3.00"}, amounts(ledger, l, adjustment.IntervalDiscount))
	require.Equal(t, []string{"-3.00"}, amounts(ledger, l, adjustment.DirectDiscount))
	require.Equal(t, []string{"-2.40"}, amounts(ledger, l, adjustment.CampaignPercentNum))
	require.Equal(t, "7.20", discount.AdjustedPrice(ledger, l).StringFixed(2))
	require.Equal(t, "-8.40", ledger.Sum(l.Owner()).StringFixed(2))
}

func TestDirectDiscountStacking(t *testing.T) {
	noStack := catalog.Campaign{ID: "p", Tag: catalog.TagPercentageOrNumeric, Kind: catalog.KindNumeric, Value: money.MustParse("2")}
	l := line("a", "10.00", 1, noStack)
	l.Product.Direct = &catalog.DirectDiscount{Kind: catalog.KindPercentage, Value: money.MustParse("50")}

	ledger := apply(t, &discount.Applier{Now: now}, l)

	require.Empty(t, ledger.ByType(l.Owner(), adjustment.DirectDiscount))
	require.Empty(t, ledger.ByType(l.Owner(), adjustment.CampaignPercentNum))

	l.Product.Campaigns = nil
	ledger = apply(t, &discount.Applier{Now: now}, l)
	require.Equal(t, []string{"-5.00"}, amounts(ledger, l, adjustment.DirectDiscount))
}

func TestStoreDiscountExclusions(t *testing.T) {
	settings := discount.Settings{StoreDiscount: money.MustParse("10"), CampaignsIgnoreStoreDiscount: true}
	c := catalog.Campaign{ID: "p", Tag: catalog.TagPercentageOrNumeric, Kind: catalog.KindNumeric, Value: money.MustParse("1")}
	plain := line("plain", "20.00", 2)
	flagged := line("flagged", "20.00", 1)
	flagged.Product.NoStoreDiscount = true
	promoted := line("promoted", "20.00", 1, c)

	ledger := apply(t, &discount.Applier{Now: now, Settings: settings}, plain, flagged, promoted)

	require.Equal(t, []string{"-4.00"}, amounts(ledger, plain, adjustment.StoreDiscount))
	require.Empty(t, amounts(ledger, flagged, adjustment.StoreDiscount))
	require.Empty(t, amounts(ledger, promoted, adjustment.StoreDiscount))

	settings.CampaignsIgnoreStoreDiscount = false
	ledger = apply(t, &discount.Applier{Now: now, Settings: settings}, promoted)
	require.Equal(t, []string{"-1.90"}, amounts(ledger, promoted, adjustment.StoreDiscount))
}

func lineIDs(e discount.Entry) []string {
	out := make([]string, 0, len(e.Lines))
	for _, l := range e.Lines {
		out = append(out, l.ID)
	}
	return out
}

func levelStrings(levels []decimal.Decimal) []string {
	out := make([]string, 0, len(levels))
	for _, l := range levels {
		out = append(out, l.String())
	}
	return out
}

func ptrTime(t time.Time) *time.Time { return &t }
