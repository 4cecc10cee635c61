package discount

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/money"
)

// EffectiveQuantity is the stored quantity minus the units already given
// away by cheapest-free adjustments.
func EffectiveQuantity(ledger *adjustment.Ledger, line Line) int {
	qty := line.Quantity
	for _, adj := range ledger.ByType(line.Owner(), adjustment.CampaignCheapest) {
		qty -= adj.Int(adjustment.KeyQuantity)
	}
	if qty < 0 {
		return 0
	}
	return qty
}

// AdjustedPrice is the unit price minus every per-unit reduction recorded
// on the line so far.
func AdjustedPrice(ledger *adjustment.Ledger, line Line) decimal.Decimal {
	price := line.UnitPrice
	for _, adj := range ledger.For(line.Owner()) {
		price = price.Sub(adj.SingleAmount())
	}
	return price
}

// Settings are the storewide knobs consulted by the applier.
type Settings struct {
	StoreDiscount                decimal.Decimal
	CampaignsIgnoreStoreDiscount bool
}

// Applier writes discount adjustments into a ledger.
type Applier struct {
	Settings Settings
	Now      func() time.Time
	Logger   zerolog.Logger
}

func (a *Applier) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// ApplyItemRules records the interval and direct discounts of every line.
func (a *Applier) ApplyItemRules(ledger *adjustment.Ledger, lines []Line) error {
	now := a.now()
	for _, line := range lines {
		if price, ok := line.Product.Interval(EffectiveQuantity(ledger, line)); ok {
			single := line.UnitPrice.Sub(price)
			if err := a.perUnit(ledger, adjustment.IntervalDiscount, line, single, adjustment.Data{
				adjustment.KeyValue: price,
			}); err != nil {
				return err
			}
		}
		direct := line.Product.ValidDirectDiscount(now)
		if direct == nil || !directStacks(line.Product, now) {
			continue
		}
		if err := a.perUnit(ledger, adjustment.DirectDiscount, line, direct.Single(AdjustedPrice(ledger, line)), adjustment.Data{
			adjustment.KeyValue: direct.Value,
		}); err != nil {
			return err
		}
	}
	return nil
}

func directStacks(p catalog.Product, now time.Time) bool {
	campaigns := p.ValidCampaigns(now)
	return len(campaigns) == 0 || campaigns[0].CanStackDirectDiscount
}

// ApplyCampaigns dispatches every applyable entry by campaign tag.
// Unknown tags are skipped.
func (a *Applier) ApplyCampaigns(ledger *adjustment.Ledger, entries []Entry) error {
	now := a.now()
	for _, e := range entries {
		var err error
		switch e.Campaign.Tag {
		case catalog.TagPercentageOrNumeric:
			err = a.percentageOrNumeric(ledger, e, now)
		case catalog.TagCheapestFree:
			err = a.cheapestFree(ledger, e, now)
		case catalog.TagSameProductFree:
			err = a.sameProductFree(ledger, e, now)
		case catalog.TagFreeGift:
			err = a.freeGift(ledger, e, now)
		case catalog.TagScalablePercentage:
			err = a.tiered(ledger, e, now)
		default:
			a.Logger.Debug().Str("campaign", e.Campaign.ID).Str("tag", string(e.Campaign.Tag)).Msg("campaign_skipped")
		}
		if err != nil {
			return fmt.Errorf("campaign %s: %w", e.Campaign.ID, err)
		}
	}
	return nil
}

// skip reports lines whose direct discount excludes campaign discounts.
func skip(line Line, now time.Time) bool {
	direct := line.Product.ValidDirectDiscount(now)
	return direct != nil && !direct.StacksWithCampaigns
}

func (a *Applier) percentageOrNumeric(ledger *adjustment.Ledger, e Entry, now time.Time) error {
	for _, line := range e.Lines {
		if skip(line, now) {
			continue
		}
		single := e.Campaign.Single(AdjustedPrice(ledger, line))
		if err := a.perUnit(ledger, adjustment.CampaignPercentNum, line, single, adjustment.Data{
			adjustment.KeyCampaign: e.Campaign.ID,
			adjustment.KeyValue:    e.Campaign.Value,
		}); err != nil {
			return err
		}
	}
	return nil
}

// pass carries state across the lines of one entry within a single
// recalculation.
type pass struct {
	remainder int
}

func freeUnits(e Entry) int {
	c := e.Campaign
	if !c.Repeat {
		return c.FreeUnits()
	}
	if c.PurchaseNumber <= 0 {
		return c.FreeUnits()
	}
	return c.FreeUnits() * (e.Quantity() / c.PurchaseNumber)
}

func (a *Applier) cheapestFree(ledger *adjustment.Ledger, e Entry, now time.Time) error {
	p := pass{remainder: freeUnits(e)}
	for _, line := range e.Lines {
		if p.remainder <= 0 {
			break
		}
		if skip(line, now) {
			continue
		}
		take := EffectiveQuantity(ledger, line)
		if take > p.remainder {
			take = p.remainder
		}
		if take <= 0 {
			continue
		}
		price := AdjustedPrice(ledger, line)
		amount := money.Round(price.Mul(decimal.NewFromInt(int64(take)))).Neg()
		remainder := p.remainder - take
		if _, err := ledger.Add(adjustment.New(adjustment.CampaignCheapest, line.Owner(), amount, adjustment.Data{
			adjustment.KeyCampaign:          e.Campaign.ID,
			adjustment.KeyQuantity:          take,
			adjustment.KeyRemainderQuantity: remainder,
		})); err != nil {
			return err
		}
		p.remainder = remainder
	}
	return nil
}

func (a *Applier) sameProductFree(ledger *adjustment.Ledger, e Entry, now time.Time) error {
	n := e.Campaign.PurchaseNumber
	if n <= 0 {
		return nil
	}
	for _, line := range e.Lines {
		if skip(line, now) {
			continue
		}
		free := e.Campaign.FreeUnits() * (line.Quantity / n)
		if free == 0 {
			continue
		}
		if _, err := ledger.Add(adjustment.New(adjustment.CampaignSameFree, line.Owner(), decimal.Zero, adjustment.Data{
			adjustment.KeyCampaign: e.Campaign.ID,
			adjustment.KeyQuantity: free,
			adjustment.KeySKU:      line.Product.SKU,
		})); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) freeGift(ledger *adjustment.Ledger, e Entry, now time.Time) error {
	for _, line := range e.Lines {
		if skip(line, now) {
			continue
		}
		_, err := ledger.Add(adjustment.New(adjustment.CampaignFreeGift, line.Owner(), decimal.Zero, adjustment.Data{
			adjustment.KeyCampaign: e.Campaign.ID,
			adjustment.KeyQuantity: e.Campaign.GiftUnits(),
			adjustment.KeySKU:      e.Campaign.GiftSKU,
		}))
		return err
	}
	return nil
}

func (a *Applier) tiered(ledger *adjustment.Ledger, e Entry, now time.Time) error {
	levels := LevelList(e.Campaign, e.Quantity())
	next := 0
	for _, line := range e.Lines {
		if skip(line, now) {
			continue
		}
		price := AdjustedPrice(ledger, line)
		for unit := 0; unit < line.Quantity && next < len(levels); unit++ {
			level := levels[next]
			next++
			single := money.Round(money.Percent(price, level))
			if !single.IsPositive() {
				continue
			}
			if _, err := ledger.Add(adjustment.New(adjustment.CampaignScalable, line.Owner(), single.Neg(), adjustment.Data{
				adjustment.KeyCampaign: e.Campaign.ID,
				adjustment.KeyLevel:    level,
				adjustment.KeyQuantity: 1,
			})); err != nil {
				return err
			}
		}
	}
	return nil
}

// ApplyStoreDiscount records the storewide percentage on every line that is
// not excluded by its product.
func (a *Applier) ApplyStoreDiscount(ledger *adjustment.Ledger, lines []Line) error {
	pct := a.Settings.StoreDiscount
	if !pct.IsPositive() {
		return nil
	}
	now := a.now()
	for _, line := range lines {
		if a.storeExcluded(line.Product, now) {
			continue
		}
		single := money.Percent(AdjustedPrice(ledger, line), pct)
		if err := a.perUnit(ledger, adjustment.StoreDiscount, line, single, adjustment.Data{
			adjustment.KeyValue: pct,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (a *Applier) storeExcluded(p catalog.Product, now time.Time) bool {
	if p.NoStoreDiscount {
		return true
	}
	if !a.Settings.CampaignsIgnoreStoreDiscount {
		return false
	}
	return len(p.Campaigns) > 0 || p.ValidDirectDiscount(now) != nil
}

// perUnit records a per-unit reduction spread over the effective quantity.
func (a *Applier) perUnit(ledger *adjustment.Ledger, t adjustment.Type, line Line, single decimal.Decimal, data adjustment.Data) error {
	single = money.Round(single)
	if !single.IsPositive() {
		return nil
	}
	qty := EffectiveQuantity(ledger, line)
	if qty <= 0 {
		return nil
	}
	data[adjustment.KeySingleAmount] = single
	amount := single.Mul(decimal.NewFromInt(int64(qty))).Neg()
	if _, err := ledger.Add(adjustment.New(t, line.Owner(), amount, data)); err != nil {
		return fmt.Errorf("%s on %s: %w", t, line.ID, err)
	}
	return nil
}
