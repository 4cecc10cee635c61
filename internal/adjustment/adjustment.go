// Package adjustment implements the ledger of signed monetary deltas that a
// recalculation attaches to a cart or to its items.
package adjustment

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Payload keys used by the built-in adjustment producers.
const (
	KeyQuantity          = "quantity"
	KeySingleAmount      = "single_amount"
	KeyRemainderQuantity = "remainder_quantity"
	KeySKU               = "sku"
	KeyLevel             = "level"
	KeyValue             = "value"
	KeyThreshold         = "threshold"
	KeyMethod            = "method"
	KeyCoupon            = "coupon"
	KeyCampaign          = "campaign"
	KeyRate              = "rate"
)

// OwnerKind tells which aggregate an adjustment is attached to.
type OwnerKind uint8

const (
	// OwnerCart anchors an adjustment on the cart itself.
	OwnerCart OwnerKind = iota + 1
	// OwnerItem anchors an adjustment on a single cart item.
	OwnerItem
)

func (k OwnerKind) String() string {
	switch k {
	case OwnerCart:
		return "cart"
	case OwnerItem:
		return "item"
	default:
		return "unknown"
	}
}

// Owner is the tagged reference of the aggregate an adjustment belongs to.
type Owner struct {
	Kind OwnerKind
	ID   string
}

// CartOwner builds an owner reference for a cart.
func CartOwner(id string) Owner { return Owner{Kind: OwnerCart, ID: id} }

// ItemOwner builds an owner reference for a cart item.
func ItemOwner(id string) Owner { return Owner{Kind: OwnerItem, ID: id} }

func (o Owner) String() string { return o.Kind.String() + ":" + o.ID }

// Data is the free-form bookkeeping payload of an adjustment.
type Data map[string]any

// Adjustment is a signed delta. Discounts are negative, fees positive.
// Values are never mutated after they enter a ledger.
type Adjustment struct {
	Seq    int
	Type   Type
	Owner  Owner
	Amount decimal.Decimal
	Label  string
	data   Data
}

// New constructs an adjustment copying the provided payload.
func New(t Type, owner Owner, amount decimal.Decimal, data Data) Adjustment {
	copied := make(Data, len(data))
	for k, v := range data {
		copied[k] = v
	}
	return Adjustment{Type: t, Owner: owner, Amount: amount, Label: t.Label(), data: copied}
}

// Has reports whether the payload carries key.
func (a Adjustment) Has(key string) bool {
	_, ok := a.data[key]
	return ok
}

// Value returns the raw payload entry.
func (a Adjustment) Value(key string) (any, bool) {
	v, ok := a.data[key]
	return v, ok
}

// Decimal reads a decimal payload entry, zero when absent.
func (a Adjustment) Decimal(key string) decimal.Decimal {
	switch v := a.data[key].(type) {
	case decimal.Decimal:
		return v
	case int:
		return decimal.NewFromInt(int64(v))
	case int64:
		return decimal.NewFromInt(v)
	case string:
		d, err := decimal.NewFromString(v)
		if err == nil {
			return d
		}
	}
	return decimal.Zero
}

// Int reads an integer payload entry, zero when absent.
func (a Adjustment) Int(key string) int {
	switch v := a.data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case decimal.Decimal:
		return int(v.IntPart())
	}
	return 0
}

// Text reads a string payload entry.
func (a Adjustment) Text(key string) string {
	if v, ok := a.data[key].(string); ok {
		return v
	}
	return ""
}

// Data returns a copy of the payload.
func (a Adjustment) Data() Data {
	out := make(Data, len(a.data))
	for k, v := range a.data {
		out[k] = v
	}
	return out
}

// SingleAmount is the per-unit price reduction carried by the adjustment.
func (a Adjustment) SingleAmount() decimal.Decimal {
	if a.Type.IsFreeUnit() {
		return decimal.Zero
	}
	return a.Decimal(KeySingleAmount)
}

// Fingerprint renders a stable textual form used to compare ledgers.
func (a Adjustment) Fingerprint() string {
	keys := make([]string, 0, len(a.data))
	for k := range a.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	fmt.Fprintf(&b, "%s|%s|%s", a.Owner, a.Type, a.Amount.StringFixed(2))
	for _, k := range keys {
		v := a.data[k]
		if d, ok := v.(decimal.Decimal); ok {
			v = d.String()
		}
		fmt.Fprintf(&b, "|%s=%v", k, v)
	}
	return b.String()
}
