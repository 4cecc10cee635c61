package adjustment

// Type identifies what an adjustment represents. The set is closed.
type Type string

const (
	IntervalDiscount   Type = "interval_discount"
	DirectDiscount     Type = "direct_discount"
	StoreDiscount      Type = "store_discount"
	CampaignPercentNum Type = "campaign_percentage_numeric"
	CampaignCheapest   Type = "campaign_cheapest_free"
	CampaignSameFree   Type = "campaign_same_product_free"
	CampaignFreeGift   Type = "campaign_free_gift"
	CampaignScalable   Type = "campaign_scalable_percentage"
	Shipping           Type = "shipping"
	PackagingFee       Type = "packaging_fee"
	ClientCard         Type = "client_card"
	CouponPercentage   Type = "coupon_percentage"
	CouponNumeric      Type = "coupon_numeric"
	CouponFreeShipping Type = "coupon_free_shipping"
)

var allTypes = []Type{
	IntervalDiscount,
	DirectDiscount,
	StoreDiscount,
	CampaignPercentNum,
	CampaignCheapest,
	CampaignSameFree,
	CampaignFreeGift,
	CampaignScalable,
	Shipping,
	PackagingFee,
	ClientCard,
	CouponPercentage,
	CouponNumeric,
	CouponFreeShipping,
}

var labels = map[Type]string{
	IntervalDiscount:   "Quantity discount",
	DirectDiscount:     "Product discount",
	StoreDiscount:      "Store discount",
	CampaignPercentNum: "Campaign discount",
	CampaignCheapest:   "Cheapest item free",
	CampaignSameFree:   "Free unit",
	CampaignFreeGift:   "Free gift",
	CampaignScalable:   "Tiered discount",
	Shipping:           "Shipping",
	PackagingFee:       "Packaging",
	ClientCard:         "Client card",
	CouponPercentage:   "Coupon",
	CouponNumeric:      "Coupon",
	CouponFreeShipping: "Free shipping coupon",
}

// Types returns every known adjustment type in display order.
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// CouponTypes returns the types produced by coupon application.
func CouponTypes() []Type {
	return []Type{CouponPercentage, CouponNumeric, CouponFreeShipping}
}

// Valid reports whether t belongs to the closed set.
func (t Type) Valid() bool {
	_, ok := labels[t]
	return ok
}

// Label returns a human readable name.
func (t Type) Label() string {
	if l, ok := labels[t]; ok {
		return l
	}
	return string(t)
}

// IsCoupon reports whether t was produced by a coupon.
func (t Type) IsCoupon() bool {
	switch t {
	case CouponPercentage, CouponNumeric, CouponFreeShipping:
		return true
	}
	return false
}

// IsCampaign reports whether t was produced by a discount campaign.
func (t Type) IsCampaign() bool {
	switch t {
	case CampaignPercentNum, CampaignCheapest, CampaignSameFree, CampaignFreeGift, CampaignScalable:
		return true
	}
	return false
}

// IsFreeUnit reports whether t grants units instead of reducing the unit
// price. Such adjustments never contribute a single_amount.
func (t Type) IsFreeUnit() bool {
	switch t {
	case CampaignCheapest, CampaignSameFree, CampaignFreeGift:
		return true
	}
	return false
}
