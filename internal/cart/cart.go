// Package cart holds the cart aggregate and the recalculation pipeline that
// keeps its adjustment ledger authoritative after every mutation.
package cart

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/card"
	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/discount"
)

var (
	// ErrNotFound indicates the requested cart or item could not be located.
	ErrNotFound = errors.New("cart not found")
	// ErrItemNotFound is returned for operations on an unknown line.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrInvalidInput is returned when the provided payload is invalid.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotEditable is returned when the cart state forbids mutations.
	ErrNotEditable = errors.New("cart is not editable")
	// ErrNotSimpleProduct rejects bundles and configurable products.
	ErrNotSimpleProduct = errors.New("only simple products can be added to a cart")
	// ErrEmptyCart is returned when checking out a cart without items.
	ErrEmptyCart = errors.New("cart has no items")
	// ErrSessionRequired is returned when no session key was supplied.
	ErrSessionRequired = errors.New("session key required")
	// ErrInvalidConfiguration reports settings the cart cannot run with.
	ErrInvalidConfiguration = errors.New("invalid cart configuration")
)

// State is the lifecycle state of a cart.
type State string

const (
	StateActive    State = "active"
	StateLoading   State = "loading"
	StateCheckout  State = "checkout"
	StateCompleted State = "completed"
	StateAbandoned State = "abandoned"
)

// Warning codes attached to item mutations.
const (
	WarningNotEnoughStock     = "not-enough-stock"
	WarningMaxQuantityReached = "max-quantity-reached"
)

// Destination is the shipping selection of a cart.
type Destination struct {
	MethodID   string
	Country    string
	PostalCode string
}

// Adjustable is implemented by carts and the orders frozen from them.
type Adjustable interface {
	Items() []Item
	Adjustments() []adjustment.Adjustment
	SubTotal() decimal.Decimal
	ItemsTotal() decimal.Decimal
	Total() decimal.Decimal
	VatTotal() decimal.Decimal
	ShippingAdjustment() (adjustment.Adjustment, decimal.Decimal, bool)
	AdjustmentTotals() map[adjustment.Type]decimal.Decimal
	DiscountTotal() decimal.Decimal
	CouponDiscount() decimal.Decimal
	ItemsDisplay() []DisplayLine
}

// Cart is the mutable aggregate. It is owned by one recalculation at a time.
type Cart struct {
	book

	ID         string
	SessionKey string
	UserID     string
	State      State
	Shipping   Destination
	Card       *card.Card
	CreatedAt  time.Time
	UpdatedAt  time.Time

	coupon       *coupon.Coupon
	activeCoupon *coupon.Coupon
	validation   *coupon.Result
	applyable    []discount.Entry
	conflicts    []string
}

// New returns an empty active cart.
func New(id, sessionKey string, now time.Time) *Cart {
	return &Cart{
		book:       newBook(id),
		ID:         id,
		SessionKey: sessionKey,
		State:      StateActive,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsActive reports whether the cart is still in use.
func (c *Cart) IsActive() bool {
	switch c.State {
	case StateActive, StateCheckout, StateLoading:
		return true
	}
	return false
}

// Editable reports whether items and selections may change.
func (c *Cart) Editable() bool {
	return c.State == StateActive || c.State == StateLoading
}

// Coupon returns the attached coupon, validated or not.
func (c *Cart) Coupon() *coupon.Coupon { return c.coupon }

// ActiveCoupon returns the coupon applied by the last recalculation.
func (c *Cart) ActiveCoupon() *coupon.Coupon { return c.activeCoupon }

// CouponResult returns the outcome of the last coupon validation.
func (c *Cart) CouponResult() (coupon.Result, bool) {
	if c.validation == nil {
		return coupon.Result{}, false
	}
	return *c.validation, true
}

// ApplyableDiscounts returns the campaign entries used by the last recalculation.
func (c *Cart) ApplyableDiscounts() []discount.Entry {
	out := make([]discount.Entry, len(c.applyable))
	copy(out, c.applyable)
	return out
}

// ConflictingDiscounts returns the campaigns found sharing products.
func (c *Cart) ConflictingDiscounts() []string {
	out := make([]string, len(c.conflicts))
	copy(out, c.conflicts)
	return out
}

func (c *Cart) attachCoupon(cp *coupon.Coupon) {
	c.coupon = cp
	c.activeCoupon = nil
	c.validation = nil
}
