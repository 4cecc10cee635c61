package cart

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/toko-cart/internal/card"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/coupon"
)

// ProductSource resolves catalog products.
type ProductSource interface {
	Product(ctx context.Context, id string) (catalog.Product, error)
}

// CouponSource resolves coupons by code.
type CouponSource interface {
	Coupon(ctx context.Context, code string) (coupon.Coupon, error)
}

// StockPolicy bounds the quantity a line may hold.
type StockPolicy struct {
	// Infinite disables the product stock check.
	Infinite bool
	// MaxPerLine caps every line when positive.
	MaxPerLine int
}

// Clamp bounds requested for a product with the given stock and reports
// the warnings raised on the way.
func (p StockPolicy) Clamp(requested, stock int) (int, []string) {
	var warnings []string
	qty := requested
	if !p.Infinite && qty > stock {
		qty = stock
		warnings = append(warnings, WarningNotEnoughStock)
	}
	if p.MaxPerLine > 0 && qty > p.MaxPerLine {
		qty = p.MaxPerLine
		warnings = append(warnings, WarningMaxQuantityReached)
	}
	if qty < 0 {
		qty = 0
	}
	return qty, warnings
}

var attributeName = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ParseAttributes reads a comma separated list of product attribute names
// copied onto new lines.
func ParseAttributes(raw string) ([]string, error) {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if !attributeName.MatchString(name) {
			return nil, fmt.Errorf("merge attribute %q: %w", name, ErrInvalidConfiguration)
		}
		out = append(out, name)
	}
	return out, nil
}

// ServiceConfig configures NewService.
type ServiceConfig struct {
	Engine     *Engine
	Products   ProductSource
	Coupons    CouponSource
	Stock      StockPolicy
	Attributes []string
	// Usage records coupon redemptions of completed orders.
	Usage coupon.UsageRecorder
	Now   func() time.Time
	NewID func() string
}

// Service encapsulates cart mutations. Every mutation recalculates the cart
// before returning and is rolled back when the recalculation fails.
type Service struct {
	engine     *Engine
	products   ProductSource
	coupons    CouponSource
	stock      StockPolicy
	attributes []string
	usage      coupon.UsageRecorder
	now        func() time.Time
	newID      func() string
}

// NewService constructs a Service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine not configured: %w", ErrInvalidConfiguration)
	}
	if cfg.Products == nil {
		return nil, fmt.Errorf("product source not configured: %w", ErrInvalidConfiguration)
	}
	for _, name := range cfg.Attributes {
		if !attributeName.MatchString(name) {
			return nil, fmt.Errorf("merge attribute %q: %w", name, ErrInvalidConfiguration)
		}
	}
	s := &Service{
		engine:     cfg.Engine,
		products:   cfg.Products,
		coupons:    cfg.Coupons,
		stock:      cfg.Stock,
		attributes: cfg.Attributes,
		usage:      cfg.Usage,
		now:        cfg.Now,
		newID:      cfg.NewID,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s, nil
}

// snapshot keeps what a failed mutation must restore.
type snapshot struct {
	items    []*Item
	shipping Destination
	card     *card.Card
	coupon   *coupon.Coupon
	userID   string
}

func take(c *Cart) snapshot {
	items := make([]*Item, 0, len(c.items))
	for _, it := range c.items {
		items = append(items, it.clone())
	}
	return snapshot{items: items, shipping: c.Shipping, card: c.Card, coupon: c.coupon, userID: c.UserID}
}

func (s snapshot) restore(c *Cart) {
	c.items = s.items
	c.Shipping = s.shipping
	c.Card = s.card
	c.coupon = s.coupon
	c.UserID = s.userID
}

func (s *Service) mutate(ctx context.Context, c *Cart, fn func() error) error {
	if c == nil {
		return ErrNotFound
	}
	if !c.Editable() {
		return ErrNotEditable
	}
	before := take(c)
	if err := fn(); err != nil {
		before.restore(c)
		return err
	}
	if err := s.engine.Recalculate(ctx, c); err != nil {
		before.restore(c)
		return err
	}
	return nil
}

// Recalculate reruns the pipeline without a mutation.
func (s *Service) Recalculate(ctx context.Context, c *Cart) error {
	return s.engine.Recalculate(ctx, c)
}

// AddItem adds qty units of a product, merging into an existing line.
func (s *Service) AddItem(ctx context.Context, c *Cart, productID string, qty int) ([]string, error) {
	return s.addItem(ctx, c, productID, qty, nil)
}

func (s *Service) addItem(ctx context.Context, c *Cart, productID string, qty int, attrs map[string]string) ([]string, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("qty must be positive: %w", ErrInvalidInput)
	}
	var warnings []string
	err := s.mutate(ctx, c, func() error {
		p, err := s.products.Product(ctx, productID)
		if err != nil {
			return err
		}
		if !p.IsSimple() {
			return ErrNotSimpleProduct
		}
		existing := c.find(p.ID)
		requested := qty
		if existing != nil {
			requested += existing.Quantity
		}
		final, w := s.stock.Clamp(requested, p.Stock)
		warnings = w
		if existing != nil {
			existing.Quantity = final
			if final == 0 {
				c.removeItem(existing.ID)
			}
			return nil
		}
		if final == 0 {
			return nil
		}
		c.items = append(c.items, newItem(s.newID(), p, final, s.copyAttributes(p, attrs)))
		return nil
	})
	return warnings, err
}

func (s *Service) copyAttributes(p catalog.Product, extra map[string]string) map[string]string {
	out := make(map[string]string)
	for _, name := range s.attributes {
		if v, ok := p.Attribute(name); ok {
			out[name] = v
		}
	}
	for k, v := range extra {
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// SetQuantity replaces the quantity of a line. Zero removes it.
func (s *Service) SetQuantity(ctx context.Context, c *Cart, itemID string, qty int) ([]string, error) {
	if qty < 0 {
		return nil, fmt.Errorf("qty must not be negative: %w", ErrInvalidInput)
	}
	var warnings []string
	err := s.mutate(ctx, c, func() error {
		it := c.byID(itemID)
		if it == nil {
			return ErrItemNotFound
		}
		final, w := s.stock.Clamp(qty, it.product.Stock)
		warnings = w
		if final == 0 {
			c.removeItem(itemID)
			return nil
		}
		it.Quantity = final
		return nil
	})
	return warnings, err
}

// RemoveItem deletes a line.
func (s *Service) RemoveItem(ctx context.Context, c *Cart, itemID string) error {
	return s.mutate(ctx, c, func() error {
		if !c.removeItem(itemID) {
			return ErrItemNotFound
		}
		return nil
	})
}

// Clear removes every line.
func (s *Service) Clear(ctx context.Context, c *Cart) error {
	return s.mutate(ctx, c, func() error {
		c.items = nil
		return nil
	})
}

// AttachCoupon looks up code and attaches it. The validation outcome is
// available from the cart afterwards; a rejected coupon stays attached.
func (s *Service) AttachCoupon(ctx context.Context, c *Cart, code string) (coupon.Result, error) {
	code = coupon.NormalizeCode(code)
	if code == "" {
		return coupon.Result{}, fmt.Errorf("coupon code is required: %w", ErrInvalidInput)
	}
	if s.coupons == nil {
		return coupon.Result{}, fmt.Errorf("coupon source not configured: %w", ErrInvalidConfiguration)
	}
	err := s.mutate(ctx, c, func() error {
		cp, err := s.coupons.Coupon(ctx, code)
		if err != nil {
			return err
		}
		c.attachCoupon(&cp)
		return nil
	})
	if err != nil {
		return coupon.Result{}, err
	}
	result, _ := c.CouponResult()
	return result, nil
}

// DetachCoupon removes the attached coupon.
func (s *Service) DetachCoupon(ctx context.Context, c *Cart) error {
	return s.mutate(ctx, c, func() error {
		c.attachCoupon(nil)
		return nil
	})
}

// SetShipping replaces the shipping selection.
func (s *Service) SetShipping(ctx context.Context, c *Cart, dest Destination) error {
	return s.mutate(ctx, c, func() error {
		c.Shipping = Destination{
			MethodID:   strings.TrimSpace(dest.MethodID),
			Country:    strings.ToUpper(strings.TrimSpace(dest.Country)),
			PostalCode: strings.TrimSpace(dest.PostalCode),
		}
		return nil
	})
}

// SetCard attaches a loyalty card. A nil card detaches it.
func (s *Service) SetCard(ctx context.Context, c *Cart, cd *card.Card) error {
	return s.mutate(ctx, c, func() error {
		if cd != nil {
			cp := *cd
			cd = &cp
		}
		c.Card = cd
		return nil
	})
}

// SetUser binds the cart to an authenticated user.
func (s *Service) SetUser(ctx context.Context, c *Cart, userID string) error {
	return s.mutate(ctx, c, func() error {
		c.UserID = strings.TrimSpace(userID)
		return nil
	})
}

// Checkout freezes the cart contents for payment.
func (s *Service) Checkout(ctx context.Context, c *Cart) error {
	if c == nil {
		return ErrNotFound
	}
	if c.State != StateActive {
		return ErrNotEditable
	}
	if !c.HasItems() {
		return ErrEmptyCart
	}
	if err := s.engine.Recalculate(ctx, c); err != nil {
		return err
	}
	c.State = StateCheckout
	c.UpdatedAt = s.now()
	return nil
}

// Reopen returns a cart in checkout to the active state.
func (s *Service) Reopen(ctx context.Context, c *Cart) error {
	if c == nil {
		return ErrNotFound
	}
	if c.State != StateCheckout {
		return ErrNotEditable
	}
	c.State = StateActive
	return s.engine.Recalculate(ctx, c)
}

// Complete turns a cart in checkout into an immutable order.
func (s *Service) Complete(ctx context.Context, c *Cart) (*Order, error) {
	if c == nil {
		return nil, ErrNotFound
	}
	if c.State != StateCheckout {
		return nil, ErrNotEditable
	}
	if ac := c.ActiveCoupon(); ac != nil && c.UserID != "" && s.usage != nil {
		if err := s.usage.RecordUsage(ctx, ac.Code, c.UserID); err != nil {
			return nil, err
		}
	}
	now := s.now()
	order := newOrder(s.newID(), c, now)
	c.State = StateCompleted
	c.UpdatedAt = now
	return order, nil
}

// Abandon marks the cart as no longer in use.
func (s *Service) Abandon(c *Cart) error {
	if c == nil {
		return ErrNotFound
	}
	if c.State == StateCompleted {
		return ErrNotEditable
	}
	c.State = StateAbandoned
	c.UpdatedAt = s.now()
	return nil
}

// MergeInto copies the lines, coupon and card of from into c. Lines that
// no longer resolve are skipped.
func (s *Service) MergeInto(ctx context.Context, c, from *Cart) ([]string, error) {
	if from == nil || from == c {
		return nil, nil
	}
	var warnings []string
	for _, it := range from.items {
		w, err := s.addItem(ctx, c, it.ProductID, it.Quantity, it.Attributes)
		if err != nil {
			if errors.Is(err, catalog.ErrProductNotFound) || errors.Is(err, ErrNotSimpleProduct) {
				continue
			}
			return warnings, err
		}
		warnings = append(warnings, w...)
	}
	if c.coupon == nil && from.coupon != nil {
		cp := *from.coupon
		if err := s.mutate(ctx, c, func() error {
			c.attachCoupon(&cp)
			return nil
		}); err != nil {
			return warnings, err
		}
	}
	if c.Card == nil && from.Card != nil {
		if err := s.SetCard(ctx, c, from.Card); err != nil {
			return warnings, err
		}
	}
	return warnings, nil
}

func (c *Cart) removeItem(itemID string) bool {
	for i, it := range c.items {
		if it.ID == itemID {
			c.items = append(c.items[:i:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}
