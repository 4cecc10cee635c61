package catalog

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/shipping"
)

var (
	// ErrProductNotFound is returned when a product id is unknown.
	ErrProductNotFound = errors.New("product not found")
	// ErrCouponNotFound is returned when a coupon code is unknown.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrMethodNotFound is returned when a shipment method id is unknown.
	ErrMethodNotFound = errors.New("shipment method not found")
)

// Snapshot is an immutable, read-only view of products, campaigns, coupons
// and shipment methods. It is safe for concurrent use.
type Snapshot struct {
	products     map[string]Product
	productOrder []string
	coupons      map[string]coupon.Coupon
	methods      map[string]shipping.Method
	methodOrder  []string
	postalCodes  []shipping.PostalCodeRate
}

// Contents is the raw material of a Snapshot.
type Contents struct {
	Products    []Product
	Campaigns   []Campaign
	Targets     map[string][]string // campaign id -> product ids
	Coupons     []coupon.Coupon
	Methods     []shipping.Method
	PostalCodes []shipping.PostalCodeRate
}

// NewSnapshot indexes c. Campaigns are attached to their target products in
// campaign declaration order.
func NewSnapshot(c Contents) *Snapshot {
	s := &Snapshot{
		products: make(map[string]Product, len(c.Products)),
		coupons:  make(map[string]coupon.Coupon, len(c.Coupons)),
		methods:  make(map[string]shipping.Method, len(c.Methods)),
	}
	for _, p := range c.Products {
		if _, dup := s.products[p.ID]; !dup {
			s.productOrder = append(s.productOrder, p.ID)
		}
		s.products[p.ID] = p
	}
	for _, campaign := range c.Campaigns {
		for _, id := range c.Targets[campaign.ID] {
			p, ok := s.products[id]
			if !ok {
				continue
			}
			p.Campaigns = append(append([]Campaign(nil), p.Campaigns...), campaign)
			s.products[id] = p
		}
	}
	for _, cp := range c.Coupons {
		s.coupons[coupon.NormalizeCode(cp.Code)] = cp
	}
	for _, m := range c.Methods {
		if _, dup := s.methods[m.ID]; !dup {
			s.methodOrder = append(s.methodOrder, m.ID)
		}
		s.methods[m.ID] = m
	}
	s.postalCodes = append(s.postalCodes, c.PostalCodes...)
	return s
}

// Product returns the product with id.
func (s *Snapshot) Product(_ context.Context, id string) (Product, error) {
	if s == nil {
		return Product{}, ErrProductNotFound
	}
	p, ok := s.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// Products lists products in declaration order.
func (s *Snapshot) Products() []Product {
	if s == nil {
		return nil
	}
	out := make([]Product, 0, len(s.productOrder))
	for _, id := range s.productOrder {
		out = append(out, s.products[id])
	}
	return out
}

// Coupon returns the coupon registered under code, case-insensitively.
func (s *Snapshot) Coupon(_ context.Context, code string) (coupon.Coupon, error) {
	if s == nil {
		return coupon.Coupon{}, ErrCouponNotFound
	}
	c, ok := s.coupons[coupon.NormalizeCode(code)]
	if !ok {
		return coupon.Coupon{}, ErrCouponNotFound
	}
	return c, nil
}

// Method returns the shipment method with id.
func (s *Snapshot) Method(_ context.Context, id string) (shipping.Method, error) {
	if s == nil {
		return shipping.Method{}, ErrMethodNotFound
	}
	m, ok := s.methods[id]
	if !ok {
		return shipping.Method{}, ErrMethodNotFound
	}
	return m, nil
}

// Methods lists shipment methods in declaration order.
func (s *Snapshot) Methods() []shipping.Method {
	if s == nil {
		return nil
	}
	out := make([]shipping.Method, 0, len(s.methodOrder))
	for _, id := range s.methodOrder {
		out = append(out, s.methods[id])
	}
	return out
}

// PostalCodes returns the home delivery whitelist bundled with the snapshot.
func (s *Snapshot) PostalCodes() []shipping.PostalCodeRate {
	if s == nil {
		return nil
	}
	return append([]shipping.PostalCodeRate(nil), s.postalCodes...)
}

// Search filters products whose name or SKU contains query, sorted by name.
func (s *Snapshot) Search(query string) []Product {
	needle := strings.ToLower(strings.TrimSpace(query))
	var out []Product
	for _, p := range s.Products() {
		if needle == "" || strings.Contains(strings.ToLower(p.Name), needle) || strings.Contains(strings.ToLower(p.SKU), needle) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
