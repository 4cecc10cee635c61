package catalog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/noah-isme/toko-cart/internal/coupon"
	"github.com/noah-isme/toko-cart/internal/money"
	"github.com/noah-isme/toko-cart/internal/shipping"
)

// ErrInvalidFixture is returned when a catalog file fails validation.
var ErrInvalidFixture = errors.New("invalid catalog fixture")

var fixtureValidator = validator.New(validator.WithRequiredStructEnabled())

type fixture struct {
	Products    []productFixture    `yaml:"products" validate:"dive"`
	Campaigns   []campaignFixture   `yaml:"campaigns" validate:"dive"`
	Coupons     []couponFixture     `yaml:"coupons" validate:"dive"`
	Methods     []methodFixture     `yaml:"shipping_methods" validate:"dive"`
	PostalCodes []postalCodeFixture `yaml:"postal_codes" validate:"dive"`
}

type productFixture struct {
	ID                 string            `yaml:"id" validate:"required"`
	SKU                string            `yaml:"sku"`
	Name               string            `yaml:"name"`
	Type               string            `yaml:"type" validate:"omitempty,oneof=simple bundle configurable"`
	Stock              int               `yaml:"stock" validate:"gte=0"`
	Price              string            `yaml:"price" validate:"required"`
	VatRate            string            `yaml:"vat_rate"`
	Weight             string            `yaml:"weight"`
	Intervals          []intervalFixture `yaml:"intervals" validate:"dive"`
	Direct             *discountFixture  `yaml:"direct_discount"`
	NoStoreDiscount    bool              `yaml:"no_store_discount"`
	BlocksFreeShipping bool              `yaml:"blocks_free_shipping"`
	Medical            bool              `yaml:"medical"`
	Attributes         map[string]string `yaml:"attributes"`
}

type intervalFixture struct {
	MinQuantity int    `yaml:"min_quantity" validate:"gt=0"`
	Price       string `yaml:"price" validate:"required"`
}

type discountFixture struct {
	Kind                string `yaml:"kind" validate:"oneof=percentage numeric"`
	Value               string `yaml:"value" validate:"required"`
	StacksWithCampaigns bool   `yaml:"stacks_with_campaigns"`
	StartsAt            string `yaml:"starts_at"`
	EndsAt              string `yaml:"ends_at"`
}

type campaignFixture struct {
	ID                     string   `yaml:"id" validate:"required"`
	Name                   string   `yaml:"name"`
	Tag                    string   `yaml:"tag" validate:"required"`
	Kind                   string   `yaml:"kind" validate:"omitempty,oneof=percentage numeric"`
	Value                  string   `yaml:"value"`
	PurchaseNumber         int      `yaml:"purchase_number" validate:"gte=0"`
	FreeQuantity           int      `yaml:"free_quantity" validate:"gte=0"`
	Repeat                 bool     `yaml:"repeat"`
	MinimumValue           string   `yaml:"minimum_value"`
	MinimumBuy             int      `yaml:"minimum_buy" validate:"gte=0"`
	Levels                 []string `yaml:"levels"`
	Highest                bool     `yaml:"highest"`
	GiftSKU                string   `yaml:"gift_sku"`
	GiftQuantity           int      `yaml:"gift_quantity" validate:"gte=0"`
	CanStackDirectDiscount bool     `yaml:"can_stack_direct_discount"`
	CardRate               string   `yaml:"card_rate"`
	StartsAt               string   `yaml:"starts_at"`
	EndsAt                 string   `yaml:"ends_at"`
	ProductIDs             []string `yaml:"product_ids"`
}

type couponFixture struct {
	Code                  string   `yaml:"code" validate:"required"`
	Type                  string   `yaml:"type" validate:"oneof=percentage numeric free_shipping"`
	Value                 string   `yaml:"value"`
	Active                bool     `yaml:"active"`
	StartsAt              string   `yaml:"starts_at"`
	ExpiresAt             string   `yaml:"expires_at"`
	UsesLeft              *int     `yaml:"uses_left"`
	PerUserLimit          *int     `yaml:"per_user_limit"`
	AllowedUsers          []string `yaml:"allowed_users"`
	MinOrderValue         string   `yaml:"min_order_value"`
	ProductIDs            []string `yaml:"product_ids"`
	CombinesWithDiscounts bool     `yaml:"combines_with_discounts"`
	ZoneIDs               []string `yaml:"zone_ids"`
	Condition             string   `yaml:"condition"`
}

type methodFixture struct {
	ID    string        `yaml:"id" validate:"required"`
	Name  string        `yaml:"name"`
	Price string        `yaml:"price"`
	Model string        `yaml:"model" validate:"oneof=flat weight home_delivery"`
	Zones []zoneFixture `yaml:"zones" validate:"dive"`
}

type zoneFixture struct {
	ID                string        `yaml:"id" validate:"required"`
	Countries         []string      `yaml:"countries"`
	FreeShippingOffer bool          `yaml:"free_shipping_offer"`
	MaxWeight         string        `yaml:"max_weight"`
	MinValue          string        `yaml:"min_value"`
	Bands             []bandFixture `yaml:"bands" validate:"dive"`
}

type bandFixture struct {
	MinWeight string `yaml:"min_weight"`
	MaxWeight string `yaml:"max_weight" validate:"required"`
	Price     string `yaml:"price" validate:"required"`
}

type postalCodeFixture struct {
	PostalCode        string `yaml:"postal_code" validate:"required"`
	Parish            string `yaml:"parish"`
	Price             string `yaml:"price" validate:"required"`
	FreeShippingOffer bool   `yaml:"free_shipping_offer"`
	MinValue          string `yaml:"min_value"`
}

// LoadFile reads a YAML (or JSON) catalog file.
func LoadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return Load(f)
}

// Load decodes and validates a catalog document.
func Load(r io.Reader) (*Snapshot, error) {
	var doc fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if err := fixtureValidator.Struct(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}
	p := &parser{}
	contents := p.contents(doc)
	if p.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, p.err)
	}
	return NewSnapshot(contents), nil
}

// parser converts fixture strings, keeping the first error.
type parser struct {
	err error
}

func (p *parser) contents(doc fixture) Contents {
	c := Contents{Targets: make(map[string][]string)}
	for _, pf := range doc.Products {
		c.Products = append(c.Products, p.product(pf))
	}
	for _, cf := range doc.Campaigns {
		c.Campaigns = append(c.Campaigns, p.campaign(cf))
		c.Targets[cf.ID] = append(c.Targets[cf.ID], cf.ProductIDs...)
	}
	for _, cf := range doc.Coupons {
		c.Coupons = append(c.Coupons, p.coupon(cf))
	}
	for _, mf := range doc.Methods {
		c.Methods = append(c.Methods, p.method(mf))
	}
	for _, pc := range doc.PostalCodes {
		c.PostalCodes = append(c.PostalCodes, shipping.PostalCodeRate{
			PostalCode:        strings.TrimSpace(pc.PostalCode),
			Parish:            pc.Parish,
			Price:             p.amount(pc.Price),
			FreeShippingOffer: pc.FreeShippingOffer,
			MinValue:          p.optionalAmount(pc.MinValue),
		})
	}
	return c
}

func (p *parser) product(f productFixture) Product {
	prod := Product{
		ID:                 f.ID,
		SKU:                f.SKU,
		Name:               f.Name,
		Type:               ProductType(f.Type),
		Stock:              f.Stock,
		PriceVat:           p.amount(f.Price),
		VatRate:            p.amount(f.VatRate),
		Weight:             p.amount(f.Weight),
		NoStoreDiscount:    f.NoStoreDiscount,
		BlocksFreeShipping: f.BlocksFreeShipping,
		Medical:            f.Medical,
		Attributes:         f.Attributes,
	}
	for _, in := range f.Intervals {
		prod.Intervals = append(prod.Intervals, IntervalPrice{MinQuantity: in.MinQuantity, Price: p.amount(in.Price)})
	}
	if f.Direct != nil {
		prod.Direct = &DirectDiscount{
			Kind:                ValueKind(f.Direct.Kind),
			Value:               p.amount(f.Direct.Value),
			StacksWithCampaigns: f.Direct.StacksWithCampaigns,
			StartsAt:            p.time(f.Direct.StartsAt),
			EndsAt:              p.time(f.Direct.EndsAt),
		}
	}
	return prod
}

func (p *parser) campaign(f campaignFixture) Campaign {
	c := Campaign{
		ID:                     f.ID,
		Name:                   f.Name,
		Tag:                    Tag(f.Tag),
		Kind:                   ValueKind(f.Kind),
		Value:                  p.amount(f.Value),
		PurchaseNumber:         f.PurchaseNumber,
		FreeQuantity:           f.FreeQuantity,
		Repeat:                 f.Repeat,
		MinimumValue:           p.amount(f.MinimumValue),
		MinimumBuy:             f.MinimumBuy,
		Highest:                f.Highest,
		GiftSKU:                f.GiftSKU,
		GiftQuantity:           f.GiftQuantity,
		CanStackDirectDiscount: f.CanStackDirectDiscount,
		StartsAt:               p.time(f.StartsAt),
		EndsAt:                 p.time(f.EndsAt),
	}
	for _, level := range f.Levels {
		c.Levels = append(c.Levels, p.amount(level))
	}
	if strings.TrimSpace(f.CardRate) != "" {
		rate := p.amount(f.CardRate)
		c.CardRate = &rate
	}
	return c
}

func (p *parser) coupon(f couponFixture) coupon.Coupon {
	if f.Condition != "" && p.err == nil {
		if err := coupon.CompileCondition(f.Condition); err != nil {
			p.err = fmt.Errorf("coupon %s: %w", f.Code, err)
		}
	}
	return coupon.Coupon{
		Code:                  coupon.NormalizeCode(f.Code),
		Type:                  coupon.Type(f.Type),
		Value:                 p.amount(f.Value),
		Active:                f.Active,
		StartsAt:              p.time(f.StartsAt),
		ExpiresAt:             p.time(f.ExpiresAt),
		UsesLeft:              f.UsesLeft,
		PerUserLimit:          f.PerUserLimit,
		AllowedUsers:          f.AllowedUsers,
		MinOrderValue:         p.amount(f.MinOrderValue),
		ProductIDs:            f.ProductIDs,
		CombinesWithDiscounts: f.CombinesWithDiscounts,
		ZoneIDs:               f.ZoneIDs,
		Condition:             f.Condition,
	}
}

func (p *parser) method(f methodFixture) shipping.Method {
	m := shipping.Method{ID: f.ID, Name: f.Name, Price: p.amount(f.Price), Model: shipping.Model(f.Model)}
	for _, zf := range f.Zones {
		z := shipping.Zone{
			ID:                zf.ID,
			Countries:         zf.Countries,
			FreeShippingOffer: zf.FreeShippingOffer,
			MaxWeight:         p.amount(zf.MaxWeight),
			MinValue:          p.optionalAmount(zf.MinValue),
		}
		for _, bf := range zf.Bands {
			z.Bands = append(z.Bands, shipping.Band{
				MinWeight: p.amount(bf.MinWeight),
				MaxWeight: p.amount(bf.MaxWeight),
				Price:     p.amount(bf.Price),
			})
		}
		m.Zones = append(m.Zones, z)
	}
	return m
}

func (p *parser) amount(v string) decimal.Decimal {
	d, err := money.Parse(v)
	if err != nil && p.err == nil {
		p.err = err
	}
	return d
}

func (p *parser) optionalAmount(v string) *decimal.Decimal {
	d, err := money.ParseOptional(v)
	if err != nil && p.err == nil {
		p.err = err
	}
	return d
}

func (p *parser) time(v string) *time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		if p.err == nil {
			p.err = fmt.Errorf("parse time %q: %w", v, err)
		}
		return nil
	}
	return &t
}
