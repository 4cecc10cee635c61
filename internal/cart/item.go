package cart

import (
	"github.com/shopspring/decimal"

	"github.com/noah-isme/toko-cart/internal/adjustment"
	"github.com/noah-isme/toko-cart/internal/catalog"
	"github.com/noah-isme/toko-cart/internal/discount"
)

// Item is one cart line. Prices are captured when the line is created.
type Item struct {
	ID         string
	ProductID  string
	SKU        string
	Name       string
	Quantity   int
	UnitPrice  decimal.Decimal
	VatRate    decimal.Decimal
	Weight     decimal.Decimal
	Attributes map[string]string

	product catalog.Product
}

func newItem(id string, p catalog.Product, qty int, attrs map[string]string) *Item {
	return &Item{
		ID:         id,
		ProductID:  p.ID,
		SKU:        p.SKU,
		Name:       p.Name,
		Quantity:   qty,
		UnitPrice:  p.PriceVat,
		VatRate:    p.VatRate,
		Weight:     p.Weight,
		Attributes: attrs,
		product:    p,
	}
}

// Owner returns the ledger owner of the item.
func (it *Item) Owner() adjustment.Owner { return adjustment.ItemOwner(it.ID) }

// Product returns the catalog view captured for the item.
func (it *Item) Product() catalog.Product { return it.product }

// Base is the undiscounted line value.
func (it *Item) Base() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

func (it *Item) line() discount.Line {
	return discount.Line{ID: it.ID, Product: it.product, Quantity: it.Quantity, UnitPrice: it.UnitPrice}
}

func (it *Item) clone() *Item {
	cp := *it
	if it.Attributes != nil {
		cp.Attributes = make(map[string]string, len(it.Attributes))
		for k, v := range it.Attributes {
			cp.Attributes[k] = v
		}
	}
	return &cp
}
