package shipping

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-cart/internal/money"
)

// querier is the subset of pgxpool.Pool used by PGDirectory.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const lookupPostalCodeSQL = `
SELECT postal_code, parish, shipping_price::text, shipping_offer, min_value::text
FROM postal_code_whitelist
WHERE postal_code = $1
ORDER BY id`

const upsertPostalCodeSQL = `
INSERT INTO postal_code_whitelist (postal_code, parish, shipping_price, shipping_offer, min_value)
VALUES ($1, $2, $3::numeric, $4, $5::numeric)
ON CONFLICT (postal_code, parish) DO UPDATE
SET shipping_price = EXCLUDED.shipping_price,
    shipping_offer = EXCLUDED.shipping_offer,
    min_value = EXCLUDED.min_value`

// PGDirectory reads the home delivery whitelist from Postgres.
type PGDirectory struct {
	DB querier
}

// NewPGDirectory wraps a pool or connection.
func NewPGDirectory(db querier) *PGDirectory {
	return &PGDirectory{DB: db}
}

// Lookup implements PostalDirectory.
func (d *PGDirectory) Lookup(ctx context.Context, code string) ([]PostalCodeRate, error) {
	rows, err := d.DB.Query(ctx, lookupPostalCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("query postal code whitelist: %w", err)
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PostalCodeRate, error) {
		var (
			rate   PostalCodeRate
			price  string
			minVal *string
		)
		if err := row.Scan(&rate.PostalCode, &rate.Parish, &price, &rate.FreeShippingOffer, &minVal); err != nil {
			return PostalCodeRate{}, err
		}
		var err error
		if rate.Price, err = money.Parse(price); err != nil {
			return PostalCodeRate{}, err
		}
		if minVal != nil {
			if rate.MinValue, err = money.ParseOptional(*minVal); err != nil {
				return PostalCodeRate{}, err
			}
		}
		return rate, nil
	})
}

// Upsert stores or refreshes a whitelist row.
func (d *PGDirectory) Upsert(ctx context.Context, rate PostalCodeRate) error {
	var minVal *string
	if rate.MinValue != nil {
		v := rate.MinValue.String()
		minVal = &v
	}
	_, err := d.DB.Exec(ctx, upsertPostalCodeSQL, rate.PostalCode, rate.Parish, rate.Price.String(), rate.FreeShippingOffer, minVal)
	if err != nil {
		return fmt.Errorf("upsert postal code %s: %w", rate.PostalCode, err)
	}
	return nil
}
