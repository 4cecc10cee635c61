package shipping

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/shopspring/decimal"
)

// PostalCodeRate is one row of the home delivery whitelist.
type PostalCodeRate struct {
	PostalCode        string
	Parish            string
	Price             decimal.Decimal
	FreeShippingOffer bool
	// MinValue is nil when the row carries no free shipping threshold.
	MinValue *decimal.Decimal
}

// PostalDirectory looks up whitelist rows for an exact postal code or prefix.
type PostalDirectory interface {
	Lookup(ctx context.Context, code string) ([]PostalCodeRate, error)
}

// Geocoder resolves the locality of a full postal code.
type Geocoder interface {
	Locality(ctx context.Context, prefix, suffix string) (string, error)
}

// SplitPostalCode splits "1234-567" into its prefix and suffix.
func SplitPostalCode(code string) (prefix, suffix string) {
	code = strings.TrimSpace(code)
	prefix, suffix, _ = strings.Cut(code, "-")
	return strings.TrimSpace(prefix), strings.TrimSpace(suffix)
}

func resolvePostalCode(ctx context.Context, dir PostalDirectory, geo Geocoder, code string) (PostalCodeRate, error) {
	code = strings.TrimSpace(code)
	rows, err := dir.Lookup(ctx, code)
	if err != nil {
		return PostalCodeRate{}, fmt.Errorf("lookup postal code: %w", err)
	}
	if len(rows) > 0 {
		return rows[0], nil
	}

	prefix, suffix := SplitPostalCode(code)
	rows, err = dir.Lookup(ctx, prefix)
	if err != nil {
		return PostalCodeRate{}, fmt.Errorf("lookup postal prefix: %w", err)
	}
	switch {
	case len(rows) == 0:
		return PostalCodeRate{}, fmt.Errorf("%w: %s", ErrPostalCodeIneligible, code)
	case len(rows) == 1 || samePrice(rows):
		return rows[0], nil
	}

	if geo == nil || suffix == "" {
		return PostalCodeRate{}, fmt.Errorf("%w: %s is ambiguous", ErrPostalCodeIneligible, code)
	}
	locality, err := geo.Locality(ctx, prefix, suffix)
	if err != nil {
		return PostalCodeRate{}, fmt.Errorf("%w: geocode %s: %v", ErrPostalCodeIneligible, code, err)
	}
	for _, row := range rows {
		if strings.EqualFold(strings.TrimSpace(row.Parish), strings.TrimSpace(locality)) {
			return row, nil
		}
	}
	return PostalCodeRate{}, fmt.Errorf("%w: no parish matches %q", ErrPostalCodeIneligible, locality)
}

func samePrice(rows []PostalCodeRate) bool {
	for _, row := range rows[1:] {
		if !row.Price.Equal(rows[0].Price) {
			return false
		}
	}
	return true
}

// MemoryDirectory is an in-memory postal whitelist.
type MemoryDirectory struct {
	mu   sync.RWMutex
	rows map[string][]PostalCodeRate
}

// NewMemoryDirectory indexes rows by postal code.
func NewMemoryDirectory(rows []PostalCodeRate) *MemoryDirectory {
	d := &MemoryDirectory{rows: make(map[string][]PostalCodeRate)}
	for _, row := range rows {
		d.Add(row)
	}
	return d
}

// Add registers a row.
func (d *MemoryDirectory) Add(row PostalCodeRate) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.rows == nil {
		d.rows = make(map[string][]PostalCodeRate)
	}
	key := strings.TrimSpace(row.PostalCode)
	d.rows[key] = append(d.rows[key], row)
}

// Lookup implements PostalDirectory.
func (d *MemoryDirectory) Lookup(_ context.Context, code string) ([]PostalCodeRate, error) {
	if d == nil {
		return nil, nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows := d.rows[strings.TrimSpace(code)]
	out := make([]PostalCodeRate, len(rows))
	copy(out, rows)
	return out, nil
}
