package adjustment

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	// ErrTypeRequired is returned when a typed lookup is issued without a type.
	ErrTypeRequired = errors.New("adjustment type is required")
	// ErrUnknownType is returned when an adjustment carries a type outside the closed set.
	ErrUnknownType = errors.New("unknown adjustment type")
	// ErrOwnerRequired is returned when an adjustment has no owner reference.
	ErrOwnerRequired = errors.New("adjustment owner is required")
)

// Ledger stores adjustments grouped per owner in insertion order.
// A Ledger is not safe for concurrent use; the owning cart serialises access.
type Ledger struct {
	seq     int
	order   []Owner
	entries map[Owner][]Adjustment
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[Owner][]Adjustment)}
}

// Add appends an adjustment to its owner's sequence.
func (l *Ledger) Add(adj Adjustment) (Adjustment, error) {
	if !adj.Type.Valid() {
		return Adjustment{}, ErrUnknownType
	}
	if adj.Owner.Kind == 0 || adj.Owner.ID == "" {
		return Adjustment{}, ErrOwnerRequired
	}
	if l.entries == nil {
		l.entries = make(map[Owner][]Adjustment)
	}
	if _, ok := l.entries[adj.Owner]; !ok {
		l.order = append(l.order, adj.Owner)
	}
	l.seq++
	adj.Seq = l.seq
	l.entries[adj.Owner] = append(l.entries[adj.Owner], adj)
	return adj, nil
}

// For returns the adjustments of owner in insertion order.
func (l *Ledger) For(owner Owner) []Adjustment {
	if l == nil {
		return nil
	}
	src := l.entries[owner]
	out := make([]Adjustment, len(src))
	copy(out, src)
	return out
}

// ByType returns the adjustments of owner whose type is in types. With no
// types every adjustment of owner is returned.
func (l *Ledger) ByType(owner Owner, types ...Type) []Adjustment {
	if len(types) == 0 {
		return l.For(owner)
	}
	if l == nil {
		return nil
	}
	var out []Adjustment
	for _, adj := range l.entries[owner] {
		if matches(adj.Type, types) {
			out = append(out, adj)
		}
	}
	return out
}

// FirstByType returns the first adjustment of type t for owner.
func (l *Ledger) FirstByType(owner Owner, t Type) (Adjustment, bool, error) {
	if t == "" {
		return Adjustment{}, false, ErrTypeRequired
	}
	if l == nil {
		return Adjustment{}, false, nil
	}
	for _, adj := range l.entries[owner] {
		if adj.Type == t {
			return adj, true, nil
		}
	}
	return Adjustment{}, false, nil
}

// RemoveFirstByType drops the first adjustment of type t for owner and reports
// whether one was removed.
func (l *Ledger) RemoveFirstByType(owner Owner, t Type) (bool, error) {
	if t == "" {
		return false, ErrTypeRequired
	}
	if l == nil {
		return false, nil
	}
	list := l.entries[owner]
	for i, adj := range list {
		if adj.Type != t {
			continue
		}
		next := make([]Adjustment, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		l.set(owner, next)
		return true, nil
	}
	return false, nil
}

// Clear removes adjustments of owner. With no types everything is removed.
func (l *Ledger) Clear(owner Owner, types ...Type) {
	if l == nil {
		return
	}
	if len(types) == 0 {
		l.set(owner, nil)
		return
	}
	var keep []Adjustment
	for _, adj := range l.entries[owner] {
		if !matches(adj.Type, types) {
			keep = append(keep, adj)
		}
	}
	l.set(owner, keep)
}

// ClearTypes removes adjustments of the given types from every owner.
func (l *Ledger) ClearTypes(types ...Type) {
	if l == nil || len(types) == 0 {
		return
	}
	for _, owner := range l.Owners() {
		l.Clear(owner, types...)
	}
}

// Forget drops every adjustment anchored on owner.
func (l *Ledger) Forget(owner Owner) { l.Clear(owner) }

// Reset empties the ledger.
func (l *Ledger) Reset() {
	if l == nil {
		return
	}
	l.seq = 0
	l.order = nil
	l.entries = make(map[Owner][]Adjustment)
}

// Sum totals the amounts of owner, optionally restricted to types.
func (l *Ledger) Sum(owner Owner, types ...Type) decimal.Decimal {
	total := decimal.Zero
	for _, adj := range l.ByType(owner, types...) {
		total = total.Add(adj.Amount)
	}
	return total
}

// SumAll totals the amounts across every owner, optionally restricted to types.
func (l *Ledger) SumAll(types ...Type) decimal.Decimal {
	total := decimal.Zero
	for _, owner := range l.Owners() {
		total = total.Add(l.Sum(owner, types...))
	}
	return total
}

// SumByType totals every amount per adjustment type across owners.
func (l *Ledger) SumByType() map[Type]decimal.Decimal {
	out := make(map[Type]decimal.Decimal)
	for _, adj := range l.All() {
		out[adj.Type] = out[adj.Type].Add(adj.Amount)
	}
	return out
}

// Owners returns the owners holding at least one adjustment, in first-seen order.
func (l *Ledger) Owners() []Owner {
	if l == nil {
		return nil
	}
	out := make([]Owner, 0, len(l.order))
	for _, owner := range l.order {
		if len(l.entries[owner]) > 0 {
			out = append(out, owner)
		}
	}
	return out
}

// All returns every adjustment grouped by owner order.
func (l *Ledger) All() []Adjustment {
	var out []Adjustment
	for _, owner := range l.Owners() {
		out = append(out, l.entries[owner]...)
	}
	return out
}

// Len returns the number of stored adjustments.
func (l *Ledger) Len() int {
	n := 0
	for _, owner := range l.Owners() {
		n += len(l.entries[owner])
	}
	return n
}

// Clone returns an independent copy.
func (l *Ledger) Clone() *Ledger {
	out := NewLedger()
	if l == nil {
		return out
	}
	out.seq = l.seq
	out.order = append([]Owner(nil), l.order...)
	for owner, list := range l.entries {
		out.entries[owner] = append([]Adjustment(nil), list...)
	}
	return out
}

// Fingerprint renders the full ledger content ignoring sequence numbers.
func (l *Ledger) Fingerprint() string {
	all := l.All()
	lines := make([]string, 0, len(all))
	for _, adj := range all {
		lines = append(lines, adj.Fingerprint())
	}
	return strings.Join(lines, "\n")
}

func (l *Ledger) set(owner Owner, list []Adjustment) {
	if len(list) == 0 {
		delete(l.entries, owner)
		for i, o := range l.order {
			if o == owner {
				l.order = append(l.order[:i:i], l.order[i+1:]...)
				break
			}
		}
		return
	}
	l.entries[owner] = list
}

func matches(t Type, types []Type) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
