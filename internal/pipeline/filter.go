package pipeline

import (
	"fmt"
	"slices"
	"time"

	"pdo/internal/model"
)

// Filter narrows joined records. Every zero field means "no constraint";
// active fields are ANDed.
type Filter struct {
	From       *time.Time
	To         *time.Time
	Priorities []model.Priority
	Warehouses []model.City
}

// Validate rejects values that cannot match anything meaningful. Callers run
// it at the boundary; Apply itself never fails.
func (f Filter) Validate() error {
	for _, p := range f.Priorities {
		if _, err := model.ParsePriority(string(p)); err != nil {
			return err
		}
	}
	for _, w := range f.Warehouses {
		if _, err := model.ParseWarehouse(string(w)); err != nil {
			return err
		}
	}
	if f.From != nil && f.To != nil && day(*f.To).Before(day(*f.From)) {
		return fmt.Errorf("%w: date range %s > %s", model.ErrInvalidValue,
			f.From.Format(time.DateOnly), f.To.Format(time.DateOnly))
	}
	return nil
}

// Match reports whether r passes every active constraint. The date range is
// inclusive at both ends and compared by calendar day.
func (f Filter) Match(r JoinedRecord) bool {
	d := day(r.OrderDate)
	if f.From != nil && d.Before(day(*f.From)) {
		return false
	}
	if f.To != nil && d.After(day(*f.To)) {
		return false
	}
	if len(f.Priorities) > 0 && !slices.Contains(f.Priorities, r.Priority) {
		return false
	}
	if len(f.Warehouses) > 0 && !slices.Contains(f.Warehouses, r.Origin) {
		return false
	}
	return true
}

// Apply returns the records that match f, preserving order.
func Apply(recs []JoinedRecord, f Filter) []JoinedRecord {
	out := make([]JoinedRecord, 0, len(recs))
	for _, r := range recs {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
