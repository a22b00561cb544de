package chart

import (
	"sort"
	"time"

	"github.com/okian/chartrank/internal/domain/pivot"
)

// Order selects the primary ordering key of chart lists.
type Order string

// Orders. Both break ties by sort key, then by ID.
const (
	OrderByEra    Order = "era"
	OrderByNumber Order = "number"
)

// Filters narrows an active chart listing.
type Filters struct {
	// ExcludeLimited drops limited-availability charts.
	ExcludeLimited bool
	// ExcludeNotYetAdded drops charts not yet added, or already deleted, at
	// the pivot.
	ExcludeNotYetAdded bool
	// Order selects the primary key; empty means OrderByEra.
	Order Order
}

// Active filters charts by display flag and f, then sorts them. The input
// slice is not modified.
func Active(charts []*Chart, p pivot.Date, now time.Time, f Filters) []*Chart {
	out := make([]*Chart, 0, len(charts))
	for _, c := range charts {
		if c == nil || c.Hidden {
			continue
		}
		if f.ExcludeLimited && c.Limited {
			continue
		}
		if f.ExcludeNotYetAdded && !c.AvailableOn(p, now) {
			continue
		}
		out = append(out, c)
	}
	Sort(out, f.Order)
	return out
}

// Sort orders charts by order, then sort key, then ID.
func Sort(charts []*Chart, order Order) {
	sort.SliceStable(charts, func(i, j int) bool {
		return Less(charts[i], charts[j], order)
	})
}

// Less is the total order used for chart lists.
func Less(a, b *Chart, order Order) bool {
	ka, kb := a.Era, b.Era
	if order == OrderByNumber {
		ka, kb = a.Number, b.Number
	}
	if ka != kb {
		return ka < kb
	}
	if a.SortKey != b.SortKey {
		return a.SortKey < b.SortKey
	}
	return a.ID < b.ID
}
