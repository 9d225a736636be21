package reconcile

import (
	"sort"

	"smartcollections/internal/catalog"
)

// SortCanonical orders entities newest first: production year descending,
// then premiere date descending with a missing date sorting last. Ties keep
// their input order.
func SortCanonical(es []catalog.Entity) {
	sort.SliceStable(es, func(i, j int) bool {
		return canonicalLess(&es[i], &es[j])
	})
}

func canonicalLess(a, b *catalog.Entity) bool {
	if ya, yb := a.Year(), b.Year(); ya != yb {
		return ya > yb
	}
	switch {
	case a.PremiereDate == nil:
		return false
	case b.PremiereDate == nil:
		return true
	}
	return a.PremiereDate.After(*b.PremiereDate)
}
