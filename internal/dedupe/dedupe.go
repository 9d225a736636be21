// Package dedupe collapses candidate entities that describe the same title.
package dedupe

import (
	"strings"

	"smartcollections/internal/catalog"
	"smartcollections/internal/textnorm"
)

type identity struct {
	title   string
	date    int64
	hasDate bool
}

// Dedupe keeps the first entity for every (case-folded trimmed title,
// premiere date) pair and preserves input order. Entities with neither a
// title nor a premiere date cannot be identified and are always kept.
func Dedupe(candidates []catalog.Entity) []catalog.Entity {
	folder := textnorm.NewFolder()
	seen := make(map[identity]struct{}, len(candidates))
	out := make([]catalog.Entity, 0, len(candidates))

	for _, e := range candidates {
		title := strings.TrimSpace(e.Title)
		if title == "" && e.PremiereDate == nil {
			out = append(out, e)
			continue
		}

		key := identity{title: folder.Fold(title)}
		if e.PremiereDate != nil {
			key.date = e.PremiereDate.UnixNano()
			key.hasDate = true
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, e)
	}

	return out
}
