package criteria

import (
	"context"
	"sort"
	"strings"

	"smartcollections/internal/catalog"
	"smartcollections/internal/textnorm"
)

// RolesFor returns the credit roles a person criterion covers. Guest stars
// count as cast.
func RolesFor(k Kind) []catalog.Role {
	switch k {
	case Actor:
		return []catalog.Role{catalog.RoleActor, catalog.RoleGuestStar}
	case Director:
		return []catalog.Role{catalog.RoleDirector}
	}
	return nil
}

type personKey struct {
	fragment      string
	roles         string
	caseSensitive bool
}

// PersonCache memoizes which entities credit a person whose name contains a
// fragment. It lives for one batch evaluation: create it before the batch
// and Close it right after. It is not safe for concurrent use.
type PersonCache struct {
	catalog catalog.Catalog
	folder  *textnorm.Folder
	entries map[personKey]map[string]struct{}
	lookups int
	closed  bool
}

func NewPersonCache(cat catalog.Catalog) *PersonCache {
	return &PersonCache{
		catalog: cat,
		folder:  textnorm.NewFolder(),
		entries: make(map[personKey]map[string]struct{}),
	}
}

// Contains reports whether entityID credits a person matching fragment in
// one of roles.
func (c *PersonCache) Contains(ctx context.Context, fragment string, roles []catalog.Role, caseSensitive bool, entityID string) (bool, error) {
	set, err := c.Lookup(ctx, fragment, roles, caseSensitive)
	if err != nil {
		return false, err
	}
	_, ok := set[entityID]
	return ok, nil
}

// Lookup returns the set of entity ids for the key, computing it on first
// access. Failed computations are not cached. After Close every lookup is
// computed again and nothing is retained.
func (c *PersonCache) Lookup(ctx context.Context, fragment string, roles []catalog.Role, caseSensitive bool) (map[string]struct{}, error) {
	fragment = strings.TrimSpace(fragment)
	key := personKey{fragment: fragment, roles: roleKey(roles), caseSensitive: caseSensitive}
	if !caseSensitive {
		key.fragment = c.folder.Fold(fragment)
	}

	if set, ok := c.entries[key]; ok {
		return set, nil
	}

	set, err := c.compute(ctx, fragment, roles, caseSensitive)
	if err != nil {
		return nil, err
	}
	if !c.closed {
		c.entries[key] = set
	}
	return set, nil
}

func (c *PersonCache) compute(ctx context.Context, fragment string, roles []catalog.Role, caseSensitive bool) (map[string]struct{}, error) {
	c.lookups++

	names, err := c.catalog.SearchPeople(ctx, fragment)
	if err != nil {
		return nil, err
	}

	needle := fragment
	if !caseSensitive {
		needle = c.folder.Fold(fragment)
	}
	matched := names[:0:0]
	for _, name := range names {
		hay := name
		if !caseSensitive {
			hay = c.folder.Fold(name)
		}
		if strings.Contains(hay, needle) {
			matched = append(matched, name)
		}
	}

	set := make(map[string]struct{})
	if len(matched) == 0 {
		return set, nil
	}

	ids, err := c.catalog.CreditedEntities(ctx, matched, roles)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

// Len is the number of cached keys.
func (c *PersonCache) Len() int {
	return len(c.entries)
}

// Lookups counts catalog-wide computations performed so far.
func (c *PersonCache) Lookups() int {
	return c.lookups
}

// Close drops every cached set.
func (c *PersonCache) Close() {
	c.entries = make(map[personKey]map[string]struct{})
	c.closed = true
}

func roleKey(roles []catalog.Role) string {
	parts := make([]string, len(roles))
	for i, r := range roles {
		parts[i] = string(r)
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

// creditsMatch is the uncached path: scan the entity's own credits.
func creditsMatch(credits []catalog.Credit, fragment string, roles []catalog.Role, fold func(string) string) bool {
	fragment = strings.TrimSpace(fragment)
	needle := fold(fragment)
	for _, cr := range credits {
		if !hasRole(roles, cr.Role) {
			continue
		}
		if strings.Contains(fold(cr.PersonName), needle) {
			return true
		}
	}
	return false
}

func hasRole(roles []catalog.Role, r catalog.Role) bool {
	for _, want := range roles {
		if want == r {
			return true
		}
	}
	return false
}
