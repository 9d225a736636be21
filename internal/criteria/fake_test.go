package criteria

import (
	"context"
	"errors"
	"strings"

	"smartcollections/internal/catalog"
)

type fakeCatalog struct {
	entities map[string]catalog.Entity
	credits  map[string][]catalog.Credit

	searchCalls   int
	creditedCalls int
	queryCalls    int
	creditsCalls  int
	failSearch    bool
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		entities: make(map[string]catalog.Entity),
		credits:  make(map[string][]catalog.Credit),
	}
}

func (f *fakeCatalog) add(e catalog.Entity, credits ...catalog.Credit) {
	f.entities[e.ID] = e
	if len(credits) > 0 {
		f.credits[e.ID] = credits
	}
}

func (f *fakeCatalog) QueryEntities(_ context.Context, filter catalog.Filter) ([]catalog.Entity, error) {
	f.queryCalls++
	var out []catalog.Entity
	for _, e := range f.entities {
		if filter.ParentID != "" && e.ParentID != filter.ParentID {
			continue
		}
		if filter.ExcludeVirtual && e.Virtual {
			continue
		}
		if len(filter.Kinds) > 0 {
			ok := false
			for _, k := range filter.Kinds {
				ok = ok || e.Kind == k
			}
			if !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeCatalog) Credits(_ context.Context, id string) ([]catalog.Credit, error) {
	f.creditsCalls++
	return f.credits[id], nil
}

func (f *fakeCatalog) SearchPeople(_ context.Context, fragment string) ([]string, error) {
	f.searchCalls++
	if f.failSearch {
		return nil, errors.New("catalog unavailable")
	}
	seen := map[string]bool{}
	var out []string
	for _, cs := range f.credits {
		for _, c := range cs {
			if strings.Contains(strings.ToLower(c.PersonName), strings.ToLower(fragment)) && !seen[c.PersonName] {
				seen[c.PersonName] = true
				out = append(out, c.PersonName)
			}
		}
	}
	return out, nil
}

func (f *fakeCatalog) CreditedEntities(_ context.Context, people []string, roles []catalog.Role) ([]string, error) {
	f.creditedCalls++
	var out []string
	for id, cs := range f.credits {
		for _, c := range cs {
			if contains(people, c.PersonName) && hasRole(roles, c.Role) {
				out = append(out, id)
				break
			}
		}
	}
	return out, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

type fakeUsers struct {
	users  []catalog.User
	played map[string]map[string]bool // user -> entity
	err    error
}

func (f *fakeUsers) ListUsers(context.Context) ([]catalog.User, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.users, nil
}

func (f *fakeUsers) IsPlayed(_ context.Context, userID, entityID string) (bool, error) {
	return f.played[userID][entityID], nil
}
