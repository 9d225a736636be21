package criteria

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcollections/internal/catalog"
)

func TestPersonCache_UnionsMatchingPeople(t *testing.T) {
	cat := newFakeCatalog()
	cat.add(catalog.Entity{ID: "a"}, catalog.Credit{PersonName: "Chris Evans", Role: catalog.RoleActor})
	cat.add(catalog.Entity{ID: "b"}, catalog.Credit{PersonName: "Chris Pratt", Role: catalog.RoleActor})
	cat.add(catalog.Entity{ID: "c"}, catalog.Credit{PersonName: "Christopher Nolan", Role: catalog.RoleDirector})

	pc := NewPersonCache(cat)
	ctx := context.Background()

	set, err := pc.Lookup(ctx, "chris", RolesFor(Actor), false)
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.Contains(t, set, "a")
	assert.Contains(t, set, "b")

	// same key, different case, is served from the cache
	_, err = pc.Lookup(ctx, "CHRIS", RolesFor(Actor), false)
	require.NoError(t, err)
	assert.Equal(t, 1, pc.Lookups())
	assert.Equal(t, 1, cat.searchCalls)
	assert.Equal(t, 1, cat.creditedCalls)
}

func TestPersonCache_NoMatchSkipsCreditQuery(t *testing.T) {
	cat := newFakeCatalog()
	cat.add(catalog.Entity{ID: "a"}, catalog.Credit{PersonName: "Chris Evans", Role: catalog.RoleActor})

	pc := NewPersonCache(cat)
	ok, err := pc.Contains(context.Background(), "nobody", RolesFor(Actor), false, "a")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 0, cat.creditedCalls)
}

func TestPersonCache_CaseSensitiveRefinesSearch(t *testing.T) {
	cat := newFakeCatalog()
	cat.add(catalog.Entity{ID: "a"}, catalog.Credit{PersonName: "Eva Green", Role: catalog.RoleActor})
	cat.add(catalog.Entity{ID: "b"}, catalog.Credit{PersonName: "Lyla Maeva", Role: catalog.RoleActor})

	pc := NewPersonCache(cat)
	set, err := pc.Lookup(context.Background(), "Eva", RolesFor(Actor), true)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"a": {}}, set)
}

func TestPersonCache_Close(t *testing.T) {
	cat := newFakeCatalog()
	cat.add(catalog.Entity{ID: "a"}, catalog.Credit{PersonName: "Eva Green", Role: catalog.RoleActor})

	pc := NewPersonCache(cat)
	ctx := context.Background()
	_, err := pc.Lookup(ctx, "eva", RolesFor(Actor), false)
	require.NoError(t, err)
	assert.Equal(t, 1, pc.Len())

	pc.Close()
	assert.Equal(t, 0, pc.Len())

	ok, err := pc.Contains(ctx, "eva", RolesFor(Actor), false, "a")
	require.NoError(t, err)
	assert.True(t, ok, "closed cache still answers")
	assert.Equal(t, 0, pc.Len())
	assert.Equal(t, 2, cat.searchCalls)
}
