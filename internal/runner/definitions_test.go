package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcollections/internal/catalog"
	"smartcollections/internal/config"
)

func TestDefinitionsFromConfig(t *testing.T) {
	defs := DefinitionsFromConfig([]config.DefinitionConfig{
		{Name: " Recent ", Expression: `RELEASEDATE "<30"`, MediaKinds: []string{"movie", "tv"}, CaseSensitive: true},
		{Name: "Heist", Match: &config.MatchConfig{Tags: []string{"heist"}, People: []string{"Michael Mann"}}},
	})
	require.Len(t, defs, 2)

	assert.Equal(t, "Recent", defs[0].Name)
	assert.Equal(t, SourceExpression, defs[0].Source)
	assert.True(t, defs[0].CaseSensitive)
	assert.Equal(t, []catalog.Kind{catalog.KindMovie, catalog.KindSeries}, defs[0].kinds())

	assert.Equal(t, SourceMatch, defs[1].Source)
	assert.Equal(t, []string{"heist"}, defs[1].Match.Tags)
	assert.Equal(t, defaultKinds, defs[1].kinds())
}

func TestDiscoveryFromConfig(t *testing.T) {
	assert.Nil(t, DiscoveryFromConfig(config.DiscoveryConfig{MinSize: 3}))

	opts := DiscoveryFromConfig(config.DiscoveryConfig{Enabled: true, MinSize: 3, IncludeSpinoffs: true, NameSuffix: " Saga"})
	require.NotNil(t, opts)
	assert.Equal(t, 3, opts.MinSize)
	assert.True(t, opts.IncludeSpinoffs)
	assert.Equal(t, " Saga", opts.NameSuffix)
}

func TestMatchFilters_OneQueryPerValue(t *testing.T) {
	filters := matchFilters(catalog.Filter{
		Tags:   []string{"a", "b"},
		Genres: []string{"Drama"},
		People: []string{"X"},
	}, defaultKinds)

	require.Len(t, filters, 4)
	assert.Equal(t, []string{"a"}, filters[0].Tags)
	assert.Equal(t, []string{"b"}, filters[1].Tags)
	assert.Equal(t, []string{"Drama"}, filters[2].Genres)
	assert.Empty(t, filters[2].Tags)
	assert.Equal(t, []string{"X"}, filters[3].People)
	for _, f := range filters {
		assert.True(t, f.ExcludeVirtual)
		assert.Equal(t, defaultKinds, f.Kinds)
	}
}

func TestMergeDefinitions(t *testing.T) {
	configured := []Definition{{Name: "Star Wars Collection", Source: SourceMatch}}
	discovered := []Definition{
		{Name: "star wars collection", Source: SourceDiscovered},
		{Name: "Rocky Collection", Source: SourceDiscovered},
	}

	got := mergeDefinitions(configured, discovered)
	require.Len(t, got, 2)
	assert.Equal(t, SourceMatch, got[0].Source)
	assert.Equal(t, "Rocky Collection", got[1].Name)
	assert.Len(t, configured, 1)
}
