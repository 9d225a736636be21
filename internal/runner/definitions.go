package runner

import (
	"strings"

	"smartcollections/internal/catalog"
	"smartcollections/internal/config"
	"smartcollections/internal/franchise"
)

type Source string

const (
	SourceMatch      Source = "match"
	SourceExpression Source = "expression"
	SourceDiscovered Source = "discovered"
)

var defaultKinds = []catalog.Kind{catalog.KindMovie, catalog.KindSeries}

// Definition is one managed collection to maintain.
//
// A match definition collects every entity carrying any of the listed tags,
// genres, studios or people; each value is looked up on its own and the
// results are concatenated. An expression definition evaluates Expression
// against every non-virtual entity of MediaKinds. Discovered definitions
// carry their members directly.
type Definition struct {
	Name          string         `json:"name"`
	Source        Source         `json:"source"`
	Match         catalog.Filter `json:"-"`
	Expression    string         `json:"expression,omitempty"`
	CaseSensitive bool           `json:"case_sensitive,omitempty"`
	MediaKinds    []catalog.Kind `json:"media_kinds,omitempty"`

	members []catalog.Entity
}

func (d *Definition) kinds() []catalog.Kind {
	if len(d.MediaKinds) == 0 {
		return defaultKinds
	}
	return d.MediaKinds
}

// DefinitionsFromConfig converts validated configuration into definitions.
func DefinitionsFromConfig(defs []config.DefinitionConfig) []Definition {
	out := make([]Definition, 0, len(defs))
	for _, dc := range defs {
		d := Definition{
			Name:          strings.TrimSpace(dc.Name),
			CaseSensitive: dc.CaseSensitive,
		}
		for _, k := range dc.MediaKinds {
			if kind, ok := catalog.ParseKind(k); ok {
				d.MediaKinds = append(d.MediaKinds, kind)
			}
		}

		if strings.TrimSpace(dc.Expression) != "" {
			d.Source = SourceExpression
			d.Expression = dc.Expression
		} else if dc.Match != nil {
			d.Source = SourceMatch
			d.Match = catalog.Filter{
				Tags:    dc.Match.Tags,
				Genres:  dc.Match.Genres,
				Studios: dc.Match.Studios,
				People:  dc.Match.People,
			}
		}
		out = append(out, d)
	}
	return out
}

// DiscoveryFromConfig returns nil when discovery is disabled.
func DiscoveryFromConfig(dc config.DiscoveryConfig) *franchise.Options {
	if !dc.Enabled {
		return nil
	}
	return &franchise.Options{
		MinSize:                dc.MinSize,
		IncludeUnnumberedFirst: dc.IncludeUnnumberedFirst,
		IncludeSpinoffs:        dc.IncludeSpinoffs,
		NameSuffix:             dc.NameSuffix,
	}
}

// matchFilters splits a match rule into one filter per listed value.
func matchFilters(m catalog.Filter, kinds []catalog.Kind) []catalog.Filter {
	var out []catalog.Filter
	base := catalog.Filter{Kinds: kinds, ExcludeVirtual: true}
	for _, v := range m.Tags {
		f := base
		f.Tags = []string{v}
		out = append(out, f)
	}
	for _, v := range m.Genres {
		f := base
		f.Genres = []string{v}
		out = append(out, f)
	}
	for _, v := range m.Studios {
		f := base
		f.Studios = []string{v}
		out = append(out, f)
	}
	for _, v := range m.People {
		f := base
		f.People = []string{v}
		out = append(out, f)
	}
	return out
}
