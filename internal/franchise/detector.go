// Package franchise groups numbered titles ("Rocky II", "Kill Bill: Vol. 2")
// into franchises that can be kept as managed collections.
package franchise

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"smartcollections/internal/catalog"
	"smartcollections/internal/textnorm"
)

// Title suffix patterns, tried in this order.
var (
	partSuffixRx   = regexp.MustCompile(`(?i)^(.*?)[\s:,.\-–—]*\b(?:episode|ep|part|pt|chapter|chap|vol|volume|book)\.?\s*(\d{1,3}|[ivxlcdm]+)\s*$`)
	romanSuffixRx  = regexp.MustCompile(`^(.+?)[\s:,\-–—]+([IVXLCDM]+)$`)
	arabicSuffixRx = regexp.MustCompile(`^(.+?)[\s:,\-–—]+(\d{1,3})$`)

	// "Solo: A Star Wars Story", "Hobbs & Shaw: A Fast Tale"
	spinoffRx = regexp.MustCompile(`(?i)^(.+?):\s*(?:(?:a|an|the)\s+)?(.+?)\s+(?:story|tale|chronicles?)$`)
)

const trimSeparators = " \t:,.-–—"

var leadingArticles = []string{"the ", "a ", "an "}

type Options struct {
	// MinSize is the smallest franchise kept. Values below 2 mean 2.
	MinSize int
	// IncludeUnnumberedFirst adds an unnumbered title equal to a base as
	// installment zero.
	IncludeUnnumberedFirst bool
	// IncludeSpinoffs attaches "X: Y Story" titles whose Y overlaps a base.
	IncludeSpinoffs bool
	// NameSuffix is appended to the franchise name to form the collection
	// name, e.g. " Collection".
	NameSuffix string
}

type Member struct {
	Entity   catalog.Entity `json:"entity"`
	Sequence int            `json:"sequence"`
	Spinoff  bool           `json:"spinoff,omitempty"`
	numbered bool
	base     string
}

type Franchise struct {
	Key            string   `json:"key"`
	BaseTitle      string   `json:"base_title"`
	CollectionName string   `json:"collection_name"`
	Members        []Member `json:"members"`
}

// IDs returns member ids in franchise order.
func (f *Franchise) IDs() []string {
	out := make([]string, len(f.Members))
	for i, m := range f.Members {
		out[i] = m.Entity.ID
	}
	return out
}

// Entities returns members in franchise order.
func (f *Franchise) Entities() []catalog.Entity {
	out := make([]catalog.Entity, len(f.Members))
	for i, m := range f.Members {
		out[i] = m.Entity
	}
	return out
}

// Detect partitions entities into franchises, sorted by normalized base
// title. Members are ordered by sequence number; unnumbered members count
// as zero and ties keep input order.
func Detect(entities []catalog.Entity, opts Options) []Franchise {
	minSize := opts.MinSize
	if minSize < 2 {
		minSize = 2
	}

	groups := make(map[string][]Member)
	var loose []catalog.Entity

	for _, e := range entities {
		base, seq, ok := ExtractBase(e.Title)
		if !ok {
			loose = append(loose, e)
			continue
		}
		key := normalize(base)
		if key == "" {
			loose = append(loose, e)
			continue
		}
		groups[key] = append(groups[key], Member{Entity: e, Sequence: seq, numbered: true, base: base})
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if opts.IncludeUnnumberedFirst {
		rest := loose[:0:0]
		for _, e := range loose {
			key := normalize(strings.Trim(e.Title, trimSeparators))
			if _, ok := groups[key]; ok && key != "" {
				groups[key] = append(groups[key], Member{Entity: e, base: e.Title})
				continue
			}
			rest = append(rest, e)
		}
		loose = rest
	}

	if opts.IncludeSpinoffs {
		for _, e := range loose {
			m := spinoffRx.FindStringSubmatch(strings.TrimSpace(e.Title))
			if m == nil {
				continue
			}
			fragment := normalize(m[2])
			if fragment == "" {
				continue
			}
			for _, k := range keys {
				if strings.Contains(k, fragment) || strings.Contains(fragment, k) {
					groups[k] = append(groups[k], Member{Entity: e, Spinoff: true, base: m[1]})
					break
				}
			}
		}
	}

	var out []Franchise
	for _, k := range keys {
		members := groups[k]
		if len(members) < minSize {
			continue
		}
		sort.SliceStable(members, func(i, j int) bool {
			return members[i].Sequence < members[j].Sequence
		})

		name := franchiseName(members)
		out = append(out, Franchise{
			Key:            k,
			BaseTitle:      name,
			CollectionName: name + opts.NameSuffix,
			Members:        members,
		})
	}
	return out
}

// franchiseName prefers the title of the unnumbered installment, then the
// extracted base of the earliest member.
func franchiseName(members []Member) string {
	for _, m := range members {
		if !m.numbered && !m.Spinoff {
			return textnorm.NormalizeCapitalization(strings.TrimSpace(m.Entity.Title))
		}
	}
	for _, m := range members {
		if m.numbered {
			return textnorm.NormalizeCapitalization(m.base)
		}
	}
	return textnorm.NormalizeCapitalization(strings.TrimSpace(members[0].base))
}

// ExtractBase strips a sequence suffix from title. It tries a part or
// chapter word with a number, then a trailing Roman numeral, then a trailing
// Arabic numeral of up to three digits.
func ExtractBase(title string) (base string, sequence int, ok bool) {
	title = strings.TrimSpace(title)

	if m := partSuffixRx.FindStringSubmatch(title); m != nil {
		if n, ok := parseNumber(m[2]); ok {
			if base := strings.Trim(m[1], trimSeparators); base != "" {
				return base, n, true
			}
		}
	}

	if m := romanSuffixRx.FindStringSubmatch(title); m != nil {
		if n, ok := parseRoman(m[2]); ok {
			if base := strings.Trim(m[1], trimSeparators); base != "" {
				return base, n, true
			}
		}
	}

	if m := arabicSuffixRx.FindStringSubmatch(title); m != nil {
		if n, err := strconv.Atoi(m[2]); err == nil {
			if base := strings.Trim(m[1], trimSeparators); base != "" {
				return base, n, true
			}
		}
	}

	return "", 0, false
}

func parseNumber(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return n, true
	}
	return parseRoman(s)
}

// normalize is the grouping key: transliterated, lower case, punctuation
// dropped and one leading article removed.
func normalize(s string) string {
	k := textnorm.Key(s)
	for _, a := range leadingArticles {
		if strings.HasPrefix(k, a) {
			return strings.TrimPrefix(k, a)
		}
	}
	return k
}
