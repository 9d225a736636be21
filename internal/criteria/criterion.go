// Package criteria defines the typed predicates a collection expression is
// built from and evaluates them against catalog entities.
package criteria

import "strings"

// Kind identifies a criterion. The set is closed; keyword aliases resolve to
// exactly one Kind when an expression is parsed.
type Kind int

const (
	Title Kind = iota + 1
	Filename
	Genre
	Studio
	Actor
	Director
	Tag
	ParentalRating
	CommunityRating
	CriticsRating
	CustomRating
	ProductionLocation
	AudioLanguage
	Subtitle
	Year
	ReleaseDate
	AddedDate
	EpisodeAirDate
	MediaKindMovie
	MediaKindShow
	Unplayed
	Watched
)

// canonical keyword per kind, used when rendering an expression
var keywords = map[Kind]string{
	Title:              "TITLE",
	Filename:           "FILENAME",
	Genre:              "GENRE",
	Studio:             "STUDIO",
	Actor:              "ACTOR",
	Director:           "DIRECTOR",
	Tag:                "TAG",
	ParentalRating:     "PARENTALRATING",
	CommunityRating:    "COMMUNITYRATING",
	CriticsRating:      "CRITICSRATING",
	CustomRating:       "CUSTOMRATING",
	ProductionLocation: "PRODUCTIONLOCATION",
	AudioLanguage:      "AUDIOLANGUAGE",
	Subtitle:           "SUBTITLE",
	Year:               "YEAR",
	ReleaseDate:        "RELEASEDATE",
	AddedDate:          "ADDEDDATE",
	EpisodeAirDate:     "EPISODEAIRDATE",
	MediaKindMovie:     "MOVIE",
	MediaKindShow:      "SHOW",
	Unplayed:           "UNPLAYED",
	Watched:            "WATCHED",
}

var aliases = map[string]Kind{
	"NAME":       Title,
	"FILE":       Filename,
	"PATH":       Filename,
	"GENRES":     Genre,
	"STUDIOS":    Studio,
	"CAST":       Actor,
	"ACTORS":     Actor,
	"DIRECTORS":  Director,
	"TAGS":       Tag,
	"PARENTAL":   ParentalRating,
	"RATING":     ParentalRating,
	"MPAA":       ParentalRating,
	"COMMUNITY":  CommunityRating,
	"CRITICS":    CriticsRating,
	"CRITIC":     CriticsRating,
	"CUSTOM":     CustomRating,
	"LOCATION":   ProductionLocation,
	"COUNTRY":    ProductionLocation,
	"AUDIO":      AudioLanguage,
	"LANGUAGE":   AudioLanguage,
	"SUBTITLES":  Subtitle,
	"SUBS":       Subtitle,
	"RELEASE":    ReleaseDate,
	"RELEASED":   ReleaseDate,
	"ADDED":      AddedDate,
	"AIRDATE":    EpisodeAirDate,
	"AIRED":      EpisodeAirDate,
	"MOVIES":     MediaKindMovie,
	"SHOWS":      MediaKindShow,
	"SERIES":     MediaKindShow,
	"UNWATCHED":  Unplayed,
	"PLAYED":     Watched,
}

func init() {
	for k, kw := range keywords {
		aliases[kw] = k
	}
}

// Lookup resolves a keyword or alias, ignoring case.
func Lookup(keyword string) (Kind, bool) {
	k, ok := aliases[strings.ToUpper(keyword)]
	return k, ok
}

func (k Kind) String() string {
	if kw, ok := keywords[k]; ok {
		return kw
	}
	return "UNKNOWN"
}

// TakesValue reports whether the criterion needs a quoted operand. State
// criteria (media kind, play state) take none.
func (k Kind) TakesValue() bool {
	switch k {
	case MediaKindMovie, MediaKindShow, Unplayed, Watched:
		return false
	}
	return true
}

// Criterion is a single typed predicate with its literal operand. The case
// sensitivity is inherited from the owning collection definition and passed
// at match time.
type Criterion struct {
	Kind  Kind
	Value string
}

// String renders the criterion the way the parser reads it back.
func (c Criterion) String() string {
	if !c.Kind.TakesValue() {
		return c.Kind.String()
	}
	return c.Kind.String() + " " + Quote(c.Value)
}

// Quote wraps v in double quotes, escaping backslashes and quotes.
func Quote(v string) string {
	var b strings.Builder
	b.Grow(len(v) + 2)
	b.WriteByte('"')
	for _, r := range v {
		if r == '"' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	b.WriteByte('"')
	return b.String()
}
