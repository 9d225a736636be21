package criteria

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"smartcollections/internal/cache"
	"smartcollections/internal/catalog"
	"smartcollections/internal/textnorm"
)

const defaultEpisodeCacheSize = 256

// Matcher evaluates single criteria against entities. One Matcher serves one
// batch evaluation and is not safe for concurrent use.
type Matcher struct {
	catalog  catalog.Catalog
	users    catalog.UserData
	people   *PersonCache
	logger   zerolog.Logger
	now      func() time.Time
	folder   *textnorm.Folder
	episodes *cache.LRU[string, []catalog.Entity]

	cacheSize   int
	userList    []catalog.User
	usersLoaded bool
	degraded    bool
	lookupFails int
}

type Option func(*Matcher)

// WithUserData enables play-state criteria. Without it they degrade to
// "unplayed".
func WithUserData(u catalog.UserData) Option {
	return func(m *Matcher) { m.users = u }
}

// WithPersonCache routes Actor and Director criteria through c.
func WithPersonCache(c *PersonCache) Option {
	return func(m *Matcher) { m.people = c }
}

// WithClock overrides the local wall clock used for relative-day dates.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// WithEpisodeCacheSize bounds how many series' episode lists are memoized.
func WithEpisodeCacheSize(n int) Option {
	return func(m *Matcher) { m.cacheSize = n }
}

func NewMatcher(cat catalog.Catalog, logger zerolog.Logger, opts ...Option) (*Matcher, error) {
	m := &Matcher{
		catalog:   cat,
		logger:    logger.With().Str("component", "matcher").Logger(),
		now:       time.Now,
		folder:    textnorm.NewFolder(),
		cacheSize: defaultEpisodeCacheSize,
	}
	for _, opt := range opts {
		opt(m)
	}

	episodes, err := cache.NewLRU[string, []catalog.Entity](m.cacheSize)
	if err != nil {
		return nil, err
	}
	m.episodes = episodes

	return m, nil
}

// Degraded reports whether a play-state criterion had to fall back to the
// conservative default during this batch.
func (m *Matcher) Degraded() bool {
	return m.degraded
}

// LookupFailures counts catalog errors swallowed while matching. Each one
// made a criterion evaluate to false.
func (m *Matcher) LookupFailures() int {
	return m.lookupFails
}

// Release drops the episode memo. The person cache belongs to the caller.
func (m *Matcher) Release() {
	m.logger.Debug().Int("cached_series", m.episodes.Len()).Int("lookup_failures", m.lookupFails).Msg("releasing matcher")
	m.episodes.Clear()
	m.userList = nil
	m.usersLoaded = false
}

// Attributes returns the kind-specific attribute view for e.
func (m *Matcher) Attributes(ctx context.Context, e *catalog.Entity) Attributes {
	if e.Kind != catalog.KindSeries {
		return itemAttributes{e: e}
	}
	return &seriesAttributes{e: e, load: func() []catalog.Entity {
		return m.seriesEpisodes(ctx, e.ID)
	}}
}

// Matches reports whether e satisfies c. It never fails: collaborator errors
// are logged and the criterion does not match.
func (m *Matcher) Matches(ctx context.Context, e *catalog.Entity, c Criterion, caseSensitive bool) bool {
	return m.MatchesAttributes(ctx, m.Attributes(ctx, e), c, caseSensitive)
}

// MatchesAttributes is Matches over a prepared attribute view, so several
// leaves of one expression share the same episode load.
func (m *Matcher) MatchesAttributes(ctx context.Context, a Attributes, c Criterion, caseSensitive bool) bool {
	e := a.Entity()

	switch c.Kind {
	case Title:
		return m.contains(e.Title, c.Value, caseSensitive)
	case Filename:
		return m.containsAny(a.Filenames(), c.Value, caseSensitive)
	case Genre:
		return m.containsAny(e.Genres, c.Value, caseSensitive)
	case Studio:
		return m.containsAny(e.Studios, c.Value, caseSensitive)
	case Tag:
		return m.containsAny(e.Tags, c.Value, caseSensitive)
	case ProductionLocation:
		return m.containsAny(e.ProductionLocations, c.Value, caseSensitive)
	case AudioLanguage:
		return m.containsAny(a.AudioLanguages(), c.Value, caseSensitive)
	case Subtitle:
		return m.containsAny(a.SubtitleLanguages(), c.Value, caseSensitive)

	case ParentalRating:
		return m.equal(e.OfficialRating, c.Value, caseSensitive)

	case CommunityRating:
		return matchNumber(e.CommunityRating, c.Value)
	case CriticsRating:
		return matchNumber(e.CriticRating, c.Value)
	case Year:
		if e.ProductionYear == nil {
			return false
		}
		y := float64(*e.ProductionYear)
		return matchNumber(&y, c.Value)
	case CustomRating:
		return m.customRating(e.CustomRating, c.Value, caseSensitive)

	case ReleaseDate:
		return matchDays(m.now(), e.PremiereDate, c.Value)
	case AddedDate:
		return matchDays(m.now(), e.DateAdded, c.Value)
	case EpisodeAirDate:
		return matchDays(m.now(), a.EpisodeAirDate(), c.Value)

	case Actor, Director:
		return m.person(ctx, e, c, caseSensitive)

	case MediaKindMovie:
		return e.Kind == catalog.KindMovie
	case MediaKindShow:
		return e.Kind == catalog.KindSeries

	case Unplayed:
		return !m.played(ctx, e.ID)
	case Watched:
		return m.played(ctx, e.ID)
	}

	return false
}

func (m *Matcher) contains(hay, needle string, caseSensitive bool) bool {
	if caseSensitive {
		return strings.Contains(hay, needle)
	}
	return strings.Contains(m.folder.Fold(hay), m.folder.Fold(needle))
}

func (m *Matcher) containsAny(values []string, needle string, caseSensitive bool) bool {
	if len(values) == 0 {
		return false
	}
	if !caseSensitive {
		needle = m.folder.Fold(needle)
	}
	for _, v := range values {
		if !caseSensitive {
			v = m.folder.Fold(v)
		}
		if strings.Contains(v, needle) {
			return true
		}
	}
	return false
}

func (m *Matcher) equal(actual, want string, caseSensitive bool) bool {
	actual = strings.TrimSpace(actual)
	want = strings.TrimSpace(want)
	if actual == "" {
		return false
	}
	if caseSensitive {
		return actual == want
	}
	return m.folder.Fold(actual) == m.folder.Fold(want)
}

// customRating compares numerically when the stored value is a number and
// falls back to substring matching otherwise.
func (m *Matcher) customRating(stored, value string, caseSensitive bool) bool {
	stored = strings.TrimSpace(stored)
	if stored == "" {
		return false
	}
	if n, err := strconv.ParseFloat(stored, 64); err == nil {
		return matchNumber(&n, value)
	}
	return m.contains(stored, value, caseSensitive)
}

func (m *Matcher) person(ctx context.Context, e *catalog.Entity, c Criterion, caseSensitive bool) bool {
	roles := RolesFor(c.Kind)

	if m.people != nil {
		ok, err := m.people.Contains(ctx, c.Value, roles, caseSensitive, e.ID)
		if err != nil {
			m.lookupFailed(err, "person lookup failed", e.ID)
			return false
		}
		return ok
	}

	credits, err := m.catalog.Credits(ctx, e.ID)
	if err != nil {
		m.lookupFailed(err, "credit lookup failed", e.ID)
		return false
	}
	fold := func(s string) string { return s }
	if !caseSensitive {
		fold = m.folder.Fold
	}
	return creditsMatch(credits, c.Value, roles, fold)
}

// played is true when any user has played the entity. Without user data
// every entity counts as unplayed.
func (m *Matcher) played(ctx context.Context, entityID string) bool {
	if m.users == nil {
		m.degrade("no user data source configured")
		return false
	}

	if !m.usersLoaded {
		users, err := m.users.ListUsers(ctx)
		if err != nil {
			m.logger.Warn().Err(err).Msg("failed to list users")
			m.users = nil
			m.degrade("user listing failed")
			return false
		}
		m.userList = users
		m.usersLoaded = true
	}

	for _, u := range m.userList {
		played, err := m.users.IsPlayed(ctx, u.ID, entityID)
		if err != nil {
			m.logger.Warn().Err(err).Str("user", u.ID).Str("entity", entityID).Msg("failed to read play state")
			m.degrade("play state lookup failed")
			continue
		}
		if played {
			return true
		}
	}
	return false
}

func (m *Matcher) degrade(reason string) {
	if m.degraded {
		return
	}
	m.degraded = true
	m.logger.Warn().Str("reason", reason).Msg("play state unavailable, treating items as unplayed")
}

func (m *Matcher) seriesEpisodes(ctx context.Context, seriesID string) []catalog.Entity {
	if eps, ok := m.episodes.Get(seriesID); ok {
		return eps
	}

	eps, err := m.catalog.QueryEntities(ctx, catalog.Filter{
		ParentID:       seriesID,
		Kinds:          []catalog.Kind{catalog.KindEpisode},
		Recursive:      true,
		ExcludeVirtual: true,
	})
	if err != nil {
		m.lookupFailed(err, "episode lookup failed", seriesID)
		return nil
	}

	m.episodes.Set(seriesID, eps)
	return eps
}

func (m *Matcher) lookupFailed(err error, msg, entityID string) {
	m.lookupFails++
	m.logger.Warn().Err(err).Str("entity", entityID).Msg(msg)
}
