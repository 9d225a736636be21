package criteria

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcollections/internal/catalog"
)

var fixedNow = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.Local)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }
func timePtr(t time.Time) *time.Time {
	return &t
}

func newTestMatcher(t *testing.T, cat catalog.Catalog, opts ...Option) *Matcher {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	m, err := NewMatcher(cat, zerolog.Nop(), opts...)
	require.NoError(t, err)
	return m
}

func TestMatcher_TextContains(t *testing.T) {
	m := newTestMatcher(t, newFakeCatalog())
	e := &catalog.Entity{
		ID: "m1", Kind: catalog.KindMovie, Title: "The Dark Knight",
		Genres: []string{"Action", "Crime"}, Studios: []string{"Warner Bros."},
		Tags: []string{"imax"}, Path: "/media/movies/The.Dark.Knight.2008.mkv",
	}

	ctx := context.Background()
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: Title, Value: "dark"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: Title, Value: "dark"}, true))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: Title, Value: "Dark"}, true))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: Genre, Value: "crim"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: Genre, Value: "comedy"}, false))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: Studio, Value: "warner"}, false))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: Tag, Value: "IMAX"}, false))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: Filename, Value: "knight.2008"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: Filename, Value: "movies"}, false), "only the base name is matched")
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: ProductionLocation, Value: "USA"}, false))
}

func TestMatcher_ParentalRatingIsExact(t *testing.T) {
	m := newTestMatcher(t, newFakeCatalog())
	ctx := context.Background()
	e := &catalog.Entity{ID: "m1", Kind: catalog.KindMovie, OfficialRating: "PG-13"}

	assert.True(t, m.Matches(ctx, e, Criterion{Kind: ParentalRating, Value: "pg-13"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: ParentalRating, Value: "PG"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: ParentalRating, Value: "pg-13"}, true))

	unrated := &catalog.Entity{ID: "m2", Kind: catalog.KindMovie}
	assert.False(t, m.Matches(ctx, unrated, Criterion{Kind: ParentalRating, Value: ""}, false))
}

func TestMatcher_Numeric(t *testing.T) {
	m := newTestMatcher(t, newFakeCatalog())
	ctx := context.Background()

	for year, want := range map[int]bool{1999: false, 2000: true, 2010: true} {
		e := &catalog.Entity{ID: "y", Kind: catalog.KindMovie, ProductionYear: intPtr(year)}
		assert.Equal(t, want, m.Matches(ctx, e, Criterion{Kind: Year, Value: ">=2000"}, false), year)
	}

	rated := func(v float64) *catalog.Entity {
		return &catalog.Entity{ID: "r", Kind: catalog.KindMovie, CommunityRating: floatPtr(v)}
	}
	assert.True(t, m.Matches(ctx, rated(7.05), Criterion{Kind: CommunityRating, Value: "=7"}, false))
	assert.True(t, m.Matches(ctx, rated(6.95), Criterion{Kind: CommunityRating, Value: "7"}, false))
	assert.False(t, m.Matches(ctx, rated(7.2), Criterion{Kind: CommunityRating, Value: "=7"}, false))
	assert.True(t, m.Matches(ctx, rated(8.2), Criterion{Kind: CommunityRating, Value: "> 8"}, false))
	assert.False(t, m.Matches(ctx, rated(8.2), Criterion{Kind: CommunityRating, Value: "<8"}, false))
	assert.True(t, m.Matches(ctx, rated(8), Criterion{Kind: CommunityRating, Value: "<=8"}, false))
	assert.False(t, m.Matches(ctx, rated(8), Criterion{Kind: CommunityRating, Value: "high"}, false))

	missing := &catalog.Entity{ID: "n", Kind: catalog.KindMovie}
	assert.False(t, m.Matches(ctx, missing, Criterion{Kind: CriticsRating, Value: ">0"}, false))
	assert.False(t, m.Matches(ctx, missing, Criterion{Kind: Year, Value: "<3000"}, false))

	critic := &catalog.Entity{ID: "c", Kind: catalog.KindMovie, CriticRating: floatPtr(91)}
	assert.True(t, m.Matches(ctx, critic, Criterion{Kind: CriticsRating, Value: ">90"}, false))
}

func TestMatcher_CustomRating(t *testing.T) {
	m := newTestMatcher(t, newFakeCatalog())
	ctx := context.Background()

	numeric := &catalog.Entity{ID: "a", Kind: catalog.KindMovie, CustomRating: "8.5"}
	assert.True(t, m.Matches(ctx, numeric, Criterion{Kind: CustomRating, Value: ">8"}, false))
	assert.False(t, m.Matches(ctx, numeric, Criterion{Kind: CustomRating, Value: "<8"}, false))

	text := &catalog.Entity{ID: "b", Kind: catalog.KindMovie, CustomRating: "Family Favourite"}
	assert.True(t, m.Matches(ctx, text, Criterion{Kind: CustomRating, Value: "family"}, false))
	assert.False(t, m.Matches(ctx, text, Criterion{Kind: CustomRating, Value: ">8"}, false))
}

func TestMatcher_RelativeDays(t *testing.T) {
	m := newTestMatcher(t, newFakeCatalog())
	ctx := context.Background()
	e := &catalog.Entity{
		ID: "d", Kind: catalog.KindMovie,
		PremiereDate: timePtr(fixedNow.AddDate(0, 0, -10)),
		DateAdded:    timePtr(fixedNow.Add(-36 * time.Hour)),
	}

	assert.True(t, m.Matches(ctx, e, Criterion{Kind: ReleaseDate, Value: ">7"}, false))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: ReleaseDate, Value: "7"}, false), "operator defaults to >")
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: ReleaseDate, Value: "<5"}, false))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: ReleaseDate, Value: "=10"}, false))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: ReleaseDate, Value: "=11"}, false))
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: ReleaseDate, Value: "=9"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: ReleaseDate, Value: "=12"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: ReleaseDate, Value: "ten"}, false))

	// 36 hours is one whole day
	assert.True(t, m.Matches(ctx, e, Criterion{Kind: AddedDate, Value: "<=1"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: AddedDate, Value: ">1"}, false))

	undated := &catalog.Entity{ID: "u", Kind: catalog.KindMovie}
	assert.False(t, m.Matches(ctx, undated, Criterion{Kind: ReleaseDate, Value: "<100000"}, false))
	assert.False(t, m.Matches(ctx, e, Criterion{Kind: EpisodeAirDate, Value: ">0"}, false), "movies have no episode air date")
}

func TestDaysSince_TruncatesTowardZero(t *testing.T) {
	tests := []struct {
		offset time.Duration
		want   int
	}{
		{-36 * time.Hour, 1},
		{-23 * time.Hour, 0},
		{0, 0},
		{time.Hour, 0},
		{23 * time.Hour, 0},
		{36 * time.Hour, -1},
		{72 * time.Hour, -3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, daysSince(fixedNow, fixedNow.Add(tt.offset)), tt.offset.String())
	}

	m := newTestMatcher(t, newFakeCatalog())
	soon := &catalog.Entity{ID: "f", Kind: catalog.KindMovie, PremiereDate: timePtr(fixedNow.Add(time.Hour))}
	assert.True(t, m.Matches(context.Background(), soon, Criterion{Kind: ReleaseDate, Value: ">=0"}, false))
	assert.False(t, m.Matches(context.Background(), soon, Criterion{Kind: ReleaseDate, Value: "<0"}, false))
}

func TestMatcher_MediaKind(t *testing.T) {
	m := newTestMatcher(t, newFakeCatalog())
	ctx := context.Background()
	movie := &catalog.Entity{ID: "m", Kind: catalog.KindMovie}
	show := &catalog.Entity{ID: "s", Kind: catalog.KindSeries}

	assert.True(t, m.Matches(ctx, movie, Criterion{Kind: MediaKindMovie}, false))
	assert.False(t, m.Matches(ctx, movie, Criterion{Kind: MediaKindShow}, false))
	assert.True(t, m.Matches(ctx, show, Criterion{Kind: MediaKindShow}, false))
	assert.False(t, m.Matches(ctx, show, Criterion{Kind: MediaKindMovie}, false))
}

func TestMatcher_SeriesAggregatesEpisodes(t *testing.T) {
	cat := newFakeCatalog()
	series := catalog.Entity{ID: "s1", Kind: catalog.KindSeries, Title: "Dark", AudioLanguages: []string{"deu"}}
	cat.add(series)
	cat.add(catalog.Entity{
		ID: "e1", Kind: catalog.KindEpisode, ParentID: "s1", Path: "/tv/Dark/S01E01.mkv",
		AudioLanguages: []string{"eng"}, PremiereDate: timePtr(fixedNow.AddDate(0, 0, -30)),
	})
	cat.add(catalog.Entity{
		ID: "e2", Kind: catalog.KindEpisode, ParentID: "s1", Path: "/tv/Dark/S01E02.mkv",
		SubtitleLanguages: []string{"fra"}, PremiereDate: timePtr(fixedNow.AddDate(0, 0, -3)),
	})
	cat.add(catalog.Entity{
		ID: "e3", Kind: catalog.KindEpisode, ParentID: "s1", Virtual: true,
		PremiereDate: timePtr(fixedNow.AddDate(0, 0, 20)),
	})

	m := newTestMatcher(t, cat)
	ctx := context.Background()

	assert.True(t, m.Matches(ctx, &series, Criterion{Kind: AudioLanguage, Value: "deu"}, false))
	assert.True(t, m.Matches(ctx, &series, Criterion{Kind: AudioLanguage, Value: "eng"}, false))
	assert.True(t, m.Matches(ctx, &series, Criterion{Kind: Subtitle, Value: "fra"}, false))
	assert.True(t, m.Matches(ctx, &series, Criterion{Kind: Filename, Value: "s01e02"}, false))
	assert.False(t, m.Matches(ctx, &series, Criterion{Kind: Subtitle, Value: "spa"}, false))

	// latest aired episode is three days old; the virtual one is ignored
	assert.True(t, m.Matches(ctx, &series, Criterion{Kind: EpisodeAirDate, Value: "<7"}, false))
	assert.False(t, m.Matches(ctx, &series, Criterion{Kind: EpisodeAirDate, Value: ">7"}, false))

	assert.Equal(t, 1, cat.queryCalls, "episodes are memoized per series")

	m.Release()
	assert.True(t, m.Matches(ctx, &series, Criterion{Kind: AudioLanguage, Value: "eng"}, false))
	assert.Equal(t, 2, cat.queryCalls)
}

func TestMatcher_SeriesOwnFieldsSkipEpisodeLoad(t *testing.T) {
	cat := newFakeCatalog()
	series := catalog.Entity{ID: "s1", Kind: catalog.KindSeries, Title: "Dark"}
	cat.add(series)

	m := newTestMatcher(t, cat)
	assert.True(t, m.Matches(context.Background(), &series, Criterion{Kind: Title, Value: "dark"}, false))
	assert.Equal(t, 0, cat.queryCalls)
}

func TestMatcher_PeopleWithAndWithoutCache(t *testing.T) {
	cat := newFakeCatalog()
	cat.add(catalog.Entity{ID: "a", Kind: catalog.KindMovie},
		catalog.Credit{PersonName: "Tom Hanks", Role: catalog.RoleActor})
	cat.add(catalog.Entity{ID: "b", Kind: catalog.KindMovie},
		catalog.Credit{PersonName: "Tom Hardy", Role: catalog.RoleGuestStar})
	cat.add(catalog.Entity{ID: "c", Kind: catalog.KindMovie},
		catalog.Credit{PersonName: "Tom Tykwer", Role: catalog.RoleDirector})

	ctx := context.Background()
	actorTom := Criterion{Kind: Actor, Value: "tom"}
	directorTom := Criterion{Kind: Director, Value: "tom"}

	uncached := newTestMatcher(t, cat)
	people := NewPersonCache(cat)
	defer people.Close()
	cached := newTestMatcher(t, cat, WithPersonCache(people))

	for _, id := range []string{"a", "b", "c"} {
		e := &catalog.Entity{ID: id, Kind: catalog.KindMovie}
		assert.Equal(t, uncached.Matches(ctx, e, actorTom, false), cached.Matches(ctx, e, actorTom, false), id)
		assert.Equal(t, uncached.Matches(ctx, e, directorTom, false), cached.Matches(ctx, e, directorTom, false), id)
	}

	a := &catalog.Entity{ID: "a", Kind: catalog.KindMovie}
	b := &catalog.Entity{ID: "b", Kind: catalog.KindMovie}
	c := &catalog.Entity{ID: "c", Kind: catalog.KindMovie}
	assert.True(t, cached.Matches(ctx, a, actorTom, false))
	assert.True(t, cached.Matches(ctx, b, actorTom, false), "guest stars count as cast")
	assert.False(t, cached.Matches(ctx, c, actorTom, false))
	assert.True(t, cached.Matches(ctx, c, directorTom, false))
	assert.False(t, cached.Matches(ctx, a, Criterion{Kind: Actor, Value: "tom"}, true), "case-sensitive fragment")

	// one search per distinct key: actor/tom, director/tom, actor/tom case-sensitive
	assert.Equal(t, 3, cat.searchCalls)
	assert.Equal(t, 3, people.Len())
}

func TestMatcher_PersonLookupFailureIsFalse(t *testing.T) {
	cat := newFakeCatalog()
	cat.failSearch = true
	people := NewPersonCache(cat)
	m := newTestMatcher(t, cat, WithPersonCache(people))

	e := &catalog.Entity{ID: "a", Kind: catalog.KindMovie}
	assert.False(t, m.Matches(context.Background(), e, Criterion{Kind: Actor, Value: "x"}, false))
	assert.Equal(t, 1, m.LookupFailures())
	assert.Equal(t, 0, people.Len(), "errors are not cached")
}

func TestMatcher_PlayState(t *testing.T) {
	ctx := context.Background()
	e := &catalog.Entity{ID: "m1", Kind: catalog.KindMovie}
	other := &catalog.Entity{ID: "m2", Kind: catalog.KindMovie}

	t.Run("no user data degrades to unplayed", func(t *testing.T) {
		m := newTestMatcher(t, newFakeCatalog())
		assert.True(t, m.Matches(ctx, e, Criterion{Kind: Unplayed}, false))
		assert.False(t, m.Matches(ctx, e, Criterion{Kind: Watched}, false))
		assert.True(t, m.Degraded())
	})

	t.Run("listing failure degrades", func(t *testing.T) {
		m := newTestMatcher(t, newFakeCatalog(), WithUserData(&fakeUsers{err: errors.New("down")}))
		assert.True(t, m.Matches(ctx, e, Criterion{Kind: Unplayed}, false))
		assert.True(t, m.Degraded())
	})

	t.Run("any user played", func(t *testing.T) {
		users := &fakeUsers{
			users:  []catalog.User{{ID: "u1"}, {ID: "u2"}},
			played: map[string]map[string]bool{"u2": {"m1": true}},
		}
		m := newTestMatcher(t, newFakeCatalog(), WithUserData(users))
		assert.False(t, m.Matches(ctx, e, Criterion{Kind: Unplayed}, false))
		assert.True(t, m.Matches(ctx, e, Criterion{Kind: Watched}, false))
		assert.True(t, m.Matches(ctx, other, Criterion{Kind: Unplayed}, false))
		assert.False(t, m.Degraded())
	})
}
