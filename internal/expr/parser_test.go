package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartcollections/internal/criteria"
)

func leaf(k criteria.Kind, v string) *Leaf {
	return &Leaf{Criterion: criteria.Criterion{Kind: k, Value: v}}
}

func TestParse_Precedence(t *testing.T) {
	got, errs := Parse(`GENRE "Horror" OR TAG "halloween" AND NOT UNPLAYED`)
	require.Empty(t, errs)

	want := &Or{
		Left: leaf(criteria.Genre, "Horror"),
		Right: &And{
			Left:  leaf(criteria.Tag, "halloween"),
			Right: &Not{Child: leaf(criteria.Unplayed, "")},
		},
	}
	assert.Equal(t, want, got)
}

func TestParse_GroupsOverridePrecedence(t *testing.T) {
	got, errs := Parse(`(genre "Horror" or tag "halloween") and movie`)
	require.Empty(t, errs)

	want := &And{
		Left: &Group{Child: &Or{
			Left:  leaf(criteria.Genre, "Horror"),
			Right: leaf(criteria.Tag, "halloween"),
		}},
		Right: leaf(criteria.MediaKindMovie, ""),
	}
	assert.Equal(t, want, got)
}

func TestParse_AliasesResolve(t *testing.T) {
	got, errs := Parse(`PARENTAL "PG" AND RELEASE "<30" AND UNWATCHED`)
	require.Empty(t, errs)

	want := &And{
		Left: &And{
			Left:  leaf(criteria.ParentalRating, "PG"),
			Right: leaf(criteria.ReleaseDate, "<30"),
		},
		Right: leaf(criteria.Unplayed, ""),
	}
	assert.Equal(t, want, got)
	assert.Equal(t, `PARENTALRATING "PG" AND RELEASEDATE "<30" AND UNPLAYED`, got.String())
}

func TestParse_QuotedEscapes(t *testing.T) {
	got, errs := Parse(`TITLE "The \"Best\" of \\ Times" OR TITLE 'it\'s'`)
	require.Empty(t, errs)

	or, ok := got.(*Or)
	require.True(t, ok)
	assert.Equal(t, `The "Best" of \ Times`, or.Left.(*Leaf).Criterion.Value)
	assert.Equal(t, `it's`, or.Right.(*Leaf).Criterion.Value)
}

func TestParse_RoundTrip(t *testing.T) {
	inputs := []string{
		`GENRE "Action"`,
		`genre "Action" and not (studio "Pixar" or studio "DreamWorks")`,
		`NOT NOT WATCHED`,
		`(((TITLE "x")))`,
		`YEAR ">=2000" AND COMMUNITYRATING ">7.5" OR CAST "Tom Hanks" AND DIRECTOR "Spielberg"`,
		`TITLE "quote \" and backslash \\" OR SHOW`,
		`rating 'PG-13' or (audio "eng" and subtitles "spa") or airdate "<7"`,
	}
	for _, in := range inputs {
		first, errs := Parse(in)
		require.Empty(t, errs, in)

		second, errs := Parse(first.String())
		require.Empty(t, errs, first.String())
		assert.Equal(t, first, second, in)
		assert.Equal(t, first.String(), second.String(), in)
	}
}

func TestParse_MissingOperand(t *testing.T) {
	got, errs := Parse(`GENRE AND`)
	assert.Nil(t, got)
	require.Len(t, errs, 2)
	assert.Contains(t, errs[0].Message, "GENRE requires a quoted value")
	assert.Contains(t, errs[1].Message, "unexpected end")
}

func TestParse_CollectsAllErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		count int
	}{
		{"empty", "   ", 1},
		{"unknown keyword", `GENRE "a" AND COLOUR "red"`, 2},
		{"unbalanced open", `(GENRE "a"`, 1},
		{"unbalanced close", `GENRE "a")`, 1},
		{"empty group", `() AND TAG "x"`, 1},
		{"state with value", `UNPLAYED "yes"`, 1},
		{"unterminated", `TITLE "abc`, 2},
		{"stray character", `GENRE "a" & TAG "b"`, 2},
		{"adjacent criteria", `GENRE "a" TAG "b"`, 1},
		{"leading operator", `AND GENRE "a"`, 1},
		{"dangling not", `GENRE "a" AND NOT`, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, errs := Parse(tt.input)
			assert.Nil(t, got)
			assert.Len(t, errs, tt.count, "%v", ErrorList(errs))
			for i := 1; i < len(errs); i++ {
				assert.LessOrEqual(t, errs[i-1].Pos, errs[i].Pos, "errors are ordered by position")
			}
		})
	}
}

func TestParse_IsStateless(t *testing.T) {
	_, errs := Parse(`GENRE AND`)
	require.NotEmpty(t, errs)

	got, errs := Parse(`GENRE "Drama"`)
	require.Empty(t, errs)
	assert.Equal(t, leaf(criteria.Genre, "Drama"), got)
}

func TestReferences(t *testing.T) {
	n := MustParse(`GENRE "x" AND NOT (ACTOR "a" OR WATCHED)`)
	assert.True(t, References(n, criteria.Actor, criteria.Director))
	assert.True(t, References(n, criteria.Watched))
	assert.False(t, References(n, criteria.Director))
	assert.Len(t, Criteria(n), 3)
}

func TestString_HandBuiltTrees(t *testing.T) {
	n := &And{
		Left:  &Or{Left: leaf(criteria.Tag, "a"), Right: leaf(criteria.Tag, "b")},
		Right: &Not{Child: &And{Left: leaf(criteria.Genre, "c"), Right: leaf(criteria.Genre, "d")}},
	}
	assert.Equal(t, `(TAG "a" OR TAG "b") AND NOT (GENRE "c" AND GENRE "d")`, n.String())
}
