package storage

import (
	"database/sql"
	"time"

	"smartcollections/internal/catalog"
)

// entity_values.field
const (
	fieldGenre    = "genre"
	fieldStudio   = "studio"
	fieldTag      = "tag"
	fieldLocation = "production_location"
	fieldAudio    = "audio_language"
	fieldSubtitle = "subtitle_language"
)

const entityColumns = `e.id, e.kind, e.parent_id, e.title, e.premiere_date, e.production_year,
	e.official_rating, e.custom_rating, e.community_rating, e.critic_rating,
	e.path, e.date_added, e.is_virtual`

// entityRow mirrors one row of the entities table.
type entityRow struct {
	ID              string
	Kind            string
	ParentID        sql.NullString
	Title           string
	PremiereDate    sql.NullString
	ProductionYear  sql.NullInt64
	OfficialRating  string
	CustomRating    string
	CommunityRating sql.NullFloat64
	CriticRating    sql.NullFloat64
	Path            string
	DateAdded       sql.NullString
	Virtual         bool
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntity(sc rowScanner) (entityRow, error) {
	var r entityRow
	err := sc.Scan(
		&r.ID, &r.Kind, &r.ParentID, &r.Title, &r.PremiereDate, &r.ProductionYear,
		&r.OfficialRating, &r.CustomRating, &r.CommunityRating, &r.CriticRating,
		&r.Path, &r.DateAdded, &r.Virtual,
	)
	return r, err
}

func (r entityRow) toEntity() catalog.Entity {
	e := catalog.Entity{
		ID:             r.ID,
		Kind:           catalog.Kind(r.Kind),
		ParentID:       r.ParentID.String,
		Title:          r.Title,
		OfficialRating: r.OfficialRating,
		CustomRating:   r.CustomRating,
		Path:           r.Path,
		Virtual:        r.Virtual,
		PremiereDate:   parseTime(r.PremiereDate),
		DateAdded:      parseTime(r.DateAdded),
	}
	if r.ProductionYear.Valid {
		y := int(r.ProductionYear.Int64)
		e.ProductionYear = &y
	}
	if r.CommunityRating.Valid {
		v := r.CommunityRating.Float64
		e.CommunityRating = &v
	}
	if r.CriticRating.Valid {
		v := r.CriticRating.Float64
		e.CriticRating = &v
	}
	return e
}

// Times are stored as RFC 3339 text so that the offset survives a round trip.
func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(time.RFC3339Nano)
}

func parseTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type entityValues struct {
	genres, studios, tags, locations, audio, subtitles []string
}

func (v *entityValues) field(name string) *[]string {
	switch name {
	case fieldGenre:
		return &v.genres
	case fieldStudio:
		return &v.studios
	case fieldTag:
		return &v.tags
	case fieldLocation:
		return &v.locations
	case fieldAudio:
		return &v.audio
	case fieldSubtitle:
		return &v.subtitles
	}
	return nil
}

func valuesOf(e *catalog.Entity) map[string][]string {
	return map[string][]string{
		fieldGenre:    e.Genres,
		fieldStudio:   e.Studios,
		fieldTag:      e.Tags,
		fieldLocation: e.ProductionLocations,
		fieldAudio:    e.AudioLanguages,
		fieldSubtitle: e.SubtitleLanguages,
	}
}

func (v *entityValues) applyTo(e *catalog.Entity) {
	e.Genres = v.genres
	e.Studios = v.studios
	e.Tags = v.tags
	e.ProductionLocations = v.locations
	e.AudioLanguages = v.audio
	e.SubtitleLanguages = v.subtitles
}
