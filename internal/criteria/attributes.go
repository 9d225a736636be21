package criteria

import (
	"path/filepath"
	"time"

	"smartcollections/internal/catalog"
)

// Attributes is the per-kind attribute surface the matcher dispatches on.
// Items answer from their own fields; series aggregate over their episodes
// for the stream and file derived values.
type Attributes interface {
	Entity() *catalog.Entity
	Filenames() []string
	AudioLanguages() []string
	SubtitleLanguages() []string
	// EpisodeAirDate is the air date relevant to EpisodeAirDate criteria, or
	// nil when the entity has none.
	EpisodeAirDate() *time.Time
}

type itemAttributes struct {
	e *catalog.Entity
}

func (a itemAttributes) Entity() *catalog.Entity { return a.e }

func (a itemAttributes) Filenames() []string {
	return filenames(a.e)
}

func (a itemAttributes) AudioLanguages() []string    { return a.e.AudioLanguages }
func (a itemAttributes) SubtitleLanguages() []string { return a.e.SubtitleLanguages }

func (a itemAttributes) EpisodeAirDate() *time.Time {
	if a.e.Kind == catalog.KindEpisode {
		return a.e.PremiereDate
	}
	return nil
}

// seriesAttributes loads episodes on first use; criteria that only touch
// the series' own fields never hit the catalog.
type seriesAttributes struct {
	e        *catalog.Entity
	load     func() []catalog.Entity
	episodes []catalog.Entity
	loaded   bool
}

func (a *seriesAttributes) Entity() *catalog.Entity { return a.e }

func (a *seriesAttributes) children() []catalog.Entity {
	if !a.loaded {
		a.episodes = a.load()
		a.loaded = true
	}
	return a.episodes
}

func (a *seriesAttributes) Filenames() []string {
	out := filenames(a.e)
	for i := range a.children() {
		out = append(out, filenames(&a.episodes[i])...)
	}
	return out
}

func (a *seriesAttributes) AudioLanguages() []string {
	out := append([]string(nil), a.e.AudioLanguages...)
	for _, ep := range a.children() {
		out = append(out, ep.AudioLanguages...)
	}
	return out
}

func (a *seriesAttributes) SubtitleLanguages() []string {
	out := append([]string(nil), a.e.SubtitleLanguages...)
	for _, ep := range a.children() {
		out = append(out, ep.SubtitleLanguages...)
	}
	return out
}

// EpisodeAirDate is the latest premiere among the episodes.
func (a *seriesAttributes) EpisodeAirDate() *time.Time {
	var latest *time.Time
	for _, ep := range a.children() {
		if ep.PremiereDate == nil {
			continue
		}
		if latest == nil || ep.PremiereDate.After(*latest) {
			d := *ep.PremiereDate
			latest = &d
		}
	}
	return latest
}

func filenames(e *catalog.Entity) []string {
	if e.Path == "" {
		return nil
	}
	return []string{filepath.Base(e.Path)}
}
