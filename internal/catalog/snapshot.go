package catalog

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot is a catalog export: users plus items, with series carrying their
// episodes inline.
type Snapshot struct {
	Users []User         `yaml:"users"`
	Items []SnapshotItem `yaml:"items"`
}

type SnapshotItem struct {
	ID                  string           `yaml:"id"`
	Kind                string           `yaml:"kind"`
	Title               string           `yaml:"title"`
	Year                *int             `yaml:"year"`
	PremiereDate        *Date            `yaml:"premiere_date"`
	DateAdded           *Date            `yaml:"date_added"`
	Genres              []string         `yaml:"genres"`
	Studios             []string         `yaml:"studios"`
	Tags                []string         `yaml:"tags"`
	OfficialRating      string           `yaml:"official_rating"`
	CustomRating        string           `yaml:"custom_rating"`
	CommunityRating     *float64         `yaml:"community_rating"`
	CriticRating        *float64         `yaml:"critic_rating"`
	ProductionLocations []string         `yaml:"production_locations"`
	AudioLanguages      []string         `yaml:"audio_languages"`
	SubtitleLanguages   []string         `yaml:"subtitle_languages"`
	Path                string           `yaml:"path"`
	Virtual             bool             `yaml:"virtual"`
	Credits             []SnapshotCredit `yaml:"credits"`
	PlayedBy            []string         `yaml:"played_by"`
	Episodes            []SnapshotItem   `yaml:"episodes"`
}

type SnapshotCredit struct {
	Name string `yaml:"name"`
	Role string `yaml:"role"`
}

// Date accepts either a calendar date (2006-01-02) or an RFC 3339 timestamp.
// Calendar dates are taken as midnight local time.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalYAML(value *yaml.Node) error {
	t, err := ParseDate(value.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	d.Time = t
	return nil
}

func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.ParseInLocation("2006-01-02", s, time.Local); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid date %q", s)
}

func (d *Date) ptr() *time.Time {
	if d == nil {
		return nil
	}
	t := d.Time
	return &t
}

// LoadSnapshot reads and decodes a snapshot file.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseSnapshot(data)
}

func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
