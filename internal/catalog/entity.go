package catalog

import (
	"context"
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindMovie   Kind = "movie"
	KindSeries  Kind = "series"
	KindEpisode Kind = "episode"
)

// ParseKind accepts the canonical names plus "show"/"tv" for series.
func ParseKind(s string) (Kind, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "movie", "movies":
		return KindMovie, true
	case "series", "show", "shows", "tv":
		return KindSeries, true
	case "episode", "episodes":
		return KindEpisode, true
	}
	return "", false
}

type Role string

const (
	RoleActor     Role = "actor"
	RoleGuestStar Role = "guest_star"
	RoleDirector  Role = "director"
	RoleWriter    Role = "writer"
	RoleProducer  Role = "producer"
)

// Entity is one catalog item as seen by a run. Entities are snapshots and
// are never mutated by the collection core.
type Entity struct {
	ID                  string     `json:"id"`
	Kind                Kind       `json:"kind"`
	ParentID            string     `json:"parent_id,omitempty"`
	Title               string     `json:"title"`
	PremiereDate        *time.Time `json:"premiere_date,omitempty"`
	ProductionYear      *int       `json:"production_year,omitempty"`
	Genres              []string   `json:"genres,omitempty"`
	Studios             []string   `json:"studios,omitempty"`
	Tags                []string   `json:"tags,omitempty"`
	OfficialRating      string     `json:"official_rating,omitempty"`
	CustomRating        string     `json:"custom_rating,omitempty"`
	CommunityRating     *float64   `json:"community_rating,omitempty"`
	CriticRating        *float64   `json:"critic_rating,omitempty"`
	ProductionLocations []string   `json:"production_locations,omitempty"`
	AudioLanguages      []string   `json:"audio_languages,omitempty"`
	SubtitleLanguages   []string   `json:"subtitle_languages,omitempty"`
	Path                string     `json:"-"`
	DateAdded           *time.Time `json:"date_added,omitempty"`
	Virtual             bool       `json:"-"` // placeholder without media, e.g. a missing episode
}

// Year returns the production year, or 0 when unknown.
func (e *Entity) Year() int {
	if e.ProductionYear == nil {
		return 0
	}
	return *e.ProductionYear
}

// Label is a short human readable reference used in logs and reports.
func (e *Entity) Label() string {
	if e.ProductionYear != nil {
		return e.Title + " (" + strconv.Itoa(*e.ProductionYear) + ")"
	}
	return e.Title
}

type Credit struct {
	PersonName string `json:"person_name"`
	Role       Role   `json:"role"`
}

type User struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Collection is a managed collection owned by this system. MarkerTag tells it
// apart from a user-created collection with the same name.
type Collection struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	MarkerTag   string    `json:"marker_tag"`
	MemberCount int       `json:"member_count"`
	CreatedAt   time.Time `json:"created_at"`
}

// Filter selects entities. Values inside one list are alternatives; the
// lists themselves are combined with AND. Empty lists do not constrain.
type Filter struct {
	Kinds          []Kind
	Tags           []string
	Genres         []string
	Studios        []string
	People         []string
	ParentID       string
	Recursive      bool
	ExcludeVirtual bool
}

// Catalog answers entity, credit and person queries.
type Catalog interface {
	QueryEntities(ctx context.Context, filter Filter) ([]Entity, error)
	Credits(ctx context.Context, entityID string) ([]Credit, error)
	// SearchPeople returns the distinct person names containing fragment,
	// compared case-insensitively. Callers refine the result when they need
	// case-sensitive matching.
	SearchPeople(ctx context.Context, fragment string) ([]string, error)
	// CreditedEntities returns the ids of entities crediting any of people in
	// any of roles.
	CreditedEntities(ctx context.Context, people []string, roles []Role) ([]string, error)
}

// CollectionStore persists managed collections and their ordered members.
// AddMembers appends in the given order; ids already present are ignored.
type CollectionStore interface {
	FindManagedCollection(ctx context.Context, name string) (*Collection, error)
	CreateCollection(ctx context.Context, name string) (*Collection, error)
	AddMembers(ctx context.Context, collectionID string, entityIDs []string) error
	RemoveMembers(ctx context.Context, collectionID string, entityIDs []string) error
	Members(ctx context.Context, collectionID string) ([]Entity, error)
	ListManagedCollections(ctx context.Context) ([]Collection, error)
}

// UserData exposes per-user watch state. It is optional.
type UserData interface {
	ListUsers(ctx context.Context) ([]User, error)
	IsPlayed(ctx context.Context, userID, entityID string) (bool, error)
}

// Writer is the write side used by the snapshot importer.
type Writer interface {
	UpsertEntity(ctx context.Context, e *Entity, credits []Credit) error
	UpsertUser(ctx context.Context, u User) error
	SetPlayed(ctx context.Context, userID, entityID string, played bool) error
	EntityIDs(ctx context.Context) ([]string, error)
	DeleteEntity(ctx context.Context, id string) error
}
