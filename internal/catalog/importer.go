package catalog

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var ErrImportInProgress = errors.New("import already in progress")

// LanguageProber reads stream languages from a media file.
type LanguageProber interface {
	Languages(ctx context.Context, path string) (audio, subtitles []string, err error)
}

type ImportResult struct {
	Users    int `json:"users"`
	Entities int `json:"entities"`
	Played   int `json:"played"`
	Probed   int `json:"probed"`
	Removed  int `json:"removed"`
	Skipped  int `json:"skipped"`
}

// Importer loads snapshots into a Writer. Entities missing from the snapshot
// are removed afterwards.
type Importer struct {
	writer    Writer
	prober    LanguageProber
	logger    zerolog.Logger
	importing bool
	mu        sync.Mutex
}

func NewImporter(w Writer, logger zerolog.Logger) *Importer {
	return &Importer{
		writer: w,
		logger: logger,
	}
}

// WithProber enables filling languages from the media files of items that
// have a path but no languages in the snapshot.
func (im *Importer) WithProber(p LanguageProber) *Importer {
	im.prober = p
	return im
}

func (im *Importer) IsImporting() bool {
	im.mu.Lock()
	defer im.mu.Unlock()
	return im.importing
}

func (im *Importer) ImportFile(ctx context.Context, path string) (*ImportResult, error) {
	snap, err := LoadSnapshot(path)
	if err != nil {
		return nil, err
	}
	im.logger.Info().Str("path", path).Int("items", len(snap.Items)).Msg("importing snapshot")
	return im.Import(ctx, snap)
}

func (im *Importer) Import(ctx context.Context, snap *Snapshot) (*ImportResult, error) {
	im.mu.Lock()
	if im.importing {
		im.mu.Unlock()
		return nil, ErrImportInProgress
	}
	im.importing = true
	im.mu.Unlock()

	defer func() {
		im.mu.Lock()
		im.importing = false
		im.mu.Unlock()
	}()

	res := &ImportResult{}
	users := make(map[string]bool, len(snap.Users))
	for _, u := range snap.Users {
		if u.ID == "" {
			im.logger.Warn().Str("name", u.Name).Msg("skipping user without id")
			continue
		}
		if err := im.writer.UpsertUser(ctx, u); err != nil {
			return nil, fmt.Errorf("upsert user %s: %w", u.ID, err)
		}
		users[u.ID] = true
		res.Users++
	}

	seen := make(map[string]bool)
	for i := range snap.Items {
		if err := im.importItem(ctx, &snap.Items[i], "", users, seen, res); err != nil {
			return nil, err
		}
	}

	removed, err := im.cleanup(ctx, seen)
	if err != nil {
		im.logger.Warn().Err(err).Msg("cleanup failed")
	}
	res.Removed = removed

	im.logger.Info().
		Int("users", res.Users).
		Int("entities", res.Entities).
		Int("played", res.Played).
		Int("probed", res.Probed).
		Int("removed", res.Removed).
		Int("skipped", res.Skipped).
		Msg("import completed")

	return res, nil
}

func (im *Importer) importItem(ctx context.Context, it *SnapshotItem, parentID string, users, seen map[string]bool, res *ImportResult) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e, err := it.entity(parentID)
	if err != nil {
		im.logger.Warn().Err(err).Str("title", it.Title).Msg("skipping item")
		res.Skipped++
		return nil
	}
	if seen[e.ID] {
		im.logger.Warn().Str("id", e.ID).Str("title", e.Title).Msg("skipping duplicate item id")
		res.Skipped++
		return nil
	}

	if im.shouldProbe(&e) {
		audio, subs, err := im.prober.Languages(ctx, e.Path)
		if err != nil {
			im.logger.Debug().Err(err).Str("path", e.Path).Msg("probe failed")
		} else {
			e.AudioLanguages = audio
			e.SubtitleLanguages = subs
			res.Probed++
		}
	}

	credits := make([]Credit, 0, len(it.Credits))
	for _, c := range it.Credits {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		role := Role(strings.ToLower(strings.TrimSpace(c.Role)))
		if role == "" {
			role = RoleActor
		}
		credits = append(credits, Credit{PersonName: name, Role: role})
	}

	if err := im.writer.UpsertEntity(ctx, &e, credits); err != nil {
		return fmt.Errorf("upsert %s: %w", e.ID, err)
	}
	seen[e.ID] = true
	res.Entities++

	for _, uid := range it.PlayedBy {
		if !users[uid] {
			im.logger.Warn().Str("user", uid).Str("id", e.ID).Msg("played by unknown user")
			continue
		}
		if err := im.writer.SetPlayed(ctx, uid, e.ID, true); err != nil {
			return fmt.Errorf("set played %s/%s: %w", uid, e.ID, err)
		}
		res.Played++
	}

	im.logger.Debug().Str("id", e.ID).Str("kind", string(e.Kind)).Str("title", e.Title).Msg("imported item")

	for i := range it.Episodes {
		ep := &it.Episodes[i]
		if ep.Kind == "" {
			ep.Kind = string(KindEpisode)
		}
		if err := im.importItem(ctx, ep, e.ID, users, seen, res); err != nil {
			return err
		}
	}
	return nil
}

func (im *Importer) shouldProbe(e *Entity) bool {
	return im.prober != nil && !e.Virtual && e.Path != "" && IsSupportedVideo(e.Path) &&
		len(e.AudioLanguages) == 0 && len(e.SubtitleLanguages) == 0
}

// cleanup removes entities that were not part of the snapshot.
func (im *Importer) cleanup(ctx context.Context, keep map[string]bool) (int, error) {
	ids, err := im.writer.EntityIDs(ctx)
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, id := range ids {
		if keep[id] {
			continue
		}
		if err := im.writer.DeleteEntity(ctx, id); err != nil {
			im.logger.Error().Err(err).Str("id", id).Msg("failed to delete entity")
			continue
		}
		deleted++
		im.logger.Debug().Str("id", id).Msg("deleted missing entity")
	}
	return deleted, nil
}

func (it *SnapshotItem) entity(parentID string) (Entity, error) {
	kind, ok := ParseKind(it.Kind)
	if !ok {
		return Entity{}, fmt.Errorf("unknown kind %q", it.Kind)
	}
	title := strings.TrimSpace(it.Title)

	id := strings.TrimSpace(it.ID)
	if id == "" {
		key := string(kind) + "/" + parentID + "/" + title
		if it.Year != nil {
			key += "/" + strconv.Itoa(*it.Year)
		}
		if it.Path != "" {
			key = it.Path
		}
		id = generateID(key)
	}

	return Entity{
		ID:                  id,
		Kind:                kind,
		ParentID:            parentID,
		Title:               title,
		PremiereDate:        it.PremiereDate.ptr(),
		ProductionYear:      it.Year,
		Genres:              it.Genres,
		Studios:             it.Studios,
		Tags:                it.Tags,
		OfficialRating:      it.OfficialRating,
		CustomRating:        it.CustomRating,
		CommunityRating:     it.CommunityRating,
		CriticRating:        it.CriticRating,
		ProductionLocations: it.ProductionLocations,
		AudioLanguages:      it.AudioLanguages,
		SubtitleLanguages:   it.SubtitleLanguages,
		Path:                it.Path,
		DateAdded:           it.DateAdded.ptr(),
		Virtual:             it.Virtual,
	}, nil
}

func generateID(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:8])
}
