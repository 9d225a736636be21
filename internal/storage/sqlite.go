package storage

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pressly/goose/v3"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"smartcollections/internal/catalog"
	"smartcollections/internal/textnorm"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite caps host parameters; id lists are sent in chunks below that.
const chunkSize = 500

// SQLiteStorage is the catalog, collection store and user data source.
type SQLiteStorage struct {
	db        *sql.DB
	markerTag string
}

var (
	_ catalog.Catalog         = (*SQLiteStorage)(nil)
	_ catalog.CollectionStore = (*SQLiteStorage)(nil)
	_ catalog.UserData        = (*SQLiteStorage)(nil)
	_ catalog.Writer          = (*SQLiteStorage)(nil)
)

// NewSQLiteStorage opens (creating if needed) the database at dbPath and
// applies pending migrations. markerTag marks collections owned by this
// store.
func NewSQLiteStorage(dbPath, markerTag string) (*SQLiteStorage, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	dsn := "file:" + dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStorage{db: db, markerTag: markerTag}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

func (s *SQLiteStorage) migrate() error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, s.db, fsys)
	if err != nil {
		return err
	}
	_, err = provider.Up(context.Background())
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) MarkerTag() string {
	return s.markerTag
}

// withTx runs fn in a transaction, retrying when SQLite reports the
// database busy or locked.
func (s *SQLiteStorage) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return retry.Do(
		func() error {
			tx, err := s.db.BeginTx(ctx, nil)
			if err != nil {
				return err
			}
			if err := fn(tx); err != nil {
				tx.Rollback()
				return err
			}
			return tx.Commit()
		},
		retry.Context(ctx),
		retry.Attempts(3),
		retry.Delay(50*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.RetryIf(isBusy),
	)
}

func isBusy(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	return false
}

// Entities

func (s *SQLiteStorage) UpsertEntity(ctx context.Context, e *catalog.Entity, credits []catalog.Credit) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var year any
		if e.ProductionYear != nil {
			year = *e.ProductionYear
		}
		var community, critic any
		if e.CommunityRating != nil {
			community = *e.CommunityRating
		}
		if e.CriticRating != nil {
			critic = *e.CriticRating
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO entities (
				id, kind, parent_id, title, premiere_date, production_year,
				official_rating, custom_rating, community_rating, critic_rating,
				path, date_added, is_virtual, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				kind = excluded.kind,
				parent_id = excluded.parent_id,
				title = excluded.title,
				premiere_date = excluded.premiere_date,
				production_year = excluded.production_year,
				official_rating = excluded.official_rating,
				custom_rating = excluded.custom_rating,
				community_rating = excluded.community_rating,
				critic_rating = excluded.critic_rating,
				path = excluded.path,
				date_added = excluded.date_added,
				is_virtual = excluded.is_virtual,
				updated_at = excluded.updated_at
		`,
			e.ID, string(e.Kind), nullString(e.ParentID), e.Title, formatTime(e.PremiereDate), year,
			e.OfficialRating, e.CustomRating, community, critic,
			e.Path, formatTime(e.DateAdded), e.Virtual, time.Now().UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM entity_values WHERE entity_id = ?", e.ID); err != nil {
			return err
		}
		for field, values := range valuesOf(e) {
			for i, v := range values {
				if _, err := tx.ExecContext(ctx,
					"INSERT INTO entity_values (entity_id, field, value, ordinal) VALUES (?, ?, ?, ?)",
					e.ID, field, v, i,
				); err != nil {
					return err
				}
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM credits WHERE entity_id = ?", e.ID); err != nil {
			return err
		}
		for i, c := range credits {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO credits (entity_id, person_name, role, ordinal) VALUES (?, ?, ?, ?)
				ON CONFLICT(entity_id, person_name, role) DO NOTHING
			`, e.ID, c.PersonName, string(c.Role), i); err != nil {
				return err
			}
		}
		return nil
	})
}

// EntityIDs returns all entity ids for cleanup after an import.
func (s *SQLiteStorage) EntityIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id FROM entities ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteEntity removes an entity with its values, credits, memberships and
// play state.
func (s *SQLiteStorage) DeleteEntity(ctx context.Context, id string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, "DELETE FROM entities WHERE id = ?", id)
		return err
	})
}

func (s *SQLiteStorage) GetEntity(ctx context.Context, id string) (*catalog.Entity, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+entityColumns+" FROM entities e WHERE e.id = ?", id)
	r, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	es := []catalog.Entity{r.toEntity()}
	if err := s.hydrate(ctx, es); err != nil {
		return nil, err
	}
	return &es[0], nil
}

// QueryEntities returns the entities selected by filter ordered by title.
// Value lists are compared after Unicode case folding.
func (s *SQLiteStorage) QueryEntities(ctx context.Context, filter catalog.Filter) ([]catalog.Entity, error) {
	var (
		prefix string
		where  []string
		args   []any
	)

	if filter.ParentID != "" {
		if filter.Recursive {
			prefix = `WITH RECURSIVE tree(id) AS (
				SELECT id FROM entities WHERE parent_id = ?
				UNION
				SELECT c.id FROM entities c JOIN tree t ON c.parent_id = t.id
			) `
			args = append(args, filter.ParentID)
			where = append(where, "e.id IN (SELECT id FROM tree)")
		} else {
			where = append(where, "e.parent_id = ?")
			args = append(args, filter.ParentID)
		}
	}

	if len(filter.Kinds) > 0 {
		kinds := make([]string, len(filter.Kinds))
		for i, k := range filter.Kinds {
			kinds[i] = string(k)
		}
		where = append(where, "e.kind IN ("+placeholders(len(kinds))+")")
		args = appendStrings(args, kinds)
	}

	for _, vf := range []struct {
		field  string
		values []string
	}{
		{fieldTag, filter.Tags},
		{fieldGenre, filter.Genres},
		{fieldStudio, filter.Studios},
	} {
		if len(vf.values) == 0 {
			continue
		}
		where = append(where, `EXISTS (SELECT 1 FROM entity_values v
			WHERE v.entity_id = e.id AND v.field = ? AND fold(v.value) IN (`+placeholders(len(vf.values))+`))`)
		args = append(args, vf.field)
		args = appendStrings(args, foldAll(vf.values))
	}

	if len(filter.People) > 0 {
		where = append(where, `EXISTS (SELECT 1 FROM credits c
			WHERE c.entity_id = e.id AND fold(c.person_name) IN (`+placeholders(len(filter.People))+`))`)
		args = appendStrings(args, foldAll(filter.People))
	}

	if filter.ExcludeVirtual {
		where = append(where, "e.is_virtual = FALSE")
	}

	query := prefix + "SELECT " + entityColumns + " FROM entities e"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY e.title COLLATE NOCASE, e.id"

	return s.queryEntities(ctx, query, args...)
}

// queryEntities runs query and hydrates the multi-valued fields. Rows are
// closed before hydration since the pool holds a single connection.
func (s *SQLiteStorage) queryEntities(ctx context.Context, query string, args ...any) ([]catalog.Entity, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var entities []catalog.Entity
	for rows.Next() {
		r, err := scanEntity(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entities = append(entities, r.toEntity())
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := s.hydrate(ctx, entities); err != nil {
		return nil, err
	}
	return entities, nil
}

func (s *SQLiteStorage) hydrate(ctx context.Context, entities []catalog.Entity) error {
	if len(entities) == 0 {
		return nil
	}

	index := make(map[string][]int, len(entities))
	ids := make([]string, 0, len(entities))
	for i, e := range entities {
		if _, ok := index[e.ID]; !ok {
			ids = append(ids, e.ID)
		}
		index[e.ID] = append(index[e.ID], i)
	}

	values := make(map[string]*entityValues, len(ids))
	for start := 0; start < len(ids); start += chunkSize {
		end := min(start+chunkSize, len(ids))
		chunk := ids[start:end]

		rows, err := s.db.QueryContext(ctx, `
			SELECT entity_id, field, value FROM entity_values
			WHERE entity_id IN (`+placeholders(len(chunk))+`)
			ORDER BY entity_id, field, ordinal
		`, appendStrings(nil, chunk)...)
		if err != nil {
			return err
		}
		for rows.Next() {
			var id, field, value string
			if err := rows.Scan(&id, &field, &value); err != nil {
				rows.Close()
				return err
			}
			v, ok := values[id]
			if !ok {
				v = &entityValues{}
				values[id] = v
			}
			if dst := v.field(field); dst != nil {
				*dst = append(*dst, value)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return err
		}
	}

	for id, v := range values {
		for _, i := range index[id] {
			v.applyTo(&entities[i])
		}
	}
	return nil
}

// People

func (s *SQLiteStorage) Credits(ctx context.Context, entityID string) ([]catalog.Credit, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT person_name, role FROM credits WHERE entity_id = ? ORDER BY ordinal
	`, entityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var credits []catalog.Credit
	for rows.Next() {
		var c catalog.Credit
		var role string
		if err := rows.Scan(&c.PersonName, &role); err != nil {
			return nil, err
		}
		c.Role = catalog.Role(role)
		credits = append(credits, c)
	}
	return credits, rows.Err()
}

// SearchPeople matches the folded fragment against folded names, so callers
// that need case-sensitive results must refine them.
func (s *SQLiteStorage) SearchPeople(ctx context.Context, fragment string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT person_name FROM credits
		WHERE fold(person_name) LIKE ? ESCAPE '\'
		ORDER BY person_name
	`, "%"+escapeLike(textnorm.Fold(strings.TrimSpace(fragment)))+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SQLiteStorage) CreditedEntities(ctx context.Context, people []string, roles []catalog.Role) ([]string, error) {
	if len(people) == 0 || len(roles) == 0 {
		return nil, nil
	}

	roleArgs := make([]string, len(roles))
	for i, r := range roles {
		roleArgs[i] = string(r)
	}

	seen := make(map[string]struct{})
	var ids []string
	for start := 0; start < len(people); start += chunkSize {
		end := min(start+chunkSize, len(people))
		chunk := people[start:end]

		args := appendStrings(nil, chunk)
		args = appendStrings(args, roleArgs)
		rows, err := s.db.QueryContext(ctx, `
			SELECT DISTINCT entity_id FROM credits
			WHERE person_name IN (`+placeholders(len(chunk))+`)
			AND role IN (`+placeholders(len(roleArgs))+`)
			ORDER BY entity_id
		`, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

func appendStrings(args []any, values []string) []any {
	for _, v := range values {
		args = append(args, v)
	}
	return args
}

func foldAll(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = textnorm.Fold(strings.TrimSpace(v))
	}
	return out
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
