package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"smartcollections/internal/catalog"
)

// FindManagedCollection returns the collection called name that carries this
// store's marker tag, or nil when there is none. Same-named collections
// without the marker are never returned.
func (s *SQLiteStorage) FindManagedCollection(ctx context.Context, name string) (*catalog.Collection, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT c.id, c.name, c.marker_tag, c.created_at,
		       (SELECT COUNT(*) FROM collection_members m WHERE m.collection_id = c.id)
		FROM collections c WHERE c.name = ? AND c.marker_tag = ?
	`, name, s.markerTag)

	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStorage) CreateCollection(ctx context.Context, name string) (*catalog.Collection, error) {
	c := &catalog.Collection{
		ID:        uuid.NewString(),
		Name:      name,
		MarkerTag: s.markerTag,
		CreatedAt: time.Now().UTC(),
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO collections (id, name, marker_tag, created_at) VALUES (?, ?, ?, ?)
		`, c.ID, c.Name, c.MarkerTag, c.CreatedAt.Format(time.RFC3339Nano))
		return err
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *SQLiteStorage) ListManagedCollections(ctx context.Context) ([]catalog.Collection, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.name, c.marker_tag, c.created_at,
		       (SELECT COUNT(*) FROM collection_members m WHERE m.collection_id = c.id)
		FROM collections c WHERE c.marker_tag = ? ORDER BY c.name
	`, s.markerTag)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collections []catalog.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, err
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

func scanCollection(sc rowScanner) (*catalog.Collection, error) {
	var c catalog.Collection
	var created string
	if err := sc.Scan(&c.ID, &c.Name, &c.MarkerTag, &created, &c.MemberCount); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339Nano, created); err == nil {
		c.CreatedAt = t
	}
	return &c, nil
}

// AddMembers appends entityIDs in order after the current last member. Ids
// already in the collection keep their position.
func (s *SQLiteStorage) AddMembers(ctx context.Context, collectionID string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var last int
		if err := tx.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(position), 0) FROM collection_members WHERE collection_id = ?
		`, collectionID).Scan(&last); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO collection_members (collection_id, entity_id, position) VALUES (?, ?, ?)
			ON CONFLICT(collection_id, entity_id) DO NOTHING
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, id := range entityIDs {
			last++
			if _, err := stmt.ExecContext(ctx, collectionID, id, last); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) RemoveMembers(ctx context.Context, collectionID string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		for start := 0; start < len(entityIDs); start += chunkSize {
			end := min(start+chunkSize, len(entityIDs))
			chunk := entityIDs[start:end]

			args := append([]any{collectionID}, appendStrings(nil, chunk)...)
			if _, err := tx.ExecContext(ctx, `
				DELETE FROM collection_members
				WHERE collection_id = ? AND entity_id IN (`+placeholders(len(chunk))+`)
			`, args...); err != nil {
				return err
			}
		}
		return nil
	})
}

// Members returns the collection's entities in stored order.
func (s *SQLiteStorage) Members(ctx context.Context, collectionID string) ([]catalog.Entity, error) {
	return s.queryEntities(ctx, `
		SELECT `+entityColumns+`
		FROM collection_members m JOIN entities e ON e.id = m.entity_id
		WHERE m.collection_id = ?
		ORDER BY m.position
	`, collectionID)
}
