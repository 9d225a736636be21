package storage

import (
	"context"
	"database/sql"
	"time"

	"smartcollections/internal/catalog"
)

func (s *SQLiteStorage) UpsertUser(ctx context.Context, u catalog.User) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, name) VALUES (?, ?)
			ON CONFLICT(id) DO UPDATE SET name = excluded.name
		`, u.ID, u.Name)
		return err
	})
}

func (s *SQLiteStorage) ListUsers(ctx context.Context) ([]catalog.User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, name FROM users ORDER BY id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []catalog.User
	for rows.Next() {
		var u catalog.User
		if err := rows.Scan(&u.ID, &u.Name); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SetPlayed saves the played flag of one user for one entity.
func (s *SQLiteStorage) SetPlayed(ctx context.Context, userID, entityID string, played bool) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO user_data (user_id, entity_id, played, updated_at) VALUES (?, ?, ?, ?)
			ON CONFLICT(user_id, entity_id) DO UPDATE SET
				played = excluded.played,
				updated_at = excluded.updated_at
		`, userID, entityID, played, time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

func (s *SQLiteStorage) IsPlayed(ctx context.Context, userID, entityID string) (bool, error) {
	var played bool
	err := s.db.QueryRowContext(ctx, `
		SELECT played FROM user_data WHERE user_id = ? AND entity_id = ?
	`, userID, entityID).Scan(&played)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return played, nil
}
