package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// collection is a key-value table. Values are JSON documents.
type collection string

const (
	usersCollection      collection = "users"
	reportsCollection    collection = "reports"
	activitiesCollection collection = "activities"
)

// get decodes the document stored under key into dst. found is false when
// the key is absent.
func (s *EmbeddedStore) get(ctx context.Context, c collection, key string, dst any) (found bool, err error) {
	var raw string
	err = s.conn.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT value FROM %s WHERE key = ?`, c), key,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) || isMissingCollection(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decoding %s/%s: %w", c, key, err)
	}
	return true, nil
}

// put writes v under key, replacing any previous document.
func (s *EmbeddedStore) put(ctx context.Context, c collection, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s/%s: %w", c, key, err)
	}
	_, err = s.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, c),
		key, string(raw),
	)
	return err
}

// insert writes v only if key is free. inserted is false on a key clash.
func (s *EmbeddedStore) insert(ctx context.Context, c collection, key string, v any) (inserted bool, err error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("encoding %s/%s: %w", c, key, err)
	}
	result, err := s.conn.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %s (key, value) VALUES (?, ?) ON CONFLICT(key) DO NOTHING`, c),
		key, string(raw),
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n == 1, nil
}

// remove deletes key. removed is false when nothing was stored under it.
func (s *EmbeddedStore) remove(ctx context.Context, c collection, key string) (removed bool, err error) {
	result, err := s.conn.ExecContext(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE key = ?`, c), key,
	)
	if err != nil {
		return false, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking rows affected: %w", err)
	}
	return n > 0, nil
}

// scanAll decodes every document in c. A collection that was never created
// reads as empty.
func scanAll[T any](ctx context.Context, s *EmbeddedStore, c collection) ([]T, error) {
	rows, err := s.conn.QueryContext(ctx, fmt.Sprintf(`SELECT key, value FROM %s`, c))
	if isMissingCollection(err) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		var key, raw string
		if err := rows.Scan(&key, &raw); err != nil {
			return nil, fmt.Errorf("scanning %s row: %w", c, err)
		}
		var v T
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			return nil, fmt.Errorf("decoding %s/%s: %w", c, key, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating %s: %w", c, err)
	}
	return out, nil
}
