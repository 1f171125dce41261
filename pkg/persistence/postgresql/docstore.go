package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// queryDocs runs a query selecting a single JSONB document column and
// unmarshals every row.
func queryDocs[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]*T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	items := make([]*T, 0)

	for rows.Next() {
		var raw []byte

		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var item T
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("failed to decode document: %w", err)
		}

		items = append(items, &item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return items, nil
}

// queryDoc runs a single-row query selecting a JSONB document column. A
// missing row returns the given not-found sentinel.
func queryDoc[T any](ctx context.Context, db *sql.DB, notFound error, query string, args ...any) (*T, error) {
	var raw []byte

	err := db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound
	}

	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	var item T
	if err := json.Unmarshal(raw, &item); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}

	return &item, nil
}

func marshalDoc(item any) ([]byte, error) {
	doc, err := json.Marshal(item)
	if err != nil {
		return nil, fmt.Errorf("failed to encode document: %w", err)
	}

	return doc, nil
}
