package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/freeeve/qdice/pkg/dice"
)

// TableRepo stores table state as JSONB rows keyed by tag.
type TableRepo struct {
	db *sql.DB
}

// NewTableRepo creates a TableRepo.
func NewTableRepo(db *sql.DB) *TableRepo {
	return &TableRepo{db: db}
}

// Get loads a table by tag. The adjacency is not stored; callers attach it
// from the table's map.
func (r *TableRepo) Get(ctx context.Context, tag string) (*dice.Table, error) {
	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM tables WHERE tag = $1`, tag).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find table %s: %w", tag, err)
	}
	var t dice.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", tag, err)
	}
	return &t, nil
}

// Save inserts or replaces a table row.
func (r *TableRepo) Save(ctx context.Context, t *dice.Table) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode table %s: %w", t.Tag, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO tables (tag, name, map_name, status, data, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now())
		 ON CONFLICT (tag)
		 DO UPDATE SET name = EXCLUDED.name, map_name = EXCLUDED.map_name,
		               status = EXCLUDED.status, data = EXCLUDED.data, updated_at = now()`,
		t.Tag, t.Name, t.MapName, string(t.Status), data,
	)
	if err != nil {
		return fmt.Errorf("save table %s: %w", t.Tag, err)
	}
	return nil
}

// List returns every stored table ordered by tag.
func (r *TableRepo) List(ctx context.Context) ([]*dice.Table, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM tables ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []*dice.Table
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		var t dice.Table
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		tables = append(tables, &t)
	}
	return tables, rows.Err()
}

// Delete removes a table row. Deleting a missing tag is not an error.
func (r *TableRepo) Delete(ctx context.Context, tag string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM tables WHERE tag = $1`, tag); err != nil {
		return fmt.Errorf("delete table %s: %w", tag, err)
	}
	return nil
}
