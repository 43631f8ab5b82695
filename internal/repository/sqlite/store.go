// Package sqlite provides a SQLite-backed table and user store for local runs.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/freeeve/qdice/internal/model"
	"github.com/freeeve/qdice/internal/repository"
	"github.com/freeeve/qdice/pkg/dice"
)

//go:embed schema.sql
var schemaSQL string

// Store persists tables and users in SQLite.
type Store struct {
	sqlDB *sql.DB
	now   func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies the embedded schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get loads a table by tag, or nil when it was never saved.
func (s *Store) Get(ctx context.Context, tag string) (*dice.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT data FROM tables WHERE tag = ?`, tag).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get table %s: %w", tag, err)
	}
	var t dice.Table
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("decode table %s: %w", tag, err)
	}
	return &t, nil
}

// Save inserts or replaces a table.
func (s *Store) Save(ctx context.Context, t *dice.Table) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode table %s: %w", t.Tag, err)
	}
	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO tables (tag, name, map_name, status, data, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tag) DO UPDATE SET
		   name = excluded.name,
		   map_name = excluded.map_name,
		   status = excluded.status,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		t.Tag, t.Name, t.MapName, string(t.Status), string(data), toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("save table %s: %w", t.Tag, err)
	}
	return nil
}

// List returns every stored table ordered by tag.
func (s *Store) List(ctx context.Context) ([]*dice.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT data FROM tables ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []*dice.Table
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		var t dice.Table
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("decode table: %w", err)
		}
		tables = append(tables, &t)
	}
	return tables, rows.Err()
}

// Delete removes a table.
func (s *Store) Delete(ctx context.Context, tag string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := s.sqlDB.ExecContext(ctx, `DELETE FROM tables WHERE tag = ?`, tag); err != nil {
		return fmt.Errorf("delete table %s: %w", tag, err)
	}
	return nil
}

// FindByID looks up a user, or nil when absent.
func (s *Store) FindByID(ctx context.Context, id string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, provider, provider_id, display_name, avatar_url, points, created_at, updated_at
		 FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return u, nil
}

// Upsert creates a user or refreshes its display name and avatar.
func (s *Store) Upsert(ctx context.Context, provider, providerID, displayName, avatarURL string) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	now := toMillis(s.now())
	row := s.sqlDB.QueryRowContext(ctx,
		`INSERT INTO users (id, provider, provider_id, display_name, avatar_url, points, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)
		 ON CONFLICT (provider, provider_id) DO UPDATE SET
		   display_name = excluded.display_name,
		   avatar_url = excluded.avatar_url,
		   updated_at = excluded.updated_at
		 RETURNING id, provider, provider_id, display_name, avatar_url, points, created_at, updated_at`,
		uuid.NewString(), provider, providerID, displayName, avatarURL, now, now,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}
	return u, nil
}

// AddPoints adjusts a user's points by delta, never going below zero.
func (s *Store) AddPoints(ctx context.Context, id string, delta int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`UPDATE users SET points = MAX(points + ?, 0), updated_at = ? WHERE id = ?`,
		delta, toMillis(s.now()), id,
	)
	if err != nil {
		return fmt.Errorf("add points: %w", err)
	}
	return nil
}

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	var created, updated int64
	if err := row.Scan(&u.ID, &u.Provider, &u.ProviderID, &u.DisplayName, &u.AvatarURL, &u.Points, &created, &updated); err != nil {
		return nil, err
	}
	u.CreatedAt = fromMillis(created)
	u.UpdatedAt = fromMillis(updated)
	return &u, nil
}

var (
	_ repository.TableRepository = (*Store)(nil)
	_ repository.UserRepository  = (*Store)(nil)
)
