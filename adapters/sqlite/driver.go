package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/artpar/datalayer/adapters/clock"
	"github.com/artpar/datalayer/ports"
)

// Driver implements ports.Driver using SQLite.
type Driver struct {
	db    *DB
	clock ports.Clock
}

// NewDriver creates a new SQLite driver. The database must be migrated.
func NewDriver(db *DB) *Driver {
	return &Driver{db: db, clock: clock.Real{}}
}

// WithClock sets the clock stamping updated_at.
func (d *Driver) WithClock(c ports.Clock) *Driver {
	d.clock = c
	return d
}

// Save checks uniqueness and writes docs and entries in one transaction.
// The index memberships of each saved document are replaced by entries.
func (d *Driver) Save(ctx context.Context, docs []ports.Document, entries []ports.IndexEntry) ([]string, error) {
	bodies := make([]string, len(docs))
	for i, doc := range docs {
		b, err := json.Marshal(doc.Body)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", doc.Key(), err)
		}
		bodies[i] = string(b)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	members := func(key string) ([]string, error) {
		return queryMembers(ctx, tx, key)
	}
	if err := ports.CheckUnique(entries, members); err != nil {
		return nil, err
	}

	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_members WHERE doc_key = ?`, doc.Key()); err != nil {
			return nil, fmt.Errorf("unindex %s: %w", doc.Key(), err)
		}
	}

	for _, e := range entries {
		if !ports.Indexed(e) {
			continue
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO index_members (index_key, identity, doc_key)
			VALUES (?, ?, ?)
		`, e.Key(), e.Identity, ports.DocumentKey(e.SchemaPath, e.Identity))
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", e.Key(), err)
		}
	}

	now := d.clock.Now().UTC()
	ids := make([]string, 0, len(docs))
	for i, doc := range docs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO documents (key, schema_path, identity, body, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET body = excluded.body, updated_at = excluded.updated_at
		`, doc.Key(), doc.SchemaPath, doc.Identity, bodies[i], now)
		if err != nil {
			return nil, fmt.Errorf("save %s: %w", doc.Key(), err)
		}
		ids = append(ids, doc.Identity)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// FindByRef returns the document stored under ref.
func (d *Driver) FindByRef(ctx context.Context, ref string) (map[string]any, error) {
	var raw string
	err := d.db.QueryRowContext(ctx, `
		SELECT body FROM documents WHERE key = ?
	`, strings.TrimPrefix(ref, ports.RefPrefix)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ports.ErrNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", ref, err)
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(raw), &body); err != nil {
		return nil, fmt.Errorf("decode %s: %w", ref, err)
	}
	return body, nil
}

// UpdatedAt returns when the document stored under ref was last saved.
func (d *Driver) UpdatedAt(ctx context.Context, ref string) (time.Time, error) {
	var at time.Time
	err := d.db.QueryRowContext(ctx, `
		SELECT updated_at FROM documents WHERE key = ?
	`, strings.TrimPrefix(ref, ports.RefPrefix)).Scan(&at)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, fmt.Errorf("%w: %s", ports.ErrNotFound, ref)
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("find %s: %w", ref, err)
	}
	return at, nil
}

// FindIDBy returns the sorted members of "{prefix}:{value}" matching version.
func (d *Driver) FindIDBy(ctx context.Context, prefix, value, version string) ([]string, error) {
	all, err := queryMembers(ctx, d.db, prefix+":"+value)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(all))
	for _, id := range all {
		if ports.MatchVersion(id, version) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Delete removes documents and their index memberships.
func (d *Driver) Delete(ctx context.Context, refs []string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, ref := range refs {
		key := strings.TrimPrefix(ref, ports.RefPrefix)
		if _, err := tx.ExecContext(ctx, `DELETE FROM index_members WHERE doc_key = ?`, key); err != nil {
			return fmt.Errorf("delete index members of %s: %w", key, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}

	return tx.Commit()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryMembers(ctx context.Context, q querier, key string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT identity FROM index_members WHERE index_key = ? ORDER BY identity
	`, key)
	if err != nil {
		return nil, fmt.Errorf("query index %s: %w", key, err)
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

// Ensure interface compliance.
var _ ports.Driver = (*Driver)(nil)
