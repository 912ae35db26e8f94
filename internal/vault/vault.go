// Package vault keeps mask results so a caller can demask later by id
// instead of carrying the entity list around. Entries hold original PII
// values; the file must be protected like any other secret store.
package vault

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"pii-masking-service/internal/logger"
	"pii-masking-service/internal/masker"
)

// ErrNotFound is returned when no entry exists for an id.
var ErrNotFound = errors.New("vault: entry not found")

const schema = `
CREATE TABLE IF NOT EXISTS mask_results (
	id            TEXT PRIMARY KEY,
	masked_text   TEXT NOT NULL,
	entities_json TEXT NOT NULL,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_mask_results_created ON mask_results(created_at);`

// Record is one stored mask result.
type Record struct {
	ID         string
	MaskedText string
	Entities   []masker.EntityRecord
	CreatedAt  time.Time
}

// Vault is a SQLite-backed store of mask results. Safe for concurrent use.
type Vault struct {
	db  *sql.DB
	log *logger.Logger
	now func() time.Time
}

// Open opens (creating if needed) the vault database at path.
func Open(path string, log *logger.Logger) (*Vault, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("vault: open %s: %w", path, err)
	}
	// One writer at a time; also keeps ":memory:" databases on a single connection.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("vault: init schema: %w", err)
	}
	log.Infof("open", "vault ready at %s", path)
	return &Vault{db: db, log: log, now: time.Now}, nil
}

// Save stores res and returns its new id.
func (v *Vault) Save(ctx context.Context, res masker.Result) (string, error) {
	entities := res.Entities
	if entities == nil {
		entities = []masker.EntityRecord{}
	}
	raw, err := json.Marshal(entities)
	if err != nil {
		return "", fmt.Errorf("vault: encode entities: %w", err)
	}
	id := uuid.New().String()
	_, err = v.db.ExecContext(ctx,
		`INSERT INTO mask_results (id, masked_text, entities_json, created_at) VALUES (?, ?, ?, ?)`,
		id, res.MaskedText, string(raw), v.now().UnixNano())
	if err != nil {
		return "", fmt.Errorf("vault: save: %w", err)
	}
	v.log.Debugf("save", "stored id=%s entities=%d", id, len(entities))
	return id, nil
}

// Get returns the entry for id or ErrNotFound.
func (v *Vault) Get(ctx context.Context, id string) (Record, error) {
	var (
		rec     Record
		raw     string
		created int64
	)
	err := v.db.QueryRowContext(ctx,
		`SELECT id, masked_text, entities_json, created_at FROM mask_results WHERE id = ?`, id).
		Scan(&rec.ID, &rec.MaskedText, &raw, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("vault: get %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(raw), &rec.Entities); err != nil {
		return Record{}, fmt.Errorf("vault: decode entities for %s: %w", id, err)
	}
	rec.CreatedAt = time.Unix(0, created)
	return rec, nil
}

// Delete removes the entry for id. Deleting a missing id returns ErrNotFound.
func (v *Vault) Delete(ctx context.Context, id string) error {
	res, err := v.db.ExecContext(ctx, `DELETE FROM mask_results WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("vault: delete %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// PurgeOlderThan deletes entries created more than age ago and returns how
// many were removed.
func (v *Vault) PurgeOlderThan(ctx context.Context, age time.Duration) (int64, error) {
	cutoff := v.now().Add(-age).UnixNano()
	res, err := v.db.ExecContext(ctx, `DELETE FROM mask_results WHERE created_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("vault: purge: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("vault: purge: %w", err)
	}
	if n > 0 {
		v.log.Infof("purge", "removed %d entries older than %s", n, age)
	}
	return n, nil
}

// RunPurger purges entries older than retention every interval until ctx
// is done.
func (v *Vault) RunPurger(ctx context.Context, retention, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := v.PurgeOlderThan(ctx, retention); err != nil && ctx.Err() == nil {
				v.log.Warnf("purge", "%v", err)
			}
		}
	}
}

// Close closes the database.
func (v *Vault) Close() error { return v.db.Close() }
