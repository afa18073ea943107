package repository

import (
	"context"
	"database/sql"
	"time"
)

// MappingRepo persists the learned vendor-name dictionary.
type MappingRepo struct{ db *sql.DB }

func NewMappingRepo(db *sql.DB) *MappingRepo { return &MappingRepo{db: db} }

// Get returns the mapping for a normalized raw key, or nil.
func (r *MappingRepo) Get(ctx context.Context, rawKey string) (*VendorMapping, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT raw_key, vendor_key, confidence, success_count, updated_at
	FROM vendor_mappings WHERE raw_key = ?`, rawKey)
	m, err := scanMapping(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Upsert records a mapping, bumping the success counter when the key exists.
func (r *MappingRepo) Upsert(ctx context.Context, m VendorMapping) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT INTO vendor_mappings(raw_key, vendor_key, confidence, success_count, updated_at)
	VALUES(?, ?, ?, 1, ?)
	ON CONFLICT(raw_key) DO UPDATE SET
	 vendor_key    = excluded.vendor_key,
	 confidence    = excluded.confidence,
	 success_count = vendor_mappings.success_count + 1,
	 updated_at    = excluded.updated_at
	`, m.RawKey, m.VendorKey, m.Confidence, m.UpdatedAt.UTC().Format(time.RFC3339))
	return err
}

// All returns every stored mapping. The dictionary stays small enough that
// partial-match lookups scan it in memory.
func (r *MappingRepo) All(ctx context.Context) ([]VendorMapping, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT raw_key, vendor_key, confidence, success_count, updated_at
	FROM vendor_mappings ORDER BY raw_key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []VendorMapping
	for rows.Next() {
		m, err := scanMapping(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// RawFormsFor returns every raw key learned for a canonical vendor key.
func (r *MappingRepo) RawFormsFor(ctx context.Context, vendorKey string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT raw_key FROM vendor_mappings WHERE vendor_key = ? ORDER BY raw_key ASC`, vendorKey)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

func scanMapping(scan func(dest ...any) error) (*VendorMapping, error) {
	var m VendorMapping
	var updatedAt string
	if err := scan(&m.RawKey, &m.VendorKey, &m.Confidence, &m.SuccessCount, &updatedAt); err != nil {
		return nil, err
	}
	m.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &m, nil
}
