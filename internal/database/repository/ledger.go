package repository

import (
	"context"
	"database/sql"
	"time"
)

// LinkLedgerRepo persists committed links and the file-identity index.
type LinkLedgerRepo struct{ db *sql.DB }

func NewLinkLedgerRepo(db *sql.DB) *LinkLedgerRepo { return &LinkLedgerRepo{db: db} }

// IsDuplicated reports whether a receipt hash has already been linked.
func (r *LinkLedgerRepo) IsDuplicated(ctx context.Context, receiptHash string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx,
		`SELECT 1 FROM linked_hashes WHERE receipt_hash = ?`, receiptHash).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// MarkLinked records a committed link. Replaying the same hash overwrites
// with identical content, so the ledger stays append-only by key.
func (r *LinkLedgerRepo) MarkLinked(ctx context.Context, rec LinkRecord) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO linked_hashes(
	 receipt_hash, target_type, target_id, receipt_id, score, file_digest, linked_at)
	VALUES(?, ?, ?, ?, ?, ?, ?)
	`, rec.ReceiptHash, rec.TargetType, rec.TargetID, rec.ReceiptID, rec.Score, rec.FileDigest,
		rec.LinkedAt.UTC().Format(time.RFC3339))
	return err
}

// Get returns the link record for a hash, or nil.
func (r *LinkLedgerRepo) Get(ctx context.Context, receiptHash string) (*LinkRecord, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT receipt_hash, target_type, target_id, receipt_id, score, file_digest, linked_at
	FROM linked_hashes WHERE receipt_hash = ?`, receiptHash)
	var rec LinkRecord
	var linkedAt string
	if err := row.Scan(&rec.ReceiptHash, &rec.TargetType, &rec.TargetID, &rec.ReceiptID,
		&rec.Score, &rec.FileDigest, &linkedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.LinkedAt, _ = time.Parse(time.RFC3339, linkedAt)
	return &rec, nil
}

// RecordFileSeen notes that a receipt id was observed for a file digest.
// Re-recording the same pair is a no-op.
func (r *LinkLedgerRepo) RecordFileSeen(ctx context.Context, fileDigest, receiptID string, seenAt time.Time) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT OR IGNORE INTO file_digests(file_digest, receipt_id, first_seen)
	VALUES(?, ?, ?)
	`, fileDigest, receiptID, seenAt.UTC().Format(time.RFC3339))
	return err
}

// ExistingForFileDigest returns every receipt id recorded for a file digest.
func (r *LinkLedgerRepo) ExistingForFileDigest(ctx context.Context, fileDigest string) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT receipt_id FROM file_digests WHERE file_digest = ? ORDER BY first_seen ASC, receipt_id ASC`,
		fileDigest)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
