package repository

import (
	"context"
	"database/sql"
	"time"
)

// PendingRepo queues assist requests awaiting human confirmation.
type PendingRepo struct{ db *sql.DB }

func NewPendingRepo(db *sql.DB) *PendingRepo { return &PendingRepo{db: db} }

// Put stores a pending assist, replacing any prior entry for the interaction.
func (r *PendingRepo) Put(ctx context.Context, p PendingAssist) error {
	_, err := r.db.ExecContext(ctx, `
	INSERT OR REPLACE INTO pending_assists(interaction_id, receipt_id, payload_json, expire_at)
	VALUES(?, ?, ?, ?)
	`, p.InteractionID, p.ReceiptID, p.PayloadJSON, p.ExpireAt.UTC().Format(time.RFC3339))
	return err
}

// Get returns the pending assist for an interaction id, or nil when absent
// or already expired.
func (r *PendingRepo) Get(ctx context.Context, interactionID string, now time.Time) (*PendingAssist, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT interaction_id, receipt_id, payload_json, expire_at
	FROM pending_assists WHERE interaction_id = ?`, interactionID)
	var p PendingAssist
	var expireAt string
	if err := row.Scan(&p.InteractionID, &p.ReceiptID, &p.PayloadJSON, &expireAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	p.ExpireAt, _ = time.Parse(time.RFC3339, expireAt)
	if !p.ExpireAt.After(now) {
		return nil, nil
	}
	return &p, nil
}

// PurgeExpired removes entries past their TTL and reports how many went.
func (r *PendingRepo) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM pending_assists WHERE expire_at <= ?`, now.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
