package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// AuditRepo appends decision events to the audit log.
type AuditRepo struct{ db *sql.DB }

func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// Write appends one audit event.
func (r *AuditRepo) Write(ctx context.Context, ev AuditEvent) error {
	targets, err := json.Marshal(ev.TargetIDs)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, `
	INSERT INTO audit_log(ts, level, actor, action, target_ids, score, result, error)
	VALUES(?, ?, ?, ?, ?, ?, ?, ?)
	`, ev.Timestamp.UTC().Format(time.RFC3339), ev.Level, ev.Actor, ev.Action,
		string(targets), ev.Score, ev.Result, ev.Error)
	return err
}

// Recent returns the newest events, most recent first.
func (r *AuditRepo) Recent(ctx context.Context, limit int) ([]AuditEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT ts, level, actor, action, target_ids, score, result, error
	FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AuditEvent
	for rows.Next() {
		var ev AuditEvent
		var ts, targets string
		var errStr sql.NullString
		if err := rows.Scan(&ts, &ev.Level, &ev.Actor, &ev.Action, &targets, &ev.Score, &ev.Result, &errStr); err != nil {
			return nil, err
		}
		ev.Timestamp, _ = time.Parse(time.RFC3339, ts)
		_ = json.Unmarshal([]byte(targets), &ev.TargetIDs)
		if errStr.Valid {
			ev.Error = &errStr.String
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
