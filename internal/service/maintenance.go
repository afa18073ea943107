package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/database"
	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/database/repository"
)

// MaintenanceService houses periodic and destructive state-store actions.
type MaintenanceService struct {
	DB      *sql.DB
	Pending *repository.PendingRepo
	Log     *slog.Logger
}

func NewMaintenanceService(db *sql.DB, logger *slog.Logger) *MaintenanceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &MaintenanceService{DB: db, Pending: repository.NewPendingRepo(db), Log: logger}
}

// PurgeExpiredAssists drops pending confirmations whose TTL has lapsed.
// Intended to run at the start of each batch.
func (s *MaintenanceService) PurgeExpiredAssists(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.Pending.PurgeExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("purge expired assists: %w", err)
	}
	if n > 0 {
		s.Log.Info("expired assists purged", "count", n)
	}
	return n, nil
}

// TrimAuditLog keeps only the newest keep rows.
func (s *MaintenanceService) TrimAuditLog(ctx context.Context, keep int) error {
	if keep < 0 {
		keep = 0
	}
	_, err := s.DB.ExecContext(ctx, `
	DELETE FROM audit_log WHERE id NOT IN (
	 SELECT id FROM audit_log ORDER BY id DESC LIMIT ?
	)`, keep)
	if err != nil {
		return fmt.Errorf("trim audit log: %w", err)
	}
	return nil
}

// Reset wipes all learned and linked state. The schema stays intact, so the
// next run starts from a clean dictionary and ledger.
func (s *MaintenanceService) Reset(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("maintenance: db not configured")
	}
	if err := database.WithTx(s.DB, func(tx *sql.Tx) error {
		tables := []string{
			"pending_assists",
			"audit_log",
			"vendor_mappings",
			"file_digests",
			"linked_hashes",
		}
		for _, t := range tables {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+t); err != nil {
				return fmt.Errorf("reset table %s: %w", t, err)
			}
		}
		return nil
	}); err != nil {
		return err
	}
	_, _ = s.DB.ExecContext(ctx, "VACUUM")
	return nil
}
