package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/config"
	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/database"
	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/match"
	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/service"
)

// receiptInput is the JSON shape produced by the upstream fetcher.
type receiptInput struct {
	ID         string   `json:"id"`
	FileDigest string   `json:"file_digest"`
	Vendor     string   `json:"vendor"`
	Date       string   `json:"date"`
	Amount     int64    `json:"amount"`
	TaxRate    *float64 `json:"tax_rate"`
	Confidence *float64 `json:"confidence"`
	Filename   string   `json:"filename"`
	Memo       string   `json:"memo"`
}

type candidateInput struct {
	BankLines []match.BankLine    `json:"bank_lines"`
	Entries   []match.LedgerEntry `json:"ledger_entries"`
}

// logLinker prints link requests instead of calling the external ledger.
// The real client lives with the collaborators that own credentials.
type logLinker struct{ log *slog.Logger }

func (l *logLinker) LinkReceipt(_ context.Context, req service.LinkRequest) error {
	l.log.Info("link request",
		"target_type", req.TargetType, "target_id", req.TargetID, "receipt_id", req.ReceiptID)
	return nil
}

func main() {
	receiptsPath := flag.String("receipts", "receipts.json", "path to receipts JSON")
	candidatesPath := flag.String("candidates", "candidates.json", "path to candidate pool JSON")
	flag.Parse()

	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	if dir := filepath.Dir(cfg.Database.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatalf("mkdir db dir: %v", err)
		}
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer db.Close()
	if err := database.RunMigrations(db); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	receipts, err := loadReceipts(*receiptsPath)
	if err != nil {
		log.Fatalf("receipts: %v", err)
	}
	var pool candidateInput
	if err := loadJSON(*candidatesPath, &pool); err != nil {
		log.Fatalf("candidates: %v", err)
	}

	maint := service.NewMaintenanceService(db, logger)
	if _, err := maint.PurgeExpiredAssists(ctx, time.Now()); err != nil {
		log.Fatalf("maintenance: %v", err)
	}

	rec, err := service.NewReconciler(db, cfg, &logLinker{log: logger}, logger)
	if err != nil {
		log.Fatalf("reconciler: %v", err)
	}

	res, err := rec.ProcessBatch(ctx, receipts, pool.BankLines, pool.Entries)
	if err != nil {
		log.Fatalf("batch: %v", err)
	}

	fmt.Printf("processed %d receipts: %d linked, %d assist, %d manual, %d duplicates, %d errors\n",
		len(res.Outcomes), res.Linked, res.Assisted, res.Manual, res.Duplicates, res.Errors)
	for _, out := range res.Outcomes {
		line := fmt.Sprintf("  %s -> %s", out.ReceiptID, out.Outcome)
		if out.Best != nil {
			line += fmt.Sprintf(" (candidate %s, score %d)", out.Best.Candidate.ID, out.Best.Score)
		}
		fmt.Println(line)
	}
}

func loadReceipts(path string) ([]match.ReceiptRecord, error) {
	var inputs []receiptInput
	if err := loadJSON(path, &inputs); err != nil {
		return nil, err
	}
	out := make([]match.ReceiptRecord, 0, len(inputs))
	for _, in := range inputs {
		rec := match.ReceiptRecord{
			ID:         in.ID,
			FileDigest: in.FileDigest,
			Vendor:     in.Vendor,
			Amount:     in.Amount,
			TaxRate:    in.TaxRate,
			Confidence: in.Confidence,
			Filename:   in.Filename,
			Memo:       in.Memo,
		}
		if in.Date != "" {
			d, err := time.Parse("2006-01-02", in.Date)
			if err != nil {
				return nil, fmt.Errorf("receipt %s: bad date %q: %w", in.ID, in.Date, err)
			}
			rec.Date = d
		}
		out = append(out, rec)
	}
	return out, nil
}

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
