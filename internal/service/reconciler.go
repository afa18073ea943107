package service

import (
	"context"
	"crypto/sha1"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/config"
	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/database/repository"
	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/match"
)

// Outcome is the terminal state of one receipt within one run.
type Outcome string

const (
	OutcomeAutoLinked       Outcome = "AUTO_LINKED"
	OutcomeAssistQueued     Outcome = "ASSIST_QUEUED"
	OutcomeManualQueued     Outcome = "MANUAL_QUEUED"
	OutcomeDuplicateSkipped Outcome = "DUPLICATE_SKIPPED"
	OutcomeError            Outcome = "ERROR"
)

// LinkRequest asks the collaborator to execute one external link action.
type LinkRequest struct {
	TargetType string // candidate kind
	TargetID   string
	ReceiptID  string
}

// Linker executes link requests against the external ledger system.
type Linker interface {
	LinkReceipt(ctx context.Context, req LinkRequest) error
}

// AssistPayload is the structured package handed to the human-facing
// notifier for an ASSIST outcome.
type AssistPayload struct {
	InteractionID        string   `json:"interaction_id"`
	ReceiptID            string   `json:"receipt_id"`
	Vendor               string   `json:"vendor"`
	Amount               int64    `json:"amount"`
	Date                 string   `json:"date,omitempty"`
	CandidateID          string   `json:"candidate_id"`
	CandidateDescription string   `json:"candidate_description"`
	CandidateAmount      int64    `json:"candidate_amount"`
	Score                int      `json:"score"`
	Reasons              []string `json:"reasons"`
	Quality              float64  `json:"quality"`
}

// ReceiptOutcome reports how one receipt resolved.
type ReceiptOutcome struct {
	ReceiptID string
	Outcome   Outcome
	Action    Action
	Quality   match.QualityCheck
	Enhanced  bool
	Best      *match.MatchResult
	Assist    *AssistPayload
	Err       error
}

// BatchResult accumulates per-receipt outcomes across one run.
type BatchResult struct {
	Outcomes   []ReceiptOutcome
	Linked     int
	Assisted   int
	Manual     int
	Duplicates int
	Errors     int
}

// Reconciler drives each receipt through quality assessment, enhancement,
// scoring, decision and the dedup ledger. All state is injected; distinct
// stores give independent concurrent batches.
type Reconciler struct {
	cfg      config.Config
	norm     *match.Normalizer
	assessor *match.QualityAssessor
	enhancer *match.Enhancer
	scorer   *match.Scorer
	learner  *Learner
	ledger   *repository.LinkLedgerRepo
	pending  *repository.PendingRepo
	audit    *repository.AuditRepo
	linker   Linker
	log      *slog.Logger
	now      func() time.Time

	// AllowFileDelete gates cleanup of same-file collisions. Deletion is
	// not implemented; the flag exists so the refusal is explicit.
	AllowFileDelete bool
}

// NewReconciler wires a reconciler over an open, migrated state database.
func NewReconciler(db *sql.DB, cfg config.Config, linker Linker, logger *slog.Logger) (*Reconciler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	norm := match.NewNormalizer(cfg.Patterns.LegalSuffixes)
	assessor, err := match.NewQualityAssessor(cfg.Patterns)
	if err != nil {
		return nil, err
	}
	learner := NewLearner(repository.NewMappingRepo(db), norm, cfg.Learner, logger)
	return &Reconciler{
		cfg:      cfg,
		norm:     norm,
		assessor: assessor,
		enhancer: match.NewEnhancer(assessor),
		scorer:   match.NewScorer(norm, learner, cfg, logger),
		learner:  learner,
		ledger:   repository.NewLinkLedgerRepo(db),
		pending:  repository.NewPendingRepo(db),
		audit:    repository.NewAuditRepo(db),
		linker:   linker,
		log:      logger,
		now:      time.Now,
	}, nil
}

// Learner exposes the vendor-mapping learner for collaborators that confirm
// links out of band.
func (r *Reconciler) Learner() *Learner { return r.learner }

// ReceiptHash derives the dedup key for a receipt: normalized vendor, date,
// amount and the file content digest. Replaying the same extraction against
// the same file yields the same hash.
func ReceiptHash(rec match.ReceiptRecord) string {
	date := ""
	if !rec.Date.IsZero() {
		date = rec.Date.Format("2006-01-02")
	}
	base := fmt.Sprintf("%s|%s|%d|%s",
		normalizeHashVendor(rec.Vendor), date, rec.Amount, rec.FileDigest)
	return fmt.Sprintf("%x", sha1.Sum([]byte(base)))
}

func normalizeHashVendor(vendor string) string {
	out := make([]rune, 0, len(vendor))
	for _, r := range vendor {
		if r == ' ' || r == '　' || r == '\t' {
			continue
		}
		out = append(out, r)
	}
	return strings.ToUpper(string(out))
}

// ProcessBatch runs every receipt to completion, sequentially. Per-receipt
// failures become ERROR outcomes and the batch continues; store failures
// abort, since a broken ledger voids the idempotency guarantee.
func (r *Reconciler) ProcessBatch(ctx context.Context, receipts []match.ReceiptRecord, banks []match.BankLine, entries []match.LedgerEntry) (BatchResult, error) {
	pool := match.NormalizeCandidates(banks, entries, r.cfg.NgWords)
	var res BatchResult
	for _, rec := range receipts {
		outcome, err := r.processOne(ctx, rec, pool)
		if err != nil {
			return res, fmt.Errorf("receipt %s: %w", rec.ID, err)
		}
		res.Outcomes = append(res.Outcomes, outcome)
		switch outcome.Outcome {
		case OutcomeAutoLinked:
			res.Linked++
		case OutcomeAssistQueued:
			res.Assisted++
		case OutcomeManualQueued:
			res.Manual++
		case OutcomeDuplicateSkipped:
			res.Duplicates++
		case OutcomeError:
			res.Errors++
		}
	}
	return res, nil
}

func (r *Reconciler) processOne(ctx context.Context, rec match.ReceiptRecord, pool []match.Candidate) (ReceiptOutcome, error) {
	check := r.assessor.Check(rec)
	out := ReceiptOutcome{ReceiptID: rec.ID, Quality: check}

	var enh match.Enhancement
	if !check.IsComplete {
		enh = r.enhancer.Enhance(rec, check)
		out.Enhanced = len(enh.Synthesized) > 0
		if out.Enhanced {
			r.log.Info("receipt enhanced",
				"receipt_id", rec.ID, "fields", enh.Synthesized)
		}
	}

	results, err := r.scorer.MatchCandidates(ctx, rec, pool, check, enh)
	if err != nil {
		return out, err
	}
	if len(results) == 0 {
		out.Outcome = OutcomeManualQueued
		out.Action = ActionManual
		if err := r.writeAudit(ctx, "INFO", "manual", []string{rec.ID}, 0, "no_candidates", nil); err != nil {
			return out, err
		}
		return out, nil
	}

	best := results[0]
	out.Best = &best
	out.Action = DecideAction(best.Score, r.cfg, &check.CompletionScore)

	switch out.Action {
	case ActionAuto:
		return r.autoLink(ctx, rec, best, out)
	case ActionAssist:
		return r.queueAssist(ctx, rec, best, out)
	default:
		out.Outcome = OutcomeManualQueued
		if err := r.writeAudit(ctx, "INFO", "manual",
			[]string{best.Candidate.TargetID, rec.ID}, best.Score, "below_assist_band", nil); err != nil {
			return out, err
		}
		return out, nil
	}
}

func (r *Reconciler) autoLink(ctx context.Context, rec match.ReceiptRecord, best match.MatchResult, out ReceiptOutcome) (ReceiptOutcome, error) {
	hash := ReceiptHash(rec)
	targets := []string{best.Candidate.TargetID, rec.ID}

	if err := r.ledger.RecordFileSeen(ctx, rec.FileDigest, rec.ID, r.now()); err != nil {
		return out, fmt.Errorf("record file seen: %w", err)
	}
	existing, err := r.ledger.ExistingForFileDigest(ctx, rec.FileDigest)
	if err != nil {
		return out, fmt.Errorf("file digest lookup: %w", err)
	}
	if len(existing) > 1 {
		// same physical file already seen under other ids; audit only
		if err := r.writeAudit(ctx, "INFO", "duplicate_detected",
			append(targets, existing...), best.Score, "detected", nil); err != nil {
			return out, err
		}
		if r.AllowFileDelete {
			r.log.Warn("file delete requested but not supported; collision kept",
				"file_digest", rec.FileDigest)
		}
	}

	dup, err := r.ledger.IsDuplicated(ctx, hash)
	if err != nil {
		return out, fmt.Errorf("dedup check: %w", err)
	}
	if dup {
		out.Outcome = OutcomeDuplicateSkipped
		r.log.Info("duplicate receipt skipped", "receipt_id", rec.ID, "hash", hash)
		if err := r.writeAudit(ctx, "INFO", "duplicate_skip", targets, best.Score, "skipped", nil); err != nil {
			return out, err
		}
		return out, nil
	}

	linkErr := r.linker.LinkReceipt(ctx, LinkRequest{
		TargetType: string(best.Candidate.Kind),
		TargetID:   best.Candidate.TargetID,
		ReceiptID:  rec.ID,
	})
	if linkErr != nil {
		out.Outcome = OutcomeError
		out.Err = linkErr
		msg := linkErr.Error()
		r.log.Error("link action failed", "receipt_id", rec.ID, "error", linkErr)
		if err := r.writeAudit(ctx, "ERROR", "link", targets, best.Score, "failed", &msg); err != nil {
			return out, err
		}
		return out, nil
	}

	if err := r.ledger.MarkLinked(ctx, repository.LinkRecord{
		ReceiptHash: hash,
		TargetType:  string(best.Candidate.Kind),
		TargetID:    best.Candidate.TargetID,
		ReceiptID:   rec.ID,
		Score:       best.Score,
		FileDigest:  rec.FileDigest,
		LinkedAt:    r.now(),
	}); err != nil {
		return out, fmt.Errorf("mark linked: %w", err)
	}

	if err := r.learner.LearnMapping(ctx, best.Candidate.Description, rec.Vendor,
		float64(best.Score)/100); err != nil {
		return out, err
	}

	if err := r.writeAudit(ctx, "INFO", "link", targets, best.Score, "linked", nil); err != nil {
		return out, err
	}
	out.Outcome = OutcomeAutoLinked
	return out, nil
}

func (r *Reconciler) queueAssist(ctx context.Context, rec match.ReceiptRecord, best match.MatchResult, out ReceiptOutcome) (ReceiptOutcome, error) {
	payload := AssistPayload{
		InteractionID:        uuid.NewString(),
		ReceiptID:            rec.ID,
		Vendor:               rec.Vendor,
		Amount:               rec.Amount,
		CandidateID:          best.Candidate.ID,
		CandidateDescription: best.Candidate.Description,
		CandidateAmount:      best.Candidate.Amount,
		Score:                best.Score,
		Reasons:              best.Reasons,
		Quality:              out.Quality.CompletionScore,
	}
	if !rec.Date.IsZero() {
		payload.Date = rec.Date.Format("2006-01-02")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return out, fmt.Errorf("marshal assist payload: %w", err)
	}

	ttl := time.Duration(r.cfg.Assist.TTLMinutes) * time.Minute
	if err := r.pending.Put(ctx, repository.PendingAssist{
		InteractionID: payload.InteractionID,
		ReceiptID:     rec.ID,
		PayloadJSON:   string(body),
		ExpireAt:      r.now().Add(ttl),
	}); err != nil {
		return out, fmt.Errorf("queue assist: %w", err)
	}

	if err := r.writeAudit(ctx, "INFO", "assist_queued",
		[]string{best.Candidate.TargetID, rec.ID}, best.Score, "queued", nil); err != nil {
		return out, err
	}
	out.Outcome = OutcomeAssistQueued
	out.Assist = &payload
	return out, nil
}

func (r *Reconciler) writeAudit(ctx context.Context, level, action string, targets []string, score int, result string, errMsg *string) error {
	err := r.audit.Write(ctx, repository.AuditEvent{
		Timestamp: r.now(),
		Level:     level,
		Actor:     "system",
		Action:    action,
		TargetIDs: targets,
		Score:     score,
		Result:    result,
		Error:     errMsg,
	})
	if err != nil {
		return fmt.Errorf("write audit: %w", err)
	}
	return nil
}
