package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/config"
)

// VendorCandidate is a learned canonical-vendor suggestion for a raw
// counterparty description.
type VendorCandidate struct {
	Vendor       string
	Confidence   float64
	SuccessCount int
	MatchType    string // "exact" | "partial"
}

// VendorLookup is what the scorer needs from the vendor-mapping learner.
type VendorLookup interface {
	VendorCandidates(ctx context.Context, raw string) ([]VendorCandidate, error)
}

// Scorer computes weighted multi-factor match scores, selecting the weight
// profile from the receipt's quality tier.
type Scorer struct {
	norm   *Normalizer
	lookup VendorLookup // nil disables learned bonuses
	cfg    config.Config
	log    *slog.Logger
}

func NewScorer(norm *Normalizer, lookup VendorLookup, cfg config.Config, logger *slog.Logger) *Scorer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{norm: norm, lookup: lookup, cfg: cfg, log: logger}
}

const (
	standardTopN = 3
	degradedTopN = 5
)

// MatchCandidates scores the receipt against the pool and returns the ranked
// top results. Complete receipts take the standard path; weakly extracted
// ones the degraded path, where amount and date carry the match.
func (s *Scorer) MatchCandidates(ctx context.Context, rec ReceiptRecord, pool []Candidate, check QualityCheck, enh Enhancement) ([]MatchResult, error) {
	if check.IsComplete {
		return s.matchStandard(ctx, rec, pool, check)
	}
	return s.matchDegraded(ctx, rec, pool, check, enh)
}

func (s *Scorer) matchStandard(ctx context.Context, rec ReceiptRecord, pool []Candidate, check QualityCheck) ([]MatchResult, error) {
	recKey := s.norm.Name(rec.Vendor)
	var results []MatchResult
	for _, cand := range pool {
		baseSim := Similarity(recKey, s.norm.Name(cand.Description))
		bonus, err := s.learnedBonus(ctx, rec.Vendor, cand.Description)
		if err != nil {
			return nil, err
		}
		// the similarity floor is waived when a learned mapping vouches
		// for the candidate
		if baseSim < s.cfg.Similarity.MinCandidate && bonus == 0 {
			continue
		}
		score, reasons := s.ScoreMatch(rec, cand, s.cfg.Weights.Standard)
		if bonus > 0 {
			score = clampScore(score + bonus)
			reasons = append(reasons, "learned_mapping")
		}
		results = append(results, s.result(rec, cand, score, reasons, check))
	}
	return rankTop(results, standardTopN), nil
}

// ScoreMatch computes the standard-profile score for one pairing: binary
// amount and date factors inside configured tolerances, graded name
// similarity, and an optional tax-rate factor.
func (s *Scorer) ScoreMatch(rec ReceiptRecord, cand Candidate, w config.WeightProfile) (int, []string) {
	var reasons []string

	tolerance := s.amountTolerance(rec.Amount, s.cfg.Tolerances.Amount, s.cfg.Tolerances.AmountPct)
	amountScore := 0
	if absInt64(rec.Amount-absInt64(cand.Amount)) <= tolerance {
		amountScore = 100
		reasons = append(reasons, "amount_match")
	}

	dateScore := 0
	if cand.Date.IsZero() {
		reasons = append(reasons, "date_missing")
	} else if !rec.Date.IsZero() && daysApart(rec.Date, cand.Date) <= s.cfg.Tolerances.Days {
		dateScore = 100
		reasons = append(reasons, "date_match")
	}

	nameScore := int(math.Round(Similarity(s.norm.Name(rec.Vendor), s.norm.Name(cand.Description)) * 100))
	reasons = append(reasons, fmt.Sprintf("name~%d", nameScore))

	taxScore := 0
	if rec.TaxRate != nil && cand.TaxRate != nil &&
		int(math.Round(*rec.TaxRate*100)) == *cand.TaxRate {
		taxScore = 100
		reasons = append(reasons, "tax_match")
	}

	total := int(math.Round(float64(amountScore)*w.Amount +
		float64(dateScore)*w.Date +
		float64(nameScore)*w.Name +
		float64(taxScore)*w.TaxRate))
	return clampScore(total), reasons
}

func (s *Scorer) matchDegraded(ctx context.Context, rec ReceiptRecord, pool []Candidate, check QualityCheck, enh Enhancement) ([]MatchResult, error) {
	w := s.cfg.Weights.Degraded
	minTotal := 40
	if rec.Amount == 0 {
		minTotal = 30
	}

	var results []MatchResult
	for _, cand := range pool {
		amountScore := s.degradedAmountScore(rec, cand, enh)
		dateScore, dateTag := s.degradedDateScore(rec, cand, enh)
		nameScore := s.degradedNameScore(rec, cand, enh)

		total := int(math.Round(float64(amountScore)*w.Amount +
			float64(dateScore)*w.Date +
			float64(nameScore)*w.Name))
		total = clampScore(total)

		bonus, err := s.learnedBonus(ctx, rec.Vendor, cand.Description)
		if err != nil {
			return nil, err
		}
		reasons := []string{
			"degraded_profile",
			fmt.Sprintf("amount_score=%d", amountScore),
			fmt.Sprintf("date_score=%d", dateScore),
			fmt.Sprintf("name_score=%d", nameScore),
		}
		if dateTag != "" {
			reasons = append(reasons, dateTag)
		}
		if bonus > 0 {
			total = clampScore(total + bonus)
			reasons = append(reasons, "learned_mapping")
		}
		for _, f := range enh.Synthesized {
			reasons = append(reasons, "synthesized_"+f)
		}
		if total < minTotal {
			continue
		}
		results = append(results, s.result(rec, cand, total, reasons, check))
	}
	return rankTop(results, degradedTopN), nil
}

// degradedAmountScore grades the amount factor instead of the standard
// binary cut. A zero extracted amount falls back to the enhancer estimate,
// then to a coarse plausible-range heuristic.
func (s *Scorer) degradedAmountScore(rec ReceiptRecord, cand Candidate, enh Enhancement) int {
	candAmount := absInt64(cand.Amount)
	if rec.Amount == 0 {
		if enh.HasAmount() {
			diff := absInt64(enh.Amount - candAmount)
			tolerance := s.amountTolerance(enh.Amount, s.cfg.Tolerances.DegradedAmount, 0.2)
			if diff <= tolerance {
				return maxInt(60, 100-int(diff/100))
			}
		}
		switch {
		case candAmount >= 1000 && candAmount <= 100000:
			return 40
		case candAmount >= 100 && candAmount <= 1000000:
			return 20
		default:
			return 0
		}
	}
	diff := absInt64(rec.Amount - candAmount)
	tolerance := s.amountTolerance(rec.Amount, s.cfg.Tolerances.DegradedAmount, s.cfg.Tolerances.DegradedAmountPct)
	if diff <= tolerance {
		return 100
	}
	return maxInt(0, 100-int(diff/100))
}

func (s *Scorer) degradedDateScore(rec ReceiptRecord, cand Candidate, enh Enhancement) (int, string) {
	if cand.Date.IsZero() {
		return 0, "date_missing"
	}
	receiptDate := rec.Date
	if enh.HasDate() {
		receiptDate = enh.Date
	}
	if receiptDate.IsZero() {
		return 0, ""
	}
	diff := daysApart(receiptDate, cand.Date)
	if diff <= s.cfg.Tolerances.DegradedDays {
		return maxInt(50, 100-diff), ""
	}
	return 0, ""
}

func (s *Scorer) degradedNameScore(rec ReceiptRecord, cand Candidate, enh Enhancement) int {
	vendor := rec.Vendor
	if enh.HasVendor() {
		vendor = enh.Vendor
	}
	if vendor == "" || cand.Description == "" {
		return 0
	}
	a, b := s.norm.Name(vendor), s.norm.Name(cand.Description)
	best := math.Max(Similarity(a, b), PartialSimilarity(a, b))
	return int(math.Round(best * 100))
}

// learnedBonus consults the vendor-mapping learner: a stored mapping whose
// canonical vendor is similar enough to the receipt vendor earns a
// confidence-scaled bonus, capped by configuration.
func (s *Scorer) learnedBonus(ctx context.Context, receiptVendor, candDescription string) (int, error) {
	if s.lookup == nil || candDescription == "" {
		return 0, nil
	}
	candidates, err := s.lookup.VendorCandidates(ctx, candDescription)
	if err != nil {
		return 0, fmt.Errorf("vendor lookup: %w", err)
	}
	recKey := s.norm.Name(receiptVendor)
	for _, vc := range candidates {
		if Similarity(recKey, s.norm.Name(vc.Vendor)) > s.cfg.Learner.SimilarityBar {
			return int(vc.Confidence * float64(s.cfg.Learner.BonusCap)), nil
		}
	}
	return 0, nil
}

func (s *Scorer) amountTolerance(amount, floor int64, pct float64) int64 {
	proportional := int64(float64(amount) * pct)
	if proportional > floor {
		return proportional
	}
	return floor
}

func (s *Scorer) result(rec ReceiptRecord, cand Candidate, score int, reasons []string, check QualityCheck) MatchResult {
	quality := check.CompletionScore
	deltas := Deltas{
		Amount: absInt64(rec.Amount - absInt64(cand.Amount)),
		Name:   cand.Description,
	}
	if rec.Amount == 0 {
		deltas.Amount = 0
	}
	if !cand.Date.IsZero() {
		deltas.Date = cand.Date.Format(candidateDateLayout)
	}
	return MatchResult{
		Candidate:    cand,
		Score:        score,
		Reasons:      reasons,
		Deltas:       deltas,
		QualityScore: &quality,
	}
}

// rankTop sorts by descending score with candidate id as a deterministic
// tiebreak, then truncates.
func rankTop(results []MatchResult, n int) []MatchResult {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Candidate.ID < results[j].Candidate.ID
	})
	if len(results) > n {
		results = results[:n]
	}
	return results
}

func clampScore(s int) int {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

func daysApart(a, b time.Time) int {
	d := a.Sub(b)
	if d < 0 {
		d = -d
	}
	return int(d.Hours() / 24)
}

func absInt64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
