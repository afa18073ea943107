package match

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/config"
)

type fakeLookup struct {
	byRaw map[string][]VendorCandidate
}

func (f fakeLookup) VendorCandidates(_ context.Context, raw string) ([]VendorCandidate, error) {
	return f.byRaw[raw], nil
}

func testScorer(t *testing.T, lookup VendorLookup) *Scorer {
	t.Helper()
	cfg := config.Default()
	return NewScorer(NewNormalizer(cfg.Patterns.LegalSuffixes), lookup, cfg, nil)
}

func completeCheck() QualityCheck {
	return QualityCheck{IsComplete: true, CompletionScore: 1.0}
}

func TestMatchStandardExactPairScoresAuto(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	rec := ReceiptRecord{
		ID:     "r1",
		Vendor: "ACME Store",
		Amount: 3200,
		Date:   time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC),
	}
	pool := []Candidate{{
		ID:          "10",
		TargetID:    "10",
		Kind:        KindBankLine,
		Amount:      -3200,
		Date:        time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC),
		Description: "ACME STORE",
	}}

	results, err := s.MatchCandidates(context.Background(), rec, pool, completeCheck(), Enhancement{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	// 100*0.4 amount + 100*0.25 date + 100*0.3 name, no tax factor
	require.Equal(t, 95, results[0].Score)
	require.Contains(t, results[0].Reasons, "amount_match")
	require.Contains(t, results[0].Reasons, "date_match")
	require.EqualValues(t, 0, results[0].Deltas.Amount)
	require.Equal(t, "2025-04-09", results[0].Deltas.Date)
}

func TestScoreMatchTaxFactor(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	taxRate := 0.10
	taxCode := 10
	rec := ReceiptRecord{
		Vendor:  "ACME Store",
		Amount:  1000,
		Date:    time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC),
		TaxRate: &taxRate,
	}
	cand := Candidate{
		Amount:      -1000,
		Date:        time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC),
		Description: "ACME STORE",
		TaxRate:     &taxCode,
	}

	score, reasons := s.ScoreMatch(rec, cand, s.cfg.Weights.Standard)
	require.Equal(t, 100, score)
	require.Contains(t, reasons, "tax_match")
}

func TestScoreMatchDateTolerance(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	rec := ReceiptRecord{
		Vendor: "ACME Store",
		Amount: 1000,
		Date:   time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC),
	}
	within := Candidate{Amount: 1000, Date: rec.Date.AddDate(0, 0, 3), Description: "ACME STORE"}
	beyond := Candidate{Amount: 1000, Date: rec.Date.AddDate(0, 0, 4), Description: "ACME STORE"}

	_, reasons := s.ScoreMatch(rec, within, s.cfg.Weights.Standard)
	require.Contains(t, reasons, "date_match")
	_, reasons = s.ScoreMatch(rec, beyond, s.cfg.Weights.Standard)
	require.NotContains(t, reasons, "date_match")
}

func TestScoreMatchBounds(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	recs := []ReceiptRecord{
		{Vendor: "ACME Store", Amount: 1000, Date: time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC)},
		{Vendor: "", Amount: 0},
		{Vendor: "ローソン新宿", Amount: 99999, Date: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)},
	}
	cands := []Candidate{
		{Amount: -1000, Date: time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC), Description: "ACME STORE"},
		{Description: "振込 タナカ"},
		{Amount: 5, Date: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC), Description: "x"},
	}
	for _, rec := range recs {
		for _, cand := range cands {
			score, _ := s.ScoreMatch(rec, cand, s.cfg.Weights.Standard)
			require.GreaterOrEqual(t, score, 0)
			require.LessOrEqual(t, score, 100)
		}
	}
}

func TestMatchStandardSimilarityFloor(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	rec := ReceiptRecord{
		Vendor: "ACME Store",
		Amount: 3200,
		Date:   time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC),
	}
	pool := []Candidate{{
		ID:          "1",
		Amount:      -3200,
		Date:        rec.Date,
		Description: "ZZZZZZ",
	}}

	results, err := s.MatchCandidates(context.Background(), rec, pool, completeCheck(), Enhancement{})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestMatchStandardLearnedMappingWaivesFloor(t *testing.T) {
	t.Parallel()
	lookup := fakeLookup{byRaw: map[string][]VendorCandidate{
		"ZZZZZZ": {{Vendor: "ACME Store", Confidence: 0.9, MatchType: "exact"}},
	}}
	s := testScorer(t, lookup)

	rec := ReceiptRecord{
		Vendor: "ACME Store",
		Amount: 3200,
		Date:   time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC),
	}
	pool := []Candidate{{
		ID:          "1",
		Amount:      -3200,
		Date:        rec.Date,
		Description: "ZZZZZZ",
	}}

	results, err := s.MatchCandidates(context.Background(), rec, pool, completeCheck(), Enhancement{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	// amount 40 + date 25 + name 0, plus the capped learned bonus 0.9*30
	require.Equal(t, 92, results[0].Score)
	require.Contains(t, results[0].Reasons, "learned_mapping")
}

func TestMatchStandardRanksTopThree(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	rec := ReceiptRecord{
		Vendor: "ACME Store",
		Amount: 3200,
		Date:   time.Date(2025, 4, 9, 0, 0, 0, 0, time.UTC),
	}
	pool := []Candidate{
		{ID: "1", Amount: -3200, Date: rec.Date, Description: "ACME STORE"},
		{ID: "2", Amount: -3200, Date: rec.Date.AddDate(0, 0, 10), Description: "ACME STORE"},
		{ID: "3", Amount: -9999, Date: rec.Date, Description: "ACME STORE"},
		{ID: "4", Amount: -3200, Date: rec.Date, Description: "ACME STORE"},
	}

	results, err := s.MatchCandidates(context.Background(), rec, pool, completeCheck(), Enhancement{})
	require.NoError(t, err)
	require.Len(t, results, 3)
	// ids 1 and 4 tie at the top; tie broken by candidate id
	require.Equal(t, "1", results[0].Candidate.ID)
	require.Equal(t, "4", results[1].Candidate.ID)
	require.GreaterOrEqual(t, results[1].Score, results[2].Score)
}

func TestMatchDegradedSynthesizedFields(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	rec := ReceiptRecord{
		ID:       "r1",
		Vendor:   "レシート#331122062",
		Amount:   0,
		Filename: "IMG_2025-06-01_1280.jpg",
	}
	enh := Enhancement{
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Amount:      1280,
		Synthesized: []string{"date", "amount"},
	}
	check := QualityCheck{IsComplete: false, CompletionScore: 0.2}
	pool := []Candidate{{
		ID:          "55",
		TargetID:    "55",
		Kind:        KindBankLine,
		Amount:      -1280,
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "コンビニ",
	}}

	results, err := s.MatchCandidates(context.Background(), rec, pool, check, enh)
	require.NoError(t, err)
	require.Len(t, results, 1)

	// recovered amount and date both land exact: 100*0.7 + 100*0.2
	require.Equal(t, 90, results[0].Score)
	require.Contains(t, results[0].Reasons, "degraded_profile")
	require.Contains(t, results[0].Reasons, "synthesized_date")
	require.Contains(t, results[0].Reasons, "synthesized_amount")
}

func TestMatchDegradedFloor(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	// no amount, no date, junk vendor: nothing to hang a match on
	rec := ReceiptRecord{ID: "r1", Vendor: "レシート#1234", Amount: 0}
	check := QualityCheck{IsComplete: false, CompletionScore: 0.0}
	pool := []Candidate{{
		ID:          "1",
		Amount:      -50, // outside every plausible range
		Description: "ﾃﾅﾝﾄ",
	}}

	results, err := s.MatchCandidates(context.Background(), rec, pool, check, Enhancement{})
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestMatchDegradedZeroAmountRangeHeuristic(t *testing.T) {
	t.Parallel()
	s := testScorer(t, nil)

	rec := ReceiptRecord{ID: "r1", Vendor: "レシート#1234", Amount: 0}
	check := QualityCheck{IsComplete: false, CompletionScore: 0.1}
	pool := []Candidate{{
		ID:          "1",
		Amount:      -5400, // plausible everyday range
		Date:        time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Description: "コーヒーロースト",
	}}
	// a recovered date keeps the pairing above the floor
	enh := Enhancement{Date: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC), Synthesized: []string{"date"}}

	results, err := s.MatchCandidates(context.Background(), rec, pool, check, enh)
	require.NoError(t, err)
	require.Len(t, results, 1)
	// amount 40*0.7 + date 99*0.2, name negligible
	require.GreaterOrEqual(t, results[0].Score, 40)
	require.Less(t, results[0].Score, 70)
}

func TestRankTopDeterministic(t *testing.T) {
	t.Parallel()

	results := []MatchResult{
		{Candidate: Candidate{ID: "b"}, Score: 80},
		{Candidate: Candidate{ID: "a"}, Score: 80},
		{Candidate: Candidate{ID: "c"}, Score: 90},
	}
	ranked := rankTop(results, 2)
	require.Len(t, ranked, 2)
	require.Equal(t, "c", ranked[0].Candidate.ID)
	require.Equal(t, "a", ranked[1].Candidate.ID)
}
