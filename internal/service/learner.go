package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/config"
	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/database/repository"
	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/match"
)

// Learner bridges the vocabulary gap between a transaction's raw
// counterparty text and a receipt's extracted vendor name. Mappings come
// from confirmed links and persist across runs. Single writer assumed.
type Learner struct {
	mappings *repository.MappingRepo
	norm     *match.Normalizer
	cfg      config.LearnerConfig
	log      *slog.Logger
	now      func() time.Time
}

func NewLearner(mappings *repository.MappingRepo, norm *match.Normalizer, cfg config.LearnerConfig, logger *slog.Logger) *Learner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Learner{mappings: mappings, norm: norm, cfg: cfg, log: logger, now: time.Now}
}

// transferPrefixes are payment-rail prefixes stripped from raw bank
// descriptions before keying.
var transferPrefixes = []string{"振込 ", "フリコミ ", "Vデビット　", "カード利用　"}

// NormalizeRawDescription canonicalizes a bank-side counterparty string into
// a mapping key.
func (l *Learner) NormalizeRawDescription(description string) string {
	s := strings.ToUpper(strings.TrimSpace(description))
	for _, prefix := range transferPrefixes {
		upper := strings.ToUpper(prefix)
		if strings.HasPrefix(s, upper) {
			s = strings.TrimSpace(strings.TrimPrefix(s, upper))
		}
	}
	s = strings.NewReplacer("カ）", "", "(株)", "", "㈱", "", "　", " ").Replace(s)
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return strings.TrimSpace(s)
}

// LearnMapping records a confirmed raw-description -> canonical-vendor pair.
// An overwrite that disagrees with the stored vendor is logged, not
// rejected: the newest confirmation wins.
func (l *Learner) LearnMapping(ctx context.Context, rawDescription, vendorName string, confidence float64) error {
	rawKey := l.NormalizeRawDescription(rawDescription)
	vendorKey := l.norm.Name(vendorName)
	if rawKey == "" || vendorKey == "" {
		return nil
	}
	confidence = clampConfidence(confidence)

	existing, err := l.mappings.Get(ctx, rawKey)
	if err != nil {
		return fmt.Errorf("load mapping %q: %w", rawKey, err)
	}
	if existing != nil && existing.VendorKey != vendorKey {
		l.log.Warn("vendor mapping conflict",
			"raw_key", rawKey,
			"stored_vendor", existing.VendorKey,
			"new_vendor", vendorKey)
	}

	err = l.mappings.Upsert(ctx, repository.VendorMapping{
		RawKey:     rawKey,
		VendorKey:  vendorKey,
		Confidence: confidence,
		UpdatedAt:  l.now(),
	})
	if err != nil {
		return fmt.Errorf("store mapping %q: %w", rawKey, err)
	}
	l.log.Info("vendor mapping learned",
		"raw_key", rawKey, "vendor", vendorKey, "confidence", confidence)
	return nil
}

// VendorCandidates returns ranked canonical-vendor suggestions for a raw
// description. Exact key hits rank above partial (substring) hits, whose
// confidence is discounted.
func (l *Learner) VendorCandidates(ctx context.Context, rawDescription string) ([]match.VendorCandidate, error) {
	rawKey := l.NormalizeRawDescription(rawDescription)
	if rawKey == "" {
		return nil, nil
	}

	var out []match.VendorCandidate
	exact, err := l.mappings.Get(ctx, rawKey)
	if err != nil {
		return nil, fmt.Errorf("lookup mapping %q: %w", rawKey, err)
	}
	if exact != nil {
		out = append(out, match.VendorCandidate{
			Vendor:       exact.VendorKey,
			Confidence:   exact.Confidence,
			SuccessCount: exact.SuccessCount,
			MatchType:    "exact",
		})
	}

	all, err := l.mappings.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("scan mappings: %w", err)
	}
	for _, m := range all {
		if m.RawKey == rawKey {
			continue
		}
		if !strings.Contains(m.RawKey, rawKey) && !strings.Contains(rawKey, m.RawKey) {
			continue
		}
		out = append(out, match.VendorCandidate{
			Vendor:       m.VendorKey,
			Confidence:   m.Confidence * l.cfg.PartialDiscount,
			SuccessCount: m.SuccessCount,
			MatchType:    "partial",
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if (out[i].MatchType == "exact") != (out[j].MatchType == "exact") {
			return out[i].MatchType == "exact"
		}
		if out[i].Confidence != out[j].Confidence {
			return out[i].Confidence > out[j].Confidence
		}
		return out[i].SuccessCount > out[j].SuccessCount
	})
	if max := l.cfg.MaxCandidates; max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

// RawForms returns every raw description key learned for a vendor.
func (l *Learner) RawForms(ctx context.Context, vendorName string) ([]string, error) {
	return l.mappings.RawFormsFor(ctx, l.norm.Name(vendorName))
}

// LearnerStats summarizes the dictionary.
type LearnerStats struct {
	TotalMappings  int
	TotalVendors   int
	HighConfidence int // confidence >= 0.9
	MostSuccessful []repository.VendorMapping
}

// Statistics reports dictionary totals and the most-confirmed mappings.
func (l *Learner) Statistics(ctx context.Context) (LearnerStats, error) {
	all, err := l.mappings.All(ctx)
	if err != nil {
		return LearnerStats{}, fmt.Errorf("scan mappings: %w", err)
	}
	stats := LearnerStats{TotalMappings: len(all)}
	vendors := make(map[string]struct{})
	for _, m := range all {
		vendors[m.VendorKey] = struct{}{}
		if m.Confidence >= 0.9 {
			stats.HighConfidence++
		}
	}
	stats.TotalVendors = len(vendors)

	ranked := make([]repository.VendorMapping, len(all))
	copy(ranked, all)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SuccessCount > ranked[j].SuccessCount
	})
	if len(ranked) > 5 {
		ranked = ranked[:5]
	}
	stats.MostSuccessful = ranked
	return stats, nil
}

func clampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
