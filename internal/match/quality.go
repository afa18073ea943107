package match

import (
	"fmt"
	"regexp"
	"time"

	"github.com/DJ-RINO/freee-auto-bookkeeping/internal/config"
)

// QualityCheck is the assessment of how trustworthy a receipt's extracted
// fields are.
type QualityCheck struct {
	ReceiptID       string
	IsComplete      bool
	CompletionScore float64 // 0.0-1.0
	Issues          []string
	Suggestions     []string
}

// QualityAssessor scores extraction quality from the receipt fields alone.
// Pattern tables are injected from configuration.
type QualityAssessor struct {
	placeholder []*regexp.Regexp
	lowQuality  []*regexp.Regexp
	reliable    []*regexp.Regexp
	now         func() time.Time
}

func NewQualityAssessor(p config.PatternsConfig) (*QualityAssessor, error) {
	q := &QualityAssessor{now: time.Now}
	var err error
	if q.placeholder, err = compileAll(p.Placeholder); err != nil {
		return nil, fmt.Errorf("placeholder patterns: %w", err)
	}
	if q.lowQuality, err = compileAll(p.LowQuality); err != nil {
		return nil, fmt.Errorf("low_quality patterns: %w", err)
	}
	if q.reliable, err = compileAll(p.Reliable); err != nil {
		return nil, fmt.Errorf("reliable patterns: %w", err)
	}
	return q, nil
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(`(?i)` + p)
		if err != nil {
			return nil, fmt.Errorf("compile %q: %w", p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

// Check produces the completion score. Weighting: amount up to 0.4, vendor
// name quality up to 0.4, date plausibility up to 0.2. Missing fields
// degrade their sub-score to zero, never raise.
func (q *QualityAssessor) Check(rec ReceiptRecord) QualityCheck {
	check := QualityCheck{ReceiptID: rec.ID}

	if rec.Amount == 0 {
		check.Issues = append(check.Issues, "amount missing (extraction may be incomplete)")
		check.Suggestions = append(check.Suggestions, "verify extraction status upstream")
	} else {
		check.CompletionScore += 0.4
	}

	vendorScore := q.vendorQuality(rec.Vendor)
	check.CompletionScore += vendorScore * 0.4
	if vendorScore < 0.3 {
		check.Issues = append(check.Issues, fmt.Sprintf("low-quality vendor name: %q", rec.Vendor))
		check.Suggestions = append(check.Suggestions, "recover vendor from filename or memo")
	}

	dateScore := q.dateQuality(rec.Date)
	check.CompletionScore += dateScore * 0.2
	if dateScore < 0.5 {
		check.Issues = append(check.Issues, "implausible or missing date")
		check.Suggestions = append(check.Suggestions, "recover date from filename")
	}

	check.IsComplete = check.CompletionScore > 0.7 && rec.Amount > 0
	return check
}

// vendorQuality grades a vendor string in [0,1]. Placeholder-id patterns are
// hard zeros, anomalous runs score low, legal-entity markers score full, and
// anything else is graded by length.
func (q *QualityAssessor) vendorQuality(vendor string) float64 {
	if vendor == "" {
		return 0
	}
	for _, re := range q.placeholder {
		if re.MatchString(vendor) {
			return 0
		}
	}
	for _, re := range q.lowQuality {
		if re.MatchString(vendor) {
			return 0.2
		}
	}
	for _, re := range q.reliable {
		if re.MatchString(vendor) {
			return 1.0
		}
	}
	switch n := len([]rune(vendor)); {
	case n < 2:
		return 0.1
	case n < 5:
		return 0.4
	default:
		return 0.7
	}
}

// dateQuality grades plausibility against a recent window: within a year is
// full score, within two years slightly less, anything older is suspect.
func (q *QualityAssessor) dateQuality(date time.Time) float64 {
	if date.IsZero() {
		return 0
	}
	daysAgo := int(q.now().Sub(date).Hours() / 24)
	switch {
	case daysAgo >= 0 && daysAgo <= 365:
		return 1.0
	case daysAgo > 365 && daysAgo <= 730:
		return 0.8
	default:
		return 0.3
	}
}
