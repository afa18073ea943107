package match

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Enhancement is a non-mutating overlay of fields recovered from secondary
// signals. Downstream stages prefer overlay fields when present and must
// surface the Synthesized tags for auditability.
type Enhancement struct {
	Vendor      string
	Date        time.Time
	Amount      int64
	Synthesized []string // which fields were recovered: "vendor", "date", "amount"
}

// HasVendor reports whether a vendor was recovered.
func (e Enhancement) HasVendor() bool { return e.Vendor != "" }

// HasDate reports whether a date was recovered.
func (e Enhancement) HasDate() bool { return !e.Date.IsZero() }

// HasAmount reports whether an amount was recovered.
func (e Enhancement) HasAmount() bool { return e.Amount > 0 }

var (
	vendorFromFilenameRes = []*regexp.Regexp{
		regexp.MustCompile(`([^\d\s\.]+(?:株式会社|合同会社|有限会社|\(株\)|㈱))`),
		regexp.MustCompile(`(?i)([A-Za-z]+(?:Co\.?,? ?Ltd\.?|Inc\.?|Corp\.?))`),
		regexp.MustCompile(`([^\d\-\_\.]{3,})`),
	}
	dateFromFilenameRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
		regexp.MustCompile(`(\d{4})_(\d{1,2})_(\d{1,2})`),
		regexp.MustCompile(`(\d{4})(\d{2})(\d{2})`),
	}
	amountFromFilenameRes = []*regexp.Regexp{
		regexp.MustCompile(`(\d{1,3}(?:,\d{3})*)\s*[円¥]`),
		regexp.MustCompile(`(?i)(\d+)\s*yen`),
		regexp.MustCompile(`(?i)amount[\-_](\d+)`),
		regexp.MustCompile(`(\d{3,8})(?:[^yY\d]|$)`),
	}
)

// Enhancer recovers missing receipt fields from filename and memo text when
// extraction quality is too low to trust the primary fields.
type Enhancer struct {
	qa *QualityAssessor
}

func NewEnhancer(qa *QualityAssessor) *Enhancer {
	return &Enhancer{qa: qa}
}

// Enhance attempts field recovery for an incomplete record. The receipt
// itself is never mutated.
func (e *Enhancer) Enhance(rec ReceiptRecord, check QualityCheck) Enhancement {
	var enh Enhancement
	source := rec.Filename
	if source == "" {
		source = rec.Memo
	}
	if source == "" {
		return enh
	}

	if e.qa.vendorQuality(rec.Vendor) < 0.3 {
		if vendor := extractVendorFromFilename(source); vendor != "" {
			enh.Vendor = vendor
			enh.Synthesized = append(enh.Synthesized, "vendor")
		}
	}
	if rec.Date.IsZero() || e.qa.dateQuality(rec.Date) < 0.5 {
		if date, ok := extractDateFromFilename(source); ok {
			enh.Date = date
			enh.Synthesized = append(enh.Synthesized, "date")
		}
	}
	if rec.Amount == 0 {
		if amount, ok := ExtractAmountFromFilename(source); ok {
			enh.Amount = amount
			enh.Synthesized = append(enh.Synthesized, "amount")
		}
	}
	return enh
}

func extractVendorFromFilename(filename string) string {
	cleaned := strings.NewReplacer("_", " ", "-", " ").Replace(filename)
	for _, re := range vendorFromFilenameRes {
		m := re.FindStringSubmatch(cleaned)
		if m == nil {
			continue
		}
		vendor := strings.TrimSpace(m[1])
		if len([]rune(vendor)) >= 3 {
			return vendor
		}
	}
	return ""
}

// extractDateFromFilename finds an embedded date token and validates it
// against a plausible calendar range.
func extractDateFromFilename(filename string) (time.Time, bool) {
	for _, re := range dateFromFilenameRes {
		m := re.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		day, _ := strconv.Atoi(m[3])
		if year < 2020 || year > 2030 || month < 1 || month > 12 || day < 1 || day > 31 {
			continue
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
	}
	return time.Time{}, false
}

// ExtractAmountFromFilename estimates a minor-unit amount embedded in a
// filename. Date tokens are blanked first so a year is never mistaken for
// an amount. Only values in a plausible receipt range are accepted.
func ExtractAmountFromFilename(filename string) (int64, bool) {
	if filename == "" {
		return 0, false
	}
	for _, re := range dateFromFilenameRes {
		filename = re.ReplaceAllString(filename, " ")
	}
	for _, re := range amountFromFilenameRes {
		m := re.FindStringSubmatch(filename)
		if m == nil {
			continue
		}
		raw := strings.ReplaceAll(m[1], ",", "")
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			continue
		}
		if amount >= 100 && amount <= 10_000_000 {
			return amount, true
		}
	}
	return 0, false
}
