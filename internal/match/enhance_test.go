package match

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEnhanceRecoversFromFilename(t *testing.T) {
	t.Parallel()
	qa := testAssessor(t)
	e := NewEnhancer(qa)

	rec := ReceiptRecord{
		ID:       "r1",
		Vendor:   "レシート#331122062",
		Amount:   0,
		Filename: "IMG_2025-06-01_1280.jpg",
	}
	check := qa.Check(rec)
	require.False(t, check.IsComplete)

	enh := e.Enhance(rec, check)
	require.True(t, enh.HasDate())
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), enh.Date)
	require.True(t, enh.HasAmount())
	require.EqualValues(t, 1280, enh.Amount)
	require.Contains(t, enh.Synthesized, "date")
	require.Contains(t, enh.Synthesized, "amount")
}

func TestEnhanceVendorFromFilename(t *testing.T) {
	t.Parallel()
	qa := testAssessor(t)
	e := NewEnhancer(qa)

	rec := ReceiptRecord{
		ID:       "r2",
		Vendor:   "receipt_42",
		Amount:   5000,
		Filename: "2025-04-09_コーヒービバーチェ株式会社_receipt.pdf",
	}
	enh := e.Enhance(rec, qa.Check(rec))
	require.True(t, enh.HasVendor())
	require.Contains(t, enh.Vendor, "株式会社")
	require.Contains(t, enh.Synthesized, "vendor")
}

func TestEnhanceTrustedFieldsLeftAlone(t *testing.T) {
	t.Parallel()
	qa := testAssessor(t)
	e := NewEnhancer(qa)

	// good vendor and date: nothing to synthesize even with a tempting filename
	rec := ReceiptRecord{
		ID:       "r3",
		Vendor:   "ヤマト運輸株式会社",
		Amount:   3200,
		Date:     time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Filename: "2021-01-01_9999.pdf",
	}
	enh := e.Enhance(rec, qa.Check(rec))
	require.Empty(t, enh.Synthesized)
}

func TestEnhanceNoSecondarySignal(t *testing.T) {
	t.Parallel()
	qa := testAssessor(t)
	e := NewEnhancer(qa)

	rec := ReceiptRecord{ID: "r4", Vendor: "Receipt#1", Amount: 0}
	enh := e.Enhance(rec, qa.Check(rec))
	require.Empty(t, enh.Synthesized)
}

func TestExtractAmountFromFilename(t *testing.T) {
	t.Parallel()

	tests := []struct {
		filename string
		want     int64
		ok       bool
	}{
		{"receipt_1,000円.jpg", 1000, true},
		{"lunch_750yen.png", 750, true},
		{"scan_amount-4980.pdf", 4980, true},
		{"IMG_2025-06-01_1280.jpg", 1280, true},
		{"IMG_20250601.jpg", 0, false}, // date only, no amount
		{"notes.txt", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ExtractAmountFromFilename(tt.filename)
		require.Equal(t, tt.ok, ok, "filename %q", tt.filename)
		if tt.ok {
			require.Equal(t, tt.want, got, "filename %q", tt.filename)
		}
	}
}
