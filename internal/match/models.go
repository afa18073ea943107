package match

import "time"

// ReceiptRecord is an immutable snapshot of one extracted purchase document,
// rebuilt fresh each run by the upstream fetcher.
type ReceiptRecord struct {
	ID         string
	FileDigest string
	Vendor     string
	Date       time.Time // zero when extraction produced no date
	Amount     int64     // minor units
	TaxRate    *float64  // e.g. 0.10
	Confidence *float64  // extraction confidence, when the source reports one
	Filename   string    // secondary signal for recovery of weak fields
	Memo       string
}

// CandidateKind tags which upstream pool a candidate came from.
type CandidateKind string

const (
	KindBankLine    CandidateKind = "bank_line"
	KindLedgerEntry CandidateKind = "ledger_entry"
)

// BankLine is the raw bank-statement shape from the upstream API.
type BankLine struct {
	ID          int64
	Amount      int64 // signed; withdrawals are negative
	Date        string
	RecordDate  string
	Description string
	TaxRate     *int // percent
}

// LedgerDetail is one amount line of a ledger entry.
type LedgerDetail struct {
	Amount  int64
	TaxCode *int
}

// LedgerEntry is the raw registered-deal shape from the upstream API.
type LedgerEntry struct {
	ID          int64
	IssueDate   string
	Date        string
	RefNumber   string
	PartnerName string
	Details     []LedgerDetail
}

// Candidate is the single normalized shape both pools flatten into.
// Multi-detail ledger entries produce one candidate per detail line, each
// keeping the parent entry id as link target.
type Candidate struct {
	ID          string // unique within the pool
	TargetID    string // id used for the external link action
	Kind        CandidateKind
	Amount      int64 // signed
	Date        time.Time // zero when the source had no usable date
	Description string
	TaxRate     *int // percent
}

// Deltas captures per-field differences for human review.
type Deltas struct {
	Amount int64  // absolute minor-unit difference
	Date   string // candidate date as reported
	Name   string // candidate description as reported
}

// MatchResult is one scored receipt/candidate pairing.
type MatchResult struct {
	Candidate    Candidate
	Score        int
	Reasons      []string
	Deltas       Deltas
	QualityScore *float64
}
