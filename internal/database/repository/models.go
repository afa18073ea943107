package repository

import "time"

// LinkRecord represents a committed link, keyed by receipt hash. It is the
// idempotency anchor: a hash maps to at most one record, ever.
type LinkRecord struct {
	ReceiptHash string
	TargetType  string
	TargetID    string
	ReceiptID   string
	Score       int
	FileDigest  string
	LinkedAt    time.Time
}

// VendorMapping represents one learned raw-description -> canonical-vendor row.
type VendorMapping struct {
	RawKey       string
	VendorKey    string
	Confidence   float64
	SuccessCount int
	UpdatedAt    time.Time
}

// PendingAssist represents one queued human-confirmation request.
type PendingAssist struct {
	InteractionID string
	ReceiptID     string
	PayloadJSON   string
	ExpireAt      time.Time
}

// AuditEvent represents one audit row.
type AuditEvent struct {
	Timestamp time.Time
	Level     string
	Actor     string
	Action    string
	TargetIDs []string
	Score     int
	Result    string
	Error     *string
}
