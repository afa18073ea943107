package match

import (
	"fmt"
	"time"
)

const candidateDateLayout = "2006-01-02"

// NormalizeCandidates flattens the two raw upstream pools into one candidate
// shape. Candidates whose description carries an ng-word are dropped at the
// boundary so the scorer never sees transfer noise.
//
// A ledger entry with several detail lines becomes one candidate per line:
// collapsing to the first line under-represents split entries with distinct
// amounts. Each projected candidate keeps the parent entry id as TargetID.
func NormalizeCandidates(banks []BankLine, entries []LedgerEntry, ngWords []string) []Candidate {
	out := make([]Candidate, 0, len(banks)+len(entries))

	for _, b := range banks {
		if ContainsNGWord(b.Description, ngWords) {
			continue
		}
		id := fmt.Sprintf("%d", b.ID)
		out = append(out, Candidate{
			ID:          id,
			TargetID:    id,
			Kind:        KindBankLine,
			Amount:      b.Amount,
			Date:        parseCandidateDate(b.Date, b.RecordDate),
			Description: b.Description,
			TaxRate:     b.TaxRate,
		})
	}

	for _, e := range entries {
		desc := e.RefNumber
		if e.PartnerName != "" {
			desc = e.PartnerName
		}
		if ContainsNGWord(desc, ngWords) {
			continue
		}
		entryID := fmt.Sprintf("%d", e.ID)
		date := parseCandidateDate(e.IssueDate, e.Date)
		if len(e.Details) == 0 {
			out = append(out, Candidate{
				ID:          entryID,
				TargetID:    entryID,
				Kind:        KindLedgerEntry,
				Date:        date,
				Description: desc,
			})
			continue
		}
		for i, d := range e.Details {
			id := entryID
			if len(e.Details) > 1 {
				id = fmt.Sprintf("%s-%d", entryID, i+1)
			}
			out = append(out, Candidate{
				ID:          id,
				TargetID:    entryID,
				Kind:        KindLedgerEntry,
				Amount:      d.Amount,
				Date:        date,
				Description: desc,
				TaxRate:     d.TaxCode,
			})
		}
	}
	return out
}

// parseCandidateDate takes the first parsable of the provided date strings.
func parseCandidateDate(dates ...string) time.Time {
	for _, s := range dates {
		if s == "" {
			continue
		}
		if t, err := time.Parse(candidateDateLayout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
