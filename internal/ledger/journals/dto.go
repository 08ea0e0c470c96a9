package journals

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
)

// PostingLineInput describes a journal line for posting request.
type PostingLineInput struct {
	AccountID int64
	Debit     float64
	Credit    float64
}

// PostingInput groups fields required to create a journal entry.
type PostingInput struct {
	CompanyID    int64
	PeriodID     int64
	Date         time.Time
	SourceModule string
	SourceID     uuid.UUID
	Memo         string
	PostedBy     int64
	Lines        []PostingLineInput
}

// Validate ensures posting input meets minimum criteria, including the
// double-entry balance at cent precision.
func (in PostingInput) Validate() error {
	if in.CompanyID == 0 {
		return errors.New("ledger: company required")
	}
	if in.PeriodID == 0 {
		return errors.New("ledger: period required")
	}
	if len(in.Lines) < 2 {
		return ledgershared.ErrTooFewLines
	}
	var debit, credit float64
	for idx, line := range in.Lines {
		if line.AccountID == 0 {
			return fmt.Errorf("ledger: line %d missing account", idx)
		}
		if line.Debit < 0 || line.Credit < 0 {
			return fmt.Errorf("ledger: line %d negative amount", idx)
		}
		if line.Debit > 0 && line.Credit > 0 {
			return fmt.Errorf("ledger: line %d cannot be both debit and credit", idx)
		}
		debit += line.Debit
		credit += line.Credit
	}
	if fmt.Sprintf("%.2f", debit) != fmt.Sprintf("%.2f", credit) {
		return ledgershared.ErrUnbalanced
	}
	if in.SourceModule == "" {
		return errors.New("ledger: source module required")
	}
	if in.SourceID == uuid.Nil {
		return errors.New("ledger: source id required")
	}
	return nil
}

// ReverseLines mirrors a set of lines, swapping debits and credits.
func ReverseLines(lines []JournalLine) []PostingLineInput {
	out := make([]PostingLineInput, 0, len(lines))
	for _, line := range lines {
		out = append(out, PostingLineInput{
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
		})
	}
	return out
}

// VoidInput wraps parameters for voiding.
type VoidInput struct {
	CompanyID int64
	EntryID   int64
	ActorID   int64
	Reason    string
}

// ReverseInput wraps parameters for reversal.
type ReverseInput struct {
	CompanyID  int64
	EntryID    int64
	ActorID    int64
	Memo       string
	TargetDate *time.Time
}
