package journals

import (
	"time"

	"github.com/google/uuid"
)

// JournalStatus enumerates journal lifecycle values.
type JournalStatus string

const (
	JournalStatusPosted JournalStatus = "POSTED"
	JournalStatusVoid   JournalStatus = "VOID"
)

// Source modules recorded on journal entries.
const (
	SourceManual    = "MANUAL"
	SourceInvoice   = "AR_INVOICE"
	SourceReceipt   = "AR_RECEIPT"
	SourceBill      = "AP_BILL"
	SourcePayment   = "AP_PAYMENT"
	ReversalSuffix  = ":REVERSAL"
)

// JournalEntry captures posting metadata.
type JournalEntry struct {
	ID           int64         `json:"id"`
	CompanyID    int64         `json:"companyId"`
	Number       int64         `json:"number"`
	PeriodID     int64         `json:"periodId"`
	Date         time.Time     `json:"date"`
	SourceModule string        `json:"sourceModule"`
	SourceID     uuid.UUID     `json:"sourceId"`
	Memo         string        `json:"memo"`
	PostedBy     int64         `json:"postedBy"`
	PostedAt     time.Time     `json:"postedAt"`
	Status       JournalStatus `json:"status"`
	CreatedAt    time.Time     `json:"createdAt"`
	UpdatedAt    time.Time     `json:"updatedAt"`
	Lines        []JournalLine `json:"lines"`
}

// JournalLine stores debit or credit amount for an account.
type JournalLine struct {
	ID        int64     `json:"id"`
	JournalID int64     `json:"journalId"`
	AccountID int64     `json:"accountId"`
	Debit     float64   `json:"debit"`
	Credit    float64   `json:"credit"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Totals sums the entry's debit and credit columns.
func (e JournalEntry) Totals() (debit, credit float64) {
	for _, line := range e.Lines {
		debit += line.Debit
		credit += line.Credit
	}
	return debit, credit
}
