package ar

import (
	"time"

	"github.com/google/uuid"
)

// InvoiceStatus enumerates the sales invoice lifecycle.
type InvoiceStatus string

const (
	InvoiceDraft         InvoiceStatus = "DRAFT"
	InvoiceSent          InvoiceStatus = "SENT"
	InvoicePartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoicePaid          InvoiceStatus = "PAID"
	InvoiceCancelled     InvoiceStatus = "CANCELLED"
)

const amountEpsilon = 0.01

// Invoice is a sales invoice raised against a debtor. Overdue is never
// stored: it is derived from the due date and open balance at read time.
type Invoice struct {
	ID        uuid.UUID     `json:"id"`
	CompanyID int64         `json:"companyId"`
	Number    string        `json:"number"`
	DebtorID  int64         `json:"debtorId"`
	Status    InvoiceStatus `json:"status"`
	IssueDate time.Time     `json:"issueDate"`
	DueDate   time.Time     `json:"dueDate"`
	Subtotal  float64       `json:"subtotal"`
	TaxAmount float64       `json:"taxAmount"`
	Total     float64       `json:"total"`
	AmountDue float64       `json:"amountDue"`
	Memo      string        `json:"memo,omitempty"`
	// JournalEntryID references the ledger entry once the invoice is sent.
	JournalEntryID *int64        `json:"journalEntryId,omitempty"`
	Overdue        bool          `json:"overdue"`
	CreatedBy      int64         `json:"createdBy"`
	CreatedAt      time.Time     `json:"createdAt"`
	UpdatedAt      time.Time     `json:"updatedAt"`
	Lines          []InvoiceLine `json:"lines,omitempty"`
}

type InvoiceLine struct {
	ID          int64     `json:"id"`
	InvoiceID   uuid.UUID `json:"invoiceId"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	TaxRate     float64   `json:"taxRate"`
	AccountID   int64     `json:"accountId,omitempty"`
	LineTotal   float64   `json:"lineTotal"`
}

// IsOverdue reports whether the invoice carries an open balance past
// its due date. Computed, never persisted.
func (i Invoice) IsOverdue(now time.Time) bool {
	if i.Status != InvoiceSent && i.Status != InvoicePartiallyPaid {
		return false
	}
	return i.AmountDue > amountEpsilon && now.After(i.DueDate)
}

// Receipt records money received against an invoice.
type Receipt struct {
	ID        uuid.UUID `json:"id"`
	CompanyID int64     `json:"companyId"`
	InvoiceID uuid.UUID `json:"invoiceId"`
	Amount    float64   `json:"amount"`
	Date      time.Time `json:"date"`
	Reference string    `json:"reference,omitempty"`
	CreatedBy int64     `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}
