package ap

import (
	"time"

	"github.com/google/uuid"
)

// BillStatus enumerates the vendor bill lifecycle. Posting to the
// ledger happens at POSTED, not at approval.
type BillStatus string

const (
	BillDraft           BillStatus = "DRAFT"
	BillPendingApproval BillStatus = "PENDING_APPROVAL"
	BillApproved        BillStatus = "APPROVED"
	BillRejected        BillStatus = "REJECTED"
	BillPosted          BillStatus = "POSTED"
	BillPartiallyPaid   BillStatus = "PARTIALLY_PAID"
	BillPaid            BillStatus = "PAID"
	BillCancelled       BillStatus = "CANCELLED"
)

// PaymentStatus enumerates the vendor payment lifecycle.
type PaymentStatus string

const (
	PaymentDraft           PaymentStatus = "DRAFT"
	PaymentPendingApproval PaymentStatus = "PENDING_APPROVAL"
	PaymentApproved        PaymentStatus = "APPROVED"
	PaymentRejected        PaymentStatus = "REJECTED"
	PaymentProcessing      PaymentStatus = "PROCESSING"
	PaymentProcessed       PaymentStatus = "PROCESSED"
	PaymentCleared         PaymentStatus = "CLEARED"
	PaymentVoid            PaymentStatus = "VOID"
)

const amountEpsilon = 0.01

// Bill is a vendor bill owed to a creditor. AmountDue always equals
// Total minus AmountPaid, floored at zero.
type Bill struct {
	ID         uuid.UUID  `json:"id"`
	CompanyID  int64      `json:"companyId"`
	Number     string     `json:"number"`
	CreditorID int64      `json:"creditorId"`
	VendorRef  string     `json:"vendorRef,omitempty"`
	Status     BillStatus `json:"status"`
	IssueDate  time.Time  `json:"issueDate"`
	DueDate    time.Time  `json:"dueDate"`
	Subtotal   float64    `json:"subtotal"`
	TaxAmount  float64    `json:"taxAmount"`
	Total      float64    `json:"total"`
	AmountPaid float64    `json:"amountPaid"`
	AmountDue  float64    `json:"amountDue"`
	Memo       string     `json:"memo,omitempty"`
	// JournalEntryID references the ledger entry once the bill is posted.
	JournalEntryID *int64     `json:"journalEntryId,omitempty"`
	CreatedBy      int64      `json:"createdBy"`
	CreatedAt      time.Time  `json:"createdAt"`
	UpdatedAt      time.Time  `json:"updatedAt"`
	Lines          []BillLine `json:"lines,omitempty"`
}

type BillLine struct {
	ID          int64     `json:"id"`
	BillID      uuid.UUID `json:"billId"`
	Description string    `json:"description"`
	Quantity    float64   `json:"quantity"`
	UnitPrice   float64   `json:"unitPrice"`
	TaxRate     float64   `json:"taxRate"`
	AccountID   int64     `json:"accountId,omitempty"`
	LineTotal   float64   `json:"lineTotal"`
}

// Payment pays one or more posted bills of a single creditor. The
// allocation set must cover the payment amount exactly.
type Payment struct {
	ID         uuid.UUID     `json:"id"`
	CompanyID  int64         `json:"companyId"`
	Number     string        `json:"number"`
	CreditorID int64         `json:"creditorId"`
	Status     PaymentStatus `json:"status"`
	Amount     float64       `json:"amount"`
	Date       time.Time     `json:"date"`
	Method     string        `json:"method,omitempty"`
	Reference  string        `json:"reference,omitempty"`
	Memo       string        `json:"memo,omitempty"`
	// JournalEntryID references the ledger entry once the payment is processed.
	JournalEntryID *int64       `json:"journalEntryId,omitempty"`
	CreatedBy      int64        `json:"createdBy"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
	Allocations    []Allocation `json:"allocations,omitempty"`
}

type Allocation struct {
	ID        int64     `json:"id"`
	PaymentID uuid.UUID `json:"paymentId"`
	BillID    uuid.UUID `json:"billId"`
	Amount    float64   `json:"amount"`
}
