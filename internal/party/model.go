package party

import "time"

// PartyType distinguishes who owes whom.
type PartyType string

const (
	TypeDebtor   PartyType = "DEBTOR"   // customer, owes us
	TypeCreditor PartyType = "CREDITOR" // vendor, we owe them
)

func (t PartyType) Valid() bool {
	return t == TypeDebtor || t == TypeCreditor
}

type PartyStatus string

const (
	StatusActive   PartyStatus = "ACTIVE"
	StatusInactive PartyStatus = "INACTIVE"
	StatusBlocked  PartyStatus = "BLOCKED"
)

func (s PartyStatus) Valid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusBlocked:
		return true
	}
	return false
}

// Party is a debtor or creditor ledger. CurrentBalance is the running
// outstanding amount: document totals raise it, receipts and payment
// allocations lower it.
type Party struct {
	ID             int64       `json:"id"`
	CompanyID      int64       `json:"companyId"`
	Code           string      `json:"code"`
	Name           string      `json:"name"`
	Type           PartyType   `json:"type"`
	Status         PartyStatus `json:"status"`
	Email          string      `json:"email,omitempty"`
	PaymentTerms   int         `json:"paymentTermsDays"`
	CurrentBalance float64     `json:"currentBalance"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

type CreateInput struct {
	CompanyID    int64
	Code         string
	Name         string
	Type         PartyType
	Email        string
	PaymentTerms int
}

// OpenItem is one unpaid document carried by a party, used to build
// aging reports from actual due dates.
type OpenItem struct {
	DocumentID string    `json:"documentId"`
	DocNumber  string    `json:"docNumber"`
	DueDate    time.Time `json:"dueDate"`
	AmountDue  float64   `json:"amountDue"`
}

// Aging buckets outstanding amounts by days past due as of a given date.
type Aging struct {
	PartyID    int64     `json:"partyId"`
	AsOf       time.Time `json:"asOf"`
	Current    float64   `json:"current"`
	Days1To30  float64   `json:"days1to30"`
	Days31To60 float64   `json:"days31to60"`
	Days61To90 float64   `json:"days61to90"`
	Over90     float64   `json:"over90"`
	Total      float64   `json:"total"`
}

// BucketItems distributes open items into aging buckets. Items not yet
// due land in Current; everything else by whole days past due.
func BucketItems(partyID int64, asOf time.Time, items []OpenItem) Aging {
	a := Aging{PartyID: partyID, AsOf: asOf}
	for _, item := range items {
		days := int(asOf.Sub(item.DueDate).Hours() / 24)
		switch {
		case days <= 0:
			a.Current += item.AmountDue
		case days <= 30:
			a.Days1To30 += item.AmountDue
		case days <= 60:
			a.Days31To60 += item.AmountDue
		case days <= 90:
			a.Days61To90 += item.AmountDue
		default:
			a.Over90 += item.AmountDue
		}
		a.Total += item.AmountDue
	}
	return a
}
