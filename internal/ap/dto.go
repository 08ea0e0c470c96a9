package ap

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type BillLineInput struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	TaxRate     float64
	AccountID   int64
}

type CreateBillInput struct {
	CompanyID  int64
	CreditorID int64
	VendorRef  string
	IssueDate  time.Time
	DueDate    time.Time
	Memo       string
	CreatedBy  int64
	Lines      []BillLineInput
}

// Validate checks the line set and computes subtotal and tax. Line
// totals are quantity times unit price, rounded to cents.
func (in CreateBillInput) Validate() (subtotal, tax float64, err error) {
	if len(in.Lines) == 0 {
		return 0, 0, fmt.Errorf("%w: bill requires at least one line", shared.ErrValidation)
	}
	if in.CreditorID == 0 {
		return 0, 0, fmt.Errorf("%w: creditor is required", shared.ErrValidation)
	}
	if in.DueDate.Before(in.IssueDate) {
		return 0, 0, fmt.Errorf("%w: due date before issue date", shared.ErrValidation)
	}
	for i, line := range in.Lines {
		if strings.TrimSpace(line.Description) == "" {
			return 0, 0, fmt.Errorf("%w: line %d missing description", shared.ErrValidation, i+1)
		}
		if line.Quantity <= 0 {
			return 0, 0, fmt.Errorf("%w: line %d quantity must be positive", shared.ErrValidation, i+1)
		}
		if line.UnitPrice < 0 {
			return 0, 0, fmt.Errorf("%w: line %d unit price cannot be negative", shared.ErrValidation, i+1)
		}
		if line.TaxRate < 0 || line.TaxRate > 1 {
			return 0, 0, fmt.Errorf("%w: line %d tax rate must be between 0 and 1", shared.ErrValidation, i+1)
		}
		lineTotal := roundCents(line.Quantity * line.UnitPrice)
		subtotal += lineTotal
		tax += roundCents(lineTotal * line.TaxRate)
	}
	return roundCents(subtotal), roundCents(tax), nil
}

type AllocationInput struct {
	BillID string
	Amount float64
}

type CreatePaymentInput struct {
	CompanyID   int64
	CreditorID  int64
	Amount      float64
	Date        time.Time
	Method      string
	Reference   string
	Memo        string
	CreatedBy   int64
	Allocations []AllocationInput
}

// ParseAllocations validates shape: positive amounts, parseable bill
// IDs, no duplicate bills, and the sum matching the payment amount to
// the cent. Coverage against each bill's open balance is rechecked
// inside the processing transaction.
func (in CreatePaymentInput) ParseAllocations() ([]Allocation, error) {
	if in.CreditorID == 0 {
		return nil, fmt.Errorf("%w: creditor is required", shared.ErrValidation)
	}
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", shared.ErrValidation)
	}
	if len(in.Allocations) == 0 {
		return nil, fmt.Errorf("%w: payment requires at least one allocation", shared.ErrValidation)
	}

	seen := make(map[uuid.UUID]bool, len(in.Allocations))
	var sum float64
	out := make([]Allocation, 0, len(in.Allocations))
	for i, alloc := range in.Allocations {
		billID, err := uuid.Parse(alloc.BillID)
		if err != nil {
			return nil, fmt.Errorf("%w: allocation %d has invalid bill id", shared.ErrValidation, i+1)
		}
		if alloc.Amount <= 0 {
			return nil, fmt.Errorf("%w: allocation %d amount must be positive", shared.ErrValidation, i+1)
		}
		if seen[billID] {
			return nil, fmt.Errorf("%w: bill %s allocated twice", shared.ErrValidation, billID)
		}
		seen[billID] = true
		amount := roundCents(alloc.Amount)
		sum += amount
		out = append(out, Allocation{BillID: billID, Amount: amount})
	}
	if math.Abs(roundCents(sum)-roundCents(in.Amount)) > amountEpsilon {
		return nil, fmt.Errorf("%w: allocations total %.2f does not match payment amount %.2f", shared.ErrValidation, sum, in.Amount)
	}
	return out, nil
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
