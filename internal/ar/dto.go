package ar

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type LineInput struct {
	Description string
	Quantity    float64
	UnitPrice   float64
	TaxRate     float64
	AccountID   int64
}

type CreateInvoiceInput struct {
	CompanyID int64
	DebtorID  int64
	IssueDate time.Time
	DueDate   time.Time
	Memo      string
	CreatedBy int64
	Lines     []LineInput
}

// Validate checks the line set and computes subtotal, tax and total.
// Line totals are rounded to cents so stored figures match what gets
// posted to the ledger.
func (in CreateInvoiceInput) Validate() (subtotal, tax float64, err error) {
	if len(in.Lines) == 0 {
		return 0, 0, fmt.Errorf("%w: invoice requires at least one line", shared.ErrValidation)
	}
	if in.DebtorID == 0 {
		return 0, 0, fmt.Errorf("%w: debtor is required", shared.ErrValidation)
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

type ReceiptInput struct {
	CompanyID int64
	InvoiceID string
	Amount    float64
	Date      time.Time
	Reference string
	CreatedBy int64
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
