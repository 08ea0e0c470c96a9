// Package posting translates business documents into balanced journal
// line sets. It is pure: database access stops at the Defaults resolver,
// so the builders can be unit tested without infrastructure.
package posting

import (
	"context"
	"fmt"

	"github.com/ledgerline/ledgerline/internal/ledger/journals"
	"github.com/ledgerline/ledgerline/internal/ledger/mappings"
	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
)

// Defaults holds the resolved control and default accounts a company
// posts against. All IDs refer to rows in the chart of accounts.
type Defaults struct {
	ARControl     int64
	APControl     int64
	Bank          int64
	TaxPayable    int64
	TaxReceivable int64
	Revenue       int64
	Expense       int64
}

// Resolver loads Defaults from the account mapping table.
type Resolver struct {
	mappings mappings.Repository
}

func NewResolver(repo mappings.Repository) *Resolver {
	return &Resolver{mappings: repo}
}

func (r *Resolver) Resolve(ctx context.Context, companyID int64) (Defaults, error) {
	var (
		d   Defaults
		err error
	)
	for _, m := range []struct {
		key  mappings.MappingKey
		dest *int64
	}{
		{mappings.KeyARControl, &d.ARControl},
		{mappings.KeyAPControl, &d.APControl},
		{mappings.KeyBank, &d.Bank},
		{mappings.KeyTaxPayable, &d.TaxPayable},
		{mappings.KeyTaxReceivable, &d.TaxReceivable},
		{mappings.KeyDefaultRevenue, &d.Revenue},
		{mappings.KeyDefaultExpense, &d.Expense},
	} {
		mapping, mErr := r.mappings.Get(ctx, companyID, m.key)
		if mErr != nil {
			err = mErr
			break
		}
		*m.dest = mapping.AccountID
	}
	if err != nil {
		return Defaults{}, err
	}
	return d, nil
}

// DocumentLine is one revenue or expense line of a source document.
// AccountID may be zero, in which case the company default applies.
type DocumentLine struct {
	AccountID int64
	Amount    float64
}

// BuildInvoiceLines produces the entry for sending a sales invoice:
// debit AR control for the gross total, credit revenue per line,
// credit tax payable for the tax portion.
func BuildInvoiceLines(d Defaults, lines []DocumentLine, tax float64) ([]journals.PostingLineInput, error) {
	subtotal, out, err := creditPerLine(d.Revenue, lines)
	if err != nil {
		return nil, err
	}
	if tax < 0 {
		return nil, fmt.Errorf("%w: negative tax", ledgershared.ErrUnbalanced)
	}
	if tax > 0 {
		out = append(out, journals.PostingLineInput{AccountID: d.TaxPayable, Credit: tax})
	}
	gross := subtotal + tax
	return append([]journals.PostingLineInput{{AccountID: d.ARControl, Debit: gross}}, out...), nil
}

// BuildReceiptLines produces the entry for money received against an
// invoice: debit bank, credit AR control.
func BuildReceiptLines(d Defaults, amount float64) ([]journals.PostingLineInput, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: receipt amount must be positive", ledgershared.ErrUnbalanced)
	}
	return []journals.PostingLineInput{
		{AccountID: d.Bank, Debit: amount},
		{AccountID: d.ARControl, Credit: amount},
	}, nil
}

// BuildBillLines produces the entry for posting a vendor bill: debit
// expense per line, debit tax receivable, credit AP control for the
// gross total.
func BuildBillLines(d Defaults, lines []DocumentLine, tax float64) ([]journals.PostingLineInput, error) {
	subtotal, out, err := debitPerLine(d.Expense, lines)
	if err != nil {
		return nil, err
	}
	if tax < 0 {
		return nil, fmt.Errorf("%w: negative tax", ledgershared.ErrUnbalanced)
	}
	if tax > 0 {
		out = append(out, journals.PostingLineInput{AccountID: d.TaxReceivable, Debit: tax})
	}
	gross := subtotal + tax
	return append(out, journals.PostingLineInput{AccountID: d.APControl, Credit: gross}), nil
}

// BuildPaymentLines produces the entry for a processed vendor payment:
// debit AP control, credit bank.
func BuildPaymentLines(d Defaults, amount float64) ([]journals.PostingLineInput, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be positive", ledgershared.ErrUnbalanced)
	}
	return []journals.PostingLineInput{
		{AccountID: d.APControl, Debit: amount},
		{AccountID: d.Bank, Credit: amount},
	}, nil
}

func creditPerLine(defaultAccount int64, lines []DocumentLine) (float64, []journals.PostingLineInput, error) {
	var total float64
	out := make([]journals.PostingLineInput, 0, len(lines))
	for _, line := range lines {
		if line.Amount < 0 {
			return 0, nil, fmt.Errorf("%w: negative line amount", ledgershared.ErrUnbalanced)
		}
		account := line.AccountID
		if account == 0 {
			account = defaultAccount
		}
		out = append(out, journals.PostingLineInput{AccountID: account, Credit: line.Amount})
		total += line.Amount
	}
	return total, out, nil
}

func debitPerLine(defaultAccount int64, lines []DocumentLine) (float64, []journals.PostingLineInput, error) {
	var total float64
	out := make([]journals.PostingLineInput, 0, len(lines))
	for _, line := range lines {
		if line.Amount < 0 {
			return 0, nil, fmt.Errorf("%w: negative line amount", ledgershared.ErrUnbalanced)
		}
		account := line.AccountID
		if account == 0 {
			account = defaultAccount
		}
		out = append(out, journals.PostingLineInput{AccountID: account, Debit: line.Amount})
		total += line.Amount
	}
	return total, out, nil
}
