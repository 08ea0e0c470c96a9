package ar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/ledger/journals"
	"github.com/ledgerline/ledgerline/internal/ledger/posting"
	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records invoice actions in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DefaultsPort resolves the company's posting accounts.
type DefaultsPort interface {
	Resolve(ctx context.Context, companyID int64) (posting.Defaults, error)
}

type Service struct {
	repo     Repository
	defaults DefaultsPort
	audit    AuditPort
	logger   *slog.Logger
	now      func() time.Time
}

func NewService(repo Repository, defaults DefaultsPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, defaults: defaults, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, exposed for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// Create stores a draft invoice. Nothing hits the ledger or the debtor
// balance until the invoice is sent.
func (s *Service) Create(ctx context.Context, input CreateInvoiceInput) (Invoice, error) {
	subtotal, tax, err := input.Validate()
	if err != nil {
		return Invoice{}, err
	}

	inv := Invoice{
		ID:        uuid.New(),
		CompanyID: input.CompanyID,
		DebtorID:  input.DebtorID,
		Status:    InvoiceDraft,
		IssueDate: input.IssueDate,
		DueDate:   input.DueDate,
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     roundCents(subtotal + tax),
		Memo:      input.Memo,
		CreatedBy: input.CreatedBy,
	}
	inv.AmountDue = inv.Total
	for _, line := range input.Lines {
		inv.Lines = append(inv.Lines, InvoiceLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
			AccountID:   line.AccountID,
			LineTotal:   roundCents(line.Quantity * line.UnitPrice),
		})
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		debtor, err := tx.GetPartyForUpdate(ctx, input.CompanyID, input.DebtorID)
		if err != nil {
			return err
		}
		if debtor.Type != party.TypeDebtor {
			return fmt.Errorf("%w: party %s is not a debtor", shared.ErrValidation, debtor.Code)
		}
		if err := party.EnsureTradable(debtor); err != nil {
			return err
		}
		return tx.InsertInvoice(ctx, &inv)
	})
	if err != nil {
		return Invoice{}, err
	}
	s.logger.InfoContext(ctx, "invoice created", "company_id", inv.CompanyID, "invoice", inv.Number, "total", inv.Total)
	return inv, nil
}

func (s *Service) Get(ctx context.Context, companyID int64, id uuid.UUID) (Invoice, error) {
	inv, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Invoice{}, err
	}
	inv.Overdue = inv.IsOverdue(s.now())
	return inv, nil
}

func (s *Service) List(ctx context.Context, companyID int64, status InvoiceStatus) ([]Invoice, error) {
	list, err := s.repo.List(ctx, companyID, status)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range list {
		list[i].Overdue = list[i].IsOverdue(now)
	}
	return list, nil
}

func (s *Service) ListReceipts(ctx context.Context, companyID int64, invoiceID uuid.UUID) ([]Receipt, error) {
	return s.repo.ListReceipts(ctx, companyID, invoiceID)
}

// Send moves a draft invoice to SENT: in one transaction it posts the
// revenue entry, raises the debtor balance and flips the status.
func (s *Service) Send(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID) (Invoice, error) {
	defaults, err := s.defaults.Resolve(ctx, companyID)
	if err != nil {
		return Invoice{}, err
	}

	var sent Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceDraft {
			return fmt.Errorf("%w: cannot send invoice in status %s", shared.ErrInvalidStatus, inv.Status)
		}
		if inv.JournalEntryID != nil {
			return fmt.Errorf("%w: invoice %s already posted", ledgershared.ErrSourceAlreadyLinked, inv.Number)
		}
		debtor, err := tx.GetPartyForUpdate(ctx, companyID, inv.DebtorID)
		if err != nil {
			return err
		}
		if err := party.EnsureTradable(debtor); err != nil {
			return err
		}
		period, err := tx.ResolvePostingPeriod(ctx, companyID, inv.IssueDate)
		if err != nil {
			return err
		}
		if err := period.EnsurePostable(); err != nil {
			return err
		}

		lines, err := posting.BuildInvoiceLines(defaults, documentLines(inv.Lines), inv.TaxAmount)
		if err != nil {
			return err
		}
		input := journals.PostingInput{
			CompanyID:    companyID,
			PeriodID:     period.ID,
			Date:         inv.IssueDate,
			SourceModule: journals.SourceInvoice,
			SourceID:     inv.ID,
			Memo:         "Invoice " + inv.Number,
			PostedBy:     actor.ID,
			Lines:        lines,
		}
		if err := input.Validate(); err != nil {
			return err
		}
		entry, err := tx.PostEntry(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.AdjustPartyBalance(ctx, companyID, inv.DebtorID, inv.Total); err != nil {
			return err
		}

		inv.Status = InvoiceSent
		inv.JournalEntryID = &entry.ID
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		sent = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.recordAudit(ctx, actor, companyID, "invoice.send", sent.ID.String(), map[string]any{"number": sent.Number, "total": sent.Total})
	sent.Overdue = sent.IsOverdue(s.now())
	return sent, nil
}

// RecordReceipt applies money received to an invoice. The receipt may
// not exceed the open balance; overpayment is rejected, not clamped.
func (s *Service) RecordReceipt(ctx context.Context, actor shared.Actor, input ReceiptInput) (Invoice, error) {
	invoiceID, err := uuid.Parse(input.InvoiceID)
	if err != nil {
		return Invoice{}, fmt.Errorf("%w: invalid invoice id", shared.ErrValidation)
	}
	if input.Amount <= 0 {
		return Invoice{}, fmt.Errorf("%w: receipt amount must be positive", shared.ErrValidation)
	}
	if input.Date.IsZero() {
		input.Date = s.now()
	}

	defaults, err := s.defaults.Resolve(ctx, input.CompanyID)
	if err != nil {
		return Invoice{}, err
	}

	receipt := Receipt{
		ID:        uuid.New(),
		CompanyID: input.CompanyID,
		InvoiceID: invoiceID,
		Amount:    roundCents(input.Amount),
		Date:      input.Date,
		Reference: input.Reference,
		CreatedBy: input.CreatedBy,
	}

	var updated Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, input.CompanyID, invoiceID)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceSent && inv.Status != InvoicePartiallyPaid {
			return fmt.Errorf("%w: cannot receive against invoice in status %s", shared.ErrInvalidStatus, inv.Status)
		}
		if receipt.Amount > inv.AmountDue+amountEpsilon {
			return fmt.Errorf("%w: receipt %.2f exceeds amount due %.2f", shared.ErrValidation, receipt.Amount, inv.AmountDue)
		}
		period, err := tx.ResolvePostingPeriod(ctx, input.CompanyID, receipt.Date)
		if err != nil {
			return err
		}
		if err := period.EnsurePostable(); err != nil {
			return err
		}

		lines, err := posting.BuildReceiptLines(defaults, receipt.Amount)
		if err != nil {
			return err
		}
		entry := journals.PostingInput{
			CompanyID:    input.CompanyID,
			PeriodID:     period.ID,
			Date:         receipt.Date,
			SourceModule: journals.SourceReceipt,
			SourceID:     receipt.ID,
			Memo:         "Receipt for " + inv.Number,
			PostedBy:     actor.ID,
			Lines:        lines,
		}
		if err := entry.Validate(); err != nil {
			return err
		}
		if _, err := tx.PostEntry(ctx, entry); err != nil {
			return err
		}
		if err := tx.InsertReceipt(ctx, receipt); err != nil {
			return err
		}
		if err := tx.AdjustPartyBalance(ctx, input.CompanyID, inv.DebtorID, -receipt.Amount); err != nil {
			return err
		}

		inv.AmountDue = roundCents(inv.AmountDue - receipt.Amount)
		if inv.AmountDue <= amountEpsilon {
			inv.AmountDue = 0
			inv.Status = InvoicePaid
		} else {
			inv.Status = InvoicePartiallyPaid
		}
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		updated = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.recordAudit(ctx, actor, input.CompanyID, "invoice.receipt", updated.ID.String(), map[string]any{"amount": receipt.Amount, "status": updated.Status})
	updated.Overdue = updated.IsOverdue(s.now())
	return updated, nil
}

// Cancel voids an invoice. Drafts are cancelled in place; a sent or
// partially paid invoice additionally reverses its ledger footprint and
// restores the debtor balance, which needs an approver. Receipts already
// applied are refunded inside the same reversal entry. Paid and
// cancelled invoices are terminal.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, reason string) (Invoice, error) {
	defaults, err := s.defaults.Resolve(ctx, companyID)
	if err != nil {
		return Invoice{}, err
	}

	var cancelled Invoice
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		inv, err := tx.GetInvoiceForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		switch inv.Status {
		case InvoiceDraft:
			// nothing posted, plain status change
		case InvoiceSent, InvoicePartiallyPaid:
			if err := shared.RequireApprover(actor); err != nil {
				return err
			}
			period, err := tx.ResolvePostingPeriod(ctx, companyID, s.now())
			if err != nil {
				return err
			}
			if err := period.EnsurePostable(); err != nil {
				return err
			}
			lines, err := posting.BuildInvoiceLines(defaults, documentLines(inv.Lines), inv.TaxAmount)
			if err != nil {
				return err
			}
			reversalLines := swapSides(lines)
			if paid := roundCents(inv.Total - inv.AmountDue); paid > amountEpsilon {
				// Money already received goes back out: the receipt
				// entries are mirrored into the same reversal so the
				// entry stays balanced and AR nets to zero.
				receiptLines, err := posting.BuildReceiptLines(defaults, paid)
				if err != nil {
					return err
				}
				reversalLines = append(reversalLines, swapSides(receiptLines)...)
			}
			reversal := journals.PostingInput{
				CompanyID:    companyID,
				PeriodID:     period.ID,
				Date:         s.now(),
				SourceModule: journals.SourceInvoice + journals.ReversalSuffix,
				SourceID:     inv.ID,
				Memo:         "Cancel invoice " + inv.Number,
				PostedBy:     actor.ID,
				Lines:        reversalLines,
			}
			if err := reversal.Validate(); err != nil {
				return err
			}
			if _, err := tx.PostEntry(ctx, reversal); err != nil {
				return err
			}
			if err := tx.AdjustPartyBalance(ctx, companyID, inv.DebtorID, -inv.AmountDue); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: cannot cancel invoice in status %s", shared.ErrInvalidStatus, inv.Status)
		}

		inv.Status = InvoiceCancelled
		inv.AmountDue = 0
		if err := tx.UpdateInvoice(ctx, inv); err != nil {
			return err
		}
		cancelled = inv
		return nil
	})
	if err != nil {
		return Invoice{}, err
	}

	s.recordAudit(ctx, actor, companyID, "invoice.cancel", cancelled.ID.String(), map[string]any{"reason": reason})
	return cancelled, nil
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, companyID int64, action, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actor.ID,
		Action:    action,
		Entity:    "invoice",
		EntityID:  entityID,
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", action, "err", err)
	}
}

func documentLines(lines []InvoiceLine) []posting.DocumentLine {
	out := make([]posting.DocumentLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, posting.DocumentLine{AccountID: l.AccountID, Amount: l.LineTotal})
	}
	return out
}

func swapSides(lines []journals.PostingLineInput) []journals.PostingLineInput {
	out := make([]journals.PostingLineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, journals.PostingLineInput{AccountID: l.AccountID, Debit: l.Credit, Credit: l.Debit})
	}
	return out
}
