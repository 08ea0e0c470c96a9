package ap

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/ledger/journals"
	"github.com/ledgerline/ledgerline/internal/ledger/posting"
	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// CreatePayment stores a draft payment with its allocations. Every
// allocation is checked against the target bill's open balance here and
// again at processing time; a payment that does not fit is rejected
// outright, never clamped.
func (s *Service) CreatePayment(ctx context.Context, input CreatePaymentInput) (Payment, error) {
	allocations, err := input.ParseAllocations()
	if err != nil {
		return Payment{}, err
	}
	if input.Date.IsZero() {
		input.Date = s.now()
	}

	payment := Payment{
		ID:          uuid.New(),
		CompanyID:   input.CompanyID,
		CreditorID:  input.CreditorID,
		Status:      PaymentDraft,
		Amount:      roundCents(input.Amount),
		Date:        input.Date,
		Method:      input.Method,
		Reference:   input.Reference,
		Memo:        input.Memo,
		CreatedBy:   input.CreatedBy,
		Allocations: allocations,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		creditor, err := tx.GetPartyForUpdate(ctx, input.CompanyID, input.CreditorID)
		if err != nil {
			return err
		}
		if creditor.Type != party.TypeCreditor {
			return fmt.Errorf("%w: party %s is not a creditor", shared.ErrValidation, creditor.Code)
		}
		if err := party.EnsureTradable(creditor); err != nil {
			return err
		}
		if err := s.checkAllocations(ctx, tx, payment); err != nil {
			return err
		}
		return tx.InsertPayment(ctx, &payment)
	})
	if err != nil {
		return Payment{}, err
	}
	s.logger.InfoContext(ctx, "payment created", "company_id", payment.CompanyID, "payment", payment.Number, "amount", payment.Amount)
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, companyID int64, id uuid.UUID) (Payment, error) {
	return s.repo.GetPayment(ctx, companyID, id)
}

func (s *Service) ListPayments(ctx context.Context, companyID int64, status PaymentStatus) ([]Payment, error) {
	return s.repo.ListPayments(ctx, companyID, status)
}

// SubmitPayment moves a draft into the approval queue.
func (s *Service) SubmitPayment(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (Payment, error) {
	payment, err := s.transitionPayment(ctx, companyID, id, PaymentDraft, PaymentPendingApproval)
	if err != nil {
		return Payment{}, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{CompanyID: companyID, Module: approvalModulePayment, RefID: id, ActorID: actor.ID, Action: shared.ApprovalSubmit, Note: note})
	return payment, nil
}

func (s *Service) ApprovePayment(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (Payment, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Payment{}, err
	}
	payment, err := s.transitionPayment(ctx, companyID, id, PaymentPendingApproval, PaymentApproved)
	if err != nil {
		return Payment{}, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{CompanyID: companyID, Module: approvalModulePayment, RefID: id, ActorID: actor.ID, Action: shared.ApprovalApprove, Note: note})
	return payment, nil
}

func (s *Service) RejectPayment(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (Payment, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Payment{}, err
	}
	payment, err := s.transitionPayment(ctx, companyID, id, PaymentPendingApproval, PaymentRejected)
	if err != nil {
		return Payment{}, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{CompanyID: companyID, Module: approvalModulePayment, RefID: id, ActorID: actor.ID, Action: shared.ApprovalReject, Note: note})
	return payment, nil
}

// ProcessPayment executes an approved payment: in one transaction it
// re-validates every allocation against the current open balances,
// posts the bank entry, lowers the creditor balance and settles the
// allocated bills. Any failure rolls the whole payment back to
// APPROVED state.
func (s *Service) ProcessPayment(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID) (Payment, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Payment{}, err
	}
	defaults, err := s.defaults.Resolve(ctx, companyID)
	if err != nil {
		return Payment{}, err
	}

	var processed Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if payment.Status != PaymentApproved {
			return fmt.Errorf("%w: cannot process payment in status %s", shared.ErrInvalidStatus, payment.Status)
		}
		if payment.JournalEntryID != nil {
			return fmt.Errorf("%w: payment %s already posted", ledgershared.ErrSourceAlreadyLinked, payment.Number)
		}
		payment.Status = PaymentProcessing
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}

		if err := s.checkAllocations(ctx, tx, payment); err != nil {
			return err
		}
		period, err := tx.ResolvePostingPeriod(ctx, companyID, payment.Date)
		if err != nil {
			return err
		}
		if err := period.EnsurePostable(); err != nil {
			return err
		}

		lines, err := posting.BuildPaymentLines(defaults, payment.Amount)
		if err != nil {
			return err
		}
		input := journals.PostingInput{
			CompanyID:    companyID,
			PeriodID:     period.ID,
			Date:         payment.Date,
			SourceModule: journals.SourcePayment,
			SourceID:     payment.ID,
			Memo:         "Payment " + payment.Number,
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
		payment.JournalEntryID = &entry.ID

		for _, alloc := range payment.Allocations {
			bill, err := tx.GetBillForUpdate(ctx, companyID, alloc.BillID)
			if err != nil {
				return err
			}
			bill.AmountPaid = roundCents(bill.AmountPaid + alloc.Amount)
			bill.AmountDue = roundCents(bill.Total - bill.AmountPaid)
			if bill.AmountDue <= amountEpsilon {
				bill.AmountPaid = bill.Total
				bill.AmountDue = 0
				bill.Status = BillPaid
			} else {
				bill.Status = BillPartiallyPaid
			}
			if err := tx.UpdateBill(ctx, bill); err != nil {
				return err
			}
		}
		if err := tx.AdjustPartyBalance(ctx, companyID, payment.CreditorID, -payment.Amount); err != nil {
			return err
		}

		payment.Status = PaymentProcessed
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		processed = payment
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.recordAudit(ctx, actor, companyID, "payment.process", "payment", processed.ID.String(), map[string]any{"number": processed.Number, "amount": processed.Amount})
	return processed, nil
}

// ClearPayment confirms the payment on the bank statement.
func (s *Service) ClearPayment(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID) (Payment, error) {
	payment, err := s.transitionPayment(ctx, companyID, id, PaymentProcessed, PaymentCleared)
	if err != nil {
		return Payment{}, err
	}
	s.recordAudit(ctx, actor, companyID, "payment.clear", "payment", payment.ID.String(), nil)
	return payment, nil
}

// VoidPayment undoes a processed or cleared payment: it reverses the
// bank entry, reopens the allocated bills and restores the creditor
// balance, all in one transaction.
func (s *Service) VoidPayment(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, reason string) (Payment, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Payment{}, err
	}
	defaults, err := s.defaults.Resolve(ctx, companyID)
	if err != nil {
		return Payment{}, err
	}

	var voided Payment
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if payment.Status != PaymentProcessed && payment.Status != PaymentCleared {
			return fmt.Errorf("%w: cannot void payment in status %s", shared.ErrInvalidStatus, payment.Status)
		}
		period, err := tx.ResolvePostingPeriod(ctx, companyID, s.now())
		if err != nil {
			return err
		}
		if err := period.EnsurePostable(); err != nil {
			return err
		}

		lines, err := posting.BuildPaymentLines(defaults, payment.Amount)
		if err != nil {
			return err
		}
		reversal := journals.PostingInput{
			CompanyID:    companyID,
			PeriodID:     period.ID,
			Date:         s.now(),
			SourceModule: journals.SourcePayment + journals.ReversalSuffix,
			SourceID:     payment.ID,
			Memo:         "Void payment " + payment.Number,
			PostedBy:     actor.ID,
			Lines:        swapSides(lines),
		}
		if err := reversal.Validate(); err != nil {
			return err
		}
		if _, err := tx.PostEntry(ctx, reversal); err != nil {
			return err
		}

		for _, alloc := range payment.Allocations {
			bill, err := tx.GetBillForUpdate(ctx, companyID, alloc.BillID)
			if err != nil {
				return err
			}
			bill.AmountPaid = roundCents(bill.AmountPaid - alloc.Amount)
			bill.AmountDue = roundCents(bill.Total - bill.AmountPaid)
			if bill.AmountDue >= bill.Total-amountEpsilon {
				bill.AmountPaid = 0
				bill.AmountDue = bill.Total
				bill.Status = BillPosted
			} else {
				bill.Status = BillPartiallyPaid
			}
			if err := tx.UpdateBill(ctx, bill); err != nil {
				return err
			}
		}
		if err := tx.AdjustPartyBalance(ctx, companyID, payment.CreditorID, payment.Amount); err != nil {
			return err
		}

		payment.Status = PaymentVoid
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		voided = payment
		return nil
	})
	if err != nil {
		return Payment{}, err
	}

	s.recordAudit(ctx, actor, companyID, "payment.void", "payment", voided.ID.String(), map[string]any{"reason": reason})
	return voided, nil
}

// checkAllocations verifies every allocation targets a payable bill of
// the payment's creditor and fits within its open balance.
func (s *Service) checkAllocations(ctx context.Context, tx TxRepository, payment Payment) error {
	for _, alloc := range payment.Allocations {
		bill, err := tx.GetBillForUpdate(ctx, payment.CompanyID, alloc.BillID)
		if err != nil {
			return err
		}
		if bill.CreditorID != payment.CreditorID {
			return fmt.Errorf("%w: bill %s belongs to another creditor", shared.ErrValidation, bill.Number)
		}
		if bill.Status != BillPosted && bill.Status != BillPartiallyPaid {
			return fmt.Errorf("%w: bill %s is not payable in status %s", shared.ErrInvalidStatus, bill.Number, bill.Status)
		}
		if alloc.Amount > bill.AmountDue+amountEpsilon {
			return fmt.Errorf("%w: allocation %.2f exceeds amount due %.2f on bill %s", shared.ErrValidation, alloc.Amount, bill.AmountDue, bill.Number)
		}
	}
	return nil
}

func (s *Service) transitionPayment(ctx context.Context, companyID int64, id uuid.UUID, from, to PaymentStatus) (Payment, error) {
	var out Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		payment, err := tx.GetPaymentForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if payment.Status != from {
			return fmt.Errorf("%w: expected %s payment, found %s", shared.ErrInvalidStatus, from, payment.Status)
		}
		payment.Status = to
		if err := tx.UpdatePayment(ctx, payment); err != nil {
			return err
		}
		out = payment
		return nil
	})
	return out, err
}

func swapSides(lines []journals.PostingLineInput) []journals.PostingLineInput {
	out := make([]journals.PostingLineInput, 0, len(lines))
	for _, l := range lines {
		out = append(out, journals.PostingLineInput{AccountID: l.AccountID, Debit: l.Credit, Credit: l.Debit})
	}
	return out
}
