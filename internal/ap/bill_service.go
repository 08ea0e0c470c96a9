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

// CreateBill stores a draft vendor bill. Nothing is owed until posting.
func (s *Service) CreateBill(ctx context.Context, input CreateBillInput) (Bill, error) {
	subtotal, tax, err := input.Validate()
	if err != nil {
		return Bill{}, err
	}

	bill := Bill{
		ID:         uuid.New(),
		CompanyID:  input.CompanyID,
		CreditorID: input.CreditorID,
		VendorRef:  input.VendorRef,
		Status:     BillDraft,
		IssueDate:  input.IssueDate,
		DueDate:    input.DueDate,
		Subtotal:   subtotal,
		TaxAmount:  tax,
		Total:      roundCents(subtotal + tax),
		Memo:       input.Memo,
		CreatedBy:  input.CreatedBy,
	}
	bill.AmountDue = bill.Total
	for _, line := range input.Lines {
		bill.Lines = append(bill.Lines, BillLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
			AccountID:   line.AccountID,
			LineTotal:   roundCents(line.Quantity * line.UnitPrice),
		})
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
		return tx.InsertBill(ctx, &bill)
	})
	if err != nil {
		return Bill{}, err
	}
	s.logger.InfoContext(ctx, "bill created", "company_id", bill.CompanyID, "bill", bill.Number, "total", bill.Total)
	return bill, nil
}

func (s *Service) GetBill(ctx context.Context, companyID int64, id uuid.UUID) (Bill, error) {
	return s.repo.GetBill(ctx, companyID, id)
}

func (s *Service) ListBills(ctx context.Context, companyID int64, status BillStatus) ([]Bill, error) {
	return s.repo.ListBills(ctx, companyID, status)
}

// SubmitBill moves a draft into the approval queue.
func (s *Service) SubmitBill(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (Bill, error) {
	bill, err := s.transitionBill(ctx, companyID, id, BillDraft, BillPendingApproval)
	if err != nil {
		return Bill{}, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{CompanyID: companyID, Module: approvalModuleBill, RefID: id, ActorID: actor.ID, Action: shared.ApprovalSubmit, Note: note})
	return bill, nil
}

// ApproveBill marks a pending bill ready for posting. Approval does not
// touch the ledger.
func (s *Service) ApproveBill(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (Bill, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Bill{}, err
	}
	bill, err := s.transitionBill(ctx, companyID, id, BillPendingApproval, BillApproved)
	if err != nil {
		return Bill{}, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{CompanyID: companyID, Module: approvalModuleBill, RefID: id, ActorID: actor.ID, Action: shared.ApprovalApprove, Note: note})
	return bill, nil
}

func (s *Service) RejectBill(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (Bill, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Bill{}, err
	}
	bill, err := s.transitionBill(ctx, companyID, id, BillPendingApproval, BillRejected)
	if err != nil {
		return Bill{}, err
	}
	s.recordApproval(ctx, shared.ApprovalLog{CompanyID: companyID, Module: approvalModuleBill, RefID: id, ActorID: actor.ID, Action: shared.ApprovalReject, Note: note})
	return bill, nil
}

// PostBill books an approved bill to the ledger and raises the creditor
// balance. The whole operation is one transaction: if the period is not
// open the bill stays APPROVED and nothing is recorded. Posting the
// same bill twice is a hard error.
func (s *Service) PostBill(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID) (Bill, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Bill{}, err
	}
	defaults, err := s.defaults.Resolve(ctx, companyID)
	if err != nil {
		return Bill{}, err
	}

	var posted Bill
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if bill.Status != BillApproved {
			return fmt.Errorf("%w: cannot post bill in status %s", shared.ErrInvalidStatus, bill.Status)
		}
		if bill.JournalEntryID != nil {
			return fmt.Errorf("%w: bill %s already posted", ledgershared.ErrSourceAlreadyLinked, bill.Number)
		}
		creditor, err := tx.GetPartyForUpdate(ctx, companyID, bill.CreditorID)
		if err != nil {
			return err
		}
		if err := party.EnsureTradable(creditor); err != nil {
			return err
		}
		period, err := tx.ResolvePostingPeriod(ctx, companyID, bill.IssueDate)
		if err != nil {
			return err
		}
		if err := period.EnsurePostable(); err != nil {
			return err
		}

		lines, err := posting.BuildBillLines(defaults, billDocumentLines(bill.Lines), bill.TaxAmount)
		if err != nil {
			return err
		}
		input := journals.PostingInput{
			CompanyID:    companyID,
			PeriodID:     period.ID,
			Date:         bill.IssueDate,
			SourceModule: journals.SourceBill,
			SourceID:     bill.ID,
			Memo:         "Bill " + bill.Number,
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
		if err := tx.AdjustPartyBalance(ctx, companyID, bill.CreditorID, bill.Total); err != nil {
			return err
		}

		bill.Status = BillPosted
		bill.JournalEntryID = &entry.ID
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		posted = bill
		return nil
	})
	if err != nil {
		return Bill{}, err
	}

	s.recordAudit(ctx, actor, companyID, "bill.post", "bill", posted.ID.String(), map[string]any{"number": posted.Number, "total": posted.Total})
	return posted, nil
}

// CancelBill withdraws a bill that has not reached the ledger yet.
// Posted bills cannot be cancelled; they are settled or written off.
func (s *Service) CancelBill(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, reason string) (Bill, error) {
	var cancelled Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		switch bill.Status {
		case BillDraft, BillPendingApproval, BillApproved, BillRejected:
		default:
			return fmt.Errorf("%w: cannot cancel bill in status %s", shared.ErrInvalidStatus, bill.Status)
		}
		if bill.Status != BillDraft {
			if err := shared.RequireApprover(actor); err != nil {
				return err
			}
		}
		bill.Status = BillCancelled
		bill.AmountDue = 0
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		cancelled = bill
		return nil
	})
	if err != nil {
		return Bill{}, err
	}
	s.recordAudit(ctx, actor, companyID, "bill.cancel", "bill", cancelled.ID.String(), map[string]any{"reason": reason})
	return cancelled, nil
}

func (s *Service) transitionBill(ctx context.Context, companyID int64, id uuid.UUID, from, to BillStatus) (Bill, error) {
	var out Bill
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		bill, err := tx.GetBillForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if bill.Status != from {
			return fmt.Errorf("%w: expected %s bill, found %s", shared.ErrInvalidStatus, from, bill.Status)
		}
		bill.Status = to
		if err := tx.UpdateBill(ctx, bill); err != nil {
			return err
		}
		out = bill
		return nil
	})
	return out, err
}

func billDocumentLines(lines []BillLine) []posting.DocumentLine {
	out := make([]posting.DocumentLine, 0, len(lines))
	for _, l := range lines {
		out = append(out, posting.DocumentLine{AccountID: l.AccountID, Amount: l.LineTotal})
	}
	return out
}
