package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// AuditPort records journal actions in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

type Service struct {
	repo  Repository
	audit AuditPort
	now   func() time.Time
}

func NewService(repo Repository, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit, now: time.Now}
}

// WithNow overrides the clock, exposed for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) List(ctx context.Context, companyID int64) ([]JournalEntry, error) {
	return s.repo.List(ctx, companyID)
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, companyID, id)
}

// PostJournal creates a manual journal entry after validating balance and
// period state. Double posting for the same source is a hard error.
func (s *Service) PostJournal(ctx context.Context, actor shared.Actor, input PostingInput) (JournalEntry, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return JournalEntry{}, err
	}
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		period, err := tx.GetPeriodForUpdate(ctx, input.CompanyID, input.PeriodID)
		if err != nil {
			return err
		}
		if period.Status == periods.PeriodStatusLocked {
			return ledgershared.ErrPeriodLocked
		}
		if period.Status != periods.PeriodStatusOpen {
			return ledgershared.ErrPeriodClosed
		}
		if !period.Contains(input.Date) {
			return ledgershared.ErrDateOutOfRange
		}
		inserted, err := tx.InsertJournalEntry(ctx, input)
		if err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, input.CompanyID, input.SourceModule, input.SourceID, inserted.ID); err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.CompanyID, actor.ID, "journal.post", entry.ID, map[string]any{
		"number":        entry.Number,
		"source_module": input.SourceModule,
		"source_id":     input.SourceID.String(),
	})
	return entry, nil
}

// VoidJournal flips a posted entry to VOID while its period still allows it.
func (s *Service) VoidJournal(ctx context.Context, actor shared.Actor, input VoidInput) (JournalEntry, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return JournalEntry{}, err
	}
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetJournalWithLines(ctx, input.CompanyID, input.EntryID)
		if err != nil {
			return err
		}
		period, err := tx.GetPeriodForUpdate(ctx, input.CompanyID, current.PeriodID)
		if err != nil {
			return err
		}
		if period.Status == periods.PeriodStatusLocked {
			return ledgershared.ErrPeriodLocked
		}
		if period.Status != periods.PeriodStatusOpen {
			return ledgershared.ErrPeriodClosed
		}
		if current.Status != JournalStatusPosted {
			return ledgershared.ErrInvalidStatus
		}
		if err := tx.UpdateJournalStatus(ctx, input.CompanyID, current.ID, JournalStatusVoid); err != nil {
			return err
		}
		entry = current
		entry.Status = JournalStatusVoid
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.CompanyID, actor.ID, "journal.void", entry.ID, map[string]any{"reason": input.Reason})
	return entry, nil
}

// ReverseJournal posts a mirrored entry against the original. When the
// original period is no longer open the reversal lands in the next open one.
func (s *Service) ReverseJournal(ctx context.Context, actor shared.Actor, input ReverseInput) (JournalEntry, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return JournalEntry{}, err
	}
	if input.EntryID == 0 {
		return JournalEntry{}, errors.New("ledger: entry id required")
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetJournalWithLines(ctx, input.CompanyID, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return ledgershared.ErrInvalidStatus
		}
		period, err := tx.GetPeriodForUpdate(ctx, input.CompanyID, original.PeriodID)
		if err != nil {
			return err
		}
		targetPeriod := period
		targetDate := original.Date
		if input.TargetDate != nil {
			targetDate = *input.TargetDate
		}
		if period.Status != periods.PeriodStatusOpen {
			next, err := tx.GetNextOpenPeriodAfter(ctx, input.CompanyID, period.EndDate)
			if err != nil {
				return err
			}
			targetPeriod = next
			targetDate = next.StartDate
		}
		if !targetPeriod.Contains(targetDate) {
			return ledgershared.ErrDateOutOfRange
		}
		posting := PostingInput{
			CompanyID:    input.CompanyID,
			PeriodID:     targetPeriod.ID,
			Date:         targetDate,
			// same source id under the reversal tag, so the unique link
			// also rules out a second reversal
			SourceModule: original.SourceModule + ReversalSuffix,
			SourceID:     original.SourceID,
			Memo:         defaultReversalMemo(input.Memo, original.Number),
			PostedBy:     input.ActorID,
			Lines:        ReverseLines(original.Lines),
		}
		inserted, err := tx.InsertJournalEntry(ctx, posting)
		if err != nil {
			return err
		}
		if err := tx.LinkSource(ctx, input.CompanyID, posting.SourceModule, posting.SourceID, inserted.ID); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.recordAudit(ctx, input.CompanyID, actor.ID, "journal.reverse", input.EntryID, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
	})
	return reversal, nil
}

func (s *Service) recordAudit(ctx context.Context, companyID, actorID int64, action string, entryID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actorID,
		Action:    action,
		Entity:    "journal_entry",
		EntityID:  fmt.Sprintf("%d", entryID),
		Meta:      meta,
		At:        s.now(),
	})
}

func defaultReversalMemo(memo string, number int64) string {
	if memo != "" {
		return memo
	}
	return fmt.Sprintf("Reversal of JE %d", number)
}
