package periods

import (
	"context"
	"fmt"
	"strings"
	"time"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: func() time.Time { return time.Now().UTC() }}
}

// WithNow overrides the clock for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CreateInput describes a new fiscal period.
type CreateInput struct {
	CompanyID int64
	Code      string
	StartDate time.Time
	EndDate   time.Time
}

// Create opens a new period. Windows must not overlap an existing one.
func (s *Service) Create(ctx context.Context, in CreateInput) (Period, error) {
	in.Code = strings.TrimSpace(in.Code)
	if in.Code == "" {
		return Period{}, fmt.Errorf("%w: period code required", shared.ErrValidation)
	}
	if !in.EndDate.After(in.StartDate) {
		return Period{}, fmt.Errorf("%w: period end must follow start", shared.ErrValidation)
	}
	existing, err := s.repo.List(ctx, in.CompanyID)
	if err != nil {
		return Period{}, err
	}
	for _, p := range existing {
		encloses := !in.StartDate.After(p.StartDate) && !in.EndDate.Before(p.EndDate)
		if p.Contains(in.StartDate) || p.Contains(in.EndDate) || encloses {
			return Period{}, fmt.Errorf("%w: period overlaps %s", shared.ErrValidation, p.Code)
		}
	}
	period := Period{
		CompanyID: in.CompanyID,
		Code:      in.Code,
		StartDate: in.StartDate,
		EndDate:   in.EndDate,
		Status:    PeriodStatusOpen,
	}
	if err := s.repo.Create(ctx, &period); err != nil {
		return Period{}, err
	}
	return period, nil
}

// Close transitions an open period to CLOSED. Requires an elevated role.
func (s *Service) Close(ctx context.Context, actor shared.Actor, companyID, id int64) (Period, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Period{}, err
	}
	period, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Period{}, err
	}
	if period.Status != PeriodStatusOpen {
		return Period{}, ledgershared.ErrInvalidStatus
	}
	closedAt := s.now()
	period.Status = PeriodStatusClosed
	period.ClosedAt = &closedAt
	if err := s.repo.SetStatus(ctx, period); err != nil {
		return Period{}, err
	}
	return period, nil
}

// Lock seals a closed period permanently. Only admins may lock.
func (s *Service) Lock(ctx context.Context, actor shared.Actor, companyID, id int64) (Period, error) {
	if actor.Role != shared.RoleAdmin {
		return Period{}, shared.ErrForbidden
	}
	period, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Period{}, err
	}
	if period.Status != PeriodStatusClosed {
		return Period{}, ledgershared.ErrInvalidStatus
	}
	period.Status = PeriodStatusLocked
	period.LockedBy = &actor.ID
	if err := s.repo.SetStatus(ctx, period); err != nil {
		return Period{}, err
	}
	return period, nil
}

// Reopen returns a closed period to OPEN. Locked periods stay locked.
func (s *Service) Reopen(ctx context.Context, actor shared.Actor, companyID, id int64) (Period, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return Period{}, err
	}
	period, err := s.repo.Get(ctx, companyID, id)
	if err != nil {
		return Period{}, err
	}
	if period.Status == PeriodStatusLocked {
		return Period{}, ledgershared.ErrPeriodLocked
	}
	if period.Status != PeriodStatusClosed {
		return Period{}, ledgershared.ErrInvalidStatus
	}
	period.Status = PeriodStatusOpen
	period.ClosedAt = nil
	if err := s.repo.SetStatus(ctx, period); err != nil {
		return Period{}, err
	}
	return period, nil
}

// ResolveForPosting returns the period covering date, failing unless it is open.
func (s *Service) ResolveForPosting(ctx context.Context, companyID int64, date time.Time) (Period, error) {
	period, err := s.repo.FindByDate(ctx, companyID, date)
	if err != nil {
		return Period{}, err
	}
	if err := period.EnsurePostable(); err != nil {
		return Period{}, err
	}
	return period, nil
}

// NextOpenAfter proxies the repository lookup for reversal targeting.
func (s *Service) NextOpenAfter(ctx context.Context, companyID int64, after time.Time) (Period, error) {
	return s.repo.NextOpenAfter(ctx, companyID, after)
}

func (s *Service) List(ctx context.Context, companyID int64) ([]Period, error) {
	return s.repo.List(ctx, companyID)
}
