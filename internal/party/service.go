package party

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type Service struct {
	repo   Repository
	logger *slog.Logger
	now    func() time.Time
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger, now: time.Now}
}

// WithNow overrides the clock, exposed for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Create(ctx context.Context, input CreateInput) (Party, error) {
	input.Code = strings.TrimSpace(input.Code)
	input.Name = strings.TrimSpace(input.Name)
	if input.Code == "" || input.Name == "" {
		return Party{}, fmt.Errorf("%w: code and name are required", shared.ErrValidation)
	}
	if !input.Type.Valid() {
		return Party{}, fmt.Errorf("%w: unknown party type %q", shared.ErrValidation, input.Type)
	}
	if input.PaymentTerms < 0 {
		return Party{}, fmt.Errorf("%w: payment terms cannot be negative", shared.ErrValidation)
	}
	if input.PaymentTerms == 0 {
		input.PaymentTerms = 30
	}
	p, err := s.repo.Create(ctx, input)
	if err != nil {
		return Party{}, err
	}
	s.logger.InfoContext(ctx, "party created", "company_id", p.CompanyID, "party_id", p.ID, "type", p.Type)
	return p, nil
}

func (s *Service) Get(ctx context.Context, companyID, id int64) (Party, error) {
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID int64, partyType PartyType) ([]Party, error) {
	if partyType != "" && !partyType.Valid() {
		return nil, fmt.Errorf("%w: unknown party type %q", shared.ErrValidation, partyType)
	}
	return s.repo.List(ctx, companyID, partyType)
}

// SetStatus moves a party between ACTIVE, INACTIVE and BLOCKED.
// Blocking requires an approver role since it halts trading.
func (s *Service) SetStatus(ctx context.Context, actor shared.Actor, companyID, id int64, status PartyStatus) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", shared.ErrValidation, status)
	}
	if status == StatusBlocked {
		if err := shared.RequireApprover(actor); err != nil {
			return err
		}
	}
	if err := s.repo.SetStatus(ctx, companyID, id, status); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "party status changed", "company_id", companyID, "party_id", id, "status", status)
	return nil
}

// EnsureTradable fails when a party cannot take new documents.
func EnsureTradable(p Party) error {
	if p.Status == StatusBlocked {
		return fmt.Errorf("%w: party %s", shared.ErrPartyBlocked, p.Code)
	}
	if p.Status == StatusInactive {
		return fmt.Errorf("%w: party %s is inactive", shared.ErrValidation, p.Code)
	}
	return nil
}

// Aging builds the aging report for one party from its open items,
// bucketed by actual days past due.
func (s *Service) Aging(ctx context.Context, companyID, partyID int64, asOf time.Time) (Aging, error) {
	if asOf.IsZero() {
		asOf = s.now()
	}
	items, err := s.repo.OpenItems(ctx, companyID, partyID)
	if err != nil {
		return Aging{}, err
	}
	return BucketItems(partyID, asOf, items), nil
}
