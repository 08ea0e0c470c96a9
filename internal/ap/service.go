package ap

import (
	"context"
	"log/slog"
	"time"

	"github.com/ledgerline/ledgerline/internal/ledger/posting"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// ApprovalPort records submit/approve/reject history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// AuditPort records AP actions in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// DefaultsPort resolves the company's posting accounts.
type DefaultsPort interface {
	Resolve(ctx context.Context, companyID int64) (posting.Defaults, error)
}

const (
	approvalModuleBill    = "AP_BILL"
	approvalModulePayment = "AP_PAYMENT"
)

type Service struct {
	repo      Repository
	defaults  DefaultsPort
	approvals ApprovalPort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, defaults DefaultsPort, approvals ApprovalPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, defaults: defaults, approvals: approvals, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, exposed for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) recordApproval(ctx context.Context, log shared.ApprovalLog) {
	if s.approvals == nil {
		return
	}
	log.At = s.now()
	if err := s.approvals.Record(ctx, log); err != nil {
		s.logger.WarnContext(ctx, "approval write failed", "module", log.Module, "err", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, companyID int64, action, entity, entityID string, meta map[string]any) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actor.ID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Meta:      meta,
		At:        s.now(),
	}); err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", action, "err", err)
	}
}
