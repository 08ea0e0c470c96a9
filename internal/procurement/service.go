package procurement

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// ApprovalPort records submit/approve/reject history.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// AuditPort records purchase order actions in the audit trail.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

const approvalModule = "PROCUREMENT_PO"

type LineInput struct {
	Description string
	Quantity    float64
	UnitPrice   float64
}

type CreateOrderInput struct {
	CompanyID    int64
	CreditorID   int64
	OrderDate    time.Time
	ExpectedDate time.Time
	Memo         string
	CreatedBy    int64
	Lines        []LineInput
}

// ReceiveInput maps line IDs to newly received quantities.
type ReceiveInput struct {
	Quantities map[int64]float64
}

type Service struct {
	repo      Repository
	approvals ApprovalPort
	audit     AuditPort
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(repo Repository, approvals ApprovalPort, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, approvals: approvals, audit: audit, logger: logger, now: time.Now}
}

// WithNow overrides the clock, exposed for tests.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

func (s *Service) Create(ctx context.Context, input CreateOrderInput) (PurchaseOrder, error) {
	if input.CreditorID == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: creditor is required", shared.ErrValidation)
	}
	if len(input.Lines) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order requires at least one line", shared.ErrValidation)
	}

	po := PurchaseOrder{
		ID:           uuid.New(),
		CompanyID:    input.CompanyID,
		CreditorID:   input.CreditorID,
		Status:       OrderDraft,
		OrderDate:    input.OrderDate,
		ExpectedDate: input.ExpectedDate,
		Memo:         input.Memo,
		CreatedBy:    input.CreatedBy,
	}
	var total float64
	for i, line := range input.Lines {
		if strings.TrimSpace(line.Description) == "" {
			return PurchaseOrder{}, fmt.Errorf("%w: line %d missing description", shared.ErrValidation, i+1)
		}
		if line.Quantity <= 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: line %d quantity must be positive", shared.ErrValidation, i+1)
		}
		if line.UnitPrice < 0 {
			return PurchaseOrder{}, fmt.Errorf("%w: line %d unit price cannot be negative", shared.ErrValidation, i+1)
		}
		total += line.Quantity * line.UnitPrice
		po.Lines = append(po.Lines, OrderLine{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	po.Total = math.Round(total*100) / 100

	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
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
		return tx.InsertOrder(ctx, &po)
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.logger.InfoContext(ctx, "purchase order created", "company_id", po.CompanyID, "po", po.Number, "total", po.Total)
	return po, nil
}

func (s *Service) Get(ctx context.Context, companyID int64, id uuid.UUID) (PurchaseOrder, error) {
	return s.repo.Get(ctx, companyID, id)
}

func (s *Service) List(ctx context.Context, companyID int64, status OrderStatus) ([]PurchaseOrder, error) {
	return s.repo.List(ctx, companyID, status)
}

// Submit moves a draft order into the approval queue.
func (s *Service) Submit(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (PurchaseOrder, error) {
	po, err := s.transition(ctx, companyID, id, OrderDraft, OrderPendingApproval)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordApproval(ctx, companyID, id, actor, shared.ApprovalSubmit, note)
	return po, nil
}

func (s *Service) Approve(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (PurchaseOrder, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return PurchaseOrder{}, err
	}
	po, err := s.transition(ctx, companyID, id, OrderPendingApproval, OrderApproved)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordApproval(ctx, companyID, id, actor, shared.ApprovalApprove, note)
	return po, nil
}

func (s *Service) Reject(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (PurchaseOrder, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return PurchaseOrder{}, err
	}
	po, err := s.transition(ctx, companyID, id, OrderPendingApproval, OrderCancelled)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordApproval(ctx, companyID, id, actor, shared.ApprovalReject, note)
	return po, nil
}

// Send transmits an approved order to the vendor.
func (s *Service) Send(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID) (PurchaseOrder, error) {
	po, err := s.transition(ctx, companyID, id, OrderApproved, OrderSent)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, companyID, "po.send", id, nil)
	return po, nil
}

// Receive books arrived quantities against the order's lines. The order
// flips to RECEIVED once every line has arrived in full.
func (s *Service) Receive(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, input ReceiveInput) (PurchaseOrder, error) {
	if len(input.Quantities) == 0 {
		return PurchaseOrder{}, fmt.Errorf("%w: nothing to receive", shared.ErrValidation)
	}

	var received PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if po.Status != OrderSent {
			return fmt.Errorf("%w: cannot receive against order in status %s", shared.ErrInvalidStatus, po.Status)
		}

		lineByID := make(map[int64]*OrderLine, len(po.Lines))
		for i := range po.Lines {
			lineByID[po.Lines[i].ID] = &po.Lines[i]
		}
		for lineID, qty := range input.Quantities {
			line, ok := lineByID[lineID]
			if !ok {
				return fmt.Errorf("%w: line %d does not belong to order %s", shared.ErrValidation, lineID, po.Number)
			}
			if qty <= 0 {
				return fmt.Errorf("%w: received quantity must be positive", shared.ErrValidation)
			}
			if line.QuantityReceived+qty > line.Quantity {
				return fmt.Errorf("%w: line %d over-received (%0.2f of %0.2f)", shared.ErrValidation, lineID, line.QuantityReceived+qty, line.Quantity)
			}
			line.QuantityReceived += qty
			if err := tx.UpdateLineReceived(ctx, lineID, line.QuantityReceived); err != nil {
				return err
			}
		}

		if po.FullyReceived() {
			po.Status = OrderReceived
			if err := tx.UpdateOrderStatus(ctx, companyID, id, OrderReceived); err != nil {
				return err
			}
		}
		received = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, companyID, "po.receive", id, map[string]any{"lines": len(input.Quantities)})
	return received, nil
}

// Close finishes a fully received order. Manager only.
func (s *Service) Close(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID) (PurchaseOrder, error) {
	if err := shared.RequireApprover(actor); err != nil {
		return PurchaseOrder{}, err
	}
	po, err := s.transition(ctx, companyID, id, OrderReceived, OrderClosed)
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, companyID, "po.close", id, nil)
	return po, nil
}

// Cancel withdraws an order before it reaches the vendor. Cancelling an
// approved order requires a manager; sent orders cannot be cancelled.
func (s *Service) Cancel(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, reason string) (PurchaseOrder, error) {
	var cancelled PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		switch po.Status {
		case OrderDraft, OrderPendingApproval:
		case OrderApproved:
			if err := shared.RequireApprover(actor); err != nil {
				return err
			}
		default:
			return fmt.Errorf("%w: cannot cancel order in status %s", shared.ErrInvalidStatus, po.Status)
		}
		po.Status = OrderCancelled
		if err := tx.UpdateOrderStatus(ctx, companyID, id, OrderCancelled); err != nil {
			return err
		}
		cancelled = po
		return nil
	})
	if err != nil {
		return PurchaseOrder{}, err
	}
	s.recordAudit(ctx, actor, companyID, "po.cancel", id, map[string]any{"reason": reason})
	return cancelled, nil
}

func (s *Service) transition(ctx context.Context, companyID int64, id uuid.UUID, from, to OrderStatus) (PurchaseOrder, error) {
	var out PurchaseOrder
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		po, err := tx.GetOrderForUpdate(ctx, companyID, id)
		if err != nil {
			return err
		}
		if po.Status != from {
			return fmt.Errorf("%w: expected %s order, found %s", shared.ErrInvalidStatus, from, po.Status)
		}
		po.Status = to
		if err := tx.UpdateOrderStatus(ctx, companyID, id, to); err != nil {
			return err
		}
		out = po
		return nil
	})
	return out, err
}

func (s *Service) recordApproval(ctx context.Context, companyID int64, ref uuid.UUID, actor shared.Actor, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	err := s.approvals.Record(ctx, shared.ApprovalLog{
		CompanyID: companyID,
		Module:    approvalModule,
		RefID:     ref,
		ActorID:   actor.ID,
		Action:    action,
		Note:      note,
		At:        s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "approval write failed", "module", approvalModule, "err", err)
	}
}

func (s *Service) recordAudit(ctx context.Context, actor shared.Actor, companyID int64, action string, id uuid.UUID, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		CompanyID: companyID,
		ActorID:   actor.ID,
		Action:    action,
		Entity:    "purchase_order",
		EntityID:  id.String(),
		Meta:      meta,
		At:        s.now(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "audit write failed", "action", action, "err", err)
	}
}
