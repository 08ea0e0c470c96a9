package procurement

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryOrderRepo struct {
	orders    map[uuid.UUID]PurchaseOrder
	parties   map[int64]party.Party
	approvals []shared.ApprovalLog
	nextLine  int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{orders: make(map[uuid.UUID]PurchaseOrder), parties: make(map[int64]party.Party)}
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryOrderTx{repo: r})
}

func (r *memoryOrderRepo) Get(ctx context.Context, companyID int64, id uuid.UUID) (PurchaseOrder, error) {
	po, ok := r.orders[id]
	if !ok || po.CompanyID != companyID {
		return PurchaseOrder{}, fmt.Errorf("%w: purchase order %s", shared.ErrNotFound, id)
	}
	return po, nil
}

func (r *memoryOrderRepo) List(ctx context.Context, companyID int64, status OrderStatus) ([]PurchaseOrder, error) {
	var out []PurchaseOrder
	for _, po := range r.orders {
		if po.CompanyID == companyID && (status == "" || po.Status == status) {
			out = append(out, po)
		}
	}
	return out, nil
}

func (r *memoryOrderRepo) Record(ctx context.Context, log shared.ApprovalLog) error {
	r.approvals = append(r.approvals, log)
	return nil
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

func (t *memoryOrderTx) InsertOrder(ctx context.Context, po *PurchaseOrder) error {
	po.Number = fmt.Sprintf("PO-%05d", len(t.repo.orders)+1)
	for i := range po.Lines {
		t.repo.nextLine++
		po.Lines[i].ID = t.repo.nextLine
		po.Lines[i].OrderID = po.ID
	}
	t.repo.orders[po.ID] = *po
	return nil
}

func (t *memoryOrderTx) GetOrderForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (PurchaseOrder, error) {
	return t.repo.Get(ctx, companyID, id)
}

func (t *memoryOrderTx) UpdateOrderStatus(ctx context.Context, companyID int64, id uuid.UUID, status OrderStatus) error {
	po, err := t.repo.Get(ctx, companyID, id)
	if err != nil {
		return err
	}
	po.Status = status
	t.repo.orders[id] = po
	return nil
}

func (t *memoryOrderTx) UpdateLineReceived(ctx context.Context, lineID int64, quantityReceived float64) error {
	for id, po := range t.repo.orders {
		for i := range po.Lines {
			if po.Lines[i].ID == lineID {
				po.Lines[i].QuantityReceived = quantityReceived
				t.repo.orders[id] = po
				return nil
			}
		}
	}
	return fmt.Errorf("%w: line %d", shared.ErrNotFound, lineID)
}

func (t *memoryOrderTx) GetPartyForUpdate(ctx context.Context, companyID, partyID int64) (party.Party, error) {
	p, ok := t.repo.parties[partyID]
	if !ok || p.CompanyID != companyID {
		return party.Party{}, fmt.Errorf("%w: party %d", shared.ErrNotFound, partyID)
	}
	return p, nil
}

var (
	poClerk   = shared.Actor{ID: 8, Role: shared.RoleClerk}
	poManager = shared.Actor{ID: 9, Role: shared.RoleManager}
)

func poFixture(t *testing.T) (*Service, *memoryOrderRepo) {
	t.Helper()
	repo := newMemoryOrderRepo()
	repo.parties[2] = party.Party{ID: 2, CompanyID: 1, Code: "VEND-1", Name: "Paper Co", Type: party.TypeCreditor, Status: party.StatusActive}
	svc := NewService(repo, repo, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC) })
	return svc, repo
}

func draftOrder(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	po, err := svc.Create(context.Background(), CreateOrderInput{
		CompanyID:  1,
		CreditorID: 2,
		OrderDate:  time.Date(2026, 6, 10, 0, 0, 0, 0, time.UTC),
		CreatedBy:  poClerk.ID,
		Lines: []LineInput{
			{Description: "Reams", Quantity: 10, UnitPrice: 5},
			{Description: "Toner", Quantity: 2, UnitPrice: 40},
		},
	})
	require.NoError(t, err)
	return po
}

func sentOrder(t *testing.T, svc *Service) PurchaseOrder {
	t.Helper()
	po := draftOrder(t, svc)
	_, err := svc.Submit(context.Background(), poClerk, 1, po.ID, "")
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), poManager, 1, po.ID, "")
	require.NoError(t, err)
	sent, err := svc.Send(context.Background(), poClerk, 1, po.ID)
	require.NoError(t, err)
	return sent
}

func TestCreateComputesTotal(t *testing.T) {
	svc, _ := poFixture(t)
	po := draftOrder(t, svc)
	require.Equal(t, OrderDraft, po.Status)
	require.InDelta(t, 130.0, po.Total, 0.001)
	require.Equal(t, "PO-00001", po.Number)
}

func TestApprovalFlow(t *testing.T) {
	svc, repo := poFixture(t)
	po := draftOrder(t, svc)

	_, err := svc.Approve(context.Background(), poManager, 1, po.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidStatus, "approve before submit")

	_, err = svc.Submit(context.Background(), poClerk, 1, po.ID, "need supplies")
	require.NoError(t, err)

	_, err = svc.Approve(context.Background(), poClerk, 1, po.ID, "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	approved, err := svc.Approve(context.Background(), poManager, 1, po.ID, "within budget")
	require.NoError(t, err)
	require.Equal(t, OrderApproved, approved.Status)

	require.Len(t, repo.approvals, 2)
	require.Equal(t, shared.ApprovalSubmit, repo.approvals[0].Action)
	require.Equal(t, shared.ApprovalApprove, repo.approvals[1].Action)
}

func TestReceivePartialThenFull(t *testing.T) {
	svc, _ := poFixture(t)
	po := sentOrder(t, svc)

	partial, err := svc.Receive(context.Background(), poClerk, 1, po.ID, ReceiveInput{
		Quantities: map[int64]float64{po.Lines[0].ID: 4},
	})
	require.NoError(t, err)
	require.Equal(t, OrderSent, partial.Status)
	require.InDelta(t, 4.0, partial.Lines[0].QuantityReceived, 0.001)

	full, err := svc.Receive(context.Background(), poClerk, 1, po.ID, ReceiveInput{
		Quantities: map[int64]float64{po.Lines[0].ID: 6, po.Lines[1].ID: 2},
	})
	require.NoError(t, err)
	require.Equal(t, OrderReceived, full.Status)
}

func TestReceiveRejectsOverReceipt(t *testing.T) {
	svc, _ := poFixture(t)
	po := sentOrder(t, svc)

	_, err := svc.Receive(context.Background(), poClerk, 1, po.ID, ReceiveInput{
		Quantities: map[int64]float64{po.Lines[0].ID: 11},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCloseRequiresReceivedAndManager(t *testing.T) {
	svc, _ := poFixture(t)
	po := sentOrder(t, svc)

	_, err := svc.Close(context.Background(), poManager, 1, po.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = svc.Receive(context.Background(), poClerk, 1, po.ID, ReceiveInput{
		Quantities: map[int64]float64{po.Lines[0].ID: 10, po.Lines[1].ID: 2},
	})
	require.NoError(t, err)

	_, err = svc.Close(context.Background(), poClerk, 1, po.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	closed, err := svc.Close(context.Background(), poManager, 1, po.ID)
	require.NoError(t, err)
	require.Equal(t, OrderClosed, closed.Status)
}

func TestCancelRules(t *testing.T) {
	svc, _ := poFixture(t)

	// Draft cancels freely.
	po := draftOrder(t, svc)
	cancelled, err := svc.Cancel(context.Background(), poClerk, 1, po.ID, "ordered twice")
	require.NoError(t, err)
	require.Equal(t, OrderCancelled, cancelled.Status)

	// Approved needs a manager.
	po = draftOrder(t, svc)
	_, err = svc.Submit(context.Background(), poClerk, 1, po.ID, "")
	require.NoError(t, err)
	_, err = svc.Approve(context.Background(), poManager, 1, po.ID, "")
	require.NoError(t, err)
	_, err = svc.Cancel(context.Background(), poClerk, 1, po.ID, "")
	require.ErrorIs(t, err, shared.ErrForbidden)
	_, err = svc.Cancel(context.Background(), poManager, 1, po.ID, "vendor out of stock")
	require.NoError(t, err)

	// Sent orders are beyond cancelling.
	po = sentOrder(t, svc)
	_, err = svc.Cancel(context.Background(), poManager, 1, po.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}
