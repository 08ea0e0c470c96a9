package ap

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger/journals"
	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/ledger/posting"
	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryAPRepo struct {
	bills     map[uuid.UUID]Bill
	payments  map[uuid.UUID]Payment
	parties   map[int64]party.Party
	periods   []periods.Period
	entries   []journals.PostingInput
	links     map[string]bool
	approvals []shared.ApprovalLog
}

func newMemoryAPRepo() *memoryAPRepo {
	return &memoryAPRepo{
		bills:    make(map[uuid.UUID]Bill),
		payments: make(map[uuid.UUID]Payment),
		parties:  make(map[int64]party.Party),
		links:    make(map[string]bool),
	}
}

func (r *memoryAPRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryAPTx{repo: r})
}

func (r *memoryAPRepo) GetBill(ctx context.Context, companyID int64, id uuid.UUID) (Bill, error) {
	b, ok := r.bills[id]
	if !ok || b.CompanyID != companyID {
		return Bill{}, fmt.Errorf("%w: bill %s", shared.ErrNotFound, id)
	}
	return b, nil
}

func (r *memoryAPRepo) ListBills(ctx context.Context, companyID int64, status BillStatus) ([]Bill, error) {
	var out []Bill
	for _, b := range r.bills {
		if b.CompanyID == companyID && (status == "" || b.Status == status) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryAPRepo) GetPayment(ctx context.Context, companyID int64, id uuid.UUID) (Payment, error) {
	p, ok := r.payments[id]
	if !ok || p.CompanyID != companyID {
		return Payment{}, fmt.Errorf("%w: payment %s", shared.ErrNotFound, id)
	}
	return p, nil
}

func (r *memoryAPRepo) ListPayments(ctx context.Context, companyID int64, status PaymentStatus) ([]Payment, error) {
	var out []Payment
	for _, p := range r.payments {
		if p.CompanyID == companyID && (status == "" || p.Status == status) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memoryAPRepo) Record(ctx context.Context, log shared.ApprovalLog) error {
	r.approvals = append(r.approvals, log)
	return nil
}

type memoryAPTx struct {
	repo *memoryAPRepo
}

func (t *memoryAPTx) InsertBill(ctx context.Context, bill *Bill) error {
	bill.Number = fmt.Sprintf("BILL-%05d", len(t.repo.bills)+1)
	t.repo.bills[bill.ID] = *bill
	return nil
}

func (t *memoryAPTx) GetBillForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Bill, error) {
	return t.repo.GetBill(ctx, companyID, id)
}

func (t *memoryAPTx) UpdateBill(ctx context.Context, bill Bill) error {
	if _, ok := t.repo.bills[bill.ID]; !ok {
		return fmt.Errorf("%w: bill %s", shared.ErrNotFound, bill.ID)
	}
	t.repo.bills[bill.ID] = bill
	return nil
}

func (t *memoryAPTx) InsertPayment(ctx context.Context, payment *Payment) error {
	payment.Number = fmt.Sprintf("PAY-%05d", len(t.repo.payments)+1)
	t.repo.payments[payment.ID] = *payment
	return nil
}

func (t *memoryAPTx) GetPaymentForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Payment, error) {
	return t.repo.GetPayment(ctx, companyID, id)
}

func (t *memoryAPTx) UpdatePayment(ctx context.Context, payment Payment) error {
	if _, ok := t.repo.payments[payment.ID]; !ok {
		return fmt.Errorf("%w: payment %s", shared.ErrNotFound, payment.ID)
	}
	t.repo.payments[payment.ID] = payment
	return nil
}

func (t *memoryAPTx) GetPartyForUpdate(ctx context.Context, companyID, partyID int64) (party.Party, error) {
	p, ok := t.repo.parties[partyID]
	if !ok || p.CompanyID != companyID {
		return party.Party{}, fmt.Errorf("%w: party %d", shared.ErrNotFound, partyID)
	}
	return p, nil
}

func (t *memoryAPTx) AdjustPartyBalance(ctx context.Context, companyID, partyID int64, delta float64) error {
	p, err := t.GetPartyForUpdate(ctx, companyID, partyID)
	if err != nil {
		return err
	}
	p.CurrentBalance += delta
	t.repo.parties[partyID] = p
	return nil
}

func (t *memoryAPTx) ResolvePostingPeriod(ctx context.Context, companyID int64, date time.Time) (periods.Period, error) {
	for _, p := range t.repo.periods {
		if p.CompanyID == companyID && p.Contains(date) {
			return p, nil
		}
	}
	return periods.Period{}, ledgershared.ErrNoOpenPeriod
}

func (t *memoryAPTx) PostEntry(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error) {
	key := input.SourceModule + ":" + input.SourceID.String()
	if t.repo.links[key] {
		return journals.JournalEntry{}, fmt.Errorf("%w: %s", ledgershared.ErrSourceAlreadyLinked, key)
	}
	t.repo.links[key] = true
	t.repo.entries = append(t.repo.entries, input)
	return journals.JournalEntry{ID: int64(len(t.repo.entries))}, nil
}

type staticAPDefaults struct{}

func (staticAPDefaults) Resolve(ctx context.Context, companyID int64) (posting.Defaults, error) {
	return posting.Defaults{
		ARControl: 100, APControl: 200, Bank: 110, TaxPayable: 210, TaxReceivable: 120, Revenue: 400, Expense: 500,
	}, nil
}

var (
	apClerk   = shared.Actor{ID: 5, Role: shared.RoleClerk}
	apManager = shared.Actor{ID: 6, Role: shared.RoleManager}
)

func apFixture(t *testing.T) (*Service, *memoryAPRepo) {
	t.Helper()
	repo := newMemoryAPRepo()
	repo.parties[2] = party.Party{ID: 2, CompanyID: 1, Code: "VEND-1", Name: "Paper Co", Type: party.TypeCreditor, Status: party.StatusActive}
	repo.periods = append(repo.periods, periods.Period{
		ID: 1, CompanyID: 1, Code: "2026-06",
		StartDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC),
		Status:    periods.PeriodStatusOpen,
	})
	svc := NewService(repo, staticAPDefaults{}, repo, nil, nil)
	svc.WithNow(func() time.Time { return time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC) })
	return svc, repo
}

func draftBill(t *testing.T, svc *Service, amount float64) Bill {
	t.Helper()
	bill, err := svc.CreateBill(context.Background(), CreateBillInput{
		CompanyID:  1,
		CreditorID: 2,
		VendorRef:  "VINV-42",
		IssueDate:  time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC),
		CreatedBy:  apClerk.ID,
		Lines:      []BillLineInput{{Description: "Supplies", Quantity: 1, UnitPrice: amount}},
	})
	require.NoError(t, err)
	return bill
}

func postedBill(t *testing.T, svc *Service, amount float64) Bill {
	t.Helper()
	bill := draftBill(t, svc, amount)
	_, err := svc.SubmitBill(context.Background(), apClerk, 1, bill.ID, "")
	require.NoError(t, err)
	_, err = svc.ApproveBill(context.Background(), apManager, 1, bill.ID, "ok")
	require.NoError(t, err)
	posted, err := svc.PostBill(context.Background(), apManager, 1, bill.ID)
	require.NoError(t, err)
	return posted
}

func TestCreateBillComputesLineTotals(t *testing.T) {
	svc, _ := apFixture(t)
	bill, err := svc.CreateBill(context.Background(), CreateBillInput{
		CompanyID:  1,
		CreditorID: 2,
		IssueDate:  time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC),
		CreatedBy:  apClerk.ID,
		Lines: []BillLineInput{
			{Description: "Paper", Quantity: 4, UnitPrice: 12.5, TaxRate: 0.1},
		},
	})
	require.NoError(t, err)
	require.InDelta(t, 50.0, bill.Lines[0].LineTotal, 0.001)
	require.InDelta(t, 50.0, bill.Subtotal, 0.001)
	require.InDelta(t, 5.0, bill.TaxAmount, 0.001)
	require.InDelta(t, 55.0, bill.Total, 0.001)
	require.InDelta(t, 0.0, bill.AmountPaid, 0.001)
	require.InDelta(t, 55.0, bill.AmountDue, 0.001)

	_, err = svc.CreateBill(context.Background(), CreateBillInput{
		CompanyID:  1,
		CreditorID: 2,
		IssueDate:  time.Date(2026, 6, 5, 0, 0, 0, 0, time.UTC),
		DueDate:    time.Date(2026, 7, 5, 0, 0, 0, 0, time.UTC),
		Lines:      []BillLineInput{{Description: "Bad", Quantity: 0, UnitPrice: 10}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBillApprovalFlow(t *testing.T) {
	svc, repo := apFixture(t)
	bill := draftBill(t, svc, 100)
	require.Equal(t, BillDraft, bill.Status)

	// Clerk cannot approve.
	_, err := svc.SubmitBill(context.Background(), apClerk, 1, bill.ID, "please review")
	require.NoError(t, err)
	_, err = svc.ApproveBill(context.Background(), apClerk, 1, bill.ID, "")
	require.ErrorIs(t, err, shared.ErrForbidden)

	approved, err := svc.ApproveBill(context.Background(), apManager, 1, bill.ID, "ok")
	require.NoError(t, err)
	require.Equal(t, BillApproved, approved.Status)

	// Approval alone never touches the ledger or the balance.
	require.Empty(t, repo.entries)
	require.InDelta(t, 0.0, repo.parties[2].CurrentBalance, 0.001)

	require.Len(t, repo.approvals, 2)
	require.Equal(t, shared.ApprovalSubmit, repo.approvals[0].Action)
	require.Equal(t, shared.ApprovalApprove, repo.approvals[1].Action)
}

func TestRejectedBillCannotBePosted(t *testing.T) {
	svc, _ := apFixture(t)
	bill := draftBill(t, svc, 100)
	_, err := svc.SubmitBill(context.Background(), apClerk, 1, bill.ID, "")
	require.NoError(t, err)
	_, err = svc.RejectBill(context.Background(), apManager, 1, bill.ID, "wrong vendor")
	require.NoError(t, err)

	_, err = svc.PostBill(context.Background(), apManager, 1, bill.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestPostBillBooksLedgerAndBalance(t *testing.T) {
	svc, repo := apFixture(t)
	bill := postedBill(t, svc, 110)

	require.Equal(t, BillPosted, bill.Status)
	require.InDelta(t, 110.0, repo.parties[2].CurrentBalance, 0.001)
	require.Len(t, repo.entries, 1)
	require.Equal(t, journals.SourceBill, repo.entries[0].SourceModule)

	// Second posting attempt is a hard error, not a silent no-op.
	stored := repo.bills[bill.ID]
	stored.Status = BillApproved
	repo.bills[bill.ID] = stored
	_, err := svc.PostBill(context.Background(), apManager, 1, bill.ID)
	require.ErrorIs(t, err, ledgershared.ErrSourceAlreadyLinked)
}

func TestPostBillClosedPeriodLeavesBillApproved(t *testing.T) {
	svc, repo := apFixture(t)
	bill := draftBill(t, svc, 100)
	_, err := svc.SubmitBill(context.Background(), apClerk, 1, bill.ID, "")
	require.NoError(t, err)
	_, err = svc.ApproveBill(context.Background(), apManager, 1, bill.ID, "")
	require.NoError(t, err)

	repo.periods[0].Status = periods.PeriodStatusClosed
	_, err = svc.PostBill(context.Background(), apManager, 1, bill.ID)
	require.ErrorIs(t, err, ledgershared.ErrPeriodClosed)

	got, err := svc.GetBill(context.Background(), 1, bill.ID)
	require.NoError(t, err)
	require.Equal(t, BillApproved, got.Status)
	require.Empty(t, repo.entries)
}

func TestCancelPostedBillRejected(t *testing.T) {
	svc, _ := apFixture(t)
	bill := postedBill(t, svc, 100)

	_, err := svc.CancelBill(context.Background(), apManager, 1, bill.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestPaymentAllocationMustMatchAmount(t *testing.T) {
	svc, _ := apFixture(t)
	b1 := postedBill(t, svc, 60)
	b2 := postedBill(t, svc, 50)

	// $100 payment cannot carry $110 of allocations.
	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		CompanyID: 1, CreditorID: 2, Amount: 100, CreatedBy: apClerk.ID,
		Allocations: []AllocationInput{
			{BillID: b1.ID.String(), Amount: 60},
			{BillID: b2.ID.String(), Amount: 50},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Exact coverage passes.
	payment, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		CompanyID: 1, CreditorID: 2, Amount: 110, CreatedBy: apClerk.ID,
		Allocations: []AllocationInput{
			{BillID: b1.ID.String(), Amount: 60},
			{BillID: b2.ID.String(), Amount: 50},
		},
	})
	require.NoError(t, err)
	require.Equal(t, PaymentDraft, payment.Status)
}

func TestPaymentAllocationCannotExceedBillBalance(t *testing.T) {
	svc, _ := apFixture(t)
	bill := postedBill(t, svc, 50)

	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		CompanyID: 1, CreditorID: 2, Amount: 80, CreatedBy: apClerk.ID,
		Allocations: []AllocationInput{{BillID: bill.ID.String(), Amount: 80}},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestPaymentDuplicateBillAllocationRejected(t *testing.T) {
	svc, _ := apFixture(t)
	bill := postedBill(t, svc, 100)

	_, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		CompanyID: 1, CreditorID: 2, Amount: 100, CreatedBy: apClerk.ID,
		Allocations: []AllocationInput{
			{BillID: bill.ID.String(), Amount: 50},
			{BillID: bill.ID.String(), Amount: 50},
		},
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func approvedPayment(t *testing.T, svc *Service, creditorID int64, amount float64, allocs []AllocationInput) Payment {
	t.Helper()
	payment, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		CompanyID: 1, CreditorID: creditorID, Amount: amount, CreatedBy: apClerk.ID, Allocations: allocs,
	})
	require.NoError(t, err)
	_, err = svc.SubmitPayment(context.Background(), apClerk, 1, payment.ID, "")
	require.NoError(t, err)
	approved, err := svc.ApprovePayment(context.Background(), apManager, 1, payment.ID, "")
	require.NoError(t, err)
	return approved
}

func TestProcessPaymentSettlesBills(t *testing.T) {
	svc, repo := apFixture(t)
	b1 := postedBill(t, svc, 60)
	b2 := postedBill(t, svc, 50)
	require.InDelta(t, 110.0, repo.parties[2].CurrentBalance, 0.001)

	payment := approvedPayment(t, svc, 2, 90, []AllocationInput{
		{BillID: b1.ID.String(), Amount: 60},
		{BillID: b2.ID.String(), Amount: 30},
	})

	processed, err := svc.ProcessPayment(context.Background(), apManager, 1, payment.ID)
	require.NoError(t, err)
	require.Equal(t, PaymentProcessed, processed.Status)

	require.Equal(t, BillPaid, repo.bills[b1.ID].Status)
	require.InDelta(t, 60.0, repo.bills[b1.ID].AmountPaid, 0.001)
	require.InDelta(t, 0.0, repo.bills[b1.ID].AmountDue, 0.001)
	require.Equal(t, BillPartiallyPaid, repo.bills[b2.ID].Status)
	require.InDelta(t, 30.0, repo.bills[b2.ID].AmountPaid, 0.001)
	require.InDelta(t, 20.0, repo.bills[b2.ID].AmountDue, 0.001)
	require.InDelta(t, 20.0, repo.parties[2].CurrentBalance, 0.001)

	// Bank entry posted once, balanced.
	last := repo.entries[len(repo.entries)-1]
	require.Equal(t, journals.SourcePayment, last.SourceModule)
	var debit, credit float64
	for _, l := range last.Lines {
		debit += l.Debit
		credit += l.Credit
	}
	require.InDelta(t, 90.0, debit, 0.001)
	require.InDelta(t, debit, credit, 0.001)
}

func TestProcessPaymentRequiresApproval(t *testing.T) {
	svc, _ := apFixture(t)
	bill := postedBill(t, svc, 50)
	payment, err := svc.CreatePayment(context.Background(), CreatePaymentInput{
		CompanyID: 1, CreditorID: 2, Amount: 50, CreatedBy: apClerk.ID,
		Allocations: []AllocationInput{{BillID: bill.ID.String(), Amount: 50}},
	})
	require.NoError(t, err)

	_, err = svc.ProcessPayment(context.Background(), apManager, 1, payment.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = svc.ProcessPayment(context.Background(), apClerk, 1, payment.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)
}

func TestVoidPaymentRestoresEverything(t *testing.T) {
	svc, repo := apFixture(t)
	bill := postedBill(t, svc, 80)
	payment := approvedPayment(t, svc, 2, 80, []AllocationInput{{BillID: bill.ID.String(), Amount: 80}})

	_, err := svc.ProcessPayment(context.Background(), apManager, 1, payment.ID)
	require.NoError(t, err)
	require.Equal(t, BillPaid, repo.bills[bill.ID].Status)
	require.InDelta(t, 0.0, repo.parties[2].CurrentBalance, 0.001)

	voided, err := svc.VoidPayment(context.Background(), apManager, 1, payment.ID, "wrong account")
	require.NoError(t, err)
	require.Equal(t, PaymentVoid, voided.Status)

	require.Equal(t, BillPosted, repo.bills[bill.ID].Status)
	require.InDelta(t, 0.0, repo.bills[bill.ID].AmountPaid, 0.001)
	require.InDelta(t, 80.0, repo.bills[bill.ID].AmountDue, 0.001)
	require.InDelta(t, 80.0, repo.parties[2].CurrentBalance, 0.001)

	reversal := repo.entries[len(repo.entries)-1]
	require.Equal(t, journals.SourcePayment+journals.ReversalSuffix, reversal.SourceModule)

	// A void payment cannot be voided again.
	_, err = svc.VoidPayment(context.Background(), apManager, 1, payment.ID, "")
	require.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestClearPayment(t *testing.T) {
	svc, _ := apFixture(t)
	bill := postedBill(t, svc, 40)
	payment := approvedPayment(t, svc, 2, 40, []AllocationInput{{BillID: bill.ID.String(), Amount: 40}})

	_, err := svc.ClearPayment(context.Background(), apManager, 1, payment.ID)
	require.ErrorIs(t, err, shared.ErrInvalidStatus)

	_, err = svc.ProcessPayment(context.Background(), apManager, 1, payment.ID)
	require.NoError(t, err)

	cleared, err := svc.ClearPayment(context.Background(), apManager, 1, payment.ID)
	require.NoError(t, err)
	require.Equal(t, PaymentCleared, cleared.Status)
}
