package party

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryPartyRepo struct {
	parties map[int64]Party
	items   map[int64][]OpenItem
	nextID  int64
}

func newMemoryPartyRepo() *memoryPartyRepo {
	return &memoryPartyRepo{parties: make(map[int64]Party), items: make(map[int64][]OpenItem)}
}

func (r *memoryPartyRepo) Create(ctx context.Context, input CreateInput) (Party, error) {
	for _, p := range r.parties {
		if p.CompanyID == input.CompanyID && p.Code == input.Code {
			return Party{}, fmt.Errorf("%w: party code %q already exists", shared.ErrValidation, input.Code)
		}
	}
	r.nextID++
	p := Party{
		ID:           r.nextID,
		CompanyID:    input.CompanyID,
		Code:         input.Code,
		Name:         input.Name,
		Type:         input.Type,
		Status:       StatusActive,
		Email:        input.Email,
		PaymentTerms: input.PaymentTerms,
	}
	r.parties[p.ID] = p
	return p, nil
}

func (r *memoryPartyRepo) Get(ctx context.Context, companyID, id int64) (Party, error) {
	p, ok := r.parties[id]
	if !ok || p.CompanyID != companyID {
		return Party{}, fmt.Errorf("%w: party %d", shared.ErrNotFound, id)
	}
	return p, nil
}

func (r *memoryPartyRepo) List(ctx context.Context, companyID int64, partyType PartyType) ([]Party, error) {
	var out []Party
	for _, p := range r.parties {
		if p.CompanyID != companyID {
			continue
		}
		if partyType != "" && p.Type != partyType {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (r *memoryPartyRepo) SetStatus(ctx context.Context, companyID, id int64, status PartyStatus) error {
	p, err := r.Get(ctx, companyID, id)
	if err != nil {
		return err
	}
	p.Status = status
	r.parties[id] = p
	return nil
}

func (r *memoryPartyRepo) OpenItems(ctx context.Context, companyID, partyID int64) ([]OpenItem, error) {
	if _, err := r.Get(ctx, companyID, partyID); err != nil {
		return nil, err
	}
	return r.items[partyID], nil
}

func TestCreateDefaultsPaymentTerms(t *testing.T) {
	svc := NewService(newMemoryPartyRepo(), nil)
	p, err := svc.Create(context.Background(), CreateInput{CompanyID: 1, Code: "CUST-1", Name: "Acme", Type: TypeDebtor})
	require.NoError(t, err)
	require.Equal(t, 30, p.PaymentTerms)
	require.Equal(t, StatusActive, p.Status)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc := NewService(newMemoryPartyRepo(), nil)

	_, err := svc.Create(context.Background(), CreateInput{CompanyID: 1, Code: " ", Name: "Acme", Type: TypeDebtor})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), CreateInput{CompanyID: 1, Code: "X", Name: "Acme", Type: "SUPPLIER"})
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = svc.Create(context.Background(), CreateInput{CompanyID: 1, Code: "X", Name: "Acme", Type: TypeDebtor, PaymentTerms: -5})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestBlockRequiresApprover(t *testing.T) {
	repo := newMemoryPartyRepo()
	svc := NewService(repo, nil)
	p, err := svc.Create(context.Background(), CreateInput{CompanyID: 1, Code: "V-1", Name: "Paper Co", Type: TypeCreditor})
	require.NoError(t, err)

	clerk := shared.Actor{ID: 1, Role: shared.RoleClerk}
	err = svc.SetStatus(context.Background(), clerk, 1, p.ID, StatusBlocked)
	require.ErrorIs(t, err, shared.ErrForbidden)

	manager := shared.Actor{ID: 2, Role: shared.RoleManager}
	require.NoError(t, svc.SetStatus(context.Background(), manager, 1, p.ID, StatusBlocked))

	got, err := svc.Get(context.Background(), 1, p.ID)
	require.NoError(t, err)
	require.Equal(t, StatusBlocked, got.Status)
	require.ErrorIs(t, EnsureTradable(got), shared.ErrPartyBlocked)
}

func TestAgingBucketsByDueDate(t *testing.T) {
	repo := newMemoryPartyRepo()
	svc := NewService(repo, nil)
	p, err := svc.Create(context.Background(), CreateInput{CompanyID: 1, Code: "CUST-2", Name: "Globex", Type: TypeDebtor})
	require.NoError(t, err)

	asOf := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	repo.items[p.ID] = []OpenItem{
		{DocNumber: "INV-1", DueDate: asOf.AddDate(0, 0, 10), AmountDue: 100},  // not due yet
		{DocNumber: "INV-2", DueDate: asOf.AddDate(0, 0, -15), AmountDue: 200}, // 15 days late
		{DocNumber: "INV-3", DueDate: asOf.AddDate(0, 0, -45), AmountDue: 300}, // 45 days late
		{DocNumber: "INV-4", DueDate: asOf.AddDate(0, 0, -75), AmountDue: 400}, // 75 days late
		{DocNumber: "INV-5", DueDate: asOf.AddDate(0, 0, -120), AmountDue: 500},
	}

	report, err := svc.Aging(context.Background(), 1, p.ID, asOf)
	require.NoError(t, err)
	require.InDelta(t, 100.0, report.Current, 0.001)
	require.InDelta(t, 200.0, report.Days1To30, 0.001)
	require.InDelta(t, 300.0, report.Days31To60, 0.001)
	require.InDelta(t, 400.0, report.Days61To90, 0.001)
	require.InDelta(t, 500.0, report.Over90, 0.001)
	require.InDelta(t, 1500.0, report.Total, 0.001)
}

func TestAgingDueTodayIsCurrent(t *testing.T) {
	asOf := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)
	report := BucketItems(1, asOf, []OpenItem{{DueDate: asOf, AmountDue: 50}})
	require.InDelta(t, 50.0, report.Current, 0.001)
}
