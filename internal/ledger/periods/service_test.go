package periods

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type memoryPeriodRepo struct {
	seq     int64
	periods map[int64]Period
}

func newMemoryPeriodRepo() *memoryPeriodRepo {
	return &memoryPeriodRepo{periods: map[int64]Period{}}
}

func (m *memoryPeriodRepo) Create(_ context.Context, period *Period) error {
	m.seq++
	period.ID = m.seq
	m.periods[period.ID] = *period
	return nil
}

func (m *memoryPeriodRepo) Get(_ context.Context, companyID, id int64) (Period, error) {
	p, ok := m.periods[id]
	if !ok || p.CompanyID != companyID {
		return Period{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryPeriodRepo) FindByDate(_ context.Context, companyID int64, date time.Time) (Period, error) {
	for _, p := range m.periods {
		if p.CompanyID == companyID && p.Contains(date) {
			return p, nil
		}
	}
	return Period{}, ledgershared.ErrNoOpenPeriod
}

func (m *memoryPeriodRepo) NextOpenAfter(_ context.Context, companyID int64, after time.Time) (Period, error) {
	var best *Period
	for _, p := range m.periods {
		if p.CompanyID != companyID || p.Status != PeriodStatusOpen || !p.StartDate.After(after) {
			continue
		}
		if best == nil || p.StartDate.Before(best.StartDate) {
			candidate := p
			best = &candidate
		}
	}
	if best == nil {
		return Period{}, ledgershared.ErrNoOpenPeriod
	}
	return *best, nil
}

func (m *memoryPeriodRepo) List(_ context.Context, companyID int64) ([]Period, error) {
	var out []Period
	for _, p := range m.periods {
		if p.CompanyID == companyID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memoryPeriodRepo) SetStatus(_ context.Context, period Period) error {
	if _, ok := m.periods[period.ID]; !ok {
		return shared.ErrNotFound
	}
	m.periods[period.ID] = period
	return nil
}

func date(y int, mo time.Month, d int) time.Time {
	return time.Date(y, mo, d, 0, 0, 0, 0, time.UTC)
}

func seedPeriod(t *testing.T, svc *Service, code string, start, end time.Time) Period {
	t.Helper()
	p, err := svc.Create(context.Background(), CreateInput{CompanyID: 1, Code: code, StartDate: start, EndDate: end})
	require.NoError(t, err)
	return p
}

func TestCreateRejectsOverlap(t *testing.T) {
	svc := NewService(newMemoryPeriodRepo())
	seedPeriod(t, svc, "2026-06", date(2026, 6, 1), date(2026, 6, 30))

	_, err := svc.Create(context.Background(), CreateInput{
		CompanyID: 1,
		Code:      "2026-06B",
		StartDate: date(2026, 6, 15),
		EndDate:   date(2026, 7, 15),
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// A window that swallows an existing period whole is just as
	// ambiguous for date resolution.
	_, err = svc.Create(context.Background(), CreateInput{
		CompanyID: 1,
		Code:      "2026-Q2",
		StartDate: date(2026, 5, 1),
		EndDate:   date(2026, 7, 31),
	})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCloseThenLockLifecycle(t *testing.T) {
	repo := newMemoryPeriodRepo()
	svc := NewService(repo)
	p := seedPeriod(t, svc, "2026-06", date(2026, 6, 1), date(2026, 6, 30))

	manager := shared.Actor{ID: 7, Role: shared.RoleManager}
	admin := shared.Actor{ID: 9, Role: shared.RoleAdmin}

	_, err := svc.Close(context.Background(), shared.Actor{ID: 1, Role: shared.RoleClerk}, 1, p.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	closed, err := svc.Close(context.Background(), manager, 1, p.ID)
	require.NoError(t, err)
	require.Equal(t, PeriodStatusClosed, closed.Status)
	require.NotNil(t, closed.ClosedAt)

	// locking is admin-only
	_, err = svc.Lock(context.Background(), manager, 1, p.ID)
	require.ErrorIs(t, err, shared.ErrForbidden)

	locked, err := svc.Lock(context.Background(), admin, 1, p.ID)
	require.NoError(t, err)
	require.Equal(t, PeriodStatusLocked, locked.Status)
	require.Equal(t, admin.ID, *locked.LockedBy)

	_, err = svc.Reopen(context.Background(), admin, 1, p.ID)
	require.ErrorIs(t, err, ledgershared.ErrPeriodLocked)
}

func TestReopenRestoresPosting(t *testing.T) {
	svc := NewService(newMemoryPeriodRepo())
	p := seedPeriod(t, svc, "2026-06", date(2026, 6, 1), date(2026, 6, 30))
	manager := shared.Actor{ID: 7, Role: shared.RoleManager}

	_, err := svc.Close(context.Background(), manager, 1, p.ID)
	require.NoError(t, err)

	_, err = svc.ResolveForPosting(context.Background(), 1, date(2026, 6, 10))
	require.ErrorIs(t, err, ledgershared.ErrPeriodClosed)

	reopened, err := svc.Reopen(context.Background(), manager, 1, p.ID)
	require.NoError(t, err)
	require.Equal(t, PeriodStatusOpen, reopened.Status)
	require.Nil(t, reopened.ClosedAt)

	resolved, err := svc.ResolveForPosting(context.Background(), 1, date(2026, 6, 10))
	require.NoError(t, err)
	require.Equal(t, p.ID, resolved.ID)
}

func TestResolveForPostingNoPeriod(t *testing.T) {
	svc := NewService(newMemoryPeriodRepo())
	_, err := svc.ResolveForPosting(context.Background(), 1, date(2026, 6, 10))
	require.ErrorIs(t, err, ledgershared.ErrNoOpenPeriod)
}
