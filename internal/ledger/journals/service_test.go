package journals

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type sourceKey struct {
	companyID int64
	module    string
	sourceID  uuid.UUID
}

type memoryJournalRepo struct {
	periods map[int64]periods.Period
	entries map[int64]JournalEntry
	sources map[sourceKey]int64
	nextID  int64
}

type memoryJournalTx struct {
	repo *memoryJournalRepo
}

func newMemoryJournalRepo() *memoryJournalRepo {
	return &memoryJournalRepo{
		periods: make(map[int64]periods.Period),
		entries: make(map[int64]JournalEntry),
		sources: make(map[sourceKey]int64),
	}
}

func (r *memoryJournalRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryJournalTx{repo: r})
}

func (r *memoryJournalRepo) List(ctx context.Context, companyID int64) ([]JournalEntry, error) {
	var out []JournalEntry
	for _, e := range r.entries {
		if e.CompanyID == companyID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number > out[j].Number })
	return out, nil
}

func (r *memoryJournalRepo) Get(ctx context.Context, companyID, id int64) (JournalEntry, error) {
	e, ok := r.entries[id]
	if !ok || e.CompanyID != companyID {
		return JournalEntry{}, ledgershared.ErrJournalNotFound
	}
	return e, nil
}

func (t *memoryJournalTx) GetPeriodForUpdate(ctx context.Context, companyID, periodID int64) (periods.Period, error) {
	p, ok := t.repo.periods[periodID]
	if !ok || p.CompanyID != companyID {
		return periods.Period{}, ledgershared.ErrNoOpenPeriod
	}
	return p, nil
}

func (t *memoryJournalTx) GetNextOpenPeriodAfter(ctx context.Context, companyID int64, after time.Time) (periods.Period, error) {
	var best *periods.Period
	for _, p := range t.repo.periods {
		p := p
		if p.CompanyID != companyID || p.Status != periods.PeriodStatusOpen || !p.StartDate.After(after) {
			continue
		}
		if best == nil || p.StartDate.Before(best.StartDate) {
			best = &p
		}
	}
	if best == nil {
		return periods.Period{}, ledgershared.ErrNoOpenPeriod
	}
	return *best, nil
}

func (t *memoryJournalTx) InsertJournalEntry(ctx context.Context, input PostingInput) (JournalEntry, error) {
	t.repo.nextID++
	entry := JournalEntry{
		ID:           t.repo.nextID,
		CompanyID:    input.CompanyID,
		Number:       t.repo.nextID,
		PeriodID:     input.PeriodID,
		Date:         input.Date,
		SourceModule: input.SourceModule,
		SourceID:     input.SourceID,
		Memo:         input.Memo,
		PostedBy:     input.PostedBy,
		PostedAt:     time.Now(),
		Status:       JournalStatusPosted,
	}
	for _, line := range input.Lines {
		entry.Lines = append(entry.Lines, JournalLine{
			JournalID: entry.ID,
			AccountID: line.AccountID,
			Debit:     line.Debit,
			Credit:    line.Credit,
		})
	}
	t.repo.entries[entry.ID] = entry
	return entry, nil
}

func (t *memoryJournalTx) LinkSource(ctx context.Context, companyID int64, module string, sourceID uuid.UUID, journalID int64) error {
	key := sourceKey{companyID: companyID, module: module, sourceID: sourceID}
	if _, exists := t.repo.sources[key]; exists {
		// Mimic the rollback a real transaction performs on conflict.
		delete(t.repo.entries, journalID)
		return fmt.Errorf("%w: %s %s", ledgershared.ErrSourceAlreadyLinked, module, sourceID)
	}
	t.repo.sources[key] = journalID
	return nil
}

func (t *memoryJournalTx) GetJournalWithLines(ctx context.Context, companyID, id int64) (JournalEntry, error) {
	return t.repo.Get(ctx, companyID, id)
}

func (t *memoryJournalTx) UpdateJournalStatus(ctx context.Context, companyID, id int64, status JournalStatus) error {
	e, ok := t.repo.entries[id]
	if !ok || e.CompanyID != companyID {
		return ledgershared.ErrJournalNotFound
	}
	e.Status = status
	t.repo.entries[id] = e
	return nil
}

var manager = shared.Actor{ID: 7, Role: shared.RoleManager}

func openPeriod(repo *memoryJournalRepo, id int64, status periods.PeriodStatus) periods.Period {
	p := periods.Period{
		ID:        id,
		CompanyID: 1,
		Code:      fmt.Sprintf("2026-%02d", id),
		StartDate: time.Date(2026, time.Month(id), 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2026, time.Month(id), 28, 0, 0, 0, 0, time.UTC),
		Status:    status,
	}
	repo.periods[id] = p
	return p
}

func balancedInput(periodID int64, date time.Time) PostingInput {
	return PostingInput{
		CompanyID:    1,
		PeriodID:     periodID,
		Date:         date,
		SourceModule: SourceManual,
		SourceID:     uuid.New(),
		PostedBy:     manager.ID,
		Lines: []PostingLineInput{
			{AccountID: 10, Debit: 230},
			{AccountID: 40, Credit: 200},
			{AccountID: 21, Credit: 30},
		},
	}
}

func TestPostingInputValidate(t *testing.T) {
	in := balancedInput(1, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	require.NoError(t, in.Validate())

	unbalanced := in
	unbalanced.Lines = []PostingLineInput{{AccountID: 10, Debit: 100}, {AccountID: 40, Credit: 99}}
	require.ErrorIs(t, unbalanced.Validate(), ledgershared.ErrUnbalanced)

	short := in
	short.Lines = in.Lines[:1]
	require.ErrorIs(t, short.Validate(), ledgershared.ErrTooFewLines)

	both := in
	both.Lines = []PostingLineInput{{AccountID: 10, Debit: 50, Credit: 50}, {AccountID: 40, Credit: 0}}
	require.Error(t, both.Validate())

	negative := in
	negative.Lines = []PostingLineInput{{AccountID: 10, Debit: -5}, {AccountID: 40, Credit: -5}}
	require.Error(t, negative.Validate())
}

func TestPostJournalHappyPath(t *testing.T) {
	repo := newMemoryJournalRepo()
	openPeriod(repo, 1, periods.PeriodStatusOpen)
	svc := NewService(repo, nil)

	entry, err := svc.PostJournal(context.Background(), manager, balancedInput(1, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, JournalStatusPosted, entry.Status)
	debit, credit := entry.Totals()
	require.InDelta(t, debit, credit, 0.001)
	require.InDelta(t, 230.0, debit, 0.001)
}

func TestPostJournalRequiresElevatedRole(t *testing.T) {
	repo := newMemoryJournalRepo()
	openPeriod(repo, 1, periods.PeriodStatusOpen)
	svc := NewService(repo, nil)

	clerk := shared.Actor{ID: 2, Role: shared.RoleClerk}
	_, err := svc.PostJournal(context.Background(), clerk, balancedInput(1, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Empty(t, repo.entries)
}

func TestPostJournalClosedPeriod(t *testing.T) {
	repo := newMemoryJournalRepo()
	openPeriod(repo, 2, periods.PeriodStatusClosed)
	svc := NewService(repo, nil)

	_, err := svc.PostJournal(context.Background(), manager, balancedInput(2, time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)))
	require.ErrorIs(t, err, ledgershared.ErrPeriodClosed)
	require.Empty(t, repo.entries)
}

func TestPostJournalDateOutsidePeriod(t *testing.T) {
	repo := newMemoryJournalRepo()
	openPeriod(repo, 1, periods.PeriodStatusOpen)
	svc := NewService(repo, nil)

	_, err := svc.PostJournal(context.Background(), manager, balancedInput(1, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)))
	require.ErrorIs(t, err, ledgershared.ErrDateOutOfRange)
}

func TestPostJournalSameSourceTwice(t *testing.T) {
	repo := newMemoryJournalRepo()
	openPeriod(repo, 1, periods.PeriodStatusOpen)
	svc := NewService(repo, nil)

	input := balancedInput(1, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC))
	_, err := svc.PostJournal(context.Background(), manager, input)
	require.NoError(t, err)

	_, err = svc.PostJournal(context.Background(), manager, input)
	require.ErrorIs(t, err, ledgershared.ErrSourceAlreadyLinked)
	require.Len(t, repo.entries, 1, "double posting must leave exactly one entry")
}

func TestVoidJournal(t *testing.T) {
	repo := newMemoryJournalRepo()
	openPeriod(repo, 1, periods.PeriodStatusOpen)
	svc := NewService(repo, nil)

	entry, err := svc.PostJournal(context.Background(), manager, balancedInput(1, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	voided, err := svc.VoidJournal(context.Background(), manager, VoidInput{CompanyID: 1, EntryID: entry.ID, ActorID: manager.ID, Reason: "entered twice"})
	require.NoError(t, err)
	require.Equal(t, JournalStatusVoid, voided.Status)

	_, err = svc.VoidJournal(context.Background(), manager, VoidInput{CompanyID: 1, EntryID: entry.ID, ActorID: manager.ID})
	require.ErrorIs(t, err, ledgershared.ErrInvalidStatus)
}

func TestReverseJournalNegatesOriginal(t *testing.T) {
	repo := newMemoryJournalRepo()
	openPeriod(repo, 1, periods.PeriodStatusOpen)
	svc := NewService(repo, nil)

	entry, err := svc.PostJournal(context.Background(), manager, balancedInput(1, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	reversal, err := svc.ReverseJournal(context.Background(), manager, ReverseInput{CompanyID: 1, EntryID: entry.ID, ActorID: manager.ID})
	require.NoError(t, err)
	require.Equal(t, entry.SourceModule+ReversalSuffix, reversal.SourceModule)

	require.Len(t, reversal.Lines, len(entry.Lines))
	for i, line := range reversal.Lines {
		require.InDelta(t, entry.Lines[i].Credit, line.Debit, 0.001)
		require.InDelta(t, entry.Lines[i].Debit, line.Credit, 0.001)
	}
}

func TestReverseJournalLandsInNextOpenPeriod(t *testing.T) {
	repo := newMemoryJournalRepo()
	openPeriod(repo, 1, periods.PeriodStatusOpen)
	svc := NewService(repo, nil)

	entry, err := svc.PostJournal(context.Background(), manager, balancedInput(1, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)

	// Close January, open February.
	jan := repo.periods[1]
	jan.Status = periods.PeriodStatusClosed
	repo.periods[1] = jan
	feb := openPeriod(repo, 2, periods.PeriodStatusOpen)

	reversal, err := svc.ReverseJournal(context.Background(), manager, ReverseInput{CompanyID: 1, EntryID: entry.ID, ActorID: manager.ID})
	require.NoError(t, err)
	require.Equal(t, feb.ID, reversal.PeriodID)
	require.Equal(t, feb.StartDate, reversal.Date)
}
