package journals

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
)

// Repository defines journal data access.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, companyID int64) ([]JournalEntry, error)
	Get(ctx context.Context, companyID, id int64) (JournalEntry, error)
}

// TxRepository exposes operations within a transaction.
type TxRepository interface {
	GetPeriodForUpdate(ctx context.Context, companyID, periodID int64) (periods.Period, error)
	GetNextOpenPeriodAfter(ctx context.Context, companyID int64, after time.Time) (periods.Period, error)
	InsertJournalEntry(ctx context.Context, input PostingInput) (JournalEntry, error)
	LinkSource(ctx context.Context, companyID int64, module string, sourceID uuid.UUID, journalID int64) error
	GetJournalWithLines(ctx context.Context, companyID, id int64) (JournalEntry, error)
	UpdateJournalStatus(ctx context.Context, companyID, id int64, status JournalStatus) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var (
	_ Repository   = (*PGRepository)(nil)
	_ TxRepository = (*pgTxRepository)(nil)
)

type pgTxRepository struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &pgTxRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

// List returns all journal entries with their lines.
func (r *PGRepository) List(ctx context.Context, companyID int64) ([]JournalEntry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, company_id, number, period_id, date, source_module, source_id, memo, posted_by, posted_at, status, created_at, updated_at
FROM journal_entries WHERE company_id=$1 ORDER BY number DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range entries {
		lines, err := loadLines(ctx, r.pool, entries[i].ID)
		if err != nil {
			return nil, err
		}
		entries[i].Lines = lines
	}
	return entries, nil
}

// Get fetches one entry with lines.
func (r *PGRepository) Get(ctx context.Context, companyID, id int64) (JournalEntry, error) {
	return getJournalWithLines(ctx, r.pool, companyID, id)
}

func (t *pgTxRepository) GetPeriodForUpdate(ctx context.Context, companyID, periodID int64) (periods.Period, error) {
	return GetPeriodForUpdateTx(ctx, t.tx, companyID, periodID)
}

func (t *pgTxRepository) GetNextOpenPeriodAfter(ctx context.Context, companyID int64, after time.Time) (periods.Period, error) {
	return GetNextOpenPeriodTx(ctx, t.tx, companyID, after)
}

func (t *pgTxRepository) InsertJournalEntry(ctx context.Context, input PostingInput) (JournalEntry, error) {
	return InsertEntryTx(ctx, t.tx, input)
}

func (t *pgTxRepository) LinkSource(ctx context.Context, companyID int64, module string, sourceID uuid.UUID, journalID int64) error {
	return LinkSourceTx(ctx, t.tx, companyID, module, sourceID, journalID)
}

func (t *pgTxRepository) GetJournalWithLines(ctx context.Context, companyID, id int64) (JournalEntry, error) {
	return getJournalWithLines(ctx, t.tx, companyID, id)
}

func (t *pgTxRepository) UpdateJournalStatus(ctx context.Context, companyID, id int64, status JournalStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE journal_entries SET status=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ledgershared.ErrJournalNotFound
	}
	return nil
}

// querier is satisfied by both pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var e JournalEntry
	var status string
	if err := row.Scan(&e.ID, &e.CompanyID, &e.Number, &e.PeriodID, &e.Date, &e.SourceModule, &e.SourceID, &e.Memo, &e.PostedBy, &e.PostedAt, &status, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return JournalEntry{}, err
	}
	e.Status = JournalStatus(status)
	return e, nil
}

func loadLines(ctx context.Context, q querier, journalID int64) ([]JournalLine, error) {
	rows, err := q.Query(ctx, `SELECT id, journal_id, account_id, debit, credit, created_at, updated_at
FROM journal_lines WHERE journal_id=$1 ORDER BY id`, journalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var l JournalLine
		if err := rows.Scan(&l.ID, &l.JournalID, &l.AccountID, &l.Debit, &l.Credit, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}

func getJournalWithLines(ctx context.Context, q querier, companyID, id int64) (JournalEntry, error) {
	row := q.QueryRow(ctx, `SELECT id, company_id, number, period_id, date, source_module, source_id, memo, posted_by, posted_at, status, created_at, updated_at
FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, id)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, ledgershared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	lines, err := loadLines(ctx, q, id)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.Lines = lines
	return entry, nil
}

// GetPeriodForUpdateTx row-locks the fiscal period inside the transaction.
func GetPeriodForUpdateTx(ctx context.Context, tx pgx.Tx, companyID, periodID int64) (periods.Period, error) {
	var p periods.Period
	var status string
	err := tx.QueryRow(ctx, `SELECT id, company_id, code, start_date, end_date, status, closed_at, locked_by, created_at, updated_at
FROM fiscal_periods WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, periodID).
		Scan(&p.ID, &p.CompanyID, &p.Code, &p.StartDate, &p.EndDate, &status, &p.ClosedAt, &p.LockedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, ledgershared.ErrNoOpenPeriod
		}
		return periods.Period{}, err
	}
	p.Status = periods.PeriodStatus(status)
	return p, nil
}

// GetPeriodForDateTx resolves and row-locks the period covering a date.
func GetPeriodForDateTx(ctx context.Context, tx pgx.Tx, companyID int64, date time.Time) (periods.Period, error) {
	var p periods.Period
	var status string
	err := tx.QueryRow(ctx, `SELECT id, company_id, code, start_date, end_date, status, closed_at, locked_by, created_at, updated_at
FROM fiscal_periods WHERE company_id=$1 AND start_date <= $2 AND end_date >= $2 FOR UPDATE`, companyID, date).
		Scan(&p.ID, &p.CompanyID, &p.Code, &p.StartDate, &p.EndDate, &status, &p.ClosedAt, &p.LockedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, ledgershared.ErrNoOpenPeriod
		}
		return periods.Period{}, err
	}
	p.Status = periods.PeriodStatus(status)
	return p, nil
}

// GetNextOpenPeriodTx returns the first open period starting after a date.
func GetNextOpenPeriodTx(ctx context.Context, tx pgx.Tx, companyID int64, after time.Time) (periods.Period, error) {
	var p periods.Period
	var status string
	err := tx.QueryRow(ctx, `SELECT id, company_id, code, start_date, end_date, status, closed_at, locked_by, created_at, updated_at
FROM fiscal_periods WHERE company_id=$1 AND start_date > $2 AND status='OPEN' ORDER BY start_date LIMIT 1`, companyID, after).
		Scan(&p.ID, &p.CompanyID, &p.Code, &p.StartDate, &p.EndDate, &status, &p.ClosedAt, &p.LockedBy, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.Period{}, ledgershared.ErrNoOpenPeriod
		}
		return periods.Period{}, err
	}
	p.Status = periods.PeriodStatus(status)
	return p, nil
}

// InsertEntryTx inserts a journal entry with its lines. Exported so sibling
// repositories (AR, AP) can post journals inside their own transactions.
func InsertEntryTx(ctx context.Context, tx pgx.Tx, input PostingInput) (JournalEntry, error) {
	var entry JournalEntry
	err := tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, number, period_id, date, source_module, source_id, memo, posted_by, posted_at, status, created_at, updated_at)
VALUES ($1, (SELECT COALESCE(MAX(number), 0) + 1 FROM journal_entries WHERE company_id=$1), $2, $3, $4, $5, $6, $7, NOW(), 'POSTED', NOW(), NOW())
RETURNING id, number, posted_at, created_at, updated_at`,
		input.CompanyID, input.PeriodID, input.Date, input.SourceModule, input.SourceID, input.Memo, input.PostedBy).
		Scan(&entry.ID, &entry.Number, &entry.PostedAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return JournalEntry{}, err
	}
	entry.CompanyID = input.CompanyID
	entry.PeriodID = input.PeriodID
	entry.Date = input.Date
	entry.SourceModule = input.SourceModule
	entry.SourceID = input.SourceID
	entry.Memo = input.Memo
	entry.PostedBy = input.PostedBy
	entry.Status = JournalStatusPosted

	for _, line := range input.Lines {
		var l JournalLine
		err := tx.QueryRow(ctx, `INSERT INTO journal_lines (journal_id, account_id, debit, credit, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id, created_at, updated_at`,
			entry.ID, line.AccountID, line.Debit, line.Credit).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
		if err != nil {
			return JournalEntry{}, err
		}
		l.JournalID = entry.ID
		l.AccountID = line.AccountID
		l.Debit = line.Debit
		l.Credit = line.Credit
		entry.Lines = append(entry.Lines, l)
	}
	return entry, nil
}

// LinkSourceTx records the unique (company, module, source) -> journal link.
// A unique violation means the source document was already posted.
func LinkSourceTx(ctx context.Context, tx pgx.Tx, companyID int64, module string, sourceID uuid.UUID, journalID int64) error {
	_, err := tx.Exec(ctx, `INSERT INTO journal_sources (company_id, source_module, source_id, journal_id, created_at)
VALUES ($1, $2, $3, $4, NOW())`, companyID, module, sourceID, journalID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s %s", ledgershared.ErrSourceAlreadyLinked, module, sourceID)
		}
		return err
	}
	return nil
}
