package periods

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository defines fiscal period data access.
type Repository interface {
	Create(ctx context.Context, period *Period) error
	Get(ctx context.Context, companyID, id int64) (Period, error)
	FindByDate(ctx context.Context, companyID int64, date time.Time) (Period, error)
	NextOpenAfter(ctx context.Context, companyID int64, after time.Time) (Period, error)
	List(ctx context.Context, companyID int64) ([]Period, error)
	SetStatus(ctx context.Context, period Period) error
}

// PGRepository provides PostgreSQL backed persistence.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

var _ Repository = (*PGRepository)(nil)

const periodColumns = `id, company_id, code, start_date, end_date, status, closed_at, locked_by, created_at, updated_at`

func scanPeriod(row pgx.Row) (Period, error) {
	var p Period
	var status string
	if err := row.Scan(&p.ID, &p.CompanyID, &p.Code, &p.StartDate, &p.EndDate, &status, &p.ClosedAt, &p.LockedBy, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return Period{}, err
	}
	p.Status = PeriodStatus(status)
	return p, nil
}

// Create inserts a period and backfills generated fields.
func (r *PGRepository) Create(ctx context.Context, period *Period) error {
	row := r.pool.QueryRow(ctx, `INSERT INTO fiscal_periods (company_id, code, start_date, end_date, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
RETURNING id, created_at, updated_at`,
		period.CompanyID, period.Code, period.StartDate, period.EndDate, string(period.Status))
	return row.Scan(&period.ID, &period.CreatedAt, &period.UpdatedAt)
}

// Get returns a single period by id.
func (r *PGRepository) Get(ctx context.Context, companyID, id int64) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE company_id=$1 AND id=$2`, companyID, id)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, shared.ErrNotFound
		}
		return Period{}, err
	}
	return p, nil
}

// FindByDate resolves the period covering a date regardless of status.
func (r *PGRepository) FindByDate(ctx context.Context, companyID int64, date time.Time) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE company_id=$1 AND start_date <= $2 AND end_date >= $2`, companyID, date)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ledgershared.ErrNoOpenPeriod
		}
		return Period{}, err
	}
	return p, nil
}

// NextOpenAfter returns the first open period starting after the given date.
func (r *PGRepository) NextOpenAfter(ctx context.Context, companyID int64, after time.Time) (Period, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+periodColumns+` FROM fiscal_periods
WHERE company_id=$1 AND start_date > $2 AND status='OPEN' ORDER BY start_date LIMIT 1`, companyID, after)
	p, err := scanPeriod(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Period{}, ledgershared.ErrNoOpenPeriod
		}
		return Period{}, err
	}
	return p, nil
}

// List returns all periods for a tenant.
func (r *PGRepository) List(ctx context.Context, companyID int64) ([]Period, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+periodColumns+` FROM fiscal_periods WHERE company_id=$1 ORDER BY start_date`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Period
	for rows.Next() {
		p, err := scanPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SetStatus persists a status transition along with its audit columns.
func (r *PGRepository) SetStatus(ctx context.Context, period Period) error {
	tag, err := r.pool.Exec(ctx, `UPDATE fiscal_periods SET status=$3, closed_at=$4, locked_by=$5, updated_at=NOW()
WHERE company_id=$1 AND id=$2`,
		period.CompanyID, period.ID, string(period.Status), period.ClosedAt, period.LockedBy)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
