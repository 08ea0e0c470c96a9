package party

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/shared"
)

type Repository interface {
	Create(ctx context.Context, input CreateInput) (Party, error)
	Get(ctx context.Context, companyID, id int64) (Party, error)
	List(ctx context.Context, companyID int64, partyType PartyType) ([]Party, error)
	SetStatus(ctx context.Context, companyID, id int64, status PartyStatus) error
	OpenItems(ctx context.Context, companyID, partyID int64) ([]OpenItem, error)
}

type PGRepository struct {
	db *pgxpool.Pool
}

func NewPGRepository(db *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: db}
}

const partyColumns = `id, company_id, code, name, type, status, email, payment_terms_days, current_balance, created_at, updated_at`

func scanParty(row pgx.Row) (Party, error) {
	var p Party
	err := row.Scan(&p.ID, &p.CompanyID, &p.Code, &p.Name, &p.Type, &p.Status, &p.Email, &p.PaymentTerms, &p.CurrentBalance, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PGRepository) Create(ctx context.Context, input CreateInput) (Party, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO parties (company_id, code, name, type, status, email, payment_terms_days, current_balance, created_at, updated_at)
VALUES ($1, $2, $3, $4, 'ACTIVE', $5, $6, 0, NOW(), NOW())
RETURNING `+partyColumns,
		input.CompanyID, input.Code, input.Name, string(input.Type), input.Email, input.PaymentTerms)
	p, err := scanParty(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Party{}, fmt.Errorf("%w: party code %q already exists", shared.ErrValidation, input.Code)
		}
		return Party{}, err
	}
	return p, nil
}

func (r *PGRepository) Get(ctx context.Context, companyID, id int64) (Party, error) {
	row := r.db.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE company_id=$1 AND id=$2`, companyID, id)
	p, err := scanParty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, fmt.Errorf("%w: party %d", shared.ErrNotFound, id)
	}
	return p, err
}

func (r *PGRepository) List(ctx context.Context, companyID int64, partyType PartyType) ([]Party, error) {
	query := `SELECT ` + partyColumns + ` FROM parties WHERE company_id=$1`
	args := []any{companyID}
	if partyType != "" {
		query += ` AND type=$2`
		args = append(args, string(partyType))
	}
	query += ` ORDER BY code`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Party
	for rows.Next() {
		p, err := scanParty(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PGRepository) SetStatus(ctx context.Context, companyID, id int64, status PartyStatus) error {
	tag, err := r.db.Exec(ctx, `UPDATE parties SET status=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: party %d", shared.ErrNotFound, id)
	}
	return nil
}

// OpenItems collects unpaid invoices (debtors) or posted-but-unpaid
// bills (creditors) with their due dates, for aging.
func (r *PGRepository) OpenItems(ctx context.Context, companyID, partyID int64) ([]OpenItem, error) {
	p, err := r.Get(ctx, companyID, partyID)
	if err != nil {
		return nil, err
	}
	var query string
	if p.Type == TypeDebtor {
		query = `SELECT id::text, number, due_date, amount_due FROM invoices
WHERE company_id=$1 AND debtor_id=$2 AND status IN ('SENT','PARTIALLY_PAID') AND amount_due > 0`
	} else {
		query = `SELECT id::text, number, due_date, amount_due FROM vendor_bills
WHERE company_id=$1 AND creditor_id=$2 AND status IN ('POSTED','PARTIALLY_PAID') AND amount_due > 0`
	}
	rows, err := r.db.Query(ctx, query, companyID, partyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OpenItem
	for rows.Next() {
		var item OpenItem
		if err := rows.Scan(&item.DocumentID, &item.DocNumber, &item.DueDate, &item.AmountDue); err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetForUpdateTx locks a party row for balance mutation inside an
// already-open transaction. Exported for document repositories that
// post documents and adjust balances atomically.
func GetForUpdateTx(ctx context.Context, tx pgx.Tx, companyID, id int64) (Party, error) {
	row := tx.QueryRow(ctx, `SELECT `+partyColumns+` FROM parties WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id)
	p, err := scanParty(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Party{}, fmt.Errorf("%w: party %d", shared.ErrNotFound, id)
	}
	return p, err
}

// AdjustBalanceTx shifts a party's running balance by delta inside an
// already-open transaction. Positive delta raises the outstanding
// amount, negative lowers it.
func AdjustBalanceTx(ctx context.Context, tx pgx.Tx, companyID, id int64, delta float64) error {
	tag, err := tx.Exec(ctx, `UPDATE parties SET current_balance = current_balance + $3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, id, delta)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: party %d", shared.ErrNotFound, id)
	}
	return nil
}

// RefreshUpdatedAt is used by the aging job to mark a party as
// recomputed without touching its balance.
func RefreshUpdatedAt(ctx context.Context, db *pgxpool.Pool, companyID, id int64, at time.Time) error {
	_, err := db.Exec(ctx, `UPDATE parties SET updated_at=$3 WHERE company_id=$1 AND id=$2`, companyID, id, at)
	return err
}
