package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/shared"
)

// Repository defines chart of accounts data access.
type Repository interface {
	Create(ctx context.Context, input CreateAccountInput, normal NormalBalance) (Account, error)
	Get(ctx context.Context, companyID, id int64) (Account, error)
	GetByCode(ctx context.Context, companyID int64, code string) (Account, error)
	List(ctx context.Context, companyID int64) ([]Account, error)
	SetActive(ctx context.Context, companyID, id int64, active bool) error
	HasPostings(ctx context.Context, companyID, id int64) (bool, error)
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

const accountColumns = `id, company_id, code, name, type, normal_balance, parent_id, is_active, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var a Account
	var typ, normal string
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &typ, &normal, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	a.Type = AccountType(typ)
	a.NormalBalance = NormalBalance(normal)
	return a, nil
}

// Create inserts a new account.
func (r *PGRepository) Create(ctx context.Context, input CreateAccountInput, normal NormalBalance) (Account, error) {
	row := r.pool.QueryRow(ctx, `INSERT INTO accounts (company_id, code, name, type, normal_balance, parent_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, TRUE, NOW(), NOW()) RETURNING `+accountColumns,
		input.CompanyID, input.Code, input.Name, string(input.Type), string(normal), input.ParentID)
	account, err := scanAccount(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, fmt.Errorf("%w: account code %q already exists", shared.ErrValidation, input.Code)
		}
		return Account{}, err
	}
	return account, nil
}

// Get fetches one account by id.
func (r *PGRepository) Get(ctx context.Context, companyID, id int64) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND id=$2`, companyID, id)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("account %d: %w", id, shared.ErrNotFound)
		}
		return Account{}, err
	}
	return account, nil
}

// GetByCode fetches one account by its code.
func (r *PGRepository) GetByCode(ctx context.Context, companyID int64, code string) (Account, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2`, companyID, code)
	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, fmt.Errorf("account code %q: %w", code, shared.ErrNotFound)
		}
		return Account{}, err
	}
	return account, nil
}

// List returns all accounts for a tenant ordered by code.
func (r *PGRepository) List(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Account
	for rows.Next() {
		account, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, account)
	}
	return out, rows.Err()
}

// SetActive toggles the active flag.
func (r *PGRepository) SetActive(ctx context.Context, companyID, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE accounts SET is_active=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("account %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// HasPostings reports whether any journal line references the account.
func (r *PGRepository) HasPostings(ctx context.Context, companyID, id int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (
SELECT 1 FROM journal_lines jl JOIN journal_entries je ON je.id = jl.journal_id
WHERE je.company_id=$1 AND jl.account_id=$2)`, companyID, id).Scan(&exists)
	return exists, err
}
