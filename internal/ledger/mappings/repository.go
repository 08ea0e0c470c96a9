package mappings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
)

type Repository interface {
	Get(ctx context.Context, companyID int64, key MappingKey) (AccountMapping, error)
	List(ctx context.Context, companyID int64) ([]AccountMapping, error)
	Set(ctx context.Context, companyID int64, key MappingKey, accountID int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, companyID int64, key MappingKey) (AccountMapping, error) {
	if key == "" {
		return AccountMapping{}, errors.New("ledger: mapping key required")
	}
	var mapping AccountMapping
	err := r.db.QueryRow(ctx, `SELECT company_id, key, account_id, created_at, updated_at FROM account_mappings WHERE company_id=$1 AND key=$2`, companyID, string(key)).
		Scan(&mapping.CompanyID, &mapping.Key, &mapping.AccountID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, fmt.Errorf("%w: %s", ledgershared.ErrMappingNotFound, key)
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

// List returns every configured mapping for a tenant.
func (r *repository) List(ctx context.Context, companyID int64) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT company_id, key, account_id, created_at, updated_at FROM account_mappings WHERE company_id=$1 ORDER BY key`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.CompanyID, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Set upserts a mapping.
func (r *repository) Set(ctx context.Context, companyID int64, key MappingKey, accountID int64) error {
	if key == "" {
		return errors.New("ledger: mapping key required")
	}
	_, err := r.db.Exec(ctx, `INSERT INTO account_mappings (company_id, key, account_id, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW())
ON CONFLICT (company_id, key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()`, companyID, string(key), accountID)
	return err
}
