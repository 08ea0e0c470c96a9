package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID int64, id uuid.UUID) (PurchaseOrder, error)
	List(ctx context.Context, companyID int64, status OrderStatus) ([]PurchaseOrder, error)
}

type TxRepository interface {
	InsertOrder(ctx context.Context, po *PurchaseOrder) error
	GetOrderForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (PurchaseOrder, error)
	UpdateOrderStatus(ctx context.Context, companyID int64, id uuid.UUID, status OrderStatus) error
	UpdateLineReceived(ctx context.Context, lineID int64, quantityReceived float64) error
	GetPartyForUpdate(ctx context.Context, companyID, partyID int64) (party.Party, error)
}

type PGRepository struct {
	db *pgxpool.Pool
}

func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool}
}

func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &pgTxRepository{tx: tx})
	})
}

const orderColumns = `id, company_id, number, creditor_id, status, order_date, expected_date, total, memo, created_by, created_at, updated_at`

func scanOrder(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.CompanyID, &po.Number, &po.CreditorID, &po.Status, &po.OrderDate, &po.ExpectedDate,
		&po.Total, &po.Memo, &po.CreatedBy, &po.CreatedAt, &po.UpdatedAt)
	return po, err
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func orderLines(ctx context.Context, q rowQuerier, orderID uuid.UUID) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, description, quantity, unit_price, quantity_received
FROM purchase_order_lines WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var l OrderLine
		if err := rows.Scan(&l.ID, &l.OrderID, &l.Description, &l.Quantity, &l.UnitPrice, &l.QuantityReceived); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepository) Get(ctx context.Context, companyID int64, id uuid.UUID) (PurchaseOrder, error) {
	po, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("%w: purchase order %s", shared.ErrNotFound, id)
		}
		return PurchaseOrder{}, err
	}
	po.Lines, err = orderLines(ctx, r.db, id)
	return po, err
}

func (r *PGRepository) List(ctx context.Context, companyID int64, status OrderStatus) ([]PurchaseOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM purchase_orders WHERE company_id=$1`
	args := []any{companyID}
	if status != "" {
		query += ` AND status=$2`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, po)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (t *pgTxRepository) InsertOrder(ctx context.Context, po *PurchaseOrder) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO purchase_orders (id, company_id, number, creditor_id, status, order_date, expected_date, total, memo, created_by, created_at, updated_at)
VALUES ($1, $2, 'PO-' || LPAD(((SELECT COUNT(*) FROM purchase_orders WHERE company_id=$2) + 1)::text, 5, '0'), $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
RETURNING number, created_at, updated_at`,
		po.ID, po.CompanyID, po.CreditorID, string(po.Status), po.OrderDate, po.ExpectedDate, po.Total, po.Memo, po.CreatedBy).
		Scan(&po.Number, &po.CreatedAt, &po.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range po.Lines {
		line := &po.Lines[i]
		line.OrderID = po.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO purchase_order_lines (order_id, description, quantity, unit_price, quantity_received)
VALUES ($1, $2, $3, $4, 0) RETURNING id`,
			po.ID, line.Description, line.Quantity, line.UnitPrice).Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTxRepository) GetOrderForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (PurchaseOrder, error) {
	po, err := scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM purchase_orders WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseOrder{}, fmt.Errorf("%w: purchase order %s", shared.ErrNotFound, id)
		}
		return PurchaseOrder{}, err
	}
	po.Lines, err = orderLines(ctx, t.tx, id)
	return po, err
}

func (t *pgTxRepository) UpdateOrderStatus(ctx context.Context, companyID int64, id uuid.UUID, status OrderStatus) error {
	tag, err := t.tx.Exec(ctx, `UPDATE purchase_orders SET status=$3, updated_at=NOW() WHERE company_id=$1 AND id=$2`, companyID, id, string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: purchase order %s", shared.ErrNotFound, id)
	}
	return nil
}

func (t *pgTxRepository) UpdateLineReceived(ctx context.Context, lineID int64, quantityReceived float64) error {
	_, err := t.tx.Exec(ctx, `UPDATE purchase_order_lines SET quantity_received=$2 WHERE id=$1`, lineID, quantityReceived)
	return err
}

func (t *pgTxRepository) GetPartyForUpdate(ctx context.Context, companyID, partyID int64) (party.Party, error) {
	return party.GetForUpdateTx(ctx, t.tx, companyID, partyID)
}
