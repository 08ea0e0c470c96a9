package ar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerline/ledgerline/internal/ledger/journals"
	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/platform/db"
	"github.com/ledgerline/ledgerline/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, companyID int64, id uuid.UUID) (Invoice, error)
	List(ctx context.Context, companyID int64, status InvoiceStatus) ([]Invoice, error)
	ListReceipts(ctx context.Context, companyID int64, invoiceID uuid.UUID) ([]Receipt, error)
}

// TxRepository bundles every mutation a single invoice operation needs,
// so document state, party balance and journal posting commit or roll
// back together.
type TxRepository interface {
	InsertInvoice(ctx context.Context, inv *Invoice) error
	GetInvoiceForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Invoice, error)
	UpdateInvoice(ctx context.Context, inv Invoice) error
	InsertReceipt(ctx context.Context, rc Receipt) error
	GetPartyForUpdate(ctx context.Context, companyID, partyID int64) (party.Party, error)
	AdjustPartyBalance(ctx context.Context, companyID, partyID int64, delta float64) error
	ResolvePostingPeriod(ctx context.Context, companyID int64, date time.Time) (periods.Period, error)
	PostEntry(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error)
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

const invoiceColumns = `id, company_id, number, debtor_id, status, issue_date, due_date, subtotal, tax_amount, total, amount_due, memo, journal_entry_id, created_by, created_at, updated_at`

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	err := row.Scan(&inv.ID, &inv.CompanyID, &inv.Number, &inv.DebtorID, &inv.Status, &inv.IssueDate, &inv.DueDate,
		&inv.Subtotal, &inv.TaxAmount, &inv.Total, &inv.AmountDue, &inv.Memo, &inv.JournalEntryID, &inv.CreatedBy, &inv.CreatedAt, &inv.UpdatedAt)
	return inv, err
}

func (r *PGRepository) Get(ctx context.Context, companyID int64, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(r.db.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, fmt.Errorf("%w: invoice %s", shared.ErrNotFound, id)
		}
		return Invoice{}, err
	}
	inv.Lines, err = r.loadLines(ctx, id)
	return inv, err
}

func (r *PGRepository) loadLines(ctx context.Context, invoiceID uuid.UUID) ([]InvoiceLine, error) {
	rows, err := r.db.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price, tax_rate, account_id, line_total
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []InvoiceLine
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.AccountID, &l.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepository) List(ctx context.Context, companyID int64, status InvoiceStatus) ([]Invoice, error) {
	query := `SELECT ` + invoiceColumns + ` FROM invoices WHERE company_id=$1`
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

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *PGRepository) ListReceipts(ctx context.Context, companyID int64, invoiceID uuid.UUID) ([]Receipt, error) {
	rows, err := r.db.Query(ctx, `SELECT id, company_id, invoice_id, amount, date, reference, created_by, created_at
FROM receipts WHERE company_id=$1 AND invoice_id=$2 ORDER BY date`, companyID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Receipt
	for rows.Next() {
		var rc Receipt
		if err := rows.Scan(&rc.ID, &rc.CompanyID, &rc.InvoiceID, &rc.Amount, &rc.Date, &rc.Reference, &rc.CreatedBy, &rc.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rc)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (t *pgTxRepository) InsertInvoice(ctx context.Context, inv *Invoice) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO invoices (id, company_id, number, debtor_id, status, issue_date, due_date, subtotal, tax_amount, total, amount_due, memo, created_by, created_at, updated_at)
VALUES ($1, $2, 'INV-' || LPAD(((SELECT COUNT(*) FROM invoices WHERE company_id=$2) + 1)::text, 5, '0'), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, NOW(), NOW())
RETURNING number, created_at, updated_at`,
		inv.ID, inv.CompanyID, inv.DebtorID, string(inv.Status), inv.IssueDate, inv.DueDate,
		inv.Subtotal, inv.TaxAmount, inv.Total, inv.AmountDue, inv.Memo, inv.CreatedBy).
		Scan(&inv.Number, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range inv.Lines {
		line := &inv.Lines[i]
		line.InvoiceID = inv.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO invoice_lines (invoice_id, description, quantity, unit_price, tax_rate, account_id, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			inv.ID, line.Description, line.Quantity, line.UnitPrice, line.TaxRate, line.AccountID, line.LineTotal).Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTxRepository) GetInvoiceForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Invoice, error) {
	inv, err := scanInvoice(t.tx.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Invoice{}, fmt.Errorf("%w: invoice %s", shared.ErrNotFound, id)
		}
		return Invoice{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT id, invoice_id, description, quantity, unit_price, tax_rate, account_id, line_total
FROM invoice_lines WHERE invoice_id=$1 ORDER BY id`, id)
	if err != nil {
		return Invoice{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l InvoiceLine
		if err := rows.Scan(&l.ID, &l.InvoiceID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.AccountID, &l.LineTotal); err != nil {
			return Invoice{}, err
		}
		inv.Lines = append(inv.Lines, l)
	}
	return inv, rows.Err()
}

func (t *pgTxRepository) UpdateInvoice(ctx context.Context, inv Invoice) error {
	tag, err := t.tx.Exec(ctx, `UPDATE invoices SET status=$3, amount_due=$4, journal_entry_id=$5, updated_at=NOW() WHERE company_id=$1 AND id=$2`,
		inv.CompanyID, inv.ID, string(inv.Status), inv.AmountDue, inv.JournalEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: invoice %s", shared.ErrNotFound, inv.ID)
	}
	return nil
}

func (t *pgTxRepository) InsertReceipt(ctx context.Context, rc Receipt) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO receipts (id, company_id, invoice_id, amount, date, reference, created_by, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())`,
		rc.ID, rc.CompanyID, rc.InvoiceID, rc.Amount, rc.Date, rc.Reference, rc.CreatedBy)
	return err
}

func (t *pgTxRepository) GetPartyForUpdate(ctx context.Context, companyID, partyID int64) (party.Party, error) {
	return party.GetForUpdateTx(ctx, t.tx, companyID, partyID)
}

func (t *pgTxRepository) AdjustPartyBalance(ctx context.Context, companyID, partyID int64, delta float64) error {
	return party.AdjustBalanceTx(ctx, t.tx, companyID, partyID, delta)
}

func (t *pgTxRepository) ResolvePostingPeriod(ctx context.Context, companyID int64, date time.Time) (periods.Period, error) {
	return journals.GetPeriodForDateTx(ctx, t.tx, companyID, date)
}

func (t *pgTxRepository) PostEntry(ctx context.Context, input journals.PostingInput) (journals.JournalEntry, error) {
	entry, err := journals.InsertEntryTx(ctx, t.tx, input)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	if err := journals.LinkSourceTx(ctx, t.tx, input.CompanyID, input.SourceModule, input.SourceID, entry.ID); err != nil {
		return journals.JournalEntry{}, err
	}
	return entry, nil
}
