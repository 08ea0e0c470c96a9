package ap

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
	GetBill(ctx context.Context, companyID int64, id uuid.UUID) (Bill, error)
	ListBills(ctx context.Context, companyID int64, status BillStatus) ([]Bill, error)
	GetPayment(ctx context.Context, companyID int64, id uuid.UUID) (Payment, error)
	ListPayments(ctx context.Context, companyID int64, status PaymentStatus) ([]Payment, error)
}

// TxRepository bundles the mutations of a single AP operation so bill
// state, payment state, creditor balance and journal postings commit
// or roll back together.
type TxRepository interface {
	InsertBill(ctx context.Context, bill *Bill) error
	GetBillForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Bill, error)
	UpdateBill(ctx context.Context, bill Bill) error
	InsertPayment(ctx context.Context, payment *Payment) error
	GetPaymentForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Payment, error)
	UpdatePayment(ctx context.Context, payment Payment) error
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

const billColumns = `id, company_id, number, creditor_id, vendor_ref, status, issue_date, due_date, subtotal, tax_amount, total, amount_paid, amount_due, memo, journal_entry_id, created_by, created_at, updated_at`

func scanBill(row pgx.Row) (Bill, error) {
	var b Bill
	err := row.Scan(&b.ID, &b.CompanyID, &b.Number, &b.CreditorID, &b.VendorRef, &b.Status, &b.IssueDate, &b.DueDate,
		&b.Subtotal, &b.TaxAmount, &b.Total, &b.AmountPaid, &b.AmountDue, &b.Memo, &b.JournalEntryID, &b.CreatedBy, &b.CreatedAt, &b.UpdatedAt)
	return b, err
}

func (r *PGRepository) GetBill(ctx context.Context, companyID int64, id uuid.UUID) (Bill, error) {
	bill, err := scanBill(r.db.QueryRow(ctx, `SELECT `+billColumns+` FROM vendor_bills WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, fmt.Errorf("%w: bill %s", shared.ErrNotFound, id)
		}
		return Bill{}, err
	}
	bill.Lines, err = billLines(ctx, r.db, id)
	return bill, err
}

type rowQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func billLines(ctx context.Context, q rowQuerier, billID uuid.UUID) ([]BillLine, error) {
	rows, err := q.Query(ctx, `SELECT id, bill_id, description, quantity, unit_price, tax_rate, account_id, line_total
FROM vendor_bill_lines WHERE bill_id=$1 ORDER BY id`, billID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []BillLine
	for rows.Next() {
		var l BillLine
		if err := rows.Scan(&l.ID, &l.BillID, &l.Description, &l.Quantity, &l.UnitPrice, &l.TaxRate, &l.AccountID, &l.LineTotal); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PGRepository) ListBills(ctx context.Context, companyID int64, status BillStatus) ([]Bill, error) {
	query := `SELECT ` + billColumns + ` FROM vendor_bills WHERE company_id=$1`
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

	var out []Bill
	for rows.Next() {
		bill, err := scanBill(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, bill)
	}
	return out, rows.Err()
}

const paymentColumns = `id, company_id, number, creditor_id, status, amount, date, method, reference, memo, journal_entry_id, created_by, created_at, updated_at`

func scanPayment(row pgx.Row) (Payment, error) {
	var p Payment
	err := row.Scan(&p.ID, &p.CompanyID, &p.Number, &p.CreditorID, &p.Status, &p.Amount, &p.Date,
		&p.Method, &p.Reference, &p.Memo, &p.JournalEntryID, &p.CreatedBy, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *PGRepository) GetPayment(ctx context.Context, companyID int64, id uuid.UUID) (Payment, error) {
	payment, err := scanPayment(r.db.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, fmt.Errorf("%w: payment %s", shared.ErrNotFound, id)
		}
		return Payment{}, err
	}
	payment.Allocations, err = paymentAllocations(ctx, r.db, id)
	return payment, err
}

func paymentAllocations(ctx context.Context, q rowQuerier, paymentID uuid.UUID) ([]Allocation, error) {
	rows, err := q.Query(ctx, `SELECT id, payment_id, bill_id, amount
FROM payment_allocations WHERE payment_id=$1 ORDER BY id`, paymentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Allocation
	for rows.Next() {
		var a Allocation
		if err := rows.Scan(&a.ID, &a.PaymentID, &a.BillID, &a.Amount); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *PGRepository) ListPayments(ctx context.Context, companyID int64, status PaymentStatus) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE company_id=$1`
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

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type pgTxRepository struct {
	tx pgx.Tx
}

func (t *pgTxRepository) InsertBill(ctx context.Context, bill *Bill) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO vendor_bills (id, company_id, number, creditor_id, vendor_ref, status, issue_date, due_date, subtotal, tax_amount, total, amount_paid, amount_due, memo, created_by, created_at, updated_at)
VALUES ($1, $2, 'BILL-' || LPAD(((SELECT COUNT(*) FROM vendor_bills WHERE company_id=$2) + 1)::text, 5, '0'), $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NOW(), NOW())
RETURNING number, created_at, updated_at`,
		bill.ID, bill.CompanyID, bill.CreditorID, bill.VendorRef, string(bill.Status), bill.IssueDate, bill.DueDate,
		bill.Subtotal, bill.TaxAmount, bill.Total, bill.AmountPaid, bill.AmountDue, bill.Memo, bill.CreatedBy).
		Scan(&bill.Number, &bill.CreatedAt, &bill.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range bill.Lines {
		line := &bill.Lines[i]
		line.BillID = bill.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO vendor_bill_lines (bill_id, description, quantity, unit_price, tax_rate, account_id, line_total)
VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
			bill.ID, line.Description, line.Quantity, line.UnitPrice, line.TaxRate, line.AccountID, line.LineTotal).Scan(&line.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTxRepository) GetBillForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Bill, error) {
	bill, err := scanBill(t.tx.QueryRow(ctx, `SELECT `+billColumns+` FROM vendor_bills WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Bill{}, fmt.Errorf("%w: bill %s", shared.ErrNotFound, id)
		}
		return Bill{}, err
	}
	bill.Lines, err = billLines(ctx, t.tx, id)
	return bill, err
}

func (t *pgTxRepository) UpdateBill(ctx context.Context, bill Bill) error {
	tag, err := t.tx.Exec(ctx, `UPDATE vendor_bills SET status=$3, amount_paid=$4, amount_due=$5, journal_entry_id=$6, updated_at=NOW() WHERE company_id=$1 AND id=$2`,
		bill.CompanyID, bill.ID, string(bill.Status), bill.AmountPaid, bill.AmountDue, bill.JournalEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: bill %s", shared.ErrNotFound, bill.ID)
	}
	return nil
}

func (t *pgTxRepository) InsertPayment(ctx context.Context, payment *Payment) error {
	err := t.tx.QueryRow(ctx, `INSERT INTO payments (id, company_id, number, creditor_id, status, amount, date, method, reference, memo, created_by, created_at, updated_at)
VALUES ($1, $2, 'PAY-' || LPAD(((SELECT COUNT(*) FROM payments WHERE company_id=$2) + 1)::text, 5, '0'), $3, $4, $5, $6, $7, $8, $9, $10, NOW(), NOW())
RETURNING number, created_at, updated_at`,
		payment.ID, payment.CompanyID, payment.CreditorID, string(payment.Status), payment.Amount, payment.Date,
		payment.Method, payment.Reference, payment.Memo, payment.CreatedBy).
		Scan(&payment.Number, &payment.CreatedAt, &payment.UpdatedAt)
	if err != nil {
		return err
	}
	for i := range payment.Allocations {
		alloc := &payment.Allocations[i]
		alloc.PaymentID = payment.ID
		err := t.tx.QueryRow(ctx, `INSERT INTO payment_allocations (payment_id, bill_id, amount)
VALUES ($1, $2, $3) RETURNING id`, payment.ID, alloc.BillID, alloc.Amount).Scan(&alloc.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *pgTxRepository) GetPaymentForUpdate(ctx context.Context, companyID int64, id uuid.UUID) (Payment, error) {
	payment, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE company_id=$1 AND id=$2 FOR UPDATE`, companyID, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Payment{}, fmt.Errorf("%w: payment %s", shared.ErrNotFound, id)
		}
		return Payment{}, err
	}
	payment.Allocations, err = paymentAllocations(ctx, t.tx, id)
	return payment, err
}

func (t *pgTxRepository) UpdatePayment(ctx context.Context, payment Payment) error {
	tag, err := t.tx.Exec(ctx, `UPDATE payments SET status=$3, journal_entry_id=$4, updated_at=NOW() WHERE company_id=$1 AND id=$2`,
		payment.CompanyID, payment.ID, string(payment.Status), payment.JournalEntryID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: payment %s", shared.ErrNotFound, payment.ID)
	}
	return nil
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
