package posting

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerline/ledgerline/internal/ledger/journals"
)

var testDefaults = Defaults{
	ARControl:     100,
	APControl:     200,
	Bank:          110,
	TaxPayable:    210,
	TaxReceivable: 120,
	Revenue:       400,
	Expense:       500,
}

func sumSides(lines []journals.PostingLineInput) (debit, credit float64) {
	for _, l := range lines {
		debit += l.Debit
		credit += l.Credit
	}
	return debit, credit
}

func TestBuildInvoiceLines(t *testing.T) {
	lines, err := BuildInvoiceLines(testDefaults, []DocumentLine{
		{AccountID: 401, Amount: 150},
		{Amount: 50}, // falls back to default revenue
	}, 30)
	require.NoError(t, err)

	debit, credit := sumSides(lines)
	require.InDelta(t, 230.0, debit, 0.001)
	require.InDelta(t, debit, credit, 0.001)

	require.Equal(t, testDefaults.ARControl, lines[0].AccountID)
	require.InDelta(t, 230.0, lines[0].Debit, 0.001)
	require.Equal(t, int64(401), lines[1].AccountID)
	require.Equal(t, testDefaults.Revenue, lines[2].AccountID)
	require.Equal(t, testDefaults.TaxPayable, lines[3].AccountID)
}

func TestBuildInvoiceLinesZeroTaxOmitsTaxLine(t *testing.T) {
	lines, err := BuildInvoiceLines(testDefaults, []DocumentLine{{Amount: 100}}, 0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
}

func TestBuildBillLines(t *testing.T) {
	lines, err := BuildBillLines(testDefaults, []DocumentLine{
		{AccountID: 501, Amount: 80},
		{Amount: 20},
	}, 10)
	require.NoError(t, err)

	debit, credit := sumSides(lines)
	require.InDelta(t, 110.0, debit, 0.001)
	require.InDelta(t, debit, credit, 0.001)

	last := lines[len(lines)-1]
	require.Equal(t, testDefaults.APControl, last.AccountID)
	require.InDelta(t, 110.0, last.Credit, 0.001)
}

func TestBuildReceiptLines(t *testing.T) {
	lines, err := BuildReceiptLines(testDefaults, 230)
	require.NoError(t, err)
	require.Equal(t, testDefaults.Bank, lines[0].AccountID)
	require.InDelta(t, 230.0, lines[0].Debit, 0.001)
	require.Equal(t, testDefaults.ARControl, lines[1].AccountID)

	_, err = BuildReceiptLines(testDefaults, 0)
	require.Error(t, err)
}

func TestBuildPaymentLines(t *testing.T) {
	lines, err := BuildPaymentLines(testDefaults, 500)
	require.NoError(t, err)
	require.Equal(t, testDefaults.APControl, lines[0].AccountID)
	require.Equal(t, testDefaults.Bank, lines[1].AccountID)

	debit, credit := sumSides(lines)
	require.InDelta(t, debit, credit, 0.001)
}

func TestNegativeAmountsRejected(t *testing.T) {
	_, err := BuildInvoiceLines(testDefaults, []DocumentLine{{Amount: -1}}, 0)
	require.Error(t, err)

	_, err = BuildBillLines(testDefaults, []DocumentLine{{Amount: 10}}, -1)
	require.Error(t, err)
}
