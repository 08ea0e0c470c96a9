package mappings

import "time"

// MappingKey names a default posting account role.
type MappingKey string

const (
	KeyARControl      MappingKey = "AR_CONTROL"
	KeyAPControl      MappingKey = "AP_CONTROL"
	KeyBank           MappingKey = "BANK"
	KeyTaxPayable     MappingKey = "TAX_PAYABLE"
	KeyTaxReceivable  MappingKey = "TAX_RECEIVABLE"
	KeyDefaultRevenue MappingKey = "DEFAULT_REVENUE"
	KeyDefaultExpense MappingKey = "DEFAULT_EXPENSE"
)

// Valid reports whether the key names a known posting role.
func (k MappingKey) Valid() bool {
	switch k {
	case KeyARControl, KeyAPControl, KeyBank, KeyTaxPayable, KeyTaxReceivable, KeyDefaultRevenue, KeyDefaultExpense:
		return true
	}
	return false
}

// AccountMapping links a posting role to a ledger account per tenant.
type AccountMapping struct {
	CompanyID int64      `json:"companyId"`
	Key       MappingKey `json:"key"`
	AccountID int64      `json:"accountId"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}
