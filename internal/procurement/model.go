package procurement

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatus enumerates the purchase order lifecycle. Purchase orders
// are commitments, not accruals: they never touch the ledger.
type OrderStatus string

const (
	OrderDraft           OrderStatus = "DRAFT"
	OrderPendingApproval OrderStatus = "PENDING_APPROVAL"
	OrderApproved        OrderStatus = "APPROVED"
	OrderSent            OrderStatus = "SENT"
	OrderReceived        OrderStatus = "RECEIVED"
	OrderClosed          OrderStatus = "CLOSED"
	OrderCancelled       OrderStatus = "CANCELLED"
)

type PurchaseOrder struct {
	ID           uuid.UUID   `json:"id"`
	CompanyID    int64       `json:"companyId"`
	Number       string      `json:"number"`
	CreditorID   int64       `json:"creditorId"`
	Status       OrderStatus `json:"status"`
	OrderDate    time.Time   `json:"orderDate"`
	ExpectedDate time.Time   `json:"expectedDate"`
	Total        float64     `json:"total"`
	Memo         string      `json:"memo,omitempty"`
	CreatedBy    int64       `json:"createdBy"`
	CreatedAt    time.Time   `json:"createdAt"`
	UpdatedAt    time.Time   `json:"updatedAt"`
	Lines        []OrderLine `json:"lines,omitempty"`
}

type OrderLine struct {
	ID               int64     `json:"id"`
	OrderID          uuid.UUID `json:"orderId"`
	Description      string    `json:"description"`
	Quantity         float64   `json:"quantity"`
	UnitPrice        float64   `json:"unitPrice"`
	QuantityReceived float64   `json:"quantityReceived"`
}

// FullyReceived reports whether every line has arrived in full.
func (po PurchaseOrder) FullyReceived() bool {
	for _, line := range po.Lines {
		if line.QuantityReceived < line.Quantity {
			return false
		}
	}
	return len(po.Lines) > 0
}
