package periods

import (
	"time"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	PeriodStatusOpen   PeriodStatus = "OPEN"
	PeriodStatusClosed PeriodStatus = "CLOSED"
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// Period represents a fiscal period window.
type Period struct {
	ID        int64        `json:"id"`
	CompanyID int64        `json:"companyId"`
	Code      string       `json:"code"`
	StartDate time.Time    `json:"startDate"`
	EndDate   time.Time    `json:"endDate"`
	Status    PeriodStatus `json:"status"`
	ClosedAt  *time.Time   `json:"closedAt,omitempty"`
	LockedBy  *int64       `json:"lockedBy,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Contains reports whether the date falls inside the period window.
func (p Period) Contains(date time.Time) bool {
	return !date.Before(p.StartDate) && !date.After(p.EndDate)
}

// EnsurePostable fails unless the period accepts new postings.
func (p Period) EnsurePostable() error {
	switch p.Status {
	case PeriodStatusOpen:
		return nil
	case PeriodStatusLocked:
		return ledgershared.ErrPeriodLocked
	default:
		return ledgershared.ErrPeriodClosed
	}
}
