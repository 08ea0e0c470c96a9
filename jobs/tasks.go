// Package jobs hosts the background workers: nightly overdue scan,
// party aging snapshots and the general ledger integrity check.
package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskOverdueScan walks every tenant looking for invoices past due.
	TaskOverdueScan = "ar:overdue_scan"
	// TaskAgingRefresh rebuilds the aging snapshot for every party.
	TaskAgingRefresh = "party:aging_refresh"
	// TaskGLIntegrity verifies debits equal credits per fiscal period.
	TaskGLIntegrity = "ledger:gl_integrity"
)

// OverdueScanPayload tunes the overdue scan.
type OverdueScanPayload struct {
	// GraceDays shifts the cutoff: an invoice counts as overdue only
	// once it is this many days past its due date.
	GraceDays int `json:"graceDays"`
}

// NewOverdueScanTask constructs an Asynq task.
func NewOverdueScanTask(payload OverdueScanPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOverdueScan, data), nil
}

// AgingRefreshPayload tunes the aging snapshot refresh.
type AgingRefreshPayload struct {
	// CompanyID restricts the refresh to one tenant; zero means all.
	CompanyID int64 `json:"companyId"`
}

// NewAgingRefreshTask constructs an Asynq task.
func NewAgingRefreshTask(payload AgingRefreshPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAgingRefresh, data), nil
}

// GLIntegrityPayload tunes the ledger integrity check.
type GLIntegrityPayload struct {
	// PeriodID restricts the check to one period; zero means all.
	PeriodID int64 `json:"periodId"`
}

// NewGLIntegrityTask constructs an Asynq task.
func NewGLIntegrityTask(payload GLIntegrityPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskGLIntegrity, data), nil
}
