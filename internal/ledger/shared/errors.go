package shared

import "errors"

var (
	// ErrUnbalanced indicates debit != credit.
	ErrUnbalanced = errors.New("ledger: journal lines must balance")
	// ErrTooFewLines indicates less than two lines.
	ErrTooFewLines = errors.New("ledger: journal requires at least two lines")
	// ErrNoOpenPeriod indicates no fiscal period covers the posting date.
	ErrNoOpenPeriod = errors.New("ledger: no fiscal period covers date")
	// ErrPeriodClosed indicates the resolved period is closed.
	ErrPeriodClosed = errors.New("ledger: period is closed")
	// ErrPeriodLocked indicates the resolved period is locked.
	ErrPeriodLocked = errors.New("ledger: period locked")
	// ErrSourceAlreadyLinked indicates the document was already posted.
	ErrSourceAlreadyLinked = errors.New("ledger: source already posted")
	// ErrJournalNotFound indicates missing entry.
	ErrJournalNotFound = errors.New("ledger: journal entry not found")
	// ErrInvalidStatus indicates action can't proceed.
	ErrInvalidStatus = errors.New("ledger: invalid status transition")
	// ErrDateOutOfRange indicates journal date outside its period.
	ErrDateOutOfRange = errors.New("ledger: date outside period")
	// ErrMappingNotFound indicates a default posting account is missing.
	ErrMappingNotFound = errors.New("ledger: account mapping not found")
	// ErrInactiveAccount indicates a journal line references an archived account.
	ErrInactiveAccount = errors.New("ledger: account is archived")
)
