package shared

import "errors"

var (
	// ErrNotFound indicates a referenced resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates malformed or out-of-range input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidStatus indicates an illegal document status transition.
	ErrInvalidStatus = errors.New("invalid status for operation")
	// ErrForbidden indicates the actor's role does not permit the action.
	ErrForbidden = errors.New("forbidden")
	// ErrPartyBlocked indicates the debtor/creditor refuses new documents.
	ErrPartyBlocked = errors.New("party is blocked")
)
