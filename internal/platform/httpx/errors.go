// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// The error message is surfaced verbatim so callers see the precise reason
// ("unit price cannot be negative") rather than a generic failure.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound), errors.Is(err, ledgershared.ErrJournalNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation),
		errors.Is(err, ledgershared.ErrUnbalanced),
		errors.Is(err, ledgershared.ErrTooFewLines),
		errors.Is(err, ledgershared.ErrDateOutOfRange),
		errors.Is(err, ledgershared.ErrInactiveAccount):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidStatus), errors.Is(err, ledgershared.ErrInvalidStatus):
		Problem(w, http.StatusConflict, "Invalid Status", err.Error())
	case errors.Is(err, ledgershared.ErrSourceAlreadyLinked):
		Problem(w, http.StatusConflict, "Already Posted", err.Error())
	case errors.Is(err, ledgershared.ErrNoOpenPeriod),
		errors.Is(err, ledgershared.ErrPeriodClosed),
		errors.Is(err, ledgershared.ErrPeriodLocked):
		Problem(w, http.StatusUnprocessableEntity, "Period Not Postable", err.Error())
	case errors.Is(err, ledgershared.ErrMappingNotFound):
		Problem(w, http.StatusUnprocessableEntity, "Mapping Missing", err.Error())
	case errors.Is(err, shared.ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrPartyBlocked):
		Problem(w, http.StatusUnprocessableEntity, "Party Blocked", err.Error())
	case errors.Is(err, shared.ErrIdempotencyConflict):
		Problem(w, http.StatusConflict, "Duplicate Request", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
