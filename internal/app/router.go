package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ledgerline/ledgerline/internal/ap"
	"github.com/ledgerline/ledgerline/internal/ar"
	"github.com/ledgerline/ledgerline/internal/classify"
	"github.com/ledgerline/ledgerline/internal/ledger/accounts"
	"github.com/ledgerline/ledgerline/internal/ledger/journals"
	"github.com/ledgerline/ledgerline/internal/ledger/mappings"
	"github.com/ledgerline/ledgerline/internal/ledger/periods"
	"github.com/ledgerline/ledgerline/internal/party"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/procurement"
	"github.com/ledgerline/ledgerline/internal/shared"
	"github.com/ledgerline/ledgerline/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger             *slog.Logger
	Config             *Config
	Idempotency        *shared.IdempotencyStore
	AccountsHandler    *accounts.Handler
	PeriodsHandler     *periods.Handler
	MappingsHandler    *mappings.Handler
	JournalsHandler    *journals.Handler
	PartyHandler       *party.Handler
	ARHandler          *ar.Handler
	APHandler          *ap.Handler
	ProcurementHandler *procurement.Handler
	ClassifyHandler    *classify.Handler
	JobHandler         *jobs.Handler
}

// NewRouter constructs the chi.Router with Ledgerline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:      params.Logger,
		Config:      params.Config,
		Idempotency: params.Idempotency,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.AccountsHandler != nil {
		r.Route("/accounts", params.AccountsHandler.MountRoutes)
	}
	if params.PeriodsHandler != nil {
		r.Route("/periods", params.PeriodsHandler.MountRoutes)
	}
	if params.MappingsHandler != nil {
		r.Route("/mappings", params.MappingsHandler.MountRoutes)
	}
	if params.JournalsHandler != nil {
		r.Route("/journals", params.JournalsHandler.MountRoutes)
	}
	if params.PartyHandler != nil {
		r.Route("/parties", params.PartyHandler.MountRoutes)
	}
	if params.ARHandler != nil {
		r.Route("/ar", params.ARHandler.MountRoutes)
	}
	if params.APHandler != nil {
		r.Route("/ap", params.APHandler.MountRoutes)
	}
	if params.ProcurementHandler != nil {
		r.Route("/procurement", params.ProcurementHandler.MountRoutes)
	}
	if params.ClassifyHandler != nil {
		r.Route("/classify", params.ClassifyHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	return r
}
