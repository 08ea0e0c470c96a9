package journals

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	ledgershared "github.com/ledgerline/ledgerline/internal/ledger/shared"
	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler manages journal endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers journal routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Post("/", h.post)
	r.Post("/{id}/void", h.void)
	r.Post("/{id}/reverse", h.reverse)
}

type postingLineRequest struct {
	AccountID int64   `json:"accountId" validate:"required"`
	Debit     float64 `json:"debit"`
	Credit    float64 `json:"credit"`
}

type postJournalRequest struct {
	PeriodID int64                `json:"periodId" validate:"required"`
	Date     time.Time            `json:"date" validate:"required"`
	Memo     string               `json:"memo"`
	Lines    []postingLineRequest `json:"lines" validate:"required,min=2,dive"`
}

type reasonRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	entries, err := h.service.List(r.Context(), shared.CompanyFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "journal id must be numeric")
		return
	}
	entry, err := h.service.Get(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) post(w http.ResponseWriter, r *http.Request) {
	var req postJournalRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	actor := shared.ActorFromContext(r.Context())
	input := PostingInput{
		CompanyID:    shared.CompanyFromContext(r.Context()),
		PeriodID:     req.PeriodID,
		Date:         req.Date,
		SourceModule: SourceManual,
		SourceID:     uuid.New(),
		Memo:         req.Memo,
		PostedBy:     actor.ID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, PostingLineInput{AccountID: line.AccountID, Debit: line.Debit, Credit: line.Credit})
	}
	entry, err := h.service.PostJournal(r.Context(), actor, input)
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) void(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "journal id must be numeric")
		return
	}
	var req reasonRequest
	_ = httpx.DecodeJSON(r, &req)
	actor := shared.ActorFromContext(r.Context())
	entry, err := h.service.VoidJournal(r.Context(), actor, VoidInput{
		CompanyID: shared.CompanyFromContext(r.Context()),
		EntryID:   id,
		ActorID:   actor.ID,
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) reverse(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "journal id must be numeric")
		return
	}
	var req reasonRequest
	_ = httpx.DecodeJSON(r, &req)
	actor := shared.ActorFromContext(r.Context())
	entry, err := h.service.ReverseJournal(r.Context(), actor, ReverseInput{
		CompanyID: shared.CompanyFromContext(r.Context()),
		EntryID:   id,
		ActorID:   actor.ID,
		Memo:      req.Reason,
	})
	if err != nil {
		h.respondErr(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) respondErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledgershared.ErrUnbalanced),
		errors.Is(err, ledgershared.ErrTooFewLines),
		errors.Is(err, ledgershared.ErrDateOutOfRange):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ledgershared.ErrNoOpenPeriod),
		errors.Is(err, ledgershared.ErrPeriodClosed),
		errors.Is(err, ledgershared.ErrPeriodLocked),
		errors.Is(err, ledgershared.ErrSourceAlreadyLinked):
		httpx.Problem(w, http.StatusUnprocessableEntity, "Posting Failed", err.Error())
	case errors.Is(err, ledgershared.ErrJournalNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ledgershared.ErrInvalidStatus):
		httpx.Problem(w, http.StatusConflict, "Invalid Status", err.Error())
	default:
		httpx.RespondError(w, err)
	}
}
