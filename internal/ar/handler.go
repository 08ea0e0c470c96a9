package ar

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler manages accounts receivable endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers AR routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Post("/{id}/send", h.send)
		r.Post("/{id}/receipts", h.recordReceipt)
		r.Get("/{id}/receipts", h.listReceipts)
		r.Post("/{id}/cancel", h.cancel)
	})
}

type invoiceLineRequest struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	TaxRate     float64 `json:"taxRate" validate:"gte=0,lte=1"`
	AccountID   int64   `json:"accountId"`
}

type createInvoiceRequest struct {
	DebtorID  int64                `json:"debtorId" validate:"required"`
	IssueDate string               `json:"issueDate" validate:"required"`
	DueDate   string               `json:"dueDate" validate:"required"`
	Memo      string               `json:"memo"`
	Lines     []invoiceLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type receiptRequest struct {
	Amount    float64 `json:"amount" validate:"required,gt=0"`
	Date      string  `json:"date"`
	Reference string  `json:"reference"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	list, err := h.service.List(r.Context(), companyID, InvoiceStatus(r.URL.Query().Get("status")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createInvoiceRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	issueDate, err := time.Parse("2006-01-02", req.IssueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "issueDate must be YYYY-MM-DD")
		return
	}
	dueDate, err := time.Parse("2006-01-02", req.DueDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "dueDate must be YYYY-MM-DD")
		return
	}

	input := CreateInvoiceInput{
		CompanyID: shared.CompanyFromContext(r.Context()),
		DebtorID:  req.DebtorID,
		IssueDate: issueDate,
		DueDate:   dueDate,
		Memo:      req.Memo,
		CreatedBy: shared.ActorFromContext(r.Context()).ID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
			AccountID:   line.AccountID,
		})
	}

	inv, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, inv)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Get(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	inv, err := h.service.Send(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) recordReceipt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req receiptRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	var date time.Time
	if req.Date != "" {
		parsed, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	actor := shared.ActorFromContext(r.Context())
	inv, err := h.service.RecordReceipt(r.Context(), actor, ReceiptInput{
		CompanyID: shared.CompanyFromContext(r.Context()),
		InvoiceID: id.String(),
		Amount:    req.Amount,
		Date:      date,
		Reference: req.Reference,
		CreatedBy: actor.ID,
	})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) listReceipts(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	receipts, err := h.service.ListReceipts(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, receipts)
}

func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req cancelRequest
	if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	inv, err := h.service.Cancel(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id, req.Reason)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, inv)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "invoice id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
