package ap

import (
	"context"
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

// Handler manages accounts payable endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers AP routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/bills", func(r chi.Router) {
		r.Get("/", h.listBills)
		r.Post("/", h.createBill)
		r.Get("/{id}", h.getBill)
		r.Post("/{id}/submit", h.billAction(func(h *Handler) noteAction { return h.service.SubmitBill }))
		r.Post("/{id}/approve", h.billAction(func(h *Handler) noteAction { return h.service.ApproveBill }))
		r.Post("/{id}/reject", h.billAction(func(h *Handler) noteAction { return h.service.RejectBill }))
		r.Post("/{id}/post", h.postBill)
		r.Post("/{id}/cancel", h.billAction(func(h *Handler) noteAction { return h.service.CancelBill }))
	})
	r.Route("/payments", func(r chi.Router) {
		r.Get("/", h.listPayments)
		r.Post("/", h.createPayment)
		r.Get("/{id}", h.getPayment)
		r.Post("/{id}/submit", h.paymentNoteAction(func(h *Handler) paymentAction { return h.service.SubmitPayment }))
		r.Post("/{id}/approve", h.paymentNoteAction(func(h *Handler) paymentAction { return h.service.ApprovePayment }))
		r.Post("/{id}/reject", h.paymentNoteAction(func(h *Handler) paymentAction { return h.service.RejectPayment }))
		r.Post("/{id}/process", h.processPayment)
		r.Post("/{id}/clear", h.clearPayment)
		r.Post("/{id}/void", h.paymentNoteAction(func(h *Handler) paymentAction { return h.service.VoidPayment }))
	})
}

type billLineRequest struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
	TaxRate     float64 `json:"taxRate" validate:"gte=0,lte=1"`
	AccountID   int64   `json:"accountId"`
}

type createBillRequest struct {
	CreditorID int64             `json:"creditorId" validate:"required"`
	VendorRef  string            `json:"vendorRef"`
	IssueDate  string            `json:"issueDate" validate:"required"`
	DueDate    string            `json:"dueDate" validate:"required"`
	Memo       string            `json:"memo"`
	Lines      []billLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type allocationRequest struct {
	BillID string  `json:"billId" validate:"required,uuid"`
	Amount float64 `json:"amount" validate:"gt=0"`
}

type createPaymentRequest struct {
	CreditorID  int64               `json:"creditorId" validate:"required"`
	Amount      float64             `json:"amount" validate:"required,gt=0"`
	Date        string              `json:"date"`
	Method      string              `json:"method"`
	Reference   string              `json:"reference"`
	Memo        string              `json:"memo"`
	Allocations []allocationRequest `json:"allocations" validate:"required,min=1,dive"`
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) listBills(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	list, err := h.service.ListBills(r.Context(), companyID, BillStatus(r.URL.Query().Get("status")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createBill(w http.ResponseWriter, r *http.Request) {
	var req createBillRequest
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

	input := CreateBillInput{
		CompanyID:  shared.CompanyFromContext(r.Context()),
		CreditorID: req.CreditorID,
		VendorRef:  req.VendorRef,
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Memo:       req.Memo,
		CreatedBy:  shared.ActorFromContext(r.Context()).ID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, BillLineInput{
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
			AccountID:   line.AccountID,
		})
	}

	bill, err := h.service.CreateBill(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, bill)
}

func (h *Handler) getBill(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "bill")
	if !ok {
		return
	}
	bill, err := h.service.GetBill(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

type noteAction func(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (Bill, error)

func (h *Handler) billAction(pick func(*Handler) noteAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, r, "bill")
		if !ok {
			return
		}
		var req noteRequest
		if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
		bill, err := pick(h)(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id, req.Note)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, bill)
	}
}

func (h *Handler) postBill(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "bill")
	if !ok {
		return
	}
	bill, err := h.service.PostBill(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, bill)
}

func (h *Handler) listPayments(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	list, err := h.service.ListPayments(r.Context(), companyID, PaymentStatus(r.URL.Query().Get("status")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) createPayment(w http.ResponseWriter, r *http.Request) {
	var req createPaymentRequest
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

	input := CreatePaymentInput{
		CompanyID:  shared.CompanyFromContext(r.Context()),
		CreditorID: req.CreditorID,
		Amount:     req.Amount,
		Date:       date,
		Method:     req.Method,
		Reference:  req.Reference,
		Memo:       req.Memo,
		CreatedBy:  shared.ActorFromContext(r.Context()).ID,
	}
	for _, alloc := range req.Allocations {
		input.Allocations = append(input.Allocations, AllocationInput{BillID: alloc.BillID, Amount: alloc.Amount})
	}

	payment, err := h.service.CreatePayment(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, payment)
}

func (h *Handler) getPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "payment")
	if !ok {
		return
	}
	payment, err := h.service.GetPayment(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

type paymentAction func(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (Payment, error)

func (h *Handler) paymentNoteAction(pick func(*Handler) paymentAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := parseUUID(w, r, "payment")
		if !ok {
			return
		}
		var req noteRequest
		if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
		payment, err := pick(h)(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id, req.Note)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, payment)
	}
}

func (h *Handler) processPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "payment")
	if !ok {
		return
	}
	payment, err := h.service.ProcessPayment(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func (h *Handler) clearPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseUUID(w, r, "payment")
	if !ok {
		return
	}
	payment, err := h.service.ClearPayment(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, payment)
}

func parseUUID(w http.ResponseWriter, r *http.Request, kind string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", kind+" id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
