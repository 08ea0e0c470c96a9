package procurement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler manages purchase order endpoints.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validate: validator.New()}
}

// MountRoutes registers procurement routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/orders", func(r chi.Router) {
		r.Get("/", h.list)
		r.Post("/", h.create)
		r.Get("/{id}", h.get)
		r.Post("/{id}/submit", h.noteAction(func(h *Handler) orderAction { return h.service.Submit }))
		r.Post("/{id}/approve", h.noteAction(func(h *Handler) orderAction { return h.service.Approve }))
		r.Post("/{id}/reject", h.noteAction(func(h *Handler) orderAction { return h.service.Reject }))
		r.Post("/{id}/send", h.send)
		r.Post("/{id}/receive", h.receive)
		r.Post("/{id}/close", h.close)
		r.Post("/{id}/cancel", h.noteAction(func(h *Handler) orderAction { return h.service.Cancel }))
	})
}

type orderLineRequest struct {
	Description string  `json:"description" validate:"required"`
	Quantity    float64 `json:"quantity" validate:"gt=0"`
	UnitPrice   float64 `json:"unitPrice" validate:"gte=0"`
}

type createOrderRequest struct {
	CreditorID   int64              `json:"creditorId" validate:"required"`
	OrderDate    string             `json:"orderDate" validate:"required"`
	ExpectedDate string             `json:"expectedDate"`
	Memo         string             `json:"memo"`
	Lines        []orderLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type receiveRequest struct {
	Quantities map[string]float64 `json:"quantities" validate:"required,min=1"`
}

type noteRequest struct {
	Note string `json:"note"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	list, err := h.service.List(r.Context(), companyID, OrderStatus(r.URL.Query().Get("status")))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	orderDate, err := time.Parse("2006-01-02", req.OrderDate)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "orderDate must be YYYY-MM-DD")
		return
	}
	var expectedDate time.Time
	if req.ExpectedDate != "" {
		expectedDate, err = time.Parse("2006-01-02", req.ExpectedDate)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Date", "expectedDate must be YYYY-MM-DD")
			return
		}
	}

	input := CreateOrderInput{
		CompanyID:    shared.CompanyFromContext(r.Context()),
		CreditorID:   req.CreditorID,
		OrderDate:    orderDate,
		ExpectedDate: expectedDate,
		Memo:         req.Memo,
		CreatedBy:    shared.ActorFromContext(r.Context()).ID,
	}
	for _, line := range req.Lines {
		input.Lines = append(input.Lines, LineInput{Description: line.Description, Quantity: line.Quantity, UnitPrice: line.UnitPrice})
	}

	po, err := h.service.Create(r.Context(), input)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, po)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Get(r.Context(), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

type orderAction func(ctx context.Context, actor shared.Actor, companyID int64, id uuid.UUID, note string) (PurchaseOrder, error)

func (h *Handler) noteAction(pick func(*Handler) orderAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := h.parseID(w, r)
		if !ok {
			return
		}
		var req noteRequest
		if err := httpx.DecodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
			return
		}
		po, err := pick(h)(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id, req.Note)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, po)
	}
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Send(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req receiveRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	quantities := make(map[int64]float64, len(req.Quantities))
	for lineID, qty := range req.Quantities {
		parsed, err := strconv.ParseInt(lineID, 10, 64)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Line ID", "line ids must be numeric")
			return
		}
		quantities[parsed] = qty
	}

	po, err := h.service.Receive(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id, ReceiveInput{Quantities: quantities})
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) close(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	po, err := h.service.Close(r.Context(), shared.ActorFromContext(r.Context()), shared.CompanyFromContext(r.Context()), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, po)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid ID", "order id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}
