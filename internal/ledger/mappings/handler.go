package mappings

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
	"github.com/ledgerline/ledgerline/internal/shared"
)

// Handler manages posting account mapping endpoints.
type Handler struct {
	logger   *slog.Logger
	repo     Repository
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, repo Repository) *Handler {
	return &Handler{logger: logger, repo: repo, validate: validator.New()}
}

// MountRoutes registers mapping routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.list)
	r.Put("/{key}", h.set)
}

type setMappingRequest struct {
	AccountID int64 `json:"accountId" validate:"required,gt=0"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	companyID := shared.CompanyFromContext(r.Context())
	list, err := h.repo.List(r.Context(), companyID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, list)
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request) {
	actor := shared.ActorFromContext(r.Context())
	if err := shared.RequireApprover(actor); err != nil {
		httpx.RespondError(w, err)
		return
	}
	key := MappingKey(chi.URLParam(r, "key"))
	if !key.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Key", "unknown mapping key")
		return
	}
	var req setMappingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	companyID := shared.CompanyFromContext(r.Context())
	if err := h.repo.Set(r.Context(), companyID, key, req.AccountID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	mapping, err := h.repo.Get(r.Context(), companyID, key)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, mapping)
}
