package classify

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/ledgerline/ledgerline/internal/platform/httpx"
)

// Handler exposes the pattern matcher.
type Handler struct {
	logger   *slog.Logger
	validate *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger, validate: validator.New()}
}

// MountRoutes registers classify routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/patterns", h.patterns)
	r.Post("/match", h.match)
}

type matchRequest struct {
	Description string `json:"description" validate:"required"`
}

type matchResponse struct {
	Matched    bool        `json:"matched"`
	Suggestion *Suggestion `json:"suggestion,omitempty"`
}

func (h *Handler) patterns(w http.ResponseWriter, r *http.Request) {
	httpx.JSON(w, http.StatusOK, Patterns())
}

func (h *Handler) match(w http.ResponseWriter, r *http.Request) {
	var req matchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return
	}
	if err := h.validate.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	suggestion, ok := Match(req.Description)
	resp := matchResponse{Matched: ok}
	if ok {
		resp.Suggestion = &suggestion
	}
	httpx.JSON(w, http.StatusOK, resp)
}
