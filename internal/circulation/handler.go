// internal/circulation/handler.go
package circulation

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"libradesk/internal/httpx"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type loanRequest struct {
	UserID httpx.FormValue `json:"userId"`
	BookID httpx.FormValue `json:"bookId"`
}

// Routes mounts the loan and statistics endpoints. Mutating routes are
// wrapped with mutate.
func (h *Handler) Routes(r chi.Router, mutate func(http.Handler) http.Handler) {
	r.Get("/stats", h.handleStats)
	r.Get("/loans", h.handleListLoans)
	r.With(mutate).Post("/loans", h.handleCreateLoan)
	r.With(mutate).Post("/loans/{id}/return", h.handleReturnLoan)
}

func (h *Handler) handleCreateLoan(w http.ResponseWriter, r *http.Request) {
	var req loanRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	loan, err := h.service.CreateLoan(r.Context(), string(req.UserID), string(req.BookID))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, loan)
}

func (h *Handler) handleReturnLoan(w http.ResponseWriter, r *http.Request) {
	loan, err := h.service.ReturnLoan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, loan)
}

func (h *Handler) handleListLoans(w http.ResponseWriter, r *http.Request) {
	loans, err := h.service.ListLoans(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteList(w, r, loans)
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, stats)
}
