// internal/catalog/handler.go
package catalog

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

type bookRequest struct {
	Title  *httpx.FormValue `json:"title"`
	Author *httpx.FormValue `json:"author"`
	Year   *httpx.FormValue `json:"year"`
	Genre  *httpx.FormValue `json:"genre"`
}

func (req bookRequest) fields() BookFields {
	return BookFields{
		Title:  req.Title.Ptr(),
		Author: req.Author.Ptr(),
		Year:   req.Year.Ptr(),
		Genre:  req.Genre.Ptr(),
	}
}

// Routes mounts the book endpoints. Mutating routes are wrapped with mutate.
func (h *Handler) Routes(r chi.Router, mutate func(http.Handler) http.Handler) {
	r.Get("/books", h.handleListBooks)
	r.Get("/books/available", h.handleListAvailableBooks)
	r.Get("/books/{id}", h.handleGetBook)
	r.With(mutate).Post("/books", h.handleAddBook)
	r.With(mutate).Patch("/books/{id}", h.handleUpdateBook)
	r.With(mutate).Delete("/books/{id}", h.handleRemoveBook)
}

func (h *Handler) handleListBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListBooks(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteList(w, r, books)
}

func (h *Handler) handleListAvailableBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.service.ListAvailableBooks(r.Context())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteList(w, r, books)
}

func (h *Handler) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := h.service.GetBook(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleAddBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	book, err := h.service.AddBook(r.Context(), req.fields())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, book)
}

func (h *Handler) handleUpdateBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, r, err)
		return
	}

	book, err := h.service.UpdateBook(r.Context(), chi.URLParam(r, "id"), req.fields())
	if err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, book)
}

func (h *Handler) handleRemoveBook(w http.ResponseWriter, r *http.Request) {
	if err := h.service.RemoveBook(r.Context(), chi.URLParam(r, "id")); err != nil {
		httpx.WriteError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
