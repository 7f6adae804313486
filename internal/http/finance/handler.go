package finance

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/cloudsync"
	"github.com/MrJamesThe3rd/finsync/internal/finance"
)

type Handler struct {
	store *finance.Store
	sync  cloudsync.Requester
}

// NewHandler serves transactions and budgets. Edits that keep collection
// sizes unchanged are reported to sync so they still get pushed.
func NewHandler(store *finance.Store, sync cloudsync.Requester) *Handler {
	return &Handler{store: store, sync: sync}
}

func (h *Handler) TransactionRoutes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
}

func (h *Handler) BudgetRoutes(r chi.Router) {
	r.Post("/", h.createBudget)
	r.Get("/", h.listBudgets)
	r.Get("/{id}", h.getBudget)
	r.Patch("/{id}", h.updateBudget)
	r.Delete("/{id}", h.deleteBudget)
}

type createTransactionRequest struct {
	Amount      decimal.Decimal `json:"amount"`
	Type        finance.Type    `json:"type"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	date, err := time.Parse(time.DateOnly, req.Date)
	if err != nil {
		http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	tx, err := h.store.AddTransaction(r.Context(), finance.CreateParams{
		Amount:      req.Amount,
		Type:        req.Type,
		Category:    req.Category,
		Description: req.Description,
		Date:        date,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(tx))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := finance.ListFilter{}
	q := r.URL.Query()

	if s := q.Get("type"); s != "" {
		filter.Type = new(finance.Type(s))
	}

	if s := q.Get("category"); s != "" {
		filter.Category = new(s)
	}

	if s := q.Get("start_date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, "start_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		filter.StartDate = new(t)
	}

	if s := q.Get("end_date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, "end_date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		filter.EndDate = new(t)
	}

	writeJSON(w, http.StatusOK, toResponseList(h.store.ListTransactions(filter)))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	tx, err := h.store.GetTransaction(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(tx))
}

type updateTransactionRequest struct {
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Type        *finance.Type    `json:"type,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Description *string          `json:"description,omitempty"`
	Date        *string          `json:"date,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateTransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	tx, err := h.store.GetTransaction(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			http.Error(w, "amount must be positive", http.StatusBadRequest)
			return
		}

		tx.Amount = *req.Amount
	}

	if req.Type != nil {
		tx.Type = *req.Type
	}

	if req.Category != nil {
		tx.Category = *req.Category
	}

	if req.Description != nil {
		tx.Description = *req.Description
	}

	if req.Date != nil {
		date, err := time.Parse(time.DateOnly, *req.Date)
		if err != nil {
			http.Error(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		tx.Date = date
	}

	if err := h.store.UpdateTransaction(r.Context(), tx); err != nil {
		writeError(w, err)
		return
	}

	h.sync.RequestSync()

	writeJSON(w, http.StatusOK, toResponse(tx))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteTransaction(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, finance.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, finance.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("finance request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
