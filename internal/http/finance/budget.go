package finance

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/finance"
)

type budgetRequest struct {
	Category string          `json:"category"`
	Limit    decimal.Decimal `json:"limit"`
	Period   finance.Period  `json:"period"`
}

func (h *Handler) createBudget(w http.ResponseWriter, r *http.Request) {
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.Period == "" {
		req.Period = finance.PeriodMonthly
	}

	b, err := h.store.AddBudget(r.Context(), finance.BudgetParams{
		Category: req.Category,
		Limit:    req.Limit,
		Period:   req.Period,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toBudgetResponse(b))
}

func (h *Handler) listBudgets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, toBudgetResponseList(h.store.Budgets()))
}

func (h *Handler) getBudget(w http.ResponseWriter, r *http.Request) {
	b, err := h.store.GetBudget(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

type updateBudgetRequest struct {
	Category *string          `json:"category,omitempty"`
	Limit    *decimal.Decimal `json:"limit,omitempty"`
	Period   *finance.Period  `json:"period,omitempty"`
}

func (h *Handler) updateBudget(w http.ResponseWriter, r *http.Request) {
	var req updateBudgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	b, err := h.store.GetBudget(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Category != nil {
		b.Category = *req.Category
	}

	if req.Limit != nil {
		if !req.Limit.IsPositive() {
			http.Error(w, "limit must be positive", http.StatusBadRequest)
			return
		}

		b.Limit = *req.Limit
		b.LimitAmount = *req.Limit
	}

	if req.Period != nil {
		b.Period = *req.Period
	}

	if err := h.store.UpdateBudget(r.Context(), b); err != nil {
		writeError(w, err)
		return
	}

	h.sync.RequestSync()

	writeJSON(w, http.StatusOK, toBudgetResponse(b))
}

func (h *Handler) deleteBudget(w http.ResponseWriter, r *http.Request) {
	if err := h.store.DeleteBudget(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
