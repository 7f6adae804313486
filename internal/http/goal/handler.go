package goal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/finsync/internal/cloudsync"
	"github.com/MrJamesThe3rd/finsync/internal/goal"
)

type Handler struct {
	store *goal.Store
	sync  cloudsync.Requester
}

func NewHandler(store *goal.Store, sync cloudsync.Requester) *Handler {
	return &Handler{store: store, sync: sync}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Get("/{id}", h.get)
	r.Patch("/{id}", h.update)
	r.Delete("/{id}", h.delete)
	r.Post("/{id}/contribute", h.contribute)
}

type goalResponse struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Progress      decimal.Decimal `json:"progress"`
	IsCompleted   bool            `json:"is_completed"`
	TargetDate    *string         `json:"target_date,omitempty"`
	Icon          string          `json:"icon"`
	CreatedAt     time.Time       `json:"created_at"`
}

func toResponse(g goal.Goal) goalResponse {
	resp := goalResponse{
		ID:            g.ID,
		Name:          g.Name,
		Description:   g.Description,
		TargetAmount:  g.TargetAmount,
		CurrentAmount: g.CurrentAmount,
		Progress:      g.Progress().Round(4),
		IsCompleted:   g.IsCompleted,
		Icon:          g.Icon,
		CreatedAt:     g.CreatedAt,
	}

	if g.TargetDate != nil {
		resp.TargetDate = new(g.TargetDate.Format(time.DateOnly))
	}

	return resp
}

type createGoalRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	TargetAmount  decimal.Decimal `json:"target_amount"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	TargetDate    *string         `json:"target_date,omitempty"`
	Icon          string          `json:"icon"`
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || *s == "" {
		return nil, nil
	}

	t, err := time.Parse(time.DateOnly, *s)
	if err != nil {
		return nil, errors.New("target_date must be YYYY-MM-DD")
	}

	return &t, nil
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	target, err := parseDate(req.TargetDate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g, err := h.store.Add(r.Context(), goal.CreateParams{
		Name:          req.Name,
		Description:   req.Description,
		TargetAmount:  req.TargetAmount,
		CurrentAmount: req.CurrentAmount,
		TargetDate:    target,
		Icon:          req.Icon,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toResponse(g))
}

func (h *Handler) list(w http.ResponseWriter, _ *http.Request) {
	goals := h.store.Goals()

	resp := make([]goalResponse, len(goals))
	for i, g := range goals {
		resp[i] = toResponse(g)
	}

	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	g, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(g))
}

type updateGoalRequest struct {
	Name         *string          `json:"name,omitempty"`
	Description  *string          `json:"description,omitempty"`
	TargetAmount *decimal.Decimal `json:"target_amount,omitempty"`
	TargetDate   *string          `json:"target_date,omitempty"`
	Icon         *string          `json:"icon,omitempty"`
	IsCompleted  *bool            `json:"is_completed,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g, err := h.store.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	if req.Name != nil {
		g.Name = *req.Name
	}

	if req.Description != nil {
		g.Description = *req.Description
	}

	if req.TargetAmount != nil {
		if !req.TargetAmount.IsPositive() {
			http.Error(w, "target_amount must be positive", http.StatusBadRequest)
			return
		}

		g.TargetAmount = *req.TargetAmount
	}

	if req.TargetDate != nil {
		if g.TargetDate, err = parseDate(req.TargetDate); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if req.Icon != nil {
		g.Icon = *req.Icon
	}

	if req.IsCompleted != nil {
		g.IsCompleted = *req.IsCompleted
	}

	if err := h.store.Update(r.Context(), g); err != nil {
		writeError(w, err)
		return
	}

	h.sync.RequestSync()

	updated, err := h.store.Get(g.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type contributeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (h *Handler) contribute(w http.ResponseWriter, r *http.Request) {
	var req contributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	g, err := h.store.Contribute(r.Context(), chi.URLParam(r, "id"), req.Amount)
	if err != nil {
		writeError(w, err)
		return
	}

	h.sync.RequestSync()

	writeJSON(w, http.StatusOK, toResponse(g))
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
	case errors.Is(err, goal.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, goal.ErrInvalid):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		slog.Error("goal request failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}
