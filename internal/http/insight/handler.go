package insight

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/finsync/internal/insight"
)

type Handler struct {
	svc *insight.Service
}

func NewHandler(svc *insight.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/budgets", h.budgets)
	r.Get("/anomalies", h.anomalies)
}

func (h *Handler) budgets(w http.ResponseWriter, r *http.Request) {
	var at time.Time

	if s := r.URL.Query().Get("at"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			http.Error(w, "at must be YYYY-MM-DD", http.StatusBadRequest)
			return
		}

		at = t
	}

	writeJSON(w, h.svc.BudgetUsage(at))
}

func (h *Handler) anomalies(w http.ResponseWriter, _ *http.Request) {
	anomalies := h.svc.Anomalies()
	if anomalies == nil {
		anomalies = []insight.Anomaly{}
	}

	writeJSON(w, anomalies)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
