package settings

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/finsync/internal/cloudsync"
	"github.com/MrJamesThe3rd/finsync/internal/settings"
)

type Handler struct {
	store *settings.Store
	sync  cloudsync.Requester
}

func NewHandler(store *settings.Store, sync cloudsync.Requester) *Handler {
	return &Handler{store: store, sync: sync}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.get)
	r.Patch("/", h.update)
}

func (h *Handler) get(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Get())
}

type updateSettingsRequest struct {
	Avatar               *string `json:"avatar,omitempty"`
	Nickname             *string `json:"nickname,omitempty"`
	NotificationTime     *string `json:"notification_time,omitempty"`
	DailyReminderEnabled *bool   `json:"daily_reminder_enabled,omitempty"`
	NotificationsEnabled *bool   `json:"notifications_enabled,omitempty"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	var req updateSettingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if req.NotificationTime != nil && !settings.ValidTime(*req.NotificationTime) {
		http.Error(w, settings.ErrInvalidTime.Error(), http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	var steps []func(context.Context) error

	if req.Avatar != nil {
		steps = append(steps, func(ctx context.Context) error { return h.store.SetAvatar(ctx, *req.Avatar) })
	}

	if req.Nickname != nil {
		steps = append(steps, func(ctx context.Context) error { return h.store.SetNickname(ctx, *req.Nickname) })
	}

	if req.NotificationTime != nil {
		steps = append(steps, func(ctx context.Context) error { return h.store.SetNotificationTime(ctx, *req.NotificationTime) })
	}

	if req.DailyReminderEnabled != nil {
		steps = append(steps, func(ctx context.Context) error {
			return h.store.SetDailyReminderEnabled(ctx, *req.DailyReminderEnabled)
		})
	}

	if req.NotificationsEnabled != nil {
		steps = append(steps, func(ctx context.Context) error {
			return h.store.SetNotificationsEnabled(ctx, *req.NotificationsEnabled)
		})
	}

	for _, step := range steps {
		if err := step(ctx); err != nil {
			if errors.Is(err, settings.ErrInvalidTime) {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}

			slog.Error("failed to update settings", "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)

			return
		}
	}

	if len(steps) > 0 {
		h.sync.RequestSync()
	}

	writeJSON(w, http.StatusOK, h.store.Get())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
