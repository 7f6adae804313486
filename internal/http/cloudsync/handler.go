package cloudsync

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/finsync/internal/cloudsync"
)

const writeTimeout = 5 * time.Second

//go:generate mockgen -source=handler.go -destination=syncer_mock.go -package=cloudsync
type Syncer interface {
	Status() cloudsync.Status
	SyncNow(ctx context.Context) error
	LoadFromCloud(ctx context.Context) error
	Subscribe(fn func(cloudsync.Status)) (cancel func())
}

type Handler struct {
	svc     Syncer
	origins []string
}

// NewHandler serves sync status and manual triggers. originPatterns are the
// extra origins allowed to open the events socket.
func NewHandler(svc Syncer, originPatterns ...string) *Handler {
	return &Handler{svc: svc, origins: originPatterns}
}

func (h *Handler) Routes(r chi.Router) {
	r.Get("/status", h.status)
	r.Post("/push", h.push)
	r.Post("/pull", h.pull)
	r.Get("/events", h.events)
}

func (h *Handler) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Status())
}

func (h *Handler) push(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, h.svc.SyncNow(r.Context()))
}

func (h *Handler) pull(w http.ResponseWriter, r *http.Request) {
	h.trigger(w, h.svc.LoadFromCloud(r.Context()))
}

func (h *Handler) trigger(w http.ResponseWriter, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, h.svc.Status())
	case errors.Is(err, cloudsync.ErrSyncInProgress), errors.Is(err, cloudsync.ErrForeignData):
		http.Error(w, err.Error(), http.StatusConflict)
	case errors.Is(err, cloudsync.ErrNoSession):
		http.Error(w, err.Error(), http.StatusPreconditionFailed)
	default:
		writeJSON(w, http.StatusBadGateway, h.svc.Status())
	}
}

// events streams every status change over a websocket, starting with the
// current one. Updates are dropped for a client that falls behind.
func (h *Handler) events(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: h.origins})
	if err != nil {
		slog.Warn("failed to accept sync events socket", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx := conn.CloseRead(r.Context())

	updates := make(chan cloudsync.Status, 8)
	cancel := h.svc.Subscribe(func(st cloudsync.Status) {
		select {
		case updates <- st:
		default:
		}
	})
	defer cancel()

	if err := write(ctx, conn, h.svc.Status()); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "")
			return
		case st := <-updates:
			if err := write(ctx, conn, st); err != nil {
				slog.Debug("sync events client gone", "error", err)
				return
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, st cloudsync.Status) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	return wsjson.Write(ctx, conn, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}
