package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MrJamesThe3rd/finsync/internal/app"
	"github.com/MrJamesThe3rd/finsync/internal/auth"
	"github.com/MrJamesThe3rd/finsync/internal/config"
	finsyncHttp "github.com/MrJamesThe3rd/finsync/internal/http"
	syncHandler "github.com/MrJamesThe3rd/finsync/internal/http/cloudsync"
	financeHandler "github.com/MrJamesThe3rd/finsync/internal/http/finance"
	goalHandler "github.com/MrJamesThe3rd/finsync/internal/http/goal"
	insightHandler "github.com/MrJamesThe3rd/finsync/internal/http/insight"
	settingsHandler "github.com/MrJamesThe3rd/finsync/internal/http/settings"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.LogLevel()})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Open(ctx, cfg, slog.Default())
	if err != nil {
		slog.Error("failed to open local data", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.StartSync(ctx); err != nil {
		if errors.Is(err, auth.ErrNoSession) {
			slog.Warn("no session, running without cloud sync")
		} else {
			slog.Error("cloud sync start failed", "error", err)
		}
	}

	var (
		financeH  = financeHandler.NewHandler(a.Finance, a.Sync)
		goalH     = goalHandler.NewHandler(a.Goals, a.Sync)
		settingsH = settingsHandler.NewHandler(a.Settings, a.Sync)
		syncH     = syncHandler.NewHandler(a.Sync)
		insightH  = insightHandler.NewHandler(a.Insights)
	)

	router := finsyncHttp.New(finsyncHttp.Handlers{
		Finance:  financeH,
		Goals:    goalH,
		Settings: settingsH,
		Sync:     syncH,
		Insights: insightH,
	}, finsyncHttp.Options{JWTSecret: []byte(cfg.Auth.JWTSecret)})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.Timeout,
		ReadTimeout:       cfg.Server.Timeout,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "addr", srv.Addr, "remote", cfg.Remote.Driver)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
