// Package app wires the local stores, the remote gateway and the sync
// orchestrator for the binaries under cmd/.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/gofrs/flock"

	"github.com/MrJamesThe3rd/finsync/internal/auth"
	"github.com/MrJamesThe3rd/finsync/internal/cloudsync"
	"github.com/MrJamesThe3rd/finsync/internal/config"
	"github.com/MrJamesThe3rd/finsync/internal/database"
	"github.com/MrJamesThe3rd/finsync/internal/finance"
	"github.com/MrJamesThe3rd/finsync/internal/goal"
	"github.com/MrJamesThe3rd/finsync/internal/insight"
	"github.com/MrJamesThe3rd/finsync/internal/kv"
	"github.com/MrJamesThe3rd/finsync/internal/remote/postgres"
	"github.com/MrJamesThe3rd/finsync/internal/remote/rest"
	"github.com/MrJamesThe3rd/finsync/internal/settings"
)

const tokenKey = "auth/token"

var ErrLocked = errors.New("another finsync process is using the data directory")

type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	KV       kv.Store
	Finance  *finance.Store
	Goals    *goal.Store
	Settings *settings.Store
	Insights *insight.Service
	Sync     *cloudsync.Service

	lock     *flock.Flock
	local    *sql.DB
	remoteDB *sql.DB
	token    atomic.Pointer[string]
}

// Open takes the data directory lock and opens everything the binaries share.
// The remote is not contacted until the first sync.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	a := &App{Config: cfg, Logger: logger}

	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	if err := os.MkdirAll(cfg.Local.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	lock := flock.New(cfg.LockPath())

	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring data lock: %w", err)
	}

	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLocked, cfg.Local.DataDir)
	}

	a.lock = lock

	if a.local, err = database.OpenLocal(ctx, cfg.LocalDBPath()); err != nil {
		return nil, err
	}

	store, err := kv.NewSQLite(ctx, a.local)
	if err != nil {
		return nil, err
	}

	a.KV = store

	if a.Finance, err = finance.Open(ctx, store); err != nil {
		return nil, err
	}

	if a.Goals, err = goal.Open(ctx, store); err != nil {
		return nil, err
	}

	if a.Settings, err = settings.Open(ctx, store); err != nil {
		return nil, err
	}

	a.Insights = insight.NewService(a.Finance)

	gw, err := a.gateway()
	if err != nil {
		return nil, err
	}

	a.Sync = cloudsync.NewService(gw,
		cloudsync.Stores{Finance: a.Finance, Goals: a.Goals, Settings: a.Settings},
		store,
		cloudsync.WithConfig(cloudsync.Config{
			PushInterval:  cfg.Sync.PushInterval,
			DebounceDelay: cfg.Sync.DebounceDelay,
			PullCooldown:  cfg.Sync.PullCooldown,
		}),
		cloudsync.WithLogger(logger),
	)

	return a, nil
}

func (a *App) gateway() (cloudsync.Gateway, error) {
	switch a.Config.Remote.Driver {
	case config.RemoteREST:
		return rest.New(a.Config.Remote.URL, a.Config.Remote.APIKey, rest.WithToken(func() string {
			if t := a.token.Load(); t != nil {
				return *t
			}

			return ""
		})), nil
	default:
		db, err := database.Connect(a.Config.ConnectionString())
		if err != nil {
			return nil, err
		}

		a.remoteDB = db

		return postgres.New(db), nil
	}
}

// Session resolves the signed-in user from SESSION_TOKEN or the token saved
// by the login command, in that order.
func (a *App) Session(ctx context.Context) (auth.Session, error) {
	token := a.Config.Auth.SessionToken

	if token == "" {
		raw, err := a.KV.Get(ctx, tokenKey)
		if err != nil && !errors.Is(err, kv.ErrNotFound) {
			return auth.Session{}, fmt.Errorf("reading saved token: %w", err)
		}

		token = string(raw)
	}

	s, err := auth.ParseSession(token, []byte(a.Config.Auth.JWTSecret))
	if err != nil {
		return auth.Session{}, err
	}

	a.token.Store(&s.Token)

	return s, nil
}

// SaveToken validates token and keeps it for later runs.
func (a *App) SaveToken(ctx context.Context, token string) (auth.Session, error) {
	s, err := auth.ParseSession(token, []byte(a.Config.Auth.JWTSecret))
	if err != nil {
		return auth.Session{}, err
	}

	if err := a.KV.Put(ctx, tokenKey, []byte(s.Token)); err != nil {
		return auth.Session{}, fmt.Errorf("saving token: %w", err)
	}

	a.token.Store(&s.Token)

	return s, nil
}

// Logout forgets the saved token and ends any sync session.
func (a *App) Logout(ctx context.Context) error {
	a.Sync.Stop()
	a.token.Store(nil)

	if err := a.KV.Delete(ctx, tokenKey); err != nil && !errors.Is(err, kv.ErrNotFound) {
		return fmt.Errorf("removing token: %w", err)
	}

	return nil
}

// StartSync starts the sync session for the signed-in user. It is a no-op
// when sync is disabled.
func (a *App) StartSync(ctx context.Context) error {
	if !a.Config.Sync.Enabled {
		a.Logger.Info("cloud sync disabled")
		return nil
	}

	s, err := a.Session(ctx)
	if err != nil {
		return fmt.Errorf("resolving session: %w", err)
	}

	return a.Sync.Start(ctx, s.UserID)
}

func (a *App) Close() error {
	var errs []error

	if a.Sync != nil {
		a.Sync.Stop()
	}

	if a.remoteDB != nil {
		errs = append(errs, a.remoteDB.Close())
	}

	if a.local != nil {
		errs = append(errs, a.local.Close())
	}

	if a.lock != nil {
		errs = append(errs, a.lock.Unlock())
	}

	return errors.Join(errs...)
}
