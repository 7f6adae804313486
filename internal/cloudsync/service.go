// Package cloudsync keeps the local stores and the remote tables of one user
// in step: one gated initial pull per device, then periodic and debounced
// pushes, with manual push and pull on demand.
package cloudsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MrJamesThe3rd/finsync/internal/finance"
	"github.com/MrJamesThe3rd/finsync/internal/goal"
	"github.com/MrJamesThe3rd/finsync/internal/kv"
	"github.com/MrJamesThe3rd/finsync/internal/remote"
	"github.com/MrJamesThe3rd/finsync/internal/settings"
	"github.com/MrJamesThe3rd/finsync/internal/watch"
)

var (
	ErrSyncInProgress = errors.New("sync already in progress")
	ErrNoSession      = errors.New("no active sync session")
	ErrForeignData    = errors.New("local data belongs to another user")

	errStaleSession = errors.New("sync session ended")
	errSkipped      = errors.New("automatic sync skipped")
)

type FinanceStore interface {
	Transactions() []finance.Transaction
	Budgets() []finance.Budget
	SetTransactions(ctx context.Context, txs []finance.Transaction) error
	SetBudgets(ctx context.Context, budgets []finance.Budget) error
	Watch(fn func(finance.State)) (cancel func())
}

type GoalStore interface {
	Goals() []goal.Goal
	SetGoals(ctx context.Context, goals []goal.Goal) error
	Watch(fn func([]goal.Goal)) (cancel func())
}

type SettingsStore interface {
	Get() settings.Settings
	SetAvatar(ctx context.Context, avatar string) error
	SetNickname(ctx context.Context, nickname string) error
	SetNotificationTime(ctx context.Context, hhmm string) error
	SetDailyReminderEnabled(ctx context.Context, enabled bool) error
	SetNotificationsEnabled(ctx context.Context, enabled bool) error
}

type Stores struct {
	Finance  FinanceStore
	Goals    GoalStore
	Settings SettingsStore
}

type Config struct {
	PushInterval  time.Duration
	DebounceDelay time.Duration
	PullCooldown  time.Duration
}

func DefaultConfig() Config {
	return Config{
		PushInterval:  30 * time.Second,
		DebounceDelay: 2 * time.Second,
		PullCooldown:  time.Second,
	}
}

const (
	markerPrefix = "cloudsync/initial-load/"
	// ownerKey names the user whose remote state the local stores last held.
	ownerKey = "cloudsync/owner"
)

func markerKey(userID string) string {
	return markerPrefix + userID
}

type session struct {
	userID  string
	ctx     context.Context
	cancel  context.CancelFunc
	unwatch []func()
	done    chan struct{}

	// Guarded by Service.mu.
	loaded bool
	// foreign is set while the local stores hold another user's data.
	foreign bool
	phase   phase
}

type sizes struct {
	transactions int
	budgets      int
	goals        int
}

type Service struct {
	gw      Gateway
	stores  Stores
	markers kv.Store
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time

	startMu sync.Mutex

	mu         sync.Mutex
	session    *session
	suppressed bool
	pullSeq    uint64
	cooldown   *time.Timer
	debounce   *time.Timer
	sizes      sizes
	status     Status

	subscribers watch.List[Status]
}

type Option func(*Service)

func WithConfig(cfg Config) Option {
	return func(s *Service) { s.cfg = cfg }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// NewService wires the orchestrator. markers holds the per-user initial-load
// flags and must survive restarts.
func NewService(gw Gateway, stores Stores, markers kv.Store, opts ...Option) *Service {
	s := &Service{
		gw:      gw,
		stores:  stores,
		markers: markers,
		cfg:     DefaultConfig(),
		logger:  slog.Default(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.logger = s.logger.With("component", "cloudsync")

	return s
}

// Start begins a session for userID, replacing any previous one. The first
// start for a user on this device pulls the remote state before returning,
// as does a start after another user's data was loaded locally. A failed
// initial pull is returned but leaves the session running.
func (s *Service) Start(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoSession
	}

	sess, err := s.install(ctx, userID)
	if err != nil {
		return err
	}

	s.logger.Info("sync session started", "user_id", userID, "initial_load_done", sess.loaded)

	if sess.loaded {
		return nil
	}

	if err := s.run(sess.ctx, sess, phasePulling, triggerInitial); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	return nil
}

// install replaces the current session with a new one for userID. Concurrent
// starts are serialised so each stopped session is fully torn down.
func (s *Service) install(ctx context.Context, userID string) (*session, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	s.Stop()

	loaded, foreign, err := s.localState(ctx, userID)
	if err != nil {
		return nil, err
	}

	sessCtx, cancel := context.WithCancel(ctx)
	sess := &session{
		userID:  userID,
		ctx:     sessCtx,
		cancel:  cancel,
		done:    make(chan struct{}),
		loaded:  loaded,
		foreign: foreign,
	}

	sess.unwatch = []func(){
		s.stores.Finance.Watch(func(st finance.State) {
			s.onChange(sess, func(z *sizes) {
				z.transactions = len(st.Transactions)
				z.budgets = len(st.Budgets)
			})
		}),
		s.stores.Goals.Watch(func(gs []goal.Goal) {
			s.onChange(sess, func(z *sizes) { z.goals = len(gs) })
		}),
	}

	current := sizes{
		transactions: len(s.stores.Finance.Transactions()),
		budgets:      len(s.stores.Finance.Budgets()),
		goals:        len(s.stores.Goals.Goals()),
	}

	s.mu.Lock()
	s.session = sess
	s.sizes = current
	s.mu.Unlock()

	go s.loop(sess)

	return sess, nil
}

// Stop ends the session. Gateway calls still in flight are not waited for;
// their results are discarded and they keep no hold on the next session.
func (s *Service) Stop() {
	s.mu.Lock()

	sess := s.session
	if sess == nil {
		s.mu.Unlock()
		return
	}

	s.session = nil
	stopTimer(&s.debounce)
	stopTimer(&s.cooldown)
	s.suppressed = false
	s.status.IsSyncing = false
	st := s.status
	s.mu.Unlock()

	sess.cancel()

	for _, unwatch := range sess.unwatch {
		unwatch()
	}

	<-sess.done

	s.logger.Info("sync session stopped", "user_id", sess.userID)
	s.subscribers.Notify(st)
}

// SyncNow pushes the local state immediately.
func (s *Service) SyncNow(ctx context.Context) error {
	return s.manual(ctx, phasePushing)
}

// LoadFromCloud replaces the local collections with the remote ones.
func (s *Service) LoadFromCloud(ctx context.Context) error {
	return s.manual(ctx, phasePulling)
}

// RequestSync schedules a debounced push, as if a watched collection changed.
func (s *Service) RequestSync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		s.scheduleLocked(s.session)
	}
}

func (s *Service) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := s.status
	if st.LastSync != nil {
		st.LastSync = new(*st.LastSync)
	}

	return st
}

// Subscribe calls fn with every status change.
func (s *Service) Subscribe(fn func(Status)) (cancel func()) {
	return s.subscribers.Add(fn)
}

// UserID returns the user of the active session, or "".
func (s *Service) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session == nil {
		return ""
	}

	return s.session.userID
}

// InitialLoadDone reports whether userID has completed a pull on this device
// and no other user's data has been loaded since.
func (s *Service) InitialLoadDone(ctx context.Context, userID string) (bool, error) {
	loaded, _, err := s.localState(ctx, userID)
	return loaded, err
}

// localState reports whether userID's initial load still holds locally, and
// whether the stores were last filled from another user's account.
func (s *Service) localState(ctx context.Context, userID string) (loaded, foreign bool, err error) {
	marked, err := s.hasMarker(ctx, userID)
	if err != nil {
		return false, false, err
	}

	owner, err := s.markers.Get(ctx, ownerKey)
	switch {
	case errors.Is(err, kv.ErrNotFound):
		return marked, false, nil
	case err != nil:
		return false, false, fmt.Errorf("reading local data owner: %w", err)
	}

	if string(owner) != userID {
		return false, true, nil
	}

	return marked, false, nil
}

func (s *Service) hasMarker(ctx context.Context, userID string) (bool, error) {
	_, err := s.markers.Get(ctx, markerKey(userID))
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("reading initial-load marker: %w", err)
	}

	return true, nil
}

func (s *Service) manual(ctx context.Context, p phase) error {
	s.mu.Lock()
	sess := s.session
	s.mu.Unlock()

	if sess == nil {
		return ErrNoSession
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	stop := context.AfterFunc(sess.ctx, cancel)
	defer stop()

	return s.run(ctx, sess, p, triggerManual)
}

func (s *Service) auto(sess *session, t trigger) {
	err := s.run(sess.ctx, sess, phasePushing, t)

	switch {
	case errors.Is(err, errSkipped), errors.Is(err, ErrSyncInProgress),
		errors.Is(err, ErrNoSession), errors.Is(err, ErrForeignData):
		s.logger.Debug("automatic push dropped", "trigger", t, "reason", err)
	}
}

func (s *Service) loop(sess *session) {
	defer close(sess.done)

	ticker := time.NewTicker(s.cfg.PushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-sess.ctx.Done():
			return
		case <-ticker.C:
			s.auto(sess, triggerPeriodic)
		}
	}
}

func (s *Service) onChange(sess *session, update func(*sizes)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != sess {
		return
	}

	next := s.sizes
	update(&next)

	if next == s.sizes {
		return
	}

	s.sizes = next
	s.scheduleLocked(sess)
}

// scheduleLocked (re)arms the debounce timer. Changes made while a pull is
// running or cooling down are not scheduled at all.
func (s *Service) scheduleLocked(sess *session) {
	if s.suppressed || !sess.loaded {
		return
	}

	stopTimer(&s.debounce)
	s.debounce = time.AfterFunc(s.cfg.DebounceDelay, func() {
		s.auto(sess, triggerDebounce)
	})
}

func (s *Service) current(sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.session == sess
}

// begin moves from idle to p for sess, or explains why it cannot.
func (s *Service) begin(sess *session, p phase, t trigger) error {
	s.mu.Lock()

	switch {
	case s.session != sess:
		s.mu.Unlock()
		return ErrNoSession
	case sess.phase != phaseIdle:
		s.mu.Unlock()
		return ErrSyncInProgress
	case (t == triggerPeriodic || t == triggerDebounce) && (!sess.loaded || s.suppressed):
		s.mu.Unlock()
		return errSkipped
	case p == phasePushing && sess.foreign:
		s.mu.Unlock()
		return ErrForeignData
	}

	sess.phase = p

	if p == phasePulling {
		s.suppressed = true
		s.pullSeq++
		stopTimer(&s.cooldown)
		stopTimer(&s.debounce)
	}

	s.status.IsSyncing = true
	st := s.status
	s.mu.Unlock()

	s.subscribers.Notify(st)

	return nil
}

func (s *Service) finish(sess *session, p phase, err error) {
	s.mu.Lock()

	sess.phase = phaseIdle

	// An ended session leaves the status, suppression and timers of its
	// successor alone.
	if s.session != sess {
		s.mu.Unlock()
		return
	}

	if p == phasePulling {
		if err == nil {
			sess.loaded = true
			sess.foreign = false
		}

		seq := s.pullSeq
		s.cooldown = time.AfterFunc(s.cfg.PullCooldown, func() {
			s.mu.Lock()
			defer s.mu.Unlock()

			if s.pullSeq == seq {
				s.suppressed = false
			}
		})
	}

	if err != nil {
		s.status = Status{Error: statusMessage(err)}
	} else {
		s.status = Status{LastSync: new(s.now().UTC())}
	}

	st := s.status
	s.mu.Unlock()

	s.subscribers.Notify(st)
}

func (s *Service) run(ctx context.Context, sess *session, p phase, t trigger) error {
	if err := s.begin(sess, p, t); err != nil {
		return err
	}

	start := s.now()

	var err error

	switch p {
	case phasePulling:
		err = s.pull(ctx, sess)
		if err == nil && !s.current(sess) {
			err = errStaleSession
		}

		if err == nil {
			s.saveMarkers(ctx, sess.userID)
		}
	case phasePushing:
		err = s.push(ctx, sess)
	}

	s.finish(sess, p, err)

	if err != nil {
		s.logFailure(p, t, err)
		return err
	}

	s.logger.Info("sync complete", "op", p, "trigger", t, "duration", s.now().Sub(start))

	return nil
}

func (s *Service) saveMarkers(ctx context.Context, userID string) {
	if err := s.markers.Put(ctx, markerKey(userID), []byte("true")); err != nil {
		s.logger.Warn("failed to save initial-load marker", "user_id", userID, "error", err)
	}

	if err := s.markers.Put(ctx, ownerKey, []byte(userID)); err != nil {
		s.logger.Warn("failed to save local data owner", "user_id", userID, "error", err)
	}
}

func (s *Service) pull(ctx context.Context, sess *session) error {
	txs, err := selectRows(ctx, s, sess, remote.Transactions, decodeTransaction)
	if err != nil {
		return err
	}

	if err := s.stores.Finance.SetTransactions(ctx, txs); err != nil {
		return fmt.Errorf("replacing transactions: %w", err)
	}

	budgets, err := selectRows(ctx, s, sess, remote.Budgets, decodeBudget)
	if err != nil {
		return err
	}

	if err := s.stores.Finance.SetBudgets(ctx, budgets); err != nil {
		return fmt.Errorf("replacing budgets: %w", err)
	}

	goals, err := selectRows(ctx, s, sess, remote.Goals, decodeGoal)
	if err != nil {
		return err
	}

	if err := s.stores.Goals.SetGoals(ctx, goals); err != nil {
		return fmt.Errorf("replacing goals: %w", err)
	}

	s.pullSettings(ctx, sess)

	return nil
}

func selectRows[T any](ctx context.Context, s *Service, sess *session, table remote.Table, decode func(remote.Row) (T, error)) ([]T, error) {
	rows, err := s.gw.Select(ctx, table, sess.userID)
	if err != nil {
		return nil, fmt.Errorf("pulling %s: %w", table.Name, err)
	}

	if !s.current(sess) {
		return nil, errStaleSession
	}

	out, errs := decodeRows(rows, decode)
	for _, e := range errs {
		s.logger.Warn("skipping malformed remote row", "table", table.Name, "error", e)
	}

	return out, nil
}

// pullSettings applies the remote settings row field by field. Any failure
// leaves the local settings as they were.
func (s *Service) pullSettings(ctx context.Context, sess *session) {
	rows, err := s.gw.Select(ctx, remote.UserSettings, sess.userID)
	if err != nil {
		s.logger.Warn("failed to pull settings, keeping local values",
			"kind", remote.KindOf(err), "error", err)
		return
	}

	if len(rows) == 0 || !s.current(sess) {
		return
	}

	row := rows[0]
	st := s.stores.Settings

	fields := []struct {
		column string
		apply  func(v any) error
	}{
		{"avatar", func(v any) error { return st.SetAvatar(ctx, asString(v)) }},
		{"nickname", func(v any) error { return st.SetNickname(ctx, asString(v)) }},
		{"notification_time", func(v any) error { return st.SetNotificationTime(ctx, asString(v)) }},
		{"daily_reminder_enabled", func(v any) error { return st.SetDailyReminderEnabled(ctx, asBool(v)) }},
		{"notifications_enabled", func(v any) error { return st.SetNotificationsEnabled(ctx, asBool(v)) }},
	}

	for _, f := range fields {
		v, ok := row[f.column]
		if !ok || v == nil {
			continue
		}

		if err := f.apply(v); err != nil {
			s.logger.Warn("failed to apply remote setting", "column", f.column, "error", err)
		}
	}
}

func (s *Service) push(ctx context.Context, sess *session) error {
	uid := sess.userID

	steps := []struct {
		table remote.Table
		rows  func() []remote.Row
	}{
		{remote.Transactions, func() []remote.Row { return encodeAll(s.stores.Finance.Transactions(), uid, encodeTransaction) }},
		{remote.Budgets, func() []remote.Row { return encodeAll(s.stores.Finance.Budgets(), uid, encodeBudget) }},
		{remote.Goals, func() []remote.Row { return encodeAll(s.stores.Goals.Goals(), uid, encodeGoal) }},
	}

	for _, step := range steps {
		if !s.current(sess) {
			return errStaleSession
		}

		rows := step.rows()
		if len(rows) == 0 {
			continue
		}

		if err := s.gw.Upsert(ctx, step.table, rows, step.table.ConflictKey); err != nil {
			return fmt.Errorf("pushing %s: %w", step.table.Name, err)
		}
	}

	if !s.current(sess) {
		return errStaleSession
	}

	row := encodeSettings(s.stores.Settings.Get(), uid)
	if err := s.gw.Upsert(ctx, remote.UserSettings, []remote.Row{row}, remote.UserSettings.ConflictKey); err != nil {
		s.logger.Warn("failed to push settings", "kind", remote.KindOf(err), "error", err)
	}

	return nil
}

func encodeAll[T any](items []T, userID string, encode func(T, string) remote.Row) []remote.Row {
	rows := make([]remote.Row, len(items))
	for i, item := range items {
		rows[i] = encode(item, userID)
	}

	return rows
}

func (s *Service) logFailure(p phase, t trigger, err error) {
	if errors.Is(err, errStaleSession) {
		s.logger.Debug("discarded result of ended session", "op", p, "trigger", t)
		return
	}

	attrs := []any{"op", p, "trigger", t, "error", err}

	switch remote.KindOf(err) {
	case remote.KindPermission:
		s.logger.Error("sync rejected by remote access policy", attrs...)
	case remote.KindSchemaMissing:
		s.logger.Error("remote table missing, run the migrations", attrs...)
	default:
		s.logger.Error("sync failed", attrs...)
	}
}

// statusMessage is the backend's own message when there is one.
func statusMessage(err error) string {
	var rerr *remote.Error
	if errors.As(err, &rerr) {
		return rerr.Message
	}

	return err.Error()
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
