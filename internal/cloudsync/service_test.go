package cloudsync_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/finsync/internal/cloudsync"
	"github.com/MrJamesThe3rd/finsync/internal/finance"
	"github.com/MrJamesThe3rd/finsync/internal/goal"
	"github.com/MrJamesThe3rd/finsync/internal/kv"
	"github.com/MrJamesThe3rd/finsync/internal/remote"
	"github.com/MrJamesThe3rd/finsync/internal/settings"
)

const userID = "user-1"

// quiet keeps timers out of the way unless a test opts in.
var quiet = cloudsync.Config{
	PushInterval:  time.Hour,
	DebounceDelay: time.Hour,
	PullCooldown:  time.Millisecond,
}

type harness struct {
	svc      *cloudsync.Service
	finance  *finance.Store
	goals    *goal.Store
	settings *settings.Store
	markers  *kv.Memory
}

func newHarness(t *testing.T, gw cloudsync.Gateway, cfg cloudsync.Config) *harness {
	t.Helper()

	ctx := context.Background()
	backing := kv.NewMemory()

	fin, err := finance.Open(ctx, backing)
	require.NoError(t, err)

	goals, err := goal.Open(ctx, backing)
	require.NoError(t, err)

	st, err := settings.Open(ctx, backing)
	require.NoError(t, err)

	svc := cloudsync.NewService(gw, cloudsync.Stores{Finance: fin, Goals: goals, Settings: st}, backing,
		cloudsync.WithConfig(cfg),
		cloudsync.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	t.Cleanup(svc.Stop)

	return &harness{svc: svc, finance: fin, goals: goals, settings: st, markers: backing}
}

// markLoaded pretends the initial load already happened on this device.
func (h *harness) markLoaded(t *testing.T) {
	t.Helper()
	require.NoError(t, h.markers.Put(context.Background(), "cloudsync/initial-load/"+userID, []byte("true")))
}

func (h *harness) addExpense(t *testing.T, amount string) finance.Transaction {
	t.Helper()

	tx, err := h.finance.AddTransaction(context.Background(), finance.CreateParams{
		Amount:   decimal.RequireFromString(amount),
		Type:     finance.TypeExpense,
		Category: "food",
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	return tx
}

func remoteTx(id, amount string) remote.Row {
	return remote.Row{
		"id":          id,
		"user_id":     userID,
		"type":        "expense",
		"amount":      amount,
		"category":    "food",
		"description": "remote " + id,
		"date":        "2024-02-01T00:00:00.000Z",
		"created_at":  "2024-02-01T09:30:00.000Z",
	}
}

func TestService_PushIsIdempotent(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	h := newHarness(t, gw, quiet)
	h.markLoaded(t)

	require.NoError(t, h.svc.Start(ctx, userID))

	h.addExpense(t, "10.00")
	h.addExpense(t, "2.50")

	_, err := h.finance.AddBudget(ctx, finance.BudgetParams{Category: "food", Limit: decimal.NewFromInt(100), Period: finance.PeriodMonthly})
	require.NoError(t, err)

	_, err = h.goals.Add(ctx, goal.CreateParams{Name: "Car", TargetAmount: decimal.NewFromInt(5000), Icon: "🚗"})
	require.NoError(t, err)

	require.NoError(t, h.svc.SyncNow(ctx))
	first := gw.allUpserts()

	require.NoError(t, h.svc.SyncNow(ctx))
	second := gw.allUpserts()[len(first):]

	require.Len(t, first, 4)
	assert.Equal(t, first, second)

	assert.Equal(t, []string{"transactions", "budgets", "goals", "user_settings"},
		[]string{first[0].table, first[1].table, first[2].table, first[3].table})
	assert.Equal(t, "id", first[0].onConflict)
	assert.Equal(t, "user_id", first[3].onConflict)
	assert.Len(t, gw.remoteRows(remote.Transactions), 2)
	assert.Equal(t, "car", gw.remoteRows(remote.Goals)[0]["icon"])
}

func TestService_PushSkipsEmptyCollections(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	h := newHarness(t, gw, quiet)
	h.markLoaded(t)

	require.NoError(t, h.svc.Start(ctx, userID))
	require.NoError(t, h.svc.SyncNow(ctx))

	calls := gw.allUpserts()
	require.Len(t, calls, 1)
	assert.Equal(t, "user_settings", calls[0].table)
	assert.Equal(t, "20:00", calls[0].rows[0]["notification_time"])
}

func TestService_BudgetLimitRoundTrip(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	h := newHarness(t, gw, quiet)
	h.markLoaded(t)

	require.NoError(t, h.svc.Start(ctx, userID))

	require.NoError(t, h.finance.SetBudgets(ctx, []finance.Budget{{
		ID:          "b1",
		Category:    "food",
		LimitAmount: decimal.NewFromInt(250),
		Period:      finance.PeriodWeekly,
	}}))

	require.NoError(t, h.svc.SyncNow(ctx))

	pushed := gw.upsertsFor(remote.Budgets)
	require.Len(t, pushed, 1)
	assert.True(t, decimal.NewFromInt(250).Equal(pushed[0].rows[0]["limit_amount"].(decimal.Decimal)))

	require.NoError(t, h.finance.SetBudgets(ctx, nil))
	require.NoError(t, h.svc.LoadFromCloud(ctx))

	budgets := h.finance.Budgets()
	require.Len(t, budgets, 1)
	assert.True(t, budgets[0].Limit.Equal(decimal.NewFromInt(250)))
	assert.True(t, budgets[0].LimitAmount.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, finance.PeriodWeekly, budgets[0].Period)
}

func TestService_InitialPullRunsOncePerUser(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.seed(remote.Transactions, remoteTx("t1", "1"))

	h := newHarness(t, gw, quiet)

	require.NoError(t, h.svc.Start(ctx, userID))
	assert.Equal(t, 1, gw.selectCount(remote.Transactions))
	assert.Len(t, h.finance.Transactions(), 1)

	h.svc.Stop()

	require.NoError(t, h.svc.Start(ctx, userID))
	assert.Equal(t, 1, gw.selectCount(remote.Transactions))

	marker, err := h.markers.Get(ctx, "cloudsync/initial-load/"+userID)
	require.NoError(t, err)
	assert.Equal(t, "true", string(marker))
}

func TestService_FailedInitialPullLeavesGateClosed(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.failSelect(remote.Transactions, errors.New("network unreachable"))

	cfg := cloudsync.Config{PushInterval: 20 * time.Millisecond, DebounceDelay: 20 * time.Millisecond, PullCooldown: time.Millisecond}
	h := newHarness(t, gw, cfg)

	err := h.svc.Start(ctx, userID)
	require.Error(t, err)
	assert.Contains(t, h.svc.Status().Error, "network unreachable")

	h.addExpense(t, "5")

	assert.Never(t, func() bool { return len(gw.allUpserts()) > 0 }, 150*time.Millisecond, 10*time.Millisecond)

	_, err = h.markers.Get(ctx, "cloudsync/initial-load/"+userID)
	assert.ErrorIs(t, err, kv.ErrNotFound)

	// A manual push is still allowed.
	require.NoError(t, h.svc.SyncNow(ctx))
	assert.Len(t, gw.upsertsFor(remote.Transactions), 1)
}

func TestService_PullSuppressesDebouncedPush(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.seed(remote.Transactions, remoteTx("t1", "1"))

	cfg := cloudsync.Config{PushInterval: time.Hour, DebounceDelay: 30 * time.Millisecond, PullCooldown: 300 * time.Millisecond}
	h := newHarness(t, gw, cfg)
	h.markLoaded(t)

	require.NoError(t, h.svc.Start(ctx, userID))
	require.NoError(t, h.svc.LoadFromCloud(ctx))

	// Inside the cooldown.
	h.addExpense(t, "2")

	assert.Never(t, func() bool { return len(gw.allUpserts()) > 0 }, 150*time.Millisecond, 10*time.Millisecond)

	time.Sleep(250 * time.Millisecond)

	// After the cooldown.
	h.addExpense(t, "3")

	require.Eventually(t, func() bool {
		return len(gw.upsertsFor(remote.Transactions)) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Len(t, gw.upsertsFor(remote.Transactions)[0].rows, 3)
}

func TestService_DebounceCoalescesChanges(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()

	cfg := cloudsync.Config{PushInterval: time.Hour, DebounceDelay: 100 * time.Millisecond, PullCooldown: time.Millisecond}
	h := newHarness(t, gw, cfg)
	h.markLoaded(t)

	require.NoError(t, h.svc.Start(ctx, userID))

	h.addExpense(t, "1")
	h.addExpense(t, "2")
	h.addExpense(t, "3")

	require.Eventually(t, func() bool {
		return len(gw.upsertsFor(remote.Transactions)) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Len(t, gw.upsertsFor(remote.Transactions)[0].rows, 3)
	assert.Never(t, func() bool {
		return len(gw.upsertsFor(remote.Transactions)) > 1
	}, 300*time.Millisecond, 20*time.Millisecond)
}

func TestService_SameSizeEditsDoNotPush(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()

	cfg := cloudsync.Config{PushInterval: time.Hour, DebounceDelay: 20 * time.Millisecond, PullCooldown: time.Millisecond}
	h := newHarness(t, gw, cfg)
	h.markLoaded(t)

	tx := h.addExpense(t, "1")

	require.NoError(t, h.svc.Start(ctx, userID))

	tx.Description = "edited"
	require.NoError(t, h.finance.UpdateTransaction(ctx, tx))

	assert.Never(t, func() bool { return len(gw.allUpserts()) > 0 }, 100*time.Millisecond, 10*time.Millisecond)

	h.svc.RequestSync()

	require.Eventually(t, func() bool {
		return len(gw.upsertsFor(remote.Transactions)) == 1
	}, time.Second, 10*time.Millisecond)

	assert.Equal(t, "edited", gw.upsertsFor(remote.Transactions)[0].rows[0]["description"])
}

func TestService_PeriodicPush(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()

	cfg := cloudsync.Config{PushInterval: 30 * time.Millisecond, DebounceDelay: time.Hour, PullCooldown: time.Millisecond}
	h := newHarness(t, gw, cfg)
	h.markLoaded(t)

	require.NoError(t, h.svc.Start(ctx, userID))

	require.Eventually(t, func() bool {
		return len(gw.upsertsFor(remote.UserSettings)) >= 2
	}, time.Second, 10*time.Millisecond)

	h.svc.Stop()
	n := len(gw.allUpserts())

	assert.Never(t, func() bool { return len(gw.allUpserts()) > n }, 100*time.Millisecond, 10*time.Millisecond)
}

func TestService_NewDeviceEndToEnd(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.seed(remote.Transactions, remoteTx("t1", "10"), remoteTx("t2", "20"), remoteTx("t3", "30.5"))

	cfg := cloudsync.Config{PushInterval: time.Hour, DebounceDelay: 50 * time.Millisecond, PullCooldown: 50 * time.Millisecond}
	h := newHarness(t, gw, cfg)

	require.NoError(t, h.svc.Start(ctx, userID))

	txs := h.finance.Transactions()
	require.Len(t, txs, 3)
	assert.True(t, txs[2].Amount.Equal(decimal.RequireFromString("30.5")))
	assert.Equal(t, time.Date(2024, 2, 1, 9, 30, 0, 0, time.UTC), txs[0].CreatedAt)

	st := h.svc.Status()
	assert.False(t, st.IsSyncing)
	assert.NotNil(t, st.LastSync)
	assert.Empty(t, st.Error)

	time.Sleep(100 * time.Millisecond)

	t4 := h.addExpense(t, "4")

	require.Eventually(t, func() bool {
		return len(gw.upsertsFor(remote.Transactions)) == 1
	}, time.Second, 10*time.Millisecond)

	pushed := gw.upsertsFor(remote.Transactions)[0].rows
	require.Len(t, pushed, 4)
	assert.Equal(t, t4.ID, pushed[0]["id"])
	assert.Len(t, gw.remoteRows(remote.Transactions), 4)
}

func TestService_ManualTriggerWhileBusy(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	h := newHarness(t, gw, quiet)
	h.markLoaded(t)

	require.NoError(t, h.svc.Start(ctx, userID))

	release := gw.holdSelects()

	var (
		wg      sync.WaitGroup
		pullErr error
	)

	wg.Add(1)

	go func() {
		defer wg.Done()
		pullErr = h.svc.LoadFromCloud(ctx)
	}()

	require.Eventually(t, func() bool { return h.svc.Status().IsSyncing }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, h.svc.SyncNow(ctx), cloudsync.ErrSyncInProgress)
	assert.ErrorIs(t, h.svc.LoadFromCloud(ctx), cloudsync.ErrSyncInProgress)

	release()
	wg.Wait()

	require.NoError(t, pullErr)
	assert.False(t, h.svc.Status().IsSyncing)
}

func TestService_StopDiscardsInFlightPull(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.seed(remote.Transactions, remoteTx("t1", "1"))

	h := newHarness(t, gw, quiet)
	h.markLoaded(t)

	local := h.addExpense(t, "99")

	require.NoError(t, h.svc.Start(ctx, userID))

	release := gw.holdSelects()
	defer release()

	errCh := make(chan error, 1)

	go func() { errCh <- h.svc.LoadFromCloud(ctx) }()

	require.Eventually(t, func() bool { return h.svc.Status().IsSyncing }, time.Second, 5*time.Millisecond)

	h.svc.Stop()

	select {
	case err := <-errCh:
		assert.Error(t, err)
	case <-time.After(time.Second):
		t.Fatal("pull did not return after Stop")
	}

	txs := h.finance.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, local.ID, txs[0].ID)

	st := h.svc.Status()
	assert.False(t, st.IsSyncing)
	assert.Empty(t, st.Error)
	assert.Empty(t, h.svc.UserID())
}

func TestService_NoSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeGateway(), quiet)

	assert.ErrorIs(t, h.svc.SyncNow(ctx), cloudsync.ErrNoSession)
	assert.ErrorIs(t, h.svc.LoadFromCloud(ctx), cloudsync.ErrNoSession)
	assert.ErrorIs(t, h.svc.Start(ctx, ""), cloudsync.ErrNoSession)

	h.svc.RequestSync()
	h.svc.Stop()
}

func TestService_Subscribe(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeGateway(), quiet)
	h.markLoaded(t)

	var (
		mu   sync.Mutex
		seen []cloudsync.Status
	)

	cancel := h.svc.Subscribe(func(st cloudsync.Status) {
		mu.Lock()
		defer mu.Unlock()

		seen = append(seen, st)
	})
	defer cancel()

	require.NoError(t, h.svc.Start(ctx, userID))
	require.NoError(t, h.svc.SyncNow(ctx))

	mu.Lock()
	defer mu.Unlock()

	require.Len(t, seen, 2)
	assert.True(t, seen[0].IsSyncing)
	assert.False(t, seen[1].IsSyncing)
	assert.NotNil(t, seen[1].LastSync)
}

func TestService_SwitchingUsers(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.seed(remote.Transactions, remoteTx("t1", "1"))
	gw.seed(remote.Transactions, remote.Row{"id": "x1", "user_id": "user-2", "type": "income", "amount": "7", "date": "2024-01-01"})

	h := newHarness(t, gw, quiet)

	require.NoError(t, h.svc.Start(ctx, userID))
	require.NoError(t, h.svc.Start(ctx, "user-2"))

	assert.Equal(t, "user-2", h.svc.UserID())
	assert.Equal(t, 2, gw.selectCount(remote.Transactions))

	txs := h.finance.Transactions()
	require.Len(t, txs, 1)
	assert.Equal(t, "x1", txs[0].ID)
}

func TestService_PullMandatoryFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()

	gw := cloudsync.NewMockGateway(ctrl)
	h := newHarness(t, gw, quiet)
	h.markLoaded(t)
	h.addExpense(t, "1")

	require.NoError(t, h.finance.SetBudgets(ctx, []finance.Budget{{ID: "local", Category: "x", Limit: decimal.NewFromInt(1), Period: finance.PeriodMonthly}}))

	gomock.InOrder(
		gw.EXPECT().Select(gomock.Any(), remote.Transactions, userID).
			Return([]remote.Row{remoteTx("t1", "1"), remoteTx("t2", "2")}, nil),
		gw.EXPECT().Select(gomock.Any(), remote.Budgets, userID).
			Return(nil, remote.NewError("budgets", "42501", 403, "permission denied for table budgets")),
	)

	require.NoError(t, h.svc.Start(ctx, userID))

	err := h.svc.LoadFromCloud(ctx)
	require.Error(t, err)
	assert.Equal(t, remote.KindPermission, remote.KindOf(err))

	// No rollback: transactions were already replaced, budgets were not.
	assert.Len(t, h.finance.Transactions(), 2)
	assert.Equal(t, "local", h.finance.Budgets()[0].ID)

	st := h.svc.Status()
	assert.False(t, st.IsSyncing)
	assert.Nil(t, st.LastSync)
	assert.Equal(t, "permission denied for table budgets", st.Error)
}

func TestService_PullSettingsBestEffort(t *testing.T) {
	type testCase struct {
		name         string
		settingsRows []remote.Row
		settingsErr  error
		want         settings.Settings
	}

	tests := []testCase{
		{
			name:        "SelectFails",
			settingsErr: remote.NewError("user_settings", "PGRST205", 404, "Could not find the table 'public.user_settings' in the schema cache"),
			want:        settings.Defaults(),
		},
		{
			name: "NoRow",
			want: settings.Defaults(),
		},
		{
			name: "RowApplied",
			settingsRows: []remote.Row{{
				"user_id":                userID,
				"avatar":                 nil,
				"nickname":               "ana",
				"notification_time":      "07:45",
				"daily_reminder_enabled": true,
				"notifications_enabled":  "true",
			}},
			want: settings.Settings{Nickname: "ana", NotificationTime: "07:45", DailyReminderEnabled: true, NotificationsEnabled: true},
		},
		{
			name: "InvalidTimeSkipped",
			settingsRows: []remote.Row{{
				"user_id":           userID,
				"nickname":          "bo",
				"notification_time": "late evening",
			}},
			want: settings.Settings{Nickname: "bo", NotificationTime: "20:00"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			ctx := context.Background()

			gw := cloudsync.NewMockGateway(ctrl)
			gw.EXPECT().Select(gomock.Any(), remote.Transactions, userID).Return(nil, nil)
			gw.EXPECT().Select(gomock.Any(), remote.Budgets, userID).Return(nil, nil)
			gw.EXPECT().Select(gomock.Any(), remote.Goals, userID).Return(nil, nil)
			gw.EXPECT().Select(gomock.Any(), remote.UserSettings, userID).Return(tt.settingsRows, tt.settingsErr)

			h := newHarness(t, gw, quiet)

			require.NoError(t, h.svc.Start(ctx, userID))
			assert.Equal(t, tt.want, h.settings.Get())
			assert.Empty(t, h.svc.Status().Error)
		})
	}
}

func TestService_PushFailures(t *testing.T) {
	type testCase struct {
		name      string
		setupMock func(m *cloudsync.MockGateway)
		wantErr   bool
	}

	tests := []testCase{
		{
			name: "MandatoryFailureStopsPush",
			setupMock: func(m *cloudsync.MockGateway) {
				m.EXPECT().
					Upsert(gomock.Any(), remote.Transactions, gomock.Len(1), "id").
					Return(remote.NewError("transactions", "42P01", 0, `relation "transactions" does not exist`))
			},
			wantErr: true,
		},
		{
			name: "SettingsFailureOnlyLogged",
			setupMock: func(m *cloudsync.MockGateway) {
				gomock.InOrder(
					m.EXPECT().Upsert(gomock.Any(), remote.Transactions, gomock.Len(1), "id").Return(nil),
					m.EXPECT().Upsert(gomock.Any(), remote.UserSettings, gomock.Len(1), "user_id").
						Return(errors.New("timeout")),
				)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			ctx := context.Background()

			gw := cloudsync.NewMockGateway(ctrl)
			tt.setupMock(gw)

			h := newHarness(t, gw, quiet)
			h.markLoaded(t)
			h.addExpense(t, "1")

			require.NoError(t, h.svc.Start(ctx, userID))

			err := h.svc.SyncNow(ctx)
			st := h.svc.Status()

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, remote.KindSchemaMissing, remote.KindOf(err))
				assert.Equal(t, `relation "transactions" does not exist`, st.Error)

				return
			}

			require.NoError(t, err)
			assert.Empty(t, st.Error)
			assert.NotNil(t, st.LastSync)
		})
	}
}

func TestService_RequesterInterface(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	var r cloudsync.Requester = cloudsync.NewService(nil, cloudsync.Stores{}, kv.NewMemory())
	r.RequestSync()

	m := cloudsync.NewMockRequester(ctrl)
	m.EXPECT().RequestSync().Times(1)
	m.RequestSync()
}

func TestService_StuckCallDoesNotBlockNextSession(t *testing.T) {
	type testCase struct {
		name    string
		upserts bool
		trigger func(*cloudsync.Service, context.Context) error
	}

	tests := []testCase{
		{name: "HeldPush", upserts: true, trigger: (*cloudsync.Service).SyncNow},
		{name: "HeldPull", trigger: (*cloudsync.Service).LoadFromCloud},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()

			fake := newFakeGateway()
			fake.seed(remote.Transactions, remoteTx("t1", "1"))
			fake.seed(remote.Transactions, remote.Row{"id": "x1", "user_id": "user-2", "type": "income", "amount": "7", "date": "2024-01-01"})

			gw := newStubbornGateway(fake, userID, tt.upserts)

			h := newHarness(t, gw, quiet)
			h.markLoaded(t)
			h.addExpense(t, "99")

			require.NoError(t, h.svc.Start(ctx, userID))

			errCh := make(chan error, 1)

			go func() { errCh <- tt.trigger(h.svc, ctx) }()

			select {
			case <-gw.entered:
			case <-time.After(time.Second):
				t.Fatal("gateway call was not made")
			}

			h.svc.Stop()

			require.NoError(t, h.svc.Start(ctx, "user-2"))

			done, err := h.svc.InitialLoadDone(ctx, "user-2")
			require.NoError(t, err)
			assert.True(t, done)

			txs := h.finance.Transactions()
			require.Len(t, txs, 1)
			assert.Equal(t, "x1", txs[0].ID)

			gw.release()

			select {
			case err := <-errCh:
				assert.Error(t, err)
			case <-time.After(time.Second):
				t.Fatal("held call did not return after release")
			}

			txs = h.finance.Transactions()
			require.Len(t, txs, 1)
			assert.Equal(t, "x1", txs[0].ID)

			st := h.svc.Status()
			assert.False(t, st.IsSyncing)
			assert.Empty(t, st.Error)
			assert.NotNil(t, st.LastSync)
			assert.Equal(t, "user-2", h.svc.UserID())

			for _, call := range fake.allUpserts() {
				for _, row := range call.rows {
					if row["user_id"] == userID {
						assert.NotEqual(t, "x1", row["id"], "user-2 data pushed under %s", userID)
					}
				}
			}

			// The new session is idle and usable.
			require.NoError(t, h.svc.SyncNow(ctx))
		})
	}
}

func TestService_OtherUsersDataIsNeverPushed(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway()
	gw.seed(remote.Transactions, remoteTx("t1", "1"))
	gw.seed(remote.Transactions, remote.Row{"id": "x1", "user_id": "user-2", "type": "income", "amount": "7", "date": "2024-01-01"})

	h := newHarness(t, gw, quiet)

	require.NoError(t, h.svc.Start(ctx, userID))
	require.Len(t, h.finance.Transactions(), 1)

	h.svc.Stop()

	// user-2 loaded on this device before user-1 did.
	require.NoError(t, h.markers.Put(ctx, "cloudsync/initial-load/user-2", []byte("true")))

	done, err := h.svc.InitialLoadDone(ctx, "user-2")
	require.NoError(t, err)
	assert.False(t, done)

	gw.failSelect(remote.Transactions, errors.New("network unreachable"))

	require.Error(t, h.svc.Start(ctx, "user-2"))
	assert.Equal(t, "t1", h.finance.Transactions()[0].ID)

	assert.ErrorIs(t, h.svc.SyncNow(ctx), cloudsync.ErrForeignData)
	assert.Empty(t, gw.allUpserts())

	gw.failSelect(remote.Transactions, nil)

	require.NoError(t, h.svc.LoadFromCloud(ctx))
	require.NoError(t, h.svc.SyncNow(ctx))

	pushed := gw.upsertsFor(remote.Transactions)
	require.Len(t, pushed, 1)
	require.Len(t, pushed[0].rows, 1)
	assert.Equal(t, "x1", pushed[0].rows[0]["id"])
	assert.Equal(t, "user-2", pushed[0].rows[0]["user_id"])

	h.svc.Stop()

	// Back to user-1: its marker predates user-2's load, so it pulls again.
	before := gw.selectCount(remote.Transactions)
	require.NoError(t, h.svc.Start(ctx, userID))
	assert.Equal(t, before+1, gw.selectCount(remote.Transactions))
	assert.Equal(t, "t1", h.finance.Transactions()[0].ID)
}

func TestService_ConcurrentStarts(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, newFakeGateway(), quiet)
	h.markLoaded(t)
	require.NoError(t, h.markers.Put(ctx, "cloudsync/initial-load/user-2", []byte("true")))

	var (
		mu    sync.Mutex
		stops int
	)

	cancel := h.svc.Subscribe(func(cloudsync.Status) {
		mu.Lock()
		defer mu.Unlock()

		stops++
	})
	defer cancel()

	users := []string{userID, "user-2", userID, "user-2", userID, "user-2"}

	var wg sync.WaitGroup

	for _, uid := range users {
		wg.Add(1)

		go func() {
			defer wg.Done()
			assert.NoError(t, h.svc.Start(ctx, uid))
		}()
	}

	wg.Wait()

	assert.Contains(t, []string{userID, "user-2"}, h.svc.UserID())

	h.svc.Stop()
	assert.Empty(t, h.svc.UserID())

	// Every session that was started was also stopped.
	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, len(users), stops)
}
