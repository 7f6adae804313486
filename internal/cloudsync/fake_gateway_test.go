package cloudsync_test

import (
	"context"
	"maps"
	"sync"

	"github.com/MrJamesThe3rd/finsync/internal/remote"
)

type upsertCall struct {
	table      string
	rows       []remote.Row
	onConflict string
}

// fakeGateway is an in-memory remote that records every call.
type fakeGateway struct {
	mu        sync.Mutex
	rows      map[string][]remote.Row
	selects   map[string]int
	upserts   []upsertCall
	selectErr map[string]error
	hold      chan struct{}
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		rows:      make(map[string][]remote.Row),
		selects:   make(map[string]int),
		selectErr: make(map[string]error),
	}
}

func (f *fakeGateway) seed(table remote.Table, rows ...remote.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.rows[table.Name] = append(f.rows[table.Name], rows...)
}

// holdSelects makes Select block until the returned func is called.
func (f *fakeGateway) holdSelects() (release func()) {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan struct{})
	f.hold = ch

	return func() { close(ch) }
}

func (f *fakeGateway) failSelect(table remote.Table, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.selectErr[table.Name] = err
}

func (f *fakeGateway) Select(ctx context.Context, table remote.Table, userID string) ([]remote.Row, error) {
	f.mu.Lock()
	f.selects[table.Name]++
	hold := f.hold
	err := f.selectErr[table.Name]
	f.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	var out []remote.Row

	for _, r := range f.rows[table.Name] {
		if r[remote.UserIDColumn] == userID {
			out = append(out, maps.Clone(r))
		}
	}

	return out, nil
}

func (f *fakeGateway) Upsert(_ context.Context, table remote.Table, rows []remote.Row, onConflict string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.upserts = append(f.upserts, upsertCall{table: table.Name, rows: rows, onConflict: onConflict})

	for _, r := range rows {
		replaced := false

		for i, existing := range f.rows[table.Name] {
			if existing[onConflict] == r[onConflict] {
				f.rows[table.Name][i] = maps.Clone(r)
				replaced = true

				break
			}
		}

		if !replaced {
			f.rows[table.Name] = append(f.rows[table.Name], maps.Clone(r))
		}
	}

	return nil
}

func (f *fakeGateway) selectCount(table remote.Table) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.selects[table.Name]
}

func (f *fakeGateway) upsertsFor(table remote.Table) []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []upsertCall

	for _, c := range f.upserts {
		if c.table == table.Name {
			out = append(out, c)
		}
	}

	return out
}

func (f *fakeGateway) allUpserts() []upsertCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]upsertCall(nil), f.upserts...)
}

func (f *fakeGateway) remoteRows(table remote.Table) []remote.Row {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]remote.Row(nil), f.rows[table.Name]...)
}

// stubbornGateway blocks one user's calls of one kind until released, and
// ignores context cancellation while blocked.
type stubbornGateway struct {
	*fakeGateway

	userID  string
	upserts bool
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func newStubbornGateway(gw *fakeGateway, userID string, upserts bool) *stubbornGateway {
	return &stubbornGateway{
		fakeGateway: gw,
		userID:      userID,
		upserts:     upserts,
		gate:        make(chan struct{}),
		entered:     make(chan struct{}),
	}
}

func (g *stubbornGateway) release() { close(g.gate) }

func (g *stubbornGateway) wait(userID string) {
	if userID != g.userID {
		return
	}

	g.once.Do(func() { close(g.entered) })
	<-g.gate
}

func (g *stubbornGateway) Select(ctx context.Context, table remote.Table, userID string) ([]remote.Row, error) {
	if !g.upserts {
		g.wait(userID)
	}

	return g.fakeGateway.Select(context.WithoutCancel(ctx), table, userID)
}

func (g *stubbornGateway) Upsert(ctx context.Context, table remote.Table, rows []remote.Row, onConflict string) error {
	if g.upserts && len(rows) > 0 {
		uid, _ := rows[0][remote.UserIDColumn].(string)
		g.wait(uid)
	}

	return g.fakeGateway.Upsert(ctx, table, rows, onConflict)
}
