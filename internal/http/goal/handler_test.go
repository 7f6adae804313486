package goal_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/MrJamesThe3rd/finsync/internal/cloudsync"
	"github.com/MrJamesThe3rd/finsync/internal/goal"
	goalHandler "github.com/MrJamesThe3rd/finsync/internal/http/goal"
	"github.com/MrJamesThe3rd/finsync/internal/kv"
)

type goalBody struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	CurrentAmount decimal.Decimal `json:"current_amount"`
	Progress      decimal.Decimal `json:"progress"`
	IsCompleted   bool            `json:"is_completed"`
	TargetDate    *string         `json:"target_date"`
	Icon          string          `json:"icon"`
}

func setup(t *testing.T) (http.Handler, *goal.Store, *cloudsync.MockRequester) {
	t.Helper()

	store, err := goal.Open(context.Background(), kv.NewMemory())
	require.NoError(t, err)

	req := cloudsync.NewMockRequester(gomock.NewController(t))

	r := chi.NewRouter()
	r.Route("/goals", goalHandler.NewHandler(store, req).Routes)

	return r, store, req
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) goalBody {
	t.Helper()

	var g goalBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&g))

	return g
}

func TestCreateGoal(t *testing.T) {
	type testCase struct {
		name       string
		body       string
		wantStatus int
		wantIcon   string
	}

	tests := []testCase{
		{
			name:       "LegacyIconMigrated",
			body:       `{"name":"House","target_amount":"50000","icon":"🏠","target_date":"2030-01-01"}`,
			wantStatus: http.StatusCreated,
			wantIcon:   "home",
		},
		{
			name:       "SymbolicIcon",
			body:       `{"name":"Bike","target_amount":"800","icon":"bike"}`,
			wantStatus: http.StatusCreated,
			wantIcon:   "bike",
		},
		{
			name:       "MissingName",
			body:       `{"target_amount":"800"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "BadTargetDate",
			body:       `{"name":"Trip","target_amount":"800","target_date":"soon"}`,
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _, _ := setup(t)

			rec := do(t, h, http.MethodPost, "/goals/", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())

			if tt.wantStatus != http.StatusCreated {
				return
			}

			g := decode(t, rec)
			assert.Equal(t, tt.wantIcon, g.Icon)
			assert.NotEmpty(t, g.ID)
		})
	}
}

func TestContribute(t *testing.T) {
	h, store, req := setup(t)

	g, err := store.Add(context.Background(), goal.CreateParams{Name: "Laptop", TargetAmount: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	req.EXPECT().RequestSync().Times(2)

	rec := do(t, h, http.MethodPost, "/goals/"+g.ID+"/contribute", `{"amount":"400"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode(t, rec)
	assert.False(t, got.IsCompleted)
	assert.Equal(t, "0.4", got.Progress.String())

	rec = do(t, h, http.MethodPost, "/goals/"+g.ID+"/contribute", `{"amount":"600"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode(t, rec).IsCompleted)

	rec = do(t, h, http.MethodPost, "/goals/"+g.ID+"/contribute", `{"amount":"0"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/goals/missing/contribute", `{"amount":"5"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateAndDeleteGoal(t *testing.T) {
	h, store, req := setup(t)

	g, err := store.Add(context.Background(), goal.CreateParams{Name: "Car", TargetAmount: decimal.NewFromInt(9000)})
	require.NoError(t, err)

	req.EXPECT().RequestSync().Times(1)

	rec := do(t, h, http.MethodPatch, "/goals/"+g.ID, `{"name":"New car","icon":"🚗","target_date":"2027-05-01"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decode(t, rec)
	assert.Equal(t, "New car", got.Name)
	assert.Equal(t, "car", got.Icon)
	require.NotNil(t, got.TargetDate)
	assert.Equal(t, "2027-05-01", *got.TargetDate)

	rec = do(t, h, http.MethodGet, "/goals/", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []goalBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)

	rec = do(t, h, http.MethodDelete, "/goals/"+g.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, "/goals/"+g.ID, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
