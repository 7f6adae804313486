package postgres

import (
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/MrJamesThe3rd/finsync/internal/remote"
)

func TestSelectQuery(t *testing.T) {
	got := selectQuery(remote.Budgets)

	want := `SELECT "id", "user_id", "category", "limit_amount", "period" FROM "budgets" ` +
		`WHERE "user_id" = $1 ORDER BY "category", "id"`
	assert.Equal(t, want, got)

	assert.NotContains(t, selectQuery(remote.UserSettings), "ORDER BY")
}

func TestUpsertQuery(t *testing.T) {
	got := upsertQuery(remote.UserSettings, "user_id", 2)

	want := `INSERT INTO "user_settings" ("user_id", "avatar", "nickname", "notification_time", ` +
		`"daily_reminder_enabled", "notifications_enabled") VALUES ($1, $2, $3, $4, $5, $6), ` +
		`($7, $8, $9, $10, $11, $12) ON CONFLICT ("user_id") DO UPDATE SET ` +
		`"avatar" = EXCLUDED."avatar", "nickname" = EXCLUDED."nickname", ` +
		`"notification_time" = EXCLUDED."notification_time", ` +
		`"daily_reminder_enabled" = EXCLUDED."daily_reminder_enabled", ` +
		`"notifications_enabled" = EXCLUDED."notifications_enabled"`
	assert.Equal(t, want, got)
}

func TestScannedValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("WET", 3600))

	type testCase struct {
		name string
		dest any
		want any
	}

	tests := []testCase{
		{name: "NullString", dest: &sql.NullString{}, want: nil},
		{name: "String", dest: &sql.NullString{String: "food", Valid: true}, want: "food"},
		{name: "Bool", dest: &sql.NullBool{Bool: true, Valid: true}, want: true},
		{name: "TimeUTC", dest: &sql.NullTime{Time: ts, Valid: true}, want: ts.UTC()},
		{name: "NullDecimal", dest: &decimal.NullDecimal{}, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, scannedValue(tt.dest))
		})
	}

	d := decimal.RequireFromString("12.50")
	got := scannedValue(&decimal.NullDecimal{Decimal: d, Valid: true})
	assert.True(t, d.Equal(got.(decimal.Decimal)))
}

func TestScanDest(t *testing.T) {
	assert.IsType(t, &decimal.NullDecimal{}, scanDest(remote.Column{Type: remote.TypeNumeric}))
	assert.IsType(t, &sql.NullBool{}, scanDest(remote.Column{Type: remote.TypeBool}))
	assert.IsType(t, &sql.NullTime{}, scanDest(remote.Column{Type: remote.TypeTimestamp}))
	assert.IsType(t, &sql.NullString{}, scanDest(remote.Column{Type: remote.TypeText}))
}
